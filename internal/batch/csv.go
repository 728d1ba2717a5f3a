package batch

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
)

// outputColumns is the fixed output schema; every result row fills every
// column, empty when the underlying fragment is absent. A failed row
// carries its error sentinel in the recommendation column.
var outputColumns = []string{
	"ticker",
	"date",
	"model",
	"current_price",
	"llm_target_price",
	"recommendation",
	"segment",
	"quality_score",
	"news_sentiment",
	"momentum_score",
	"trend_flag",
	"institutional_signal",
	"analyst_target_consensus",
	"analyst_target_upside",
	"analyst_rating_score",
	"analyst_rating_trend",
}

// recommendationColumn is where both ratings and error sentinels land.
const recommendationColumn = 5

// WriteCSV renders the batch results, one row per input, in input order.
func WriteCSV(w io.Writer, results []Result) error {
	writer := csv.NewWriter(w)
	if err := writer.Write(outputColumns); err != nil {
		return fmt.Errorf("failed to write batch CSV header: %w", err)
	}
	for _, result := range results {
		if err := writer.Write(resultRecord(result)); err != nil {
			return fmt.Errorf("failed to write batch CSV row: %w", err)
		}
	}
	writer.Flush()
	return writer.Error()
}

func resultRecord(result Result) []string {
	record := make([]string, len(outputColumns))
	record[0] = result.Row.Ticker
	record[1] = result.Row.Date
	record[2] = result.Row.Model

	if result.Err != nil {
		record[recommendationColumn] = "ERROR:" + result.Err.Error()
		return record
	}

	bundle := result.Bundle
	if bundle == nil {
		record[recommendationColumn] = "ERROR:no result"
		return record
	}

	if bundle.Input != nil {
		record[0] = bundle.Input.Ticker
		record[1] = bundle.Input.Date
	}
	if bundle.AnalysisModel != "" {
		record[2] = bundle.AnalysisModel
	}
	if meta := bundle.PriceMetaOrNil(); meta != nil {
		record[3] = formatFloat(meta.Value)
	}
	if analysis := bundle.Analysis; analysis != nil {
		if analysis.Action != nil {
			record[4] = formatFloat(analysis.Action.TargetPrice)
			record[recommendationColumn] = string(analysis.Action.Rating)
		}
		record[6] = analysis.Segment
		record[7] = formatFloat(analysis.QualityScore)
	}
	if news := bundle.News; news != nil && news.Sentiment != nil {
		record[8] = news.Sentiment.SentimentLabel
	}
	if momentum := bundle.Momentum; momentum != nil && momentum.Error == "" {
		record[9] = formatFloat(momentum.Score)
		record[10] = momentum.TrendLabel
	}
	if inst := bundle.Institutional; inst != nil && inst.Error == "" {
		record[11] = inst.Signal.Label
	}
	if metrics := bundle.AnalystMetrics; metrics != nil {
		record[12] = formatFloat(metrics.TargetConsensus)
		record[13] = formatFloat(metrics.TargetUpside)
		record[14] = formatFloat(metrics.RatingScore)
		record[15] = metrics.RatingTrend
	}
	return record
}

func formatFloat(v float64) string {
	if v == 0 {
		return ""
	}
	return strconv.FormatFloat(v, 'f', -1, 64)
}
