package llm

import (
	"math"
	"strings"
	"time"

	"github.com/ternarybob/vantage/internal/models"
)

// modelPrice is USD per million tokens.
type modelPrice struct {
	Input  float64
	Output float64
}

// priceTable maps model-name prefixes to published list prices. Longest
// matching prefix wins; unknown models meter tokens with zero cost.
var priceTable = map[string]modelPrice{
	"claude-opus":    {Input: 15.00, Output: 75.00},
	"claude-sonnet":  {Input: 3.00, Output: 15.00},
	"claude-haiku":   {Input: 0.80, Output: 4.00},
	"claude-3-5":     {Input: 3.00, Output: 15.00},
	"gemini-3-flash": {Input: 0.30, Output: 2.50},
	"gemini-2.5-pro": {Input: 1.25, Output: 10.00},
	"gemini-2.5":     {Input: 0.30, Output: 2.50},
	"gemini-2.0":     {Input: 0.10, Output: 0.40},
}

// lookupPrice resolves the longest prefix match for a model name.
func lookupPrice(model string) (modelPrice, bool) {
	model = strings.ToLower(model)
	var best string
	for prefix := range priceTable {
		if strings.HasPrefix(model, prefix) && len(prefix) > len(best) {
			best = prefix
		}
	}
	if best == "" {
		return modelPrice{}, false
	}
	return priceTable[best], true
}

// priceUsage fills in the cost fields of a usage record from the per-model
// price table.
func priceUsage(usage *models.LLMUsage, at time.Time) *models.LLMUsage {
	if usage == nil {
		return nil
	}
	usage.At = at

	price, ok := lookupPrice(usage.Model)
	if !ok {
		return usage
	}

	usage.InputCost = roundCost(float64(usage.PromptTokens) / 1e6 * price.Input)
	usage.OutputCost = roundCost(float64(usage.CompletionTokens) / 1e6 * price.Output)
	usage.TotalCost = roundCost(usage.InputCost + usage.OutputCost)
	return usage
}

func roundCost(v float64) float64 {
	return math.Round(v*1e6) / 1e6
}
