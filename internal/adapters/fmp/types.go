package fmp

// Vendor response shapes. Several FMP endpoints alias the same attribute
// under different names across plan tiers and API versions; the firstNonZero
// helpers in the mapping code resolve them into the canonical schema.

type quoteResponse struct {
	Symbol           string  `json:"symbol"`
	Price            float64 `json:"price"`
	Change           float64 `json:"change"`
	ChangesPercent   float64 `json:"changesPercentage"`
	Open             float64 `json:"open"`
	DayHigh          float64 `json:"dayHigh"`
	DayLow           float64 `json:"dayLow"`
	PreviousClose    float64 `json:"previousClose"`
	Volume           float64 `json:"volume"`
	YearHigh         float64 `json:"yearHigh"`
	YearLow          float64 `json:"yearLow"`
	PriceAvg50       float64 `json:"priceAvg50"`
	PriceAvg200      float64 `json:"priceAvg200"`
	MarketCap        float64 `json:"marketCap"`
	EarningsAnnounce string  `json:"earningsAnnouncement"`
	Timestamp        int64   `json:"timestamp"`
}

type historicalPriceResponse struct {
	Symbol     string          `json:"symbol"`
	Historical []historicalBar `json:"historical"`
}

type historicalBar struct {
	Date     string  `json:"date"`
	Open     float64 `json:"open"`
	High     float64 `json:"high"`
	Low      float64 `json:"low"`
	Close    float64 `json:"close"`
	AdjClose float64 `json:"adjClose"`
	Volume   float64 `json:"volume"`
}

type priceTargetSummaryResponse struct {
	Symbol              string  `json:"symbol"`
	LastMonth           int     `json:"lastMonth"`
	LastMonthAvgPT      float64 `json:"lastMonthAvgPriceTarget"`
	LastQuarter         int     `json:"lastQuarter"`
	LastQuarterAvgPT    float64 `json:"lastQuarterAvgPriceTarget"`
	LastYear            int     `json:"lastYear"`
	LastYearAvgPT       float64 `json:"lastYearAvgPriceTarget"`
	AllTime             int     `json:"allTime"`
	AllTimeAvgPT        float64 `json:"allTimeAvgPriceTarget"`
	TargetConsensus     float64 `json:"targetConsensus"`
	TargetMean          float64 `json:"targetMean"`
	TargetAvg           float64 `json:"targetAvg"`
	TargetMedian        float64 `json:"targetMedian"`
	PublishersJSONArray string  `json:"publishers"`
}

type estimateResponse struct {
	Symbol              string  `json:"symbol"`
	Date                string  `json:"date"`
	EstimatedRevenueAvg float64 `json:"estimatedRevenueAvg"`
	EstimatedRevenueLow float64 `json:"estimatedRevenueLow"`
	EstimatedRevenueHi  float64 `json:"estimatedRevenueHigh"`
	EstimatedEPSAvg     float64 `json:"estimatedEpsAvg"`
	EstimatedEPSLow     float64 `json:"estimatedEpsLow"`
	EstimatedEPSHi      float64 `json:"estimatedEpsHigh"`
	NumberAnalystsEPS   int     `json:"numberAnalystEstimatedEps"`
	NumberAnalystsRev   int     `json:"numberAnalystEstimatedRevenue"`
}

type ratingResponse struct {
	Symbol        string  `json:"symbol"`
	Date          string  `json:"date"`
	Rating        string  `json:"rating"`
	RatingScore   float64 `json:"ratingScore"`
	RatingDetails string  `json:"ratingDetailsDCFRecommendation"`
}

type gradeResponse struct {
	Symbol        string `json:"symbol"`
	Date          string `json:"date"`
	GradingCo     string `json:"gradingCompany"`
	PreviousGrade string `json:"previousGrade"`
	NewGrade      string `json:"newGrade"`
	Action        string `json:"action"`
}

type gradeConsensusResponse struct {
	Symbol     string `json:"symbol"`
	Date       string `json:"date"`
	StrongBuy  int    `json:"strongBuy"`
	Buy        int    `json:"buy"`
	Hold       int    `json:"hold"`
	Sell       int    `json:"sell"`
	StrongSell int    `json:"strongSell"`
	Consensus  string `json:"consensus"`
}

type institutionalHolderResponse struct {
	// Holder name aliases
	Holder          string `json:"holder"`
	InvestorName    string `json:"investorName"`
	InstitutionName string `json:"institutionName"`
	// Share count aliases
	Shares       float64 `json:"shares"`
	SharesHeld   float64 `json:"sharesHeld"`
	SharesNumber float64 `json:"sharesNumber"`
	// Position value aliases
	Value       float64 `json:"value"`
	MarketValue float64 `json:"marketValue"`
	// Share delta aliases
	Change         float64 `json:"change"`
	ChangeShares   float64 `json:"changeShares"`
	ChangeInShares float64 `json:"changeInShares"`
	SharesChange   float64 `json:"sharesChange"`
	Weight         float64 `json:"weight"`
	DateReported   string  `json:"dateReported"`
}

type ownershipSummaryResponse struct {
	Symbol                string  `json:"symbol"`
	Date                  string  `json:"date"`
	InvestorsHolding      int     `json:"investorsHolding"`
	NumberOf13FShares     float64 `json:"numberOf13Fshares"`
	LastNumberOf13FShares float64 `json:"lastNumberOf13Fshares"`
	NetSharesChange       float64 `json:"netSharesChange"`
	TotalInvested         float64 `json:"totalInvested"`
}

type insiderTradeResponse struct {
	Symbol          string  `json:"symbol"`
	TransactionDate string  `json:"transactionDate"`
	ReportingName   string  `json:"reportingName"`
	TransactionType string  `json:"transactionType"`
	AcquistionOrDis string  `json:"acquistionOrDisposition"`
	SecuritiesOwned float64 `json:"securitiesOwned"`
	SecuritiesTrans float64 `json:"securitiesTransacted"`
	Price           float64 `json:"price"`
}

type newsResponse struct {
	Symbol        string `json:"symbol"`
	PublishedDate string `json:"publishedDate"`
	Title         string `json:"title"`
	Site          string `json:"site"`
	Text          string `json:"text"`
	URL           string `json:"url"`
	Tickers       string `json:"tickers"`
}

type economicEventResponse struct {
	Date     string  `json:"date"`
	Event    string  `json:"event"`
	Country  string  `json:"country"`
	Impact   string  `json:"impact"`
	Actual   float64 `json:"actual"`
	Estimate float64 `json:"estimate"`
	Previous float64 `json:"previous"`
}

type treasuryResponse struct {
	Date   string  `json:"date"`
	Month1 float64 `json:"month1"`
	Month3 float64 `json:"month3"`
	Year2  float64 `json:"year2"`
	Year5  float64 `json:"year5"`
	Year10 float64 `json:"year10"`
	Year30 float64 `json:"year30"`
}

type riskPremiumResponse struct {
	Country         string  `json:"country"`
	TotalEquityRisk float64 `json:"totalEquityRiskPremium"`
	CountryRiskPrem float64 `json:"countryRiskPremium"`
}

type transcriptResponse struct {
	Symbol  string `json:"symbol"`
	Quarter int    `json:"quarter"`
	Year    int    `json:"year"`
	Date    string `json:"date"`
	Content string `json:"content"`
}

type etfExposureResponse struct {
	ETFSymbol     string  `json:"etfSymbol"`
	AssetExposure string  `json:"assetExposure"`
	SharesNumber  float64 `json:"sharesNumber"`
	WeightPercent float64 `json:"weightPercentage"`
	MarketValue   float64 `json:"marketValue"`
}

// firstNonZero returns the first non-zero float from the candidates.
func firstNonZero(values ...float64) float64 {
	for _, v := range values {
		if v != 0 {
			return v
		}
	}
	return 0
}

// firstNonEmpty returns the first non-empty string from the candidates.
func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
