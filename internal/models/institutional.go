package models

// HolderRow is one normalized 13F position. Vendor payloads alias these
// attributes under several names; the institutional adapter resolves them.
type HolderRow struct {
	Holder       string  `json:"holder"`
	Shares       float64 `json:"shares"`
	Value        float64 `json:"value"`
	ChangeShares float64 `json:"change_shares"`
	Weight       float64 `json:"weight,omitempty"`
}

// FlowSignal pairs the canonical flow classification with its localized
// label and the net share delta that produced it.
type FlowSignal struct {
	Signal    InstitutionalSignal `json:"signal"`
	Label     string              `json:"label"` // 加碼 | 減碼 | 持平
	NetShares float64             `json:"net_shares"`
}

// InsiderTrade is one insider transaction inside the lookback window.
type InsiderTrade struct {
	Date   string  `json:"date"`
	Name   string  `json:"name"`
	Type   string  `json:"type"` // buy | sell
	Shares float64 `json:"shares"`
	Price  float64 `json:"price,omitempty"`
	Value  float64 `json:"value,omitempty"`
}

// InsiderActivity summarizes insider flow around the baseline date.
type InsiderActivity struct {
	BuyCount    int            `json:"buy_count"`
	SellCount   int            `json:"sell_count"`
	BuyShares   float64        `json:"buy_shares"`
	SellShares  float64        `json:"sell_shares"`
	NetShares   float64        `json:"net_shares"`
	Signal      string         `json:"signal"` // canonical accumulate/reduce/flat
	Label       string         `json:"label"`  // localized 加碼/減碼/持平
	LastTrades  []InsiderTrade `json:"last_trades,omitempty"`
	WindowStart string         `json:"window_start"`
	WindowEnd   string         `json:"window_end"`
}

// AnalystActions counts rating revisions in short windows around the
// baseline date.
type AnalystActions struct {
	Upgrades7d    int `json:"upgrades_7d"`
	Downgrades7d  int `json:"downgrades_7d"`
	Upgrades30d   int `json:"upgrades_30d"`
	Downgrades30d int `json:"downgrades_30d"`
}

// InstitutionalMetrics are summary-level 13F statistics.
type InstitutionalMetrics struct {
	HolderCount   int     `json:"holder_count,omitempty"`
	TotalValue    float64 `json:"total_value,omitempty"`
	TotalShares   float64 `json:"total_shares,omitempty"`
	QuarterOffset int     `json:"quarter_offset,omitempty"` // how many quarters the fallback walked back
}

// InstitutionalSnapshot is the institutional fragment: top holders for the
// resolved quarter plus insider and analyst-action enrichment.
type InstitutionalSnapshot struct {
	AsOf            string                `json:"as_of"` // quarter end, YYYY-MM-DD
	Quarter         int                   `json:"quarter"`
	Year            int                   `json:"year"`
	Signal          FlowSignal            `json:"signal"`
	TopHolders      []HolderRow           `json:"top_holders,omitempty"`
	Summary         string                `json:"summary,omitempty"`
	Metrics         *InstitutionalMetrics `json:"metrics,omitempty"`
	InsiderActivity *InsiderActivity      `json:"insider_activity,omitempty"`
	AnalystActions  *AnalystActions       `json:"analyst_actions,omitempty"`
	Error           string                `json:"error,omitempty"`
}
