package domain

import "time"

// PricedHolding extends a holding with live-price valuation. Price fields
// are nil when no price could be resolved for the symbol.
type PricedHolding struct {
	Symbol        string   `json:"symbol"`
	Quantity      float64  `json:"quantity"`
	AvgPrice      float64  `json:"avg_price"`
	InvestedValue float64  `json:"invested_value"`
	CMP           *float64 `json:"cmp,omitempty"`
	CurrentValue  *float64 `json:"current_value,omitempty"`
	PnL           *float64 `json:"pnl,omitempty"`
	PnLPercent    *float64 `json:"pnl_percent,omitempty"`
}

// Dashboard is the one-screen portfolio view for a fiscal year.
type Dashboard struct {
	FY                  string          `json:"fy"`
	Holdings            []PricedHolding `json:"holdings"`
	InvestedValue       float64         `json:"invested_value"`
	CurrentValue        float64         `json:"current_value"`
	NetWorth            float64         `json:"net_worth"`
	NetWorthPrevFY      float64         `json:"net_worth_prev_fy"`
	NetWorthYoYPercent  *float64        `json:"net_worth_yoy_percent,omitempty"`
	FYRealizedPnL       float64         `json:"fy_realized_pnl"`
	MissingPriceSymbols []string        `json:"missing_price_symbols,omitempty"`
	HealthIssues        []string        `json:"health_issues,omitempty"`
	DataWarnings        []string        `json:"data_warnings,omitempty"`
	UpdatedAt           time.Time       `json:"updated_at"`
}

// FYValue is one fiscal year's aggregate for summary reports.
type FYValue struct {
	FY    string  `json:"fy"`
	Value float64 `json:"value"`
}

// SummaryReport aggregates net worth and charges across fiscal years.
type SummaryReport struct {
	NetWorthByFY []FYValue `json:"net_worth_by_fy"`
	ChargesByFY  []FYValue `json:"charges_by_fy"`
}
