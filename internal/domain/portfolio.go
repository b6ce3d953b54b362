package domain

import "time"

// Lot is an open purchase parcel awaiting FIFO consumption. A lot belongs to
// exactly one symbol's queue and is mutated in place as sells consume it.
type Lot struct {
	Quantity        float64   `json:"qty"`
	AcquisitionDate time.Time `json:"acquisition_date"`
	GrossUnitPrice  float64   `json:"gross_unit_price"`
	NetUnitPrice    float64   `json:"net_unit_price"`
}

// TotalCost is the charge-adjusted cost of the remaining quantity.
func (l Lot) TotalCost() float64 {
	return l.Quantity * l.NetUnitPrice
}

// Holding is the per-symbol view over the remaining lots of a symbol.
type Holding struct {
	Symbol   string  `json:"symbol"`
	Quantity float64 `json:"quantity"`
	AvgPrice float64 `json:"avg_price"`
	Lots     []Lot   `json:"lots,omitempty"`
}

// RealizedGain records the FIFO outcome of one SELL trade. Derived, never
// mutated after creation.
type RealizedGain struct {
	Symbol      string    `json:"symbol"`
	SellDate    time.Time `json:"sell_date"`
	SellQty     float64   `json:"sell_qty"`
	SellPrice   float64   `json:"sell_price"`
	AvgBuyPrice float64   `json:"avg_buy_price"`
	RealizedPnL float64   `json:"realized_pnl"`
}

// UnmatchedSell flags a SELL whose quantity exceeded the known lot history.
// Diagnostic, not an error: broker history may legitimately start
// mid-position.
type UnmatchedSell struct {
	Symbol       string    `json:"symbol"`
	SellDate     time.Time `json:"sell_date"`
	SellQty      float64   `json:"sell_qty"`
	UnmatchedQty float64   `json:"unmatched_qty"`
}

// SkippedAction reports a corporate action the adjuster refused to apply.
type SkippedAction struct {
	Action CorporateAction `json:"action"`
	Reason string          `json:"reason"`
}
