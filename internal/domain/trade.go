package domain

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// Side classifies a trade as a purchase or a disposal.
type Side string

const (
	SideBuy  Side = "BUY"
	SideSell Side = "SELL"
)

// ParseSide normalizes broker side markers ("B", "buy", ...) into a Side.
// Unknown markers return an error; callers drop such trades before matching
// rather than guessing a direction.
func ParseSide(s string) (Side, error) {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "B", "BUY":
		return SideBuy, nil
	case "S", "SELL":
		return SideSell, nil
	default:
		return "", fmt.Errorf("unknown trade side: %q", s)
	}
}

// Trade is a single executed order from the tradebook. Identity key is
// TradeID; records are immutable once ingested.
type Trade struct {
	ID          int64     `db:"id" json:"-"`
	TradeID     string    `db:"trade_id" json:"trade_id"`
	Symbol      string    `db:"symbol" json:"symbol"`
	ISIN        string    `db:"isin" json:"isin,omitempty"`
	Date        time.Time `db:"trade_date" json:"date"`
	Side        Side      `db:"side" json:"side"`
	Quantity    float64   `db:"quantity" json:"quantity"`
	Price       float64   `db:"price" json:"price"`
	GrossAmount float64   `db:"gross_amount" json:"gross_amount"`
	CreatedAt   time.Time `db:"created_at" json:"-"`
}

// AllocatedTrade is a trade with its share of the day's aggregated charges
// applied: NetPrice raises cost basis on buys and lowers proceeds on sells.
type AllocatedTrade struct {
	Trade
	AllocatedCharge float64 `json:"allocated_charge"`
	NetPrice        float64 `json:"net_price"`
}

// DailyCharge aggregates the brokerage, taxes and other charges from all
// contract notes issued for one trading date. Date is the unique key.
type DailyCharge struct {
	Date              time.Time `db:"charge_date" json:"date"`
	TotalBrokerage    float64   `db:"total_brokerage" json:"total_brokerage"`
	TotalTaxes        float64   `db:"total_taxes" json:"total_taxes"`
	TotalOtherCharges float64   `db:"total_other_charges" json:"total_other_charges"`
	NetTotalPaid      float64   `db:"net_total_paid" json:"net_total_paid,omitempty"`
}

// Total is the day's allocatable charge amount. Signs are normalized so a
// credit entry cannot subtract from the allocation base.
func (c DailyCharge) Total() float64 {
	return abs(c.TotalBrokerage) + abs(c.TotalTaxes) + abs(c.TotalOtherCharges)
}

// Corporate action types recognized in stored data. Only splits are consumed
// by the lot adjuster; the rest are carried as data.
const (
	ActionSplit  = "SPLIT"
	ActionBonus  = "BONUS"
	ActionMerger = "MERGER"
)

// CorporateAction is an externally discovered event that rescales holdings.
// A split with RatioFrom=1, RatioTo=2 turns one pre-split unit into two.
type CorporateAction struct {
	ID            int64     `db:"id" json:"-"`
	Symbol        string    `db:"symbol" json:"symbol"`
	ActionType    string    `db:"action_type" json:"action_type"`
	EffectiveDate time.Time `db:"effective_date" json:"effective_date"`
	RatioFrom     float64   `db:"ratio_from" json:"ratio_from"`
	RatioTo       float64   `db:"ratio_to" json:"ratio_to"`
	Source        string    `db:"source" json:"source,omitempty"`
	SourceRef     string    `db:"source_ref" json:"source_ref,omitempty"`
	Active        bool      `db:"active" json:"active"`
}

// SymbolAlias maps a traded symbol to the ticker used for price lookups.
type SymbolAlias struct {
	FromSymbol string `db:"from_symbol" json:"from_symbol"`
	ToSymbol   string `db:"to_symbol" json:"to_symbol"`
	Active     bool   `db:"active" json:"active"`
}

func abs(v float64) float64 {
	if v < 0 {
		return -v
	}
	return v
}

// Round2 rounds a computed amount for presentation. Internal math keeps full
// float precision; only report boundaries round.
func Round2(v float64) float64 {
	return decimal.NewFromFloat(v).Round(2).InexactFloat64()
}

// Round4 is used for quantities and unit prices at report boundaries.
func Round4(v float64) float64 {
	return decimal.NewFromFloat(v).Round(4).InexactFloat64()
}
