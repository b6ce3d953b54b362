package engine

import (
	"sort"
	"time"

	"github.com/tradefolio/tradefolio/internal/domain"
)

// MatchResult is the outcome of replaying a trade stream through the ledger.
type MatchResult struct {
	Ledger    Ledger
	Realized  []domain.RealizedGain
	Unmatched []domain.UnmatchedSell
}

// Match replays the allocated trade stream chronologically: buys append lots
// at net price, sells consume the oldest lots first. Sales that outrun the
// known lot history produce an unmatched-sell diagnostic for the leftover
// quantity instead of a negative lot; the unmatched portion contributes no
// realized gain.
//
// Trades with non-positive quantity or without a side classification are
// dropped before matching.
func Match(trades []domain.AllocatedTrade) *MatchResult {
	sorted := sortChronological(trades)

	res := &MatchResult{Ledger: Ledger{}}
	for _, t := range sorted {
		if t.Quantity <= 0 {
			continue
		}
		switch t.Side {
		case domain.SideBuy:
			res.Ledger.Queue(t.Symbol).Push(domain.Lot{
				Quantity:        t.Quantity,
				AcquisitionDate: t.Date,
				GrossUnitPrice:  t.Price,
				NetUnitPrice:    t.NetPrice,
			})
		case domain.SideSell:
			res.sell(t)
		}
	}
	return res
}

func (r *MatchResult) sell(t domain.AllocatedTrade) {
	takes, leftover := r.Ledger.Queue(t.Symbol).Consume(t.Quantity)

	var pnl, buyCost, buyQty float64
	for _, take := range takes {
		pnl += (t.NetPrice - take.Lot.NetUnitPrice) * take.Qty
		buyCost += take.Lot.NetUnitPrice * take.Qty
		buyQty += take.Qty
	}

	avgBuy := 0.0
	if buyQty > 0 {
		avgBuy = buyCost / buyQty
	}
	r.Realized = append(r.Realized, domain.RealizedGain{
		Symbol:      t.Symbol,
		SellDate:    t.Date,
		SellQty:     t.Quantity,
		SellPrice:   t.NetPrice,
		AvgBuyPrice: avgBuy,
		RealizedPnL: pnl,
	})

	if leftover > 0 {
		r.Unmatched = append(r.Unmatched, domain.UnmatchedSell{
			Symbol:       t.Symbol,
			SellDate:     t.Date,
			SellQty:      t.Quantity,
			UnmatchedQty: leftover,
		})
	}
}

// HoldingsAsOf recomputes the ledger from scratch over trades dated on or
// before asOf (all trades when asOf is nil). Recompute-per-query is
// intentional: this is a report path where auditability beats caching.
func HoldingsAsOf(trades []domain.Trade, charges []domain.DailyCharge, asOf *time.Time) Ledger {
	filtered := trades
	if asOf != nil {
		filtered = make([]domain.Trade, 0, len(trades))
		for _, t := range trades {
			if !t.Date.After(*asOf) {
				filtered = append(filtered, t)
			}
		}
	}
	return Match(Allocate(filtered, charges)).Ledger
}

// sortChronological orders trades by date, keeping ingestion order for
// same-day trades (stable sort), which the FIFO invariant requires.
func sortChronological(trades []domain.AllocatedTrade) []domain.AllocatedTrade {
	sorted := make([]domain.AllocatedTrade, len(trades))
	copy(sorted, trades)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Date.Before(sorted[j].Date)
	})
	return sorted
}
