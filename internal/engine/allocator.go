// Package engine holds the pure calculation core: daily charge allocation,
// the per-symbol FIFO lot ledger, the trade matcher and the corporate-action
// adjuster. Nothing in here touches storage or the network; every function
// takes a snapshot of its inputs and returns fresh results.
package engine

import (
	"time"

	"github.com/tradefolio/tradefolio/internal/domain"
)

const dateKeyLayout = "2006-01-02"

// Allocate distributes each day's aggregated charges across that day's
// trades proportional to gross turnover and derives the per-unit net price:
// charges raise cost basis on buys and reduce proceeds on sells. Trades on
// dates without a charge aggregate pass through with NetPrice = Price.
//
// The transform is pure and deterministic: grouping and summation follow the
// input slice order, never map iteration order.
func Allocate(trades []domain.Trade, charges []domain.DailyCharge) []domain.AllocatedTrade {
	if len(trades) == 0 {
		return nil
	}

	chargeByDate := make(map[string]float64, len(charges))
	for _, c := range charges {
		// Date is the aggregate's unique key; duplicates fold together the
		// same way multiple contract notes for one day do.
		chargeByDate[dateKey(c.Date)] += c.Total()
	}

	turnoverByDate := make(map[string]float64, len(trades))
	for _, t := range trades {
		turnoverByDate[dateKey(t.Date)] += t.GrossAmount
	}

	out := make([]domain.AllocatedTrade, 0, len(trades))
	for _, t := range trades {
		key := dateKey(t.Date)
		allocated := 0.0
		if turnover := turnoverByDate[key]; turnover > 0 {
			allocated = t.GrossAmount / turnover * chargeByDate[key]
		}

		netPrice := t.Price
		if t.Quantity > 0 {
			switch t.Side {
			case domain.SideBuy:
				netPrice = (t.GrossAmount + allocated) / t.Quantity
			case domain.SideSell:
				netPrice = (t.GrossAmount - allocated) / t.Quantity
			}
		}

		out = append(out, domain.AllocatedTrade{
			Trade:           t,
			AllocatedCharge: allocated,
			NetPrice:        netPrice,
		})
	}
	return out
}

func dateKey(d time.Time) string {
	return d.Format(dateKeyLayout)
}
