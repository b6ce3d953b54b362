package engine

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/tradefolio/tradefolio/internal/domain"
)

func day(s string) time.Time {
	d, err := time.Parse("2006-01-02", s)
	if err != nil {
		panic(err)
	}
	return d
}

func trade(id, symbol, date string, side domain.Side, qty, price float64) domain.Trade {
	return domain.Trade{
		TradeID:     id,
		Symbol:      symbol,
		Date:        day(date),
		Side:        side,
		Quantity:    qty,
		Price:       price,
		GrossAmount: qty * price,
	}
}

func TestAllocateProportionalToTurnover(t *testing.T) {
	trades := []domain.Trade{
		trade("t1", "INFY", "2024-01-10", domain.SideBuy, 3, 100), // gross 300
		trade("t2", "TCS", "2024-01-10", domain.SideSell, 7, 100), // gross 700
	}
	charges := []domain.DailyCharge{
		{Date: day("2024-01-10"), TotalBrokerage: 40, TotalTaxes: 35, TotalOtherCharges: 25},
	}

	out := Allocate(trades, charges)

	assert.InDelta(t, 30.0, out[0].AllocatedCharge, 1e-9)
	assert.InDelta(t, 70.0, out[1].AllocatedCharge, 1e-9)

	// Buy charges raise cost basis, sell charges cut proceeds.
	assert.InDelta(t, (300.0+30.0)/3.0, out[0].NetPrice, 1e-9)
	assert.InDelta(t, (700.0-70.0)/7.0, out[1].NetPrice, 1e-9)
}

func TestAllocateConservesDailyCharges(t *testing.T) {
	trades := []domain.Trade{
		trade("t1", "A", "2024-02-01", domain.SideBuy, 10, 17.33),
		trade("t2", "B", "2024-02-01", domain.SideBuy, 3, 211.07),
		trade("t3", "C", "2024-02-01", domain.SideSell, 7, 99.99),
	}
	charges := []domain.DailyCharge{
		{Date: day("2024-02-01"), TotalBrokerage: 20, TotalTaxes: 61.55, TotalOtherCharges: 3.17},
	}

	var allocated float64
	for _, at := range Allocate(trades, charges) {
		allocated += at.AllocatedCharge
	}
	assert.InDelta(t, 84.72, allocated, 1e-6)
}

func TestAllocateNoChargeAggregateForDate(t *testing.T) {
	trades := []domain.Trade{trade("t1", "A", "2024-03-01", domain.SideBuy, 5, 50)}

	out := Allocate(trades, nil)

	assert.Zero(t, out[0].AllocatedCharge)
	assert.Equal(t, 50.0, out[0].NetPrice)
}

func TestAllocateNegativeChargeComponentsUseAbsoluteValues(t *testing.T) {
	trades := []domain.Trade{trade("t1", "A", "2024-03-05", domain.SideBuy, 1, 100)}
	charges := []domain.DailyCharge{
		{Date: day("2024-03-05"), TotalBrokerage: -10, TotalTaxes: 5},
	}

	out := Allocate(trades, charges)
	assert.InDelta(t, 15.0, out[0].AllocatedCharge, 1e-9)
}

func TestAllocateZeroTurnoverDay(t *testing.T) {
	trades := []domain.Trade{
		{TradeID: "t1", Symbol: "A", Date: day("2024-03-06"), Side: domain.SideBuy},
	}
	charges := []domain.DailyCharge{{Date: day("2024-03-06"), TotalBrokerage: 100}}

	out := Allocate(trades, charges)
	assert.Zero(t, out[0].AllocatedCharge)
}

func TestAllocateDuplicateChargeRowsFoldTogether(t *testing.T) {
	trades := []domain.Trade{trade("t1", "A", "2024-03-07", domain.SideBuy, 2, 100)}
	charges := []domain.DailyCharge{
		{Date: day("2024-03-07"), TotalBrokerage: 10},
		{Date: day("2024-03-07"), TotalTaxes: 6},
	}

	out := Allocate(trades, charges)
	assert.InDelta(t, 16.0, out[0].AllocatedCharge, 1e-9)
}
