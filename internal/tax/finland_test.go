package tax

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

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

func request(year int, mode domain.MethodMode) domain.TaxReportRequest {
	return domain.TaxReportRequest{
		CountryCode: "FI",
		TaxYear:     year,
		MethodMode:  mode,
		IncludeRows: true,
	}
}

func TestFinlandActualMethodWithChargeAllocation(t *testing.T) {
	trades := []domain.Trade{
		trade("b1", "NOKIA", "2022-03-01", domain.SideBuy, 1, 100),
		trade("s1", "NOKIA", "2024-03-01", domain.SideSell, 1, 200),
	}
	charges := []domain.DailyCharge{
		{Date: day("2022-03-01"), TotalBrokerage: 10},
		{Date: day("2024-03-01"), TotalBrokerage: 5},
	}

	report, err := NewFinland().Calculate(request(2024, domain.MethodActual), trades, charges, nil)
	require.NoError(t, err)

	require.Len(t, report.Rows, 1)
	row := report.Rows[0]
	assert.InDelta(t, 200.0, row.Proceeds, 1e-9)
	assert.InDelta(t, 100.0, row.ActualAcquisitionCost, 1e-9)
	assert.InDelta(t, 15.0, row.DeductibleExpenses, 1e-9)
	assert.InDelta(t, 85.0, row.ActualTaxableGainLoss, 1e-9)
	assert.Equal(t, "actual", row.SelectedMethod)
	// Under 10 years held, deemed cost is 20% of proceeds.
	assert.InDelta(t, 40.0, row.DeemedCost, 1e-9)
	assert.InDelta(t, 160.0, row.DeemedTaxableGainLoss, 1e-9)
}

func TestFinlandAutoBestPicksLowerPerSale(t *testing.T) {
	// Sale 1 loses money: actual (-50) beats deemed (+760).
	// Sale 2 gains heavily: deemed caps the taxable amount.
	trades := []domain.Trade{
		trade("b1", "LOSS", "2020-05-01", domain.SideBuy, 10, 100),
		trade("s1", "LOSS", "2024-05-02", domain.SideSell, 10, 95),
		trade("b2", "WIN", "2020-05-01", domain.SideBuy, 10, 10),
		trade("s2", "WIN", "2024-05-02", domain.SideSell, 10, 500),
	}

	report, err := NewFinland().Calculate(request(2024, domain.MethodAutoBestPerSale), trades, nil, nil)
	require.NoError(t, err)
	require.Len(t, report.Rows, 2)

	byID := map[string]domain.TaxReportRow{}
	for _, r := range report.Rows {
		byID[r.SaleID] = r
	}

	assert.Equal(t, "actual", byID["s1"].SelectedMethod)
	assert.InDelta(t, -50.0, byID["s1"].SelectedTaxableGainLoss, 1e-9)

	// deemed: 5000 - 20%*5000 = 4000 < actual 4900.
	assert.Equal(t, "deemed", byID["s2"].SelectedMethod)
	assert.InDelta(t, 4000.0, byID["s2"].SelectedTaxableGainLoss, 1e-9)

	assert.Equal(t, 1, report.MethodCounts["actual"])
	assert.Equal(t, 1, report.MethodCounts["deemed"])
}

func TestFinlandLossCarryforwardAbsorption(t *testing.T) {
	trades := []domain.Trade{
		trade("b1", "A", "2020-01-10", domain.SideBuy, 10, 100),
		trade("s1", "A", "2024-06-10", domain.SideSell, 10, 150),
	}
	req := request(2024, domain.MethodActual)
	req.PriorLossCarryforward = 200

	report, err := NewFinland().Calculate(req, trades, nil, nil)
	require.NoError(t, err)

	assert.InDelta(t, 500.0, report.Totals.SelectedGainLossBeforeAdjustments, 1e-9)
	assert.InDelta(t, 200.0, report.Carryforward.LossUsedThisYear, 1e-9)
	assert.InDelta(t, 300.0, report.Totals.SelectedGainLossAfterAdjustments, 1e-9)
	assert.InDelta(t, 90.0, report.Totals.EstimatedTax, 1e-9) // 300 * 0.30
	assert.Zero(t, report.Carryforward.LossToCarryforwardNextYear)
}

func TestFinlandLossAddsToCarryforward(t *testing.T) {
	trades := []domain.Trade{
		trade("b1", "A", "2020-01-10", domain.SideBuy, 10, 200),
		trade("s1", "A", "2024-06-10", domain.SideSell, 10, 150),
	}
	req := request(2024, domain.MethodActual)
	req.PriorLossCarryforward = 100

	report, err := NewFinland().Calculate(req, trades, nil, nil)
	require.NoError(t, err)

	// Proceeds 1500 > 1000, so the 500 loss is deductible and carried.
	assert.False(t, report.Flags.SmallSalesExemptionApplied)
	assert.InDelta(t, 600.0, report.Carryforward.LossToCarryforwardNextYear, 1e-9)
	assert.Zero(t, report.Totals.EstimatedTax)
}

func TestFinlandSmallSalesExemptionBoundary(t *testing.T) {
	exempt := []domain.Trade{
		trade("b1", "A", "2022-01-10", domain.SideBuy, 10, 50),
		trade("s1", "A", "2024-06-10", domain.SideSell, 10, 100), // proceeds 1000.00
	}
	report, err := NewFinland().Calculate(request(2024, domain.MethodActual), exempt, nil, nil)
	require.NoError(t, err)
	assert.True(t, report.Flags.SmallSalesExemptionApplied)
	assert.Zero(t, report.Totals.SelectedGainLossAfterAdjustments)
	assert.Zero(t, report.Totals.EstimatedTax)

	over := []domain.Trade{
		trade("b1", "A", "2022-01-10", domain.SideBuy, 10, 50),
		trade("s1", "A", "2024-06-10", domain.SideSell, 10, 100.001), // proceeds 1000.01
	}
	report, err = NewFinland().Calculate(request(2024, domain.MethodActual), over, nil, nil)
	require.NoError(t, err)
	assert.False(t, report.Flags.SmallSalesExemptionApplied)
	assert.Positive(t, report.Totals.EstimatedTax)
}

func TestFinlandExemptedLossIsNonDeductible(t *testing.T) {
	trades := []domain.Trade{
		trade("b1", "A", "2022-01-10", domain.SideBuy, 10, 60),
		trade("s1", "A", "2024-06-10", domain.SideSell, 10, 50),
	}
	req := request(2024, domain.MethodActual)
	req.PriorLossCarryforward = 40

	report, err := NewFinland().Calculate(req, trades, nil, nil)
	require.NoError(t, err)

	assert.True(t, report.Flags.SmallSalesExemptionApplied)
	assert.True(t, report.Flags.LossNonDeductibleDueToSmallSalesRule)
	// Existing carryforward passes through untouched.
	assert.InDelta(t, 40.0, report.Carryforward.LossToCarryforwardNextYear, 1e-9)
}

func TestFinlandProgressiveTaxUpperBand(t *testing.T) {
	trades := []domain.Trade{
		trade("b1", "A", "2020-01-10", domain.SideBuy, 100, 10),
		trade("s1", "A", "2024-06-10", domain.SideSell, 100, 510),
	}

	report, err := NewFinland().Calculate(request(2024, domain.MethodActual), trades, nil, nil)
	require.NoError(t, err)

	// Gain 50000: 30000*0.30 + 20000*0.34.
	assert.InDelta(t, 50000.0, report.Totals.SelectedGainLossAfterAdjustments, 1e-6)
	assert.InDelta(t, 9000.0+6800.0, report.Totals.EstimatedTax, 1e-6)
}

func TestFinlandOnlySalesInTaxYearAggregate(t *testing.T) {
	trades := []domain.Trade{
		trade("b1", "A", "2020-01-10", domain.SideBuy, 20, 100),
		trade("s1", "A", "2023-06-10", domain.SideSell, 10, 150),
		trade("s2", "A", "2024-06-10", domain.SideSell, 10, 150),
	}

	report, err := NewFinland().Calculate(request(2024, domain.MethodActual), trades, nil, nil)
	require.NoError(t, err)

	// The 2023 sale stays out of the totals but still consumed its lots.
	require.Len(t, report.Rows, 1)
	assert.Equal(t, "s2", report.Rows[0].SaleID)
	assert.InDelta(t, 1500.0, report.Totals.Proceeds, 1e-9)
}

func TestFinlandRowsOmittedWhenNotRequested(t *testing.T) {
	trades := []domain.Trade{
		trade("b1", "A", "2020-01-10", domain.SideBuy, 10, 100),
		trade("s1", "A", "2024-06-10", domain.SideSell, 10, 150),
	}
	req := request(2024, domain.MethodActual)
	req.IncludeRows = false

	report, err := NewFinland().Calculate(req, trades, nil, nil)
	require.NoError(t, err)
	assert.Nil(t, report.Rows)
	assert.InDelta(t, 1500.0, report.Totals.Proceeds, 1e-9)
}

func TestFinlandEmptyTradesReport(t *testing.T) {
	req := request(2024, domain.MethodAutoBestPerSale)
	req.PriorLossCarryforward = 120

	report, err := NewFinland().Calculate(req, nil, nil, nil)
	require.NoError(t, err)

	assert.Zero(t, report.Totals.Proceeds)
	assert.InDelta(t, 120.0, report.Carryforward.LossToCarryforwardNextYear, 1e-9)
	assert.NotNil(t, report.Rows)
	assert.Empty(t, report.Rows)
}

func TestDeemedRateTenYearBoundary(t *testing.T) {
	buy := day("2014-03-10")

	assert.Equal(t, 0.20, deemedRate(buy, day("2024-03-09")))
	assert.Equal(t, 0.40, deemedRate(buy, day("2024-03-10")))
	assert.Equal(t, 0.40, deemedRate(buy, day("2024-03-11")))
}

func TestDeemedRateLeapDayAnniversary(t *testing.T) {
	buy := day("2012-02-29")

	// 2022 is not a leap year: the anniversary compares against Feb 28.
	assert.Equal(t, 0.40, deemedRate(buy, day("2022-02-28")))
	assert.Equal(t, 0.20, deemedRate(buy, day("2022-02-27")))
}

func TestDeemedRateSellBeforeBuy(t *testing.T) {
	assert.Equal(t, 0.20, deemedRate(day("2024-01-01"), day("2020-01-01")))
}
