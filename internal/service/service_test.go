package service

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

func TestPriceCacheKeyStable(t *testing.T) {
	a := priceCacheKey(map[string]string{"INFY": "INFY.NS", "TCS": "TCS.NS"})
	b := priceCacheKey(map[string]string{"TCS": "TCS.NS", "INFY": "INFY.NS"})
	assert.Equal(t, a, b)
	assert.Equal(t, "prices:INFY:INFY.NS,TCS:TCS.NS", a)

	// A different alias mapping must produce a different key.
	c := priceCacheKey(map[string]string{"INFY": "INFY.BO", "TCS": "TCS.NS"})
	assert.NotEqual(t, a, c)
}

func TestMissingFrom(t *testing.T) {
	prices := map[string]float64{"INFY": 1500}
	missing := missingFrom([]string{"INFY", "TCS", "WIPRO"}, prices)
	assert.Equal(t, []string{"TCS", "WIPRO"}, missing)

	assert.Nil(t, missingFrom([]string{"INFY"}, prices))
}

func TestMissingChargeDates(t *testing.T) {
	snap := &snapshot{
		trades: []domain.Trade{
			{TradeID: "T1", Date: day("2024-01-15")},
			{TradeID: "T2", Date: day("2024-01-15")},
			{TradeID: "T3", Date: day("2024-01-16")},
		},
		charges: []domain.DailyCharge{
			{Date: day("2024-01-15"), TotalBrokerage: 20},
		},
	}

	issues := missingChargeDates(snap)
	require.Len(t, issues, 1)
	assert.Contains(t, issues[0], "2024-01-16")
}

func TestTradebookWarningsFlagDuplicates(t *testing.T) {
	trades := []domain.Trade{
		{TradeID: "T1"}, {TradeID: "T2"}, {TradeID: "T1"},
	}
	warnings := tradebookWarnings(trades)
	require.Len(t, warnings, 1)
	assert.Contains(t, warnings[0], "T1")

	assert.Empty(t, tradebookWarnings([]domain.Trade{{TradeID: "T1"}}))
}

func TestFYWindow(t *testing.T) {
	start, end, err := fyWindow("FY2024")
	require.NoError(t, err)
	assert.Equal(t, day("2023-04-01"), start)
	assert.Equal(t, day("2024-03-31"), end)

	assert.True(t, inWindow(day("2023-04-01"), start, end))
	assert.True(t, inWindow(day("2024-03-31"), start, end))
	assert.False(t, inWindow(day("2024-04-01"), start, end))
	assert.False(t, inWindow(day("2023-03-31"), start, end))

	_, _, err = fyWindow("2024")
	assert.Error(t, err)
}

func TestActionsBefore(t *testing.T) {
	actions := []domain.CorporateAction{
		{Symbol: "A", EffectiveDate: day("2024-01-01")},
		{Symbol: "B", EffectiveDate: day("2024-06-01")},
	}

	asOf := day("2024-03-01")
	filtered := actionsBefore(actions, &asOf)
	require.Len(t, filtered, 1)
	assert.Equal(t, "A", filtered[0].Symbol)

	assert.Len(t, actionsBefore(actions, nil), 2)
}

func TestReportCacheKey(t *testing.T) {
	req := domain.TaxReportRequest{
		CountryCode:           "FI",
		TaxYear:               2024,
		MethodMode:            domain.MethodActual,
		PriorLossCarryforward: 150.5,
		IncludeRows:           true,
	}
	assert.Equal(t, "tax:FI:2024:actual:150.50:true", reportCacheKey(req))
}
