package engine

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tradefolio/tradefolio/internal/domain"
)

func split(symbol, effective string, from, to float64) domain.CorporateAction {
	return domain.CorporateAction{
		Symbol:        symbol,
		ActionType:    domain.ActionSplit,
		EffectiveDate: day(effective),
		RatioFrom:     from,
		RatioTo:       to,
		Active:        true,
	}
}

func TestAdjustLotsPreservesTotalCost(t *testing.T) {
	lots := []domain.Lot{
		{Quantity: 10, AcquisitionDate: day("2022-01-10"), GrossUnitPrice: 100, NetUnitPrice: 101},
	}

	out := AdjustLots(lots, split("A", "2023-01-01", 1, 2))

	require.Len(t, out, 1)
	assert.InDelta(t, 20.0, out[0].Quantity, 1e-9)
	assert.InDelta(t, 50.5, out[0].NetUnitPrice, 1e-9)
	assert.InDelta(t, 10*101.0, out[0].Quantity*out[0].NetUnitPrice, 1e-9)
	assert.InDelta(t, 10*100.0, out[0].Quantity*out[0].GrossUnitPrice, 1e-9)
}

func TestAdjustLotsOnlyBeforeEffectiveDate(t *testing.T) {
	lots := []domain.Lot{
		{Quantity: 10, AcquisitionDate: day("2022-12-31"), NetUnitPrice: 100},
		{Quantity: 10, AcquisitionDate: day("2023-01-01"), NetUnitPrice: 100},
	}

	out := AdjustLots(lots, split("A", "2023-01-01", 1, 5))

	assert.InDelta(t, 50.0, out[0].Quantity, 1e-9)
	assert.InDelta(t, 10.0, out[1].Quantity, 1e-9)
}

func TestAdjustLotsReverseSplit(t *testing.T) {
	lots := []domain.Lot{
		{Quantity: 10, AcquisitionDate: day("2022-01-01"), NetUnitPrice: 10},
	}

	out := AdjustLots(lots, split("A", "2023-01-01", 5, 1))

	assert.InDelta(t, 2.0, out[0].Quantity, 1e-9)
	assert.InDelta(t, 50.0, out[0].NetUnitPrice, 1e-9)
}

func TestAdjustLedgerSkipsInvalidActions(t *testing.T) {
	ledger := Ledger{}
	ledger.Queue("A").Push(domain.Lot{Quantity: 10, AcquisitionDate: day("2022-01-01"), NetUnitPrice: 100})

	bad := split("A", "2023-01-01", 0, 2) // non-positive ratio
	inactive := split("A", "2023-01-01", 1, 2)
	inactive.Active = false
	bonus := split("A", "2023-01-01", 1, 2)
	bonus.ActionType = domain.ActionBonus

	skipped := AdjustLedger(ledger, []domain.CorporateAction{bad, inactive, bonus})

	assert.Len(t, skipped, 3)
	assert.InDelta(t, 10.0, ledger.Queue("A").Quantity(), 1e-9)
}

func TestAdjustLedgerAppliesInEffectiveDateOrder(t *testing.T) {
	ledger := Ledger{}
	ledger.Queue("A").Push(domain.Lot{Quantity: 10, AcquisitionDate: day("2020-01-01"), NetUnitPrice: 400})

	// Passed out of order on purpose: the 2021 split must apply first.
	actions := []domain.CorporateAction{
		split("A", "2023-01-01", 1, 2),
		split("A", "2021-01-01", 1, 2),
	}

	skipped := AdjustLedger(ledger, actions)

	assert.Empty(t, skipped)
	lots := ledger.Queue("A").Lots()
	require.Len(t, lots, 1)
	assert.InDelta(t, 40.0, lots[0].Quantity, 1e-9)
	assert.InDelta(t, 100.0, lots[0].NetUnitPrice, 1e-9)
}

func TestAdjustLedgerUnknownSymbolIsNoop(t *testing.T) {
	ledger := Ledger{}
	ledger.Queue("A").Push(domain.Lot{Quantity: 1, AcquisitionDate: day("2020-01-01"), NetUnitPrice: 10})

	skipped := AdjustLedger(ledger, []domain.CorporateAction{split("B", "2021-01-01", 1, 2)})

	assert.Empty(t, skipped)
	assert.InDelta(t, 1.0, ledger.Queue("A").Quantity(), 1e-9)
}
