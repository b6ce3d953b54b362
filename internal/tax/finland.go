package tax

import (
	"fmt"
	"sort"
	"time"

	"github.com/tradefolio/tradefolio/internal/domain"
	"github.com/tradefolio/tradefolio/internal/engine"
	"github.com/tradefolio/tradefolio/pkg/metrics"
)

// Residual quantities below this are treated as fully consumed. Tighter than
// the matcher's epsilon because tax rows accumulate across many partial
// takes.
const taxEpsilon = 1e-7

const (
	deemedRateUnder10y = 0.20
	deemedRate10yPlus  = 0.40

	smallSalesProceedsLimit = 1000.0

	lowerBandLimit = 30000.0
	lowerBandRate  = 0.30
	upperBandRate  = 0.34
)

var finlandFormulaLines = []string{
	"Actual method: Selling price - (Acquisition cost + transfer tax + deductible expenses)",
	"Deemed method: Selling price - (20% or 40% deemed acquisition cost)",
}

const finlandDisclaimer = "Estimate only. Use as a reporting aid and validate final values " +
	"against official Vero instructions/forms for your filing year and edge cases."

// Finland computes Finnish capital-gains tax. It re-derives its own FIFO
// pass on top of its own charge allocation so the tax figures stay
// self-contained and auditable, instead of trusting externally pre-adjusted
// prices.
type Finland struct{}

func NewFinland() *Finland {
	return &Finland{}
}

func (f *Finland) CountryCode() string { return "FI" }
func (f *Finland) CountryName() string { return "Finland" }

// taxLot keeps both the gross and the charge-adjusted buy price so actual
// acquisition cost and deductible expenses can be reported separately.
type taxLot struct {
	qty         float64
	buyDate     time.Time
	grossPrice  float64
	netBuyPrice float64
}

func (f *Finland) Calculate(
	req domain.TaxReportRequest,
	trades []domain.Trade,
	charges []domain.DailyCharge,
	actions []domain.CorporateAction,
) (*domain.TaxReport, error) {
	// Corporate actions are not consumed yet; split handling for tax lots is
	// tracked separately from the portfolio adjuster.
	_ = actions

	if err := req.Validate(); err != nil {
		return nil, err
	}

	timer := metrics.NewTimer()
	defer timer.ObserveDuration(metrics.TaxReportDuration.WithLabelValues("FI"))

	clean := sanitizeTrades(trades)
	if len(clean) == 0 {
		return f.emptyReport(req), nil
	}

	allocated := engine.Allocate(clean, charges)
	allRows := f.calculateRows(allocated, req.MethodMode)

	rows := make([]domain.TaxReportRow, 0, len(allRows))
	for _, r := range allRows {
		if r.year == req.TaxYear {
			rows = append(rows, r.row)
		}
	}

	var totalProceeds, totalActual, totalDeemed, totalSelected float64
	methodCounts := map[string]int{"actual": 0, "deemed": 0}
	for _, r := range rows {
		totalProceeds += r.Proceeds
		totalActual += r.ActualTaxableGainLoss
		totalDeemed += r.DeemedTaxableGainLoss
		totalSelected += r.SelectedTaxableGainLoss
		methodCounts[r.SelectedMethod]++
	}

	exempted := totalProceeds <= smallSalesProceedsLimit
	priorLoss := req.PriorLossCarryforward

	var lossUsed, estimatedTax float64
	lossToCarry := priorLoss
	taxableAfter := totalSelected
	lossNonDeductible := false

	if exempted {
		taxableAfter = 0
		if totalSelected < 0 {
			// The exempted year's net loss evaporates rather than carrying
			// forward; flag it so the filer can verify.
			lossNonDeductible = true
		}
	} else {
		if taxableAfter > 0 && priorLoss > 0 {
			lossUsed = priorLoss
			if lossUsed > taxableAfter {
				lossUsed = taxableAfter
			}
			taxableAfter -= lossUsed
			lossToCarry = priorLoss - lossUsed
		} else if taxableAfter <= 0 {
			lossToCarry = priorLoss - taxableAfter
		}
		estimatedTax = progressiveTax(taxableAfter)
	}

	report := &domain.TaxReport{
		CountryCode:  f.CountryCode(),
		CountryName:  f.CountryName(),
		TaxYear:      req.TaxYear,
		MethodMode:   req.MethodMode,
		FormulaLines: finlandFormulaLines,
		MethodCounts: methodCounts,
		Totals: domain.TaxTotals{
			Proceeds:                          domain.Round2(totalProceeds),
			ActualGainLoss:                    domain.Round2(totalActual),
			DeemedGainLoss:                    domain.Round2(totalDeemed),
			SelectedGainLossBeforeAdjustments: domain.Round2(totalSelected),
			SelectedGainLossAfterAdjustments:  domain.Round2(taxableAfter),
			EstimatedTax:                      domain.Round2(estimatedTax),
		},
		Flags: domain.TaxFlags{
			SmallSalesExemptionApplied:           exempted,
			LossNonDeductibleDueToSmallSalesRule: lossNonDeductible,
		},
		Carryforward: domain.TaxCarryforward{
			PriorLossCarryforward:      domain.Round2(priorLoss),
			LossUsedThisYear:           domain.Round2(lossUsed),
			LossToCarryforwardNextYear: domain.Round2(maxFloat(0, lossToCarry)),
		},
		Assumptions: []string{
			"Finland tax year is the calendar year.",
			"FIFO lot matching is used.",
			"Daily charges from contract notes are allocated by turnover across trades on the same date.",
			"Transfer tax is set to 0 unless provided separately in source data.",
			"Auto mode compares methods on each sale row and picks the lower taxable gain/loss for that row.",
		},
		Disclaimer: finlandDisclaimer,
	}
	if req.IncludeRows {
		report.Rows = rows
	}

	metrics.RecordTaxReport("FI", "success")
	return report, nil
}

type yearRow struct {
	year int
	row  domain.TaxReportRow
}

// calculateRows replays the whole history (sells outside the tax year still
// move lot positions) and returns one row per matched sale.
func (f *Finland) calculateRows(trades []domain.AllocatedTrade, mode domain.MethodMode) []yearRow {
	sorted := make([]domain.AllocatedTrade, len(trades))
	copy(sorted, trades)
	sort.SliceStable(sorted, func(i, j int) bool {
		if !sorted[i].Date.Equal(sorted[j].Date) {
			return sorted[i].Date.Before(sorted[j].Date)
		}
		return sorted[i].TradeID < sorted[j].TradeID
	})

	lots := map[string][]taxLot{}
	var rows []yearRow
	tradeIndex := 0

	for _, t := range sorted {
		if t.Side == domain.SideBuy {
			lots[t.Symbol] = append(lots[t.Symbol], taxLot{
				qty:         t.Quantity,
				buyDate:     t.Date,
				grossPrice:  t.Price,
				netBuyPrice: t.NetPrice,
			})
			continue
		}
		if t.Side != domain.SideSell {
			continue
		}

		row, matched := f.settleSale(lots, t, mode, tradeIndex)
		tradeIndex++
		if !matched {
			continue
		}
		rows = append(rows, yearRow{year: t.Date.Year(), row: row})
	}
	return rows
}

func (f *Finland) settleSale(
	lots map[string][]taxLot,
	t domain.AllocatedTrade,
	mode domain.MethodMode,
	tradeIndex int,
) (domain.TaxReportRow, bool) {
	qtyToSell := t.Quantity
	grossSell := t.Price
	allocSellPerUnit := maxFloat(0, grossSell-t.NetPrice)

	var proceeds, actualCost, expenses, deemedCost float64
	var holdingYearsWeighted, matchedQty float64

	queue := lots[t.Symbol]
	for qtyToSell > taxEpsilon && len(queue) > 0 {
		lot := &queue[0]
		take := lot.qty
		if take > qtyToSell {
			take = qtyToSell
		}
		if take <= 0 {
			queue = queue[1:]
			continue
		}

		lotProceeds := grossSell * take
		buyCharge := maxFloat(0, (lot.netBuyPrice-lot.grossPrice)*take)
		rate := deemedRate(lot.buyDate, t.Date)

		proceeds += lotProceeds
		actualCost += lot.grossPrice * take
		expenses += buyCharge + allocSellPerUnit*take
		deemedCost += lotProceeds * rate
		holdingYearsWeighted += holdingYears(lot.buyDate, t.Date) * take
		matchedQty += take

		lot.qty -= take
		qtyToSell -= take
		if lot.qty <= taxEpsilon {
			queue = queue[1:]
		}
	}
	lots[t.Symbol] = queue

	if matchedQty <= 0 {
		return domain.TaxReportRow{}, false
	}

	actualGain := proceeds - (actualCost + expenses)
	deemedGain := proceeds - deemedCost

	var selectedMethod string
	var selectedGain float64
	switch mode {
	case domain.MethodActual:
		selectedMethod, selectedGain = "actual", actualGain
	case domain.MethodDeemed:
		selectedMethod, selectedGain = "deemed", deemedGain
	default:
		// auto_best_per_sale: the lower taxable gain/loss wins per row.
		if deemedGain < actualGain {
			selectedMethod, selectedGain = "deemed", deemedGain
		} else {
			selectedMethod, selectedGain = "actual", actualGain
		}
	}

	saleID := t.TradeID
	if saleID == "" {
		saleID = fmt.Sprintf("%s-%s-%d", t.Symbol, t.Date.Format("2006-01-02"), tradeIndex)
	}

	deemedRateEffective := 0.0
	if proceeds > 0 {
		deemedRateEffective = deemedCost / proceeds
	}

	return domain.TaxReportRow{
		SaleID:                  saleID,
		Symbol:                  t.Symbol,
		SellDate:                t.Date.Format("2006-01-02"),
		SellQty:                 domain.Round4(matchedQty),
		Proceeds:                domain.Round2(proceeds),
		ActualAcquisitionCost:   domain.Round2(actualCost),
		TransferTax:             0,
		DeductibleExpenses:      domain.Round2(expenses),
		ActualTaxableGainLoss:   domain.Round2(actualGain),
		DeemedRateEffective:     domain.Round4(deemedRateEffective),
		DeemedCost:              domain.Round2(deemedCost),
		DeemedTaxableGainLoss:   domain.Round2(deemedGain),
		SelectedMethod:          selectedMethod,
		SelectedTaxableGainLoss: domain.Round2(selectedGain),
		AvgHoldingYears:         domain.Round4(holdingYearsWeighted / matchedQty),
	}, true
}

func (f *Finland) emptyReport(req domain.TaxReportRequest) *domain.TaxReport {
	report := &domain.TaxReport{
		CountryCode:  f.CountryCode(),
		CountryName:  f.CountryName(),
		TaxYear:      req.TaxYear,
		MethodMode:   req.MethodMode,
		FormulaLines: finlandFormulaLines,
		MethodCounts: map[string]int{"actual": 0, "deemed": 0},
		Carryforward: domain.TaxCarryforward{
			PriorLossCarryforward:      domain.Round2(req.PriorLossCarryforward),
			LossToCarryforwardNextYear: domain.Round2(req.PriorLossCarryforward),
		},
		Assumptions: []string{
			"Finland tax year is the calendar year.",
			"No sales found for selected year.",
		},
		Disclaimer: finlandDisclaimer,
	}
	if req.IncludeRows {
		report.Rows = []domain.TaxReportRow{}
	}
	return report
}

// deemedRate is 40% once the sale reaches the tenth anniversary of the buy
// date, 20% before that. A Feb-29 buy date compares against Feb-28 when the
// anniversary year is not a leap year.
func deemedRate(buyDate, sellDate time.Time) float64 {
	if heldAtLeastTenYears(buyDate, sellDate) {
		return deemedRate10yPlus
	}
	return deemedRateUnder10y
}

func heldAtLeastTenYears(buyDate, sellDate time.Time) bool {
	if sellDate.Before(buyDate) {
		return false
	}
	y, m, d := buyDate.Date()
	if m == time.February && d == 29 && !isLeapYear(y+10) {
		d = 28
	}
	mark := time.Date(y+10, m, d, 0, 0, 0, 0, buyDate.Location())
	return !sellDate.Before(mark)
}

func isLeapYear(year int) bool {
	return year%4 == 0 && (year%100 != 0 || year%400 == 0)
}

func holdingYears(buyDate, sellDate time.Time) float64 {
	days := sellDate.Sub(buyDate).Hours() / 24
	return maxFloat(0, days/365.25)
}

// progressiveTax applies the two-band capital-income rate to a positive
// taxable amount.
func progressiveTax(taxable float64) float64 {
	if taxable <= 0 {
		return 0
	}
	lower := taxable
	if lower > lowerBandLimit {
		lower = lowerBandLimit
	}
	return lower*lowerBandRate + maxFloat(0, taxable-lowerBandLimit)*upperBandRate
}

// sanitizeTrades drops rows the calculator cannot price: zero dates,
// non-positive quantity or price, missing side.
func sanitizeTrades(trades []domain.Trade) []domain.Trade {
	out := make([]domain.Trade, 0, len(trades))
	for _, t := range trades {
		if t.Date.IsZero() || t.Quantity <= 0 || t.Price <= 0 {
			continue
		}
		if t.Side != domain.SideBuy && t.Side != domain.SideSell {
			continue
		}
		if t.GrossAmount == 0 {
			t.GrossAmount = t.Quantity * t.Price
		}
		out = append(out, t)
	}
	return out
}

func maxFloat(a, b float64) float64 {
	if a > b {
		return a
	}
	return b
}
