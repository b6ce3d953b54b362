package domain

import (
	"errors"
	"fmt"
	"strings"
)

// ErrInvalidRequest marks request validation failures so the API layer can
// distinguish caller mistakes from computation errors.
var ErrInvalidRequest = errors.New("invalid request")

// MethodMode selects which costing figure is taxable per sale.
type MethodMode string

const (
	// MethodActual taxes proceeds minus actual acquisition cost and charges.
	MethodActual MethodMode = "actual"
	// MethodDeemed taxes proceeds minus a flat statutory percentage of them.
	MethodDeemed MethodMode = "deemed"
	// MethodAutoBestPerSale picks whichever method yields the lower taxable
	// gain/loss independently for each sale row.
	MethodAutoBestPerSale MethodMode = "auto_best_per_sale"
)

// ParseMethodMode validates a requested method mode. Empty input defaults to
// auto_best_per_sale, matching the request default.
func ParseMethodMode(s string) (MethodMode, error) {
	switch MethodMode(strings.ToLower(strings.TrimSpace(s))) {
	case MethodActual:
		return MethodActual, nil
	case MethodDeemed:
		return MethodDeemed, nil
	case MethodAutoBestPerSale, "":
		return MethodAutoBestPerSale, nil
	default:
		return "", fmt.Errorf("%w: method_mode must be one of: actual, deemed, auto_best_per_sale (got %q)", ErrInvalidRequest, s)
	}
}

// TaxReportRequest parameterizes one calculation call.
type TaxReportRequest struct {
	CountryCode          string     `json:"country_code"`
	TaxYear              int        `json:"tax_year"`
	MethodMode           MethodMode `json:"method_mode"`
	PriorLossCarryforward float64   `json:"prior_loss_carryforward"`
	IncludeRows          bool       `json:"include_rows"`
	BaseCurrency         string     `json:"base_currency"`
}

// Validate rejects malformed requests before any computation starts.
func (r *TaxReportRequest) Validate() error {
	mode, err := ParseMethodMode(string(r.MethodMode))
	if err != nil {
		return err
	}
	r.MethodMode = mode
	if r.TaxYear < 1900 || r.TaxYear > 2100 {
		return fmt.Errorf("%w: tax_year %d out of range [1900, 2100]", ErrInvalidRequest, r.TaxYear)
	}
	if r.PriorLossCarryforward < 0 {
		r.PriorLossCarryforward = 0
	}
	if r.BaseCurrency == "" {
		r.BaseCurrency = "EUR"
	}
	return nil
}

// TaxReportRow is the per-sale breakdown included when rows are requested.
type TaxReportRow struct {
	SaleID                string  `json:"sale_id"`
	Symbol                string  `json:"symbol"`
	SellDate              string  `json:"sell_date"`
	SellQty               float64 `json:"sell_qty"`
	Proceeds              float64 `json:"proceeds"`
	ActualAcquisitionCost float64 `json:"actual_acquisition_cost"`
	TransferTax           float64 `json:"transfer_tax"`
	DeductibleExpenses    float64 `json:"deductible_expenses"`
	ActualTaxableGainLoss float64 `json:"actual_taxable_gain_loss"`
	DeemedRateEffective   float64 `json:"deemed_rate_effective"`
	DeemedCost            float64 `json:"deemed_cost"`
	DeemedTaxableGainLoss float64 `json:"deemed_taxable_gain_loss"`
	SelectedMethod        string  `json:"selected_method"`
	SelectedTaxableGainLoss float64 `json:"selected_taxable_gain_loss"`
	AvgHoldingYears       float64 `json:"avg_holding_years"`
}

// TaxTotals aggregates a year's figures across both costing methods.
type TaxTotals struct {
	Proceeds                          float64 `json:"proceeds"`
	ActualGainLoss                    float64 `json:"actual_gain_loss"`
	DeemedGainLoss                    float64 `json:"deemed_gain_loss"`
	SelectedGainLossBeforeAdjustments float64 `json:"selected_gain_loss_before_adjustments"`
	SelectedGainLossAfterAdjustments  float64 `json:"selected_gain_loss_after_adjustments"`
	EstimatedTax                      float64 `json:"estimated_tax"`
}

// TaxFlags surfaces rule applications that change the headline figures.
type TaxFlags struct {
	SmallSalesExemptionApplied           bool `json:"small_sales_exemption_applied"`
	LossNonDeductibleDueToSmallSalesRule bool `json:"loss_non_deductible_due_to_small_sales_rule"`
}

// TaxCarryforward tracks the loss balance across years.
type TaxCarryforward struct {
	PriorLossCarryforward      float64 `json:"prior_loss_carryforward"`
	LossUsedThisYear           float64 `json:"loss_used_this_year"`
	LossToCarryforwardNextYear float64 `json:"loss_to_carryforward_next_year"`
}

// TaxReport is the uniform result shape every country calculator returns.
type TaxReport struct {
	CountryCode  string          `json:"country_code"`
	CountryName  string          `json:"country_name"`
	TaxYear      int             `json:"tax_year"`
	MethodMode   MethodMode      `json:"method_mode"`
	FormulaLines []string        `json:"formula_lines"`
	MethodCounts map[string]int  `json:"method_counts,omitempty"`
	Totals       TaxTotals       `json:"totals"`
	Flags        TaxFlags        `json:"flags"`
	Carryforward TaxCarryforward `json:"carryforward"`
	Rows         []TaxReportRow  `json:"rows"`
	Assumptions  []string        `json:"assumptions"`
	Disclaimer   string          `json:"disclaimer"`
}
