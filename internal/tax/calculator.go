// Package tax hosts the per-country capital-gains calculators behind a
// single registry. Adding a country means implementing Calculator and
// registering it; callers always go through the registry lookup.
package tax

import (
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/tradefolio/tradefolio/internal/domain"
)

// Calculator is the sole polymorphic entry point for country tax logic.
// Implementations must be stateless between calls: every Calculate receives
// full snapshots and returns a fresh report.
type Calculator interface {
	CountryCode() string
	CountryName() string
	Calculate(
		req domain.TaxReportRequest,
		trades []domain.Trade,
		charges []domain.DailyCharge,
		actions []domain.CorporateAction,
	) (*domain.TaxReport, error)
}

// UnsupportedCountryError reports a country code with no registered
// calculator.
type UnsupportedCountryError struct {
	CountryCode string
}

func (e *UnsupportedCountryError) Error() string {
	return fmt.Sprintf("unsupported country_code: %s", e.CountryCode)
}

var (
	mu          sync.RWMutex
	calculators = map[string]Calculator{}
)

// Register adds a calculator to the registry, replacing any previous one for
// the same country code.
func Register(c Calculator) {
	mu.Lock()
	defer mu.Unlock()
	calculators[c.CountryCode()] = c
}

// Get resolves a country code to its calculator.
func Get(countryCode string) (Calculator, error) {
	mu.RLock()
	defer mu.RUnlock()
	c, ok := calculators[normalizeCountry(countryCode)]
	if !ok {
		return nil, &UnsupportedCountryError{CountryCode: countryCode}
	}
	return c, nil
}

// SupportedCountries lists registered country codes in sorted order.
func SupportedCountries() []string {
	mu.RLock()
	defer mu.RUnlock()
	codes := make([]string, 0, len(calculators))
	for code := range calculators {
		codes = append(codes, code)
	}
	sort.Strings(codes)
	return codes
}

// CalculateReport validates the request and dispatches it to the registered
// calculator for its country.
func CalculateReport(
	req domain.TaxReportRequest,
	trades []domain.Trade,
	charges []domain.DailyCharge,
	actions []domain.CorporateAction,
) (*domain.TaxReport, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}
	calc, err := Get(req.CountryCode)
	if err != nil {
		return nil, err
	}
	return calc.Calculate(req, trades, charges, actions)
}

func normalizeCountry(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}

func init() {
	Register(NewFinland())
}
