package service

import (
	"context"
	"fmt"
	"sort"
	"time"

	"go.uber.org/zap"

	"github.com/tradefolio/tradefolio/internal/domain"
	"github.com/tradefolio/tradefolio/internal/engine"
	"github.com/tradefolio/tradefolio/internal/storage/cache"
	"github.com/tradefolio/tradefolio/internal/storage/postgres"
	"github.com/tradefolio/tradefolio/pkg/logger"
	"github.com/tradefolio/tradefolio/pkg/metrics"
)

// PortfolioService answers holdings, realized-gain and dashboard queries.
// Every query recomputes from the stored tradebook so results always
// reflect the latest ingested data.
type PortfolioService struct {
	db       *postgres.DB
	prices   priceResolver
	cacheTTL time.Duration
}

func NewPortfolioService(db *postgres.DB, redis *cache.RedisCache, provider PriceProvider, priceTTL time.Duration) *PortfolioService {
	return &PortfolioService{
		db: db,
		prices: priceResolver{
			cache:    redis,
			provider: provider,
			ttl:      priceTTL,
		},
	}
}

// snapshot loads everything a computation needs in one place.
type snapshot struct {
	trades  []domain.Trade
	charges []domain.DailyCharge
	actions []domain.CorporateAction
}

func (s *PortfolioService) loadSnapshot(ctx context.Context) (*snapshot, error) {
	trades, err := s.db.ListTrades(ctx, nil)
	if err != nil {
		return nil, err
	}
	charges, err := s.db.ListDailyCharges(ctx)
	if err != nil {
		return nil, err
	}
	actions, err := s.db.ListCorporateActions(ctx, true)
	if err != nil {
		return nil, err
	}
	return &snapshot{trades: trades, charges: charges, actions: actions}, nil
}

// Holdings returns the open position per symbol as of the given date (all
// history when nil), with stored splits applied. Skipped actions come back
// as diagnostics.
func (s *PortfolioService) Holdings(ctx context.Context, asOf *time.Time) ([]domain.Holding, []domain.SkippedAction, error) {
	snap, err := s.loadSnapshot(ctx)
	if err != nil {
		return nil, nil, err
	}
	holdings, skipped := s.holdingsFrom(snap, asOf, "holdings")
	return holdings, skipped, nil
}

func (s *PortfolioService) holdingsFrom(snap *snapshot, asOf *time.Time, trigger string) ([]domain.Holding, []domain.SkippedAction) {
	timer := metrics.NewTimer()
	defer timer.ObserveDuration(metrics.FIFORunDuration.WithLabelValues(trigger))
	metrics.FIFORuns.WithLabelValues(trigger).Inc()

	ledger := engine.HoldingsAsOf(snap.trades, snap.charges, asOf)
	skipped := engine.AdjustLedger(ledger, actionsBefore(snap.actions, asOf))
	return ledger.Holdings(), skipped
}

// actionsBefore drops actions that take effect after the as-of date, so a
// historical snapshot is not rescaled by a later split.
func actionsBefore(actions []domain.CorporateAction, asOf *time.Time) []domain.CorporateAction {
	if asOf == nil {
		return actions
	}
	out := make([]domain.CorporateAction, 0, len(actions))
	for _, a := range actions {
		if !a.EffectiveDate.After(*asOf) {
			out = append(out, a)
		}
	}
	return out
}

// Realized returns FIFO realized gains, optionally filtered to one fiscal
// year (label like "FY2025").
func (s *PortfolioService) Realized(ctx context.Context, fy string) ([]domain.RealizedGain, error) {
	snap, err := s.loadSnapshot(ctx)
	if err != nil {
		return nil, err
	}

	result := s.match(snap, "realized")
	if fy == "" {
		return result.Realized, nil
	}

	start, end, err := fyWindow(fy)
	if err != nil {
		return nil, err
	}
	var filtered []domain.RealizedGain
	for _, g := range result.Realized {
		if inWindow(g.SellDate, start, end) {
			filtered = append(filtered, g)
		}
	}
	return filtered, nil
}

// Unmatched returns the sells whose quantity outran the known lot history.
func (s *PortfolioService) Unmatched(ctx context.Context) ([]domain.UnmatchedSell, error) {
	snap, err := s.loadSnapshot(ctx)
	if err != nil {
		return nil, err
	}
	return s.match(snap, "unmatched").Unmatched, nil
}

func (s *PortfolioService) match(snap *snapshot, trigger string) *engine.MatchResult {
	timer := metrics.NewTimer()
	defer timer.ObserveDuration(metrics.FIFORunDuration.WithLabelValues(trigger))
	metrics.FIFORuns.WithLabelValues(trigger).Inc()

	result := engine.Match(engine.Allocate(snap.trades, snap.charges))
	for range result.Unmatched {
		metrics.UnmatchedSells.Inc()
	}
	return result
}

// FYList returns the fiscal-year labels present in the tradebook, newest
// first.
func (s *PortfolioService) FYList(ctx context.Context) ([]string, error) {
	dates, err := s.db.TradeDates(ctx)
	if err != nil {
		return nil, err
	}
	seen := map[string]bool{}
	var labels []string
	for _, d := range dates {
		label := domain.FYLabel(d)
		if !seen[label] {
			seen[label] = true
			labels = append(labels, label)
		}
	}
	sort.Sort(sort.Reverse(sort.StringSlice(labels)))
	return labels, nil
}

// Dashboard builds the one-screen view for a fiscal year. Empty fy selects
// the current fiscal year.
func (s *PortfolioService) Dashboard(ctx context.Context, fy string) (*domain.Dashboard, error) {
	if fy == "" {
		fy = domain.FYLabel(time.Now())
	}
	start, end, err := fyWindow(fy)
	if err != nil {
		return nil, err
	}

	snap, err := s.loadSnapshot(ctx)
	if err != nil {
		return nil, err
	}
	aliases, err := s.db.ListSymbolAliases(ctx, true)
	if err != nil {
		return nil, err
	}

	holdings, skipped := s.holdingsFrom(snap, nil, "dashboard")
	result := s.match(snap, "dashboard")

	symbols := make([]string, 0, len(holdings))
	for _, h := range holdings {
		symbols = append(symbols, h.Symbol)
	}
	prices, missing := s.prices.resolve(ctx, symbols, aliases)

	dash := &domain.Dashboard{
		FY:                  fy,
		MissingPriceSymbols: missing,
		UpdatedAt:           time.Now(),
	}

	for _, h := range holdings {
		priced := domain.PricedHolding{
			Symbol:        h.Symbol,
			Quantity:      domain.Round4(h.Quantity),
			AvgPrice:      domain.Round4(h.AvgPrice),
			InvestedValue: domain.Round2(h.Quantity * h.AvgPrice),
		}
		dash.InvestedValue += h.Quantity * h.AvgPrice
		if cmp, ok := prices[h.Symbol]; ok {
			current := h.Quantity * cmp
			pnl := current - h.Quantity*h.AvgPrice
			priced.CMP = ptr(domain.Round2(cmp))
			priced.CurrentValue = ptr(domain.Round2(current))
			priced.PnL = ptr(domain.Round2(pnl))
			if invested := h.Quantity * h.AvgPrice; invested > 0 {
				priced.PnLPercent = ptr(domain.Round2(pnl / invested * 100))
			}
			dash.CurrentValue += current
		} else {
			// No price: current value falls back to cost so net worth stays
			// comparable instead of dropping the position.
			dash.CurrentValue += h.Quantity * h.AvgPrice
		}
		dash.Holdings = append(dash.Holdings, priced)
	}
	dash.NetWorth = domain.Round2(dash.CurrentValue)
	dash.InvestedValue = domain.Round2(dash.InvestedValue)
	dash.CurrentValue = domain.Round2(dash.CurrentValue)

	for _, g := range result.Realized {
		if inWindow(g.SellDate, start, end) {
			dash.FYRealizedPnL += g.RealizedPnL
		}
	}
	dash.FYRealizedPnL = domain.Round2(dash.FYRealizedPnL)

	prevEnd := start.AddDate(0, 0, -1)
	prevHoldings, _ := s.holdingsFrom(snap, &prevEnd, "dashboard")
	for _, h := range prevHoldings {
		dash.NetWorthPrevFY += h.Quantity * h.AvgPrice
	}
	dash.NetWorthPrevFY = domain.Round2(dash.NetWorthPrevFY)
	if dash.NetWorthPrevFY > 0 {
		dash.NetWorthYoYPercent = ptr(domain.Round2((dash.NetWorth - dash.NetWorthPrevFY) / dash.NetWorthPrevFY * 100))
	}

	dash.HealthIssues = missingChargeDates(snap)
	for _, u := range result.Unmatched {
		if inWindow(u.SellDate, start, end) {
			dash.DataWarnings = append(dash.DataWarnings,
				fmt.Sprintf("sell of %s on %s exceeds known history by %g units",
					u.Symbol, u.SellDate.Format("2006-01-02"), u.UnmatchedQty))
		}
	}
	for _, sk := range skipped {
		logger.Warn("corporate action skipped",
			zap.String("symbol", sk.Action.Symbol),
			zap.String("reason", sk.Reason))
	}

	return dash, nil
}

// Summary aggregates cost-basis net worth at each fiscal-year end plus the
// charges paid per fiscal year.
func (s *PortfolioService) Summary(ctx context.Context) (*domain.SummaryReport, error) {
	snap, err := s.loadSnapshot(ctx)
	if err != nil {
		return nil, err
	}

	labels := map[string]bool{}
	for _, t := range snap.trades {
		labels[domain.FYLabel(t.Date)] = true
	}
	sortedLabels := make([]string, 0, len(labels))
	for l := range labels {
		sortedLabels = append(sortedLabels, l)
	}
	sort.Strings(sortedLabels)

	report := &domain.SummaryReport{}
	for _, label := range sortedLabels {
		_, end, err := fyWindow(label)
		if err != nil {
			continue
		}
		holdings, _ := s.holdingsFrom(snap, &end, "summary")
		var worth float64
		for _, h := range holdings {
			worth += h.Quantity * h.AvgPrice
		}
		report.NetWorthByFY = append(report.NetWorthByFY, domain.FYValue{
			FY:    label,
			Value: domain.Round2(worth),
		})
	}

	chargesByFY := map[string]float64{}
	for _, c := range snap.charges {
		chargesByFY[domain.FYLabel(c.Date)] += c.Total()
	}
	for _, label := range sortedLabels {
		report.ChargesByFY = append(report.ChargesByFY, domain.FYValue{
			FY:    label,
			Value: domain.Round2(chargesByFY[label]),
		})
	}

	return report, nil
}

// Aliases lists the active symbol alias mappings.
func (s *PortfolioService) Aliases(ctx context.Context) ([]domain.SymbolAlias, error) {
	return s.db.ListSymbolAliases(ctx, true)
}

// UpsertAlias stores one alias and drops any cached price map that used the
// old mapping.
func (s *PortfolioService) UpsertAlias(ctx context.Context, alias domain.SymbolAlias) error {
	if alias.FromSymbol == "" || alias.ToSymbol == "" {
		return fmt.Errorf("%w: alias requires both from_symbol and to_symbol", domain.ErrInvalidRequest)
	}
	if err := s.db.UpsertSymbolAlias(ctx, alias); err != nil {
		return err
	}
	if s.prices.cache != nil {
		if err := s.prices.cache.DeletePattern(ctx, "prices:*"); err != nil {
			logger.Warn("price cache invalidation failed", zap.Error(err))
		}
	}
	return nil
}

// CorporateActions lists stored actions, active and inactive.
func (s *PortfolioService) CorporateActions(ctx context.Context) ([]domain.CorporateAction, error) {
	return s.db.ListCorporateActions(ctx, false)
}

// UpsertCorporateAction stores one action row.
func (s *PortfolioService) UpsertCorporateAction(ctx context.Context, a domain.CorporateAction) error {
	if a.Symbol == "" || a.ActionType == "" || a.EffectiveDate.IsZero() {
		return fmt.Errorf("%w: corporate action requires symbol, action_type and effective_date", domain.ErrInvalidRequest)
	}
	return s.db.UpsertCorporateAction(ctx, a)
}

// missingChargeDates reports trade dates that have no contract-note charge
// aggregate, which usually means an import was forgotten.
func missingChargeDates(snap *snapshot) []string {
	have := map[string]bool{}
	for _, c := range snap.charges {
		have[c.Date.Format("2006-01-02")] = true
	}
	seen := map[string]bool{}
	var issues []string
	for _, t := range snap.trades {
		day := t.Date.Format("2006-01-02")
		if !have[day] && !seen[day] {
			seen[day] = true
			issues = append(issues, fmt.Sprintf("no contract-note charges for trade date %s", day))
		}
	}
	sort.Strings(issues)
	return issues
}

func fyWindow(fy string) (time.Time, time.Time, error) {
	start, err := domain.FYStart(fy)
	if err != nil {
		return time.Time{}, time.Time{}, err
	}
	end, err := domain.FYEnd(fy)
	if err != nil {
		return time.Time{}, time.Time{}, err
	}
	return start, end, nil
}

func inWindow(d, start, end time.Time) bool {
	return !d.Before(start) && !d.After(end)
}

func ptr(v float64) *float64 {
	return &v
}
