package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/tradefolio/tradefolio/internal/domain"
	"github.com/tradefolio/tradefolio/internal/storage/cache"
	"github.com/tradefolio/tradefolio/internal/storage/postgres"
	"github.com/tradefolio/tradefolio/internal/tax"
	"github.com/tradefolio/tradefolio/pkg/logger"
	"github.com/tradefolio/tradefolio/pkg/metrics"
)

// TaxService runs country calculators over the stored tradebook and caches
// computed reports. The cache is optional; without it every request
// recomputes.
type TaxService struct {
	db    *postgres.DB
	cache *cache.RedisCache
	ttl   time.Duration
}

func NewTaxService(db *postgres.DB, redis *cache.RedisCache, reportTTL time.Duration) *TaxService {
	return &TaxService{
		db:    db,
		cache: redis,
		ttl:   reportTTL,
	}
}

// Report computes (or serves from cache) the tax report for one request.
func (s *TaxService) Report(ctx context.Context, req domain.TaxReportRequest) (*domain.TaxReport, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	key := reportCacheKey(req)
	if s.cache != nil {
		var cached domain.TaxReport
		if err := s.cache.Get(ctx, key, &cached); err == nil {
			return &cached, nil
		} else if !errors.Is(err, cache.ErrCacheMiss) {
			logger.Warn("tax report cache read failed", zap.Error(err))
		}
	}

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

	report, err := tax.CalculateReport(req, trades, charges, actions)
	if err != nil {
		metrics.TaxReports.WithLabelValues(req.CountryCode, "error").Inc()
		return nil, err
	}
	metrics.TaxReports.WithLabelValues(req.CountryCode, "success").Inc()

	if s.cache != nil {
		if err := s.cache.Set(ctx, key, report, s.ttl); err != nil {
			logger.Warn("tax report cache write failed", zap.Error(err))
		}
	}
	return report, nil
}

// Countries lists the registered country calculators.
func (s *TaxService) Countries() []string {
	return tax.SupportedCountries()
}

func reportCacheKey(req domain.TaxReportRequest) string {
	return fmt.Sprintf("tax:%s:%d:%s:%.2f:%t",
		req.CountryCode, req.TaxYear, req.MethodMode, req.PriorLossCarryforward, req.IncludeRows)
}
