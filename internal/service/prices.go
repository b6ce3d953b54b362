package service

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/tradefolio/tradefolio/internal/domain"
	"github.com/tradefolio/tradefolio/internal/storage/cache"
	"github.com/tradefolio/tradefolio/pkg/logger"
)

// PriceProvider resolves current market prices for a set of lookup tickers.
// Implementations talk to an external quote source; the core ships none and
// treats a missing provider as "no prices available".
type PriceProvider interface {
	Prices(ctx context.Context, symbols []string) (map[string]float64, error)
}

// priceResolver maps holding symbols through the alias table, consults the
// TTL cache and falls back to the provider. Prices are best-effort: any
// failure degrades to missing prices, never to a request error.
type priceResolver struct {
	cache    *cache.RedisCache
	provider PriceProvider
	ttl      time.Duration
}

// resolve returns prices keyed by the original (pre-alias) symbol plus the
// symbols no price could be found for.
func (r *priceResolver) resolve(ctx context.Context, symbols []string, aliases []domain.SymbolAlias) (map[string]float64, []string) {
	if len(symbols) == 0 {
		return map[string]float64{}, nil
	}

	aliasMap := map[string]string{}
	for _, a := range aliases {
		if a.Active {
			aliasMap[a.FromSymbol] = a.ToSymbol
		}
	}

	lookup := make(map[string]string, len(symbols)) // symbol -> lookup ticker
	for _, s := range symbols {
		ticker := s
		if alias, ok := aliasMap[s]; ok && alias != "" {
			ticker = alias
		}
		lookup[s] = ticker
	}

	key := priceCacheKey(lookup)

	if r.cache != nil {
		var cached map[string]float64
		if err := r.cache.Get(ctx, key, &cached); err == nil {
			return cached, missingFrom(symbols, cached)
		} else if !errors.Is(err, cache.ErrCacheMiss) {
			logger.Warn("price cache read failed", zap.Error(err))
		}
	}

	if r.provider == nil {
		return map[string]float64{}, append([]string(nil), symbols...)
	}

	tickers := make([]string, 0, len(lookup))
	for _, t := range lookup {
		tickers = append(tickers, t)
	}
	sort.Strings(tickers)

	quoted, err := r.provider.Prices(ctx, tickers)
	if err != nil {
		logger.Warn("price provider failed", zap.Error(err))
		return map[string]float64{}, append([]string(nil), symbols...)
	}

	prices := map[string]float64{}
	for symbol, ticker := range lookup {
		if p, ok := quoted[ticker]; ok && p > 0 {
			prices[symbol] = p
		}
	}

	if r.cache != nil && len(prices) > 0 {
		if err := r.cache.Set(ctx, key, prices, r.ttl); err != nil {
			logger.Warn("price cache write failed", zap.Error(err))
		}
	}

	return prices, missingFrom(symbols, prices)
}

// priceCacheKey is stable over the symbol:alias set regardless of input
// order, so the same portfolio hits the same cache entry.
func priceCacheKey(lookup map[string]string) string {
	pairs := make([]string, 0, len(lookup))
	for symbol, ticker := range lookup {
		pairs = append(pairs, fmt.Sprintf("%s:%s", symbol, ticker))
	}
	sort.Strings(pairs)
	return "prices:" + strings.Join(pairs, ",")
}

func missingFrom(symbols []string, prices map[string]float64) []string {
	var missing []string
	for _, s := range symbols {
		if _, ok := prices[s]; !ok {
			missing = append(missing, s)
		}
	}
	return missing
}
