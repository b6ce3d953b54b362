package service

import (
	"context"
	"fmt"
	"io"
	"sort"

	"go.uber.org/zap"

	"github.com/tradefolio/tradefolio/internal/domain"
	"github.com/tradefolio/tradefolio/internal/ingestion"
	"github.com/tradefolio/tradefolio/internal/storage/cache"
	"github.com/tradefolio/tradefolio/pkg/logger"
)

// IngestionService wires the CSV parsers to the bulk loader. Preview mode
// (dryRun) parses and summarizes without touching the database.
type IngestionService struct {
	parser *ingestion.Parser
	loader *ingestion.BulkLoader
	cache  *cache.RedisCache
}

func NewIngestionService(parser *ingestion.Parser, loader *ingestion.BulkLoader, redis *cache.RedisCache) *IngestionService {
	return &IngestionService{
		parser: parser,
		loader: loader,
		cache:  redis,
	}
}

// IngestSummary reports what a parse-and-load pass found and did.
type IngestSummary struct {
	Kind        string   `json:"kind"`
	ParsedCount int      `json:"parsed_count"`
	LoadedCount int64    `json:"loaded_count"`
	RowErrors   []string `json:"row_errors,omitempty"`
	Warnings    []string `json:"warnings,omitempty"`
	DryRun      bool     `json:"dry_run"`
}

// IngestTradebook parses a tradebook CSV and upserts the rows unless dryRun.
func (s *IngestionService) IngestTradebook(ctx context.Context, r io.Reader, dryRun bool) (*IngestSummary, error) {
	result, err := s.parser.ParseTradebook(ctx, r)
	if err != nil {
		return nil, err
	}

	summary := &IngestSummary{
		Kind:        "tradebook",
		ParsedCount: len(result.Trades),
		RowErrors:   errorStrings(result.Errors),
		DryRun:      dryRun,
	}
	summary.Warnings = tradebookWarnings(result.Trades)

	if dryRun {
		return summary, nil
	}

	count, err := s.loader.LoadTrades(ctx, result.Trades)
	if err != nil {
		return nil, fmt.Errorf("load tradebook: %w", err)
	}
	summary.LoadedCount = count

	logger.Info("tradebook ingested",
		zap.Int("parsed", summary.ParsedCount),
		zap.Int64("loaded", count),
		zap.Int("row_errors", len(summary.RowErrors)))

	s.invalidateDerived(ctx)
	return summary, nil
}

// IngestDailyCharges parses and upserts the daily charge aggregates.
func (s *IngestionService) IngestDailyCharges(ctx context.Context, r io.Reader, dryRun bool) (*IngestSummary, error) {
	charges, rowErrs, err := s.parser.ParseDailyCharges(r)
	if err != nil {
		return nil, err
	}

	summary := &IngestSummary{
		Kind:        "daily_charges",
		ParsedCount: len(charges),
		RowErrors:   errorStrings(rowErrs),
		DryRun:      dryRun,
	}
	if dryRun {
		return summary, nil
	}

	count, err := s.loader.LoadDailyCharges(ctx, charges)
	if err != nil {
		return nil, fmt.Errorf("load daily charges: %w", err)
	}
	summary.LoadedCount = count
	s.invalidateDerived(ctx)
	return summary, nil
}

// IngestCorporateActions parses and upserts stored corporate actions.
func (s *IngestionService) IngestCorporateActions(ctx context.Context, r io.Reader, dryRun bool) (*IngestSummary, error) {
	actions, rowErrs, err := s.parser.ParseCorporateActions(r)
	if err != nil {
		return nil, err
	}

	summary := &IngestSummary{
		Kind:        "corporate_actions",
		ParsedCount: len(actions),
		RowErrors:   errorStrings(rowErrs),
		DryRun:      dryRun,
	}
	for _, a := range actions {
		if a.ActionType != domain.ActionSplit {
			summary.Warnings = append(summary.Warnings,
				fmt.Sprintf("%s action for %s is stored but not applied to holdings", a.ActionType, a.Symbol))
		}
	}
	if dryRun {
		return summary, nil
	}

	count, err := s.loader.LoadCorporateActions(ctx, actions)
	if err != nil {
		return nil, fmt.Errorf("load corporate actions: %w", err)
	}
	summary.LoadedCount = count
	s.invalidateDerived(ctx)
	return summary, nil
}

// invalidateDerived drops cached tax reports after any data change. Price
// cache entries stay; prices do not depend on the tradebook.
func (s *IngestionService) invalidateDerived(ctx context.Context) {
	if s.cache == nil {
		return
	}
	if err := s.cache.DeletePattern(ctx, "tax:*"); err != nil {
		logger.Warn("tax cache invalidation failed", zap.Error(err))
	}
}

// tradebookWarnings flags duplicate trade IDs inside one file; the upsert
// would silently keep only the last row otherwise.
func tradebookWarnings(trades []domain.Trade) []string {
	seen := map[string]int{}
	for _, t := range trades {
		seen[t.TradeID]++
	}
	var warnings []string
	for id, n := range seen {
		if n > 1 {
			warnings = append(warnings, fmt.Sprintf("trade_id %s appears %d times in file", id, n))
		}
	}
	sort.Strings(warnings)
	return warnings
}

func errorStrings(errs []error) []string {
	if len(errs) == 0 {
		return nil
	}
	out := make([]string, 0, len(errs))
	for _, err := range errs {
		out = append(out, err.Error())
	}
	return out
}
