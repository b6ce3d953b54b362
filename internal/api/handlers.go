package api

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"runtime"
	"time"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/tradefolio/tradefolio/internal/domain"
	"github.com/tradefolio/tradefolio/internal/ingestion"
	"github.com/tradefolio/tradefolio/internal/service"
	"github.com/tradefolio/tradefolio/internal/storage/cache"
	"github.com/tradefolio/tradefolio/internal/storage/postgres"
	"github.com/tradefolio/tradefolio/internal/tax"
	"github.com/tradefolio/tradefolio/pkg/logger"
)

type Handler struct {
	db               *postgres.DB
	cacheService     *cache.RedisCache
	portfolioService *service.PortfolioService
	taxService       *service.TaxService
	ingestionService *service.IngestionService
}

func NewHandler(
	db *postgres.DB,
	cacheService *cache.RedisCache,
	portfolioService *service.PortfolioService,
	taxService *service.TaxService,
	ingestionService *service.IngestionService,
) *Handler {
	return &Handler{
		db:               db,
		cacheService:     cacheService,
		portfolioService: portfolioService,
		taxService:       taxService,
		ingestionService: ingestionService,
	}
}

func (h *Handler) GetHoldings(c *fiber.Ctx) error {
	var asOf *time.Time
	if dateStr := c.Query("as_of"); dateStr != "" {
		parsed, err := time.Parse("2006-01-02", dateStr)
		if err != nil {
			return badRequest(c, "invalid as_of date (use YYYY-MM-DD)")
		}
		asOf = &parsed
	}

	holdings, skipped, err := h.portfolioService.Holdings(c.Context(), asOf)
	if err != nil {
		logger.Error("holdings query failed", zap.Error(err))
		return internalError(c, "failed to compute holdings")
	}

	resp := HoldingsResponse{
		Holdings: holdings,
		Skipped:  skipped,
		Count:    len(holdings),
	}
	if asOf != nil {
		resp.AsOf = asOf.Format("2006-01-02")
	}
	return c.JSON(resp)
}

func (h *Handler) GetDashboard(c *fiber.Ctx) error {
	dash, err := h.portfolioService.Dashboard(c.Context(), c.Query("fy"))
	if err != nil {
		if isBadFY(err) {
			return badRequest(c, err.Error())
		}
		logger.Error("dashboard query failed", zap.Error(err))
		return internalError(c, "failed to build dashboard")
	}
	return c.JSON(dash)
}

func (h *Handler) GetFYList(c *fiber.Ctx) error {
	labels, err := h.portfolioService.FYList(c.Context())
	if err != nil {
		logger.Error("fy-list query failed", zap.Error(err))
		return internalError(c, "failed to list fiscal years")
	}
	return c.JSON(FYListResponse{FiscalYears: labels})
}

func (h *Handler) GetRealized(c *fiber.Ctx) error {
	fy := c.Query("fy")
	realized, err := h.portfolioService.Realized(c.Context(), fy)
	if err != nil {
		if isBadFY(err) {
			return badRequest(c, err.Error())
		}
		logger.Error("realized query failed", zap.Error(err))
		return internalError(c, "failed to compute realized gains")
	}
	return c.JSON(RealizedResponse{FY: fy, Realized: realized, Count: len(realized)})
}

func (h *Handler) GetSummary(c *fiber.Ctx) error {
	summary, err := h.portfolioService.Summary(c.Context())
	if err != nil {
		logger.Error("summary query failed", zap.Error(err))
		return internalError(c, "failed to build summary")
	}
	return c.JSON(summary)
}

func (h *Handler) GetUnmatched(c *fiber.Ctx) error {
	unmatched, err := h.portfolioService.Unmatched(c.Context())
	if err != nil {
		logger.Error("unmatched query failed", zap.Error(err))
		return internalError(c, "failed to compute unmatched sells")
	}
	return c.JSON(UnmatchedResponse{Unmatched: unmatched, Count: len(unmatched)})
}

func (h *Handler) PostTaxReport(c *fiber.Ctx) error {
	var req domain.TaxReportRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "invalid request body")
	}

	report, err := h.taxService.Report(c.Context(), req)
	if err != nil {
		var unsupported *tax.UnsupportedCountryError
		if errors.As(err, &unsupported) {
			return errorStatus(c, fiber.StatusNotFound, unsupported.Error())
		}
		if isValidationError(err) {
			return errorStatus(c, fiber.StatusUnprocessableEntity, err.Error())
		}
		logger.Error("tax report failed",
			zap.String("country", req.CountryCode),
			zap.Int("year", req.TaxYear),
			zap.Error(err))
		return internalError(c, "failed to compute tax report")
	}
	return c.JSON(report)
}

func (h *Handler) GetTaxCountries(c *fiber.Ctx) error {
	return c.JSON(TaxCountriesResponse{Countries: h.taxService.Countries()})
}

func (h *Handler) IngestTradebook(c *fiber.Ctx) error {
	return h.ingest(c, h.ingestionService.IngestTradebook)
}

func (h *Handler) IngestCharges(c *fiber.Ctx) error {
	return h.ingest(c, h.ingestionService.IngestDailyCharges)
}

func (h *Handler) IngestCorporateActions(c *fiber.Ctx) error {
	return h.ingest(c, h.ingestionService.IngestCorporateActions)
}

type ingestFunc func(ctx context.Context, r io.Reader, dryRun bool) (*service.IngestSummary, error)

func (h *Handler) ingest(c *fiber.Ctx, fn ingestFunc) error {
	body, err := requestFile(c)
	if err != nil {
		return badRequest(c, err.Error())
	}
	defer body.Close()
	dryRun := c.QueryBool("dry_run", false)

	summary, err := fn(c.Context(), body, dryRun)
	if err != nil {
		if errors.Is(err, ingestion.ErrInvalidInput) {
			return badRequest(c, err.Error())
		}
		logger.Error("ingestion failed", zap.Error(err))
		return internalError(c, "ingestion failed")
	}
	return c.JSON(summary)
}

// requestFile accepts either a multipart upload named "file" or a raw CSV
// body.
func requestFile(c *fiber.Ctx) (io.ReadCloser, error) {
	if fh, err := c.FormFile("file"); err == nil {
		f, err := fh.Open()
		if err != nil {
			return nil, fmt.Errorf("cannot open uploaded file")
		}
		return f, nil
	}
	if len(c.Body()) == 0 {
		return nil, fmt.Errorf("request body is empty; upload a CSV file")
	}
	return io.NopCloser(bytes.NewReader(c.Body())), nil
}

func (h *Handler) GetAliases(c *fiber.Ctx) error {
	aliases, err := h.portfolioService.Aliases(c.Context())
	if err != nil {
		logger.Error("alias query failed", zap.Error(err))
		return internalError(c, "failed to list aliases")
	}
	return c.JSON(fiber.Map{"aliases": aliases, "count": len(aliases)})
}

func (h *Handler) UpsertAlias(c *fiber.Ctx) error {
	var req AliasRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "invalid request body")
	}

	alias := domain.SymbolAlias{
		FromSymbol: req.FromSymbol,
		ToSymbol:   req.ToSymbol,
		Active:     true,
	}
	if req.Active != nil {
		alias.Active = *req.Active
	}

	if err := h.portfolioService.UpsertAlias(c.Context(), alias); err != nil {
		if isValidationError(err) {
			return badRequest(c, err.Error())
		}
		logger.Error("alias upsert failed", zap.Error(err))
		return internalError(c, "failed to store alias")
	}
	return c.JSON(fiber.Map{"status": "stored", "from_symbol": alias.FromSymbol})
}

func (h *Handler) GetCorporateActions(c *fiber.Ctx) error {
	actions, err := h.portfolioService.CorporateActions(c.Context())
	if err != nil {
		logger.Error("corporate action query failed", zap.Error(err))
		return internalError(c, "failed to list corporate actions")
	}
	return c.JSON(fiber.Map{"actions": actions, "count": len(actions)})
}

func (h *Handler) UpsertCorporateAction(c *fiber.Ctx) error {
	var req CorporateActionRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "invalid request body")
	}

	effective, err := time.Parse("2006-01-02", req.EffectiveDate)
	if err != nil {
		return badRequest(c, "invalid effective_date (use YYYY-MM-DD)")
	}

	action := domain.CorporateAction{
		Symbol:        req.Symbol,
		ActionType:    req.ActionType,
		EffectiveDate: effective,
		RatioFrom:     req.RatioFrom,
		RatioTo:       req.RatioTo,
		Source:        req.Source,
		SourceRef:     req.SourceRef,
		Active:        true,
	}
	if req.Active != nil {
		action.Active = *req.Active
	}

	if err := h.portfolioService.UpsertCorporateAction(c.Context(), action); err != nil {
		if isValidationError(err) {
			return badRequest(c, err.Error())
		}
		logger.Error("corporate action upsert failed", zap.Error(err))
		return internalError(c, "failed to store corporate action")
	}
	return c.JSON(fiber.Map{"status": "stored", "symbol": action.Symbol})
}

func (h *Handler) HealthCheck(c *fiber.Ctx) error {
	return c.JSON(HealthResponse{
		Status:    "healthy",
		Version:   "1.0.0",
		Timestamp: time.Now(),
	})
}

func (h *Handler) ReadinessCheck(c *fiber.Ctx) error {
	ctx, cancel := context.WithTimeout(c.Context(), 5*time.Second)
	defer cancel()

	services := make(map[string]ServiceHealth)

	dbStart := time.Now()
	if err := h.db.HealthCheck(ctx); err != nil {
		services["database"] = ServiceHealth{
			Status: "unhealthy",
			Error:  err.Error(),
		}
	} else {
		services["database"] = ServiceHealth{
			Status:  "healthy",
			Latency: time.Since(dbStart).String(),
		}
	}

	if h.cacheService != nil {
		redisStart := time.Now()
		if err := h.cacheService.HealthCheck(ctx); err != nil {
			services["redis"] = ServiceHealth{
				Status: "unhealthy",
				Error:  err.Error(),
			}
		} else {
			services["redis"] = ServiceHealth{
				Status:  "healthy",
				Latency: time.Since(redisStart).String(),
			}
		}
	}

	// The cache is optional, so only the database gates readiness.
	status := "ready"
	if services["database"].Status != "healthy" {
		status = "not_ready"
	}

	response := HealthResponse{
		Status:    status,
		Version:   "1.0.0",
		Timestamp: time.Now(),
		Services:  services,
	}
	if status != "ready" {
		return c.Status(fiber.StatusServiceUnavailable).JSON(response)
	}
	return c.JSON(response)
}

func (h *Handler) InvalidateCache(c *fiber.Ctx) error {
	if h.cacheService == nil {
		return errorStatus(c, fiber.StatusServiceUnavailable, "cache is not configured")
	}
	pattern := c.Params("pattern", "*")

	if err := h.cacheService.DeletePattern(c.Context(), pattern); err != nil {
		logger.Error("cache invalidation failed", zap.Error(err))
		return internalError(c, "failed to invalidate cache")
	}
	return c.JSON(fiber.Map{
		"status":  "success",
		"message": fmt.Sprintf("cache invalidated for pattern: %s", pattern),
	})
}

func (h *Handler) GetSystemStats(c *fiber.Ctx) error {
	dbStats := h.db.Stats()

	var m runtime.MemStats
	runtime.ReadMemStats(&m)

	response := SystemStatsResponse{
		Database: DatabaseStats{
			ActiveConnections: dbStats.AcquiredConns(),
			IdleConnections:   dbStats.IdleConns(),
			TotalConnections:  dbStats.TotalConns(),
			WaitCount:         dbStats.EmptyAcquireCount(),
			WaitDuration:      dbStats.AcquireDuration().String(),
		},
		API: APIStats{
			ActiveGoroutines: runtime.NumGoroutine(),
			MemoryUsed:       fmt.Sprintf("%d MB", m.Alloc/1024/1024),
		},
	}
	return c.JSON(response)
}

func badRequest(c *fiber.Ctx, msg string) error {
	return errorStatus(c, fiber.StatusBadRequest, msg)
}

func internalError(c *fiber.Ctx, msg string) error {
	return errorStatus(c, fiber.StatusInternalServerError, msg)
}

func errorStatus(c *fiber.Ctx, code int, msg string) error {
	return c.Status(code).JSON(ErrorResponse{
		Error:     msg,
		Code:      code,
		RequestID: getRequestID(c),
		Timestamp: time.Now(),
	})
}

func isBadFY(err error) bool {
	return errors.Is(err, domain.ErrBadFYLabel)
}

// isValidationError treats errors produced before any storage or engine
// work as caller mistakes.
func isValidationError(err error) bool {
	return errors.Is(err, domain.ErrInvalidRequest)
}

func getRequestID(c *fiber.Ctx) string {
	if id := c.Locals("requestID"); id != nil {
		return id.(string)
	}
	return ""
}
