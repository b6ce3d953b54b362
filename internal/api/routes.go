package api

import (
	"time"

	"github.com/gofiber/adaptor/v2"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/swagger"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

func SetupRoutes(app *fiber.App, handler *Handler) {
	app.Use(RequestID())
	app.Use(ErrorHandler())

	// Health and metrics stay outside the rate limiter.
	app.Get("/health", handler.HealthCheck)
	app.Get("/ready", handler.ReadinessCheck)
	app.Get("/metrics", adaptor.HTTPHandler(promhttp.Handler()))
	app.Get("/swagger/*", swagger.HandlerDefault)

	v1 := app.Group("/api/v1")
	v1.Use(RateLimiter(100, time.Minute))
	v1.Use(PrometheusMiddleware())

	ingest := v1.Group("/ingest")
	ingest.Post("/tradebook", handler.IngestTradebook)
	ingest.Post("/charges", handler.IngestCharges)
	ingest.Post("/corporate-actions", handler.IngestCorporateActions)

	v1.Get("/holdings", handler.GetHoldings)
	v1.Get("/dashboard", handler.GetDashboard)
	v1.Get("/fy-list", handler.GetFYList)

	reports := v1.Group("/reports")
	reports.Get("/realized", handler.GetRealized)
	reports.Get("/summary", handler.GetSummary)
	reports.Get("/unmatched", handler.GetUnmatched)

	taxGroup := v1.Group("/tax")
	taxGroup.Post("/report", handler.PostTaxReport)
	taxGroup.Get("/countries", handler.GetTaxCountries)

	v1.Get("/symbols/aliases", handler.GetAliases)
	v1.Post("/symbols/aliases", handler.UpsertAlias)

	v1.Get("/corporate-actions", handler.GetCorporateActions)
	v1.Post("/corporate-actions", handler.UpsertCorporateAction)

	admin := v1.Group("/admin")
	admin.Use(BasicAuth())
	admin.Delete("/cache/:pattern", handler.InvalidateCache)
	admin.Get("/stats", handler.GetSystemStats)
}

func BasicAuth() fiber.Handler {
	return func(c *fiber.Ctx) error {
		auth := c.Get("Authorization")
		if auth != "Basic YWRtaW46c2VjcmV0" {
			return c.Status(fiber.StatusUnauthorized).JSON(ErrorResponse{
				Error:     "unauthorized",
				Code:      fiber.StatusUnauthorized,
				RequestID: getRequestID(c),
				Timestamp: time.Now(),
			})
		}
		return c.Next()
	}
}
