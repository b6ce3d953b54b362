package api

import (
	"time"

	"github.com/tradefolio/tradefolio/internal/domain"
)

type HoldingsResponse struct {
	AsOf     string                 `json:"as_of,omitempty"`
	Holdings []domain.Holding       `json:"holdings"`
	Skipped  []domain.SkippedAction `json:"skipped_actions,omitempty"`
	Count    int                    `json:"count"`
}

type RealizedResponse struct {
	FY       string                `json:"fy,omitempty"`
	Realized []domain.RealizedGain `json:"realized"`
	Count    int                   `json:"count"`
}

type UnmatchedResponse struct {
	Unmatched []domain.UnmatchedSell `json:"unmatched"`
	Count     int                    `json:"count"`
}

type FYListResponse struct {
	FiscalYears []string `json:"fiscal_years"`
}

type TaxCountriesResponse struct {
	Countries []string `json:"countries"`
}

type AliasRequest struct {
	FromSymbol string `json:"from_symbol"`
	ToSymbol   string `json:"to_symbol"`
	Active     *bool  `json:"active"`
}

type CorporateActionRequest struct {
	Symbol        string  `json:"symbol"`
	ActionType    string  `json:"action_type"`
	EffectiveDate string  `json:"effective_date"`
	RatioFrom     float64 `json:"ratio_from"`
	RatioTo       float64 `json:"ratio_to"`
	Source        string  `json:"source"`
	SourceRef     string  `json:"source_ref"`
	Active        *bool   `json:"active"`
}

type HealthResponse struct {
	Status    string                   `json:"status"`
	Version   string                   `json:"version"`
	Timestamp time.Time                `json:"timestamp"`
	Services  map[string]ServiceHealth `json:"services,omitempty"`
}

type ServiceHealth struct {
	Status  string `json:"status"`
	Latency string `json:"latency,omitempty"`
	Error   string `json:"error,omitempty"`
}

type SystemStatsResponse struct {
	Database DatabaseStats `json:"database"`
	API      APIStats      `json:"api"`
}

type DatabaseStats struct {
	ActiveConnections int32  `json:"active_connections"`
	IdleConnections   int32  `json:"idle_connections"`
	TotalConnections  int32  `json:"total_connections"`
	WaitCount         int64  `json:"wait_count"`
	WaitDuration      string `json:"wait_duration"`
}

type APIStats struct {
	ActiveGoroutines int    `json:"active_goroutines"`
	MemoryUsed       string `json:"memory_used"`
}

type ErrorResponse struct {
	Error     string    `json:"error"`
	Code      int       `json:"code"`
	RequestID string    `json:"request_id,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}
