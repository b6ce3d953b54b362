package postgres

import (
	"context"
	"fmt"
)

var schemaStatements = []string{
	`CREATE TABLE IF NOT EXISTS trades (
		id BIGSERIAL PRIMARY KEY,
		trade_id TEXT NOT NULL UNIQUE,
		symbol TEXT NOT NULL,
		isin TEXT NOT NULL DEFAULT '',
		trade_date DATE NOT NULL,
		side TEXT NOT NULL CHECK (side IN ('BUY', 'SELL')),
		quantity DOUBLE PRECISION NOT NULL,
		price DOUBLE PRECISION NOT NULL,
		gross_amount DOUBLE PRECISION NOT NULL,
		created_at TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,
	`CREATE INDEX IF NOT EXISTS idx_trades_symbol_date ON trades (symbol, trade_date)`,
	`CREATE INDEX IF NOT EXISTS idx_trades_date ON trades (trade_date)`,

	`CREATE TABLE IF NOT EXISTS daily_charges (
		charge_date DATE PRIMARY KEY,
		total_brokerage DOUBLE PRECISION NOT NULL DEFAULT 0,
		total_taxes DOUBLE PRECISION NOT NULL DEFAULT 0,
		total_other_charges DOUBLE PRECISION NOT NULL DEFAULT 0,
		net_total_paid DOUBLE PRECISION NOT NULL DEFAULT 0
	)`,

	`CREATE TABLE IF NOT EXISTS corporate_actions (
		id BIGSERIAL PRIMARY KEY,
		symbol TEXT NOT NULL,
		action_type TEXT NOT NULL,
		effective_date DATE NOT NULL,
		ratio_from DOUBLE PRECISION NOT NULL,
		ratio_to DOUBLE PRECISION NOT NULL,
		source TEXT NOT NULL DEFAULT '',
		source_ref TEXT NOT NULL DEFAULT '',
		active BOOLEAN NOT NULL DEFAULT TRUE,
		UNIQUE (symbol, action_type, effective_date)
	)`,

	`CREATE TABLE IF NOT EXISTS symbol_aliases (
		from_symbol TEXT PRIMARY KEY,
		to_symbol TEXT NOT NULL,
		active BOOLEAN NOT NULL DEFAULT TRUE
	)`,
}

// Bootstrap creates the schema when it does not exist yet. Statements are
// idempotent so repeated startup is safe.
func (db *DB) Bootstrap(ctx context.Context) error {
	for _, stmt := range schemaStatements {
		if _, err := db.pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("bootstrap schema: %w", err)
		}
	}
	return nil
}
