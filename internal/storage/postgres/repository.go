package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/tradefolio/tradefolio/internal/domain"
	"github.com/tradefolio/tradefolio/pkg/metrics"
)

// ListTrades returns all trades in (trade_date, trade_id) order, optionally
// bounded by an inclusive as-of date.
func (db *DB) ListTrades(ctx context.Context, asOf *time.Time) ([]domain.Trade, error) {
	timer := metrics.NewTimer()
	query := `
		SELECT id, trade_id, symbol, isin, trade_date, side, quantity, price, gross_amount, created_at
		FROM trades`
	args := []interface{}{}
	if asOf != nil {
		query += ` WHERE trade_date <= $1`
		args = append(args, *asOf)
	}
	query += ` ORDER BY trade_date, trade_id`

	rows, err := db.pool.Query(ctx, query, args...)
	if err != nil {
		metrics.RecordDatabaseQuery("list_trades", "error", timer.Elapsed().Seconds())
		return nil, fmt.Errorf("list trades: %w", err)
	}
	defer rows.Close()

	var trades []domain.Trade
	for rows.Next() {
		var t domain.Trade
		if err := rows.Scan(&t.ID, &t.TradeID, &t.Symbol, &t.ISIN, &t.Date,
			&t.Side, &t.Quantity, &t.Price, &t.GrossAmount, &t.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan trade: %w", err)
		}
		trades = append(trades, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list trades: %w", err)
	}
	metrics.RecordDatabaseQuery("list_trades", "success", timer.Elapsed().Seconds())
	return trades, nil
}

// TradeDates returns the distinct trading dates present in the tradebook.
func (db *DB) TradeDates(ctx context.Context) ([]time.Time, error) {
	rows, err := db.pool.Query(ctx, `SELECT DISTINCT trade_date FROM trades ORDER BY trade_date`)
	if err != nil {
		return nil, fmt.Errorf("list trade dates: %w", err)
	}
	defer rows.Close()

	var dates []time.Time
	for rows.Next() {
		var d time.Time
		if err := rows.Scan(&d); err != nil {
			return nil, fmt.Errorf("scan trade date: %w", err)
		}
		dates = append(dates, d)
	}
	return dates, rows.Err()
}

// ListDailyCharges returns every charge aggregate in date order.
func (db *DB) ListDailyCharges(ctx context.Context) ([]domain.DailyCharge, error) {
	timer := metrics.NewTimer()
	rows, err := db.pool.Query(ctx, `
		SELECT charge_date, total_brokerage, total_taxes, total_other_charges, net_total_paid
		FROM daily_charges
		ORDER BY charge_date`)
	if err != nil {
		metrics.RecordDatabaseQuery("list_charges", "error", timer.Elapsed().Seconds())
		return nil, fmt.Errorf("list daily charges: %w", err)
	}
	defer rows.Close()

	var charges []domain.DailyCharge
	for rows.Next() {
		var c domain.DailyCharge
		if err := rows.Scan(&c.Date, &c.TotalBrokerage, &c.TotalTaxes,
			&c.TotalOtherCharges, &c.NetTotalPaid); err != nil {
			return nil, fmt.Errorf("scan daily charge: %w", err)
		}
		charges = append(charges, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list daily charges: %w", err)
	}
	metrics.RecordDatabaseQuery("list_charges", "success", timer.Elapsed().Seconds())
	return charges, nil
}

// ListCorporateActions returns stored actions ordered by effective date.
// When activeOnly is set, inactive rows are filtered out.
func (db *DB) ListCorporateActions(ctx context.Context, activeOnly bool) ([]domain.CorporateAction, error) {
	query := `
		SELECT id, symbol, action_type, effective_date, ratio_from, ratio_to, source, source_ref, active
		FROM corporate_actions`
	if activeOnly {
		query += ` WHERE active`
	}
	query += ` ORDER BY effective_date, symbol`

	rows, err := db.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("list corporate actions: %w", err)
	}
	defer rows.Close()

	var actions []domain.CorporateAction
	for rows.Next() {
		var a domain.CorporateAction
		if err := rows.Scan(&a.ID, &a.Symbol, &a.ActionType, &a.EffectiveDate,
			&a.RatioFrom, &a.RatioTo, &a.Source, &a.SourceRef, &a.Active); err != nil {
			return nil, fmt.Errorf("scan corporate action: %w", err)
		}
		actions = append(actions, a)
	}
	return actions, rows.Err()
}

// UpsertCorporateAction stores one action keyed by
// (symbol, action_type, effective_date).
func (db *DB) UpsertCorporateAction(ctx context.Context, a domain.CorporateAction) error {
	_, err := db.pool.Exec(ctx, `
		INSERT INTO corporate_actions (symbol, action_type, effective_date, ratio_from, ratio_to, source, source_ref, active)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (symbol, action_type, effective_date) DO UPDATE SET
			ratio_from = EXCLUDED.ratio_from,
			ratio_to = EXCLUDED.ratio_to,
			source = EXCLUDED.source,
			source_ref = EXCLUDED.source_ref,
			active = EXCLUDED.active`,
		a.Symbol, a.ActionType, a.EffectiveDate, a.RatioFrom, a.RatioTo, a.Source, a.SourceRef, a.Active)
	if err != nil {
		return fmt.Errorf("upsert corporate action: %w", err)
	}
	return nil
}

// ListSymbolAliases returns alias mappings; only active rows when activeOnly.
func (db *DB) ListSymbolAliases(ctx context.Context, activeOnly bool) ([]domain.SymbolAlias, error) {
	query := `SELECT from_symbol, to_symbol, active FROM symbol_aliases`
	if activeOnly {
		query += ` WHERE active`
	}
	query += ` ORDER BY from_symbol`

	rows, err := db.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("list symbol aliases: %w", err)
	}
	defer rows.Close()

	var aliases []domain.SymbolAlias
	for rows.Next() {
		var a domain.SymbolAlias
		if err := rows.Scan(&a.FromSymbol, &a.ToSymbol, &a.Active); err != nil {
			return nil, fmt.Errorf("scan symbol alias: %w", err)
		}
		aliases = append(aliases, a)
	}
	return aliases, rows.Err()
}

// UpsertSymbolAlias stores one alias keyed by from_symbol.
func (db *DB) UpsertSymbolAlias(ctx context.Context, a domain.SymbolAlias) error {
	_, err := db.pool.Exec(ctx, `
		INSERT INTO symbol_aliases (from_symbol, to_symbol, active)
		VALUES ($1, $2, $3)
		ON CONFLICT (from_symbol) DO UPDATE SET
			to_symbol = EXCLUDED.to_symbol,
			active = EXCLUDED.active`,
		a.FromSymbol, a.ToSymbol, a.Active)
	if err != nil {
		return fmt.Errorf("upsert symbol alias: %w", err)
	}
	return nil
}
