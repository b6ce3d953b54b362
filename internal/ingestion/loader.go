package ingestion

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/tradefolio/tradefolio/internal/domain"
	"github.com/tradefolio/tradefolio/pkg/metrics"
)

type BulkLoader struct {
	pool      *pgxpool.Pool
	batchSize int
}

func NewBulkLoader(pool *pgxpool.Pool, batchSize int) *BulkLoader {
	return &BulkLoader{
		pool:      pool,
		batchSize: batchSize,
	}
}

// LoadTrades bulk-loads trades with upsert-by-trade_id semantics:
// CopyFrom into a session temp table, then merge. Re-ingesting the same
// tradebook is a no-op for unchanged rows.
func (l *BulkLoader) LoadTrades(ctx context.Context, trades []domain.Trade) (int64, error) {
	if len(trades) == 0 {
		return 0, nil
	}

	columns := []string{
		"trade_id",
		"symbol",
		"isin",
		"trade_date",
		"side",
		"quantity",
		"price",
		"gross_amount",
	}

	tx, err := l.pool.Begin(ctx)
	if err != nil {
		return 0, fmt.Errorf("begin trade load: %w", err)
	}
	defer tx.Rollback(ctx)

	_, err = tx.Exec(ctx, `
		CREATE TEMP TABLE trades_incoming
		(LIKE trades INCLUDING DEFAULTS)
		ON COMMIT DROP`)
	if err != nil {
		return 0, fmt.Errorf("create staging table: %w", err)
	}

	_, err = tx.CopyFrom(
		ctx,
		pgx.Identifier{"trades_incoming"},
		columns,
		&tradeSource{trades: trades},
	)
	if err != nil {
		return 0, fmt.Errorf("copy trades: %w", err)
	}

	tag, err := tx.Exec(ctx, `
		INSERT INTO trades (trade_id, symbol, isin, trade_date, side, quantity, price, gross_amount)
		SELECT trade_id, symbol, isin, trade_date, side, quantity, price, gross_amount
		FROM trades_incoming
		ON CONFLICT (trade_id) DO UPDATE SET
			symbol = EXCLUDED.symbol,
			isin = EXCLUDED.isin,
			trade_date = EXCLUDED.trade_date,
			side = EXCLUDED.side,
			quantity = EXCLUDED.quantity,
			price = EXCLUDED.price,
			gross_amount = EXCLUDED.gross_amount`)
	if err != nil {
		return 0, fmt.Errorf("merge trades: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return 0, fmt.Errorf("commit trade load: %w", err)
	}

	count := tag.RowsAffected()
	metrics.RecordTradesIngested("success", count)
	return count, nil
}

type tradeSource struct {
	trades []domain.Trade
	index  int
}

func (ts *tradeSource) Next() bool {
	ts.index++
	return ts.index <= len(ts.trades)
}

func (ts *tradeSource) Values() ([]interface{}, error) {
	if ts.index > len(ts.trades) {
		return nil, nil
	}

	trade := ts.trades[ts.index-1]
	return []interface{}{
		trade.TradeID,
		trade.Symbol,
		trade.ISIN,
		trade.Date,
		string(trade.Side),
		trade.Quantity,
		trade.Price,
		trade.GrossAmount,
	}, nil
}

func (ts *tradeSource) Err() error {
	return nil
}

// LoadDailyCharges upserts the per-date charge aggregates. Files are small
// so a single pgx batch is enough.
func (l *BulkLoader) LoadDailyCharges(ctx context.Context, charges []domain.DailyCharge) (int64, error) {
	if len(charges) == 0 {
		return 0, nil
	}

	batch := &pgx.Batch{}
	for _, c := range charges {
		batch.Queue(`
			INSERT INTO daily_charges (charge_date, total_brokerage, total_taxes, total_other_charges, net_total_paid)
			VALUES ($1, $2, $3, $4, $5)
			ON CONFLICT (charge_date) DO UPDATE SET
				total_brokerage = EXCLUDED.total_brokerage,
				total_taxes = EXCLUDED.total_taxes,
				total_other_charges = EXCLUDED.total_other_charges,
				net_total_paid = EXCLUDED.net_total_paid`,
			c.Date, c.TotalBrokerage, c.TotalTaxes, c.TotalOtherCharges, c.NetTotalPaid)
	}
	return l.sendBatch(ctx, batch, "load daily charges")
}

// LoadCorporateActions upserts stored actions keyed by
// (symbol, action_type, effective_date).
func (l *BulkLoader) LoadCorporateActions(ctx context.Context, actions []domain.CorporateAction) (int64, error) {
	if len(actions) == 0 {
		return 0, nil
	}

	batch := &pgx.Batch{}
	for _, a := range actions {
		batch.Queue(`
			INSERT INTO corporate_actions (symbol, action_type, effective_date, ratio_from, ratio_to, source, source_ref, active)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
			ON CONFLICT (symbol, action_type, effective_date) DO UPDATE SET
				ratio_from = EXCLUDED.ratio_from,
				ratio_to = EXCLUDED.ratio_to,
				source = EXCLUDED.source,
				source_ref = EXCLUDED.source_ref,
				active = EXCLUDED.active`,
			a.Symbol, a.ActionType, a.EffectiveDate, a.RatioFrom, a.RatioTo, a.Source, a.SourceRef, a.Active)
	}
	return l.sendBatch(ctx, batch, "load corporate actions")
}

func (l *BulkLoader) sendBatch(ctx context.Context, batch *pgx.Batch, op string) (int64, error) {
	results := l.pool.SendBatch(ctx, batch)
	defer results.Close()

	var total int64
	for i := 0; i < batch.Len(); i++ {
		tag, err := results.Exec()
		if err != nil {
			return total, fmt.Errorf("%s: %w", op, err)
		}
		total += tag.RowsAffected()
	}
	return total, nil
}
