package ingestion

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"github.com/tradefolio/tradefolio/internal/domain"
)

// ErrInvalidInput marks structurally unusable input: missing required
// columns or an empty file. Row-level problems are collected per row
// instead.
var ErrInvalidInput = errors.New("invalid input")

var tradebookColumns = []string{"trade_id", "symbol", "trade_date", "trade_type", "quantity", "price"}

type Parser struct {
	batchSize int
	workers   int
}

func NewParser(batchSize, workers int) *Parser {
	if batchSize <= 0 {
		batchSize = 1000
	}
	if workers <= 0 {
		workers = 1
	}
	return &Parser{
		batchSize: batchSize,
		workers:   workers,
	}
}

type ParseResult struct {
	Trades []domain.Trade
	Errors []error
}

// ParseTradebook streams a tradebook CSV through a worker pool. The header
// row names the columns; order does not matter and extra columns are
// ignored. A missing required column fails the whole file.
func (p *Parser) ParseTradebook(ctx context.Context, reader io.Reader) (*ParseResult, error) {
	csvReader := csv.NewReader(reader)
	csvReader.LazyQuotes = true
	csvReader.TrimLeadingSpace = true

	header, err := csvReader.Read()
	if err != nil {
		return nil, fmt.Errorf("%w: empty tradebook file", ErrInvalidInput)
	}
	cols, err := mapTradebookColumns(header)
	if err != nil {
		return nil, err
	}

	jobs := make(chan []string, p.workers*2)
	results := make(chan *ParseResult, p.workers)

	var wg sync.WaitGroup
	for i := 0; i < p.workers; i++ {
		wg.Add(1)
		go p.worker(ctx, cols, jobs, results, &wg)
	}

	go func() {
		defer close(jobs)
		for {
			select {
			case <-ctx.Done():
				return
			default:
				record, err := csvReader.Read()
				if err == io.EOF {
					return
				}
				if err != nil {
					continue
				}
				jobs <- record
			}
		}
	}()

	go func() {
		wg.Wait()
		close(results)
	}()

	finalResult := &ParseResult{
		Trades: make([]domain.Trade, 0, p.batchSize),
		Errors: make([]error, 0),
	}
	for result := range results {
		finalResult.Trades = append(finalResult.Trades, result.Trades...)
		finalResult.Errors = append(finalResult.Errors, result.Errors...)
	}
	return finalResult, nil
}

// tradebookColIdx maps each recognized column name to its position in the
// header, -1 when absent.
type tradebookColIdx struct {
	tradeID     int
	symbol      int
	isin        int
	tradeDate   int
	tradeType   int
	quantity    int
	price       int
	grossAmount int
}

func mapTradebookColumns(header []string) (*tradebookColIdx, error) {
	idx := map[string]int{}
	for i, name := range header {
		idx[strings.ToLower(strings.TrimSpace(name))] = i
	}

	var missing []string
	for _, name := range tradebookColumns {
		if _, ok := idx[name]; !ok {
			missing = append(missing, name)
		}
	}
	if len(missing) > 0 {
		return nil, fmt.Errorf("%w: tradebook missing required columns: %s",
			ErrInvalidInput, strings.Join(missing, ", "))
	}

	at := func(name string) int {
		if i, ok := idx[name]; ok {
			return i
		}
		return -1
	}
	return &tradebookColIdx{
		tradeID:     at("trade_id"),
		symbol:      at("symbol"),
		isin:        at("isin"),
		tradeDate:   at("trade_date"),
		tradeType:   at("trade_type"),
		quantity:    at("quantity"),
		price:       at("price"),
		grossAmount: at("gross_amount"),
	}, nil
}

func (p *Parser) worker(ctx context.Context, cols *tradebookColIdx,
	jobs <-chan []string, results chan<- *ParseResult, wg *sync.WaitGroup) {

	defer wg.Done()

	batch := &ParseResult{
		Trades: make([]domain.Trade, 0, p.batchSize),
	}

	for {
		select {
		case <-ctx.Done():
			if len(batch.Trades) > 0 {
				results <- batch
			}
			return

		case record, ok := <-jobs:
			if !ok {
				if len(batch.Trades) > 0 || len(batch.Errors) > 0 {
					results <- batch
				}
				return
			}

			trade, err := parseTradeRecord(cols, record)
			if err != nil {
				batch.Errors = append(batch.Errors, err)
				continue
			}

			batch.Trades = append(batch.Trades, *trade)

			if len(batch.Trades) >= p.batchSize {
				results <- batch
				batch = &ParseResult{
					Trades: make([]domain.Trade, 0, p.batchSize),
				}
			}
		}
	}
}

func parseTradeRecord(cols *tradebookColIdx, record []string) (*domain.Trade, error) {
	field := func(i int) string {
		if i < 0 || i >= len(record) {
			return ""
		}
		return strings.TrimSpace(record[i])
	}

	tradeID := field(cols.tradeID)
	if tradeID == "" {
		return nil, fmt.Errorf("row %v: empty trade_id", record)
	}

	symbol := strings.ToUpper(field(cols.symbol))
	if symbol == "" {
		return nil, fmt.Errorf("trade %s: empty symbol", tradeID)
	}

	date, err := time.Parse("2006-01-02", field(cols.tradeDate))
	if err != nil {
		return nil, fmt.Errorf("trade %s: invalid trade_date: %w", tradeID, err)
	}

	side, err := domain.ParseSide(field(cols.tradeType))
	if err != nil {
		return nil, fmt.Errorf("trade %s: %w", tradeID, err)
	}

	qty, err := parseMoney(field(cols.quantity))
	if err != nil {
		return nil, fmt.Errorf("trade %s: invalid quantity: %w", tradeID, err)
	}
	if qty <= 0 {
		return nil, fmt.Errorf("trade %s: non-positive quantity %v", tradeID, qty)
	}

	price, err := parseMoney(field(cols.price))
	if err != nil {
		return nil, fmt.Errorf("trade %s: invalid price: %w", tradeID, err)
	}
	if price <= 0 {
		return nil, fmt.Errorf("trade %s: non-positive price %v", tradeID, price)
	}

	gross := qty * price
	if raw := field(cols.grossAmount); raw != "" {
		if v, err := parseMoney(raw); err == nil && v > 0 {
			gross = v
		}
	}

	return &domain.Trade{
		TradeID:     tradeID,
		Symbol:      symbol,
		ISIN:        field(cols.isin),
		Date:        date,
		Side:        side,
		Quantity:    qty,
		Price:       price,
		GrossAmount: gross,
	}, nil
}

// ParseDailyCharges reads the per-date charge aggregate CSV. Columns:
// charge_date, total_brokerage, total_taxes, total_other_charges and an
// optional net_total_paid. Files are small so this parses sequentially.
func (p *Parser) ParseDailyCharges(reader io.Reader) ([]domain.DailyCharge, []error, error) {
	records, idx, err := readHeadered(reader, "charges", []string{"charge_date"})
	if err != nil {
		return nil, nil, err
	}

	var charges []domain.DailyCharge
	var rowErrs []error
	for _, record := range records {
		field := fieldFn(record)

		date, err := time.Parse("2006-01-02", field(idx["charge_date"]))
		if err != nil {
			rowErrs = append(rowErrs, fmt.Errorf("charge row %v: invalid charge_date: %w", record, err))
			continue
		}
		charges = append(charges, domain.DailyCharge{
			Date:              date,
			TotalBrokerage:    moneyOrZero(field(optIdx(idx, "total_brokerage"))),
			TotalTaxes:        moneyOrZero(field(optIdx(idx, "total_taxes"))),
			TotalOtherCharges: moneyOrZero(field(optIdx(idx, "total_other_charges"))),
			NetTotalPaid:      moneyOrZero(field(optIdx(idx, "net_total_paid"))),
		})
	}
	return charges, rowErrs, nil
}

// ParseCorporateActions reads the stored-action CSV. Columns: symbol,
// action_type, effective_date, ratio_from, ratio_to, optional is_active
// (defaults true). Ratio validation happens in the adjuster, not here.
func (p *Parser) ParseCorporateActions(reader io.Reader) ([]domain.CorporateAction, []error, error) {
	required := []string{"symbol", "action_type", "effective_date", "ratio_from", "ratio_to"}
	records, idx, err := readHeadered(reader, "corporate actions", required)
	if err != nil {
		return nil, nil, err
	}

	var actions []domain.CorporateAction
	var rowErrs []error
	for _, record := range records {
		field := fieldFn(record)

		symbol := strings.ToUpper(field(idx["symbol"]))
		if symbol == "" {
			rowErrs = append(rowErrs, fmt.Errorf("action row %v: empty symbol", record))
			continue
		}
		date, err := time.Parse("2006-01-02", field(idx["effective_date"]))
		if err != nil {
			rowErrs = append(rowErrs, fmt.Errorf("action %s: invalid effective_date: %w", symbol, err))
			continue
		}

		active := true
		if raw := field(optIdx(idx, "is_active")); raw != "" {
			active = strings.EqualFold(raw, "true") || raw == "1"
		}
		actions = append(actions, domain.CorporateAction{
			Symbol:        symbol,
			ActionType:    strings.ToUpper(field(idx["action_type"])),
			EffectiveDate: date,
			RatioFrom:     moneyOrZero(field(idx["ratio_from"])),
			RatioTo:       moneyOrZero(field(idx["ratio_to"])),
			Active:        active,
		})
	}
	return actions, rowErrs, nil
}

func readHeadered(reader io.Reader, what string, requiredCols []string) ([][]string, map[string]int, error) {
	csvReader := csv.NewReader(reader)
	csvReader.LazyQuotes = true
	csvReader.TrimLeadingSpace = true

	header, err := csvReader.Read()
	if err != nil {
		return nil, nil, fmt.Errorf("%w: empty %s file", ErrInvalidInput, what)
	}
	idx := map[string]int{}
	for i, name := range header {
		idx[strings.ToLower(strings.TrimSpace(name))] = i
	}
	var missing []string
	for _, name := range requiredCols {
		if _, ok := idx[name]; !ok {
			missing = append(missing, name)
		}
	}
	if len(missing) > 0 {
		return nil, nil, fmt.Errorf("%w: %s missing required columns: %s",
			ErrInvalidInput, what, strings.Join(missing, ", "))
	}

	var records [][]string
	for {
		record, err := csvReader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			continue
		}
		records = append(records, record)
	}
	return records, idx, nil
}

func fieldFn(record []string) func(int) string {
	return func(i int) string {
		if i < 0 || i >= len(record) {
			return ""
		}
		return strings.TrimSpace(record[i])
	}
}

func optIdx(idx map[string]int, name string) int {
	if i, ok := idx[name]; ok {
		return i
	}
	return -1
}

// parseMoney accepts broker-export number formats: thousands separators,
// currency symbols and surrounding whitespace.
func parseMoney(s string) (float64, error) {
	clean := strings.NewReplacer(",", "", "₹", "", "€", "", " ", "").Replace(s)
	d, err := decimal.NewFromString(clean)
	if err != nil {
		return 0, err
	}
	return d.InexactFloat64(), nil
}

func moneyOrZero(s string) float64 {
	if s == "" {
		return 0
	}
	v, err := parseMoney(s)
	if err != nil {
		return 0
	}
	return v
}
