package ingestion

import (
	"bytes"
	"context"
	"fmt"
	"sort"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tradefolio/tradefolio/internal/domain"
)

const tradebookHeader = "trade_id,symbol,isin,trade_date,trade_type,quantity,price,gross_amount\n"

func TestParseTradebook(t *testing.T) {
	csvData := tradebookHeader +
		"T1,INFY,INE009A01021,2024-01-15,buy,10,1500.50,15005.00\n" +
		"T2,tcs,,2024-01-16,S,5,3800,\n" +
		"T3,INFY,,2024-01-17,B,\"1,000\",1500,\n"

	parser := NewParser(1000, 2)
	result, err := parser.ParseTradebook(context.Background(), strings.NewReader(csvData))
	require.NoError(t, err)
	require.Len(t, result.Trades, 3)
	assert.Empty(t, result.Errors)

	byID := map[string]domain.Trade{}
	for _, tr := range result.Trades {
		byID[tr.TradeID] = tr
	}

	infy := byID["T1"]
	assert.Equal(t, "INFY", infy.Symbol)
	assert.Equal(t, "INE009A01021", infy.ISIN)
	assert.Equal(t, domain.SideBuy, infy.Side)
	assert.InDelta(t, 10.0, infy.Quantity, 1e-9)
	assert.InDelta(t, 1500.50, infy.Price, 1e-9)
	assert.InDelta(t, 15005.0, infy.GrossAmount, 1e-9)

	tcs := byID["T2"]
	assert.Equal(t, "TCS", tcs.Symbol)
	assert.Equal(t, domain.SideSell, tcs.Side)
	assert.InDelta(t, 5*3800.0, tcs.GrossAmount, 1e-9) // derived when absent

	// Thousands separator in quantity.
	assert.InDelta(t, 1000.0, byID["T3"].Quantity, 1e-9)
}

func TestParseTradebookColumnOrderIrrelevant(t *testing.T) {
	csvData := "price,trade_type,symbol,trade_date,quantity,trade_id\n" +
		"100,BUY,ABC,2024-01-15,10,T1\n"

	result, err := NewParser(10, 1).ParseTradebook(context.Background(), strings.NewReader(csvData))
	require.NoError(t, err)
	require.Len(t, result.Trades, 1)
	assert.Equal(t, "T1", result.Trades[0].TradeID)
}

func TestParseTradebookMissingColumns(t *testing.T) {
	csvData := "trade_id,symbol,trade_date\nT1,ABC,2024-01-15\n"

	_, err := NewParser(10, 1).ParseTradebook(context.Background(), strings.NewReader(csvData))
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrInvalidInput)
	assert.Contains(t, err.Error(), "trade_type")
	assert.Contains(t, err.Error(), "quantity")
	assert.Contains(t, err.Error(), "price")
}

func TestParseTradebookEmptyFile(t *testing.T) {
	_, err := NewParser(10, 1).ParseTradebook(context.Background(), strings.NewReader(""))
	assert.ErrorIs(t, err, ErrInvalidInput)
}

func TestParseTradebookCollectsRowErrors(t *testing.T) {
	csvData := tradebookHeader +
		"T1,ABC,,2024-01-15,BUY,10,100,\n" +
		"T2,ABC,,15-01-2024,BUY,10,100,\n" + // bad date
		"T3,ABC,,2024-01-15,HOLD,10,100,\n" + // bad side
		"T4,ABC,,2024-01-15,BUY,0,100,\n" + // zero qty
		",ABC,,2024-01-15,BUY,10,100,\n" // empty trade_id

	result, err := NewParser(10, 1).ParseTradebook(context.Background(), strings.NewReader(csvData))
	require.NoError(t, err)
	assert.Len(t, result.Trades, 1)
	assert.Len(t, result.Errors, 4)
}

func TestParseDailyCharges(t *testing.T) {
	csvData := "charge_date,total_brokerage,total_taxes,total_other_charges,net_total_paid\n" +
		"2024-01-15,20.00,11.50,3.25,15034.75\n" +
		"2024-01-16,5,,1,\n" +
		"bad-date,1,1,1,\n"

	charges, rowErrs, err := NewParser(10, 1).ParseDailyCharges(strings.NewReader(csvData))
	require.NoError(t, err)
	require.Len(t, charges, 2)
	assert.Len(t, rowErrs, 1)

	assert.InDelta(t, 34.75, charges[0].Total(), 1e-9)
	assert.InDelta(t, 6.0, charges[1].Total(), 1e-9)
}

func TestParseCorporateActions(t *testing.T) {
	csvData := "symbol,action_type,effective_date,ratio_from,ratio_to,is_active\n" +
		"INFY,split,2024-02-01,1,2,true\n" +
		"TCS,SPLIT,2024-03-01,5,1,0\n" +
		",SPLIT,2024-03-01,1,2,true\n"

	actions, rowErrs, err := NewParser(10, 1).ParseCorporateActions(strings.NewReader(csvData))
	require.NoError(t, err)
	require.Len(t, actions, 2)
	assert.Len(t, rowErrs, 1)

	assert.Equal(t, "INFY", actions[0].Symbol)
	assert.Equal(t, domain.ActionSplit, actions[0].ActionType)
	assert.True(t, actions[0].Active)
	assert.False(t, actions[1].Active)
}

func TestParseMoneyFormats(t *testing.T) {
	cases := map[string]float64{
		"1500.50":   1500.50,
		"1,500.50":  1500.50,
		"₹1,500.50": 1500.50,
		"-42.1":     -42.1,
	}
	for in, want := range cases {
		got, err := parseMoney(in)
		require.NoError(t, err, "input %q", in)
		assert.InDelta(t, want, got, 1e-9, "input %q", in)
	}

	_, err := parseMoney("abc")
	assert.Error(t, err)
}

func BenchmarkParseTradebook(b *testing.B) {
	csvData := generateTestCSV(100000)

	benchmarks := []struct {
		name      string
		batchSize int
		workers   int
	}{
		{"SingleWorker", 1000, 1},
		{"FourWorkers", 1000, 4},
		{"EightWorkers", 1000, 8},
		{"LargeBatch", 10000, 4},
	}

	for _, bm := range benchmarks {
		b.Run(bm.name, func(b *testing.B) {
			parser := NewParser(bm.batchSize, bm.workers)

			b.ResetTimer()
			b.ReportAllocs()

			for i := 0; i < b.N; i++ {
				reader := bytes.NewReader([]byte(csvData))

				_, err := parser.ParseTradebook(context.Background(), reader)
				if err != nil {
					b.Fatal(err)
				}
			}
		})
	}
}

func generateTestCSV(lines int) string {
	var sb strings.Builder
	sb.WriteString(tradebookHeader)

	tickers := []string{"INFY", "TCS", "HDFCBANK", "RELIANCE"}

	for i := 0; i < lines; i++ {
		side := "BUY"
		if i%3 == 0 {
			side = "SELL"
		}
		sb.WriteString(fmt.Sprintf(
			"T%d,%s,,2024-01-%02d,%s,%d,%.2f,\n",
			i, tickers[i%len(tickers)], 1+i%28, side, 1+i%500, float64(100+i%900),
		))
	}

	return sb.String()
}

func sortedTradeIDs(trades []domain.Trade) []string {
	ids := make([]string, 0, len(trades))
	for _, t := range trades {
		ids = append(ids, t.TradeID)
	}
	sort.Strings(ids)
	return ids
}

func TestParseTradebookParallelIsComplete(t *testing.T) {
	csvData := generateTestCSV(5000)

	result, err := NewParser(250, 8).ParseTradebook(context.Background(), strings.NewReader(csvData))
	require.NoError(t, err)
	assert.Empty(t, result.Errors)
	assert.Len(t, sortedTradeIDs(result.Trades), 5000)
}
