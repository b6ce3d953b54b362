package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/tradefolio/tradefolio/internal/config"
	"github.com/tradefolio/tradefolio/internal/domain"
	"github.com/tradefolio/tradefolio/internal/ingestion"
	"github.com/tradefolio/tradefolio/internal/service"
	"github.com/tradefolio/tradefolio/internal/storage/cache"
	"github.com/tradefolio/tradefolio/internal/storage/postgres"
	pkglogger "github.com/tradefolio/tradefolio/pkg/logger"
)

func main() {
	var rootCmd = &cobra.Command{
		Use:   "tradefolio",
		Short: "Tradefolio CLI",
		Long: `CLI for the tradefolio capital-gains engine.
Loads tradebook data, inspects holdings and realized gains, and runs
tax reports from the command line.`,
	}

	var loadCmd = &cobra.Command{
		Use:   "load",
		Short: "Load CSV files into the database",
		Long: `Loads tradebook, daily-charge and corporate-action CSV files.
Pass any combination of --tradebook, --charges and --actions;
--dry-run parses and summarizes without writing.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			tradebook, _ := cmd.Flags().GetString("tradebook")
			charges, _ := cmd.Flags().GetString("charges")
			actions, _ := cmd.Flags().GetString("actions")
			dryRun, _ := cmd.Flags().GetBool("dry-run")
			return loadFiles(tradebook, charges, actions, dryRun)
		},
	}
	loadCmd.Flags().StringP("tradebook", "t", "", "Tradebook CSV file")
	loadCmd.Flags().StringP("charges", "c", "", "Daily charges CSV file")
	loadCmd.Flags().StringP("actions", "a", "", "Corporate actions CSV file")
	loadCmd.Flags().Bool("dry-run", false, "Parse and summarize without writing")

	var holdingsCmd = &cobra.Command{
		Use:   "holdings",
		Short: "Show open holdings per symbol",
		RunE: func(cmd *cobra.Command, args []string) error {
			asOf, _ := cmd.Flags().GetString("as-of")
			return showHoldings(asOf)
		},
	}
	holdingsCmd.Flags().StringP("as-of", "d", "", "Compute holdings as of this date (YYYY-MM-DD)")

	var realizedCmd = &cobra.Command{
		Use:   "realized",
		Short: "Show FIFO realized gains",
		RunE: func(cmd *cobra.Command, args []string) error {
			fy, _ := cmd.Flags().GetString("fy")
			return showRealized(fy)
		},
	}
	realizedCmd.Flags().String("fy", "", "Filter to one fiscal year (e.g. FY2025)")

	var unmatchedCmd = &cobra.Command{
		Use:   "unmatched",
		Short: "Show sells that exceed known lot history",
		RunE: func(cmd *cobra.Command, args []string) error {
			return showUnmatched()
		},
	}

	var taxCmd = &cobra.Command{
		Use:   "tax",
		Short: "Compute a capital-gains tax report",
		RunE: func(cmd *cobra.Command, args []string) error {
			country, _ := cmd.Flags().GetString("country")
			year, _ := cmd.Flags().GetInt("year")
			method, _ := cmd.Flags().GetString("method")
			carryforward, _ := cmd.Flags().GetFloat64("carryforward")
			rows, _ := cmd.Flags().GetBool("rows")
			return runTaxReport(country, year, method, carryforward, rows)
		},
	}
	taxCmd.Flags().String("country", "FI", "Country code of the calculator")
	taxCmd.Flags().Int("year", time.Now().Year()-1, "Tax year")
	taxCmd.Flags().String("method", "", "actual, deemed or auto_best_per_sale (default)")
	taxCmd.Flags().Float64("carryforward", 0, "Prior-year loss carryforward")
	taxCmd.Flags().Bool("rows", false, "Include per-sale rows in the output")

	var healthCmd = &cobra.Command{
		Use:   "health",
		Short: "Check database and cache connectivity",
		RunE: func(cmd *cobra.Command, args []string) error {
			return checkHealth()
		},
	}

	rootCmd.AddCommand(loadCmd, holdingsCmd, realizedCmd, unmatchedCmd, taxCmd, healthCmd)

	if err := rootCmd.Execute(); err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
}

func connect(cfg *config.Config) (*postgres.DB, error) {
	db, err := postgres.NewDB(cfg)
	if err != nil {
		return nil, fmt.Errorf("connect to database: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := db.Bootstrap(ctx); err != nil {
		db.Close()
		return nil, err
	}
	return db, nil
}

func setup() (*config.Config, *postgres.DB, error) {
	cfg := config.Load()
	if err := pkglogger.Init(cfg.LogLevel, cfg.LogFormat); err != nil {
		return nil, nil, err
	}
	db, err := connect(cfg)
	if err != nil {
		return nil, nil, err
	}
	return cfg, db, nil
}

func loadFiles(tradebook, charges, actions string, dryRun bool) error {
	if tradebook == "" && charges == "" && actions == "" {
		return fmt.Errorf("nothing to load: pass --tradebook, --charges or --actions")
	}

	cfg, db, err := setup()
	if err != nil {
		return err
	}
	defer db.Close()

	parser := ingestion.NewParser(cfg.BatchSize, cfg.Workers)
	loader := ingestion.NewBulkLoader(db.Pool(), cfg.BatchSize)
	svc := service.NewIngestionService(parser, loader, nil)

	ctx := context.Background()

	type loadStep struct {
		path string
		fn   func(context.Context, *os.File, bool) (*service.IngestSummary, error)
	}
	steps := []loadStep{
		{tradebook, func(ctx context.Context, f *os.File, dry bool) (*service.IngestSummary, error) {
			return svc.IngestTradebook(ctx, f, dry)
		}},
		{charges, func(ctx context.Context, f *os.File, dry bool) (*service.IngestSummary, error) {
			return svc.IngestDailyCharges(ctx, f, dry)
		}},
		{actions, func(ctx context.Context, f *os.File, dry bool) (*service.IngestSummary, error) {
			return svc.IngestCorporateActions(ctx, f, dry)
		}},
	}

	for _, step := range steps {
		if step.path == "" {
			continue
		}
		f, err := os.Open(step.path)
		if err != nil {
			return err
		}
		summary, err := step.fn(ctx, f, dryRun)
		f.Close()
		if err != nil {
			return fmt.Errorf("load %s: %w", step.path, err)
		}
		printSummary(step.path, summary)
	}
	return nil
}

func printSummary(path string, s *service.IngestSummary) {
	mode := "loaded"
	if s.DryRun {
		mode = "previewed"
	}
	fmt.Printf("%s %s: %d rows parsed, %d written, %d row errors\n",
		mode, path, s.ParsedCount, s.LoadedCount, len(s.RowErrors))
	for _, w := range s.Warnings {
		fmt.Printf("  warning: %s\n", w)
	}
	for _, e := range s.RowErrors {
		fmt.Printf("  row error: %s\n", e)
	}
}

func showHoldings(asOfStr string) error {
	cfg, db, err := setup()
	if err != nil {
		return err
	}
	defer db.Close()

	var asOf *time.Time
	if asOfStr != "" {
		parsed, err := time.Parse("2006-01-02", asOfStr)
		if err != nil {
			return fmt.Errorf("invalid --as-of date: %w", err)
		}
		asOf = &parsed
	}

	svc := service.NewPortfolioService(db, nil, nil, cfg.PriceTTL)
	holdings, skipped, err := svc.Holdings(context.Background(), asOf)
	if err != nil {
		return err
	}

	if len(holdings) == 0 {
		fmt.Println("no open holdings")
		return nil
	}

	fmt.Printf("%-12s %12s %12s %14s\n", "SYMBOL", "QTY", "AVG PRICE", "INVESTED")
	for _, h := range holdings {
		fmt.Printf("%-12s %12.4f %12.4f %14.2f\n",
			h.Symbol, h.Quantity, h.AvgPrice, h.Quantity*h.AvgPrice)
	}
	for _, sk := range skipped {
		fmt.Printf("skipped action %s %s: %s\n",
			sk.Action.Symbol, sk.Action.EffectiveDate.Format("2006-01-02"), sk.Reason)
	}
	return nil
}

func showRealized(fy string) error {
	cfg, db, err := setup()
	if err != nil {
		return err
	}
	defer db.Close()

	svc := service.NewPortfolioService(db, nil, nil, cfg.PriceTTL)
	realized, err := svc.Realized(context.Background(), fy)
	if err != nil {
		return err
	}

	if len(realized) == 0 {
		fmt.Println("no realized gains")
		return nil
	}

	var total float64
	fmt.Printf("%-12s %-12s %12s %12s %12s %14s\n",
		"SYMBOL", "SELL DATE", "QTY", "SELL PRICE", "AVG BUY", "PNL")
	for _, g := range realized {
		total += g.RealizedPnL
		fmt.Printf("%-12s %-12s %12.4f %12.4f %12.4f %14.2f\n",
			g.Symbol, g.SellDate.Format("2006-01-02"),
			g.SellQty, g.SellPrice, g.AvgBuyPrice, g.RealizedPnL)
	}
	fmt.Printf("\ntotal realized PnL: %.2f\n", total)
	return nil
}

func showUnmatched() error {
	cfg, db, err := setup()
	if err != nil {
		return err
	}
	defer db.Close()

	svc := service.NewPortfolioService(db, nil, nil, cfg.PriceTTL)
	unmatched, err := svc.Unmatched(context.Background())
	if err != nil {
		return err
	}

	if len(unmatched) == 0 {
		fmt.Println("no unmatched sells")
		return nil
	}
	for _, u := range unmatched {
		fmt.Printf("%s %s: sold %.4f, %.4f not covered by known history\n",
			u.Symbol, u.SellDate.Format("2006-01-02"), u.SellQty, u.UnmatchedQty)
	}
	return nil
}

func runTaxReport(country string, year int, method string, carryforward float64, rows bool) error {
	cfg, db, err := setup()
	if err != nil {
		return err
	}
	defer db.Close()

	mode, err := domain.ParseMethodMode(method)
	if err != nil {
		return err
	}

	svc := service.NewTaxService(db, nil, cfg.TaxReportTTL)
	report, err := svc.Report(context.Background(), domain.TaxReportRequest{
		CountryCode:           country,
		TaxYear:               year,
		MethodMode:            mode,
		PriorLossCarryforward: carryforward,
		IncludeRows:           rows,
	})
	if err != nil {
		return err
	}

	out, err := json.MarshalIndent(report, "", "  ")
	if err != nil {
		return err
	}
	fmt.Println(string(out))
	return nil
}

func checkHealth() error {
	cfg := config.Load()
	ctx := context.Background()

	fmt.Print("PostgreSQL: ")
	db, err := postgres.NewDB(cfg)
	if err != nil {
		fmt.Printf("error: %v\n", err)
	} else {
		defer db.Close()
		if err := db.HealthCheck(ctx); err != nil {
			fmt.Printf("error: %v\n", err)
		} else {
			fmt.Println("ok")
		}
	}

	fmt.Print("Redis: ")
	redisCache, err := cache.NewRedisCache(cfg)
	if err != nil {
		fmt.Printf("unavailable: %v\n", err)
		return nil
	}
	defer redisCache.Close()
	if err := redisCache.HealthCheck(ctx); err != nil {
		fmt.Printf("error: %v\n", err)
	} else {
		fmt.Println("ok")
	}
	return nil
}
