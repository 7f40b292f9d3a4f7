package main

import (
	"context"
	"fmt"
	"time"

	"github.com/matsen/funnelvision/internal/config"
	"github.com/matsen/funnelvision/internal/deal"
	"github.com/matsen/funnelvision/internal/funnel"
	"github.com/matsen/funnelvision/internal/storage"
	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"
)

var (
	dealsStart  string
	dealsEnd    string
	dealsTarget string
	dealsDB     string
)

var dealsCmd = &cobra.Command{
	Use:   "deals",
	Short: "Inspect and manage deals",
	Long: `Run the bot's deal queries directly and manage the local deal store.

The local store is a SQLite database rebuilt from a JSONL file, one deal per
line:
  {"id":"1","name":"Acme","stage":"947645674","amount":"120000","close_date":"2025-05-31","last_modified":"2025-01-10T09:00:00Z"}

Set deal_source: sqlite in the settings file to have the bot read from it.`,
}

var dealsImportCmd = &cobra.Command{
	Use:   "import <file.jsonl>",
	Short: "Rebuild the local deal store from a JSONL file",
	Args:  cobra.ExactArgs(1),
	Run:   runDealsImport,
}

var dealsPullCmd = &cobra.Command{
	Use:   "pull <file.jsonl>",
	Short: "Snapshot open HubSpot deals into a JSONL file",
	Args:  cobra.ExactArgs(1),
	Run:   runDealsPull,
}

var dealsSearchCmd = &cobra.Command{
	Use:   "search",
	Short: "Run the open-pipeline query",
	Long: `Run the open-pipeline query: open stages, amount > 0 and, when --start and
--end are given, a close date within that range. With --target the coverage
ratio is computed as well.

Examples:
  fv deals search --start 2025-04-01 --end 2025-06-30 --target 500000
  fv deals search --human`,
	Args: cobra.NoArgs,
	Run:  runDealsSearch,
}

var dealsStaleCmd = &cobra.Command{
	Use:   "stale",
	Short: "List open deals not modified in the last 30 days",
	Args:  cobra.NoArgs,
	Run:   runDealsStale,
}

func init() {
	dealsCmd.PersistentFlags().StringVar(&dealsDB, "db", "", "SQLite deal store path (default: deal_db setting)")
	dealsSearchCmd.Flags().StringVar(&dealsStart, "start", "", "Close date range start (YYYY-MM-DD)")
	dealsSearchCmd.Flags().StringVar(&dealsEnd, "end", "", "Close date range end (YYYY-MM-DD)")
	dealsSearchCmd.Flags().StringVar(&dealsTarget, "target", "", "Revenue target for the coverage ratio")

	dealsCmd.AddCommand(dealsImportCmd, dealsPullCmd, dealsSearchCmd, dealsStaleCmd)
	rootCmd.AddCommand(dealsCmd)
}

func dealDBPath(cfg *config.Config) string {
	if dealsDB != "" {
		return config.ExpandPath(dealsDB)
	}
	return cfg.Settings.DealDB
}

// mustOpenDeals opens the deal source, honoring --db as an sqlite override.
func mustOpenDeals(cfg *config.Config) (deal.Searcher, func() error) {
	if dealsDB != "" {
		cfg.Settings.DealSource = config.SourceSQLite
		cfg.Settings.DealDB = dealDBPath(cfg)
	}
	if err := cfg.ValidateDeals(); err != nil {
		exitWithError(ExitConfigError, "%v", err)
	}
	deals, closeDeals, err := openDeals(cfg)
	if err != nil {
		exitWithError(ExitDataError, "opening deal source: %v", err)
	}
	return deals, closeDeals
}

func runDealsImport(cmd *cobra.Command, args []string) {
	cfg := mustLoadConfig(nil)
	path := dealDBPath(cfg)

	db, err := storage.OpenDB(path)
	if err != nil {
		exitWithError(ExitDataError, "opening deal store: %v", err)
	}
	defer db.Close()

	count, err := db.RebuildFromJSONL(args[0])
	if err != nil {
		exitWithError(ExitDataError, "importing deals: %v", err)
	}

	if humanOutput {
		outputHuman("Imported %d deals into %s\n", count, path)
	} else {
		outputJSON(ImportResponse{Status: "imported", Count: count, Path: path})
	}
}

func runDealsPull(cmd *cobra.Command, args []string) {
	cfg := mustLoadConfig(nil)
	if cfg.HubSpotAPIKey == "" {
		exitWithError(ExitConfigError, "%s is not set", config.EnvHubSpotAPIKey)
	}
	client, err := newHubSpot(cfg)
	if err != nil {
		exitWithError(ExitConfigError, "%v", err)
	}

	f := deal.CoverageQuery(cfg.Settings.Policy(), nil)
	deals, err := client.Search(context.Background(), f)
	if err != nil {
		exitWithError(exitCodeFor(err), "searching HubSpot: %v", err)
	}
	if err := storage.WriteAll(args[0], deals); err != nil {
		exitWithError(ExitDataError, "writing deals: %v", err)
	}

	if humanOutput {
		outputHuman("Wrote %d open deals to %s\n", len(deals), args[0])
	} else {
		outputJSON(ImportResponse{Status: "pulled", Count: len(deals), Path: args[0]})
	}
}

func runDealsSearch(cmd *cobra.Command, args []string) {
	var tf *deal.DateRange
	if dealsStart != "" || dealsEnd != "" {
		r, err := deal.ParseDateRange(dealsStart, dealsEnd)
		if err != nil {
			exitWithError(ExitError, "%v", err)
		}
		tf = &r
	}
	var target *decimal.Decimal
	if dealsTarget != "" {
		t, err := decimal.NewFromString(dealsTarget)
		if err != nil || t.IsNegative() {
			exitWithError(ExitError, "invalid --target %q", dealsTarget)
		}
		target = &t
	}

	cfg := mustLoadConfig(nil)
	searcher, closeDeals := mustOpenDeals(cfg)
	defer closeDeals()

	f := deal.CoverageQuery(cfg.Settings.Policy(), tf)
	deals, err := searcher.Search(context.Background(), f)
	if err != nil {
		exitWithError(exitCodeFor(err), "searching deals: %v", err)
	}

	resp := DealsResponse{Filter: f, Deals: deals}
	if target != nil {
		cov := deal.ComputeCoverage(*target, deals)
		resp.Coverage = &cov
	}

	if !humanOutput {
		outputJSON(resp)
		return
	}

	currency := cfg.Settings.Currency
	for _, d := range deals {
		closeDate := "-"
		if !d.CloseDate.IsZero() {
			closeDate = d.CloseDate.Format(deal.DateLayout)
		}
		outputHuman("%-40s %-22s %14s  %s\n",
			truncateString(d.Name, 40),
			cfg.Settings.OpenStages.Label(d.Stage),
			funnel.FormatMoney(d.Amount, currency),
			closeDate)
	}
	if resp.Coverage != nil {
		label := "any time"
		if tf != nil {
			label = tf.String()
		}
		fmt.Println()
		fmt.Println(funnel.CoverageSummary(*resp.Coverage, label, currency))
	} else {
		outputHuman("\n%d deals\n", len(deals))
	}
}

func runDealsStale(cmd *cobra.Command, args []string) {
	cfg := mustLoadConfig(nil)
	searcher, closeDeals := mustOpenDeals(cfg)
	defer closeDeals()

	now := time.Now()
	f := deal.StaleQuery(cfg.Settings.Policy(), now)
	deals, err := searcher.Search(context.Background(), f)
	if err != nil {
		exitWithError(exitCodeFor(err), "searching deals: %v", err)
	}

	if humanOutput {
		fmt.Println(funnel.StaleDealList(deals, cfg.Settings.OpenStages, cfg.Settings.Currency, now))
	} else {
		outputJSON(DealsResponse{Filter: f, Deals: deals})
	}
}
