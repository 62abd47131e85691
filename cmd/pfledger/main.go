package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"time"

	"pfledger/internal/config"
	"pfledger/internal/database"
	"pfledger/internal/logger"
	"pfledger/internal/parser"
	"pfledger/internal/services"
)

const usage = `usage: pfledger <command> [args]

commands:
  import <file...>          import statement files (flags: -account, -override)
  categorize                run a categorization pass
  transfers                 run a transfer reconciliation pass
  aggregate <year> <month>  print monthly category totals
  snapshot [date]           compute the net worth snapshot (default: today)
  mortgage <account-id>     reconcile a mortgage against reported payments
  rules export              print the rule set as JSON
  rules import <file>       load a rule set (flag: -replace)
`

func main() {
	logger.Init(os.Getenv("ENV"))
	defer logger.Sync()

	if err := run(); err != nil {
		logger.Get().Fatalf("Fatal error: %v", err)
	}
}

// app wires the full service graph once; every subcommand runs against it.
type app struct {
	cfg         *config.Config
	importer    services.ImporterServicer
	categorizer services.CategorizerServicer
	transfers   services.TransferServicer
	mortgages   services.MortgageServicer
	aggregation services.AggregationServicer
	reports     services.ReportServicer
}

func run() error {
	if len(os.Args) < 2 {
		fmt.Fprint(os.Stderr, usage)
		return fmt.Errorf("no command given")
	}

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	dbManager, err := database.NewManager(cfg.DBPath)
	if err != nil {
		return fmt.Errorf("failed to create database manager: %w", err)
	}
	if err := dbManager.RunMigrations(); err != nil {
		return fmt.Errorf("failed to run database migrations: %w", err)
	}
	db := dbManager.DB()
	if err := database.Seed(db); err != nil {
		return fmt.Errorf("failed to seed database: %w", err)
	}

	audit := services.NewAuditService(db)
	normalizer := services.NewNormalizerService()
	prices := services.NewPriceService(db)
	mortgages := services.NewMortgageService(db, cfg.MortgageToleranceCents)
	aggregation := services.NewAggregationService(db, mortgages, prices)

	a := &app{
		cfg:         cfg,
		importer:    services.NewImporterService(db, normalizer, audit),
		categorizer: services.NewCategorizerService(db, audit),
		transfers:   services.NewTransferService(db, cfg.TransferWindowDays, cfg.TransferToleranceCents),
		mortgages:   mortgages,
		aggregation: aggregation,
		reports:     services.NewReportService(db, aggregation, mortgages, cfg.BaseCurrency),
	}

	command := os.Args[1]
	args := os.Args[2:]

	switch command {
	case "import":
		return a.cmdImport(args)
	case "categorize":
		return a.cmdCategorize()
	case "transfers":
		return a.cmdTransfers()
	case "aggregate":
		return a.cmdAggregate(args)
	case "snapshot":
		return a.cmdSnapshot(args)
	case "mortgage":
		return a.cmdMortgage(args)
	case "rules":
		return a.cmdRules(args)
	default:
		fmt.Fprint(os.Stderr, usage)
		return fmt.Errorf("unknown command: %s", command)
	}
}

func (a *app) cmdImport(args []string) error {
	fs := flag.NewFlagSet("import", flag.ExitOnError)
	accountHint := fs.String("account", "", "account ID to attribute the statements to")
	override := fs.Bool("override", false, "re-import statements already seen")
	if err := fs.Parse(args); err != nil {
		return err
	}
	paths := fs.Args()
	if len(paths) == 0 {
		return fmt.Errorf("import: no files given")
	}

	files := make([]services.FileImport, 0, len(paths))
	for _, path := range paths {
		data, err := os.ReadFile(path)
		if err != nil {
			return fmt.Errorf("import: %w", err)
		}
		files = append(files, services.FileImport{
			Path:  path,
			Bytes: data,
			Options: services.ImportOptions{
				AccountHint: *accountHint,
				Override:    *override,
			},
		})
	}

	batch := a.importer.ImportBatch(files, &parser.JSONFilePlugin{})
	for _, r := range batch.Results {
		if r.Err != nil {
			fmt.Printf("%s: FAILED: %v\n", r.SourcePath, r.Err)
			continue
		}
		fmt.Printf("%s: %d new, %d duplicate\n", r.SourcePath, r.TransactionsNew, r.TransactionsDuplicate)
	}
	fmt.Printf("imported %d of %d files\n", batch.Succeeded, len(files))
	if batch.Failed > 0 {
		return fmt.Errorf("%d file(s) failed", batch.Failed)
	}
	return nil
}

func (a *app) cmdCategorize() error {
	report, err := a.categorizer.CategorizeAll()
	if err != nil {
		return err
	}
	fmt.Printf("evaluated %d, matched %d, uncategorized %d, changed %d, manual skipped %d\n",
		report.Evaluated, report.Matched, report.Uncategorized, report.Changed, report.SkippedManual)
	return nil
}

func (a *app) cmdTransfers() error {
	report, err := a.transfers.Reconcile()
	if err != nil {
		return err
	}
	fmt.Printf("examined %d, new pairs %d, existing pairs %d\n",
		report.Examined, report.NewPairs, report.ExistingPairs)
	return nil
}

func (a *app) cmdAggregate(args []string) error {
	if len(args) < 2 {
		return fmt.Errorf("usage: pfledger aggregate <year> <month>")
	}
	var year, month int
	if _, err := fmt.Sscanf(args[0], "%d", &year); err != nil {
		return fmt.Errorf("invalid year: %s", args[0])
	}
	if _, err := fmt.Sscanf(args[1], "%d", &month); err != nil || month < 1 || month > 12 {
		return fmt.Errorf("invalid month: %s", args[1])
	}

	report, err := a.reports.MonthlyReport(year, time.Month(month))
	if err != nil {
		return err
	}
	for _, t := range report.Totals {
		fmt.Printf("%-24s %s\n", t.CategoryName, report.Formatted[t.CategoryName])
	}
	fmt.Printf("net: %d cents (income %d, expense %d)\n",
		report.NetCents, report.IncomeCents, report.ExpenseCents)
	return nil
}

func (a *app) cmdSnapshot(args []string) error {
	asOf := time.Now()
	if len(args) > 0 {
		parsed, err := time.Parse("2006-01-02", args[0])
		if err != nil {
			return fmt.Errorf("invalid date %q, expected YYYY-MM-DD", args[0])
		}
		asOf = parsed
	}

	snapshot, err := a.aggregation.ComputeNetWorthSnapshot(asOf)
	if err != nil {
		return err
	}
	fmt.Printf("%s: assets %d, liabilities %d, net worth %d\n",
		snapshot.AsOf.Format("2006-01-02"),
		snapshot.AssetsCents, snapshot.LiabilitiesCents, snapshot.NetWorthCents)
	return nil
}

func (a *app) cmdMortgage(args []string) error {
	if len(args) < 1 {
		return fmt.Errorf("usage: pfledger mortgage <account-id>")
	}
	mortgage, err := a.mortgages.GetMortgageByAccount(args[0])
	if err != nil {
		return err
	}

	status, err := a.reports.MortgageStatus(mortgage.ID)
	if err != nil {
		return err
	}
	fmt.Printf("%s: balance %s, next due %s, %d payments reported\n",
		status.Lender, status.BalanceFormatted,
		status.NextDueDate.Format("2006-01-02"), status.PaymentsReported)

	discrepancies, err := a.mortgages.Reconcile(mortgage.ID)
	if err != nil {
		return err
	}
	for _, d := range discrepancies {
		fmt.Printf("%s %s: expected %d, reported %d (delta %d)\n",
			d.DueDate.Format("2006-01-02"), d.Field,
			d.ExpectedCents, d.ReportedCents, d.DeltaCents)
	}
	if len(discrepancies) == 0 {
		fmt.Println("schedule matches reported payments")
	}
	return nil
}

func (a *app) cmdRules(args []string) error {
	if len(args) < 1 {
		return fmt.Errorf("usage: pfledger rules <export|import> [file]")
	}

	switch args[0] {
	case "export":
		rules, err := a.categorizer.ExportRules()
		if err != nil {
			return err
		}
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(rules)

	case "import":
		fs := flag.NewFlagSet("rules import", flag.ExitOnError)
		replace := fs.Bool("replace", false, "drop existing rules first")
		if err := fs.Parse(args[1:]); err != nil {
			return err
		}
		if fs.NArg() < 1 {
			return fmt.Errorf("usage: pfledger rules import [-replace] <file>")
		}
		data, err := os.ReadFile(fs.Arg(0))
		if err != nil {
			return err
		}
		var rules []services.RuleExport
		if err := json.Unmarshal(data, &rules); err != nil {
			return fmt.Errorf("invalid rule document: %w", err)
		}
		imported, err := a.categorizer.ImportRules(rules, *replace)
		if err != nil {
			return err
		}
		fmt.Printf("imported %d rule(s)\n", imported)
		return nil

	default:
		return fmt.Errorf("unknown rules command: %s (use export or import)", args[0])
	}
}
