package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/mmdatafocus/cash_reconciliation/config"
	"github.com/mmdatafocus/cash_reconciliation/models"
	"github.com/mmdatafocus/cash_reconciliation/utils"
	"github.com/mmdatafocus/cash_reconciliation/workflow"
)

func main() {
	from := flag.String("from", "", "Start date (YYYY-MM-DD), inclusive.")
	to := flag.String("to", "", "End date (YYYY-MM-DD), inclusive. Defaults to -from.")
	storeID := flag.String("store-id", "", "Optional: reconcile only one store. If empty, reconciles every store.")
	concurrency := flag.Int("concurrency", 0, "Dates processed at once (default RECON_RANGE_CONCURRENCY).")
	skipMigrate := flag.Bool("skip-migrate", false, "Do not run AutoMigrate before reconciling.")
	flag.Parse()

	if strings.TrimSpace(*from) == "" {
		fmt.Fprintln(os.Stderr, "-from is required")
		os.Exit(2)
	}
	if strings.TrimSpace(*to) == "" {
		*to = *from
	}
	start, err := utils.ParseDate(*from)
	if err != nil {
		fmt.Fprintf(os.Stderr, "invalid -from: %v\n", err)
		os.Exit(2)
	}
	end, err := utils.ParseDate(*to)
	if err != nil {
		fmt.Fprintf(os.Stderr, "invalid -to: %v\n", err)
		os.Exit(2)
	}

	opts := config.ReconciliationOptionsFromEnv()
	if *concurrency > 0 {
		opts.RangeConcurrency = *concurrency
	}
	if err := workflow.ValidateRange(start, end, opts.MaxRangeDays); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	config.ConnectDatabaseWithRetry()
	db := config.GetDB()
	if db == nil {
		fmt.Fprintln(os.Stderr, "database not initialized (config.GetDB returned nil)")
		os.Exit(1)
	}
	if !*skipMigrate {
		if err := models.MigrateTable(db); err != nil {
			fmt.Fprintf(os.Stderr, "migrate: %v\n", err)
			os.Exit(1)
		}
	}

	ctx = utils.SetUsernameInContext(ctx, "ReconcileBackfill")
	ctx = utils.SetSkipStoreScopeInContext(ctx, true)

	store := strings.TrimSpace(*storeID)
	fmt.Printf("Reconciling from=%s to=%s store=%q concurrency=%d policy=%s\n",
		utils.FormatDate(start), utils.FormatDate(end), store, opts.RangeConcurrency, opts.ClaimPolicy)

	r := workflow.NewGormReconciler(db, config.GetLogger(), opts)
	result, err := r.ReconcileRange(ctx, start, end, store)
	if result != nil {
		for _, d := range result.Days {
			fmt.Printf("%s run=%s reconciled=%d matched=%d over=%d under=%d unaccounted=%d high_priority=%d ambiguous=%d\n",
				utils.FormatDate(d.Date), d.RunId, d.Summary.Reconciled, d.Summary.Matched,
				d.Summary.OverCollection, d.Summary.UnderCollection, d.Summary.Unaccounted,
				d.Summary.HighPriority, d.Summary.AmbiguousClaims)
		}
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "reconcile failed: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("Done: %d days, %d records, %d high priority\n", len(result.Days), len(result.Records), result.Summary.HighPriority)
}
