package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"time"

	"customer-rfm/config"
	"customer-rfm/ingest"
	"customer-rfm/models"
	"customer-rfm/services"
	"customer-rfm/storage"
	"customer-rfm/utils"
)

func main() {
	mode := flag.String("mode", "full", "full | incremental | analyze")
	ordersPath := flag.String("orders", "", "order-report file (overrides ORDERS_PATH)")
	billingPath := flag.String("billing", "", "billing-detail file (overrides BILLING_PATH)")
	exportPath := flag.String("out", "", "export CSV path (overrides EXPORT_PATH)")
	search := flag.String("search", "", "comma-separated terms: monetary counts only matching line items")
	refDate := flag.String("ref", "", "reference date YYYY-MM-DD for recency (default: today)")
	flag.Parse()

	logger := utils.NewLogger()
	cfg := config.Load()
	if *ordersPath != "" {
		cfg.OrdersPath = *ordersPath
	}
	if *billingPath != "" {
		cfg.BillingPath = *billingPath
	}
	if *exportPath != "" {
		cfg.ExportPath = *exportPath
	}

	ref := time.Now()
	if *refDate != "" {
		t, err := time.Parse("2006-01-02", *refDate)
		if err != nil {
			logger.Error("Invalid -ref date %q (want YYYY-MM-DD): %v", *refDate, err)
			os.Exit(2)
		}
		ref = t
	}
	terms := splitTerms(*search)

	logger.Info("=== Customer RFM pipeline starting (mode: %s) ===", *mode)
	logger.Info("Config — batch: %d docs | batch delay: %dms | concurrency: %d",
		cfg.BatchSize, cfg.BatchDelayMs, cfg.MaxConcurrency)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	store, err := storage.NewPostgresStore(cfg.DSN(), logger, cfg.BatchSize, cfg.BatchDelayMs)
	if err != nil {
		logger.Error("Failed to connect to PostgreSQL: %v", err)
		logger.Error("Make sure Docker is running: docker compose up -d")
		os.Exit(1)
	}
	defer store.Close()

	engine := services.NewRFMEngine(logger, cfg.MaxConcurrency)

	var orders []*models.Order
	switch *mode {
	case "full":
		res, err := ingestAndJoin(cfg, logger, nil)
		if err != nil {
			logger.Error("Ingest failed: %v", err)
			os.Exit(1)
		}
		orders = res.Orders

		written, err := store.SaveAll(ctx, orders)
		if err != nil {
			logPersistenceFailure(logger, err, written)
		}

	case "incremental":
		cutoffAt, ok, err := store.LatestOrderDate(ctx)
		var cutoff *time.Time
		if err != nil {
			logger.Error("Failed to read sync state: %v", err)
			os.Exit(1)
		}
		if ok {
			cutoff = &cutoffAt
			logger.Info("Incremental upload — keeping orders after %s", cutoffAt.Format("2006-01-02 15:04"))
		} else {
			logger.Info("Store is empty — incremental upload will take the whole file")
		}

		res, err := ingestAndJoin(cfg, logger, cutoff)
		if err != nil {
			logger.Error("Ingest failed: %v", err)
			os.Exit(1)
		}

		added, err := store.SaveIncremental(ctx, res.Orders)
		if err != nil {
			logPersistenceFailure(logger, err, added)
		}

		orders, err = store.LoadOrders(ctx)
		if err != nil {
			logger.Error("Failed to load persisted orders, analyzing this upload only: %v", err)
			orders = res.Orders
		}

	case "analyze":
		orders, err = store.LoadOrders(ctx)
		if err != nil {
			logger.Error("Failed to load persisted orders: %v", err)
			os.Exit(1)
		}

	default:
		logger.Error("Unknown mode %q (want full, incremental or analyze)", *mode)
		os.Exit(2)
	}

	if len(orders) == 0 {
		logger.Warn("No orders to analyze")
	}

	customers := storage.GroupOrders(orders)
	logger.Info("Analyzing %d orders across %d customers", len(orders), len(customers))

	result := engine.Analyze(customers, ref, terms)
	engine.PrintSummary(result)

	writer, err := storage.NewCSVReportWriter(cfg.ExportPath)
	if err != nil {
		logger.Error("Failed to create export file: %v", err)
		os.Exit(1)
	}
	defer writer.Close()

	if err := writer.WriteReport(result.Profiles); err != nil {
		logger.Error("Export failed: %v", err)
	} else {
		logger.Info("RFM export saved to %s", cfg.ExportPath)
	}

	fmt.Printf("  Done. %d customers segmented → %s\n\n", result.TotalCustomers, cfg.ExportPath)
}

// ingestAndJoin reads and cleans both input files concurrently — the two
// schemas are independent until the join — then joins them.
func ingestAndJoin(cfg *config.Config, logger *utils.Logger, cutoff *time.Time) (*services.JoinResult, error) {
	reader := ingest.NewReader(logger)
	normalizer := services.NewNormalizer(logger)
	aggregator := services.NewAggregator(logger)

	var (
		orderRows  []*models.OrderReportRow
		billing    *services.BillingSummary
		orderErr   error
		billingErr error
	)

	pool := utils.NewWorkerPool(2, 0)
	pool.Submit(func() {
		raw, err := reader.ReadFile(cfg.OrdersPath)
		if err != nil {
			orderErr = err
			return
		}
		orderRows, orderErr = normalizer.Normalize(raw)
	})
	pool.Submit(func() {
		raw, err := reader.ReadFile(cfg.BillingPath)
		if err != nil {
			billingErr = err
			return
		}
		billing, billingErr = aggregator.Aggregate(raw)
	})
	pool.Wait()

	if orderErr != nil {
		return nil, fmt.Errorf("order report: %w", orderErr)
	}
	if billingErr != nil {
		return nil, fmt.Errorf("billing detail: %w", billingErr)
	}

	joiner := services.NewJoiner(logger)
	return joiner.Join(orderRows, billing, cutoff), nil
}

// logPersistenceFailure keeps the persistence outcome separate from the
// analysis: a failed save is reported with what already committed, and the
// run continues with the in-memory dataset.
func logPersistenceFailure(logger *utils.Logger, err error, progress int) {
	var batchErr *storage.BatchError
	if errors.As(err, &batchErr) {
		logger.Error("Persistence failed mid-write: %v (%d documents are durable, no retry attempted)",
			batchErr.Err, batchErr.Committed)
	} else {
		logger.Error("Persistence failed: %v (progress before failure: %d)", err, progress)
	}
	logger.Warn("Continuing with in-memory results — re-run the upload to complete persistence")
}

func splitTerms(s string) []string {
	if strings.TrimSpace(s) == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	terms := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			terms = append(terms, p)
		}
	}
	return terms
}
