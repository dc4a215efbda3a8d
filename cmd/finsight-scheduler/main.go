package main

import (
	"context"
	"errors"
	"log/slog"
	nethttp "net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"golang.org/x/sync/errgroup"

	"finsight/internal/amqp"
	"finsight/internal/config"
	"finsight/internal/email"
	apphttp "finsight/internal/http"
	"finsight/internal/insights"
	applog "finsight/internal/log"
	"finsight/internal/services"
	"finsight/internal/storage"
)

func main() {
	// Load .env file for local development (ignore errors in production/docker)
	_ = godotenv.Load()

	logger := applog.New(applog.Config{
		Level:     slog.LevelInfo,
		Component: applog.ComponentScheduler,
	})
	applog.SetDefault(logger)

	logger.Info("Starting finsight-scheduler")

	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		logger.Error("Configuration validation failed", "error", err)
		os.Exit(1)
	}

	sqliteRepo, err := storage.NewSQLiteRepository(cfg.SQLiteDBPath)
	if err != nil {
		logger.Error("Failed to initialize SQLite repository", "error", err, "path", cfg.SQLiteDBPath)
		os.Exit(1)
	}
	defer sqliteRepo.Close()

	amqpClient, err := amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue)
	if err != nil {
		logger.Error("Failed to initialize AMQP client", "error", err)
		os.Exit(1)
	}
	defer amqpClient.Close()

	// Email is optional: without a Resend key the due scan still runs, but
	// budget alerts and monthly reports are disabled.
	var sender email.Sender
	if cfg.ResendAPIKey != "" {
		sender = email.NewResendClient(cfg.ResendAPIKey, cfg.EmailFrom)
		logger.Info("Email sending enabled", "from", cfg.EmailFrom)
	} else {
		logger.Warn("Email disabled - no RESEND_API_KEY provided, budget alerts and reports will not be sent")
	}

	var insightGen insights.Generator
	if cfg.GeminiAPIKey != "" {
		insightGen = insights.NewGeminiGenerator(cfg.GeminiAPIKey, cfg.GeminiModel)
		logger.Info("Gemini insights enabled", "model", cfg.GeminiModel)
	} else {
		insightGen = insights.StaticGenerator{}
		logger.Info("Gemini disabled - no GEMINI_API_KEY provided, reports will use static insights")
	}

	dueScanner := services.NewDueScanner(sqliteRepo, amqpClient)
	budgetScanner := services.NewBudgetAlertScanner(sqliteRepo, sender)
	reportGenerator := services.NewReportGenerator(sqliteRepo, sender, insightGen)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	scanDue := func(ctx context.Context) (int, error) {
		return dueScanner.ScanDue(ctx, time.Now().UTC())
	}
	scanBudgets := func(ctx context.Context) (int, error) {
		if sender == nil {
			return 0, errors.New("email sending disabled")
		}
		return budgetScanner.ScanBudgets(ctx, time.Now().UTC())
	}
	generateReports := func(ctx context.Context) (int, error) {
		if sender == nil {
			return 0, errors.New("email sending disabled")
		}
		return reportGenerator.GenerateReports(ctx, time.Now().UTC())
	}

	srv := apphttp.NewServer(":"+cfg.Port, scanDue, scanBudgets, generateReports, cfg.JobTimeout)
	srv.ReadTimeout = 10 * time.Second
	srv.WriteTimeout = cfg.JobTimeout + 10*time.Second
	srv.IdleTimeout = 60 * time.Second

	g, gCtx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return runEvery(gCtx, "scan_due", cfg.DueScanInterval, cfg.JobTimeout, scanDue)
	})

	if sender != nil {
		g.Go(func() error {
			return runEvery(gCtx, "scan_budgets", cfg.BudgetScanInterval, cfg.JobTimeout, scanBudgets)
		})
		g.Go(func() error {
			return runMonthlyReports(gCtx, cfg.ReportCheckInterval, cfg.JobTimeout, generateReports)
		})
	}

	g.Go(func() error {
		logger.Info("Admin server listening", "port", cfg.Port)
		if err := srv.ListenAndServe(); err != nil && err != nethttp.ErrServerClosed {
			return err
		}
		return nil
	})

	g.Go(func() error {
		<-gCtx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("Scheduler stopped with error", "error", err)
		os.Exit(1)
	}

	logger.Info("Scheduler stopped gracefully")
}

// runEvery runs job immediately and then on every tick until ctx is done.
// Each run gets its own timeout; failures are logged and the next tick
// retries.
func runEvery(ctx context.Context, name string, interval, timeout time.Duration, job func(context.Context) (int, error)) error {
	runOnce := func() {
		jobCtx, cancel := context.WithTimeout(ctx, timeout)
		defer cancel()

		processed, err := job(jobCtx)
		if err != nil {
			slog.ErrorContext(ctx, "Scheduled job failed", "job", name, "error", err)
			return
		}
		slog.InfoContext(ctx, "Scheduled job complete", "job", name, "processed", processed)
	}

	runOnce()

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			runOnce()
		}
	}
}

// runMonthlyReports checks on every tick whether monthly reports are owed:
// they go out on the first day of the month, at most once per month.
func runMonthlyReports(ctx context.Context, checkInterval, timeout time.Duration, job func(context.Context) (int, error)) error {
	var lastRun time.Time

	check := func(now time.Time) {
		if now.Day() != 1 {
			return
		}
		if !lastRun.IsZero() && lastRun.Year() == now.Year() && lastRun.Month() == now.Month() {
			return
		}

		jobCtx, cancel := context.WithTimeout(ctx, timeout)
		defer cancel()

		processed, err := job(jobCtx)
		if err != nil {
			slog.ErrorContext(ctx, "Scheduled job failed", "job", "generate_reports", "error", err)
			return
		}
		lastRun = now
		slog.InfoContext(ctx, "Scheduled job complete", "job", "generate_reports", "processed", processed)
	}

	check(time.Now().UTC())

	ticker := time.NewTicker(checkInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case now := <-ticker.C:
			check(now.UTC())
		}
	}
}
