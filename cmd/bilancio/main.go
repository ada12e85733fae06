package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"golang.org/x/sync/errgroup"

	"bilancio/internal/amqp"
	"bilancio/internal/audit"
	"bilancio/internal/coach"
	"bilancio/internal/config"
	"bilancio/internal/export"
	gsheet "bilancio/internal/export/google"
	apphttp "bilancio/internal/http"
	"bilancio/internal/ledger"
	"bilancio/internal/llm"
	applog "bilancio/internal/log"
	"bilancio/internal/services"
	"bilancio/internal/storage"
)

func main() {
	// Load .env file for local development (ignore errors in production/docker)
	_ = godotenv.Load()

	logger := applog.New(applog.DefaultConfig())
	applog.SetDefault(logger)

	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		logger.Error("Configuration validation failed", "error", err)
		os.Exit(1)
	}

	repo, err := storage.NewSQLiteRepository(cfg.SQLiteDBPath)
	if err != nil {
		logger.Error("Failed to initialize SQLite repository", "error", err, "path", cfg.SQLiteDBPath)
		os.Exit(1)
	}
	defer repo.Close()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Audit entries go through AMQP when a broker is configured; otherwise
	// they are written synchronously to SQLite.
	var auditSink audit.Sink = repo
	var amqpClient *amqp.Client
	if cfg.AMQPURL != "" {
		amqpClient, err = amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue)
		if err != nil {
			logger.Warn("Failed to initialize AMQP client, auditing directly to SQLite", "error", err)
		} else {
			defer amqpClient.Close()
			auditSink = amqp.NewSink(amqpClient)
			logger.Info("AMQP client initialized", "exchange", cfg.AMQPExchange, "queue", cfg.AMQPQueue)
		}
	}

	// Dashboard mirroring is optional.
	var mirror export.SummaryWriter
	var proposalMirror export.ProposalWriter
	if cfg.GoogleSpreadsheetID != "" {
		sheetsClient, err := gsheet.NewFromEnv(ctx)
		if err != nil {
			logger.Warn("Failed to initialize Google Sheets client, dashboard disabled", "error", err)
		} else {
			mirror = sheetsClient
			proposalMirror = sheetsClient
			logger.Info("Google Sheets dashboard enabled", "spreadsheet_id", cfg.GoogleSpreadsheetID)
		}
	}

	aggregator := ledger.NewAggregator(repo)
	ledgerSvc := services.NewLedgerService(repo, mirror)

	engine := coach.NewEngine(coach.Config{
		Aggregator: aggregator,
		Categories: repo,
		Completer:  llm.NewClient(cfg.LLMBaseURL, cfg.LLMAPIKey, cfg.LLMModel, cfg.LLMTimeout),
		Sink:       auditSink,
		Cost: coach.CostEstimator{
			PromptPriceMicros:     cfg.LLMPromptPriceMicros,
			CompletionPriceMicros: cfg.LLMCompletionPriceMicros,
			CeilingMicros:         cfg.LLMCostCeilingMicros,
		},
		LookbackMonths: cfg.BudgetLookbackMonths,
		MaxTokens:      cfg.LLMMaxTokens,
		Temperature:    cfg.LLMTemperature,
	})

	srv := apphttp.NewServer(":"+cfg.Port, ledgerSvc, aggregator, engine, repo, repo, repo,
		proposalMirror, cfg.BudgetLookbackMonths)
	srv.ReadTimeout = 10 * time.Second
	srv.WriteTimeout = 30 * time.Second
	srv.IdleTimeout = 60 * time.Second
	srv.MaxHeaderBytes = 1 << 16 // 64KB

	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		logger.Info("Starting bilancio server", "port", cfg.Port)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	g.Go(func() error {
		<-ctx.Done()
		logger.Info("Shutdown signal received")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		logger.Error("Server error", "error", err)
		os.Exit(1)
	}
	logger.Info("Server stopped gracefully")
}
