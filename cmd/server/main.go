package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"CardScan/internal/api"
	"CardScan/internal/attachments"
	"CardScan/internal/config"
	"CardScan/internal/db"
	"CardScan/internal/email"
	"CardScan/internal/metrics"
	"CardScan/internal/queue"
	"CardScan/internal/worker"
)

func main() {

	// ------------------------------------------------
	// Logger
	// ------------------------------------------------
	logger, err := zap.NewProduction()
	if err != nil {
		panic(err)
	}
	defer logger.Sync()

	// ------------------------------------------------
	// Config
	// ------------------------------------------------
	cfg, err := config.Load()
	if err != nil {
		logger.Fatal("failed to load config", zap.Error(err))
	}

	if !cfg.SMTPConfigured() {
		logger.Warn("SMTP credentials not configured, every send will fail until they are set")
	}

	// ------------------------------------------------
	// Root Context + Shutdown
	// ------------------------------------------------
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	// ------------------------------------------------
	// Database (optional)
	// ------------------------------------------------
	var (
		journal  worker.Journal
		contacts api.ContactDirectory
		history  api.DeliveryJournal
	)

	if cfg.DatabaseURL != "" {
		dbCtx, dbCancel := context.WithTimeout(ctx, 10*time.Second)
		store, err := db.New(dbCtx, cfg.DatabaseURL)
		if err == nil {
			err = store.EnsureSchema(dbCtx)
		}
		dbCancel()
		if err != nil {
			logger.Fatal("database connection failed", zap.Error(err))
		}
		defer store.Close()

		journal, contacts, history = store, store, store
		logger.Info("delivery journal enabled")
	} else {
		logger.Info("DATABASE_URL not set, journal and contacts disabled")
	}

	// ------------------------------------------------
	// Metrics
	// ------------------------------------------------
	metrics.Init()

	metricsMux := http.NewServeMux()
	metricsMux.Handle("/metrics", promhttp.Handler())

	metricsServer := &http.Server{
		Addr:    ":" + cfg.MetricsPort,
		Handler: metricsMux,
	}

	go func() {
		logger.Info("metrics server started", zap.String("port", cfg.MetricsPort))
		if err := metricsServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("metrics server error", zap.Error(err))
		}
	}()

	// ------------------------------------------------
	// Job Store
	// ------------------------------------------------
	jobs := queue.NewStore()

	// ------------------------------------------------
	// Email Sender
	// ------------------------------------------------
	sender := email.NewSender(cfg, logger)

	// ------------------------------------------------
	// Rate Limiter
	// ------------------------------------------------
	var limiter *rate.Limiter
	if cfg.SendRatePerMinute > 0 {
		limiter = rate.NewLimiter(rate.Every(time.Minute/time.Duration(cfg.SendRatePerMinute)), 1)
	}

	// ------------------------------------------------
	// Dispatcher
	// ------------------------------------------------
	var wg sync.WaitGroup

	dispatcher := worker.NewDispatcher(jobs, sender, logger, worker.Options{
		Delay:       cfg.SendDelay,
		SendTimeout: cfg.SendTimeout,
		Limiter:     limiter,
		Journal:     journal,
	})
	dispatcher.Start(ctx, &wg)

	// ------------------------------------------------
	// Attachments
	// ------------------------------------------------
	files, err := attachments.NewStore(cfg.AttachmentDir, cfg.MaxUploadBytes)
	if err != nil {
		logger.Fatal("attachment directory unavailable", zap.String("dir", cfg.AttachmentDir), zap.Error(err))
	}

	// ------------------------------------------------
	// HTTP API Server
	// ------------------------------------------------
	apiHandler := &api.Handler{
		Submitter: &worker.Submitter{
			Store:   jobs,
			Trigger: dispatcher,
			Log:     logger,
		},
		Dispatcher:  dispatcher,
		Jobs:        jobs,
		Attachments: files,
		Contacts:    contacts,
		Journal:     history,
		Log:         logger,
	}

	apiServer := &http.Server{
		Addr: ":" + cfg.APIPort,
		Handler: api.NewRouter(apiHandler, logger, api.RouterConfig{
			CORSOrigins: cfg.CORSOrigins,
			Debug:       cfg.Debug,
		}),
	}

	go func() {
		logger.Info("api server started", zap.String("port", cfg.APIPort))
		if err := apiServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("api server error", zap.Error(err))
		}
	}()

	// ------------------------------------------------
	// Wait for shutdown
	// ------------------------------------------------
	<-ctx.Done()

	logger.Info("shutting down services...")

	// Stop accepting new batches
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()

	if err := apiServer.Shutdown(shutdownCtx); err != nil {
		logger.Error("api shutdown failed", zap.Error(err))
	}

	// Wait for the in-flight send to settle
	wg.Wait()

	if err := metricsServer.Shutdown(shutdownCtx); err != nil {
		logger.Error("metrics shutdown failed", zap.Error(err))
	}

	st := jobs.Status(false)
	logger.Info("application shutdown complete",
		zap.Int("queued", st.Queued),
		zap.Int("sent", st.Sent),
		zap.Int("failed", st.Failed),
	)
}
