package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/dkrasnov/pennyworth/internal/api/handlers"
	"github.com/dkrasnov/pennyworth/internal/api/middleware"
	"github.com/dkrasnov/pennyworth/internal/config"
	"github.com/dkrasnov/pennyworth/internal/gcsarchive"
	"github.com/dkrasnov/pennyworth/internal/insights"
	"github.com/dkrasnov/pennyworth/internal/jobs/inmemory"
	"github.com/dkrasnov/pennyworth/internal/logger"
	"github.com/dkrasnov/pennyworth/internal/mailer"
	"github.com/dkrasnov/pennyworth/internal/pipeline"
	"github.com/dkrasnov/pennyworth/internal/receipts"
	"github.com/dkrasnov/pennyworth/internal/store/postgres"
)

func main() {
	log := logger.New()
	cfg := config.MustLoad()

	ctx := context.Background()

	pool, err := postgres.Connect(ctx, cfg.DatabaseURL)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to database")
	}
	defer pool.Close()

	accountsRepo := postgres.NewAccounts(pool)
	transactionsRepo := postgres.NewTransactions(pool)
	budgetsRepo := postgres.NewBudgets(pool)
	usersRepo := postgres.NewUsers(pool)

	jobStore := inmemory.NewStore()
	jobQueue := inmemory.NewQueue(100, cfg.JobWorkers, jobStore)

	p := pipeline.New(
		transactionsRepo,
		budgetsRepo,
		usersRepo,
		mailer.NewResendMailer(cfg.ResendAPIKey, cfg.EmailFrom),
		insights.NewGeminiGenerator(),
		jobQueue,
		log,
	)

	// Jobs published via the manual trigger endpoint are processed in-process.
	workerCtx, cancelWorker := context.WithCancel(logger.WithContext(ctx, log))
	defer cancelWorker()

	if err := jobQueue.Start(workerCtx, p.ProcessRecurringTransaction); err != nil {
		log.Fatal().Err(err).Msg("Failed to start job consumer")
	}

	var archiver gcsarchive.Archiver
	if cfg.GCSBucket != "" {
		a, err := gcsarchive.NewGCSArchiver(ctx, cfg.GCSBucket)
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to create receipt archiver")
		}
		defer a.Close()
		archiver = a
	} else {
		log.Warn().Msg("No GCS bucket configured - receipt images will not be archived")
	}

	accountsHandler := handlers.NewAccountsHandler(accountsRepo, log)
	transactionsHandler := handlers.NewTransactionsHandler(transactionsRepo, log)
	budgetsHandler := handlers.NewBudgetsHandler(budgetsRepo, log)
	receiptsHandler := handlers.NewReceiptsHandler(receipts.NewGeminiScanner(), archiver, log)
	recurringHandler := handlers.NewRecurringHandler(p, log)
	jobsHandler := handlers.NewJobsHandler(jobStore, log)

	mux := http.NewServeMux()

	mux.HandleFunc("/api/accounts", func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodGet:
			accountsHandler.ListAccounts(w, r)
		case http.MethodPost:
			accountsHandler.CreateAccount(w, r)
		default:
			middleware.WriteError(w, http.StatusMethodNotAllowed, "Method not allowed")
		}
	})

	mux.HandleFunc("/api/accounts/", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			middleware.WriteError(w, http.StatusMethodNotAllowed, "Method not allowed")
			return
		}
		rest := strings.TrimPrefix(r.URL.Path, "/api/accounts/")
		accountID, ok := strings.CutSuffix(rest, "/default")
		if !ok || accountID == "" {
			middleware.WriteError(w, http.StatusNotFound, "Not found")
			return
		}
		accountsHandler.SetDefaultAccount(w, r, accountID)
	})

	mux.HandleFunc("/api/transactions", func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodGet:
			transactionsHandler.ListTransactions(w, r)
		case http.MethodPost:
			transactionsHandler.CreateTransaction(w, r)
		default:
			middleware.WriteError(w, http.StatusMethodNotAllowed, "Method not allowed")
		}
	})

	mux.HandleFunc("/api/budget", func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodGet:
			budgetsHandler.GetBudget(w, r)
		case http.MethodPut:
			budgetsHandler.UpsertBudget(w, r)
		default:
			middleware.WriteError(w, http.StatusMethodNotAllowed, "Method not allowed")
		}
	})

	mux.HandleFunc("/api/receipts/scan", func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodPost {
			receiptsHandler.ScanReceipt(w, r)
		} else {
			middleware.WriteError(w, http.StatusMethodNotAllowed, "Method not allowed")
		}
	})

	mux.HandleFunc("/api/recurring/trigger", func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodPost {
			recurringHandler.TriggerRecurring(w, r)
		} else {
			middleware.WriteError(w, http.StatusMethodNotAllowed, "Method not allowed")
		}
	})

	mux.HandleFunc("/api/jobs", func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodGet {
			jobsHandler.ListJobs(w, r)
		} else {
			middleware.WriteError(w, http.StatusMethodNotAllowed, "Method not allowed")
		}
	})

	mux.HandleFunc("/api/jobs/", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			middleware.WriteError(w, http.StatusMethodNotAllowed, "Method not allowed")
			return
		}
		jobID := strings.TrimPrefix(r.URL.Path, "/api/jobs/")
		if jobID == "" {
			middleware.WriteError(w, http.StatusBadRequest, "Job ID is required")
			return
		}
		jobsHandler.GetJob(w, r, jobID)
	})

	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		if err := pool.Ping(r.Context()); err != nil {
			middleware.WriteError(w, http.StatusServiceUnavailable, "Database unreachable")
			return
		}
		middleware.WriteJSON(w, http.StatusOK, map[string]string{
			"status": "healthy",
			"time":   time.Now().Format(time.RFC3339),
		})
	})

	handler := middleware.Recovery(log)(
		middleware.RequestID(
			middleware.Logger(log)(
				middleware.CORS(mux),
			),
		),
	)

	server := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      handler,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Info().Str("port", cfg.Port).Msg("Starting API server")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("Failed to start server")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("Shutting down server...")

	cancelWorker()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Fatal().Err(err).Msg("Server forced to shutdown")
	}

	if err := jobQueue.Stop(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Error stopping job queue")
	}
	if err := jobQueue.Close(); err != nil {
		log.Error().Err(err).Msg("Failed to close job queue")
	}

	log.Info().Msg("Server exited")
}
