package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/dkrasnov/pennyworth/internal/config"
	"github.com/dkrasnov/pennyworth/internal/insights"
	"github.com/dkrasnov/pennyworth/internal/jobs/inmemory"
	"github.com/dkrasnov/pennyworth/internal/logger"
	"github.com/dkrasnov/pennyworth/internal/mailer"
	"github.com/dkrasnov/pennyworth/internal/pipeline"
	"github.com/dkrasnov/pennyworth/internal/scheduler"
	"github.com/dkrasnov/pennyworth/internal/store/postgres"
)

func main() {
	log := logger.New()
	cfg := config.MustLoad()

	log.Info().Msg("Starting worker service")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	ctx = logger.WithContext(ctx, log)

	pool, err := postgres.Connect(ctx, cfg.DatabaseURL)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to database")
	}
	defer pool.Close()

	transactionsRepo := postgres.NewTransactions(pool)
	budgetsRepo := postgres.NewBudgets(pool)
	usersRepo := postgres.NewUsers(pool)

	jobStore := inmemory.NewStore()
	jobQueue := inmemory.NewQueue(100, cfg.JobWorkers, jobStore)

	mail := mailer.NewResendMailer(cfg.ResendAPIKey, cfg.EmailFrom)

	p := pipeline.New(
		transactionsRepo,
		budgetsRepo,
		usersRepo,
		mail,
		insights.NewGeminiGenerator(),
		jobQueue,
		log,
	)

	// Consume realization jobs published by the recurring trigger.
	if err := jobQueue.Start(ctx, p.ProcessRecurringTransaction); err != nil {
		log.Fatal().Err(err).Msg("Failed to start job consumer")
	}

	sched := scheduler.New(ctx, log)

	if err := sched.Register(scheduler.SpecBudgetAlerts, "budget-alerts", p.CheckBudgetAlerts); err != nil {
		log.Fatal().Err(err).Msg("Failed to register budget alert job")
	}
	if err := sched.Register(scheduler.SpecRecurring, "recurring-trigger", func(ctx context.Context) error {
		published, err := p.TriggerRecurring(ctx)
		if err != nil {
			return err
		}
		log.Info().Int("published", published).Msg("Recurring trigger finished")
		return nil
	}); err != nil {
		log.Fatal().Err(err).Msg("Failed to register recurring trigger job")
	}
	if err := sched.Register(scheduler.SpecMonthlyReports, "monthly-reports", func(ctx context.Context) error {
		processed, err := p.GenerateMonthlyReports(ctx)
		if err != nil {
			return err
		}
		log.Info().Int("processed", processed).Msg("Monthly reports finished")
		return nil
	}); err != nil {
		log.Fatal().Err(err).Msg("Failed to register monthly report job")
	}

	sched.Start()
	log.Info().Msg("Worker service started, waiting for scheduled jobs...")

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("Shutting down worker service...")

	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := sched.Stop(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Error stopping scheduler")
	}

	// Stop the queue and wait for in-flight jobs.
	if err := jobQueue.Stop(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Error during graceful shutdown")
	}
	if err := jobQueue.Close(); err != nil {
		log.Error().Err(err).Msg("Failed to close job queue")
	}

	log.Info().Msg("Worker service exited")
}
