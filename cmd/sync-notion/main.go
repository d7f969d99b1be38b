package main

import (
	"context"
	"flag"
	"time"

	"github.com/google/uuid"

	"github.com/dkrasnov/pennyworth/internal/config"
	"github.com/dkrasnov/pennyworth/internal/logger"
	"github.com/dkrasnov/pennyworth/internal/notionsync"
	"github.com/dkrasnov/pennyworth/internal/store/postgres"
)

func main() {
	log := logger.New()

	userIDStr := flag.String("user", "", "User ID whose transactions to export (required)")
	startDateStr := flag.String("start-date", "", "Start date in YYYY-MM-DD format (required)")
	endDateStr := flag.String("end-date", "", "End date in YYYY-MM-DD format (required)")
	dryRun := flag.Bool("dry-run", false, "Preview changes without writing to Notion")
	flag.Parse()

	if *userIDStr == "" {
		log.Fatal().Msg("Error: --user is required")
	}
	if *startDateStr == "" {
		log.Fatal().Msg("Error: --start-date is required")
	}
	if *endDateStr == "" {
		log.Fatal().Msg("Error: --end-date is required")
	}

	userID, err := uuid.Parse(*userIDStr)
	if err != nil {
		log.Fatal().Err(err).Msg("Error: invalid --user, expected a UUID")
	}

	startDate, err := time.Parse("2006-01-02", *startDateStr)
	if err != nil {
		log.Fatal().Err(err).Str("start_date", *startDateStr).Msg("Error: invalid start-date format, expected YYYY-MM-DD")
	}
	endDate, err := time.Parse("2006-01-02", *endDateStr)
	if err != nil {
		log.Fatal().Err(err).Str("end_date", *endDateStr).Msg("Error: invalid end-date format, expected YYYY-MM-DD")
	}
	if endDate.Before(startDate) {
		log.Fatal().
			Time("start_date", startDate).
			Time("end_date", endDate).
			Msg("Error: end-date must be after start-date")
	}
	// Make the end date inclusive of the whole day.
	endDate = endDate.AddDate(0, 0, 1).Add(-time.Second)

	cfg := config.MustLoad()
	if cfg.NotionToken == "" || cfg.NotionTransactionsDB == "" {
		log.Fatal().Msg("Error: NOTION_TOKEN and NOTION_TRANSACTIONS_DB must be set")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Minute)
	defer cancel()
	ctx = logger.WithContext(ctx, log)

	pool, err := postgres.Connect(ctx, cfg.DatabaseURL)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to database")
	}
	defer pool.Close()

	source := postgres.NewTransactions(pool)
	notionClient := notionsync.NewNotionClient(cfg.NotionToken)

	result, err := notionsync.SyncTransactions(ctx, source, notionClient, cfg.NotionTransactionsDB, userID, startDate, endDate, *dryRun)
	if err != nil {
		log.Fatal().Err(err).Msg("Notion sync failed")
	}

	log.Info().
		Int("created", result.Created).
		Int("deleted", result.Deleted).
		Int("skipped", result.Skipped).
		Bool("dry_run", *dryRun).
		Msg("Notion sync complete")
}
