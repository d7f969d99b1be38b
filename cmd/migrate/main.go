package main

import (
	"context"
	"flag"
	"time"

	"github.com/dkrasnov/pennyworth/internal/config"
	"github.com/dkrasnov/pennyworth/internal/logger"
	"github.com/dkrasnov/pennyworth/internal/store/postgres"
)

func main() {
	migrationsDir := flag.String("migrations", "migrations/postgres", "Path to migrations directory")
	flag.Parse()

	log := logger.New()
	cfg := config.MustLoad()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()
	ctx = logger.WithContext(ctx, log)

	pool, err := postgres.Connect(ctx, cfg.DatabaseURL)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to database")
	}
	defer pool.Close()

	if err := postgres.ApplyMigrations(ctx, pool, *migrationsDir); err != nil {
		log.Fatal().Err(err).Msg("Migration failed")
	}

	log.Info().Str("dir", *migrationsDir).Msg("Migrations applied")
}
