package main

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/mcdev12/pyroassist/go/internal/dbconfig"
)

// setupDatabase opens the SQL database for driver ("postgres" or "mysql")
// from the DB_* environment.
func setupDatabase(ctx context.Context, driver string) (*sql.DB, error) {
	dbConfig := dbconfig.NewConfigFromEnv()

	dsn, err := dbConfig.DSNFor(driver)
	if err != nil {
		return nil, err
	}

	database, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to create database connection: %w", err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := database.PingContext(pingCtx); err != nil {
		database.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	log.Info().
		Str("driver", driver).
		Str("user", dbConfig.User).
		Str("host", dbConfig.Host).
		Int("port", dbConfig.PortFor(driver)).
		Str("database", dbConfig.Database).
		Msg("connected to database")
	return database, nil
}
