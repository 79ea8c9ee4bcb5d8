package main

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/rs/zerolog/log"
	"github.com/spf13/afero"

	"github.com/mcdev12/pyroassist/go/internal/dbconfig"
	"github.com/mcdev12/pyroassist/go/internal/execution"
	"github.com/mcdev12/pyroassist/go/internal/gateway"
	"github.com/mcdev12/pyroassist/go/internal/metrics"
	"github.com/mcdev12/pyroassist/go/internal/notify"
	"github.com/mcdev12/pyroassist/go/internal/sheet"
)

type Services struct {
	Sheet   *sheet.App
	Metrics *metrics.Collector
	Gateway *gateway.Service
	Runner  *execution.Runner

	database *sql.DB
	nats     *notify.NATSSink
}

// setupRepository picks the sheet store named by the storage config.
func setupRepository(ctx context.Context, cfg *Config) (sheet.Repository, *sql.DB, error) {
	if cfg.Storage.Driver == "file" {
		log.Info().Str("dir", cfg.Storage.Path).Msg("using file sheet store")
		return sheet.NewFileRepository(afero.NewOsFs(), cfg.Storage.Path), nil, nil
	}

	database, err := setupDatabase(ctx, cfg.Storage.Driver)
	if err != nil {
		return nil, nil, err
	}

	var repo *sheet.SQLRepository
	if cfg.Storage.Driver == dbconfig.DriverMySQL {
		repo = sheet.NewMySQLRepository(database)
	} else {
		repo = sheet.NewPostgresRepository(database)
	}
	if err := repo.EnsureSchema(ctx); err != nil {
		database.Close()
		return nil, nil, fmt.Errorf("failed to ensure schema: %w", err)
	}
	return repo, database, nil
}

func jetStreamConfig(cfg *Config) notify.JetStreamConfig {
	js := notify.DefaultJetStreamConfig()
	js.URL = cfg.NATS.URL
	js.StreamName = cfg.NATS.Stream
	js.SubjectPrefix = cfg.NATS.SubjectPrefix
	return js
}

func setupServices(ctx context.Context, cfg *Config) (*Services, error) {
	// Store → sheet app → gateway → runner, then the runner is attached back.
	repo, database, err := setupRepository(ctx, cfg)
	if err != nil {
		return nil, err
	}
	app := sheet.NewApp(repo)
	collector := metrics.NewCollector(nil)
	gw := gateway.NewService(gateway.DefaultConfig(), app, app, collector)

	sinks := notify.Fanout{gw.Sink(), notify.NewLogSink(log.Logger)}
	var natsSink *notify.NATSSink
	if cfg.NATS.Enabled {
		natsSink, err = notify.NewNATSSink(jetStreamConfig(cfg))
		if err != nil {
			if database != nil {
				database.Close()
			}
			return nil, fmt.Errorf("failed to set up NATS: %w", err)
		}
		sinks = append(sinks, natsSink)
	}

	runner := execution.NewRunner(ctx,
		execution.WithSink(sinks),
		execution.WithMetrics(collector),
		execution.WithCountdown(*cfg.Execution.Countdown),
		execution.WithTickInterval(cfg.Execution.TickInterval),
	)
	gw.Attach(runner)

	return &Services{
		Sheet:    app,
		Metrics:  collector,
		Gateway:  gw,
		Runner:   runner,
		database: database,
		nats:     natsSink,
	}, nil
}

// Close stops the runner before the sinks it writes to.
func (s *Services) Close() {
	if err := s.Runner.Close(); err != nil {
		log.Error().Err(err).Msg("failed to stop runner")
	}
	if s.nats != nil {
		if err := s.nats.Close(); err != nil {
			log.Error().Err(err).Msg("failed to close NATS sink")
		}
	}
	if s.database != nil {
		if err := s.database.Close(); err != nil {
			log.Error().Err(err).Msg("failed to close database")
		}
	}
}
