// Package common provides shared dependency wiring for CLI commands.
package common

import (
	"context"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"
	"github.com/spf13/viper"

	"github.com/partswatch/partswatch/internal/config"
	"github.com/partswatch/partswatch/internal/database"
	"github.com/partswatch/partswatch/internal/fetch"
	"github.com/partswatch/partswatch/internal/jobs"
	"github.com/partswatch/partswatch/internal/logger"
	"github.com/partswatch/partswatch/internal/sites"
)

// Deps holds the dependencies every command starts from.
type Deps struct {
	Config *config.Config
	Logger logger.Interface
}

// NewDeps loads configuration and builds the logger.
func NewDeps() (*Deps, error) {
	cfg, err := config.Load(viper.GetViper())
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	log, err := logger.New(&cfg.Logging)
	if err != nil {
		return nil, fmt.Errorf("failed to create logger: %w", err)
	}

	deps := &Deps{Config: cfg, Logger: log}
	if err := deps.validate(); err != nil {
		return nil, err
	}
	return deps, nil
}

func (d *Deps) validate() error {
	if d.Config == nil {
		return errors.New("config is required")
	}
	if d.Logger == nil {
		return errors.New("logger is required")
	}
	return nil
}

// OpenDatabase connects to Postgres and applies the schema.
func OpenDatabase(ctx context.Context, deps *Deps) (*sqlx.DB, error) {
	dbCfg := deps.Config.Database
	db, err := database.NewPostgresConnection(database.Config{
		Host:     dbCfg.Host,
		Port:     dbCfg.Port,
		User:     dbCfg.User,
		Password: dbCfg.Password,
		DBName:   dbCfg.DBName,
		SSLMode:  dbCfg.SSLMode,
	})
	if err != nil {
		return nil, err
	}

	if err := database.Migrate(ctx, db); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to apply schema: %w", err)
	}
	return db, nil
}

// NewFetchFactory builds the HTTP session factory from crawler config.
func NewFetchFactory(deps *Deps) *fetch.Factory {
	return fetch.NewFactory(fetch.Config{
		Timeout:      deps.Config.Crawler.RequestTimeout,
		MaxRetries:   deps.Config.Crawler.MaxRetries,
		RetryBackoff: deps.Config.Crawler.RetryBackoff,
	}, deps.Logger)
}

// NewOrchestrator wires the job orchestrator over the shared
// database connection.
func NewOrchestrator(deps *Deps, db *sqlx.DB) *jobs.Orchestrator {
	return jobs.NewOrchestrator(
		deps.Config.Crawler,
		sites.NewRegistry(),
		NewFetchFactory(deps),
		database.NewTaxonomyRepository(db),
		database.NewProductRepository(db),
		database.NewRunRepository(db),
		database.NewHistoryRepository(db),
		deps.Logger,
	)
}
