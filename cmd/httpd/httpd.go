// Package httpd implements the HTTP server for the catalog service.
package httpd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/partswatch/partswatch/cmd/common"
	"github.com/partswatch/partswatch/internal/api"
	"github.com/partswatch/partswatch/internal/database"
	"github.com/partswatch/partswatch/internal/scheduler"
	"github.com/partswatch/partswatch/internal/sites"
)

// Command returns the httpd command.
func Command() *cobra.Command {
	return &cobra.Command{
		Use:   "httpd",
		Short: "Start the HTTP server",
		Long:  `Serves the scrape and results API and runs configured schedules until interrupted.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return Start()
		},
	}
}

// Start starts the HTTP server and runs until interrupted. It handles
// graceful shutdown on SIGINT or SIGTERM.
func Start() error {
	deps, err := common.NewDeps()
	if err != nil {
		return err
	}

	db, err := common.OpenDatabase(context.Background(), deps)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer db.Close()

	orchestrator := common.NewOrchestrator(deps, db)

	sched := scheduler.New(deps.Config.Schedules, orchestrator, deps.Logger)
	if err := sched.Start(); err != nil {
		return err
	}

	router := api.SetupRouter(api.Deps{
		Logger:     deps.Logger,
		Server:     deps.Config.Server,
		Adapters:   sites.NewRegistry(),
		Controller: orchestrator,
		Stats:      database.NewStatsRepository(db),
		Changes:    database.NewProductRepository(db),
		Runs:       database.NewRunRepository(db),
		History:    database.NewHistoryRepository(db),
		Purger:     database.NewPurgeRepository(db),
	})

	server, errChan := startHTTPServer(deps, router)

	return runServerUntilInterrupt(deps, server, sched, orchestrator, errChan)
}
