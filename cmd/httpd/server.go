package httpd

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/partswatch/partswatch/cmd/common"
	"github.com/partswatch/partswatch/internal/api"
	"github.com/partswatch/partswatch/internal/jobs"
	"github.com/partswatch/partswatch/internal/scheduler"
)

const errorChannelBufferSize = 1

// startHTTPServer starts the HTTP server in a goroutine. Returns the
// server and an error channel for serve failures.
func startHTTPServer(deps *common.Deps, handler http.Handler) (*http.Server, chan error) {
	server := api.NewHTTPServer(deps.Config.Server, handler)

	deps.Logger.Info("Starting HTTP server", "addr", server.Addr)
	errChan := make(chan error, errorChannelBufferSize)
	go func() {
		if serveErr := server.ListenAndServe(); serveErr != nil && !errors.Is(serveErr, http.ErrServerClosed) {
			errChan <- serveErr
		}
	}()

	return server, errChan
}

// runServerUntilInterrupt blocks until a shutdown signal arrives or the
// server fails.
func runServerUntilInterrupt(
	deps *common.Deps,
	server *http.Server,
	sched *scheduler.Scheduler,
	orchestrator *jobs.Orchestrator,
	errChan chan error,
) error {
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	select {
	case serverErr := <-errChan:
		deps.Logger.Error("Server error", "error", serverErr)
		return fmt.Errorf("server error: %w", serverErr)
	case sig := <-sigChan:
		return shutdownServer(deps, server, sched, orchestrator, sig)
	}
}

// shutdownServer stops the scheduler, lets running jobs reach a
// boundary and then drains the HTTP server.
func shutdownServer(
	deps *common.Deps,
	server *http.Server,
	sched *scheduler.Scheduler,
	orchestrator *jobs.Orchestrator,
	sig os.Signal,
) error {
	deps.Logger.Info("Shutdown signal received", "signal", sig.String())

	ctx, cancel := context.WithTimeout(context.Background(), deps.Config.Server.ShutdownGrace)
	defer cancel()

	if err := sched.Stop(ctx); err != nil {
		deps.Logger.Error("Failed to stop scheduler", "error", err)
	}
	if err := orchestrator.Shutdown(ctx); err != nil {
		deps.Logger.Error("Jobs did not finish before shutdown deadline", "error", err)
	}

	if err := server.Shutdown(ctx); err != nil {
		return fmt.Errorf("failed to shut down server: %w", err)
	}
	deps.Logger.Info("Server stopped")
	return nil
}
