// Package crawl implements the one-shot scrape command.
package crawl

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/partswatch/partswatch/cmd/common"
	"github.com/partswatch/partswatch/internal/domain"
	"github.com/partswatch/partswatch/internal/jobs"
)

const pollInterval = 500 * time.Millisecond

// Command returns the crawl command.
func Command() *cobra.Command {
	var (
		client        string
		seedURL       string
		maxPages      int
		categories    []string
		categoryLimit int
	)

	cmd := &cobra.Command{
		Use:   "crawl",
		Short: "Run a single scrape and wait for it to finish",
		RunE: func(cmd *cobra.Command, args []string) error {
			req := jobs.StartRequest{
				Client:        client,
				SeedURL:       seedURL,
				Categories:    categories,
				CategoryLimit: categoryLimit,
			}
			// Only an explicit flag overrides the configured default;
			// --max-pages=0 means unlimited.
			if cmd.Flags().Changed("max-pages") {
				req.MaxPages = &maxPages
			}
			return run(cmd.Context(), req)
		},
	}

	cmd.Flags().StringVar(&client, "client", "", "site client to scrape (required)")
	cmd.Flags().StringVar(&seedURL, "seed", "", "seed URL narrowing category discovery")
	cmd.Flags().IntVar(&maxPages, "max-pages", 0, "pages per category (0 means unlimited, omit for the configured default)")
	cmd.Flags().StringSliceVar(&categories, "category", nil, "explicit category URL, repeatable")
	cmd.Flags().IntVar(&categoryLimit, "category-limit", 0, "cap on discovered categories (0 uses the client default)")
	_ = cmd.MarkFlagRequired("client")

	return cmd
}

func run(ctx context.Context, req jobs.StartRequest) error {
	deps, err := common.NewDeps()
	if err != nil {
		return err
	}

	db, err := common.OpenDatabase(ctx, deps)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer db.Close()

	orchestrator := common.NewOrchestrator(deps, db)

	job, err := orchestrator.Start(req)
	if err != nil {
		return fmt.Errorf("failed to start scrape: %w", err)
	}
	deps.Logger.Info("Scrape started", "job_id", job.ID, "client", job.Client)

	job, err = waitForJob(ctx, orchestrator, job.ID)
	if err != nil {
		return err
	}

	printSummary(job)
	if job.Status == domain.JobStatusError {
		return fmt.Errorf("scrape failed: %s", job.LastError)
	}
	return nil
}

// waitForJob polls until the job reaches a terminal state. Interrupting
// the command requests cancellation and keeps waiting so the run record
// is finalized.
func waitForJob(ctx context.Context, orchestrator *jobs.Orchestrator, jobID string) (domain.Job, error) {
	ticker := time.NewTicker(pollInterval)
	defer ticker.Stop()

	done := ctx.Done()
	for {
		select {
		case <-done:
			done = nil
			_ = orchestrator.Cancel(jobID, "interrupted")
		case <-ticker.C:
		}

		job, err := orchestrator.Status(jobID)
		if err != nil {
			return domain.Job{}, err
		}
		if job.Terminal() {
			return job, nil
		}
	}
}

func printSummary(job domain.Job) {
	fmt.Printf("Job %s finished with status %q\n", job.ID, job.Status)
	fmt.Printf("  categories: %d/%d\n", job.CategoriesDone, job.TotalCategories)
	fmt.Printf("  pages:      %d\n", job.PagesDone)
	fmt.Printf("  items:      %d (%d new, %d updated)\n", job.ItemsFound, job.NewProducts, job.UpdatedProducts)
	if job.LastError != "" {
		fmt.Printf("  last error: %s\n", job.LastError)
	}
}
