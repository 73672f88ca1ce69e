// Package scheduler runs configured scrapes on cron schedules.
package scheduler

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/partswatch/partswatch/internal/config"
	"github.com/partswatch/partswatch/internal/domain"
	"github.com/partswatch/partswatch/internal/jobs"
	"github.com/partswatch/partswatch/internal/logger"
)

// Terminal job snapshots older than this are dropped from the registry.
const pruneRetention = 24 * time.Hour

// JobService is the orchestrator surface the scheduler needs.
type JobService interface {
	Start(req jobs.StartRequest) (domain.Job, error)
	Registry() *jobs.Registry
}

// Scheduler triggers scrape jobs from cron expressions in the config.
// A schedule fires only when its client has no active job.
type Scheduler struct {
	cron      *cron.Cron
	schedules []config.ScheduleConfig
	service   JobService
	log       logger.Interface
}

// New creates a scheduler over the configured schedules.
func New(schedules []config.ScheduleConfig, service JobService, log logger.Interface) *Scheduler {
	parser := cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow)
	c := cron.New(cron.WithParser(parser), cron.WithChain(cron.Recover(cron.DefaultLogger)))
	return &Scheduler{
		cron:      c,
		schedules: schedules,
		service:   service,
		log:       log.WithComponent("scheduler"),
	}
}

// Start registers all schedules and starts the cron loop. Invalid cron
// expressions fail registration rather than being skipped silently.
func (s *Scheduler) Start() error {
	for i := range s.schedules {
		sc := s.schedules[i]
		if _, err := s.cron.AddFunc(sc.Cron, func() { s.runSchedule(sc) }); err != nil {
			return fmt.Errorf("failed to schedule %s (%q): %w", sc.Client, sc.Cron, err)
		}
		s.log.Info("schedule registered", "client", sc.Client, "cron", sc.Cron)
	}

	if _, err := s.cron.AddFunc("0 * * * *", s.pruneJobs); err != nil {
		return fmt.Errorf("failed to schedule registry prune: %w", err)
	}

	s.cron.Start()
	s.log.Info("scheduler started", "schedules", len(s.schedules))
	return nil
}

// Stop halts the cron loop and waits for in-flight triggers, or for ctx
// to expire. Jobs already handed to the orchestrator keep running.
func (s *Scheduler) Stop(ctx context.Context) error {
	cronCtx := s.cron.Stop()
	select {
	case <-cronCtx.Done():
		s.log.Info("scheduler stopped")
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (s *Scheduler) runSchedule(sc config.ScheduleConfig) {
	log := s.log.WithClient(sc.Client)
	if s.service.Registry().ActiveForClient(sc.Client) {
		log.Info("skipping scheduled scrape, client already has an active job")
		return
	}

	req := jobs.StartRequest{
		Client:     sc.Client,
		SeedURL:    sc.SeedURL,
		Categories: sc.Categories,
	}
	// Schedules leave max_pages at 0 to take the configured default.
	if sc.MaxPages > 0 {
		req.MaxPages = &sc.MaxPages
	}
	job, err := s.service.Start(req)
	if err != nil {
		log.Error("failed to start scheduled scrape", "error", err)
		return
	}
	log.WithJob(job.ID).Info("scheduled scrape started")
}

func (s *Scheduler) pruneJobs() {
	if n := s.service.Registry().Prune(pruneRetention); n > 0 {
		s.log.Info("pruned finished jobs", "count", n)
	}
}
