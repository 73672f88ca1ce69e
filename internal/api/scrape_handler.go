package api

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/partswatch/partswatch/internal/domain"
	"github.com/partswatch/partswatch/internal/jobs"
	"github.com/partswatch/partswatch/internal/sites"
)

// JobController is the orchestrator surface the scrape handler needs.
type JobController interface {
	Start(req jobs.StartRequest) (domain.Job, error)
	Status(jobID string) (domain.Job, error)
	Cancel(jobID, reason string) error
	Categories(ctx context.Context, client string) ([]domain.CategorySeed, error)
}

// ScrapeHandler handles scrape job HTTP requests.
type ScrapeHandler struct {
	controller JobController
	adapters   *sites.Registry
}

// NewScrapeHandler creates a new scrape handler.
func NewScrapeHandler(controller JobController, adapters *sites.Registry) *ScrapeHandler {
	return &ScrapeHandler{controller: controller, adapters: adapters}
}

// Start handles POST /api/scrape/start.
func (h *ScrapeHandler) Start(c *gin.Context) {
	var req jobs.StartRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBadRequest(c, "invalid request body")
		return
	}
	if req.Client == "" {
		respondBadRequest(c, "client is required")
		return
	}

	job, err := h.controller.Start(req)
	if err != nil {
		switch {
		case errors.Is(err, sites.ErrUnknownClient):
			respondBadRequest(c, err.Error())
		case errors.Is(err, jobs.ErrCategoriesRequired):
			respondBadRequest(c, err.Error())
		default:
			respondInternalError(c, "failed to start scrape")
		}
		return
	}

	c.JSON(http.StatusAccepted, job)
}

// Status handles GET /api/scrape/status.
func (h *ScrapeHandler) Status(c *gin.Context) {
	jobID := c.Query("job_id")
	if jobID == "" {
		respondBadRequest(c, "job_id is required")
		return
	}

	job, err := h.controller.Status(jobID)
	if err != nil {
		respondNotFound(c, "job")
		return
	}

	c.JSON(http.StatusOK, job)
}

// Stop handles POST /api/scrape/stop.
func (h *ScrapeHandler) Stop(c *gin.Context) {
	var req struct {
		JobID  string `json:"job_id"`
		Reason string `json:"reason,omitempty"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBadRequest(c, "invalid request body")
		return
	}
	if req.JobID == "" {
		respondBadRequest(c, "job_id is required")
		return
	}

	if err := h.controller.Cancel(req.JobID, req.Reason); err != nil {
		respondNotFound(c, "job")
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"job_id": req.JobID,
		"status": "cancel requested",
	})
}

// Categories handles GET /api/scrape/categories.
func (h *ScrapeHandler) Categories(c *gin.Context) {
	client := c.Query("client")
	if client == "" {
		respondBadRequest(c, "client is required")
		return
	}

	adapter, err := h.adapters.ForClient(client)
	if err != nil {
		respondBadRequest(c, err.Error())
		return
	}

	seeds, err := h.controller.Categories(c.Request.Context(), client)
	if err != nil {
		respondInternalError(c, "category discovery failed")
		return
	}
	if seeds == nil {
		seeds = []domain.CategorySeed{}
	}

	c.JSON(http.StatusOK, gin.H{
		"client":             client,
		"supports_discovery": adapter.SupportsDiscovery(),
		"count":              len(seeds),
		"categories":         seeds,
	})
}
