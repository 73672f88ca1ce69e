package api

import (
	"context"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/partswatch/partswatch/internal/domain"
)

// StatsReader summarizes the catalog. Implemented by database.StatsRepository.
type StatsReader interface {
	Summary(ctx context.Context) (domain.CatalogStats, error)
}

// ChangesReader lists recent product changes. Implemented by
// database.ProductRepository.
type ChangesReader interface {
	RecentChanges(ctx context.Context, limit int) ([]domain.RecentChange, error)
}

// RunsReader lists recent scraper runs. Implemented by database.RunRepository.
type RunsReader interface {
	Recent(ctx context.Context, limit int) ([]domain.ScraperRun, error)
}

// HistoryReader serves fetch snapshots. Implemented by
// database.HistoryRepository.
type HistoryReader interface {
	Recent(ctx context.Context, limit, offset int) ([]domain.FetchHistory, error)
	Get(ctx context.Context, id string) (*domain.FetchHistory, error)
}

// ResultsHandler serves read-only catalog result endpoints.
type ResultsHandler struct {
	stats   StatsReader
	changes ChangesReader
	runs    RunsReader
	history HistoryReader
}

// NewResultsHandler creates a new results handler.
func NewResultsHandler(stats StatsReader, changes ChangesReader, runs RunsReader, history HistoryReader) *ResultsHandler {
	return &ResultsHandler{stats: stats, changes: changes, runs: runs, history: history}
}

// Summary handles GET /api/results/summary.
func (h *ResultsHandler) Summary(c *gin.Context) {
	stats, err := h.stats.Summary(c.Request.Context())
	if err != nil {
		respondInternalError(c, "failed to load catalog summary")
		return
	}
	c.JSON(http.StatusOK, stats)
}

// Recent handles GET /api/results/recent. An optional type query param
// filters by change type (price, stock, description).
func (h *ResultsHandler) Recent(c *gin.Context) {
	limit := parseLimit(c, defaultLimit)
	changeType := strings.ToLower(strings.TrimSpace(c.Query("type")))

	changes, err := h.changes.RecentChanges(c.Request.Context(), limit)
	if err != nil {
		respondInternalError(c, "failed to load recent changes")
		return
	}

	if changeType != "" {
		filtered := make([]domain.RecentChange, 0, len(changes))
		for _, ch := range changes {
			if ch.ChangeType == changeType {
				filtered = append(filtered, ch)
			}
		}
		changes = filtered
	}

	c.JSON(http.StatusOK, gin.H{
		"count":   len(changes),
		"changes": changes,
	})
}

// Runs handles GET /api/results/runs.
func (h *ResultsHandler) Runs(c *gin.Context) {
	limit := parseLimit(c, defaultLimit)

	runs, err := h.runs.Recent(c.Request.Context(), limit)
	if err != nil {
		respondInternalError(c, "failed to load scraper runs")
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"count": len(runs),
		"runs":  runs,
	})
}

// History handles GET /api/results/history. An optional id query param
// returns one snapshot with its items; without it the endpoint lists
// snapshot headers.
func (h *ResultsHandler) History(c *gin.Context) {
	if id := strings.TrimSpace(c.Query("id")); id != "" {
		history, err := h.history.Get(c.Request.Context(), id)
		if err != nil {
			respondNotFound(c, "fetch history")
			return
		}
		c.JSON(http.StatusOK, history)
		return
	}

	limit := parseLimit(c, defaultLimit)
	offset := parseOffset(c)

	histories, err := h.history.Recent(c.Request.Context(), limit, offset)
	if err != nil {
		respondInternalError(c, "failed to load fetch history")
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"count":   len(histories),
		"history": histories,
	})
}
