package api

import (
	"context"
	"crypto/subtle"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/partswatch/partswatch/internal/database"
)

// Purger removes historical catalog data. Implemented by
// database.PurgeRepository.
type Purger interface {
	Purge(ctx context.Context, opts database.PurgeOptions) (database.PurgeResult, error)
}

// AdminHandler handles destructive maintenance endpoints.
type AdminHandler struct {
	purger Purger
}

// NewAdminHandler creates a new admin handler.
func NewAdminHandler(purger Purger) *AdminHandler {
	return &AdminHandler{purger: purger}
}

// Purge handles POST /api/admin/purge.
func (h *AdminHandler) Purge(c *gin.Context) {
	var opts database.PurgeOptions
	if err := c.ShouldBindJSON(&opts); err != nil {
		respondBadRequest(c, "invalid request body")
		return
	}
	if !opts.DeleteAll && opts.OlderThanDays == nil {
		respondBadRequest(c, "older_than_days is required unless delete_all is set")
		return
	}
	if opts.OlderThanDays != nil && *opts.OlderThanDays < 0 {
		respondBadRequest(c, "older_than_days must not be negative")
		return
	}

	result, err := h.purger.Purge(c.Request.Context(), opts)
	if err != nil {
		respondInternalError(c, "purge failed")
		return
	}

	c.JSON(http.StatusOK, result)
}

// adminAuth guards a route group with a shared token. An empty token
// leaves the group open.
func adminAuth(token string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if token == "" {
			c.Next()
			return
		}
		got := c.GetHeader("X-Admin-Token")
		if subtle.ConstantTimeCompare([]byte(got), []byte(token)) != 1 {
			respondError(c, http.StatusUnauthorized, "invalid admin token")
			c.Abort()
			return
		}
		c.Next()
	}
}
