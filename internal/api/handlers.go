package api

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/jonesrussell/gopost/internal/domain"
	"github.com/jonesrussell/gopost/internal/logger"
	"github.com/jonesrussell/gopost/internal/store"
)

// manualRunTimeout bounds a manually triggered job. Generous because a
// full video render plus upload can take minutes.
const manualRunTimeout = 30 * time.Minute

// getSettings handles GET /api/settings
func (r *Router) getSettings(c *gin.Context) {
	settings, err := store.Read[domain.Settings](c.Request.Context(), r.store, store.KeySettings)
	if err != nil {
		r.logger.Error("failed to load settings", logger.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load settings"})
		return
	}

	c.JSON(http.StatusOK, settings)
}

// updateSettings handles PUT /api/settings
func (r *Router) updateSettings(c *gin.Context) {
	var settings domain.Settings
	if err := c.ShouldBindJSON(&settings); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if err := store.Write(c.Request.Context(), r.store, store.KeySettings, settings); err != nil {
		r.logger.Error("failed to save settings", logger.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to save settings"})
		return
	}

	c.JSON(http.StatusOK, settings)
}

// deleteCatboxHash handles DELETE /api/settings/catbox
func (r *Router) deleteCatboxHash(c *gin.Context) {
	err := store.Update(c.Request.Context(), r.store, store.KeySettings,
		func(settings domain.Settings) (domain.Settings, error) {
			settings.CatboxHash = ""
			return settings, nil
		})
	if err != nil {
		r.logger.Error("failed to clear catbox hash", logger.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to clear catbox hash"})
		return
	}

	c.Status(http.StatusNoContent)
}

// listPublished handles GET /api/published/:kind
func (r *Router) listPublished(c *gin.Context) {
	kind, ok := kindParam(c)
	if !ok {
		return
	}

	limit, err := strconv.Atoi(c.DefaultQuery("limit", "50"))
	if err != nil || limit <= 0 {
		limit = 50
	}

	items, err := store.Read[[]domain.PublishedItem](c.Request.Context(), r.store, store.PublishedKey(kind))
	if err != nil {
		r.logger.Error("failed to list published items", logger.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to list published items"})
		return
	}
	if len(items) > limit {
		items = items[:limit]
	}

	c.JSON(http.StatusOK, gin.H{
		"items": items,
		"count": len(items),
	})
}

// listLogs handles GET /api/logs
func (r *Router) listLogs(c *gin.Context) {
	limit, err := strconv.Atoi(c.DefaultQuery("limit", "100"))
	if err != nil || limit <= 0 {
		limit = 100
	}

	events, err := store.Read[[]domain.LogEvent](c.Request.Context(), r.store, store.KeyLogs)
	if err != nil {
		r.logger.Error("failed to list logs", logger.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to list logs"})
		return
	}
	if len(events) > limit {
		events = events[:limit]
	}

	c.JSON(http.StatusOK, gin.H{"logs": events})
}

// listNiches handles GET /api/niches
func (r *Router) listNiches(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"niches": domain.Niches})
}

// runNow handles POST /api/run/:kind/:id. The job runs in the
// background; the response only acknowledges the dispatch. The pipeline
// records the outcome on the schedule and in the event log.
func (r *Router) runNow(c *gin.Context) {
	kind, ok := kindParam(c)
	if !ok {
		return
	}
	id := c.Param("id")

	schedules, err := store.Read[[]domain.Schedule](c.Request.Context(), r.store, store.SchedulesKey(kind))
	if err != nil {
		r.logger.Error("failed to load schedules", logger.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load schedules"})
		return
	}
	found := false
	for _, sched := range schedules {
		if sched.ID == id {
			if sched.Status == domain.StatusGenerating {
				c.JSON(http.StatusConflict, gin.H{"error": "job is already running"})
				return
			}
			found = true
			break
		}
	}
	if !found {
		c.JSON(http.StatusNotFound, gin.H{"error": "schedule not found"})
		return
	}

	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), manualRunTimeout)
		defer cancel()

		if err := r.runner.RunByID(ctx, kind, id); err != nil {
			r.logger.Error("manual run failed",
				logger.String("schedule_id", id),
				logger.Error(err))
		}
	}()

	c.JSON(http.StatusAccepted, gin.H{"id": id, "status": "started"})
}
