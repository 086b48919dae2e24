package api

import (
	"net/http"
	"sort"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/jonesrussell/gopost/internal/domain"
	"github.com/jonesrussell/gopost/internal/logger"
	"github.com/jonesrussell/gopost/internal/store"
)

func kindParam(c *gin.Context) (domain.ContentKind, bool) {
	kind := domain.ContentKind(c.Param("kind"))
	if !kind.Valid() {
		c.JSON(http.StatusBadRequest, gin.H{"error": "kind must be video or post"})
		return "", false
	}
	return kind, true
}

// listSchedules handles GET /api/schedules/:kind. The literal segment
// "recent" cannot be registered as a static sibling of :kind in gin's
// route tree, so it is dispatched from here.
func (r *Router) listSchedules(c *gin.Context) {
	if c.Param("kind") == "recent" {
		r.recentSchedules(c)
		return
	}

	kind, ok := kindParam(c)
	if !ok {
		return
	}

	schedules, err := store.Read[[]domain.Schedule](c.Request.Context(), r.store, store.SchedulesKey(kind))
	if err != nil {
		r.logger.Error("failed to list schedules", logger.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to list schedules"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"schedules": schedules})
}

type createScheduleRequest struct {
	Niche       string    `json:"niche" binding:"required"`
	PageID      string    `json:"pageId" binding:"required"`
	ScheduledAt time.Time `json:"scheduledAt" binding:"required"`
	IsDaily     bool      `json:"isDaily"`
}

// createSchedule handles POST /api/schedules/:kind. New schedules are
// always created pending; only the pipeline moves them further.
func (r *Router) createSchedule(c *gin.Context) {
	kind, ok := kindParam(c)
	if !ok {
		return
	}

	var req createScheduleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if !domain.ValidNiche(req.Niche) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "unknown niche"})
		return
	}

	pages, err := store.Read[[]domain.Page](c.Request.Context(), r.store, store.KeyPages)
	if err != nil {
		r.logger.Error("failed to load pages", logger.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load pages"})
		return
	}
	pageName := ""
	for _, page := range pages {
		if page.ID == req.PageID {
			pageName = page.Name
			break
		}
	}
	if pageName == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "page not connected"})
		return
	}

	sched := domain.Schedule{
		ID:          uuid.NewString(),
		Kind:        kind,
		Niche:       req.Niche,
		PageID:      req.PageID,
		PageName:    pageName,
		ScheduledAt: req.ScheduledAt.UTC(),
		IsDaily:     req.IsDaily,
		Status:      domain.StatusPending,
		CreatedAt:   time.Now().UTC(),
	}

	err = store.Update(c.Request.Context(), r.store, store.SchedulesKey(kind),
		func(schedules []domain.Schedule) ([]domain.Schedule, error) {
			return append([]domain.Schedule{sched}, schedules...), nil
		})
	if err != nil {
		r.logger.Error("failed to create schedule", logger.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to create schedule"})
		return
	}

	r.refresher.RequestRefresh()
	c.JSON(http.StatusCreated, sched)
}

// deleteSchedule handles DELETE /api/schedules/:kind/:id
func (r *Router) deleteSchedule(c *gin.Context) {
	kind, ok := kindParam(c)
	if !ok {
		return
	}

	id := c.Param("id")
	found := false
	err := store.Update(c.Request.Context(), r.store, store.SchedulesKey(kind),
		func(schedules []domain.Schedule) ([]domain.Schedule, error) {
			kept := schedules[:0]
			for _, sched := range schedules {
				if sched.ID == id {
					found = true
					continue
				}
				kept = append(kept, sched)
			}
			return kept, nil
		})
	if err != nil {
		r.logger.Error("failed to delete schedule", logger.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to delete schedule"})
		return
	}
	if !found {
		c.JSON(http.StatusNotFound, gin.H{"error": "schedule not found"})
		return
	}

	r.refresher.RequestRefresh()
	c.Status(http.StatusNoContent)
}

// recentSchedules handles GET /api/schedules/recent: terminal schedules
// across both kinds sorted by most recent activity.
func (r *Router) recentSchedules(c *gin.Context) {
	limit, err := strconv.Atoi(c.DefaultQuery("limit", "20"))
	if err != nil || limit <= 0 {
		limit = 20
	}

	recent := make([]domain.Schedule, 0, limit)
	for _, kind := range []domain.ContentKind{domain.KindVideo, domain.KindPost} {
		schedules, err := store.Read[[]domain.Schedule](c.Request.Context(), r.store, store.SchedulesKey(kind))
		if err != nil {
			r.logger.Error("failed to list schedules", logger.Error(err))
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to list schedules"})
			return
		}
		for _, sched := range schedules {
			if sched.Status == domain.StatusPosted || sched.Status == domain.StatusFailed {
				recent = append(recent, sched)
			}
		}
	}

	sort.SliceStable(recent, func(i, j int) bool {
		return activityTime(recent[i]).After(activityTime(recent[j]))
	})
	if len(recent) > limit {
		recent = recent[:limit]
	}

	c.JSON(http.StatusOK, gin.H{"schedules": recent})
}

// activityTime returns the timestamp a terminal schedule last changed.
func activityTime(sched domain.Schedule) time.Time {
	if sched.PublishedAt != nil {
		return *sched.PublishedAt
	}
	if sched.FailedAt != nil {
		return *sched.FailedAt
	}
	return sched.CreatedAt
}
