package api

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/jonesrussell/gopost/internal/domain"
	"github.com/jonesrussell/gopost/internal/logger"
	"github.com/jonesrussell/gopost/internal/store"
)

type connectRequest struct {
	Token string `json:"token" binding:"required"`
}

// connectFacebook handles POST /api/facebook/connect. The token is
// verified against the platform; granted pages replace or update the
// stored entries with the same IDs.
func (r *Router) connectFacebook(c *gin.Context) {
	var req connectRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	pages, err := r.verifier.VerifyToken(c.Request.Context(), req.Token)
	if err != nil {
		r.logger.Warn("token verification failed", logger.Error(err))
		c.JSON(http.StatusBadGateway, gin.H{"error": domain.NormalizeError(err)})
		return
	}

	err = store.Update(c.Request.Context(), r.store, store.KeyPages,
		func(existing []domain.Page) ([]domain.Page, error) {
			return mergePages(existing, pages), nil
		})
	if err != nil {
		r.logger.Error("failed to store pages", logger.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to store pages"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"pages": sanitizePages(pages)})
}

// mergePages upserts the newly verified pages into the stored list.
func mergePages(existing, verified []domain.Page) []domain.Page {
	byID := make(map[string]int, len(existing))
	for i, page := range existing {
		byID[page.ID] = i
	}
	for _, page := range verified {
		if i, ok := byID[page.ID]; ok {
			existing[i] = page
			continue
		}
		existing = append(existing, page)
	}
	return existing
}

// sanitizePages strips access tokens before pages leave the service.
func sanitizePages(pages []domain.Page) []domain.Page {
	out := make([]domain.Page, len(pages))
	copy(out, pages)
	for i := range out {
		out[i].AccessToken = ""
	}
	return out
}

// listPages handles GET /api/facebook/pages
func (r *Router) listPages(c *gin.Context) {
	pages, err := store.Read[[]domain.Page](c.Request.Context(), r.store, store.KeyPages)
	if err != nil {
		r.logger.Error("failed to list pages", logger.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to list pages"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"pages": sanitizePages(pages)})
}

type updatePageRequest struct {
	Name        string `json:"name"`
	AccessToken string `json:"accessToken"`
}

// updatePage handles PUT /api/facebook/pages/:id. Only the supplied
// fields change; an empty field keeps the stored value.
func (r *Router) updatePage(c *gin.Context) {
	var req updatePageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	id := c.Param("id")
	found := false
	var updated domain.Page

	err := store.Update(c.Request.Context(), r.store, store.KeyPages,
		func(pages []domain.Page) ([]domain.Page, error) {
			for i := range pages {
				if pages[i].ID != id {
					continue
				}
				if req.Name != "" {
					pages[i].Name = req.Name
				}
				if req.AccessToken != "" {
					pages[i].AccessToken = req.AccessToken
				}
				updated = pages[i]
				found = true
				break
			}
			return pages, nil
		})
	if err != nil {
		r.logger.Error("failed to update page", logger.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to update page"})
		return
	}
	if !found {
		c.JSON(http.StatusNotFound, gin.H{"error": "page not found"})
		return
	}

	updated.AccessToken = ""
	c.JSON(http.StatusOK, updated)
}

// refreshPage handles POST /api/facebook/pages/:id/refresh: re-verifies
// the stored page token and updates the connection status.
func (r *Router) refreshPage(c *gin.Context) {
	id := c.Param("id")

	pages, err := store.Read[[]domain.Page](c.Request.Context(), r.store, store.KeyPages)
	if err != nil {
		r.logger.Error("failed to load pages", logger.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load pages"})
		return
	}

	var target *domain.Page
	for i := range pages {
		if pages[i].ID == id {
			target = &pages[i]
			break
		}
	}
	if target == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "page not found"})
		return
	}

	status := "connected"
	if _, verifyErr := r.verifier.VerifyToken(c.Request.Context(), target.AccessToken); verifyErr != nil {
		r.logger.Warn("page token verification failed",
			logger.String("page_id", id),
			logger.Error(verifyErr))
		status = "error"
	}

	now := time.Now().UTC()
	err = store.Update(c.Request.Context(), r.store, store.KeyPages,
		func(stored []domain.Page) ([]domain.Page, error) {
			for i := range stored {
				if stored[i].ID == id {
					stored[i].Status = status
					stored[i].LastChecked = now
				}
			}
			return stored, nil
		})
	if err != nil {
		r.logger.Error("failed to update page", logger.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to update page"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"id": id, "status": status, "lastChecked": now})
}

// disconnectPage handles DELETE /api/facebook/pages/:id
func (r *Router) disconnectPage(c *gin.Context) {
	id := c.Param("id")
	found := false

	err := store.Update(c.Request.Context(), r.store, store.KeyPages,
		func(pages []domain.Page) ([]domain.Page, error) {
			kept := pages[:0]
			for _, page := range pages {
				if page.ID == id {
					found = true
					continue
				}
				kept = append(kept, page)
			}
			return kept, nil
		})
	if err != nil {
		r.logger.Error("failed to disconnect page", logger.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to disconnect page"})
		return
	}
	if !found {
		c.JSON(http.StatusNotFound, gin.H{"error": "page not found"})
		return
	}

	c.Status(http.StatusNoContent)
}
