package api

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/jonesrussell/gopost/internal/domain"
	"github.com/jonesrussell/gopost/internal/logger"
	"github.com/jonesrussell/gopost/internal/store"
)

// maskKey hides all but the last four characters of an API key.
func maskKey(key string) string {
	const visible = 4
	if len(key) <= visible {
		return strings.Repeat("*", len(key))
	}
	return strings.Repeat("*", len(key)-visible) + key[len(key)-visible:]
}

// maskedCredential is the API representation of a credential; raw keys
// never leave the service.
type maskedCredential struct {
	domain.Credential
	Key string `json:"key"`
}

func maskCredentials(creds []domain.Credential) []maskedCredential {
	out := make([]maskedCredential, 0, len(creds))
	for _, cred := range creds {
		out = append(out, maskedCredential{Credential: cred, Key: maskKey(cred.Key)})
	}
	return out
}

func providerParam(c *gin.Context) (domain.Provider, bool) {
	provider := domain.Provider(c.Param("provider"))
	if !domain.ValidProvider(provider) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "unknown provider"})
		return "", false
	}
	return provider, true
}

// listKeys handles GET /api/keys/:provider
func (r *Router) listKeys(c *gin.Context) {
	provider, ok := providerParam(c)
	if !ok {
		return
	}

	creds, err := r.keys.List(c.Request.Context(), provider)
	if err != nil {
		r.logger.Error("failed to list keys", logger.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to list keys"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"keys": maskCredentials(creds)})
}

type addKeyRequest struct {
	Name string `json:"name" binding:"required"`
	Key  string `json:"key" binding:"required"`
}

// addKey handles POST /api/keys/:provider
func (r *Router) addKey(c *gin.Context) {
	provider, ok := providerParam(c)
	if !ok {
		return
	}

	var req addKeyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	cred := domain.Credential{
		ID:       uuid.NewString(),
		Provider: provider,
		Name:     strings.TrimSpace(req.Name),
		Key:      strings.TrimSpace(req.Key),
		Status:   domain.CredentialActive,
	}

	err := store.Update(c.Request.Context(), r.store, store.CredentialsKey(provider),
		func(creds []domain.Credential) ([]domain.Credential, error) {
			return append(creds, cred), nil
		})
	if err != nil {
		r.logger.Error("failed to add key", logger.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to add key"})
		return
	}

	c.JSON(http.StatusCreated, maskedCredential{Credential: cred, Key: maskKey(cred.Key)})
}

type setKeyStatusRequest struct {
	Status string `json:"status" binding:"required"`
}

// setKeyStatus handles PATCH /api/keys/:provider/:id. Status flips are
// always operator-driven; nothing in the pipeline deactivates keys.
func (r *Router) setKeyStatus(c *gin.Context) {
	provider, ok := providerParam(c)
	if !ok {
		return
	}

	var req setKeyStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if req.Status != domain.CredentialActive && req.Status != domain.CredentialInactive {
		c.JSON(http.StatusBadRequest, gin.H{"error": "status must be active or inactive"})
		return
	}

	id := c.Param("id")
	found := false
	err := store.Update(c.Request.Context(), r.store, store.CredentialsKey(provider),
		func(creds []domain.Credential) ([]domain.Credential, error) {
			for i := range creds {
				if creds[i].ID == id {
					creds[i].Status = req.Status
					found = true
					break
				}
			}
			return creds, nil
		})
	if err != nil {
		r.logger.Error("failed to update key", logger.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to update key"})
		return
	}
	if !found {
		c.JSON(http.StatusNotFound, gin.H{"error": "key not found"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"id": id, "status": req.Status})
}

// deleteKey handles DELETE /api/keys/:provider/:id
func (r *Router) deleteKey(c *gin.Context) {
	provider, ok := providerParam(c)
	if !ok {
		return
	}

	id := c.Param("id")
	found := false
	err := store.Update(c.Request.Context(), r.store, store.CredentialsKey(provider),
		func(creds []domain.Credential) ([]domain.Credential, error) {
			kept := creds[:0]
			for _, cred := range creds {
				if cred.ID == id {
					found = true
					continue
				}
				kept = append(kept, cred)
			}
			return kept, nil
		})
	if err != nil {
		r.logger.Error("failed to delete key", logger.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to delete key"})
		return
	}
	if !found {
		c.JSON(http.StatusNotFound, gin.H{"error": "key not found"})
		return
	}

	c.Status(http.StatusNoContent)
}
