package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/openrail/provision-agent/internal/models"
	"github.com/openrail/provision-agent/internal/services"
	"github.com/openrail/provision-agent/internal/store"
)

// Handler adapts the wizard to the HTTP API.
type Handler struct {
	wizard      *services.Wizard
	preferences *store.PreferenceStore
	signatures  *store.SignatureStore
}

func New(wizard *services.Wizard, preferences *store.PreferenceStore, signatures *store.SignatureStore) *Handler {
	return &Handler{wizard: wizard, preferences: preferences, signatures: signatures}
}

// writeError maps service failures onto status codes. Precondition
// violations are the client's problem; anything else is a conflict with
// the wizard's current state or an internal fault.
func writeError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, services.ErrTaskRunning):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
	case errors.Is(err, services.ErrStageMismatch), errors.Is(err, services.ErrNotSatisfied):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
	case errors.Is(err, store.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
	default:
		if te, ok := models.AsTaskError(err); ok && te.Kind == models.ErrKindConfigIncomplete {
			c.JSON(http.StatusUnprocessableEntity, gin.H{"error": te.Error()})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
	}
}
