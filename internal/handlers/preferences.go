package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	v1 "github.com/openrail/provision-agent/api/v1"
)

// GetPreferences returns the stored user preferences
// (GET /preferences)
func (h *Handler) GetPreferences(c *gin.Context) {
	prefs, err := h.preferences.List(c.Request.Context())
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, v1.Preferences{Preferences: prefs})
}

// SetPreferences stores or updates user preferences
// (PUT /preferences)
func (h *Handler) SetPreferences(c *gin.Context) {
	var req v1.Preferences
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, v1.Error{Error: err.Error()})
		return
	}
	if err := h.preferences.Set(c.Request.Context(), req.Preferences); err != nil {
		writeError(c, err)
		return
	}
	h.GetPreferences(c)
}
