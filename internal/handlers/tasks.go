package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	v1 "github.com/openrail/provision-agent/api/v1"
)

// GetTask returns the current task snapshot
// (GET /task)
func (h *Handler) GetTask(c *gin.Context) {
	snap := h.wizard.Status().Task
	if snap == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "no task submitted"})
		return
	}
	var resp v1.Task
	resp.FromModel(*snap)
	c.JSON(http.StatusOK, resp)
}

// CancelTask requests cancellation of the running task
// (DELETE /task)
func (h *Handler) CancelTask(c *gin.Context) {
	h.wizard.Cancel()
	c.Status(http.StatusAccepted)
}
