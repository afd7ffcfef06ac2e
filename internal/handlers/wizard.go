package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	v1 "github.com/openrail/provision-agent/api/v1"
	"github.com/openrail/provision-agent/internal/models"
)

// GetWizardStatus returns the current wizard view
// (GET /wizard)
func (h *Handler) GetWizardStatus(c *gin.Context) {
	var resp v1.WizardStatus
	resp.FromModel(h.wizard.Status())
	c.JSON(http.StatusOK, resp)
}

// AdvanceWizard moves the wizard forward one stage
// (POST /wizard/advance)
func (h *Handler) AdvanceWizard(c *gin.Context) {
	if err := h.wizard.Advance(); err != nil {
		writeError(c, err)
		return
	}
	h.GetWizardStatus(c)
}

// StepBack returns the wizard to an earlier stage
// (POST /wizard/back)
func (h *Handler) StepBack(c *gin.Context) {
	var req v1.BackRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}
	if err := h.wizard.Back(models.Stage(req.Stage)); err != nil {
		writeError(c, err)
		return
	}
	h.GetWizardStatus(c)
}

// RetryStep re-submits the failed operation of the current stage
// (POST /wizard/retry)
func (h *Handler) RetryStep(c *gin.Context) {
	if err := h.wizard.Retry(); err != nil {
		writeError(c, err)
		return
	}
	h.GetWizardStatus(c)
}

// ResetWizard discards the session entirely
// (DELETE /wizard)
func (h *Handler) ResetWizard(c *gin.Context) {
	if err := h.wizard.Reset(); err != nil {
		writeError(c, err)
		return
	}
	h.GetWizardStatus(c)
}

// SelectDevice records the flash target
// (POST /wizard/device)
func (h *Handler) SelectDevice(c *gin.Context) {
	var req v1.SelectDeviceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}

	devices, err := h.wizard.ListDevices(c.Request.Context())
	if err != nil {
		writeError(c, err)
		return
	}
	var selected *models.Device
	for i := range devices {
		if devices[i].Port == req.Port {
			selected = &devices[i]
			break
		}
	}
	if selected == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "no device on port " + req.Port})
		return
	}
	if req.FQBN != "" {
		selected.FQBN = req.FQBN
	}

	if err := h.wizard.SelectDevice(*selected); err != nil {
		writeError(c, err)
		return
	}
	h.GetWizardStatus(c)
}

// SelectProduct records the firmware product
// (POST /wizard/product)
func (h *Handler) SelectProduct(c *gin.Context) {
	var req v1.SelectProductRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}
	if err := h.wizard.SelectProduct(c.Request.Context(), req.Name); err != nil {
		writeError(c, err)
		return
	}
	h.GetWizardStatus(c)
}

// StartToolchain submits the toolchain installation task
// (POST /wizard/toolchain)
func (h *Handler) StartToolchain(c *gin.Context) {
	if err := h.wizard.StartToolchain(); err != nil {
		writeError(c, err)
		return
	}
	h.GetWizardStatus(c)
}

// SyncRepository mirrors the selected product repository
// (POST /wizard/repository)
func (h *Handler) SyncRepository(c *gin.Context) {
	if err := h.wizard.SyncRepository(c.Request.Context()); err != nil {
		writeError(c, err)
		return
	}
	h.GetWizardStatus(c)
}

// CheckoutVersion switches the working copy to the requested release
// (POST /wizard/checkout)
func (h *Handler) CheckoutVersion(c *gin.Context) {
	var req v1.CheckoutRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}
	if err := h.wizard.Checkout(req.Ref); err != nil {
		writeError(c, err)
		return
	}
	h.GetWizardStatus(c)
}

// SetConfiguration merges options into the configuration set
// (PUT /wizard/config)
func (h *Handler) SetConfiguration(c *gin.Context) {
	var req v1.ConfigRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}
	if err := h.wizard.SetConfig(req.Options); err != nil {
		writeError(c, err)
		return
	}
	h.GetWizardStatus(c)
}

// ImportConfiguration copies existing configuration files into the
// working copy
// (POST /wizard/config/import)
func (h *Handler) ImportConfiguration(c *gin.Context) {
	var req v1.ImportConfigRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}
	if err := h.wizard.ImportConfig(c.Request.Context(), req.Path); err != nil {
		writeError(c, err)
		return
	}
	h.GetWizardStatus(c)
}

// StartBuild submits the compile task; the upload chains after it
// (POST /wizard/build)
func (h *Handler) StartBuild(c *gin.Context) {
	if err := h.wizard.StartBuild(c.Request.Context()); err != nil {
		writeError(c, err)
		return
	}
	h.GetWizardStatus(c)
}
