package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	v1 "github.com/openrail/provision-agent/api/v1"
)

// ListDevices enumerates attached serial devices
// (GET /devices)
func (h *Handler) ListDevices(c *gin.Context) {
	devices, err := h.wizard.ListDevices(c.Request.Context())
	if err != nil {
		writeError(c, err)
		return
	}
	resp := v1.DeviceList{Devices: make([]v1.Device, 0, len(devices))}
	for _, d := range devices {
		var wire v1.Device
		wire.FromModel(d)
		resp.Devices = append(resp.Devices, wire)
	}
	c.JSON(http.StatusOK, resp)
}

// ListBoards returns the known-board catalog for manual selection
// (GET /boards)
func (h *Handler) ListBoards(c *gin.Context) {
	sigs, err := h.signatures.List(c.Request.Context())
	if err != nil {
		writeError(c, err)
		return
	}
	resp := v1.BoardList{Boards: make([]v1.Board, 0, len(sigs))}
	for _, sig := range sigs {
		resp.Boards = append(resp.Boards, v1.Board{
			Name:      sig.Board,
			FQBN:      sig.FQBN,
			VendorID:  sig.VendorID,
			ProductID: sig.ProductID,
		})
	}
	c.JSON(http.StatusOK, resp)
}

// ListProducts returns the catalog, filtered to the selected device
// (GET /products)
func (h *Handler) ListProducts(c *gin.Context) {
	products, err := h.wizard.ListProducts(c.Request.Context())
	if err != nil {
		writeError(c, err)
		return
	}
	resp := v1.ProductList{Products: make([]v1.Product, 0, len(products))}
	for _, p := range products {
		var wire v1.Product
		wire.FromModel(p)
		resp.Products = append(resp.Products, wire)
	}
	c.JSON(http.StatusOK, resp)
}
