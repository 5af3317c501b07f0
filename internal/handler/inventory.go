package handler

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"leadmatch/internal/inventory"
)

// Inventory exposes the snapshot cache
type Inventory interface {
	Refresh(ctx context.Context, force bool) error
	Status() inventory.Status
}

// InventoryHandler handles inventory status and refresh requests
type InventoryHandler struct {
	inventory Inventory
}

// NewInventoryHandler creates a new inventory handler
func NewInventoryHandler(inv Inventory) *InventoryHandler {
	return &InventoryHandler{inventory: inv}
}

// Status handles GET /api/v1/inventory
func (h *InventoryHandler) Status(c *gin.Context) {
	c.JSON(http.StatusOK, h.inventory.Status())
}

// Refresh handles POST /api/v1/inventory/refresh?force=true
func (h *InventoryHandler) Refresh(c *gin.Context) {
	force := c.Query("force") == "true"
	if err := h.inventory.Refresh(c.Request.Context(), force); err != nil {
		if errors.Is(err, inventory.ErrSourceUnavailable) {
			c.JSON(http.StatusServiceUnavailable, gin.H{"error": "Inventory source is not authorized"})
			return
		}
		respondError(c, "Inventory refresh", err)
		return
	}
	c.JSON(http.StatusOK, h.inventory.Status())
}
