package server

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
)

type inventoryPushRequest struct {
	SKU       string `json:"sku"`
	Inventory *int   `json:"inventory"`
}

// UpdateInventory runs a full reconciliation, or pushes one item when the
// body names a sku and inventory.
func (s *Server) UpdateInventory(c *gin.Context) {
	raw, err := io.ReadAll(c.Request.Body)
	if err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	if len(bytes.TrimSpace(raw)) == 0 {
		result, err := s.jobs.RunInventorySync(c.Request.Context())
		if err != nil {
			AbortWithError(c, err)
			return
		}
		c.JSON(http.StatusOK, result)
		return
	}

	var req inventoryPushRequest
	if err := json.Unmarshal(raw, &req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}
	if strings.TrimSpace(req.SKU) == "" || req.Inventory == nil {
		AbortWithError(c, newValidationError("sku", "required", "sku and inventory are required"))
		return
	}
	s.pushInventory(c, req.SKU, *req.Inventory)
}

type inventoryLevelRequest struct {
	Inventory *int `json:"inventory"`
}

// PushInventory sets the storefront quantity for one item code.
func (s *Server) PushInventory(c *gin.Context) {
	var req inventoryLevelRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}
	if req.Inventory == nil {
		AbortWithError(c, newValidationError("inventory", "required", "inventory is required"))
		return
	}
	s.pushInventory(c, c.Param("code"), *req.Inventory)
}

func (s *Server) pushInventory(c *gin.Context, code string, qty int) {
	result, err := s.jobs.PushInventory(c.Request.Context(), strings.TrimSpace(code), qty)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

// PlaceIncompleteOrders re-drives every unplaced transaction record now.
func (s *Server) PlaceIncompleteOrders(c *gin.Context) {
	result, err := s.jobs.RunIncompleteOrderRecovery(c.Request.Context())
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

// RefreshProductVariants rebuilds the catalog mirror now.
func (s *Server) RefreshProductVariants(c *gin.Context) {
	result, err := s.jobs.RunCatalogRefresh(c.Request.Context())
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}
