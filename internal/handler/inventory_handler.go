package handler

import (
	"github.com/gin-gonic/gin"

	"mall/internal/service/inventory"
	"mall/pkg/utils"
)

const ownerTypes = "oneof=product flashsale bargain team"

// InventoryHandler admin stock endpoints
type InventoryHandler struct {
	inventoryService inventory.InventoryService
}

// NewInventoryHandler creates an inventory handler
func NewInventoryHandler(inventoryService inventory.InventoryService) *InventoryHandler {
	return &InventoryHandler{inventoryService: inventoryService}
}

func (h *InventoryHandler) owner(c *gin.Context) (string, uint64, bool) {
	ownerType := c.Param("owner_type")
	if err := utils.Validator().Var(ownerType, "required,"+ownerTypes); err != nil {
		utils.Error(c, utils.CodeValidation, "owner_type must be one of product, flashsale, bargain, team")
		return "", 0, false
	}
	ownerID, ok := pathID(c, "owner_id")
	return ownerType, ownerID, ok
}

type restockBody struct {
	SkuKey   string `json:"sku_key" binding:"required"`
	Quantity int    `json:"quantity" binding:"required,gt=0"`
}

// Restock adds stock to one ledger entry
func (h *InventoryHandler) Restock(c *gin.Context) {
	ownerType, ownerID, ok := h.owner(c)
	if !ok {
		return
	}
	var body restockBody
	if !bindJSON(c, &body) {
		return
	}

	ctx := c.Request.Context()
	if err := h.inventoryService.Restock(ctx, ownerType, ownerID, body.SkuKey, body.Quantity); err != nil {
		utils.ErrorFrom(c, err)
		return
	}
	sku, err := h.inventoryService.GetStock(ctx, ownerType, ownerID, body.SkuKey)
	if err != nil {
		utils.ErrorFrom(c, err)
		return
	}
	utils.SuccessResponse(c, sku)
}

type replaceSkusBody struct {
	Skus []inventory.SkuSpec `json:"skus" binding:"required"`
}

// ReplaceSkus replaces the SKU set of an owner
func (h *InventoryHandler) ReplaceSkus(c *gin.Context) {
	ownerType, ownerID, ok := h.owner(c)
	if !ok {
		return
	}
	var body replaceSkusBody
	if !bindJSON(c, &body) {
		return
	}
	if err := h.inventoryService.ReplaceSkus(c.Request.Context(), ownerType, ownerID, body.Skus); err != nil {
		utils.ErrorFrom(c, err)
		return
	}
	utils.SuccessResponse(c, gin.H{
		"owner_type": ownerType,
		"owner_id":   ownerID,
		"skus":       len(body.Skus),
	})
}

// GetStock one ledger entry
func (h *InventoryHandler) GetStock(c *gin.Context) {
	ownerType, ownerID, ok := h.owner(c)
	if !ok {
		return
	}
	sku, err := h.inventoryService.GetStock(c.Request.Context(), ownerType, ownerID, c.Param("sku_key"))
	if err != nil {
		utils.ErrorFrom(c, err)
		return
	}
	utils.SuccessResponse(c, sku)
}
