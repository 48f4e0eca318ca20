package handler

import (
	"time"

	"github.com/gin-gonic/gin"

	"mall/internal/service/flashsale"
	"mall/pkg/utils"
)

// FlashSaleHandler flash-sale endpoints
type FlashSaleHandler struct {
	flashSaleService flashsale.FlashSaleService
	now              func() time.Time
}

// NewFlashSaleHandler creates a flash-sale handler
func NewFlashSaleHandler(flashSaleService flashsale.FlashSaleService) *FlashSaleHandler {
	return &FlashSaleHandler{
		flashSaleService: flashSaleService,
		now:              time.Now,
	}
}

// CurrentSlots slots open right now
func (h *FlashSaleHandler) CurrentSlots(c *gin.Context) {
	slots, err := h.flashSaleService.CurrentSlots(c.Request.Context(), h.now())
	if err != nil {
		utils.ErrorFrom(c, err)
		return
	}
	utils.SuccessResponse(c, slots)
}

// Availability whether a listing can be bought right now
func (h *FlashSaleHandler) Availability(c *gin.Context) {
	listingID, ok := pathID(c, "id")
	if !ok {
		return
	}
	availability, err := h.flashSaleService.CheckAvailability(c.Request.Context(), listingID, h.now())
	if err != nil {
		utils.ErrorFrom(c, err)
		return
	}
	utils.SuccessResponse(c, availability)
}

// ListSlots admin: every slot
func (h *FlashSaleHandler) ListSlots(c *gin.Context) {
	slots, err := h.flashSaleService.ListSlots(c.Request.Context())
	if err != nil {
		utils.ErrorFrom(c, err)
		return
	}
	utils.SuccessResponse(c, slots)
}

// CreateSlot admin
func (h *FlashSaleHandler) CreateSlot(c *gin.Context) {
	var req flashsale.SlotRequest
	if !bindJSON(c, &req) {
		return
	}
	slot, err := h.flashSaleService.CreateSlot(c.Request.Context(), &req)
	if err != nil {
		utils.ErrorFrom(c, err)
		return
	}
	utils.SuccessResponse(c, slot)
}

// UpdateSlot admin
func (h *FlashSaleHandler) UpdateSlot(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	var req flashsale.SlotRequest
	if !bindJSON(c, &req) {
		return
	}
	slot, err := h.flashSaleService.UpdateSlot(c.Request.Context(), id, &req)
	if err != nil {
		utils.ErrorFrom(c, err)
		return
	}
	utils.SuccessResponse(c, slot)
}

// DeleteSlot admin
func (h *FlashSaleHandler) DeleteSlot(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	if err := h.flashSaleService.DeleteSlot(c.Request.Context(), id); err != nil {
		utils.ErrorFrom(c, err)
		return
	}
	utils.SuccessResponse(c, gin.H{"id": id})
}

// CreateListing admin
func (h *FlashSaleHandler) CreateListing(c *gin.Context) {
	var req flashsale.CreateListingRequest
	if !bindJSON(c, &req) {
		return
	}
	listing, err := h.flashSaleService.CreateListing(c.Request.Context(), &req)
	if err != nil {
		utils.ErrorFrom(c, err)
		return
	}
	utils.SuccessResponse(c, listing)
}
