package handler

import (
	"github.com/gin-gonic/gin"

	"mall/internal/service/bargain"
	"mall/pkg/utils"
)

// BargainHandler bargain endpoints
type BargainHandler struct {
	bargainService bargain.BargainService
}

// NewBargainHandler creates a bargain handler
func NewBargainHandler(bargainService bargain.BargainService) *BargainHandler {
	return &BargainHandler{bargainService: bargainService}
}

// StartSession opens the caller's negotiation on a campaign
func (h *BargainHandler) StartSession(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}
	campaignID, ok := pathID(c, "campaign_id")
	if !ok {
		return
	}
	session, err := h.bargainService.StartSession(c.Request.Context(), campaignID, userID)
	if err != nil {
		utils.ErrorFrom(c, err)
		return
	}
	utils.SuccessResponse(c, session)
}

// Help applies the caller's cut to someone's session
func (h *BargainHandler) Help(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}
	sessionID, ok := pathID(c, "id")
	if !ok {
		return
	}
	result, err := h.bargainService.ApplyCut(c.Request.Context(), sessionID, userID)
	if err != nil {
		utils.ErrorFrom(c, err)
		return
	}
	utils.SuccessResponse(c, result)
}

// GetSession session with its effective status
func (h *BargainHandler) GetSession(c *gin.Context) {
	sessionID, ok := pathID(c, "id")
	if !ok {
		return
	}
	view, err := h.bargainService.GetSession(c.Request.Context(), sessionID)
	if err != nil {
		utils.ErrorFrom(c, err)
		return
	}
	utils.SuccessResponse(c, view)
}

// CreateCampaign admin: define a bargain campaign
func (h *BargainHandler) CreateCampaign(c *gin.Context) {
	var req bargain.CreateCampaignRequest
	if !bindJSON(c, &req) {
		return
	}
	campaign, err := h.bargainService.CreateCampaign(c.Request.Context(), &req)
	if err != nil {
		utils.ErrorFrom(c, err)
		return
	}
	utils.SuccessResponse(c, campaign)
}
