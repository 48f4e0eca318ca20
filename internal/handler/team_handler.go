package handler

import (
	"github.com/gin-gonic/gin"

	"mall/internal/service/order"
	"mall/internal/service/team"
	"mall/pkg/log"
	"mall/pkg/utils"
)

// TeamHandler group-buy endpoints
type TeamHandler struct {
	teamService  team.TeamService
	orderService order.OrderService
}

// NewTeamHandler creates a team handler
func NewTeamHandler(teamService team.TeamService, orderService order.OrderService) *TeamHandler {
	return &TeamHandler{
		teamService:  teamService,
		orderService: orderService,
	}
}

// GetTeam returns the team and its members
func (h *TeamHandler) GetTeam(c *gin.Context) {
	teamID, ok := pathID(c, "id")
	if !ok {
		return
	}
	view, err := h.teamService.Members(c.Request.Context(), teamID)
	if err != nil {
		utils.ErrorFrom(c, err)
		return
	}
	utils.SuccessResponse(c, view)
}

// CancelTeam fails the caller's open team and flags its paid orders for refund
func (h *TeamHandler) CancelTeam(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}
	teamID, ok := pathID(c, "id")
	if !ok {
		return
	}

	ctx := c.Request.Context()
	if err := h.teamService.Cancel(ctx, teamID, userID); err != nil {
		utils.ErrorFrom(c, err)
		return
	}

	// the sweeper picks the team up again if flagging fails here
	flagged, err := h.orderService.FlagTeamRefunds(ctx, teamID)
	if err != nil {
		log.WithContext(ctx).WithFields(log.Fields{
			"team_id": teamID,
			"error":   err.Error(),
		}).Error("Failed to flag refunds of cancelled team")
	}
	utils.SuccessResponse(c, gin.H{
		"team_id":         teamID,
		"refunds_flagged": flagged,
	})
}

// CreateCampaign admin: define a group-buy campaign
func (h *TeamHandler) CreateCampaign(c *gin.Context) {
	var req team.CreateCampaignRequest
	if !bindJSON(c, &req) {
		return
	}
	campaign, err := h.teamService.CreateCampaign(c.Request.Context(), &req)
	if err != nil {
		utils.ErrorFrom(c, err)
		return
	}
	utils.SuccessResponse(c, campaign)
}
