package handler

import (
	"github.com/gin-gonic/gin"

	"mall/internal/service/order"
	"mall/pkg/utils"
)

// OrderHandler buyer and admin order endpoints
type OrderHandler struct {
	orderService order.OrderService
}

// NewOrderHandler creates an order handler
func NewOrderHandler(orderService order.OrderService) *OrderHandler {
	return &OrderHandler{
		orderService: orderService,
	}
}

// CreateOrder checks out the caller's cart
func (h *OrderHandler) CreateOrder(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}
	var req order.CreateOrderRequest
	if !bindJSON(c, &req) {
		return
	}
	req.UserID = userID

	o, err := h.orderService.Create(c.Request.Context(), &req)
	if err != nil {
		utils.ErrorFrom(c, err)
		return
	}
	utils.SuccessResponse(c, o)
}

// GetOrder returns one of the caller's orders
func (h *OrderHandler) GetOrder(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}
	view, ok := h.ownedOrder(c, userID)
	if !ok {
		return
	}
	utils.SuccessResponse(c, view)
}

// GetOrderLogs returns the status log of one of the caller's orders
func (h *OrderHandler) GetOrderLogs(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}
	if _, ok := h.ownedOrder(c, userID); !ok {
		return
	}
	h.writeLogs(c)
}

func (h *OrderHandler) ownedOrder(c *gin.Context, userID uint64) (*order.OrderView, bool) {
	code := c.Param("code")
	view, err := h.orderService.Get(c.Request.Context(), code)
	if err != nil {
		utils.ErrorFrom(c, err)
		return nil, false
	}
	// other buyers' orders are reported as missing
	if view.UserID != userID || view.IsDel {
		utils.Error(c, utils.CodeNotFound, "order "+code+" not found")
		return nil, false
	}
	return view, true
}

func (h *OrderHandler) writeLogs(c *gin.Context) {
	logs, err := h.orderService.Logs(c.Request.Context(), c.Param("code"))
	if err != nil {
		utils.ErrorFrom(c, err)
		return
	}
	utils.SuccessResponse(c, logs)
}

type refundBody struct {
	Reason string `json:"reason"`
	Amount int64  `json:"amount"`
}

// RequestRefund buyer refund request
func (h *OrderHandler) RequestRefund(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}
	var body refundBody
	if !bindJSON(c, &body) {
		return
	}

	o, err := h.orderService.RequestRefund(c.Request.Context(), &order.RefundRequest{
		OrderCode: c.Param("code"),
		UserID:    userID,
		Reason:    body.Reason,
		Amount:    body.Amount,
	})
	if err != nil {
		utils.ErrorFrom(c, err)
		return
	}
	utils.SuccessResponse(c, o)
}

// ConfirmReceipt buyer confirms delivery
func (h *OrderHandler) ConfirmReceipt(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}
	o, err := h.orderService.ConfirmReceipt(c.Request.Context(), c.Param("code"), userID)
	if err != nil {
		utils.ErrorFrom(c, err)
		return
	}
	utils.SuccessResponse(c, o)
}

// DeleteOrder buyer soft delete
func (h *OrderHandler) DeleteOrder(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}
	o, err := h.orderService.SoftDelete(c.Request.Context(), c.Param("code"), userID)
	if err != nil {
		utils.ErrorFrom(c, err)
		return
	}
	utils.SuccessResponse(c, o)
}

// AdminGetOrder returns any order
func (h *OrderHandler) AdminGetOrder(c *gin.Context) {
	view, err := h.orderService.Get(c.Request.Context(), c.Param("code"))
	if err != nil {
		utils.ErrorFrom(c, err)
		return
	}
	utils.SuccessResponse(c, view)
}

// AdminGetOrderLogs returns the status log of any order
func (h *OrderHandler) AdminGetOrderLogs(c *gin.Context) {
	h.writeLogs(c)
}

// Ship moves a paid order to awaiting receipt
func (h *OrderHandler) Ship(c *gin.Context) {
	var req order.ShipRequest
	if !bindJSON(c, &req) {
		return
	}
	req.OrderCode = c.Param("code")

	o, err := h.orderService.Ship(c.Request.Context(), &req)
	if err != nil {
		utils.ErrorFrom(c, err)
		return
	}
	utils.SuccessResponse(c, o)
}

// CorrectTracking replaces the tracking number of a shipped order
func (h *OrderHandler) CorrectTracking(c *gin.Context) {
	var req order.TrackingRequest
	if !bindJSON(c, &req) {
		return
	}
	req.OrderCode = c.Param("code")

	o, err := h.orderService.CorrectTracking(c.Request.Context(), &req)
	if err != nil {
		utils.ErrorFrom(c, err)
		return
	}
	utils.SuccessResponse(c, o)
}

// ChangePrice edits the pay price of an unpaid order
func (h *OrderHandler) ChangePrice(c *gin.Context) {
	var req order.ChangePriceRequest
	if !bindJSON(c, &req) {
		return
	}
	req.OrderCode = c.Param("code")

	o, err := h.orderService.ChangePrice(c.Request.Context(), &req)
	if err != nil {
		utils.ErrorFrom(c, err)
		return
	}
	utils.SuccessResponse(c, o)
}

// ApproveRefund pays out a refund
func (h *OrderHandler) ApproveRefund(c *gin.Context) {
	var req order.ApproveRefundRequest
	if !bindJSON(c, &req) {
		return
	}
	req.OrderCode = c.Param("code")

	o, err := h.orderService.ApproveRefund(c.Request.Context(), &req)
	if err != nil {
		utils.ErrorFrom(c, err)
		return
	}
	utils.SuccessResponse(c, o)
}

// RejectRefund declines a pending refund
func (h *OrderHandler) RejectRefund(c *gin.Context) {
	var req order.RejectRefundRequest
	if !bindJSON(c, &req) {
		return
	}
	req.OrderCode = c.Param("code")

	o, err := h.orderService.RejectRefund(c.Request.Context(), &req)
	if err != nil {
		utils.ErrorFrom(c, err)
		return
	}
	utils.SuccessResponse(c, o)
}

type writeOffBody struct {
	VerifyCode string `json:"verify_code" binding:"required"`
}

// WriteOff redeems a pickup order at the store
func (h *OrderHandler) WriteOff(c *gin.Context) {
	var body writeOffBody
	if !bindJSON(c, &body) {
		return
	}
	o, err := h.orderService.WriteOff(c.Request.Context(), body.VerifyCode)
	if err != nil {
		utils.ErrorFrom(c, err)
		return
	}
	utils.SuccessResponse(c, o)
}

// Complete closes an order awaiting review
func (h *OrderHandler) Complete(c *gin.Context) {
	o, err := h.orderService.Complete(c.Request.Context(), c.Param("code"))
	if err != nil {
		utils.ErrorFrom(c, err)
		return
	}
	utils.SuccessResponse(c, o)
}

// SystemDelete removes a buyer-deleted order from admin listings
func (h *OrderHandler) SystemDelete(c *gin.Context) {
	o, err := h.orderService.SystemDelete(c.Request.Context(), c.Param("code"))
	if err != nil {
		utils.ErrorFrom(c, err)
		return
	}
	utils.SuccessResponse(c, o)
}

// PaymentCallback records a gateway payment notification. Redelivery of an
// already recorded payment answers success.
func (h *OrderHandler) PaymentCallback(c *gin.Context) {
	var req order.PaymentRequest
	if !bindJSON(c, &req) {
		return
	}
	o, err := h.orderService.RecordPayment(c.Request.Context(), &req)
	if err != nil {
		utils.ErrorFrom(c, err)
		return
	}
	utils.SuccessResponse(c, gin.H{
		"order_code": o.OrderCode,
		"paid":       o.Paid,
		"pay_type":   o.PayType,
	})
}
