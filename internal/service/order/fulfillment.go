package order

import (
	"context"

	"gorm.io/gorm"

	"mall/internal/event"
	"mall/internal/model"
	"mall/internal/repository"
	"mall/pkg/utils"
)

// ShipRequest admin ship action. DeliveryName/DeliveryID are carrier + tracking
// number for express and deliverer + phone for send.
type ShipRequest struct {
	OrderCode    string `json:"order_code" validate:"required"`
	DeliveryType string `json:"delivery_type" validate:"required,oneof=express send fictitious"`
	DeliveryName string `json:"delivery_name" validate:"max=64"`
	DeliveryID   string `json:"delivery_id" validate:"max=64"`
}

// TrackingRequest tracking number correction
type TrackingRequest struct {
	OrderCode    string `json:"order_code" validate:"required"`
	DeliveryName string `json:"delivery_name" validate:"max=64"`
	DeliveryID   string `json:"delivery_id" validate:"required,max=64"`
}

var shipChangeTypes = map[string]string{
	model.DeliveryExpress:    model.ChangeDeliveryGoods,
	model.DeliverySend:       model.ChangeDelivery,
	model.DeliveryFictitious: model.ChangeDeliveryVirt,
}

func validateShip(req *ShipRequest) error {
	if err := utils.ValidateStruct(req); err != nil {
		return err
	}
	switch req.DeliveryType {
	case model.DeliveryExpress:
		if req.DeliveryName == "" || req.DeliveryID == "" {
			return utils.NewError(utils.CodeValidation, "express shipping requires carrier name and tracking number")
		}
	case model.DeliverySend:
		if req.DeliveryName == "" {
			return utils.NewError(utils.CodeValidation, "hand delivery requires the deliverer name")
		}
		if err := utils.Validator().Var(req.DeliveryID, "required,phone"); err != nil {
			return utils.NewError(utils.CodeValidation, "hand delivery requires the deliverer phone")
		}
	}
	return nil
}

func (s *orderService) Ship(ctx context.Context, req *ShipRequest) (*model.Order, error) {
	if err := validateShip(req); err != nil {
		return nil, err
	}

	return s.transition(ctx, "ship", byCode(req.OrderCode), func(ctx context.Context, tx *gorm.DB, repo repository.OrderRepository, o *model.Order) ([]model.Event, error) {
		if !o.Paid {
			return nil, utils.NewErrorf(utils.CodeInvalidState, "order %s is unpaid", o.OrderCode)
		}
		if o.IsPickup() {
			return nil, utils.NewErrorf(utils.CodeInvalidState, "order %s is a pickup order, use write-off", o.OrderCode)
		}
		if o.Status != model.OrderStatusAwaitShip {
			return nil, utils.NewErrorf(utils.CodeInvalidState, "order %s is not awaiting shipment", o.OrderCode)
		}
		if o.RefundStatus != model.RefundStatusNone {
			return nil, utils.NewErrorf(utils.CodeInvalidState, "order %s has a refund in progress", o.OrderCode)
		}
		if err := s.checkTeamReady(ctx, tx, o); err != nil {
			return nil, err
		}

		updates := map[string]interface{}{
			"status":        model.OrderStatusAwaitReceipt,
			"delivery_type": req.DeliveryType,
			"delivery_name": "",
			"delivery_id":   "",
		}
		message := "shipped as virtual goods"
		if req.DeliveryType != model.DeliveryFictitious {
			updates["delivery_name"] = req.DeliveryName
			updates["delivery_id"] = req.DeliveryID
			message = "shipped via " + req.DeliveryName + " " + req.DeliveryID
		}
		if err := repo.Update(ctx, o.ID, updates); err != nil {
			return nil, err
		}
		if err := repo.AddLog(ctx, o.ID, shipChangeTypes[req.DeliveryType], message); err != nil {
			return nil, err
		}

		return []model.Event{event.New(model.EventOrderShipped, o.ID, map[string]interface{}{
			"order_code":    o.OrderCode,
			"user_id":       o.UserID,
			"delivery_type": req.DeliveryType,
		})}, nil
	})
}

func (s *orderService) CorrectTracking(ctx context.Context, req *TrackingRequest) (*model.Order, error) {
	if err := utils.ValidateStruct(req); err != nil {
		return nil, err
	}

	return s.transition(ctx, "tracking", byCode(req.OrderCode), func(ctx context.Context, tx *gorm.DB, repo repository.OrderRepository, o *model.Order) ([]model.Event, error) {
		if o.Status != model.OrderStatusAwaitReceipt || o.DeliveryType != model.DeliveryExpress {
			return nil, utils.NewErrorf(utils.CodeInvalidState, "order %s has no tracking number to correct", o.OrderCode)
		}

		name := o.DeliveryName
		if req.DeliveryName != "" {
			name = req.DeliveryName
		}
		if err := repo.Update(ctx, o.ID, map[string]interface{}{
			"delivery_name": name,
			"delivery_id":   req.DeliveryID,
		}); err != nil {
			return nil, err
		}
		return nil, repo.AddLog(ctx, o.ID, model.ChangeTracking, "tracking changed from "+o.DeliveryID+" to "+req.DeliveryID)
	})
}

func (s *orderService) WriteOff(ctx context.Context, verifyCode string) (*model.Order, error) {
	if verifyCode == "" {
		return nil, utils.NewError(utils.CodeValidation, "verify_code is required")
	}
	lock := func(ctx context.Context, repo repository.OrderRepository) (*model.Order, error) {
		return repo.LockByVerifyCode(ctx, verifyCode)
	}

	return s.transition(ctx, "write_off", lock, func(ctx context.Context, tx *gorm.DB, repo repository.OrderRepository, o *model.Order) ([]model.Event, error) {
		if !o.IsPickup() {
			return nil, utils.NewErrorf(utils.CodeInvalidState, "order %s is not a pickup order", o.OrderCode)
		}
		if !o.Paid {
			return nil, utils.NewErrorf(utils.CodeInvalidState, "order %s is unpaid", o.OrderCode)
		}
		if o.Status != model.OrderStatusAwaitShip {
			return nil, utils.NewErrorf(utils.CodeAlreadyProcessed, "order %s already written off", o.OrderCode)
		}
		if o.RefundStatus != model.RefundStatusNone {
			return nil, utils.NewErrorf(utils.CodeInvalidState, "order %s has a refund in progress", o.OrderCode)
		}
		if err := s.checkTeamReady(ctx, tx, o); err != nil {
			return nil, err
		}

		if err := repo.Update(ctx, o.ID, map[string]interface{}{"status": model.OrderStatusAwaitReview}); err != nil {
			return nil, err
		}
		return nil, repo.AddLog(ctx, o.ID, model.ChangeWriteOff, "written off at store")
	})
}

func (s *orderService) ConfirmReceipt(ctx context.Context, orderCode string, userID uint64) (*model.Order, error) {
	return s.transition(ctx, "receipt", byCode(orderCode), func(ctx context.Context, tx *gorm.DB, repo repository.OrderRepository, o *model.Order) ([]model.Event, error) {
		if o.UserID != userID {
			return nil, utils.NewErrorf(utils.CodeNotFound, "order %s not found", orderCode)
		}
		if o.Status != model.OrderStatusAwaitReceipt {
			return nil, utils.NewErrorf(utils.CodeInvalidState, "order %s is not awaiting receipt", o.OrderCode)
		}
		if o.RefundStatus == model.RefundStatusRefunded {
			return nil, utils.NewErrorf(utils.CodeInvalidState, "order %s is refunded", o.OrderCode)
		}

		if err := repo.Update(ctx, o.ID, map[string]interface{}{"status": model.OrderStatusAwaitReview}); err != nil {
			return nil, err
		}
		return nil, repo.AddLog(ctx, o.ID, model.ChangeTakeDelivery, "buyer confirmed receipt")
	})
}

func (s *orderService) Complete(ctx context.Context, orderCode string) (*model.Order, error) {
	return s.transition(ctx, "complete", byCode(orderCode), func(ctx context.Context, tx *gorm.DB, repo repository.OrderRepository, o *model.Order) ([]model.Event, error) {
		if o.Status != model.OrderStatusAwaitReview {
			return nil, utils.NewErrorf(utils.CodeInvalidState, "order %s is not awaiting review", o.OrderCode)
		}
		if err := repo.Update(ctx, o.ID, map[string]interface{}{"status": model.OrderStatusCompleted}); err != nil {
			return nil, err
		}
		return nil, repo.AddLog(ctx, o.ID, model.ChangeComplete, "order completed")
	})
}
