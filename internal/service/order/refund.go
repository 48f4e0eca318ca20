package order

import (
	"context"
	"time"

	"gorm.io/gorm"

	"mall/internal/event"
	"mall/internal/model"
	"mall/internal/monitor"
	"mall/internal/repository"
	"mall/pkg/log"
	"mall/pkg/utils"
)

const teamFailedReason = "team failed"

// RefundRequest buyer refund request; Amount 0 asks for the full refundable amount
type RefundRequest struct {
	OrderCode string `json:"order_code" validate:"required"`
	UserID    uint64 `json:"user_id" validate:"required"`
	Reason    string `json:"reason" validate:"required,max=255"`
	Amount    int64  `json:"amount" validate:"gte=0"`
}

// ApproveRefundRequest admin approval with the amount actually refunded
type ApproveRefundRequest struct {
	OrderCode string `json:"order_code" validate:"required"`
	Amount    int64  `json:"amount" validate:"gte=0"`
}

// RejectRefundRequest admin rejection
type RejectRefundRequest struct {
	OrderCode string `json:"order_code" validate:"required"`
	Reason    string `json:"reason" validate:"required,max=255"`
}

func (s *orderService) RequestRefund(ctx context.Context, req *RefundRequest) (*model.Order, error) {
	if err := utils.ValidateStruct(req); err != nil {
		return nil, err
	}

	return s.transition(ctx, "refund_request", byCode(req.OrderCode), func(ctx context.Context, tx *gorm.DB, repo repository.OrderRepository, o *model.Order) ([]model.Event, error) {
		if o.UserID != req.UserID {
			return nil, utils.NewErrorf(utils.CodeNotFound, "order %s not found", req.OrderCode)
		}
		if !o.Paid {
			return nil, utils.NewErrorf(utils.CodeInvalidState, "order %s is unpaid", o.OrderCode)
		}
		if o.RefundStatus != model.RefundStatusNone {
			return nil, utils.NewErrorf(utils.CodeInvalidState, "order %s already has a refund", o.OrderCode)
		}
		amount := req.Amount
		if amount == 0 {
			amount = o.Refundable()
		}
		if amount > o.Refundable() {
			return nil, utils.NewErrorf(utils.CodeAmountMismatch, "refund %s exceeds refundable %s",
				utils.FormatCents(amount), utils.FormatCents(o.Refundable()))
		}

		if err := repo.Update(ctx, o.ID, map[string]interface{}{
			"refund_status": model.RefundStatusRequested,
			"refund_reason": req.Reason,
			"refund_amount": amount,
			"refuse_reason": "",
		}); err != nil {
			return nil, err
		}

		var events []model.Event
		if o.TeamID > 0 {
			_, teamEvents, err := s.teams.FailForRefundTx(ctx, tx, o.ID)
			if err != nil {
				return nil, err
			}
			events = teamEvents
		}
		return events, repo.AddLog(ctx, o.ID, model.ChangeRefundApply, "refund of "+utils.FormatCents(amount)+" requested: "+req.Reason)
	})
}

func (s *orderService) ApproveRefund(ctx context.Context, req *ApproveRefundRequest) (*model.Order, error) {
	if err := utils.ValidateStruct(req); err != nil {
		return nil, err
	}

	return s.transition(ctx, "refund_approve", byCode(req.OrderCode), func(ctx context.Context, tx *gorm.DB, repo repository.OrderRepository, o *model.Order) ([]model.Event, error) {
		if !o.Paid {
			return nil, utils.NewErrorf(utils.CodeInvalidState, "order %s is unpaid", o.OrderCode)
		}
		if req.Amount <= 0 && o.PayPrice > 0 {
			return nil, utils.NewError(utils.CodeValidation, "refund amount must be positive")
		}
		if req.Amount > o.Refundable() {
			return nil, utils.NewErrorf(utils.CodeAmountMismatch, "refund %s exceeds refundable %s",
				utils.FormatCents(req.Amount), utils.FormatCents(o.Refundable()))
		}
		if o.RefundStatus == model.RefundStatusRefunded {
			return nil, utils.NewErrorf(utils.CodeInvalidState, "order %s is already refunded", o.OrderCode)
		}

		if err := repo.Update(ctx, o.ID, map[string]interface{}{
			"refund_status": model.RefundStatusRefunded,
			"refund_price":  o.RefundPrice + req.Amount,
			"refund_amount": req.Amount,
		}); err != nil {
			return nil, err
		}
		if o.PayType == model.PayTypeBalance && req.Amount > 0 {
			if err := s.users.WithTx(tx).Credit(ctx, o.UserID, req.Amount); err != nil {
				return nil, err
			}
		}

		var events []model.Event
		if o.TeamID > 0 {
			_, teamEvents, err := s.teams.FailForRefundTx(ctx, tx, o.ID)
			if err != nil {
				return nil, err
			}
			events = teamEvents
		}
		if err := repo.AddLog(ctx, o.ID, model.ChangeRefundPrice, "refunded "+utils.FormatCents(req.Amount)); err != nil {
			return nil, err
		}

		return append(events, event.New(model.EventOrderRefunded, o.ID, map[string]interface{}{
			"order_code": o.OrderCode,
			"user_id":    o.UserID,
			"amount":     req.Amount,
			"pay_type":   o.PayType,
		})), nil
	})
}

func (s *orderService) RejectRefund(ctx context.Context, req *RejectRefundRequest) (*model.Order, error) {
	if err := utils.ValidateStruct(req); err != nil {
		return nil, err
	}

	return s.transition(ctx, "refund_reject", byCode(req.OrderCode), func(ctx context.Context, tx *gorm.DB, repo repository.OrderRepository, o *model.Order) ([]model.Event, error) {
		if o.RefundStatus != model.RefundStatusRequested {
			return nil, utils.NewErrorf(utils.CodeInvalidState, "order %s has no pending refund", o.OrderCode)
		}

		if err := repo.Update(ctx, o.ID, map[string]interface{}{
			"refund_status": model.RefundStatusNone,
			"refund_amount": 0,
			"refuse_reason": req.Reason,
		}); err != nil {
			return nil, err
		}
		if o.TeamID > 0 {
			if _, err := s.teams.RestoreTx(ctx, tx, o.ID); err != nil {
				return nil, err
			}
		}
		return nil, repo.AddLog(ctx, o.ID, model.ChangeRefundRefuse, "refund rejected: "+req.Reason)
	})
}

func (s *orderService) FlagTeamRefunds(ctx context.Context, teamID uint64) (flagged int, err error) {
	start := time.Now()
	ctx, span := tracer.Start(ctx, "order.FlagTeamRefunds")
	defer func() {
		s.metrics.RecordTransition("team_refund", err, time.Since(start))
		monitor.EndSpan(span, err)
	}()

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		leader, _, err := s.teams.LeaderTx(ctx, tx, teamID)
		if err != nil {
			return err
		}
		if leader.Status != model.TeamStatusFailed {
			return nil
		}

		repo := s.orders.WithTx(tx)
		orders, err := repo.LockPaidByTeam(ctx, teamID)
		if err != nil {
			return err
		}
		for _, o := range orders {
			if err := repo.Update(ctx, o.ID, map[string]interface{}{
				"refund_status": model.RefundStatusRequested,
				"refund_reason": teamFailedReason,
				"refund_amount": o.Refundable(),
			}); err != nil {
				return err
			}
			if err := repo.AddLog(ctx, o.ID, model.ChangeTeamFailRefund, "team failed, refund of "+utils.FormatCents(o.Refundable())+" requested"); err != nil {
				return err
			}
			flagged++
		}
		return nil
	})
	if err != nil {
		return 0, err
	}

	if flagged > 0 {
		log.WithContext(ctx).WithFields(log.Fields{
			"team_id": teamID,
			"orders":  flagged,
		}).Info("Failed team orders flagged for refund")
	}
	return flagged, nil
}
