package order

import (
	"context"
	"errors"

	"gorm.io/gorm"

	"mall/internal/event"
	"mall/internal/model"
	"mall/internal/repository"
	"mall/internal/service/team"
	"mall/pkg/log"
	"mall/pkg/utils"
)

// PaymentRequest payment gateway callback
type PaymentRequest struct {
	OrderCode string `json:"order_code" validate:"required"`
	PayType   string `json:"pay_type" validate:"required,oneof=wechat alipay balance offline"`
	// Amount when present must equal the order's pay price
	Amount *int64 `json:"amount,omitempty"`
}

func (s *orderService) RecordPayment(ctx context.Context, req *PaymentRequest) (*model.Order, error) {
	if err := utils.ValidateStruct(req); err != nil {
		return nil, err
	}

	return s.transition(ctx, "pay", byCode(req.OrderCode), func(ctx context.Context, tx *gorm.DB, repo repository.OrderRepository, o *model.Order) ([]model.Event, error) {
		if o.Paid {
			log.WithContext(ctx).WithFields(log.Fields{
				"order_code": o.OrderCode,
				"pay_type":   req.PayType,
			}).Info("Payment redelivered for paid order")
			return nil, nil
		}
		if req.Amount != nil && *req.Amount != o.PayPrice {
			return nil, utils.NewErrorf(utils.CodeAmountMismatch, "paid %s, order requires %s",
				utils.FormatCents(*req.Amount), utils.FormatCents(o.PayPrice))
		}

		if req.PayType == model.PayTypeBalance && o.PayPrice > 0 {
			err := s.users.WithTx(tx).Debit(ctx, o.UserID, o.PayPrice)
			if errors.Is(err, repository.ErrInsufficientBalance) {
				return nil, utils.NewErrorf(utils.CodeAmountMismatch, "balance does not cover %s", utils.FormatCents(o.PayPrice))
			}
			if err != nil {
				return nil, err
			}
		}

		now := s.now()
		updates := map[string]interface{}{
			"paid":     true,
			"pay_type": req.PayType,
			"paid_at":  now,
		}

		var events []model.Event
		switch {
		case o.IsTeamOrder():
			joined, teamEvents, err := s.joinTeam(ctx, tx, o)
			if err != nil {
				return nil, err
			}
			updates["team_id"] = joined.TeamID
			events = append(events, teamEvents...)

		case o.BargainSessionID > 0:
			if err := s.bargains.ClaimTx(ctx, tx, o.BargainSessionID, o.UserID, o.ID); err != nil {
				return nil, err
			}

		case o.FlashSaleID > 0:
			if err := s.flashSale.RecordSaleTx(ctx, tx, o.FlashSaleID, o.TotalNum); err != nil {
				return nil, err
			}
		}

		if err := repo.Update(ctx, o.ID, updates); err != nil {
			return nil, err
		}

		full, err := repo.GetByID(ctx, o.ID)
		if err != nil {
			return nil, err
		}
		products := s.products.WithTx(tx)
		for _, item := range full.Items {
			if err := products.AddSales(ctx, item.ProductID, item.Quantity); err != nil {
				return nil, err
			}
		}

		if err := repo.AddLog(ctx, o.ID, model.ChangePaySuccess,
			"paid "+utils.FormatCents(o.PayPrice)+" via "+req.PayType); err != nil {
			return nil, err
		}

		events = append(events, event.New(model.EventOrderPaid, o.ID, map[string]interface{}{
			"order_code": o.OrderCode,
			"user_id":    o.UserID,
			"pay_price":  o.PayPrice,
			"pay_type":   req.PayType,
		}))
		return events, nil
	})
}

// joinTeam joins the requested team, starting a new one when it is full or closed.
// Any other rejection, such as the buyer already being a member, fails the payment.
func (s *orderService) joinTeam(ctx context.Context, tx *gorm.DB, o *model.Order) (*team.JoinResult, []model.Event, error) {
	req := &team.JoinRequest{
		CampaignID: o.TeamCampaignID,
		TeamID:     o.JoinTeam,
		UserID:     o.UserID,
		OrderID:    o.ID,
	}
	result, events, err := s.teams.JoinTx(ctx, tx, req)
	if err == nil || req.TeamID == 0 {
		return result, events, err
	}
	if !utils.IsCode(err, utils.CodeTeamFull) {
		if !utils.IsCode(err, utils.CodeInvalidState) {
			return nil, nil, err
		}
		// only a closed team falls back; a duplicate member does not
		leader, _, lerr := s.teams.LeaderTx(ctx, tx, o.JoinTeam)
		if lerr != nil {
			return nil, nil, lerr
		}
		if leader.Status == model.TeamStatusOpen {
			return nil, nil, err
		}
	}

	log.WithContext(ctx).WithFields(log.Fields{
		"order_code": o.OrderCode,
		"team_id":    o.JoinTeam,
		"reason":     err.Error(),
	}).Warn("Requested team unavailable, opening a new team")
	req.TeamID = 0
	return s.teams.JoinTx(ctx, tx, req)
}
