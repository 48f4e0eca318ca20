package order

import (
	"context"

	"gorm.io/gorm"

	"mall/internal/model"
	"mall/internal/repository"
	"mall/pkg/utils"
)

// ChangePriceRequest admin price edit before payment
type ChangePriceRequest struct {
	OrderCode string `json:"order_code" validate:"required"`
	PayPrice  int64  `json:"pay_price" validate:"gte=0"`
}

func (s *orderService) ChangePrice(ctx context.Context, req *ChangePriceRequest) (*model.Order, error) {
	if err := utils.ValidateStruct(req); err != nil {
		return nil, err
	}

	return s.transition(ctx, "change_price", byCode(req.OrderCode), func(ctx context.Context, tx *gorm.DB, repo repository.OrderRepository, o *model.Order) ([]model.Event, error) {
		if o.Paid {
			return nil, utils.NewErrorf(utils.CodeInvalidState, "order %s is already paid", o.OrderCode)
		}
		if o.IsAlterPrice {
			return nil, utils.NewErrorf(utils.CodeInvalidState, "order %s price was already changed", o.OrderCode)
		}
		if req.PayPrice == o.PayPrice {
			return nil, utils.NewError(utils.CodeValidation, "new price equals the current price")
		}

		if err := repo.Update(ctx, o.ID, map[string]interface{}{
			"pay_price":      req.PayPrice,
			"is_alter_price": true,
			"original_price": o.PayPrice,
		}); err != nil {
			return nil, err
		}
		return nil, repo.AddLog(ctx, o.ID, model.ChangePrice,
			"price changed from "+utils.FormatCents(o.PayPrice)+" to "+utils.FormatCents(req.PayPrice))
	})
}

// SoftDelete hides the order from its buyer; repeating it is a no-op
func (s *orderService) SoftDelete(ctx context.Context, orderCode string, userID uint64) (*model.Order, error) {
	return s.transition(ctx, "delete", byCode(orderCode), func(ctx context.Context, tx *gorm.DB, repo repository.OrderRepository, o *model.Order) ([]model.Event, error) {
		if o.UserID != userID {
			return nil, utils.NewErrorf(utils.CodeNotFound, "order %s not found", orderCode)
		}
		if o.IsDel {
			return nil, nil
		}
		if err := repo.Update(ctx, o.ID, map[string]interface{}{"is_del": true}); err != nil {
			return nil, err
		}
		return nil, repo.AddLog(ctx, o.ID, model.ChangeRemove, "deleted by buyer")
	})
}

// SystemDelete removes a buyer-deleted order from admin listings
func (s *orderService) SystemDelete(ctx context.Context, orderCode string) (*model.Order, error) {
	return s.transition(ctx, "system_delete", byCode(orderCode), func(ctx context.Context, tx *gorm.DB, repo repository.OrderRepository, o *model.Order) ([]model.Event, error) {
		if o.IsSystemDel {
			return nil, utils.NewErrorf(utils.CodeAlreadyDeleted, "order %s already deleted", o.OrderCode)
		}
		if !o.IsDel {
			return nil, utils.NewErrorf(utils.CodeInvalidState, "order %s is still visible to its buyer", o.OrderCode)
		}
		if err := repo.Update(ctx, o.ID, map[string]interface{}{"is_system_del": true}); err != nil {
			return nil, err
		}
		return nil, repo.AddLog(ctx, o.ID, model.ChangeSystemDelete, "deleted by admin")
	})
}
