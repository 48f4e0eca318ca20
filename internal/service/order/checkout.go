package order

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"gorm.io/gorm"

	"mall/internal/model"
	"mall/internal/monitor"
	"mall/pkg/log"
	"mall/pkg/utils"
)

// ItemRequest one order line
type ItemRequest struct {
	ProductID uint64 `json:"product_id" validate:"required"`
	SkuKey    string `json:"sku_key" validate:"required"`
	Quantity  int    `json:"quantity" validate:"gte=1"`
}

// CreateOrderRequest checkout input. At most one promotion source may be set.
type CreateOrderRequest struct {
	UserID           uint64        `json:"user_id" validate:"required"`
	Items            []ItemRequest `json:"items" validate:"required,min=1,dive"`
	PostagePrice     int64         `json:"postage_price" validate:"gte=0"`
	CouponPrice      int64         `json:"coupon_price" validate:"gte=0"`
	ShippingType     int8          `json:"shipping_type" validate:"omitempty,oneof=1 2"`
	FlashSaleID      uint64        `json:"flash_sale_id"`
	BargainSessionID uint64        `json:"bargain_session_id"`
	TeamCampaignID   uint64        `json:"team_campaign_id"`
	JoinTeam         uint64        `json:"join_team"`
	Remark           string        `json:"remark" validate:"max=500"`
}

// verifyCodeAttempts bounds checkout retries on a pickup code collision
const verifyCodeAttempts = 3

// line pricing source for one checkout
type source struct {
	ownerType string
	ownerID   uint64
	productID uint64 // 0 when any product is allowed
	price     int64  // fixed unit price, 0 to use the ledger row price
}

func (s *orderService) Create(ctx context.Context, req *CreateOrderRequest) (o *model.Order, err error) {
	start := time.Now()
	ctx, span := tracer.Start(ctx, "order.Create")
	defer func() {
		s.metrics.RecordTransition("create", err, time.Since(start))
		monitor.EndSpan(span, err)
	}()

	if err := utils.ValidateStruct(req); err != nil {
		return nil, err
	}
	sources := 0
	for _, id := range []uint64{req.FlashSaleID, req.BargainSessionID, req.TeamCampaignID} {
		if id > 0 {
			sources++
		}
	}
	if sources > 1 {
		return nil, utils.NewError(utils.CodeValidation, "an order can carry at most one promotion")
	}
	if req.JoinTeam > 0 && req.TeamCampaignID == 0 {
		return nil, utils.NewError(utils.CodeValidation, "join_team requires team_campaign_id")
	}

	shipping := req.ShippingType
	if shipping == 0 {
		shipping = model.ShippingTypeDelivery
	}
	now := s.now()

	o = &model.Order{
		OrderCode:        s.ids.NextCode("OD"),
		UserID:           req.UserID,
		PostagePrice:     req.PostagePrice,
		CouponPrice:      req.CouponPrice,
		ShippingType:     shipping,
		FlashSaleID:      req.FlashSaleID,
		BargainSessionID: req.BargainSessionID,
		TeamCampaignID:   req.TeamCampaignID,
		JoinTeam:         req.JoinTeam,
		Remark:           req.Remark,
	}
	pickup := shipping == model.ShippingTypePickup

	for attempt := 1; ; attempt++ {
		if pickup {
			code := s.verifyCode()
			o.VerifyCode = &code
		}
		err = s.checkout(ctx, req, o, now)
		if !pickup || attempt >= verifyCodeAttempts || !errors.Is(err, gorm.ErrDuplicatedKey) {
			break
		}
		log.WithContext(ctx).WithFields(log.Fields{
			"order_code": o.OrderCode,
			"attempt":    attempt,
		}).Warn("Verification code collision, retrying checkout")
	}
	if err != nil {
		log.WithContext(ctx).WithFields(log.Fields{
			"user_id": req.UserID,
			"kind":    monitor.Result(err),
			"error":   err.Error(),
		}).Warn("Checkout rejected")
		return nil, err
	}

	log.WithContext(ctx).WithFields(log.Fields{
		"order_id":   o.ID,
		"order_code": o.OrderCode,
		"user_id":    o.UserID,
		"pay_price":  utils.FormatCents(o.PayPrice),
		"total_num":  o.TotalNum,
	}).Info("Order created")
	return o, nil
}

// checkout reserves every line and inserts o in one transaction
func (s *orderService) checkout(ctx context.Context, req *CreateOrderRequest, o *model.Order, now time.Time) error {
	o.ID = 0
	o.Items = nil
	o.TotalNum = 0
	o.TotalPrice = 0

	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		src, err := s.resolveSource(ctx, tx, req, now)
		if err != nil {
			return err
		}

		for _, line := range req.Items {
			if src.productID != 0 && line.ProductID != src.productID {
				return utils.NewErrorf(utils.CodeValidation, "product %d is not part of this promotion", line.ProductID)
			}
			ownerID := src.ownerID
			if src.ownerType == model.OwnerProduct {
				ownerID = line.ProductID
			}

			if src.ownerType == model.OwnerFlashSale {
				listing, err := s.flashSale.ReserveTx(ctx, tx, ownerID, line.SkuKey, line.Quantity, now)
				if err != nil {
					return err
				}
				if listing.ProductID != line.ProductID {
					return utils.NewErrorf(utils.CodeValidation, "product %d is not part of this promotion", line.ProductID)
				}
			} else if err := s.inventory.ReserveTx(ctx, tx, src.ownerType, ownerID, line.SkuKey, line.Quantity); err != nil {
				return err
			}

			sku, err := s.inventory.SkuTx(ctx, tx, src.ownerType, ownerID, line.SkuKey)
			if err != nil {
				return err
			}
			product, err := s.products.WithTx(tx).GetByID(ctx, line.ProductID)
			if err != nil {
				return err
			}
			price := sku.Price
			if src.price > 0 {
				price = src.price
			}
			snapshot, _ := json.Marshal(map[string]interface{}{
				"product_name": product.Name,
				"sku_key":      sku.SkuKey,
				"attrs":        json.RawMessage(orEmptyObject(sku.Attrs)),
				"price":        price,
			})

			o.Items = append(o.Items, model.OrderItem{
				ProductID: line.ProductID,
				SkuKey:    line.SkuKey,
				Quantity:  line.Quantity,
				Price:     price,
				Snapshot:  snapshot,
			})
			o.TotalNum += line.Quantity
			o.TotalPrice += price * int64(line.Quantity)
		}

		o.PayPrice = o.TotalPrice + o.PostagePrice - o.CouponPrice
		if o.PayPrice < 0 {
			return utils.NewErrorf(utils.CodeValidation, "coupon %s exceeds order total", utils.FormatCents(o.CouponPrice))
		}

		repo := s.orders.WithTx(tx)
		if err := repo.Create(ctx, o); err != nil {
			return err
		}
		return repo.AddLog(ctx, o.ID, model.ChangeCreate, "order created")
	})
}

// resolveSource validates the promotion and decides which ledger owner the lines draw from
func (s *orderService) resolveSource(ctx context.Context, tx *gorm.DB, req *CreateOrderRequest, now time.Time) (*source, error) {
	switch {
	case req.FlashSaleID > 0:
		return &source{ownerType: model.OwnerFlashSale, ownerID: req.FlashSaleID}, nil

	case req.BargainSessionID > 0:
		if len(req.Items) != 1 || req.Items[0].Quantity != 1 {
			return nil, utils.NewError(utils.CodeValidation, "a bargain order buys exactly one unit")
		}
		session, campaign, err := s.bargains.CheckoutTx(ctx, tx, req.BargainSessionID, req.UserID)
		if err != nil {
			return nil, err
		}
		return &source{
			ownerType: model.OwnerBargain,
			ownerID:   campaign.ID,
			productID: campaign.ProductID,
			price:     session.CurrentPrice,
		}, nil

	case req.TeamCampaignID > 0:
		if req.JoinTeam > 0 {
			leader, _, err := s.teams.LeaderTx(ctx, tx, req.JoinTeam)
			if err != nil {
				return nil, err
			}
			if leader.CampaignID != req.TeamCampaignID {
				return nil, utils.NewErrorf(utils.CodeValidation, "team %d does not belong to campaign %d", req.JoinTeam, req.TeamCampaignID)
			}
			in, err := s.teams.IsMemberTx(ctx, tx, req.JoinTeam, req.UserID)
			if err != nil {
				return nil, err
			}
			if in {
				return nil, utils.NewErrorf(utils.CodeInvalidState, "user %d already in team %d", req.UserID, req.JoinTeam)
			}
		}
		campaign, err := s.teams.CampaignTx(ctx, tx, req.TeamCampaignID)
		if err != nil {
			return nil, err
		}
		if !campaign.IsActive(now) {
			return nil, utils.NewErrorf(utils.CodeActivityNotReady, "team campaign %d is not active", campaign.ID)
		}
		return &source{
			ownerType: model.OwnerTeam,
			ownerID:   campaign.ID,
			productID: campaign.ProductID,
		}, nil
	}
	return &source{ownerType: model.OwnerProduct}, nil
}

func orEmptyObject(raw []byte) []byte {
	if len(raw) == 0 {
		return []byte("{}")
	}
	return raw
}
