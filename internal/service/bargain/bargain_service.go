package bargain

import (
	"context"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"gorm.io/gorm"

	"mall/internal/config"
	"mall/internal/event"
	"mall/internal/model"
	"mall/internal/monitor"
	"mall/internal/repository"
	"mall/internal/service/inventory"
	"mall/pkg/log"
	"mall/pkg/utils"
)

var tracer = otel.Tracer("mall/bargain")

// CreateCampaignRequest bargain campaign definition; prices in cents
type CreateCampaignRequest struct {
	ProductID  uint64         `json:"product_id" validate:"required"`
	Title      string         `json:"title" validate:"max=200"`
	StartPrice int64          `json:"start_price" validate:"gt=0"`
	FloorPrice int64          `json:"floor_price" validate:"gte=0,ltfield=StartPrice"`
	MaxHelpers int            `json:"max_helpers" validate:"gte=1"`
	MinCut     int64          `json:"min_cut" validate:"gte=0"`
	CutPolicy  string         `json:"cut_policy" validate:"omitempty,oneof=even fixed"`
	StartAt    time.Time      `json:"start_at" validate:"required"`
	StopAt     time.Time      `json:"stop_at" validate:"required,gtfield=StartAt"`
	Quota      map[string]int `json:"quota" validate:"required,min=1"`
}

// CutResult outcome of one helper's cut
type CutResult struct {
	SessionID  uint64 `json:"session_id"`
	HelperID   uint64 `json:"helper_id"`
	CutAmount  int64  `json:"cut_amount"`
	PriceAfter int64  `json:"price_after"`
	Helpers    int    `json:"helpers"`
	Status     string `json:"status"`
}

// SessionView session with lazily evaluated status
type SessionView struct {
	*model.BargainSession
	StatusName string `json:"status_name"`
}

// BargainService bargain negotiation tracker
type BargainService interface {
	CreateCampaign(ctx context.Context, req *CreateCampaignRequest) (*model.BargainCampaign, error)
	StartSession(ctx context.Context, campaignID, userID uint64) (*model.BargainSession, error)
	ApplyCut(ctx context.Context, sessionID, helperID uint64) (*CutResult, error)
	// ExpireSweep fails active sessions past their campaign stop time
	ExpireSweep(ctx context.Context) (int64, error)
	GetSession(ctx context.Context, sessionID uint64) (*SessionView, error)

	// CheckoutTx validates that userID may buy at the session's current price
	CheckoutTx(ctx context.Context, tx *gorm.DB, sessionID, userID uint64) (*model.BargainSession, *model.BargainCampaign, error)
	// ClaimTx binds the session to a paid order, at most once
	ClaimTx(ctx context.Context, tx *gorm.DB, sessionID, userID, orderID uint64) error
}

type bargainService struct {
	db        *gorm.DB
	bargains  repository.BargainRepository
	products  repository.ProductRepository
	inventory inventory.InventoryService
	publisher event.Publisher
	metrics   *monitor.MetricsCollector
	cfg       config.PromotionConfig
	now       func() time.Time
}

// NewBargainService creates the bargain tracker
func NewBargainService(
	db *gorm.DB,
	bargains repository.BargainRepository,
	products repository.ProductRepository,
	inv inventory.InventoryService,
	publisher event.Publisher,
	metrics *monitor.MetricsCollector,
	cfg config.PromotionConfig,
) BargainService {
	return &bargainService{
		db:        db,
		bargains:  bargains,
		products:  products,
		inventory: inv,
		publisher: publisher,
		metrics:   metrics,
		cfg:       cfg,
		now:       time.Now,
	}
}

func (s *bargainService) CreateCampaign(ctx context.Context, req *CreateCampaignRequest) (*model.BargainCampaign, error) {
	if err := utils.ValidateStruct(req); err != nil {
		return nil, err
	}
	minCut := req.MinCut
	if minCut == 0 {
		minCut = s.cfg.BargainMinCut
	}
	if minCut <= 0 {
		minCut = 1
	}
	if req.StartPrice-req.FloorPrice < int64(req.MaxHelpers)*minCut {
		return nil, utils.NewErrorf(utils.CodeValidation,
			"price gap %s cannot cover %d helpers at %s each",
			utils.FormatCents(req.StartPrice-req.FloorPrice), req.MaxHelpers, utils.FormatCents(minCut))
	}
	policy, err := PolicyFor(req.CutPolicy)
	if err != nil {
		return nil, utils.WrapError(err, utils.CodeValidation, "unknown cut policy")
	}

	campaign := &model.BargainCampaign{
		ProductID:  req.ProductID,
		Title:      req.Title,
		StartPrice: req.StartPrice,
		FloorPrice: req.FloorPrice,
		MaxHelpers: req.MaxHelpers,
		MinCut:     minCut,
		CutPolicy:  policy.Name(),
		StartAt:    req.StartAt,
		StopAt:     req.StopAt,
	}
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if _, err := s.products.WithTx(tx).GetByID(ctx, req.ProductID); err != nil {
			return err
		}
		repo := s.bargains.WithTx(tx)
		if err := repo.CreateCampaign(ctx, campaign); err != nil {
			return err
		}
		if err := s.inventory.MirrorTx(ctx, tx, req.ProductID, model.OwnerBargain, campaign.ID, req.Quota, req.FloorPrice); err != nil {
			return err
		}
		c, err := repo.GetCampaign(ctx, campaign.ID)
		if err != nil {
			return err
		}
		campaign = c
		return nil
	})
	if err != nil {
		return nil, err
	}

	log.WithFields(log.Fields{
		"campaign_id": campaign.ID,
		"product_id":  campaign.ProductID,
		"start_price": campaign.StartPrice,
		"floor_price": campaign.FloorPrice,
		"max_helpers": campaign.MaxHelpers,
		"policy":      campaign.CutPolicy,
	}).Info("Bargain campaign created")
	return campaign, nil
}

func (s *bargainService) StartSession(ctx context.Context, campaignID, userID uint64) (session *model.BargainSession, err error) {
	ctx, span := tracer.Start(ctx, "bargain.StartSession")
	span.SetAttributes(attribute.Int64("campaign_id", int64(campaignID)), attribute.Int64("user_id", int64(userID)))
	defer func() { monitor.EndSpan(span, err) }()

	now := s.now()
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		repo := s.bargains.WithTx(tx)
		// the campaign lock serializes session starts per user
		campaign, err := repo.LockCampaign(ctx, campaignID)
		if err != nil {
			return err
		}
		if !campaign.IsActive(now) {
			return utils.NewErrorf(utils.CodeActivityNotReady, "bargain campaign %d is not active", campaignID)
		}
		if campaign.Stock <= 0 {
			return utils.NewErrorf(utils.CodeInsufficientStock, "bargain campaign %d is sold out", campaignID)
		}

		existing, err := repo.FindActive(ctx, campaignID, userID)
		if err != nil {
			return err
		}
		if existing != nil {
			if existing.EffectiveStatus(now) == model.BargainStatusActive {
				return utils.NewErrorf(utils.CodeInvalidState, "user %d already has an active session %d", userID, existing.ID)
			}
			if err := repo.UpdateSession(ctx, existing.ID, map[string]interface{}{"status": model.BargainStatusFailed}); err != nil {
				return err
			}
		}

		session = &model.BargainSession{
			CampaignID:   campaignID,
			UserID:       userID,
			StartPrice:   campaign.StartPrice,
			FloorPrice:   campaign.FloorPrice,
			CurrentPrice: campaign.StartPrice,
			Status:       model.BargainStatusActive,
			ExpireAt:     campaign.StopAt,
		}
		return repo.CreateSession(ctx, session)
	})
	if err != nil {
		log.WithFields(log.Fields{
			"campaign_id": campaignID,
			"user_id":     userID,
			"kind":        monitor.Result(err),
		}).Warn("Bargain session rejected")
		return nil, err
	}

	log.WithFields(log.Fields{
		"session_id":  session.ID,
		"campaign_id": campaignID,
		"user_id":     userID,
	}).Info("Bargain session started")
	return session, nil
}

func (s *bargainService) ApplyCut(ctx context.Context, sessionID, helperID uint64) (result *CutResult, err error) {
	ctx, span := tracer.Start(ctx, "bargain.ApplyCut")
	span.SetAttributes(attribute.Int64("session_id", int64(sessionID)), attribute.Int64("helper_id", int64(helperID)))
	defer func() {
		s.metrics.RecordBargainCut(err)
		monitor.EndSpan(span, err)
	}()

	now := s.now()
	var events []model.Event
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		repo := s.bargains.WithTx(tx)
		session, err := repo.LockSession(ctx, sessionID)
		if err != nil {
			return err
		}
		campaign, err := repo.GetCampaign(ctx, session.CampaignID)
		if err != nil {
			return err
		}
		if !campaign.IsActive(now) {
			return utils.NewErrorf(utils.CodeActivityNotReady, "bargain campaign %d is not active", campaign.ID)
		}
		if session.EffectiveStatus(now) != model.BargainStatusActive {
			return utils.NewErrorf(utils.CodeInvalidState, "session %d is %s",
				sessionID, model.BargainStatusName(session.EffectiveStatus(now)))
		}

		helped, err := repo.HasHelped(ctx, sessionID, helperID)
		if err != nil {
			return err
		}
		if helped {
			return utils.NewErrorf(utils.CodeInvalidState, "user %d already helped session %d", helperID, sessionID)
		}
		count, err := repo.CountHelps(ctx, sessionID)
		if err != nil {
			return err
		}
		if int(count) >= campaign.MaxHelpers {
			return utils.NewErrorf(utils.CodeQuotaExceeded, "session %d reached %d helpers", sessionID, campaign.MaxHelpers)
		}

		policy, err := PolicyFor(campaign.CutPolicy)
		if err != nil {
			return err
		}
		cut := policy.Cut(CutInput{
			Current:    session.CurrentPrice,
			Floor:      session.FloorPrice,
			MinCut:     campaign.MinCut,
			Helped:     int(count),
			MaxHelpers: campaign.MaxHelpers,
		})
		price := session.CurrentPrice - cut
		if price < session.FloorPrice {
			price = session.FloorPrice
			cut = session.CurrentPrice - price
		}

		if err := repo.CreateHelp(ctx, &model.BargainHelp{
			SessionID:  sessionID,
			HelperID:   helperID,
			CutAmount:  cut,
			PriceAfter: price,
		}); err != nil {
			return err
		}
		status := model.BargainStatusActive
		if price == session.FloorPrice {
			status = model.BargainStatusSucceeded
		}
		if err := repo.UpdateSession(ctx, sessionID, map[string]interface{}{
			"current_price": price,
			"status":        status,
		}); err != nil {
			return err
		}

		result = &CutResult{
			SessionID:  sessionID,
			HelperID:   helperID,
			CutAmount:  cut,
			PriceAfter: price,
			Helpers:    int(count) + 1,
			Status:     model.BargainStatusName(status),
		}
		if status == model.BargainStatusSucceeded {
			events = append(events, event.New(model.EventBargainSucceeded, sessionID, map[string]interface{}{
				"session_id": sessionID,
				"user_id":    session.UserID,
				"price":      price,
			}))
		}
		return nil
	})
	if err != nil {
		log.WithFields(log.Fields{
			"session_id": sessionID,
			"helper_id":  helperID,
			"kind":       monitor.Result(err),
		}).Warn("Bargain cut rejected")
		return nil, err
	}

	s.publisher.Publish(ctx, events...)
	log.WithFields(log.Fields{
		"session_id":  sessionID,
		"helper_id":   helperID,
		"cut":         utils.FormatCents(result.CutAmount),
		"price_after": utils.FormatCents(result.PriceAfter),
		"status":      result.Status,
	}).Info("Bargain cut applied")
	return result, nil
}

func (s *bargainService) ExpireSweep(ctx context.Context) (int64, error) {
	n, err := s.bargains.ExpireSessions(ctx, s.now())
	if err != nil {
		return 0, err
	}
	s.metrics.RecordSweep("bargain", int(n))
	if n > 0 {
		log.WithField("sessions", n).Info("Expired bargain sessions failed")
	}
	return n, nil
}

func (s *bargainService) GetSession(ctx context.Context, sessionID uint64) (*SessionView, error) {
	session, err := s.bargains.GetSession(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	status := session.EffectiveStatus(s.now())
	session.Status = status
	return &SessionView{BargainSession: session, StatusName: model.BargainStatusName(status)}, nil
}

func (s *bargainService) CheckoutTx(ctx context.Context, tx *gorm.DB, sessionID, userID uint64) (*model.BargainSession, *model.BargainCampaign, error) {
	repo := s.bargains.WithTx(tx)
	session, err := repo.GetSession(ctx, sessionID)
	if err != nil {
		return nil, nil, err
	}
	if session.UserID != userID {
		return nil, nil, utils.NewErrorf(utils.CodeForbidden, "session %d belongs to another user", sessionID)
	}
	if session.OrderID != 0 {
		return nil, nil, utils.NewErrorf(utils.CodeInvalidState, "session %d already ordered", sessionID)
	}
	if session.EffectiveStatus(s.now()) == model.BargainStatusFailed {
		return nil, nil, utils.NewErrorf(utils.CodeInvalidState, "session %d has failed", sessionID)
	}
	campaign, err := repo.GetCampaign(ctx, session.CampaignID)
	if err != nil {
		return nil, nil, err
	}
	return session, campaign, nil
}

func (s *bargainService) ClaimTx(ctx context.Context, tx *gorm.DB, sessionID, userID, orderID uint64) error {
	repo := s.bargains.WithTx(tx)
	session, err := repo.LockSession(ctx, sessionID)
	if err != nil {
		return err
	}
	if session.UserID != userID {
		return utils.NewErrorf(utils.CodeForbidden, "session %d belongs to another user", sessionID)
	}
	if session.OrderID == orderID {
		return nil
	}
	if session.OrderID != 0 {
		return utils.NewErrorf(utils.CodeInvalidState, "session %d already claimed by order %d", sessionID, session.OrderID)
	}
	if session.Status == model.BargainStatusFailed {
		return utils.NewErrorf(utils.CodeInvalidState, "session %d has failed", sessionID)
	}
	if err := repo.UpdateSession(ctx, sessionID, map[string]interface{}{"order_id": orderID}); err != nil {
		return err
	}
	log.WithFields(log.Fields{
		"session_id": sessionID,
		"order_id":   orderID,
	}).Info("Bargain session claimed")
	return nil
}
