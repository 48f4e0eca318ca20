package team

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

var tracer = otel.Tracer("mall/team")

// sweepBatch caps the leaders handled per expire sweep
const sweepBatch = 200

// CreateCampaignRequest group-buy campaign definition
type CreateCampaignRequest struct {
	ProductID      uint64         `json:"product_id" validate:"required"`
	Title          string         `json:"title" validate:"max=200"`
	People         int            `json:"people" validate:"gte=2"`
	EffectiveHours int            `json:"effective_hours" validate:"gte=0"`
	Price          int64          `json:"price" validate:"gt=0"`
	AllowSolo      bool           `json:"allow_solo"`
	StartAt        time.Time      `json:"start_at" validate:"required"`
	StopAt         time.Time      `json:"stop_at" validate:"required,gtfield=StartAt"`
	Quota          map[string]int `json:"quota" validate:"required,min=1"`
}

// JoinRequest TeamID 0 opens a new team with the user as leader
type JoinRequest struct {
	CampaignID uint64 `json:"campaign_id" validate:"required"`
	TeamID     uint64 `json:"team_id"`
	UserID     uint64 `json:"user_id" validate:"required"`
	OrderID    uint64 `json:"order_id"`
}

// JoinResult outcome of a join
type JoinResult struct {
	TeamID    uint64 `json:"team_id"`
	MemberID  uint64 `json:"member_id"`
	Members   int    `json:"members"`
	People    int    `json:"people"`
	Status    string `json:"status"`
	Completed bool   `json:"completed"`
}

// TeamView a team and its rows
type TeamView struct {
	TeamID   uint64             `json:"team_id"`
	Status   string             `json:"status"`
	People   int                `json:"people"`
	Members  int                `json:"members"`
	ExpireAt time.Time          `json:"expire_at"`
	Rows     []model.TeamMember `json:"rows"`
}

// TeamService group-buy coordinator
type TeamService interface {
	CreateCampaign(ctx context.Context, req *CreateCampaignRequest) (*model.TeamCampaign, error)

	// Join appends a member under the team lock, completing the team when the headcount is reached
	Join(ctx context.Context, req *JoinRequest) (*JoinResult, error)
	// JoinTx runs Join inside tx; events must be published by the caller after commit
	JoinTx(ctx context.Context, tx *gorm.DB, req *JoinRequest) (*JoinResult, []model.Event, error)

	// ExpireSweep fails open teams past expiry and returns the ids of teams whose
	// paid orders now need refund flagging
	ExpireSweep(ctx context.Context) ([]uint64, error)

	// IsTeamReady reports open, completed or failed, with expiry evaluated lazily
	IsTeamReady(ctx context.Context, teamID uint64) (int8, error)
	CampaignTx(ctx context.Context, tx *gorm.DB, campaignID uint64) (*model.TeamCampaign, error)
	// LeaderTx reads the leader row inside tx
	LeaderTx(ctx context.Context, tx *gorm.DB, teamID uint64) (*model.TeamMember, *model.TeamCampaign, error)

	// Cancel fails an open team on behalf of its leader
	Cancel(ctx context.Context, teamID, userID uint64) error
	Members(ctx context.Context, teamID uint64) (*TeamView, error)

	// IsMemberTx reports whether userID holds a counted row in the team
	IsMemberTx(ctx context.Context, tx *gorm.DB, teamID, userID uint64) (bool, error)

	// FailForRefundTx drops the member of orderID from the headcount and fails
	// the team with reason refund when it is still open
	FailForRefundTx(ctx context.Context, tx *gorm.DB, orderID uint64) (bool, []model.Event, error)
	// RestoreTx counts the member of orderID again and reopens the team when it
	// failed on refund, has not expired and no other member is still refunding
	RestoreTx(ctx context.Context, tx *gorm.DB, orderID uint64) (bool, error)
}

type teamService struct {
	db        *gorm.DB
	teams     repository.TeamRepository
	products  repository.ProductRepository
	inventory inventory.InventoryService
	publisher event.Publisher
	metrics   *monitor.MetricsCollector
	cfg       config.PromotionConfig
	now       func() time.Time
}

// NewTeamService creates the team coordinator
func NewTeamService(
	db *gorm.DB,
	teams repository.TeamRepository,
	products repository.ProductRepository,
	inv inventory.InventoryService,
	publisher event.Publisher,
	metrics *monitor.MetricsCollector,
	cfg config.PromotionConfig,
) TeamService {
	return &teamService{
		db:        db,
		teams:     teams,
		products:  products,
		inventory: inv,
		publisher: publisher,
		metrics:   metrics,
		cfg:       cfg,
		now:       time.Now,
	}
}

func (s *teamService) CreateCampaign(ctx context.Context, req *CreateCampaignRequest) (*model.TeamCampaign, error) {
	if err := utils.ValidateStruct(req); err != nil {
		return nil, err
	}
	hours := req.EffectiveHours
	if hours == 0 {
		hours = int(s.cfg.TeamWindow / time.Hour)
	}
	if hours <= 0 {
		return nil, utils.NewError(utils.CodeValidation, "effective_hours must be positive")
	}

	campaign := &model.TeamCampaign{
		ProductID:      req.ProductID,
		Title:          req.Title,
		People:         req.People,
		EffectiveHours: hours,
		Price:          req.Price,
		AllowSolo:      req.AllowSolo,
		StartAt:        req.StartAt,
		StopAt:         req.StopAt,
	}
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if _, err := s.products.WithTx(tx).GetByID(ctx, req.ProductID); err != nil {
			return err
		}
		repo := s.teams.WithTx(tx)
		if err := repo.CreateCampaign(ctx, campaign); err != nil {
			return err
		}
		if err := s.inventory.MirrorTx(ctx, tx, req.ProductID, model.OwnerTeam, campaign.ID, req.Quota, req.Price); err != nil {
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
		"people":      campaign.People,
		"stock":       campaign.Stock,
	}).Info("Team campaign created")
	return campaign, nil
}

func (s *teamService) Join(ctx context.Context, req *JoinRequest) (*JoinResult, error) {
	var (
		result *JoinResult
		events []model.Event
	)
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var err error
		result, events, err = s.JoinTx(ctx, tx, req)
		return err
	})
	if err != nil {
		return nil, err
	}
	s.publisher.Publish(ctx, events...)
	return result, nil
}

func (s *teamService) JoinTx(ctx context.Context, tx *gorm.DB, req *JoinRequest) (result *JoinResult, events []model.Event, err error) {
	ctx, span := tracer.Start(ctx, "team.Join")
	span.SetAttributes(
		attribute.Int64("campaign_id", int64(req.CampaignID)),
		attribute.Int64("team_id", int64(req.TeamID)),
		attribute.Int64("user_id", int64(req.UserID)),
	)
	defer func() {
		s.metrics.RecordTeamJoin(err)
		monitor.EndSpan(span, err)
	}()

	if err := utils.ValidateStruct(req); err != nil {
		return nil, nil, err
	}

	repo := s.teams.WithTx(tx)
	campaign, err := repo.GetCampaign(ctx, req.CampaignID)
	if err != nil {
		return nil, nil, err
	}
	now := s.now()

	if req.TeamID == 0 {
		leader := &model.TeamMember{
			CampaignID: campaign.ID,
			UserID:     req.UserID,
			OrderID:    req.OrderID,
			IsLeader:   true,
			People:     campaign.People,
			Status:     model.TeamStatusOpen,
			ExpireAt:   now.Add(campaign.Window()),
		}
		if err := repo.CreateMember(ctx, leader); err != nil {
			return nil, nil, err
		}
		log.WithFields(log.Fields{
			"team_id":     leader.TeamID,
			"campaign_id": campaign.ID,
			"user_id":     req.UserID,
			"order_id":    req.OrderID,
			"expire_at":   leader.ExpireAt,
		}).Info("Team opened")
		return &JoinResult{
			TeamID:   leader.TeamID,
			MemberID: leader.ID,
			Members:  1,
			People:   campaign.People,
			Status:   model.TeamStatusName(model.TeamStatusOpen),
		}, nil, nil
	}

	leader, err := repo.LockLeader(ctx, req.TeamID)
	if err != nil {
		return nil, nil, err
	}
	if leader.CampaignID != campaign.ID {
		return nil, nil, utils.NewErrorf(utils.CodeValidation, "team %d does not belong to campaign %d", leader.ID, campaign.ID)
	}
	switch leader.EffectiveStatus(now) {
	case model.TeamStatusCompleted:
		return nil, nil, utils.NewErrorf(utils.CodeTeamFull, "team %d already completed", leader.ID)
	case model.TeamStatusFailed:
		return nil, nil, utils.NewErrorf(utils.CodeInvalidState, "team %d is closed", leader.ID)
	}

	members, err := repo.ListMembers(ctx, leader.ID)
	if err != nil {
		return nil, nil, err
	}
	count := 0
	for _, m := range members {
		if m.IsRefund {
			continue
		}
		if m.UserID == req.UserID {
			return nil, nil, utils.NewErrorf(utils.CodeInvalidState, "user %d already in team %d", req.UserID, leader.ID)
		}
		count++
	}
	if count >= leader.People {
		return nil, nil, utils.NewErrorf(utils.CodeTeamFull, "team %d is full", leader.ID)
	}

	member := &model.TeamMember{
		CampaignID: campaign.ID,
		TeamID:     leader.ID,
		UserID:     req.UserID,
		OrderID:    req.OrderID,
		People:     leader.People,
		Status:     model.TeamStatusOpen,
		ExpireAt:   leader.ExpireAt,
	}
	if err := repo.CreateMember(ctx, member); err != nil {
		return nil, nil, err
	}

	// recount from rows rather than trusting the pre-insert count
	n, err := repo.CountActive(ctx, leader.ID)
	if err != nil {
		return nil, nil, err
	}
	result = &JoinResult{
		TeamID:   leader.ID,
		MemberID: member.ID,
		Members:  int(n),
		People:   leader.People,
		Status:   model.TeamStatusName(model.TeamStatusOpen),
	}
	if int(n) >= leader.People {
		if _, err := repo.SetStatus(ctx, leader.ID, model.TeamStatusOpen, model.TeamStatusCompleted, ""); err != nil {
			return nil, nil, err
		}
		result.Status = model.TeamStatusName(model.TeamStatusCompleted)
		result.Completed = true
		events = append(events, event.New(model.EventTeamCompleted, leader.ID, result))
	}

	log.WithFields(log.Fields{
		"team_id":  leader.ID,
		"user_id":  req.UserID,
		"order_id": req.OrderID,
		"members":  n,
		"people":   leader.People,
		"status":   result.Status,
	}).Info("Team joined")
	return result, events, nil
}

func (s *teamService) ExpireSweep(ctx context.Context) ([]uint64, error) {
	ctx, span := tracer.Start(ctx, "team.ExpireSweep")
	var err error
	defer func() { monitor.EndSpan(span, err) }()

	now := s.now()
	leaders, err := s.teams.ListExpired(ctx, now, sweepBatch)
	if err != nil {
		return nil, err
	}

	var (
		failed []uint64
		events []model.Event
	)
	for _, l := range leaders {
		teamID := l.ID
		var expired bool
		txErr := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
			repo := s.teams.WithTx(tx)
			leader, err := repo.LockLeader(ctx, teamID)
			if err != nil {
				return err
			}
			if now.Before(leader.ExpireAt) {
				return nil
			}
			switch {
			case leader.Status == model.TeamStatusOpen:
				n, err := repo.SetStatus(ctx, teamID, model.TeamStatusOpen, model.TeamStatusFailed, model.TeamFailExpired)
				if err != nil {
					return err
				}
				expired = n > 0
				if expired {
					events = append(events, event.New(model.EventTeamFailed, teamID, map[string]interface{}{
						"team_id": teamID,
						"reason":  model.TeamFailExpired,
					}))
				}
			case leader.Status == model.TeamStatusFailed && leader.FailReason == model.TeamFailRefund:
				// past expiry the refund-failed team can no longer be restored
				n, err := repo.SetStatus(ctx, teamID, model.TeamStatusFailed, model.TeamStatusFailed, model.TeamFailExpired)
				if err != nil {
					return err
				}
				expired = n > 0
			}
			return nil
		})
		if txErr != nil {
			log.WithContext(ctx).WithFields(log.Fields{
				"team_id": teamID,
				"error":   txErr.Error(),
			}).Error("Failed to expire team")
			continue
		}
		if expired {
			failed = append(failed, teamID)
		}
	}

	s.publisher.Publish(ctx, events...)
	s.metrics.RecordSweep("team", len(failed))
	if len(failed) > 0 {
		log.WithFields(log.Fields{"teams": failed}).Info("Expired teams failed")
	}
	return failed, nil
}

func (s *teamService) IsTeamReady(ctx context.Context, teamID uint64) (int8, error) {
	leader, err := s.teams.GetLeader(ctx, teamID)
	if err != nil {
		return 0, err
	}
	return leader.EffectiveStatus(s.now()), nil
}

func (s *teamService) CampaignTx(ctx context.Context, tx *gorm.DB, campaignID uint64) (*model.TeamCampaign, error) {
	return s.teams.WithTx(tx).GetCampaign(ctx, campaignID)
}

func (s *teamService) LeaderTx(ctx context.Context, tx *gorm.DB, teamID uint64) (*model.TeamMember, *model.TeamCampaign, error) {
	repo := s.teams.WithTx(tx)
	leader, err := repo.GetLeader(ctx, teamID)
	if err != nil {
		return nil, nil, err
	}
	campaign, err := repo.GetCampaign(ctx, leader.CampaignID)
	if err != nil {
		return nil, nil, err
	}
	leader.Status = leader.EffectiveStatus(s.now())
	return leader, campaign, nil
}

func (s *teamService) Cancel(ctx context.Context, teamID, userID uint64) (err error) {
	ctx, span := tracer.Start(ctx, "team.Cancel")
	defer func() { monitor.EndSpan(span, err) }()

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		repo := s.teams.WithTx(tx)
		leader, err := repo.LockLeader(ctx, teamID)
		if err != nil {
			return err
		}
		if leader.UserID != userID {
			return utils.NewError(utils.CodeForbidden, "only the team leader can cancel")
		}
		if leader.EffectiveStatus(s.now()) != model.TeamStatusOpen {
			return utils.NewErrorf(utils.CodeInvalidState, "team %d is not open", teamID)
		}
		_, err = repo.SetStatus(ctx, teamID, model.TeamStatusOpen, model.TeamStatusFailed, model.TeamFailCancelled)
		return err
	})
	if err != nil {
		log.WithFields(log.Fields{
			"team_id": teamID,
			"user_id": userID,
			"kind":    monitor.Result(err),
		}).Warn("Team cancel rejected")
		return err
	}

	s.publisher.Publish(ctx, event.New(model.EventTeamFailed, teamID, map[string]interface{}{
		"team_id": teamID,
		"reason":  model.TeamFailCancelled,
	}))
	log.WithFields(log.Fields{"team_id": teamID, "user_id": userID}).Info("Team cancelled")
	return nil
}

func (s *teamService) Members(ctx context.Context, teamID uint64) (*TeamView, error) {
	leader, err := s.teams.GetLeader(ctx, teamID)
	if err != nil {
		return nil, err
	}
	rows, err := s.teams.ListMembers(ctx, teamID)
	if err != nil {
		return nil, err
	}
	view := &TeamView{
		TeamID:   teamID,
		Status:   model.TeamStatusName(leader.EffectiveStatus(s.now())),
		People:   leader.People,
		ExpireAt: leader.ExpireAt,
		Rows:     rows,
	}
	for _, r := range rows {
		if !r.IsRefund {
			view.Members++
		}
	}
	return view, nil
}

func (s *teamService) IsMemberTx(ctx context.Context, tx *gorm.DB, teamID, userID uint64) (bool, error) {
	rows, err := s.teams.WithTx(tx).ListMembers(ctx, teamID)
	if err != nil {
		return false, err
	}
	for _, r := range rows {
		if r.UserID == userID && !r.IsRefund {
			return true, nil
		}
	}
	return false, nil
}

func (s *teamService) FailForRefundTx(ctx context.Context, tx *gorm.DB, orderID uint64) (bool, []model.Event, error) {
	repo := s.teams.WithTx(tx)
	member, err := repo.GetMemberByOrder(ctx, orderID)
	if err != nil {
		return false, nil, err
	}
	leader, err := repo.LockLeader(ctx, member.TeamID)
	if err != nil {
		return false, nil, err
	}

	// a refunding row leaves the headcount whatever the team status
	if !member.IsRefund {
		if err := repo.MarkRefund(ctx, member.ID, true); err != nil {
			return false, nil, err
		}
	}
	if leader.EffectiveStatus(s.now()) != model.TeamStatusOpen {
		return false, nil, nil
	}
	if _, err := repo.SetStatus(ctx, leader.ID, model.TeamStatusOpen, model.TeamStatusFailed, model.TeamFailRefund); err != nil {
		return false, nil, err
	}

	log.WithFields(log.Fields{
		"team_id":  leader.ID,
		"order_id": orderID,
	}).Info("Team failed on refund request")
	return true, []model.Event{event.New(model.EventTeamFailed, leader.ID, map[string]interface{}{
		"team_id": leader.ID,
		"reason":  model.TeamFailRefund,
	})}, nil
}

func (s *teamService) RestoreTx(ctx context.Context, tx *gorm.DB, orderID uint64) (bool, error) {
	repo := s.teams.WithTx(tx)
	member, err := repo.GetMemberByOrder(ctx, orderID)
	if err != nil {
		return false, err
	}
	leader, err := repo.LockLeader(ctx, member.TeamID)
	if err != nil {
		return false, err
	}
	if !member.IsRefund {
		return false, nil
	}
	if err := repo.MarkRefund(ctx, member.ID, false); err != nil {
		return false, err
	}

	if leader.Status != model.TeamStatusFailed || leader.FailReason != model.TeamFailRefund {
		return false, nil
	}
	if !s.now().Before(leader.ExpireAt) {
		return false, nil
	}
	rows, err := repo.ListMembers(ctx, leader.ID)
	if err != nil {
		return false, err
	}
	for _, r := range rows {
		if r.ID != member.ID && r.IsRefund {
			log.WithFields(log.Fields{
				"team_id":  leader.ID,
				"order_id": orderID,
				"pending":  r.OrderID,
			}).Info("Team stays failed, another member is refunding")
			return false, nil
		}
	}
	if _, err := repo.SetStatus(ctx, leader.ID, model.TeamStatusFailed, model.TeamStatusOpen, ""); err != nil {
		return false, err
	}

	log.WithFields(log.Fields{
		"team_id":  leader.ID,
		"order_id": orderID,
	}).Info("Team restored after refund rejection")
	return true, nil
}
