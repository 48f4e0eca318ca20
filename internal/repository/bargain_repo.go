package repository

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"

	"mall/internal/model"
)

// BargainRepository campaigns, sessions and helper contributions
type BargainRepository interface {
	WithTx(tx *gorm.DB) BargainRepository

	CreateCampaign(ctx context.Context, c *model.BargainCampaign) error
	GetCampaign(ctx context.Context, id uint64) (*model.BargainCampaign, error)
	LockCampaign(ctx context.Context, id uint64) (*model.BargainCampaign, error)

	CreateSession(ctx context.Context, s *model.BargainSession) error
	GetSession(ctx context.Context, id uint64) (*model.BargainSession, error)
	LockSession(ctx context.Context, id uint64) (*model.BargainSession, error)
	// FindActive returns nil without error when the user has no active session
	FindActive(ctx context.Context, campaignID, userID uint64) (*model.BargainSession, error)
	UpdateSession(ctx context.Context, id uint64, updates map[string]interface{}) error
	// ExpireSessions fails every active session whose expiry has passed
	ExpireSessions(ctx context.Context, now time.Time) (int64, error)

	CreateHelp(ctx context.Context, h *model.BargainHelp) error
	CountHelps(ctx context.Context, sessionID uint64) (int64, error)
	HasHelped(ctx context.Context, sessionID, helperID uint64) (bool, error)
	ListHelps(ctx context.Context, sessionID uint64) ([]model.BargainHelp, error)
}

type bargainRepository struct {
	db *gorm.DB
}

// NewBargainRepository creates a bargain repository
func NewBargainRepository(db *gorm.DB) BargainRepository {
	return &bargainRepository{db: db}
}

func (r *bargainRepository) WithTx(tx *gorm.DB) BargainRepository {
	return &bargainRepository{db: tx}
}

func (r *bargainRepository) CreateCampaign(ctx context.Context, c *model.BargainCampaign) error {
	return r.db.WithContext(ctx).Create(c).Error
}

func (r *bargainRepository) GetCampaign(ctx context.Context, id uint64) (*model.BargainCampaign, error) {
	var c model.BargainCampaign
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&c).Error; err != nil {
		return nil, notFound(err, "bargain campaign")
	}
	return &c, nil
}

func (r *bargainRepository) LockCampaign(ctx context.Context, id uint64) (*model.BargainCampaign, error) {
	var c model.BargainCampaign
	if err := r.db.WithContext(ctx).Clauses(forUpdate).Where("id = ?", id).First(&c).Error; err != nil {
		return nil, notFound(err, "bargain campaign")
	}
	return &c, nil
}

func (r *bargainRepository) CreateSession(ctx context.Context, s *model.BargainSession) error {
	return r.db.WithContext(ctx).Create(s).Error
}

func (r *bargainRepository) GetSession(ctx context.Context, id uint64) (*model.BargainSession, error) {
	var s model.BargainSession
	err := r.db.WithContext(ctx).
		Preload("Helps", func(db *gorm.DB) *gorm.DB { return db.Order("id ASC") }).
		Where("id = ?", id).
		First(&s).Error
	if err != nil {
		return nil, notFound(err, "bargain session")
	}
	return &s, nil
}

func (r *bargainRepository) LockSession(ctx context.Context, id uint64) (*model.BargainSession, error) {
	var s model.BargainSession
	if err := r.db.WithContext(ctx).Clauses(forUpdate).Where("id = ?", id).First(&s).Error; err != nil {
		return nil, notFound(err, "bargain session")
	}
	return &s, nil
}

func (r *bargainRepository) FindActive(ctx context.Context, campaignID, userID uint64) (*model.BargainSession, error) {
	var s model.BargainSession
	err := r.db.WithContext(ctx).
		Where("campaign_id = ? AND user_id = ? AND status = ?", campaignID, userID, model.BargainStatusActive).
		First(&s).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &s, nil
}

func (r *bargainRepository) UpdateSession(ctx context.Context, id uint64, updates map[string]interface{}) error {
	return r.db.WithContext(ctx).
		Model(&model.BargainSession{}).
		Where("id = ?", id).
		Updates(updates).Error
}

func (r *bargainRepository) ExpireSessions(ctx context.Context, now time.Time) (int64, error) {
	result := r.db.WithContext(ctx).
		Model(&model.BargainSession{}).
		Where("status = ? AND expire_at <= ?", model.BargainStatusActive, now).
		Update("status", model.BargainStatusFailed)
	return result.RowsAffected, result.Error
}

func (r *bargainRepository) CreateHelp(ctx context.Context, h *model.BargainHelp) error {
	return r.db.WithContext(ctx).Create(h).Error
}

func (r *bargainRepository) CountHelps(ctx context.Context, sessionID uint64) (int64, error) {
	var n int64
	err := r.db.WithContext(ctx).Model(&model.BargainHelp{}).Where("session_id = ?", sessionID).Count(&n).Error
	return n, err
}

func (r *bargainRepository) HasHelped(ctx context.Context, sessionID, helperID uint64) (bool, error) {
	var n int64
	err := r.db.WithContext(ctx).
		Model(&model.BargainHelp{}).
		Where("session_id = ? AND helper_id = ?", sessionID, helperID).
		Count(&n).Error
	return n > 0, err
}

func (r *bargainRepository) ListHelps(ctx context.Context, sessionID uint64) ([]model.BargainHelp, error) {
	var helps []model.BargainHelp
	err := r.db.WithContext(ctx).Where("session_id = ?", sessionID).Order("id ASC").Find(&helps).Error
	return helps, err
}
