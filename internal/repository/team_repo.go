package repository

import (
	"context"
	"time"

	"gorm.io/gorm"

	"mall/internal/model"
)

// TeamRepository campaigns and member rows
type TeamRepository interface {
	WithTx(tx *gorm.DB) TeamRepository

	CreateCampaign(ctx context.Context, c *model.TeamCampaign) error
	GetCampaign(ctx context.Context, id uint64) (*model.TeamCampaign, error)

	// CreateMember inserts a row; leader rows get TeamID set to their own ID
	CreateMember(ctx context.Context, m *model.TeamMember) error
	GetLeader(ctx context.Context, teamID uint64) (*model.TeamMember, error)
	// LockLeader takes the per-team lock by locking the leader row
	LockLeader(ctx context.Context, teamID uint64) (*model.TeamMember, error)
	GetMemberByOrder(ctx context.Context, orderID uint64) (*model.TeamMember, error)
	ListMembers(ctx context.Context, teamID uint64) ([]model.TeamMember, error)

	// CountActive counts rows of the team that have not been refunded
	CountActive(ctx context.Context, teamID uint64) (int64, error)
	// SetStatus moves every row of the team from status `from` to `to`
	SetStatus(ctx context.Context, teamID uint64, from, to int8, reason string) (int64, error)
	MarkRefund(ctx context.Context, memberID uint64, refund bool) error

	// ListExpired leader rows past expiry that are still open, or that failed
	// on a refund request and can no longer be restored
	ListExpired(ctx context.Context, now time.Time, limit int) ([]model.TeamMember, error)
}

type teamRepository struct {
	db *gorm.DB
}

// NewTeamRepository creates a team repository
func NewTeamRepository(db *gorm.DB) TeamRepository {
	return &teamRepository{db: db}
}

func (r *teamRepository) WithTx(tx *gorm.DB) TeamRepository {
	return &teamRepository{db: tx}
}

func (r *teamRepository) CreateCampaign(ctx context.Context, c *model.TeamCampaign) error {
	return r.db.WithContext(ctx).Create(c).Error
}

func (r *teamRepository) GetCampaign(ctx context.Context, id uint64) (*model.TeamCampaign, error) {
	var c model.TeamCampaign
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&c).Error; err != nil {
		return nil, notFound(err, "team campaign")
	}
	return &c, nil
}

func (r *teamRepository) CreateMember(ctx context.Context, m *model.TeamMember) error {
	db := r.db.WithContext(ctx)
	if err := db.Create(m).Error; err != nil {
		return err
	}
	if !m.IsLeader {
		return nil
	}
	m.TeamID = m.ID
	return db.Model(&model.TeamMember{}).Where("id = ?", m.ID).Update("team_id", m.ID).Error
}

func (r *teamRepository) GetLeader(ctx context.Context, teamID uint64) (*model.TeamMember, error) {
	var m model.TeamMember
	err := r.db.WithContext(ctx).Where("id = ? AND is_leader = ?", teamID, true).First(&m).Error
	if err != nil {
		return nil, notFound(err, "team")
	}
	return &m, nil
}

func (r *teamRepository) LockLeader(ctx context.Context, teamID uint64) (*model.TeamMember, error) {
	var m model.TeamMember
	err := r.db.WithContext(ctx).
		Clauses(forUpdate).
		Where("id = ? AND is_leader = ?", teamID, true).
		First(&m).Error
	if err != nil {
		return nil, notFound(err, "team")
	}
	return &m, nil
}

func (r *teamRepository) GetMemberByOrder(ctx context.Context, orderID uint64) (*model.TeamMember, error) {
	var m model.TeamMember
	if err := r.db.WithContext(ctx).Where("order_id = ?", orderID).First(&m).Error; err != nil {
		return nil, notFound(err, "team member")
	}
	return &m, nil
}

func (r *teamRepository) ListMembers(ctx context.Context, teamID uint64) ([]model.TeamMember, error) {
	var members []model.TeamMember
	err := r.db.WithContext(ctx).
		Where("team_id = ?", teamID).
		Order("id ASC").
		Find(&members).Error
	return members, err
}

func (r *teamRepository) CountActive(ctx context.Context, teamID uint64) (int64, error) {
	var n int64
	err := r.db.WithContext(ctx).
		Model(&model.TeamMember{}).
		Where("team_id = ? AND is_refund = ?", teamID, false).
		Count(&n).Error
	return n, err
}

func (r *teamRepository) SetStatus(ctx context.Context, teamID uint64, from, to int8, reason string) (int64, error) {
	result := r.db.WithContext(ctx).
		Model(&model.TeamMember{}).
		Where("team_id = ? AND status = ?", teamID, from).
		Updates(map[string]interface{}{"status": to, "fail_reason": reason})
	return result.RowsAffected, result.Error
}

func (r *teamRepository) MarkRefund(ctx context.Context, memberID uint64, refund bool) error {
	return r.db.WithContext(ctx).
		Model(&model.TeamMember{}).
		Where("id = ?", memberID).
		Update("is_refund", refund).Error
}

func (r *teamRepository) ListExpired(ctx context.Context, now time.Time, limit int) ([]model.TeamMember, error) {
	var leaders []model.TeamMember
	err := r.db.WithContext(ctx).
		Where("is_leader = ? AND expire_at <= ?", true, now).
		Where(r.db.Where("status = ?", model.TeamStatusOpen).
			Or("status = ? AND fail_reason = ?", model.TeamStatusFailed, model.TeamFailRefund)).
		Order("expire_at ASC").
		Limit(limit).
		Find(&leaders).Error
	return leaders, err
}
