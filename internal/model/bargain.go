package model

import (
	"time"
)

// BargainCampaign progressive price-cut campaign
type BargainCampaign struct {
	ID         uint64    `gorm:"primaryKey;autoIncrement;comment:砍价活动ID" json:"id"`
	ProductID  uint64    `gorm:"type:bigint unsigned;not null;index:idx_bargain_campaigns_product;comment:商品ID" json:"product_id"`
	Title      string    `gorm:"type:varchar(200);not null;default:'';comment:活动标题" json:"title"`
	StartPrice int64     `gorm:"type:bigint;not null;comment:起始价（分）" json:"start_price"`
	FloorPrice int64     `gorm:"type:bigint;not null;comment:底价（分）" json:"floor_price"`
	MaxHelpers int       `gorm:"type:int;not null;comment:帮砍人数上限" json:"max_helpers"`
	MinCut     int64     `gorm:"type:bigint;not null;default:1;comment:单次最小砍价（分）" json:"min_cut"`
	CutPolicy  string    `gorm:"type:varchar(16);not null;default:'even';comment:砍价策略" json:"cut_policy"`
	Stock      int       `gorm:"type:int;not null;default:0;comment:库存（SKU汇总）" json:"stock"`
	StartAt    time.Time `gorm:"type:timestamp;not null;comment:开始时间" json:"start_at"`
	StopAt     time.Time `gorm:"type:timestamp;not null;comment:结束时间" json:"stop_at"`
	CreatedAt  time.Time `gorm:"type:timestamp;not null;default:CURRENT_TIMESTAMP;comment:创建时间" json:"created_at"`
	UpdatedAt  time.Time `gorm:"type:timestamp;not null;default:CURRENT_TIMESTAMP;comment:更新时间" json:"updated_at"`
}

// TableName set name
func (BargainCampaign) TableName() string {
	return "bargain_campaigns"
}

// IsActive within the start/stop window
func (c *BargainCampaign) IsActive(t time.Time) bool {
	return !t.Before(c.StartAt) && t.Before(c.StopAt)
}

// BargainSession one user's negotiation in a campaign
type BargainSession struct {
	ID           uint64    `gorm:"primaryKey;autoIncrement;comment:砍价记录ID" json:"id"`
	CampaignID   uint64    `gorm:"type:bigint unsigned;not null;index:idx_bargain_sessions_user,priority:1;comment:砍价活动ID" json:"campaign_id"`
	UserID       uint64    `gorm:"type:bigint unsigned;not null;index:idx_bargain_sessions_user,priority:2;comment:用户ID" json:"user_id"`
	StartPrice   int64     `gorm:"type:bigint;not null;comment:起始价（分）" json:"start_price"`
	FloorPrice   int64     `gorm:"type:bigint;not null;comment:底价（分）" json:"floor_price"`
	CurrentPrice int64     `gorm:"type:bigint;not null;comment:当前价（分）" json:"current_price"`
	Status       int8      `gorm:"type:tinyint;not null;default:1;index:idx_bargain_sessions_status;comment:状态：1-进行中，2-成功，3-失败" json:"status"`
	ExpireAt     time.Time `gorm:"type:timestamp;not null;comment:过期时间" json:"expire_at"`
	OrderID      uint64    `gorm:"type:bigint unsigned;not null;default:0;comment:下单ID" json:"order_id"`
	CreatedAt    time.Time `gorm:"type:timestamp;not null;default:CURRENT_TIMESTAMP;comment:创建时间" json:"created_at"`
	UpdatedAt    time.Time `gorm:"type:timestamp;not null;default:CURRENT_TIMESTAMP;comment:更新时间" json:"updated_at"`

	Helps []BargainHelp `gorm:"foreignKey:SessionID" json:"helps,omitempty"`
}

// TableName set name
func (BargainSession) TableName() string {
	return "bargain_sessions"
}

// bargain session status
const (
	BargainStatusActive    int8 = 1 // 进行中
	BargainStatusSucceeded int8 = 2 // 成功
	BargainStatusFailed    int8 = 3 // 失败
)

// BargainStatusName status as exposed to callers
func BargainStatusName(s int8) string {
	switch s {
	case BargainStatusActive:
		return "active"
	case BargainStatusSucceeded:
		return "succeeded"
	default:
		return "failed"
	}
}

// EffectiveStatus status with expiry evaluated against now
func (s *BargainSession) EffectiveStatus(now time.Time) int8 {
	if s.Status == BargainStatusActive && !now.Before(s.ExpireAt) {
		return BargainStatusFailed
	}
	return s.Status
}

// BargainHelp one helper's contribution
type BargainHelp struct {
	ID         uint64    `gorm:"primaryKey;autoIncrement;comment:ID" json:"id"`
	SessionID  uint64    `gorm:"type:bigint unsigned;not null;uniqueIndex:uk_bargain_helps_helper,priority:1;comment:砍价记录ID" json:"session_id"`
	HelperID   uint64    `gorm:"type:bigint unsigned;not null;uniqueIndex:uk_bargain_helps_helper,priority:2;comment:帮砍用户ID" json:"helper_id"`
	CutAmount  int64     `gorm:"type:bigint;not null;comment:砍掉金额（分）" json:"cut_amount"`
	PriceAfter int64     `gorm:"type:bigint;not null;comment:砍后价格（分）" json:"price_after"`
	CreatedAt  time.Time `gorm:"type:timestamp;not null;default:CURRENT_TIMESTAMP;comment:创建时间" json:"created_at"`
}

// TableName set name
func (BargainHelp) TableName() string {
	return "bargain_helps"
}
