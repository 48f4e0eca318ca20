package model

import (
	"time"
)

// TeamCampaign group-buy campaign
type TeamCampaign struct {
	ID             uint64    `gorm:"primaryKey;autoIncrement;comment:拼团活动ID" json:"id"`
	ProductID      uint64    `gorm:"type:bigint unsigned;not null;index:idx_team_campaigns_product;comment:商品ID" json:"product_id"`
	Title          string    `gorm:"type:varchar(200);not null;default:'';comment:活动标题" json:"title"`
	People         int       `gorm:"type:int;not null;comment:成团人数" json:"people"`
	EffectiveHours int       `gorm:"type:int;not null;comment:成团有效时长（小时）" json:"effective_hours"`
	Price          int64     `gorm:"type:bigint;not null;comment:拼团价（分）" json:"price"`
	Stock          int       `gorm:"type:int;not null;default:0;comment:库存（SKU汇总）" json:"stock"`
	AllowSolo      bool      `gorm:"type:tinyint(1);not null;default:0;comment:未成团是否允许单独发货" json:"allow_solo"`
	StartAt        time.Time `gorm:"type:timestamp;not null;comment:开始时间" json:"start_at"`
	StopAt         time.Time `gorm:"type:timestamp;not null;comment:结束时间" json:"stop_at"`
	CreatedAt      time.Time `gorm:"type:timestamp;not null;default:CURRENT_TIMESTAMP;comment:创建时间" json:"created_at"`
	UpdatedAt      time.Time `gorm:"type:timestamp;not null;default:CURRENT_TIMESTAMP;comment:更新时间" json:"updated_at"`
}

// TableName set name
func (TeamCampaign) TableName() string {
	return "team_campaigns"
}

// Window team lifetime after the leader opens it
func (c *TeamCampaign) Window() time.Duration {
	return time.Duration(c.EffectiveHours) * time.Hour
}

// IsActive campaign accepting new orders at t
func (c *TeamCampaign) IsActive(t time.Time) bool {
	return !t.Before(c.StartAt) && t.Before(c.StopAt)
}

// TeamMember one row per participant. The leader row's TeamID is its own ID,
// member rows point at the leader. Status is kept identical across a team.
type TeamMember struct {
	ID         uint64    `gorm:"primaryKey;autoIncrement;comment:ID" json:"id"`
	CampaignID uint64    `gorm:"type:bigint unsigned;not null;index:idx_team_members_campaign;comment:拼团活动ID" json:"campaign_id"`
	TeamID     uint64    `gorm:"type:bigint unsigned;not null;default:0;index:idx_team_members_team;comment:团长记录ID" json:"team_id"`
	UserID     uint64    `gorm:"type:bigint unsigned;not null;comment:用户ID" json:"user_id"`
	OrderID    uint64    `gorm:"type:bigint unsigned;not null;default:0;comment:订单ID" json:"order_id"`
	IsLeader   bool      `gorm:"type:tinyint(1);not null;default:0;comment:是否团长" json:"is_leader"`
	People     int       `gorm:"type:int;not null;comment:成团人数" json:"people"`
	Status     int8      `gorm:"type:tinyint;not null;default:1;index:idx_team_members_status;comment:状态：1-进行中，2-已成团，3-未成团" json:"status"`
	FailReason string    `gorm:"type:varchar(16);not null;default:'';comment:失败原因" json:"fail_reason,omitempty"`
	IsRefund   bool      `gorm:"type:tinyint(1);not null;default:0;comment:是否退款" json:"is_refund"`
	ExpireAt   time.Time `gorm:"type:timestamp;not null;comment:过期时间" json:"expire_at"`
	CreatedAt  time.Time `gorm:"type:timestamp;not null;default:CURRENT_TIMESTAMP;comment:创建时间" json:"created_at"`
	UpdatedAt  time.Time `gorm:"type:timestamp;not null;default:CURRENT_TIMESTAMP;comment:更新时间" json:"updated_at"`
}

// TableName set name
func (TeamMember) TableName() string {
	return "team_members"
}

// team status
const (
	TeamStatusOpen      int8 = 1 // 进行中
	TeamStatusCompleted int8 = 2 // 已成团
	TeamStatusFailed    int8 = 3 // 未成团
)

// team failure reasons
const (
	TeamFailExpired   = "expired"
	TeamFailCancelled = "cancelled"
	TeamFailRefund    = "refund"
)

// TeamStatusName status as exposed to callers
func TeamStatusName(s int8) string {
	switch s {
	case TeamStatusOpen:
		return "open"
	case TeamStatusCompleted:
		return "completed"
	default:
		return "failed"
	}
}

// EffectiveStatus status with expiry evaluated against now
func (m *TeamMember) EffectiveStatus(now time.Time) int8 {
	if m.Status == TeamStatusOpen && !now.Before(m.ExpireAt) {
		return TeamStatusFailed
	}
	return m.Status
}
