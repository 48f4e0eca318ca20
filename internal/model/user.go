package model

import (
	"time"
)

// User buyer account; only the balance is touched by the order engine
type User struct {
	ID        uint64    `gorm:"primaryKey;autoIncrement;comment:用户ID" json:"id"`
	Username  string    `gorm:"type:varchar(50);uniqueIndex:uk_users_username;not null;comment:用户名" json:"username"`
	Phone     string    `gorm:"type:varchar(20);not null;default:'';comment:手机号" json:"phone"`
	Balance   int64     `gorm:"type:bigint;not null;default:0;comment:余额（分）" json:"balance"`
	Status    int8      `gorm:"type:tinyint;not null;default:1;comment:状态：1-正常，2-禁用" json:"status"`
	CreatedAt time.Time `gorm:"type:timestamp;not null;default:CURRENT_TIMESTAMP;comment:创建时间" json:"created_at"`
	UpdatedAt time.Time `gorm:"type:timestamp;not null;default:CURRENT_TIMESTAMP;comment:更新时间" json:"updated_at"`
}

// TableName set name
func (User) TableName() string {
	return "users"
}

// UserStatus user status const
const (
	UserStatusNormal   = 1 // 正常
	UserStatusDisabled = 2 // 禁用
)
