package model

import (
	"time"
)

// FlashSaleSlot hour-of-day window [StartHour, EndHour)
type FlashSaleSlot struct {
	ID        uint64    `gorm:"primaryKey;autoIncrement;comment:时段ID" json:"id"`
	Name      string    `gorm:"type:varchar(64);not null;comment:时段名称" json:"name"`
	StartHour int       `gorm:"type:int;not null;comment:开始小时" json:"start_hour"`
	EndHour   int       `gorm:"type:int;not null;comment:结束小时" json:"end_hour"`
	CreatedAt time.Time `gorm:"type:timestamp;not null;default:CURRENT_TIMESTAMP;comment:创建时间" json:"created_at"`
	UpdatedAt time.Time `gorm:"type:timestamp;not null;default:CURRENT_TIMESTAMP;comment:更新时间" json:"updated_at"`
}

// TableName set name
func (FlashSaleSlot) TableName() string {
	return "flash_sale_slots"
}

// Contains reports whether hour falls inside [StartHour, EndHour)
func (s *FlashSaleSlot) Contains(hour int) bool {
	return hour >= s.StartHour && hour < s.EndHour
}

// Overlaps reports whether two slots intersect
func (s *FlashSaleSlot) Overlaps(o *FlashSaleSlot) bool {
	return s.StartHour < o.EndHour && o.StartHour < s.EndHour
}

// FlashSaleListing discounted listing bound to a slot. Quota is the sum of its SKU rows.
type FlashSaleListing struct {
	ID        uint64    `gorm:"primaryKey;autoIncrement;comment:秒杀商品ID" json:"id"`
	SlotID    uint64    `gorm:"type:bigint unsigned;not null;index:idx_flash_listings_slot;comment:时段ID" json:"slot_id"`
	ProductID uint64    `gorm:"type:bigint unsigned;not null;comment:商品ID" json:"product_id"`
	Title     string    `gorm:"type:varchar(200);not null;default:'';comment:标题" json:"title"`
	Price     int64     `gorm:"type:bigint;not null;comment:秒杀价（分）" json:"price"`
	Quota     int       `gorm:"type:int;not null;default:0;comment:剩余配额（SKU汇总）" json:"quota"`
	Sales     int       `gorm:"type:int;not null;default:0;comment:已售数量" json:"sales"`
	Status    int8      `gorm:"type:tinyint;not null;default:0;comment:状态：1-上架，0-下架" json:"status"`
	CreatedAt time.Time `gorm:"type:timestamp;not null;default:CURRENT_TIMESTAMP;comment:创建时间" json:"created_at"`
	UpdatedAt time.Time `gorm:"type:timestamp;not null;default:CURRENT_TIMESTAMP;comment:更新时间" json:"updated_at"`
}

// TableName set name
func (FlashSaleListing) TableName() string {
	return "flash_sale_listings"
}

// listing status
const (
	ListingOffline int8 = 0
	ListingOnline  int8 = 1
)
