package model

import (
	"time"

	"gorm.io/datatypes"
)

// Product catalog product; Stock is the sum of its SKU rows
type Product struct {
	ID        uint64    `gorm:"primaryKey;autoIncrement;comment:商品ID" json:"id"`
	Name      string    `gorm:"type:varchar(200);not null;comment:商品名称" json:"name"`
	Price     int64     `gorm:"type:bigint;not null;default:0;comment:价格（分）" json:"price"`
	Stock     int       `gorm:"type:int;not null;default:0;comment:库存（SKU汇总）" json:"stock"`
	Sales     int       `gorm:"type:int;not null;default:0;comment:销量" json:"sales"`
	Status    int8      `gorm:"type:tinyint;not null;default:1;comment:状态：1-上架，2-下架" json:"status"`
	CreatedAt time.Time `gorm:"type:timestamp;not null;default:CURRENT_TIMESTAMP;comment:创建时间" json:"created_at"`
	UpdatedAt time.Time `gorm:"type:timestamp;not null;default:CURRENT_TIMESTAMP;comment:更新时间" json:"updated_at"`
}

// TableName set name
func (Product) TableName() string {
	return "products"
}

// owner types of a ledger entry
const (
	OwnerProduct   = "product"
	OwnerFlashSale = "flashsale"
	OwnerBargain   = "bargain"
	OwnerTeam      = "team"
)

// InventorySku ledger entry: (owner, sku key) -> stock
type InventorySku struct {
	ID        uint64         `gorm:"primaryKey;autoIncrement;comment:ID" json:"id"`
	OwnerType string         `gorm:"type:varchar(16);not null;uniqueIndex:uk_inventory_owner_sku,priority:1;comment:归属类型" json:"owner_type"`
	OwnerID   uint64         `gorm:"type:bigint unsigned;not null;uniqueIndex:uk_inventory_owner_sku,priority:2;comment:归属ID" json:"owner_id"`
	SkuKey    string         `gorm:"type:varchar(128);not null;uniqueIndex:uk_inventory_owner_sku,priority:3;comment:规格" json:"sku_key"`
	Stock     int            `gorm:"type:int;not null;default:0;comment:库存" json:"stock"`
	Sales     int            `gorm:"type:int;not null;default:0;comment:销量" json:"sales"`
	Price     int64          `gorm:"type:bigint;not null;default:0;comment:价格（分）" json:"price"`
	Attrs     datatypes.JSON `gorm:"type:json;comment:规格属性" json:"attrs,omitempty"`
	CreatedAt time.Time      `gorm:"type:timestamp;not null;default:CURRENT_TIMESTAMP;comment:创建时间" json:"created_at"`
	UpdatedAt time.Time      `gorm:"type:timestamp;not null;default:CURRENT_TIMESTAMP;comment:更新时间" json:"updated_at"`
}

// TableName set name
func (InventorySku) TableName() string {
	return "inventory_skus"
}
