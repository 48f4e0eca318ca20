package repository

import (
	"context"
	"fmt"

	"gorm.io/gorm"

	"mall/internal/model"
)

// parent aggregate column per owner type
var parentColumns = map[string]struct{ table, column string }{
	model.OwnerProduct:   {"products", "stock"},
	model.OwnerFlashSale: {"flash_sale_listings", "quota"},
	model.OwnerBargain:   {"bargain_campaigns", "stock"},
	model.OwnerTeam:      {"team_campaigns", "stock"},
}

// InventoryRepository per-SKU ledger rows
type InventoryRepository interface {
	WithTx(tx *gorm.DB) InventoryRepository

	Get(ctx context.Context, ownerType string, ownerID uint64, skuKey string) (*model.InventorySku, error)
	ListByOwner(ctx context.Context, ownerType string, ownerID uint64) ([]model.InventorySku, error)
	CreateBatch(ctx context.Context, skus []model.InventorySku) error
	UpdateSku(ctx context.Context, id uint64, updates map[string]interface{}) error
	DeleteByIDs(ctx context.Context, ids []uint64) error

	// Decrement subtracts qty when stock covers it; applied is false otherwise
	Decrement(ctx context.Context, ownerType string, ownerID uint64, skuKey string, qty int) (applied bool, err error)
	// Increment adds qty; applied is false when the row does not exist
	Increment(ctx context.Context, ownerType string, ownerID uint64, skuKey string, qty int) (applied bool, err error)

	// RecomputeParent sets the owner's aggregate to the sum of its SKU rows
	RecomputeParent(ctx context.Context, ownerType string, ownerID uint64) error
	// ParentExists reports whether the owner row exists
	ParentExists(ctx context.Context, ownerType string, ownerID uint64) (bool, error)
}

type inventoryRepository struct {
	db *gorm.DB
}

// NewInventoryRepository creates an inventory repository
func NewInventoryRepository(db *gorm.DB) InventoryRepository {
	return &inventoryRepository{db: db}
}

func (r *inventoryRepository) WithTx(tx *gorm.DB) InventoryRepository {
	return &inventoryRepository{db: tx}
}

func (r *inventoryRepository) Get(ctx context.Context, ownerType string, ownerID uint64, skuKey string) (*model.InventorySku, error) {
	var sku model.InventorySku
	err := r.db.WithContext(ctx).
		Where("owner_type = ? AND owner_id = ? AND sku_key = ?", ownerType, ownerID, skuKey).
		First(&sku).Error
	if err != nil {
		return nil, notFound(err, "sku")
	}
	return &sku, nil
}

func (r *inventoryRepository) ListByOwner(ctx context.Context, ownerType string, ownerID uint64) ([]model.InventorySku, error) {
	var skus []model.InventorySku
	err := r.db.WithContext(ctx).
		Where("owner_type = ? AND owner_id = ?", ownerType, ownerID).
		Order("id ASC").
		Find(&skus).Error
	return skus, err
}

func (r *inventoryRepository) CreateBatch(ctx context.Context, skus []model.InventorySku) error {
	if len(skus) == 0 {
		return nil
	}
	return r.db.WithContext(ctx).Create(&skus).Error
}

func (r *inventoryRepository) UpdateSku(ctx context.Context, id uint64, updates map[string]interface{}) error {
	return r.db.WithContext(ctx).
		Model(&model.InventorySku{}).
		Where("id = ?", id).
		Updates(updates).Error
}

func (r *inventoryRepository) DeleteByIDs(ctx context.Context, ids []uint64) error {
	if len(ids) == 0 {
		return nil
	}
	return r.db.WithContext(ctx).Where("id IN ?", ids).Delete(&model.InventorySku{}).Error
}

func (r *inventoryRepository) Decrement(ctx context.Context, ownerType string, ownerID uint64, skuKey string, qty int) (bool, error) {
	result := r.db.WithContext(ctx).
		Model(&model.InventorySku{}).
		Where("owner_type = ? AND owner_id = ? AND sku_key = ? AND stock >= ?", ownerType, ownerID, skuKey, qty).
		Updates(map[string]interface{}{
			"stock": gorm.Expr("stock - ?", qty),
			"sales": gorm.Expr("sales + ?", qty),
		})
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}

func (r *inventoryRepository) Increment(ctx context.Context, ownerType string, ownerID uint64, skuKey string, qty int) (bool, error) {
	result := r.db.WithContext(ctx).
		Model(&model.InventorySku{}).
		Where("owner_type = ? AND owner_id = ? AND sku_key = ?", ownerType, ownerID, skuKey).
		Update("stock", gorm.Expr("stock + ?", qty))
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}

func (r *inventoryRepository) RecomputeParent(ctx context.Context, ownerType string, ownerID uint64) error {
	parent, ok := parentColumns[ownerType]
	if !ok {
		return fmt.Errorf("unknown owner type %q", ownerType)
	}
	db := r.db.WithContext(ctx)
	sum := db.Model(&model.InventorySku{}).
		Select("COALESCE(SUM(stock), 0)").
		Where("owner_type = ? AND owner_id = ?", ownerType, ownerID)
	return db.Table(parent.table).
		Where("id = ?", ownerID).
		Update(parent.column, sum).Error
}

func (r *inventoryRepository) ParentExists(ctx context.Context, ownerType string, ownerID uint64) (bool, error) {
	parent, ok := parentColumns[ownerType]
	if !ok {
		return false, fmt.Errorf("unknown owner type %q", ownerType)
	}
	var n int64
	err := r.db.WithContext(ctx).Table(parent.table).Where("id = ?", ownerID).Count(&n).Error
	return n > 0, err
}
