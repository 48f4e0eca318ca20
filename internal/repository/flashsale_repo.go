package repository

import (
	"context"

	"gorm.io/gorm"

	"mall/internal/model"
)

// FlashSaleRepository slots and listings
type FlashSaleRepository interface {
	WithTx(tx *gorm.DB) FlashSaleRepository

	CreateSlot(ctx context.Context, s *model.FlashSaleSlot) error
	UpdateSlot(ctx context.Context, s *model.FlashSaleSlot) error
	DeleteSlot(ctx context.Context, id uint64) error
	GetSlot(ctx context.Context, id uint64) (*model.FlashSaleSlot, error)
	ListSlots(ctx context.Context) ([]model.FlashSaleSlot, error)
	// LockSlots locks the whole slot table so overlap checks cannot race
	LockSlots(ctx context.Context) ([]model.FlashSaleSlot, error)

	CreateListing(ctx context.Context, l *model.FlashSaleListing) error
	GetListing(ctx context.Context, id uint64) (*model.FlashSaleListing, error)
	LockListing(ctx context.Context, id uint64) (*model.FlashSaleListing, error)
	CountListings(ctx context.Context, slotID uint64) (int64, error)
	AddSales(ctx context.Context, id uint64, qty int) error
}

type flashSaleRepository struct {
	db *gorm.DB
}

// NewFlashSaleRepository creates a flash-sale repository
func NewFlashSaleRepository(db *gorm.DB) FlashSaleRepository {
	return &flashSaleRepository{db: db}
}

func (r *flashSaleRepository) WithTx(tx *gorm.DB) FlashSaleRepository {
	return &flashSaleRepository{db: tx}
}

func (r *flashSaleRepository) CreateSlot(ctx context.Context, s *model.FlashSaleSlot) error {
	return r.db.WithContext(ctx).Create(s).Error
}

func (r *flashSaleRepository) UpdateSlot(ctx context.Context, s *model.FlashSaleSlot) error {
	return r.db.WithContext(ctx).
		Model(&model.FlashSaleSlot{}).
		Where("id = ?", s.ID).
		Updates(map[string]interface{}{
			"name":       s.Name,
			"start_hour": s.StartHour,
			"end_hour":   s.EndHour,
		}).Error
}

func (r *flashSaleRepository) DeleteSlot(ctx context.Context, id uint64) error {
	return r.db.WithContext(ctx).Where("id = ?", id).Delete(&model.FlashSaleSlot{}).Error
}

func (r *flashSaleRepository) GetSlot(ctx context.Context, id uint64) (*model.FlashSaleSlot, error) {
	var s model.FlashSaleSlot
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&s).Error; err != nil {
		return nil, notFound(err, "flash sale slot")
	}
	return &s, nil
}

func (r *flashSaleRepository) ListSlots(ctx context.Context) ([]model.FlashSaleSlot, error) {
	var slots []model.FlashSaleSlot
	err := r.db.WithContext(ctx).Order("start_hour ASC").Find(&slots).Error
	return slots, err
}

func (r *flashSaleRepository) LockSlots(ctx context.Context) ([]model.FlashSaleSlot, error) {
	var slots []model.FlashSaleSlot
	err := r.db.WithContext(ctx).Clauses(forUpdate).Order("start_hour ASC").Find(&slots).Error
	return slots, err
}

func (r *flashSaleRepository) CreateListing(ctx context.Context, l *model.FlashSaleListing) error {
	return r.db.WithContext(ctx).Create(l).Error
}

func (r *flashSaleRepository) GetListing(ctx context.Context, id uint64) (*model.FlashSaleListing, error) {
	var l model.FlashSaleListing
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&l).Error; err != nil {
		return nil, notFound(err, "flash sale listing")
	}
	return &l, nil
}

func (r *flashSaleRepository) LockListing(ctx context.Context, id uint64) (*model.FlashSaleListing, error) {
	var l model.FlashSaleListing
	if err := r.db.WithContext(ctx).Clauses(forUpdate).Where("id = ?", id).First(&l).Error; err != nil {
		return nil, notFound(err, "flash sale listing")
	}
	return &l, nil
}

func (r *flashSaleRepository) CountListings(ctx context.Context, slotID uint64) (int64, error) {
	var n int64
	err := r.db.WithContext(ctx).Model(&model.FlashSaleListing{}).Where("slot_id = ?", slotID).Count(&n).Error
	return n, err
}

func (r *flashSaleRepository) AddSales(ctx context.Context, id uint64, qty int) error {
	return r.db.WithContext(ctx).
		Model(&model.FlashSaleListing{}).
		Where("id = ?", id).
		Update("sales", gorm.Expr("sales + ?", qty)).Error
}
