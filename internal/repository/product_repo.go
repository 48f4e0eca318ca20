package repository

import (
	"context"

	"gorm.io/gorm"

	"mall/internal/model"
)

// ProductRepository read access to the catalog
type ProductRepository interface {
	WithTx(tx *gorm.DB) ProductRepository
	Create(ctx context.Context, product *model.Product) error
	GetByID(ctx context.Context, id uint64) (*model.Product, error)
	AddSales(ctx context.Context, id uint64, qty int) error
}

type productRepository struct {
	db *gorm.DB
}

// NewProductRepository creates a product repository
func NewProductRepository(db *gorm.DB) ProductRepository {
	return &productRepository{db: db}
}

func (r *productRepository) WithTx(tx *gorm.DB) ProductRepository {
	return &productRepository{db: tx}
}

func (r *productRepository) Create(ctx context.Context, product *model.Product) error {
	return r.db.WithContext(ctx).Create(product).Error
}

func (r *productRepository) GetByID(ctx context.Context, id uint64) (*model.Product, error) {
	var product model.Product
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&product).Error; err != nil {
		return nil, notFound(err, "product")
	}
	return &product, nil
}

func (r *productRepository) AddSales(ctx context.Context, id uint64, qty int) error {
	return r.db.WithContext(ctx).
		Model(&model.Product{}).
		Where("id = ?", id).
		Update("sales", gorm.Expr("sales + ?", qty)).Error
}
