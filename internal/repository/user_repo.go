package repository

import (
	"context"
	"errors"

	"gorm.io/gorm"

	"mall/internal/model"
)

// ErrInsufficientBalance debit larger than the balance
var ErrInsufficientBalance = errors.New("insufficient balance")

// UserRepository user repository interface
type UserRepository interface {
	WithTx(tx *gorm.DB) UserRepository
	Create(ctx context.Context, user *model.User) error
	GetByID(ctx context.Context, id uint64) (*model.User, error)
	// Debit subtracts amount only when the balance covers it
	Debit(ctx context.Context, id uint64, amount int64) error
	Credit(ctx context.Context, id uint64, amount int64) error
}

type userRepository struct {
	db *gorm.DB
}

// NewUserRepository creates a user repository
func NewUserRepository(db *gorm.DB) UserRepository {
	return &userRepository{db: db}
}

func (r *userRepository) WithTx(tx *gorm.DB) UserRepository {
	return &userRepository{db: tx}
}

func (r *userRepository) Create(ctx context.Context, user *model.User) error {
	return r.db.WithContext(ctx).Create(user).Error
}

func (r *userRepository) GetByID(ctx context.Context, id uint64) (*model.User, error) {
	var user model.User
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&user).Error; err != nil {
		return nil, notFound(err, "user")
	}
	return &user, nil
}

func (r *userRepository) Debit(ctx context.Context, id uint64, amount int64) error {
	result := r.db.WithContext(ctx).
		Model(&model.User{}).
		Where("id = ? AND balance >= ?", id, amount).
		Update("balance", gorm.Expr("balance - ?", amount))
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		if _, err := r.GetByID(ctx, id); err != nil {
			return err
		}
		return ErrInsufficientBalance
	}
	return nil
}

func (r *userRepository) Credit(ctx context.Context, id uint64, amount int64) error {
	result := r.db.WithContext(ctx).
		Model(&model.User{}).
		Where("id = ?", id).
		Update("balance", gorm.Expr("balance + ?", amount))
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return notFound(gorm.ErrRecordNotFound, "user")
	}
	return nil
}
