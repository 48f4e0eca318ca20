package repository

import (
	"context"
	"time"

	"gorm.io/gorm"

	"mall/internal/model"
)

// OrderRepository order repository interface
type OrderRepository interface {
	// WithTx binds the repository to a transaction
	WithTx(tx *gorm.DB) OrderRepository

	// Create inserts the header and its items
	Create(ctx context.Context, order *model.Order) error
	GetByID(ctx context.Context, id uint64) (*model.Order, error)
	GetByCode(ctx context.Context, code string) (*model.Order, error)

	// Lock variants take a row lock for the rest of the transaction
	LockByID(ctx context.Context, id uint64) (*model.Order, error)
	LockByCode(ctx context.Context, code string) (*model.Order, error)
	LockByVerifyCode(ctx context.Context, verifyCode string) (*model.Order, error)

	// Update writes the given columns
	Update(ctx context.Context, id uint64, updates map[string]interface{}) error

	// AddLog appends a status log row
	AddLog(ctx context.Context, orderID uint64, changeType, message string) error
	ListLogs(ctx context.Context, orderID uint64) ([]model.OrderStatusLog, error)

	// LockPaidByTeam locks the paid, not yet refunded orders of a team
	LockPaidByTeam(ctx context.Context, teamID uint64) ([]*model.Order, error)
}

// orderRepository order repository implementation
type orderRepository struct {
	db *gorm.DB
}

// NewOrderRepository creates an order repository
func NewOrderRepository(db *gorm.DB) OrderRepository {
	return &orderRepository{db: db}
}

func (r *orderRepository) WithTx(tx *gorm.DB) OrderRepository {
	return &orderRepository{db: tx}
}

func (r *orderRepository) Create(ctx context.Context, order *model.Order) error {
	return r.db.WithContext(ctx).Create(order).Error
}

func (r *orderRepository) GetByID(ctx context.Context, id uint64) (*model.Order, error) {
	var order model.Order
	err := r.db.WithContext(ctx).Preload("Items").Where("id = ?", id).First(&order).Error
	if err != nil {
		return nil, notFound(err, "order")
	}
	return &order, nil
}

func (r *orderRepository) GetByCode(ctx context.Context, code string) (*model.Order, error) {
	var order model.Order
	err := r.db.WithContext(ctx).Preload("Items").Where("order_code = ?", code).First(&order).Error
	if err != nil {
		return nil, notFound(err, "order")
	}
	return &order, nil
}

func (r *orderRepository) LockByID(ctx context.Context, id uint64) (*model.Order, error) {
	return r.lock(ctx, "id = ?", id)
}

func (r *orderRepository) LockByCode(ctx context.Context, code string) (*model.Order, error) {
	return r.lock(ctx, "order_code = ?", code)
}

func (r *orderRepository) LockByVerifyCode(ctx context.Context, verifyCode string) (*model.Order, error) {
	if verifyCode == "" {
		return nil, notFound(gorm.ErrRecordNotFound, "order")
	}
	return r.lock(ctx, "verify_code = ?", verifyCode)
}

func (r *orderRepository) lock(ctx context.Context, query string, arg interface{}) (*model.Order, error) {
	var order model.Order
	err := r.db.WithContext(ctx).Clauses(forUpdate).Where(query, arg).First(&order).Error
	if err != nil {
		return nil, notFound(err, "order")
	}
	return &order, nil
}

func (r *orderRepository) Update(ctx context.Context, id uint64, updates map[string]interface{}) error {
	return r.db.WithContext(ctx).
		Model(&model.Order{}).
		Where("id = ?", id).
		Updates(updates).Error
}

func (r *orderRepository) AddLog(ctx context.Context, orderID uint64, changeType, message string) error {
	return r.db.WithContext(ctx).Create(&model.OrderStatusLog{
		OrderID:       orderID,
		ChangeType:    changeType,
		ChangeMessage: message,
		CreatedAt:     time.Now(),
	}).Error
}

func (r *orderRepository) ListLogs(ctx context.Context, orderID uint64) ([]model.OrderStatusLog, error) {
	var logs []model.OrderStatusLog
	err := r.db.WithContext(ctx).
		Where("order_id = ?", orderID).
		Order("id ASC").
		Find(&logs).Error
	return logs, err
}

func (r *orderRepository) LockPaidByTeam(ctx context.Context, teamID uint64) ([]*model.Order, error) {
	var orders []*model.Order
	err := r.db.WithContext(ctx).
		Clauses(forUpdate).
		Where("team_id = ? AND paid = ? AND refund_status = ?", teamID, true, model.RefundStatusNone).
		Order("id ASC").
		Find(&orders).Error
	return orders, err
}
