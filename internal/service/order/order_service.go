package order

import (
	"context"
	"encoding/binary"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"gorm.io/gorm"

	"mall/internal/event"
	"mall/internal/model"
	"mall/internal/monitor"
	"mall/internal/repository"
	"mall/internal/service/bargain"
	"mall/internal/service/flashsale"
	"mall/internal/service/inventory"
	"mall/internal/service/team"
	"mall/pkg/log"
	"mall/pkg/snowflake"
	"mall/pkg/utils"
)

var tracer = otel.Tracer("mall/order")

// OrderView order with its derived display label
type OrderView struct {
	*model.Order
	Label string `json:"label"`
}

// OrderService order record store and state machine
type OrderService interface {
	// Create persists an unpaid order and reserves its inventory (checkout hook)
	Create(ctx context.Context, req *CreateOrderRequest) (*model.Order, error)
	Get(ctx context.Context, orderCode string) (*OrderView, error)
	GetByID(ctx context.Context, id uint64) (*OrderView, error)
	Logs(ctx context.Context, orderCode string) ([]model.OrderStatusLog, error)

	// RecordPayment is idempotent: an already paid order is returned unchanged
	RecordPayment(ctx context.Context, req *PaymentRequest) (*model.Order, error)

	Ship(ctx context.Context, req *ShipRequest) (*model.Order, error)
	CorrectTracking(ctx context.Context, req *TrackingRequest) (*model.Order, error)
	WriteOff(ctx context.Context, verifyCode string) (*model.Order, error)
	ConfirmReceipt(ctx context.Context, orderCode string, userID uint64) (*model.Order, error)
	Complete(ctx context.Context, orderCode string) (*model.Order, error)

	ChangePrice(ctx context.Context, req *ChangePriceRequest) (*model.Order, error)

	RequestRefund(ctx context.Context, req *RefundRequest) (*model.Order, error)
	ApproveRefund(ctx context.Context, req *ApproveRefundRequest) (*model.Order, error)
	RejectRefund(ctx context.Context, req *RejectRefundRequest) (*model.Order, error)
	// FlagTeamRefunds moves the paid orders of a failed team to refund requested
	FlagTeamRefunds(ctx context.Context, teamID uint64) (int, error)

	SoftDelete(ctx context.Context, orderCode string, userID uint64) (*model.Order, error)
	SystemDelete(ctx context.Context, orderCode string) (*model.Order, error)
}

type orderService struct {
	db         *gorm.DB
	orders     repository.OrderRepository
	users      repository.UserRepository
	products   repository.ProductRepository
	inventory  inventory.InventoryService
	teams      team.TeamService
	bargains   bargain.BargainService
	flashSale  flashsale.FlashSaleService
	publisher  event.Publisher
	metrics    *monitor.MetricsCollector
	ids        *snowflake.IDGenerator
	now        func() time.Time
	verifyCode func() string
}

// Deps collaborators of the order service
type Deps struct {
	DB        *gorm.DB
	Orders    repository.OrderRepository
	Users     repository.UserRepository
	Products  repository.ProductRepository
	Inventory inventory.InventoryService
	Teams     team.TeamService
	Bargains  bargain.BargainService
	FlashSale flashsale.FlashSaleService
	Publisher event.Publisher
	Metrics   *monitor.MetricsCollector
	IDs       *snowflake.IDGenerator
}

// NewOrderService creates an order service
func NewOrderService(d Deps) OrderService {
	publisher := d.Publisher
	if publisher == nil {
		publisher = event.Nop{}
	}
	return &orderService{
		db:         d.DB,
		orders:     d.Orders,
		users:      d.Users,
		products:   d.Products,
		inventory:  d.Inventory,
		teams:      d.Teams,
		bargains:   d.Bargains,
		flashSale:  d.FlashSale,
		publisher:  publisher,
		metrics:    d.Metrics,
		ids:        d.IDs,
		now:        time.Now,
		verifyCode: verificationCode,
	}
}

// locker picks the order row to lock inside the transaction
type locker func(ctx context.Context, repo repository.OrderRepository) (*model.Order, error)

func byCode(code string) locker {
	return func(ctx context.Context, repo repository.OrderRepository) (*model.Order, error) {
		return repo.LockByCode(ctx, code)
	}
}

// mutation applies one transition to the locked order. It must run every check
// before its first write and return the events to publish after commit.
type mutation func(ctx context.Context, tx *gorm.DB, repo repository.OrderRepository, o *model.Order) ([]model.Event, error)

// transition runs lock+mutate in one transaction, then publishes events and
// returns the order as committed
func (s *orderService) transition(ctx context.Context, op string, lock locker, fn mutation) (result *model.Order, err error) {
	start := time.Now()
	ctx, span := tracer.Start(ctx, "order."+op)
	defer func() {
		s.metrics.RecordTransition(op, err, time.Since(start))
		monitor.EndSpan(span, err)
	}()

	var (
		events  []model.Event
		orderID uint64
		code    string
	)
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		repo := s.orders.WithTx(tx)
		o, err := lock(ctx, repo)
		if err != nil {
			return err
		}
		orderID, code = o.ID, o.OrderCode
		span.SetAttributes(attribute.String("order_code", o.OrderCode))

		events, err = fn(ctx, tx, repo, o)
		if err != nil {
			return err
		}
		result, err = repo.GetByID(ctx, o.ID)
		return err
	})
	if err != nil {
		log.WithContext(ctx).WithFields(log.Fields{
			"op":         op,
			"order_id":   orderID,
			"order_code": code,
			"kind":       monitor.Result(err),
			"error":      err.Error(),
		}).Warn("Order transition rejected")
		return nil, err
	}

	s.publisher.Publish(ctx, events...)
	log.WithContext(ctx).WithFields(log.Fields{
		"op":            op,
		"order_id":      result.ID,
		"order_code":    result.OrderCode,
		"status":        result.Status,
		"refund_status": result.RefundStatus,
		"label":         result.StatusLabel(),
	}).Info("Order transition applied")
	return result, nil
}

func (s *orderService) Get(ctx context.Context, orderCode string) (*OrderView, error) {
	o, err := s.orders.GetByCode(ctx, orderCode)
	if err != nil {
		return nil, err
	}
	return &OrderView{Order: o, Label: o.StatusLabel()}, nil
}

func (s *orderService) GetByID(ctx context.Context, id uint64) (*OrderView, error) {
	o, err := s.orders.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	return &OrderView{Order: o, Label: o.StatusLabel()}, nil
}

func (s *orderService) Logs(ctx context.Context, orderCode string) ([]model.OrderStatusLog, error) {
	o, err := s.orders.GetByCode(ctx, orderCode)
	if err != nil {
		return nil, err
	}
	return s.orders.ListLogs(ctx, o.ID)
}

// checkTeamReady gates fulfillment of team orders on the team having completed
func (s *orderService) checkTeamReady(ctx context.Context, tx *gorm.DB, o *model.Order) error {
	if !o.IsTeamOrder() {
		return nil
	}
	if o.TeamID == 0 {
		return utils.NewErrorf(utils.CodeActivityNotReady, "order %s has not joined a team", o.OrderCode)
	}
	leader, campaign, err := s.teams.LeaderTx(ctx, tx, o.TeamID)
	if err != nil {
		return err
	}
	switch leader.Status {
	case model.TeamStatusCompleted:
		return nil
	case model.TeamStatusOpen:
		if campaign.AllowSolo {
			return nil
		}
		return utils.NewErrorf(utils.CodeActivityNotReady, "team %d has not completed", o.TeamID)
	default:
		if campaign.AllowSolo {
			return nil
		}
		return utils.NewErrorf(utils.CodeInvalidState, "team %d failed", o.TeamID)
	}
}

// verificationCode 12-digit pickup code
func verificationCode() string {
	u := uuid.New()
	return fmt.Sprintf("%012d", binary.BigEndian.Uint64(u[:8])%1_000_000_000_000)
}
