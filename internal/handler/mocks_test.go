package handler

import (
	"context"
	"time"

	"github.com/stretchr/testify/mock"
	"gorm.io/gorm"

	"mall/internal/model"
	"mall/internal/service/bargain"
	"mall/internal/service/flashsale"
	"mall/internal/service/inventory"
	"mall/internal/service/order"
	"mall/internal/service/team"
)

func orderOrNil(args mock.Arguments) (*model.Order, error) {
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Order), args.Error(1)
}

// MockOrderService is a mock implementation of order.OrderService
type MockOrderService struct {
	mock.Mock
}

func (m *MockOrderService) Create(ctx context.Context, req *order.CreateOrderRequest) (*model.Order, error) {
	return orderOrNil(m.Called(ctx, req))
}

func (m *MockOrderService) Get(ctx context.Context, orderCode string) (*order.OrderView, error) {
	args := m.Called(ctx, orderCode)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*order.OrderView), args.Error(1)
}

func (m *MockOrderService) GetByID(ctx context.Context, id uint64) (*order.OrderView, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*order.OrderView), args.Error(1)
}

func (m *MockOrderService) Logs(ctx context.Context, orderCode string) ([]model.OrderStatusLog, error) {
	args := m.Called(ctx, orderCode)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]model.OrderStatusLog), args.Error(1)
}

func (m *MockOrderService) RecordPayment(ctx context.Context, req *order.PaymentRequest) (*model.Order, error) {
	return orderOrNil(m.Called(ctx, req))
}

func (m *MockOrderService) Ship(ctx context.Context, req *order.ShipRequest) (*model.Order, error) {
	return orderOrNil(m.Called(ctx, req))
}

func (m *MockOrderService) CorrectTracking(ctx context.Context, req *order.TrackingRequest) (*model.Order, error) {
	return orderOrNil(m.Called(ctx, req))
}

func (m *MockOrderService) WriteOff(ctx context.Context, verifyCode string) (*model.Order, error) {
	return orderOrNil(m.Called(ctx, verifyCode))
}

func (m *MockOrderService) ConfirmReceipt(ctx context.Context, orderCode string, userID uint64) (*model.Order, error) {
	return orderOrNil(m.Called(ctx, orderCode, userID))
}

func (m *MockOrderService) Complete(ctx context.Context, orderCode string) (*model.Order, error) {
	return orderOrNil(m.Called(ctx, orderCode))
}

func (m *MockOrderService) ChangePrice(ctx context.Context, req *order.ChangePriceRequest) (*model.Order, error) {
	return orderOrNil(m.Called(ctx, req))
}

func (m *MockOrderService) RequestRefund(ctx context.Context, req *order.RefundRequest) (*model.Order, error) {
	return orderOrNil(m.Called(ctx, req))
}

func (m *MockOrderService) ApproveRefund(ctx context.Context, req *order.ApproveRefundRequest) (*model.Order, error) {
	return orderOrNil(m.Called(ctx, req))
}

func (m *MockOrderService) RejectRefund(ctx context.Context, req *order.RejectRefundRequest) (*model.Order, error) {
	return orderOrNil(m.Called(ctx, req))
}

func (m *MockOrderService) FlagTeamRefunds(ctx context.Context, teamID uint64) (int, error) {
	args := m.Called(ctx, teamID)
	return args.Int(0), args.Error(1)
}

func (m *MockOrderService) SoftDelete(ctx context.Context, orderCode string, userID uint64) (*model.Order, error) {
	return orderOrNil(m.Called(ctx, orderCode, userID))
}

func (m *MockOrderService) SystemDelete(ctx context.Context, orderCode string) (*model.Order, error) {
	return orderOrNil(m.Called(ctx, orderCode))
}

// MockTeamService is a mock implementation of team.TeamService
type MockTeamService struct {
	mock.Mock
}

func (m *MockTeamService) CreateCampaign(ctx context.Context, req *team.CreateCampaignRequest) (*model.TeamCampaign, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.TeamCampaign), args.Error(1)
}

func (m *MockTeamService) Join(ctx context.Context, req *team.JoinRequest) (*team.JoinResult, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*team.JoinResult), args.Error(1)
}

func (m *MockTeamService) JoinTx(ctx context.Context, tx *gorm.DB, req *team.JoinRequest) (*team.JoinResult, []model.Event, error) {
	args := m.Called(ctx, tx, req)
	return nil, nil, args.Error(2)
}

func (m *MockTeamService) ExpireSweep(ctx context.Context) ([]uint64, error) {
	args := m.Called(ctx)
	return nil, args.Error(1)
}

func (m *MockTeamService) IsTeamReady(ctx context.Context, teamID uint64) (int8, error) {
	args := m.Called(ctx, teamID)
	return args.Get(0).(int8), args.Error(1)
}

func (m *MockTeamService) CampaignTx(ctx context.Context, tx *gorm.DB, campaignID uint64) (*model.TeamCampaign, error) {
	args := m.Called(ctx, tx, campaignID)
	return nil, args.Error(1)
}

func (m *MockTeamService) LeaderTx(ctx context.Context, tx *gorm.DB, teamID uint64) (*model.TeamMember, *model.TeamCampaign, error) {
	args := m.Called(ctx, tx, teamID)
	return nil, nil, args.Error(2)
}

func (m *MockTeamService) Cancel(ctx context.Context, teamID, userID uint64) error {
	return m.Called(ctx, teamID, userID).Error(0)
}

func (m *MockTeamService) Members(ctx context.Context, teamID uint64) (*team.TeamView, error) {
	args := m.Called(ctx, teamID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*team.TeamView), args.Error(1)
}

func (m *MockTeamService) IsMemberTx(ctx context.Context, tx *gorm.DB, teamID, userID uint64) (bool, error) {
	args := m.Called(ctx, tx, teamID, userID)
	return args.Bool(0), args.Error(1)
}

func (m *MockTeamService) FailForRefundTx(ctx context.Context, tx *gorm.DB, orderID uint64) (bool, []model.Event, error) {
	args := m.Called(ctx, tx, orderID)
	return args.Bool(0), nil, args.Error(2)
}

func (m *MockTeamService) RestoreTx(ctx context.Context, tx *gorm.DB, orderID uint64) (bool, error) {
	args := m.Called(ctx, tx, orderID)
	return args.Bool(0), args.Error(1)
}

// MockBargainService is a mock implementation of bargain.BargainService
type MockBargainService struct {
	mock.Mock
}

func (m *MockBargainService) CreateCampaign(ctx context.Context, req *bargain.CreateCampaignRequest) (*model.BargainCampaign, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.BargainCampaign), args.Error(1)
}

func (m *MockBargainService) StartSession(ctx context.Context, campaignID, userID uint64) (*model.BargainSession, error) {
	args := m.Called(ctx, campaignID, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.BargainSession), args.Error(1)
}

func (m *MockBargainService) ApplyCut(ctx context.Context, sessionID, helperID uint64) (*bargain.CutResult, error) {
	args := m.Called(ctx, sessionID, helperID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*bargain.CutResult), args.Error(1)
}

func (m *MockBargainService) ExpireSweep(ctx context.Context) (int64, error) {
	args := m.Called(ctx)
	return args.Get(0).(int64), args.Error(1)
}

func (m *MockBargainService) GetSession(ctx context.Context, sessionID uint64) (*bargain.SessionView, error) {
	args := m.Called(ctx, sessionID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*bargain.SessionView), args.Error(1)
}

func (m *MockBargainService) CheckoutTx(ctx context.Context, tx *gorm.DB, sessionID, userID uint64) (*model.BargainSession, *model.BargainCampaign, error) {
	args := m.Called(ctx, tx, sessionID, userID)
	return nil, nil, args.Error(2)
}

func (m *MockBargainService) ClaimTx(ctx context.Context, tx *gorm.DB, sessionID, userID, orderID uint64) error {
	return m.Called(ctx, tx, sessionID, userID, orderID).Error(0)
}

// MockFlashSaleService is a mock implementation of flashsale.FlashSaleService
type MockFlashSaleService struct {
	mock.Mock
}

func (m *MockFlashSaleService) CreateSlot(ctx context.Context, req *flashsale.SlotRequest) (*model.FlashSaleSlot, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.FlashSaleSlot), args.Error(1)
}

func (m *MockFlashSaleService) UpdateSlot(ctx context.Context, id uint64, req *flashsale.SlotRequest) (*model.FlashSaleSlot, error) {
	args := m.Called(ctx, id, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.FlashSaleSlot), args.Error(1)
}

func (m *MockFlashSaleService) DeleteSlot(ctx context.Context, id uint64) error {
	return m.Called(ctx, id).Error(0)
}

func (m *MockFlashSaleService) ListSlots(ctx context.Context) ([]model.FlashSaleSlot, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]model.FlashSaleSlot), args.Error(1)
}

func (m *MockFlashSaleService) CurrentSlots(ctx context.Context, now time.Time) ([]model.FlashSaleSlot, error) {
	args := m.Called(ctx, now)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]model.FlashSaleSlot), args.Error(1)
}

func (m *MockFlashSaleService) CreateListing(ctx context.Context, req *flashsale.CreateListingRequest) (*model.FlashSaleListing, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.FlashSaleListing), args.Error(1)
}

func (m *MockFlashSaleService) CheckAvailability(ctx context.Context, listingID uint64, now time.Time) (*flashsale.Availability, error) {
	args := m.Called(ctx, listingID, now)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*flashsale.Availability), args.Error(1)
}

func (m *MockFlashSaleService) Reserve(ctx context.Context, listingID uint64, skuKey string, qty int, now time.Time) error {
	return m.Called(ctx, listingID, skuKey, qty, now).Error(0)
}

func (m *MockFlashSaleService) ReserveTx(ctx context.Context, tx *gorm.DB, listingID uint64, skuKey string, qty int, now time.Time) (*model.FlashSaleListing, error) {
	args := m.Called(ctx, tx, listingID, skuKey, qty, now)
	return nil, args.Error(1)
}

func (m *MockFlashSaleService) RecordSaleTx(ctx context.Context, tx *gorm.DB, listingID uint64, qty int) error {
	return m.Called(ctx, tx, listingID, qty).Error(0)
}

// MockInventoryService is a mock implementation of inventory.InventoryService
type MockInventoryService struct {
	mock.Mock
}

func (m *MockInventoryService) Reserve(ctx context.Context, ownerType string, ownerID uint64, skuKey string, qty int) error {
	return m.Called(ctx, ownerType, ownerID, skuKey, qty).Error(0)
}

func (m *MockInventoryService) ReserveTx(ctx context.Context, tx *gorm.DB, ownerType string, ownerID uint64, skuKey string, qty int) error {
	return m.Called(ctx, tx, ownerType, ownerID, skuKey, qty).Error(0)
}

func (m *MockInventoryService) Restock(ctx context.Context, ownerType string, ownerID uint64, skuKey string, qty int) error {
	return m.Called(ctx, ownerType, ownerID, skuKey, qty).Error(0)
}

func (m *MockInventoryService) ReplaceSkus(ctx context.Context, ownerType string, ownerID uint64, specs []inventory.SkuSpec) error {
	return m.Called(ctx, ownerType, ownerID, specs).Error(0)
}

func (m *MockInventoryService) ReplaceSkusTx(ctx context.Context, tx *gorm.DB, ownerType string, ownerID uint64, specs []inventory.SkuSpec) error {
	return m.Called(ctx, tx, ownerType, ownerID, specs).Error(0)
}

func (m *MockInventoryService) MirrorTx(ctx context.Context, tx *gorm.DB, productID uint64, ownerType string, ownerID uint64, quota map[string]int, price int64) error {
	return m.Called(ctx, tx, productID, ownerType, ownerID, quota, price).Error(0)
}

func (m *MockInventoryService) GetStock(ctx context.Context, ownerType string, ownerID uint64, skuKey string) (*model.InventorySku, error) {
	args := m.Called(ctx, ownerType, ownerID, skuKey)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.InventorySku), args.Error(1)
}

func (m *MockInventoryService) SkuTx(ctx context.Context, tx *gorm.DB, ownerType string, ownerID uint64, skuKey string) (*model.InventorySku, error) {
	args := m.Called(ctx, tx, ownerType, ownerID, skuKey)
	return nil, args.Error(1)
}
