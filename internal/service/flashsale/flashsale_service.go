package flashsale

import (
	"context"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"gorm.io/gorm"

	"mall/internal/cache"
	"mall/internal/config"
	"mall/internal/model"
	"mall/internal/monitor"
	"mall/internal/repository"
	"mall/internal/service/inventory"
	"mall/pkg/log"
	"mall/pkg/utils"
)

var tracer = otel.Tracer("mall/flashsale")

const slotsCacheKey = "flashsale:slots"

// SlotRequest hour-of-day window [StartHour, EndHour)
type SlotRequest struct {
	Name      string `json:"name" validate:"required,max=64"`
	StartHour int    `json:"start_hour" validate:"gte=0,lte=23"`
	EndHour   int    `json:"end_hour" validate:"lte=24,gtfield=StartHour"`
}

// CreateListingRequest listing definition; Quota is per catalog SKU key
type CreateListingRequest struct {
	SlotID    uint64         `json:"slot_id" validate:"required"`
	ProductID uint64         `json:"product_id" validate:"required"`
	Title     string         `json:"title" validate:"max=200"`
	Price     int64          `json:"price" validate:"gt=0"`
	Quota     map[string]int `json:"quota" validate:"required,min=1"`
	Online    bool           `json:"online"`
}

// Availability purchasability of a listing at a point in time
type Availability struct {
	ListingID   uint64 `json:"listing_id"`
	SlotID      uint64 `json:"slot_id"`
	SlotActive  bool   `json:"slot_active"`
	Quota       int    `json:"quota"`
	Purchasable bool   `json:"purchasable"`
}

// FlashSaleService flash-sale slot scheduler
type FlashSaleService interface {
	CreateSlot(ctx context.Context, req *SlotRequest) (*model.FlashSaleSlot, error)
	UpdateSlot(ctx context.Context, id uint64, req *SlotRequest) (*model.FlashSaleSlot, error)
	DeleteSlot(ctx context.Context, id uint64) error
	ListSlots(ctx context.Context) ([]model.FlashSaleSlot, error)
	// CurrentSlots slots whose window contains now's hour in the configured timezone
	CurrentSlots(ctx context.Context, now time.Time) ([]model.FlashSaleSlot, error)

	CreateListing(ctx context.Context, req *CreateListingRequest) (*model.FlashSaleListing, error)
	CheckAvailability(ctx context.Context, listingID uint64, now time.Time) (*Availability, error)

	// Reserve takes qty units of one SKU of the listing's own quota; fails with
	// SlotNotActive outside the slot and QuotaExceeded when the quota cannot cover qty
	Reserve(ctx context.Context, listingID uint64, skuKey string, qty int, now time.Time) error
	ReserveTx(ctx context.Context, tx *gorm.DB, listingID uint64, skuKey string, qty int, now time.Time) (*model.FlashSaleListing, error)
	// RecordSaleTx bumps the listing sales counter once the order is paid
	RecordSaleTx(ctx context.Context, tx *gorm.DB, listingID uint64, qty int) error
}

type flashSaleService struct {
	db        *gorm.DB
	repo      repository.FlashSaleRepository
	products  repository.ProductRepository
	inventory inventory.InventoryService
	cache     *cache.Store
	metrics   *monitor.MetricsCollector
	loc       *time.Location
}

// NewFlashSaleService creates the slot scheduler
func NewFlashSaleService(
	db *gorm.DB,
	repo repository.FlashSaleRepository,
	products repository.ProductRepository,
	inv inventory.InventoryService,
	store *cache.Store,
	metrics *monitor.MetricsCollector,
	cfg config.PromotionConfig,
) FlashSaleService {
	return &flashSaleService{
		db:        db,
		repo:      repo,
		products:  products,
		inventory: inv,
		cache:     store,
		metrics:   metrics,
		loc:       cfg.Location(),
	}
}

func (s *flashSaleService) CreateSlot(ctx context.Context, req *SlotRequest) (*model.FlashSaleSlot, error) {
	if err := utils.ValidateStruct(req); err != nil {
		return nil, err
	}
	slot := &model.FlashSaleSlot{Name: req.Name, StartHour: req.StartHour, EndHour: req.EndHour}
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		existing, err := repo.LockSlots(ctx)
		if err != nil {
			return err
		}
		if err := checkOverlap(slot, existing); err != nil {
			return err
		}
		return repo.CreateSlot(ctx, slot)
	})
	if err != nil {
		return nil, err
	}
	s.invalidate(ctx)

	log.WithFields(log.Fields{
		"slot_id":    slot.ID,
		"start_hour": slot.StartHour,
		"end_hour":   slot.EndHour,
	}).Info("Flash sale slot created")
	return slot, nil
}

func (s *flashSaleService) UpdateSlot(ctx context.Context, id uint64, req *SlotRequest) (*model.FlashSaleSlot, error) {
	if err := utils.ValidateStruct(req); err != nil {
		return nil, err
	}
	var slot *model.FlashSaleSlot
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		existing, err := repo.LockSlots(ctx)
		if err != nil {
			return err
		}
		others := existing[:0:0]
		for i := range existing {
			if existing[i].ID == id {
				slot = &existing[i]
				continue
			}
			others = append(others, existing[i])
		}
		if slot == nil {
			return utils.NewErrorf(utils.CodeNotFound, "flash sale slot %d not found", id)
		}
		slot.Name, slot.StartHour, slot.EndHour = req.Name, req.StartHour, req.EndHour
		if err := checkOverlap(slot, others); err != nil {
			return err
		}
		return repo.UpdateSlot(ctx, slot)
	})
	if err != nil {
		return nil, err
	}
	s.invalidate(ctx)

	log.WithFields(log.Fields{
		"slot_id":    id,
		"start_hour": slot.StartHour,
		"end_hour":   slot.EndHour,
	}).Info("Flash sale slot updated")
	return slot, nil
}

func (s *flashSaleService) DeleteSlot(ctx context.Context, id uint64) error {
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		if _, err := repo.GetSlot(ctx, id); err != nil {
			return err
		}
		n, err := repo.CountListings(ctx, id)
		if err != nil {
			return err
		}
		if n > 0 {
			return utils.NewErrorf(utils.CodeInvalidState, "slot %d still has %d listings", id, n)
		}
		return repo.DeleteSlot(ctx, id)
	})
	if err != nil {
		return err
	}
	s.invalidate(ctx)
	log.WithField("slot_id", id).Info("Flash sale slot deleted")
	return nil
}

func (s *flashSaleService) ListSlots(ctx context.Context) ([]model.FlashSaleSlot, error) {
	var slots []model.FlashSaleSlot
	err := s.cache.GetOrLoad(ctx, slotsCacheKey, &slots, func(ctx context.Context) (interface{}, error) {
		return s.repo.ListSlots(ctx)
	})
	return slots, err
}

func (s *flashSaleService) CurrentSlots(ctx context.Context, now time.Time) ([]model.FlashSaleSlot, error) {
	slots, err := s.ListSlots(ctx)
	if err != nil {
		return nil, err
	}
	hour := now.In(s.loc).Hour()
	current := make([]model.FlashSaleSlot, 0, 1)
	for _, slot := range slots {
		if slot.Contains(hour) {
			current = append(current, slot)
		}
	}
	return current, nil
}

func (s *flashSaleService) CreateListing(ctx context.Context, req *CreateListingRequest) (*model.FlashSaleListing, error) {
	if err := utils.ValidateStruct(req); err != nil {
		return nil, err
	}
	listing := &model.FlashSaleListing{
		SlotID:    req.SlotID,
		ProductID: req.ProductID,
		Title:     req.Title,
		Price:     req.Price,
		Status:    model.ListingOffline,
	}
	if req.Online {
		listing.Status = model.ListingOnline
	}
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		if _, err := s.products.WithTx(tx).GetByID(ctx, req.ProductID); err != nil {
			return err
		}
		if _, err := repo.GetSlot(ctx, req.SlotID); err != nil {
			return err
		}
		if err := repo.CreateListing(ctx, listing); err != nil {
			return err
		}
		if err := s.inventory.MirrorTx(ctx, tx, req.ProductID, model.OwnerFlashSale, listing.ID, req.Quota, req.Price); err != nil {
			return err
		}
		l, err := repo.GetListing(ctx, listing.ID)
		if err != nil {
			return err
		}
		listing = l
		return nil
	})
	if err != nil {
		return nil, err
	}

	log.WithFields(log.Fields{
		"listing_id": listing.ID,
		"slot_id":    listing.SlotID,
		"product_id": listing.ProductID,
		"quota":      listing.Quota,
	}).Info("Flash sale listing created")
	return listing, nil
}

func (s *flashSaleService) CheckAvailability(ctx context.Context, listingID uint64, now time.Time) (*Availability, error) {
	listing, err := s.repo.GetListing(ctx, listingID)
	if err != nil {
		return nil, err
	}
	current, err := s.CurrentSlots(ctx, now)
	if err != nil {
		return nil, err
	}
	a := &Availability{ListingID: listing.ID, SlotID: listing.SlotID, Quota: listing.Quota}
	for _, slot := range current {
		if slot.ID == listing.SlotID {
			a.SlotActive = true
		}
	}
	a.Purchasable = a.SlotActive && listing.Status == model.ListingOnline && listing.Quota > 0
	return a, nil
}

func (s *flashSaleService) Reserve(ctx context.Context, listingID uint64, skuKey string, qty int, now time.Time) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		_, err := s.ReserveTx(ctx, tx, listingID, skuKey, qty, now)
		return err
	})
}

func (s *flashSaleService) ReserveTx(ctx context.Context, tx *gorm.DB, listingID uint64, skuKey string, qty int, now time.Time) (listing *model.FlashSaleListing, err error) {
	ctx, span := tracer.Start(ctx, "flashsale.Reserve")
	span.SetAttributes(
		attribute.Int64("listing_id", int64(listingID)),
		attribute.String("sku_key", skuKey),
		attribute.Int("qty", qty),
	)
	defer func() {
		s.metrics.RecordFlashSale(err)
		monitor.EndSpan(span, err)
	}()

	repo := s.repo.WithTx(tx)
	listing, err = repo.LockListing(ctx, listingID)
	if err != nil {
		return nil, err
	}
	if listing.Status != model.ListingOnline {
		return nil, utils.NewErrorf(utils.CodeActivityNotReady, "listing %d is offline", listingID)
	}
	// read through the tx; the cached table is for read paths only
	slot, err := repo.GetSlot(ctx, listing.SlotID)
	if err != nil {
		return nil, err
	}
	if !slot.Contains(now.In(s.loc).Hour()) {
		return nil, utils.NewErrorf(utils.CodeSlotNotActive, "slot [%d,%d) is not active", slot.StartHour, slot.EndHour)
	}
	if listing.Quota < qty {
		return nil, utils.NewErrorf(utils.CodeQuotaExceeded, "listing %d has %d left", listingID, listing.Quota)
	}

	if err := s.inventory.ReserveTx(ctx, tx, model.OwnerFlashSale, listingID, skuKey, qty); err != nil {
		if utils.IsCode(err, utils.CodeInsufficientStock) {
			return nil, utils.WrapError(err, utils.CodeQuotaExceeded, "sku quota exhausted")
		}
		return nil, err
	}

	log.WithFields(log.Fields{
		"listing_id": listingID,
		"sku_key":    skuKey,
		"qty":        qty,
	}).Info("Flash sale quota reserved")
	return listing, nil
}

func (s *flashSaleService) RecordSaleTx(ctx context.Context, tx *gorm.DB, listingID uint64, qty int) error {
	return s.repo.WithTx(tx).AddSales(ctx, listingID, qty)
}

func (s *flashSaleService) invalidate(ctx context.Context) {
	if err := s.cache.Delete(ctx, slotsCacheKey); err != nil {
		log.WithFields(log.Fields{"key": slotsCacheKey, "error": err.Error()}).Warn("Slot cache invalidation failed")
	}
}

func checkOverlap(slot *model.FlashSaleSlot, existing []model.FlashSaleSlot) error {
	for i := range existing {
		if slot.Overlaps(&existing[i]) {
			return utils.NewErrorf(utils.CodeValidation, "slot [%d,%d) overlaps %q [%d,%d)",
				slot.StartHour, slot.EndHour, existing[i].Name, existing[i].StartHour, existing[i].EndHour)
		}
	}
	return nil
}
