package inventory

import (
	"context"
	"encoding/json"
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"gorm.io/gorm"

	"mall/internal/model"
	"mall/internal/monitor"
	"mall/internal/repository"
	"mall/pkg/log"
	"mall/pkg/utils"
)

var tracer = otel.Tracer("mall/inventory")

// SkuSpec desired state of one SKU row in a replace-set
type SkuSpec struct {
	SkuKey string            `json:"sku_key" validate:"required,max=128"`
	Stock  int               `json:"stock" validate:"gte=0"`
	Price  int64             `json:"price" validate:"gte=0"`
	Attrs  map[string]string `json:"attrs,omitempty"`
}

// InventoryService per-SKU stock ledger shared by the catalog and every activity
type InventoryService interface {
	// Reserve atomically decrements stock; fails with InsufficientStock when qty > stock
	Reserve(ctx context.Context, ownerType string, ownerID uint64, skuKey string, qty int) error
	ReserveTx(ctx context.Context, tx *gorm.DB, ownerType string, ownerID uint64, skuKey string, qty int) error

	// Restock atomically adds qty
	Restock(ctx context.Context, ownerType string, ownerID uint64, skuKey string, qty int) error

	// ReplaceSkus diffs the desired SKU set against stored rows and applies it in one tx
	ReplaceSkus(ctx context.Context, ownerType string, ownerID uint64, specs []SkuSpec) error
	ReplaceSkusTx(ctx context.Context, tx *gorm.DB, ownerType string, ownerID uint64, specs []SkuSpec) error

	// MirrorTx copies a product's catalog SKUs into an activity owner. Stock per key
	// comes from quota (0 when absent); price is used for every row when > 0.
	MirrorTx(ctx context.Context, tx *gorm.DB, productID uint64, ownerType string, ownerID uint64, quota map[string]int, price int64) error

	GetStock(ctx context.Context, ownerType string, ownerID uint64, skuKey string) (*model.InventorySku, error)
	SkuTx(ctx context.Context, tx *gorm.DB, ownerType string, ownerID uint64, skuKey string) (*model.InventorySku, error)
}

type inventoryService struct {
	db      *gorm.DB
	repo    repository.InventoryRepository
	metrics *monitor.MetricsCollector
}

// NewInventoryService creates the inventory ledger
func NewInventoryService(db *gorm.DB, repo repository.InventoryRepository, metrics *monitor.MetricsCollector) InventoryService {
	return &inventoryService{db: db, repo: repo, metrics: metrics}
}

func (s *inventoryService) Reserve(ctx context.Context, ownerType string, ownerID uint64, skuKey string, qty int) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return s.ReserveTx(ctx, tx, ownerType, ownerID, skuKey, qty)
	})
}

func (s *inventoryService) ReserveTx(ctx context.Context, tx *gorm.DB, ownerType string, ownerID uint64, skuKey string, qty int) (err error) {
	ctx, span := tracer.Start(ctx, "inventory.Reserve")
	span.SetAttributes(
		attribute.String("owner_type", ownerType),
		attribute.Int64("owner_id", int64(ownerID)),
		attribute.String("sku_key", skuKey),
		attribute.Int("qty", qty),
	)
	defer func() {
		s.metrics.RecordInventory(ownerType, "reserve", err)
		monitor.EndSpan(span, err)
	}()

	if qty <= 0 {
		return utils.NewError(utils.CodeValidation, "quantity must be positive")
	}

	repo := s.repo.WithTx(tx)
	applied, err := repo.Decrement(ctx, ownerType, ownerID, skuKey, qty)
	if err != nil {
		return fmt.Errorf("decrement stock: %w", err)
	}
	if !applied {
		sku, err := repo.Get(ctx, ownerType, ownerID, skuKey)
		if err != nil {
			return err
		}
		log.WithFields(log.Fields{
			"owner_type": ownerType,
			"owner_id":   ownerID,
			"sku_key":    skuKey,
			"qty":        qty,
			"stock":      sku.Stock,
		}).Warn("Insufficient stock")
		return utils.NewErrorf(utils.CodeInsufficientStock, "insufficient stock for %s: want %d, have %d", skuKey, qty, sku.Stock)
	}
	if err := repo.RecomputeParent(ctx, ownerType, ownerID); err != nil {
		return fmt.Errorf("recompute %s %d: %w", ownerType, ownerID, err)
	}
	return nil
}

func (s *inventoryService) Restock(ctx context.Context, ownerType string, ownerID uint64, skuKey string, qty int) (err error) {
	ctx, span := tracer.Start(ctx, "inventory.Restock")
	defer func() {
		s.metrics.RecordInventory(ownerType, "restock", err)
		monitor.EndSpan(span, err)
	}()

	if qty <= 0 {
		return utils.NewError(utils.CodeValidation, "quantity must be positive")
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		applied, err := repo.Increment(ctx, ownerType, ownerID, skuKey, qty)
		if err != nil {
			return fmt.Errorf("increment stock: %w", err)
		}
		if !applied {
			return utils.NewErrorf(utils.CodeNotFound, "sku %s not found", skuKey)
		}
		return repo.RecomputeParent(ctx, ownerType, ownerID)
	})
	if err != nil {
		return err
	}

	log.WithFields(log.Fields{
		"owner_type": ownerType,
		"owner_id":   ownerID,
		"sku_key":    skuKey,
		"qty":        qty,
	}).Info("Stock replenished")
	return nil
}

func (s *inventoryService) ReplaceSkus(ctx context.Context, ownerType string, ownerID uint64, specs []SkuSpec) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return s.ReplaceSkusTx(ctx, tx, ownerType, ownerID, specs)
	})
}

func (s *inventoryService) ReplaceSkusTx(ctx context.Context, tx *gorm.DB, ownerType string, ownerID uint64, specs []SkuSpec) (err error) {
	ctx, span := tracer.Start(ctx, "inventory.ReplaceSkus")
	defer func() {
		s.metrics.RecordInventory(ownerType, "replace", err)
		monitor.EndSpan(span, err)
	}()

	desired := make(map[string]SkuSpec, len(specs))
	for _, spec := range specs {
		if err := utils.ValidateStruct(spec); err != nil {
			return err
		}
		if _, dup := desired[spec.SkuKey]; dup {
			return utils.NewErrorf(utils.CodeValidation, "duplicate sku %s", spec.SkuKey)
		}
		desired[spec.SkuKey] = spec
	}

	repo := s.repo.WithTx(tx)
	exists, err := repo.ParentExists(ctx, ownerType, ownerID)
	if err != nil {
		return err
	}
	if !exists {
		return utils.NewErrorf(utils.CodeNotFound, "%s %d not found", ownerType, ownerID)
	}

	current, err := repo.ListByOwner(ctx, ownerType, ownerID)
	if err != nil {
		return err
	}

	var removed []uint64
	for _, row := range current {
		spec, keep := desired[row.SkuKey]
		if !keep {
			removed = append(removed, row.ID)
			continue
		}
		delete(desired, row.SkuKey)

		attrs := encodeAttrs(spec.Attrs)
		if row.Stock == spec.Stock && row.Price == spec.Price && string(row.Attrs) == string(attrs) {
			continue
		}
		if err := repo.UpdateSku(ctx, row.ID, map[string]interface{}{
			"stock": spec.Stock,
			"price": spec.Price,
			"attrs": attrs,
		}); err != nil {
			return err
		}
	}

	added := make([]model.InventorySku, 0, len(desired))
	for _, spec := range specs {
		if _, ok := desired[spec.SkuKey]; !ok {
			continue
		}
		added = append(added, model.InventorySku{
			OwnerType: ownerType,
			OwnerID:   ownerID,
			SkuKey:    spec.SkuKey,
			Stock:     spec.Stock,
			Price:     spec.Price,
			Attrs:     encodeAttrs(spec.Attrs),
		})
	}

	if err := repo.DeleteByIDs(ctx, removed); err != nil {
		return err
	}
	if err := repo.CreateBatch(ctx, added); err != nil {
		return err
	}
	if err := repo.RecomputeParent(ctx, ownerType, ownerID); err != nil {
		return err
	}

	log.WithFields(log.Fields{
		"owner_type": ownerType,
		"owner_id":   ownerID,
		"added":      len(added),
		"removed":    len(removed),
	}).Info("SKU set replaced")
	return nil
}

func (s *inventoryService) MirrorTx(ctx context.Context, tx *gorm.DB, productID uint64, ownerType string, ownerID uint64, quota map[string]int, price int64) error {
	catalog, err := s.repo.WithTx(tx).ListByOwner(ctx, model.OwnerProduct, productID)
	if err != nil {
		return err
	}
	if len(catalog) == 0 {
		return utils.NewErrorf(utils.CodeValidation, "product %d has no sku", productID)
	}

	known := make(map[string]bool, len(catalog))
	specs := make([]SkuSpec, 0, len(catalog))
	for _, row := range catalog {
		known[row.SkuKey] = true
		spec := SkuSpec{
			SkuKey: row.SkuKey,
			Stock:  quota[row.SkuKey],
			Price:  row.Price,
			Attrs:  decodeAttrs(row.Attrs),
		}
		if price > 0 {
			spec.Price = price
		}
		specs = append(specs, spec)
	}
	for key := range quota {
		if !known[key] {
			return utils.NewErrorf(utils.CodeValidation, "sku %s is not in product %d", key, productID)
		}
	}
	return s.ReplaceSkusTx(ctx, tx, ownerType, ownerID, specs)
}

func (s *inventoryService) GetStock(ctx context.Context, ownerType string, ownerID uint64, skuKey string) (*model.InventorySku, error) {
	return s.repo.Get(ctx, ownerType, ownerID, skuKey)
}

func (s *inventoryService) SkuTx(ctx context.Context, tx *gorm.DB, ownerType string, ownerID uint64, skuKey string) (*model.InventorySku, error) {
	return s.repo.WithTx(tx).Get(ctx, ownerType, ownerID, skuKey)
}

func encodeAttrs(attrs map[string]string) []byte {
	if len(attrs) == 0 {
		return nil
	}
	raw, _ := json.Marshal(attrs)
	return raw
}

func decodeAttrs(raw []byte) map[string]string {
	if len(raw) == 0 {
		return nil
	}
	var attrs map[string]string
	_ = json.Unmarshal(raw, &attrs)
	return attrs
}
