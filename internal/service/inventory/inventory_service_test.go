package inventory

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"mall/internal/database"
	"mall/internal/model"
	"mall/internal/repository"
	"mall/pkg/utils"
)

func setup(t *testing.T) (*gorm.DB, InventoryService, *model.Product) {
	t.Helper()
	db, err := database.NewMemory()
	require.NoError(t, err)
	t.Cleanup(func() { _ = database.Close(db) })

	svc := NewInventoryService(db, repository.NewInventoryRepository(db), nil)

	product := &model.Product{Name: "tee", Price: 9900, Status: 1}
	require.NoError(t, db.Create(product).Error)
	require.NoError(t, svc.ReplaceSkus(context.Background(), model.OwnerProduct, product.ID, []SkuSpec{
		{SkuKey: "red,M", Stock: 5, Price: 9900, Attrs: map[string]string{"color": "red", "size": "M"}},
		{SkuKey: "red,L", Stock: 3, Price: 9900},
	}))
	return db, svc, product
}

func productStock(t *testing.T, db *gorm.DB, id uint64) int {
	t.Helper()
	var p model.Product
	require.NoError(t, db.First(&p, id).Error)
	return p.Stock
}

func TestReplaceSkus_RecomputesParent(t *testing.T) {
	db, svc, product := setup(t)
	assert.Equal(t, 8, productStock(t, db, product.ID))

	err := svc.ReplaceSkus(context.Background(), model.OwnerProduct, product.ID, []SkuSpec{
		{SkuKey: "red,M", Stock: 2, Price: 9900},
		{SkuKey: "blue,M", Stock: 10, Price: 10900},
	})
	require.NoError(t, err)

	var rows []model.InventorySku
	require.NoError(t, db.Where("owner_type = ? AND owner_id = ?", model.OwnerProduct, product.ID).Order("sku_key").Find(&rows).Error)
	require.Len(t, rows, 2)
	assert.Equal(t, "blue,M", rows[0].SkuKey)
	assert.Equal(t, "red,M", rows[1].SkuKey)
	assert.Equal(t, 2, rows[1].Stock)
	assert.Equal(t, 12, productStock(t, db, product.ID))
}

func TestReplaceSkus_Rejects(t *testing.T) {
	_, svc, product := setup(t)
	ctx := context.Background()

	err := svc.ReplaceSkus(ctx, model.OwnerProduct, product.ID, []SkuSpec{
		{SkuKey: "a", Stock: 1}, {SkuKey: "a", Stock: 2},
	})
	assert.True(t, utils.IsCode(err, utils.CodeValidation))

	err = svc.ReplaceSkus(ctx, model.OwnerProduct, product.ID, []SkuSpec{{SkuKey: "a", Stock: -1}})
	assert.True(t, utils.IsCode(err, utils.CodeValidation))

	err = svc.ReplaceSkus(ctx, model.OwnerProduct, 999, []SkuSpec{{SkuKey: "a", Stock: 1}})
	assert.True(t, utils.IsCode(err, utils.CodeNotFound))
}

func TestReserve(t *testing.T) {
	db, svc, product := setup(t)
	ctx := context.Background()

	require.NoError(t, svc.Reserve(ctx, model.OwnerProduct, product.ID, "red,L", 3))
	assert.Equal(t, 5, productStock(t, db, product.ID))

	sku, err := svc.GetStock(ctx, model.OwnerProduct, product.ID, "red,L")
	require.NoError(t, err)
	assert.Equal(t, 0, sku.Stock)
	assert.Equal(t, 3, sku.Sales)

	err = svc.Reserve(ctx, model.OwnerProduct, product.ID, "red,M", 6)
	assert.True(t, utils.IsCode(err, utils.CodeInsufficientStock))
	sku, err = svc.GetStock(ctx, model.OwnerProduct, product.ID, "red,M")
	require.NoError(t, err)
	assert.Equal(t, 5, sku.Stock, "failed reserve must leave stock unchanged")

	err = svc.Reserve(ctx, model.OwnerProduct, product.ID, "green,S", 1)
	assert.True(t, utils.IsCode(err, utils.CodeNotFound))

	err = svc.Reserve(ctx, model.OwnerProduct, product.ID, "red,M", 0)
	assert.True(t, utils.IsCode(err, utils.CodeValidation))
}

func TestReserve_ConcurrentNeverNegative(t *testing.T) {
	db, svc, product := setup(t)
	ctx := context.Background()

	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		ok, fail int
	)
	for i := 0; i < 12; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			err := svc.Reserve(ctx, model.OwnerProduct, product.ID, "red,M", 1)
			mu.Lock()
			defer mu.Unlock()
			if err == nil {
				ok++
			} else if utils.IsCode(err, utils.CodeInsufficientStock) {
				fail++
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 5, ok)
	assert.Equal(t, 7, fail)
	sku, err := svc.GetStock(ctx, model.OwnerProduct, product.ID, "red,M")
	require.NoError(t, err)
	assert.Equal(t, 0, sku.Stock)
	assert.Equal(t, 3, productStock(t, db, product.ID))
}

func TestRestock(t *testing.T) {
	db, svc, product := setup(t)
	ctx := context.Background()

	require.NoError(t, svc.Restock(ctx, model.OwnerProduct, product.ID, "red,L", 7))
	assert.Equal(t, 15, productStock(t, db, product.ID))

	err := svc.Restock(ctx, model.OwnerProduct, product.ID, "nope", 1)
	assert.True(t, utils.IsCode(err, utils.CodeNotFound))
	err = svc.Restock(ctx, model.OwnerProduct, product.ID, "red,L", -1)
	assert.True(t, utils.IsCode(err, utils.CodeValidation))
}

func TestMirrorTx(t *testing.T) {
	db, svc, product := setup(t)
	ctx := context.Background()

	listing := &model.FlashSaleListing{SlotID: 1, ProductID: product.ID, Price: 4900}
	require.NoError(t, db.Create(listing).Error)

	err := db.Transaction(func(tx *gorm.DB) error {
		return svc.MirrorTx(ctx, tx, product.ID, model.OwnerFlashSale, listing.ID, map[string]int{"red,M": 4}, listing.Price)
	})
	require.NoError(t, err)

	var got model.FlashSaleListing
	require.NoError(t, db.First(&got, listing.ID).Error)
	assert.Equal(t, 4, got.Quota)

	sku, err := svc.GetStock(ctx, model.OwnerFlashSale, listing.ID, "red,L")
	require.NoError(t, err)
	assert.Equal(t, 0, sku.Stock)
	assert.Equal(t, int64(4900), sku.Price)

	// catalog stock is untouched by activity quota
	assert.Equal(t, 8, productStock(t, db, product.ID))

	err = db.Transaction(func(tx *gorm.DB) error {
		return svc.MirrorTx(ctx, tx, product.ID, model.OwnerFlashSale, listing.ID, map[string]int{"xl": 1}, 0)
	})
	assert.True(t, utils.IsCode(err, utils.CodeValidation))
}
