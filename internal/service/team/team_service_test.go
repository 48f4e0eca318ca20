package team

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"mall/internal/config"
	"mall/internal/database"
	"mall/internal/event"
	"mall/internal/model"
	"mall/internal/repository"
	"mall/internal/service/inventory"
	"mall/pkg/utils"
)

type fixture struct {
	db       *gorm.DB
	svc      *teamService
	events   *event.Recorder
	campaign *model.TeamCampaign
	clock    time.Time
}

func newFixture(t *testing.T, people int) *fixture {
	t.Helper()
	db, err := database.NewMemory()
	require.NoError(t, err)
	t.Cleanup(func() { _ = database.Close(db) })

	inv := inventory.NewInventoryService(db, repository.NewInventoryRepository(db), nil)
	rec := &event.Recorder{}
	svc := NewTeamService(db, repository.NewTeamRepository(db), repository.NewProductRepository(db),
		inv, rec, nil, config.PromotionConfig{TeamWindow: 24 * time.Hour}).(*teamService)

	f := &fixture{db: db, svc: svc, events: rec, clock: time.Now()}
	svc.now = func() time.Time { return f.clock }

	product := &model.Product{Name: "rice cooker", Price: 29900, Status: 1}
	require.NoError(t, db.Create(product).Error)
	require.NoError(t, inv.ReplaceSkus(context.Background(), model.OwnerProduct, product.ID, []inventory.SkuSpec{
		{SkuKey: "default", Stock: 100, Price: 29900},
	}))

	f.campaign, err = svc.CreateCampaign(context.Background(), &CreateCampaignRequest{
		ProductID: product.ID,
		Title:     "rice cooker x3",
		People:    people,
		Price:     19900,
		StartAt:   f.clock.Add(-time.Hour),
		StopAt:    f.clock.Add(48 * time.Hour),
		Quota:     map[string]int{"default": 30},
	})
	require.NoError(t, err)
	return f
}

func (f *fixture) open(t *testing.T, userID uint64) uint64 {
	t.Helper()
	res, err := f.svc.Join(context.Background(), &JoinRequest{CampaignID: f.campaign.ID, UserID: userID, OrderID: userID * 10})
	require.NoError(t, err)
	return res.TeamID
}

func TestCreateCampaign(t *testing.T) {
	f := newFixture(t, 3)
	assert.Equal(t, 24, f.campaign.EffectiveHours)
	assert.Equal(t, 30, f.campaign.Stock)

	ctx := context.Background()
	_, err := f.svc.CreateCampaign(ctx, &CreateCampaignRequest{
		ProductID: f.campaign.ProductID, People: 1, Price: 1,
		StartAt: f.clock, StopAt: f.clock.Add(time.Hour), Quota: map[string]int{"default": 1},
	})
	assert.True(t, utils.IsCode(err, utils.CodeValidation))

	_, err = f.svc.CreateCampaign(ctx, &CreateCampaignRequest{
		ProductID: 404, People: 2, Price: 1,
		StartAt: f.clock, StopAt: f.clock.Add(time.Hour), Quota: map[string]int{"default": 1},
	})
	assert.True(t, utils.IsCode(err, utils.CodeNotFound))
}

func TestJoin_CompletesAtTargetAndRejectsFourth(t *testing.T) {
	f := newFixture(t, 3)
	ctx := context.Background()
	teamID := f.open(t, 1)

	res, err := f.svc.Join(ctx, &JoinRequest{CampaignID: f.campaign.ID, TeamID: teamID, UserID: 2})
	require.NoError(t, err)
	assert.Equal(t, 2, res.Members)
	assert.False(t, res.Completed)

	res, err = f.svc.Join(ctx, &JoinRequest{CampaignID: f.campaign.ID, TeamID: teamID, UserID: 3})
	require.NoError(t, err)
	assert.Equal(t, 3, res.Members)
	assert.True(t, res.Completed)
	assert.Equal(t, []string{model.EventTeamCompleted}, f.events.Types())

	_, err = f.svc.Join(ctx, &JoinRequest{CampaignID: f.campaign.ID, TeamID: teamID, UserID: 4})
	assert.True(t, utils.IsCode(err, utils.CodeTeamFull))

	status, err := f.svc.IsTeamReady(ctx, teamID)
	require.NoError(t, err)
	assert.Equal(t, model.TeamStatusCompleted, status)

	view, err := f.svc.Members(ctx, teamID)
	require.NoError(t, err)
	assert.Equal(t, 3, view.Members)
	assert.Len(t, view.Rows, 3)
	for _, row := range view.Rows {
		assert.Equal(t, model.TeamStatusCompleted, row.Status)
	}
}

func TestJoin_DuplicateUser(t *testing.T) {
	f := newFixture(t, 3)
	teamID := f.open(t, 1)

	_, err := f.svc.Join(context.Background(), &JoinRequest{CampaignID: f.campaign.ID, TeamID: teamID, UserID: 1})
	assert.True(t, utils.IsCode(err, utils.CodeInvalidState))
}

func TestJoin_ConcurrentLastSlot(t *testing.T) {
	f := newFixture(t, 3)
	ctx := context.Background()
	teamID := f.open(t, 1)
	_, err := f.svc.Join(ctx, &JoinRequest{CampaignID: f.campaign.ID, TeamID: teamID, UserID: 2})
	require.NoError(t, err)

	errs := make([]error, 2)
	var wg sync.WaitGroup
	for i := range errs {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = f.svc.Join(ctx, &JoinRequest{CampaignID: f.campaign.ID, TeamID: teamID, UserID: uint64(10 + i)})
		}(i)
	}
	wg.Wait()

	succeeded := 0
	for _, err := range errs {
		if err == nil {
			succeeded++
			continue
		}
		assert.True(t, utils.IsCode(err, utils.CodeTeamFull), "unexpected error %v", err)
	}
	assert.Equal(t, 1, succeeded)

	var count int64
	require.NoError(t, f.db.Model(&model.TeamMember{}).Where("team_id = ?", teamID).Count(&count).Error)
	assert.Equal(t, int64(3), count)
}

func TestExpireSweep(t *testing.T) {
	f := newFixture(t, 3)
	ctx := context.Background()
	teamID := f.open(t, 1)

	status, err := f.svc.IsTeamReady(ctx, teamID)
	require.NoError(t, err)
	assert.Equal(t, model.TeamStatusOpen, status)

	failed, err := f.svc.ExpireSweep(ctx)
	require.NoError(t, err)
	assert.Empty(t, failed)

	f.clock = f.clock.Add(25 * time.Hour)

	// lazily failed before the sweep has run
	status, err = f.svc.IsTeamReady(ctx, teamID)
	require.NoError(t, err)
	assert.Equal(t, model.TeamStatusFailed, status)

	failed, err = f.svc.ExpireSweep(ctx)
	require.NoError(t, err)
	assert.Equal(t, []uint64{teamID}, failed)
	assert.Contains(t, f.events.Types(), model.EventTeamFailed)

	failed, err = f.svc.ExpireSweep(ctx)
	require.NoError(t, err)
	assert.Empty(t, failed)

	_, err = f.svc.Join(ctx, &JoinRequest{CampaignID: f.campaign.ID, TeamID: teamID, UserID: 2})
	assert.True(t, utils.IsCode(err, utils.CodeInvalidState))
}

func TestCancel(t *testing.T) {
	f := newFixture(t, 3)
	ctx := context.Background()
	teamID := f.open(t, 1)

	err := f.svc.Cancel(ctx, teamID, 2)
	assert.True(t, utils.IsCode(err, utils.CodeForbidden))

	require.NoError(t, f.svc.Cancel(ctx, teamID, 1))
	status, err := f.svc.IsTeamReady(ctx, teamID)
	require.NoError(t, err)
	assert.Equal(t, model.TeamStatusFailed, status)

	err = f.svc.Cancel(ctx, teamID, 1)
	assert.True(t, utils.IsCode(err, utils.CodeInvalidState))
}

func TestFailForRefundAndRestore(t *testing.T) {
	f := newFixture(t, 3)
	ctx := context.Background()
	teamID := f.open(t, 1)
	_, err := f.svc.Join(ctx, &JoinRequest{CampaignID: f.campaign.ID, TeamID: teamID, UserID: 2, OrderID: 20})
	require.NoError(t, err)

	err = f.db.Transaction(func(tx *gorm.DB) error {
		failed, events, err := f.svc.FailForRefundTx(ctx, tx, 20)
		require.NoError(t, err)
		assert.True(t, failed)
		assert.Len(t, events, 1)
		return nil
	})
	require.NoError(t, err)

	view, err := f.svc.Members(ctx, teamID)
	require.NoError(t, err)
	assert.Equal(t, "failed", view.Status)
	assert.Equal(t, 1, view.Members)

	err = f.db.Transaction(func(tx *gorm.DB) error {
		restored, err := f.svc.RestoreTx(ctx, tx, 20)
		require.NoError(t, err)
		assert.True(t, restored)
		return nil
	})
	require.NoError(t, err)

	view, err = f.svc.Members(ctx, teamID)
	require.NoError(t, err)
	assert.Equal(t, "open", view.Status)
	assert.Equal(t, 2, view.Members)

	// a cancelled team is not brought back by a refund rejection
	require.NoError(t, f.svc.Cancel(ctx, teamID, 1))
	err = f.db.Transaction(func(tx *gorm.DB) error {
		restored, err := f.svc.RestoreTx(ctx, tx, 20)
		require.NoError(t, err)
		assert.False(t, restored)
		return nil
	})
	require.NoError(t, err)
}

func (f *fixture) inTx(t *testing.T, fn func(tx *gorm.DB) error) {
	t.Helper()
	require.NoError(t, f.db.Transaction(fn))
}

func TestRestore_WaitsForEveryRefundingMember(t *testing.T) {
	f := newFixture(t, 3)
	ctx := context.Background()
	teamID := f.open(t, 1)
	_, err := f.svc.Join(ctx, &JoinRequest{CampaignID: f.campaign.ID, TeamID: teamID, UserID: 2, OrderID: 20})
	require.NoError(t, err)

	f.inTx(t, func(tx *gorm.DB) error {
		failed, _, err := f.svc.FailForRefundTx(ctx, tx, 10)
		assert.True(t, failed)
		return err
	})
	// the team is already failed but the second row still leaves the headcount
	f.inTx(t, func(tx *gorm.DB) error {
		failed, _, err := f.svc.FailForRefundTx(ctx, tx, 20)
		assert.False(t, failed)
		return err
	})
	view, err := f.svc.Members(ctx, teamID)
	require.NoError(t, err)
	assert.Equal(t, 0, view.Members)

	f.inTx(t, func(tx *gorm.DB) error {
		restored, err := f.svc.RestoreTx(ctx, tx, 20)
		assert.False(t, restored)
		return err
	})
	status, err := f.svc.IsTeamReady(ctx, teamID)
	require.NoError(t, err)
	assert.Equal(t, model.TeamStatusFailed, status)

	f.inTx(t, func(tx *gorm.DB) error {
		restored, err := f.svc.RestoreTx(ctx, tx, 10)
		assert.True(t, restored)
		return err
	})
	view, err = f.svc.Members(ctx, teamID)
	require.NoError(t, err)
	assert.Equal(t, "open", view.Status)
	assert.Equal(t, 2, view.Members)

	// a second rejection of the same order changes nothing
	f.inTx(t, func(tx *gorm.DB) error {
		restored, err := f.svc.RestoreTx(ctx, tx, 10)
		assert.False(t, restored)
		return err
	})

	_, err = f.svc.Join(ctx, &JoinRequest{CampaignID: f.campaign.ID, TeamID: teamID, UserID: 3, OrderID: 30})
	require.NoError(t, err)
	_, err = f.svc.Join(ctx, &JoinRequest{CampaignID: f.campaign.ID, TeamID: teamID, UserID: 4, OrderID: 40})
	assert.True(t, utils.IsCode(err, utils.CodeTeamFull))

	view, err = f.svc.Members(ctx, teamID)
	require.NoError(t, err)
	assert.Equal(t, "completed", view.Status)
	assert.Equal(t, 3, view.Members)
	assert.Len(t, view.Rows, 3)
}

func TestRestore_OnlyTheFailingOrderReopens(t *testing.T) {
	f := newFixture(t, 3)
	ctx := context.Background()
	teamID := f.open(t, 1)
	_, err := f.svc.Join(ctx, &JoinRequest{CampaignID: f.campaign.ID, TeamID: teamID, UserID: 2, OrderID: 20})
	require.NoError(t, err)

	f.inTx(t, func(tx *gorm.DB) error {
		_, _, err := f.svc.FailForRefundTx(ctx, tx, 10)
		return err
	})
	// order 20 never asked for a refund
	f.inTx(t, func(tx *gorm.DB) error {
		restored, err := f.svc.RestoreTx(ctx, tx, 20)
		assert.False(t, restored)
		return err
	})
	status, err := f.svc.IsTeamReady(ctx, teamID)
	require.NoError(t, err)
	assert.Equal(t, model.TeamStatusFailed, status)
}

func TestIsMemberTx(t *testing.T) {
	f := newFixture(t, 3)
	ctx := context.Background()
	teamID := f.open(t, 1)

	f.inTx(t, func(tx *gorm.DB) error {
		in, err := f.svc.IsMemberTx(ctx, tx, teamID, 1)
		require.NoError(t, err)
		assert.True(t, in)
		in, err = f.svc.IsMemberTx(ctx, tx, teamID, 2)
		require.NoError(t, err)
		assert.False(t, in)
		return nil
	})
}

func TestExpireSweep_RefundFailedTeamPastExpiry(t *testing.T) {
	f := newFixture(t, 2)
	ctx := context.Background()
	teamID := f.open(t, 1)

	require.NoError(t, f.db.Transaction(func(tx *gorm.DB) error {
		_, _, err := f.svc.FailForRefundTx(ctx, tx, 10)
		return err
	}))

	f.clock = f.clock.Add(25 * time.Hour)
	failed, err := f.svc.ExpireSweep(ctx)
	require.NoError(t, err)
	assert.Equal(t, []uint64{teamID}, failed)

	require.NoError(t, f.db.Transaction(func(tx *gorm.DB) error {
		restored, err := f.svc.RestoreTx(ctx, tx, 10)
		assert.False(t, restored)
		return err
	}))
}
