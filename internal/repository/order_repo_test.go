package repository

import (
	"context"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"mall/internal/database"
	"mall/internal/model"
	"mall/pkg/utils"
)

var orderColumns = []string{"id", "order_code", "user_id", "pay_price", "paid", "status", "refund_status"}

func TestOrderRepository_LockByCode(t *testing.T) {
	db, mock := setupMockDB(t)
	repo := NewOrderRepository(db)

	mock.ExpectQuery("SELECT \\* FROM `orders` WHERE order_code = \\? .*FOR UPDATE").
		WillReturnRows(sqlmock.NewRows(orderColumns).AddRow(1, "OD1", 9, 10000, true, 0, 0))

	order, err := repo.LockByCode(context.Background(), "OD1")
	require.NoError(t, err)
	assert.Equal(t, uint64(1), order.ID)
	assert.Equal(t, int64(10000), order.PayPrice)
	assert.True(t, order.Paid)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestOrderRepository_GetByCode_NotFound(t *testing.T) {
	db, mock := setupMockDB(t)
	repo := NewOrderRepository(db)

	mock.ExpectQuery("SELECT \\* FROM `orders` WHERE order_code = \\?").
		WillReturnError(gorm.ErrRecordNotFound)

	_, err := repo.GetByCode(context.Background(), "missing")
	assert.True(t, utils.IsCode(err, utils.CodeNotFound))
}

func TestOrderRepository_LockByVerifyCodeEmpty(t *testing.T) {
	db, mock := setupMockDB(t)
	repo := NewOrderRepository(db)

	_, err := repo.LockByVerifyCode(context.Background(), "")
	assert.True(t, utils.IsCode(err, utils.CodeNotFound))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestOrderRepository_VerifyCodeUnique(t *testing.T) {
	db, err := database.NewMemory()
	require.NoError(t, err)
	t.Cleanup(func() { _ = database.Close(db) })
	repo := NewOrderRepository(db)
	ctx := context.Background()

	code := "123456789012"
	require.NoError(t, repo.Create(ctx, &model.Order{OrderCode: "OD1", UserID: 1, VerifyCode: &code}))
	err = repo.Create(ctx, &model.Order{OrderCode: "OD2", UserID: 1, VerifyCode: &code})
	assert.ErrorIs(t, err, gorm.ErrDuplicatedKey)

	// delivery orders carry no code
	require.NoError(t, repo.Create(ctx, &model.Order{OrderCode: "OD3", UserID: 1}))
	require.NoError(t, repo.Create(ctx, &model.Order{OrderCode: "OD4", UserID: 1}))

	found, err := repo.LockByVerifyCode(ctx, code)
	require.NoError(t, err)
	assert.Equal(t, "OD1", found.OrderCode)
}

func TestOrderRepository_Update(t *testing.T) {
	db, mock := setupMockDB(t)
	repo := NewOrderRepository(db)

	mock.ExpectBegin()
	mock.ExpectExec("UPDATE `orders` SET .*`refund_status`=\\?.* WHERE id = \\?").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	err := repo.Update(context.Background(), 5, map[string]interface{}{"refund_status": model.RefundStatusRequested})
	assert.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestOrderRepository_AddLog(t *testing.T) {
	db, mock := setupMockDB(t)
	repo := NewOrderRepository(db)

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO `order_status_logs`").
		WithArgs(uint64(5), model.ChangePaySuccess, "paid by balance", sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectCommit()

	err := repo.AddLog(context.Background(), 5, model.ChangePaySuccess, "paid by balance")
	assert.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestOrderRepository_LockPaidByTeam(t *testing.T) {
	db, mock := setupMockDB(t)
	repo := NewOrderRepository(db)

	mock.ExpectQuery("SELECT \\* FROM `orders` WHERE team_id = \\? AND paid = \\? AND refund_status = \\? ORDER BY id ASC FOR UPDATE").
		WithArgs(3, true, model.RefundStatusNone).
		WillReturnRows(sqlmock.NewRows(orderColumns).
			AddRow(1, "OD1", 9, 100, true, 0, 0).
			AddRow(2, "OD2", 10, 100, true, 0, 0))

	orders, err := repo.LockPaidByTeam(context.Background(), 3)
	require.NoError(t, err)
	assert.Len(t, orders, 2)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestOrderRepositoryInterface(t *testing.T) {
	var _ OrderRepository = (*orderRepository)(nil)
}
