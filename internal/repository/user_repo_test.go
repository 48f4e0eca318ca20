package repository

import (
	"context"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"

	"mall/pkg/utils"
)

func TestUserRepository_Debit(t *testing.T) {
	db, mock := setupMockDB(t)
	repo := NewUserRepository(db)

	mock.ExpectBegin()
	mock.ExpectExec("UPDATE `users` SET `balance`=balance - \\?.*WHERE id = \\? AND balance >= \\?").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	assert.NoError(t, repo.Debit(context.Background(), 1, 500))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUserRepository_DebitInsufficient(t *testing.T) {
	db, mock := setupMockDB(t)
	repo := NewUserRepository(db)

	mock.ExpectBegin()
	mock.ExpectExec("UPDATE `users`").WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectCommit()
	mock.ExpectQuery("SELECT \\* FROM `users` WHERE id = \\?").
		WillReturnRows(sqlmock.NewRows([]string{"id", "balance"}).AddRow(1, 100))

	err := repo.Debit(context.Background(), 1, 500)
	assert.ErrorIs(t, err, ErrInsufficientBalance)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUserRepository_CreditUnknownUser(t *testing.T) {
	db, mock := setupMockDB(t)
	repo := NewUserRepository(db)

	mock.ExpectBegin()
	mock.ExpectExec("UPDATE `users` SET `balance`=balance \\+ \\?").WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectCommit()

	err := repo.Credit(context.Background(), 42, 100)
	assert.True(t, utils.IsCode(err, utils.CodeNotFound))
}
