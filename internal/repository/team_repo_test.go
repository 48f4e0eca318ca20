package repository

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mall/internal/model"
)

func TestTeamRepository_CreateLeaderSetsTeamID(t *testing.T) {
	db, mock := setupMockDB(t)
	repo := NewTeamRepository(db)

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO `team_members`").WillReturnResult(sqlmock.NewResult(11, 1))
	mock.ExpectCommit()
	mock.ExpectBegin()
	mock.ExpectExec("UPDATE `team_members` SET `team_id`=\\?.* WHERE id = \\?").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	leader := &model.TeamMember{CampaignID: 1, UserID: 2, IsLeader: true, People: 3, Status: model.TeamStatusOpen, ExpireAt: time.Now().Add(time.Hour)}
	require.NoError(t, repo.CreateMember(context.Background(), leader))
	assert.Equal(t, uint64(11), leader.ID)
	assert.Equal(t, uint64(11), leader.TeamID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestTeamRepository_LockLeader(t *testing.T) {
	db, mock := setupMockDB(t)
	repo := NewTeamRepository(db)

	mock.ExpectQuery("SELECT \\* FROM `team_members` WHERE id = \\? AND is_leader = \\? .*FOR UPDATE").
		WillReturnRows(sqlmock.NewRows([]string{"id", "team_id", "people", "status"}).AddRow(11, 11, 3, model.TeamStatusOpen))

	leader, err := repo.LockLeader(context.Background(), 11)
	require.NoError(t, err)
	assert.Equal(t, 3, leader.People)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestTeamRepository_CountActive(t *testing.T) {
	db, mock := setupMockDB(t)
	repo := NewTeamRepository(db)

	mock.ExpectQuery("SELECT count\\(\\*\\) FROM `team_members` WHERE team_id = \\? AND is_refund = \\?").
		WithArgs(11, false).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(2))

	n, err := repo.CountActive(context.Background(), 11)
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)
}

func TestTeamRepository_SetStatusOnlyFromExpected(t *testing.T) {
	db, mock := setupMockDB(t)
	repo := NewTeamRepository(db)

	mock.ExpectBegin()
	mock.ExpectExec("UPDATE `team_members` SET .* WHERE team_id = \\? AND status = \\?").
		WillReturnResult(sqlmock.NewResult(0, 3))
	mock.ExpectCommit()

	n, err := repo.SetStatus(context.Background(), 11, model.TeamStatusOpen, model.TeamStatusCompleted, "")
	require.NoError(t, err)
	assert.Equal(t, int64(3), n)
}
