package store

import (
	"context"
	"errors"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mesh-intelligence/rituo/pkg/types"
)

func newMockBackend(t *testing.T) (*Backend, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	b := NewBackendFromDB(sqlx.NewDb(db, "sqlmock"), types.StoreConfig{Driver: types.DriverPostgres, DSN: "mock"})
	return b, mock
}

func TestInsertCompletion_PostgresUniqueViolation(t *testing.T) {
	b, mock := newMockBackend(t)

	mock.ExpectExec("INSERT INTO task_completion").
		WithArgs(sqlmock.AnyArg(), "task-1", "user-1", "2026-03-10", false).
		WillReturnError(&pq.Error{Code: "23505", Message: "duplicate key value violates unique constraint"})

	err := b.InsertCompletion(context.Background(), &types.Completion{
		TaskID: "task-1", UserID: "user-1", Date: testToday,
	})
	assert.ErrorIs(t, err, types.ErrDuplicateRace)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestInsertCompletion_OtherFailureIsPersistence(t *testing.T) {
	b, mock := newMockBackend(t)

	mock.ExpectExec("INSERT INTO task_completion").
		WillReturnError(&pq.Error{Code: "08006", Message: "connection failure"})

	err := b.InsertCompletion(context.Background(), &types.Completion{TaskID: "task-1", UserID: "user-1", Date: testToday})
	assert.ErrorIs(t, err, types.ErrPersistence)
	assert.NotErrorIs(t, err, types.ErrDuplicateRace)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUpdate_RollsBackOnFailedStatement(t *testing.T) {
	b, mock := newMockBackend(t)
	ctx := context.Background()

	mock.ExpectBegin()
	mock.ExpectExec("UPDATE users").WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("INSERT INTO tasks").WillReturnError(errors.New("disk full"))
	mock.ExpectRollback()

	err := b.Update(ctx, func(tx types.LedgerTx) error {
		w := types.CycleBounds(testToday)
		if err := tx.ClaimCycle(ctx, "user-1", w, testToday); err != nil {
			return err
		}
		return tx.InsertTask(ctx, &types.Task{UserID: "user-1", Title: "Read", CycleStart: w.Start, CycleEnd: w.End})
	})
	assert.ErrorIs(t, err, types.ErrPersistence)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUpdate_CommitFailure(t *testing.T) {
	b, mock := newMockBackend(t)

	mock.ExpectBegin()
	mock.ExpectCommit().WillReturnError(errors.New("serialization failure"))

	err := b.Update(context.Background(), func(types.LedgerTx) error { return nil })
	assert.ErrorIs(t, err, types.ErrPersistence)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestClaimCycle_ConflictVersusMissingUser(t *testing.T) {
	b, mock := newMockBackend(t)
	ctx := context.Background()

	mock.ExpectBegin()
	mock.ExpectExec("UPDATE users").WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery("SELECT EXISTS").WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(true))
	mock.ExpectRollback()

	err := b.Update(ctx, func(tx types.LedgerTx) error {
		return tx.ClaimCycle(ctx, "user-1", types.CycleBounds(testToday), testToday)
	})
	assert.ErrorIs(t, err, types.ErrConflict)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestIsUniqueViolation(t *testing.T) {
	assert.True(t, isUniqueViolation(&pq.Error{Code: "23505"}))
	assert.False(t, isUniqueViolation(&pq.Error{Code: "23503"}))
	assert.False(t, isUniqueViolation(errors.New("UNIQUE constraint failed")))
	assert.False(t, isUniqueViolation(nil))
}
