package store

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mesh-intelligence/rituo/pkg/types"
)

var testToday = types.MustParseDate("2026-03-10")

// newTestBackend attaches a SQLite backend in a temp directory.
func newTestBackend(t *testing.T) *Backend {
	t.Helper()
	b := NewBackend()
	cfg := types.StoreConfig{Driver: types.DriverSQLite, DataDir: t.TempDir(), QueryTimeout: 5 * time.Second}
	require.NoError(t, b.Attach(context.Background(), cfg))
	t.Cleanup(func() { b.Detach() })
	return b
}

func createUser(t *testing.T, b *Backend, name string) *types.User {
	t.Helper()
	u := &types.User{Username: name, Email: name + "@example.com", PasswordHash: "hash"}
	require.NoError(t, b.CreateUser(context.Background(), u))
	return u
}

// startCycle claims a cycle on today and inserts one task per title.
func startCycle(t *testing.T, b *Backend, userID string, today types.Date, titles ...string) []types.Task {
	t.Helper()
	w := types.CycleBounds(today)
	var tasks []types.Task
	err := b.Update(context.Background(), func(tx types.LedgerTx) error {
		if err := tx.ClaimCycle(context.Background(), userID, w, today); err != nil {
			return err
		}
		for _, title := range titles {
			task := &types.Task{UserID: userID, Title: title, CycleStart: w.Start, CycleEnd: w.End}
			if err := tx.InsertTask(context.Background(), task); err != nil {
				return err
			}
			tasks = append(tasks, *task)
		}
		return nil
	})
	require.NoError(t, err)
	return tasks
}

func TestBackend_AttachDetach(t *testing.T) {
	dir := t.TempDir()
	cfg := types.StoreConfig{Driver: types.DriverSQLite, DataDir: dir}
	ctx := context.Background()

	b := NewBackend()
	require.NoError(t, b.Attach(ctx, cfg))

	_, err := os.Stat(filepath.Join(dir, DatabaseFile))
	require.NoError(t, err, "database file should exist")

	assert.ErrorIs(t, b.Attach(ctx, cfg), types.ErrAlreadyAttached)
	require.NoError(t, b.Ping(ctx))

	require.NoError(t, b.Detach())
	require.NoError(t, b.Detach(), "detach is idempotent")

	_, err = b.GetUser(ctx, "x")
	assert.ErrorIs(t, err, types.ErrStoreDetached)
}

func TestBackend_AttachRejectsBadConfig(t *testing.T) {
	b := NewBackend()
	err := b.Attach(context.Background(), types.StoreConfig{Driver: "oracle"})
	assert.ErrorIs(t, err, types.ErrDriverUnknown)
}

func TestBackend_ReattachKeepsData(t *testing.T) {
	dir := t.TempDir()
	cfg := types.StoreConfig{Driver: types.DriverSQLite, DataDir: dir}
	ctx := context.Background()

	b := NewBackend()
	require.NoError(t, b.Attach(ctx, cfg))
	u := createUser(t, b, "alice")
	require.NoError(t, b.Detach())

	b2 := NewBackend()
	require.NoError(t, b2.Attach(ctx, cfg))
	defer b2.Detach()

	got, err := b2.GetUser(ctx, u.UserID)
	require.NoError(t, err)
	assert.Equal(t, "alice", got.Username)

	applied, err := b2.Migrate(ctx)
	require.NoError(t, err)
	assert.Empty(t, applied, "no pending migrations on a migrated database")

	version, err := b2.SchemaVersion(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), version)
}

func TestUsers(t *testing.T) {
	b := newTestBackend(t)
	ctx := context.Background()

	u := createUser(t, b, "alice")
	assert.NotEmpty(t, u.UserID)
	assert.False(t, u.CreatedAt.IsZero())
	assert.Nil(t, u.Cycle)

	t.Run("lookup by username", func(t *testing.T) {
		got, err := b.GetUserByUsername(ctx, "alice")
		require.NoError(t, err)
		assert.Equal(t, u.UserID, got.UserID)
		assert.Equal(t, "hash", got.PasswordHash)
	})

	t.Run("duplicate username", func(t *testing.T) {
		err := b.CreateUser(ctx, &types.User{Username: "alice", Email: "other@example.com", PasswordHash: "h"})
		assert.ErrorIs(t, err, types.ErrConflict)
		assert.Contains(t, err.Error(), "username")
	})

	t.Run("duplicate email", func(t *testing.T) {
		err := b.CreateUser(ctx, &types.User{Username: "bob", Email: "alice@example.com", PasswordHash: "h"})
		assert.ErrorIs(t, err, types.ErrConflict)
		assert.Contains(t, err.Error(), "email")
	})

	t.Run("update password", func(t *testing.T) {
		require.NoError(t, b.UpdatePasswordHash(ctx, u.UserID, "new-hash"))
		got, err := b.GetUser(ctx, u.UserID)
		require.NoError(t, err)
		assert.Equal(t, "new-hash", got.PasswordHash)

		assert.ErrorIs(t, b.UpdatePasswordHash(ctx, "missing", "h"), types.ErrNotFound)
	})

	t.Run("unknown user", func(t *testing.T) {
		_, err := b.GetUser(ctx, "missing")
		assert.ErrorIs(t, err, types.ErrNotFound)
	})
}

func TestDeleteUserCascades(t *testing.T) {
	b := newTestBackend(t)
	ctx := context.Background()

	u := createUser(t, b, "alice")
	other := createUser(t, b, "bob")
	tasks := startCycle(t, b, u.UserID, testToday, "Read", "Run")
	otherTasks := startCycle(t, b, other.UserID, testToday, "Swim")

	_, err := b.EnsureCompletion(ctx, tasks[0], testToday)
	require.NoError(t, err)
	_, err = b.EnsureCompletion(ctx, otherTasks[0], testToday)
	require.NoError(t, err)
	require.NoError(t, b.AddNote(ctx, &types.TaskNote{TaskID: tasks[0].TaskID, UserID: u.UserID, Note: "felt good"}))

	require.NoError(t, b.DeleteUser(ctx, u.UserID))
	assert.ErrorIs(t, b.DeleteUser(ctx, u.UserID), types.ErrNotFound)

	_, err = b.GetTaskByID(ctx, tasks[0].TaskID)
	assert.ErrorIs(t, err, types.ErrNotFound)
	history, err := b.ListTaskHistory(ctx, tasks[0].TaskID)
	require.NoError(t, err)
	assert.Empty(t, history)
	notes, err := b.ListNotes(ctx, tasks[0].TaskID)
	require.NoError(t, err)
	assert.Empty(t, notes)

	remaining, err := b.ListAllActiveTasks(ctx, testToday)
	require.NoError(t, err)
	require.Len(t, remaining, 1)
	assert.Equal(t, other.UserID, remaining[0].UserID)
}

func TestClaimCycle(t *testing.T) {
	b := newTestBackend(t)
	ctx := context.Background()
	u := createUser(t, b, "alice")

	startCycle(t, b, u.UserID, testToday, "Read")

	got, err := b.GetUser(ctx, u.UserID)
	require.NoError(t, err)
	require.NotNil(t, got.Cycle)
	assert.Equal(t, testToday, got.Cycle.Start)
	assert.Equal(t, testToday.AddDays(30), got.Cycle.End)

	claim := func(today types.Date) error {
		return b.Update(ctx, func(tx types.LedgerTx) error {
			return tx.ClaimCycle(ctx, u.UserID, types.CycleBounds(today), today)
		})
	}

	assert.ErrorIs(t, claim(testToday), types.ErrConflict)
	assert.ErrorIs(t, claim(testToday.AddDays(30)), types.ErrConflict, "end date is still active")
	assert.NoError(t, claim(testToday.AddDays(31)), "cycle ended the day before")

	err = b.Update(ctx, func(tx types.LedgerTx) error {
		return tx.ClaimCycle(ctx, "missing", types.CycleBounds(testToday), testToday)
	})
	assert.ErrorIs(t, err, types.ErrNotFound)
}

func TestActiveAndExpiredTasks(t *testing.T) {
	b := newTestBackend(t)
	ctx := context.Background()
	u := createUser(t, b, "alice")

	first := startCycle(t, b, u.UserID, testToday, "Old habit")
	later := testToday.AddDays(31)
	second := startCycle(t, b, u.UserID, later, "New habit", "Another")

	active, err := b.ListActiveTasks(ctx, u.UserID, later)
	require.NoError(t, err)
	require.Len(t, active, 2)
	assert.Equal(t, second[0].TaskID, active[0].TaskID)

	expired, err := b.ListExpiredTasks(ctx, u.UserID, later)
	require.NoError(t, err)
	require.Len(t, expired, 1)
	assert.Equal(t, first[0].TaskID, expired[0].TaskID)

	err = b.Update(ctx, func(tx types.LedgerTx) error {
		active, err := tx.HasActiveTasks(ctx, u.UserID, later.AddDays(31))
		assert.False(t, active)
		return err
	})
	require.NoError(t, err)

	_, err = b.GetTask(ctx, "someone-else", first[0].TaskID)
	assert.ErrorIs(t, err, types.ErrNotFound, "tasks are scoped to their owner")
}

func TestEnsureCompletionIsIdempotent(t *testing.T) {
	b := newTestBackend(t)
	ctx := context.Background()
	u := createUser(t, b, "alice")
	task := startCycle(t, b, u.UserID, testToday, "Read")[0]

	created, err := b.EnsureCompletion(ctx, task, testToday)
	require.NoError(t, err)
	assert.True(t, created)

	err = b.Update(ctx, func(tx types.LedgerTx) error {
		v, err := tx.ToggleCompletion(ctx, task.TaskID, testToday)
		assert.True(t, v)
		return err
	})
	require.NoError(t, err)

	created, err = b.EnsureCompletion(ctx, task, testToday)
	require.NoError(t, err)
	assert.False(t, created)

	c, err := b.GetCompletion(ctx, task.TaskID, testToday)
	require.NoError(t, err)
	assert.True(t, c.IsComplete, "existing row must not be reset")

	history, err := b.ListTaskHistory(ctx, task.TaskID)
	require.NoError(t, err)
	assert.Len(t, history, 1)
}

func TestInsertCompletionDuplicate(t *testing.T) {
	b := newTestBackend(t)
	ctx := context.Background()
	u := createUser(t, b, "alice")
	task := startCycle(t, b, u.UserID, testToday, "Read")[0]

	c := &types.Completion{TaskID: task.TaskID, UserID: u.UserID, Date: testToday}
	require.NoError(t, b.InsertCompletion(ctx, c))
	assert.NotEmpty(t, c.CompletionID)

	err := b.InsertCompletion(ctx, &types.Completion{TaskID: task.TaskID, UserID: u.UserID, Date: testToday})
	assert.ErrorIs(t, err, types.ErrDuplicateRace)
}

func TestToggleMissingRow(t *testing.T) {
	b := newTestBackend(t)
	ctx := context.Background()

	err := b.Update(ctx, func(tx types.LedgerTx) error {
		_, err := tx.ToggleCompletion(ctx, "missing", testToday)
		return err
	})
	assert.ErrorIs(t, err, types.ErrNotFound)

	_, err = b.GetCompletion(ctx, "missing", testToday)
	assert.ErrorIs(t, err, types.ErrNotFound)
}

func TestUpdateRollsBack(t *testing.T) {
	b := newTestBackend(t)
	ctx := context.Background()
	u := createUser(t, b, "alice")
	boom := errors.New("boom")

	err := b.Update(ctx, func(tx types.LedgerTx) error {
		w := types.CycleBounds(testToday)
		if err := tx.ClaimCycle(ctx, u.UserID, w, testToday); err != nil {
			return err
		}
		if err := tx.InsertTask(ctx, &types.Task{UserID: u.UserID, Title: "Read", CycleStart: w.Start, CycleEnd: w.End}); err != nil {
			return err
		}
		return boom
	})
	assert.ErrorIs(t, err, boom)

	got, err := b.GetUser(ctx, u.UserID)
	require.NoError(t, err)
	assert.Nil(t, got.Cycle, "cycle claim rolled back")

	tasks, err := b.ListActiveTasks(ctx, u.UserID, testToday)
	require.NoError(t, err)
	assert.Empty(t, tasks)
}

func TestListCompletionsRange(t *testing.T) {
	b := newTestBackend(t)
	ctx := context.Background()
	u := createUser(t, b, "alice")
	tasks := startCycle(t, b, u.UserID, testToday, "Read", "Run")

	for offset := 0; offset < 5; offset++ {
		for _, task := range tasks {
			_, err := b.EnsureCompletion(ctx, task, testToday.AddDays(offset))
			require.NoError(t, err)
		}
	}

	rows, err := b.ListCompletions(ctx, []string{tasks[0].TaskID, tasks[1].TaskID}, testToday.AddDays(1), testToday.AddDays(3))
	require.NoError(t, err)
	require.Len(t, rows, 6)
	assert.Equal(t, testToday.AddDays(1), rows[0].Date)
	assert.Equal(t, testToday.AddDays(3), rows[5].Date)

	rows, err = b.ListCompletions(ctx, []string{tasks[1].TaskID}, testToday, testToday.AddDays(10))
	require.NoError(t, err)
	assert.Len(t, rows, 5)

	rows, err = b.ListCompletions(ctx, nil, testToday, testToday)
	require.NoError(t, err)
	assert.Empty(t, rows)
}

func TestNotes(t *testing.T) {
	b := newTestBackend(t)
	ctx := context.Background()
	u := createUser(t, b, "alice")
	task := startCycle(t, b, u.UserID, testToday, "Read")[0]

	clock := time.Date(2026, 3, 10, 8, 0, 0, 0, time.UTC)
	b.now = func() time.Time { return clock }
	first := &types.TaskNote{TaskID: task.TaskID, UserID: u.UserID, Note: "first"}
	require.NoError(t, b.AddNote(ctx, first))
	clock = clock.Add(time.Hour)
	require.NoError(t, b.AddNote(ctx, &types.TaskNote{TaskID: task.TaskID, UserID: u.UserID, Note: "second"}))

	notes, err := b.ListNotes(ctx, task.TaskID)
	require.NoError(t, err)
	require.Len(t, notes, 2)
	assert.Equal(t, "second", notes[0].Note)
	assert.Equal(t, first.NoteID, notes[1].NoteID)
	assert.True(t, notes[1].CreatedAt.Equal(first.CreatedAt))
}
