package store

import (
	"context"
	"database/sql"
	"errors"

	"github.com/jmoiron/sqlx"

	"github.com/mesh-intelligence/rituo/pkg/types"
)

const completionColumns = `completion_id, task_id, user_id, completion_date, is_complete`

// completionRow mirrors the task_completion table.
type completionRow struct {
	CompletionID string     `db:"completion_id"`
	TaskID       string     `db:"task_id"`
	UserID       string     `db:"user_id"`
	Date         types.Date `db:"completion_date"`
	IsComplete   bool       `db:"is_complete"`
}

func (r completionRow) hydrate() types.Completion {
	return types.Completion{
		CompletionID: r.CompletionID,
		TaskID:       r.TaskID,
		UserID:       r.UserID,
		Date:         r.Date,
		IsComplete:   r.IsComplete,
	}
}

func hydrateCompletions(rows []completionRow) []types.Completion {
	out := make([]types.Completion, 0, len(rows))
	for _, r := range rows {
		out = append(out, r.hydrate())
	}
	return out
}

// GetCompletion returns the row for (taskID, date) or ErrNotFound.
func (b *Backend) GetCompletion(ctx context.Context, taskID string, date types.Date) (*types.Completion, error) {
	db, err := b.handle()
	if err != nil {
		return nil, err
	}
	ctx, cancel := b.withTimeout(ctx)
	defer cancel()

	var row completionRow
	err = db.GetContext(ctx, &row,
		db.Rebind(`SELECT `+completionColumns+` FROM task_completion WHERE task_id = ? AND completion_date = ?`),
		taskID, date)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, types.Errorf(types.ErrNotFound, "get completion", "task %s on %s", taskID, date)
		}
		return nil, types.Persistence("get completion", err)
	}
	c := row.hydrate()
	return &c, nil
}

// InsertCompletion inserts c as given, assigning an ID. A row already
// present for the same task and date yields ErrDuplicateRace.
func (b *Backend) InsertCompletion(ctx context.Context, c *types.Completion) error {
	db, err := b.handle()
	if err != nil {
		return err
	}
	ctx, cancel := b.withTimeout(ctx)
	defer cancel()

	id := newID()
	_, err = db.ExecContext(ctx,
		db.Rebind(`INSERT INTO task_completion (`+completionColumns+`) VALUES (?, ?, ?, ?, ?)`),
		id, c.TaskID, c.UserID, c.Date, c.IsComplete)
	if err != nil {
		if isUniqueViolation(err) {
			return &types.OpError{Kind: types.ErrDuplicateRace, Op: "insert completion", Err: err}
		}
		return types.Persistence("insert completion", err)
	}
	c.CompletionID = id
	return nil
}

// EnsureCompletion creates a pending row for (task, date) unless one
// exists. Existing rows are never touched.
func (b *Backend) EnsureCompletion(ctx context.Context, task types.Task, date types.Date) (bool, error) {
	db, err := b.handle()
	if err != nil {
		return false, err
	}
	ctx, cancel := b.withTimeout(ctx)
	defer cancel()
	return ensureCompletion(ctx, db, task, date)
}

func ensureCompletion(ctx context.Context, q sqlx.ExtContext, task types.Task, date types.Date) (bool, error) {
	res, err := q.ExecContext(ctx, q.Rebind(`INSERT INTO task_completion (`+completionColumns+`)
		VALUES (?, ?, ?, ?, FALSE)
		ON CONFLICT (task_id, completion_date) DO NOTHING`),
		newID(), task.TaskID, task.UserID, date)
	if err != nil {
		return false, types.Persistence("ensure completion", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, types.Persistence("ensure completion", err)
	}
	return n > 0, nil
}

// toggleCompletion flips the flag in a single statement so that two
// concurrent toggles serialize on the row instead of both reading the
// same old value.
func toggleCompletion(ctx context.Context, q sqlx.ExtContext, taskID string, date types.Date) (bool, error) {
	var value bool
	err := sqlx.GetContext(ctx, q, &value, q.Rebind(`UPDATE task_completion
		SET is_complete = NOT is_complete
		WHERE task_id = ? AND completion_date = ?
		RETURNING is_complete`), taskID, date)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return false, types.Errorf(types.ErrNotFound, "toggle completion", "task %s on %s", taskID, date)
		}
		return false, types.Persistence("toggle completion", err)
	}
	return value, nil
}

// ListCompletions returns the rows of taskIDs dated within [from, to],
// ordered by date then task.
func (b *Backend) ListCompletions(ctx context.Context, taskIDs []string, from, to types.Date) ([]types.Completion, error) {
	if len(taskIDs) == 0 {
		return nil, nil
	}
	db, err := b.handle()
	if err != nil {
		return nil, err
	}
	ctx, cancel := b.withTimeout(ctx)
	defer cancel()

	query, args, err := sqlx.In(`SELECT `+completionColumns+` FROM task_completion
		WHERE task_id IN (?) AND completion_date >= ? AND completion_date <= ?
		ORDER BY completion_date, task_id`, taskIDs, from, to)
	if err != nil {
		return nil, types.Persistence("list completions", err)
	}
	var rows []completionRow
	if err := db.SelectContext(ctx, &rows, db.Rebind(query), args...); err != nil {
		return nil, types.Persistence("list completions", err)
	}
	return hydrateCompletions(rows), nil
}

// ListTaskHistory returns every row of taskID ordered by date.
func (b *Backend) ListTaskHistory(ctx context.Context, taskID string) ([]types.Completion, error) {
	db, err := b.handle()
	if err != nil {
		return nil, err
	}
	ctx, cancel := b.withTimeout(ctx)
	defer cancel()

	var rows []completionRow
	err = db.SelectContext(ctx, &rows,
		db.Rebind(`SELECT `+completionColumns+` FROM task_completion WHERE task_id = ? ORDER BY completion_date`),
		taskID)
	if err != nil {
		return nil, types.Persistence("list task history", err)
	}
	return hydrateCompletions(rows), nil
}
