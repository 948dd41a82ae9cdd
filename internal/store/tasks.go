package store

import (
	"context"
	"database/sql"
	"errors"

	"github.com/jmoiron/sqlx"

	"github.com/mesh-intelligence/rituo/pkg/types"
)

const taskColumns = `task_id, user_id, title, description, created_at, cycle_start_date, cycle_end_date`

// taskRow mirrors the tasks table.
type taskRow struct {
	TaskID      string     `db:"task_id"`
	UserID      string     `db:"user_id"`
	Title       string     `db:"title"`
	Description string     `db:"description"`
	CreatedAt   string     `db:"created_at"`
	CycleStart  types.Date `db:"cycle_start_date"`
	CycleEnd    types.Date `db:"cycle_end_date"`
}

func (r taskRow) hydrate() (types.Task, error) {
	created, err := parseTimestamp("created_at", r.CreatedAt)
	if err != nil {
		return types.Task{}, err
	}
	return types.Task{
		TaskID:      r.TaskID,
		UserID:      r.UserID,
		Title:       r.Title,
		Description: r.Description,
		CreatedAt:   created,
		CycleStart:  r.CycleStart,
		CycleEnd:    r.CycleEnd,
	}, nil
}

func hydrateTasks(rows []taskRow) ([]types.Task, error) {
	tasks := make([]types.Task, 0, len(rows))
	for _, r := range rows {
		t, err := r.hydrate()
		if err != nil {
			return nil, err
		}
		tasks = append(tasks, t)
	}
	return tasks, nil
}

// GetTask returns the task only if userID owns it.
func (b *Backend) GetTask(ctx context.Context, userID, taskID string) (*types.Task, error) {
	db, err := b.handle()
	if err != nil {
		return nil, err
	}
	ctx, cancel := b.withTimeout(ctx)
	defer cancel()
	return getTask(ctx, db, userID, taskID)
}

// GetTaskByID returns a task regardless of owner.
func (b *Backend) GetTaskByID(ctx context.Context, taskID string) (*types.Task, error) {
	db, err := b.handle()
	if err != nil {
		return nil, err
	}
	ctx, cancel := b.withTimeout(ctx)
	defer cancel()

	var row taskRow
	err = db.GetContext(ctx, &row, db.Rebind(`SELECT `+taskColumns+` FROM tasks WHERE task_id = ?`), taskID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, types.Errorf(types.ErrNotFound, "get task", "task %s", taskID)
		}
		return nil, types.Persistence("get task", err)
	}
	t, err := row.hydrate()
	if err != nil {
		return nil, err
	}
	return &t, nil
}

func getTask(ctx context.Context, q sqlx.ExtContext, userID, taskID string) (*types.Task, error) {
	var row taskRow
	err := sqlx.GetContext(ctx, q, &row,
		q.Rebind(`SELECT `+taskColumns+` FROM tasks WHERE task_id = ? AND user_id = ?`), taskID, userID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, types.Errorf(types.ErrNotFound, "get task", "task %s", taskID)
		}
		return nil, types.Persistence("get task", err)
	}
	t, err := row.hydrate()
	if err != nil {
		return nil, err
	}
	return &t, nil
}

// ListActiveTasks returns the user's tasks whose cycle has not ended,
// oldest first.
func (b *Backend) ListActiveTasks(ctx context.Context, userID string, today types.Date) ([]types.Task, error) {
	return b.selectTasks(ctx, "list active tasks",
		`SELECT `+taskColumns+` FROM tasks WHERE user_id = ? AND cycle_end_date >= ? ORDER BY created_at, task_id`,
		userID, today)
}

// ListExpiredTasks returns the user's ended tasks, most recent cycle first.
func (b *Backend) ListExpiredTasks(ctx context.Context, userID string, today types.Date) ([]types.Task, error) {
	return b.selectTasks(ctx, "list expired tasks",
		`SELECT `+taskColumns+` FROM tasks WHERE user_id = ? AND cycle_end_date < ? ORDER BY cycle_end_date DESC, created_at, task_id`,
		userID, today)
}

// ListAllActiveTasks returns every active task across all users.
func (b *Backend) ListAllActiveTasks(ctx context.Context, today types.Date) ([]types.Task, error) {
	return b.selectTasks(ctx, "list all active tasks",
		`SELECT `+taskColumns+` FROM tasks WHERE cycle_end_date >= ? ORDER BY user_id, created_at, task_id`,
		today)
}

func (b *Backend) selectTasks(ctx context.Context, op, query string, args ...any) ([]types.Task, error) {
	db, err := b.handle()
	if err != nil {
		return nil, err
	}
	ctx, cancel := b.withTimeout(ctx)
	defer cancel()

	var rows []taskRow
	if err := db.SelectContext(ctx, &rows, db.Rebind(query), args...); err != nil {
		return nil, types.Persistence(op, err)
	}
	return hydrateTasks(rows)
}

// insertTask writes t and fills in its ID and creation time.
func (b *Backend) insertTask(ctx context.Context, q sqlx.ExtContext, t *types.Task) error {
	created, stamp := b.timestamp()
	id := newID()
	_, err := q.ExecContext(ctx,
		q.Rebind(`INSERT INTO tasks (`+taskColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?)`),
		id, t.UserID, t.Title, t.Description, stamp, t.CycleStart, t.CycleEnd)
	if err != nil {
		return types.Persistence("insert task", err)
	}
	t.TaskID = id
	t.CreatedAt = created
	return nil
}

// hasActiveTasks reports whether userID owns any task still in its cycle.
func hasActiveTasks(ctx context.Context, q sqlx.ExtContext, userID string, today types.Date) (bool, error) {
	var exists bool
	err := sqlx.GetContext(ctx, q, &exists,
		q.Rebind(`SELECT EXISTS (SELECT 1 FROM tasks WHERE user_id = ? AND cycle_end_date >= ?)`), userID, today)
	if err != nil {
		return false, types.Persistence("check active tasks", err)
	}
	return exists, nil
}

// claimCycle moves the user's cycle window forward only when no cycle is
// active. The conditional UPDATE is the guard: of two concurrent claims
// on the same day, at most one matches the WHERE clause.
func claimCycle(ctx context.Context, q sqlx.ExtContext, userID string, w types.CycleWindow, today types.Date) error {
	res, err := q.ExecContext(ctx, q.Rebind(`UPDATE users
		SET current_cycle_start_date = ?, current_cycle_end_date = ?
		WHERE user_id = ? AND (current_cycle_end_date IS NULL OR current_cycle_end_date < ?)`),
		w.Start, w.End, userID, today)
	if err != nil {
		return types.Persistence("claim cycle", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return types.Persistence("claim cycle", err)
	}
	if n > 0 {
		return nil
	}

	var exists bool
	err = sqlx.GetContext(ctx, q, &exists, q.Rebind(`SELECT EXISTS (SELECT 1 FROM users WHERE user_id = ?)`), userID)
	if err != nil {
		return types.Persistence("claim cycle", err)
	}
	if !exists {
		return types.Errorf(types.ErrNotFound, "claim cycle", "user %s", userID)
	}
	return types.Errorf(types.ErrConflict, "claim cycle", "an active cycle already exists")
}
