// Package completion owns the per-task, per-day completion rows: lookup
// with create-if-missing, toggles and streaks derived from them.
package completion

import (
	"context"
	"errors"
	"log/slog"

	"github.com/mesh-intelligence/rituo/pkg/types"
)

// Engine reads and writes completion rows through a ledger.
type Engine struct {
	ledger types.Ledger
	logger *slog.Logger
}

// NewEngine returns an Engine over ledger.
func NewEngine(ledger types.Ledger, logger *slog.Logger) *Engine {
	if logger == nil {
		logger = slog.Default()
	}
	return &Engine{ledger: ledger, logger: logger}
}

// GetOrCreateCompletion returns the row for (task, date), creating a
// pending one if none exists. When a concurrent caller inserts the same
// key first, the insert fails on the unique constraint and the existing
// row is read back instead.
func (e *Engine) GetOrCreateCompletion(ctx context.Context, task types.Task, date types.Date) (*types.Completion, error) {
	c, err := e.ledger.GetCompletion(ctx, task.TaskID, date)
	if err == nil {
		return c, nil
	}
	if !errors.Is(err, types.ErrNotFound) {
		return nil, err
	}

	c = &types.Completion{TaskID: task.TaskID, UserID: task.UserID, Date: date}
	err = e.ledger.InsertCompletion(ctx, c)
	if err == nil {
		return c, nil
	}
	if !errors.Is(err, types.ErrDuplicateRace) {
		return nil, err
	}

	e.logger.Debug("completion created concurrently, re-reading",
		"task_id", task.TaskID, "date", date.String())
	c, err = e.ledger.GetCompletion(ctx, task.TaskID, date)
	if err != nil {
		return nil, types.Persistence("get or create completion", err)
	}
	return c, nil
}

// ToggleCompletion flips the completion of taskID on date and returns the
// new value. The task must belong to userID. A date after the task's cycle
// end is rejected with ErrExpiredCycle before anything is written.
func (e *Engine) ToggleCompletion(ctx context.Context, userID, taskID string, date types.Date) (bool, error) {
	var value bool
	err := e.ledger.Update(ctx, func(tx types.LedgerTx) error {
		task, err := tx.GetTask(ctx, userID, taskID)
		if err != nil {
			return err
		}
		if date.After(task.CycleEnd) {
			return types.Errorf(types.ErrExpiredCycle, "toggle completion",
				"%s is after cycle end %s", date, task.CycleEnd)
		}
		if _, err := tx.EnsureCompletion(ctx, *task, date); err != nil {
			return err
		}
		value, err = tx.ToggleCompletion(ctx, taskID, date)
		return err
	})
	if err != nil {
		return false, types.Persistence("toggle completion", err)
	}
	return value, nil
}

// CurrentStreak counts consecutive completed days ending on asOf.
func (e *Engine) CurrentStreak(ctx context.Context, taskID string, asOf types.Date) (int, error) {
	history, err := e.ledger.ListTaskHistory(ctx, taskID)
	if err != nil {
		return 0, err
	}
	return types.Streak(types.NewCompletionSet(history), asOf), nil
}

// History returns every completion row of a task owned by userID.
func (e *Engine) History(ctx context.Context, userID, taskID string) (*types.Task, []types.Completion, error) {
	task, err := e.ledger.GetTask(ctx, userID, taskID)
	if err != nil {
		return nil, nil, err
	}
	rows, err := e.ledger.ListTaskHistory(ctx, taskID)
	if err != nil {
		return nil, nil, err
	}
	return task, rows, nil
}

// TodayStatus reports, for each active task of userID, whether it is done
// on today. Tasks without a row for today report false.
func (e *Engine) TodayStatus(ctx context.Context, userID string, today types.Date) ([]types.Task, map[string]bool, error) {
	tasks, err := e.ledger.ListActiveTasks(ctx, userID, today)
	if err != nil {
		return nil, nil, err
	}
	ids := make([]string, len(tasks))
	for i, t := range tasks {
		ids[i] = t.TaskID
	}
	rows, err := e.ledger.ListCompletions(ctx, ids, today, today)
	if err != nil {
		return nil, nil, err
	}
	done := make(map[string]bool, len(tasks))
	for _, c := range rows {
		done[c.TaskID] = c.IsComplete
	}
	return tasks, done, nil
}
