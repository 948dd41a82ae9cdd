// Package cycle starts fixed-length task cycles for a user.
package cycle

import (
	"context"
	"log/slog"
	"unicode/utf8"

	"github.com/mesh-intelligence/rituo/pkg/types"
)

// Result is a freshly started cycle.
type Result struct {
	Tasks []types.Task `json:"tasks"`
	Start types.Date   `json:"cycle_start_date"`
	End   types.Date   `json:"cycle_end_date"`
}

// Manager creates cycles. It holds no state of its own; all coordination
// between concurrent callers happens in the ledger transaction.
type Manager struct {
	ledger types.Ledger
	logger *slog.Logger
}

// NewManager returns a Manager writing to ledger.
func NewManager(ledger types.Ledger, logger *slog.Logger) *Manager {
	if logger == nil {
		logger = slog.Default()
	}
	return &Manager{ledger: ledger, logger: logger}
}

// StartCycle starts a cycle on today for userID with one task per spec
// that carries a title. Specs with a blank title are skipped. The claim
// on the user's cycle window, the tasks and today's pending completion
// rows are written in one transaction.
//
// It returns ErrValidation when no spec has a title or a title is too
// long, and ErrConflict when the user still has a task whose cycle has
// not ended.
func (m *Manager) StartCycle(ctx context.Context, userID string, specs []types.TaskSpec, today types.Date) (*Result, error) {
	valid, err := validateSpecs(specs)
	if err != nil {
		return nil, err
	}

	window := types.CycleBounds(today)
	result := &Result{Start: window.Start, End: window.End}

	err = m.ledger.Update(ctx, func(tx types.LedgerTx) error {
		active, err := tx.HasActiveTasks(ctx, userID, today)
		if err != nil {
			return err
		}
		if active {
			return types.Errorf(types.ErrConflict, "start cycle", "an active cycle already exists")
		}
		if err := tx.ClaimCycle(ctx, userID, window, today); err != nil {
			return err
		}

		tasks := make([]types.Task, 0, len(valid))
		for _, spec := range valid {
			task := &types.Task{
				UserID:      userID,
				Title:       spec.Title,
				Description: spec.Description,
				CycleStart:  window.Start,
				CycleEnd:    window.End,
			}
			if err := tx.InsertTask(ctx, task); err != nil {
				return err
			}
			if _, err := tx.EnsureCompletion(ctx, *task, today); err != nil {
				return err
			}
			tasks = append(tasks, *task)
		}
		result.Tasks = tasks
		return nil
	})
	if err != nil {
		return nil, types.Persistence("start cycle", err)
	}

	m.logger.Info("cycle started",
		"user_id", userID,
		"tasks", len(result.Tasks),
		"start", result.Start.String(),
		"end", result.End.String())
	return result, nil
}

// validateSpecs drops untitled specs and checks title lengths.
func validateSpecs(specs []types.TaskSpec) ([]types.TaskSpec, error) {
	if len(specs) == 0 {
		return nil, types.Errorf(types.ErrValidation, "start cycle", "at least one task is required")
	}
	valid := make([]types.TaskSpec, 0, len(specs))
	for i, spec := range specs {
		if !spec.HasTitle() {
			continue
		}
		spec = spec.Normalized()
		if utf8.RuneCountInString(spec.Title) > types.MaxTitleLength {
			return nil, types.Errorf(types.ErrValidation, "start cycle",
				"task %d: title exceeds %d characters", i+1, types.MaxTitleLength)
		}
		valid = append(valid, spec)
	}
	if len(valid) == 0 {
		return nil, types.Errorf(types.ErrValidation, "start cycle", "every task is missing a title")
	}
	return valid, nil
}
