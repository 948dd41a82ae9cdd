package types

import "context"

// Ledger is the durable store of users, tasks, completions and notes.
// Every method honours ctx for cancellation and query timeouts.
type Ledger interface {
	LedgerReader

	// InsertCompletion inserts c. It returns ErrDuplicateRace when a row
	// for (c.TaskID, c.Date) already exists.
	InsertCompletion(ctx context.Context, c *Completion) error

	// EnsureCompletion creates a pending row for (task, date) unless one
	// exists. It never modifies an existing row and reports whether it
	// created one.
	EnsureCompletion(ctx context.Context, task Task, date Date) (bool, error)

	// Update runs fn inside one transaction. Any error returned by fn, or
	// a failed commit, rolls back every write fn made.
	Update(ctx context.Context, fn func(tx LedgerTx) error) error

	// CreateUser inserts u, assigning an ID. Duplicate username or email
	// returns ErrConflict.
	CreateUser(ctx context.Context, u *User) error

	// UpdatePasswordHash replaces the stored credential hash.
	UpdatePasswordHash(ctx context.Context, userID, hash string) error

	// DeleteUser removes the user and, by cascade, every task, completion
	// and note the user owns.
	DeleteUser(ctx context.Context, userID string) error

	// AddNote inserts n, assigning an ID and timestamp.
	AddNote(ctx context.Context, n *TaskNote) error
}

// LedgerReader is the read-only half of Ledger. Analytics depends on this
// alone.
type LedgerReader interface {
	GetUser(ctx context.Context, userID string) (*User, error)
	GetUserByUsername(ctx context.Context, username string) (*User, error)

	// GetTask returns the task only if it belongs to userID.
	GetTask(ctx context.Context, userID, taskID string) (*Task, error)
	GetTaskByID(ctx context.Context, taskID string) (*Task, error)

	// ListActiveTasks returns the user's tasks with CycleEnd >= today.
	ListActiveTasks(ctx context.Context, userID string, today Date) ([]Task, error)
	// ListExpiredTasks returns the user's tasks with CycleEnd < today,
	// most recently ended first.
	ListExpiredTasks(ctx context.Context, userID string, today Date) ([]Task, error)
	// ListAllActiveTasks returns every user's tasks with CycleEnd >= today.
	ListAllActiveTasks(ctx context.Context, today Date) ([]Task, error)

	GetCompletion(ctx context.Context, taskID string, date Date) (*Completion, error)
	// ListCompletions returns rows of the given tasks dated in [from, to],
	// ordered by date.
	ListCompletions(ctx context.Context, taskIDs []string, from, to Date) ([]Completion, error)
	// ListTaskHistory returns every row of one task ordered by date.
	ListTaskHistory(ctx context.Context, taskID string) ([]Completion, error)

	ListNotes(ctx context.Context, taskID string) ([]TaskNote, error)
}

// LedgerTx is the set of writes that must happen atomically.
type LedgerTx interface {
	// HasActiveTasks reports whether the user owns a task with
	// CycleEnd >= today.
	HasActiveTasks(ctx context.Context, userID string, today Date) (bool, error)

	// ClaimCycle sets the user's cycle window only if the current window
	// is absent or ended before today. It returns ErrConflict when
	// another cycle is active and ErrNotFound for an unknown user.
	ClaimCycle(ctx context.Context, userID string, w CycleWindow, today Date) error

	// InsertTask inserts t, assigning an ID and creation time.
	InsertTask(ctx context.Context, t *Task) error

	GetTask(ctx context.Context, userID, taskID string) (*Task, error)

	// EnsureCompletion creates a pending row for (task, date) if missing.
	EnsureCompletion(ctx context.Context, task Task, date Date) (bool, error)

	// ToggleCompletion flips is_complete on the existing (taskID, date)
	// row and returns the new value.
	ToggleCompletion(ctx context.Context, taskID string, date Date) (bool, error)
}
