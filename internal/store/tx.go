package store

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/mesh-intelligence/rituo/pkg/types"
)

// Update runs fn inside a single transaction. Every statement fn issues
// goes through the transaction; with SQLite's single connection a query
// on the pool from inside fn would block until the transaction ends.
func (b *Backend) Update(ctx context.Context, fn func(tx types.LedgerTx) error) error {
	db, err := b.handle()
	if err != nil {
		return err
	}
	ctx, cancel := b.withTimeout(ctx)
	defer cancel()

	tx, err := db.BeginTxx(ctx, nil)
	if err != nil {
		return types.Persistence("begin transaction", err)
	}
	defer tx.Rollback()

	if err := fn(&ledgerTx{backend: b, tx: tx}); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return types.Persistence("commit transaction", fmt.Errorf("committing: %w", err))
	}
	return nil
}

// ledgerTx implements types.LedgerTx over one open transaction.
type ledgerTx struct {
	backend *Backend
	tx      *sqlx.Tx
}

var _ types.LedgerTx = (*ledgerTx)(nil)

func (t *ledgerTx) HasActiveTasks(ctx context.Context, userID string, today types.Date) (bool, error) {
	return hasActiveTasks(ctx, t.tx, userID, today)
}

func (t *ledgerTx) ClaimCycle(ctx context.Context, userID string, w types.CycleWindow, today types.Date) error {
	return claimCycle(ctx, t.tx, userID, w, today)
}

func (t *ledgerTx) InsertTask(ctx context.Context, task *types.Task) error {
	return t.backend.insertTask(ctx, t.tx, task)
}

func (t *ledgerTx) GetTask(ctx context.Context, userID, taskID string) (*types.Task, error) {
	return getTask(ctx, t.tx, userID, taskID)
}

func (t *ledgerTx) EnsureCompletion(ctx context.Context, task types.Task, date types.Date) (bool, error) {
	return ensureCompletion(ctx, t.tx, task, date)
}

func (t *ledgerTx) ToggleCompletion(ctx context.Context, taskID string, date types.Date) (bool, error) {
	return toggleCompletion(ctx, t.tx, taskID, date)
}
