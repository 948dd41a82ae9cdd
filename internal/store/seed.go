package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/mesh-intelligence/rituo/pkg/types"
)

// Demo account layout: a cycle started halfway through with alternating
// completions on every elapsed day.
const (
	SeedUsername    = "seeduser"
	SeedEmail       = "seeduser@example.com"
	seedStartOffset = 15
	seedTaskCount   = 5
)

// SeedResult describes the demo account written by SeedHalfway.
type SeedResult struct {
	User        *types.User
	Tasks       []types.Task
	Completions int
}

// SeedHalfway creates the demo user with passwordHash, starts a cycle
// seedStartOffset days before today and records a completion row for each
// elapsed day, complete on even offsets. It fails with ErrConflict if the
// demo user already exists.
func SeedHalfway(ctx context.Context, ledger types.Ledger, passwordHash string, today types.Date) (SeedResult, error) {
	var result SeedResult

	user := &types.User{Username: SeedUsername, Email: SeedEmail, PasswordHash: passwordHash}
	if err := ledger.CreateUser(ctx, user); err != nil {
		return result, err
	}
	start := today.AddDays(-seedStartOffset)
	window := types.CycleBounds(start)

	err := ledger.Update(ctx, func(tx types.LedgerTx) error {
		if err := tx.ClaimCycle(ctx, user.UserID, window, today); err != nil {
			return err
		}
		result.Tasks = result.Tasks[:0]
		result.Completions = 0
		for i := 1; i <= seedTaskCount; i++ {
			task := &types.Task{
				UserID:      user.UserID,
				Title:       fmt.Sprintf("Daily Habit %d", i),
				Description: fmt.Sprintf("Description for habit %d", i),
				CycleStart:  window.Start,
				CycleEnd:    window.End,
			}
			if err := tx.InsertTask(ctx, task); err != nil {
				return err
			}
			for offset := 0; offset < seedStartOffset; offset++ {
				day := start.AddDays(offset)
				if _, err := tx.EnsureCompletion(ctx, *task, day); err != nil {
					return err
				}
				if offset%2 == 0 {
					if _, err := tx.ToggleCompletion(ctx, task.TaskID, day); err != nil {
						return err
					}
				}
				result.Completions++
			}
			result.Tasks = append(result.Tasks, *task)
		}
		return nil
	})
	if err != nil {
		if delErr := ledger.DeleteUser(ctx, user.UserID); delErr != nil {
			err = errors.Join(err, delErr)
		}
		return result, fmt.Errorf("seed demo cycle: %w", err)
	}

	user.Cycle = &window
	result.User = user
	return result, nil
}
