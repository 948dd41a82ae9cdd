package completion

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mesh-intelligence/rituo/internal/cycle"
	"github.com/mesh-intelligence/rituo/internal/store/storetest"
	"github.com/mesh-intelligence/rituo/pkg/types"
)

var day0 = types.MustParseDate("2026-04-01")

type fixture struct {
	ledger types.Ledger
	engine *Engine
	user   *types.User
	tasks  []types.Task
}

func newFixture(t *testing.T, titles ...string) *fixture {
	t.Helper()
	ledger := storetest.New(t)
	u := storetest.User(t, ledger, "alice")

	specs := make([]types.TaskSpec, len(titles))
	for i, title := range titles {
		specs[i] = types.TaskSpec{Title: title}
	}
	res, err := cycle.NewManager(ledger, nil).StartCycle(context.Background(), u.UserID, specs, day0)
	require.NoError(t, err)

	return &fixture{ledger: ledger, engine: NewEngine(ledger, nil), user: u, tasks: res.Tasks}
}

func TestToggleIsItsOwnInverse(t *testing.T) {
	f := newFixture(t, "Read")
	ctx := context.Background()
	task := f.tasks[0]

	first, err := f.engine.ToggleCompletion(ctx, f.user.UserID, task.TaskID, day0)
	require.NoError(t, err)
	assert.True(t, first)

	second, err := f.engine.ToggleCompletion(ctx, f.user.UserID, task.TaskID, day0)
	require.NoError(t, err)
	assert.False(t, second)

	c, err := f.ledger.GetCompletion(ctx, task.TaskID, day0)
	require.NoError(t, err)
	assert.False(t, c.IsComplete)
}

func TestToggleCreatesMissingRow(t *testing.T) {
	f := newFixture(t, "Read")
	ctx := context.Background()
	day3 := day0.AddDays(3)

	v, err := f.engine.ToggleCompletion(ctx, f.user.UserID, f.tasks[0].TaskID, day3)
	require.NoError(t, err)
	assert.True(t, v)

	c, err := f.ledger.GetCompletion(ctx, f.tasks[0].TaskID, day3)
	require.NoError(t, err)
	assert.True(t, c.IsComplete)
}

func TestToggleErrors(t *testing.T) {
	f := newFixture(t, "Read")
	ctx := context.Background()
	other := storetest.User(t, f.ledger, "mallory")
	task := f.tasks[0]

	t.Run("unknown task", func(t *testing.T) {
		_, err := f.engine.ToggleCompletion(ctx, f.user.UserID, "missing", day0)
		assert.ErrorIs(t, err, types.ErrNotFound)
	})

	t.Run("task of another user", func(t *testing.T) {
		_, err := f.engine.ToggleCompletion(ctx, other.UserID, task.TaskID, day0)
		assert.ErrorIs(t, err, types.ErrNotFound)
	})

	t.Run("after cycle end creates no row", func(t *testing.T) {
		late := task.CycleEnd.AddDays(1)
		_, err := f.engine.ToggleCompletion(ctx, f.user.UserID, task.TaskID, late)
		assert.ErrorIs(t, err, types.ErrExpiredCycle)

		_, err = f.ledger.GetCompletion(ctx, task.TaskID, late)
		assert.ErrorIs(t, err, types.ErrNotFound)
	})

	t.Run("last day is still allowed", func(t *testing.T) {
		_, err := f.engine.ToggleCompletion(ctx, f.user.UserID, task.TaskID, task.CycleEnd)
		assert.NoError(t, err)
	})
}

func TestConcurrentTogglesKeepOneRow(t *testing.T) {
	f := newFixture(t, "Read")
	ctx := context.Background()
	task := f.tasks[0]
	day := day0.AddDays(1)

	const toggles = 9
	var wg sync.WaitGroup
	for i := 0; i < toggles; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := f.engine.ToggleCompletion(ctx, f.user.UserID, task.TaskID, day)
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	history, err := f.ledger.ListTaskHistory(ctx, task.TaskID)
	require.NoError(t, err)
	var onDay []types.Completion
	for _, c := range history {
		if c.Date.Equal(day) {
			onDay = append(onDay, c)
		}
	}
	require.Len(t, onDay, 1)
	assert.True(t, onDay[0].IsComplete, "an odd number of flips ends complete")
}

// racyLedger hides the first lookups of a completion row so that
// GetOrCreateCompletion runs into the unique constraint, as it would when
// another request inserts the row between its read and its insert.
type racyLedger struct {
	types.Ledger
	mu     sync.Mutex
	misses int
}

func (r *racyLedger) GetCompletion(ctx context.Context, taskID string, date types.Date) (*types.Completion, error) {
	r.mu.Lock()
	miss := r.misses > 0
	if miss {
		r.misses--
	}
	r.mu.Unlock()
	if miss {
		return nil, types.Errorf(types.ErrNotFound, "get completion", "task %s", taskID)
	}
	return r.Ledger.GetCompletion(ctx, taskID, date)
}

func TestGetOrCreateCompletion(t *testing.T) {
	f := newFixture(t, "Read")
	ctx := context.Background()
	task := f.tasks[0]

	t.Run("existing row", func(t *testing.T) {
		c, err := f.engine.GetOrCreateCompletion(ctx, task, day0)
		require.NoError(t, err)
		assert.Equal(t, day0, c.Date)
		assert.False(t, c.IsComplete)
	})

	t.Run("creates missing row once", func(t *testing.T) {
		day := day0.AddDays(2)
		first, err := f.engine.GetOrCreateCompletion(ctx, task, day)
		require.NoError(t, err)
		second, err := f.engine.GetOrCreateCompletion(ctx, task, day)
		require.NoError(t, err)
		assert.Equal(t, first.CompletionID, second.CompletionID)
	})

	t.Run("duplicate insert falls back to read", func(t *testing.T) {
		day := day0.AddDays(4)
		_, err := f.ledger.EnsureCompletion(ctx, task, day)
		require.NoError(t, err)
		_, err = f.engine.ToggleCompletion(ctx, f.user.UserID, task.TaskID, day)
		require.NoError(t, err)

		racy := &racyLedger{Ledger: f.ledger, misses: 1}
		c, err := NewEngine(racy, nil).GetOrCreateCompletion(ctx, task, day)
		require.NoError(t, err)
		assert.True(t, c.IsComplete, "the concurrently written row is returned")
	})
}

func TestStreakAcrossRollover(t *testing.T) {
	f := newFixture(t, "Read", "Run")
	ctx := context.Background()
	day1 := day0.AddDays(1)

	for _, task := range f.tasks {
		_, err := f.engine.ToggleCompletion(ctx, f.user.UserID, task.TaskID, day0)
		require.NoError(t, err)
	}
	for _, task := range f.tasks {
		n, err := f.engine.CurrentStreak(ctx, task.TaskID, day0)
		require.NoError(t, err)
		assert.Equal(t, 1, n)
	}

	// Rollover materializes pending rows for day 1.
	active, err := f.ledger.ListAllActiveTasks(ctx, day1)
	require.NoError(t, err)
	for _, task := range active {
		_, err := f.ledger.EnsureCompletion(ctx, task, day1)
		require.NoError(t, err)
	}
	for _, task := range f.tasks {
		n, err := f.engine.CurrentStreak(ctx, task.TaskID, day1)
		require.NoError(t, err)
		assert.Equal(t, 0, n, "pending row for today breaks the streak")
	}

	for _, task := range f.tasks {
		_, err := f.engine.ToggleCompletion(ctx, f.user.UserID, task.TaskID, day1)
		require.NoError(t, err)
		n, err := f.engine.CurrentStreak(ctx, task.TaskID, day1)
		require.NoError(t, err)
		assert.Equal(t, 2, n)
	}
}

func TestTodayStatus(t *testing.T) {
	f := newFixture(t, "Read", "Run")
	ctx := context.Background()

	_, err := f.engine.ToggleCompletion(ctx, f.user.UserID, f.tasks[1].TaskID, day0)
	require.NoError(t, err)

	tasks, done, err := f.engine.TodayStatus(ctx, f.user.UserID, day0)
	require.NoError(t, err)
	require.Len(t, tasks, 2)
	assert.False(t, done[f.tasks[0].TaskID])
	assert.True(t, done[f.tasks[1].TaskID])

	_, done, err = f.engine.TodayStatus(ctx, f.user.UserID, day0.AddDays(1))
	require.NoError(t, err)
	assert.Empty(t, done, "no rows yet for tomorrow")
}
