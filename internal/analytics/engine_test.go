package analytics

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mesh-intelligence/rituo/internal/completion"
	"github.com/mesh-intelligence/rituo/internal/cycle"
	"github.com/mesh-intelligence/rituo/internal/store/storetest"
	"github.com/mesh-intelligence/rituo/pkg/types"
)

// monday is the first day of a Monday-based week.
var monday = types.MustParseDate("2026-06-01")

type fixture struct {
	ledger     types.Ledger
	analytics  *Engine
	completion *completion.Engine
	user       *types.User
	tasks      []types.Task
}

func newFixture(t *testing.T, start types.Date, titles ...string) *fixture {
	t.Helper()
	ledger := storetest.New(t)
	u := storetest.User(t, ledger, "alice")

	specs := make([]types.TaskSpec, len(titles))
	for i, title := range titles {
		specs[i] = types.TaskSpec{Title: title}
	}
	res, err := cycle.NewManager(ledger, nil).StartCycle(context.Background(), u.UserID, specs, start)
	require.NoError(t, err)

	return &fixture{
		ledger:     ledger,
		analytics:  NewEngine(ledger),
		completion: completion.NewEngine(ledger, nil),
		user:       u,
		tasks:      res.Tasks,
	}
}

func (f *fixture) complete(t *testing.T, task types.Task, days ...types.Date) {
	t.Helper()
	for _, d := range days {
		v, err := f.completion.ToggleCompletion(context.Background(), f.user.UserID, task.TaskID, d)
		require.NoError(t, err)
		require.True(t, v)
	}
}

// threeDayCycle is two tasks on day three of a cycle: the first never
// done, the second done every day.
func threeDayCycle(t *testing.T) (*fixture, types.Date) {
	f := newFixture(t, monday, "Never", "Always")
	today := monday.AddDays(2)
	f.complete(t, f.tasks[1], monday, monday.AddDays(1), today)
	return f, today
}

func TestHeatmap(t *testing.T) {
	f, today := threeDayCycle(t)

	h, err := f.analytics.Heatmap(context.Background(), f.user.UserID, today)
	require.NoError(t, err)
	require.True(t, h.HasActiveCycle)
	require.Len(t, h.Days, 3)

	var rates []float64
	for i, d := range h.Days {
		assert.Equal(t, monday.AddDays(i), d.Date)
		assert.Equal(t, 2, d.TotalTasks)
		assert.Equal(t, 1, d.CompletedTasks)
		rates = append(rates, d.CompletionRate)
	}
	assert.Equal(t, []float64{50, 50, 50}, rates)
}

func TestSummary(t *testing.T) {
	f, today := threeDayCycle(t)

	s, err := f.analytics.Summary(context.Background(), f.user.UserID, today)
	require.NoError(t, err)

	assert.True(t, s.HasActiveCycle)
	assert.Equal(t, monday, s.CycleStart)
	assert.Equal(t, monday.AddDays(30), s.CycleEnd)
	assert.Equal(t, 3, s.DaysElapsed)
	assert.Equal(t, 28, s.DaysRemaining)
	assert.Equal(t, 31, s.TotalDays)
	assert.InDelta(t, 3.0/31*100, s.ProgressPercentage, 1e-9)
	assert.InDelta(t, 50.0, s.OverallCompletionRate, 1e-9)

	require.Len(t, s.Tasks, 2)
	never, always := s.Tasks[0], s.Tasks[1]
	assert.Equal(t, "Never", never.Title)
	assert.Equal(t, 0, never.DaysCompleted)
	assert.Equal(t, 0.0, never.CompletionRate)
	assert.Equal(t, 0, never.CurrentStreak)

	assert.Equal(t, "Always", always.Title)
	assert.Equal(t, 3, always.DaysCompleted)
	assert.InDelta(t, 100.0, always.CompletionRate, 1e-9)
	assert.Equal(t, 3, always.CurrentStreak)
}

func TestTrends(t *testing.T) {
	f, today := threeDayCycle(t)

	tr, err := f.analytics.Trends(context.Background(), f.user.UserID, today)
	require.NoError(t, err)
	require.True(t, tr.HasActiveCycle)

	require.Len(t, tr.DayOfWeek, 7)
	mon, tue, wed, sun := tr.DayOfWeek[0], tr.DayOfWeek[1], tr.DayOfWeek[2], tr.DayOfWeek[6]
	assert.Equal(t, "Monday", mon.Day)
	assert.Equal(t, 2, mon.Total, "both tasks have a row on the start day")
	assert.Equal(t, 1, mon.Completed)
	assert.InDelta(t, 50.0, mon.CompletionRate, 1e-9)
	assert.Equal(t, 1, tue.Total)
	assert.InDelta(t, 100.0, tue.CompletionRate, 1e-9)
	assert.Equal(t, 1, wed.Completed)
	assert.Equal(t, "Sunday", sun.Day)
	assert.Equal(t, 0, sun.Total)
	assert.Equal(t, 0.0, sun.CompletionRate)

	require.Len(t, tr.Weekly, 1)
	week := tr.Weekly[0]
	assert.Equal(t, monday, week.WeekStart)
	assert.Equal(t, today, week.WeekEnd, "week end is clipped to today")
	assert.Equal(t, 6, week.TotalPossible)
	assert.Equal(t, 3, week.TotalCompleted)
	assert.InDelta(t, 50.0, week.CompletionRate, 1e-9)
}

func TestWeeklyTrendClipsToCycleStart(t *testing.T) {
	thursday := monday.AddDays(3)
	f := newFixture(t, thursday, "Read", "Run")
	nextTuesday := monday.AddDays(8)
	f.complete(t, f.tasks[0], thursday, monday.AddDays(4), monday.AddDays(7), nextTuesday)

	tr, err := f.analytics.Trends(context.Background(), f.user.UserID, nextTuesday)
	require.NoError(t, err)
	require.Len(t, tr.Weekly, 2)

	first, second := tr.Weekly[0], tr.Weekly[1]
	assert.Equal(t, monday, first.WeekStart, "weeks start on Monday even before the cycle")
	assert.Equal(t, monday.AddDays(6), first.WeekEnd)
	assert.Equal(t, 2*4, first.TotalPossible, "Thursday through Sunday only")
	assert.Equal(t, 2, first.TotalCompleted)
	assert.InDelta(t, 25.0, first.CompletionRate, 1e-9)

	assert.Equal(t, monday.AddDays(7), second.WeekStart)
	assert.Equal(t, nextTuesday, second.WeekEnd)
	assert.Equal(t, 2*2, second.TotalPossible)
	assert.Equal(t, 2, second.TotalCompleted)
}

func TestNoActiveCycle(t *testing.T) {
	ledger := storetest.New(t)
	ctx := context.Background()
	u := storetest.User(t, ledger, "alice")
	e := NewEngine(ledger)

	s, err := e.Summary(ctx, u.UserID, monday)
	require.NoError(t, err)
	assert.False(t, s.HasActiveCycle)
	assert.Empty(t, s.Tasks)

	h, err := e.Heatmap(ctx, u.UserID, monday)
	require.NoError(t, err)
	assert.False(t, h.HasActiveCycle)
	assert.Empty(t, h.Days)

	tr, err := e.Trends(ctx, u.UserID, monday)
	require.NoError(t, err)
	assert.False(t, tr.HasActiveCycle)
}

func TestNoActiveCycleAfterExpiry(t *testing.T) {
	f, _ := threeDayCycle(t)
	s, err := f.analytics.Summary(context.Background(), f.user.UserID, monday.AddDays(31))
	require.NoError(t, err)
	assert.False(t, s.HasActiveCycle)
}

func TestTaskDetail(t *testing.T) {
	f, today := threeDayCycle(t)
	ctx := context.Background()

	d, err := f.analytics.TaskDetail(ctx, f.user.UserID, f.tasks[1].TaskID, today)
	require.NoError(t, err)
	assert.Equal(t, "Always", d.Task.Title)
	assert.Equal(t, 3, d.DaysElapsed)
	assert.Equal(t, 3, d.Stats.DaysCompleted)
	assert.Equal(t, 3, d.Stats.CurrentStreak)
	require.Len(t, d.Daily, 3)
	for _, day := range d.Daily {
		assert.True(t, day.IsComplete)
	}

	d, err = f.analytics.TaskDetail(ctx, f.user.UserID, f.tasks[0].TaskID, today)
	require.NoError(t, err)
	assert.Equal(t, 0, d.Stats.DaysCompleted)
	require.Len(t, d.Daily, 3)
	assert.False(t, d.Daily[0].IsComplete, "pending row reads as not done")
	assert.False(t, d.Daily[2].IsComplete, "missing row reads as not done")
}

func TestTaskDetailExpiredTask(t *testing.T) {
	f, _ := threeDayCycle(t)
	later := monday.AddDays(45)

	d, err := f.analytics.TaskDetail(context.Background(), f.user.UserID, f.tasks[1].TaskID, later)
	require.NoError(t, err)
	assert.Equal(t, 31, d.DaysElapsed, "series stops at cycle end")
	require.Len(t, d.Daily, 31)
	assert.Equal(t, monday.AddDays(30), d.Daily[30].Date)
	assert.Equal(t, 3, d.Stats.DaysCompleted)
	assert.Equal(t, 0, d.Stats.CurrentStreak)
	assert.InDelta(t, 3.0/31*100, d.Stats.CompletionRate, 1e-9)
}

func TestTaskDetailScopedToOwner(t *testing.T) {
	f, today := threeDayCycle(t)
	other := storetest.User(t, f.ledger, "mallory")

	_, err := f.analytics.TaskDetail(context.Background(), other.UserID, f.tasks[0].TaskID, today)
	assert.ErrorIs(t, err, types.ErrNotFound)
}
