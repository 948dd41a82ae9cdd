// Package analytics derives read-only views from the ledger: cycle
// summary, daily heatmap, weekday and weekly trends, and per-task detail.
// Nothing here writes or caches; every view is recomputed from the raw
// completion rows on each call.
package analytics

import (
	"context"

	"github.com/mesh-intelligence/rituo/pkg/types"
)

// Engine computes analytics views for one user at a time.
type Engine struct {
	ledger types.LedgerReader
}

// NewEngine returns an Engine reading from ledger.
func NewEngine(ledger types.LedgerReader) *Engine {
	return &Engine{ledger: ledger}
}

// activeCycle is the user's active tasks with their completion rows from
// cycle start through today, indexed per task.
type activeCycle struct {
	tasks  []types.Task
	window types.CycleWindow
	rows   []types.Completion
	byTask map[string]types.CompletionSet
}

// loadActive returns nil when the user has no active task.
func (e *Engine) loadActive(ctx context.Context, userID string, today types.Date) (*activeCycle, error) {
	tasks, err := e.ledger.ListActiveTasks(ctx, userID, today)
	if err != nil {
		return nil, err
	}
	if len(tasks) == 0 {
		return nil, nil
	}

	// Tasks created together share bounds; the first one speaks for all.
	window := tasks[0].Window()
	ids := make([]string, len(tasks))
	for i, t := range tasks {
		ids[i] = t.TaskID
	}
	rows, err := e.ledger.ListCompletions(ctx, ids, window.Start, today)
	if err != nil {
		return nil, err
	}

	perTask := make(map[string][]types.Completion, len(tasks))
	for _, c := range rows {
		perTask[c.TaskID] = append(perTask[c.TaskID], c)
	}
	byTask := make(map[string]types.CompletionSet, len(tasks))
	for _, t := range tasks {
		byTask[t.TaskID] = types.NewCompletionSet(perTask[t.TaskID])
	}
	return &activeCycle{tasks: tasks, window: window, rows: rows, byTask: byTask}, nil
}

// Summary reports progress through the active cycle and per-task rates
// and streaks.
func (e *Engine) Summary(ctx context.Context, userID string, today types.Date) (*types.Summary, error) {
	cycle, err := e.loadActive(ctx, userID, today)
	if err != nil {
		return nil, err
	}
	if cycle == nil {
		return &types.Summary{HasActiveCycle: false, Tasks: []types.TaskStats{}}, nil
	}

	w := cycle.window
	elapsed := today.DaysSince(w.Start) + 1
	total := w.End.DaysSince(w.Start) + 1
	s := &types.Summary{
		HasActiveCycle:     true,
		CycleStart:         w.Start,
		CycleEnd:           w.End,
		DaysElapsed:        elapsed,
		DaysRemaining:      w.End.DaysSince(today),
		TotalDays:          total,
		ProgressPercentage: percent(elapsed, total),
		Tasks:              make([]types.TaskStats, 0, len(cycle.tasks)),
	}

	done := 0
	for _, t := range cycle.tasks {
		stats := taskStats(t, cycle.byTask[t.TaskID], w.Start, today, elapsed)
		done += stats.DaysCompleted
		s.Tasks = append(s.Tasks, stats)
	}
	s.OverallCompletionRate = percent(done, elapsed*len(cycle.tasks))
	return s, nil
}

// Heatmap lists every day from cycle start to today with the share of
// active tasks completed that day.
func (e *Engine) Heatmap(ctx context.Context, userID string, today types.Date) (*types.Heatmap, error) {
	cycle, err := e.loadActive(ctx, userID, today)
	if err != nil {
		return nil, err
	}
	if cycle == nil {
		return &types.Heatmap{HasActiveCycle: false, Days: []types.HeatmapDay{}}, nil
	}

	completed := make(map[types.Date]int)
	for _, c := range cycle.rows {
		if c.IsComplete {
			completed[c.Date]++
		}
	}

	n := len(cycle.tasks)
	days := make([]types.HeatmapDay, 0, today.DaysSince(cycle.window.Start)+1)
	for d := cycle.window.Start; !d.After(today); d = d.AddDays(1) {
		days = append(days, types.HeatmapDay{
			Date:           d,
			TotalTasks:     n,
			CompletedTasks: completed[d],
			CompletionRate: percent(completed[d], n),
		})
	}
	return &types.Heatmap{HasActiveCycle: true, Days: days}, nil
}

// Trends aggregates completion rows by weekday (Monday = 0) and by
// Monday-based calendar week.
func (e *Engine) Trends(ctx context.Context, userID string, today types.Date) (*types.Trends, error) {
	cycle, err := e.loadActive(ctx, userID, today)
	if err != nil {
		return nil, err
	}
	if cycle == nil {
		return &types.Trends{
			HasActiveCycle: false,
			DayOfWeek:      []types.WeekdayTrend{},
			Weekly:         []types.WeeklyTrend{},
		}, nil
	}
	return &types.Trends{
		HasActiveCycle: true,
		DayOfWeek:      weekdayTrend(cycle.rows),
		Weekly:         weeklyTrend(cycle, today),
	}, nil
}

// weekdayTrend buckets rows by weekday. The denominator is rows that
// exist, so days with no row at all do not count against the rate.
func weekdayTrend(rows []types.Completion) []types.WeekdayTrend {
	out := make([]types.WeekdayTrend, 7)
	for i := range out {
		out[i] = types.WeekdayTrend{Weekday: i, Day: types.WeekdayNames[i]}
	}
	for _, c := range rows {
		b := &out[c.Date.Weekday()]
		b.Total++
		if c.IsComplete {
			b.Completed++
		}
	}
	for i := range out {
		out[i].CompletionRate = percent(out[i].Completed, out[i].Total)
	}
	return out
}

// weeklyTrend walks Monday-based weeks from the week holding cycle start
// to the week holding today. Possible completions count only the days of
// each week inside [cycle start, today].
func weeklyTrend(cycle *activeCycle, today types.Date) []types.WeeklyTrend {
	start := cycle.window.Start
	n := len(cycle.tasks)

	var out []types.WeeklyTrend
	for ws := start.WeekStart(); !ws.After(today); ws = ws.AddDays(7) {
		we := types.MinDate(ws.AddDays(6), today)
		from := types.MaxDate(ws, start)
		days := we.DaysSince(from) + 1

		completed := 0
		for _, set := range cycle.byTask {
			completed += set.CountBetween(from, we)
		}
		possible := n * days
		out = append(out, types.WeeklyTrend{
			WeekStart:      ws,
			WeekEnd:        we,
			TotalPossible:  possible,
			TotalCompleted: completed,
			CompletionRate: percent(completed, possible),
		})
	}
	return out
}

// TaskDetail returns the day-by-day series of one task owned by userID.
// It works for ended cycles too; the series then stops at the cycle end.
func (e *Engine) TaskDetail(ctx context.Context, userID, taskID string, today types.Date) (*types.TaskDetail, error) {
	task, err := e.ledger.GetTask(ctx, userID, taskID)
	if err != nil {
		return nil, err
	}

	last := types.MinDate(today, task.CycleEnd)
	detail := &types.TaskDetail{Task: *task, Daily: []types.DailyStatus{}}
	if last.Before(task.CycleStart) {
		detail.Stats = types.TaskStats{TaskID: task.TaskID, Title: task.Title}
		return detail, nil
	}

	rows, err := e.ledger.ListCompletions(ctx, []string{taskID}, task.CycleStart, last)
	if err != nil {
		return nil, err
	}
	set := types.NewCompletionSet(rows)

	elapsed := last.DaysSince(task.CycleStart) + 1
	detail.DaysElapsed = elapsed
	detail.Stats = taskStats(*task, set, task.CycleStart, last, elapsed)
	detail.Daily = make([]types.DailyStatus, 0, elapsed)
	for d := task.CycleStart; !d.After(last); d = d.AddDays(1) {
		detail.Daily = append(detail.Daily, types.DailyStatus{Date: d, IsComplete: set.Done(d)})
	}
	return detail, nil
}

func taskStats(t types.Task, set types.CompletionSet, from, to types.Date, elapsed int) types.TaskStats {
	done := set.CountBetween(from, to)
	return types.TaskStats{
		TaskID:         t.TaskID,
		Title:          t.Title,
		DaysCompleted:  done,
		CompletionRate: percent(done, elapsed),
		CurrentStreak:  types.Streak(set, to),
	}
}

// percent returns part/whole as a percentage, or 0 when whole is 0.
func percent(part, whole int) float64 {
	if whole <= 0 {
		return 0
	}
	return float64(part) / float64(whole) * 100
}
