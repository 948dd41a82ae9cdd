package types

// Analytics views. All rates are percentages in [0, 100].

// TaskStats are the per-task figures shared by Summary and TaskDetail.
type TaskStats struct {
	TaskID         string  `json:"task_id"`
	Title          string  `json:"title"`
	DaysCompleted  int     `json:"days_completed"`
	CompletionRate float64 `json:"completion_rate"`
	CurrentStreak  int     `json:"current_streak"`
}

// Summary describes the user's active cycle to date.
type Summary struct {
	HasActiveCycle        bool        `json:"has_active_cycle"`
	CycleStart            Date        `json:"cycle_start_date,omitzero"`
	CycleEnd              Date        `json:"cycle_end_date,omitzero"`
	DaysElapsed           int         `json:"days_elapsed"`
	DaysRemaining         int         `json:"days_remaining"`
	TotalDays             int         `json:"total_days"`
	ProgressPercentage    float64     `json:"progress_percentage"`
	OverallCompletionRate float64     `json:"overall_completion_rate"`
	Tasks                 []TaskStats `json:"tasks_stats"`
}

// HeatmapDay is one calendar day of the active cycle.
type HeatmapDay struct {
	Date           Date    `json:"date"`
	TotalTasks     int     `json:"total_tasks"`
	CompletedTasks int     `json:"completed_tasks"`
	CompletionRate float64 `json:"completion_rate"`
}

// Heatmap lists every day from cycle start to today.
type Heatmap struct {
	HasActiveCycle bool         `json:"has_active_cycle"`
	Days           []HeatmapDay `json:"heatmap_data"`
}

// WeekdayTrend aggregates completion rows falling on one weekday.
type WeekdayTrend struct {
	Weekday        int     `json:"weekday"`
	Day            string  `json:"day"`
	Total          int     `json:"total"`
	Completed      int     `json:"completed"`
	CompletionRate float64 `json:"completion_rate"`
}

// WeeklyTrend aggregates one Monday-based calendar week.
type WeeklyTrend struct {
	WeekStart      Date    `json:"week_start"`
	WeekEnd        Date    `json:"week_end"`
	TotalPossible  int     `json:"total_possible"`
	TotalCompleted int     `json:"total_completed"`
	CompletionRate float64 `json:"completion_rate"`
}

// Trends holds the weekday and weekly aggregations.
type Trends struct {
	HasActiveCycle bool           `json:"has_active_cycle"`
	DayOfWeek      []WeekdayTrend `json:"day_of_week_trend"`
	Weekly         []WeeklyTrend  `json:"weekly_trend"`
}

// DailyStatus is one day of a task's series.
type DailyStatus struct {
	Date       Date `json:"date"`
	IsComplete bool `json:"is_complete"`
}

// TaskDetail is the day-by-day view of a single task.
type TaskDetail struct {
	Task        Task          `json:"task"`
	Stats       TaskStats     `json:"stats"`
	DaysElapsed int           `json:"days_elapsed"`
	Daily       []DailyStatus `json:"daily_data"`
}

// WeekdayNames maps the Monday = 0 index to a name.
var WeekdayNames = [7]string{
	"Monday", "Tuesday", "Wednesday", "Thursday", "Friday", "Saturday", "Sunday",
}
