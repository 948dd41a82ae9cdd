package types

import (
	"strings"
	"time"
)

// CycleLengthDays is the fixed offset from cycle start to cycle end.
// A cycle started on day D ends on D+30, so it spans 31 calendar days.
const CycleLengthDays = 30

// MaxTitleLength bounds task titles.
const MaxTitleLength = 100

// CycleBounds returns the window of a cycle started on today.
func CycleBounds(today Date) CycleWindow {
	return CycleWindow{Start: today, End: today.AddDays(CycleLengthDays)}
}

// Task is one habit tracked daily for the length of a cycle. Title and
// description are immutable. The cycle bounds are copied from the user's
// cycle when the task is created; every task created together shares them.
type Task struct {
	TaskID      string    `json:"id"`
	UserID      string    `json:"user_id"`
	Title       string    `json:"title"`
	Description string    `json:"description"`
	CreatedAt   time.Time `json:"created_at"`
	CycleStart  Date      `json:"cycle_start_date"`
	CycleEnd    Date      `json:"cycle_end_date"`
}

// Window returns the task's cycle window.
func (t Task) Window() CycleWindow {
	return CycleWindow{Start: t.CycleStart, End: t.CycleEnd}
}

// ActiveOn reports whether the task's cycle is still running on today.
func (t Task) ActiveOn(today Date) bool {
	return t.Window().ActiveOn(today)
}

// TaskSpec is the caller's description of a task to create.
type TaskSpec struct {
	Title       string `json:"title"`
	Description string `json:"description,omitempty"`
}

// Normalized returns a copy with surrounding whitespace removed.
func (s TaskSpec) Normalized() TaskSpec {
	return TaskSpec{
		Title:       strings.TrimSpace(s.Title),
		Description: strings.TrimSpace(s.Description),
	}
}

// HasTitle reports whether s carries a non-blank title. Entries
// without one are skipped when a cycle starts.
func (s TaskSpec) HasTitle() bool {
	return strings.TrimSpace(s.Title) != ""
}

// TaskNote is a free-text, timestamped annotation on a task.
type TaskNote struct {
	NoteID    string    `json:"id"`
	TaskID    string    `json:"task_id"`
	UserID    string    `json:"user_id"`
	Note      string    `json:"note"`
	CreatedAt time.Time `json:"created_at"`
}
