package types

// Completion records whether a task was done on one calendar date.
// (TaskID, Date) is unique across the ledger.
type Completion struct {
	CompletionID string `json:"id"`
	TaskID       string `json:"task_id"`
	UserID       string `json:"user_id"`
	Date         Date   `json:"completion_date"`
	IsComplete   bool   `json:"is_complete"`
}

// CompletionSet indexes the true completions of one task by date.
// A missing date and a false row are the same thing: not done.
type CompletionSet map[Date]bool

// NewCompletionSet builds a set from rows of a single task.
func NewCompletionSet(rows []Completion) CompletionSet {
	set := make(CompletionSet, len(rows))
	for _, c := range rows {
		if c.IsComplete {
			set[c.Date] = true
		}
	}
	return set
}

// Done reports whether the task was completed on d.
func (s CompletionSet) Done(d Date) bool { return s[d] }

// CountBetween counts completed days in [from, to].
func (s CompletionSet) CountBetween(from, to Date) int {
	n := 0
	for d, done := range s {
		if done && !d.Before(from) && !d.After(to) {
			n++
		}
	}
	return n
}

// Streak counts consecutive completed days walking backward from asOf.
// It stops at the first day that is not done, so a false or missing row
// on asOf yields 0 regardless of earlier days.
func Streak(set CompletionSet, asOf Date) int {
	n := 0
	for d := asOf; set.Done(d); d = d.AddDays(-1) {
		n++
	}
	return n
}
