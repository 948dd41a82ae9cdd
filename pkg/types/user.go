package types

import "time"

// User is an account that owns tasks. Credentials are owned by the
// identity adapter; the ledger only keeps the hash.
type User struct {
	UserID       string    `json:"id"`
	Username     string    `json:"username"`
	Email        string    `json:"email"`
	PasswordHash string    `json:"-"`
	CreatedAt    time.Time `json:"created_at"`

	// Cycle is the user's current cycle window; nil when the user has
	// never started one.
	Cycle *CycleWindow `json:"cycle,omitempty"`
}

// CycleWindow is the inclusive date range of a cycle.
type CycleWindow struct {
	Start Date `json:"start_date"`
	End   Date `json:"end_date"`
}

// Contains reports whether d falls inside the window.
func (w CycleWindow) Contains(d Date) bool {
	return !d.Before(w.Start) && !d.After(w.End)
}

// ActiveOn reports whether the window is still active on today
// (today <= End). Expiry is never stored; it is always derived.
func (w CycleWindow) ActiveOn(today Date) bool {
	return !today.After(w.End)
}
