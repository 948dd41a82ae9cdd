// Package types defines the entities, the civil Date type, the Ledger
// storage interfaces, analytics views and standard errors for Rituo.
//
// Users commit to a fixed 30-day cycle of tasks. Each task owns at most one
// Completion row per calendar date; that row is the unit every other
// package reads or writes.
package types
