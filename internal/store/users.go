package store

import (
	"context"
	"database/sql"
	"errors"

	"github.com/jmoiron/sqlx"

	"github.com/mesh-intelligence/rituo/pkg/types"
)

const userColumns = `user_id, username, email, password_hash, created_at,
	current_cycle_start_date, current_cycle_end_date`

// userRow mirrors the users table.
type userRow struct {
	UserID       string     `db:"user_id"`
	Username     string     `db:"username"`
	Email        string     `db:"email"`
	PasswordHash string     `db:"password_hash"`
	CreatedAt    string     `db:"created_at"`
	CycleStart   types.Date `db:"current_cycle_start_date"`
	CycleEnd     types.Date `db:"current_cycle_end_date"`
}

func (r userRow) hydrate() (*types.User, error) {
	created, err := parseTimestamp("created_at", r.CreatedAt)
	if err != nil {
		return nil, err
	}
	u := &types.User{
		UserID:       r.UserID,
		Username:     r.Username,
		Email:        r.Email,
		PasswordHash: r.PasswordHash,
		CreatedAt:    created,
	}
	if !r.CycleStart.IsZero() && !r.CycleEnd.IsZero() {
		u.Cycle = &types.CycleWindow{Start: r.CycleStart, End: r.CycleEnd}
	}
	return u, nil
}

// GetUser returns the user with the given ID.
func (b *Backend) GetUser(ctx context.Context, userID string) (*types.User, error) {
	db, err := b.handle()
	if err != nil {
		return nil, err
	}
	ctx, cancel := b.withTimeout(ctx)
	defer cancel()
	return getUser(ctx, db, "user_id", userID)
}

// GetUserByUsername returns the user registered under username.
func (b *Backend) GetUserByUsername(ctx context.Context, username string) (*types.User, error) {
	db, err := b.handle()
	if err != nil {
		return nil, err
	}
	ctx, cancel := b.withTimeout(ctx)
	defer cancel()
	return getUser(ctx, db, "username", username)
}

// getUser looks a user up by a unique column. column is never caller input.
func getUser(ctx context.Context, q sqlx.ExtContext, column, value string) (*types.User, error) {
	var row userRow
	query := q.Rebind(`SELECT ` + userColumns + ` FROM users WHERE ` + column + ` = ?`)
	if err := sqlx.GetContext(ctx, q, &row, query, value); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, types.Errorf(types.ErrNotFound, "get user", "user %s", value)
		}
		return nil, types.Persistence("get user", err)
	}
	return row.hydrate()
}

// CreateUser inserts u and assigns its ID and creation time.
func (b *Backend) CreateUser(ctx context.Context, u *types.User) error {
	db, err := b.handle()
	if err != nil {
		return err
	}
	ctx, cancel := b.withTimeout(ctx)
	defer cancel()

	var taken struct {
		Username string `db:"username"`
		Email    string `db:"email"`
	}
	err = db.GetContext(ctx, &taken,
		db.Rebind(`SELECT username, email FROM users WHERE username = ? OR email = ? LIMIT 1`),
		u.Username, u.Email)
	switch {
	case err == nil && taken.Username == u.Username:
		return types.Errorf(types.ErrConflict, "create user", "username %q already registered", u.Username)
	case err == nil:
		return types.Errorf(types.ErrConflict, "create user", "email %q already registered", u.Email)
	case !errors.Is(err, sql.ErrNoRows):
		return types.Persistence("create user", err)
	}

	created, stamp := b.timestamp()
	id := newID()
	_, err = db.ExecContext(ctx,
		db.Rebind(`INSERT INTO users (user_id, username, email, password_hash, created_at) VALUES (?, ?, ?, ?, ?)`),
		id, u.Username, u.Email, u.PasswordHash, stamp)
	if err != nil {
		if isUniqueViolation(err) {
			return types.Errorf(types.ErrConflict, "create user", "username or email already registered")
		}
		return types.Persistence("create user", err)
	}
	u.UserID = id
	u.CreatedAt = created
	u.Cycle = nil
	return nil
}

// UpdatePasswordHash replaces the stored hash for userID.
func (b *Backend) UpdatePasswordHash(ctx context.Context, userID, hash string) error {
	db, err := b.handle()
	if err != nil {
		return err
	}
	ctx, cancel := b.withTimeout(ctx)
	defer cancel()

	res, err := db.ExecContext(ctx, db.Rebind(`UPDATE users SET password_hash = ? WHERE user_id = ?`), hash, userID)
	if err != nil {
		return types.Persistence("update password", err)
	}
	return requireAffected(res, "update password", "user", userID)
}

// DeleteUser removes the user; foreign keys cascade to tasks,
// completions and notes.
func (b *Backend) DeleteUser(ctx context.Context, userID string) error {
	db, err := b.handle()
	if err != nil {
		return err
	}
	ctx, cancel := b.withTimeout(ctx)
	defer cancel()

	res, err := db.ExecContext(ctx, db.Rebind(`DELETE FROM users WHERE user_id = ?`), userID)
	if err != nil {
		return types.Persistence("delete user", err)
	}
	return requireAffected(res, "delete user", "user", userID)
}

// requireAffected turns a zero-row write into ErrNotFound.
func requireAffected(res sql.Result, op, entity, id string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return types.Persistence(op, err)
	}
	if n == 0 {
		return types.Errorf(types.ErrNotFound, op, "%s %s", entity, id)
	}
	return nil
}
