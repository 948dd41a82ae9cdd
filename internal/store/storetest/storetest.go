// Package storetest provides SQLite-backed ledgers for tests in other
// packages.
package storetest

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/mesh-intelligence/rituo/internal/store"
	"github.com/mesh-intelligence/rituo/pkg/types"
)

// New attaches a fresh SQLite ledger under t.TempDir and detaches it when
// the test ends.
func New(t testing.TB) *store.Backend {
	t.Helper()
	b := store.NewBackend()
	cfg := types.StoreConfig{
		Driver:       types.DriverSQLite,
		DataDir:      t.TempDir(),
		QueryTimeout: 5 * time.Second,
	}
	require.NoError(t, b.Attach(context.Background(), cfg))
	t.Cleanup(func() { b.Detach() })
	return b
}

// User registers a user named name with a placeholder hash.
func User(t testing.TB, ledger types.Ledger, name string) *types.User {
	t.Helper()
	u := &types.User{Username: name, Email: name + "@example.com", PasswordHash: "x"}
	require.NoError(t, ledger.CreateUser(context.Background(), u))
	return u
}
