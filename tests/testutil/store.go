package testutil

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/nhle/bugtracker/internal/session"
	"github.com/nhle/bugtracker/internal/store"
)

// NewSessionStore opens an in-memory session database that lives for the
// duration of one test.
func NewSessionStore(t *testing.T) *store.SQLiteStore {
	t.Helper()

	s, err := store.NewSQLiteStore(":memory:")
	require.NoError(t, err, "opening session store")
	t.Cleanup(func() { _ = s.Close() })
	return s
}

// NewSessions returns a session manager over a fresh in-memory store.
func NewSessions(t *testing.T, opts ...session.Option) *session.Manager {
	t.Helper()
	return session.NewManager(NewSessionStore(t), opts...)
}
