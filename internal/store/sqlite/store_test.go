package sqlite

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/derekprior/fixtures/internal/league"
	"github.com/derekprior/fixtures/internal/store/storetest"
)

// newTestStore creates a temporary SQLite database with migrations applied.
func newTestStore(t *testing.T) *Store {
	t.Helper()

	s, err := Open(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("create test db: %v", err)
	}
	t.Cleanup(func() {
		_ = s.Close()
	})
	return s
}

func TestStore(t *testing.T) {
	storetest.Run(t, func(t *testing.T) league.Store {
		return newTestStore(t)
	})
}

func TestOpenIsIdempotent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "fixtures.db")
	s, err := Open(path)
	require.NoError(t, err)
	require.NoError(t, s.Close())

	s, err = Open(path)
	require.NoError(t, err)
	require.NoError(t, s.Close())
}

func TestDSN(t *testing.T) {
	assert.Equal(t, "a.db?_fk=1&_busy_timeout=5000&_journal_mode=WAL&_txlock=immediate", dsn("a.db"))
	assert.Equal(t, "a.db?_fk=0&_busy_timeout=5000&_journal_mode=WAL&_txlock=immediate", dsn("a.db?_fk=0"))
}
