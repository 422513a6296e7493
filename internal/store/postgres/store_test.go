package postgres

import (
	"context"
	"errors"
	"os"
	"testing"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/derekprior/fixtures/internal/league"
	"github.com/derekprior/fixtures/internal/store/storetest"
)

// newTestStore connects to FIXTURES_TEST_POSTGRES_DSN, skipping when unset.
// Tests share the database; storetest gives every competition a unique name.
func newTestStore(t *testing.T) *Store {
	t.Helper()

	url := os.Getenv("FIXTURES_TEST_POSTGRES_DSN")
	if url == "" {
		t.Skip("FIXTURES_TEST_POSTGRES_DSN not set")
	}
	s, err := Open(context.Background(), url)
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestStore(t *testing.T) {
	storetest.Run(t, func(t *testing.T) league.Store {
		return newTestStore(t)
	})
}

func TestMigrateURL(t *testing.T) {
	got, err := migrateURL("postgres://u:p@localhost:5432/fixtures?sslmode=disable")
	require.NoError(t, err)
	assert.Equal(t, "pgx5://u:p@localhost:5432/fixtures?sslmode=disable", got)

	got, err = migrateURL("postgresql://localhost/fixtures")
	require.NoError(t, err)
	assert.Equal(t, "pgx5://localhost/fixtures", got)

	_, err = migrateURL("host=localhost dbname=fixtures")
	assert.Error(t, err)
}

func TestClassify(t *testing.T) {
	assert.Nil(t, classify("op", nil))

	err := classify("op", &pgconn.PgError{Code: codeSerializationFailure})
	assert.True(t, league.IsTransient(err))

	err = classify("op", &pgconn.PgError{Code: codeDeadlockDetected})
	assert.True(t, league.IsTransient(err))

	err = classify("op", &pgconn.PgError{Code: codeUniqueViolation})
	assert.False(t, league.IsTransient(err))
	assert.True(t, isUniqueViolation(err))

	notFound := league.NotFound("op", "gone")
	assert.Same(t, notFound, classify("other", notFound))

	err = classify("op", errors.New("plain"))
	assert.False(t, league.IsTransient(err))
	assert.EqualError(t, err, "op: plain")
}
