package store

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"xaddonmgr/pkg/db"
)

func newTestStore(t *testing.T) *SQLiteStore {
	t.Helper()
	d, err := db.Init(filepath.Join(t.TempDir(), "audit.db"))
	require.NoError(t, err)
	s := NewSQLiteStore(d)
	t.Cleanup(func() { s.Close() })
	return s
}

func TestRecordAndRecent(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.Record(ctx, "load", "42 packs"))
	require.NoError(t, s.Record(ctx, "sort", "42 packs"))
	require.NoError(t, s.Record(ctx, "save", "42 packs"))

	ops, err := s.Recent(ctx, 10)
	require.NoError(t, err)
	require.Len(t, ops, 3)
	for _, o := range ops {
		assert.NotEmpty(t, o.ID)
		assert.False(t, o.CreatedAt.IsZero())
	}
}

func TestRecentHonoursLimit(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	for i := 0; i < 5; i++ {
		require.NoError(t, s.Record(ctx, "validate", "no issues"))
	}
	ops, err := s.Recent(ctx, 2)
	require.NoError(t, err)
	assert.Len(t, ops, 2)
}
