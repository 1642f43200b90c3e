package store

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openTest(t *testing.T) *Store {
	t.Helper()

	s, err := Open(filepath.Join(t.TempDir(), "nested", "cache.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func TestGetPut(t *testing.T) {
	s := openTest(t)
	ctx := t.Context()

	_, ok, err := s.Get(ctx, "d", "base", []string{"l2_norm"})
	require.NoError(t, err)
	assert.False(t, ok, "leerer Cache sollte keinen Treffer liefern")

	require.NoError(t, s.Put(ctx, "d", "base", map[string]float64{"l2_norm": 1.5, "max": 3}))

	got, ok, err := s.Get(ctx, "d", "base", []string{"l2_norm", "max", "l2_norm"})
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, map[string]float64{"l2_norm": 1.5, "max": 3}, got)

	// fehlende Metrik ergibt keinen Treffer
	_, ok, err = s.Get(ctx, "d", "base", []string{"l2_norm", "median"})
	require.NoError(t, err)
	assert.False(t, ok)

	// anderer Digest ist ein anderer Eintrag
	_, ok, err = s.Get(ctx, "other", "base", []string{"l2_norm"})
	require.NoError(t, err)
	assert.False(t, ok)

	// Ueberschreiben
	require.NoError(t, s.Put(ctx, "d", "base", map[string]float64{"l2_norm": 2}))
	got, ok, err = s.Get(ctx, "d", "base", []string{"l2_norm"})
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, 2.0, got["l2_norm"])
}

func TestGetWithoutMetrics(t *testing.T) {
	s := openTest(t)

	_, ok, err := s.Get(t.Context(), "d", "base", nil)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestFilesAndForget(t *testing.T) {
	s := openTest(t)
	ctx := t.Context()

	require.NoError(t, s.Touch(ctx, "d1", "a.safetensors", 10))
	require.NoError(t, s.Put(ctx, "d1", "x", map[string]float64{"l1_norm": 1, "l2_norm": 2}))
	require.NoError(t, s.Touch(ctx, "d1", "renamed.safetensors", 10))

	files, err := s.Files(ctx)
	require.NoError(t, err)
	require.Len(t, files, 1)
	assert.Equal(t, "renamed.safetensors", files[0].Name)
	assert.Equal(t, 2, files[0].Norms)

	require.NoError(t, s.Forget(ctx, "d1"))
	files, err = s.Files(ctx)
	require.NoError(t, err)
	assert.Empty(t, files)

	_, ok, err := s.Get(ctx, "d1", "x", []string{"l1_norm"})
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cache.db")

	s, err := Open(path)
	require.NoError(t, err)
	require.NoError(t, s.Put(t.Context(), "d", "b", map[string]float64{"min": -1}))
	require.NoError(t, s.Close())

	s, err = Open(path)
	require.NoError(t, err)
	defer s.Close()

	version, err := s.schemaVersion()
	require.NoError(t, err)
	assert.Equal(t, currentSchemaVersion, version)

	got, ok, err := s.Get(t.Context(), "d", "b", []string{"min"})
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, -1.0, got["min"])
}

func TestClosedStore(t *testing.T) {
	var s *Store
	_, _, err := s.Get(t.Context(), "d", "b", []string{"min"})
	assert.ErrorIs(t, err, ErrClosed)
	assert.ErrorIs(t, s.Put(t.Context(), "d", "b", map[string]float64{"min": 1}), ErrClosed)
	assert.NoError(t, s.Close())
}
