package storage

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"veridia/pkg/session"
)

func setupFileStore(t *testing.T) (*FileStore, string) {
	t.Helper()
	dir := t.TempDir()
	store, err := NewFileStore(dir, testLogger())
	require.NoError(t, err)
	return store, dir
}

func TestFileStoreRoundTrip(t *testing.T) {
	store, dir := setupFileStore(t)
	ctx := context.Background()

	require.NoError(t, store.SaveSession(ctx, "adventure", testSession()))

	// The filename carries the schema version.
	path := filepath.Join(dir, fmt.Sprintf("adventure_v%d.json", session.SchemaVersion))
	_, err := os.Stat(path)
	require.NoError(t, err)

	loaded, err := store.LoadSession(ctx, "adventure")
	require.NoError(t, err)
	assert.Equal(t, "Crystal Plaza", loaded.Current.Location.Name)
	assert.Len(t, loaded.Log, 1)
}

func TestFileStoreLoadMissing(t *testing.T) {
	store, _ := setupFileStore(t)

	_, err := store.LoadSession(context.Background(), "nope")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestFileStoreLoadCorrupt(t *testing.T) {
	store, dir := setupFileStore(t)

	path := filepath.Join(dir, fmt.Sprintf("adventure_v%d.json", session.SchemaVersion))
	require.NoError(t, os.WriteFile(path, []byte("{truncated"), 0o644))

	_, err := store.LoadSession(context.Background(), "adventure")
	assert.ErrorIs(t, err, ErrCorrupt)
}

func TestFileStoreOldSchemaInvisible(t *testing.T) {
	store, dir := setupFileStore(t)

	old := filepath.Join(dir, fmt.Sprintf("adventure_v%d.json", session.SchemaVersion-1))
	require.NoError(t, os.WriteFile(old, []byte(`{"version": 2}`), 0o644))

	_, err := store.LoadSession(context.Background(), "adventure")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestFileStoreDelete(t *testing.T) {
	store, _ := setupFileStore(t)
	ctx := context.Background()

	require.NoError(t, store.SaveSession(ctx, "adventure", testSession()))
	require.NoError(t, store.DeleteSession(ctx, "adventure"))

	_, err := store.LoadSession(ctx, "adventure")
	assert.ErrorIs(t, err, ErrNotFound)

	require.NoError(t, store.DeleteSession(ctx, "adventure"))
}

func TestFileStoreOverwrite(t *testing.T) {
	store, dir := setupFileStore(t)
	ctx := context.Background()

	require.NoError(t, store.SaveSession(ctx, "adventure", testSession()))

	s := testSession()
	s.AppendPlayer("go north")
	require.NoError(t, store.SaveSession(ctx, "adventure", s))

	loaded, err := store.LoadSession(ctx, "adventure")
	require.NoError(t, err)
	assert.Len(t, loaded.Log, 2)

	// No temp files left behind.
	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Len(t, entries, 1)
}
