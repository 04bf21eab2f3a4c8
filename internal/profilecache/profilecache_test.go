package profilecache

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_MissingFileStartsEmpty(t *testing.T) {
	dir := t.TempDir()
	c, err := Load(filepath.Join(dir, "cache.json"))
	require.NoError(t, err)
	assert.Equal(t, 0, c.Len())
}

func TestPutGetFlushRoundTrip(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "cache.json")

	c, err := Load(path)
	require.NoError(t, err)
	c.Put("team_a", "ext-123")
	require.NoError(t, c.Flush())

	reloaded, err := Load(path)
	require.NoError(t, err)
	entry, ok := reloaded.Get("team_a")
	require.True(t, ok)
	assert.Equal(t, "ext-123", entry.ExternalID)
}

func TestInvalidate_RemovesEntryAndMarksDirty(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "cache.json")

	c, err := Load(path)
	require.NoError(t, err)
	c.Put("team_a", "ext-123")
	require.NoError(t, c.Flush())

	c.Invalidate("team_a")
	_, ok := c.Get("team_a")
	assert.False(t, ok)

	require.NoError(t, c.Flush())
	reloaded, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 0, reloaded.Len())
}

func TestFlush_NoopWhenNotDirty(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "cache.json")

	c, err := Load(path)
	require.NoError(t, err)
	require.NoError(t, c.Flush())

	_, statErr := os.Stat(path)
	assert.Error(t, statErr, "an empty, never-dirtied cache should not write a file")
}
