package cache

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPutGetRoundTrip(t *testing.T) {
	c := New(t.TempDir(), "", 0, 0)

	err := c.Put("ns", "key", []byte(`"value"`), time.Minute, "")
	require.NoError(t, err)

	got, ok := c.Get("ns", "key", "")
	require.True(t, ok)
	assert.JSONEq(t, `"value"`, string(got))
}

func TestGetExpiresAfterTTL(t *testing.T) {
	c := New(t.TempDir(), "", 0, 0)
	require.NoError(t, c.Put("ns", "key", []byte(`1`), time.Nanosecond, ""))

	time.Sleep(time.Millisecond)
	_, ok := c.Get("ns", "key", "")
	assert.False(t, ok)
}

func TestLRUEvictsOldestWhenNamespaceFull(t *testing.T) {
	c := New(t.TempDir(), "", time.Hour, 2)

	require.NoError(t, c.Put("ns", "a", []byte(`1`), 0, ""))
	require.NoError(t, c.Put("ns", "b", []byte(`2`), 0, ""))
	require.NoError(t, c.Put("ns", "c", []byte(`3`), 0, ""))

	_, ok := c.Get("ns", "a", "")
	assert.False(t, ok, "oldest entry should have been evicted")

	_, ok = c.Get("ns", "c", "")
	assert.True(t, ok)
}

func TestInvalidateSingleKey(t *testing.T) {
	c := New(t.TempDir(), "", time.Hour, 0)
	require.NoError(t, c.Put("ns", "a", []byte(`1`), 0, ""))
	require.NoError(t, c.Put("ns", "b", []byte(`2`), 0, ""))

	c.Invalidate("ns", "a")

	_, ok := c.Get("ns", "a", "")
	assert.False(t, ok)
	_, ok = c.Get("ns", "b", "")
	assert.True(t, ok)
}

func TestClearAllInvalidatesEveryNamespace(t *testing.T) {
	c := New(t.TempDir(), "", time.Hour, 0)
	require.NoError(t, c.Put("ns1", "a", []byte(`1`), 0, ""))
	require.NoError(t, c.Put("ns2", "b", []byte(`2`), 0, ""))

	c.ClearAll()

	_, ok := c.Get("ns1", "a", "")
	assert.False(t, ok)
	_, ok = c.Get("ns2", "b", "")
	assert.False(t, ok)
}

func TestFingerprintMismatchIsMissAndBacksUp(t *testing.T) {
	dir := t.TempDir()
	backups := filepath.Join(dir, "backups")
	c := New(filepath.Join(dir, "cache"), backups, time.Hour, 0)

	require.NoError(t, c.Put("conversations", "idx", []byte(`{}`), 0, "fp-1"))

	_, ok := c.Get("conversations", "idx", "fp-2")
	assert.False(t, ok)

	entries, err := filepath.Glob(filepath.Join(backups, "*.backup.*"))
	require.NoError(t, err)
	assert.Len(t, entries, 1)
}

func TestPersistenceSurvivesReload(t *testing.T) {
	dir := t.TempDir()
	c1 := New(dir, "", time.Hour, 0)
	require.NoError(t, c1.Put("ns", "key", []byte(`"durable"`), 0, ""))

	c2 := New(dir, "", time.Hour, 0)
	got, ok := c2.Get("ns", "key", "")
	require.True(t, ok)
	assert.JSONEq(t, `"durable"`, string(got))
}
