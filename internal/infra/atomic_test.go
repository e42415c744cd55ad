package infra

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWriteFileAtomic(t *testing.T) {
	path := filepath.Join(t.TempDir(), "data.json")

	require.NoError(t, WriteFileAtomic(path, []byte("one"), 0o644))
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "one", string(data))

	// Replace keeps the full old content until the rename lands.
	require.NoError(t, WriteFileAtomic(path, []byte("two"), 0o644))
	data, err = os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "two", string(data))

	// No temp files left behind.
	entries, err := os.ReadDir(filepath.Dir(path))
	require.NoError(t, err)
	assert.Len(t, entries, 1)
}

func TestRestartSentinelRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "restart-sentinel.json")

	assert.Nil(t, ConsumeRestartSentinel(path), "absent sentinel")

	require.NoError(t, WriteRestartSentinel(path, "update installed"))
	s := ConsumeRestartSentinel(path)
	require.NotNil(t, s)
	assert.Equal(t, "update installed", s.Reason)

	assert.Nil(t, ConsumeRestartSentinel(path), "consume removes the file")
}

func TestPIDLock(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bot.pid")

	l, err := AcquirePIDLock(path)
	require.NoError(t, err)

	// Same live PID means a second acquire fails.
	_, err = AcquirePIDLock(path)
	assert.Error(t, err)

	l.Release()
	l2, err := AcquirePIDLock(path)
	require.NoError(t, err)
	l2.Release()
}
