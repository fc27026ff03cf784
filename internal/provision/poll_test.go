package provision

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWaitForMountFindsExistingMount(t *testing.T) {
	t.Parallel()
	mounts := filepath.Join(t.TempDir(), "mounts")
	require.NoError(t, os.WriteFile(mounts, []byte(
		"proc /proc proc rw 0 0\n"+
			"/dev/main/slash /mnt ext4 rw 0 0\n"), 0644))

	assert.NoError(t, waitForMount("/mnt", mounts, time.Millisecond, 3))
}

func TestWaitForMountTimesOut(t *testing.T) {
	t.Parallel()
	mounts := filepath.Join(t.TempDir(), "mounts")
	require.NoError(t, os.WriteFile(mounts, []byte("proc /proc proc rw 0 0\n"), 0644))

	err := waitForMount("/mnt", mounts, time.Millisecond, 3)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "3 attempts")
}

func TestWaitForMountRetriesUntilMounted(t *testing.T) {
	t.Parallel()
	mounts := filepath.Join(t.TempDir(), "mounts")
	require.NoError(t, os.WriteFile(mounts, []byte(""), 0644))

	done := make(chan error, 1)
	go func() {
		done <- waitForMount("/mnt", mounts, 5*time.Millisecond, 100)
	}()

	time.Sleep(20 * time.Millisecond)
	require.NoError(t, os.WriteFile(mounts, []byte("/dev/sda1 /mnt ext4 rw 0 0\n"), 0644))

	assert.NoError(t, <-done)
}

func TestWaitForStatusFile(t *testing.T) {
	t.Parallel()
	path := filepath.Join(t.TempDir(), "status")
	require.NoError(t, os.WriteFile(path, []byte("succeeded\n"), 0644))

	state, err := WaitForStatusFile(path, []string{"succeeded", "failed"}, time.Millisecond, 3)
	require.NoError(t, err)
	assert.Equal(t, "succeeded", state)
}

func TestWaitForStatusFileIgnoresNonTerminalStates(t *testing.T) {
	t.Parallel()
	path := filepath.Join(t.TempDir(), "status")
	require.NoError(t, os.WriteFile(path, []byte("running\n"), 0644))

	_, err := WaitForStatusFile(path, []string{"succeeded", "failed"}, time.Millisecond, 3)
	assert.Error(t, err)
}

func TestWaitForStatusFileMissingFile(t *testing.T) {
	t.Parallel()
	_, err := WaitForStatusFile(filepath.Join(t.TempDir(), "nope"), []string{"done"}, time.Millisecond, 2)
	assert.Error(t, err)
}
