package runner

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDryRunPassesThroughReadOnlyTools(t *testing.T) {
	t.Parallel()
	rec := &Recorder{Responses: map[string]Response{
		"lsblk -d": {Stdout: "sda\n"},
	}}
	d := &DryRun{Real: rec}

	res, err := d.Run(context.Background(), "lsblk", "-d")
	require.NoError(t, err)
	assert.Equal(t, "sda\n", string(res.Stdout))
	assert.True(t, rec.CalledWith("lsblk", "-d"))
	assert.Empty(t, d.Skipped)
}

func TestDryRunSkipsDestructiveCommands(t *testing.T) {
	t.Parallel()
	rec := &Recorder{}
	d := &DryRun{Real: rec}

	res, err := d.Run(context.Background(), "sgdisk", "--zap-all", "/dev/sda")
	require.NoError(t, err)
	assert.Equal(t, 0, res.Code)

	assert.Empty(t, rec.Calls, "destructive command must not reach the real runner")
	require.Len(t, d.Skipped, 1)
	assert.Equal(t, []string{"sgdisk", "--zap-all", "/dev/sda"}, d.Skipped[0])
}
