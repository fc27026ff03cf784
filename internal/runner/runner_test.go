package runner

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExecRunnerCapturesOutput(t *testing.T) {
	t.Parallel()
	r := ExecRunner{}
	res, err := r.Run(context.Background(), "sh", "-c", "echo out; echo err >&2")
	require.NoError(t, err)
	assert.Equal(t, "out\n", string(res.Stdout))
	assert.Equal(t, "err\n", string(res.Stderr))
	assert.Equal(t, 0, res.Code)
}

func TestExecRunnerNonZeroExit(t *testing.T) {
	t.Parallel()
	r := ExecRunner{}
	res, err := r.Run(context.Background(), "sh", "-c", "echo broken >&2; exit 3")

	var cmdErr *CommandError
	require.ErrorAs(t, err, &cmdErr)
	assert.Equal(t, 3, cmdErr.Code)
	assert.Equal(t, 3, res.Code)
	assert.Contains(t, cmdErr.Error(), "exited 3")
	assert.Contains(t, cmdErr.Error(), "broken")
}

func TestExecRunnerMissingBinary(t *testing.T) {
	t.Parallel()
	r := ExecRunner{}
	res, err := r.Run(context.Background(), "definitely-not-a-real-tool-xyz")

	var cmdErr *CommandError
	require.ErrorAs(t, err, &cmdErr)
	assert.Equal(t, -1, res.Code)
}

func TestExecRunnerTimeout(t *testing.T) {
	t.Parallel()
	r := ExecRunner{Timeout: 50 * time.Millisecond}
	_, err := r.Run(context.Background(), "sleep", "5")
	assert.ErrorIs(t, err, ErrTimeout)
}

func TestExecRunnerEmptyArgv(t *testing.T) {
	t.Parallel()
	_, err := ExecRunner{}.Run(context.Background())
	assert.Error(t, err)
}

func TestRecorderScriptsResponses(t *testing.T) {
	t.Parallel()
	rec := &Recorder{
		Responses: map[string]Response{
			"lsblk -d": {Stdout: "sda\n"},
		},
		Prefixes: map[string]Response{
			"wipefs": {Code: 1, Stderr: "nope"},
		},
	}

	res, err := rec.Run(context.Background(), "lsblk", "-d")
	require.NoError(t, err)
	assert.Equal(t, "sda\n", string(res.Stdout))

	_, err = rec.Run(context.Background(), "wipefs", "-n", "/dev/sda")
	var cmdErr *CommandError
	require.ErrorAs(t, err, &cmdErr)
	assert.Equal(t, 1, cmdErr.Code)

	// unscripted commands succeed silently
	res, err = rec.Run(context.Background(), "partprobe", "/dev/sda")
	require.NoError(t, err)
	assert.Empty(t, res.Stdout)

	assert.Len(t, rec.Calls, 3)
	assert.True(t, rec.CalledWith("lsblk", "-d"))
	assert.Equal(t, 2, rec.IndexOf("partprobe", "/dev/sda"))
	assert.Equal(t, -1, rec.IndexOf("never", "ran"))
}
