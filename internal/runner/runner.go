package runner

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
)

// Result holds the outcome of one external command.
type Result struct {
	Stdout []byte
	Stderr []byte
	Code   int
}

// Runner executes external commands. Provisioning and teardown receive a
// Runner instead of calling exec directly so tests can substitute a
// recording fake.
type Runner interface {
	Run(ctx context.Context, argv ...string) (Result, error)
}

// CommandError reports a non-zero, non-tolerated exit from an external
// tool, carrying the offending argv and status.
type CommandError struct {
	Argv   []string
	Code   int
	Stderr string
}

func (e *CommandError) Error() string {
	msg := fmt.Sprintf("command %q exited %d", strings.Join(e.Argv, " "), e.Code)
	if s := strings.TrimSpace(e.Stderr); s != "" {
		msg += ": " + s
	}
	return msg
}

var ErrTimeout = errors.New("command timed out")

// ExecRunner runs commands via os/exec, each to completion before the
// next is issued. Commands mutate kernel block-device state, so they are
// never run concurrently against the same devices.
type ExecRunner struct {
	// Timeout bounds a single command. Zero means no limit.
	Timeout time.Duration
}

func (r ExecRunner) Run(ctx context.Context, argv ...string) (Result, error) {
	if len(argv) == 0 {
		return Result{}, errors.New("empty argv")
	}

	cctx := ctx
	if r.Timeout > 0 {
		var cancel context.CancelFunc
		cctx, cancel = context.WithTimeout(ctx, r.Timeout)
		defer cancel()
	}

	cmd := exec.CommandContext(cctx, argv[0], argv[1:]...)
	var outBuf, errBuf bytes.Buffer
	cmd.Stdout = &outBuf
	cmd.Stderr = &errBuf

	start := time.Now()
	err := cmd.Run()
	res := Result{Stdout: outBuf.Bytes(), Stderr: errBuf.Bytes(), Code: exitCode(err)}

	log.Debug().
		Strs("argv", argv).
		Int("code", res.Code).
		Dur("took", time.Since(start)).
		Msg("command finished")

	if cctx.Err() == context.DeadlineExceeded {
		return res, ErrTimeout
	}
	if err != nil {
		return res, &CommandError{Argv: argv, Code: res.Code, Stderr: string(res.Stderr)}
	}
	return res, nil
}

func exitCode(err error) int {
	if err == nil {
		return 0
	}
	var ee *exec.ExitError
	if errors.As(err, &ee) {
		return ee.ExitCode()
	}
	return -1
}
