package runner

import (
	"context"
	"strings"
)

// Recorder is a fake Runner for tests. It records every argv it is asked
// to run and answers from a scripted response table; commands without a
// scripted response succeed with empty output.
type Recorder struct {
	// Calls is every argv executed, in order.
	Calls [][]string
	// Responses maps a space-joined argv to its scripted result.
	Responses map[string]Response
	// Prefixes maps an argv prefix (space-joined) to a result, consulted
	// when no exact match exists. Useful when trailing arguments vary.
	Prefixes map[string]Response
}

// Response is a scripted command outcome.
type Response struct {
	Stdout string
	Stderr string
	Code   int
}

func (r *Recorder) Run(_ context.Context, argv ...string) (Result, error) {
	r.Calls = append(r.Calls, argv)

	key := strings.Join(argv, " ")
	resp, ok := r.Responses[key]
	if !ok {
		for prefix, p := range r.Prefixes {
			if strings.HasPrefix(key, prefix) {
				resp, ok = p, true
				break
			}
		}
	}

	res := Result{Stdout: []byte(resp.Stdout), Stderr: []byte(resp.Stderr), Code: resp.Code}
	if resp.Code != 0 {
		return res, &CommandError{Argv: argv, Code: resp.Code, Stderr: resp.Stderr}
	}
	return res, nil
}

// CalledWith reports whether any recorded call matches argv exactly.
func (r *Recorder) CalledWith(argv ...string) bool {
	return r.IndexOf(argv...) >= 0
}

// IndexOf returns the position of the first call matching argv exactly,
// or -1.
func (r *Recorder) IndexOf(argv ...string) int {
	want := strings.Join(argv, " ")
	for i, call := range r.Calls {
		if strings.Join(call, " ") == want {
			return i
		}
	}
	return -1
}
