package runner

import (
	"context"

	"github.com/rs/zerolog/log"
)

// readOnlyTools never mutate block-device state and are safe to execute
// during a dry run; discovery depends on their real output.
var readOnlyTools = map[string]bool{
	"lsblk": true,
	"pvs":   true,
	"vgs":   true,
	"lvs":   true,
}

// DryRun passes read-only queries through to the real runner and fakes
// success for everything else, logging what would have run.
type DryRun struct {
	Real Runner
	// Skipped collects every argv that was not executed.
	Skipped [][]string
}

func (d *DryRun) Run(ctx context.Context, argv ...string) (Result, error) {
	if len(argv) > 0 && readOnlyTools[argv[0]] {
		return d.Real.Run(ctx, argv...)
	}
	d.Skipped = append(d.Skipped, argv)
	log.Info().Strs("argv", argv).Msg("dry run, command skipped")
	return Result{}, nil
}
