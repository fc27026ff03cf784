package provision

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog/log"

	"github.com/skalb/diskomat/internal/bootdev"
	"github.com/skalb/diskomat/internal/config"
	"github.com/skalb/diskomat/internal/db"
	"github.com/skalb/diskomat/internal/disko"
	"github.com/skalb/diskomat/internal/inventory"
	"github.com/skalb/diskomat/internal/layout"
	"github.com/skalb/diskomat/internal/runner"
	"github.com/skalb/diskomat/internal/scan"
	"github.com/skalb/diskomat/internal/teardown"
)

// Pipeline is the one-shot provisioning sequence: inventory, boot-disk
// resolution, existing-storage detection, teardown, layout planning,
// translation, render and apply. It runs exactly once per machine boot.
type Pipeline struct {
	Config    *config.Config
	Runner    runner.Runner
	Formatter disko.Formatter
	// Audit is optional; when set, every teardown command and the run
	// outcome are recorded.
	Audit *db.DB
	// Apply controls whether the rendered tree is handed to the
	// formatter or only written out (plan-only runs).
	Apply bool
}

// Run executes the pipeline and returns the full plan document.
func (p *Pipeline) Run(ctx context.Context) (*disko.Output, error) {
	runID := p.beginAudit("provision")
	out, err := p.run(ctx, runID)
	p.finishAudit(runID, err)
	return out, err
}

func (p *Pipeline) run(ctx context.Context, runID string) (*disko.Output, error) {
	disks, err := inventory.Enumerate(ctx, p.Runner)
	if err != nil {
		return nil, err
	}
	log.Info().Int("disks", len(disks)).Msg("disk inventory collected")

	ramGiB, err := inventory.RAMSizeGiB()
	if err != nil {
		return nil, err
	}

	resolver := &bootdev.Resolver{Runner: p.Runner}
	bootDisk, err := resolver.Resolve(ctx)
	switch {
	case err == nil:
		log.Info().Str("disk", bootDisk).Msg("boot disk resolved")
	case errors.Is(err, bootdev.ErrNoBootDisk):
		// ambiguity never blocks provisioning, it only means nothing
		// extra is excluded from destructive operations
		log.Warn().Msg("boot disk undetermined, excluding no disk")
		bootDisk = ""
	default:
		return nil, err
	}

	scanner := &scan.Scanner{Runner: p.Runner, BootDisk: bootDisk}
	existing, err := scanner.Scan(ctx)
	if err != nil {
		return nil, err
	}

	if len(existing) > 0 {
		policy, err := teardown.ParsePolicy(p.Config.Policy)
		if err != nil {
			return nil, err
		}
		var targets []string
		for _, dev := range existing {
			targets = append(targets, dev.Path)
		}
		seq := &teardown.Sequencer{Runner: p.Runner, Policy: policy}
		attempted, err := seq.Teardown(ctx, targets)
		p.auditCommands(runID, attempted)
		if err != nil {
			return nil, fmt.Errorf("teardown: %w", err)
		}
	}

	planDisks := disks
	if bootDisk != "" {
		planDisks = planDisks[:0:0]
		for _, d := range disks {
			if d.Path != bootDisk {
				planDisks = append(planDisks, d)
			}
		}
	}

	opts, err := p.Config.LayoutOptions()
	if err != nil {
		return nil, err
	}
	pl, err := layout.Plan(planDisks, ramGiB, opts)
	if err != nil {
		return nil, err
	}

	tree, err := disko.Translate(pl)
	if err != nil {
		return nil, err
	}
	out := &disko.Output{
		Partitions: pl.Partitions,
		Arrays:     pl.Arrays,
		VGs:        pl.VGs,
		LVs:        pl.LVs,
		Disko:      tree,
	}

	if err := disko.WriteRendered(p.Formatter, tree, p.Config.PlanPath); err != nil {
		return nil, err
	}
	log.Info().Str("path", p.Config.PlanPath).Msg("device tree written")

	if p.Apply {
		if err := p.Formatter.Apply(ctx, p.Config.PlanPath); err != nil {
			return nil, err
		}
	}
	return out, nil
}

// Teardown runs only the detection and teardown half of the pipeline
// against the given disks (or, when none are given, every dirty non-boot
// disk), returning the attempted command list.
func (p *Pipeline) Teardown(ctx context.Context, targets []string) ([]teardown.Command, error) {
	runID := p.beginAudit("teardown")

	policy, err := teardown.ParsePolicy(p.Config.Policy)
	if err != nil {
		p.finishAudit(runID, err)
		return nil, err
	}

	if len(targets) == 0 {
		resolver := &bootdev.Resolver{Runner: p.Runner}
		bootDisk, err := resolver.Resolve(ctx)
		if err != nil && !errors.Is(err, bootdev.ErrNoBootDisk) {
			p.finishAudit(runID, err)
			return nil, err
		}
		scanner := &scan.Scanner{Runner: p.Runner, BootDisk: bootDisk}
		existing, err := scanner.Scan(ctx)
		if err != nil {
			p.finishAudit(runID, err)
			return nil, err
		}
		for _, dev := range existing {
			targets = append(targets, dev.Path)
		}
	}

	seq := &teardown.Sequencer{Runner: p.Runner, Policy: policy}
	attempted, err := seq.Teardown(ctx, targets)
	p.auditCommands(runID, attempted)
	p.finishAudit(runID, err)
	return attempted, err
}

func (p *Pipeline) beginAudit(kind string) string {
	if p.Audit == nil {
		return ""
	}
	id, err := p.Audit.BeginRun(kind, p.Config.Mode, p.Config.Policy)
	if err != nil {
		log.Warn().Err(err).Msg("cannot record run start")
		return ""
	}
	return id
}

func (p *Pipeline) finishAudit(runID string, runErr error) {
	if p.Audit == nil || runID == "" {
		return
	}
	status := "success"
	if runErr != nil {
		status = "failed"
	}
	if err := p.Audit.FinishRun(runID, status); err != nil {
		log.Warn().Err(err).Msg("cannot record run finish")
	}
}

func (p *Pipeline) auditCommands(runID string, cmds []teardown.Command) {
	if p.Audit == nil || runID == "" {
		return
	}
	for i, c := range cmds {
		if err := p.Audit.RecordCommand(runID, i, c.Argv, c.Code); err != nil {
			log.Warn().Err(err).Msg("cannot record command")
			return
		}
	}
}
