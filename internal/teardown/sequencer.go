package teardown

import (
	"context"
	"fmt"

	"github.com/rs/zerolog/log"

	"github.com/skalb/diskomat/internal/plan"
	"github.com/skalb/diskomat/internal/runner"
)

// Policy selects how destructive the final pass over each raw disk is.
type Policy string

const (
	// PolicySkip performs no teardown at all.
	PolicySkip Policy = "skip"
	// PolicyWipe zaps partition tables and wipes signatures.
	PolicyWipe Policy = "wipe"
	// PolicyDiscard adds a full block-discard pass per disk.
	PolicyDiscard Policy = "discard"
	// PolicyRandom adds a single-pass random overwrite per disk.
	PolicyRandom Policy = "random"
)

// ParsePolicy validates a policy token from config or flags.
func ParsePolicy(s string) (Policy, error) {
	switch Policy(s) {
	case PolicySkip, PolicyWipe, PolicyDiscard, PolicyRandom:
		return Policy(s), nil
	case "":
		return PolicyWipe, nil
	}
	return "", &plan.ValidationError{Field: "policy", Msg: fmt.Sprintf("unknown action token %q", s)}
}

// Command is one attempted external command and its exit status. The
// full attempted list is returned so callers can audit exactly how far
// cleanup progressed.
type Command struct {
	Argv []string `json:"argv"`
	Code int      `json:"code"`
}

// Sequencer tears down the storage stack on a set of target disks,
// bottom-up: mounts, then LVM, then RAID, then the raw disks. Once a
// target set is accepted it runs to a terminal state; a partially
// unwound stack is not a safe place to stop.
type Sequencer struct {
	Runner runner.Runner
	Policy Policy
}

// Teardown discovers the dependent stack on the target disks and
// removes it. Individual command failures are logged and recorded but
// do not stop the sequence; only a discovery failure aborts, since the
// plan itself would then be unreliable.
func (s *Sequencer) Teardown(ctx context.Context, disks []string) ([]Command, error) {
	if s.Policy == PolicySkip {
		log.Info().Msg("teardown policy is skip, leaving disks untouched")
		return nil, nil
	}
	if len(disks) == 0 {
		return nil, nil
	}

	g, err := DiscoverGraph(ctx, s.Runner, disks)
	if err != nil {
		return nil, err
	}
	cat, err := DiscoverLVM(ctx, s.Runner)
	if err != nil {
		return nil, err
	}

	var attempted []Command

	// 1. unmount everything, deepest mountpoints first
	for _, mnt := range g.Mountpoints() {
		s.run(ctx, &attempted, "umount", mnt)
	}

	// 2. deactivate logical volumes, then volume groups, upper LVM
	// layers before the layers they rest on
	rounds := cat.relevantVGs(g)
	for r := len(rounds) - 1; r >= 0; r-- {
		for _, vg := range rounds[r] {
			for _, lv := range cat.LVsOf(vg) {
				s.run(ctx, &attempted, "lvchange", "-an", vg+"/"+lv.Name)
			}
		}
	}
	for r := len(rounds) - 1; r >= 0; r-- {
		for _, vg := range rounds[r] {
			s.run(ctx, &attempted, "vgchange", "-an", vg)
		}
	}

	// 3. stop arrays, innermost (deepest-stacked) first
	arrays := g.Arrays()
	for _, i := range arrays {
		s.run(ctx, &attempted, "mdadm", "--stop", g.Nodes[i].Path)
	}

	// 4. destroy LVM metadata leaves-first, then RAID superblocks
	for r := len(rounds) - 1; r >= 0; r-- {
		for _, vg := range rounds[r] {
			for _, lv := range cat.LVsOf(vg) {
				if lv.Path != "" {
					s.run(ctx, &attempted, "wipefs", "-a", lv.Path)
				}
				s.run(ctx, &attempted, "lvremove", "-fy", vg+"/"+lv.Name)
			}
			s.run(ctx, &attempted, "vgremove", "-ff", "-y", vg)
			for _, pv := range cat.PVsOf(vg) {
				s.run(ctx, &attempted, "pvremove", "-ff", "-y", pv)
			}
		}
	}
	for _, i := range arrays {
		for _, member := range g.Members(i) {
			s.run(ctx, &attempted, "mdadm", "--zero-superblock", "--force", member)
			s.run(ctx, &attempted, "wipefs", "-a", member)
		}
	}

	// 5. raze each raw disk and let the kernel settle
	for _, disk := range disks {
		s.run(ctx, &attempted, "sgdisk", "--zap-all", disk)
		s.run(ctx, &attempted, "blockdev", "--rereadpt", disk)
		s.run(ctx, &attempted, "partprobe", disk)
		s.run(ctx, &attempted, "udevadm", "settle")
		switch s.Policy {
		case PolicyDiscard:
			s.run(ctx, &attempted, "blkdiscard", "-f", disk)
		case PolicyRandom:
			s.run(ctx, &attempted, "shred", "-v", "-n1", disk)
		}
		s.run(ctx, &attempted, "wipefs", "-a", disk)
	}

	log.Info().
		Int("commands", len(attempted)).
		Int("disks", len(disks)).
		Msg("teardown sequence finished")
	return attempted, nil
}

// run executes one command best-effort: failures are logged and
// recorded, never fatal.
func (s *Sequencer) run(ctx context.Context, attempted *[]Command, argv ...string) {
	res, err := s.Runner.Run(ctx, argv...)
	*attempted = append(*attempted, Command{Argv: argv, Code: res.Code})
	if err != nil {
		log.Warn().Strs("argv", argv).Int("code", res.Code).Msg("teardown command failed, continuing")
	}
}
