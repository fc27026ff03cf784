package layout

import (
	"github.com/skalb/diskomat/internal/inventory"
	"github.com/skalb/diskomat/internal/plan"
)

// Mode selects the redundancy posture for solid-state buckets.
type Mode string

const (
	// ModeFast maximizes capacity: multiple SSDs stripe with no redundancy.
	ModeFast Mode = "fast"
	// ModeCareful favors redundancy over capacity.
	ModeCareful Mode = "careful"
)

// Advise picks the RAID level for a bucket, and the member subset to use.
// Under careful mode an odd SSD count of three or more mirrors only the
// first two disks; the rest stay unused rather than joining an
// un-redundant layout.
func Advise(b *Bucket, mode Mode, preferRaid6OnFour bool) (plan.RaidLevel, []inventory.Disk) {
	n := len(b.Disks)
	if b.Rotational {
		return adviseHDD(b, n, preferRaid6OnFour)
	}

	switch {
	case n <= 1:
		return plan.LevelSingle, b.Disks
	case mode == ModeCareful && n == 2:
		return plan.LevelRaid1, b.Disks
	case mode == ModeCareful && n >= 4 && n%2 == 0:
		return plan.LevelRaid10, b.Disks
	case mode == ModeCareful:
		// odd count >= 3: mirror the first pair only
		return plan.LevelRaid1, b.Disks[:2]
	default:
		return plan.LevelRaid0, b.Disks
	}
}

func adviseHDD(b *Bucket, n int, preferRaid6OnFour bool) (plan.RaidLevel, []inventory.Disk) {
	switch {
	case n <= 1:
		return plan.LevelSingle, b.Disks
	case n == 2:
		return plan.LevelRaid1, b.Disks
	case n == 3:
		return plan.LevelRaid5, b.Disks
	case n == 4:
		if preferRaid6OnFour {
			return plan.LevelRaid6, b.Disks
		}
		return plan.LevelRaid5, b.Disks
	default:
		return plan.LevelRaid6, b.Disks
	}
}

// Usable computes the usable bytes of an array from its level and the
// per-member usable sizes. Exact integer arithmetic throughout.
func Usable(level plan.RaidLevel, sizes []int64) int64 {
	if len(sizes) == 0 {
		return 0
	}
	var sum int64
	min := sizes[0]
	for _, s := range sizes {
		sum += s
		if s < min {
			min = s
		}
	}
	switch level {
	case plan.LevelSingle, plan.LevelRaid0:
		return sum
	case plan.LevelRaid1:
		return min
	case plan.LevelRaid5:
		return sum - min
	case plan.LevelRaid6:
		return sum - 2*min
	case plan.LevelRaid10:
		return sum / 2
	}
	return 0
}
