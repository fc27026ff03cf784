package layout

import (
	"fmt"
	"strings"

	"github.com/rs/zerolog/log"

	"github.com/skalb/diskomat/internal/inventory"
	"github.com/skalb/diskomat/internal/plan"
)

// Options configure one planning run. Zero values fall back to defaults.
type Options struct {
	Mode              Mode
	PreferRaid6OnFour bool
	SizeTolerance     float64
	// RootSize is the requested size of the root logical volume.
	RootSize int64
}

// DefaultRootSize is the root volume request when the config does not
// override it.
const DefaultRootSize = 50 * GiB

// efiReserve is carved from every disk that feeds the main volume group
// before the remainder joins its array or group.
const efiReserve = 1 * GiB

// Plan computes the full storage layout for the given disks. ramGiB
// drives swap sizing (swap = 2x RAM).
func Plan(disks []inventory.Disk, ramGiB int, opts Options) (*plan.Plan, error) {
	switch opts.Mode {
	case ModeFast, ModeCareful:
	case "":
		opts.Mode = ModeFast
	default:
		return nil, &plan.ValidationError{Field: "mode", Msg: fmt.Sprintf("unknown mode %q", opts.Mode)}
	}
	if opts.RootSize <= 0 {
		opts.RootSize = DefaultRootSize
	}
	if len(disks) == 0 {
		return nil, &plan.ValidationError{Field: "disks", Msg: "no disks available"}
	}

	buckets := Classify(disks, opts.SizeTolerance)
	var ssd, hdd []*Bucket
	for _, b := range buckets {
		if b.Rotational {
			hdd = append(hdd, b)
		} else {
			ssd = append(ssd, b)
		}
	}

	// The main group is fed by every SSD bucket, or by the largest HDD
	// bucket on all-spinning machines.
	mainBuckets := ssd
	restHDD := hdd
	if len(mainBuckets) == 0 {
		mainBuckets = hdd[:1]
		restHDD = hdd[1:]
	}

	swapBucket := selectSwapBucket(restHDD, len(ssd) > 0, len(hdd), int64(ramGiB)*GiB)

	p := &plan.Plan{Partitions: make(map[string][]plan.Partition)}
	alloc := NewAllocator()

	bl := builder{plan: p, alloc: alloc, opts: opts}
	bl.addVG("main", mainBuckets, true)

	var largeSeq int
	for _, b := range restHDD {
		if b == swapBucket {
			bl.addVG("swap", []*Bucket{b}, false)
			continue
		}
		largeSeq++
		name := "large"
		if largeSeq > 1 {
			name = fmt.Sprintf("large%d", largeSeq)
		}
		bl.addVG(name, []*Bucket{b}, false)
	}

	allocateVolumes(p, alloc, int64(ramGiB)*GiB, opts.RootSize, len(hdd) == 0)

	if err := p.Validate(); err != nil {
		return nil, err
	}
	log.Info().
		Int("disks", len(p.Disks)).
		Int("arrays", len(p.Arrays)).
		Int("vgs", len(p.VGs)).
		Int("lvs", len(p.LVs)).
		Msg("storage layout planned")
	return p, nil
}

// selectSwapBucket picks the bucket that becomes the swap volume group:
// the smallest-by-raw-size bucket that (a) has exactly two disks while
// SSDs exist or more than one HDD bucket exists, or (b) has exactly one
// disk while SSDs exist; and whose smallest member can hold 2x RAM.
func selectSwapBucket(candidates []*Bucket, ssdExist bool, hddBucketCount int, ramBytes int64) *Bucket {
	var chosen *Bucket
	for _, b := range candidates {
		twoDisk := len(b.Disks) == 2 && (ssdExist || hddBucketCount > 1)
		oneDisk := len(b.Disks) == 1 && ssdExist
		if !twoDisk && !oneDisk {
			continue
		}
		if b.MinSize() < 2*ramBytes {
			continue
		}
		if chosen == nil || b.RawSize() < chosen.RawSize() {
			chosen = b
		}
	}
	return chosen
}

// builder accumulates partitions, arrays and volume groups while the
// planner walks the buckets.
type builder struct {
	plan  *plan.Plan
	alloc *Allocator
	opts  Options
}

// addVG lays out every bucket feeding the named group: partitions each
// used disk, forms an array when the advised level calls for one, and
// registers the resulting capacity. Disks feeding main carry an EFI
// system partition ahead of their data partition.
func (bl *builder) addVG(vg string, buckets []*Bucket, efi bool) {
	var members []string
	var capacities []int64
	arraysInVG := 0

	for _, b := range buckets {
		level, used := Advise(b, bl.opts.Mode, bl.opts.PreferRaid6OnFour)
		if len(used) == 0 {
			continue
		}

		class := plan.ClassSSD
		if b.Rotational {
			class = plan.ClassHDD
		}

		var partNames []string
		var partSizes []int64
		for _, d := range used {
			name, size := bl.addDiskPartitions(d, level, efi)
			partNames = append(partNames, name)
			partSizes = append(partSizes, size)
		}

		if level == plan.LevelSingle {
			// no array: the partition itself is the physical volume
			members = append(members, partNames...)
			for _, s := range partSizes {
				capacities = append(capacities, s)
			}
			continue
		}

		arraysInVG++
		arrName := vg
		if arraysInVG > 1 {
			arrName = fmt.Sprintf("%s%d", vg, arraysInVG)
		}
		bl.plan.Arrays = append(bl.plan.Arrays, plan.Array{
			Name:    arrName,
			Level:   level,
			Devices: partNames,
			Class:   class,
		})
		members = append(members, arrName)
		capacities = append(capacities, Usable(level, partSizes))
	}

	if len(members) == 0 {
		return
	}
	bl.plan.VGs = append(bl.plan.VGs, plan.VolumeGroup{Name: vg, Devices: members})
	bl.alloc.AddVG(vg, capacities...)
}

// addDiskPartitions writes the disk's partition table into the plan and
// returns the data partition's name and contributed capacity.
func (bl *builder) addDiskPartitions(d inventory.Disk, level plan.RaidLevel, efi bool) (string, int64) {
	role := plan.RoleLVM
	if level != plan.LevelSingle {
		role = plan.RoleLinuxRaid
	}

	var parts []plan.Partition
	contributed := d.SizeBytes
	idx := 1
	if efi {
		parts = append(parts, plan.Partition{
			Name: plan.PartitionName(d.Name, d.NVMe, idx),
			Role: plan.RoleEFI,
		})
		idx++
		contributed = floorMiB(contributed - efiReserve)
	}
	dataName := plan.PartitionName(d.Name, d.NVMe, idx)
	parts = append(parts, plan.Partition{Name: dataName, Role: role})

	bl.plan.Partitions[d.Name] = parts
	bl.plan.Disks = append(bl.plan.Disks, plan.PlannedDisk{Name: d.Name, Path: d.Path, NVMe: d.NVMe})
	return dataName, contributed
}

// allocateVolumes hands out logical volumes in fixed order: root first,
// then swap, then one fill volume per group for whatever remains.
// Ordering matters because every allocation clamps to what is left.
func allocateVolumes(p *plan.Plan, alloc *Allocator, ramBytes, rootSize int64, noHDD bool) {
	if lv, ok := alloc.AddLV("slash", "main", rootSize); ok {
		p.LVs = append(p.LVs, lv)
	}

	if ramBytes > 0 {
		if target := swapTarget(alloc, noHDD); target != "" {
			if lv, ok := alloc.AddLV("swap", target, 2*ramBytes); ok {
				lv.Swap = true
				p.LVs = append(p.LVs, lv)
			}
		}
	}

	for _, vg := range alloc.VGs() {
		free := alloc.Free(vg)
		if free <= 0 {
			continue
		}
		name := vg
		switch vg {
		case "main":
			name = "data"
		case "swap":
			name = "scratch"
		}
		if lv, ok := alloc.AddLV(name, vg, free); ok {
			lv.FillVG = true
			p.LVs = append(p.LVs, lv)
		}
	}
}

// swapTarget resolves which group hosts swap: a group literally named
// swap wins, then the first group whose name starts with "large", and on
// machines with no HDD buckets at all, main.
func swapTarget(alloc *Allocator, noHDD bool) string {
	if alloc.Has("swap") {
		return "swap"
	}
	for _, vg := range alloc.VGs() {
		if strings.HasPrefix(vg, "large") {
			return vg
		}
	}
	if noHDD {
		return "main"
	}
	return ""
}
