package layout

import (
	"sort"

	"github.com/skalb/diskomat/internal/inventory"
)

// DefaultSizeTolerance is the relative size spread allowed within one
// bucket: disks within 1% of the bucket's reference disk are considered
// interchangeable.
const DefaultSizeTolerance = 0.01

// Bucket is an ordered set of disks of the same rotational class whose
// sizes match within the configured tolerance.
type Bucket struct {
	Disks      []inventory.Disk
	Rotational bool
}

// RefSize is the size of the bucket's reference disk (the first one
// assigned to it).
func (b *Bucket) RefSize() int64 {
	if len(b.Disks) == 0 {
		return 0
	}
	return b.Disks[0].SizeBytes
}

// RawSize is the bucket's total raw capacity, before any RAID overhead.
func (b *Bucket) RawSize() int64 {
	var total int64
	for _, d := range b.Disks {
		total += d.SizeBytes
	}
	return total
}

// MinSize is the smallest member disk size.
func (b *Bucket) MinSize() int64 {
	if len(b.Disks) == 0 {
		return 0
	}
	min := b.Disks[0].SizeBytes
	for _, d := range b.Disks[1:] {
		if d.SizeBytes < min {
			min = d.SizeBytes
		}
	}
	return min
}

// Classify groups disks into buckets: rotational class first, then
// greedily by size against each existing bucket's reference disk.
// Buckets come back sorted by descending raw size so downstream naming
// is deterministic.
func Classify(disks []inventory.Disk, tolerance float64) []*Bucket {
	if tolerance <= 0 {
		tolerance = DefaultSizeTolerance
	}

	var buckets []*Bucket
	for _, class := range []bool{false, true} {
		for _, d := range disks {
			if d.Rotational != class {
				continue
			}
			var home *Bucket
			for _, b := range buckets {
				if b.Rotational == class && withinTolerance(d.SizeBytes, b.RefSize(), tolerance) {
					home = b
					break
				}
			}
			if home == nil {
				home = &Bucket{Rotational: class}
				buckets = append(buckets, home)
			}
			home.Disks = append(home.Disks, d)
		}
	}

	sort.SliceStable(buckets, func(i, j int) bool {
		if buckets[i].RawSize() != buckets[j].RawSize() {
			return buckets[i].RawSize() > buckets[j].RawSize()
		}
		return buckets[i].Disks[0].Name < buckets[j].Disks[0].Name
	})
	return buckets
}

func withinTolerance(size, ref int64, tolerance float64) bool {
	diff := size - ref
	if diff < 0 {
		diff = -diff
	}
	return float64(diff) <= float64(ref)*tolerance
}
