package plan

import (
	"fmt"
	"strings"
)

// RaidLevel is the redundancy/striping scheme of an array. "single" means
// the device is used directly, without an md array.
type RaidLevel string

const (
	LevelSingle RaidLevel = "single"
	LevelRaid0  RaidLevel = "raid0"
	LevelRaid1  RaidLevel = "raid1"
	LevelRaid5  RaidLevel = "raid5"
	LevelRaid6  RaidLevel = "raid6"
	LevelRaid10 RaidLevel = "raid10"
)

// Numeric returns the md RAID level number, or -1 for single.
func (l RaidLevel) Numeric() int {
	switch l {
	case LevelRaid0:
		return 0
	case LevelRaid1:
		return 1
	case LevelRaid5:
		return 5
	case LevelRaid6:
		return 6
	case LevelRaid10:
		return 10
	}
	return -1
}

// StorageClass distinguishes solid-state from spinning storage.
type StorageClass string

const (
	ClassSSD StorageClass = "ssd"
	ClassHDD StorageClass = "hdd"
)

// PartitionRole identifies what a partition is for.
type PartitionRole string

const (
	RoleEFI       PartitionRole = "efi"
	RoleLinuxRaid PartitionRole = "linux-raid"
	RoleLVM       PartitionRole = "lvm"
)

// Partition is a single slot in a disk's partition table.
type Partition struct {
	Name string        `json:"name"`
	Role PartitionRole `json:"type"`
}

// Array is a planned md RAID array.
type Array struct {
	Name    string       `json:"name"`
	Level   RaidLevel    `json:"level"`
	Devices []string     `json:"devices"`
	Class   StorageClass `json:"type"`
}

// VolumeGroup is a planned LVM volume group. Devices are partition or
// array names that become its physical volumes.
type VolumeGroup struct {
	Name    string   `json:"name"`
	Devices []string `json:"devices"`
}

// LogicalVolume is a planned LVM logical volume. Size is the allocated
// size in bytes, already clamped to the volume group's free capacity.
type LogicalVolume struct {
	Name string `json:"name"`
	VG   string `json:"vg"`
	Size int64  `json:"size"`

	// Swap marks the volume for swap content instead of a filesystem.
	Swap bool `json:"-"`
	// FillVG marks a volume that consumes all remaining free space in
	// its group; it renders as "100%FREE" instead of a byte size.
	FillVG bool `json:"-"`
}

// Plan is the aggregate layout for one machine: per-disk partition
// tables, arrays, volume groups and logical volumes, in creation order.
type Plan struct {
	// Partitions maps disk name to its partition table, in on-disk order.
	Partitions map[string][]Partition `json:"partitions"`
	Arrays     []Array                `json:"arrays"`
	VGs        []VolumeGroup          `json:"vgs"`
	LVs        []LogicalVolume        `json:"lvs"`

	// Disks is the deterministic iteration order for Partitions, and
	// carries the device path for each partitioned disk.
	Disks []PlannedDisk `json:"-"`
}

// PlannedDisk records identity details the translator needs per disk.
type PlannedDisk struct {
	Name string
	Path string
	NVMe bool
}

// PartitionName derives a partition device name from the disk name and a
// 1-based partition index. NVMe disks use a pN suffix, others a bare
// numeric suffix.
func PartitionName(disk string, nvme bool, index int) string {
	if nvme {
		return fmt.Sprintf("%sp%d", disk, index)
	}
	return fmt.Sprintf("%s%d", disk, index)
}

// ValidationError reports malformed plan input. It always fails fast;
// nothing is partially applied.
type ValidationError struct {
	Field string
	Msg   string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return "invalid plan: " + e.Msg
	}
	return fmt.Sprintf("invalid plan: %s: %s", e.Field, e.Msg)
}

// Validate checks the structural invariants the formatter depends on.
func (p *Plan) Validate() error {
	for _, d := range p.Disks {
		if d.Name == "" || d.Path == "" {
			return &ValidationError{Field: "disk", Msg: "missing device identifier"}
		}
		if len(p.Partitions[d.Name]) == 0 {
			return &ValidationError{Field: d.Name, Msg: "empty partition list"}
		}
	}
	for _, a := range p.Arrays {
		if a.Level.Numeric() < 0 {
			return &ValidationError{Field: a.Name, Msg: fmt.Sprintf("unknown raid level %q", a.Level)}
		}
		if len(a.Devices) == 0 {
			return &ValidationError{Field: a.Name, Msg: "array has no member devices"}
		}
	}
	for _, lv := range p.LVs {
		if lv.VG == "" {
			return &ValidationError{Field: lv.Name, Msg: "logical volume has no volume group"}
		}
		if strings.TrimSpace(lv.Name) == "" {
			return &ValidationError{Field: lv.VG, Msg: "logical volume has no name"}
		}
	}
	return nil
}
