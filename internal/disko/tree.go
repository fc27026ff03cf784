package disko

import (
	"encoding/json"
	"regexp"
)

// DeviceTree is the declarative layout handed to the formatter. Three
// top-level collections: raw disks, md arrays, LVM volume groups.
type DeviceTree struct {
	Disk  map[string]DiskEntry `json:"disk"`
	Mdadm map[string]RaidEntry `json:"mdadm,omitempty"`
	LvmVG map[string]VGEntry   `json:"lvm_vg,omitempty"`
}

// DiskEntry is one physical disk with a GPT partition table.
type DiskEntry struct {
	Device  string   `json:"device"`
	Type    string   `json:"type"` // always "disk"
	Content GPTTable `json:"content"`
}

// GPTTable holds the partition map of a disk.
type GPTTable struct {
	Type       string                    `json:"type"` // always "gpt"
	Partitions map[string]PartitionEntry `json:"partitions"`
}

// PartitionEntry is one GPT slot. Type carries the GPT type code where
// the formatter needs one (EF00 for the ESP).
type PartitionEntry struct {
	Size    string           `json:"size"`
	Type    string           `json:"type,omitempty"`
	Content PartitionContent `json:"content"`
}

// RaidEntry is an md array with its numeric level. Content is the
// pass-through marker when a volume group consumes the array.
type RaidEntry struct {
	Level   int       `json:"level"`
	Content *PVMember `json:"content,omitempty"`
}

// VGEntry is an LVM volume group with its logical volumes.
type VGEntry struct {
	Type string             `json:"type"` // always "lvm_vg"
	LVs  map[string]LVEntry `json:"lvs"`
}

// LVEntry is one logical volume: a size string ("50G", "100%") and its
// content.
type LVEntry struct {
	Size    string    `json:"size"`
	Content LVContent `json:"content"`
}

// PartitionContent is the tagged content of a partition: an EFI
// filesystem stub, a RAID member marker, or an LVM PV marker. Keeping
// the variants closed lets the translator switch exhaustively.
type PartitionContent interface {
	isPartitionContent()
}

// EFIFilesystem is the EFI system partition stub. Only the first
// instance on a machine carries a mountpoint; mirrors are labeled EFI2,
// EFI3 and left unmounted.
type EFIFilesystem struct {
	Label      string
	Mountpoint string
}

func (EFIFilesystem) isPartitionContent() {}

func (c EFIFilesystem) MarshalJSON() ([]byte, error) {
	out := struct {
		Type       string   `json:"type"`
		Format     string   `json:"format"`
		ExtraArgs  []string `json:"extraArgs,omitempty"`
		Mountpoint string   `json:"mountpoint,omitempty"`
	}{
		Type:       "filesystem",
		Format:     "vfat",
		ExtraArgs:  []string{"-n", c.Label},
		Mountpoint: c.Mountpoint,
	}
	return json.Marshal(out)
}

// RaidMember marks a partition as belonging to the named md array.
type RaidMember struct {
	Array string
}

func (RaidMember) isPartitionContent() {}

func (c RaidMember) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		Type string `json:"type"`
		Name string `json:"name"`
	}{Type: "mdraid", Name: c.Array})
}

// PVMember marks a partition or array as a physical volume of the named
// volume group.
type PVMember struct {
	VG string
}

func (PVMember) isPartitionContent() {}

func (c PVMember) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		Type string `json:"type"`
		VG   string `json:"vg"`
	}{Type: "lvm_pv", VG: c.VG})
}

// LVContent is the tagged content of a logical volume: swap or a
// filesystem.
type LVContent interface {
	isLVContent()
}

// SwapContent marks a swap volume.
type SwapContent struct{}

func (SwapContent) isLVContent() {}

func (SwapContent) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		Type string `json:"type"`
	}{Type: "swap"})
}

// Filesystem is a formatted, mounted logical volume.
type Filesystem struct {
	Format       string
	Label        string
	Mountpoint   string
	MountOptions []string
}

func (Filesystem) isLVContent() {}

func (c Filesystem) MarshalJSON() ([]byte, error) {
	out := struct {
		Type         string   `json:"type"`
		Format       string   `json:"format"`
		ExtraArgs    []string `json:"extraArgs,omitempty"`
		Mountpoint   string   `json:"mountpoint,omitempty"`
		MountOptions []string `json:"mountOptions,omitempty"`
	}{
		Type:         "filesystem",
		Format:       c.Format,
		Mountpoint:   c.Mountpoint,
		MountOptions: c.MountOptions,
	}
	if c.Label != "" {
		out.ExtraArgs = []string{"-L", c.Label}
	}
	return json.Marshal(out)
}

var labelUnsafe = regexp.MustCompile(`[^A-Za-z0-9_]`)

// SanitizeLabel replaces any character outside [A-Za-z0-9_] with an
// underscore so the name is safe as an on-disk filesystem label.
func SanitizeLabel(name string) string {
	return labelUnsafe.ReplaceAllString(name, "_")
}
