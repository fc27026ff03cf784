package disko

import (
	"fmt"

	"github.com/skalb/diskomat/internal/layout"
	"github.com/skalb/diskomat/internal/plan"
)

// Output is the full plan document handed to callers: the internal plan
// collections plus the translated device tree.
type Output struct {
	Partitions map[string][]plan.Partition `json:"partitions"`
	Arrays     []plan.Array                `json:"arrays"`
	VGs        []plan.VolumeGroup          `json:"vgs"`
	LVs        []plan.LogicalVolume        `json:"lvs"`
	Disko      *DeviceTree                 `json:"disko"`
}

// Translate restructures a plan into the formatter's device tree. Pure
// serialization: nothing in the plan is lost or reordered.
func Translate(p *plan.Plan) (*DeviceTree, error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}

	// consumers of data partitions and arrays
	arrayOf := make(map[string]string) // partition -> array
	for _, a := range p.Arrays {
		for _, dev := range a.Devices {
			arrayOf[dev] = a.Name
		}
	}
	vgOf := make(map[string]string) // partition or array -> vg
	for _, vg := range p.VGs {
		for _, dev := range vg.Devices {
			vgOf[dev] = vg.Name
		}
	}

	tree := &DeviceTree{Disk: make(map[string]DiskEntry)}

	efiSeen := 0
	for _, d := range p.Disks {
		parts := make(map[string]PartitionEntry)
		for _, part := range p.Partitions[d.Name] {
			switch part.Role {
			case plan.RoleEFI:
				efiSeen++
				label := "EFI"
				mountpoint := "/boot"
				if efiSeen > 1 {
					label = fmt.Sprintf("EFI%d", efiSeen)
					mountpoint = ""
				}
				parts[part.Name] = PartitionEntry{
					Size:    "1G",
					Type:    "EF00",
					Content: EFIFilesystem{Label: label, Mountpoint: mountpoint},
				}
			case plan.RoleLinuxRaid:
				arr, ok := arrayOf[part.Name]
				if !ok {
					return nil, &plan.ValidationError{Field: part.Name, Msg: "raid partition belongs to no array"}
				}
				parts[part.Name] = PartitionEntry{
					Size:    "100%",
					Content: RaidMember{Array: arr},
				}
			case plan.RoleLVM:
				vg, ok := vgOf[part.Name]
				if !ok {
					return nil, &plan.ValidationError{Field: part.Name, Msg: "pv partition belongs to no volume group"}
				}
				parts[part.Name] = PartitionEntry{
					Size:    "100%",
					Content: PVMember{VG: vg},
				}
			default:
				return nil, &plan.ValidationError{Field: part.Name, Msg: fmt.Sprintf("unknown partition role %q", part.Role)}
			}
		}
		tree.Disk[d.Name] = DiskEntry{
			Device:  d.Path,
			Type:    "disk",
			Content: GPTTable{Type: "gpt", Partitions: parts},
		}
	}

	if len(p.Arrays) > 0 {
		tree.Mdadm = make(map[string]RaidEntry)
		for _, a := range p.Arrays {
			entry := RaidEntry{Level: a.Level.Numeric()}
			if vg, ok := vgOf[a.Name]; ok {
				entry.Content = &PVMember{VG: vg}
			}
			tree.Mdadm[a.Name] = entry
		}
	}

	if len(p.VGs) > 0 {
		tree.LvmVG = make(map[string]VGEntry)
		for _, vg := range p.VGs {
			lvs := make(map[string]LVEntry)
			for _, lv := range p.LVs {
				if lv.VG != vg.Name {
					continue
				}
				lvs[lv.Name] = lvEntry(lv)
			}
			tree.LvmVG[vg.Name] = VGEntry{Type: "lvm_vg", LVs: lvs}
		}
	}

	return tree, nil
}

func lvEntry(lv plan.LogicalVolume) LVEntry {
	size := layout.FormatSize(lv.Size)
	if lv.FillVG {
		size = "100%"
	}
	if lv.Swap {
		return LVEntry{Size: size, Content: SwapContent{}}
	}

	mountpoint := "/" + lv.Name
	options := []string{"noatime"}
	if lv.Name == "slash" {
		mountpoint = "/"
		options = []string{"relatime"}
	}
	return LVEntry{
		Size: size,
		Content: Filesystem{
			Format:       "ext4",
			Label:        SanitizeLabel(lv.Name),
			Mountpoint:   mountpoint,
			MountOptions: options,
		},
	}
}
