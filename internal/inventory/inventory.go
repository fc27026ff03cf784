package inventory

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/shirou/gopsutil/v3/mem"

	"github.com/skalb/diskomat/internal/runner"
)

// Disk is one physical block device as reported by the OS. Created once
// per run and never mutated afterward.
type Disk struct {
	Name       string `json:"name"`
	Path       string `json:"path"`
	SizeBytes  int64  `json:"size"`
	Rotational bool   `json:"rotational"`
	Serial     string `json:"serial,omitempty"`
	NVMe       bool   `json:"nvme"`
}

// syntheticPrefixes are kernel-synthesized or virtual block devices that
// never hold installable storage.
var syntheticPrefixes = []string{"dm-", "loop", "ram", "sr", "fd", "md", "zram"}

// IsSynthetic reports whether a device name belongs to a device-mapper,
// loopback, ramdisk, optical or md device.
func IsSynthetic(name string) bool {
	for _, p := range syntheticPrefixes {
		if strings.HasPrefix(name, p) {
			return true
		}
	}
	return false
}

// lsblkReport mirrors the JSON emitted by lsblk -d -b -J.
type lsblkReport struct {
	Blockdevices []struct {
		Name   string          `json:"name"`
		Path   string          `json:"path"`
		Size   json.RawMessage `json:"size"`
		Rota   bool            `json:"rota"`
		RM     bool            `json:"rm"`
		Type   string          `json:"type"`
		Serial *string         `json:"serial"`
		Tran   *string         `json:"tran"`
	} `json:"blockdevices"`
}

// Enumerate lists the fixed disks available for provisioning. Removable
// media and synthetic devices are filtered out here; boot-disk exclusion
// is the caller's job.
func Enumerate(ctx context.Context, r runner.Runner) ([]Disk, error) {
	res, err := r.Run(ctx, "lsblk", "-d", "-b", "-J", "-o", "NAME,PATH,SIZE,ROTA,RM,TYPE,SERIAL,TRAN")
	if err != nil {
		return nil, fmt.Errorf("lsblk enumeration failed: %w", err)
	}

	var report lsblkReport
	if err := json.Unmarshal(res.Stdout, &report); err != nil {
		return nil, fmt.Errorf("parse lsblk output: %w", err)
	}

	var disks []Disk
	for _, bd := range report.Blockdevices {
		if bd.Type != "disk" || bd.RM || IsSynthetic(bd.Name) {
			continue
		}
		size, err := ParseSizeColumn(bd.Size)
		if err != nil {
			return nil, fmt.Errorf("parse size of %s: %w", bd.Name, err)
		}
		d := Disk{
			Name:       bd.Name,
			Path:       bd.Path,
			SizeBytes:  size,
			Rotational: bd.Rota,
			NVMe:       strings.HasPrefix(bd.Name, "nvme"),
		}
		if bd.Serial != nil {
			d.Serial = strings.TrimSpace(*bd.Serial)
		}
		if d.Path == "" {
			d.Path = "/dev/" + d.Name
		}
		disks = append(disks, d)
	}
	return disks, nil
}

// RAMSizeGiB returns installed memory rounded to the nearest GiB. Swap
// sizing keys off this value.
func RAMSizeGiB() (int, error) {
	vm, err := mem.VirtualMemory()
	if err != nil {
		return 0, fmt.Errorf("read memory size: %w", err)
	}
	const gib = 1 << 30
	return int((vm.Total + gib/2) / gib), nil
}

// ParseSizeColumn converts lsblk's SIZE column (bytes as string in some
// versions) into an int64. Kept tolerant because lsblk emits either form.
func ParseSizeColumn(raw json.RawMessage) (int64, error) {
	s := strings.Trim(string(raw), `"`)
	if s == "" || s == "null" {
		return 0, nil
	}
	return strconv.ParseInt(s, 10, 64)
}
