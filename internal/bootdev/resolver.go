package bootdev

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/rs/zerolog/log"

	"github.com/skalb/diskomat/internal/runner"
)

// ErrNoBootDisk means no branch of the resolver could determine the boot
// medium's disk. Callers must treat this as "exclude no disk", never as
// a failure.
var ErrNoBootDisk = errors.New("no boot disk determined")

// bootMountpoints are probed in order for the device backing the running
// install medium.
var bootMountpoints = []string{
	"/iso",
	"/nix/.ro-store",
	"/run/live/medium",
	"/run/initramfs/live",
}

// bootFSTypes are filesystem types that only ever back a boot medium.
var bootFSTypes = map[string]bool{
	"iso9660":  true,
	"squashfs": true,
	"erofs":    true,
}

// Resolver finds the physical disk hosting the running boot/install
// medium. The paths are injectable for tests; zero values use the real
// proc and dev locations.
type Resolver struct {
	Runner      runner.Runner
	CmdlinePath string
	MountsPath  string
	DevDiskDir  string
}

func (r *Resolver) cmdlinePath() string {
	if r.CmdlinePath != "" {
		return r.CmdlinePath
	}
	return "/proc/cmdline"
}

func (r *Resolver) mountsPath() string {
	if r.MountsPath != "" {
		return r.MountsPath
	}
	return "/proc/mounts"
}

func (r *Resolver) devDiskDir() string {
	if r.DevDiskDir != "" {
		return r.DevDiskDir
	}
	return "/dev/disk"
}

// Resolve walks three branches, first match wins: the kernel command
// line's boot= argument, the known boot-medium mountpoints, and finally
// any mount of a boot-medium filesystem type. The resolved partition is
// mapped to its parent disk; a partition with no reported parent is
// itself the boot disk.
func (r *Resolver) Resolve(ctx context.Context) (string, error) {
	if dev := r.fromCmdline(); dev != "" {
		return r.parentDisk(ctx, dev)
	}

	mounts, err := r.readMounts()
	if err != nil {
		log.Warn().Err(err).Msg("cannot read mount table")
		return "", ErrNoBootDisk
	}

	for _, mnt := range bootMountpoints {
		for _, m := range mounts {
			if m.mountpoint != mnt {
				continue
			}
			if dev := r.sourceDevice(m.source); dev != "" {
				return r.parentDisk(ctx, dev)
			}
		}
	}

	for _, m := range mounts {
		if !bootFSTypes[m.fstype] {
			continue
		}
		if dev := r.sourceDevice(m.source); dev != "" {
			return r.parentDisk(ctx, dev)
		}
	}

	return "", ErrNoBootDisk
}

// fromCmdline scans kernel arguments for boot=LABEL=<x> or
// boot=UUID=<x> and returns the matching /dev/disk/by-* path if it
// exists.
func (r *Resolver) fromCmdline() string {
	data, err := os.ReadFile(r.cmdlinePath())
	if err != nil {
		return ""
	}
	for _, arg := range strings.Fields(string(data)) {
		val, ok := strings.CutPrefix(arg, "boot=")
		if !ok {
			continue
		}
		var byDir string
		switch {
		case strings.HasPrefix(val, "LABEL="):
			byDir, val = "by-label", strings.TrimPrefix(val, "LABEL=")
		case strings.HasPrefix(val, "UUID="):
			byDir, val = "by-uuid", strings.TrimPrefix(val, "UUID=")
		default:
			continue
		}
		path := filepath.Join(r.devDiskDir(), byDir, val)
		if _, err := os.Stat(path); err == nil {
			return path
		}
	}
	return ""
}

// sourceDevice maps a mount source to a device path. LABEL=, UUID=,
// PARTUUID= and PARTLABEL= syntax is translated to /dev/disk/by-* paths;
// unmappable sources yield "".
func (r *Resolver) sourceDevice(source string) string {
	source = unescapeOctal(source)

	byDirs := map[string]string{
		"LABEL=":     "by-label",
		"UUID=":      "by-uuid",
		"PARTUUID=":  "by-partuuid",
		"PARTLABEL=": "by-partlabel",
	}
	for prefix, dir := range byDirs {
		if val, ok := strings.CutPrefix(source, prefix); ok {
			path := filepath.Join(r.devDiskDir(), dir, val)
			if _, err := os.Stat(path); err == nil {
				return path
			}
			return ""
		}
	}
	if strings.HasPrefix(source, "/dev/") {
		return source
	}
	return ""
}

// parentDisk resolves symlinks on the device and asks the block layer
// for its parent disk.
func (r *Resolver) parentDisk(ctx context.Context, dev string) (string, error) {
	if real, err := filepath.EvalSymlinks(dev); err == nil {
		dev = real
	}

	res, err := r.Runner.Run(ctx, "lsblk", "-no", "PKNAME", dev)
	if err != nil {
		return "", fmt.Errorf("query parent of %s: %w", dev, err)
	}
	parent := strings.TrimSpace(strings.SplitN(string(res.Stdout), "\n", 2)[0])
	if parent == "" {
		// no parent reported: the device is the whole boot disk
		return dev, nil
	}
	return "/dev/" + parent, nil
}

type mountEntry struct {
	source     string
	mountpoint string
	fstype     string
}

func (r *Resolver) readMounts() ([]mountEntry, error) {
	data, err := os.ReadFile(r.mountsPath())
	if err != nil {
		return nil, err
	}
	var mounts []mountEntry
	for _, line := range strings.Split(string(data), "\n") {
		fields := strings.Fields(line)
		if len(fields) < 3 {
			continue
		}
		mounts = append(mounts, mountEntry{
			source:     fields[0],
			mountpoint: unescapeOctal(fields[1]),
			fstype:     fields[2],
		})
	}
	return mounts, nil
}

// unescapeOctal decodes the \NNN escapes the kernel uses for spaces and
// other special characters in /proc/mounts fields.
func unescapeOctal(s string) string {
	if !strings.Contains(s, `\`) {
		return s
	}
	var b strings.Builder
	for i := 0; i < len(s); i++ {
		if s[i] == '\\' && i+3 < len(s) {
			if n, err := strconv.ParseUint(s[i+1:i+4], 8, 8); err == nil {
				b.WriteByte(byte(n))
				i += 3
				continue
			}
		}
		b.WriteByte(s[i])
	}
	return b.String()
}
