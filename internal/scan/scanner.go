package scan

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/rs/zerolog/log"

	"github.com/skalb/diskomat/internal/inventory"
	"github.com/skalb/diskomat/internal/runner"
)

// Reason records why a disk counts as carrying existing storage.
type Reason string

const (
	ReasonPartitions Reason = "partitions"
	ReasonSignatures Reason = "signatures"
)

// ExistingDevice is a non-boot disk that already carries partitions or
// on-disk signatures and therefore needs teardown before provisioning.
type ExistingDevice struct {
	Path    string   `json:"path"`
	Reasons []Reason `json:"reasons"`
}

// lsblkVanished is lsblk's exit status when none of the requested
// devices exist anymore.
const lsblkVanished = 32

// Scanner flags non-boot disks with pre-existing storage.
type Scanner struct {
	Runner runner.Runner
	// BootDisk is excluded from scanning. Empty means exclude nothing.
	BootDisk string
	// Stat is injectable for tests; defaults to os.Stat existence check.
	Stat func(path string) error
}

func (s *Scanner) stat(path string) error {
	if s.Stat != nil {
		return s.Stat(path)
	}
	_, err := os.Stat(path)
	return err
}

// Scan probes every eligible disk's partition table and signature set.
func (s *Scanner) Scan(ctx context.Context) ([]ExistingDevice, error) {
	res, err := s.Runner.Run(ctx, "lsblk", "-d", "-b", "-J", "-o", "NAME,PATH,TYPE,RM")
	if err != nil {
		return nil, fmt.Errorf("list block devices: %w", err)
	}

	var report struct {
		Blockdevices []struct {
			Name string `json:"name"`
			Path string `json:"path"`
			Type string `json:"type"`
			RM   bool   `json:"rm"`
		} `json:"blockdevices"`
	}
	if err := json.Unmarshal(res.Stdout, &report); err != nil {
		return nil, fmt.Errorf("parse lsblk output: %w", err)
	}

	var found []ExistingDevice
	for _, bd := range report.Blockdevices {
		if bd.Type != "disk" || bd.RM || inventory.IsSynthetic(bd.Name) {
			continue
		}
		path := bd.Path
		if path == "" {
			path = "/dev/" + bd.Name
		}
		if s.BootDisk != "" && path == s.BootDisk {
			continue
		}

		reasons, err := s.probe(ctx, path)
		if err != nil {
			return nil, err
		}
		if len(reasons) > 0 {
			log.Info().Str("disk", path).Interface("reasons", reasons).Msg("existing storage detected")
			found = append(found, ExistingDevice{Path: path, Reasons: reasons})
		}
	}
	return found, nil
}

// probe checks one disk for partitions and signatures. A vanished-device
// status is tolerated when the node really is gone, and escalated when
// the node still exists: a disk disappearing mid-probe while nominally
// present is an inconsistency that must not be ignored.
func (s *Scanner) probe(ctx context.Context, path string) ([]Reason, error) {
	var reasons []Reason

	res, err := s.Runner.Run(ctx, "lsblk", "-n", "-o", "NAME", path)
	if err != nil {
		absent, err := s.tolerateVanished(path, err)
		if err != nil {
			return nil, err
		}
		if absent {
			return nil, nil
		}
	} else if countRows(res.Stdout) > 1 {
		reasons = append(reasons, ReasonPartitions)
	}

	res, err = s.Runner.Run(ctx, "wipefs", "-n", path)
	if err != nil {
		absent, err := s.tolerateVanished(path, err)
		if err != nil {
			return nil, err
		}
		if absent {
			return nil, nil
		}
	} else if countRows(res.Stdout) > 0 {
		reasons = append(reasons, ReasonSignatures)
	}

	return reasons, nil
}

// tolerateVanished downgrades a vanished-device probe error to "device
// absent" when the node no longer exists.
func (s *Scanner) tolerateVanished(path string, err error) (bool, error) {
	var cmdErr *runner.CommandError
	if !errors.As(err, &cmdErr) || cmdErr.Code != lsblkVanished {
		return false, err
	}
	if s.stat(path) == nil {
		return false, fmt.Errorf("device %s vanished mid-probe while still present: %w", path, err)
	}
	log.Debug().Str("disk", path).Msg("device vanished during probe, treating as absent")
	return true, nil
}

func countRows(out []byte) int {
	rows := 0
	for _, line := range strings.Split(string(out), "\n") {
		if strings.TrimSpace(line) != "" {
			rows++
		}
	}
	return rows
}
