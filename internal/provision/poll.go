package provision

import (
	"fmt"
	"os"
	"strings"
	"time"
)

// WaitForMount polls /proc/mounts until the given mountpoint appears.
// Fixed interval, bounded attempts, no backoff growth.
func WaitForMount(mountpoint string, interval time.Duration, attempts int) error {
	return waitForMount(mountpoint, "/proc/mounts", interval, attempts)
}

func waitForMount(mountpoint, mountsPath string, interval time.Duration, attempts int) error {
	for i := 0; i < attempts; i++ {
		data, err := os.ReadFile(mountsPath)
		if err == nil {
			for _, line := range strings.Split(string(data), "\n") {
				fields := strings.Fields(line)
				if len(fields) >= 2 && fields[1] == mountpoint {
					return nil
				}
			}
		}
		time.Sleep(interval)
	}
	return fmt.Errorf("mount %s not ready after %d attempts", mountpoint, attempts)
}

// WaitForStatusFile polls a status file until its trimmed content equals
// one of the terminal states, and returns that state. Background
// provisioning steps report completion through such files.
func WaitForStatusFile(path string, terminal []string, interval time.Duration, attempts int) (string, error) {
	for i := 0; i < attempts; i++ {
		data, err := os.ReadFile(path)
		if err == nil {
			state := strings.TrimSpace(string(data))
			for _, t := range terminal {
				if state == t {
					return state, nil
				}
			}
		}
		time.Sleep(interval)
	}
	return "", fmt.Errorf("status file %s not terminal after %d attempts", path, attempts)
}
