package disko

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/rs/zerolog/log"

	"github.com/skalb/diskomat/internal/runner"
)

// Formatter is the declarative disk-formatting collaborator: it renders
// a device tree to its on-disk representation and applies it.
type Formatter interface {
	Render(tree *DeviceTree) ([]byte, error)
	Apply(ctx context.Context, path string) error
}

// CLI drives the disko command-line tool. Render writes the device tree
// as JSON; Apply hands the rendered file to disko, which performs the
// actual partitioning, formatting and mounting.
type CLI struct {
	Runner runner.Runner
	// Mode is disko's run mode, default "disko" (destroy, format, mount).
	Mode string
}

func (c *CLI) Render(tree *DeviceTree) ([]byte, error) {
	out, err := json.MarshalIndent(map[string]*DeviceTree{"disko": tree}, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("render device tree: %w", err)
	}
	return append(out, '\n'), nil
}

func (c *CLI) Apply(ctx context.Context, path string) error {
	mode := c.Mode
	if mode == "" {
		mode = "disko"
	}
	log.Info().Str("config", path).Str("mode", mode).Msg("applying device tree")
	if _, err := c.Runner.Run(ctx, "disko", "--mode", mode, "--yes-wipe-all-disks", path); err != nil {
		return fmt.Errorf("disko apply failed: %w", err)
	}
	return nil
}

// WriteRendered renders the tree and writes it next to the given path,
// creating parent directories as needed.
func WriteRendered(f Formatter, tree *DeviceTree, path string) error {
	data, err := f.Render(tree)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("create output directory: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("write device tree: %w", err)
	}
	return nil
}
