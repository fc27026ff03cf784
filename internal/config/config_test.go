package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/skalb/diskomat/internal/layout"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func TestLoadDefaults(t *testing.T) {
	t.Parallel()
	cfg, err := Load(writeConfig(t, ""))
	require.NoError(t, err)

	assert.Equal(t, "fast", cfg.Mode)
	assert.Equal(t, "50G", cfg.RootSize)
	assert.Equal(t, "wipe", cfg.Policy)
	assert.Equal(t, "/var/lib/diskomat/plan.json", cfg.PlanPath)
	assert.Equal(t, 2, cfg.Poll.IntervalSec)
	assert.Equal(t, 60, cfg.Poll.Attempts)
	assert.False(t, cfg.PreferRaid6OnFour)
}

func TestLoadOverrides(t *testing.T) {
	t.Parallel()
	cfg, err := Load(writeConfig(t, `
mode: careful
prefer_raid6_on_four: true
root_size: 80G
policy: discard
poll:
  interval_sec: 5
  attempts: 10
`))
	require.NoError(t, err)

	assert.Equal(t, "careful", cfg.Mode)
	assert.True(t, cfg.PreferRaid6OnFour)
	assert.Equal(t, "80G", cfg.RootSize)
	assert.Equal(t, "discard", cfg.Policy)
	assert.Equal(t, 5, cfg.Poll.IntervalSec)
	assert.Equal(t, 10, cfg.Poll.Attempts)
}

func TestLoadRejectsBadTokens(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name    string
		content string
	}{
		{"bad_mode", "mode: turbo\n"},
		{"bad_policy", "policy: nuke\n"},
		{"bad_root_size", "root_size: fifty gigs\n"},
		{"malformed_yaml", "mode: [\n"},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			_, err := Load(writeConfig(t, tt.content))
			assert.Error(t, err)
		})
	}
}

func TestLoadMissingExplicitPath(t *testing.T) {
	t.Parallel()
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}

func TestLayoutOptions(t *testing.T) {
	t.Parallel()
	cfg, err := Load(writeConfig(t, "mode: careful\nroot_size: 80G\nsize_tolerance: 0.02\n"))
	require.NoError(t, err)

	opts, err := cfg.LayoutOptions()
	require.NoError(t, err)
	assert.Equal(t, layout.ModeCareful, opts.Mode)
	assert.Equal(t, int64(80*layout.GiB), opts.RootSize)
	assert.Equal(t, 0.02, opts.SizeTolerance)
}
