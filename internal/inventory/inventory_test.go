package inventory

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/skalb/diskomat/internal/runner"
)

func TestIsSynthetic(t *testing.T) {
	t.Parallel()
	for _, name := range []string{"dm-0", "loop3", "ram0", "sr0", "fd0", "md127", "zram0"} {
		assert.True(t, IsSynthetic(name), name)
	}
	for _, name := range []string{"sda", "nvme0n1", "vda", "xvda", "mmcblk0"} {
		assert.False(t, IsSynthetic(name), name)
	}
}

func TestEnumerate(t *testing.T) {
	t.Parallel()
	rec := &runner.Recorder{Prefixes: map[string]runner.Response{
		"lsblk": {Stdout: `{"blockdevices": [
			{"name": "sda", "path": "/dev/sda", "size": 1000204886016, "rota": true, "rm": false, "type": "disk", "serial": " WD-1234 ", "tran": "sata"},
			{"name": "nvme0n1", "path": "/dev/nvme0n1", "size": "512110190592", "rota": false, "rm": false, "type": "disk", "serial": "S123", "tran": "nvme"},
			{"name": "sdb", "path": "/dev/sdb", "size": 8004304896, "rota": true, "rm": true, "type": "disk"},
			{"name": "dm-0", "path": "/dev/dm-0", "size": 1000, "rota": false, "rm": false, "type": "disk"},
			{"name": "sr0", "path": "/dev/sr0", "size": 0, "rota": true, "rm": false, "type": "rom"}
		]}`},
	}}

	disks, err := Enumerate(context.Background(), rec)
	require.NoError(t, err)
	require.Len(t, disks, 2)

	sda := disks[0]
	assert.Equal(t, "sda", sda.Name)
	assert.Equal(t, "/dev/sda", sda.Path)
	assert.Equal(t, int64(1000204886016), sda.SizeBytes)
	assert.True(t, sda.Rotational)
	assert.False(t, sda.NVMe)
	assert.Equal(t, "WD-1234", sda.Serial)

	nvme := disks[1]
	assert.True(t, nvme.NVMe)
	assert.False(t, nvme.Rotational)
	assert.Equal(t, int64(512110190592), nvme.SizeBytes, "quoted size column must parse too")
}

func TestEnumerateFailure(t *testing.T) {
	t.Parallel()
	rec := &runner.Recorder{Prefixes: map[string]runner.Response{
		"lsblk": {Code: 1, Stderr: "no devices"},
	}}
	_, err := Enumerate(context.Background(), rec)
	assert.Error(t, err)
}

func TestParseSizeColumn(t *testing.T) {
	t.Parallel()
	for _, tt := range []struct {
		raw  string
		want int64
	}{
		{`1000204886016`, 1000204886016},
		{`"512110190592"`, 512110190592},
		{`null`, 0},
		{``, 0},
	} {
		got, err := ParseSizeColumn(json.RawMessage(tt.raw))
		require.NoError(t, err, tt.raw)
		assert.Equal(t, tt.want, got, tt.raw)
	}

	_, err := ParseSizeColumn(json.RawMessage(`"4 TiB"`))
	assert.Error(t, err)
}

func TestRAMSizeGiB(t *testing.T) {
	t.Parallel()
	ram, err := RAMSizeGiB()
	require.NoError(t, err)
	assert.Greater(t, ram, 0)
}
