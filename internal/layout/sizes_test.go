package layout

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseSize(t *testing.T) {
	t.Parallel()
	tests := []struct {
		in   string
		want int64
	}{
		{"50G", 50 * GiB},
		{"512M", 512 * MiB},
		{"2T", 2 * TiB},
		{"16k", 16 * KiB},
		{"1024", 1024},
		{" 8G ", 8 * GiB},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.in, func(t *testing.T) {
			t.Parallel()
			got, err := ParseSize(tt.in)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}

	for _, bad := range []string{"", "G", "ten gigs", "1.5G"} {
		_, err := ParseSize(bad)
		assert.Error(t, err, "input %q", bad)
	}
}

func TestFormatSize(t *testing.T) {
	t.Parallel()
	assert.Equal(t, "50G", FormatSize(50*GiB))
	assert.Equal(t, "2T", FormatSize(2*TiB))
	assert.Equal(t, "1536M", FormatSize(GiB+512*MiB))
	assert.Equal(t, "1025", FormatSize(1025))
}

func TestFloorMiB(t *testing.T) {
	t.Parallel()
	assert.Equal(t, int64(99*GiB), floorMiB(100*GiB-1*GiB))
	assert.Equal(t, int64(MiB), floorMiB(MiB+1023))
	assert.Equal(t, int64(0), floorMiB(MiB-1))
}
