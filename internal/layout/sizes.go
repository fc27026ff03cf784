package layout

import (
	"fmt"
	"strconv"
	"strings"
)

// Byte size units (binary, matching what the formatter expects).
const (
	KiB int64 = 1 << 10
	MiB int64 = 1 << 20
	GiB int64 = 1 << 30
	TiB int64 = 1 << 40
)

// ParseSize parses a human size string like "50G" or "512M" into bytes.
// Units are binary. A bare number is taken as bytes.
func ParseSize(s string) (int64, error) {
	s = strings.TrimSpace(strings.ToUpper(s))
	if s == "" {
		return 0, fmt.Errorf("empty size")
	}
	unit := int64(1)
	switch {
	case strings.HasSuffix(s, "T"):
		unit, s = TiB, strings.TrimSuffix(s, "T")
	case strings.HasSuffix(s, "G"):
		unit, s = GiB, strings.TrimSuffix(s, "G")
	case strings.HasSuffix(s, "M"):
		unit, s = MiB, strings.TrimSuffix(s, "M")
	case strings.HasSuffix(s, "K"):
		unit, s = KiB, strings.TrimSuffix(s, "K")
	}
	n, err := strconv.ParseInt(strings.TrimSpace(s), 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid size %q: %w", s, err)
	}
	return n * unit, nil
}

// FormatSize renders bytes as the compact human string the formatter
// consumes: the largest binary unit that divides evenly.
func FormatSize(b int64) string {
	switch {
	case b >= TiB && b%TiB == 0:
		return strconv.FormatInt(b/TiB, 10) + "T"
	case b >= GiB && b%GiB == 0:
		return strconv.FormatInt(b/GiB, 10) + "G"
	case b >= MiB && b%MiB == 0:
		return strconv.FormatInt(b/MiB, 10) + "M"
	case b >= KiB && b%KiB == 0:
		return strconv.FormatInt(b/KiB, 10) + "K"
	}
	return strconv.FormatInt(b, 10)
}

// floorMiB rounds bytes down to a whole number of MiB.
func floorMiB(b int64) int64 {
	return b - b%MiB
}
