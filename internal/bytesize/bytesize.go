// Package bytesize provides a byte count that unmarshals from
// human-readable strings, so configuration files can say "4MiB" or
// "512k" instead of raw integers.
package bytesize

import (
	"fmt"
	"strconv"
	"strings"
)

// ByteSize is a size in bytes. It accepts plain integers, binary units
// (Ki/Mi/Gi/Ti, x1024) and decimal units (K/M/G/T, x1000), with an
// optional trailing B and in any case: "4MiB", "512k", "1048576".
type ByteSize uint64

const (
	B  ByteSize = 1
	KB ByteSize = 1000 * B
	MB ByteSize = 1000 * KB
	GB ByteSize = 1000 * MB
	TB ByteSize = 1000 * GB

	KiB ByteSize = 1024 * B
	MiB ByteSize = 1024 * KiB
	GiB ByteSize = 1024 * MiB
	TiB ByteSize = 1024 * GiB
)

var units = map[string]ByteSize{
	"":  B,
	"b": B,

	"k": KB, "kb": KB,
	"m": MB, "mb": MB,
	"g": GB, "gb": GB,
	"t": TB, "tb": TB,

	"ki": KiB, "kib": KiB,
	"mi": MiB, "mib": MiB,
	"gi": GiB, "gib": GiB,
	"ti": TiB, "tib": TiB,
}

// ParseByteSize parses a human-readable size. Fractional values are
// allowed ("1.5Gi") and truncate to whole bytes.
func ParseByteSize(s string) (ByteSize, error) {
	trimmed := strings.TrimSpace(s)
	if trimmed == "" {
		return 0, fmt.Errorf("empty byte size")
	}

	// Split the leading numeric run from the unit suffix.
	cut := len(trimmed)
	for i, r := range trimmed {
		if (r < '0' || r > '9') && r != '.' {
			cut = i
			break
		}
	}
	number := trimmed[:cut]
	unit := strings.ToLower(strings.TrimSpace(trimmed[cut:]))

	if number == "" {
		return 0, fmt.Errorf("invalid byte size %q", s)
	}
	multiplier, ok := units[unit]
	if !ok {
		return 0, fmt.Errorf("unknown byte size unit %q", trimmed[cut:])
	}

	if strings.Contains(number, ".") {
		f, err := strconv.ParseFloat(number, 64)
		if err != nil {
			return 0, fmt.Errorf("invalid byte size %q", s)
		}
		return ByteSize(f * float64(multiplier)), nil
	}

	n, err := strconv.ParseUint(number, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid byte size %q", s)
	}
	return ByteSize(n) * multiplier, nil
}

// UnmarshalText lets ByteSize fields decode from strings via mapstructure
// and friends.
func (b *ByteSize) UnmarshalText(text []byte) error {
	size, err := ParseByteSize(string(text))
	if err != nil {
		return err
	}
	*b = size
	return nil
}

// String renders the size with the largest binary unit that fits.
func (b ByteSize) String() string {
	switch {
	case b >= TiB:
		return fmt.Sprintf("%.2fTiB", float64(b)/float64(TiB))
	case b >= GiB:
		return fmt.Sprintf("%.2fGiB", float64(b)/float64(GiB))
	case b >= MiB:
		return fmt.Sprintf("%.2fMiB", float64(b)/float64(MiB))
	case b >= KiB:
		return fmt.Sprintf("%.2fKiB", float64(b)/float64(KiB))
	default:
		return fmt.Sprintf("%dB", uint64(b))
	}
}
