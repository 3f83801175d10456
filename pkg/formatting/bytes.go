// Package formatting parses and renders values that appear in config
// files and model output: byte sizes and JSON responses.
package formatting

import (
	"fmt"
	"strconv"
	"strings"
	"unicode"
)

const kib = 1024

// multipliers maps a lowercase unit suffix to its size in bytes. Both
// "MB" and "MiB" spellings are base-1024.
var multipliers = map[string]float64{
	"":    1,
	"b":   1,
	"k":   kib,
	"kb":  kib,
	"kib": kib,
	"m":   kib * kib,
	"mb":  kib * kib,
	"mib": kib * kib,
	"g":   kib * kib * kib,
	"gb":  kib * kib * kib,
	"gib": kib * kib * kib,
	"t":   kib * kib * kib * kib,
	"tb":  kib * kib * kib * kib,
	"tib": kib * kib * kib * kib,
}

var labels = []string{"B", "KB", "MB", "GB", "TB"}

// ParseBytes reads a size such as "50MB", "1.5 kib" or "512".
func ParseBytes(s string) (int64, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, fmt.Errorf("empty byte size")
	}

	split := strings.IndexFunc(s, func(r rune) bool {
		return !unicode.IsDigit(r) && r != '.'
	})
	number, unit := s, ""
	if split >= 0 {
		number, unit = s[:split], strings.TrimSpace(s[split:])
	}

	value, err := strconv.ParseFloat(number, 64)
	if err != nil || number == "" {
		return 0, fmt.Errorf("invalid byte size: %q", s)
	}

	mult, ok := multipliers[strings.ToLower(unit)]
	if !ok {
		return 0, fmt.Errorf("unknown byte size unit: %q", unit)
	}
	return int64(value * mult), nil
}

// FormatBytes renders n with the largest unit that keeps the value at or
// above one, e.g. 52428800 -> "50 MB".
func FormatBytes(n int64) string {
	value := float64(n)
	i := 0
	for value >= kib && i < len(labels)-1 {
		value /= kib
		i++
	}
	if value == float64(int64(value)) {
		return fmt.Sprintf("%d %s", int64(value), labels[i])
	}
	return fmt.Sprintf("%.1f %s", value, labels[i])
}
