// Package formatting parses and renders human-oriented values: byte sizes
// in configuration and JSON embedded in model output.
package formatting

import (
	"fmt"
	"math"
	"strconv"
	"strings"
)

// byteUnits are base-1024 multipliers. Both the SI spelling (MB) and the
// IEC spelling (MiB) resolve to the same power.
var byteUnits = []string{"B", "K", "M", "G", "T", "P", "E"}

// FormatBytes renders n with the largest base-1024 unit that keeps the value
// at or above one. Negative precision values are clamped to zero.
func FormatBytes(n int64, precision int) string {
	if n < 0 {
		return "-" + FormatBytes(-n, precision)
	}
	if n < 1024 {
		return strconv.FormatInt(n, 10) + " B"
	}
	precision = max(precision, 0)

	size := float64(n)
	i := 0
	for size >= 1024 && i < len(byteUnits)-1 {
		size /= 1024
		i++
	}
	return strconv.FormatFloat(size, 'f', precision, 64) + " " + byteUnits[i] + "B"
}

// ParseBytes parses sizes such as "50MB", "1.5 GiB" or "4096". A bare
// number is a byte count. Units are case-insensitive and base-1024.
func ParseBytes(s string) (int64, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, fmt.Errorf("empty byte size string")
	}

	split := strings.IndexFunc(s, func(r rune) bool {
		return (r < '0' || r > '9') && r != '.'
	})
	number, unit := s, ""
	if split >= 0 {
		number, unit = s[:split], strings.TrimSpace(s[split:])
	}
	if number == "" {
		return 0, fmt.Errorf("invalid byte size: %q", s)
	}

	value, err := strconv.ParseFloat(number, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid byte size number: %w", err)
	}

	power, err := unitPower(unit)
	if err != nil {
		return 0, err
	}

	bytes := value * math.Pow(1024, float64(power))
	if bytes >= math.MaxInt64 {
		return 0, fmt.Errorf("byte size %q overflows int64", s)
	}
	return int64(bytes), nil
}

func unitPower(unit string) (int, error) {
	u := strings.ToUpper(unit)
	if u == "" || u == "B" {
		return 0, nil
	}

	u = strings.TrimSuffix(u, "B")
	u = strings.TrimSuffix(u, "I")
	for i, prefix := range byteUnits[1:] {
		if u == prefix {
			return i + 1, nil
		}
	}
	return 0, fmt.Errorf("unknown byte size unit: %q", unit)
}
