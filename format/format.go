// Package format - Menschenlesbare Groessen und Zeiten fuer die CLI
package format

import (
	"fmt"
	"math"
	"time"
)

const (
	Byte = 1

	KiloByte = Byte * 1000
	MegaByte = KiloByte * 1000
	GigaByte = MegaByte * 1000
)

// HumanBytes formatiert b mit SI-Einheit
func HumanBytes(b int64) string {
	var value float64
	var unit string

	switch {
	case b >= GigaByte:
		value = float64(b) / GigaByte
		unit = "GB"
	case b >= MegaByte:
		value = float64(b) / MegaByte
		unit = "MB"
	case b >= KiloByte:
		value = float64(b) / KiloByte
		unit = "KB"
	default:
		return fmt.Sprintf("%d B", b)
	}

	switch {
	case value >= 10:
		return fmt.Sprintf("%d %s", int(value), unit)
	case value != math.Trunc(value):
		return fmt.Sprintf("%.1f %s", value, unit)
	default:
		return fmt.Sprintf("%d %s", int(value), unit)
	}
}

// HumanTime formatiert t relativ zu jetzt; zeroValue fuer die Nullzeit
func HumanTime(t time.Time, zeroValue string) string {
	if t.IsZero() {
		return zeroValue
	}

	d := time.Since(t)
	suffix := "ago"
	if d < 0 {
		d, suffix = -d, "from now"
	}

	switch {
	case d < time.Second:
		return "Less than a second " + suffix
	case d < time.Minute:
		return plural(int(d/time.Second), "second") + " " + suffix
	case d < time.Hour:
		return plural(int(d/time.Minute), "minute") + " " + suffix
	case d < 24*time.Hour:
		return plural(int(d/time.Hour), "hour") + " " + suffix
	default:
		return plural(int(d/(24*time.Hour)), "day") + " " + suffix
	}
}

func plural(n int, unit string) string {
	if n == 1 {
		return "1 " + unit
	}
	return fmt.Sprintf("%d %ss", n, unit)
}
