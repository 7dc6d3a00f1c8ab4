// Package timeutil formats timestamps and uptimes for CLI output.
package timeutil

import (
	"fmt"
	"strings"
	"time"
)

// LocalTimeFormat is how CLI tables print local timestamps.
const LocalTimeFormat = "Mon Jan 2 15:04:05 2006"

// FormatUptime turns a Go duration string like "72h30m15s" into
// "3d 0h 30m 15s". Unparseable input comes back unchanged.
func FormatUptime(uptime string) string {
	d, err := time.ParseDuration(uptime)
	if err != nil {
		return uptime
	}

	total := int64(d.Seconds())
	days := total / 86400
	hours := (total % 86400) / 3600
	minutes := (total % 3600) / 60
	seconds := total % 60

	var b strings.Builder
	if days > 0 {
		fmt.Fprintf(&b, "%dd ", days)
	}
	if days > 0 || hours > 0 {
		fmt.Fprintf(&b, "%dh ", hours)
	}
	if days > 0 || hours > 0 || minutes > 0 {
		fmt.Fprintf(&b, "%dm ", minutes)
	}
	fmt.Fprintf(&b, "%ds", seconds)
	return b.String()
}

// FormatTime renders an RFC3339 timestamp in local time. Unparseable
// input comes back unchanged.
func FormatTime(timestamp string) string {
	t, err := time.Parse(time.RFC3339, timestamp)
	if err != nil {
		return timestamp
	}
	return t.Local().Format(LocalTimeFormat)
}
