// Package format renders numbers, durations and timestamps for log lines
// and the stats surfaces. Values are shortened for humans, not parsers.
package format

import (
	"fmt"
	"time"
)

// Bytes renders a byte count in 1024-based units, two decimals from KB up.
func Bytes(n uint64) string {
	const unit = 1024
	if n < unit {
		return fmt.Sprintf("%d B", n)
	}

	units := []string{"KB", "MB", "GB", "TB", "PB"}
	value := float64(n) / unit
	idx := 0
	for value >= unit && idx < len(units)-1 {
		value /= unit
		idx++
	}
	return fmt.Sprintf("%.2f %s", value, units[idx])
}

// Duration formats a duration with second precision, h/m/s style.
func Duration(d time.Duration) string {
	if d < time.Second {
		return d.String()
	}

	total := int(d.Seconds())
	h, m, s := total/3600, (total/60)%60, total%60

	switch {
	case h > 0:
		return fmt.Sprintf("%dh%dm%ds", h, m, s)
	case m > 0:
		return fmt.Sprintf("%dm%ds", m, s)
	default:
		return fmt.Sprintf("%ds", s)
	}
}

// UpCount renders "healthy/total" server tallies for health summaries.
func UpCount(up, total int) string {
	return fmt.Sprintf("%d/%d", up, total)
}

// Percentage renders a ratio already scaled to 0..100.
func Percentage(v float64) string {
	switch v {
	case 0:
		return "0%"
	case 100:
		return "100%"
	}
	return fmt.Sprintf("%.1f%%", v)
}

// Latency renders milliseconds, switching to seconds at 1000.
func Latency(ms int64) string {
	if ms >= 1000 {
		return fmt.Sprintf("%.1fs", float64(ms)/1000)
	}
	return fmt.Sprintf("%dms", ms)
}

// Uptime renders long-running durations coarsely, for the root card and
// shutdown report.
func Uptime(d time.Duration) string {
	switch {
	case d < time.Minute:
		return fmt.Sprintf("%.0fs", d.Seconds())
	case d < time.Hour:
		return fmt.Sprintf("%.0fm", d.Minutes())
	}

	hours := int(d.Hours())
	if hours < 24 {
		return fmt.Sprintf("%dh %dm", hours, int(d.Minutes())%60)
	}
	return fmt.Sprintf("%dd %dh", hours/24, hours%24)
}

// TimeAgo renders how long ago t was, or "never" for the zero time.
func TimeAgo(t time.Time) string {
	if t.IsZero() {
		return "never"
	}
	return TimeDuration(time.Since(t)) + " ago"
}

// TimeUntil renders how far away t is, "now" once it has passed.
func TimeUntil(t time.Time) string {
	if t.IsZero() {
		return "unknown"
	}
	if left := time.Until(t); left > 0 {
		return "in " + TimeDuration(left)
	}
	return "now"
}

// TimeDuration renders a duration with one coarse unit: s, m, h or d.
func TimeDuration(d time.Duration) string {
	switch {
	case d < time.Minute:
		return fmt.Sprintf("%ds", int(d.Seconds()))
	case d < time.Hour:
		return fmt.Sprintf("%.0fm", d.Minutes())
	case d < 24*time.Hour:
		return fmt.Sprintf("%.0fh", d.Hours())
	}
	return fmt.Sprintf("%.0fd", d.Hours()/24)
}
