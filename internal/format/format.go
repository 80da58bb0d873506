// Package format renders sizes, speeds and ages for the presentation layer.
package format

import (
	"fmt"
	"math"
	"time"

	"github.com/dustin/go-humanize"
)

// Bytes renders a size given in KB: KB and MB with one decimal, GB with two.
func Bytes(kb float64) string {
	switch {
	case kb < 1024:
		return fmt.Sprintf("%.1f KB", kb)
	case kb < 1024*1024:
		return fmt.Sprintf("%.1f MB", kb/1024)
	default:
		return fmt.Sprintf("%.2f GB", kb/(1024*1024))
	}
}

// Speed renders a smoothed KB-per-tick value as B/s, KB/s or MB/s.
func Speed(kbps float64) string {
	switch {
	case kbps < 1:
		return fmt.Sprintf("%.0f B/s", kbps*1024)
	case kbps < 1024:
		return fmt.Sprintf("%.1f KB/s", kbps)
	default:
		return fmt.Sprintf("%.2f MB/s", kbps/1024)
	}
}

var ageMagnitudes = []humanize.RelTimeMagnitude{
	{D: time.Minute, Format: "%ds %s", DivBy: time.Second},
	{D: time.Hour, Format: "%dm %s", DivBy: time.Minute},
	{D: 24 * time.Hour, Format: "%dh %s", DivBy: time.Hour},
	{D: math.MaxInt64, Format: "%dd %s", DivBy: 24 * time.Hour},
}

// TimeAgo renders the age of then relative to now, e.g. "42s ago" or "3h ago".
func TimeAgo(then, now time.Time) string {
	return humanize.CustomRelTime(then, now, "ago", "from now", ageMagnitudes)
}
