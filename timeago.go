package typedcache

import (
	"fmt"
	"time"
)

// FormatTimeAgo renders t as a human-readable age string, part of the
// dashboard contract: "Xs ago", "Xm ago", "Xh ago", "Xd ago", "Xmo ago", or
// "Xy ago", using floor division at thresholds of 60s, 60m, 24h, 30d, 365d.
func FormatTimeAgo(t time.Time) string {
	return formatTimeAgoAt(t, time.Now())
}

func formatTimeAgoAt(t, now time.Time) string {
	secs := int64(now.Sub(t).Seconds())
	if secs < 0 {
		secs = 0
	}
	switch {
	case secs < 60:
		return fmt.Sprintf("%ds ago", secs)
	case secs < 60*60:
		return fmt.Sprintf("%dm ago", secs/60)
	case secs < 24*60*60:
		return fmt.Sprintf("%dh ago", secs/(60*60))
	case secs < 30*24*60*60:
		return fmt.Sprintf("%dd ago", secs/(24*60*60))
	case secs < 365*24*60*60:
		return fmt.Sprintf("%dmo ago", secs/(30*24*60*60))
	default:
		return fmt.Sprintf("%dy ago", secs/(365*24*60*60))
	}
}
