package inbox

import (
	"strconv"
	"time"
)

const (
	minutesPerHour = 60
	minutesPerDay  = 24 * minutesPerHour
)

// FormatRelative renders the age of ts as "Nm", "Nh" or "Nd". Timestamps in
// the future count as "0m".
func FormatRelative(ts, now time.Time) string {
	minutes := int64(now.Sub(ts) / time.Minute)
	if minutes < 0 {
		minutes = 0
	}
	switch {
	case minutes < minutesPerHour:
		return strconv.FormatInt(minutes, 10) + "m"
	case minutes < minutesPerDay:
		return strconv.FormatInt(minutes/minutesPerHour, 10) + "h"
	default:
		return strconv.FormatInt(minutes/minutesPerDay, 10) + "d"
	}
}
