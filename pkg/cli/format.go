package cli

import (
	"fmt"
	"time"

	"github.com/dustin/go-humanize"
)

// FormatDuration formats a duration with a precision that suits its size
func FormatDuration(d time.Duration) string {
	switch {
	case d < time.Millisecond:
		return fmt.Sprintf("%dµs", d.Microseconds())
	case d < time.Second:
		return fmt.Sprintf("%dms", d.Milliseconds())
	case d < time.Minute:
		return fmt.Sprintf("%.1fs", d.Seconds())
	}
	mins := int(d / time.Minute)
	secs := (d - time.Duration(mins)*time.Minute).Seconds()
	return fmt.Sprintf("%dm%.1fs", mins, secs)
}

// FormatBytes formats bytes to human readable string
func FormatBytes(bytes uint64) string {
	return humanize.IBytes(bytes)
}

// FormatRate formats a byte rate to human readable string
func FormatRate(bytesPerSecond float64) string {
	if bytesPerSecond <= 0 {
		return "0 B/s"
	}
	return humanize.IBytes(uint64(bytesPerSecond)) + "/s"
}

// FormatCount formats a counter with thousands separators
func FormatCount(n uint64) string {
	return humanize.Comma(int64(n))
}
