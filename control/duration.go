package control

import (
	"fmt"
	"strings"
)

// ParseDuration converts an HH:MM:SS time string to seconds. Blank or
// NOT_IMPLEMENTED values and malformed strings yield 0.
func ParseDuration(duration string) int {
	if duration == "" || duration == "NOT_IMPLEMENTED" {
		return 0
	}
	parts := strings.Split(duration, ":")
	if len(parts) != 3 {
		return 0
	}
	hours := parseIntDefault(parts[0], 0)
	minutes := parseIntDefault(parts[1], 0)
	seconds := parseIntDefault(strings.SplitN(parts[2], ".", 2)[0], 0)
	return (hours * 3600) + (minutes * 60) + seconds
}

// FormatDuration renders seconds as HH:MM:SS.
func FormatDuration(seconds int) string {
	if seconds < 0 {
		seconds = 0
	}
	return fmt.Sprintf("%02d:%02d:%02d", seconds/3600, (seconds%3600)/60, seconds%60)
}
