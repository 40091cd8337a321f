// Package format turns catalog timestamps into strings for display
package format

import (
	"strings"
	"time"

	"github.com/dustin/go-humanize"
)

// HumanDateLayout renders as DD-MMM-YYYY, e.g. 17-Sep-2020
const HumanDateLayout = "02-Jan-2006"

var isoLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02",
}

// EpochToHuman formats a unix timestamp (seconds) as a UTC date. Zero gives "".
func EpochToHuman(secs int64) string {
	if secs == 0 {
		return ""
	}
	return time.Unix(secs, 0).UTC().Format(HumanDateLayout)
}

// EpochToRelative describes a unix timestamp relative to now, e.g. "3 days ago"
func EpochToRelative(secs int64) string {
	return EpochToRelativeAt(secs, time.Now())
}

func EpochToRelativeAt(secs int64, now time.Time) string {
	if secs == 0 {
		return ""
	}
	return humanize.RelTime(time.Unix(secs, 0), now, "ago", "from now")
}

// ISO8601ToRelative is EpochToRelative for ISO-8601 strings. Values without a zone are UTC.
func ISO8601ToRelative(value string) string {
	return ISO8601ToRelativeAt(value, time.Now())
}

func ISO8601ToRelativeAt(value string, now time.Time) string {
	t, ok := ParseISO8601(value)
	if !ok {
		return ""
	}
	return humanize.RelTime(t, now, "ago", "from now")
}

// ParseISO8601 accepts RFC 3339 and the common zone-less variants
func ParseISO8601(value string) (time.Time, bool) {
	value = strings.TrimSpace(value)
	if value == "" {
		return time.Time{}, false
	}
	for _, layout := range isoLayouts {
		if t, err := time.ParseInLocation(layout, value, time.UTC); err == nil {
			return t.UTC(), true
		}
	}
	return time.Time{}, false
}
