package view

import (
	"fmt"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/dharsanguruparan/compressdash/internal/model"
)

// Placeholder renders any absent field.
const Placeholder = "-"

const timeLayout = "Jan 2, 2006 15:04"

// FormatSize renders a byte count in IEC units.
func FormatSize(bytes *int64) string {
	if bytes == nil || *bytes < 0 {
		return Placeholder
	}
	return humanize.IBytes(uint64(*bytes))
}

// FormatTime renders a timestamp in local time.
func FormatTime(t *time.Time) string {
	if t == nil || t.IsZero() {
		return Placeholder
	}
	return t.Local().Format(timeLayout)
}

// FormatAge renders how long ago t was relative to now, e.g. "3 minutes ago".
func FormatAge(t *time.Time, now time.Time) string {
	if t == nil || t.IsZero() {
		return Placeholder
	}
	return humanize.RelTime(*t, now, "ago", "from now")
}

// Savings renders the relative size reduction with one decimal.
func Savings(original, compressed *int64) string {
	if original == nil || compressed == nil || *original == 0 || *compressed == 0 {
		return Placeholder
	}
	pct := float64(*original-*compressed) / float64(*original) * 100
	return fmt.Sprintf("%.1f%%", pct)
}

// Ratio returns compressed/original in [0,1] and false when it cannot be
// computed. The details view draws it as a bar.
func Ratio(original, compressed *int64) (float64, bool) {
	if original == nil || compressed == nil || *original <= 0 || *compressed < 0 {
		return 0, false
	}
	r := float64(*compressed) / float64(*original)
	if r > 1 {
		r = 1
	}
	return r, true
}

// StatusLabel never fails, whatever the server sent.
func StatusLabel(status model.JobStatus) string {
	return status.Label()
}

// Text dereferences an optional string.
func Text(s *string) string {
	if s == nil || *s == "" {
		return Placeholder
	}
	return *s
}
