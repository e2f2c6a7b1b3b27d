// Package timemath provides minutes-since-midnight arithmetic for the
// scheduling core. Times of day are stored as "HH:MM" 24-hour strings but
// may arrive from older records or client input in 12-hour "H:MM AM" form.
package timemath

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

const MinutesPerDay = 24 * 60

var (
	ErrParse            = errors.New("unrecognized time of day")
	ErrInvalidTimeRange = errors.New("end time must not be before start time")
	ErrTimeOverflow     = errors.New("time arithmetic crosses midnight")
)

// Interval is a half-open [Start, End) range in minutes since midnight.
type Interval struct {
	Start int
	End   int
}

// Parse converts a time-of-day string into minutes since midnight.
// Accepts 24-hour "HH:MM" and 12-hour "H:MM AM" / "H:MM pm" forms.
func Parse(s string) (int, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, fmt.Errorf("%w: empty string", ErrParse)
	}

	meridiem := ""
	upper := strings.ToUpper(s)
	switch {
	case strings.HasSuffix(upper, "AM"):
		meridiem = "AM"
	case strings.HasSuffix(upper, "PM"):
		meridiem = "PM"
	}
	if meridiem != "" {
		s = strings.TrimSpace(s[:len(s)-2])
	}

	var hour, minute int
	if _, err := fmt.Sscanf(s, "%d:%d", &hour, &minute); err != nil {
		return 0, fmt.Errorf("%w: %q", ErrParse, s)
	}
	if minute < 0 || minute > 59 {
		return 0, fmt.Errorf("%w: minute out of range in %q", ErrParse, s)
	}

	if meridiem != "" {
		if hour < 1 || hour > 12 {
			return 0, fmt.Errorf("%w: hour out of range in %q", ErrParse, s)
		}
		if hour == 12 {
			hour = 0
		}
		if meridiem == "PM" {
			hour += 12
		}
	} else if hour < 0 || hour > 23 {
		return 0, fmt.Errorf("%w: hour out of range in %q", ErrParse, s)
	}

	return hour*60 + minute, nil
}

// Format renders minutes since midnight in canonical 24-hour "HH:MM" form.
func Format(minutes int) string {
	return fmt.Sprintf("%02d:%02d", minutes/60, minutes%60)
}

// Format12 renders minutes since midnight in display "H:MM AM" form.
func Format12(minutes int) string {
	hour := minutes / 60
	minute := minutes % 60
	meridiem := "AM"
	if hour >= 12 {
		meridiem = "PM"
	}
	displayHour := hour % 12
	if displayHour == 0 {
		displayHour = 12
	}
	return fmt.Sprintf("%d:%02d %s", displayHour, minute, meridiem)
}

// Duration returns end - start for two same-day times.
func Duration(start, end int) (int, error) {
	if end < start {
		return 0, fmt.Errorf("%w: %s before %s", ErrInvalidTimeRange, Format(end), Format(start))
	}
	return end - start, nil
}

// AddMinutes returns start + d, clamped to the same day.
func AddMinutes(start, d int) (int, error) {
	end := start + d
	if end > MinutesPerDay {
		return 0, fmt.Errorf("%w: %s + %dm", ErrTimeOverflow, Format(start), d)
	}
	return end, nil
}

// Overlaps reports whether two half-open intervals intersect.
// Touching intervals (a.End == b.Start) do not overlap.
func Overlaps(a, b Interval) bool {
	return a.Start < b.End && a.End > b.Start
}

// Merge returns the sorted union of intervals, coalescing any that overlap
// or touch. The input is not modified.
func Merge(intervals []Interval) []Interval {
	if len(intervals) == 0 {
		return nil
	}

	sorted := make([]Interval, len(intervals))
	copy(sorted, intervals)
	sort.Slice(sorted, func(i, j int) bool {
		if sorted[i].Start == sorted[j].Start {
			return sorted[i].End < sorted[j].End
		}
		return sorted[i].Start < sorted[j].Start
	})

	merged := []Interval{sorted[0]}
	for _, iv := range sorted[1:] {
		last := &merged[len(merged)-1]
		if iv.Start <= last.End {
			if iv.End > last.End {
				last.End = iv.End
			}
			continue
		}
		merged = append(merged, iv)
	}
	return merged
}

// Subtract removes the busy intervals from the window, returning the
// remaining free sub-intervals in chronological order. Busy intervals are
// merged first, so overlapping entries are handled once.
func Subtract(window Interval, busy []Interval) []Interval {
	free := []Interval{}
	cursor := window.Start

	for _, b := range Merge(busy) {
		if b.End <= window.Start || b.Start >= window.End {
			continue
		}
		if b.Start > cursor {
			free = append(free, Interval{Start: cursor, End: min(b.Start, window.End)})
		}
		if b.End > cursor {
			cursor = b.End
		}
	}
	if cursor < window.End {
		free = append(free, Interval{Start: cursor, End: window.End})
	}
	return free
}
