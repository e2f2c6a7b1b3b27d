// Package availability computes bookable time windows from a provider's
// working configuration and the day's committed appointments. Everything
// here is pure; callers load state and persist results.
package availability

import (
	"errors"
	"fmt"
	"time"

	"slotwise/pkg/config"
	"slotwise/pkg/model"
	"slotwise/pkg/timemath"
)

// ErrConfiguration marks a working configuration that cannot produce a
// valid working window.
var ErrConfiguration = errors.New("invalid working configuration")

const dateLayout = "2006-01-02"

// ParseDate parses a calendar date in YYYY-MM-DD form.
func ParseDate(s string) (time.Time, error) {
	t, err := time.Parse(dateLayout, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: %q", timemath.ErrParse, s)
	}
	return t, nil
}

// Window resolves the provider's working window for a date. A day outside
// the working week yields ok=false with no error.
func Window(cfg *model.WorkingConfig, date string) (timemath.Interval, bool, error) {
	day, err := ParseDate(date)
	if err != nil {
		return timemath.Interval{}, false, err
	}
	if !cfg.WorksOn(config.WeekdayOf(day)) {
		return timemath.Interval{}, false, nil
	}

	start, err := timemath.Parse(cfg.DayStart)
	if err != nil {
		return timemath.Interval{}, false, fmt.Errorf("%w: day_start: %v", ErrConfiguration, err)
	}
	end, err := timemath.Parse(cfg.DayEnd)
	if err != nil {
		return timemath.Interval{}, false, fmt.Errorf("%w: day_end: %v", ErrConfiguration, err)
	}
	if end <= start {
		return timemath.Interval{}, false, fmt.Errorf("%w: day ends at %s before it starts at %s",
			ErrConfiguration, cfg.DayEnd, cfg.DayStart)
	}
	return timemath.Interval{Start: start, End: end}, true, nil
}

// FreeSlots returns the free sub-intervals of the working window on the
// given date that can hold an appointment of durationMin minutes, in
// chronological order. Booked intervals are expanded by the buffer on both
// sides before subtraction; breaks are subtracted as-is. An inactive
// weekday or a fully booked day returns an empty list.
func FreeSlots(cfg *model.WorkingConfig, date string, booked []timemath.Interval, durationMin int) ([]timemath.Interval, error) {
	if durationMin <= 0 {
		return nil, fmt.Errorf("%w: duration %d", timemath.ErrInvalidTimeRange, durationMin)
	}

	window, ok, err := Window(cfg, date)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, nil
	}

	busy := make([]timemath.Interval, 0, len(cfg.Breaks)+len(booked))
	for _, br := range cfg.Breaks {
		iv, err := IntervalOf(br.StartTime, br.EndTime, 0)
		if err != nil {
			return nil, fmt.Errorf("%w: break: %v", ErrConfiguration, err)
		}
		busy = append(busy, iv)
	}
	for _, b := range booked {
		busy = append(busy, pad(b, cfg.BufferMinutes))
	}

	var free []timemath.Interval
	for _, iv := range timemath.Subtract(window, busy) {
		if iv.End-iv.Start >= durationMin {
			free = append(free, iv)
		}
	}
	return free, nil
}

// SlotFree reports whether the candidate interval fits entirely inside one
// free sub-interval of the date.
func SlotFree(cfg *model.WorkingConfig, date string, booked []timemath.Interval, candidate timemath.Interval) (bool, error) {
	dur, err := timemath.Duration(candidate.Start, candidate.End)
	if err != nil {
		return false, err
	}
	if dur == 0 {
		return false, fmt.Errorf("%w: empty slot", timemath.ErrInvalidTimeRange)
	}

	free, err := FreeSlots(cfg, date, booked, dur)
	if err != nil {
		return false, err
	}
	for _, iv := range free {
		if candidate.Start >= iv.Start && candidate.End <= iv.End {
			return true, nil
		}
	}
	return false, nil
}

// IntervalOf builds an interval from stored start/end time strings. A
// missing end time is derived from durationMin. Stored times may be in
// either 24-hour or 12-hour form.
func IntervalOf(startTime, endTime string, durationMin int) (timemath.Interval, error) {
	start, err := timemath.Parse(startTime)
	if err != nil {
		return timemath.Interval{}, err
	}

	var end int
	if endTime != "" {
		if end, err = timemath.Parse(endTime); err != nil {
			return timemath.Interval{}, err
		}
	} else {
		if end, err = timemath.AddMinutes(start, durationMin); err != nil {
			return timemath.Interval{}, err
		}
	}
	if end < start {
		return timemath.Interval{}, fmt.Errorf("%w: %s before %s",
			timemath.ErrInvalidTimeRange, endTime, startTime)
	}
	return timemath.Interval{Start: start, End: end}, nil
}

// EstimateDuration picks the appointment length in minutes for a property
// size category from the provider's job-size table, falling back to the
// provider default and then to fallbackMin.
func EstimateDuration(cfg *model.WorkingConfig, size model.SizeCategory, fallbackMin int) int {
	var hours float64
	switch size {
	case model.SizeSmall:
		hours = cfg.SmallJobHours
	case model.SizeMedium:
		hours = cfg.MediumJobHours
	case model.SizeLarge:
		hours = cfg.LargeJobHours
	}
	if hours > 0 {
		return int(hours * 60)
	}
	if cfg.DefaultDurationMin > 0 {
		return cfg.DefaultDurationMin
	}
	return fallbackMin
}

// pad expands an interval by buffer minutes on both sides, clamped to the
// day.
func pad(iv timemath.Interval, buffer int) timemath.Interval {
	start := iv.Start - buffer
	if start < 0 {
		start = 0
	}
	end := iv.End + buffer
	if end > timemath.MinutesPerDay {
		end = timemath.MinutesPerDay
	}
	return timemath.Interval{Start: start, End: end}
}
