package config

import "time"

type Weekday string

const (
	Sunday    Weekday = "Sunday"
	Monday    Weekday = "Monday"
	Tuesday   Weekday = "Tuesday"
	Wednesday Weekday = "Wednesday"
	Thursday  Weekday = "Thursday"
	Friday    Weekday = "Friday"
	Saturday  Weekday = "Saturday"
)

// WeekdayOf maps a calendar date to its configuration weekday name.
func WeekdayOf(t time.Time) Weekday {
	return Weekday(t.Weekday().String())
}
