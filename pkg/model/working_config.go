package model

import (
	"slotwise/pkg/config"
	"time"
)

// BreakWindow is a recurring unavailable window inside the working day.
type BreakWindow struct {
	StartTime string `json:"start_time" bson:"start_time" validate:"required,time_of_day"`
	EndTime   string `json:"end_time" bson:"end_time" validate:"required,time_of_day"`
}

// WorkingConfig is a provider's availability profile. Missing durations fall
// back to the configured service defaults.
type WorkingConfig struct {
	ID           string           `json:"id,omitempty" bson:"_id,omitempty" validate:"omitempty,mongodb"`
	ProviderID   string           `json:"provider_id" bson:"provider_id" validate:"required"`
	BusinessName string           `json:"business_name,omitempty" bson:"business_name" validate:"omitempty,min=2,max=100"`
	WorkingDays  []config.Weekday `json:"working_days" bson:"working_days" validate:"required,min=1,max=7,dive,oneof=Sunday Monday Tuesday Wednesday Thursday Friday Saturday"`
	DayStart     string           `json:"day_start" bson:"day_start" validate:"required,time_of_day"`
	DayEnd       string           `json:"day_end" bson:"day_end" validate:"required,time_of_day"`
	Breaks       []BreakWindow    `json:"breaks,omitempty" bson:"breaks" validate:"omitempty,max=10,dive"`

	BufferMinutes int `json:"buffer_minutes" bson:"buffer_minutes" validate:"min=0,max=240"`

	SmallJobHours      float64 `json:"small_job_hours,omitempty" bson:"small_job_hours" validate:"omitempty,gt=0,max=24"`
	MediumJobHours     float64 `json:"medium_job_hours,omitempty" bson:"medium_job_hours" validate:"omitempty,gt=0,max=24"`
	LargeJobHours      float64 `json:"large_job_hours,omitempty" bson:"large_job_hours" validate:"omitempty,gt=0,max=24"`
	DefaultDurationMin int     `json:"default_duration_min,omitempty" bson:"default_duration_min" validate:"omitempty,min=5,max=1440"`

	TimeZone  string    `json:"time_zone,omitempty" bson:"time_zone" validate:"omitempty,timezone"`
	CreatedAt time.Time `json:"created_at" bson:"created_at" validate:"omitempty"`
	UpdatedAt time.Time `json:"updated_at,omitempty" bson:"updated_at" validate:"omitempty"`
}

// WorksOn reports whether the weekday is part of the working week.
func (wc *WorkingConfig) WorksOn(day config.Weekday) bool {
	for _, d := range wc.WorkingDays {
		if d == day {
			return true
		}
	}
	return false
}

type WorkingConfigUpdate struct {
	BusinessName string           `json:"business_name,omitempty" validate:"omitempty,min=2,max=100"`
	WorkingDays  []config.Weekday `json:"working_days,omitempty" validate:"omitempty,min=1,max=7,dive,oneof=Sunday Monday Tuesday Wednesday Thursday Friday Saturday"`
	DayStart     string           `json:"day_start,omitempty" validate:"omitempty,time_of_day"`
	DayEnd       string           `json:"day_end,omitempty" validate:"omitempty,time_of_day"`
	Breaks       *[]BreakWindow   `json:"breaks,omitempty" validate:"omitempty,max=10,dive"`

	BufferMinutes *int `json:"buffer_minutes,omitempty" validate:"omitempty,min=0,max=240"`

	SmallJobHours      *float64 `json:"small_job_hours,omitempty" validate:"omitempty,gt=0,max=24"`
	MediumJobHours     *float64 `json:"medium_job_hours,omitempty" validate:"omitempty,gt=0,max=24"`
	LargeJobHours      *float64 `json:"large_job_hours,omitempty" validate:"omitempty,gt=0,max=24"`
	DefaultDurationMin *int     `json:"default_duration_min,omitempty" validate:"omitempty,min=5,max=1440"`

	TimeZone string `json:"time_zone,omitempty" validate:"omitempty,timezone"`
}
