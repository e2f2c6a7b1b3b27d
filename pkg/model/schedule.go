package model

import "time"

type ScheduleStatus string

const (
	ScheduleStatusScheduled ScheduleStatus = "scheduled"
	ScheduleStatusCancelled ScheduleStatus = "cancelled"
	ScheduleStatusCompleted ScheduleStatus = "completed"
)

type ApprovalStatus string

const (
	ApprovalPending         ApprovalStatus = "pending"
	ApprovalAccepted        ApprovalStatus = "accepted"
	ApprovalChangeRequested ApprovalStatus = "change_requested"
	ApprovalClientCounter   ApprovalStatus = "client_counter"
)

// Schedule is a committed or in-approval appointment. The Proposed* fields
// stage a renegotiation without touching the committed date and times; they
// are promoted only when the staged change is accepted.
type Schedule struct {
	ID              string         `json:"id,omitempty" bson:"_id,omitempty" validate:"omitempty,mongodb"`
	ProviderID      string         `json:"provider_id" bson:"provider_id" validate:"required"`
	ClientID        string         `json:"client_id" bson:"client_id" validate:"required,mongodb"`
	ScheduledDate   string         `json:"scheduled_date" bson:"scheduled_date" validate:"required,datetime=2006-01-02"`
	StartTime       string         `json:"start_time" bson:"start_time" validate:"required,time_of_day"`
	EndTime         string         `json:"end_time" bson:"end_time" validate:"required,time_of_day"`
	DurationMinutes int            `json:"duration_minutes" bson:"duration_minutes" validate:"required,min=5,max=1440"`
	Status          ScheduleStatus `json:"status" bson:"status" validate:"required,oneof=scheduled cancelled completed"`
	ApprovalStatus  ApprovalStatus `json:"approval_status" bson:"approval_status" validate:"required,oneof=pending accepted change_requested client_counter"`

	ProposedDate      string `json:"proposed_date,omitempty" bson:"proposed_date,omitempty" validate:"omitempty,datetime=2006-01-02"`
	ProposedStartTime string `json:"proposed_start_time,omitempty" bson:"proposed_start_time,omitempty" validate:"omitempty,time_of_day"`
	ProposedEndTime   string `json:"proposed_end_time,omitempty" bson:"proposed_end_time,omitempty" validate:"omitempty,time_of_day"`
	ChangeReason      string `json:"change_reason,omitempty" bson:"change_reason,omitempty" validate:"omitempty,max=500"`

	CreatedAt time.Time `json:"created_at" bson:"created_at" validate:"omitempty"`
	UpdatedAt time.Time `json:"updated_at,omitempty" bson:"updated_at" validate:"omitempty"`
}

// Active reports whether the schedule still occupies its time slot for
// overlap and duplicate checks.
func (s *Schedule) Active() bool {
	return s.Status == ScheduleStatusScheduled
}

// HasStagedChange reports whether a renegotiation is staged on the schedule.
func (s *Schedule) HasStagedChange() bool {
	return s.ProposedDate != "" && s.ProposedStartTime != ""
}
