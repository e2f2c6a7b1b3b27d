// Package events defines the messages the scheduling core emits after a
// state change commits. Collaborating services render and deliver them;
// the core only supplies structured payloads.
package events

type ScheduleEventType string

const (
	ScheduleAccepted  ScheduleEventType = "schedule.accepted"
	ScheduleCancelled ScheduleEventType = "schedule.cancelled"
	ScheduleChanged   ScheduleEventType = "schedule.change_requested"
)

type ScheduleEvent struct {
	Type          ScheduleEventType `json:"type"`
	ScheduleID    string            `json:"schedule_id"`
	ClientID      string            `json:"client_id"`
	ProviderID    string            `json:"provider_id"`
	ScheduledDate string            `json:"scheduled_date"`
	StartTime     string            `json:"start_time"`
	EndTime       string            `json:"end_time"`
}

type NotificationEventType string

const (
	NotificationEmail NotificationEventType = "email"
	NotificationPush  NotificationEventType = "push"
)

// NotificationEvent asks a downstream channel to notify someone. The
// template key selects the rendered message; the payload fills it in.
type NotificationEvent struct {
	Type        NotificationEventType `json:"type"`
	Recipient   string                `json:"recipient"`
	TemplateKey string                `json:"template_key"`
	Payload     map[string]any        `json:"payload,omitempty"`
}

// Topic names shared by producers and consumers.
const (
	TopicScheduleEvents  = "scheduling.schedule-events"
	TopicNotifications   = "scheduling.notifications"
	TopicScheduleDLQ     = "scheduling.schedule-events.dlq"
	TopicNotificationDLQ = "scheduling.notifications.dlq"
)

// Notification template keys.
const (
	TemplateScheduleConfirmed     = "schedule_confirmed"
	TemplateScheduleCancelled     = "schedule_cancelled"
	TemplateChangeRequested       = "schedule_change_requested"
	TemplateProposalOffered       = "proposal_offered"
	TemplateProposalCountered     = "proposal_countered"
	TemplateBookingAwaitingReview = "booking_awaiting_review"
)
