// Package service implements the scheduling core: slot negotiation,
// schedule approval and availability queries.
package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"slotwise/internal/availability"
	schederrors "slotwise/internal/scheduling/errors"
	"slotwise/internal/scheduling/repository"
	"slotwise/pkg/config"
	apperrors "slotwise/pkg/errors"
	"slotwise/pkg/events"
	"slotwise/pkg/model"
	"slotwise/pkg/timemath"

	"go.mongodb.org/mongo-driver/mongo"
)

// EventPublisher is the post-commit side-effect sink. Implementations must
// never block business flows; failures are their own concern.
type EventPublisher interface {
	PublishSchedule(event events.ScheduleEvent)
	PublishNotification(event events.NotificationEvent)
}

// NopPublisher discards all events. Used when Kafka is not configured.
type NopPublisher struct{}

func (NopPublisher) PublishSchedule(events.ScheduleEvent)         {}
func (NopPublisher) PublishNotification(events.NotificationEvent) {}

const slotLockTTL = 10 * time.Second

// loadWorkingConfig fetches the provider's working profile, applying
// service-level defaults for fields the provider never set.
func loadWorkingConfig(ctx context.Context, repo repository.WorkingConfigRepository, providerID string, cfg *config.Config) (*model.WorkingConfig, error) {
	wc, err := repo.FindByProvider(ctx, providerID)
	if err != nil {
		if errors.Is(err, schederrors.ErrNotFound) {
			return nil, apperrors.Wrap(availability.ErrConfiguration, apperrors.CodeConflict,
				"Provider has not configured working hours", 409)
		}
		return nil, apperrors.Internal("Failed to load working config", err)
	}

	if wc.DayStart == "" {
		wc.DayStart = cfg.DefaultDayStart
	}
	if wc.DayEnd == "" {
		wc.DayEnd = cfg.DefaultDayEnd
	}
	if len(wc.WorkingDays) == 0 {
		wc.WorkingDays = cfg.DefaultWorkingDays
	}
	if wc.BufferMinutes == 0 {
		wc.BufferMinutes = cfg.DefaultBufferMinutes
	}
	return wc, nil
}

// busyIntervals projects a day's active schedules onto the minute axis.
// Records with unparseable times are skipped rather than blocking the whole
// day; a missing end time is derived from the stored duration.
func busyIntervals(schedules []*model.Schedule) []timemath.Interval {
	busy := make([]timemath.Interval, 0, len(schedules))
	for _, sc := range schedules {
		iv, err := availability.IntervalOf(sc.StartTime, sc.EndTime, sc.DurationMinutes)
		if err != nil {
			continue
		}
		busy = append(busy, iv)
	}
	return busy
}

// acquireSlotLock creates an advisory lock to prevent concurrent commits of
// the same slot. Returns the lock ID if successful, or conflict error if
// the lock is already held.
func acquireSlotLock(ctx context.Context, lockRepo repository.SlotLockRepository, providerID, date string, startMinutes int) (string, error) {
	lockID := model.SlotLockID(providerID, date, startMinutes)

	lock := &model.SlotLock{
		ID:        lockID,
		ExpiresAt: time.Now().Add(slotLockTTL),
	}

	_, err := lockRepo.Acquire(ctx, lock)
	if err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return "", apperrors.Wrap(schederrors.ErrSlotUnavailable, apperrors.CodeConflict,
				"This time slot is currently being booked by another request. Please try again.", 409)
		}
		return "", apperrors.Internal("Failed to acquire slot lock", err)
	}

	return lockID, nil
}

// raiseClientStatus moves the client's lifecycle status forward. Requests
// that would move it backwards are ignored, keeping the lifecycle
// monotonic; only cancellation rolls it back, explicitly.
func raiseClientStatus(ctx context.Context, repo repository.ClientRepository, clientID string, to model.ClientStatus) error {
	client, err := repo.FindByID(ctx, clientID)
	if err != nil {
		return translateLookupError(err, "Client", clientID)
	}
	if to.Rank() <= client.Status.Rank() {
		return nil
	}
	if err := repo.UpdateStatus(ctx, clientID, to); err != nil {
		return apperrors.Internal("Failed to update client status", err)
	}
	return nil
}

// translateLookupError maps repository lookup failures onto transport
// errors, keeping the domain sentinel in the chain.
func translateLookupError(err error, resource, id string) error {
	if errors.Is(err, schederrors.ErrNotFound) {
		return apperrors.NotFoundWithID(resource, id)
	}
	if errors.Is(err, schederrors.ErrInvalidID) {
		return apperrors.InvalidInput(fmt.Sprintf("Invalid %s ID format", resource))
	}
	return apperrors.Internal(fmt.Sprintf("Failed to retrieve %s", resource), err)
}

func slotInterval(startTime, endTime string) (timemath.Interval, error) {
	start, err := timemath.Parse(startTime)
	if err != nil {
		return timemath.Interval{}, apperrors.InvalidInput(fmt.Sprintf("Unrecognized start time: %s", startTime))
	}
	end, err := timemath.Parse(endTime)
	if err != nil {
		return timemath.Interval{}, apperrors.InvalidInput(fmt.Sprintf("Unrecognized end time: %s", endTime))
	}
	if end <= start {
		return timemath.Interval{}, apperrors.InvalidInput("End time must be after start time")
	}
	return timemath.Interval{Start: start, End: end}, nil
}
