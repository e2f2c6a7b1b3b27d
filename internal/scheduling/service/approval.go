package service

import (
	"context"
	"errors"

	"slotwise/internal/availability"
	schederrors "slotwise/internal/scheduling/errors"
	"slotwise/internal/scheduling/repository"
	"slotwise/internal/scheduling/validator"
	"slotwise/pkg/config"
	apperrors "slotwise/pkg/errors"
	"slotwise/pkg/events"
	"slotwise/pkg/model"
	"slotwise/pkg/timemath"

	"go.mongodb.org/mongo-driver/mongo"
)

// StagedChange carries a renegotiated slot for a committed schedule.
type StagedChange struct {
	Date      string `json:"date" validate:"required,datetime=2006-01-02"`
	StartTime string `json:"start_time" validate:"required,time_of_day"`
	EndTime   string `json:"end_time" validate:"required,time_of_day"`
	Reason    string `json:"reason,omitempty" validate:"omitempty,max=500"`
}

type ApprovalService interface {
	RequestApproval(ctx context.Context, scheduleID string) error
	Accept(ctx context.Context, scheduleID string) (*model.Schedule, error)
	AcceptChange(ctx context.Context, scheduleID string) (*model.Schedule, error)
	RequestChange(ctx context.Context, scheduleID string, change StagedChange) (*model.Schedule, error)
	ClientCounter(ctx context.Context, scheduleID string, change StagedChange) (*model.Schedule, error)
	Cancel(ctx context.Context, scheduleID string) error
	DirectBook(ctx context.Context, clientID, date, startTime string) (*model.Schedule, error)
	GetByID(ctx context.Context, id string) (*model.Schedule, error)
	ListByProvider(ctx context.Context, providerID string, limit int, offset int64) ([]*model.Schedule, int64, error)
}

type approvalService struct {
	schedules repository.ScheduleRepository
	clients   repository.ClientRepository
	configs   repository.WorkingConfigRepository
	locks     repository.SlotLockRepository
	validator *validator.SchedulingValidator
	publisher EventPublisher
	cfg       *config.Config
}

func NewApprovalService(
	schedules repository.ScheduleRepository,
	clients repository.ClientRepository,
	configs repository.WorkingConfigRepository,
	locks repository.SlotLockRepository,
	validator *validator.SchedulingValidator,
	publisher EventPublisher,
	cfg *config.Config,
) ApprovalService {
	return &approvalService{
		schedules: schedules,
		clients:   clients,
		configs:   configs,
		locks:     locks,
		validator: validator,
		publisher: publisher,
		cfg:       cfg,
	}
}

// RequestApproval puts a schedule back into the approval queue. The
// client's contract must be fully signed first.
func (s *approvalService) RequestApproval(ctx context.Context, scheduleID string) error {
	schedule, err := s.schedules.FindByID(ctx, scheduleID)
	if err != nil {
		return translateLookupError(err, "Schedule", scheduleID)
	}
	if !schedule.Active() {
		return apperrors.Wrap(schederrors.ErrInvalidTransition, apperrors.CodeConflict,
			"Schedule is no longer active", 409)
	}

	client, err := s.clients.FindByID(ctx, schedule.ClientID)
	if err != nil {
		return translateLookupError(err, "Client", schedule.ClientID)
	}
	if !client.ContractSigned {
		return apperrors.Wrap(schederrors.ErrPreconditionNotMet, apperrors.CodeForbidden,
			"Client contract must be signed before scheduling", 403)
	}

	schedule.ApprovalStatus = model.ApprovalPending
	if err := s.schedules.Update(ctx, scheduleID, schedule); err != nil {
		return apperrors.Internal("Failed to update schedule", err)
	}

	s.cfg.Log.Info("Schedule approval requested", "schedule_id", scheduleID)
	s.publisher.PublishNotification(events.NotificationEvent{
		Type:        events.NotificationEmail,
		Recipient:   schedule.ProviderID,
		TemplateKey: events.TemplateBookingAwaitingReview,
		Payload:     map[string]any{"schedule_id": scheduleID},
	})
	return nil
}

// Accept approves the schedule, promoting a staged client counter first if
// one is present. The final slot is re-validated against overlapping
// accepted schedules inside the transaction.
func (s *approvalService) Accept(ctx context.Context, scheduleID string) (*model.Schedule, error) {
	schedule, err := s.schedules.FindByID(ctx, scheduleID)
	if err != nil {
		return nil, translateLookupError(err, "Schedule", scheduleID)
	}
	if !schedule.Active() {
		return nil, apperrors.Wrap(schederrors.ErrInvalidTransition, apperrors.CodeConflict,
			"Schedule is no longer active", 409)
	}
	switch schedule.ApprovalStatus {
	case model.ApprovalPending, model.ApprovalClientCounter:
	case model.ApprovalAccepted:
		return schedule, nil
	default:
		return nil, apperrors.Wrap(schederrors.ErrInvalidTransition, apperrors.CodeConflict,
			"Schedule cannot be approved from its current state", 409)
	}

	if schedule.ApprovalStatus == model.ApprovalClientCounter && schedule.HasStagedChange() {
		s.promoteStagedChange(schedule)
	}

	return s.commitApproval(ctx, schedule)
}

// AcceptChange is the client's side of Accept: it confirms a change the
// provider staged, promoting the staged slot into the committed one.
func (s *approvalService) AcceptChange(ctx context.Context, scheduleID string) (*model.Schedule, error) {
	schedule, err := s.schedules.FindByID(ctx, scheduleID)
	if err != nil {
		return nil, translateLookupError(err, "Schedule", scheduleID)
	}
	if !schedule.Active() {
		return nil, apperrors.Wrap(schederrors.ErrInvalidTransition, apperrors.CodeConflict,
			"Schedule is no longer active", 409)
	}
	if schedule.ApprovalStatus != model.ApprovalChangeRequested {
		return nil, apperrors.Wrap(schederrors.ErrInvalidTransition, apperrors.CodeConflict,
			"No change is awaiting the client's confirmation", 409)
	}
	if !schedule.HasStagedChange() {
		return nil, apperrors.Wrap(schederrors.ErrInvalidTransition, apperrors.CodeConflict,
			"The requested change carries no staged slot", 409)
	}

	s.promoteStagedChange(schedule)
	return s.commitApproval(ctx, schedule)
}

// commitApproval locks the slot, re-validates it and marks the schedule
// accepted, all inside one transaction. A schedule never reaches accepted
// while the client's contract is unsigned, whichever path led here.
func (s *approvalService) commitApproval(ctx context.Context, schedule *model.Schedule) (*model.Schedule, error) {
	scheduleID := schedule.ID

	client, err := s.clients.FindByID(ctx, schedule.ClientID)
	if err != nil {
		return nil, translateLookupError(err, "Client", schedule.ClientID)
	}
	if !client.ContractSigned {
		return nil, apperrors.Wrap(schederrors.ErrPreconditionNotMet, apperrors.CodeForbidden,
			"Client contract must be signed before scheduling", 403)
	}

	iv, err := slotInterval(schedule.StartTime, schedule.EndTime)
	if err != nil {
		return nil, err
	}

	lockID, err := acquireSlotLock(ctx, s.locks, schedule.ProviderID, schedule.ScheduledDate, iv.Start)
	if err != nil {
		return nil, err
	}
	defer func() {
		if releaseErr := s.locks.Release(ctx, lockID); releaseErr != nil {
			s.cfg.Log.Warn("Failed to release slot lock", "lock_id", lockID, "error", releaseErr)
		}
	}()

	err = s.schedules.ExecuteTransaction(ctx, func(sessCtx mongo.SessionContext) error {
		if err := s.verifyNoOverlap(sessCtx, schedule, iv); err != nil {
			return err
		}
		if err := s.verifyNoDuplicate(sessCtx, schedule); err != nil {
			return err
		}

		schedule.ApprovalStatus = model.ApprovalAccepted
		if err := s.schedules.Update(sessCtx, scheduleID, schedule); err != nil {
			if errors.Is(err, schederrors.ErrDuplicateBooking) {
				return apperrors.Wrap(err, apperrors.CodeConflict, "An identical booking already exists", 409)
			}
			return apperrors.Internal("Failed to update schedule", err)
		}

		return raiseClientStatus(sessCtx, s.clients, schedule.ClientID, model.ClientStatusScheduled)
	})
	if err != nil {
		s.cfg.Log.Error("Failed to approve schedule", "schedule_id", scheduleID, "error", err)
		return nil, err
	}

	s.cfg.Log.Info("Schedule approved",
		"schedule_id", scheduleID,
		"date", schedule.ScheduledDate,
		"start_time", schedule.StartTime,
	)
	s.publisher.PublishSchedule(events.ScheduleEvent{
		Type:          events.ScheduleAccepted,
		ScheduleID:    schedule.ID,
		ClientID:      schedule.ClientID,
		ProviderID:    schedule.ProviderID,
		ScheduledDate: schedule.ScheduledDate,
		StartTime:     schedule.StartTime,
		EndTime:       schedule.EndTime,
	})
	s.notifyClient(ctx, schedule.ClientID, events.TemplateScheduleConfirmed, schedule)
	return schedule, nil
}

// RequestChange stages an alternative slot on behalf of the provider. The
// committed date and times stay untouched until the change is accepted.
func (s *approvalService) RequestChange(ctx context.Context, scheduleID string, change StagedChange) (*model.Schedule, error) {
	return s.stageChange(ctx, scheduleID, change, model.ApprovalChangeRequested)
}

// ClientCounter stages an alternative slot on behalf of the client.
func (s *approvalService) ClientCounter(ctx context.Context, scheduleID string, change StagedChange) (*model.Schedule, error) {
	return s.stageChange(ctx, scheduleID, change, model.ApprovalClientCounter)
}

func (s *approvalService) stageChange(ctx context.Context, scheduleID string, change StagedChange, to model.ApprovalStatus) (*model.Schedule, error) {
	if _, err := availability.ParseDate(change.Date); err != nil {
		return nil, apperrors.InvalidInput("Unrecognized date: " + change.Date)
	}
	if _, err := slotInterval(change.StartTime, change.EndTime); err != nil {
		return nil, err
	}

	schedule, err := s.schedules.FindByID(ctx, scheduleID)
	if err != nil {
		return nil, translateLookupError(err, "Schedule", scheduleID)
	}
	if !schedule.Active() {
		return nil, apperrors.Wrap(schederrors.ErrInvalidTransition, apperrors.CodeConflict,
			"Schedule is no longer active", 409)
	}

	schedule.ApprovalStatus = to
	schedule.ProposedDate = change.Date
	schedule.ProposedStartTime = change.StartTime
	schedule.ProposedEndTime = change.EndTime
	schedule.ChangeReason = change.Reason

	if err := s.schedules.Update(ctx, scheduleID, schedule); err != nil {
		return nil, apperrors.Internal("Failed to stage schedule change", err)
	}

	s.cfg.Log.Info("Schedule change staged",
		"schedule_id", scheduleID,
		"approval_status", to,
		"proposed_date", change.Date,
	)
	s.publisher.PublishSchedule(events.ScheduleEvent{
		Type:          events.ScheduleChanged,
		ScheduleID:    schedule.ID,
		ClientID:      schedule.ClientID,
		ProviderID:    schedule.ProviderID,
		ScheduledDate: change.Date,
		StartTime:     change.StartTime,
		EndTime:       change.EndTime,
	})

	if to == model.ApprovalChangeRequested {
		s.notifyClient(ctx, schedule.ClientID, events.TemplateChangeRequested, schedule)
	} else {
		s.publisher.PublishNotification(events.NotificationEvent{
			Type:        events.NotificationEmail,
			Recipient:   schedule.ProviderID,
			TemplateKey: events.TemplateChangeRequested,
			Payload:     map[string]any{"schedule_id": schedule.ID},
		})
	}
	return schedule, nil
}

// Cancel marks the schedule cancelled. The client's status rolls back only
// when no other active schedule remains.
func (s *approvalService) Cancel(ctx context.Context, scheduleID string) error {
	schedule, err := s.schedules.FindByID(ctx, scheduleID)
	if err != nil {
		return translateLookupError(err, "Schedule", scheduleID)
	}
	if schedule.Status == model.ScheduleStatusCancelled {
		return nil
	}

	err = s.schedules.ExecuteTransaction(ctx, func(sessCtx mongo.SessionContext) error {
		schedule.Status = model.ScheduleStatusCancelled
		if err := s.schedules.Update(sessCtx, scheduleID, schedule); err != nil {
			return apperrors.Internal("Failed to cancel schedule", err)
		}

		remaining, err := s.schedules.FindActiveByClient(sessCtx, schedule.ClientID)
		if err != nil {
			return apperrors.Internal("Failed to check remaining schedules", err)
		}
		if len(remaining) == 0 {
			if err := s.clients.UpdateStatus(sessCtx, schedule.ClientID, model.ClientStatusPending); err != nil {
				return apperrors.Internal("Failed to update client status", err)
			}
		}
		return nil
	})
	if err != nil {
		s.cfg.Log.Error("Failed to cancel schedule", "schedule_id", scheduleID, "error", err)
		return err
	}

	s.cfg.Log.Info("Schedule cancelled", "schedule_id", scheduleID)
	s.publisher.PublishSchedule(events.ScheduleEvent{
		Type:          events.ScheduleCancelled,
		ScheduleID:    schedule.ID,
		ClientID:      schedule.ClientID,
		ProviderID:    schedule.ProviderID,
		ScheduledDate: schedule.ScheduledDate,
		StartTime:     schedule.StartTime,
		EndTime:       schedule.EndTime,
	})
	s.notifyClient(ctx, schedule.ClientID, events.TemplateScheduleCancelled, schedule)
	return nil
}

// DirectBook books a slot straight from the public page. The appointment
// length comes from the client's property size; a repeated submission of
// the same slot collapses onto the existing schedule.
func (s *approvalService) DirectBook(ctx context.Context, clientID, date, startTime string) (*model.Schedule, error) {
	if _, err := availability.ParseDate(date); err != nil {
		return nil, apperrors.InvalidInput("Unrecognized date: " + date)
	}
	start, err := timemath.Parse(startTime)
	if err != nil {
		return nil, apperrors.InvalidInput("Unrecognized start time: " + startTime)
	}

	client, err := s.clients.FindByID(ctx, clientID)
	if err != nil {
		return nil, translateLookupError(err, "Client", clientID)
	}

	wc, err := loadWorkingConfig(ctx, s.configs, client.ProviderID, s.cfg)
	if err != nil {
		return nil, err
	}

	duration := availability.EstimateDuration(wc, model.SizeCategoryForSqft(client.PropertySqft), s.cfg.DefaultJobDurationMin)
	end, err := timemath.AddMinutes(start, duration)
	if err != nil {
		return nil, apperrors.InvalidInput("Appointment would run past midnight")
	}

	canonicalStart := timemath.Format(start)
	if existing, err := s.schedules.FindByNaturalKey(ctx, clientID, date, canonicalStart); err == nil {
		s.cfg.Log.Info("Duplicate direct booking collapsed",
			"schedule_id", existing.ID,
			"client_id", clientID,
		)
		return existing, nil
	} else if !errors.Is(err, schederrors.ErrNotFound) {
		return nil, apperrors.Internal("Failed to check for duplicate booking", err)
	}

	lockID, err := acquireSlotLock(ctx, s.locks, client.ProviderID, date, start)
	if err != nil {
		return nil, err
	}
	defer func() {
		if releaseErr := s.locks.Release(ctx, lockID); releaseErr != nil {
			s.cfg.Log.Warn("Failed to release slot lock", "lock_id", lockID, "error", releaseErr)
		}
	}()

	schedule := &model.Schedule{
		ProviderID:      client.ProviderID,
		ClientID:        clientID,
		ScheduledDate:   date,
		StartTime:       canonicalStart,
		EndTime:         timemath.Format(end),
		DurationMinutes: duration,
		Status:          model.ScheduleStatusScheduled,
		ApprovalStatus:  model.ApprovalPending,
	}

	err = s.schedules.ExecuteTransaction(ctx, func(sessCtx mongo.SessionContext) error {
		booked, err := s.schedules.FindActiveForProviderDate(sessCtx, client.ProviderID, date)
		if err != nil {
			return apperrors.Internal("Failed to load existing schedules", err)
		}

		free, err := availability.SlotFree(wc, date, busyIntervals(booked), timemath.Interval{Start: start, End: end})
		if err != nil {
			if errors.Is(err, availability.ErrConfiguration) {
				return apperrors.Wrap(err, apperrors.CodeConflict, "Provider working hours are misconfigured", 409)
			}
			return apperrors.InvalidInput(err.Error())
		}
		if !free {
			return apperrors.Wrap(schederrors.ErrSlotUnavailable, apperrors.CodeConflict,
				"Slot is no longer available", 409)
		}

		if err := s.schedules.Create(sessCtx, schedule); err != nil {
			if errors.Is(err, schederrors.ErrDuplicateBooking) {
				return apperrors.Wrap(err, apperrors.CodeConflict, "An identical booking already exists", 409)
			}
			return apperrors.Internal("Failed to create schedule", err)
		}

		return raiseClientStatus(sessCtx, s.clients, clientID, model.ClientStatusPendingApproval)
	})
	if err != nil {
		s.cfg.Log.Error("Failed to direct book", "client_id", clientID, "error", err)
		return nil, err
	}

	s.cfg.Log.Info("Direct booking created",
		"schedule_id", schedule.ID,
		"client_id", clientID,
		"date", date,
		"start_time", canonicalStart,
		"duration_minutes", duration,
	)
	s.publisher.PublishNotification(events.NotificationEvent{
		Type:        events.NotificationEmail,
		Recipient:   schedule.ProviderID,
		TemplateKey: events.TemplateBookingAwaitingReview,
		Payload: map[string]any{
			"schedule_id": schedule.ID,
			"date":        date,
			"start_time":  canonicalStart,
		},
	})
	return schedule, nil
}

func (s *approvalService) GetByID(ctx context.Context, id string) (*model.Schedule, error) {
	if id == "" {
		return nil, apperrors.InvalidInput("Schedule ID cannot be empty")
	}
	schedule, err := s.schedules.FindByID(ctx, id)
	if err != nil {
		return nil, translateLookupError(err, "Schedule", id)
	}
	return schedule, nil
}

func (s *approvalService) ListByProvider(ctx context.Context, providerID string, limit int, offset int64) ([]*model.Schedule, int64, error) {
	if providerID == "" {
		return nil, 0, apperrors.InvalidInput("Provider ID cannot be empty")
	}

	schedules, err := s.schedules.FindByProvider(ctx, providerID, limit, offset)
	if err != nil {
		return nil, 0, apperrors.Internal("Failed to list schedules", err)
	}
	count, err := s.schedules.Count(ctx, providerID)
	if err != nil {
		return nil, 0, apperrors.Internal("Failed to count schedules", err)
	}
	return schedules, count, nil
}

// promoteStagedChange moves the staged proposed fields into the committed
// slot and clears the staging area.
func (s *approvalService) promoteStagedChange(schedule *model.Schedule) {
	schedule.ScheduledDate = schedule.ProposedDate
	schedule.StartTime = schedule.ProposedStartTime
	schedule.EndTime = schedule.ProposedEndTime
	if iv, err := slotInterval(schedule.StartTime, schedule.EndTime); err == nil {
		schedule.DurationMinutes = iv.End - iv.Start
	}
	schedule.ProposedDate = ""
	schedule.ProposedStartTime = ""
	schedule.ProposedEndTime = ""
	schedule.ChangeReason = ""
}

// verifyNoOverlap re-checks the slot against every accepted schedule on the
// same provider day, using the true booked intervals without buffer.
func (s *approvalService) verifyNoOverlap(ctx context.Context, schedule *model.Schedule, iv timemath.Interval) error {
	booked, err := s.schedules.FindActiveForProviderDate(ctx, schedule.ProviderID, schedule.ScheduledDate)
	if err != nil {
		return apperrors.Internal("Failed to load existing schedules", err)
	}

	for _, other := range booked {
		if other.ID == schedule.ID || other.ApprovalStatus != model.ApprovalAccepted {
			continue
		}
		otherIv, err := availability.IntervalOf(other.StartTime, other.EndTime, other.DurationMinutes)
		if err != nil {
			continue
		}
		if timemath.Overlaps(iv, otherIv) {
			return apperrors.Wrap(schederrors.ErrDoubleBooked, apperrors.CodeConflict,
				"Slot overlaps an accepted schedule", 409)
		}
	}
	return nil
}

func (s *approvalService) verifyNoDuplicate(ctx context.Context, schedule *model.Schedule) error {
	existing, err := s.schedules.FindByNaturalKey(ctx, schedule.ClientID, schedule.ScheduledDate, schedule.StartTime)
	if err != nil {
		if errors.Is(err, schederrors.ErrNotFound) {
			return nil
		}
		return apperrors.Internal("Failed to check for duplicate booking", err)
	}
	if existing.ID != schedule.ID {
		return apperrors.Wrap(schederrors.ErrDuplicateBooking, apperrors.CodeConflict,
			"An identical booking already exists", 409)
	}
	return nil
}

func (s *approvalService) notifyClient(ctx context.Context, clientID, templateKey string, schedule *model.Schedule) {
	client, err := s.clients.FindByID(ctx, clientID)
	if err != nil {
		s.cfg.Log.Warn("Failed to load client for notification", "client_id", clientID, "error", err)
		return
	}
	s.publisher.PublishNotification(events.NotificationEvent{
		Type:        events.NotificationEmail,
		Recipient:   client.Email,
		TemplateKey: templateKey,
		Payload: map[string]any{
			"schedule_id": schedule.ID,
			"date":        schedule.ScheduledDate,
			"start_time":  schedule.StartTime,
		},
	})
}
