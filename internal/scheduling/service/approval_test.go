package service

import (
	"context"
	"errors"
	"testing"

	schederrors "slotwise/internal/scheduling/errors"
	"slotwise/internal/scheduling/validator"
	"slotwise/pkg/events"
	"slotwise/pkg/model"
)

func newApprovalFixture() (*mockScheduleRepository, *mockClientRepository, *mockSlotLockRepository, *recordingPublisher, ApprovalService) {
	cfg := newTestConfig()
	schedules := &mockScheduleRepository{}
	clients := &mockClientRepository{}
	configs := &mockWorkingConfigRepository{}
	locks := &mockSlotLockRepository{}
	publisher := &recordingPublisher{}
	v := validator.NewSchedulingValidator(cfg.Log)

	svc := NewApprovalService(schedules, clients, configs, locks, v, publisher, cfg)
	return schedules, clients, locks, publisher, svc
}

func pendingSchedule() *model.Schedule {
	return &model.Schedule{
		ID:              testScheduleID,
		ProviderID:      testProviderID,
		ClientID:        testClientID,
		ScheduledDate:   testMonday,
		StartTime:       "10:00",
		EndTime:         "11:00",
		DurationMinutes: 60,
		Status:          model.ScheduleStatusScheduled,
		ApprovalStatus:  model.ApprovalPending,
	}
}

func TestRequestApprovalRequiresSignedContract(t *testing.T) {
	schedules, clients, _, publisher, svc := newApprovalFixture()

	schedules.findByIDFunc = func(ctx context.Context, id string) (*model.Schedule, error) {
		return pendingSchedule(), nil
	}
	clients.findByIDFunc = func(ctx context.Context, id string) (*model.Client, error) {
		c := testClient()
		c.ContractSigned = false
		return c, nil
	}

	err := svc.RequestApproval(context.Background(), testScheduleID)
	if !errors.Is(err, schederrors.ErrPreconditionNotMet) {
		t.Fatalf("expected ErrPreconditionNotMet, got %v", err)
	}
	if schedules.capturedSchedule != nil {
		t.Error("schedule must not be touched when the precondition fails")
	}
	if len(publisher.notifications) != 0 {
		t.Error("no notification should be sent when the precondition fails")
	}
}

func TestAcceptApprovesSchedule(t *testing.T) {
	schedules, clients, _, publisher, svc := newApprovalFixture()

	schedules.findByIDFunc = func(ctx context.Context, id string) (*model.Schedule, error) {
		return pendingSchedule(), nil
	}

	schedule, err := svc.Accept(context.Background(), testScheduleID)
	if err != nil {
		t.Fatalf("Accept() failed: %v", err)
	}

	if schedule.ApprovalStatus != model.ApprovalAccepted {
		t.Errorf("expected approval accepted, got %s", schedule.ApprovalStatus)
	}
	if clients.capturedStatus != model.ClientStatusScheduled {
		t.Errorf("expected client raised to scheduled, got %s", clients.capturedStatus)
	}
	if len(publisher.schedules) != 1 || publisher.schedules[0].Type != events.ScheduleAccepted {
		t.Fatalf("expected one ScheduleAccepted event, got %+v", publisher.schedules)
	}
	if len(publisher.notifications) != 1 || publisher.notifications[0].TemplateKey != events.TemplateScheduleConfirmed {
		t.Errorf("expected confirmation notification, got %+v", publisher.notifications)
	}
}

func TestAcceptRequiresSignedContract(t *testing.T) {
	tests := []struct {
		name   string
		accept func(svc ApprovalService) error
	}{
		{"provider accept", func(svc ApprovalService) error {
			_, err := svc.Accept(context.Background(), testScheduleID)
			return err
		}},
		{"client accept of staged change", func(svc ApprovalService) error {
			_, err := svc.AcceptChange(context.Background(), testScheduleID)
			return err
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			schedules, clients, _, publisher, svc := newApprovalFixture()

			staged := pendingSchedule()
			staged.ApprovalStatus = model.ApprovalChangeRequested
			staged.ProposedDate = testTuesday
			staged.ProposedStartTime = "13:00"
			staged.ProposedEndTime = "14:00"
			schedules.findByIDFunc = func(ctx context.Context, id string) (*model.Schedule, error) {
				if tt.name == "provider accept" {
					return pendingSchedule(), nil
				}
				return staged, nil
			}
			clients.findByIDFunc = func(ctx context.Context, id string) (*model.Client, error) {
				c := testClient()
				c.ContractSigned = false
				return c, nil
			}

			err := tt.accept(svc)
			if !errors.Is(err, schederrors.ErrPreconditionNotMet) {
				t.Fatalf("expected ErrPreconditionNotMet, got %v", err)
			}
			if schedules.capturedSchedule != nil {
				t.Error("schedule must not be touched when the contract is unsigned")
			}
			if clients.statusUpdated {
				t.Error("client status must not change when the contract is unsigned")
			}
			if len(publisher.schedules) != 0 {
				t.Errorf("no schedule event may be emitted, got %+v", publisher.schedules)
			}
		})
	}
}

func TestAcceptPromotesClientCounter(t *testing.T) {
	schedules, _, _, _, svc := newApprovalFixture()

	staged := pendingSchedule()
	staged.ApprovalStatus = model.ApprovalClientCounter
	staged.ProposedDate = testTuesday
	staged.ProposedStartTime = "13:00"
	staged.ProposedEndTime = "14:30"
	staged.ChangeReason = "afternoon works better"
	schedules.findByIDFunc = func(ctx context.Context, id string) (*model.Schedule, error) {
		return staged, nil
	}

	schedule, err := svc.Accept(context.Background(), testScheduleID)
	if err != nil {
		t.Fatalf("Accept() failed: %v", err)
	}

	if schedule.ScheduledDate != testTuesday || schedule.StartTime != "13:00" || schedule.EndTime != "14:30" {
		t.Errorf("staged slot not promoted: %s %s-%s", schedule.ScheduledDate, schedule.StartTime, schedule.EndTime)
	}
	if schedule.DurationMinutes != 90 {
		t.Errorf("expected duration recomputed to 90, got %d", schedule.DurationMinutes)
	}
	if schedule.HasStagedChange() || schedule.ChangeReason != "" {
		t.Error("staging fields must be cleared after promotion")
	}
	if schedule.ApprovalStatus != model.ApprovalAccepted {
		t.Errorf("expected approval accepted, got %s", schedule.ApprovalStatus)
	}
}

func TestAcceptRejectsOverlapWithAcceptedSchedule(t *testing.T) {
	schedules, _, _, _, svc := newApprovalFixture()

	schedules.findByIDFunc = func(ctx context.Context, id string) (*model.Schedule, error) {
		return pendingSchedule(), nil
	}
	schedules.findActiveForProviderDateFunc = func(ctx context.Context, providerID, date string) ([]*model.Schedule, error) {
		return []*model.Schedule{{
			ID:             "507f1f77bcf86cd799439099",
			ScheduledDate:  testMonday,
			StartTime:      "10:30",
			EndTime:        "11:30",
			Status:         model.ScheduleStatusScheduled,
			ApprovalStatus: model.ApprovalAccepted,
		}}, nil
	}

	_, err := svc.Accept(context.Background(), testScheduleID)
	if !errors.Is(err, schederrors.ErrDoubleBooked) {
		t.Errorf("expected ErrDoubleBooked, got %v", err)
	}
}

func TestAcceptIgnoresOwnRecordInOverlapCheck(t *testing.T) {
	schedules, _, _, _, svc := newApprovalFixture()

	self := pendingSchedule()
	self.ApprovalStatus = model.ApprovalAccepted
	schedules.findByIDFunc = func(ctx context.Context, id string) (*model.Schedule, error) {
		return pendingSchedule(), nil
	}
	schedules.findActiveForProviderDateFunc = func(ctx context.Context, providerID, date string) ([]*model.Schedule, error) {
		return []*model.Schedule{self}, nil
	}

	if _, err := svc.Accept(context.Background(), testScheduleID); err != nil {
		t.Errorf("own record must not count as an overlap: %v", err)
	}
}

func TestAcceptSlotLockConflict(t *testing.T) {
	schedules, _, locks, _, svc := newApprovalFixture()

	schedules.findByIDFunc = func(ctx context.Context, id string) (*model.Schedule, error) {
		return pendingSchedule(), nil
	}
	locks.acquireFunc = func(ctx context.Context, lock *model.SlotLock) (*model.SlotLock, error) {
		return nil, duplicateKeyErr
	}

	_, err := svc.Accept(context.Background(), testScheduleID)
	if !errors.Is(err, schederrors.ErrSlotUnavailable) {
		t.Errorf("expected ErrSlotUnavailable on held lock, got %v", err)
	}
}

func TestRequestChangeStagesWithoutTouchingCommittedSlot(t *testing.T) {
	schedules, _, _, publisher, svc := newApprovalFixture()

	schedules.findByIDFunc = func(ctx context.Context, id string) (*model.Schedule, error) {
		return pendingSchedule(), nil
	}

	schedule, err := svc.RequestChange(context.Background(), testScheduleID, StagedChange{
		Date:      testTuesday,
		StartTime: "09:00",
		EndTime:   "10:00",
		Reason:    "crew unavailable",
	})
	if err != nil {
		t.Fatalf("RequestChange() failed: %v", err)
	}

	if schedule.ScheduledDate != testMonday || schedule.StartTime != "10:00" {
		t.Error("committed slot must stay untouched while a change is staged")
	}
	if schedule.ApprovalStatus != model.ApprovalChangeRequested {
		t.Errorf("expected change_requested, got %s", schedule.ApprovalStatus)
	}
	if !schedule.HasStagedChange() || schedule.ProposedDate != testTuesday {
		t.Errorf("expected staged change for %s, got %+v", testTuesday, schedule)
	}
	if len(publisher.schedules) != 1 || publisher.schedules[0].Type != events.ScheduleChanged {
		t.Errorf("expected ScheduleChanged event, got %+v", publisher.schedules)
	}
}

func TestClientCounterSetsStatus(t *testing.T) {
	schedules, _, _, _, svc := newApprovalFixture()

	schedules.findByIDFunc = func(ctx context.Context, id string) (*model.Schedule, error) {
		return pendingSchedule(), nil
	}

	schedule, err := svc.ClientCounter(context.Background(), testScheduleID, StagedChange{
		Date:      testTuesday,
		StartTime: "15:00",
		EndTime:   "16:00",
	})
	if err != nil {
		t.Fatalf("ClientCounter() failed: %v", err)
	}
	if schedule.ApprovalStatus != model.ApprovalClientCounter {
		t.Errorf("expected client_counter, got %s", schedule.ApprovalStatus)
	}
}

func TestCancelRevertsClientOnlyWhenNoActiveSchedules(t *testing.T) {
	tests := []struct {
		name         string
		remaining    []*model.Schedule
		wantReverted bool
	}{
		{"last active schedule", nil, true},
		{"other active schedule remains", []*model.Schedule{{ID: "507f1f77bcf86cd799439099"}}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			schedules, clients, _, publisher, svc := newApprovalFixture()
			schedules.findByIDFunc = func(ctx context.Context, id string) (*model.Schedule, error) {
				return pendingSchedule(), nil
			}
			schedules.findActiveByClientFunc = func(ctx context.Context, clientID string) ([]*model.Schedule, error) {
				return tt.remaining, nil
			}

			if err := svc.Cancel(context.Background(), testScheduleID); err != nil {
				t.Fatalf("Cancel() failed: %v", err)
			}

			if clients.statusUpdated != tt.wantReverted {
				t.Errorf("client revert = %v, want %v", clients.statusUpdated, tt.wantReverted)
			}
			if tt.wantReverted && clients.capturedStatus != model.ClientStatusPending {
				t.Errorf("expected revert to pending, got %s", clients.capturedStatus)
			}
			if len(publisher.schedules) != 1 || publisher.schedules[0].Type != events.ScheduleCancelled {
				t.Errorf("expected ScheduleCancelled event, got %+v", publisher.schedules)
			}
		})
	}
}

func TestCancelIsIdempotent(t *testing.T) {
	schedules, _, _, publisher, svc := newApprovalFixture()

	cancelled := pendingSchedule()
	cancelled.Status = model.ScheduleStatusCancelled
	schedules.findByIDFunc = func(ctx context.Context, id string) (*model.Schedule, error) {
		return cancelled, nil
	}

	if err := svc.Cancel(context.Background(), testScheduleID); err != nil {
		t.Fatalf("Cancel() on cancelled schedule failed: %v", err)
	}
	if len(publisher.schedules) != 0 {
		t.Error("cancelling twice must not emit a second event")
	}
}

func TestDirectBookEstimatesDurationFromPropertySize(t *testing.T) {
	_, clients, _, publisher, svc := newApprovalFixture()

	clients.findByIDFunc = func(ctx context.Context, id string) (*model.Client, error) {
		c := testClient()
		c.PropertySqft = 3000 // large job, 4 hours
		return c, nil
	}

	schedule, err := svc.DirectBook(context.Background(), testClientID, testMonday, "10:00")
	if err != nil {
		t.Fatalf("DirectBook() failed: %v", err)
	}

	if schedule.DurationMinutes != 240 {
		t.Errorf("expected 240 minute duration for a large job, got %d", schedule.DurationMinutes)
	}
	if schedule.StartTime != "10:00" || schedule.EndTime != "14:00" {
		t.Errorf("expected 10:00-14:00, got %s-%s", schedule.StartTime, schedule.EndTime)
	}
	if schedule.ApprovalStatus != model.ApprovalPending {
		t.Errorf("direct bookings must await provider approval, got %s", schedule.ApprovalStatus)
	}
	if clients.capturedStatus != model.ClientStatusPendingApproval {
		t.Errorf("expected client raised to pending_approval, got %s", clients.capturedStatus)
	}
	if len(publisher.notifications) != 1 || publisher.notifications[0].TemplateKey != events.TemplateBookingAwaitingReview {
		t.Errorf("expected review notification, got %+v", publisher.notifications)
	}
}

func TestDirectBookCollapsesDuplicateSubmission(t *testing.T) {
	schedules, _, locks, _, svc := newApprovalFixture()

	existing := pendingSchedule()
	schedules.findByNaturalKeyFunc = func(ctx context.Context, clientID, date, startTime string) (*model.Schedule, error) {
		return existing, nil
	}

	schedule, err := svc.DirectBook(context.Background(), testClientID, testMonday, "10:00")
	if err != nil {
		t.Fatalf("DirectBook() failed: %v", err)
	}
	if schedule != existing {
		t.Error("duplicate submission must return the existing schedule")
	}
	if schedules.capturedSchedule != nil {
		t.Error("duplicate submission must not create a new schedule")
	}
	if len(locks.acquired) != 0 {
		t.Error("duplicate submission must not take the slot lock")
	}
}

func TestDirectBookRejectsTakenSlot(t *testing.T) {
	schedules, _, _, _, svc := newApprovalFixture()

	schedules.findActiveForProviderDateFunc = func(ctx context.Context, providerID, date string) ([]*model.Schedule, error) {
		return []*model.Schedule{{
			ScheduledDate: testMonday,
			StartTime:     "11:00",
			EndTime:       "12:00",
			Status:        model.ScheduleStatusScheduled,
		}}, nil
	}

	_, err := svc.DirectBook(context.Background(), testClientID, testMonday, "10:00")
	if !errors.Is(err, schederrors.ErrSlotUnavailable) {
		t.Errorf("expected ErrSlotUnavailable, got %v", err)
	}
}

func TestDirectBookRejectsBadDate(t *testing.T) {
	_, _, _, _, svc := newApprovalFixture()

	if _, err := svc.DirectBook(context.Background(), testClientID, "03/10/2025", "10:00"); err == nil {
		t.Error("expected error for unparseable date")
	}
	if _, err := svc.DirectBook(context.Background(), testClientID, testMonday, "25:00"); err == nil {
		t.Error("expected error for unparseable time")
	}
}
