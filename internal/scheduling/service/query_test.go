package service

import (
	"context"
	"testing"

	apperrors "slotwise/pkg/errors"
	"slotwise/pkg/model"
)

func newQueryFixture() (*mockScheduleRepository, *mockClientRepository, *mockWorkingConfigRepository, QueryService) {
	cfg := newTestConfig()
	schedules := &mockScheduleRepository{}
	clients := &mockClientRepository{}
	configs := &mockWorkingConfigRepository{}

	svc := NewQueryService(schedules, clients, configs, cfg)
	return schedules, clients, configs, svc
}

func TestSchedulingInfoEstimatesDurationFromPropertySize(t *testing.T) {
	tests := []struct {
		name        string
		sqft        int
		wantMinutes int
	}{
		{name: "small property", sqft: 1000, wantMinutes: 120},
		{name: "medium property", sqft: 1800, wantMinutes: 180},
		{name: "large property", sqft: 3000, wantMinutes: 240},
		{name: "unknown size falls back to medium", sqft: 0, wantMinutes: 180},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, clients, _, svc := newQueryFixture()
			clients.findByIDFunc = func(ctx context.Context, id string) (*model.Client, error) {
				c := testClient()
				c.PropertySqft = tt.sqft
				return c, nil
			}

			info, err := svc.SchedulingInfo(context.Background(), testClientID)
			if err != nil {
				t.Fatalf("SchedulingInfo() failed: %v", err)
			}
			if info.EstimatedDurationMin != tt.wantMinutes {
				t.Errorf("expected %d minutes, got %d", tt.wantMinutes, info.EstimatedDurationMin)
			}
			if info.DayStart != "09:00" || info.DayEnd != "17:00" {
				t.Errorf("expected working window 09:00-17:00, got %s-%s", info.DayStart, info.DayEnd)
			}
		})
	}
}

func TestAvailabilitySkipsBookedAndBufferedRanges(t *testing.T) {
	schedules, _, _, svc := newQueryFixture()
	schedules.findActiveForProviderDateFunc = func(ctx context.Context, providerID, date string) ([]*model.Schedule, error) {
		return []*model.Schedule{
			{StartTime: "10:00", EndTime: "11:00", ApprovalStatus: model.ApprovalAccepted},
		}, nil
	}

	slots, err := svc.Availability(context.Background(), testProviderID, testMonday, 60)
	if err != nil {
		t.Fatalf("Availability() failed: %v", err)
	}

	// 10:00-11:00 padded by the 15 minute buffer blocks 09:45-11:15. Only
	// the trailing window still holds a one hour appointment.
	want := []TimeSlot{{StartTime: "11:15", EndTime: "17:00"}}
	if len(slots) != len(want) {
		t.Fatalf("expected %d free windows, got %d: %v", len(want), len(slots), slots)
	}
	for i := range want {
		if slots[i] != want[i] {
			t.Errorf("window %d: expected %v, got %v", i, want[i], slots[i])
		}
	}
}

func TestAvailabilityOffDayReturnsEmptyList(t *testing.T) {
	_, _, _, svc := newQueryFixture()

	// 2025-03-09 is a Sunday, outside the Monday-Friday working week.
	slots, err := svc.Availability(context.Background(), testProviderID, "2025-03-09", 60)
	if err != nil {
		t.Fatalf("Availability() failed: %v", err)
	}
	if len(slots) != 0 {
		t.Errorf("expected no windows on an off day, got %v", slots)
	}
}

func TestAvailabilityRejectsBadDate(t *testing.T) {
	_, _, _, svc := newQueryFixture()

	_, err := svc.Availability(context.Background(), testProviderID, "03/10/2025", 60)
	appErr, ok := err.(*apperrors.AppError)
	if !ok || appErr.Code != apperrors.CodeInvalidInput {
		t.Errorf("expected invalid input error, got %v", err)
	}
}

func TestAvailabilityDefaultsDuration(t *testing.T) {
	_, _, _, svc := newQueryFixture()

	// Default duration is 150 minutes; the 8 hour day has room for it.
	slots, err := svc.Availability(context.Background(), testProviderID, testMonday, 0)
	if err != nil {
		t.Fatalf("Availability() failed: %v", err)
	}
	if len(slots) != 1 || slots[0].StartTime != "09:00" {
		t.Errorf("expected the full working day, got %v", slots)
	}
}

func TestAvailabilityWindowSpansWorkingDays(t *testing.T) {
	schedules, _, _, svc := newQueryFixture()
	schedules.findActiveForProviderRangeFunc = func(ctx context.Context, providerID, fromDate, toDate string) ([]*model.Schedule, error) {
		if fromDate != testMonday || toDate != "2025-03-16" {
			t.Errorf("expected range %s..2025-03-16, got %s..%s", testMonday, fromDate, toDate)
		}
		return []*model.Schedule{
			{ScheduledDate: testTuesday, StartTime: "09:00", EndTime: "16:30", ApprovalStatus: model.ApprovalAccepted},
		}, nil
	}

	window, err := svc.AvailabilityWindow(context.Background(), testClientID, testMonday)
	if err != nil {
		t.Fatalf("AvailabilityWindow() failed: %v", err)
	}

	// Monday through Sunday with the weekend omitted.
	if len(window) != 5 {
		t.Fatalf("expected 5 working days, got %d: %v", len(window), window)
	}
	if window[0].Date != testMonday || len(window[0].Slots) == 0 {
		t.Errorf("expected open slots on %s, got %v", testMonday, window[0])
	}
	// Tuesday is booked 09:00-16:30; the 15 minute buffer leaves less than
	// the 180 minute medium job, so the day shows no slots but stays listed.
	if window[1].Date != testTuesday || len(window[1].Slots) != 0 {
		t.Errorf("expected %s fully booked, got %v", testTuesday, window[1])
	}
}

func TestBusyIntervalsMergeWithoutBuffer(t *testing.T) {
	schedules, _, _, svc := newQueryFixture()
	schedules.findActiveForProviderDateFunc = func(ctx context.Context, providerID, date string) ([]*model.Schedule, error) {
		return []*model.Schedule{
			{StartTime: "10:00", EndTime: "11:00", ApprovalStatus: model.ApprovalAccepted},
			{StartTime: "10:30", EndTime: "12:00", ApprovalStatus: model.ApprovalPending},
		}, nil
	}

	slots, err := svc.BusyIntervals(context.Background(), testProviderID, testMonday)
	if err != nil {
		t.Fatalf("BusyIntervals() failed: %v", err)
	}

	want := []TimeSlot{{StartTime: "10:00", EndTime: "12:00"}}
	if len(slots) != 1 || slots[0] != want[0] {
		t.Errorf("expected overlapping bookings merged to %v, got %v", want, slots)
	}
}

func TestLatestAppointmentNotFound(t *testing.T) {
	_, _, _, svc := newQueryFixture()

	_, err := svc.LatestAppointment(context.Background(), testClientID)
	appErr, ok := err.(*apperrors.AppError)
	if !ok || appErr.Code != apperrors.CodeNotFound {
		t.Errorf("expected not found error, got %v", err)
	}
}
