package service

import (
	"context"
	"errors"
	"testing"
	"time"

	schederrors "slotwise/internal/scheduling/errors"
	"slotwise/internal/scheduling/validator"
	apperrors "slotwise/pkg/errors"
	"slotwise/pkg/model"
)

func newNegotiationFixture() (*mockProposalRepository, *mockScheduleRepository, *mockClientRepository, *recordingPublisher, NegotiationService) {
	cfg := newTestConfig()
	proposals := &mockProposalRepository{}
	schedules := &mockScheduleRepository{}
	clients := &mockClientRepository{}
	configs := &mockWorkingConfigRepository{}
	locks := &mockSlotLockRepository{}
	publisher := &recordingPublisher{}
	v := validator.NewSchedulingValidator(cfg.Log)

	svc := NewNegotiationService(proposals, schedules, clients, configs, locks, v, publisher, cfg)
	return proposals, schedules, clients, publisher, svc
}

func testSlots() []model.Slot {
	return []model.Slot{
		{Date: testMonday, StartTime: "10:00", EndTime: "11:00"},
		{Date: testTuesday, StartTime: "14:00", EndTime: "15:00"},
	}
}

func TestProposeCreatesProposal(t *testing.T) {
	proposals, _, _, publisher, svc := newNegotiationFixture()

	proposal, err := svc.Propose(context.Background(), testProviderID, testClientID, testSlots())
	if err != nil {
		t.Fatalf("Propose() failed: %v", err)
	}

	if proposal.Round != 0 {
		t.Errorf("expected round 0, got %d", proposal.Round)
	}
	if proposal.OfferedBy != model.OfferedByProvider {
		t.Errorf("expected offered_by provider, got %s", proposal.OfferedBy)
	}
	if proposal.Status != model.ProposalStatusPending {
		t.Errorf("expected status pending, got %s", proposal.Status)
	}
	if proposal.ExpiresAt.IsZero() {
		t.Error("expected expiry horizon to be set")
	}
	if proposals.capturedProposal == nil {
		t.Fatal("expected proposal to be persisted")
	}
	if len(publisher.notifications) != 1 {
		t.Fatalf("expected 1 notification, got %d", len(publisher.notifications))
	}
	if publisher.notifications[0].Recipient != "dana@example.com" {
		t.Errorf("notification should go to the client, got %s", publisher.notifications[0].Recipient)
	}
}

func TestProposeUpdatesPendingProposalInPlace(t *testing.T) {
	proposals, _, _, _, svc := newNegotiationFixture()

	pending := &model.Proposal{
		ID:         testProposalID,
		ProviderID: testProviderID,
		ClientID:   testClientID,
		Slots:      []model.Slot{{Date: testMonday, StartTime: "09:00", EndTime: "10:00"}},
		Round:      1,
		OfferedBy:  model.OfferedByClient,
		Status:     model.ProposalStatusPending,
	}
	proposals.findPendingByClientFunc = func(ctx context.Context, clientID string) (*model.Proposal, error) {
		return pending, nil
	}

	newSlots := testSlots()
	got, err := svc.Propose(context.Background(), testProviderID, testClientID, newSlots)
	if err != nil {
		t.Fatalf("Propose() failed: %v", err)
	}

	if got.ID != testProposalID {
		t.Errorf("expected the pending proposal to be reused, got id %s", got.ID)
	}
	if len(got.Slots) != len(newSlots) || got.Slots[0].StartTime != "10:00" {
		t.Errorf("expected slots to be replaced, got %+v", got.Slots)
	}
	if got.OfferedBy != model.OfferedByProvider {
		t.Errorf("expected offered_by to flip back to provider, got %s", got.OfferedBy)
	}
	if proposals.capturedProposal != pending {
		t.Error("expected the existing proposal document to be updated")
	}
}

func TestProposeRejectsSlotCount(t *testing.T) {
	_, _, _, _, svc := newNegotiationFixture()

	oneSlot := testSlots()[:1]
	tests := []struct {
		name  string
		slots []model.Slot
	}{
		{"no slots", nil},
		{"four slots", append([]model.Slot{oneSlot[0], oneSlot[0], oneSlot[0]}, oneSlot[0])},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.Propose(context.Background(), testProviderID, testClientID, tt.slots)
			if !errors.Is(err, schederrors.ErrInvalidSlotCount) {
				t.Errorf("expected ErrInvalidSlotCount, got %v", err)
			}
		})
	}
}

func TestProposeRejectsTakenSlot(t *testing.T) {
	_, schedules, _, _, svc := newNegotiationFixture()

	schedules.findActiveForProviderDateFunc = func(ctx context.Context, providerID, date string) ([]*model.Schedule, error) {
		if date != testMonday {
			return nil, nil
		}
		return []*model.Schedule{{
			ScheduledDate: testMonday,
			StartTime:     "10:00",
			EndTime:       "11:00",
			Status:        model.ScheduleStatusScheduled,
		}}, nil
	}

	_, err := svc.Propose(context.Background(), testProviderID, testClientID, testSlots())
	if !errors.Is(err, schederrors.ErrSlotUnavailable) {
		t.Errorf("expected ErrSlotUnavailable, got %v", err)
	}
}

func TestProposeRejectsForeignClient(t *testing.T) {
	_, _, _, _, svc := newNegotiationFixture()

	_, err := svc.Propose(context.Background(), "someone-else", testClientID, testSlots())
	appErr, ok := err.(*apperrors.AppError)
	if !ok || appErr.Code != apperrors.CodeForbidden {
		t.Errorf("expected forbidden error, got %v", err)
	}
}

func TestAcceptCreatesPendingSchedule(t *testing.T) {
	proposals, schedules, clients, publisher, svc := newNegotiationFixture()

	proposal := &model.Proposal{
		ID:         testProposalID,
		ProviderID: testProviderID,
		ClientID:   testClientID,
		Slots:      testSlots(),
		OfferedBy:  model.OfferedByProvider,
		Status:     model.ProposalStatusPending,
		ExpiresAt:  time.Now().UTC().Add(time.Hour),
	}
	proposals.findByIDFunc = func(ctx context.Context, id string) (*model.Proposal, error) {
		return proposal, nil
	}

	schedule, err := svc.Accept(context.Background(), testProposalID, 1)
	if err != nil {
		t.Fatalf("Accept() failed: %v", err)
	}

	if schedule.ScheduledDate != testTuesday || schedule.StartTime != "14:00" || schedule.EndTime != "15:00" {
		t.Errorf("unexpected schedule slot: %s %s-%s", schedule.ScheduledDate, schedule.StartTime, schedule.EndTime)
	}
	if schedule.DurationMinutes != 60 {
		t.Errorf("expected 60 minute duration, got %d", schedule.DurationMinutes)
	}
	if schedule.ApprovalStatus != model.ApprovalPending {
		t.Errorf("expected approval pending, got %s", schedule.ApprovalStatus)
	}
	if proposal.Status != model.ProposalStatusAccepted {
		t.Errorf("expected proposal accepted, got %s", proposal.Status)
	}
	if proposal.SelectedSlot == nil || *proposal.SelectedSlot != 1 {
		t.Errorf("expected selected slot 1, got %v", proposal.SelectedSlot)
	}
	if clients.capturedStatus != model.ClientStatusPendingApproval {
		t.Errorf("expected client raised to pending_approval, got %s", clients.capturedStatus)
	}
	if schedules.capturedSchedule == nil {
		t.Fatal("expected schedule to be persisted")
	}
	if len(publisher.notifications) != 1 || publisher.notifications[0].Recipient != testProviderID {
		t.Errorf("expected review notification to the provider, got %+v", publisher.notifications)
	}
}

func TestAcceptRejectsBadSelection(t *testing.T) {
	proposals, _, _, _, svc := newNegotiationFixture()

	proposals.findByIDFunc = func(ctx context.Context, id string) (*model.Proposal, error) {
		return &model.Proposal{
			ID:         testProposalID,
			ProviderID: testProviderID,
			ClientID:   testClientID,
			Slots:      testSlots(),
			OfferedBy:  model.OfferedByProvider,
			Status:     model.ProposalStatusPending,
		}, nil
	}

	for _, index := range []int{-1, 2, 7} {
		if _, err := svc.Accept(context.Background(), testProposalID, index); !errors.Is(err, schederrors.ErrInvalidSelection) {
			t.Errorf("index %d: expected ErrInvalidSelection, got %v", index, err)
		}
	}
}

func TestAcceptRejectsClosedProposal(t *testing.T) {
	proposals, _, _, _, svc := newNegotiationFixture()

	proposals.findByIDFunc = func(ctx context.Context, id string) (*model.Proposal, error) {
		return &model.Proposal{
			ID:       testProposalID,
			ClientID: testClientID,
			Slots:    testSlots(),
			Status:   model.ProposalStatusAccepted,
		}, nil
	}

	if _, err := svc.Accept(context.Background(), testProposalID, 0); !errors.Is(err, schederrors.ErrProposalClosed) {
		t.Errorf("expected ErrProposalClosed, got %v", err)
	}
}

func TestAcceptRejectsExpiredProposal(t *testing.T) {
	proposals, _, _, _, svc := newNegotiationFixture()

	proposals.findByIDFunc = func(ctx context.Context, id string) (*model.Proposal, error) {
		return &model.Proposal{
			ID:        testProposalID,
			ClientID:  testClientID,
			Slots:     testSlots(),
			Status:    model.ProposalStatusPending,
			ExpiresAt: time.Now().UTC().Add(-time.Minute),
		}, nil
	}

	if _, err := svc.Accept(context.Background(), testProposalID, 0); !errors.Is(err, schederrors.ErrProposalExpired) {
		t.Errorf("expected ErrProposalExpired, got %v", err)
	}
}

func TestAcceptCollapsesDuplicateBooking(t *testing.T) {
	proposals, schedules, _, publisher, svc := newNegotiationFixture()

	proposal := &model.Proposal{
		ID:         testProposalID,
		ProviderID: testProviderID,
		ClientID:   testClientID,
		Slots:      testSlots(),
		OfferedBy:  model.OfferedByProvider,
		Status:     model.ProposalStatusPending,
		ExpiresAt:  time.Now().UTC().Add(time.Hour),
	}
	proposals.findByIDFunc = func(ctx context.Context, id string) (*model.Proposal, error) {
		return proposal, nil
	}
	existing := &model.Schedule{ID: testScheduleID, ClientID: testClientID}
	schedules.findByNaturalKeyFunc = func(ctx context.Context, clientID, date, startTime string) (*model.Schedule, error) {
		return existing, nil
	}

	schedule, err := svc.Accept(context.Background(), testProposalID, 0)
	if err != nil {
		t.Fatalf("Accept() failed: %v", err)
	}
	if schedule != existing {
		t.Error("accepting a slot the client already holds must return the existing schedule")
	}
	if schedules.capturedSchedule != nil {
		t.Error("no new schedule may be created for a duplicate acceptance")
	}
	if proposal.Status != model.ProposalStatusAccepted {
		t.Errorf("expected proposal accepted, got %s", proposal.Status)
	}
	if proposal.SelectedSlot == nil || *proposal.SelectedSlot != 0 {
		t.Errorf("expected selected slot 0, got %v", proposal.SelectedSlot)
	}
	if len(publisher.notifications) != 0 {
		t.Errorf("a collapsed acceptance must not re-notify, got %+v", publisher.notifications)
	}
}

func TestAcceptReleasesLockOnConflict(t *testing.T) {
	cfg := newTestConfig()
	proposals := &mockProposalRepository{}
	schedules := &mockScheduleRepository{}
	clients := &mockClientRepository{}
	configs := &mockWorkingConfigRepository{}
	locks := &mockSlotLockRepository{}
	v := validator.NewSchedulingValidator(cfg.Log)
	svc := NewNegotiationService(proposals, schedules, clients, configs, locks, v, NopPublisher{}, cfg)

	proposals.findByIDFunc = func(ctx context.Context, id string) (*model.Proposal, error) {
		return &model.Proposal{
			ID:         testProposalID,
			ProviderID: testProviderID,
			ClientID:   testClientID,
			Slots:      testSlots(),
			OfferedBy:  model.OfferedByProvider,
			Status:     model.ProposalStatusPending,
			ExpiresAt:  time.Now().UTC().Add(time.Hour),
		}, nil
	}
	schedules.findActiveForProviderDateFunc = func(ctx context.Context, providerID, date string) ([]*model.Schedule, error) {
		return []*model.Schedule{{
			ScheduledDate: testMonday,
			StartTime:     "10:00",
			EndTime:       "11:00",
			Status:        model.ScheduleStatusScheduled,
		}}, nil
	}

	if _, err := svc.Accept(context.Background(), testProposalID, 0); !errors.Is(err, schederrors.ErrSlotUnavailable) {
		t.Fatal("expected conflict error")
	}
	if len(locks.acquired) != 1 || len(locks.released) != 1 {
		t.Errorf("expected lock acquired and released once, got acquired=%d released=%d",
			len(locks.acquired), len(locks.released))
	}
}

// Walks a full exchange: provider offers, each side counters until the
// round cap refuses a fourth counter.
func TestCounterRoundCap(t *testing.T) {
	proposals, _, _, _, svc := newNegotiationFixture()

	proposal := &model.Proposal{
		ID:         testProposalID,
		ProviderID: testProviderID,
		ClientID:   testClientID,
		Slots:      testSlots(),
		Round:      0,
		OfferedBy:  model.OfferedByProvider,
		Status:     model.ProposalStatusPending,
		ExpiresAt:  time.Now().UTC().Add(time.Hour),
	}
	proposals.findByIDFunc = func(ctx context.Context, id string) (*model.Proposal, error) {
		return proposal, nil
	}

	turns := []model.OfferedBy{model.OfferedByClient, model.OfferedByProvider, model.OfferedByClient}
	for i, side := range turns {
		got, err := svc.Counter(context.Background(), testProposalID, side, testSlots())
		if err != nil {
			t.Fatalf("counter round %d failed: %v", i+1, err)
		}
		if got.Round != i+1 {
			t.Errorf("expected round %d, got %d", i+1, got.Round)
		}
		if got.OfferedBy != side {
			t.Errorf("expected offered_by %s, got %s", side, got.OfferedBy)
		}
		if got.Status != model.ProposalStatusCountered {
			t.Errorf("expected status countered, got %s", got.Status)
		}
	}

	_, err := svc.Counter(context.Background(), testProposalID, model.OfferedByProvider, testSlots())
	if !errors.Is(err, schederrors.ErrMaxRounds) {
		t.Errorf("expected ErrMaxRounds after %d rounds, got %v", model.MaxNegotiationRounds, err)
	}
}

func TestAcceptAllowsCounteredProposal(t *testing.T) {
	proposals, _, _, _, svc := newNegotiationFixture()

	proposals.findByIDFunc = func(ctx context.Context, id string) (*model.Proposal, error) {
		return &model.Proposal{
			ID:         testProposalID,
			ProviderID: testProviderID,
			ClientID:   testClientID,
			Slots:      testSlots(),
			Round:      1,
			OfferedBy:  model.OfferedByClient,
			Status:     model.ProposalStatusCountered,
			ExpiresAt:  time.Now().UTC().Add(time.Hour),
		}, nil
	}

	schedule, err := svc.Accept(context.Background(), testProposalID, 0)
	if err != nil {
		t.Fatalf("Accept() on a countered proposal failed: %v", err)
	}
	if schedule.ScheduledDate != testMonday {
		t.Errorf("expected schedule on %s, got %s", testMonday, schedule.ScheduledDate)
	}
}

func TestCounterRejectsSlotCount(t *testing.T) {
	_, _, _, _, svc := newNegotiationFixture()

	oneSlot := testSlots()[:1]
	tests := []struct {
		name  string
		slots []model.Slot
	}{
		{"no slots", nil},
		{"four slots", append([]model.Slot{oneSlot[0], oneSlot[0], oneSlot[0]}, oneSlot[0])},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.Counter(context.Background(), testProposalID, model.OfferedByClient, tt.slots)
			if !errors.Is(err, schederrors.ErrInvalidSlotCount) {
				t.Errorf("expected ErrInvalidSlotCount, got %v", err)
			}
		})
	}
}

func TestCounterRejectsSameSideTurn(t *testing.T) {
	proposals, _, _, _, svc := newNegotiationFixture()

	proposals.findByIDFunc = func(ctx context.Context, id string) (*model.Proposal, error) {
		return &model.Proposal{
			ID:         testProposalID,
			ProviderID: testProviderID,
			ClientID:   testClientID,
			Slots:      testSlots(),
			OfferedBy:  model.OfferedByProvider,
			Status:     model.ProposalStatusPending,
			ExpiresAt:  time.Now().UTC().Add(time.Hour),
		}, nil
	}

	_, err := svc.Counter(context.Background(), testProposalID, model.OfferedByProvider, testSlots())
	appErr, ok := err.(*apperrors.AppError)
	if !ok || appErr.Code != apperrors.CodeConflict {
		t.Errorf("expected conflict when countering own offer, got %v", err)
	}
}
