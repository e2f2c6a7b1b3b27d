package service

import (
	"context"
	"errors"
	"fmt"
	"time"

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

type NegotiationService interface {
	Propose(ctx context.Context, providerID, clientID string, slots []model.Slot) (*model.Proposal, error)
	Accept(ctx context.Context, proposalID string, slotIndex int) (*model.Schedule, error)
	Counter(ctx context.Context, proposalID string, offeredBy model.OfferedBy, slots []model.Slot) (*model.Proposal, error)
	GetByID(ctx context.Context, id string) (*model.Proposal, error)
	GetPendingForClient(ctx context.Context, clientID string) (*model.Proposal, error)
	ListByProvider(ctx context.Context, providerID string, limit int, offset int64) ([]*model.Proposal, int64, error)
}

type negotiationService struct {
	proposals repository.ProposalRepository
	schedules repository.ScheduleRepository
	clients   repository.ClientRepository
	configs   repository.WorkingConfigRepository
	locks     repository.SlotLockRepository
	validator *validator.SchedulingValidator
	publisher EventPublisher
	cfg       *config.Config
}

func NewNegotiationService(
	proposals repository.ProposalRepository,
	schedules repository.ScheduleRepository,
	clients repository.ClientRepository,
	configs repository.WorkingConfigRepository,
	locks repository.SlotLockRepository,
	validator *validator.SchedulingValidator,
	publisher EventPublisher,
	cfg *config.Config,
) NegotiationService {
	return &negotiationService{
		proposals: proposals,
		schedules: schedules,
		clients:   clients,
		configs:   configs,
		locks:     locks,
		validator: validator,
		publisher: publisher,
		cfg:       cfg,
	}
}

// Propose offers the client up to three slots. A still-pending proposal for
// the same client is updated in place rather than stacked.
func (s *negotiationService) Propose(ctx context.Context, providerID, clientID string, slots []model.Slot) (*model.Proposal, error) {
	if providerID == "" || clientID == "" {
		return nil, apperrors.InvalidInput("Provider ID and client ID are required")
	}
	if len(slots) == 0 || len(slots) > model.MaxSlotsPerProposal {
		return nil, apperrors.Wrap(schederrors.ErrInvalidSlotCount, apperrors.CodeValidation,
			fmt.Sprintf("A proposal must offer between 1 and %d slots", model.MaxSlotsPerProposal), 422)
	}
	if err := s.validator.ValidateSlots(slots); err != nil {
		return nil, apperrors.Validation("Invalid slots", map[string]any{"error": err.Error()})
	}

	client, err := s.clients.FindByID(ctx, clientID)
	if err != nil {
		return nil, translateLookupError(err, "Client", clientID)
	}
	if client.ProviderID != providerID {
		return nil, apperrors.Forbidden("Client does not belong to this provider")
	}

	for i, slot := range slots {
		if err := s.verifySlotFree(ctx, providerID, slot); err != nil {
			if appErr, ok := err.(*apperrors.AppError); ok && appErr.Code == apperrors.CodeConflict {
				return nil, apperrors.Wrap(schederrors.ErrSlotUnavailable, apperrors.CodeConflict,
					fmt.Sprintf("Slot %d (%s %s) is not available", i+1, slot.Date, slot.StartTime), 409)
			}
			return nil, err
		}
	}

	now := time.Now().UTC()

	existing, err := s.proposals.FindPendingByClient(ctx, clientID)
	if err != nil && !errors.Is(err, schederrors.ErrNotFound) {
		return nil, apperrors.Internal("Failed to look up pending proposal", err)
	}
	if existing != nil {
		existing.Slots = slots
		existing.OfferedBy = model.OfferedByProvider
		existing.Status = model.ProposalStatusPending
		existing.ExpiresAt = now.Add(s.cfg.ProposalExpiry)
		if err := s.proposals.Update(ctx, existing.ID, existing); err != nil {
			return nil, apperrors.Internal("Failed to update pending proposal", err)
		}
		s.cfg.Log.Info("Pending proposal updated", "proposal_id", existing.ID, "client_id", clientID)
		s.notifyProposal(client, events.TemplateProposalOffered)
		return existing, nil
	}

	proposal := &model.Proposal{
		ProviderID: providerID,
		ClientID:   clientID,
		Slots:      slots,
		Round:      0,
		OfferedBy:  model.OfferedByProvider,
		Status:     model.ProposalStatusPending,
		ExpiresAt:  now.Add(s.cfg.ProposalExpiry),
	}
	if err := s.validator.ValidateProposal(proposal); err != nil {
		return nil, apperrors.Validation("Proposal validation failed", map[string]any{"error": err.Error()})
	}
	if err := s.proposals.Create(ctx, proposal); err != nil {
		return nil, apperrors.Internal("Failed to create proposal", err)
	}

	s.cfg.Log.Info("Proposal created",
		"proposal_id", proposal.ID,
		"provider_id", providerID,
		"client_id", clientID,
		"slots", len(slots),
	)
	s.notifyProposal(client, events.TemplateProposalOffered)
	return proposal, nil
}

// Accept commits one of the offered slots as a schedule awaiting provider
// approval. The slot is re-validated inside the transaction; acceptance of
// a taken slot fails with a conflict. A resubmission of a slot the client
// already holds collapses onto the existing schedule.
func (s *negotiationService) Accept(ctx context.Context, proposalID string, slotIndex int) (*model.Schedule, error) {
	proposal, err := s.proposals.FindByID(ctx, proposalID)
	if err != nil {
		return nil, translateLookupError(err, "Proposal", proposalID)
	}
	if !proposal.Open() {
		return nil, apperrors.Wrap(schederrors.ErrProposalClosed, apperrors.CodeConflict,
			"Proposal is no longer open", 409)
	}
	if proposal.Stale(time.Now().UTC()) {
		return nil, apperrors.Wrap(schederrors.ErrProposalExpired, apperrors.CodeConflict,
			"Proposal has expired", 409)
	}
	if slotIndex < 0 || slotIndex >= len(proposal.Slots) {
		return nil, apperrors.Wrap(schederrors.ErrInvalidSelection, apperrors.CodeInvalidInput,
			fmt.Sprintf("Slot index %d is out of range", slotIndex), 400)
	}

	slot := proposal.Slots[slotIndex]
	iv, err := slotInterval(slot.StartTime, slot.EndTime)
	if err != nil {
		return nil, err
	}

	lockID, err := acquireSlotLock(ctx, s.locks, proposal.ProviderID, slot.Date, iv.Start)
	if err != nil {
		return nil, err
	}
	defer func() {
		if releaseErr := s.locks.Release(ctx, lockID); releaseErr != nil {
			s.cfg.Log.Warn("Failed to release slot lock", "lock_id", lockID, "error", releaseErr)
		}
	}()

	schedule := &model.Schedule{
		ProviderID:      proposal.ProviderID,
		ClientID:        proposal.ClientID,
		ScheduledDate:   slot.Date,
		StartTime:       timemath.Format(iv.Start),
		EndTime:         timemath.Format(iv.End),
		DurationMinutes: iv.End - iv.Start,
		Status:          model.ScheduleStatusScheduled,
		ApprovalStatus:  model.ApprovalPending,
	}

	collapsed := false
	err = s.schedules.ExecuteTransaction(ctx, func(sessCtx mongo.SessionContext) error {
		if existing, err := s.schedules.FindByNaturalKey(sessCtx, proposal.ClientID, slot.Date, schedule.StartTime); err == nil {
			proposal.Status = model.ProposalStatusAccepted
			proposal.SelectedSlot = &slotIndex
			if err := s.proposals.Update(sessCtx, proposal.ID, proposal); err != nil {
				return apperrors.Internal("Failed to update proposal", err)
			}
			schedule = existing
			collapsed = true
			return nil
		} else if !errors.Is(err, schederrors.ErrNotFound) {
			return apperrors.Internal("Failed to check for duplicate booking", err)
		}

		if err := s.verifySlotFree(sessCtx, proposal.ProviderID, slot); err != nil {
			return err
		}

		if err := s.schedules.Create(sessCtx, schedule); err != nil {
			if errors.Is(err, schederrors.ErrDuplicateBooking) {
				return apperrors.Wrap(err, apperrors.CodeConflict, "An identical booking already exists", 409)
			}
			return apperrors.Internal("Failed to create schedule", err)
		}

		proposal.Status = model.ProposalStatusAccepted
		proposal.SelectedSlot = &slotIndex
		if err := s.proposals.Update(sessCtx, proposal.ID, proposal); err != nil {
			return apperrors.Internal("Failed to update proposal", err)
		}

		return raiseClientStatus(sessCtx, s.clients, proposal.ClientID, model.ClientStatusPendingApproval)
	})
	if err != nil {
		s.cfg.Log.Error("Failed to accept proposal", "proposal_id", proposalID, "error", err)
		return nil, err
	}
	if collapsed {
		s.cfg.Log.Info("Duplicate slot acceptance collapsed",
			"proposal_id", proposalID,
			"schedule_id", schedule.ID,
		)
		return schedule, nil
	}

	s.cfg.Log.Info("Proposal slot accepted",
		"proposal_id", proposalID,
		"schedule_id", schedule.ID,
		"date", slot.Date,
		"start_time", schedule.StartTime,
	)
	s.publisher.PublishNotification(events.NotificationEvent{
		Type:        events.NotificationEmail,
		Recipient:   proposal.ProviderID,
		TemplateKey: events.TemplateBookingAwaitingReview,
		Payload: map[string]any{
			"schedule_id": schedule.ID,
			"date":        schedule.ScheduledDate,
			"start_time":  schedule.StartTime,
		},
	})
	return schedule, nil
}

// Counter replaces the offered slots with alternatives from the other side.
// The round counter caps the back-and-forth at three rounds.
func (s *negotiationService) Counter(ctx context.Context, proposalID string, offeredBy model.OfferedBy, slots []model.Slot) (*model.Proposal, error) {
	if offeredBy != model.OfferedByProvider && offeredBy != model.OfferedByClient {
		return nil, apperrors.InvalidInput("offered_by must be provider or client")
	}
	if len(slots) == 0 || len(slots) > model.MaxSlotsPerProposal {
		return nil, apperrors.Wrap(schederrors.ErrInvalidSlotCount, apperrors.CodeValidation,
			fmt.Sprintf("A proposal must offer between 1 and %d slots", model.MaxSlotsPerProposal), 422)
	}
	if err := s.validator.ValidateSlots(slots); err != nil {
		return nil, apperrors.Validation("Invalid slots", map[string]any{"error": err.Error()})
	}

	proposal, err := s.proposals.FindByID(ctx, proposalID)
	if err != nil {
		return nil, translateLookupError(err, "Proposal", proposalID)
	}
	if !proposal.Open() {
		return nil, apperrors.Wrap(schederrors.ErrProposalClosed, apperrors.CodeConflict,
			"Proposal is no longer open", 409)
	}
	if proposal.Stale(time.Now().UTC()) {
		return nil, apperrors.Wrap(schederrors.ErrProposalExpired, apperrors.CodeConflict,
			"Proposal has expired", 409)
	}
	if proposal.OfferedBy == offeredBy {
		return nil, apperrors.Conflict("It is not this side's turn to counter")
	}
	if proposal.Round >= model.MaxNegotiationRounds {
		return nil, apperrors.Wrap(schederrors.ErrMaxRounds, apperrors.CodeConflict,
			"Maximum negotiation rounds reached", 409)
	}

	proposal.Slots = slots
	proposal.Round++
	proposal.OfferedBy = offeredBy
	proposal.Status = model.ProposalStatusCountered
	proposal.ExpiresAt = time.Now().UTC().Add(s.cfg.ProposalExpiry)

	if err := s.proposals.Update(ctx, proposal.ID, proposal); err != nil {
		return nil, apperrors.Internal("Failed to update proposal", err)
	}

	s.cfg.Log.Info("Proposal countered",
		"proposal_id", proposal.ID,
		"round", proposal.Round,
		"offered_by", proposal.OfferedBy,
	)

	recipient := proposal.ClientID
	if offeredBy == model.OfferedByClient {
		recipient = proposal.ProviderID
	}
	s.publisher.PublishNotification(events.NotificationEvent{
		Type:        events.NotificationEmail,
		Recipient:   recipient,
		TemplateKey: events.TemplateProposalCountered,
		Payload: map[string]any{
			"proposal_id": proposal.ID,
			"round":       proposal.Round,
		},
	})
	return proposal, nil
}

func (s *negotiationService) GetByID(ctx context.Context, id string) (*model.Proposal, error) {
	if id == "" {
		return nil, apperrors.InvalidInput("Proposal ID cannot be empty")
	}
	proposal, err := s.proposals.FindByID(ctx, id)
	if err != nil {
		return nil, translateLookupError(err, "Proposal", id)
	}
	return proposal, nil
}

func (s *negotiationService) GetPendingForClient(ctx context.Context, clientID string) (*model.Proposal, error) {
	if clientID == "" {
		return nil, apperrors.InvalidInput("Client ID cannot be empty")
	}
	proposal, err := s.proposals.FindPendingByClient(ctx, clientID)
	if err != nil {
		return nil, translateLookupError(err, "Proposal", clientID)
	}
	return proposal, nil
}

func (s *negotiationService) ListByProvider(ctx context.Context, providerID string, limit int, offset int64) ([]*model.Proposal, int64, error) {
	if providerID == "" {
		return nil, 0, apperrors.InvalidInput("Provider ID cannot be empty")
	}

	proposals, err := s.proposals.FindByProvider(ctx, providerID, limit, offset)
	if err != nil {
		return nil, 0, apperrors.Internal("Failed to list proposals", err)
	}
	count, err := s.proposals.Count(ctx, providerID)
	if err != nil {
		return nil, 0, apperrors.Internal("Failed to count proposals", err)
	}
	return proposals, count, nil
}

// verifySlotFree checks the slot against the provider's availability. It
// runs once at proposal time and again inside the committing transaction,
// where ctx is the session context.
func (s *negotiationService) verifySlotFree(ctx context.Context, providerID string, slot model.Slot) error {
	wc, err := loadWorkingConfig(ctx, s.configs, providerID, s.cfg)
	if err != nil {
		return err
	}

	booked, err := s.schedules.FindActiveForProviderDate(ctx, providerID, slot.Date)
	if err != nil {
		return apperrors.Internal("Failed to load existing schedules", err)
	}

	iv, err := slotInterval(slot.StartTime, slot.EndTime)
	if err != nil {
		return err
	}

	free, err := availability.SlotFree(wc, slot.Date, busyIntervals(booked), iv)
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
	return nil
}

func (s *negotiationService) notifyProposal(client *model.Client, templateKey string) {
	s.publisher.PublishNotification(events.NotificationEvent{
		Type:        events.NotificationEmail,
		Recipient:   client.Email,
		TemplateKey: templateKey,
		Payload:     map[string]any{"client_id": client.ID},
	})
}
