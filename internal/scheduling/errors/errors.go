package errors

import "errors"

var (
	ErrNotFound = errors.New("record not found")

	ErrInvalidID = errors.New("invalid ID format")

	ErrSlotUnavailable = errors.New("slot is outside the provider's free time")

	ErrDoubleBooked = errors.New("slot overlaps an accepted schedule")

	ErrDuplicateBooking = errors.New("an identical active booking already exists")

	ErrMaxRounds = errors.New("maximum negotiation rounds reached")

	ErrInvalidSelection = errors.New("selected slot index is out of range")

	ErrInvalidSlotCount = errors.New("a proposal must offer between one and three slots")

	ErrProposalClosed = errors.New("proposal is no longer pending")

	ErrProposalExpired = errors.New("proposal has expired")

	ErrPreconditionNotMet = errors.New("client contract must be signed first")

	ErrInvalidTransition = errors.New("schedule state does not allow this action")
)
