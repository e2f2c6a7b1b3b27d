package model

import "time"

// MaxNegotiationRounds caps how many times a proposal may be countered.
const MaxNegotiationRounds = 3

// MaxSlotsPerProposal bounds how many alternatives one proposal may carry.
const MaxSlotsPerProposal = 3

type ProposalStatus string

const (
	ProposalStatusPending   ProposalStatus = "pending"
	ProposalStatusAccepted  ProposalStatus = "accepted"
	ProposalStatusCountered ProposalStatus = "countered"
)

type OfferedBy string

const (
	OfferedByProvider OfferedBy = "provider"
	OfferedByClient   OfferedBy = "client"
)

// Slot is one offered appointment alternative.
type Slot struct {
	Date      string `json:"date" bson:"date" validate:"required,datetime=2006-01-02"`
	StartTime string `json:"start_time" bson:"start_time" validate:"required,time_of_day"`
	EndTime   string `json:"end_time" bson:"end_time" validate:"required,time_of_day"`
}

// Proposal is one round of slot negotiation between a provider and a client.
// Countering replaces the slots, bumps the round and flips the offering side.
type Proposal struct {
	ID           string         `json:"id,omitempty" bson:"_id,omitempty" validate:"omitempty,mongodb"`
	ProviderID   string         `json:"provider_id" bson:"provider_id" validate:"required"`
	ClientID     string         `json:"client_id" bson:"client_id" validate:"required,mongodb"`
	Slots        []Slot         `json:"slots" bson:"slots" validate:"required,min=1,max=3,dive"`
	Round        int            `json:"round" bson:"round" validate:"min=0,max=3"`
	OfferedBy    OfferedBy      `json:"offered_by" bson:"offered_by" validate:"required,oneof=provider client"`
	Status       ProposalStatus `json:"status" bson:"status" validate:"required,oneof=pending accepted countered"`
	SelectedSlot *int           `json:"selected_slot,omitempty" bson:"selected_slot,omitempty" validate:"omitempty,min=0,max=2"`
	ExpiresAt    time.Time      `json:"expires_at" bson:"expires_at" validate:"omitempty"`
	CreatedAt    time.Time      `json:"created_at" bson:"created_at" validate:"omitempty"`
	UpdatedAt    time.Time      `json:"updated_at,omitempty" bson:"updated_at" validate:"omitempty"`
}

// Open reports whether the proposal can still be accepted or countered.
func (p *Proposal) Open() bool {
	return p.Status == ProposalStatusPending || p.Status == ProposalStatusCountered
}

// Stale reports whether the proposal has passed its expiry horizon.
// Staleness is derived, never stored.
func (p *Proposal) Stale(now time.Time) bool {
	return !p.ExpiresAt.IsZero() && now.After(p.ExpiresAt)
}
