package model

import "time"

type ClientStatus string

const (
	ClientStatusPending         ClientStatus = "pending"
	ClientStatusPendingApproval ClientStatus = "pending_approval"
	ClientStatusScheduled       ClientStatus = "scheduled"
)

// clientStatusRank orders the client lifecycle. Transitions only move
// forward except for an explicit cancellation rollback.
var clientStatusRank = map[ClientStatus]int{
	ClientStatusPending:         0,
	ClientStatusPendingApproval: 1,
	ClientStatusScheduled:       2,
}

// Rank returns the position of the status in the lifecycle, -1 for unknown.
func (s ClientStatus) Rank() int {
	if r, ok := clientStatusRank[s]; ok {
		return r
	}
	return -1
}

type SizeCategory string

const (
	SizeSmall  SizeCategory = "small"
	SizeMedium SizeCategory = "medium"
	SizeLarge  SizeCategory = "large"
)

// SizeCategoryForSqft buckets a property into a job-size category.
// Zero or negative square footage falls back to medium.
func SizeCategoryForSqft(sqft int) SizeCategory {
	switch {
	case sqft <= 0:
		return SizeMedium
	case sqft < 1500:
		return SizeSmall
	case sqft <= 2500:
		return SizeMedium
	default:
		return SizeLarge
	}
}

type Client struct {
	ID              string       `json:"id,omitempty" bson:"_id,omitempty" validate:"omitempty,mongodb"`
	ProviderID      string       `json:"provider_id" bson:"provider_id" validate:"required"`
	Name            string       `json:"name" bson:"name" validate:"required,min=2,max=100"`
	Email           string       `json:"email" bson:"email" validate:"required,email"`
	Phone           string       `json:"phone,omitempty" bson:"phone" validate:"omitempty,e164"`
	PropertyAddress string       `json:"property_address,omitempty" bson:"property_address" validate:"omitempty,max=200"`
	PropertySqft    int          `json:"property_sqft,omitempty" bson:"property_sqft" validate:"omitempty,min=0"`
	ContractSigned  bool         `json:"contract_signed" bson:"contract_signed"`
	Status          ClientStatus `json:"status" bson:"status" validate:"required,oneof=pending pending_approval scheduled"`
	CreatedAt       time.Time    `json:"created_at" bson:"created_at" validate:"omitempty"`
	UpdatedAt       time.Time    `json:"updated_at,omitempty" bson:"updated_at" validate:"omitempty"`
}
