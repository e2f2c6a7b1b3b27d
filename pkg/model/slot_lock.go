package model

import (
	"fmt"
	"time"
)

// SlotLock is an advisory lock held while a slot is being committed. The
// TTL index on expires_at cleans up locks from crashed transactions.
type SlotLock struct {
	ID        string    `bson:"_id" json:"id"`
	ExpiresAt time.Time `bson:"expires_at" json:"expires_at"`
	CreatedAt time.Time `bson:"created_at" json:"created_at"`
}

// SlotLockID builds the lock key for a provider's slot. Two writers racing
// for the same slot collide on the _id unique index.
func SlotLockID(providerID, date string, startMinutes int) string {
	return fmt.Sprintf("slot_lock_%s_%s_%d", providerID, date, startMinutes)
}
