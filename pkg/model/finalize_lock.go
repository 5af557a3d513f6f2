package model

import "time"

// FinalizeLock is an advisory per-booking lock held while a worker
// finalizes an auction. The unique _id insert is the acquisition; the
// token proves ownership for release. Locks are purely a throughput
// optimization: the conditional booking update is the correctness
// authority even if two holders overlap after a TTL expiry.
type FinalizeLock struct {
	ID        string    `bson:"_id" json:"id"`
	Token     string    `bson:"token" json:"token"`
	ExpiresAt time.Time `bson:"expires_at" json:"expires_at"`
	CreatedAt time.Time `bson:"created_at" json:"created_at"`
}
