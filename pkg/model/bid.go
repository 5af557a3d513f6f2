package model

import "time"

// Bid statuses.
const (
	BidStatusActive    = "ACTIVE"
	BidStatusAccepted  = "ACCEPTED"
	BidStatusRejected  = "REJECTED"
	BidStatusWithdrawn = "WITHDRAWN"
	BidStatusExpired   = "EXPIRED"
)

// Bid is a carrier's offered price and resources for a booking.
// Amount is in minor currency units. CreatedAt breaks ties between
// equal amounts: first submitted wins.
type Bid struct {
	ID         string     `json:"id,omitempty" bson:"_id,omitempty" validate:"omitempty,mongodb"`
	BookingID  string     `json:"booking_id" bson:"booking_id" validate:"required"`
	OperatorID string     `json:"operator_id" bson:"operator_id" validate:"required"`
	TruckID    string     `json:"truck_id" bson:"truck_id" validate:"required"`
	DriverID   string     `json:"driver_id" bson:"driver_id" validate:"required"`
	Amount     int64      `json:"amount" bson:"amount" validate:"required,gt=0"`
	Status     string     `json:"status" bson:"status" validate:"required,oneof=ACTIVE ACCEPTED REJECTED WITHDRAWN EXPIRED"`
	ExpiresAt  *time.Time `json:"expires_at,omitempty" bson:"expires_at,omitempty"`
	CreatedAt  time.Time  `json:"created_at" bson:"created_at"`
}

// Eligible reports whether the bid can still win an auction at the
// given instant.
func (b *Bid) Eligible(now time.Time) bool {
	if b.Status != BidStatusActive {
		return false
	}
	if b.ExpiresAt != nil && !b.ExpiresAt.After(now) {
		return false
	}
	return true
}
