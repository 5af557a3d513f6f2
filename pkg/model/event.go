package model

import "time"

// Event types emitted by the finalizer.
const (
	EventFinalized         = "FINALIZED"
	EventNoValidBids       = "NO_VALID_BIDS"
	EventAutoFinalizeError = "AUTO_FINALIZE_ERROR"
)

// Event is an append-only audit record. Events are never mutated or
// deleted; at most one FINALIZED event exists per booking.
type Event struct {
	ID        string         `json:"id,omitempty" bson:"_id,omitempty"`
	BookingID string         `json:"booking_id" bson:"booking_id" validate:"required"`
	Type      string         `json:"type" bson:"type" validate:"required,oneof=FINALIZED NO_VALID_BIDS AUTO_FINALIZE_ERROR"`
	Payload   map[string]any `json:"payload,omitempty" bson:"payload,omitempty"`
	CreatedAt time.Time      `json:"created_at" bson:"created_at"`
}
