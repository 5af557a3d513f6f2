package model

import (
	"time"
)

// Booking statuses. Transitions out of BIDDING are monotonic: once a
// booking reaches ASSIGNED, NO_BIDS, CANCELLED or REVIEW it never
// returns to BIDDING.
const (
	BookingStatusOpen      = "OPEN"
	BookingStatusBidding   = "BIDDING"
	BookingStatusAssigned  = "ASSIGNED"
	BookingStatusNoBids    = "NO_BIDS"
	BookingStatusCancelled = "CANCELLED"
	BookingStatusReview    = "REVIEW"
)

// Booking is a shipper's posted load open for carrier bidding.
// Created by the posting flow; mutated by the finalizer once
// auto_finalize_at has passed.
type Booking struct {
	ID               string    `json:"id,omitempty" bson:"_id,omitempty" validate:"omitempty,mongodb"`
	ShipperID        string    `json:"shipper_id" bson:"shipper_id" validate:"required"`
	PickupLocation   string    `json:"pickup_location" bson:"pickup_location" validate:"required,min=2,max=200"`
	DropLocation     string    `json:"drop_location" bson:"drop_location" validate:"required,min=2,max=200"`
	Status           string    `json:"status" bson:"status" validate:"required,oneof=OPEN BIDDING ASSIGNED NO_BIDS CANCELLED REVIEW"`
	AutoFinalizeAt   time.Time `json:"auto_finalize_at" bson:"auto_finalize_at" validate:"required"`
	WinningBidID     string    `json:"winning_bid_id,omitempty" bson:"winning_bid_id,omitempty"`
	ShipmentID       string    `json:"shipment_id,omitempty" bson:"shipment_id,omitempty"`
	FinalizeFailures int       `json:"finalize_failures,omitempty" bson:"finalize_failures,omitempty"`
	CreatedAt        time.Time `json:"created_at" bson:"created_at"`
	UpdatedAt        time.Time `json:"updated_at,omitempty" bson:"updated_at,omitempty"`
}
