package model

import "time"

// Shipment is the binding outcome of a finalized booking. At most one
// shipment exists per booking; its presence is the durable witness that
// finalization already happened.
type Shipment struct {
	ID         string    `json:"id,omitempty" bson:"_id,omitempty"`
	BookingID  string    `json:"booking_id" bson:"booking_id" validate:"required"`
	BidID      string    `json:"bid_id" bson:"bid_id" validate:"required"`
	OperatorID string    `json:"operator_id" bson:"operator_id" validate:"required"`
	TruckID    string    `json:"truck_id" bson:"truck_id" validate:"required"`
	DriverID   string    `json:"driver_id" bson:"driver_id" validate:"required"`
	Amount     int64     `json:"amount" bson:"amount" validate:"required,gt=0"`
	CreatedAt  time.Time `json:"created_at" bson:"created_at"`
}
