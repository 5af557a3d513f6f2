package service

import (
	"context"
	"errors"
	"time"

	finalizererrors "haulbid/internal/finalizer/errors"
	"haulbid/internal/finalizer/notify"
	apperrors "haulbid/pkg/errors"
	"haulbid/pkg/model"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/mongo"
)

func errorsIsLockHeld(err error) bool {
	return errors.Is(err, finalizererrors.ErrLockHeld)
}

// finalizeBooking selects the winning bid and commits the outcome.
// Returns nil both on success and when another holder already finalized
// the booking.
func (s *finalizerService) finalizeBooking(ctx context.Context, booking *model.Booking) error {
	bids, err := s.bids.FindActiveByBooking(ctx, booking.ID, s.now())
	if err != nil {
		return apperrors.Internal("Failed to load active bids", err)
	}

	winner := lowestBid(bids, s.now())
	if winner == nil {
		return s.handleNoValidBids(ctx, booking)
	}

	return s.finalize(ctx, booking, winner)
}

// lowestBid picks the eligible bid with the minimum amount; on equal
// amounts the earliest created_at wins. The repository query already
// sorts this way, but the selection re-applies the ordering so it never
// depends on storage behavior.
func lowestBid(bids []*model.Bid, now time.Time) *model.Bid {
	var winner *model.Bid
	for _, bid := range bids {
		if !bid.Eligible(now) {
			continue
		}
		if winner == nil || bidLess(bid, winner) {
			winner = bid
		}
	}
	return winner
}

func bidLess(a, b *model.Bid) bool {
	if a.Amount != b.Amount {
		return a.Amount < b.Amount
	}
	return a.CreatedAt.Before(b.CreatedAt)
}

// finalize runs the atomic state transition: booking to ASSIGNED,
// winning bid to ACCEPTED, other active bids to REJECTED, one shipment
// created, FINALIZED event appended. Any failure rolls back the whole
// transaction. The conditional AssignWinner update is the idempotency
// guard: a duplicate lock holder matches zero documents and the whole
// attempt becomes a no-op.
func (s *finalizerService) finalize(ctx context.Context, booking *model.Booking, winner *model.Bid) error {
	shipment := &model.Shipment{
		ID:         uuid.New().String(),
		BookingID:  booking.ID,
		BidID:      winner.ID,
		OperatorID: winner.OperatorID,
		TruckID:    winner.TruckID,
		DriverID:   winner.DriverID,
		Amount:     winner.Amount,
	}
	if err := s.validator.ValidateShipment(shipment); err != nil {
		return apperrors.Validation("Winning bid produced an invalid shipment", map[string]any{"error": err.Error()})
	}

	err := s.bookings.ExecuteTransaction(ctx, func(sessCtx mongo.SessionContext) error {
		if err := s.bookings.AssignWinner(sessCtx, booking.ID, winner.ID); err != nil {
			return err
		}
		if err := s.bids.Accept(sessCtx, winner.ID); err != nil {
			return apperrors.Internal("Failed to accept winning bid", err)
		}
		if err := s.bids.RejectOthers(sessCtx, booking.ID, winner.ID); err != nil {
			return apperrors.Internal("Failed to reject losing bids", err)
		}
		if err := s.shipments.Create(sessCtx, shipment); err != nil {
			return apperrors.Internal("Failed to create shipment", err)
		}
		if err := s.bookings.SetShipment(sessCtx, booking.ID, shipment.ID); err != nil {
			return apperrors.Internal("Failed to link shipment to booking", err)
		}
		event := &model.Event{
			BookingID: booking.ID,
			Type:      model.EventFinalized,
			Payload: map[string]any{
				"bid_id":      winner.ID,
				"operator_id": winner.OperatorID,
				"amount":      winner.Amount,
				"shipment_id": shipment.ID,
			},
		}
		if err := s.events.Append(sessCtx, event); err != nil {
			return apperrors.Internal("Failed to append finalized event", err)
		}
		return nil
	})
	if err != nil {
		if errors.Is(err, finalizererrors.ErrAlreadyFinalized) {
			s.cfg.Log.Info("Booking already finalized by another worker, skipping", "id", booking.ID)
			return nil
		}
		return err
	}

	s.metrics.BookingsFinalized.Inc()
	s.cfg.Log.Info("Booking finalized",
		"id", booking.ID,
		"bid_id", winner.ID,
		"operator_id", winner.OperatorID,
		"amount", winner.Amount,
		"shipment_id", shipment.ID,
	)

	// Best-effort, outside the transaction: a failed notification never
	// rolls back a committed finalization.
	s.notifier.Notify(ctx, booking.ShipperID, notify.TypeBookingAssigned, map[string]any{
		"booking_id":  booking.ID,
		"shipment_id": shipment.ID,
		"amount":      winner.Amount,
	})
	s.notifier.Notify(ctx, winner.OperatorID, notify.TypeBidAccepted, map[string]any{
		"booking_id":  booking.ID,
		"bid_id":      winner.ID,
		"shipment_id": shipment.ID,
	})

	return nil
}

// handleNoValidBids closes out an auction that attracted no eligible
// bid. Exactly one NO_VALID_BIDS event is appended per attempt, in the
// same transaction as the status change, and no shipment is ever
// created on this path. The terminal-versus-repost choice is the
// NoBidsTerminal policy flag.
func (s *finalizerService) handleNoValidBids(ctx context.Context, booking *model.Booking) error {
	terminal := s.cfg.NoBidsTerminal
	event := &model.Event{
		BookingID: booking.ID,
		Type:      model.EventNoValidBids,
		Payload: map[string]any{
			"terminal": terminal,
		},
	}
	if err := s.validator.ValidateEvent(event); err != nil {
		return apperrors.Validation("Invalid no-bids event", map[string]any{"error": err.Error()})
	}

	err := s.bookings.ExecuteTransaction(ctx, func(sessCtx mongo.SessionContext) error {
		if terminal {
			if err := s.bookings.MarkNoBids(sessCtx, booking.ID); err != nil {
				return err
			}
		} else {
			until := s.now().Add(s.cfg.RebidWindow)
			event.Payload["reopened_until"] = until
			if err := s.bookings.ExtendDeadline(sessCtx, booking.ID, until); err != nil {
				return err
			}
		}
		if err := s.events.Append(sessCtx, event); err != nil {
			return apperrors.Internal("Failed to append no-bids event", err)
		}
		return nil
	})
	if err != nil {
		if errors.Is(err, finalizererrors.ErrAlreadyFinalized) {
			return nil
		}
		return err
	}

	s.metrics.BookingsNoBids.Inc()
	s.cfg.Log.Info("Auction closed without a valid bid",
		"id", booking.ID,
		"terminal", terminal,
	)

	s.notifier.Notify(ctx, booking.ShipperID, notify.TypeBookingNoBids, map[string]any{
		"booking_id": booking.ID,
		"terminal":   terminal,
	})

	return nil
}

// handleError records a failed finalization attempt. It never returns
// an error: an event-store failure here is logged and swallowed so the
// scheduler loop survives. The booking keeps its pre-transaction status
// and stays retriable until the consecutive-failure threshold parks it
// for manual review.
func (s *finalizerService) handleError(ctx context.Context, booking *model.Booking, procErr error) {
	s.metrics.FinalizeErrors.Inc()
	s.cfg.Log.Error("Auto-finalization failed", "id", booking.ID, "error", procErr)

	event := &model.Event{
		BookingID: booking.ID,
		Type:      model.EventAutoFinalizeError,
		Payload: map[string]any{
			"error": procErr.Error(),
		},
	}
	if err := s.events.Append(ctx, event); err != nil {
		s.cfg.Log.Error("Failed to append error event", "id", booking.ID, "error", err)
	}

	failures, err := s.bookings.RecordFailure(ctx, booking.ID)
	if err != nil {
		s.cfg.Log.Error("Failed to record finalize failure", "id", booking.ID, "error", err)
		return
	}

	if failures >= s.cfg.MaxFinalizeFailures {
		if err := s.bookings.MarkReview(ctx, booking.ID); err != nil {
			s.cfg.Log.Error("Failed to park booking for review", "id", booking.ID, "error", err)
			return
		}
		s.cfg.Log.Warn("Booking parked for manual review after repeated finalize failures",
			"id", booking.ID,
			"failures", failures,
		)
	}
}
