package service

import (
	"context"
	"errors"
	"testing"
	"time"

	finalizererrors "haulbid/internal/finalizer/errors"
	"haulbid/internal/finalizer/notify"
	"haulbid/pkg/model"
)

func TestLowestBidSelection(t *testing.T) {
	base := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	now := base.Add(time.Hour)

	tests := []struct {
		name     string
		bids     []*model.Bid
		expected string
	}{
		{
			name:     "empty slice",
			bids:     nil,
			expected: "",
		},
		{
			name: "single eligible bid",
			bids: []*model.Bid{
				activeBid("b1", "bk1", 45000, base),
			},
			expected: "b1",
		},
		{
			name: "lowest amount wins",
			bids: []*model.Bid{
				activeBid("b1", "bk1", 45000, base),
				activeBid("b2", "bk1", 42000, base.Add(time.Minute)),
				activeBid("b3", "bk1", 50000, base.Add(2*time.Minute)),
			},
			expected: "b2",
		},
		{
			name: "earliest created breaks amount tie",
			bids: []*model.Bid{
				activeBid("b1", "bk1", 42000, base.Add(5*time.Minute)),
				activeBid("b2", "bk1", 42000, base),
				activeBid("b3", "bk1", 42000, base.Add(time.Minute)),
			},
			expected: "b2",
		},
		{
			name: "non-active bids are ignored",
			bids: []*model.Bid{
				func() *model.Bid {
					b := activeBid("b1", "bk1", 30000, base)
					b.Status = model.BidStatusWithdrawn
					return b
				}(),
				activeBid("b2", "bk1", 42000, base),
			},
			expected: "b2",
		},
		{
			name: "expired bids are ignored",
			bids: []*model.Bid{
				func() *model.Bid {
					b := activeBid("b1", "bk1", 30000, base)
					expired := now.Add(-time.Minute)
					b.ExpiresAt = &expired
					return b
				}(),
				activeBid("b2", "bk1", 42000, base),
			},
			expected: "b2",
		},
		{
			name: "all bids ineligible",
			bids: []*model.Bid{
				func() *model.Bid {
					b := activeBid("b1", "bk1", 30000, base)
					b.Status = model.BidStatusExpired
					return b
				}(),
			},
			expected: "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			winner := lowestBid(tt.bids, now)
			if tt.expected == "" {
				if winner != nil {
					t.Fatalf("expected no winner, got %s", winner.ID)
				}
				return
			}
			if winner == nil {
				t.Fatalf("expected winner %s, got nil", tt.expected)
			}
			if winner.ID != tt.expected {
				t.Errorf("expected winner %s, got %s", tt.expected, winner.ID)
			}
		})
	}
}

func TestFinalizeSuccess(t *testing.T) {
	f := newTestFixture()
	booking := biddingBooking("bk1")
	base := time.Now().Add(-time.Hour)

	f.bids.findActiveFunc = func(ctx context.Context, bookingID string, now time.Time) ([]*model.Bid, error) {
		return []*model.Bid{
			activeBid("b2", "bk1", 42000, base),
			activeBid("b1", "bk1", 45000, base.Add(time.Minute)),
		}, nil
	}

	var assignedBid, acceptedBid, rejectedWinner string
	f.bookings.assignWinnerFunc = func(ctx context.Context, bookingID, bidID string) error {
		assignedBid = bidID
		return nil
	}
	f.bids.acceptFunc = func(ctx context.Context, bidID string) error {
		acceptedBid = bidID
		return nil
	}
	f.bids.rejectOthersFunc = func(ctx context.Context, bookingID, winningBidID string) error {
		rejectedWinner = winningBidID
		return nil
	}

	if err := f.svc.finalizeBooking(context.Background(), booking); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if assignedBid != "b2" {
		t.Errorf("expected winner b2 assigned, got %q", assignedBid)
	}
	if acceptedBid != "b2" {
		t.Errorf("expected bid b2 accepted, got %q", acceptedBid)
	}
	if rejectedWinner != "b2" {
		t.Errorf("expected losers rejected against winner b2, got %q", rejectedWinner)
	}
	if f.shipments.CreatedCount() != 1 {
		t.Errorf("expected exactly one shipment, got %d", f.shipments.CreatedCount())
	}

	shipment := f.shipments.created[0]
	if shipment.BookingID != "bk1" || shipment.BidID != "b2" || shipment.Amount != 42000 {
		t.Errorf("shipment not derived from winning bid: %+v", shipment)
	}
	if shipment.ID == "" {
		t.Error("shipment ID should be assigned before the transaction")
	}

	events := f.events.ByType(model.EventFinalized)
	if len(events) != 1 {
		t.Fatalf("expected one FINALIZED event, got %d", len(events))
	}
	if events[0].Payload["bid_id"] != "b2" {
		t.Errorf("FINALIZED event should carry the winning bid, got %v", events[0].Payload["bid_id"])
	}

	sent := f.notifier.Sent()
	if len(sent) != 2 {
		t.Fatalf("expected 2 notifications, got %d", len(sent))
	}
	if sent[0].UserID != "shipper-1" || sent[0].Type != notify.TypeBookingAssigned {
		t.Errorf("unexpected shipper notification: %+v", sent[0])
	}
	if sent[1].UserID != "operator-b2" || sent[1].Type != notify.TypeBidAccepted {
		t.Errorf("unexpected operator notification: %+v", sent[1])
	}
}

func TestFinalizeAlreadyFinalizedIsNoop(t *testing.T) {
	f := newTestFixture()
	booking := biddingBooking("bk1")

	f.bids.findActiveFunc = func(ctx context.Context, bookingID string, now time.Time) ([]*model.Bid, error) {
		return []*model.Bid{activeBid("b1", "bk1", 42000, time.Now())}, nil
	}
	f.bookings.assignWinnerFunc = func(ctx context.Context, bookingID, bidID string) error {
		return finalizererrors.ErrAlreadyFinalized
	}

	var accepted bool
	f.bids.acceptFunc = func(ctx context.Context, bidID string) error {
		accepted = true
		return nil
	}

	if err := f.svc.finalizeBooking(context.Background(), booking); err != nil {
		t.Fatalf("lost race should be a silent no-op, got %v", err)
	}
	if accepted {
		t.Error("no bid should be accepted after a lost race")
	}
	if f.shipments.CreatedCount() != 0 {
		t.Error("no shipment should be created after a lost race")
	}
	if len(f.events.appended) != 0 {
		t.Errorf("no events should be appended after a lost race, got %d", len(f.events.appended))
	}
	if len(f.notifier.Sent()) != 0 {
		t.Error("no notifications should be sent after a lost race")
	}
}

func TestFinalizeRollbackOnTransactionFailure(t *testing.T) {
	f := newTestFixture()
	booking := biddingBooking("bk1")
	boom := errors.New("write conflict")

	f.bids.findActiveFunc = func(ctx context.Context, bookingID string, now time.Time) ([]*model.Bid, error) {
		return []*model.Bid{activeBid("b1", "bk1", 42000, time.Now())}, nil
	}
	f.bids.acceptFunc = func(ctx context.Context, bidID string) error {
		return boom
	}

	err := f.svc.finalizeBooking(context.Background(), booking)
	if err == nil {
		t.Fatal("expected the transaction error to surface")
	}
	if f.shipments.CreatedCount() != 0 {
		t.Error("no shipment persists when the transaction fails")
	}
	if len(f.events.ByType(model.EventFinalized)) != 0 {
		t.Error("no FINALIZED event persists when the transaction fails")
	}
	if len(f.notifier.Sent()) != 0 {
		t.Error("no notification goes out for a failed transaction")
	}
}

func TestNoValidBidsTerminal(t *testing.T) {
	f := newTestFixture()
	f.svc.cfg.NoBidsTerminal = true
	booking := biddingBooking("bk1")

	var markedNoBids, extended bool
	f.bookings.markNoBidsFunc = func(ctx context.Context, bookingID string) error {
		markedNoBids = true
		return nil
	}
	f.bookings.extendDeadlineFunc = func(ctx context.Context, bookingID string, until time.Time) error {
		extended = true
		return nil
	}

	if err := f.svc.finalizeBooking(context.Background(), booking); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if !markedNoBids {
		t.Error("booking should be marked NO_BIDS under the terminal policy")
	}
	if extended {
		t.Error("deadline must not be extended under the terminal policy")
	}
	if f.shipments.CreatedCount() != 0 {
		t.Error("no shipment may be created on the no-bids path")
	}

	events := f.events.ByType(model.EventNoValidBids)
	if len(events) != 1 {
		t.Fatalf("expected one NO_VALID_BIDS event, got %d", len(events))
	}
	if events[0].Payload["terminal"] != true {
		t.Errorf("event should record the terminal policy, got %v", events[0].Payload["terminal"])
	}

	sent := f.notifier.Sent()
	if len(sent) != 1 || sent[0].Type != notify.TypeBookingNoBids {
		t.Errorf("expected one no-bids notification to the shipper, got %+v", sent)
	}
}

func TestNoValidBidsRepost(t *testing.T) {
	f := newTestFixture()
	f.svc.cfg.NoBidsTerminal = false
	f.svc.cfg.RebidWindow = 2 * time.Hour
	fixed := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	f.svc.now = func() time.Time { return fixed }
	booking := biddingBooking("bk1")

	var markedNoBids bool
	var extendedUntil time.Time
	f.bookings.markNoBidsFunc = func(ctx context.Context, bookingID string) error {
		markedNoBids = true
		return nil
	}
	f.bookings.extendDeadlineFunc = func(ctx context.Context, bookingID string, until time.Time) error {
		extendedUntil = until
		return nil
	}

	if err := f.svc.finalizeBooking(context.Background(), booking); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if markedNoBids {
		t.Error("booking must stay in BIDDING under the re-post policy")
	}
	want := fixed.Add(2 * time.Hour)
	if !extendedUntil.Equal(want) {
		t.Errorf("expected deadline extended to %v, got %v", want, extendedUntil)
	}

	events := f.events.ByType(model.EventNoValidBids)
	if len(events) != 1 {
		t.Fatalf("expected one NO_VALID_BIDS event, got %d", len(events))
	}
	if events[0].Payload["terminal"] != false {
		t.Errorf("event should record the re-post policy, got %v", events[0].Payload["terminal"])
	}
}

func TestNoValidBidsLostRaceIsNoop(t *testing.T) {
	f := newTestFixture()
	booking := biddingBooking("bk1")

	f.bookings.markNoBidsFunc = func(ctx context.Context, bookingID string) error {
		return finalizererrors.ErrAlreadyFinalized
	}

	if err := f.svc.finalizeBooking(context.Background(), booking); err != nil {
		t.Fatalf("lost no-bids race should be a silent no-op, got %v", err)
	}
	if len(f.notifier.Sent()) != 0 {
		t.Error("no notification should be sent after a lost race")
	}
}

func TestHandleErrorRecordsEvent(t *testing.T) {
	f := newTestFixture()
	booking := biddingBooking("bk1")

	f.svc.handleError(context.Background(), booking, errors.New("bid query timed out"))

	events := f.events.ByType(model.EventAutoFinalizeError)
	if len(events) != 1 {
		t.Fatalf("expected one AUTO_FINALIZE_ERROR event, got %d", len(events))
	}
	if events[0].Payload["error"] != "bid query timed out" {
		t.Errorf("event should carry the failure reason, got %v", events[0].Payload["error"])
	}
}

func TestHandleErrorSurvivesEventStoreFailure(t *testing.T) {
	f := newTestFixture()
	booking := biddingBooking("bk1")

	f.events.appendFunc = func(ctx context.Context, event *model.Event) error {
		return errors.New("events collection unavailable")
	}

	// Must not panic or propagate; the scheduler loop depends on it.
	f.svc.handleError(context.Background(), booking, errors.New("boom"))
}

func TestHandleErrorEscalatesToReview(t *testing.T) {
	f := newTestFixture()
	f.svc.cfg.MaxFinalizeFailures = 3
	booking := biddingBooking("bk1")

	failures := 0
	f.bookings.recordFailureFunc = func(ctx context.Context, bookingID string) (int, error) {
		failures++
		return failures, nil
	}

	var reviewed bool
	f.bookings.markReviewFunc = func(ctx context.Context, bookingID string) error {
		reviewed = true
		return nil
	}

	f.svc.handleError(context.Background(), booking, errors.New("boom"))
	f.svc.handleError(context.Background(), booking, errors.New("boom"))
	if reviewed {
		t.Fatal("booking escalated before reaching the failure threshold")
	}

	f.svc.handleError(context.Background(), booking, errors.New("boom"))
	if !reviewed {
		t.Error("booking should be parked for review at the failure threshold")
	}
}

func TestProcessBookingSkipsOnLockContention(t *testing.T) {
	f := newTestFixture()
	booking := biddingBooking("bk1")

	f.locks.acquireFunc = func(ctx context.Context, bookingID string, ttl time.Duration) (string, error) {
		return "", finalizererrors.ErrLockHeld
	}

	var queried bool
	f.bids.findActiveFunc = func(ctx context.Context, bookingID string, now time.Time) ([]*model.Bid, error) {
		queried = true
		return nil, nil
	}

	f.svc.processBooking(context.Background(), booking)

	if queried {
		t.Error("contended booking must be skipped without touching bids")
	}
	if len(f.events.appended) != 0 {
		t.Error("contention is not an error, no event expected")
	}
}

func TestProcessBookingReleasesLockOnFailure(t *testing.T) {
	f := newTestFixture()
	booking := biddingBooking("bk1")

	f.bids.findActiveFunc = func(ctx context.Context, bookingID string, now time.Time) ([]*model.Bid, error) {
		return nil, errors.New("network down")
	}

	f.svc.processBooking(context.Background(), booking)

	if len(f.locks.acquired) != 1 || len(f.locks.released) != 1 {
		t.Errorf("lock must be released even when finalization fails: acquired=%d released=%d",
			len(f.locks.acquired), len(f.locks.released))
	}
	if len(f.events.ByType(model.EventAutoFinalizeError)) != 1 {
		t.Error("failed finalization should record an error event")
	}
}

func TestTickIsolatesBookingFailures(t *testing.T) {
	f := newTestFixture()
	bookings := []*model.Booking{
		biddingBooking("bk1"),
		biddingBooking("bk2"),
		biddingBooking("bk3"),
	}
	f.bookings.findReadyFunc = func(ctx context.Context, now time.Time, limit int) ([]*model.Booking, error) {
		return bookings, nil
	}
	f.bids.findActiveFunc = func(ctx context.Context, bookingID string, now time.Time) ([]*model.Bid, error) {
		if bookingID == "bk2" {
			return nil, errors.New("cursor timeout")
		}
		return []*model.Bid{activeBid("b-"+bookingID, bookingID, 42000, time.Now())}, nil
	}

	f.svc.Tick(context.Background())

	if got := f.shipments.CreatedCount(); got != 2 {
		t.Errorf("healthy bookings should finalize despite a failing sibling: got %d shipments", got)
	}
	if len(f.events.ByType(model.EventAutoFinalizeError)) != 1 {
		t.Error("the failing booking should record exactly one error event")
	}
	if len(f.locks.acquired) != 3 || len(f.locks.released) != 3 {
		t.Errorf("every booking takes and releases its lock: acquired=%d released=%d",
			len(f.locks.acquired), len(f.locks.released))
	}
}
