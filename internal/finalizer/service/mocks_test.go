package service

import (
	"context"
	"io"
	"sync"
	"time"

	"haulbid/internal/finalizer/notify"
	"haulbid/internal/finalizer/validator"
	"haulbid/pkg/config"
	mongotx "haulbid/pkg/db/mongo"
	"haulbid/pkg/logger"
	"haulbid/pkg/metrics"
	"haulbid/pkg/model"

	"github.com/prometheus/client_golang/prometheus"
)

// ────────────────────────────────────────────────
// Mock repositories for testing
// ────────────────────────────────────────────────

type mockBookingRepository struct {
	findByIDFunc       func(ctx context.Context, id string) (*model.Booking, error)
	findReadyFunc      func(ctx context.Context, now time.Time, limit int) ([]*model.Booking, error)
	assignWinnerFunc   func(ctx context.Context, bookingID, bidID string) error
	setShipmentFunc    func(ctx context.Context, bookingID, shipmentID string) error
	markNoBidsFunc     func(ctx context.Context, bookingID string) error
	extendDeadlineFunc func(ctx context.Context, bookingID string, until time.Time) error
	recordFailureFunc  func(ctx context.Context, bookingID string) (int, error)
	markReviewFunc     func(ctx context.Context, bookingID string) error
	executeTxFunc      func(ctx context.Context, fn mongotx.TransactionFunc) error
}

func (m *mockBookingRepository) FindByID(ctx context.Context, id string) (*model.Booking, error) {
	if m.findByIDFunc != nil {
		return m.findByIDFunc(ctx, id)
	}
	return nil, nil
}

func (m *mockBookingRepository) FindReadyForFinalize(ctx context.Context, now time.Time, limit int) ([]*model.Booking, error) {
	if m.findReadyFunc != nil {
		return m.findReadyFunc(ctx, now, limit)
	}
	return []*model.Booking{}, nil
}

func (m *mockBookingRepository) AssignWinner(ctx context.Context, bookingID, bidID string) error {
	if m.assignWinnerFunc != nil {
		return m.assignWinnerFunc(ctx, bookingID, bidID)
	}
	return nil
}

func (m *mockBookingRepository) SetShipment(ctx context.Context, bookingID, shipmentID string) error {
	if m.setShipmentFunc != nil {
		return m.setShipmentFunc(ctx, bookingID, shipmentID)
	}
	return nil
}

func (m *mockBookingRepository) MarkNoBids(ctx context.Context, bookingID string) error {
	if m.markNoBidsFunc != nil {
		return m.markNoBidsFunc(ctx, bookingID)
	}
	return nil
}

func (m *mockBookingRepository) ExtendDeadline(ctx context.Context, bookingID string, until time.Time) error {
	if m.extendDeadlineFunc != nil {
		return m.extendDeadlineFunc(ctx, bookingID, until)
	}
	return nil
}

func (m *mockBookingRepository) RecordFailure(ctx context.Context, bookingID string) (int, error) {
	if m.recordFailureFunc != nil {
		return m.recordFailureFunc(ctx, bookingID)
	}
	return 1, nil
}

func (m *mockBookingRepository) MarkReview(ctx context.Context, bookingID string) error {
	if m.markReviewFunc != nil {
		return m.markReviewFunc(ctx, bookingID)
	}
	return nil
}

// ExecuteTransaction runs the function directly by default; a test can
// replace it to inject commit failures.
func (m *mockBookingRepository) ExecuteTransaction(ctx context.Context, fn mongotx.TransactionFunc) error {
	if m.executeTxFunc != nil {
		return m.executeTxFunc(ctx, fn)
	}
	return fn(nil)
}

type mockBidRepository struct {
	findActiveFunc   func(ctx context.Context, bookingID string, now time.Time) ([]*model.Bid, error)
	acceptFunc       func(ctx context.Context, bidID string) error
	rejectOthersFunc func(ctx context.Context, bookingID, winningBidID string) error
}

func (m *mockBidRepository) FindActiveByBooking(ctx context.Context, bookingID string, now time.Time) ([]*model.Bid, error) {
	if m.findActiveFunc != nil {
		return m.findActiveFunc(ctx, bookingID, now)
	}
	return []*model.Bid{}, nil
}

func (m *mockBidRepository) Accept(ctx context.Context, bidID string) error {
	if m.acceptFunc != nil {
		return m.acceptFunc(ctx, bidID)
	}
	return nil
}

func (m *mockBidRepository) RejectOthers(ctx context.Context, bookingID, winningBidID string) error {
	if m.rejectOthersFunc != nil {
		return m.rejectOthersFunc(ctx, bookingID, winningBidID)
	}
	return nil
}

type mockShipmentRepository struct {
	mu      sync.Mutex
	created []*model.Shipment

	createFunc func(ctx context.Context, shipment *model.Shipment) error
}

func (m *mockShipmentRepository) Create(ctx context.Context, shipment *model.Shipment) error {
	if m.createFunc != nil {
		return m.createFunc(ctx, shipment)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.created = append(m.created, shipment)
	return nil
}

func (m *mockShipmentRepository) FindByBooking(ctx context.Context, bookingID string) (*model.Shipment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, s := range m.created {
		if s.BookingID == bookingID {
			return s, nil
		}
	}
	return nil, nil
}

func (m *mockShipmentRepository) CreatedCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.created)
}

type mockEventRepository struct {
	mu       sync.Mutex
	appended []*model.Event

	appendFunc func(ctx context.Context, event *model.Event) error
}

func (m *mockEventRepository) Append(ctx context.Context, event *model.Event) error {
	if m.appendFunc != nil {
		return m.appendFunc(ctx, event)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.appended = append(m.appended, event)
	return nil
}

func (m *mockEventRepository) FindByBooking(ctx context.Context, bookingID string) ([]*model.Event, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var events []*model.Event
	for _, e := range m.appended {
		if e.BookingID == bookingID {
			events = append(events, e)
		}
	}
	return events, nil
}

func (m *mockEventRepository) ByType(eventType string) []*model.Event {
	m.mu.Lock()
	defer m.mu.Unlock()
	var events []*model.Event
	for _, e := range m.appended {
		if e.Type == eventType {
			events = append(events, e)
		}
	}
	return events
}

type mockLockRepository struct {
	mu       sync.Mutex
	acquired []string
	released []string

	acquireFunc func(ctx context.Context, bookingID string, ttl time.Duration) (string, error)
	releaseFunc func(ctx context.Context, bookingID, token string) error
}

func (m *mockLockRepository) Acquire(ctx context.Context, bookingID string, ttl time.Duration) (string, error) {
	if m.acquireFunc != nil {
		return m.acquireFunc(ctx, bookingID, ttl)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.acquired = append(m.acquired, bookingID)
	return "token-" + bookingID, nil
}

func (m *mockLockRepository) Release(ctx context.Context, bookingID, token string) error {
	if m.releaseFunc != nil {
		return m.releaseFunc(ctx, bookingID, token)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.released = append(m.released, bookingID)
	return nil
}

type notification struct {
	UserID  string
	Type    string
	Payload map[string]any
}

type mockNotifier struct {
	mu   sync.Mutex
	sent []notification
}

func (m *mockNotifier) Notify(ctx context.Context, userID, notificationType string, payload map[string]any) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sent = append(m.sent, notification{UserID: userID, Type: notificationType, Payload: payload})
}

func (m *mockNotifier) Sent() []notification {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]notification{}, m.sent...)
}

// ────────────────────────────────────────────────
// Test fixture
// ────────────────────────────────────────────────

type testFixture struct {
	svc       *finalizerService
	bookings  *mockBookingRepository
	bids      *mockBidRepository
	shipments *mockShipmentRepository
	events    *mockEventRepository
	locks     *mockLockRepository
	notifier  *mockNotifier
	metrics   *metrics.Metrics
}

func newTestFixture() *testFixture {
	log := logger.New(logger.Config{
		Level:   logger.ERROR,
		Format:  logger.JSON,
		Output:  io.Discard,
		Service: "test",
	})

	cfg := &config.Config{
		FinalizeInterval:    10 * time.Millisecond,
		FinalizeLockTTL:     time.Second,
		FinalizeBatchSize:   50,
		NoBidsTerminal:      true,
		RebidWindow:         time.Hour,
		MaxFinalizeFailures: 3,
		ReadTimeout:         time.Second,
		WriteTimeout:        time.Second,
		Log:                 log,
	}

	f := &testFixture{
		bookings:  &mockBookingRepository{},
		bids:      &mockBidRepository{},
		shipments: &mockShipmentRepository{},
		events:    &mockEventRepository{},
		locks:     &mockLockRepository{},
		notifier:  &mockNotifier{},
		metrics:   metrics.NewMetricsWith(prometheus.NewRegistry(), "test"),
	}
	f.svc = &finalizerService{
		cfg:       cfg,
		bookings:  f.bookings,
		bids:      f.bids,
		shipments: f.shipments,
		events:    f.events,
		locks:     f.locks,
		validator: validator.NewValidator(log),
		notifier:  f.notifier,
		metrics:   f.metrics,
		now:       time.Now,
	}
	return f
}

func biddingBooking(id string) *model.Booking {
	return &model.Booking{
		ID:             id,
		ShipperID:      "shipper-1",
		PickupLocation: "Pune",
		DropLocation:   "Nagpur",
		Status:         model.BookingStatusBidding,
		AutoFinalizeAt: time.Now().Add(-time.Minute),
		CreatedAt:      time.Now().Add(-24 * time.Hour),
	}
}

func activeBid(id, bookingID string, amount int64, createdAt time.Time) *model.Bid {
	return &model.Bid{
		ID:         id,
		BookingID:  bookingID,
		OperatorID: "operator-" + id,
		TruckID:    "truck-" + id,
		DriverID:   "driver-" + id,
		Amount:     amount,
		Status:     model.BidStatusActive,
		CreatedAt:  createdAt,
	}
}

var _ notify.Notifier = (*mockNotifier)(nil)
