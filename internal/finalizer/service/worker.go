package service

import (
	"context"
	"sync"
	"time"

	"haulbid/internal/finalizer/notify"
	"haulbid/internal/finalizer/repository"
	"haulbid/internal/finalizer/validator"
	"haulbid/pkg/config"
	"haulbid/pkg/metrics"
	"haulbid/pkg/model"
)

// FinalizerService is the auto-finalization worker: a recurring
// scheduler that closes expired auctions. Start and Stop are idempotent
// and safe to call from any goroutine. Multiple instances may run
// concurrently across processes; the per-booking lock keeps them from
// duplicating work and the conditional booking update keeps them
// correct even when the lock fails them.
type FinalizerService interface {
	Start()
	Stop()
	Running() bool
	// Tick runs one scheduler pass. Exposed for operational triggers and
	// tests; Start drives it on the configured interval.
	Tick(ctx context.Context)
}

type finalizerService struct {
	cfg       *config.Config
	bookings  repository.BookingRepository
	bids      repository.BidRepository
	shipments repository.ShipmentRepository
	events    repository.EventRepository
	locks     repository.FinalizeLockRepository
	validator *validator.Validator
	notifier  notify.Notifier
	metrics   *metrics.Metrics

	// now is the clock; tests swap it out.
	now func() time.Time

	mu      sync.Mutex
	running bool
	stop    chan struct{}
	wg      sync.WaitGroup
}

func NewFinalizerService(
	cfg *config.Config,
	bookings repository.BookingRepository,
	bids repository.BidRepository,
	shipments repository.ShipmentRepository,
	events repository.EventRepository,
	locks repository.FinalizeLockRepository,
	shipmentValidator *validator.Validator,
	notifier notify.Notifier,
	m *metrics.Metrics,
) FinalizerService {
	return &finalizerService{
		cfg:       cfg,
		bookings:  bookings,
		bids:      bids,
		shipments: shipments,
		events:    events,
		locks:     locks,
		validator: shipmentValidator,
		notifier:  notifier,
		metrics:   m,
		now:       time.Now,
	}
}

// Start launches the scheduler goroutine. Calling Start on a running
// worker is a no-op.
func (s *finalizerService) Start() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.running {
		return
	}
	s.running = true
	s.stop = make(chan struct{})
	s.wg.Add(1)
	go s.run(s.stop)

	s.cfg.Log.Info("Finalizer worker started",
		"interval", s.cfg.FinalizeInterval,
		"batch_size", s.cfg.FinalizeBatchSize,
		"lock_ttl", s.cfg.FinalizeLockTTL,
	)
}

// Stop cancels the recurring timer and waits for the in-flight tick to
// finish. Per-booking work is never cut off mid-transaction. Safe to
// call on a stopped worker.
func (s *finalizerService) Stop() {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return
	}
	s.running = false
	stop := s.stop
	s.mu.Unlock()

	close(stop)
	s.wg.Wait()

	s.cfg.Log.Info("Finalizer worker stopped")
}

func (s *finalizerService) Running() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running
}

func (s *finalizerService) run(stop <-chan struct{}) {
	defer s.wg.Done()

	ticker := time.NewTicker(s.cfg.FinalizeInterval)
	defer ticker.Stop()

	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			s.Tick(context.Background())
		}
	}
}

// Tick queries ready bookings and processes each one independently.
// A failing query aborts only this tick; an empty batch is silent.
func (s *finalizerService) Tick(ctx context.Context) {
	start := time.Now()
	defer func() {
		s.metrics.TickDuration.Observe(time.Since(start).Seconds())
	}()

	bookings, err := s.bookings.FindReadyForFinalize(ctx, s.now(), s.cfg.FinalizeBatchSize)
	if err != nil {
		s.cfg.Log.Error("Failed to query bookings ready for finalization", "error", err)
		return
	}
	if len(bookings) == 0 {
		return
	}

	s.cfg.Log.Debug("Processing expired auctions", "count", len(bookings))
	for _, booking := range bookings {
		s.processBooking(ctx, booking)
	}
}

// processBooking wraps one booking's finalization in the advisory lock.
// Contention means another worker is on it: skip without error. Every
// failure is converted into an event by handleError; nothing escapes to
// the scheduler loop.
func (s *finalizerService) processBooking(ctx context.Context, booking *model.Booking) {
	token, err := s.locks.Acquire(ctx, booking.ID, s.cfg.FinalizeLockTTL)
	if err != nil {
		if errorsIsLockHeld(err) {
			s.metrics.LockContention.Inc()
			s.cfg.Log.Debug("Finalize lock contended, skipping booking", "id", booking.ID)
			return
		}
		s.cfg.Log.Error("Failed to acquire finalize lock", "id", booking.ID, "error", err)
		return
	}
	defer func() {
		if releaseErr := s.locks.Release(ctx, booking.ID, token); releaseErr != nil {
			s.cfg.Log.Warn("Failed to release finalize lock", "id", booking.ID, "error", releaseErr)
		}
	}()

	if err := s.finalizeBooking(ctx, booking); err != nil {
		s.handleError(ctx, booking, err)
	}
}
