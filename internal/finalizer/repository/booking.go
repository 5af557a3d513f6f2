package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	finalizererrors "haulbid/internal/finalizer/errors"
	"haulbid/pkg/config"
	mongotx "haulbid/pkg/db/mongo"
	"haulbid/pkg/model"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const (
	BookingCollectionName = "Bookings"
)

type BookingRepository interface {
	FindByID(ctx context.Context, id string) (*model.Booking, error)
	// FindReadyForFinalize returns up to limit bookings still in BIDDING
	// whose deadline has passed, oldest deadline first.
	FindReadyForFinalize(ctx context.Context, now time.Time, limit int) ([]*model.Booking, error)
	// AssignWinner conditionally moves the booking from BIDDING to
	// ASSIGNED. Returns ErrAlreadyFinalized when the booking is no
	// longer in BIDDING — the idempotency guard for duplicate holders.
	AssignWinner(ctx context.Context, bookingID, bidID string) error
	SetShipment(ctx context.Context, bookingID, shipmentID string) error
	// MarkNoBids conditionally moves the booking from BIDDING to NO_BIDS.
	MarkNoBids(ctx context.Context, bookingID string) error
	// ExtendDeadline pushes auto_finalize_at forward for the re-post
	// policy, only while the booking is still in BIDDING.
	ExtendDeadline(ctx context.Context, bookingID string, until time.Time) error
	// RecordFailure increments the consecutive-failure counter and
	// returns the new value.
	RecordFailure(ctx context.Context, bookingID string) (int, error)
	// MarkReview parks a repeatedly failing booking for manual triage.
	MarkReview(ctx context.Context, bookingID string) error
	ExecuteTransaction(ctx context.Context, fn mongotx.TransactionFunc) error
}

type mongoBookingRepository struct {
	cfg        *config.Config
	collection *mongo.Collection
	txManager  mongotx.TransactionManager
}

func NewMongoBookingRepository(cfg *config.Config) BookingRepository {
	db := cfg.Client.Mongo.Database(cfg.MongoDatabaseName)
	return &mongoBookingRepository{
		cfg:        cfg,
		collection: db.Collection(BookingCollectionName),
		txManager:  mongotx.NewTransactionManager(cfg.Client.Mongo),
	}
}

// withTimeout wraps the context with a timeout unless it already is a
// transaction SessionContext, which must not be wrapped.
func withTimeout(ctx context.Context, timeout time.Duration) (context.Context, context.CancelFunc) {
	if _, ok := ctx.(mongo.SessionContext); ok {
		return ctx, func() {}
	}

	deadline, hasDeadline := ctx.Deadline()
	if hasDeadline {
		if remaining := time.Until(deadline); remaining < timeout {
			return context.WithTimeout(ctx, remaining)
		}
	}

	return context.WithTimeout(ctx, timeout)
}

func objectIDFromHex(id string) (primitive.ObjectID, error) {
	objectID, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return primitive.NilObjectID, fmt.Errorf("%w: %s", finalizererrors.ErrInvalidID, id)
	}
	return objectID, nil
}

func (r *mongoBookingRepository) FindByID(ctx context.Context, id string) (*model.Booking, error) {
	ctx, cancel := withTimeout(ctx, r.cfg.ReadTimeout)
	defer cancel()

	objectID, err := objectIDFromHex(id)
	if err != nil {
		return nil, err
	}

	var booking model.Booking
	err = r.collection.FindOne(ctx, bson.M{"_id": objectID}).Decode(&booking)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, finalizererrors.ErrNotFound
		}
		return nil, fmt.Errorf("failed to find booking: %w", err)
	}

	return &booking, nil
}

func (r *mongoBookingRepository) FindReadyForFinalize(ctx context.Context, now time.Time, limit int) ([]*model.Booking, error) {
	ctx, cancel := withTimeout(ctx, r.cfg.ReadTimeout)
	defer cancel()

	filter := bson.M{
		"status":           model.BookingStatusBidding,
		"auto_finalize_at": bson.M{"$lte": now},
	}
	// Oldest deadline first bounds worst-case staleness.
	opts := options.Find().
		SetSort(bson.D{{Key: "auto_finalize_at", Value: 1}}).
		SetLimit(int64(limit))

	cursor, err := r.collection.Find(ctx, filter, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to find ready bookings: %w", err)
	}
	defer cursor.Close(ctx)

	var bookings []*model.Booking
	if err = cursor.All(ctx, &bookings); err != nil {
		return nil, fmt.Errorf("failed to decode ready bookings: %w", err)
	}

	return bookings, nil
}

func (r *mongoBookingRepository) AssignWinner(ctx context.Context, bookingID, bidID string) error {
	ctx, cancel := withTimeout(ctx, r.cfg.WriteTimeout)
	defer cancel()

	objectID, err := objectIDFromHex(bookingID)
	if err != nil {
		return err
	}

	filter := bson.M{
		"_id":    objectID,
		"status": model.BookingStatusBidding,
	}
	update := bson.M{
		"$set": bson.M{
			"status":         model.BookingStatusAssigned,
			"winning_bid_id": bidID,
			"updated_at":     time.Now().UTC(),
		},
	}

	result, err := r.collection.UpdateOne(ctx, filter, update)
	if err != nil {
		return fmt.Errorf("failed to assign winner: %w", err)
	}
	if result.MatchedCount == 0 {
		return finalizererrors.ErrAlreadyFinalized
	}

	return nil
}

func (r *mongoBookingRepository) SetShipment(ctx context.Context, bookingID, shipmentID string) error {
	ctx, cancel := withTimeout(ctx, r.cfg.WriteTimeout)
	defer cancel()

	objectID, err := objectIDFromHex(bookingID)
	if err != nil {
		return err
	}

	update := bson.M{
		"$set": bson.M{
			"shipment_id": shipmentID,
			"updated_at":  time.Now().UTC(),
		},
	}

	result, err := r.collection.UpdateOne(ctx, bson.M{"_id": objectID}, update)
	if err != nil {
		return fmt.Errorf("failed to set shipment reference: %w", err)
	}
	if result.MatchedCount == 0 {
		return finalizererrors.ErrNotFound
	}

	return nil
}

func (r *mongoBookingRepository) MarkNoBids(ctx context.Context, bookingID string) error {
	ctx, cancel := withTimeout(ctx, r.cfg.WriteTimeout)
	defer cancel()

	objectID, err := objectIDFromHex(bookingID)
	if err != nil {
		return err
	}

	filter := bson.M{
		"_id":    objectID,
		"status": model.BookingStatusBidding,
	}
	update := bson.M{
		"$set": bson.M{
			"status":     model.BookingStatusNoBids,
			"updated_at": time.Now().UTC(),
		},
	}

	result, err := r.collection.UpdateOne(ctx, filter, update)
	if err != nil {
		return fmt.Errorf("failed to mark booking no-bids: %w", err)
	}
	if result.MatchedCount == 0 {
		return finalizererrors.ErrAlreadyFinalized
	}

	return nil
}

func (r *mongoBookingRepository) ExtendDeadline(ctx context.Context, bookingID string, until time.Time) error {
	ctx, cancel := withTimeout(ctx, r.cfg.WriteTimeout)
	defer cancel()

	objectID, err := objectIDFromHex(bookingID)
	if err != nil {
		return err
	}

	filter := bson.M{
		"_id":    objectID,
		"status": model.BookingStatusBidding,
	}
	update := bson.M{
		"$set": bson.M{
			"auto_finalize_at": until,
			"updated_at":       time.Now().UTC(),
		},
	}

	result, err := r.collection.UpdateOne(ctx, filter, update)
	if err != nil {
		return fmt.Errorf("failed to extend booking deadline: %w", err)
	}
	if result.MatchedCount == 0 {
		return finalizererrors.ErrAlreadyFinalized
	}

	return nil
}

func (r *mongoBookingRepository) RecordFailure(ctx context.Context, bookingID string) (int, error) {
	ctx, cancel := withTimeout(ctx, r.cfg.WriteTimeout)
	defer cancel()

	objectID, err := objectIDFromHex(bookingID)
	if err != nil {
		return 0, err
	}

	update := bson.M{
		"$inc": bson.M{"finalize_failures": 1},
		"$set": bson.M{"updated_at": time.Now().UTC()},
	}
	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)

	var booking model.Booking
	err = r.collection.FindOneAndUpdate(ctx, bson.M{"_id": objectID}, update, opts).Decode(&booking)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return 0, finalizererrors.ErrNotFound
		}
		return 0, fmt.Errorf("failed to record finalize failure: %w", err)
	}

	return booking.FinalizeFailures, nil
}

func (r *mongoBookingRepository) MarkReview(ctx context.Context, bookingID string) error {
	ctx, cancel := withTimeout(ctx, r.cfg.WriteTimeout)
	defer cancel()

	objectID, err := objectIDFromHex(bookingID)
	if err != nil {
		return err
	}

	filter := bson.M{
		"_id":    objectID,
		"status": model.BookingStatusBidding,
	}
	update := bson.M{
		"$set": bson.M{
			"status":     model.BookingStatusReview,
			"updated_at": time.Now().UTC(),
		},
	}

	if _, err := r.collection.UpdateOne(ctx, filter, update); err != nil {
		return fmt.Errorf("failed to mark booking for review: %w", err)
	}

	return nil
}

func (r *mongoBookingRepository) ExecuteTransaction(ctx context.Context, fn mongotx.TransactionFunc) error {
	return r.txManager.ExecuteTransaction(ctx, fn)
}
