package repository

import (
	"context"
	"fmt"
	"time"

	"haulbid/pkg/config"
	"haulbid/pkg/model"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const (
	BidCollectionName = "Bids"
)

// Bid documents use ObjectID _ids and booking_id references, same as
// the bookings collection. The driver decodes them to hex strings in
// model.Bid; every filter here converts back through objectIDFromHex so
// a string is never compared against an ObjectID.
type BidRepository interface {
	// FindActiveByBooking returns the booking's ACTIVE, non-expired bids
	// sorted by amount ascending, then created_at ascending. The sort is
	// explicit: the tie-break must never rely on storage order.
	FindActiveByBooking(ctx context.Context, bookingID string, now time.Time) ([]*model.Bid, error)
	Accept(ctx context.Context, bidID string) error
	// RejectOthers marks every other ACTIVE bid on the booking REJECTED.
	RejectOthers(ctx context.Context, bookingID, winningBidID string) error
}

type mongoBidRepository struct {
	cfg        *config.Config
	collection *mongo.Collection
}

func NewMongoBidRepository(cfg *config.Config) BidRepository {
	db := cfg.Client.Mongo.Database(cfg.MongoDatabaseName)
	return &mongoBidRepository{
		cfg:        cfg,
		collection: db.Collection(BidCollectionName),
	}
}

func activeBidsFilter(bookingID string, now time.Time) (bson.M, error) {
	bookingObjectID, err := objectIDFromHex(bookingID)
	if err != nil {
		return nil, err
	}

	return bson.M{
		"booking_id": bookingObjectID,
		"status":     model.BidStatusActive,
		"$or": []bson.M{
			{"expires_at": bson.M{"$exists": false}},
			{"expires_at": nil},
			{"expires_at": bson.M{"$gt": now}},
		},
	}, nil
}

func bidIDFilter(bidID string) (bson.M, error) {
	bidObjectID, err := objectIDFromHex(bidID)
	if err != nil {
		return nil, err
	}
	return bson.M{"_id": bidObjectID}, nil
}

func losingBidsFilter(bookingID, winningBidID string) (bson.M, error) {
	bookingObjectID, err := objectIDFromHex(bookingID)
	if err != nil {
		return nil, err
	}
	winnerObjectID, err := objectIDFromHex(winningBidID)
	if err != nil {
		return nil, err
	}

	return bson.M{
		"booking_id": bookingObjectID,
		"status":     model.BidStatusActive,
		"_id":        bson.M{"$ne": winnerObjectID},
	}, nil
}

func (r *mongoBidRepository) FindActiveByBooking(ctx context.Context, bookingID string, now time.Time) ([]*model.Bid, error) {
	ctx, cancel := withTimeout(ctx, r.cfg.ReadTimeout)
	defer cancel()

	filter, err := activeBidsFilter(bookingID, now)
	if err != nil {
		return nil, err
	}
	opts := options.Find().SetSort(bson.D{
		{Key: "amount", Value: 1},
		{Key: "created_at", Value: 1},
	})

	cursor, err := r.collection.Find(ctx, filter, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to find active bids: %w", err)
	}
	defer cursor.Close(ctx)

	var bids []*model.Bid
	if err = cursor.All(ctx, &bids); err != nil {
		return nil, fmt.Errorf("failed to decode active bids: %w", err)
	}

	return bids, nil
}

func (r *mongoBidRepository) Accept(ctx context.Context, bidID string) error {
	ctx, cancel := withTimeout(ctx, r.cfg.WriteTimeout)
	defer cancel()

	filter, err := bidIDFilter(bidID)
	if err != nil {
		return err
	}
	update := bson.M{
		"$set": bson.M{"status": model.BidStatusAccepted},
	}

	result, err := r.collection.UpdateOne(ctx, filter, update)
	if err != nil {
		return fmt.Errorf("failed to accept bid: %w", err)
	}
	if result.MatchedCount == 0 {
		return fmt.Errorf("bid %s not found", bidID)
	}

	return nil
}

func (r *mongoBidRepository) RejectOthers(ctx context.Context, bookingID, winningBidID string) error {
	ctx, cancel := withTimeout(ctx, r.cfg.WriteTimeout)
	defer cancel()

	filter, err := losingBidsFilter(bookingID, winningBidID)
	if err != nil {
		return err
	}
	update := bson.M{
		"$set": bson.M{"status": model.BidStatusRejected},
	}

	if _, err := r.collection.UpdateMany(ctx, filter, update); err != nil {
		return fmt.Errorf("failed to reject losing bids: %w", err)
	}

	return nil
}
