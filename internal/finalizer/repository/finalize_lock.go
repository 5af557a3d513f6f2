package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	finalizererrors "haulbid/internal/finalizer/errors"
	"haulbid/pkg/config"
	"haulbid/pkg/model"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
)

const (
	LockCollectionName = "Finalize_locks"

	lockKeyPrefix = "auto-finalize:"
)

// FinalizeLockRepository provides the per-booking advisory lock for
// finalization. Acquisition is an insert on a unique _id; release is a
// compare-and-delete on the holder token, so a worker whose lock
// expired and was re-acquired elsewhere can never release the new
// holder's lock.
type FinalizeLockRepository interface {
	Acquire(ctx context.Context, bookingID string, ttl time.Duration) (string, error)
	Release(ctx context.Context, bookingID, token string) error
}

type mongoFinalizeLockRepository struct {
	cfg        *config.Config
	collection *mongo.Collection
}

func NewMongoFinalizeLockRepository(cfg *config.Config) FinalizeLockRepository {
	db := cfg.Client.Mongo.Database(cfg.MongoDatabaseName)
	return &mongoFinalizeLockRepository{
		cfg:        cfg,
		collection: db.Collection(LockCollectionName),
	}
}

func LockKey(bookingID string) string {
	return lockKeyPrefix + bookingID
}

// Acquire inserts a fresh lock document and returns its holder token.
// A duplicate key means another holder exists: if that holder's TTL has
// passed the lock is taken over with a conditional replace, otherwise
// ErrLockHeld is returned and the caller skips the booking this tick.
func (r *mongoFinalizeLockRepository) Acquire(ctx context.Context, bookingID string, ttl time.Duration) (string, error) {
	ctx, cancel := withTimeout(ctx, r.cfg.WriteTimeout)
	defer cancel()

	now := time.Now().UTC()
	lock := &model.FinalizeLock{
		ID:        LockKey(bookingID),
		Token:     uuid.New().String(),
		ExpiresAt: now.Add(ttl),
		CreatedAt: now,
	}

	_, err := r.collection.InsertOne(ctx, lock)
	if err == nil {
		return lock.Token, nil
	}
	if !mongo.IsDuplicateKeyError(err) {
		return "", fmt.Errorf("failed to acquire finalize lock: %w", err)
	}

	return r.takeOverExpired(ctx, lock, now)
}

// takeOverExpired replaces a lock whose TTL has lapsed. The filter pins
// the stale document's token, so two workers racing for the same
// expired lock cannot both win.
func (r *mongoFinalizeLockRepository) takeOverExpired(ctx context.Context, lock *model.FinalizeLock, now time.Time) (string, error) {
	var current model.FinalizeLock
	err := r.collection.FindOne(ctx, bson.M{"_id": lock.ID}).Decode(&current)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			// Holder released between our insert and read. Treat as
			// contended; the next tick retries cleanly.
			return "", finalizererrors.ErrLockHeld
		}
		return "", fmt.Errorf("failed to inspect finalize lock: %w", err)
	}

	if current.ExpiresAt.After(now) {
		return "", finalizererrors.ErrLockHeld
	}

	filter := bson.M{
		"_id":   lock.ID,
		"token": current.Token,
	}
	result, err := r.collection.ReplaceOne(ctx, filter, lock)
	if err != nil {
		return "", fmt.Errorf("failed to take over expired finalize lock: %w", err)
	}
	if result.MatchedCount == 0 {
		return "", finalizererrors.ErrLockHeld
	}

	return lock.Token, nil
}

// Release deletes the lock only while this holder's token is still
// stored. A zero-delete is not an error: the lock expired and was
// claimed by someone else, and the booking-status guard protects
// correctness regardless.
func (r *mongoFinalizeLockRepository) Release(ctx context.Context, bookingID, token string) error {
	ctx, cancel := withTimeout(ctx, r.cfg.WriteTimeout)
	defer cancel()

	filter := bson.M{
		"_id":   LockKey(bookingID),
		"token": token,
	}
	if _, err := r.collection.DeleteOne(ctx, filter); err != nil {
		return fmt.Errorf("failed to release finalize lock: %w", err)
	}

	return nil
}
