package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"haulbid/pkg/config"
	"haulbid/pkg/model"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
)

const (
	ShipmentCollectionName = "Shipments"
)

type ShipmentRepository interface {
	Create(ctx context.Context, shipment *model.Shipment) error
	FindByBooking(ctx context.Context, bookingID string) (*model.Shipment, error)
}

type mongoShipmentRepository struct {
	cfg        *config.Config
	collection *mongo.Collection
}

func NewMongoShipmentRepository(cfg *config.Config) ShipmentRepository {
	db := cfg.Client.Mongo.Database(cfg.MongoDatabaseName)
	return &mongoShipmentRepository{
		cfg:        cfg,
		collection: db.Collection(ShipmentCollectionName),
	}
}

func (r *mongoShipmentRepository) Create(ctx context.Context, shipment *model.Shipment) error {
	ctx, cancel := withTimeout(ctx, r.cfg.WriteTimeout)
	defer cancel()

	if shipment.ID == "" {
		shipment.ID = uuid.New().String()
	}
	shipment.CreatedAt = time.Now().UTC().Truncate(time.Millisecond)

	if _, err := r.collection.InsertOne(ctx, shipment); err != nil {
		return fmt.Errorf("failed to create shipment: %w", err)
	}

	return nil
}

func (r *mongoShipmentRepository) FindByBooking(ctx context.Context, bookingID string) (*model.Shipment, error) {
	ctx, cancel := withTimeout(ctx, r.cfg.ReadTimeout)
	defer cancel()

	var shipment model.Shipment
	err := r.collection.FindOne(ctx, bson.M{"booking_id": bookingID}).Decode(&shipment)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to find shipment: %w", err)
	}

	return &shipment, nil
}
