package notify

import (
	"context"
	"time"

	"haulbid/pkg/kafka"
	"haulbid/pkg/logger"
)

// Notification types published by the finalizer.
const (
	TypeBookingAssigned = "BOOKING_ASSIGNED"
	TypeBidAccepted     = "BID_ACCEPTED"
	TypeBookingNoBids   = "BOOKING_NO_BIDS"
)

const publishTimeout = 5 * time.Second

// Notifier dispatches user-facing notifications. Delivery is
// best-effort and never participates in the finalization transaction: a
// failed publish is logged and dropped.
type Notifier interface {
	Notify(ctx context.Context, userID, notificationType string, payload map[string]any)
}

type kafkaNotifier struct {
	producer *kafka.Producer
	source   string
	log      *logger.Logger
}

func NewKafkaNotifier(producer *kafka.Producer, source string, log *logger.Logger) Notifier {
	return &kafkaNotifier{
		producer: producer,
		source:   source,
		log:      log,
	}
}

func (n *kafkaNotifier) Notify(ctx context.Context, userID, notificationType string, payload map[string]any) {
	// Detach from the caller's cancellation: an aborted tick must not
	// cut off a notification for work already committed.
	publishCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), publishTimeout)
	defer cancel()

	msg := kafka.NewMessage().
		WithKey(userID).
		WithEventType(notificationType).
		WithSource(n.source).
		WithValue(map[string]any{
			"user_id": userID,
			"type":    notificationType,
			"payload": payload,
		}).
		Build()

	if err := n.producer.Publish(publishCtx, msg); err != nil {
		n.log.Warn("Failed to dispatch notification",
			"user_id", userID,
			"type", notificationType,
			"error", err,
		)
	}
}
