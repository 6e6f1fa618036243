package service

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"

	"poshub-api/domain"
)

// Store abstracts order persistence for the lifecycle manager.
type Store interface {
	Create(ctx context.Context, order domain.Order) error
	Get(ctx context.Context, id string) (domain.Order, error)
	List(ctx context.Context) ([]domain.Order, error)
}

// Queue submits created orders for downstream processing.
type Queue interface {
	Send(ctx context.Context, order domain.Order) (string, error)
}

// Orders owns the order lifecycle: it mints identifiers, attributes
// authorship, persists the record and hands it to the outbound queue.
type Orders struct {
	store  Store
	queue  Queue
	logger *log.Logger
}

// NewOrders creates the order service. queue may be nil when no outbound
// queue is configured.
func NewOrders(store Store, queue Queue, logger *log.Logger) *Orders {
	if store == nil {
		panic("store is required")
	}
	if logger == nil {
		panic("logger is required")
	}
	return &Orders{store: store, queue: queue, logger: logger}
}

// Create builds and persists an order from already-validated input. The store
// write and the queue submission are separate side effects: when the queue
// send fails the order stays stored and the error wraps ErrQueuePublish.
func (s *Orders) Create(ctx context.Context, in domain.OrderInput, claims *domain.Claims) (domain.Order, error) {
	order := domain.Order{
		ID:        uuid.NewString(),
		Name:      in.Name,
		Amount:    in.Amount,
		Currency:  in.Currency,
		CreatedAt: time.Now().UTC(),
	}
	if claims != nil {
		order.CreatedBy = claims.Subject
	}

	if err := s.store.Create(ctx, order); err != nil {
		return domain.Order{}, err
	}

	fields := log.Fields{"order_id": order.ID}
	if order.CreatedBy != "" {
		fields["created_by"] = order.CreatedBy
	}

	if s.queue != nil {
		msgID, err := s.queue.Send(ctx, order)
		if err != nil {
			s.logger.WithFields(fields).WithError(err).Error("orders queue send failed")
			return order, fmt.Errorf("%w: %v", domain.ErrQueuePublish, err)
		}
		fields["queue_message_id"] = msgID
	}

	s.logger.WithFields(fields).Info("order created")
	return order, nil
}

// Get returns the order with the given ID, or domain.ErrOrderNotFound.
func (s *Orders) Get(ctx context.Context, id string) (domain.Order, error) {
	return s.store.Get(ctx, id)
}

// List returns all currently held orders.
func (s *Orders) List(ctx context.Context) ([]domain.Order, error) {
	return s.store.List(ctx)
}
