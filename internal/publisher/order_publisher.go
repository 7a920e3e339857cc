package publisher

import (
	"context"
	"encoding/json"

	"github.com/pkg/errors"

	"github.com/prudhivi99/Distributed-Systems/ordersys/internal/models"
)

// Queues holds one queue per event type, named after the event.
var Queues = []string{
	string(models.OrderCreated),
	string(models.OrderStatusChanged),
	string(models.OrderCancelled),
}

// Broker is the part of messaging.RabbitMQ the publisher needs.
type Broker interface {
	DeclareQueue(name string) error
	Publish(ctx context.Context, queue string, message []byte) error
}

type OrderPublisher struct {
	mq Broker
}

func NewOrderPublisher(mq Broker) (*OrderPublisher, error) {
	// Declare the queues
	for _, q := range Queues {
		if err := mq.DeclareQueue(q); err != nil {
			return nil, err
		}
	}

	return &OrderPublisher{mq: mq}, nil
}

// Publish sends the event to the queue named after its type
func (p *OrderPublisher) Publish(ctx context.Context, event models.OrderEvent) error {
	if event.Type == "" {
		return errors.New("event type is required")
	}

	data, err := json.Marshal(event)
	if err != nil {
		return errors.Wrap(err, "failed to marshal event")
	}

	return p.mq.Publish(ctx, string(event.Type), data)
}
