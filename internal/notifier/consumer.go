package notifier

import (
	"context"
	"encoding/json"
	"fmt"

	pubsub "cloud.google.com/go/pubsub/v2"

	"github.com/akbarsho/storefront-backend/internal/orders"
	"github.com/akbarsho/storefront-backend/pkg/logger"
	"github.com/akbarsho/storefront-backend/pkg/mail"
)

// Consumer turns order-placed events into confirmation emails.
type Consumer struct {
	subscription *pubsub.Subscriber
	sender       mail.Sender
	logg         *logger.Logger
}

// NewConsumer builds the order notification consumer.
func NewConsumer(subscription *pubsub.Subscriber, sender mail.Sender, logg *logger.Logger) (*Consumer, error) {
	if subscription == nil {
		return nil, fmt.Errorf("orders subscription required")
	}
	if sender == nil {
		return nil, fmt.Errorf("mail sender required")
	}
	if logg == nil {
		return nil, fmt.Errorf("logger required")
	}
	return &Consumer{
		subscription: subscription,
		sender:       sender,
		logg:         logg,
	}, nil
}

// Run starts the consumer loop until the context is canceled.
func (c *Consumer) Run(ctx context.Context) error {
	return c.subscription.Receive(ctx, func(ctx context.Context, msg *pubsub.Message) {
		result := c.process(ctx, msg.ID, msg.Data)
		if result.nack {
			msg.Nack()
			return
		}
		msg.Ack()
	})
}

type processResult struct {
	ack  bool
	nack bool
}

func (c *Consumer) process(ctx context.Context, messageID string, data []byte) processResult {
	logCtx := c.logg.WithField(ctx, "message_id", messageID)

	var event orders.OrderPlacedEvent
	if err := json.Unmarshal(data, &event); err != nil {
		c.logg.Error(logCtx, "failed to decode order event", err)
		return processResult{ack: true}
	}
	logCtx = c.logg.WithOrderID(logCtx, event.OrderID)

	if event.UserEmail == "" {
		c.logg.Warn(logCtx, "order event has no recipient email")
		return processResult{ack: true}
	}

	subject := ConfirmationSubject(event)
	plain, html := ConfirmationBody(event)
	if err := c.sender.Send(ctx, event.UserEmail, subject, plain, html); err != nil {
		c.logg.Error(logCtx, "sending order confirmation failed", err)
		return processResult{nack: true}
	}

	c.logg.Info(logCtx, "order confirmation sent")
	return processResult{ack: true}
}
