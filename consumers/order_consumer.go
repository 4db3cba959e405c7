package consumers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"b2b-storefront/config"
	"b2b-storefront/events"
	"b2b-storefront/middlewares"
	"b2b-storefront/models"
	"b2b-storefront/orders"

	amqp "github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"
)

// envelope mirrors events.Event with the payload left raw so order payloads
// can be decoded into models.OrderEvent.
type envelope struct {
	events.Event
	Payload json.RawMessage `json:"payload,omitempty"`
}

type OrderConsumer struct {
	ch     *amqp.Channel
	cfg    *config.Config
	hub    events.Publisher
	broker events.Publisher
	orders orders.Repository
	logger *zap.Logger
}

// NewOrderConsumer forwards broadcasts into hub. Reminders raised while
// processing scheduled work go out through broker so every instance sees
// them; a nil broker sends them to hub directly.
func NewOrderConsumer(ch *amqp.Channel, cfg *config.Config, hub, broker events.Publisher, repo orders.Repository, logger *zap.Logger) *OrderConsumer {
	if logger == nil {
		logger = zap.NewNop()
	}
	if broker == nil {
		broker = hub
	}
	return &OrderConsumer{ch: ch, cfg: cfg, hub: hub, broker: broker, orders: repo, logger: logger}
}

// Start registers the consumers and processes deliveries until ctx is done.
// instanceQueue carries every broadcast event for this process; the shared
// order queue carries scheduled work such as delivery reminders.
func (c *OrderConsumer) Start(ctx context.Context, instanceQueue string) error {
	work, err := c.ch.Consume(
		c.cfg.OrderQueue,
		"storefront", // consumer tag
		false,        // auto-ack
		false,        // exclusive
		false,        // no-local
		false,        // no-wait
		nil,
	)
	if err != nil {
		return fmt.Errorf("consume %s: %w", c.cfg.OrderQueue, err)
	}

	fanout, err := c.ch.Consume(instanceQueue, "", false, true, false, false, nil)
	if err != nil {
		return fmt.Errorf("consume %s: %w", instanceQueue, err)
	}

	dlq, err := c.ch.Consume(
		c.cfg.DeadLetterQueue,
		"storefront-dlq",
		false,
		false,
		false,
		false,
		nil,
	)
	if err != nil {
		c.logger.Warn("dead-letter consumer not registered", zap.Error(err))
	}

	go c.loop(ctx, work, c.processOrderMessage)
	go c.loop(ctx, fanout, c.processBroadcast)
	if dlq != nil {
		go c.loop(ctx, dlq, c.processDeadLetterMessage)
	}
	return nil
}

func (c *OrderConsumer) loop(ctx context.Context, msgs <-chan amqp.Delivery, handle func(context.Context, amqp.Delivery)) {
	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-msgs:
			if !ok {
				return
			}
			handle(ctx, msg)
		}
	}
}

// processBroadcast forwards a broker event to local subscribers.
func (c *OrderConsumer) processBroadcast(ctx context.Context, msg amqp.Delivery) {
	defer c.recover(msg)

	var ev events.Event
	if err := json.Unmarshal(msg.Body, &ev); err != nil {
		c.logger.Warn("invalid broadcast message", zap.String("message_id", msg.MessageId), zap.Error(err))
		c.nack(msg)
		return
	}
	if err := c.hub.Publish(ctx, ev); err != nil {
		c.logger.Warn("republish to hub failed", zap.String("event_id", ev.ID), zap.Error(err))
	}
	c.ack(msg)
}

// processOrderMessage handles scheduled work from the shared order queue.
// Anything other than a delivery reminder is acknowledged and skipped.
func (c *OrderConsumer) processOrderMessage(ctx context.Context, msg amqp.Delivery) {
	defer c.recover(msg)

	var env envelope
	if err := json.Unmarshal(msg.Body, &env); err != nil {
		c.logger.Warn("invalid order message", zap.String("message_id", msg.MessageId), zap.Error(err))
		c.nack(msg)
		return
	}
	if env.Topic != events.TopicOrders || env.Type != events.TypeOrderDeliveryDue {
		c.logger.Debug("skipping unscheduled event", zap.String("event_id", env.ID), zap.String("topic", env.Topic), zap.String("type", env.Type))
		c.ack(msg)
		return
	}
	var oe models.OrderEvent
	if err := json.Unmarshal(env.Payload, &oe); err != nil || oe.OrderID == 0 {
		c.logger.Warn("delivery reminder without order", zap.String("event_id", env.ID), zap.Error(err))
		c.nack(msg)
		return
	}

	c.logger.Info("processing delivery reminder", zap.Int64("order_id", oe.OrderID))
	err := c.handleDeliveryDue(ctx, oe)
	middlewares.RecordOrderOperation(events.TypeOrderDeliveryDue, err)
	if err != nil {
		c.logger.Error("delivery reminder failed", zap.Int64("order_id", oe.OrderID), zap.Error(err))
		c.nack(msg)
		return
	}
	c.ack(msg)
}

// handleDeliveryDue checks an order on its delivery date and notifies
// subscribers when it has not been delivered yet.
func (c *OrderConsumer) handleDeliveryDue(ctx context.Context, oe models.OrderEvent) error {
	o, err := c.orders.Get(ctx, oe.OrderID)
	if errors.Is(err, orders.ErrNotFound) {
		c.logger.Info("delivery reminder for removed order", zap.Int64("order_id", oe.OrderID))
		return nil
	}
	if err != nil {
		return err
	}
	if o.Status == models.StatusDelivered {
		return nil
	}
	c.logger.Warn("order due for delivery is not delivered",
		zap.Int64("order_id", o.ID), zap.String("status", string(o.Status)))

	payload := orders.OrderEvent(o, events.TypeOrderDeliveryDue)
	return c.broker.Publish(ctx, events.New(events.TopicOrders, events.TypeOrderDeliveryDue, o.CustomerID, payload))
}

func (c *OrderConsumer) processDeadLetterMessage(_ context.Context, msg amqp.Delivery) {
	c.logger.Error("dead letter received",
		zap.String("message_id", msg.MessageId),
		zap.String("type", msg.Type),
		zap.ByteString("body", msg.Body),
	)
	c.ack(msg)
}

func (c *OrderConsumer) recover(msg amqp.Delivery) {
	if r := recover(); r != nil {
		c.logger.Error("recovered from panic in message processing", zap.Any("panic", r), zap.String("message_id", msg.MessageId))
		c.nack(msg)
	}
}

func (c *OrderConsumer) ack(msg amqp.Delivery) {
	if err := msg.Ack(false); err != nil {
		c.logger.Warn("ack failed", zap.String("message_id", msg.MessageId), zap.Error(err))
	}
}

// nack rejects without requeue so the broker dead-letters the message.
func (c *OrderConsumer) nack(msg amqp.Delivery) {
	if err := msg.Nack(false, false); err != nil {
		c.logger.Warn("nack failed", zap.String("message_id", msg.MessageId), zap.Error(err))
	}
}
