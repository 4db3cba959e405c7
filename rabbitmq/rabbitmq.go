package rabbitmq

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"b2b-storefront/config"
	"b2b-storefront/events"
	"b2b-storefront/models"

	amqp "github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"
)

var ErrDelayUnsupported = errors.New("delayed exchange not available")

// Message priorities; the order queue is declared with x-max-priority.
const (
	PriorityLow    uint8 = 1
	PriorityNormal uint8 = 5
	PriorityHigh   uint8 = 8
)

type publisher interface {
	PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error
}

type RabbitMQ struct {
	Conn    *amqp.Connection
	Channel *amqp.Channel
	Cfg     *config.Config

	logger  *zap.Logger
	mu      sync.Mutex
	pub     publisher
	delayed bool
	now     func() time.Time
}

func NewRabbitMQ(cfg *config.Config, logger *zap.Logger) (*RabbitMQ, error) {
	conn, err := amqp.Dial(cfg.RabbitMQURL)
	if err != nil {
		return nil, fmt.Errorf("dial rabbitmq: %w", err)
	}

	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("open channel: %w", err)
	}

	r := newRabbitMQ(cfg, ch, logger)
	r.Conn = conn
	r.Channel = ch
	return r, nil
}

func newRabbitMQ(cfg *config.Config, pub publisher, logger *zap.Logger) *RabbitMQ {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RabbitMQ{Cfg: cfg, logger: logger, pub: pub, now: time.Now}
}

func (r *RabbitMQ) deadLetterExchange() string {
	return r.Cfg.DeadLetterQueue + "_exchange"
}

type binding struct {
	queue, key, exchange string
}

func (r *RabbitMQ) deadLetterBinding() binding {
	return binding{queue: r.Cfg.DeadLetterQueue, key: r.Cfg.DeadLetterQueue, exchange: r.deadLetterExchange()}
}

// delayBinding is the only route into the shared order queue.
func (r *RabbitMQ) delayBinding() binding {
	return binding{queue: r.Cfg.OrderQueue, key: r.Cfg.OrderQueue, exchange: r.Cfg.DelayExchange}
}

func (r *RabbitMQ) bind(b binding) error {
	return r.Channel.QueueBind(b.queue, b.key, b.exchange, false, nil)
}

// SetupQueues declares the order exchange, the durable order queue with
// priority and dead-lettering, the dead-letter queue and the delay exchange.
// The order queue only receives scheduled work from the delay exchange;
// broadcast events reach instances through BindInstanceQueue.
func (r *RabbitMQ) SetupQueues() error {
	if err := r.Channel.ExchangeDeclare(
		r.deadLetterExchange(),
		"direct",
		true,  // durable
		false, // auto-delete
		false, // internal
		false, // no-wait
		nil,
	); err != nil {
		return fmt.Errorf("declare dead-letter exchange: %w", err)
	}

	if _, err := r.Channel.QueueDeclare(
		r.Cfg.DeadLetterQueue,
		true,  // durable
		false, // auto-delete
		false, // exclusive
		false, // no-wait
		amqp.Table{"x-queue-type": "classic"},
	); err != nil {
		return fmt.Errorf("declare dead-letter queue: %w", err)
	}

	if err := r.bind(r.deadLetterBinding()); err != nil {
		return fmt.Errorf("bind dead-letter queue: %w", err)
	}

	if err := r.Channel.ExchangeDeclare(
		r.Cfg.OrderExchange,
		"fanout",
		true,  // durable
		false, // auto-delete
		false, // internal
		false, // no-wait
		nil,
	); err != nil {
		return fmt.Errorf("declare order exchange: %w", err)
	}

	if _, err := r.Channel.QueueDeclare(
		r.Cfg.OrderQueue,
		true,  // durable
		false, // auto-delete
		false, // exclusive
		false, // no-wait
		amqp.Table{
			"x-max-priority":            r.Cfg.MaxPriority,
			"x-dead-letter-exchange":    r.deadLetterExchange(),
			"x-dead-letter-routing-key": r.Cfg.DeadLetterQueue,
		},
	); err != nil {
		return fmt.Errorf("declare order queue: %w", err)
	}

	// Requires the rabbitmq_delayed_message_exchange plugin. A failed declare
	// closes the channel, so it is tried on a throwaway one.
	r.delayed = r.declareDelayExchange() == nil
	return nil
}

func (r *RabbitMQ) declareDelayExchange() error {
	if r.Conn == nil {
		return ErrDelayUnsupported
	}
	probe, err := r.Conn.Channel()
	if err != nil {
		return err
	}
	defer probe.Close()

	if err := probe.ExchangeDeclare(
		r.Cfg.DelayExchange,
		"x-delayed-message",
		true,  // durable
		false, // auto-delete
		false, // internal
		false, // no-wait
		amqp.Table{"x-delayed-type": "direct"},
	); err != nil {
		r.logger.Warn("delayed exchange not supported, delivery reminders disabled", zap.Error(err))
		return err
	}
	if err := r.bind(r.delayBinding()); err != nil {
		r.logger.Warn("bind order queue to delay exchange failed", zap.Error(err))
		return err
	}
	return nil
}

// BindInstanceQueue declares a server-named exclusive queue bound to the order
// exchange, so this process sees every event published by any instance.
func (r *RabbitMQ) BindInstanceQueue() (string, error) {
	q, err := r.Channel.QueueDeclare(
		"",
		false, // durable
		true,  // auto-delete
		true,  // exclusive
		false, // no-wait
		nil,
	)
	if err != nil {
		return "", fmt.Errorf("declare instance queue: %w", err)
	}
	if err := r.Channel.QueueBind(q.Name, "", r.Cfg.OrderExchange, false, nil); err != nil {
		return "", fmt.Errorf("bind instance queue: %w", err)
	}
	return q.Name, nil
}

// Publish sends ev to the order exchange. It satisfies events.Publisher.
func (r *RabbitMQ) Publish(ctx context.Context, ev events.Event) error {
	msg, err := newPublishing(ev, priorityFor(ev))
	if err != nil {
		return err
	}
	return r.publish(ctx, r.Cfg.OrderExchange, "", msg)
}

// ScheduleOrderEvent delivers ev to the order queue at the given time through
// the delay exchange.
func (r *RabbitMQ) ScheduleOrderEvent(ctx context.Context, ev models.OrderEvent, at time.Time) error {
	if !r.delayed {
		return ErrDelayUnsupported
	}
	msg, err := newPublishing(events.New(events.TopicOrders, ev.Type, ev.CustomerID, ev), PriorityHigh)
	if err != nil {
		return err
	}
	msg.Headers = amqp.Table{"x-delay": delayUntil(r.now(), at).Milliseconds()}
	return r.publish(ctx, r.Cfg.DelayExchange, r.Cfg.OrderQueue, msg)
}

func (r *RabbitMQ) publish(ctx context.Context, exchange, key string, msg amqp.Publishing) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.pub.PublishWithContext(ctx, exchange, key, false, false, msg); err != nil {
		return fmt.Errorf("publish to %s: %w", exchange, err)
	}
	return nil
}

func newPublishing(ev events.Event, priority uint8) (amqp.Publishing, error) {
	body, err := json.Marshal(ev)
	if err != nil {
		return amqp.Publishing{}, fmt.Errorf("encode event %s: %w", ev.ID, err)
	}
	return amqp.Publishing{
		DeliveryMode: amqp.Persistent,
		Timestamp:    ev.Occurred,
		ContentType:  "application/json",
		MessageId:    ev.ID,
		Type:         ev.Topic + "." + ev.Type,
		Body:         body,
		Priority:     priority,
	}, nil
}

func priorityFor(ev events.Event) uint8 {
	switch {
	case ev.Topic == events.TopicCart:
		return PriorityLow
	case ev.Type == events.TypeOrderDeliveryDue:
		return PriorityHigh
	default:
		return PriorityNormal
	}
}

func delayUntil(now, at time.Time) time.Duration {
	if d := at.Sub(now); d > 0 {
		return d
	}
	return 0
}

func (r *RabbitMQ) Close() {
	if r.Channel != nil {
		if err := r.Channel.Close(); err != nil {
			r.logger.Warn("close rabbitmq channel", zap.Error(err))
		}
	}
	if r.Conn != nil {
		if err := r.Conn.Close(); err != nil {
			r.logger.Warn("close rabbitmq connection", zap.Error(err))
		}
	}
}
