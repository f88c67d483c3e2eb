package events

import (
	"context"
	"driver-dispatch-client/internal/domain"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/hashicorp/go-hclog"
	amqp "github.com/rabbitmq/amqp091-go"
)

const publishTimeout = 5 * time.Second

// AMQPPublisher sends job events to a topic exchange, routed by event type.
type AMQPPublisher struct {
	url      string
	exchange string
	log      hclog.Logger

	mu     sync.Mutex
	conn   *amqp.Connection
	ch     *amqp.Channel
	closed bool
}

// NewAMQPPublisher connects and declares the exchange. The connection is
// re-established lazily if the broker drops it.
func NewAMQPPublisher(ctx context.Context, url, exchange string, log hclog.Logger) (*AMQPPublisher, error) {
	if log == nil {
		log = hclog.NewNullLogger()
	}

	p := &AMQPPublisher{
		url:      url,
		exchange: exchange,
		log:      log.Named("amqp"),
	}

	maxRetries := 5
	retryDelay := time.Second

	for attempt := 1; ; attempt++ {
		err := p.connect()
		if err == nil {
			p.log.Info("connected to broker", "exchange", exchange, "attempt", attempt)
			return p, nil
		}

		if attempt == maxRetries {
			return nil, fmt.Errorf("connect to broker after %d attempts: %w", maxRetries, err)
		}

		p.log.Warn("broker connection attempt failed", "attempt", attempt, "retry_in", retryDelay, "error", err)

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(retryDelay):
			retryDelay = min(retryDelay*2, 30*time.Second)
		}
	}
}

func (p *AMQPPublisher) connect() error {
	conn, err := amqp.Dial(p.url)
	if err != nil {
		return fmt.Errorf("dial rabbitmq: %w", err)
	}

	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return fmt.Errorf("open channel: %w", err)
	}

	if err := ch.ExchangeDeclare(
		p.exchange,
		"topic",
		true,  // durable
		false, // auto-deleted
		false, // internal
		false, // no-wait
		nil,
	); err != nil {
		_ = ch.Close()
		_ = conn.Close()
		return fmt.Errorf("declare exchange %s: %w", p.exchange, err)
	}

	p.mu.Lock()
	p.conn = conn
	p.ch = ch
	p.mu.Unlock()

	return nil
}

func (p *AMQPPublisher) channel() (*amqp.Channel, error) {
	p.mu.Lock()
	closed := p.closed
	ch := p.ch
	p.mu.Unlock()

	if closed {
		return nil, errors.New("publisher closed")
	}
	if ch != nil && !ch.IsClosed() {
		return ch, nil
	}

	if err := p.connect(); err != nil {
		return nil, err
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	return p.ch, nil
}

func (p *AMQPPublisher) PublishJobEvent(ctx context.Context, ev domain.JobEvent) error {
	body, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("marshal job event: %w", err)
	}

	ch, err := p.channel()
	if err != nil {
		return fmt.Errorf("publish %s: %w", ev.Type, err)
	}

	publishCtx, cancel := context.WithTimeout(ctx, publishTimeout)
	defer cancel()

	err = ch.PublishWithContext(
		publishCtx,
		p.exchange,
		string(ev.Type),
		false, // mandatory
		false, // immediate
		amqp.Publishing{
			ContentType:  "application/json",
			MessageId:    ev.ID,
			Body:         body,
			DeliveryMode: amqp.Persistent,
			Timestamp:    ev.OccurredAt,
		},
	)
	if err != nil {
		return fmt.Errorf("publish %s: %w", ev.Type, err)
	}
	return nil
}

func (p *AMQPPublisher) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		return nil
	}
	p.closed = true

	var errs []error
	if p.ch != nil {
		errs = append(errs, p.ch.Close())
	}
	if p.conn != nil {
		errs = append(errs, p.conn.Close())
	}
	return errors.Join(errs...)
}
