package events

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/rabbitmq/amqp091-go"
	"github.com/rs/zerolog"
)

const dialTimeout = 10 * time.Second

// channel is the subset of *amqp091.Channel the producer uses.
type channel interface {
	ExchangeDeclare(name, kind string, durable, autoDelete, internal, noWait bool, args amqp091.Table) error
	PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp091.Publishing) error
	Close() error
}

// Producer publishes JSON events to a durable topic exchange.
type Producer struct {
	mu       sync.Mutex
	conn     *amqp091.Connection
	ch       channel
	reopen   func() (channel, error)
	exchange string
	declared bool
	logger   zerolog.Logger
}

func sanitizeURL(raw string) (string, error) {
	clean := strings.Trim(strings.TrimSpace(raw), "\"'")
	u, err := url.Parse(clean)
	if err != nil {
		return "", fmt.Errorf("parse amqp url: %w", err)
	}
	if u.Scheme != "amqp" && u.Scheme != "amqps" {
		return "", errors.New("amqp url must use the amqp:// or amqps:// scheme")
	}
	return clean, nil
}

// NewProducer dials RabbitMQ and opens a channel.
func NewProducer(rawURL, exchange string, logger zerolog.Logger) (*Producer, error) {
	cleanURL, err := sanitizeURL(rawURL)
	if err != nil {
		return nil, err
	}

	conn, err := amqp091.DialConfig(cleanURL, amqp091.Config{Dial: amqp091.DefaultDial(dialTimeout)})
	if err != nil {
		return nil, fmt.Errorf("dial rabbitmq: %w", err)
	}

	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("open channel: %w", err)
	}

	p := newProducer(ch, exchange, logger)
	p.conn = conn
	p.reopen = func() (channel, error) { return conn.Channel() }
	return p, nil
}

func newProducer(ch channel, exchange string, logger zerolog.Logger) *Producer {
	return &Producer{
		ch:       ch,
		exchange: exchange,
		logger:   logger.With().Str("component", "events").Str("exchange", exchange).Logger(),
	}
}

func (p *Producer) PublishSessionCreated(ctx context.Context, event SessionCreated) error {
	return p.publish(ctx, RoutingKeySessionCreated, event)
}

func (p *Producer) PublishBillPaid(ctx context.Context, event BillPaid) error {
	return p.publish(ctx, RoutingKeyBillPaid, event)
}

func (p *Producer) publish(ctx context.Context, routingKey string, body any) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("marshal %s event: %w", routingKey, err)
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	err = p.send(ctx, routingKey, payload)
	if err == nil || p.reopen == nil {
		return err
	}

	// One retry on a fresh channel; a closed channel is the usual cause.
	p.logger.Warn().Err(err).Str("routing_key", routingKey).Msg("publish failed, reopening channel")
	ch, chErr := p.reopen()
	if chErr != nil {
		return fmt.Errorf("reopen channel: %w", chErr)
	}
	p.ch.Close()
	p.ch = ch
	p.declared = false
	return p.send(ctx, routingKey, payload)
}

func (p *Producer) send(ctx context.Context, routingKey string, payload []byte) error {
	if !p.declared {
		if err := p.ch.ExchangeDeclare(p.exchange, "topic", true, false, false, false, nil); err != nil {
			return fmt.Errorf("declare exchange: %w", err)
		}
		p.declared = true
	}

	return p.ch.PublishWithContext(ctx, p.exchange, routingKey, false, false, amqp091.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp091.Persistent,
		Timestamp:    time.Now().UTC(),
		Body:         payload,
	})
}

// Close closes the channel and connection.
func (p *Producer) Close() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.ch != nil {
		p.ch.Close()
	}
	if p.conn != nil {
		p.conn.Close()
	}
}

// Connect returns a Producer when enabled and reachable, and a Fallback
// otherwise. Startup never fails because of RabbitMQ.
func Connect(enabled bool, rawURL, exchange string, logger zerolog.Logger) Publisher {
	if !enabled {
		return NewFallback(logger)
	}
	p, err := NewProducer(rawURL, exchange, logger)
	if err != nil {
		logger.Warn().Err(err).Msg("rabbitmq unavailable, events disabled")
		return NewFallback(logger)
	}
	return p
}
