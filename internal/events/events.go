// Package events publishes domain events to RabbitMQ for the notification
// service. Publishing is best effort: callers log failures and move on.
package events

import (
	"context"
	"time"

	"github.com/rs/zerolog"
)

const (
	RoutingKeySessionCreated = "session.created"
	RoutingKeyBillPaid       = "bill.paid"
)

// SessionCreated is emitted after a login completes.
type SessionCreated struct {
	UserID     string    `json:"user_id"`
	DeviceInfo string    `json:"device_info"`
	IPAddress  string    `json:"ip_address"`
	ExpiresAt  time.Time `json:"expires_at"`
	Timestamp  time.Time `json:"timestamp"`
}

// BillPaid is emitted after a bill payment commits. Amounts are in cents.
type BillPaid struct {
	UserID        string    `json:"user_id"`
	BillID        string    `json:"bill_id"`
	BillName      string    `json:"bill_name"`
	CardID        string    `json:"card_id"`
	TransactionID string    `json:"transaction_id"`
	AmountCents   int64     `json:"amount_cents"`
	BalanceCents  int64     `json:"balance_cents"`
	Timestamp     time.Time `json:"timestamp"`
}

// Publisher is implemented by types that can publish events.
type Publisher interface {
	PublishSessionCreated(ctx context.Context, event SessionCreated) error
	PublishBillPaid(ctx context.Context, event BillPaid) error
	Close()
}

// Fallback is a no-op publisher used when events are disabled or RabbitMQ
// is unreachable at startup.
type Fallback struct {
	logger zerolog.Logger
}

func NewFallback(logger zerolog.Logger) *Fallback {
	return &Fallback{logger: logger.With().Str("component", "events").Str("mode", "fallback").Logger()}
}

func (f *Fallback) PublishSessionCreated(_ context.Context, event SessionCreated) error {
	f.logger.Debug().Str("routing_key", RoutingKeySessionCreated).Str("user_id", event.UserID).Msg("publish skipped")
	return nil
}

func (f *Fallback) PublishBillPaid(_ context.Context, event BillPaid) error {
	f.logger.Debug().Str("routing_key", RoutingKeyBillPaid).Str("bill_id", event.BillID).Msg("publish skipped")
	return nil
}

func (f *Fallback) Close() {}
