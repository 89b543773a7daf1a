package payments

import (
	"context"
	"errors"

	"github.com/finsec-io/finsec-api/internal/apperr"
	"github.com/finsec-io/finsec-api/internal/events"
	"github.com/finsec-io/finsec-api/internal/models"
	"github.com/finsec-io/finsec-api/internal/receipts"
	"github.com/finsec-io/finsec-api/internal/store"
	"github.com/rs/zerolog"
)

// Service is the bill payment entry point.
type Service struct {
	store     *store.Store
	validator *Validator
	ledger    *Ledger
	events    events.Publisher
	receipts  receipts.Archiver
	logger    zerolog.Logger
}

func NewService(st *store.Store, publisher events.Publisher, archiver receipts.Archiver, logger zerolog.Logger) *Service {
	return &Service{
		store:     st,
		validator: NewValidator(st),
		ledger:    NewLedger(st),
		events:    publisher,
		receipts:  archiver,
		logger:    logger.With().Str("component", "payments").Logger(),
	}
}

// Pay validates and applies a bill payment for userID. Notifications and
// the receipt are sent after commit and never fail the payment.
func (s *Service) Pay(ctx context.Context, userID string, req Request) (*Posting, error) {
	validated, err := s.validator.Validate(ctx, userID, req)
	if err != nil {
		s.logger.Info().Str("user_id", userID).Str("bill_id", req.BillID).
			Str("reason", string(apperr.KindOf(err))).Msg("payment rejected")
		return nil, err
	}

	posting, err := s.ledger.Apply(ctx, userID, validated)
	if err != nil {
		evt := s.logger.Warn()
		if apperr.KindOf(err) == apperr.KindPaymentProcessingFailed {
			evt = s.logger.Error()
		}
		evt.Err(err).Str("user_id", userID).Str("bill_id", req.BillID).Msg("payment failed")
		return nil, err
	}

	s.logger.Info().
		Str("user_id", userID).
		Str("bill_id", posting.Bill.ID).
		Str("transaction_id", posting.Transaction.ID).
		Int64("amount_cents", validated.AmountCents).
		Msg("bill paid")

	s.afterCommit(ctx, userID, validated.AmountCents, posting)
	return posting, nil
}

func (s *Service) afterCommit(ctx context.Context, userID string, amountCents int64, p *Posting) {
	if err := s.events.PublishBillPaid(ctx, events.BillPaid{
		UserID:        userID,
		BillID:        p.Bill.ID,
		BillName:      p.Bill.Name,
		CardID:        p.Card.ID,
		TransactionID: p.Transaction.ID,
		AmountCents:   amountCents,
		BalanceCents:  p.Card.BalanceCents,
		Timestamp:     p.Transaction.CreatedAt,
	}); err != nil {
		s.logger.Warn().Err(err).Str("transaction_id", p.Transaction.ID).Msg("failed to publish bill.paid")
	}

	if _, err := s.receipts.Archive(ctx, receipts.Receipt{
		TransactionID: p.Transaction.ID,
		UserID:        userID,
		BillID:        p.Bill.ID,
		BillName:      p.Bill.Name,
		CardID:        p.Card.ID,
		CardLast4:     p.Card.Last4(),
		AmountCents:   amountCents,
		BalanceCents:  p.Card.BalanceCents,
		PaidAt:        p.Transaction.CreatedAt,
	}); err != nil {
		s.logger.Warn().Err(err).Str("transaction_id", p.Transaction.ID).Msg("failed to archive receipt")
	}
}

// ListBills returns the caller's bills, soonest due first.
func (s *Service) ListBills(ctx context.Context, userID string) ([]*models.Bill, error) {
	bills, err := s.store.ListBills(ctx, userID)
	if err != nil {
		return nil, apperr.Wrap(apperr.KindInternal, "", err)
	}
	return bills, nil
}

// ListCards returns the caller's cards.
func (s *Service) ListCards(ctx context.Context, userID string) ([]*models.Card, error) {
	cards, err := s.store.ListCards(ctx, userID)
	if err != nil {
		return nil, apperr.Wrap(apperr.KindInternal, "", err)
	}
	return cards, nil
}

// CardTransactions returns the ledger lines of one of the caller's cards,
// newest first. Another user's card is reported as missing.
func (s *Service) CardTransactions(ctx context.Context, userID, cardID string) (*models.Card, []*models.Transaction, error) {
	card, err := s.store.GetCard(ctx, cardID)
	if errors.Is(err, store.ErrNotFound) || (err == nil && card.UserID != userID) {
		return nil, nil, apperr.NotFound("card not found")
	}
	if err != nil {
		return nil, nil, apperr.Wrap(apperr.KindInternal, "", err)
	}

	txns, err := s.store.ListTransactions(ctx, card.ID)
	if err != nil {
		return nil, nil, apperr.Wrap(apperr.KindInternal, "", err)
	}
	return card, txns, nil
}
