package store

import (
	"context"
	"fmt"

	"github.com/finsec-io/finsec-api/internal/models"
)

const cardColumns = `id, user_id, card_holder, card_number, expiry_date, card_type, bank_name,
	card_network, balance_cents, daily_limit_cents, monthly_limit_cents, created_at, updated_at`

func scanCard(row interface{ Scan(...any) error }) (*models.Card, error) {
	card := &models.Card{}
	err := row.Scan(
		&card.ID,
		&card.UserID,
		&card.CardHolder,
		&card.CardNumber,
		&card.ExpiryDate,
		&card.CardType,
		&card.BankName,
		&card.CardNetwork,
		&card.BalanceCents,
		&card.DailyLimitCents,
		&card.MonthlyLimitCents,
		&card.CreatedAt,
		&card.UpdatedAt,
	)
	if err != nil {
		return nil, notFound(err)
	}
	return card, nil
}

func (s *Store) CreateCard(ctx context.Context, card *models.Card) error {
	now := s.now()
	if card.ID == "" {
		card.ID = generateID()
	}
	if card.DailyLimitCents == 0 {
		card.DailyLimitCents = models.DefaultDailyLimitCents
	}
	if card.MonthlyLimitCents == 0 {
		card.MonthlyLimitCents = models.DefaultMonthlyLimitCents
	}
	card.CreatedAt = now
	card.UpdatedAt = now

	_, err := s.exec(ctx,
		`INSERT INTO cards (`+cardColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		card.ID, card.UserID, card.CardHolder, card.CardNumber, card.ExpiryDate, card.CardType,
		card.BankName, card.CardNetwork, card.BalanceCents, card.DailyLimitCents,
		card.MonthlyLimitCents, card.CreatedAt, card.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert card: %w", err)
	}
	return nil
}

// GetCard reads a card. Inside a transaction on PostgreSQL the row is locked
// until commit.
func (s *Store) GetCard(ctx context.Context, id string) (*models.Card, error) {
	return scanCard(s.queryRow(ctx,
		`SELECT `+cardColumns+` FROM cards WHERE id = ?`+s.forUpdate(), id))
}

// ListCards returns the user's cards, oldest first.
func (s *Store) ListCards(ctx context.Context, userID string) ([]*models.Card, error) {
	rows, err := s.query(ctx,
		`SELECT `+cardColumns+` FROM cards WHERE user_id = ? ORDER BY created_at ASC, id ASC`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var cards []*models.Card
	for rows.Next() {
		card, err := scanCard(rows)
		if err != nil {
			return nil, err
		}
		cards = append(cards, card)
	}
	return cards, rows.Err()
}

// DebitCard subtracts amount from the balance only if the balance covers it.
// It reports false when the guard rejected the debit.
func (s *Store) DebitCard(ctx context.Context, id string, amountCents int64) (bool, error) {
	n, err := s.execAffected(ctx,
		`UPDATE cards SET balance_cents = balance_cents - ?, updated_at = ?
		 WHERE id = ? AND balance_cents >= ?`,
		amountCents, s.now(), id, amountCents)
	if err != nil {
		return false, fmt.Errorf("debit card: %w", err)
	}
	return n == 1, nil
}

const transactionColumns = `id, card_id, amount_cents, merchant, category, status, created_at`

func (s *Store) CreateTransaction(ctx context.Context, txn *models.Transaction) error {
	txn.ID = generateID()
	txn.CreatedAt = s.now()

	_, err := s.exec(ctx,
		`INSERT INTO transactions (`+transactionColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?)`,
		txn.ID, txn.CardID, txn.AmountCents, txn.Merchant, txn.Category, txn.Status, txn.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert transaction: %w", err)
	}
	return nil
}

// ListTransactions returns a card's transactions, newest first.
func (s *Store) ListTransactions(ctx context.Context, cardID string) ([]*models.Transaction, error) {
	rows, err := s.query(ctx,
		`SELECT `+transactionColumns+` FROM transactions WHERE card_id = ? ORDER BY created_at DESC`, cardID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var txns []*models.Transaction
	for rows.Next() {
		t := &models.Transaction{}
		if err := rows.Scan(&t.ID, &t.CardID, &t.AmountCents, &t.Merchant, &t.Category, &t.Status, &t.CreatedAt); err != nil {
			return nil, err
		}
		txns = append(txns, t)
	}
	return txns, rows.Err()
}
