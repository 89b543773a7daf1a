package payments

import (
	"context"
	"errors"

	"github.com/finsec-io/finsec-api/internal/apperr"
	"github.com/finsec-io/finsec-api/internal/models"
	"github.com/finsec-io/finsec-api/internal/store"
)

// Posting is the committed outcome of a payment.
type Posting struct {
	Transaction *models.Transaction
	Card        *models.Card
	Bill        *models.Bill
}

// Ledger applies a validated payment as one unit of work: debit the card,
// record the transaction, mark the bill paid. Nothing is written unless
// all three succeed.
type Ledger struct {
	store *store.Store
}

func NewLedger(st *store.Store) *Ledger {
	return &Ledger{store: st}
}

// Apply re-reads the card and bill inside the transaction, so checks made
// by the validator that raced with another payment are caught here.
func (l *Ledger) Apply(ctx context.Context, userID string, v *Validated) (*Posting, error) {
	var posting *Posting

	err := l.store.WithTx(ctx, func(tx *store.Store) error {
		card, err := tx.GetCard(ctx, v.Card.ID)
		if err != nil {
			return err
		}
		if card.UserID != userID {
			return apperr.Forbidden("payment method does not belong to you")
		}

		bill, err := tx.GetUserBill(ctx, v.Bill.ID, userID)
		if err != nil {
			return err
		}
		if bill.IsPaid() {
			return apperr.Conflict("bill is already paid")
		}
		if bill.AmountCents != v.AmountCents {
			return apperr.InvalidAmount("amount no longer matches the bill")
		}

		debited, err := tx.DebitCard(ctx, card.ID, v.AmountCents)
		if err != nil {
			return err
		}
		if !debited {
			return apperr.InsufficientBalance("insufficient balance on payment method")
		}

		txn := &models.Transaction{
			CardID:      card.ID,
			AmountCents: -v.AmountCents,
			Merchant:    bill.Name,
			Category:    models.TransactionCategoryBillPayment,
			Status:      models.TransactionStatusCompleted,
		}
		if err := tx.CreateTransaction(ctx, txn); err != nil {
			return err
		}

		paid, err := tx.MarkBillPaid(ctx, bill.ID)
		if err != nil {
			return err
		}
		if !paid {
			return apperr.Conflict("bill is already paid")
		}

		card.BalanceCents -= v.AmountCents
		bill.Status = models.BillStatusPaid
		posting = &Posting{Transaction: txn, Card: card, Bill: bill}
		return nil
	})
	if err == nil {
		return posting, nil
	}

	var domain *apperr.Error
	if errors.As(err, &domain) {
		return nil, err
	}
	return nil, apperr.PaymentProcessingFailed(err)
}
