// Package payments validates and applies bill payments against cards.
package payments

import (
	"context"
	"errors"
	"fmt"

	"github.com/finsec-io/finsec-api/internal/apperr"
	"github.com/finsec-io/finsec-api/internal/models"
	"github.com/finsec-io/finsec-api/internal/store"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Request is a bill payment as submitted by the client.
type Request struct {
	BillID          string
	PaymentMethodID string
	Amount          decimal.Decimal
}

// Validated is a request that passed every check, with the rows it was
// checked against.
type Validated struct {
	Card        *models.Card
	Bill        *models.Bill
	AmountCents int64
}

// Validator runs the payment checks in a fixed order and stops at the
// first failure. It never writes.
type Validator struct {
	store *store.Store
}

func NewValidator(st *store.Store) *Validator {
	return &Validator{store: st}
}

func (v *Validator) Validate(ctx context.Context, userID string, req Request) (*Validated, error) {
	if req.PaymentMethodID == "" {
		return nil, apperr.InvalidRequest("paymentMethodId is required")
	}
	// Ids are stored in canonical form, so the braced, urn and bare-hex
	// spellings uuid.Parse accepts would only miss the lookup.
	if u, err := uuid.Parse(req.PaymentMethodID); err != nil || u.String() != req.PaymentMethodID {
		return nil, apperr.InvalidRequest("paymentMethodId is not a valid id")
	}

	card, err := v.store.GetCard(ctx, req.PaymentMethodID)
	if errors.Is(err, store.ErrNotFound) {
		return nil, apperr.NotFound("payment method not found")
	}
	if err != nil {
		return nil, apperr.Wrap(apperr.KindInternal, "", err)
	}
	if card.UserID != userID {
		return nil, apperr.Forbidden("payment method does not belong to you")
	}

	if req.BillID == "" {
		return nil, apperr.InvalidRequest("billId is required")
	}
	bill, err := v.store.GetUserBill(ctx, req.BillID, userID)
	if errors.Is(err, store.ErrNotFound) {
		return nil, apperr.NotFound("bill not found")
	}
	if err != nil {
		return nil, apperr.Wrap(apperr.KindInternal, "", err)
	}
	if bill.IsPaid() {
		return nil, apperr.Conflict("bill is already paid")
	}

	if !req.Amount.IsPositive() {
		return nil, apperr.InvalidAmount("amount must be greater than zero")
	}
	cents, err := models.CentsFromDecimal(req.Amount)
	if err != nil {
		return nil, apperr.InvalidAmount("amount must have at most two decimal places")
	}
	if cents != bill.AmountCents {
		return nil, apperr.InvalidAmount(fmt.Sprintf("amount must equal the bill amount of %s",
			models.DecimalFromCents(bill.AmountCents).StringFixed(2)))
	}

	if card.BalanceCents < cents {
		return nil, apperr.InsufficientBalance("insufficient balance on payment method")
	}

	return &Validated{Card: card, Bill: bill, AmountCents: cents}, nil
}
