package models

import "time"

// Card is a funding instrument. Balances are kept in cents.
type Card struct {
	ID                string    `json:"id" db:"id"`
	UserID            string    `json:"userId" db:"user_id"`
	CardHolder        string    `json:"cardHolder" db:"card_holder"`
	CardNumber        string    `json:"-" db:"card_number"`
	ExpiryDate        string    `json:"expiryDate" db:"expiry_date"` // MM/YY
	CardType          string    `json:"cardType" db:"card_type"`
	BankName          string    `json:"bankName" db:"bank_name"`
	CardNetwork       string    `json:"cardNetwork" db:"card_network"`
	BalanceCents      int64     `json:"-" db:"balance_cents"`
	DailyLimitCents   int64     `json:"-" db:"daily_limit_cents"`
	MonthlyLimitCents int64     `json:"-" db:"monthly_limit_cents"`
	CreatedAt         time.Time `json:"createdAt" db:"created_at"`
	UpdatedAt         time.Time `json:"updatedAt" db:"updated_at"`
}

const (
	DefaultDailyLimitCents   int64 = 500000
	DefaultMonthlyLimitCents int64 = 1500000
)

// Last4 returns the trailing digits of the card number for display.
func (c *Card) Last4() string {
	if len(c.CardNumber) <= 4 {
		return c.CardNumber
	}
	return c.CardNumber[len(c.CardNumber)-4:]
}

const (
	TransactionCategoryBillPayment = "bill_payment"

	TransactionStatusPending   = "pending"
	TransactionStatusCompleted = "completed"
	TransactionStatusFailed    = "failed"
)

// Transaction is an immutable ledger line against a card.
// Negative amounts are debits.
type Transaction struct {
	ID          string    `json:"id" db:"id"`
	CardID      string    `json:"cardId" db:"card_id"`
	AmountCents int64     `json:"-" db:"amount_cents"`
	Merchant    string    `json:"merchant" db:"merchant"`
	Category    string    `json:"category" db:"category"`
	Status      string    `json:"status" db:"status"`
	CreatedAt   time.Time `json:"createdAt" db:"created_at"`
}
