package models

import "time"

// BillStatus represents where a bill is in its lifecycle.
type BillStatus string

const (
	BillStatusUpcoming BillStatus = "upcoming"
	BillStatusOverdue  BillStatus = "overdue"
	BillStatusPaid     BillStatus = "paid"
)

// Bill is an amount owed by a user.
type Bill struct {
	ID          string     `json:"id" db:"id"`
	UserID      string     `json:"-" db:"user_id"`
	Name        string     `json:"name" db:"name"`
	Category    string     `json:"category" db:"category"`
	AmountCents int64      `json:"-" db:"amount_cents"`
	DueDate     time.Time  `json:"dueDate" db:"due_date"`
	Status      BillStatus `json:"status" db:"status"`
	Autopay     bool       `json:"autopay" db:"autopay"`
	CreatedAt   time.Time  `json:"createdAt" db:"created_at"`
	UpdatedAt   time.Time  `json:"updatedAt" db:"updated_at"`
}

// BillStatusFor derives the status of an unpaid bill from its due date.
func BillStatusFor(dueDate, now time.Time) BillStatus {
	if dueDate.Before(now) {
		return BillStatusOverdue
	}
	return BillStatusUpcoming
}

func (b *Bill) IsPaid() bool {
	return b.Status == BillStatusPaid
}
