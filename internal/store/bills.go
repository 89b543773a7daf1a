package store

import (
	"context"
	"fmt"
	"time"

	"github.com/finsec-io/finsec-api/internal/models"
)

const billColumns = `id, user_id, name, category, amount_cents, due_date, status, autopay,
	created_at, updated_at`

func scanBill(row interface{ Scan(...any) error }) (*models.Bill, error) {
	bill := &models.Bill{}
	err := row.Scan(
		&bill.ID,
		&bill.UserID,
		&bill.Name,
		&bill.Category,
		&bill.AmountCents,
		&bill.DueDate,
		&bill.Status,
		&bill.Autopay,
		&bill.CreatedAt,
		&bill.UpdatedAt,
	)
	if err != nil {
		return nil, notFound(err)
	}
	return bill, nil
}

// CreateBill inserts a bill with its status derived from the due date.
func (s *Store) CreateBill(ctx context.Context, bill *models.Bill) error {
	now := s.now()
	if bill.ID == "" {
		bill.ID = generateID()
	}
	bill.DueDate = bill.DueDate.UTC()
	bill.Status = models.BillStatusFor(bill.DueDate, now)
	bill.CreatedAt = now
	bill.UpdatedAt = now

	_, err := s.exec(ctx,
		`INSERT INTO bills (`+billColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		bill.ID, bill.UserID, bill.Name, bill.Category, bill.AmountCents, bill.DueDate,
		bill.Status, bill.Autopay, bill.CreatedAt, bill.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert bill: %w", err)
	}
	return nil
}

// GetUserBill returns the bill only when it belongs to userID, so callers
// cannot tell a foreign bill from a missing one.
func (s *Store) GetUserBill(ctx context.Context, id, userID string) (*models.Bill, error) {
	return scanBill(s.queryRow(ctx,
		`SELECT `+billColumns+` FROM bills WHERE id = ? AND user_id = ?`+s.forUpdate(), id, userID))
}

func (s *Store) ListBills(ctx context.Context, userID string) ([]*models.Bill, error) {
	rows, err := s.query(ctx,
		`SELECT `+billColumns+` FROM bills WHERE user_id = ? ORDER BY due_date ASC`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var bills []*models.Bill
	for rows.Next() {
		bill, err := scanBill(rows)
		if err != nil {
			return nil, err
		}
		bills = append(bills, bill)
	}
	return bills, rows.Err()
}

// MarkBillPaid moves an unpaid bill to paid. It reports false when the bill
// was already paid, which makes the transition happen exactly once.
func (s *Store) MarkBillPaid(ctx context.Context, id string) (bool, error) {
	n, err := s.execAffected(ctx,
		`UPDATE bills SET status = ?, updated_at = ? WHERE id = ? AND status <> ?`,
		models.BillStatusPaid, s.now(), id, models.BillStatusPaid)
	if err != nil {
		return false, fmt.Errorf("mark bill paid: %w", err)
	}
	return n == 1, nil
}

// MarkOverdueBills flips upcoming bills whose due date has passed to overdue.
func (s *Store) MarkOverdueBills(ctx context.Context, now time.Time) (int64, error) {
	return s.execAffected(ctx,
		`UPDATE bills SET status = ?, updated_at = ? WHERE status = ? AND due_date < ?`,
		models.BillStatusOverdue, now.UTC(), models.BillStatusUpcoming, now.UTC())
}
