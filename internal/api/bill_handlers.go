package api

import (
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/finsec-io/finsec-api/internal/apperr"
	"github.com/finsec-io/finsec-api/internal/auth"
	"github.com/finsec-io/finsec-api/internal/models"
	"github.com/finsec-io/finsec-api/internal/payments"
	"github.com/shopspring/decimal"
)

// payRequest keeps amount raw so a bad amount is reported by the payment
// checks in their order rather than as a body decoding failure.
type payRequest struct {
	BillID          string          `json:"billId"`
	Amount          json.RawMessage `json:"amount"`
	PaymentMethodID string          `json:"paymentMethodId"`
}

type payResponse struct {
	Message       string      `json:"message"`
	BillID        string      `json:"billId"`
	Status        string      `json:"status"`
	TransactionID string      `json:"transaction_id"`
	CardBalance   json.Number `json:"card_balance"`
}

type billResponse struct {
	ID       string      `json:"id"`
	Name     string      `json:"name"`
	Category string      `json:"category"`
	Amount   json.Number `json:"amount"`
	DueDate  time.Time   `json:"dueDate"`
	Status   string      `json:"status"`
	Autopay  bool        `json:"autopay"`
}

// parseAmount accepts a JSON number or numeric string. Anything else is
// treated as zero, which the payment checks reject as an invalid amount.
func parseAmount(raw json.RawMessage) decimal.Decimal {
	s := strings.Trim(strings.TrimSpace(string(raw)), `"`)
	if s == "" || s == "null" {
		return decimal.Zero
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero
	}
	return d
}

func (api *Api) PayBillHandler(w http.ResponseWriter, r *http.Request) {
	id, ok := auth.IdentityFrom(r.Context())
	if !ok {
		api.writeError(w, r, apperr.Unauthorized("authentication required"))
		return
	}

	var req payRequest
	if err := api.decode(r, &req, false); err != nil {
		api.writeError(w, r, err)
		return
	}

	posting, err := api.payments.Pay(r.Context(), id.UserID, payments.Request{
		BillID:          req.BillID,
		PaymentMethodID: req.PaymentMethodID,
		Amount:          parseAmount(req.Amount),
	})
	if err != nil {
		api.writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, payResponse{
		Message:       "Bill paid successfully",
		BillID:        posting.Bill.ID,
		Status:        string(posting.Bill.Status),
		TransactionID: posting.Transaction.ID,
		CardBalance:   models.AmountJSON(posting.Card.BalanceCents),
	})
}

func (api *Api) ListBillsHandler(w http.ResponseWriter, r *http.Request) {
	id, ok := auth.IdentityFrom(r.Context())
	if !ok {
		api.writeError(w, r, apperr.Unauthorized("authentication required"))
		return
	}

	bills, err := api.payments.ListBills(r.Context(), id.UserID)
	if err != nil {
		api.writeError(w, r, err)
		return
	}

	out := make([]billResponse, 0, len(bills))
	for _, b := range bills {
		out = append(out, billResponse{
			ID:       b.ID,
			Name:     b.Name,
			Category: b.Category,
			Amount:   models.AmountJSON(b.AmountCents),
			DueDate:  b.DueDate,
			Status:   string(b.Status),
			Autopay:  b.Autopay,
		})
	}
	writeJSON(w, http.StatusOK, map[string]any{"bills": out})
}
