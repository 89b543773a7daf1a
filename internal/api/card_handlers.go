package api

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/finsec-io/finsec-api/internal/apperr"
	"github.com/finsec-io/finsec-api/internal/auth"
	"github.com/finsec-io/finsec-api/internal/models"
	"github.com/go-chi/chi/v5"
)

// cardResponse never carries the full card number.
type cardResponse struct {
	ID           string      `json:"id"`
	CardHolder   string      `json:"cardHolder"`
	Last4        string      `json:"last4"`
	ExpiryDate   string      `json:"expiryDate"`
	CardType     string      `json:"cardType"`
	BankName     string      `json:"bankName"`
	CardNetwork  string      `json:"cardNetwork"`
	Balance      json.Number `json:"balance"`
	DailyLimit   json.Number `json:"dailyLimit"`
	MonthlyLimit json.Number `json:"monthlyLimit"`
}

type transactionResponse struct {
	ID            string      `json:"id"`
	Type          string      `json:"type"`
	Amount        json.Number `json:"amount"`
	Date          time.Time   `json:"date"`
	Category      string      `json:"category"`
	Merchant      string      `json:"merchant"`
	Status        string      `json:"status"`
	PaymentMethod string      `json:"paymentMethod"`
}

func newCardResponse(c *models.Card) cardResponse {
	return cardResponse{
		ID:           c.ID,
		CardHolder:   c.CardHolder,
		Last4:        c.Last4(),
		ExpiryDate:   c.ExpiryDate,
		CardType:     c.CardType,
		BankName:     c.BankName,
		CardNetwork:  c.CardNetwork,
		Balance:      models.AmountJSON(c.BalanceCents),
		DailyLimit:   models.AmountJSON(c.DailyLimitCents),
		MonthlyLimit: models.AmountJSON(c.MonthlyLimitCents),
	}
}

func (api *Api) ListCardsHandler(w http.ResponseWriter, r *http.Request) {
	id, ok := auth.IdentityFrom(r.Context())
	if !ok {
		api.writeError(w, r, apperr.Unauthorized("authentication required"))
		return
	}

	cards, err := api.payments.ListCards(r.Context(), id.UserID)
	if err != nil {
		api.writeError(w, r, err)
		return
	}

	out := make([]cardResponse, 0, len(cards))
	for _, c := range cards {
		out = append(out, newCardResponse(c))
	}
	writeJSON(w, http.StatusOK, map[string]any{"cards": out})
}

func (api *Api) ListCardTransactionsHandler(w http.ResponseWriter, r *http.Request) {
	id, ok := auth.IdentityFrom(r.Context())
	if !ok {
		api.writeError(w, r, apperr.Unauthorized("authentication required"))
		return
	}

	card, txns, err := api.payments.CardTransactions(r.Context(), id.UserID, chi.URLParam(r, "cardID"))
	if err != nil {
		api.writeError(w, r, err)
		return
	}

	method := fmt.Sprintf("%s *%s", card.CardNetwork, card.Last4())
	out := make([]transactionResponse, 0, len(txns))
	for _, t := range txns {
		kind, amount := "credit", t.AmountCents
		if amount < 0 {
			kind, amount = "debit", -amount
		}
		out = append(out, transactionResponse{
			ID:            t.ID,
			Type:          kind,
			Amount:        models.AmountJSON(amount),
			Date:          t.CreatedAt,
			Category:      t.Category,
			Merchant:      t.Merchant,
			Status:        t.Status,
			PaymentMethod: method,
		})
	}
	writeJSON(w, http.StatusOK, map[string]any{"transactions": out})
}
