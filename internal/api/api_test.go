package api

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/finsec-io/finsec-api/internal/auth"
	"github.com/finsec-io/finsec-api/internal/config"
	"github.com/finsec-io/finsec-api/internal/database"
	"github.com/finsec-io/finsec-api/internal/events"
	"github.com/finsec-io/finsec-api/internal/models"
	"github.com/finsec-io/finsec-api/internal/payments"
	"github.com/finsec-io/finsec-api/internal/receipts"
	"github.com/finsec-io/finsec-api/internal/store"
	"github.com/pquerna/otp/totp"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testPassword = "Corr3ct-Horse"

type testEnv struct {
	t     *testing.T
	api   *Api
	store *store.Store
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	ctx := context.Background()
	db, err := database.OpenSQLite(ctx, filepath.Join(t.TempDir(), "api.db"), zerolog.Nop())
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	st := store.New(db)
	publisher := events.NewFallback(zerolog.Nop())
	sessions := auth.NewSessionManager(st, 7*24*time.Hour, zerolog.Nop())
	tokens := auth.NewTokenIssuer("test-secret", "finsec-test", time.Hour)
	authService := auth.NewService(st, sessions, tokens, publisher, "FinSec Banking", zerolog.Nop())
	paymentService := payments.NewService(st, publisher, receipts.Discard{}, zerolog.Nop())

	cfg := config.Config{
		APIPort: 5000,
		CORS:    config.CORSConfig{AllowedOrigins: []string{"http://localhost:*"}},
	}
	api, err := NewApi(cfg, authService, paymentService, zerolog.Nop())
	require.NoError(t, err)

	return &testEnv{t: t, api: api, store: st}
}

func (e *testEnv) do(method, path, token string, body any) *httptest.ResponseRecorder {
	e.t.Helper()
	var buf bytes.Buffer
	switch b := body.(type) {
	case nil:
	case string:
		buf.WriteString(b)
	default:
		require.NoError(e.t, json.NewEncoder(&buf).Encode(b))
	}

	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", "api-test")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	e.api.Routes().ServeHTTP(rec, req)
	return rec
}

func (e *testEnv) createUser(email string, mutate func(*models.User)) *models.User {
	hash, err := auth.HashPassword(testPassword)
	require.NoError(e.t, err)
	user := &models.User{Email: email, PasswordHash: hash, FirstName: "Test", LastName: "User", IsActive: true}
	if mutate != nil {
		mutate(user)
	}
	require.NoError(e.t, e.store.CreateUser(context.Background(), user))
	return user
}

func (e *testEnv) login(email string) string {
	rec := e.do(http.MethodPost, "/auth/login", "", map[string]string{"email": email, "password": testPassword})
	require.Equal(e.t, http.StatusOK, rec.Code, rec.Body.String())
	var body map[string]any
	require.NoError(e.t, json.Unmarshal(rec.Body.Bytes(), &body))
	token, _ := body["access_token"].(string)
	require.NotEmpty(e.t, token)
	return token
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body), rec.Body.String())
	return body
}

func TestNewApi(t *testing.T) {
	t.Run("InvalidConfigZeroPort", func(t *testing.T) {
		_, err := NewApi(config.Config{}, &auth.Service{}, &payments.Service{}, zerolog.Nop())
		assert.ErrorContains(t, err, "port")
	})

	t.Run("MissingServices", func(t *testing.T) {
		_, err := NewApi(config.Config{APIPort: 5000}, nil, nil, zerolog.Nop())
		assert.Error(t, err)
	})
}

func TestHeartbeat(t *testing.T) {
	env := newTestEnv(t)
	rec := env.do(http.MethodGet, "/heartbeat", "", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())
}

func TestUnknownRoute(t *testing.T) {
	env := newTestEnv(t)
	rec := env.do(http.MethodGet, "/nope", "", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "Not found", decodeBody(t, rec)["error"])
}

func TestCORSPreflight(t *testing.T) {
	env := newTestEnv(t)
	req := httptest.NewRequest(http.MethodOptions, "/auth/login", nil)
	req.Header.Set("Origin", "http://localhost:3000")
	req.Header.Set("Access-Control-Request-Method", http.MethodPost)
	rec := httptest.NewRecorder()
	env.api.Routes().ServeHTTP(rec, req)

	assert.Equal(t, "http://localhost:3000", rec.Header().Get("Access-Control-Allow-Origin"))
}

func TestLoginLogoutFlow(t *testing.T) {
	env := newTestEnv(t)
	user := env.createUser("flow@example.com", nil)

	rec := env.do(http.MethodPost, "/auth/login", "", map[string]string{"email": "flow@example.com", "password": testPassword})
	require.Equal(t, http.StatusOK, rec.Code)
	body := decodeBody(t, rec)
	assert.Equal(t, "Login successful", body["message"])
	assert.NotEmpty(t, body["session_id"])
	userJSON := body["user"].(map[string]any)
	assert.Equal(t, user.ID, userJSON["id"])
	assert.NotContains(t, rec.Body.String(), "password")
	assert.NotContains(t, rec.Body.String(), "mfaSecret")
	token := body["access_token"].(string)

	rec = env.do(http.MethodGet, "/bills", token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"bills":[]}`, rec.Body.String())

	rec = env.do(http.MethodPost, "/auth/logout", token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "Logged out successfully", decodeBody(t, rec)["message"])

	rec = env.do(http.MethodGet, "/bills", token, nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = env.do(http.MethodPost, "/auth/logout", token, nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestLoginWithLongUserAgent(t *testing.T) {
	env := newTestEnv(t)
	user := env.createUser("agent@example.com", nil)

	req := httptest.NewRequest(http.MethodPost, "/auth/login",
		strings.NewReader(`{"email":"agent@example.com","password":"`+testPassword+`"}`))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", strings.Repeat("A", 300))
	rec := httptest.NewRecorder()
	env.api.Routes().ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	session, err := env.store.GetActiveSession(context.Background(), user.ID, decodeBody(t, rec)["session_id"].(string))
	require.NoError(t, err)
	assert.Equal(t, strings.Repeat("A", 255), session.DeviceInfo)
}

func TestLoginErrors(t *testing.T) {
	env := newTestEnv(t)
	env.createUser("user@example.com", nil)
	env.createUser("inactive@example.com", func(u *models.User) { u.IsActive = false })

	tests := []struct {
		name       string
		body       any
		wantStatus int
		wantError  string
		wantDetail string
	}{
		{"missing password", map[string]string{"email": "user@example.com"}, http.StatusBadRequest, "Invalid request", "password is required"},
		{"missing email", map[string]string{"password": testPassword}, http.StatusBadRequest, "Invalid request", "email is required"},
		{"malformed json", `{"email":`, http.StatusBadRequest, "Invalid request", ""},
		{"wrong password", map[string]string{"email": "user@example.com", "password": "Wr0ng-pass"}, http.StatusUnauthorized, "Unauthorized", "Invalid credentials"},
		{"unknown email", map[string]string{"email": "ghost@example.com", "password": testPassword}, http.StatusUnauthorized, "Unauthorized", "Invalid credentials"},
		{"malformed email", map[string]string{"email": "nobody", "password": "x"}, http.StatusUnauthorized, "Unauthorized", "Invalid credentials"},
		{"inactive", map[string]string{"email": "inactive@example.com", "password": testPassword}, http.StatusForbidden, "Forbidden", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := env.do(http.MethodPost, "/auth/login", "", tt.body)
			assert.Equal(t, tt.wantStatus, rec.Code)
			body := decodeBody(t, rec)
			assert.Equal(t, tt.wantError, body["error"])
			if tt.wantDetail != "" {
				assert.Equal(t, tt.wantDetail, body["details"])
			}
		})
	}
}

func TestMFAFlow(t *testing.T) {
	env := newTestEnv(t)
	user := env.createUser("mfa@example.com", nil)

	rec := env.do(http.MethodPost, "/auth/generate-mfa-secret", "", map[string]string{"userId": user.ID})
	require.Equal(t, http.StatusOK, rec.Code)
	body := decodeBody(t, rec)
	secret := body["mfa_secret"].(string)
	assert.Contains(t, body["totp_uri"], "otpauth://totp/")

	rec = env.do(http.MethodPost, "/auth/generate-mfa-secret", "", map[string]string{"userId": user.ID})
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec = env.do(http.MethodPost, "/auth/login", "", map[string]string{"email": user.Email, "password": testPassword})
	require.Equal(t, http.StatusOK, rec.Code)
	body = decodeBody(t, rec)
	assert.Equal(t, true, body["requireMfa"])
	assert.Equal(t, user.ID, body["userId"])
	assert.NotContains(t, body, "access_token")

	code, err := totp.GenerateCode(secret, time.Now())
	require.NoError(t, err)

	rec = env.do(http.MethodPost, "/auth/verify-mfa", "", map[string]string{
		"userId": user.ID, "otpCode": code, "email": user.Email, "password": "Wr0ng-pass",
	})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = env.do(http.MethodPost, "/auth/verify-mfa", "", map[string]string{"userId": user.ID})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = env.do(http.MethodPost, "/auth/verify-mfa", "", map[string]string{
		"userId": user.ID, "otpCode": code, "email": user.Email, "password": testPassword,
	})
	require.Equal(t, http.StatusOK, rec.Code)
	body = decodeBody(t, rec)
	assert.Equal(t, "MFA verification successful", body["message"])
	token := body["access_token"].(string)

	rec = env.do(http.MethodGet, "/bills", token, nil)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestGenerateMFASecretErrors(t *testing.T) {
	env := newTestEnv(t)
	inactive := env.createUser("inactive@example.com", func(u *models.User) { u.IsActive = false })

	assert.Equal(t, http.StatusBadRequest, env.do(http.MethodPost, "/auth/generate-mfa-secret", "", map[string]string{}).Code)
	assert.Equal(t, http.StatusNotFound, env.do(http.MethodPost, "/auth/generate-mfa-secret", "", map[string]string{"userId": "missing"}).Code)
	assert.Equal(t, http.StatusForbidden, env.do(http.MethodPost, "/auth/generate-mfa-secret", "", map[string]string{"userId": inactive.ID}).Code)
}

func TestLogoutOverrideRequiresAdmin(t *testing.T) {
	env := newTestEnv(t)
	env.createUser("caller@example.com", nil)
	victim := env.createUser("victim@example.com", nil)
	callerToken := env.login("caller@example.com")
	victimToken := env.login(victim.Email)

	rec := env.do(http.MethodPost, "/auth/login", "", map[string]string{"email": victim.Email, "password": testPassword})
	require.Equal(t, http.StatusOK, rec.Code)
	victimSession := decodeBody(t, rec)["session_id"].(string)

	rec = env.do(http.MethodPost, "/auth/logout", callerToken, map[string]string{"userId": victim.ID, "sessionId": victimSession})
	require.Equal(t, http.StatusOK, rec.Code)

	assert.Equal(t, http.StatusOK, env.do(http.MethodGet, "/bills", victimToken, nil).Code)
	assert.Equal(t, http.StatusUnauthorized, env.do(http.MethodGet, "/bills", callerToken, nil).Code)
}

func TestPayBill(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	user := env.createUser("payer@example.com", nil)
	other := env.createUser("other@example.com", nil)
	token := env.login(user.Email)

	card := &models.Card{UserID: user.ID, CardHolder: "Payer", CardNumber: "4111111111111111", ExpiryDate: "12/30",
		CardType: "debit", BankName: "FinSec Bank", CardNetwork: "visa", BalanceCents: 500000}
	require.NoError(t, env.store.CreateCard(ctx, card))
	foreign := &models.Card{UserID: other.ID, CardHolder: "Other", CardNumber: "5500000000000004", ExpiryDate: "12/30",
		CardType: "credit", BankName: "FinSec Bank", CardNetwork: "mastercard", BalanceCents: 500000}
	require.NoError(t, env.store.CreateCard(ctx, foreign))

	electric := &models.Bill{UserID: user.ID, Name: "Electric Co", Category: "utilities", AmountCents: 15000, DueDate: time.Now().Add(72 * time.Hour)}
	require.NoError(t, env.store.CreateBill(ctx, electric))
	water := &models.Bill{UserID: user.ID, Name: "Water", Category: "utilities", AmountCents: 4000, DueDate: time.Now().Add(72 * time.Hour)}
	require.NoError(t, env.store.CreateBill(ctx, water))

	rec := env.do(http.MethodPost, "/bills/pay", token, `{"billId":"`+electric.ID+`","amount":150.00,"paymentMethodId":"`+card.ID+`"}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Contains(t, rec.Body.String(), `"card_balance":4850.00`)
	body := decodeBody(t, rec)
	assert.Equal(t, "paid", body["status"])
	assert.Equal(t, electric.ID, body["billId"])
	assert.NotEmpty(t, body["transaction_id"])

	rec = env.do(http.MethodPost, "/bills/pay", token, map[string]any{"billId": electric.ID, "amount": "150.00", "paymentMethodId": card.ID})
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec = env.do(http.MethodPost, "/bills/pay", token, map[string]any{"billId": water.ID, "amount": "40.00", "paymentMethodId": foreign.ID})
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = env.do(http.MethodPost, "/bills/pay", token, map[string]any{"billId": water.ID, "amount": "40.00", "paymentMethodId": "{" + card.ID + "}"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "Invalid request", decodeBody(t, rec)["error"])

	rec = env.do(http.MethodPost, "/bills/pay", token, map[string]any{"billId": water.ID, "amount": "forty", "paymentMethodId": card.ID})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "Invalid amount", decodeBody(t, rec)["error"])

	rec = env.do(http.MethodPost, "/bills/pay", token, map[string]any{"billId": water.ID, "amount": "40.00", "paymentMethodId": card.ID})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"card_balance":4810.00`)

	rec = env.do(http.MethodGet, "/bills", token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"amount":150.00`)
	assert.Contains(t, rec.Body.String(), `"status":"paid"`)
}

func TestPayBillRequiresAuth(t *testing.T) {
	env := newTestEnv(t)
	rec := env.do(http.MethodPost, "/bills/pay", "", map[string]string{"billId": "x"})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, "Unauthorized", decodeBody(t, rec)["error"])

	rec = env.do(http.MethodPost, "/bills/pay", "not-a-token", map[string]string{"billId": "x"})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestCardsAndTransactions(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	user := env.createUser("cards@example.com", nil)
	other := env.createUser("notmine@example.com", nil)
	token := env.login(user.Email)

	card := &models.Card{UserID: user.ID, CardHolder: "Cards", CardNumber: "4111111111111111", ExpiryDate: "12/30",
		CardType: "debit", BankName: "FinSec Bank", CardNetwork: "visa", BalanceCents: 500000}
	require.NoError(t, env.store.CreateCard(ctx, card))
	foreign := &models.Card{UserID: other.ID, CardHolder: "Other", CardNumber: "5500000000000004", ExpiryDate: "12/30",
		CardType: "credit", BankName: "FinSec Bank", CardNetwork: "mastercard", BalanceCents: 100}
	require.NoError(t, env.store.CreateCard(ctx, foreign))
	bill := &models.Bill{UserID: user.ID, Name: "Electric Co", Category: "utilities", AmountCents: 15000, DueDate: time.Now().Add(72 * time.Hour)}
	require.NoError(t, env.store.CreateBill(ctx, bill))

	rec := env.do(http.MethodPost, "/bills/pay", token, map[string]any{"billId": bill.ID, "amount": 150, "paymentMethodId": card.ID})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec = env.do(http.MethodGet, "/cards", token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"balance":4850.00`)
	assert.Contains(t, rec.Body.String(), `"last4":"1111"`)
	assert.NotContains(t, rec.Body.String(), "4111111111111111")
	assert.NotContains(t, rec.Body.String(), foreign.ID)

	rec = env.do(http.MethodGet, "/cards/"+card.ID+"/transactions", token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"amount":150.00`)
	assert.Contains(t, rec.Body.String(), `"type":"debit"`)
	assert.Contains(t, rec.Body.String(), `"merchant":"Electric Co"`)
	assert.Contains(t, rec.Body.String(), `"paymentMethod":"visa *1111"`)

	rec = env.do(http.MethodGet, "/cards/"+foreign.ID+"/transactions", token, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = env.do(http.MethodGet, "/cards", "", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}
