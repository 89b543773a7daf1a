package apperr

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestHTTPStatus(t *testing.T) {
	cases := map[error]int{
		InvalidRequest("x"):                          http.StatusBadRequest,
		InvalidAmount("x"):                           http.StatusBadRequest,
		InsufficientBalance("x"):                     http.StatusBadRequest,
		Unauthorized("x"):                            http.StatusUnauthorized,
		Forbidden("x"):                               http.StatusForbidden,
		NotFound("x"):                                http.StatusNotFound,
		Conflict("x"):                                http.StatusConflict,
		PaymentProcessingFailed(errors.New("disk")):  http.StatusInternalServerError,
		errors.New("plain"):                          http.StatusInternalServerError,
		fmt.Errorf("wrapped: %w", Forbidden("deep")): http.StatusForbidden,
	}
	for err, status := range cases {
		assert.Equal(t, status, HTTPStatus(err), err.Error())
	}
}

func TestIsMatchesKind(t *testing.T) {
	err := fmt.Errorf("login: %w", Unauthorized("Invalid credentials"))
	assert.True(t, errors.Is(err, Unauthorized("")))
	assert.False(t, errors.Is(err, Forbidden("")))
}

func TestCauseIsHiddenFromMessage(t *testing.T) {
	cause := errors.New("pq: deadlock detected")
	err := PaymentProcessingFailed(cause)

	assert.ErrorIs(t, err, cause)
	assert.Equal(t, KindPaymentProcessingFailed, KindOf(err))
	assert.NotContains(t, Message(err), "deadlock")
	assert.Contains(t, err.Error(), "deadlock")
}

func TestWriteJSON(t *testing.T) {
	rec := httptest.NewRecorder()
	WriteJSON(rec, fmt.Errorf("wrapped: %w", errors.New("boom")))

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))

	var body Response
	assert.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, string(KindInternal), body.Error)
	assert.NotContains(t, body.Details, "boom")

	rec = httptest.NewRecorder()
	WriteJSON(rec, Forbidden("card does not belong to you"))
	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.JSONEq(t, `{"error":"Forbidden","details":"card does not belong to you"}`, rec.Body.String())
}
