package models

import (
	"encoding/json"
	"errors"

	"github.com/shopspring/decimal"
)

var ErrSubCentAmount = errors.New("amount has more than two decimal places")

// CentsFromDecimal converts a currency amount to integer cents.
// Amounts with sub-cent precision are rejected rather than rounded.
func CentsFromDecimal(d decimal.Decimal) (int64, error) {
	shifted := d.Shift(2)
	if !shifted.IsInteger() {
		return 0, ErrSubCentAmount
	}
	return shifted.IntPart(), nil
}

// DecimalFromCents converts integer cents back to a currency amount.
func DecimalFromCents(cents int64) decimal.Decimal {
	return decimal.New(cents, -2)
}

// AmountJSON renders cents as a bare JSON number with two decimals, e.g. 4850.00.
func AmountJSON(cents int64) json.Number {
	return json.Number(DecimalFromCents(cents).StringFixed(2))
}
