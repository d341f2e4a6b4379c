// Package moneypkg converts between user supplied decimal amounts and stored cents.
//
// Balances are only ever stored and compared as integer cents. Decimal values exist
// at the API boundary and nowhere else.
package moneypkg

import (
	"errors"
	"math"
	"strings"

	"github.com/shopspring/decimal"
)

// ErrInvalidAmount indicates that the input is not a finite decimal number
// representable in cents.
var ErrInvalidAmount = errors.New("invalid amount")

var (
	maxCents = decimal.NewFromInt(math.MaxInt64)
	minCents = decimal.NewFromInt(math.MinInt64)
)

const (
	// maxAmountLength bounds the textual amount before it is parsed.
	maxAmountLength = 64
	// maxExponent is the largest exponent a non-zero amount in the int64 cent range can have.
	maxExponent = 18
)

// ToCents multiplies the decimal amount by 100 and rounds to the nearest cent.
//
// Non-numeric, non-finite and out of range input returns ErrInvalidAmount.
// The sign is preserved; callers decide whether negative or zero amounts are allowed.
func ToCents(amount string) (int64, error) {
	amount = strings.TrimSpace(amount)
	if len(amount) > maxAmountLength {
		return 0, ErrInvalidAmount
	}

	d, err := decimal.NewFromString(amount)
	if err != nil {
		return 0, ErrInvalidAmount
	}

	// Scientific notation can carry exponents that would make Shift and Round
	// allocate huge integers, so bound the magnitude first.
	switch {
	case d.IsZero():
		return 0, nil
	case d.Exponent() > maxExponent:
		return 0, ErrInvalidAmount
	case int64(d.Exponent())+int64(d.NumDigits()) < -2:
		// |d| < 0.001 rounds to zero cents.
		return 0, nil
	}

	cents := d.Shift(2).Round(0)
	if cents.GreaterThan(maxCents) || cents.LessThan(minCents) {
		return 0, ErrInvalidAmount
	}

	return cents.IntPart(), nil
}

// FromCents returns the cents as a decimal amount with two places.
func FromCents(cents int64) decimal.Decimal {
	return decimal.New(cents, -2)
}

// Format renders cents fixed to two decimal places, e.g. 32550 -> "325.50".
func Format(cents int64) string {
	return FromCents(cents).StringFixed(2)
}

// Amount is a cents value rendered in JSON as a decimal number with two places.
type Amount int64

// MarshalJSON implements json.Marshaler.
func (a Amount) MarshalJSON() ([]byte, error) {
	return []byte(Format(int64(a))), nil
}

// UnmarshalJSON implements json.Unmarshaler. It accepts numbers and numeric strings.
func (a *Amount) UnmarshalJSON(b []byte) error {
	cents, err := ToCents(strings.Trim(string(b), `"`))
	if err != nil {
		return err
	}

	*a = Amount(cents)

	return nil
}

// Total is a sum of cents. It is kept as a decimal so it cannot overflow.
type Total struct {
	cents decimal.Decimal
}

// Sum adds up amounts in cents.
func Sum(cents ...int64) Total {
	total := decimal.Zero
	for _, c := range cents {
		total = total.Add(decimal.NewFromInt(c))
	}

	return Total{cents: total}
}

// String renders the total fixed to two decimal places.
func (t Total) String() string {
	return t.cents.Shift(-2).StringFixed(2)
}

// MarshalJSON implements json.Marshaler.
func (t Total) MarshalJSON() ([]byte, error) {
	return []byte(t.String()), nil
}
