package money

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
)

var (
	ErrEmptyAmount    = errors.New("amount is empty")
	ErrInvalidAmount  = errors.New("invalid amount format")
	ErrNonPositive    = errors.New("amount must be greater than zero")
	ErrTooManyDecimal = errors.New("amount supports at most 2 decimal places")
)

// Amount is a monetary value in minor units (cents). Every donation amount
// is stored this way so conversions to provider unit conventions are exact.
type Amount int64

// Parse converts a decimal string like "10", "10.5" or "10.50" into minor
// units. It rejects zero, negative and malformed values.
func Parse(value string) (Amount, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return 0, ErrEmptyAmount
	}

	neg := strings.HasPrefix(value, "-")
	if neg {
		return 0, ErrNonPositive
	}

	intPart := value
	fracPart := ""
	if i := strings.IndexByte(value, '.'); i >= 0 {
		intPart = value[:i]
		fracPart = value[i+1:]
		if strings.IndexByte(fracPart, '.') >= 0 {
			return 0, ErrInvalidAmount
		}
	}
	if intPart == "" {
		intPart = "0"
	}
	if !isDigits(intPart) || (fracPart != "" && !isDigits(fracPart)) {
		return 0, ErrInvalidAmount
	}
	if len(fracPart) > 2 {
		return 0, ErrTooManyDecimal
	}
	for len(fracPart) < 2 {
		fracPart += "0"
	}

	intVal, err := strconv.ParseInt(intPart, 10, 64)
	if err != nil {
		return 0, ErrInvalidAmount
	}
	fracVal, err := strconv.ParseInt(fracPart, 10, 64)
	if err != nil {
		return 0, ErrInvalidAmount
	}

	// intVal*100 must not wrap past the int64 range and sneak back in as a
	// small positive amount.
	if intVal > (math.MaxInt64-99)/100 {
		return 0, ErrInvalidAmount
	}

	cents := intVal*100 + fracVal
	if cents <= 0 {
		return 0, ErrNonPositive
	}
	return Amount(cents), nil
}

// MinorUnits returns the amount as an integer count of minor units, the
// convention Stripe and PayPal APIs expect.
func (a Amount) MinorUnits() int64 {
	return int64(a)
}

// MajorUnits returns the amount in major units, truncated to a whole number.
// Xendit invoice amounts are whole major units.
func (a Amount) MajorUnits() int64 {
	return int64(a) / 100
}

// MajorFloat returns the amount in major units as a decimal number, the
// convention Flutterwave expects.
func (a Amount) MajorFloat() float64 {
	return float64(a) / 100
}

// String formats the amount as a 2-decimal string, e.g. "10.00". PayPal
// order values use this representation.
func (a Amount) String() string {
	return fmt.Sprintf("%d.%02d", int64(a)/100, int64(a)%100)
}

// FromMinorUnits builds an Amount from a raw minor-unit count.
func FromMinorUnits(v int64) Amount {
	return Amount(v)
}

// MarshalJSON renders the amount as a 2-decimal string, matching how callers
// submit it.
func (a Amount) MarshalJSON() ([]byte, error) {
	return []byte(`"` + a.String() + `"`), nil
}

// UnmarshalJSON accepts either a JSON number or a quoted decimal string.
func (a *Amount) UnmarshalJSON(data []byte) error {
	s := strings.Trim(string(data), `"`)
	parsed, err := Parse(s)
	if err != nil {
		return err
	}
	*a = parsed
	return nil
}

func isDigits(value string) bool {
	for _, r := range value {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}
