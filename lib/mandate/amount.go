package mandate

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
)

var (
	ErrInvalidAmount = errors.New("mandate: invalid amount")
	ErrSubCentAmount = errors.New("mandate: amount has more than two fractional digits")
)

// MaxCents caps amounts well below the point where float64 stops being able
// to carry every cent exactly.
const MaxCents int64 = 1_000_000_000_000_000

// ToCents converts a currency amount to integer cents. The amount must be
// finite, non-negative and written with at most two fractional digits.
func ToCents(amount float64) (int64, error) {
	switch {
	case math.IsNaN(amount), math.IsInf(amount, 0):
		return 0, fmt.Errorf("%w: %v is not finite", ErrInvalidAmount, amount)
	case amount < 0:
		return 0, fmt.Errorf("%w: %v is negative", ErrInvalidAmount, amount)
	case amount == 0:
		// covers negative zero
		return 0, nil
	}

	// The shortest representation that round-trips is the decimal the
	// caller actually wrote, so counting its digits is exact.
	whole, frac, _ := strings.Cut(strconv.FormatFloat(amount, 'f', -1, 64), ".")
	if len(frac) > 2 {
		return 0, fmt.Errorf("%w: %v", ErrSubCentAmount, amount)
	}

	units, err := strconv.ParseInt(whole, 10, 64)
	if err != nil || units > MaxCents/100 {
		return 0, fmt.Errorf("%w: %v is too large", ErrInvalidAmount, amount)
	}

	var cents int64
	if frac != "" {
		frac += strings.Repeat("0", 2-len(frac))
		if cents, err = strconv.ParseInt(frac, 10, 64); err != nil {
			return 0, fmt.Errorf("%w: %v", ErrInvalidAmount, err)
		}
	}

	result := units*100 + cents
	if result > MaxCents {
		return 0, fmt.Errorf("%w: %v is too large", ErrInvalidAmount, amount)
	}

	return result, nil
}

// FormatCents renders cents as the canonical decimal string that goes into
// a mandate: no trailing fractional zeros and no decimal point for whole
// amounts. 5000 is "50", 10050 is "100.5", 1999 is "19.99".
func FormatCents(cents int64) string {
	units, rest := cents/100, cents%100

	switch {
	case rest == 0:
		return strconv.FormatInt(units, 10)
	case rest%10 == 0:
		return fmt.Sprintf("%d.%d", units, rest/10)
	default:
		return fmt.Sprintf("%d.%02d", units, rest)
	}
}

// FormatAmount is ToCents followed by FormatCents.
func FormatAmount(amount float64) (string, error) {
	cents, err := ToCents(amount)
	if err != nil {
		return "", err
	}

	return FormatCents(cents), nil
}
