package money

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
)

// Paise is an amount in minor units (1 rupee = 100 paise). All settlement
// arithmetic stays in int64 paise; decimal is used only at the string
// boundary so amounts never pass through a float.
type Paise int64

var ErrInvalidAmount = errors.New("invalid amount")

var hundred = decimal.NewFromInt(100)

// FromRupees parses a rupee amount string ("1500", "1500.50") into paise.
// More than two fractional digits is rejected rather than rounded.
func FromRupees(s string) (Paise, error) {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return 0, fmt.Errorf("%w: %q", ErrInvalidAmount, s)
	}
	p := d.Mul(hundred)
	if !p.IsInteger() {
		return 0, fmt.Errorf("%w: %q has sub-paise precision", ErrInvalidAmount, s)
	}
	return Paise(p.IntPart()), nil
}

// Rupees returns the exact decimal rupee value.
func (p Paise) Rupees() decimal.Decimal {
	return decimal.New(int64(p), -2)
}

func (p Paise) String() string {
	return p.Rupees().StringFixed(2)
}

func (p Paise) Abs() Paise {
	if p < 0 {
		return -p
	}
	return p
}

// roundHalfUpDiv computes round(n / d) with half-up semantics, i.e.
// floor(n/d + 0.5). d must be positive.
func roundHalfUpDiv(n, d int64) int64 {
	n += d / 2
	q := n / d
	if n%d != 0 && n < 0 {
		q--
	}
	return q
}

// MulDivBps applies a basis-point rate: round(p * bps / 10000), half-up.
func (p Paise) MulDivBps(bps int64) Paise {
	return Paise(roundHalfUpDiv(int64(p)*bps, 10000))
}

// MulDivPct applies a whole-percent rate: round(p * pct / 100), half-up.
func (p Paise) MulDivPct(pct int64) Paise {
	return Paise(roundHalfUpDiv(int64(p)*pct, 100))
}

// WithinBps reports whether other deviates from p by strictly less than
// tolBps basis points of p (a deviation of exactly the tolerance is out of
// band). A zero base never satisfies a percentage comparison; callers must
// handle that case on the raw delta instead.
func (p Paise) WithinBps(other Paise, tolBps int64) bool {
	if p == 0 {
		return false
	}
	delta := int64((p - other).Abs())
	return delta*10000 < int64(p.Abs())*tolBps
}
