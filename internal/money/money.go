// Package money defines the integer-cents monetary type used everywhere in
// the simulator. No floating-point representation of money is permitted to
// leak into storage, transport, or comparison; this is an absolute
// invariant of the system.
package money

import (
	"fmt"
	"math"

	"github.com/shopspring/decimal"
)

// Cents is a signed 64-bit integer-cents monetary amount.
type Cents int64

// Zero is the additive identity.
const Zero Cents = 0

// Add returns a+b, panicking on overflow. Overflow in money arithmetic is a
// programming error, not a recoverable runtime condition.
func (a Cents) Add(b Cents) Cents {
	sum := a + b
	if (b > 0 && sum < a) || (b < 0 && sum > a) {
		panic(fmt.Sprintf("money: overflow adding %d + %d", a, b))
	}
	return sum
}

// Sub returns a-b, panicking on overflow.
func (a Cents) Sub(b Cents) Cents {
	return a.Add(-b)
}

// Neg returns -a.
func (a Cents) Neg() Cents {
	return -a
}

// Max returns the greater of a, b.
func Max(a, b Cents) Cents {
	if a > b {
		return a
	}
	return b
}

// Min returns the lesser of a, b.
func Min(a, b Cents) Cents {
	if a < b {
		return a
	}
	return b
}

// Abs returns the absolute value of a.
func (a Cents) Abs() Cents {
	if a < 0 {
		return -a
	}
	return a
}

// IsPositive reports whether a > 0.
func (a Cents) IsPositive() bool {
	return a > 0
}

// IsNegative reports whether a < 0.
func (a Cents) IsNegative() bool {
	return a < 0
}

// AsFloat64 converts to a float64 for use as a policy DSL context field.
// This is a read-only, one-way conversion for evaluation purposes; it is
// never used as the authoritative representation.
func (a Cents) AsFloat64() float64 {
	return float64(a)
}

// FromDecimal floor-rounds a rational intermediate down to the nearest
// whole cent. Intermediate computation may use rationals, but final accrual
// always rounds deterministically at the boundary. Used by the cost accruer
// when converting basis-point rates applied via shopspring/decimal back
// into Cents.
func FromDecimal(d decimal.Decimal) Cents {
	return Cents(d.Floor().IntPart())
}

// FromFloatRoundDown floor-rounds a float64 policy-action amount (e.g. a
// collateral post/withdraw amount computed by the DSL's Compute sub-
// language) down to whole cents: action amounts in money contexts are
// always floor-rounded to integer cents.
func FromFloatRoundDown(f float64) Cents {
	return Cents(math.Floor(f))
}

// ToDecimal exposes a Cents amount as a decimal.Decimal for callers that
// need to combine it with a rational rate (e.g. applying overdraft bps).
func (a Cents) ToDecimal() decimal.Decimal {
	return decimal.NewFromInt(int64(a))
}

// String renders the amount as dollars.cents for logs and events.
func (a Cents) String() string {
	neg := ""
	v := int64(a)
	if v < 0 {
		neg = "-"
		v = -v
	}
	return fmt.Sprintf("%s%d.%02d", neg, v/100, v%100)
}
