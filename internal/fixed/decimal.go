// Package fixed provides the fixed-precision decimal value type used for
// every quantity and monetary figure in the system. Arithmetic always takes
// an explicit output scale and truncates toward zero; results are therefore
// deterministic and auditable. Native floating point is never used.
package fixed

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
)

// Common scales used across the domain.
const (
	// ScaleQuantity is the scale for stock and BOM quantities.
	ScaleQuantity int32 = 6
	// ScaleMoney is the scale for prices and monetary amounts.
	ScaleMoney int32 = 4
)

// ErrDivisionByZero indicates a scaled division with a zero divisor.
var ErrDivisionByZero = errors.New("fixed: division by zero")

// Decimal is an immutable fixed-precision decimal value. The zero value is 0.
type Decimal struct {
	d decimal.Decimal
}

// Parse converts a decimal string such as "10.500000" into a Decimal.
func Parse(s string) (Decimal, error) {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return Decimal{}, fmt.Errorf("fixed: parse %q: %w", s, err)
	}
	return Decimal{d: d}, nil
}

// MustParse parses s and panics on failure. Intended for constants and tests.
func MustParse(s string) Decimal {
	v, err := Parse(s)
	if err != nil {
		panic(err)
	}
	return v
}

// FromInt converts an integer to a Decimal.
func FromInt(n int64) Decimal {
	return Decimal{d: decimal.NewFromInt(n)}
}

// Zero returns the zero value.
func Zero() Decimal {
	return Decimal{}
}

// Add returns a+b truncated to the requested scale.
func (a Decimal) Add(b Decimal, scale int32) Decimal {
	return Decimal{d: a.d.Add(b.d).Truncate(scale)}
}

// Sub returns a-b truncated to the requested scale.
func (a Decimal) Sub(b Decimal, scale int32) Decimal {
	return Decimal{d: a.d.Sub(b.d).Truncate(scale)}
}

// Mul returns a*b truncated to the requested scale.
func (a Decimal) Mul(b Decimal, scale int32) Decimal {
	return Decimal{d: a.d.Mul(b.d).Truncate(scale)}
}

// Div returns a/b truncated toward zero at the requested scale. The
// quotient is computed exactly via integer division, so a long run of
// nines in the true quotient can never carry into the kept digits.
func (a Decimal) Div(b Decimal, scale int32) (Decimal, error) {
	if b.d.IsZero() {
		return Decimal{}, ErrDivisionByZero
	}
	q, _ := a.d.QuoRem(b.d, scale)
	return Decimal{d: q}, nil
}

// Neg returns -a.
func (a Decimal) Neg() Decimal {
	return Decimal{d: a.d.Neg()}
}

// Abs returns |a|.
func (a Decimal) Abs() Decimal {
	return Decimal{d: a.d.Abs()}
}

// Cmp compares a and b exactly: -1 if a<b, 0 if a==b, +1 if a>b.
func (a Decimal) Cmp(b Decimal) int {
	return a.d.Cmp(b.d)
}

// Equal reports whether a and b represent the same value.
func (a Decimal) Equal(b Decimal) bool {
	return a.d.Equal(b.d)
}

// Sign returns -1, 0 or +1.
func (a Decimal) Sign() int {
	return a.d.Sign()
}

// IsZero reports whether a is exactly zero.
func (a Decimal) IsZero() bool {
	return a.d.IsZero()
}

// IsNegative reports whether a < 0.
func (a Decimal) IsNegative() bool {
	return a.d.IsNegative()
}

// IsPositive reports whether a > 0.
func (a Decimal) IsPositive() bool {
	return a.d.IsPositive()
}

// StringFixed renders the value with exactly scale fractional digits.
// Snapshots and wire representations use this form.
func (a Decimal) StringFixed(scale int32) string {
	return a.d.StringFixed(scale)
}

// String renders the value with its natural number of digits.
func (a Decimal) String() string {
	return a.d.String()
}

// MarshalJSON encodes the value as a JSON string to avoid any float round trip.
func (a Decimal) MarshalJSON() ([]byte, error) {
	return []byte(`"` + a.d.String() + `"`), nil
}

// UnmarshalJSON accepts both quoted and bare decimal literals.
func (a *Decimal) UnmarshalJSON(data []byte) error {
	var d decimal.Decimal
	if err := d.UnmarshalJSON(data); err != nil {
		return fmt.Errorf("fixed: unmarshal: %w", err)
	}
	a.d = d
	return nil
}

// Value implements driver.Valuer via the underlying decimal so repositories
// can bind Decimal parameters directly.
func (a Decimal) Value() (interface{}, error) {
	return a.d.Value()
}

// Scan implements sql.Scanner.
func (a *Decimal) Scan(src interface{}) error {
	return a.d.Scan(src)
}
