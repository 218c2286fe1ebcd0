/*
Package money provides the fixed-point Amount used for every balance.

PURPOSE:
  Money must add up exactly, in any order. Amount stores a value as a
  signed 64-bit integer with 14 fractional bits (scale 2^14), so addition
  and subtraction are plain integer operations: exact and associative.

RANGE:
  ±562,949,953,421,311.99993896484375, step 1/16384 (≈0.000061).

TEXT:
  Parse accepts plain decimal text of any precision and rounds to the
  nearest grid point. String renders the shortest decimal that parses
  back to the same grid point, so "10.0001" survives a round trip even
  though its stored value is 10.0001220703125, and every String output
  is valid Parse input.

OVERFLOW:
  Add, Sub and Neg never wrap. They return ErrOverflow and the caller
  decides; the ledger treats it as fatal.

SEE ALSO:
  - ledger/account.go: the only place balances are mutated
*/
package money

import (
	"errors"
	"fmt"
	"math"
	"strings"

	"github.com/shopspring/decimal"
)

// =============================================================================
// CONSTANTS
// =============================================================================

const (
	// FractionBits is the number of binary fractional bits.
	FractionBits = 14

	one int64 = 1 << FractionBits
)

var scale = decimal.NewFromInt(one)

// =============================================================================
// ERRORS
// =============================================================================

var (
	// ErrOverflow is returned when a result does not fit the representable range.
	ErrOverflow = errors.New("amount overflow")

	// ErrSyntax is returned for text that is not a plain decimal number.
	ErrSyntax = errors.New("invalid decimal syntax")
)

// ParseError describes text that could not be converted to an Amount.
type ParseError struct {
	Input string
	Err   error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("parse amount %q: %v", e.Input, e.Err)
}

func (e *ParseError) Unwrap() error { return e.Err }

// =============================================================================
// AMOUNT
// =============================================================================

// Amount is a signed binary fixed-point number. The zero value is 0.
type Amount struct {
	raw int64
}

// Zero is the zero amount.
var Zero = Amount{}

// FromRaw builds an Amount from its scaled integer representation.
func FromRaw(raw int64) Amount { return Amount{raw: raw} }

// FromInt builds an Amount holding a whole number.
func FromInt(n int64) (Amount, error) {
	if n > math.MaxInt64>>FractionBits || n < math.MinInt64>>FractionBits {
		return Amount{}, ErrOverflow
	}
	return Amount{raw: n << FractionBits}, nil
}

// Parse converts decimal text to the nearest representable Amount.
func Parse(s string) (Amount, error) {
	text := strings.TrimSpace(s)
	if text == "" || strings.ContainsAny(text, "eE") {
		return Amount{}, &ParseError{Input: s, Err: ErrSyntax}
	}

	d, err := decimal.NewFromString(text)
	if err != nil {
		return Amount{}, &ParseError{Input: s, Err: ErrSyntax}
	}

	a, err := fromDecimal(d)
	if err != nil {
		return Amount{}, &ParseError{Input: s, Err: err}
	}
	return a, nil
}

// MustParse is Parse for literals known to be valid. It panics otherwise.
func MustParse(s string) Amount {
	a, err := Parse(s)
	if err != nil {
		panic(err)
	}
	return a
}

// fromDecimal rounds d onto the fixed-point grid.
func fromDecimal(d decimal.Decimal) (Amount, error) {
	scaled := d.Mul(scale).Round(0)
	if !scaled.BigInt().IsInt64() {
		return Amount{}, ErrOverflow
	}
	return Amount{raw: scaled.IntPart()}, nil
}

func (a Amount) Raw() int64 { return a.raw }

func (a Amount) IsZero() bool     { return a.raw == 0 }
func (a Amount) IsNegative() bool { return a.raw < 0 }
func (a Amount) IsPositive() bool { return a.raw > 0 }

// Cmp returns -1, 0 or +1 as a is less than, equal to or greater than b.
func (a Amount) Cmp(b Amount) int {
	switch {
	case a.raw < b.raw:
		return -1
	case a.raw > b.raw:
		return 1
	default:
		return 0
	}
}

func (a Amount) Equal(b Amount) bool       { return a.raw == b.raw }
func (a Amount) LessThan(b Amount) bool    { return a.raw < b.raw }
func (a Amount) GreaterThan(b Amount) bool { return a.raw > b.raw }

// Add returns a+b, or ErrOverflow.
func (a Amount) Add(b Amount) (Amount, error) {
	if (b.raw > 0 && a.raw > math.MaxInt64-b.raw) || (b.raw < 0 && a.raw < math.MinInt64-b.raw) {
		return Amount{}, ErrOverflow
	}
	return Amount{raw: a.raw + b.raw}, nil
}

// Sub returns a-b, or ErrOverflow.
func (a Amount) Sub(b Amount) (Amount, error) {
	if (b.raw < 0 && a.raw > math.MaxInt64+b.raw) || (b.raw > 0 && a.raw < math.MinInt64+b.raw) {
		return Amount{}, ErrOverflow
	}
	return Amount{raw: a.raw - b.raw}, nil
}

// Neg returns -a, or ErrOverflow for the most negative value.
func (a Amount) Neg() (Amount, error) {
	if a.raw == math.MinInt64 {
		return Amount{}, ErrOverflow
	}
	return Amount{raw: -a.raw}, nil
}

// Decimal returns the exact value held by a.
func (a Amount) Decimal() decimal.Decimal {
	// 1/2^14 has 14 decimal digits, so the division is exact.
	return decimal.New(a.raw, 0).DivRound(scale, FractionBits)
}

// String renders the shortest decimal that parses back to a.
func (a Amount) String() string {
	exact := a.Decimal()
	for places := int32(0); places < FractionBits; places++ {
		candidate := exact.Round(places)
		if back, err := fromDecimal(candidate); err == nil && back.raw == a.raw {
			return candidate.String()
		}
	}
	return exact.String()
}

// MarshalText implements encoding.TextMarshaler.
func (a Amount) MarshalText() ([]byte, error) {
	return []byte(a.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (a *Amount) UnmarshalText(b []byte) error {
	parsed, err := Parse(string(b))
	if err != nil {
		return err
	}
	*a = parsed
	return nil
}
