// Package quote defines the fixed-point price, size, and asset identifier
// types the rest of the bot trades in. Prices and sizes are backed by
// shopspring/decimal rather than float64 so that tick-boundary comparisons
// (e.g. best_bid == stop_loss) are exact instead of subject to binary
// floating-point rounding.
package quote

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// Price is a probability in the closed interval [0, 1].
type Price struct {
	d decimal.Decimal
}

// Size is a non-negative share quantity.
type Size struct {
	d decimal.Decimal
}

// TickSize is the minimum price increment a market trades at.
type TickSize struct {
	d decimal.Decimal
}

// DefaultTick is the standard two-decimal tick size used by most markets.
var DefaultTick = MustTick("0.01")

// NewPrice parses a decimal string into a Price, rejecting values outside [0,1].
func NewPrice(s string) (Price, error) {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return Price{}, fmt.Errorf("quote: invalid price %q: %w", s, err)
	}
	if d.LessThan(decimal.Zero) || d.GreaterThan(decimal.NewFromInt(1)) {
		return Price{}, fmt.Errorf("quote: price %q out of range [0,1]", s)
	}
	return Price{d: d}, nil
}

// MustPrice parses s into a Price and panics on error. Intended for constants
// and test fixtures, never for exchange-supplied data.
func MustPrice(s string) Price {
	p, err := NewPrice(s)
	if err != nil {
		panic(err)
	}
	return p
}

// NewSize parses a decimal string into a Size, rejecting negative values.
func NewSize(s string) (Size, error) {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return Size{}, fmt.Errorf("quote: invalid size %q: %w", s, err)
	}
	if d.LessThan(decimal.Zero) {
		return Size{}, fmt.Errorf("quote: size %q is negative", s)
	}
	return Size{d: d}, nil
}

// MustSize parses s into a Size and panics on error.
func MustSize(s string) Size {
	sz, err := NewSize(s)
	if err != nil {
		panic(err)
	}
	return sz
}

// ZeroSize is the additive identity.
var ZeroSize = Size{d: decimal.Zero}

// MustTick parses s into a TickSize and panics on error.
func MustTick(s string) TickSize {
	d, err := decimal.NewFromString(s)
	if err != nil {
		panic(err)
	}
	return TickSize{d: d}
}

func (p Price) String() string { return p.d.String() }
func (s Size) String() string  { return s.d.String() }
func (t TickSize) String() string { return t.d.String() }

func (p Price) Decimal() decimal.Decimal    { return p.d }
func (s Size) Decimal() decimal.Decimal     { return s.d }
func (t TickSize) Decimal() decimal.Decimal { return t.d }

func (p Price) IsZero() bool { return p.d.IsZero() }
func (s Size) IsZero() bool  { return s.d.IsZero() }

func (p Price) Equal(o Price) bool          { return p.d.Equal(o.d) }
func (p Price) LessThan(o Price) bool       { return p.d.LessThan(o.d) }
func (p Price) LessOrEqual(o Price) bool    { return p.d.LessThanOrEqual(o.d) }
func (p Price) GreaterThan(o Price) bool    { return p.d.GreaterThan(o.d) }
func (p Price) GreaterOrEqual(o Price) bool { return p.d.GreaterThanOrEqual(o.d) }

func (s Size) Equal(o Size) bool       { return s.d.Equal(o.d) }
func (s Size) LessThan(o Size) bool    { return s.d.LessThan(o.d) }
func (s Size) GreaterThan(o Size) bool { return s.d.GreaterThan(o.d) }

// Add returns s+o.
func (s Size) Add(o Size) Size { return Size{d: s.d.Add(o.d)} }

// Sub returns s-o, clamped at zero is NOT performed here — callers that must
// detect underflow should compare before subtracting (see position.Tracker).
func (s Size) Sub(o Size) Size { return Size{d: s.d.Sub(o.d)} }

// Min returns the smaller of s and o.
func (s Size) Min(o Size) Size {
	if s.LessThan(o) {
		return s
	}
	return o
}

// RoundDown rounds p down to the nearest multiple of t (toward zero).
func (p Price) RoundDown(t TickSize) Price {
	if t.d.IsZero() {
		return p
	}
	steps := p.d.Div(t.d).Floor()
	return Price{d: steps.Mul(t.d)}
}

// RoundUp rounds p up to the nearest multiple of t.
func (p Price) RoundUp(t TickSize) Price {
	if t.d.IsZero() {
		return p
	}
	steps := p.d.Div(t.d).Ceil()
	return Price{d: steps.Mul(t.d)}
}

// Mid returns the midpoint between two prices.
func Mid(a, b Price) Price {
	return Price{d: a.d.Add(b.d).Div(decimal.NewFromInt(2))}
}
