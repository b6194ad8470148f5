package fixed

import (
	"errors"

	"github.com/holiman/uint256"
)

// MaxFidelity is the fractional precision (decimal digits) at which exchange
// rates are fetched and applied. All price-oracle lookups use this fidelity
// so that conversion loses at most one unit of the target precision.
const MaxFidelity = 18

// ErrOverflow is returned when an intermediate or final value exceeds the
// representable 256-bit range.
var ErrOverflow = errors.New("fixed: arithmetic overflow")

// ErrDivisionByZero is returned when a divisor (typically a price) is zero.
var ErrDivisionByZero = errors.New("fixed: division by zero")

// MulDiv returns floor(a * b / denominator).
//
// The multiplication is carried out at full 512-bit width, so a*b may exceed
// 256 bits as long as the final quotient fits. The division truncates toward
// zero per the protocol-wide rounding policy.
func MulDiv(a, b, denominator *uint256.Int) (*uint256.Int, error) {
	if denominator.IsZero() {
		return nil, ErrDivisionByZero
	}
	z := new(uint256.Int)
	if _, overflow := z.MulDivOverflow(a, b, denominator); overflow {
		return nil, ErrOverflow
	}
	return z, nil
}

// Pow10 returns 10^n as a 256-bit integer.
// The largest representable power is 10^77.
func Pow10(n uint8) (*uint256.Int, error) {
	z := uint256.NewInt(1)
	ten := uint256.NewInt(10)
	for i := uint8(0); i < n; i++ {
		if _, overflow := z.MulOverflow(z, ten); overflow {
			return nil, ErrOverflow
		}
	}
	return z, nil
}

// Rescale moves amount from one fixed-point decimal precision to another.
//
// Scaling up multiplies by a power of ten and can overflow; scaling down
// divides and truncates. Equal precisions return a copy.
func Rescale(amount *uint256.Int, from, to uint8) (*uint256.Int, error) {
	switch {
	case from == to:
		return new(uint256.Int).Set(amount), nil
	case to > from:
		factor, err := Pow10(to - from)
		if err != nil {
			return nil, err
		}
		z := new(uint256.Int)
		if _, overflow := z.MulOverflow(amount, factor); overflow {
			return nil, ErrOverflow
		}
		return z, nil
	default:
		factor, err := Pow10(from - to)
		if err != nil {
			return nil, err
		}
		return new(uint256.Int).Div(amount, factor), nil
	}
}

// Convert applies an exchange rate to an amount, truncating.
//
// The price is the number of source-currency units per one target-currency
// unit, scaled by 10^precision (the convention the price oracle uses). The
// result is floor(amount * 10^precision / price).
//
// A zero price is a hard failure, never a silent zero: a missing route must
// abort the enclosing operation.
func Convert(amount, price *uint256.Int, precision uint8) (*uint256.Int, error) {
	if price.IsZero() {
		return nil, ErrDivisionByZero
	}
	unit, err := Pow10(precision)
	if err != nil {
		return nil, err
	}
	return MulDiv(amount, unit, price)
}
