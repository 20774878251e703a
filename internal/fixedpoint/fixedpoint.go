package fixedpoint

import (
	"errors"
	"math/big"

	"github.com/shopspring/decimal"
)

// Prices are unsigned integers scaled by Unit (10^18) and live in the
// uint256 domain. Operations that would leave that domain fail instead
// of wrapping.
var (
	// Unit is the fixed-point scaling factor shared by all price values.
	Unit = new(big.Int).Exp(big.NewInt(10), big.NewInt(18), nil)

	maxUint256 = new(big.Int).Sub(new(big.Int).Lsh(big.NewInt(1), 256), big.NewInt(1))
)

var (
	// ErrArithmetic indicates an overflow or underflow outside the uint256 domain.
	ErrArithmetic = errors.New("fixedpoint: arithmetic overflow or underflow")
	// ErrDivisionByZero indicates a degenerate division.
	ErrDivisionByZero = errors.New("fixedpoint: division by zero")
)

// Add returns a+b, failing on overflow.
func Add(a, b *big.Int) (*big.Int, error) {
	sum := new(big.Int).Add(a, b)
	if err := check(sum); err != nil {
		return nil, err
	}
	return sum, nil
}

// Sub returns a-b, failing on underflow.
func Sub(a, b *big.Int) (*big.Int, error) {
	diff := new(big.Int).Sub(a, b)
	if err := check(diff); err != nil {
		return nil, err
	}
	return diff, nil
}

// Mul returns a*b, failing on overflow.
func Mul(a, b *big.Int) (*big.Int, error) {
	product := new(big.Int).Mul(a, b)
	if err := check(product); err != nil {
		return nil, err
	}
	return product, nil
}

// Div returns a/b truncated toward zero. Callers that need a different
// rounding mode must apply it themselves; every consumer in this module
// documents floor division.
func Div(a, b *big.Int) (*big.Int, error) {
	if b.Sign() == 0 {
		return nil, ErrDivisionByZero
	}
	quotient := new(big.Int).Quo(a, b)
	if err := check(quotient); err != nil {
		return nil, err
	}
	return quotient, nil
}

// FromInt lifts a whole-unit amount into fixed-point representation.
func FromInt(v int64) *big.Int {
	return new(big.Int).Mul(big.NewInt(v), Unit)
}

// ToDecimal renders a Unit-scaled value as a decimal for display and storage.
func ToDecimal(v *big.Int) decimal.Decimal {
	return decimal.NewFromBigInt(v, -18)
}

// FromDecimal converts a stored decimal back into Unit-scaled form.
func FromDecimal(d decimal.Decimal) *big.Int {
	return d.Shift(18).BigInt()
}

func check(v *big.Int) error {
	if v.Sign() < 0 || v.Cmp(maxUint256) > 0 {
		return ErrArithmetic
	}
	return nil
}
