package relayer

import (
	"fmt"
	"math/big"

	"github.com/shopspring/decimal"
)

// ConvertAmount rescales raw from fromDecimals to toDecimals. Precision the target cannot
// represent is not bridged; it is returned as dust, in source units.
func ConvertAmount(raw *big.Int, fromDecimals, toDecimals int32) (amount, dust *big.Int) {
	exact := decimal.NewFromBigInt(raw, -fromDecimals).Shift(toDecimals)
	whole := exact.Truncate(0)
	return whole.BigInt(), exact.Sub(whole).Shift(fromDecimals - toDecimals).BigInt()
}

// ToUnits formats a raw amount in whole token units, e.g. 1500000000 with 9 decimals is "1.5"
func ToUnits(raw *big.Int, decimals int32) string {
	return decimal.NewFromBigInt(raw, -decimals).String()
}

// ParseUnits parses a whole token amount such as "0.05" into raw units
func ParseUnits(s string, decimals int32) (*big.Int, error) {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return nil, fmt.Errorf("invalid amount %q: %w", s, err)
	}
	return d.Shift(decimals).Truncate(0).BigInt(), nil
}

// Bounds limits transfer amounts in whole token units. A zero Max means unbounded.
type Bounds struct {
	Min decimal.Decimal
	Max decimal.Decimal
}

// NewBounds parses the configured limits. An empty maximum means unbounded.
func NewBounds(minAmount, maxAmount string) (Bounds, error) {
	var b Bounds
	if minAmount != "" {
		d, err := decimal.NewFromString(minAmount)
		if err != nil {
			return b, fmt.Errorf("invalid min transfer amount: %w", err)
		}
		b.Min = d
	}
	if maxAmount != "" {
		d, err := decimal.NewFromString(maxAmount)
		if err != nil {
			return b, fmt.Errorf("invalid max transfer amount: %w", err)
		}
		if d.IsPositive() && d.LessThan(b.Min) {
			return b, fmt.Errorf("max transfer amount %s is below min %s", d, b.Min)
		}
		b.Max = d
	}
	return b, nil
}

// Check returns an error when raw, with decimals, lies outside the bounds
func (b Bounds) Check(raw *big.Int, decimals int32) error {
	units := decimal.NewFromBigInt(raw, -decimals)
	if units.LessThan(b.Min) {
		return fmt.Errorf("amount %s below minimum %s", units, b.Min)
	}
	if b.Max.IsPositive() && units.GreaterThan(b.Max) {
		return fmt.Errorf("amount %s above maximum %s", units, b.Max)
	}
	return nil
}
