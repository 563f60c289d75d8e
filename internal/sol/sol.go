package sol

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
)

// LamportsPerSOL is the number of base units in one SOL.
const LamportsPerSOL uint64 = 1_000_000_000

const decimals = 9

var (
	// ErrInvalidAmount is returned for amounts that cannot be expressed in lamports.
	ErrInvalidAmount = errors.New("invalid amount")

	maxLamports = decimal.NewFromUint64(^uint64(0))
)

// ParseSOL converts a decimal SOL string such as "0.02" to lamports without
// going through floating point.
func ParseSOL(s string) (uint64, error) {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return 0, fmt.Errorf("%w: %q", ErrInvalidAmount, s)
	}
	return FromDecimal(d)
}

// FromDecimal converts a SOL amount to lamports.
func FromDecimal(d decimal.Decimal) (uint64, error) {
	if d.Sign() < 0 {
		return 0, fmt.Errorf("%w: %s is negative", ErrInvalidAmount, d)
	}
	lamports := d.Shift(decimals)
	if !lamports.IsInteger() {
		return 0, fmt.Errorf("%w: %s has more than %d decimals", ErrInvalidAmount, d, decimals)
	}
	if lamports.GreaterThan(maxLamports) {
		return 0, fmt.Errorf("%w: %s overflows", ErrInvalidAmount, d)
	}
	return lamports.BigInt().Uint64(), nil
}

// ToDecimal converts lamports back to SOL.
func ToDecimal(lamports uint64) decimal.Decimal {
	return decimal.NewFromUint64(lamports).Shift(-decimals)
}

// FormatSOL renders a balance the way campaign cards show it, e.g. "0.02 SOL".
func FormatSOL(lamports uint64) string {
	return ToDecimal(lamports).StringFixed(2) + " SOL"
}

// FormatAmount renders an amount with every significant digit, e.g.
// "0.002 SOL". Use it for amounts the user typed or must type.
func FormatAmount(lamports uint64) string {
	return ToDecimal(lamports).String() + " SOL"
}
