package domain

import (
	"math/big"

	"github.com/shopspring/decimal"
)

// BaseDecimals is the number of decimals of the native base asset.
const BaseDecimals uint8 = 9

// ToUI converts a raw integer amount into its human readable value.
func ToUI(raw uint64, decimals uint8) float64 {
	v, _ := rawDecimal(raw).Shift(-int32(decimals)).Float64()
	return v
}

// FromUI converts a human readable amount into raw integer units, truncating
// anything below the smallest unit. Negative values yield zero.
func FromUI(ui float64, decimals uint8) uint64 {
	d := decimal.NewFromFloat(ui).Shift(int32(decimals)).Truncate(0)
	if d.Sign() <= 0 {
		return 0
	}
	return d.BigInt().Uint64()
}

// ScaleRaw returns raw * pct / 100 rounded down.
func ScaleRaw(raw uint64, pct float64) uint64 {
	d := rawDecimal(raw).Mul(decimal.NewFromFloat(pct)).Div(decimal.NewFromInt(100)).Truncate(0)
	if d.Sign() <= 0 {
		return 0
	}
	return d.BigInt().Uint64()
}

// UnitPrice returns quote-per-unit given both sides as raw amounts.
// It returns zero when the unit side is empty.
func UnitPrice(quoteRaw uint64, quoteDecimals uint8, unitRaw uint64, unitDecimals uint8) float64 {
	if unitRaw == 0 {
		return 0
	}
	q := rawDecimal(quoteRaw).Shift(-int32(quoteDecimals))
	u := rawDecimal(unitRaw).Shift(-int32(unitDecimals))
	v, _ := q.DivRound(u, 18).Float64()
	return v
}

func rawDecimal(raw uint64) decimal.Decimal {
	return decimal.NewFromBigInt(new(big.Int).SetUint64(raw), 0)
}
