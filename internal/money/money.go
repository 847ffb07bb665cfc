// Package money centralizes the fixed-point rules for the two currencies
// and for weighed quantities. All arithmetic stays in decimal.Decimal;
// rounding happens only at the boundaries defined here, never mid-sum.
package money

import "github.com/shopspring/decimal"

// usdPrecision is the internal precision kept for Bs->USD conversion.
// Presentation layers round further down to 2 decimals.
const usdPrecision = 4

// RoundBs normalizes a bolívar amount to 2 decimal places.
func RoundBs(v decimal.Decimal) decimal.Decimal {
	return v.Round(2)
}

// RoundUsd normalizes a dollar amount to 2 decimal places.
func RoundUsd(v decimal.Decimal) decimal.Decimal {
	return v.Round(2)
}

// RoundQty normalizes a quantity to 3 decimal places, which supports
// gram-level entry expressed in kilograms.
func RoundQty(v decimal.Decimal) decimal.Decimal {
	return v.Round(3)
}

// ToUSD converts a Bs amount to USD at the given rate (Bs per USD),
// keeping 4 internal decimals so repeated aggregation does not drift.
func ToUSD(bs decimal.Decimal, tasa decimal.Decimal) decimal.Decimal {
	if tasa.Sign() <= 0 {
		return decimal.Zero
	}
	return bs.DivRound(tasa, usdPrecision)
}

// IsIntegral reports whether v has no fractional part, used to validate
// quantities for countable units (unidad, paquete).
func IsIntegral(v decimal.Decimal) bool {
	return v.Equal(v.Truncate(0))
}
