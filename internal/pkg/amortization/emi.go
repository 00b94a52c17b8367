// Package amortization computes equated monthly installments and repayment schedules.
// All arithmetic is decimal; amounts are rounded half-up to the currency minor unit.
package amortization

import (
	"shg-finance/internal/pkg/apperrors"

	"github.com/shopspring/decimal"
)

// MinorUnitPlaces is the number of decimal places money is rounded to.
const MinorUnitPlaces int32 = 2

// intermediate precision for rate powers and division
const workingPlaces int32 = 24

var (
	hundred = decimal.NewFromInt(100)
	twelve  = decimal.NewFromInt(12)
)

// RoundMoney rounds half-up (away from zero) to the currency minor unit.
func RoundMoney(d decimal.Decimal) decimal.Decimal {
	return d.Round(MinorUnitPlaces)
}

// ComputeEMI returns the fixed monthly installment for a reducing-balance loan.
// A zero rate divides the principal evenly across the tenure.
func ComputeEMI(principal, annualRatePercent decimal.Decimal, tenureMonths int) (decimal.Decimal, error) {
	if tenureMonths <= 0 {
		return decimal.Zero, apperrors.Validation("tenure must be at least 1 month, got %d", tenureMonths)
	}
	if principal.IsNegative() {
		return decimal.Zero, apperrors.Validation("principal must not be negative, got %s", principal)
	}
	if annualRatePercent.IsNegative() {
		return decimal.Zero, apperrors.Validation("interest rate must not be negative, got %s", annualRatePercent)
	}

	n := decimal.NewFromInt(int64(tenureMonths))
	if annualRatePercent.IsZero() || principal.IsZero() {
		return RoundMoney(principal.DivRound(n, workingPlaces)), nil
	}

	r := annualRatePercent.DivRound(twelve, workingPlaces).DivRound(hundred, workingPlaces)
	growth := compound(decimal.NewFromInt(1).Add(r), tenureMonths)

	numerator := principal.Mul(r).Mul(growth)
	denominator := growth.Sub(decimal.NewFromInt(1))
	return RoundMoney(numerator.DivRound(denominator, workingPlaces)), nil
}

// compound raises base to a positive integer power, truncating each step to the working precision.
func compound(base decimal.Decimal, exp int) decimal.Decimal {
	result := decimal.NewFromInt(1)
	for i := 0; i < exp; i++ {
		result = result.Mul(base).Round(workingPlaces)
	}
	return result
}

// TotalInterest is the interest paid over the whole tenure when every installment is the EMI.
func TotalInterest(principal, emi decimal.Decimal, tenureMonths int) decimal.Decimal {
	total := emi.Mul(decimal.NewFromInt(int64(tenureMonths)))
	interest := total.Sub(principal)
	if interest.IsNegative() {
		return decimal.Zero
	}
	return RoundMoney(interest)
}
