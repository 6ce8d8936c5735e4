// Package eligibility holds the pure affordability math: installment
// capacity, risk-adjusted rate tiering, annuity inversion and amortization.
// All currency values are decimals rounded to 2 places at every reported
// boundary; the annuity power term is computed in float64 and converted back
// to decimal before any monetary arithmetic.
package eligibility

import (
	"fmt"
	"math"

	"github.com/shopspring/decimal"

	"github.com/minilos/origination-engine/internal/domain"
)

// Params carries the tunable inputs of the calculation. Zero values are not
// meaningful; use DefaultParams or build from configuration.
type Params struct {
	BaseAnnualRate    decimal.Decimal
	TenureMonths      int
	SalariedShare     decimal.Decimal
	SelfEmployedShare decimal.Decimal
}

// DefaultParams returns the standard 12% / 36-month terms with the 50%
// (salaried) and 40% (self-employed) income shares.
func DefaultParams() Params {
	return Params{
		BaseAnnualRate:    decimal.NewFromFloat(0.12),
		TenureMonths:      36,
		SalariedShare:     decimal.NewFromFloat(0.5),
		SelfEmployedShare: decimal.NewFromFloat(0.4),
	}
}

// Result is the outcome of one eligibility calculation.
type Result struct {
	MaxInstallment    decimal.Decimal
	AnnualRate        decimal.Decimal
	TenureMonths      int
	EligibleAmount    decimal.Decimal
	ActualInstallment decimal.NullDecimal
	Eligible          bool
	RejectionReasons  []string
}

// Calculate computes installment capacity, the risk-adjusted annual rate, the
// maximum eligible principal, and the accept/reject verdict.
//
// requestedAmount and creditScore are optional: a non-positive requested
// amount means none was supplied (the verdict is then eligible by
// definition), and a zero credit score leaves the base rate unchanged.
func Calculate(
	monthlyIncome decimal.Decimal,
	employment domain.EmploymentType,
	requestedAmount decimal.Decimal,
	creditScore int,
	p Params,
) Result {
	share := p.SalariedShare
	if employment == domain.EmploymentSelfEmployed {
		share = p.SelfEmployedShare
	}
	maxInstallment := monthlyIncome.Mul(share).Round(2)

	annualRate := adjustRate(p.BaseAnnualRate, creditScore)

	eligibleAmount := invertAnnuity(maxInstallment, annualRate, p.TenureMonths)

	result := Result{
		MaxInstallment: maxInstallment,
		AnnualRate:     annualRate,
		TenureMonths:   p.TenureMonths,
		EligibleAmount: eligibleAmount,
		Eligible:       true,
	}

	if requestedAmount.IsPositive() {
		if requestedAmount.GreaterThan(eligibleAmount) {
			result.Eligible = false
			result.RejectionReasons = append(result.RejectionReasons, fmt.Sprintf(
				"requested amount %s exceeds eligible amount %s",
				requestedAmount.StringFixed(2), eligibleAmount.StringFixed(2)))
		}
		result.ActualInstallment = decimal.NullDecimal{
			Decimal: EMI(requestedAmount, annualRate, p.TenureMonths),
			Valid:   true,
		}
	}

	return result
}

// adjustRate applies the credit score tiering to the base annual rate. A zero
// score means no score was supplied and the base rate is used unchanged.
func adjustRate(base decimal.Decimal, creditScore int) decimal.Decimal {
	if creditScore == 0 {
		return base
	}
	switch {
	case creditScore >= 750:
		return base.Sub(decimal.NewFromFloat(0.02))
	case creditScore >= 700:
		return base.Sub(decimal.NewFromFloat(0.01))
	case creditScore >= 650:
		return base
	default:
		return base.Add(decimal.NewFromFloat(0.02))
	}
}

// invertAnnuity computes the principal whose fixed payment equals installment
// over n periods: P = A * ((1+r)^n - 1) / (r * (1+r)^n). When r == 0 the
// series degenerates to P = A * n.
func invertAnnuity(installment, annualRate decimal.Decimal, tenureMonths int) decimal.Decimal {
	monthlyRate := annualRate.InexactFloat64() / 12

	if monthlyRate == 0 {
		return installment.Mul(decimal.NewFromInt(int64(tenureMonths))).Round(2)
	}

	factor := math.Pow(1+monthlyRate, float64(tenureMonths))
	principal := installment.InexactFloat64() * (factor - 1) / (monthlyRate * factor)
	return decimal.NewFromFloat(principal).Round(2)
}

// EMI computes the equated monthly installment for a principal:
// EMI = P * r * (1+r)^n / ((1+r)^n - 1), or P / n when r == 0.
func EMI(principal, annualRate decimal.Decimal, tenureMonths int) decimal.Decimal {
	monthlyRate := annualRate.InexactFloat64() / 12

	if monthlyRate == 0 {
		return principal.Div(decimal.NewFromInt(int64(tenureMonths))).Round(2)
	}

	factor := math.Pow(1+monthlyRate, float64(tenureMonths))
	emi := principal.InexactFloat64() * monthlyRate * factor / (factor - 1)
	return decimal.NewFromFloat(emi).Round(2)
}

// TotalInterest is the interest paid over the full tenure.
func TotalInterest(principal, emi decimal.Decimal, tenureMonths int) decimal.Decimal {
	return emi.Mul(decimal.NewFromInt(int64(tenureMonths))).Sub(principal).Round(2)
}

// Installment is one period of an amortization schedule.
type Installment struct {
	Period             int             `json:"period"`
	Installment        decimal.Decimal `json:"installment"`
	PrincipalComponent decimal.Decimal `json:"principal_component"`
	InterestComponent  decimal.Decimal `json:"interest_component"`
	RemainingBalance   decimal.Decimal `json:"remaining_balance"`
}

// AmortizationSchedule breaks a loan into per-period principal and interest
// components. The final period absorbs any residual rounding so the
// remaining balance ends at exactly zero and the principal components sum to
// the original principal to the cent.
func AmortizationSchedule(principal, annualRate decimal.Decimal, tenureMonths int) []Installment {
	if tenureMonths <= 0 || !principal.IsPositive() {
		return nil
	}

	emi := EMI(principal, annualRate, tenureMonths)
	monthlyRate := decimal.NewFromFloat(annualRate.InexactFloat64() / 12)

	schedule := make([]Installment, 0, tenureMonths)
	remaining := principal

	for period := 1; period <= tenureMonths; period++ {
		interest := remaining.Mul(monthlyRate).Round(2)
		principalPart := emi.Sub(interest)
		installment := emi

		if period == tenureMonths {
			// Absorb rounding drift: clear whatever balance is left.
			principalPart = remaining
			installment = principalPart.Add(interest)
		}

		remaining = remaining.Sub(principalPart)

		schedule = append(schedule, Installment{
			Period:             period,
			Installment:        installment,
			PrincipalComponent: principalPart,
			InterestComponent:  interest,
			RemainingBalance:   remaining,
		})
	}

	return schedule
}
