package domain

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/minilos/origination-engine/pkg/utils"
)

// Rules holds the static business limits applied at creation and on every
// DRAFT edit that touches income or the requested amount.
type Rules struct {
	MinAge                  int
	MaxLoanIncomeMultiplier decimal.Decimal
}

// DefaultRules returns the standard origination limits.
func DefaultRules() Rules {
	return Rules{
		MinAge:                  21,
		MaxLoanIncomeMultiplier: decimal.NewFromInt(20),
	}
}

// ValidateRules checks the application against every static business rule and
// returns one entry per violation, empty when the record is valid.
func ValidateRules(app *Application, rules Rules, now time.Time) []string {
	var violations []string

	if !utils.IsValidTaxID(app.TaxID) {
		violations = append(violations, "invalid tax ID format, expected format: ABCDE1234F")
	}

	if !utils.IsValidMobile(app.Mobile) {
		violations = append(violations, "invalid mobile number, expected 10 digits starting with 6-9")
	}

	if age := utils.Age(app.DateOfBirth, now); age < rules.MinAge {
		violations = append(violations,
			fmt.Sprintf("applicant must be at least %d years old, current age: %d", rules.MinAge, age))
	}

	if !app.MonthlyIncome.IsPositive() {
		violations = append(violations, "monthly income must be positive")
	}

	if !app.RequestedAmount.IsPositive() {
		violations = append(violations, "requested amount must be positive")
	}

	if app.MonthlyIncome.IsPositive() {
		maxAllowed := app.MonthlyIncome.Mul(rules.MaxLoanIncomeMultiplier)
		if app.RequestedAmount.GreaterThan(maxAllowed) {
			violations = append(violations,
				fmt.Sprintf("requested amount exceeds maximum allowed %s (%sx monthly income)",
					maxAllowed.StringFixed(2), rules.MaxLoanIncomeMultiplier.String()))
		}
	}

	return violations
}
