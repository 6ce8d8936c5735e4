package utils

import (
	"regexp"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

var (
	taxIDPattern  = regexp.MustCompile(`^[A-Z]{5}[0-9]{4}[A-Z]$`)
	mobilePattern = regexp.MustCompile(`^[6-9][0-9]{9}$`)
	mobileNoise   = regexp.MustCompile(`[\s\-]`)
)

// NormalizeTaxID upper-cases and trims a tax identifier. Tax IDs are stored
// and compared in this normalized form only.
func NormalizeTaxID(taxID string) string {
	return strings.ToUpper(strings.TrimSpace(taxID))
}

// IsValidTaxID reports whether the identifier matches the 5-letters,
// 4-digits, 1-letter format (e.g. ABCDE1234F) after normalization.
func IsValidTaxID(taxID string) bool {
	return taxIDPattern.MatchString(NormalizeTaxID(taxID))
}

// NormalizeMobile strips spaces and dashes from a mobile number.
func NormalizeMobile(mobile string) string {
	return mobileNoise.ReplaceAllString(mobile, "")
}

// IsValidMobile reports whether the number is 10 digits starting with 6-9.
func IsValidMobile(mobile string) bool {
	return mobilePattern.MatchString(NormalizeMobile(mobile))
}

// Age calculates full years between dob and now.
func Age(dob, now time.Time) int {
	age := now.Year() - dob.Year()
	if now.Month() < dob.Month() || (now.Month() == dob.Month() && now.Day() < dob.Day()) {
		age--
	}
	return age
}

// DecimalFromFloat converts float64 to decimal.Decimal
func DecimalFromFloat(f float64) decimal.Decimal {
	return decimal.NewFromFloat(f)
}

// DecimalFromString converts string to decimal.Decimal
func DecimalFromString(s string) (decimal.Decimal, error) {
	return decimal.NewFromString(s)
}
