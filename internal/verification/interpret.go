package verification

import (
	"fmt"

	"github.com/minilos/origination-engine/internal/domain"
)

// IdentityVerdict is the interpreted outcome of an identity check.
type IdentityVerdict struct {
	Score   int
	Passed  bool
	Status  domain.IdentityStatus
	Reasons []string
}

// CreditVerdict is the interpreted outcome of a credit bureau query.
type CreditVerdict struct {
	Approved bool
	Reasons  []string
}

// InterpretIdentityResult converts a raw identity payload into a pass/fail
// verdict. The check passes when the name match score reaches minScore.
func InterpretIdentityResult(raw IdentityPayload, minScore int) IdentityVerdict {
	verdict := IdentityVerdict{
		Score:  raw.NameMatchScore,
		Passed: raw.NameMatchScore >= minScore,
		Status: domain.IdentityPassed,
	}

	if !verdict.Passed {
		verdict.Status = domain.IdentityFailed
		verdict.Reasons = append(verdict.Reasons, fmt.Sprintf(
			"name match score %d is below minimum required score of %d",
			raw.NameMatchScore, minScore))
	}

	return verdict
}

// InterpretCreditResult converts a raw credit payload into an approval
// verdict. Approval requires the score to reach minScore and the active loan
// count to stay within maxActiveLoans. Reasons are ordered: score violation
// first, then the active-loan violation, each naming threshold and actual.
func InterpretCreditResult(raw CreditPayload, minScore, maxActiveLoans int) CreditVerdict {
	var reasons []string

	if raw.CreditScore < minScore {
		reasons = append(reasons, fmt.Sprintf(
			"credit score %d is below minimum required score of %d",
			raw.CreditScore, minScore))
	}

	if raw.ActiveLoans > maxActiveLoans {
		reasons = append(reasons, fmt.Sprintf(
			"active loans count %d exceeds maximum allowed of %d",
			raw.ActiveLoans, maxActiveLoans))
	}

	return CreditVerdict{
		Approved: len(reasons) == 0,
		Reasons:  reasons,
	}
}

// CreditRating maps a score to its rating band.
func CreditRating(score int) string {
	switch {
	case score >= 750:
		return "EXCELLENT"
	case score >= 700:
		return "GOOD"
	case score >= 650:
		return "FAIR"
	case score >= 600:
		return "POOR"
	default:
		return "VERY_POOR"
	}
}
