package verification

import (
	"context"
	"math/rand"
	"strings"
	"time"
)

// SeedFunc derives a deterministic PRNG seed from an identifier. The mocks
// take the seed function explicitly so reproducibility is an injected choice
// rather than ambient global state: the same tax ID always produces the same
// verification outcome.
type SeedFunc func(identifier string) int64

// ByteSumSeed sums the bytes of the upper-cased identifier.
func ByteSumSeed(identifier string) int64 {
	var sum int64
	for _, c := range strings.ToUpper(identifier) {
		sum += int64(c)
	}
	return sum
}

// MockIdentityVerifier simulates an identity provider with deterministic,
// tax-ID-keyed scores biased 80% toward passing (80-100), 20% failing
// (60-79).
type MockIdentityVerifier struct {
	seed SeedFunc
}

// NewMockIdentityVerifier builds a mock verifier; a nil seed function falls
// back to ByteSumSeed.
func NewMockIdentityVerifier(seed SeedFunc) *MockIdentityVerifier {
	if seed == nil {
		seed = ByteSumSeed
	}
	return &MockIdentityVerifier{seed: seed}
}

func (v *MockIdentityVerifier) Check(_ context.Context, _ string, taxID string) (IdentityPayload, error) {
	rng := rand.New(rand.NewSource(v.seed(taxID)))

	var score int
	if rng.Float64() < 0.8 {
		score = 80 + rng.Intn(21) // 80-100
	} else {
		score = 60 + rng.Intn(20) // 60-79
	}

	status := "PASSED"
	if score < 80 {
		status = "FAILED"
	}

	return IdentityPayload{
		NameMatchScore:  score,
		Status:          status,
		TaxIDVerified:   taxID != "",
		AddressVerified: rng.Intn(2) == 0,
		Remarks:         identityRemarks(score),
		VerifiedAt:      time.Now(),
	}, nil
}

func identityRemarks(score int) string {
	switch {
	case score >= 90:
		return "Excellent match. All documents verified successfully."
	case score >= 80:
		return "Good match. Documents verified."
	case score >= 70:
		return "Partial match. Some discrepancies found."
	default:
		return "Poor match. Verification failed."
	}
}

// MockCreditBureau simulates a bureau with deterministic, tax-ID-keyed credit
// data biased 80% toward approvable values (score 650-800, 0-5 active
// loans); the failing 20% splits evenly between a low score and too many
// loans.
type MockCreditBureau struct {
	seed SeedFunc
}

// NewMockCreditBureau builds a mock bureau; a nil seed function falls back to
// ByteSumSeed.
func NewMockCreditBureau(seed SeedFunc) *MockCreditBureau {
	if seed == nil {
		seed = ByteSumSeed
	}
	return &MockCreditBureau{seed: seed}
}

func (b *MockCreditBureau) Check(_ context.Context, taxID string) (CreditPayload, error) {
	rng := rand.New(rand.NewSource(b.seed(taxID)))

	var score, activeLoans int
	if rng.Float64() < 0.8 {
		score = 650 + rng.Intn(151) // 650-800
		activeLoans = rng.Intn(6)   // 0-5
	} else if rng.Float64() < 0.5 {
		score = 600 + rng.Intn(50) // 600-649
		activeLoans = rng.Intn(6)
	} else {
		score = 650 + rng.Intn(151)
		activeLoans = 6 + rng.Intn(2) // 6-7
	}

	return CreditPayload{
		CreditScore:            score,
		ActiveLoans:            activeLoans,
		Utilization:            roundTo2(0.1 + rng.Float64()*0.8),
		PaymentHistoryScore:    roundTo2(0.6 + rng.Float64()*0.4),
		EnquiryCount:           rng.Intn(6),
		OldestAccountAgeMonths: 12 + rng.Intn(109),
		Rating:                 CreditRating(score),
		TaxID:                  taxID,
		CheckedAt:              time.Now(),
	}, nil
}

func roundTo2(f float64) float64 {
	return float64(int(f*100+0.5)) / 100
}
