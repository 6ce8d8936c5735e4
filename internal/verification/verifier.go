// Package verification defines the identity and credit bureau collaborator
// contracts, the deterministic mock implementations used outside production,
// and the pure interpreters that turn raw payloads into verdicts.
package verification

import (
	"context"
	"time"
)

// IdentityPayload is the raw result of one identity verification call.
type IdentityPayload struct {
	NameMatchScore  int       `json:"name_match_score"`
	Status          string    `json:"status"`
	TaxIDVerified   bool      `json:"tax_id_verified"`
	AddressVerified bool      `json:"address_verified"`
	Remarks         string    `json:"remarks"`
	VerifiedAt      time.Time `json:"verified_at"`
}

// CreditPayload is the raw result of one credit bureau query.
type CreditPayload struct {
	CreditScore            int       `json:"credit_score"`
	ActiveLoans            int       `json:"active_loans"`
	Utilization            float64   `json:"utilization"`
	PaymentHistoryScore    float64   `json:"payment_history_score"`
	EnquiryCount           int       `json:"enquiry_count"`
	OldestAccountAgeMonths int       `json:"oldest_account_age_months"`
	Rating                 string    `json:"rating"`
	TaxID                  string    `json:"tax_id"`
	CheckedAt              time.Time `json:"checked_at"`
}

// IdentityVerifier checks that a claimed identity matches its supporting
// documents. Implementations may fail transiently; the workflow does not
// retry automatically.
type IdentityVerifier interface {
	Check(ctx context.Context, name, taxID string) (IdentityPayload, error)
}

// CreditBureau queries third-party credit history for a tax ID. Same failure
// contract as IdentityVerifier; the workflow defines no retry for this stage.
type CreditBureau interface {
	Check(ctx context.Context, taxID string) (CreditPayload, error)
}
