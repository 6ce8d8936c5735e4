package domain

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// IdentityResult is the outcome of one identity verification attempt. A
// permitted retry overwrites this record in place rather than creating a
// second one, so an application owns at most one.
type IdentityResult struct {
	ID              uuid.UUID      `json:"id" db:"id"`
	ApplicationID   uuid.UUID      `json:"application_id" db:"application_id"`
	NameMatchScore  int            `json:"name_match_score" db:"name_match_score"`
	Status          IdentityStatus `json:"status" db:"status"`
	TaxIDVerified   bool           `json:"tax_id_verified" db:"tax_id_verified"`
	AddressVerified bool           `json:"address_verified" db:"address_verified"`
	RawResponse     string         `json:"-" db:"raw_response"`
	CreatedAt       time.Time      `json:"created_at" db:"created_at"`
	UpdatedAt       time.Time      `json:"updated_at" db:"updated_at"`
}

// CreditResult is the outcome of one credit bureau query. Created exactly
// once per application and immutable afterwards; there is no credit retry.
type CreditResult struct {
	ID                  uuid.UUID       `json:"id" db:"id"`
	ApplicationID       uuid.UUID       `json:"application_id" db:"application_id"`
	CreditScore         int             `json:"credit_score" db:"credit_score"`
	ActiveLoans         int             `json:"active_loans" db:"active_loans"`
	Utilization         decimal.Decimal `json:"utilization" db:"utilization"`
	PaymentHistoryScore decimal.Decimal `json:"payment_history_score" db:"payment_history_score"`
	Rating              string          `json:"rating" db:"rating"`
	Approved            bool            `json:"approved" db:"approved"`
	RejectionReason     string          `json:"rejection_reason,omitempty" db:"rejection_reason"`
	RawResponse         string          `json:"-" db:"raw_response"`
	CreatedAt           time.Time       `json:"created_at" db:"created_at"`
}

// EligibilityResult is the affordability verdict, produced automatically by
// the workflow right after an approved credit check.
type EligibilityResult struct {
	ID                uuid.UUID           `json:"id" db:"id"`
	ApplicationID     uuid.UUID           `json:"application_id" db:"application_id"`
	MaxInstallment    decimal.Decimal     `json:"max_installment" db:"max_installment"`
	AnnualRate        decimal.Decimal     `json:"annual_rate" db:"annual_rate"`
	TenureMonths      int                 `json:"tenure_months" db:"tenure_months"`
	EligibleAmount    decimal.Decimal     `json:"eligible_amount" db:"eligible_amount"`
	ActualInstallment decimal.NullDecimal `json:"actual_installment,omitempty" db:"actual_installment"`
	Eligible          bool                `json:"eligible" db:"eligible"`
	RejectionReasons  string              `json:"rejection_reasons,omitempty" db:"rejection_reasons"`
	CreatedAt         time.Time           `json:"created_at" db:"created_at"`
}
