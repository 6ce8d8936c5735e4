package domain

import (
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/minilos/origination-engine/pkg/utils"
)

// Application represents one loan request and its lifecycle state. Identity
// fields are immutable once the application leaves DRAFT; from then on only
// the workflow mutates the record.
type Application struct {
	ID              uuid.UUID         `json:"id" db:"id"`
	ApplicantID     string            `json:"applicant_id" db:"applicant_id"`
	FullName        string            `json:"full_name" db:"full_name"`
	Mobile          string            `json:"mobile" db:"mobile"`
	TaxID           string            `json:"tax_id" db:"tax_id"`
	DateOfBirth     time.Time         `json:"date_of_birth" db:"date_of_birth"`
	Email           string            `json:"email" db:"email"`
	Address         string            `json:"address" db:"address"`
	EmploymentType  EmploymentType    `json:"employment_type" db:"employment_type"`
	MonthlyIncome   decimal.Decimal   `json:"monthly_income" db:"monthly_income"`
	RequestedAmount decimal.Decimal   `json:"requested_amount" db:"requested_amount"`
	Purpose         string            `json:"purpose" db:"purpose"`
	Status          ApplicationStatus `json:"status" db:"status"`
	CreatedAt       time.Time         `json:"created_at" db:"created_at"`
	UpdatedAt       time.Time         `json:"updated_at" db:"updated_at"`
}

// Normalize canonicalizes the free-form contact and identifier fields. Runs
// before validation so rules see the stored form.
func (a *Application) Normalize() {
	a.TaxID = utils.NormalizeTaxID(a.TaxID)
	a.Mobile = utils.NormalizeMobile(a.Mobile)
	a.FullName = strings.TrimSpace(a.FullName)
	a.Email = strings.TrimSpace(a.Email)
}

// DTOs for requests and responses

type CreateApplicationRequest struct {
	FullName        string          `json:"full_name" validate:"required"`
	Mobile          string          `json:"mobile" validate:"required,inmobile"`
	TaxID           string          `json:"tax_id" validate:"required,taxid"`
	DateOfBirth     time.Time       `json:"date_of_birth" validate:"required"`
	Email           string          `json:"email" validate:"omitempty,email"`
	Address         string          `json:"address" validate:"required"`
	EmploymentType  EmploymentType  `json:"employment_type" validate:"required,oneof=SALARIED SELF_EMPLOYED"`
	MonthlyIncome   decimal.Decimal `json:"monthly_income" validate:"required"`
	RequestedAmount decimal.Decimal `json:"requested_amount" validate:"required"`
	Purpose         string          `json:"purpose"`
}

// UpdateApplicationRequest is a partial patch; nil fields are left untouched.
// Tax ID and date of birth are immutable and deliberately absent.
type UpdateApplicationRequest struct {
	FullName        *string          `json:"full_name"`
	Mobile          *string          `json:"mobile" validate:"omitempty,inmobile"`
	Email           *string          `json:"email" validate:"omitempty,email"`
	Address         *string          `json:"address"`
	EmploymentType  *EmploymentType  `json:"employment_type" validate:"omitempty,oneof=SALARIED SELF_EMPLOYED"`
	MonthlyIncome   *decimal.Decimal `json:"monthly_income"`
	RequestedAmount *decimal.Decimal `json:"requested_amount"`
	Purpose         *string          `json:"purpose"`
}

type IdentityCheckResponse struct {
	ApplicationID     uuid.UUID         `json:"application_id"`
	NameMatchScore    int               `json:"name_match_score"`
	IdentityStatus    IdentityStatus    `json:"identity_status"`
	ApplicationStatus ApplicationStatus `json:"application_status"`
	Message           string            `json:"message"`
}

type CreditCheckResponse struct {
	ApplicationID     uuid.UUID         `json:"application_id"`
	CreditScore       int               `json:"credit_score"`
	ActiveLoans       int               `json:"active_loans"`
	Approved          bool              `json:"approved"`
	RejectionReason   string            `json:"rejection_reason,omitempty"`
	ApplicationStatus ApplicationStatus `json:"application_status"`
	Message           string            `json:"message"`
}

// FullHistory bundles an application with whichever verification results have
// been produced so far.
type FullHistory struct {
	Application       *Application       `json:"application"`
	IdentityResult    *IdentityResult    `json:"identity_result,omitempty"`
	CreditResult      *CreditResult      `json:"credit_result,omitempty"`
	EligibilityResult *EligibilityResult `json:"eligibility_result,omitempty"`
}

// ListFilter narrows admin application listings.
type ListFilter struct {
	Status ApplicationStatus
	Limit  int
	Offset int
}
