package repository

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/minilos/origination-engine/internal/domain"
)

// ErrStatusConflict is returned by TransitionStatus when the application is
// no longer in the expected source state. The caller lost the race (or acted
// on stale state) and must re-derive the current status.
var ErrStatusConflict = errors.New("application status changed concurrently")

// ApplicationRepository defines the interface for application data operations
type ApplicationRepository interface {
	// Create persists a new application
	Create(ctx context.Context, app *domain.Application) error

	// GetByID retrieves an application by its ID
	GetByID(ctx context.Context, id uuid.UUID) (*domain.Application, error)

	// Update persists mutable application fields (DRAFT edits)
	Update(ctx context.Context, app *domain.Application) error

	// TransitionStatus atomically moves the application from one status to
	// another. It fails with ErrStatusConflict when the stored status is not
	// `from`, which makes the pending transition the per-application
	// linearization point for concurrent workflow calls.
	TransitionStatus(ctx context.Context, id uuid.UUID, from, to domain.ApplicationStatus) error

	// ListByApplicant retrieves the applicant's applications, newest first
	ListByApplicant(ctx context.Context, applicantID string) ([]*domain.Application, error)

	// List retrieves applications matching the filter, newest first
	List(ctx context.Context, filter domain.ListFilter) ([]*domain.Application, error)

	// Count returns the total number of applications
	Count(ctx context.Context) (int, error)

	// CountByApplicant returns how many applications the applicant holds in
	// any state, terminal included
	CountByApplicant(ctx context.Context, applicantID string) (int, error)

	// FindActiveByTaxID finds the applicant's active (non-terminal)
	// application for a tax ID, if any
	FindActiveByTaxID(ctx context.Context, applicantID, taxID string) (*domain.Application, error)

	// RecoverStuckPending reverts applications stuck in a pending state since
	// before the cutoff back to the pre-pending state, and returns how many
	// were recovered
	RecoverStuckPending(ctx context.Context, cutoff time.Time) (int64, error)
}

// ResultRepository defines the interface for verification result data
// operations. The save methods write the result and the application status
// in one transaction so a transition and its triggering result are applied
// as a single unit. The status write is conditional on `from`, the same
// compare-and-set contract as TransitionStatus: ErrStatusConflict means the
// application moved concurrently and nothing was written.
type ResultRepository interface {
	// SaveIdentityResult upserts the application's identity result (retry
	// overwrites in place) and moves the application from `from` to `to`
	SaveIdentityResult(ctx context.Context, res *domain.IdentityResult, from, to domain.ApplicationStatus) error

	// GetIdentityResult retrieves the identity result for an application
	GetIdentityResult(ctx context.Context, applicationID uuid.UUID) (*domain.IdentityResult, error)

	// SaveCreditOutcome writes the credit result, the eligibility result when
	// one was produced (nil otherwise), and moves the application from `from`
	// to the final status
	SaveCreditOutcome(ctx context.Context, credit *domain.CreditResult, elig *domain.EligibilityResult, from, to domain.ApplicationStatus) error

	// GetCreditResult retrieves the credit result for an application
	GetCreditResult(ctx context.Context, applicationID uuid.UUID) (*domain.CreditResult, error)

	// GetEligibilityResult retrieves the eligibility result for an application
	GetEligibilityResult(ctx context.Context, applicationID uuid.UUID) (*domain.EligibilityResult, error)
}
