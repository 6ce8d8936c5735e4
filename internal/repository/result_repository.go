package repository

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/minilos/origination-engine/internal/domain"
)

type resultRepository struct {
	db *sqlx.DB
}

func NewResultRepository(db *sqlx.DB) ResultRepository {
	return &resultRepository{db: db}
}

func (r *resultRepository) SaveIdentityResult(ctx context.Context, res *domain.IdentityResult, from, to domain.ApplicationStatus) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	// Upsert keyed on application_id: a permitted retry overwrites the
	// existing row instead of creating a second one.
	resultQuery := `
		INSERT INTO identity_results (id, application_id, name_match_score, status, tax_id_verified,
			address_verified, raw_response, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (application_id) DO UPDATE
		SET name_match_score = EXCLUDED.name_match_score,
			status = EXCLUDED.status,
			tax_id_verified = EXCLUDED.tax_id_verified,
			address_verified = EXCLUDED.address_verified,
			raw_response = EXCLUDED.raw_response,
			updated_at = EXCLUDED.updated_at
	`

	_, err = tx.ExecContext(ctx, resultQuery,
		res.ID,
		res.ApplicationID,
		res.NameMatchScore,
		res.Status,
		res.TaxIDVerified,
		res.AddressVerified,
		res.RawResponse,
		res.CreatedAt,
		res.UpdatedAt,
	)
	if err != nil {
		return err
	}

	if err := transitionInTx(ctx, tx, res.ApplicationID, from, to); err != nil {
		return err
	}

	return tx.Commit()
}

func (r *resultRepository) GetIdentityResult(ctx context.Context, applicationID uuid.UUID) (*domain.IdentityResult, error) {
	query := `
		SELECT id, application_id, name_match_score, status, tax_id_verified, address_verified,
			raw_response, created_at, updated_at
		FROM identity_results
		WHERE application_id = $1
	`

	var res domain.IdentityResult
	if err := r.db.GetContext(ctx, &res, query, applicationID); err != nil {
		return nil, err
	}

	return &res, nil
}

func (r *resultRepository) SaveCreditOutcome(ctx context.Context, credit *domain.CreditResult, elig *domain.EligibilityResult, from, to domain.ApplicationStatus) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	creditQuery := `
		INSERT INTO credit_results (id, application_id, credit_score, active_loans, utilization,
			payment_history_score, rating, approved, rejection_reason, raw_response, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
	`

	_, err = tx.ExecContext(ctx, creditQuery,
		credit.ID,
		credit.ApplicationID,
		credit.CreditScore,
		credit.ActiveLoans,
		credit.Utilization,
		credit.PaymentHistoryScore,
		credit.Rating,
		credit.Approved,
		credit.RejectionReason,
		credit.RawResponse,
		credit.CreatedAt,
	)
	if err != nil {
		return err
	}

	if elig != nil {
		eligQuery := `
			INSERT INTO eligibility_results (id, application_id, max_installment, annual_rate, tenure_months,
				eligible_amount, actual_installment, eligible, rejection_reasons, created_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		`

		_, err = tx.ExecContext(ctx, eligQuery,
			elig.ID,
			elig.ApplicationID,
			elig.MaxInstallment,
			elig.AnnualRate,
			elig.TenureMonths,
			elig.EligibleAmount,
			elig.ActualInstallment,
			elig.Eligible,
			elig.RejectionReasons,
			elig.CreatedAt,
		)
		if err != nil {
			return err
		}
	}

	if err := transitionInTx(ctx, tx, credit.ApplicationID, from, to); err != nil {
		return err
	}

	return tx.Commit()
}

// transitionInTx applies the same compare-and-set status update as
// TransitionStatus inside an open transaction, so the result write and the
// transition commit or abort together.
func transitionInTx(ctx context.Context, tx *sqlx.Tx, id uuid.UUID, from, to domain.ApplicationStatus) error {
	query := `
		UPDATE applications
		SET status = $3, updated_at = $4
		WHERE id = $1 AND status = $2
	`

	result, err := tx.ExecContext(ctx, query, id, from, to, time.Now())
	if err != nil {
		return err
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return ErrStatusConflict
	}

	return nil
}

func (r *resultRepository) GetCreditResult(ctx context.Context, applicationID uuid.UUID) (*domain.CreditResult, error) {
	query := `
		SELECT id, application_id, credit_score, active_loans, utilization, payment_history_score,
			rating, approved, rejection_reason, raw_response, created_at
		FROM credit_results
		WHERE application_id = $1
	`

	var res domain.CreditResult
	if err := r.db.GetContext(ctx, &res, query, applicationID); err != nil {
		return nil, err
	}

	return &res, nil
}

func (r *resultRepository) GetEligibilityResult(ctx context.Context, applicationID uuid.UUID) (*domain.EligibilityResult, error) {
	query := `
		SELECT id, application_id, max_installment, annual_rate, tenure_months, eligible_amount,
			actual_installment, eligible, rejection_reasons, created_at
		FROM eligibility_results
		WHERE application_id = $1
	`

	var res domain.EligibilityResult
	if err := r.db.GetContext(ctx, &res, query, applicationID); err != nil {
		return nil, err
	}

	return &res, nil
}
