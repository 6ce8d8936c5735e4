package repository

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/minilos/origination-engine/internal/domain"
)

type applicationRepository struct {
	db *sqlx.DB
}

func NewApplicationRepository(db *sqlx.DB) ApplicationRepository {
	return &applicationRepository{db: db}
}

func (r *applicationRepository) Create(ctx context.Context, app *domain.Application) error {
	query := `
		INSERT INTO applications (id, applicant_id, full_name, mobile, tax_id, date_of_birth, email, address,
			employment_type, monthly_income, requested_amount, purpose, status, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)
	`

	_, err := r.db.ExecContext(ctx, query,
		app.ID,
		app.ApplicantID,
		app.FullName,
		app.Mobile,
		app.TaxID,
		app.DateOfBirth,
		app.Email,
		app.Address,
		app.EmploymentType,
		app.MonthlyIncome,
		app.RequestedAmount,
		app.Purpose,
		app.Status,
		app.CreatedAt,
		app.UpdatedAt,
	)

	return err
}

func (r *applicationRepository) GetByID(ctx context.Context, id uuid.UUID) (*domain.Application, error) {
	query := `
		SELECT id, applicant_id, full_name, mobile, tax_id, date_of_birth, email, address,
			employment_type, monthly_income, requested_amount, purpose, status, created_at, updated_at
		FROM applications
		WHERE id = $1
	`

	var app domain.Application
	if err := r.db.GetContext(ctx, &app, query, id); err != nil {
		return nil, err
	}

	return &app, nil
}

func (r *applicationRepository) Update(ctx context.Context, app *domain.Application) error {
	query := `
		UPDATE applications
		SET full_name = $2, mobile = $3, email = $4, address = $5, employment_type = $6,
			monthly_income = $7, requested_amount = $8, purpose = $9, updated_at = $10
		WHERE id = $1
	`

	_, err := r.db.ExecContext(ctx, query,
		app.ID,
		app.FullName,
		app.Mobile,
		app.Email,
		app.Address,
		app.EmploymentType,
		app.MonthlyIncome,
		app.RequestedAmount,
		app.Purpose,
		time.Now(),
	)

	return err
}

func (r *applicationRepository) TransitionStatus(ctx context.Context, id uuid.UUID, from, to domain.ApplicationStatus) error {
	query := `
		UPDATE applications
		SET status = $3, updated_at = $4
		WHERE id = $1 AND status = $2
	`

	result, err := r.db.ExecContext(ctx, query, id, from, to, time.Now())
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

func (r *applicationRepository) ListByApplicant(ctx context.Context, applicantID string) ([]*domain.Application, error) {
	query := `
		SELECT id, applicant_id, full_name, mobile, tax_id, date_of_birth, email, address,
			employment_type, monthly_income, requested_amount, purpose, status, created_at, updated_at
		FROM applications
		WHERE applicant_id = $1
		ORDER BY created_at DESC
	`

	var apps []*domain.Application
	if err := r.db.SelectContext(ctx, &apps, query, applicantID); err != nil {
		return nil, err
	}

	return apps, nil
}

func (r *applicationRepository) List(ctx context.Context, filter domain.ListFilter) ([]*domain.Application, error) {
	query := `
		SELECT id, applicant_id, full_name, mobile, tax_id, date_of_birth, email, address,
			employment_type, monthly_income, requested_amount, purpose, status, created_at, updated_at
		FROM applications
		WHERE ($1 = '' OR status = $1)
		ORDER BY created_at DESC
		LIMIT $2 OFFSET $3
	`

	limit := filter.Limit
	if limit <= 0 {
		limit = 50
	}

	var apps []*domain.Application
	if err := r.db.SelectContext(ctx, &apps, query, string(filter.Status), limit, filter.Offset); err != nil {
		return nil, err
	}

	return apps, nil
}

func (r *applicationRepository) Count(ctx context.Context) (int, error) {
	var count int
	if err := r.db.GetContext(ctx, &count, `SELECT COUNT(*) FROM applications`); err != nil {
		return 0, err
	}
	return count, nil
}

func (r *applicationRepository) CountByApplicant(ctx context.Context, applicantID string) (int, error) {
	var count int
	query := `SELECT COUNT(*) FROM applications WHERE applicant_id = $1`
	if err := r.db.GetContext(ctx, &count, query, applicantID); err != nil {
		return 0, err
	}
	return count, nil
}

func (r *applicationRepository) FindActiveByTaxID(ctx context.Context, applicantID, taxID string) (*domain.Application, error) {
	query := `
		SELECT id, applicant_id, full_name, mobile, tax_id, date_of_birth, email, address,
			employment_type, monthly_income, requested_amount, purpose, status, created_at, updated_at
		FROM applications
		WHERE applicant_id = $1 AND tax_id = $2 AND status = ANY($3)
		LIMIT 1
	`

	active := make([]string, len(domain.ActiveStatuses))
	for i, s := range domain.ActiveStatuses {
		active[i] = string(s)
	}

	var app domain.Application
	if err := r.db.GetContext(ctx, &app, query, applicantID, taxID, pq.Array(active)); err != nil {
		return nil, err
	}

	return &app, nil
}

func (r *applicationRepository) RecoverStuckPending(ctx context.Context, cutoff time.Time) (int64, error) {
	// Recovery path for applications left pending by a collaborator outage.
	// Deliberately outside the forward transition table: IDENTITY_PENDING
	// reverts to DRAFT and CREDIT_PENDING to IDENTITY_COMPLETED so the
	// original operation can be re-issued.
	query := `
		UPDATE applications
		SET status = CASE status
				WHEN $1 THEN $2
				WHEN $3 THEN $4
			END,
			updated_at = $5
		WHERE status IN ($1, $3) AND updated_at < $6
	`

	result, err := r.db.ExecContext(ctx, query,
		domain.StatusIdentityPending, domain.StatusDraft,
		domain.StatusCreditPending, domain.StatusIdentityCompleted,
		time.Now(), cutoff,
	)
	if err != nil {
		return 0, err
	}

	return result.RowsAffected()
}
