package service

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/minilos/origination-engine/internal/config"
	"github.com/minilos/origination-engine/internal/domain"
	"github.com/minilos/origination-engine/internal/eligibility"
	"github.com/minilos/origination-engine/internal/repository"
	"github.com/minilos/origination-engine/internal/verification"
	"github.com/minilos/origination-engine/internal/workflow"
	customError "github.com/minilos/origination-engine/pkg/errors"
	"github.com/minilos/origination-engine/pkg/utils"
)

// OriginationService orchestrates the application workflow: it sequences the
// collaborator calls, interprets their results and applies the
// outcome-conditioned transitions. It is the only component that mutates an
// application after DRAFT.
type OriginationService struct {
	apps     repository.ApplicationRepository
	results  repository.ResultRepository
	identity verification.IdentityVerifier
	bureau   verification.CreditBureau
	redis    *redis.Client
	cfg      *config.Config
	log      *zap.Logger
}

func NewOriginationService(
	apps repository.ApplicationRepository,
	results repository.ResultRepository,
	identity verification.IdentityVerifier,
	bureau verification.CreditBureau,
	redisClient *redis.Client,
	cfg *config.Config,
	log *zap.Logger,
) *OriginationService {
	if log == nil {
		log = zap.NewNop()
	}
	return &OriginationService{
		apps:     apps,
		results:  results,
		identity: identity,
		bureau:   bureau,
		redis:    redisClient,
		cfg:      cfg,
		log:      log,
	}
}

func (s *OriginationService) rules() domain.Rules {
	return domain.Rules{
		MinAge:                  s.cfg.Business.MinAge,
		MaxLoanIncomeMultiplier: s.cfg.GetMaxLoanIncomeMultiplier(),
	}
}

func (s *OriginationService) eligibilityParams() eligibility.Params {
	p := eligibility.DefaultParams()
	p.BaseAnnualRate = s.cfg.GetBaseAnnualRate()
	p.TenureMonths = s.cfg.Business.TenureMonths
	return p
}

// CreateApplication onboards a new loan request in DRAFT. An applicant may
// hold at most MaxApplications applications in total (terminal states
// included) and one active application per tax ID.
func (s *OriginationService) CreateApplication(ctx context.Context, applicantID string, req *domain.CreateApplicationRequest) (*domain.Application, error) {
	total, err := s.apps.CountByApplicant(ctx, applicantID)
	if err != nil {
		return nil, customError.WrapDatabaseError(err)
	}
	if total >= s.cfg.Business.MaxApplications {
		return nil, customError.WrapValidationFailed([]string{fmt.Sprintf(
			"maximum of %d applications allowed per applicant", s.cfg.Business.MaxApplications)})
	}

	now := time.Now()
	app := &domain.Application{
		ID:              uuid.New(),
		ApplicantID:     applicantID,
		FullName:        req.FullName,
		Mobile:          req.Mobile,
		TaxID:           req.TaxID,
		DateOfBirth:     req.DateOfBirth,
		Email:           req.Email,
		Address:         req.Address,
		EmploymentType:  req.EmploymentType,
		MonthlyIncome:   req.MonthlyIncome,
		RequestedAmount: req.RequestedAmount,
		Purpose:         req.Purpose,
		Status:          domain.StatusDraft,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	app.Normalize()

	if violations := domain.ValidateRules(app, s.rules(), now); len(violations) > 0 {
		return nil, customError.WrapValidationFailed(violations)
	}

	existing, err := s.apps.FindActiveByTaxID(ctx, applicantID, app.TaxID)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return nil, customError.WrapDatabaseError(err)
	}
	if existing != nil {
		return nil, customError.WrapValidationFailed([]string{fmt.Sprintf(
			"an active application already exists for this tax ID, application ID: %s", existing.ID)})
	}

	if err := s.apps.Create(ctx, app); err != nil {
		return nil, customError.WrapDatabaseError(err)
	}

	s.log.Info("application created",
		zap.String("application_id", app.ID.String()),
		zap.String("applicant_id", applicantID),
	)

	return app, nil
}

// UpdateApplication applies a partial patch to a DRAFT application. When
// income or the requested amount change, the creation-time rules are
// re-validated (tax ID and date of birth are immutable and stay untouched).
func (s *OriginationService) UpdateApplication(ctx context.Context, id uuid.UUID, patch *domain.UpdateApplicationRequest) (*domain.Application, error) {
	app, err := s.loadApplication(ctx, id)
	if err != nil {
		return nil, err
	}

	if err := workflow.AssertStatus(app.Status, domain.StatusDraft); err != nil {
		return nil, err
	}

	moneyChanged := patch.MonthlyIncome != nil || patch.RequestedAmount != nil

	if patch.FullName != nil {
		app.FullName = *patch.FullName
	}
	if patch.Mobile != nil {
		app.Mobile = *patch.Mobile
	}
	if patch.Email != nil {
		app.Email = *patch.Email
	}
	if patch.Address != nil {
		app.Address = *patch.Address
	}
	if patch.EmploymentType != nil {
		app.EmploymentType = *patch.EmploymentType
	}
	if patch.MonthlyIncome != nil {
		app.MonthlyIncome = *patch.MonthlyIncome
	}
	if patch.RequestedAmount != nil {
		app.RequestedAmount = *patch.RequestedAmount
	}
	if patch.Purpose != nil {
		app.Purpose = *patch.Purpose
	}
	app.Normalize()

	if moneyChanged {
		if violations := domain.ValidateRules(app, s.rules(), time.Now()); len(violations) > 0 {
			return nil, customError.WrapValidationFailed(violations)
		}
	}

	if err := s.apps.Update(ctx, app); err != nil {
		return nil, customError.WrapDatabaseError(err)
	}

	s.invalidateHistory(ctx, id)

	return app, nil
}

// RunIdentityCheck moves a DRAFT application through the identity stage:
// DRAFT -> IDENTITY_PENDING -> IDENTITY_COMPLETED or NOT_ELIGIBLE. The
// DRAFT -> IDENTITY_PENDING transition is conditional on the stored status,
// so of two concurrent calls exactly one proceeds.
func (s *OriginationService) RunIdentityCheck(ctx context.Context, id uuid.UUID) (*domain.IdentityCheckResponse, error) {
	app, err := s.loadApplication(ctx, id)
	if err != nil {
		return nil, err
	}

	if err := workflow.AssertStatus(app.Status, domain.StatusDraft); err != nil {
		return nil, err
	}

	if err := s.transition(ctx, id, domain.StatusDraft, domain.StatusIdentityPending); err != nil {
		return nil, err
	}

	payload, err := s.identity.Check(ctx, app.FullName, app.TaxID)
	if err != nil {
		// The application stays IDENTITY_PENDING; the recovery sweep
		// reverts it so the check can be re-issued.
		s.log.Warn("identity verifier unavailable",
			zap.String("application_id", id.String()), zap.Error(err))
		return nil, customError.WrapCollaboratorUnavailable("identity verification service", err)
	}

	verdict := verification.InterpretIdentityResult(payload, s.cfg.Business.MinIdentityScore)
	next, _ := workflow.NextStatus(domain.StatusIdentityPending, verdict.Passed)

	now := time.Now()
	res := &domain.IdentityResult{
		ID:              uuid.New(),
		ApplicationID:   id,
		NameMatchScore:  verdict.Score,
		Status:          verdict.Status,
		TaxIDVerified:   payload.TaxIDVerified,
		AddressVerified: payload.AddressVerified,
		RawResponse:     marshalRaw(payload),
		CreatedAt:       now,
		UpdatedAt:       now,
	}

	if err := s.results.SaveIdentityResult(ctx, res, domain.StatusIdentityPending, next); err != nil {
		if errors.Is(err, repository.ErrStatusConflict) {
			// The recovery sweep reverted the pending state underneath us.
			return nil, customError.WrapWorkflowViolation(fmt.Sprintf(
				"application %s is no longer in %q", id, domain.StatusIdentityPending))
		}
		return nil, customError.WrapDatabaseError(err)
	}

	s.invalidateHistory(ctx, id)

	message := "Identity verification passed. You can proceed to credit check."
	if !verdict.Passed {
		message = fmt.Sprintf("Identity verification failed. Name match score: %d. Minimum required: %d.",
			verdict.Score, s.cfg.Business.MinIdentityScore)
	}

	s.log.Info("identity check completed",
		zap.String("application_id", id.String()),
		zap.Int("score", verdict.Score),
		zap.String("status", string(next)),
	)

	return &domain.IdentityCheckResponse{
		ApplicationID:     id,
		NameMatchScore:    verdict.Score,
		IdentityStatus:    verdict.Status,
		ApplicationStatus: next,
		Message:           message,
	}, nil
}

// RetryIdentityCheck re-runs the identity stage for an application that went
// NOT_ELIGIBLE on a failed identity verification. The existing result is
// overwritten in place; this is the only retry path in the workflow.
func (s *OriginationService) RetryIdentityCheck(ctx context.Context, id uuid.UUID) (*domain.IdentityCheckResponse, error) {
	app, err := s.loadApplication(ctx, id)
	if err != nil {
		return nil, err
	}

	if app.Status == domain.StatusIdentityCompleted {
		return nil, customError.WrapInvalidRetry("identity verification already completed for this application")
	}
	if app.Status != domain.StatusNotEligible {
		return nil, customError.WrapInvalidRetry(fmt.Sprintf(
			"identity retry is only allowed for failed applications, current status: %s", app.Status))
	}

	existing, err := s.results.GetIdentityResult(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, customError.WrapInvalidRetry("identity retry is only allowed after a failed identity verification")
		}
		return nil, customError.WrapDatabaseError(err)
	}
	if existing.Status != domain.IdentityFailed {
		return nil, customError.WrapInvalidRetry("identity retry is only allowed after a failed identity verification")
	}

	payload, err := s.identity.Check(ctx, app.FullName, app.TaxID)
	if err != nil {
		s.log.Warn("identity verifier unavailable on retry",
			zap.String("application_id", id.String()), zap.Error(err))
		return nil, customError.WrapCollaboratorUnavailable("identity verification service", err)
	}

	verdict := verification.InterpretIdentityResult(payload, s.cfg.Business.MinIdentityScore)

	// Same outcome-conditioned targets as the first attempt.
	next := domain.StatusNotEligible
	if verdict.Passed {
		next = domain.StatusIdentityCompleted
	}

	existing.NameMatchScore = verdict.Score
	existing.Status = verdict.Status
	existing.TaxIDVerified = payload.TaxIDVerified
	existing.AddressVerified = payload.AddressVerified
	existing.RawResponse = marshalRaw(payload)
	existing.UpdatedAt = time.Now()

	// Conditional on the status still being NOT_ELIGIBLE: a concurrent retry
	// that already won must not have its outcome overwritten, and an
	// application that advanced past the identity stage must never be pulled
	// back out of its current state.
	if err := s.results.SaveIdentityResult(ctx, existing, domain.StatusNotEligible, next); err != nil {
		if errors.Is(err, repository.ErrStatusConflict) {
			return nil, customError.WrapInvalidRetry(fmt.Sprintf(
				"application %s changed state concurrently, retry no longer applies", id))
		}
		return nil, customError.WrapDatabaseError(err)
	}

	s.invalidateHistory(ctx, id)

	message := "Identity verification passed on retry. You can proceed to credit check."
	if !verdict.Passed {
		message = fmt.Sprintf("Identity verification failed again. Name match score: %d. Minimum required: %d.",
			verdict.Score, s.cfg.Business.MinIdentityScore)
	}

	return &domain.IdentityCheckResponse{
		ApplicationID:     id,
		NameMatchScore:    verdict.Score,
		IdentityStatus:    verdict.Status,
		ApplicationStatus: next,
		Message:           message,
	}, nil
}

// RunCreditCheck moves an IDENTITY_COMPLETED application through the credit
// stage. On bureau approval the eligibility calculation runs immediately and
// picks the terminal state; the credit result, the eligibility result and
// the final status are written as one unit.
func (s *OriginationService) RunCreditCheck(ctx context.Context, id uuid.UUID) (*domain.CreditCheckResponse, error) {
	app, err := s.loadApplication(ctx, id)
	if err != nil {
		return nil, err
	}

	if err := workflow.AssertStatus(app.Status, domain.StatusIdentityCompleted); err != nil {
		return nil, err
	}

	if err := s.transition(ctx, id, domain.StatusIdentityCompleted, domain.StatusCreditPending); err != nil {
		return nil, err
	}

	payload, err := s.bureau.Check(ctx, app.TaxID)
	if err != nil {
		s.log.Warn("credit bureau unavailable",
			zap.String("application_id", id.String()), zap.Error(err))
		return nil, customError.WrapCollaboratorUnavailable("credit bureau service", err)
	}

	verdict := verification.InterpretCreditResult(payload, s.cfg.Business.MinCreditScore, s.cfg.Business.MaxActiveLoans)

	credit := &domain.CreditResult{
		ID:                  uuid.New(),
		ApplicationID:       id,
		CreditScore:         payload.CreditScore,
		ActiveLoans:         payload.ActiveLoans,
		Utilization:         utils.DecimalFromFloat(payload.Utilization),
		PaymentHistoryScore: utils.DecimalFromFloat(payload.PaymentHistoryScore),
		Rating:              payload.Rating,
		Approved:            verdict.Approved,
		RejectionReason:     strings.Join(verdict.Reasons, "; "),
		RawResponse:         marshalRaw(payload),
		CreatedAt:           time.Now(),
	}

	var (
		final   domain.ApplicationStatus
		message string
	)

	if verdict.Approved {
		completed, _ := workflow.NextStatus(domain.StatusCreditPending, true)

		calc := eligibility.Calculate(
			app.MonthlyIncome,
			app.EmploymentType,
			app.RequestedAmount,
			payload.CreditScore,
			s.eligibilityParams(),
		)

		final, _ = workflow.NextStatus(completed, calc.Eligible)

		elig := &domain.EligibilityResult{
			ID:                uuid.New(),
			ApplicationID:     id,
			MaxInstallment:    calc.MaxInstallment,
			AnnualRate:        calc.AnnualRate,
			TenureMonths:      calc.TenureMonths,
			EligibleAmount:    calc.EligibleAmount,
			ActualInstallment: calc.ActualInstallment,
			Eligible:          calc.Eligible,
			RejectionReasons:  strings.Join(calc.RejectionReasons, "; "),
			CreatedAt:         time.Now(),
		}

		if err := s.saveCreditOutcome(ctx, id, credit, elig, final); err != nil {
			return nil, err
		}

		if calc.Eligible {
			message = fmt.Sprintf("Congratulations! You are eligible for a loan up to %s",
				calc.EligibleAmount.StringFixed(2))
		} else {
			message = fmt.Sprintf("Not eligible: %s", strings.Join(calc.RejectionReasons, "; "))
		}
	} else {
		final, _ = workflow.NextStatus(domain.StatusCreditPending, false)

		if err := s.saveCreditOutcome(ctx, id, credit, nil, final); err != nil {
			return nil, err
		}

		message = fmt.Sprintf("Credit check failed: %s", strings.Join(verdict.Reasons, "; "))
	}

	s.invalidateHistory(ctx, id)

	s.log.Info("credit check completed",
		zap.String("application_id", id.String()),
		zap.Int("credit_score", payload.CreditScore),
		zap.Bool("approved", verdict.Approved),
		zap.String("status", string(final)),
	)

	return &domain.CreditCheckResponse{
		ApplicationID:     id,
		CreditScore:       payload.CreditScore,
		ActiveLoans:       payload.ActiveLoans,
		Approved:          verdict.Approved,
		RejectionReason:   credit.RejectionReason,
		ApplicationStatus: final,
		Message:           message,
	}, nil
}

// GetFullHistory returns the application together with whichever results
// exist. Responses are cached in Redis and invalidated on every transition.
func (s *OriginationService) GetFullHistory(ctx context.Context, id uuid.UUID) (*domain.FullHistory, error) {
	if s.redis != nil {
		if cached, err := s.redis.Get(ctx, historyKey(id)).Result(); err == nil {
			var history domain.FullHistory
			if err := json.Unmarshal([]byte(cached), &history); err == nil {
				return &history, nil
			}
		}
	}

	app, err := s.loadApplication(ctx, id)
	if err != nil {
		return nil, err
	}

	history := &domain.FullHistory{Application: app}

	if res, err := s.results.GetIdentityResult(ctx, id); err == nil {
		history.IdentityResult = res
	} else if !errors.Is(err, sql.ErrNoRows) {
		return nil, customError.WrapDatabaseError(err)
	}

	if res, err := s.results.GetCreditResult(ctx, id); err == nil {
		history.CreditResult = res
	} else if !errors.Is(err, sql.ErrNoRows) {
		return nil, customError.WrapDatabaseError(err)
	}

	if res, err := s.results.GetEligibilityResult(ctx, id); err == nil {
		history.EligibilityResult = res
	} else if !errors.Is(err, sql.ErrNoRows) {
		return nil, customError.WrapDatabaseError(err)
	}

	if s.redis != nil {
		if data, err := json.Marshal(history); err == nil {
			if err := s.redis.Set(ctx, historyKey(id), data, s.cfg.Business.HistoryCacheTTL).Err(); err != nil {
				s.log.Warn("caching full history", zap.String("application_id", id.String()), zap.Error(err))
			}
		}
	}

	return history, nil
}

// ListByApplicant returns the applicant's applications, newest first.
func (s *OriginationService) ListByApplicant(ctx context.Context, applicantID string) ([]*domain.Application, error) {
	apps, err := s.apps.ListByApplicant(ctx, applicantID)
	if err != nil {
		return nil, customError.WrapDatabaseError(err)
	}
	return apps, nil
}

// ListApplications returns applications matching the filter, newest first.
func (s *OriginationService) ListApplications(ctx context.Context, filter domain.ListFilter) ([]*domain.Application, error) {
	apps, err := s.apps.List(ctx, filter)
	if err != nil {
		return nil, customError.WrapDatabaseError(err)
	}
	return apps, nil
}

// TotalApplications returns the overall application count.
func (s *OriginationService) TotalApplications(ctx context.Context) (int, error) {
	count, err := s.apps.Count(ctx)
	if err != nil {
		return 0, customError.WrapDatabaseError(err)
	}
	return count, nil
}

// RecoverStuckPending reverts applications left in a pending state by a
// collaborator outage so the original operation can be re-issued. Invoked by
// the scheduler binary.
func (s *OriginationService) RecoverStuckPending(ctx context.Context) (int64, error) {
	cutoff := time.Now().Add(-s.cfg.Scheduler.PendingRecoveryAfter)

	recovered, err := s.apps.RecoverStuckPending(ctx, cutoff)
	if err != nil {
		return 0, customError.WrapDatabaseError(err)
	}

	if recovered > 0 {
		s.log.Info("recovered stuck pending applications", zap.Int64("count", recovered))
	}

	return recovered, nil
}

func (s *OriginationService) loadApplication(ctx context.Context, id uuid.UUID) (*domain.Application, error) {
	app, err := s.apps.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, customError.WrapApplicationNotFound(id.String())
		}
		return nil, customError.WrapDatabaseError(err)
	}
	return app, nil
}

// saveCreditOutcome persists the credit stage outcome conditional on the
// application still being CREDIT_PENDING.
func (s *OriginationService) saveCreditOutcome(ctx context.Context, id uuid.UUID, credit *domain.CreditResult, elig *domain.EligibilityResult, final domain.ApplicationStatus) error {
	if err := s.results.SaveCreditOutcome(ctx, credit, elig, domain.StatusCreditPending, final); err != nil {
		if errors.Is(err, repository.ErrStatusConflict) {
			return customError.WrapWorkflowViolation(fmt.Sprintf(
				"application %s is no longer in %q", id, domain.StatusCreditPending))
		}
		return customError.WrapDatabaseError(err)
	}
	return nil
}

// transition applies the conditional status update and maps a lost race to a
// workflow violation, since the precondition no longer holds.
func (s *OriginationService) transition(ctx context.Context, id uuid.UUID, from, to domain.ApplicationStatus) error {
	if err := workflow.ValidateTransition(from, to); err != nil {
		return err
	}
	if err := s.apps.TransitionStatus(ctx, id, from, to); err != nil {
		if errors.Is(err, repository.ErrStatusConflict) {
			return customError.WrapWorkflowViolation(fmt.Sprintf(
				"application %s is no longer in %q", id, from))
		}
		return customError.WrapDatabaseError(err)
	}
	return nil
}

func (s *OriginationService) invalidateHistory(ctx context.Context, id uuid.UUID) {
	if s.redis == nil {
		return
	}
	if err := s.redis.Del(ctx, historyKey(id)).Err(); err != nil {
		s.log.Warn("invalidating history cache", zap.String("application_id", id.String()), zap.Error(err))
	}
}

func historyKey(id uuid.UUID) string {
	return fmt.Sprintf("application:history:%s", id)
}

func marshalRaw(payload interface{}) string {
	raw, err := json.Marshal(payload)
	if err != nil {
		return ""
	}
	return string(raw)
}
