package service

import (
	"context"
	"database/sql"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/minilos/origination-engine/internal/config"
	"github.com/minilos/origination-engine/internal/domain"
	"github.com/minilos/origination-engine/internal/mocks"
	"github.com/minilos/origination-engine/internal/repository"
	"github.com/minilos/origination-engine/internal/verification"
	customError "github.com/minilos/origination-engine/pkg/errors"
)

func testConfig() *config.Config {
	return &config.Config{
		Scheduler: config.SchedulerConfig{
			PendingRecoveryAfter: 15 * time.Minute,
		},
		Business: config.BusinessConfig{
			MinIdentityScore:        80,
			MinCreditScore:          650,
			MaxActiveLoans:          5,
			MaxApplications:         5,
			MaxLoanIncomeMultiplier: "20",
			MinAge:                  21,
			BaseAnnualRate:          "0.12",
			TenureMonths:            36,
			HistoryCacheTTL:         10 * time.Minute,
		},
	}
}

type serviceMocks struct {
	apps     *mocks.MockApplicationRepository
	results  *mocks.MockResultRepository
	identity *mocks.MockIdentityVerifier
	bureau   *mocks.MockCreditBureau
}

func newTestService() (*OriginationService, *serviceMocks) {
	m := &serviceMocks{
		apps:     new(mocks.MockApplicationRepository),
		results:  new(mocks.MockResultRepository),
		identity: new(mocks.MockIdentityVerifier),
		bureau:   new(mocks.MockCreditBureau),
	}
	svc := NewOriginationService(m.apps, m.results, m.identity, m.bureau, nil, testConfig(), zap.NewNop())
	return svc, m
}

func draftApplication() *domain.Application {
	return &domain.Application{
		ID:              uuid.New(),
		ApplicantID:     "applicant-1",
		FullName:        "Rahul Sharma",
		Mobile:          "9876543210",
		TaxID:           "ABCDE1234F",
		DateOfBirth:     time.Date(1990, time.March, 10, 0, 0, 0, 0, time.UTC),
		EmploymentType:  domain.EmploymentSalaried,
		MonthlyIncome:   decimal.NewFromInt(50000),
		RequestedAmount: decimal.NewFromInt(500000),
		Status:          domain.StatusDraft,
	}
}

func createRequest() *domain.CreateApplicationRequest {
	return &domain.CreateApplicationRequest{
		FullName:        "Rahul Sharma",
		Mobile:          "9876543210",
		TaxID:           "abcde1234f",
		DateOfBirth:     time.Date(1990, time.March, 10, 0, 0, 0, 0, time.UTC),
		Address:         "42 MG Road, Bengaluru",
		EmploymentType:  domain.EmploymentSalaried,
		MonthlyIncome:   decimal.NewFromInt(50000),
		RequestedAmount: decimal.NewFromInt(500000),
	}
}

func TestCreateApplication(t *testing.T) {
	ctx := context.Background()

	t.Run("success normalizes and stores in draft", func(t *testing.T) {
		svc, m := newTestService()

		m.apps.On("CountByApplicant", ctx, "applicant-1").Return(0, nil)
		m.apps.On("FindActiveByTaxID", ctx, "applicant-1", "ABCDE1234F").Return(nil, sql.ErrNoRows)
		m.apps.On("Create", ctx, mock.AnythingOfType("*domain.Application")).Return(nil)

		app, err := svc.CreateApplication(ctx, "applicant-1", createRequest())
		require.NoError(t, err)

		assert.Equal(t, "ABCDE1234F", app.TaxID)
		assert.Equal(t, domain.StatusDraft, app.Status)
		assert.NotEqual(t, uuid.Nil, app.ID)
		m.apps.AssertExpectations(t)
	})

	t.Run("application limit reached", func(t *testing.T) {
		svc, m := newTestService()

		m.apps.On("CountByApplicant", ctx, "applicant-1").Return(5, nil)

		_, err := svc.CreateApplication(ctx, "applicant-1", createRequest())
		require.Error(t, err)
		assert.Equal(t, customError.ErrCodeValidationFailed, customError.CodeOf(err))
		assert.Contains(t, err.Error(), "maximum of 5 applications")
		m.apps.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
	})

	t.Run("rule violations are joined into one error", func(t *testing.T) {
		svc, m := newTestService()

		m.apps.On("CountByApplicant", ctx, "applicant-1").Return(0, nil)

		req := createRequest()
		req.TaxID = "NOPE"
		req.Mobile = "123"

		_, err := svc.CreateApplication(ctx, "applicant-1", req)
		require.Error(t, err)
		assert.Equal(t, customError.ErrCodeValidationFailed, customError.CodeOf(err))
		assert.Contains(t, err.Error(), "invalid tax ID format")
		assert.Contains(t, err.Error(), "invalid mobile number")
		m.apps.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
	})

	t.Run("duplicate active application for tax ID", func(t *testing.T) {
		svc, m := newTestService()
		existing := draftApplication()

		m.apps.On("CountByApplicant", ctx, "applicant-1").Return(1, nil)
		m.apps.On("FindActiveByTaxID", ctx, "applicant-1", "ABCDE1234F").Return(existing, nil)

		_, err := svc.CreateApplication(ctx, "applicant-1", createRequest())
		require.Error(t, err)
		assert.Equal(t, customError.ErrCodeValidationFailed, customError.CodeOf(err))
		assert.Contains(t, err.Error(), existing.ID.String())
		m.apps.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
	})
}

func TestUpdateApplication(t *testing.T) {
	ctx := context.Background()

	t.Run("patches draft fields", func(t *testing.T) {
		svc, m := newTestService()
		app := draftApplication()

		m.apps.On("GetByID", ctx, app.ID).Return(app, nil)
		m.apps.On("Update", ctx, mock.AnythingOfType("*domain.Application")).Return(nil)

		newPurpose := "home renovation"
		updated, err := svc.UpdateApplication(ctx, app.ID, &domain.UpdateApplicationRequest{Purpose: &newPurpose})
		require.NoError(t, err)
		assert.Equal(t, "home renovation", updated.Purpose)
		m.apps.AssertExpectations(t)
	})

	t.Run("rejects update outside draft", func(t *testing.T) {
		svc, m := newTestService()
		app := draftApplication()
		app.Status = domain.StatusIdentityCompleted

		m.apps.On("GetByID", ctx, app.ID).Return(app, nil)

		name := "Someone Else"
		_, err := svc.UpdateApplication(ctx, app.ID, &domain.UpdateApplicationRequest{FullName: &name})
		require.Error(t, err)
		assert.Equal(t, customError.ErrCodeWorkflowViolation, customError.CodeOf(err))
		m.apps.AssertNotCalled(t, "Update", mock.Anything, mock.Anything)
	})

	t.Run("re-validates when the requested amount changes", func(t *testing.T) {
		svc, m := newTestService()
		app := draftApplication()

		m.apps.On("GetByID", ctx, app.ID).Return(app, nil)

		tooMuch := decimal.NewFromInt(2000000)
		_, err := svc.UpdateApplication(ctx, app.ID, &domain.UpdateApplicationRequest{RequestedAmount: &tooMuch})
		require.Error(t, err)
		assert.Equal(t, customError.ErrCodeValidationFailed, customError.CodeOf(err))
		assert.Contains(t, err.Error(), "exceeds maximum allowed")
		m.apps.AssertNotCalled(t, "Update", mock.Anything, mock.Anything)
	})

	t.Run("unknown application", func(t *testing.T) {
		svc, m := newTestService()
		id := uuid.New()

		m.apps.On("GetByID", ctx, id).Return(nil, sql.ErrNoRows)

		_, err := svc.UpdateApplication(ctx, id, &domain.UpdateApplicationRequest{})
		require.Error(t, err)
		assert.Equal(t, customError.ErrCodeNotFound, customError.CodeOf(err))
	})
}

func TestRunIdentityCheck(t *testing.T) {
	ctx := context.Background()

	t.Run("passing score completes the identity stage", func(t *testing.T) {
		svc, m := newTestService()
		app := draftApplication()

		m.apps.On("GetByID", ctx, app.ID).Return(app, nil)
		m.apps.On("TransitionStatus", ctx, app.ID, domain.StatusDraft, domain.StatusIdentityPending).Return(nil)
		m.identity.On("Check", ctx, app.FullName, app.TaxID).Return(verification.IdentityPayload{
			NameMatchScore: 92,
			Status:         "PASSED",
			TaxIDVerified:  true,
		}, nil)
		m.results.On("SaveIdentityResult", ctx, mock.AnythingOfType("*domain.IdentityResult"),
			domain.StatusIdentityPending, domain.StatusIdentityCompleted).Return(nil)

		res, err := svc.RunIdentityCheck(ctx, app.ID)
		require.NoError(t, err)

		assert.Equal(t, 92, res.NameMatchScore)
		assert.Equal(t, domain.IdentityPassed, res.IdentityStatus)
		assert.Equal(t, domain.StatusIdentityCompleted, res.ApplicationStatus)
		assert.Contains(t, res.Message, "Identity verification passed")
		m.results.AssertExpectations(t)
	})

	t.Run("failing score terminates the application", func(t *testing.T) {
		svc, m := newTestService()
		app := draftApplication()

		m.apps.On("GetByID", ctx, app.ID).Return(app, nil)
		m.apps.On("TransitionStatus", ctx, app.ID, domain.StatusDraft, domain.StatusIdentityPending).Return(nil)
		m.identity.On("Check", ctx, app.FullName, app.TaxID).Return(verification.IdentityPayload{
			NameMatchScore: 70,
			Status:         "FAILED",
		}, nil)
		m.results.On("SaveIdentityResult", ctx, mock.AnythingOfType("*domain.IdentityResult"),
			domain.StatusIdentityPending, domain.StatusNotEligible).Return(nil)

		res, err := svc.RunIdentityCheck(ctx, app.ID)
		require.NoError(t, err)

		assert.Equal(t, domain.IdentityFailed, res.IdentityStatus)
		assert.Equal(t, domain.StatusNotEligible, res.ApplicationStatus)
		assert.Contains(t, res.Message, "Name match score: 70")
	})

	t.Run("rejects non draft application", func(t *testing.T) {
		svc, m := newTestService()
		app := draftApplication()
		app.Status = domain.StatusIdentityCompleted

		m.apps.On("GetByID", ctx, app.ID).Return(app, nil)

		_, err := svc.RunIdentityCheck(ctx, app.ID)
		require.Error(t, err)
		assert.Equal(t, customError.ErrCodeWorkflowViolation, customError.CodeOf(err))
		m.identity.AssertNotCalled(t, "Check", mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("lost transition race maps to workflow violation", func(t *testing.T) {
		svc, m := newTestService()
		app := draftApplication()

		m.apps.On("GetByID", ctx, app.ID).Return(app, nil)
		m.apps.On("TransitionStatus", ctx, app.ID, domain.StatusDraft, domain.StatusIdentityPending).
			Return(repository.ErrStatusConflict)

		_, err := svc.RunIdentityCheck(ctx, app.ID)
		require.Error(t, err)
		assert.Equal(t, customError.ErrCodeWorkflowViolation, customError.CodeOf(err))
		m.identity.AssertNotCalled(t, "Check", mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("collaborator outage leaves the application pending", func(t *testing.T) {
		svc, m := newTestService()
		app := draftApplication()

		m.apps.On("GetByID", ctx, app.ID).Return(app, nil)
		m.apps.On("TransitionStatus", ctx, app.ID, domain.StatusDraft, domain.StatusIdentityPending).Return(nil)
		m.identity.On("Check", ctx, app.FullName, app.TaxID).
			Return(nil, errors.New("connection refused"))

		_, err := svc.RunIdentityCheck(ctx, app.ID)
		require.Error(t, err)
		assert.Equal(t, customError.ErrCodeCollaboratorUnavailable, customError.CodeOf(err))
		m.results.AssertNotCalled(t, "SaveIdentityResult", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
	})
}

func TestRetryIdentityCheck(t *testing.T) {
	ctx := context.Background()

	failedResult := func(id uuid.UUID) *domain.IdentityResult {
		return &domain.IdentityResult{
			ID:             uuid.New(),
			ApplicationID:  id,
			NameMatchScore: 65,
			Status:         domain.IdentityFailed,
		}
	}

	t.Run("passing retry overwrites the result in place", func(t *testing.T) {
		svc, m := newTestService()
		app := draftApplication()
		app.Status = domain.StatusNotEligible
		prior := failedResult(app.ID)
		priorID := prior.ID

		m.apps.On("GetByID", ctx, app.ID).Return(app, nil)
		m.results.On("GetIdentityResult", ctx, app.ID).Return(prior, nil)
		m.identity.On("Check", ctx, app.FullName, app.TaxID).Return(verification.IdentityPayload{
			NameMatchScore: 88,
			Status:         "PASSED",
			TaxIDVerified:  true,
		}, nil)
		m.results.On("SaveIdentityResult", ctx, mock.MatchedBy(func(res *domain.IdentityResult) bool {
			return res.ID == priorID && res.NameMatchScore == 88 && res.Status == domain.IdentityPassed
		}), domain.StatusNotEligible, domain.StatusIdentityCompleted).Return(nil)

		res, err := svc.RetryIdentityCheck(ctx, app.ID)
		require.NoError(t, err)
		assert.Equal(t, domain.StatusIdentityCompleted, res.ApplicationStatus)
		assert.Contains(t, res.Message, "passed on retry")
		m.results.AssertExpectations(t)
	})

	t.Run("failing retry stays not eligible", func(t *testing.T) {
		svc, m := newTestService()
		app := draftApplication()
		app.Status = domain.StatusNotEligible

		m.apps.On("GetByID", ctx, app.ID).Return(app, nil)
		m.results.On("GetIdentityResult", ctx, app.ID).Return(failedResult(app.ID), nil)
		m.identity.On("Check", ctx, app.FullName, app.TaxID).Return(verification.IdentityPayload{
			NameMatchScore: 62,
			Status:         "FAILED",
		}, nil)
		m.results.On("SaveIdentityResult", ctx, mock.AnythingOfType("*domain.IdentityResult"),
			domain.StatusNotEligible, domain.StatusNotEligible).Return(nil)

		res, err := svc.RetryIdentityCheck(ctx, app.ID)
		require.NoError(t, err)
		assert.Equal(t, domain.StatusNotEligible, res.ApplicationStatus)
		assert.Contains(t, res.Message, "failed again")
	})

	t.Run("retry after completed identity is invalid", func(t *testing.T) {
		svc, m := newTestService()
		app := draftApplication()
		app.Status = domain.StatusIdentityCompleted

		m.apps.On("GetByID", ctx, app.ID).Return(app, nil)

		_, err := svc.RetryIdentityCheck(ctx, app.ID)
		require.Error(t, err)
		assert.Equal(t, customError.ErrCodeInvalidRetry, customError.CodeOf(err))
		assert.Contains(t, err.Error(), "already completed")
	})

	t.Run("retry from draft is invalid", func(t *testing.T) {
		svc, m := newTestService()
		app := draftApplication()

		m.apps.On("GetByID", ctx, app.ID).Return(app, nil)

		_, err := svc.RetryIdentityCheck(ctx, app.ID)
		require.Error(t, err)
		assert.Equal(t, customError.ErrCodeInvalidRetry, customError.CodeOf(err))
	})

	t.Run("retry without a failed identity result is invalid", func(t *testing.T) {
		svc, m := newTestService()
		app := draftApplication()
		app.Status = domain.StatusNotEligible

		m.apps.On("GetByID", ctx, app.ID).Return(app, nil)
		m.results.On("GetIdentityResult", ctx, app.ID).Return(nil, sql.ErrNoRows)

		_, err := svc.RetryIdentityCheck(ctx, app.ID)
		require.Error(t, err)
		assert.Equal(t, customError.ErrCodeInvalidRetry, customError.CodeOf(err))
	})

	t.Run("retry after credit stage rejection is invalid", func(t *testing.T) {
		// NOT_ELIGIBLE reached via the credit stage leaves a passed identity
		// result behind; that application cannot re-enter the workflow.
		svc, m := newTestService()
		app := draftApplication()
		app.Status = domain.StatusNotEligible

		passed := failedResult(app.ID)
		passed.Status = domain.IdentityPassed
		passed.NameMatchScore = 91

		m.apps.On("GetByID", ctx, app.ID).Return(app, nil)
		m.results.On("GetIdentityResult", ctx, app.ID).Return(passed, nil)

		_, err := svc.RetryIdentityCheck(ctx, app.ID)
		require.Error(t, err)
		assert.Equal(t, customError.ErrCodeInvalidRetry, customError.CodeOf(err))
		m.identity.AssertNotCalled(t, "Check", mock.Anything, mock.Anything, mock.Anything)
	})
}

func TestRunCreditCheck(t *testing.T) {
	ctx := context.Background()

	identityCompleted := func() *domain.Application {
		app := draftApplication()
		app.Status = domain.StatusIdentityCompleted
		return app
	}

	t.Run("approved and affordable ends eligible", func(t *testing.T) {
		svc, m := newTestService()
		app := identityCompleted()

		m.apps.On("GetByID", ctx, app.ID).Return(app, nil)
		m.apps.On("TransitionStatus", ctx, app.ID, domain.StatusIdentityCompleted, domain.StatusCreditPending).Return(nil)
		m.bureau.On("Check", ctx, app.TaxID).Return(verification.CreditPayload{
			CreditScore: 720,
			ActiveLoans: 2,
			Rating:      "GOOD",
		}, nil)
		m.results.On("SaveCreditOutcome", ctx,
			mock.AnythingOfType("*domain.CreditResult"),
			mock.MatchedBy(func(elig *domain.EligibilityResult) bool {
				// 720 earns one point off the base rate.
				return elig != nil && elig.Eligible && elig.AnnualRate.String() == "0.11"
			}),
			domain.StatusCreditPending, domain.StatusEligible,
		).Return(nil)

		res, err := svc.RunCreditCheck(ctx, app.ID)
		require.NoError(t, err)

		assert.True(t, res.Approved)
		assert.Equal(t, domain.StatusEligible, res.ApplicationStatus)
		assert.Contains(t, res.Message, "Congratulations")
		m.results.AssertExpectations(t)
	})

	t.Run("approved but unaffordable ends not eligible", func(t *testing.T) {
		svc, m := newTestService()
		app := identityCompleted()
		app.MonthlyIncome = decimal.NewFromInt(30000)
		app.RequestedAmount = decimal.NewFromInt(600000)

		m.apps.On("GetByID", ctx, app.ID).Return(app, nil)
		m.apps.On("TransitionStatus", ctx, app.ID, domain.StatusIdentityCompleted, domain.StatusCreditPending).Return(nil)
		m.bureau.On("Check", ctx, app.TaxID).Return(verification.CreditPayload{
			CreditScore: 660,
			ActiveLoans: 1,
			Rating:      "FAIR",
		}, nil)
		m.results.On("SaveCreditOutcome", ctx,
			mock.AnythingOfType("*domain.CreditResult"),
			mock.MatchedBy(func(elig *domain.EligibilityResult) bool {
				return elig != nil && !elig.Eligible
			}),
			domain.StatusCreditPending, domain.StatusNotEligible,
		).Return(nil)

		res, err := svc.RunCreditCheck(ctx, app.ID)
		require.NoError(t, err)

		assert.True(t, res.Approved)
		assert.Equal(t, domain.StatusNotEligible, res.ApplicationStatus)
		assert.Contains(t, res.Message, "exceeds eligible amount")
	})

	t.Run("bureau rejection skips the eligibility calculation", func(t *testing.T) {
		svc, m := newTestService()
		app := identityCompleted()

		m.apps.On("GetByID", ctx, app.ID).Return(app, nil)
		m.apps.On("TransitionStatus", ctx, app.ID, domain.StatusIdentityCompleted, domain.StatusCreditPending).Return(nil)
		m.bureau.On("Check", ctx, app.TaxID).Return(verification.CreditPayload{
			CreditScore: 610,
			ActiveLoans: 1,
			Rating:      "POOR",
		}, nil)
		m.results.On("SaveCreditOutcome", ctx,
			mock.AnythingOfType("*domain.CreditResult"),
			(*domain.EligibilityResult)(nil),
			domain.StatusCreditPending, domain.StatusNotEligible,
		).Return(nil)

		res, err := svc.RunCreditCheck(ctx, app.ID)
		require.NoError(t, err)

		assert.False(t, res.Approved)
		assert.Equal(t, domain.StatusNotEligible, res.ApplicationStatus)
		assert.Contains(t, res.RejectionReason, "credit score 610 is below minimum required score of 650")
		m.results.AssertExpectations(t)
	})

	t.Run("rejects application outside identity completed", func(t *testing.T) {
		svc, m := newTestService()
		app := draftApplication()

		m.apps.On("GetByID", ctx, app.ID).Return(app, nil)

		_, err := svc.RunCreditCheck(ctx, app.ID)
		require.Error(t, err)
		assert.Equal(t, customError.ErrCodeWorkflowViolation, customError.CodeOf(err))
		m.bureau.AssertNotCalled(t, "Check", mock.Anything, mock.Anything)
	})

	t.Run("bureau outage leaves the application pending", func(t *testing.T) {
		svc, m := newTestService()
		app := identityCompleted()

		m.apps.On("GetByID", ctx, app.ID).Return(app, nil)
		m.apps.On("TransitionStatus", ctx, app.ID, domain.StatusIdentityCompleted, domain.StatusCreditPending).Return(nil)
		m.bureau.On("Check", ctx, app.TaxID).Return(nil, errors.New("timeout"))

		_, err := svc.RunCreditCheck(ctx, app.ID)
		require.Error(t, err)
		assert.Equal(t, customError.ErrCodeCollaboratorUnavailable, customError.CodeOf(err))
		m.results.AssertNotCalled(t, "SaveCreditOutcome", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything)
	})
}

func TestRecoverStuckPending(t *testing.T) {
	ctx := context.Background()
	svc, m := newTestService()

	m.apps.On("RecoverStuckPending", ctx, mock.AnythingOfType("time.Time")).Return(int64(3), nil)

	recovered, err := svc.RecoverStuckPending(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(3), recovered)
}

// stalledVerifier parks the first identity call between its precondition
// reads and its result save until released; later calls go straight through.
type stalledVerifier struct {
	entered chan struct{}
	release chan struct{}
	inner   verification.IdentityVerifier
	first   int32
}

func (v *stalledVerifier) Check(ctx context.Context, name, taxID string) (verification.IdentityPayload, error) {
	if atomic.CompareAndSwapInt32(&v.first, 0, 1) {
		close(v.entered)
		<-v.release
	}
	return v.inner.Check(ctx, name, taxID)
}

// TestRetryCannotExitTerminalState pins the conditional result save: a retry
// that read its preconditions before a concurrent retry won and drove the
// application all the way to ELIGIBLE must fail when it resumes, instead of
// dragging the application back out of the terminal state.
func TestRetryCannotExitTerminalState(t *testing.T) {
	ctx := context.Background()
	store := repository.NewMemoryStore()

	passingSeed := func(string) int64 { return 1 }
	verifier := &stalledVerifier{
		entered: make(chan struct{}),
		release: make(chan struct{}),
		inner:   verification.NewMockIdentityVerifier(passingSeed),
	}
	svc := NewOriginationService(
		store, store,
		verifier,
		verification.NewMockCreditBureau(passingSeed),
		nil, testConfig(), zap.NewNop(),
	)

	app := draftApplication()
	app.Status = domain.StatusNotEligible
	require.NoError(t, store.Create(ctx, app))
	require.NoError(t, store.SaveIdentityResult(ctx, &domain.IdentityResult{
		ID:             uuid.New(),
		ApplicationID:  app.ID,
		NameMatchScore: 65,
		Status:         domain.IdentityFailed,
	}, domain.StatusNotEligible, domain.StatusNotEligible))

	stalledErr := make(chan error, 1)
	go func() {
		_, err := svc.RetryIdentityCheck(ctx, app.ID)
		stalledErr <- err
	}()
	<-verifier.entered

	// While the first retry is parked, a second retry wins and the
	// application runs to its terminal state.
	res, err := svc.RetryIdentityCheck(ctx, app.ID)
	require.NoError(t, err)
	require.Equal(t, domain.StatusIdentityCompleted, res.ApplicationStatus)

	credit, err := svc.RunCreditCheck(ctx, app.ID)
	require.NoError(t, err)
	require.Equal(t, domain.StatusEligible, credit.ApplicationStatus)

	close(verifier.release)
	err = <-stalledErr
	require.Error(t, err)
	assert.Equal(t, customError.ErrCodeInvalidRetry, customError.CodeOf(err))

	final, err := store.GetByID(ctx, app.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusEligible, final.Status)
}

// TestConcurrentIdentityCheck drives two simultaneous identity checks against
// the in-memory store: exactly one must win the DRAFT -> IDENTITY_PENDING
// transition, the other must fail with a workflow violation.
func TestConcurrentIdentityCheck(t *testing.T) {
	ctx := context.Background()

	for round := 0; round < 20; round++ {
		store := repository.NewMemoryStore()
		alwaysPass := func(string) int64 { return 1 } // seed 1 scores >= 80
		svc := NewOriginationService(
			store, store,
			verification.NewMockIdentityVerifier(alwaysPass),
			verification.NewMockCreditBureau(alwaysPass),
			nil, testConfig(), zap.NewNop(),
		)

		app := draftApplication()
		require.NoError(t, store.Create(ctx, app))

		var wg sync.WaitGroup
		errs := make([]error, 2)
		for i := 0; i < 2; i++ {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				_, errs[i] = svc.RunIdentityCheck(ctx, app.ID)
			}(i)
		}
		wg.Wait()

		var okCount, violations int
		for _, err := range errs {
			if err == nil {
				okCount++
				continue
			}
			if customError.CodeOf(err) == customError.ErrCodeWorkflowViolation {
				violations++
			}
		}

		assert.Equal(t, 1, okCount, "round %d: exactly one call must succeed", round)
		assert.Equal(t, 1, violations, "round %d: the loser must see a workflow violation", round)

		final, err := store.GetByID(ctx, app.ID)
		require.NoError(t, err)
		assert.Contains(t, []domain.ApplicationStatus{
			domain.StatusIdentityCompleted, domain.StatusNotEligible,
		}, final.Status, "round %d", round)
	}
}
