package mocks

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"

	"github.com/minilos/origination-engine/internal/domain"
	"github.com/minilos/origination-engine/internal/verification"
)

// MockApplicationRepository is a mock implementation of repository.ApplicationRepository
type MockApplicationRepository struct {
	mock.Mock
}

func (m *MockApplicationRepository) Create(ctx context.Context, app *domain.Application) error {
	args := m.Called(ctx, app)
	return args.Error(0)
}

func (m *MockApplicationRepository) GetByID(ctx context.Context, id uuid.UUID) (*domain.Application, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Application), args.Error(1)
}

func (m *MockApplicationRepository) Update(ctx context.Context, app *domain.Application) error {
	args := m.Called(ctx, app)
	return args.Error(0)
}

func (m *MockApplicationRepository) TransitionStatus(ctx context.Context, id uuid.UUID, from, to domain.ApplicationStatus) error {
	args := m.Called(ctx, id, from, to)
	return args.Error(0)
}

func (m *MockApplicationRepository) ListByApplicant(ctx context.Context, applicantID string) ([]*domain.Application, error) {
	args := m.Called(ctx, applicantID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*domain.Application), args.Error(1)
}

func (m *MockApplicationRepository) List(ctx context.Context, filter domain.ListFilter) ([]*domain.Application, error) {
	args := m.Called(ctx, filter)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*domain.Application), args.Error(1)
}

func (m *MockApplicationRepository) Count(ctx context.Context) (int, error) {
	args := m.Called(ctx)
	return args.Int(0), args.Error(1)
}

func (m *MockApplicationRepository) CountByApplicant(ctx context.Context, applicantID string) (int, error) {
	args := m.Called(ctx, applicantID)
	return args.Int(0), args.Error(1)
}

func (m *MockApplicationRepository) FindActiveByTaxID(ctx context.Context, applicantID, taxID string) (*domain.Application, error) {
	args := m.Called(ctx, applicantID, taxID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Application), args.Error(1)
}

func (m *MockApplicationRepository) RecoverStuckPending(ctx context.Context, cutoff time.Time) (int64, error) {
	args := m.Called(ctx, cutoff)
	return args.Get(0).(int64), args.Error(1)
}

// MockResultRepository is a mock implementation of repository.ResultRepository
type MockResultRepository struct {
	mock.Mock
}

func (m *MockResultRepository) SaveIdentityResult(ctx context.Context, res *domain.IdentityResult, from, to domain.ApplicationStatus) error {
	args := m.Called(ctx, res, from, to)
	return args.Error(0)
}

func (m *MockResultRepository) GetIdentityResult(ctx context.Context, applicationID uuid.UUID) (*domain.IdentityResult, error) {
	args := m.Called(ctx, applicationID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.IdentityResult), args.Error(1)
}

func (m *MockResultRepository) SaveCreditOutcome(ctx context.Context, credit *domain.CreditResult, elig *domain.EligibilityResult, from, to domain.ApplicationStatus) error {
	args := m.Called(ctx, credit, elig, from, to)
	return args.Error(0)
}

func (m *MockResultRepository) GetCreditResult(ctx context.Context, applicationID uuid.UUID) (*domain.CreditResult, error) {
	args := m.Called(ctx, applicationID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.CreditResult), args.Error(1)
}

func (m *MockResultRepository) GetEligibilityResult(ctx context.Context, applicationID uuid.UUID) (*domain.EligibilityResult, error) {
	args := m.Called(ctx, applicationID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.EligibilityResult), args.Error(1)
}

// MockIdentityVerifier is a mock implementation of verification.IdentityVerifier
type MockIdentityVerifier struct {
	mock.Mock
}

func (m *MockIdentityVerifier) Check(ctx context.Context, name, taxID string) (verification.IdentityPayload, error) {
	args := m.Called(ctx, name, taxID)
	if args.Get(0) == nil {
		return verification.IdentityPayload{}, args.Error(1)
	}
	return args.Get(0).(verification.IdentityPayload), args.Error(1)
}

// MockCreditBureau is a mock implementation of verification.CreditBureau
type MockCreditBureau struct {
	mock.Mock
}

func (m *MockCreditBureau) Check(ctx context.Context, taxID string) (verification.CreditPayload, error) {
	args := m.Called(ctx, taxID)
	if args.Get(0) == nil {
		return verification.CreditPayload{}, args.Error(1)
	}
	return args.Get(0).(verification.CreditPayload), args.Error(1)
}
