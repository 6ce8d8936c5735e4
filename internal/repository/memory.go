package repository

import (
	"context"
	"database/sql"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/minilos/origination-engine/internal/domain"
)

// MemoryStore is an in-memory implementation of both repository interfaces.
// It mirrors the Postgres semantics the service relies on: sql.ErrNoRows for
// missing rows and a compare-and-set TransitionStatus guarded by a single
// mutex, which makes each application's transitions linearizable.
type MemoryStore struct {
	mu          sync.Mutex
	apps        map[uuid.UUID]*domain.Application
	identity    map[uuid.UUID]*domain.IdentityResult
	credit      map[uuid.UUID]*domain.CreditResult
	eligibility map[uuid.UUID]*domain.EligibilityResult
}

var (
	_ ApplicationRepository = (*MemoryStore)(nil)
	_ ResultRepository      = (*MemoryStore)(nil)
)

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		apps:        make(map[uuid.UUID]*domain.Application),
		identity:    make(map[uuid.UUID]*domain.IdentityResult),
		credit:      make(map[uuid.UUID]*domain.CreditResult),
		eligibility: make(map[uuid.UUID]*domain.EligibilityResult),
	}
}

func (s *MemoryStore) Create(_ context.Context, app *domain.Application) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	cp := *app
	s.apps[app.ID] = &cp
	return nil
}

func (s *MemoryStore) GetByID(_ context.Context, id uuid.UUID) (*domain.Application, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	app, ok := s.apps[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	cp := *app
	return &cp, nil
}

func (s *MemoryStore) Update(_ context.Context, app *domain.Application) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	stored, ok := s.apps[app.ID]
	if !ok {
		return sql.ErrNoRows
	}

	cp := *app
	cp.Status = stored.Status
	cp.UpdatedAt = time.Now()
	s.apps[app.ID] = &cp
	return nil
}

func (s *MemoryStore) TransitionStatus(_ context.Context, id uuid.UUID, from, to domain.ApplicationStatus) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	app, ok := s.apps[id]
	if !ok {
		return sql.ErrNoRows
	}
	if app.Status != from {
		return ErrStatusConflict
	}

	app.Status = to
	app.UpdatedAt = time.Now()
	return nil
}

func (s *MemoryStore) ListByApplicant(_ context.Context, applicantID string) ([]*domain.Application, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var apps []*domain.Application
	for _, app := range s.apps {
		if app.ApplicantID == applicantID {
			cp := *app
			apps = append(apps, &cp)
		}
	}
	sortNewestFirst(apps)
	return apps, nil
}

func (s *MemoryStore) List(_ context.Context, filter domain.ListFilter) ([]*domain.Application, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var apps []*domain.Application
	for _, app := range s.apps {
		if filter.Status != "" && app.Status != filter.Status {
			continue
		}
		cp := *app
		apps = append(apps, &cp)
	}
	sortNewestFirst(apps)

	limit := filter.Limit
	if limit <= 0 {
		limit = 50
	}
	if filter.Offset >= len(apps) {
		return nil, nil
	}
	apps = apps[filter.Offset:]
	if len(apps) > limit {
		apps = apps[:limit]
	}
	return apps, nil
}

func (s *MemoryStore) Count(_ context.Context) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.apps), nil
}

func (s *MemoryStore) CountByApplicant(_ context.Context, applicantID string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	count := 0
	for _, app := range s.apps {
		if app.ApplicantID == applicantID {
			count++
		}
	}
	return count, nil
}

func (s *MemoryStore) FindActiveByTaxID(_ context.Context, applicantID, taxID string) (*domain.Application, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, app := range s.apps {
		if app.ApplicantID != applicantID || app.TaxID != taxID {
			continue
		}
		for _, active := range domain.ActiveStatuses {
			if app.Status == active {
				cp := *app
				return &cp, nil
			}
		}
	}
	return nil, sql.ErrNoRows
}

func (s *MemoryStore) RecoverStuckPending(_ context.Context, cutoff time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var recovered int64
	for _, app := range s.apps {
		if !app.UpdatedAt.Before(cutoff) {
			continue
		}
		switch app.Status {
		case domain.StatusIdentityPending:
			app.Status = domain.StatusDraft
		case domain.StatusCreditPending:
			app.Status = domain.StatusIdentityCompleted
		default:
			continue
		}
		app.UpdatedAt = time.Now()
		recovered++
	}
	return recovered, nil
}

func (s *MemoryStore) SaveIdentityResult(_ context.Context, res *domain.IdentityResult, from, to domain.ApplicationStatus) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	app, ok := s.apps[res.ApplicationID]
	if !ok {
		return sql.ErrNoRows
	}
	if app.Status != from {
		return ErrStatusConflict
	}

	cp := *res
	s.identity[res.ApplicationID] = &cp
	app.Status = to
	app.UpdatedAt = time.Now()
	return nil
}

func (s *MemoryStore) GetIdentityResult(_ context.Context, applicationID uuid.UUID) (*domain.IdentityResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	res, ok := s.identity[applicationID]
	if !ok {
		return nil, sql.ErrNoRows
	}
	cp := *res
	return &cp, nil
}

func (s *MemoryStore) SaveCreditOutcome(_ context.Context, credit *domain.CreditResult, elig *domain.EligibilityResult, from, to domain.ApplicationStatus) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	app, ok := s.apps[credit.ApplicationID]
	if !ok {
		return sql.ErrNoRows
	}
	if app.Status != from {
		return ErrStatusConflict
	}

	creditCp := *credit
	s.credit[credit.ApplicationID] = &creditCp
	if elig != nil {
		eligCp := *elig
		s.eligibility[elig.ApplicationID] = &eligCp
	}
	app.Status = to
	app.UpdatedAt = time.Now()
	return nil
}

func (s *MemoryStore) GetCreditResult(_ context.Context, applicationID uuid.UUID) (*domain.CreditResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	res, ok := s.credit[applicationID]
	if !ok {
		return nil, sql.ErrNoRows
	}
	cp := *res
	return &cp, nil
}

func (s *MemoryStore) GetEligibilityResult(_ context.Context, applicationID uuid.UUID) (*domain.EligibilityResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	res, ok := s.eligibility[applicationID]
	if !ok {
		return nil, sql.ErrNoRows
	}
	cp := *res
	return &cp, nil
}

func sortNewestFirst(apps []*domain.Application) {
	sort.Slice(apps, func(i, j int) bool {
		return apps[i].CreatedAt.After(apps[j].CreatedAt)
	})
}
