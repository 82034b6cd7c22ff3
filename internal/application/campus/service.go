package campus

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/justone-api/internal/config"
	"github.com/justone-api/internal/domain"
	"github.com/justone-api/internal/pkg/emailaddr"
	"github.com/justone-api/internal/pkg/logger"
	"go.uber.org/zap"
)

const cacheTTL = 5 * time.Minute

var errDomainNotAllowed = domain.NewError(domain.ErrForbidden, domain.CodeDomainNotAllowed,
	"JustOne is currently limited to select campuses. If you believe this is a mistake, join the waitlist.")

// CampusStore is the persistence the campus service needs.
type CampusStore interface {
	List(ctx context.Context) ([]domain.Campus, error)
	Put(ctx context.Context, c *domain.Campus) error
}

type Service interface {
	List(ctx context.Context) ([]domain.Campus, error)
	// ResolveByEmail returns the first student campus whose allowed domains accept
	// the email's domain, or a domain_not_allowed error. Admin-only campuses are skipped.
	ResolveByEmail(ctx context.Context, email string) (*domain.Campus, error)
	// ResolveForWaitlist checks the email against the waitlist domains and returns
	// the campus owning that domain, admin-only campuses included.
	ResolveForWaitlist(ctx context.Context, email string) (*domain.Campus, error)
	AdminCampus(ctx context.Context) (*domain.Campus, error)
	IsAdmin(email string) bool
	// Seed writes the configured campuses to the store.
	Seed(ctx context.Context) (int, error)
}

type ServiceDeps struct {
	CampusRepo CampusStore
	Config     *config.CampusConfig
	Now        func() time.Time
}

type service struct {
	campusRepo CampusStore
	cfg        *config.CampusConfig
	now        func() time.Time

	mu       sync.RWMutex
	cached   []domain.Campus
	loadedAt time.Time
}

func NewService(deps ServiceDeps) Service {
	now := deps.Now
	if now == nil {
		now = time.Now
	}
	return &service{campusRepo: deps.CampusRepo, cfg: deps.Config, now: now}
}

func (s *service) List(ctx context.Context) ([]domain.Campus, error) {
	s.mu.RLock()
	if s.cached != nil && s.now().Sub(s.loadedAt) < cacheTTL {
		out := s.cached
		s.mu.RUnlock()
		return out, nil
	}
	s.mu.RUnlock()

	campuses := s.cfg.Campuses
	if s.campusRepo != nil {
		stored, err := s.campusRepo.List(ctx)
		switch {
		case err != nil:
			logger.Warn(ctx, "campus store unavailable, using configured campuses", zap.Error(err))
		case len(stored) > 0:
			campuses = stored
		}
	}

	s.mu.Lock()
	s.cached = campuses
	s.loadedAt = s.now()
	s.mu.Unlock()
	return campuses, nil
}

func (s *service) ResolveByEmail(ctx context.Context, email string) (*domain.Campus, error) {
	c, err := s.match(ctx, emailaddr.Domain(emailaddr.Normalize(email)), false)
	if err != nil {
		return nil, err
	}
	if c == nil {
		return nil, errDomainNotAllowed
	}
	return c, nil
}

func (s *service) ResolveForWaitlist(ctx context.Context, email string) (*domain.Campus, error) {
	d := emailaddr.Domain(emailaddr.Normalize(email))
	if d == "" || !emailaddr.MatchesAny(d, s.cfg.WaitlistDomains) {
		return nil, errDomainNotAllowed
	}
	c, err := s.match(ctx, d, true)
	if err != nil {
		return nil, err
	}
	if c == nil {
		logger.Warn(ctx, "waitlist domain has no campus", zap.String("domain", d))
		return nil, errDomainNotAllowed
	}
	return c, nil
}

func (s *service) match(ctx context.Context, d string, withAdminOnly bool) (*domain.Campus, error) {
	if d == "" {
		return nil, nil
	}
	campuses, err := s.List(ctx)
	if err != nil {
		return nil, err
	}
	for i := range campuses {
		if campuses[i].AdminOnly && !withAdminOnly {
			continue
		}
		if campuses[i].AcceptsDomain(d) {
			c := campuses[i]
			return &c, nil
		}
	}
	return nil, nil
}

func (s *service) AdminCampus(ctx context.Context) (*domain.Campus, error) {
	campuses, err := s.List(ctx)
	if err != nil {
		return nil, err
	}
	for i := range campuses {
		if campuses[i].CampusID == s.cfg.AdminCampusID {
			c := campuses[i]
			return &c, nil
		}
	}
	return nil, fmt.Errorf("admin campus %q: %w", s.cfg.AdminCampusID, domain.ErrNotFound)
}

func (s *service) IsAdmin(email string) bool {
	return s.cfg.IsAdmin(email)
}

func (s *service) Seed(ctx context.Context) (int, error) {
	now := s.now().UTC()
	for i := range s.cfg.Campuses {
		c := s.cfg.Campuses[i]
		c.CreatedAt = now
		c.UpdatedAt = now
		if err := s.campusRepo.Put(ctx, &c); err != nil {
			return i, fmt.Errorf("seed campus %s: %w", c.CampusID, err)
		}
	}
	s.mu.Lock()
	s.cached = nil
	s.mu.Unlock()
	return len(s.cfg.Campuses), nil
}
