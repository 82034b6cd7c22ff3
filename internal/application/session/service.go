package session

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/justone-api/internal/domain"
	"github.com/justone-api/internal/pkg/id"
	"github.com/justone-api/internal/pkg/logger"
	pkgtoken "github.com/justone-api/internal/pkg/token"
	"go.uber.org/zap"
)

type UserStore interface {
	Create(ctx context.Context, u *domain.User) error
	Get(ctx context.Context, userID string) (*domain.User, error)
	GetByEmail(ctx context.Context, email string) (*domain.User, error)
	SetRole(ctx context.Context, userID, role string) error
}

type ProfileStore interface {
	Get(ctx context.Context, userID string) (*domain.Profile, error)
	Upsert(ctx context.Context, p *domain.Profile) (*domain.Profile, error)
}

type SessionStore interface {
	Put(ctx context.Context, s *domain.Session) error
	Get(ctx context.Context, sessionID string) (*domain.Session, error)
	GetByRefreshToken(ctx context.Context, token string) (*domain.Session, error)
	RotateRefreshToken(ctx context.Context, sessionID, newToken string, newExpiry int64) error
	Disable(ctx context.Context, sessionID string) error
	DisableByUser(ctx context.Context, userID string) error
}

// OnboardingStore reports whether a user has submitted any questionnaire.
type OnboardingStore interface {
	HasAny(ctx context.Context, userID string) (bool, error)
}

type CampusLister interface {
	List(ctx context.Context) ([]domain.Campus, error)
}

type JWTSigner interface {
	Sign(userID, email, role, sessionID string) (string, error)
	Expiry() time.Duration
}

// EstablishInput describes a verified email ready to be signed in.
type EstablishInput struct {
	Email  string
	Campus *domain.Campus
	Role   string
}

// Established is the fully resolved state after a successful verification.
type Established struct {
	User      *domain.User
	Profile   *domain.Profile
	Campus    *domain.Campus
	IsNewUser bool
	Tokens    *domain.SessionTokens
}

// Me is the caller's resolved account state.
type Me struct {
	User                   *domain.User    `json:"user"`
	Profile                *domain.Profile `json:"profile"`
	Role                   string          `json:"role"`
	Campus                 *domain.Campus  `json:"campus"`
	HasCompletedOnboarding bool            `json:"has_completed_onboarding"`
}

type Service interface {
	// Establish finds or creates the account for a verified email, binds its
	// profile to the campus, applies the role and issues a session.
	Establish(ctx context.Context, in EstablishInput) (*Established, error)
	Refresh(ctx context.Context, refreshToken string) (*domain.SessionTokens, error)
	Me(ctx context.Context, userID string) (*Me, error)
	Logout(ctx context.Context, sessionID string) error
	// LogoutAll disables every session of the user.
	LogoutAll(ctx context.Context, userID string) error
	// Active reports an error unless the session exists and is enabled.
	Active(ctx context.Context, sessionID string) error
}

type ServiceDeps struct {
	UserRepo        UserStore
	ProfileRepo     ProfileStore
	SessionRepo     SessionStore
	ResponseRepo    OnboardingStore
	Campuses        CampusLister
	JWTProvider     JWTSigner
	RefreshTokenDur time.Duration
}

type service struct {
	userRepo        UserStore
	profileRepo     ProfileStore
	sessionRepo     SessionStore
	responseRepo    OnboardingStore
	campuses        CampusLister
	jwtProvider     JWTSigner
	refreshTokenDur time.Duration
}

func NewService(deps ServiceDeps) Service {
	return &service{
		userRepo:        deps.UserRepo,
		profileRepo:     deps.ProfileRepo,
		sessionRepo:     deps.SessionRepo,
		responseRepo:    deps.ResponseRepo,
		campuses:        deps.Campuses,
		jwtProvider:     deps.JWTProvider,
		refreshTokenDur: deps.RefreshTokenDur,
	}
}

var errInvalidRefresh = domain.NewError(domain.ErrUnauthorized, domain.CodeUnauthorized, "Invalid or expired refresh token.")

func (s *service) Establish(ctx context.Context, in EstablishInput) (*Established, error) {
	if in.Campus == nil {
		return nil, fmt.Errorf("establish %s without campus: %w", in.Email, domain.ErrBadRequest)
	}
	u, isNew, err := s.findOrCreate(ctx, in.Email, in.Role)
	if err != nil {
		return nil, err
	}
	if !u.Enable {
		return nil, domain.NewError(domain.ErrForbidden, domain.CodeForbidden, "This account has been disabled.")
	}
	if u.Role != in.Role {
		if err := s.userRepo.SetRole(ctx, u.UserID, in.Role); err != nil {
			return nil, fmt.Errorf("set role: %w", err)
		}
		u.Role = in.Role
	}

	now := time.Now().UTC()
	profile, err := s.profileRepo.Upsert(ctx, &domain.Profile{
		UserID:    u.UserID,
		Email:     u.Email,
		CampusID:  in.Campus.CampusID,
		Verified:  true,
		CreatedAt: now,
		UpdatedAt: now,
	})
	if err != nil {
		return nil, fmt.Errorf("upsert profile: %w", err)
	}

	tokens, err := s.issue(ctx, u)
	if err != nil {
		return nil, err
	}
	return &Established{User: u, Profile: profile, Campus: in.Campus, IsNewUser: isNew, Tokens: tokens}, nil
}

func (s *service) findOrCreate(ctx context.Context, email, role string) (*domain.User, bool, error) {
	u, err := s.userRepo.GetByEmail(ctx, email)
	if err == nil {
		return u, false, nil
	}
	if !errors.Is(err, domain.ErrNotFound) {
		return nil, false, fmt.Errorf("lookup user: %w", err)
	}

	now := time.Now().UTC()
	u = &domain.User{
		UserID:    id.New(),
		Email:     email,
		Role:      role,
		Enable:    true,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.userRepo.Create(ctx, u); err != nil {
		if !errors.Is(err, domain.ErrConflict) {
			return nil, false, fmt.Errorf("create user: %w", err)
		}
		// A concurrent verification created the account first.
		existing, gerr := s.userRepo.GetByEmail(ctx, email)
		if gerr != nil {
			return nil, false, fmt.Errorf("lookup user after conflict: %w", gerr)
		}
		return existing, false, nil
	}
	return u, true, nil
}

func (s *service) issue(ctx context.Context, u *domain.User) (*domain.SessionTokens, error) {
	refreshToken, err := pkgtoken.NewRefreshToken()
	if err != nil {
		return nil, err
	}
	now := time.Now().UTC()
	sess := &domain.Session{
		SessionID:        id.New(),
		UserID:           u.UserID,
		Enable:           true,
		RefreshToken:     refreshToken,
		RefreshExpiresAt: now.Add(s.refreshTokenDur).Unix(),
		CreatedAt:        now,
		UpdatedAt:        now,
	}
	if err := s.sessionRepo.Put(ctx, sess); err != nil {
		return nil, fmt.Errorf("create session: %w", err)
	}
	bearer, err := s.jwtProvider.Sign(u.UserID, u.Email, u.Role, sess.SessionID)
	if err != nil {
		return nil, fmt.Errorf("sign token: %w", err)
	}
	return &domain.SessionTokens{
		AccessToken:  bearer,
		RefreshToken: refreshToken,
		ExpiresIn:    int(s.jwtProvider.Expiry().Seconds()),
		TokenType:    "bearer",
	}, nil
}

func (s *service) Refresh(ctx context.Context, refreshToken string) (*domain.SessionTokens, error) {
	sess, err := s.sessionRepo.GetByRefreshToken(ctx, refreshToken)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) || errors.Is(err, domain.ErrUnauthorized) {
			return nil, errInvalidRefresh
		}
		return nil, err
	}
	if !sess.Enable || sess.RefreshExpiresAt < time.Now().Unix() {
		return nil, errInvalidRefresh
	}
	u, err := s.userRepo.Get(ctx, sess.UserID)
	if err != nil {
		return nil, err
	}
	if !u.Enable {
		return nil, errInvalidRefresh
	}

	newToken, err := pkgtoken.NewRefreshToken()
	if err != nil {
		return nil, err
	}
	newExpiry := time.Now().Add(s.refreshTokenDur).Unix()
	if err := s.sessionRepo.RotateRefreshToken(ctx, sess.SessionID, newToken, newExpiry); err != nil {
		return nil, err
	}
	bearer, err := s.jwtProvider.Sign(u.UserID, u.Email, u.Role, sess.SessionID)
	if err != nil {
		return nil, err
	}
	return &domain.SessionTokens{
		AccessToken:  bearer,
		RefreshToken: newToken,
		ExpiresIn:    int(s.jwtProvider.Expiry().Seconds()),
		TokenType:    "bearer",
	}, nil
}

func (s *service) Me(ctx context.Context, userID string) (*Me, error) {
	u, err := s.userRepo.Get(ctx, userID)
	if err != nil {
		return nil, err
	}
	me := &Me{User: u, Role: u.Role}

	p, err := s.profileRepo.Get(ctx, userID)
	switch {
	case err == nil:
		me.Profile = p
	case errors.Is(err, domain.ErrNotFound):
		return me, nil
	default:
		return nil, err
	}

	if p.CampusID != "" {
		campuses, err := s.campuses.List(ctx)
		if err != nil {
			return nil, err
		}
		for i := range campuses {
			if campuses[i].CampusID == p.CampusID {
				c := campuses[i]
				me.Campus = &c
				break
			}
		}
	}

	done, err := s.responseRepo.HasAny(ctx, userID)
	if err != nil {
		logger.Warn(ctx, "onboarding lookup failed", zap.String("user_id", userID), zap.Error(err))
	}
	me.HasCompletedOnboarding = done
	return me, nil
}

func (s *service) Logout(ctx context.Context, sessionID string) error {
	return s.sessionRepo.Disable(ctx, sessionID)
}

func (s *service) LogoutAll(ctx context.Context, userID string) error {
	return s.sessionRepo.DisableByUser(ctx, userID)
}

func (s *service) Active(ctx context.Context, sessionID string) error {
	sess, err := s.sessionRepo.Get(ctx, sessionID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return fmt.Errorf("session %s: %w", sessionID, domain.ErrUnauthorized)
		}
		return err
	}
	if !sess.Enable {
		return fmt.Errorf("session %s disabled: %w", sessionID, domain.ErrUnauthorized)
	}
	return nil
}
