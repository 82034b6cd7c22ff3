package http

import (
	"context"

	"github.com/justone-api/internal/application/campus"
	"github.com/justone-api/internal/application/career"
	fileapp "github.com/justone-api/internal/application/file"
	"github.com/justone-api/internal/application/otp"
	"github.com/justone-api/internal/application/response"
	"github.com/justone-api/internal/application/session"
	"github.com/justone-api/internal/application/waitlist"
	"github.com/justone-api/internal/config"
	"github.com/justone-api/internal/domain"
	jwtinfra "github.com/justone-api/internal/infrastructure/jwt"
	"github.com/justone-api/internal/infrastructure/mail"
)

// ProfileRepository is the minimal interface the router requires from a profile store.
type ProfileRepository interface {
	Get(ctx context.Context, userID string) (*domain.Profile, error)
	Upsert(ctx context.Context, p *domain.Profile) (*domain.Profile, error)
}

// ResponseRepository is the minimal interface the router requires from a response store.
type ResponseRepository interface {
	response.ResponseStore
	HasAny(ctx context.Context, userID string) (bool, error)
}

// TokenProvider signs access tokens and verifies bearer tokens.
type TokenProvider interface {
	session.JWTSigner
	Verify(tokenStr string) (*jwtinfra.Claims, error)
}

// Deps holds all infrastructure dependencies for the router.
type Deps struct {
	CampusRepo   campus.CampusStore
	OTPCodeRepo  otp.CodeStore
	RateLimiter  otp.RateLimiter // Redis when configured, DynamoDB otherwise
	UserRepo     session.UserStore
	ProfileRepo  ProfileRepository
	SessionRepo  session.SessionStore
	ResponseRepo ResponseRepository
	WaitlistRepo waitlist.WaitlistStore
	CareerRepo   career.ApplicationStore
	ObjectStore  fileapp.ObjectStore
	Cipher       fileapp.Cipher
	Mailer       mail.Sender
	Publisher    career.Publisher // nil disables career notifications
	JWTProvider  TokenProvider
	CampusConfig *config.CampusConfig
}
