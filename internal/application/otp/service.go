package otp

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/justone-api/internal/application/session"
	"github.com/justone-api/internal/config"
	"github.com/justone-api/internal/domain"
	"github.com/justone-api/internal/infrastructure/mail"
	"github.com/justone-api/internal/pkg/emailaddr"
	"github.com/justone-api/internal/pkg/id"
	"github.com/justone-api/internal/pkg/logger"
	pkgtoken "github.com/justone-api/internal/pkg/token"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
)

const codeDigits = 6

var codeFormat = regexp.MustCompile(`^[0-9]{6}$`)

type CodeStore interface {
	Put(ctx context.Context, c *domain.OtpCode) error
	LatestActive(ctx context.Context, key string, now time.Time) (*domain.OtpCode, error)
	Latest(ctx context.Context, key string) (*domain.OtpCode, error)
	InvalidateActive(ctx context.Context, key string) error
	MarkUsed(ctx context.Context, key, codeID string) error
	IncrementAttempts(ctx context.Context, key, codeID string) (int, error)
}

// RateLimiter counts requests per namespaced key in a fixed window.
type RateLimiter interface {
	Hit(ctx context.Context, key string, now time.Time) (*domain.RateLimitWindow, error)
}

type CampusResolver interface {
	ResolveByEmail(ctx context.Context, email string) (*domain.Campus, error)
	ResolveForWaitlist(ctx context.Context, email string) (*domain.Campus, error)
	AdminCampus(ctx context.Context) (*domain.Campus, error)
	IsAdmin(email string) bool
}

type AccountEstablisher interface {
	Establish(ctx context.Context, in session.EstablishInput) (*session.Established, error)
}

// WaitlistRecorder is told about every successful waitlist verification.
type WaitlistRecorder interface {
	RecordVerified(ctx context.Context, est *session.Established)
}

type SendRequest struct {
	Email       string `json:"email"`
	IsAdminMode bool   `json:"isAdminMode"`
}

type SendResult struct {
	Success    bool   `json:"success"`
	CampusID   string `json:"campus_id,omitempty"`
	CampusName string `json:"campus_name,omitempty"`
}

type VerifyRequest struct {
	Email       string `json:"email"`
	Code        string `json:"code"`
	IsAdminMode bool   `json:"isAdminMode"`
}

// VerifyResult carries the fully resolved account state so clients never poll after sign-in.
type VerifyResult struct {
	Success    bool                  `json:"success"`
	UserID     string                `json:"user_id"`
	CampusID   string                `json:"campus_id"`
	CampusName string                `json:"campus_name"`
	Role       string                `json:"role"`
	IsNewUser  bool                  `json:"is_new_user"`
	Profile    *domain.Profile       `json:"profile"`
	Session    *domain.SessionTokens `json:"session"`
}

type Service interface {
	Send(ctx context.Context, req SendRequest) (*SendResult, error)
	Verify(ctx context.Context, req VerifyRequest) (*VerifyResult, error)
	SendWaitlist(ctx context.Context, email string) (*SendResult, error)
	VerifyWaitlist(ctx context.Context, email, code string) (*VerifyResult, error)
}

type ServiceDeps struct {
	CodeRepo    CodeStore
	RateLimiter RateLimiter
	Campuses    CampusResolver
	Accounts    AccountEstablisher
	Waitlist    WaitlistRecorder
	Mailer      mail.Sender
	From        string
	FromName    string
	Settings    config.OTPSettings
	Now         func() time.Time
}

type service struct {
	codeRepo CodeStore
	limiter  RateLimiter
	campuses CampusResolver
	accounts AccountEstablisher
	waitlist WaitlistRecorder
	mailer   mail.Sender
	from     string
	fromName string
	settings config.OTPSettings
	now      func() time.Time
}

func NewService(deps ServiceDeps) Service {
	now := deps.Now
	if now == nil {
		now = time.Now
	}
	return &service{
		codeRepo: deps.CodeRepo,
		limiter:  deps.RateLimiter,
		campuses: deps.Campuses,
		accounts: deps.Accounts,
		waitlist: deps.Waitlist,
		mailer:   deps.Mailer,
		from:     deps.From,
		fromName: deps.FromName,
		settings: deps.Settings,
		now:      now,
	}
}

var (
	errInvalidEmail = domain.NewError(domain.ErrBadRequest, domain.CodeInvalidEmail, "Please enter a valid email address.")
	errAdminOnly    = domain.NewError(domain.ErrForbidden, domain.CodeAdminOnly, "This email is not authorized for admin access.")
	errInvalidCode  = domain.NewError(domain.ErrBadRequest, domain.CodeInvalidFormat, "Please enter the 6-digit code.")
	errNoActiveCode = domain.NewError(domain.ErrBadRequest, domain.CodeNoActiveCode, "Code expired or not found. Please request a new one.")
	errMaxAttempts  = domain.NewError(domain.ErrRateLimited, domain.CodeMaxAttempts, "Too many failed attempts. Please request a new verification code.")
	errEmailFailed  = domain.NewError(domain.ErrInternal, domain.CodeEmailFailed, "Failed to send verification email.")
	errWaitlistOnly = domain.NewError(domain.ErrBadRequest, domain.CodeInvalidDomain,
		"Please use your university email address to join the waitlist.")
)

func (s *service) Send(ctx context.Context, req SendRequest) (*SendResult, error) {
	email := emailaddr.Normalize(req.Email)
	if !emailaddr.Valid(email) {
		return nil, errInvalidEmail
	}
	campus, err := s.campusFor(ctx, email, req.IsAdminMode)
	if err != nil {
		return nil, err
	}
	if err := s.issue(ctx, domain.FlowStudent, email, campus); err != nil {
		return nil, err
	}
	return &SendResult{Success: true, CampusID: campus.CampusID, CampusName: campus.Name}, nil
}

func (s *service) SendWaitlist(ctx context.Context, email string) (*SendResult, error) {
	email = emailaddr.Normalize(email)
	if !emailaddr.Valid(email) {
		return nil, errInvalidEmail
	}
	campus, err := s.waitlistCampus(ctx, email)
	if err != nil {
		return nil, err
	}
	if err := s.issue(ctx, domain.FlowWaitlist, email, campus); err != nil {
		return nil, err
	}
	return &SendResult{Success: true, CampusID: campus.CampusID, CampusName: campus.Name}, nil
}

func (s *service) Verify(ctx context.Context, req VerifyRequest) (*VerifyResult, error) {
	email := emailaddr.Normalize(req.Email)
	if !emailaddr.Valid(email) {
		return nil, errInvalidEmail
	}
	code := strings.TrimSpace(req.Code)
	if !codeFormat.MatchString(code) {
		return nil, errInvalidCode
	}
	campus, err := s.campusFor(ctx, email, req.IsAdminMode)
	if err != nil {
		return nil, err
	}
	if err := s.redeem(ctx, domain.OTPKey(domain.FlowStudent, email), code); err != nil {
		return nil, err
	}
	est, err := s.accounts.Establish(ctx, session.EstablishInput{Email: email, Campus: campus, Role: s.roleFor(email)})
	if err != nil {
		return nil, fmt.Errorf("establish account: %w", err)
	}
	logger.Info(ctx, "otp verified", zap.String("user_id", est.User.UserID), zap.String("campus_id", campus.CampusID))
	return toResult(est), nil
}

func (s *service) VerifyWaitlist(ctx context.Context, email, code string) (*VerifyResult, error) {
	email = emailaddr.Normalize(email)
	if !emailaddr.Valid(email) {
		return nil, errInvalidEmail
	}
	code = strings.TrimSpace(code)
	if !codeFormat.MatchString(code) {
		return nil, errInvalidCode
	}
	campus, err := s.waitlistCampus(ctx, email)
	if err != nil {
		return nil, err
	}
	if err := s.redeem(ctx, domain.OTPKey(domain.FlowWaitlist, email), code); err != nil {
		return nil, err
	}
	est, err := s.accounts.Establish(ctx, session.EstablishInput{Email: email, Campus: campus, Role: s.roleFor(email)})
	if err != nil {
		return nil, fmt.Errorf("establish account: %w", err)
	}
	logger.Info(ctx, "waitlist otp verified", zap.String("user_id", est.User.UserID), zap.Bool("new_user", est.IsNewUser))
	if s.waitlist != nil {
		s.waitlist.RecordVerified(ctx, est)
	}
	return toResult(est), nil
}

// campusFor applies admin mode (allowlist and fixed campus) or the campus domain check.
func (s *service) campusFor(ctx context.Context, email string, adminMode bool) (*domain.Campus, error) {
	if !adminMode {
		return s.campuses.ResolveByEmail(ctx, email)
	}
	if !s.campuses.IsAdmin(email) {
		logger.Warn(ctx, "admin otp refused", zap.String("key", email))
		return nil, errAdminOnly
	}
	return s.campuses.AdminCampus(ctx)
}

func (s *service) waitlistCampus(ctx context.Context, email string) (*domain.Campus, error) {
	c, err := s.campuses.ResolveForWaitlist(ctx, email)
	if err != nil {
		if de, ok := domain.AsError(err); ok && de.Code == domain.CodeDomainNotAllowed {
			return nil, errWaitlistOnly
		}
		return nil, err
	}
	return c, nil
}

// roleFor derives the role from the allowlist, never from the caller.
func (s *service) roleFor(email string) string {
	if s.campuses.IsAdmin(email) {
		return domain.RoleAdmin
	}
	return domain.RoleStudent
}

func (s *service) issue(ctx context.Context, flow, email string, campus *domain.Campus) error {
	now := s.now()
	key := domain.OTPKey(flow, email)

	w, err := s.limiter.Hit(ctx, key, now)
	if err != nil {
		if errors.Is(err, domain.ErrRateLimited) && w != nil {
			retry := w.RetryAfter(now, s.settings.RateWindow, s.settings.MinRetryHint)
			logger.Warn(ctx, "otp rate limited", zap.String("key", key), zap.Int("retry_after", retry))
			return domain.NewRateLimitError(retry, RetryMessage(retry))
		}
		return fmt.Errorf("rate limit %s: %w", key, err)
	}

	if err := s.codeRepo.InvalidateActive(ctx, key); err != nil {
		return fmt.Errorf("invalidate codes: %w", err)
	}
	code, err := pkgtoken.NewNumericCode(codeDigits)
	if err != nil {
		return err
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(code), s.settings.BcryptCost)
	if err != nil {
		return fmt.Errorf("hash code: %w", err)
	}
	expires := now.Add(s.settings.TTL)
	c := &domain.OtpCode{
		Key:       key,
		CodeID:    id.New(),
		CodeHash:  string(hash),
		ExpiresAt: expires.Unix(),
		CreatedAt: now.UTC(),
		TTL:       expires.Add(24 * time.Hour).Unix(),
	}
	if err := s.codeRepo.Put(ctx, c); err != nil {
		return fmt.Errorf("store code: %w", err)
	}

	if err := s.deliver(ctx, email, code, campus); err != nil {
		logger.Error(ctx, "otp email failed", zap.String("key", key), zap.Error(err))
		if rerr := s.codeRepo.MarkUsed(ctx, key, c.CodeID); rerr != nil {
			logger.Warn(ctx, "otp rollback failed", zap.String("key", key), zap.Error(rerr))
		}
		return errEmailFailed
	}
	logger.Info(ctx, "otp sent", zap.String("key", key), zap.String("campus_id", campus.CampusID))
	return nil
}

func (s *service) deliver(ctx context.Context, email, code string, campus *domain.Campus) error {
	html, err := mail.Render("otp", mail.OTPData{
		Code:             code,
		CampusName:       campus.Name,
		ExpiresInMinutes: int(s.settings.TTL.Minutes()),
	})
	if err != nil {
		return err
	}
	return s.mailer.Send(ctx, &mail.Message{
		FromName: s.fromName,
		From:     s.from,
		To:       []string{email},
		Subject:  mail.SubjectOTP,
		HTML:     html,
	})
}

// redeem checks code against the newest active code for key and consumes it on a match.
func (s *service) redeem(ctx context.Context, key, code string) error {
	now := s.now()
	c, err := s.codeRepo.LatestActive(ctx, key, now)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return s.noActiveCode(ctx, key, now)
		}
		return fmt.Errorf("lookup code: %w", err)
	}

	if c.Attempts >= s.settings.MaxAttempts {
		s.invalidate(ctx, key, c.CodeID)
		logger.Warn(ctx, "otp max attempts", zap.String("key", key))
		return errMaxAttempts
	}

	if bcrypt.CompareHashAndPassword([]byte(c.CodeHash), []byte(code)) != nil {
		attempts, err := s.codeRepo.IncrementAttempts(ctx, key, c.CodeID)
		if err != nil {
			return fmt.Errorf("count attempt: %w", err)
		}
		if attempts >= s.settings.MaxAttempts {
			s.invalidate(ctx, key, c.CodeID)
			logger.Warn(ctx, "otp max attempts", zap.String("key", key))
			return errMaxAttempts
		}
		return domain.NewError(domain.ErrBadRequest, domain.CodeInvalidCode,
			domain.RemainingAttemptsMessage(s.settings.MaxAttempts-attempts))
	}

	if err := s.codeRepo.MarkUsed(ctx, key, c.CodeID); err != nil {
		if errors.Is(err, domain.ErrConflict) {
			return errNoActiveCode
		}
		return fmt.Errorf("consume code: %w", err)
	}
	return nil
}

// noActiveCode reports max attempts while the newest code is exhausted but unexpired.
func (s *service) noActiveCode(ctx context.Context, key string, now time.Time) error {
	last, err := s.codeRepo.Latest(ctx, key)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return errNoActiveCode
		}
		return fmt.Errorf("lookup code: %w", err)
	}
	if last.Attempts >= s.settings.MaxAttempts && now.Unix() < last.ExpiresAt {
		return errMaxAttempts
	}
	return errNoActiveCode
}

func (s *service) invalidate(ctx context.Context, key, codeID string) {
	if err := s.codeRepo.MarkUsed(ctx, key, codeID); err != nil && !errors.Is(err, domain.ErrConflict) {
		logger.Warn(ctx, "otp invalidate failed", zap.String("key", key), zap.Error(err))
	}
}

// RetryMessage renders a countdown hint for a rate-limited caller.
func RetryMessage(retryAfter int) string {
	minutes := (retryAfter + 59) / 60
	if minutes <= 1 {
		return "Too many verification code requests. Please try again in 1 minute."
	}
	return fmt.Sprintf("Too many verification code requests. Please try again in %d minutes.", minutes)
}

func toResult(est *session.Established) *VerifyResult {
	return &VerifyResult{
		Success:    true,
		UserID:     est.User.UserID,
		CampusID:   est.Campus.CampusID,
		CampusName: est.Campus.Name,
		Role:       est.User.Role,
		IsNewUser:  est.IsNewUser,
		Profile:    est.Profile,
		Session:    est.Tokens,
	}
}
