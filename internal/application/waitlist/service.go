package waitlist

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/justone-api/internal/application/session"
	"github.com/justone-api/internal/config"
	"github.com/justone-api/internal/domain"
	"github.com/justone-api/internal/infrastructure/mail"
	"github.com/justone-api/internal/pkg/emailaddr"
	"github.com/justone-api/internal/pkg/logger"
	"go.uber.org/zap"
)

const alreadySignedUp = "You've already signed up. Check your inbox!"

type WaitlistStore interface {
	Upsert(ctx context.Context, e *domain.WaitlistEntry) (bool, error)
}

type RateLimiter interface {
	Hit(ctx context.Context, key string, now time.Time) (*domain.RateLimitWindow, error)
}

type JoinResult struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}

type Service interface {
	// Join records an unverified waitlist signup and mails a confirmation.
	Join(ctx context.Context, email string) (*JoinResult, error)
	// RecordVerified stores a verified entry and welcomes new accounts.
	// Failures are logged only.
	RecordVerified(ctx context.Context, est *session.Established)
}

type ServiceDeps struct {
	WaitlistRepo WaitlistStore
	RateLimiter  RateLimiter
	Mailer       mail.Sender
	From         string
	FromName     string
	Settings     config.OTPSettings
	Now          func() time.Time
}

type service struct {
	repo     WaitlistStore
	limiter  RateLimiter
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
		repo:     deps.WaitlistRepo,
		limiter:  deps.RateLimiter,
		mailer:   deps.Mailer,
		from:     deps.From,
		fromName: deps.FromName,
		settings: deps.Settings,
		now:      now,
	}
}

func (s *service) Join(ctx context.Context, email string) (*JoinResult, error) {
	email = emailaddr.Normalize(email)
	if !emailaddr.Valid(email) {
		return nil, domain.NewError(domain.ErrBadRequest, domain.CodeInvalidEmail, "Please enter a valid email address.")
	}

	now := s.now()
	key := domain.OTPKey(domain.FlowWaitlist, email)
	w, err := s.limiter.Hit(ctx, key, now)
	if err != nil {
		if errors.Is(err, domain.ErrRateLimited) && w != nil {
			logger.Warn(ctx, "waitlist rate limited", zap.String("key", key))
			return nil, domain.NewRateLimitError(w.RetryAfter(now, s.settings.RateWindow, s.settings.MinRetryHint), alreadySignedUp)
		}
		return nil, fmt.Errorf("rate limit %s: %w", key, err)
	}

	ts := now.UTC()
	if _, err := s.repo.Upsert(ctx, &domain.WaitlistEntry{
		Email:     email,
		Source:    domain.WaitlistSourceEmail,
		CreatedAt: ts,
		UpdatedAt: ts,
	}); err != nil {
		return nil, fmt.Errorf("record waitlist entry: %w", err)
	}

	if err := s.send(ctx, email, "waitlist", mail.SubjectWaitlist); err != nil {
		logger.Error(ctx, "waitlist email failed", zap.String("key", key), zap.Error(err))
		return nil, domain.NewError(domain.ErrInternal, domain.CodeEmailFailed, "Failed to send confirmation email. Please try again.")
	}
	return &JoinResult{Success: true, Message: "You're on the list. We'll email you when it opens."}, nil
}

func (s *service) RecordVerified(ctx context.Context, est *session.Established) {
	ts := s.now().UTC()
	if _, err := s.repo.Upsert(ctx, &domain.WaitlistEntry{
		Email:     est.User.Email,
		UserID:    est.User.UserID,
		CampusID:  est.Campus.CampusID,
		Source:    domain.WaitlistSourceOTP,
		Verified:  true,
		CreatedAt: ts,
		UpdatedAt: ts,
	}); err != nil {
		logger.Warn(ctx, "waitlist entry not recorded", zap.String("user_id", est.User.UserID), zap.Error(err))
	}
	if !est.IsNewUser {
		return
	}
	if err := s.send(ctx, est.User.Email, "welcome", mail.SubjectWelcome); err != nil {
		logger.Warn(ctx, "welcome email failed", zap.String("user_id", est.User.UserID), zap.Error(err))
	}
}

func (s *service) send(ctx context.Context, to, template, subject string) error {
	html, err := mail.Render(template, nil)
	if err != nil {
		return err
	}
	return s.mailer.Send(ctx, &mail.Message{
		FromName: s.fromName,
		From:     s.from,
		To:       []string{to},
		Subject:  subject,
		HTML:     html,
	})
}
