package otp

import (
	"context"
	"errors"
	"regexp"
	"sync"
	"time"

	"github.com/justone-api/internal/application/session"
	"github.com/justone-api/internal/domain"
	"github.com/justone-api/internal/infrastructure/mail"
)

// memCodes is an in-memory CodeStore with the same conditional semantics as the DynamoDB repo.
type memCodes struct {
	mu    sync.Mutex
	codes map[string][]*domain.OtpCode
}

func newMemCodes() *memCodes { return &memCodes{codes: map[string][]*domain.OtpCode{}} }

func (m *memCodes) Put(_ context.Context, c *domain.OtpCode) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *c
	m.codes[c.Key] = append(m.codes[c.Key], &cp)
	return nil
}

func (m *memCodes) LatestActive(_ context.Context, key string, now time.Time) (*domain.OtpCode, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	list := m.codes[key]
	for i := len(list) - 1; i >= 0; i-- {
		if list[i].Active(now) {
			cp := *list[i]
			return &cp, nil
		}
	}
	return nil, domain.ErrNotFound
}

func (m *memCodes) Latest(_ context.Context, key string) (*domain.OtpCode, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	list := m.codes[key]
	if len(list) == 0 {
		return nil, domain.ErrNotFound
	}
	cp := *list[len(list)-1]
	return &cp, nil
}

func (m *memCodes) InvalidateActive(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, c := range m.codes[key] {
		c.Used = true
	}
	return nil
}

func (m *memCodes) find(key, codeID string) *domain.OtpCode {
	for _, c := range m.codes[key] {
		if c.CodeID == codeID {
			return c
		}
	}
	return nil
}

func (m *memCodes) MarkUsed(_ context.Context, key, codeID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	c := m.find(key, codeID)
	if c == nil || c.Used {
		return domain.ErrConflict
	}
	c.Used = true
	return nil
}

func (m *memCodes) IncrementAttempts(_ context.Context, key, codeID string) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c := m.find(key, codeID)
	if c == nil {
		return 0, domain.ErrNotFound
	}
	c.Attempts++
	return c.Attempts, nil
}

func (m *memCodes) count(key string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.codes[key])
}

// memLimiter is a fixed-window counter keyed like the real limiters.
type memLimiter struct {
	mu      sync.Mutex
	max     int
	window  time.Duration
	windows map[string]*domain.RateLimitWindow
}

func newMemLimiter(max int, window time.Duration) *memLimiter {
	return &memLimiter{max: max, window: window, windows: map[string]*domain.RateLimitWindow{}}
}

func (l *memLimiter) Hit(_ context.Context, key string, now time.Time) (*domain.RateLimitWindow, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	w, ok := l.windows[key]
	if !ok || now.Unix() >= w.WindowStart+int64(l.window/time.Second) {
		w = &domain.RateLimitWindow{Key: key, WindowStart: now.Unix()}
		l.windows[key] = w
	}
	if w.Count >= l.max {
		cp := *w
		return &cp, domain.ErrRateLimited
	}
	w.Count++
	cp := *w
	return &cp, nil
}

// memMailer records messages and can be told to fail.
type memMailer struct {
	mu   sync.Mutex
	sent []*mail.Message
	fail bool
}

var sentCode = regexp.MustCompile(`>([0-9]{6})<`)

func (m *memMailer) Send(_ context.Context, msg *mail.Message) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.fail {
		return errors.New("smtp down")
	}
	m.sent = append(m.sent, msg)
	return nil
}

func (m *memMailer) lastCode() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.sent) == 0 {
		return ""
	}
	match := sentCode.FindStringSubmatch(m.sent[len(m.sent)-1].HTML)
	if match == nil {
		return ""
	}
	return match[1]
}

// memAccounts establishes accounts in memory.
type memAccounts struct {
	mu    sync.Mutex
	users map[string]*domain.User
}

func newMemAccounts() *memAccounts { return &memAccounts{users: map[string]*domain.User{}} }

func (a *memAccounts) Establish(_ context.Context, in session.EstablishInput) (*session.Established, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	u, ok := a.users[in.Email]
	if !ok {
		u = &domain.User{UserID: "user-" + in.Email, Email: in.Email, Enable: true}
		a.users[in.Email] = u
	}
	u.Role = in.Role
	return &session.Established{
		User:      u,
		Profile:   &domain.Profile{UserID: u.UserID, Email: u.Email, CampusID: in.Campus.CampusID, Verified: true},
		Campus:    in.Campus,
		IsNewUser: !ok,
		Tokens:    &domain.SessionTokens{AccessToken: "access", RefreshToken: "refresh", TokenType: "bearer"},
	}, nil
}

type memWaitlist struct {
	recorded []*session.Established
}

func (w *memWaitlist) RecordVerified(_ context.Context, est *session.Established) {
	w.recorded = append(w.recorded, est)
}
