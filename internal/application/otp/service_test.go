package otp

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/justone-api/internal/application/campus"
	"github.com/justone-api/internal/config"
	"github.com/justone-api/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

type harness struct {
	codes    *memCodes
	limiter  *memLimiter
	mailer   *memMailer
	accounts *memAccounts
	waitlist *memWaitlist
	now      time.Time
	svc      Service
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	settings := config.OTPSettings{
		TTL:          10 * time.Minute,
		MaxAttempts:  5,
		RateMax:      3,
		RateWindow:   10 * time.Minute,
		BcryptCost:   bcrypt.MinCost,
		MinRetryHint: time.Minute,
	}
	cc := config.DefaultCampusConfig()
	cc.AdminEmails = []string{"ops@northwestern.edu", "dean@ashoka.edu.in"}

	h := &harness{
		codes:    newMemCodes(),
		limiter:  newMemLimiter(settings.RateMax, settings.RateWindow),
		mailer:   &memMailer{},
		accounts: newMemAccounts(),
		waitlist: &memWaitlist{},
		now:      time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC),
	}
	h.svc = NewService(ServiceDeps{
		CodeRepo:    h.codes,
		RateLimiter: h.limiter,
		Campuses:    campus.NewService(campus.ServiceDeps{Config: cc}),
		Accounts:    h.accounts,
		Waitlist:    h.waitlist,
		Mailer:      h.mailer,
		From:        "no-reply@justonematch.in",
		FromName:    "JustOne",
		Settings:    settings,
		Now:         func() time.Time { return h.now },
	})
	return h
}

func codeOf(t *testing.T, err error) string {
	t.Helper()
	de, ok := domain.AsError(err)
	require.True(t, ok, "expected coded error, got %v", err)
	return de.Code
}

func wrong(code string) string {
	if code == "000000" {
		return "111111"
	}
	return "000000"
}

func TestSend_ReturnsCampusAndMailsCode(t *testing.T) {
	h := newHarness(t)

	res, err := h.svc.Send(context.Background(), SendRequest{Email: " Student@Ashoka.edu.in "})

	require.NoError(t, err)
	assert.True(t, res.Success)
	assert.Equal(t, "ashoka-sonipat", res.CampusID)
	assert.Equal(t, "Ashoka University", res.CampusName)
	require.Len(t, h.mailer.sent, 1)
	assert.Equal(t, []string{"student@ashoka.edu.in"}, h.mailer.sent[0].To)
	assert.Equal(t, "Your JustOne verification code", h.mailer.sent[0].Subject)
	assert.Regexp(t, `^[0-9]{6}$`, h.mailer.lastCode())
}

func TestSend_Validation(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	_, err := h.svc.Send(ctx, SendRequest{Email: "not-an-email"})
	assert.Equal(t, domain.CodeInvalidEmail, codeOf(t, err))

	_, err = h.svc.Send(ctx, SendRequest{Email: "student@gmail.com"})
	assert.Equal(t, domain.CodeDomainNotAllowed, codeOf(t, err))
	assert.True(t, errors.Is(err, domain.ErrForbidden))

	_, err = h.svc.Send(ctx, SendRequest{Email: "student@northwestern.edu", IsAdminMode: true})
	assert.Equal(t, domain.CodeAdminOnly, codeOf(t, err))

	assert.Empty(t, h.mailer.sent)
}

func TestSend_AdminModeUsesAdminCampus(t *testing.T) {
	h := newHarness(t)

	res, err := h.svc.Send(context.Background(), SendRequest{Email: "ops@northwestern.edu", IsAdminMode: true})

	require.NoError(t, err)
	assert.Equal(t, "northwestern-evanston", res.CampusID)
}

func TestSend_FourthRequestRateLimited(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		_, err := h.svc.Send(ctx, SendRequest{Email: "a@ashoka.edu.in"})
		require.NoError(t, err)
		h.now = h.now.Add(time.Minute)
	}
	_, err := h.svc.Send(ctx, SendRequest{Email: "a@ashoka.edu.in"})

	require.Error(t, err)
	de, ok := domain.AsError(err)
	require.True(t, ok)
	assert.Equal(t, domain.CodeRateLimited, de.Code)
	assert.Equal(t, 420, de.RetryAfter)
	assert.Contains(t, de.Message, "7 minutes")
	assert.Len(t, h.mailer.sent, 3)
}

func TestSend_RateLimitFloorIsOneMinute(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		_, err := h.svc.Send(ctx, SendRequest{Email: "a@ashoka.edu.in"})
		require.NoError(t, err)
	}
	h.now = h.now.Add(9*time.Minute + 50*time.Second)
	_, err := h.svc.Send(ctx, SendRequest{Email: "a@ashoka.edu.in"})

	de, ok := domain.AsError(err)
	require.True(t, ok)
	assert.Equal(t, 60, de.RetryAfter)
}

func TestSend_OnlyNewestCodeIsActive(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	_, err := h.svc.Send(ctx, SendRequest{Email: "a@ashoka.edu.in"})
	require.NoError(t, err)
	first := h.mailer.lastCode()
	_, err = h.svc.Send(ctx, SendRequest{Email: "a@ashoka.edu.in"})
	require.NoError(t, err)
	second := h.mailer.lastCode()

	active := 0
	for _, c := range h.codes.codes["a@ashoka.edu.in"] {
		if c.Active(h.now) {
			active++
		}
	}
	assert.Equal(t, 1, active)

	if first != second {
		_, err = h.svc.Verify(ctx, VerifyRequest{Email: "a@ashoka.edu.in", Code: first})
		assert.Equal(t, domain.CodeInvalidCode, codeOf(t, err))
	}
	_, err = h.svc.Verify(ctx, VerifyRequest{Email: "a@ashoka.edu.in", Code: second})
	assert.NoError(t, err)
}

func TestSend_DeliveryFailureRollsBackCode(t *testing.T) {
	h := newHarness(t)
	h.mailer.fail = true

	_, err := h.svc.Send(context.Background(), SendRequest{Email: "a@ashoka.edu.in"})

	assert.Equal(t, domain.CodeEmailFailed, codeOf(t, err))
	assert.True(t, errors.Is(err, domain.ErrInternal))
	require.Equal(t, 1, h.codes.count("a@ashoka.edu.in"))
	_, lerr := h.codes.LatestActive(context.Background(), "a@ashoka.edu.in", h.now)
	assert.True(t, errors.Is(lerr, domain.ErrNotFound))
}

func TestVerify_SucceedsExactlyOnce(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	_, err := h.svc.Send(ctx, SendRequest{Email: "student@ashoka.edu.in"})
	require.NoError(t, err)
	code := h.mailer.lastCode()

	res, err := h.svc.Verify(ctx, VerifyRequest{Email: "student@ashoka.edu.in", Code: code})
	require.NoError(t, err)
	assert.True(t, res.Success)
	assert.Equal(t, "ashoka-sonipat", res.CampusID)
	assert.Equal(t, "Ashoka University", res.CampusName)
	assert.Equal(t, domain.RoleStudent, res.Role)
	assert.True(t, res.IsNewUser)
	require.NotNil(t, res.Profile)
	assert.True(t, res.Profile.Verified)
	require.NotNil(t, res.Session)
	assert.Equal(t, "access", res.Session.AccessToken)

	_, err = h.svc.Verify(ctx, VerifyRequest{Email: "student@ashoka.edu.in", Code: code})
	assert.Equal(t, domain.CodeNoActiveCode, codeOf(t, err))
}

func TestVerify_MaxAttempts(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	_, err := h.svc.Send(ctx, SendRequest{Email: "a@ashoka.edu.in"})
	require.NoError(t, err)
	code := h.mailer.lastCode()
	bad := wrong(code)

	for remaining := 4; remaining >= 1; remaining-- {
		_, err := h.svc.Verify(ctx, VerifyRequest{Email: "a@ashoka.edu.in", Code: bad})
		de, ok := domain.AsError(err)
		require.True(t, ok)
		assert.Equal(t, domain.CodeInvalidCode, de.Code)
		assert.Equal(t, domain.RemainingAttemptsMessage(remaining), de.Message)
	}
	_, err = h.svc.Verify(ctx, VerifyRequest{Email: "a@ashoka.edu.in", Code: bad})
	assert.Equal(t, domain.CodeMaxAttempts, codeOf(t, err))

	// even the right code is refused now
	_, err = h.svc.Verify(ctx, VerifyRequest{Email: "a@ashoka.edu.in", Code: code})
	assert.Equal(t, domain.CodeMaxAttempts, codeOf(t, err))
	assert.True(t, errors.Is(err, domain.ErrRateLimited))

	// a fresh code restores access
	_, err = h.svc.Send(ctx, SendRequest{Email: "a@ashoka.edu.in"})
	require.NoError(t, err)
	_, err = h.svc.Verify(ctx, VerifyRequest{Email: "a@ashoka.edu.in", Code: h.mailer.lastCode()})
	assert.NoError(t, err)
}

func TestVerify_ExpiredCode(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	_, err := h.svc.Send(ctx, SendRequest{Email: "a@ashoka.edu.in"})
	require.NoError(t, err)
	code := h.mailer.lastCode()
	h.now = h.now.Add(11 * time.Minute)

	_, err = h.svc.Verify(ctx, VerifyRequest{Email: "a@ashoka.edu.in", Code: code})
	assert.Equal(t, domain.CodeNoActiveCode, codeOf(t, err))
}

func TestVerify_Format(t *testing.T) {
	h := newHarness(t)
	for _, c := range []string{"12345", "1234567", "12a456", ""} {
		_, err := h.svc.Verify(context.Background(), VerifyRequest{Email: "a@ashoka.edu.in", Code: c})
		assert.Equal(t, domain.CodeInvalidFormat, codeOf(t, err), "code %q", c)
	}
}

func TestVerify_RoleComesFromAllowlist(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	_, err := h.svc.Send(ctx, SendRequest{Email: "dean@ashoka.edu.in"})
	require.NoError(t, err)
	res, err := h.svc.Verify(ctx, VerifyRequest{Email: "dean@ashoka.edu.in", Code: h.mailer.lastCode()})

	require.NoError(t, err)
	assert.Equal(t, domain.RoleAdmin, res.Role)
	assert.Equal(t, "ashoka-sonipat", res.CampusID)
}

func TestVerify_TrimsPastedCode(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	_, err := h.svc.Send(ctx, SendRequest{Email: "student@ashoka.edu.in"})
	require.NoError(t, err)
	res, err := h.svc.Verify(ctx, VerifyRequest{Email: "student@ashoka.edu.in", Code: " " + h.mailer.lastCode() + "\n"})
	require.NoError(t, err)
	assert.True(t, res.Success)

	_, err = h.svc.SendWaitlist(ctx, "other@ashoka.edu.in")
	require.NoError(t, err)
	_, err = h.svc.VerifyWaitlist(ctx, "other@ashoka.edu.in", h.mailer.lastCode()+"\t")
	assert.NoError(t, err)
}

func TestVerify_ConcurrentRedeemSucceedsOnce(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	_, err := h.svc.Send(ctx, SendRequest{Email: "student@ashoka.edu.in"})
	require.NoError(t, err)
	code := h.mailer.lastCode()

	const callers = 8
	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		ok       int
		failures []string
	)
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := h.svc.Verify(ctx, VerifyRequest{Email: "student@ashoka.edu.in", Code: code})
			mu.Lock()
			defer mu.Unlock()
			if err == nil {
				ok++
				return
			}
			if de, isCoded := domain.AsError(err); isCoded {
				failures = append(failures, de.Code)
			} else {
				failures = append(failures, err.Error())
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, ok)
	require.Len(t, failures, callers-1)
	for _, f := range failures {
		assert.Equal(t, domain.CodeNoActiveCode, f)
	}
}

func TestSend_AdminCampusClosedToStudents(t *testing.T) {
	h := newHarness(t)

	for _, email := range []string{"someone@northwestern.edu", "someone@u.northwestern.edu"} {
		_, err := h.svc.Send(context.Background(), SendRequest{Email: email})
		assert.Equal(t, domain.CodeDomainNotAllowed, codeOf(t, err), email)
	}
	assert.Empty(t, h.mailer.sent)
}

func TestVerify_AdminModeRefusedForStudents(t *testing.T) {
	h := newHarness(t)

	_, err := h.svc.Verify(context.Background(), VerifyRequest{Email: "a@northwestern.edu", Code: "123456", IsAdminMode: true})

	assert.Equal(t, domain.CodeAdminOnly, codeOf(t, err))
}

func TestWaitlist_FlowIsNamespaced(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		_, err := h.svc.Send(ctx, SendRequest{Email: "a@ashoka.edu.in"})
		require.NoError(t, err)
	}
	// the student window is full, the waitlist window is not
	_, err := h.svc.SendWaitlist(ctx, "a@ashoka.edu.in")
	require.NoError(t, err)
	assert.Equal(t, 1, h.codes.count("waitlist:a@ashoka.edu.in"))

	res, err := h.svc.VerifyWaitlist(ctx, "a@ashoka.edu.in", h.mailer.lastCode())
	require.NoError(t, err)
	assert.True(t, res.IsNewUser)
	require.Len(t, h.waitlist.recorded, 1)
	assert.Equal(t, "a@ashoka.edu.in", h.waitlist.recorded[0].User.Email)
}

func TestWaitlist_InvalidDomain(t *testing.T) {
	h := newHarness(t)

	for _, email := range []string{"a@gmail.com", "someone@jgu.edu.in"} {
		_, err := h.svc.SendWaitlist(context.Background(), email)
		assert.Equal(t, domain.CodeInvalidDomain, codeOf(t, err), email)
		assert.True(t, errors.Is(err, domain.ErrBadRequest))
	}
	assert.Empty(t, h.mailer.sent)
}

func TestWaitlist_AcceptsAdminCampusDomain(t *testing.T) {
	h := newHarness(t)

	res, err := h.svc.SendWaitlist(context.Background(), "someone@u.northwestern.edu")

	require.NoError(t, err)
	assert.Equal(t, "northwestern-evanston", res.CampusID)
}

func TestRetryMessage(t *testing.T) {
	assert.Equal(t, "Too many verification code requests. Please try again in 1 minute.", RetryMessage(60))
	assert.Equal(t, "Too many verification code requests. Please try again in 10 minutes.", RetryMessage(600))
}
