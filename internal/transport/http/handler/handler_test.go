package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/justone-api/internal/application/otp"
	"github.com/justone-api/internal/application/response"
	"github.com/justone-api/internal/application/session"
	"github.com/justone-api/internal/domain"
	jwtinfra "github.com/justone-api/internal/infrastructure/jwt"
	"github.com/justone-api/internal/transport/http/middleware"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

// --- mocks ---

type mockOTPSvc struct{ mock.Mock }

func (m *mockOTPSvc) Send(ctx context.Context, req otp.SendRequest) (*otp.SendResult, error) {
	args := m.Called(ctx, req)
	r, _ := args.Get(0).(*otp.SendResult)
	return r, args.Error(1)
}

func (m *mockOTPSvc) Verify(ctx context.Context, req otp.VerifyRequest) (*otp.VerifyResult, error) {
	args := m.Called(ctx, req)
	r, _ := args.Get(0).(*otp.VerifyResult)
	return r, args.Error(1)
}

func (m *mockOTPSvc) SendWaitlist(ctx context.Context, email string) (*otp.SendResult, error) {
	args := m.Called(ctx, email)
	r, _ := args.Get(0).(*otp.SendResult)
	return r, args.Error(1)
}

func (m *mockOTPSvc) VerifyWaitlist(ctx context.Context, email, code string) (*otp.VerifyResult, error) {
	args := m.Called(ctx, email, code)
	r, _ := args.Get(0).(*otp.VerifyResult)
	return r, args.Error(1)
}

type mockResponseSvc struct{ mock.Mock }

func (m *mockResponseSvc) Submit(ctx context.Context, userID string, req domain.SubmitResponseRequest) (*response.SubmitResult, error) {
	args := m.Called(ctx, userID, req)
	r, _ := args.Get(0).(*response.SubmitResult)
	return r, args.Error(1)
}

func (m *mockResponseSvc) AdminList(ctx context.Context, f domain.ResponseFilter) (*response.AdminPage, error) {
	args := m.Called(ctx, f)
	r, _ := args.Get(0).(*response.AdminPage)
	return r, args.Error(1)
}

func (m *mockResponseSvc) Export(ctx context.Context, f domain.ResponseFilter, fn func(domain.DecryptedResponse) error) (int, error) {
	args := m.Called(ctx, f, fn)
	return args.Int(0), args.Error(1)
}

type mockSessionSvc struct{ mock.Mock }

func (m *mockSessionSvc) Establish(ctx context.Context, in session.EstablishInput) (*session.Established, error) {
	args := m.Called(ctx, in)
	r, _ := args.Get(0).(*session.Established)
	return r, args.Error(1)
}

func (m *mockSessionSvc) Refresh(ctx context.Context, token string) (*domain.SessionTokens, error) {
	args := m.Called(ctx, token)
	r, _ := args.Get(0).(*domain.SessionTokens)
	return r, args.Error(1)
}

func (m *mockSessionSvc) Me(ctx context.Context, userID string) (*session.Me, error) {
	args := m.Called(ctx, userID)
	r, _ := args.Get(0).(*session.Me)
	return r, args.Error(1)
}

func (m *mockSessionSvc) Logout(ctx context.Context, sessionID string) error {
	return m.Called(ctx, sessionID).Error(0)
}

func (m *mockSessionSvc) LogoutAll(ctx context.Context, userID string) error {
	return m.Called(ctx, userID).Error(0)
}

func (m *mockSessionSvc) Active(ctx context.Context, sessionID string) error {
	return m.Called(ctx, sessionID).Error(0)
}

// --- helpers ---

func jsonReq(method, target string, v interface{}) *http.Request {
	body, _ := json.Marshal(v)
	return httptest.NewRequest(method, target, bytes.NewReader(body))
}

func withClaims(r *http.Request, userID, role, sessionID string) *http.Request {
	ctx := middleware.WithClaims(r.Context(), &jwtinfra.Claims{UserID: userID, Role: role, SessionID: sessionID})
	return r.WithContext(ctx)
}

func decodeErr(t *testing.T, rr *httptest.ResponseRecorder) ErrorEnvelope {
	t.Helper()
	var e ErrorEnvelope
	require.NoError(t, json.NewDecoder(rr.Body).Decode(&e))
	return e
}

// --- error mapping ---

func TestWriteError_StatusMapping(t *testing.T) {
	cases := []struct {
		err    error
		status int
		code   string
	}{
		{domain.NewError(domain.ErrBadRequest, domain.CodeInvalidFormat, "x"), http.StatusBadRequest, domain.CodeInvalidFormat},
		{domain.NewError(domain.ErrUnauthorized, domain.CodeInvalidAdminKey, "x"), http.StatusUnauthorized, domain.CodeInvalidAdminKey},
		{domain.NewError(domain.ErrForbidden, domain.CodeDomainNotAllowed, "x"), http.StatusForbidden, domain.CodeDomainNotAllowed},
		{domain.NewError(domain.ErrNotFound, domain.CodeProfileNotFound, "x"), http.StatusNotFound, domain.CodeProfileNotFound},
		{domain.NewError(domain.ErrRateLimited, domain.CodeMaxAttempts, "x"), http.StatusTooManyRequests, domain.CodeMaxAttempts},
		{domain.NewError(domain.ErrInternal, domain.CodeEmailFailed, "x"), http.StatusInternalServerError, domain.CodeEmailFailed},
		{fmt.Errorf("get user: %w", domain.ErrNotFound), http.StatusNotFound, domain.CodeNotFound},
		{fmt.Errorf("wrapped: %w", domain.NewError(domain.ErrBadRequest, domain.CodeInvalidPhoto, "x")), http.StatusBadRequest, domain.CodeInvalidPhoto},
	}
	for _, tc := range cases {
		rr := httptest.NewRecorder()
		writeError(rr, httptest.NewRequest(http.MethodGet, "/", nil), tc.err)
		assert.Equal(t, tc.status, rr.Code, tc.code)
		e := decodeErr(t, rr)
		assert.False(t, e.Success)
		assert.Equal(t, tc.code, e.Error)
	}
}

func TestWriteError_RateLimitCarriesRetryAfter(t *testing.T) {
	rr := httptest.NewRecorder()
	writeError(rr, httptest.NewRequest(http.MethodPost, "/", nil), domain.NewRateLimitError(540, "slow down"))

	assert.Equal(t, http.StatusTooManyRequests, rr.Code)
	assert.Equal(t, "540", rr.Header().Get("Retry-After"))
	e := decodeErr(t, rr)
	assert.Equal(t, domain.CodeRateLimited, e.Error)
	assert.Equal(t, 540, e.RetryAfter)
}

func TestWriteError_HidesInfrastructureErrors(t *testing.T) {
	rr := httptest.NewRecorder()
	writeError(rr, httptest.NewRequest(http.MethodGet, "/", nil), errors.New("dynamodb: ResourceNotFoundException table otp_codes"))

	assert.Equal(t, http.StatusInternalServerError, rr.Code)
	e := decodeErr(t, rr)
	assert.Equal(t, domain.CodeInternal, e.Error)
	assert.NotContains(t, e.Message, "dynamodb")
}

// --- health ---

func TestPing(t *testing.T) {
	rctx := chi.NewRouteContext()
	rctx.URLParams.Add("action", "ping")
	r := httptest.NewRequest(http.MethodGet, "/v1/health-check/ping", nil)
	r = r.WithContext(context.WithValue(r.Context(), chi.RouteCtxKey, rctx))
	rr := httptest.NewRecorder()
	NewHealthHandler().Ping(rr, r)
	assert.Equal(t, http.StatusOK, rr.Code)
}

// --- otp ---

func TestSendOTP_InvalidBody(t *testing.T) {
	svc := &mockOTPSvc{}
	rr := httptest.NewRecorder()
	NewOTPHandler(svc).Send(rr, httptest.NewRequest(http.MethodPost, "/v1/send-otp", bytes.NewBufferString("not-json")))

	assert.Equal(t, http.StatusBadRequest, rr.Code)
	assert.Equal(t, domain.CodeInvalidRequest, decodeErr(t, rr).Error)
	svc.AssertNotCalled(t, "Send", mock.Anything, mock.Anything)
}

func TestSendOTP_PassesAdminFlag(t *testing.T) {
	svc := &mockOTPSvc{}
	svc.On("Send", mock.Anything, otp.SendRequest{Email: "a@ashoka.edu.in", IsAdminMode: true}).
		Return(&otp.SendResult{Success: true}, nil)

	rr := httptest.NewRecorder()
	r := httptest.NewRequest(http.MethodPost, "/v1/send-otp", bytes.NewBufferString(`{"email":"a@ashoka.edu.in","isAdminMode":true}`))
	NewOTPHandler(svc).Send(rr, r)

	assert.Equal(t, http.StatusOK, rr.Code)
	svc.AssertExpectations(t)
}

func TestSendOTP_RateLimited(t *testing.T) {
	svc := &mockOTPSvc{}
	svc.On("Send", mock.Anything, mock.Anything).Return(nil, domain.NewRateLimitError(300, otp.RetryMessage(300)))

	rr := httptest.NewRecorder()
	NewOTPHandler(svc).Send(rr, jsonReq(http.MethodPost, "/v1/send-otp", otp.SendRequest{Email: "a@ashoka.edu.in"}))

	assert.Equal(t, http.StatusTooManyRequests, rr.Code)
	assert.Equal(t, "300", rr.Header().Get("Retry-After"))
	assert.Equal(t, 300, decodeErr(t, rr).RetryAfter)
}

func TestVerifyOTP_ReturnsResolvedState(t *testing.T) {
	svc := &mockOTPSvc{}
	svc.On("Verify", mock.Anything, otp.VerifyRequest{Email: "a@ashoka.edu.in", Code: "123456"}).Return(&otp.VerifyResult{
		Success: true, UserID: "u1", CampusID: "ashoka", CampusName: "Ashoka University",
		Role: domain.RoleStudent, IsNewUser: true,
		Session: &domain.SessionTokens{AccessToken: "at", RefreshToken: "rt", TokenType: "bearer"},
	}, nil)

	rr := httptest.NewRecorder()
	NewOTPHandler(svc).Verify(rr, jsonReq(http.MethodPost, "/v1/verify-otp", otp.VerifyRequest{Email: "a@ashoka.edu.in", Code: "123456"}))

	require.Equal(t, http.StatusOK, rr.Code)
	var body map[string]interface{}
	require.NoError(t, json.NewDecoder(rr.Body).Decode(&body))
	assert.Equal(t, "ashoka", body["campus_id"])
	assert.Equal(t, true, body["is_new_user"])
	assert.Equal(t, "at", body["session"].(map[string]interface{})["access_token"])
}

func TestVerifyWaitlist_ForwardsFields(t *testing.T) {
	svc := &mockOTPSvc{}
	svc.On("VerifyWaitlist", mock.Anything, "a@gmail.com", "000123").
		Return(nil, domain.NewError(domain.ErrBadRequest, domain.CodeInvalidDomain, "x"))

	rr := httptest.NewRecorder()
	NewOTPHandler(svc).VerifyWaitlist(rr, jsonReq(http.MethodPost, "/v1/verify-waitlist-otp", waitlistCodeRequest{Email: "a@gmail.com", Code: "000123"}))

	assert.Equal(t, http.StatusBadRequest, rr.Code)
	assert.Equal(t, domain.CodeInvalidDomain, decodeErr(t, rr).Error)
	svc.AssertExpectations(t)
}

// --- responses ---

func TestSubmit_MissingClaims(t *testing.T) {
	svc := &mockResponseSvc{}
	rr := httptest.NewRecorder()
	NewResponseHandler(svc).Submit(rr, httptest.NewRequest(http.MethodPost, "/v1/submit-responses", nil))
	assert.Equal(t, http.StatusUnauthorized, rr.Code)
}

func TestSubmit_UsesTokenUser(t *testing.T) {
	svc := &mockResponseSvc{}
	svc.On("Submit", mock.Anything, "u1", mock.MatchedBy(func(req domain.SubmitResponseRequest) bool {
		return req.QuestionnaireVersion == "v2.0" && string(req.Answers) == `{"q1":"a"}`
	})).Return(&response.SubmitResult{Success: true, QuestionnaireVersion: "v2.0"}, nil)

	r := httptest.NewRequest(http.MethodPost, "/v1/submit-responses",
		bytes.NewBufferString(`{"answers":{"q1":"a"},"questionnaire_version":"v2.0","user_id":"someone-else"}`))
	rr := httptest.NewRecorder()
	NewResponseHandler(svc).Submit(rr, withClaims(r, "u1", domain.RoleStudent, "s1"))

	assert.Equal(t, http.StatusOK, rr.Code)
	svc.AssertExpectations(t)
}

func TestAdminList_ParsesFilter(t *testing.T) {
	svc := &mockResponseSvc{}
	want := domain.ResponseFilter{CampusID: "ashoka", UserID: "u9", Limit: 50, Cursor: "abc", IncludePhoto: true}
	svc.On("AdminList", mock.Anything, want).Return(&response.AdminPage{Success: true, Data: []domain.DecryptedResponse{}}, nil)

	rr := httptest.NewRecorder()
	NewResponseHandler(svc).AdminList(rr, httptest.NewRequest(http.MethodGet,
		"/v1/admin-get-responses?campus_id=ashoka&user_id=u9&limit=50&cursor=abc&include_photo=true", nil))

	assert.Equal(t, http.StatusOK, rr.Code)
	svc.AssertExpectations(t)
}

func TestAdminList_BadLimit(t *testing.T) {
	svc := &mockResponseSvc{}
	rr := httptest.NewRecorder()
	NewResponseHandler(svc).AdminList(rr, httptest.NewRequest(http.MethodGet, "/v1/admin-get-responses?limit=abc", nil))

	assert.Equal(t, http.StatusBadRequest, rr.Code)
	svc.AssertNotCalled(t, "AdminList", mock.Anything, mock.Anything)
}

func TestAdminList_BehindAdminKey(t *testing.T) {
	svc := &mockResponseSvc{}
	h := middleware.AdminKey("k")(http.HandlerFunc(NewResponseHandler(svc).AdminList))

	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/v1/admin-get-responses", nil))
	assert.Equal(t, http.StatusUnauthorized, rr.Code)
	svc.AssertNotCalled(t, "AdminList", mock.Anything, mock.Anything)
}

// --- sessions ---

func TestRefresh_RequiresToken(t *testing.T) {
	svc := &mockSessionSvc{}
	rr := httptest.NewRecorder()
	NewSessionHandler(svc).Refresh(rr, jsonReq(http.MethodPost, "/v1/sessions/refresh", map[string]string{}))
	assert.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestRefresh_Invalid(t *testing.T) {
	svc := &mockSessionSvc{}
	svc.On("Refresh", mock.Anything, "rt").Return(nil, domain.NewError(domain.ErrUnauthorized, domain.CodeUnauthorized, "Invalid refresh token"))
	rr := httptest.NewRecorder()
	NewSessionHandler(svc).Refresh(rr, jsonReq(http.MethodPost, "/v1/sessions/refresh", map[string]string{"refresh_token": "rt"}))
	assert.Equal(t, http.StatusUnauthorized, rr.Code)
}

func TestMe_FlattensState(t *testing.T) {
	svc := &mockSessionSvc{}
	svc.On("Me", mock.Anything, "u1").Return(&session.Me{
		Role:                   domain.RoleStudent,
		Campus:                 &domain.Campus{CampusID: "ashoka", Name: "Ashoka University"},
		HasCompletedOnboarding: true,
	}, nil)

	rr := httptest.NewRecorder()
	NewSessionHandler(svc).Me(rr, withClaims(httptest.NewRequest(http.MethodGet, "/v1/me", nil), "u1", domain.RoleStudent, "s1"))

	require.Equal(t, http.StatusOK, rr.Code)
	var body map[string]interface{}
	require.NoError(t, json.NewDecoder(rr.Body).Decode(&body))
	assert.Equal(t, true, body["success"])
	assert.Equal(t, domain.RoleStudent, body["role"])
	assert.Equal(t, true, body["has_completed_onboarding"])
}

func TestLogout_DisablesTokenSession(t *testing.T) {
	svc := &mockSessionSvc{}
	svc.On("Logout", mock.Anything, "s1").Return(nil)
	rr := httptest.NewRecorder()
	NewSessionHandler(svc).Logout(rr, withClaims(httptest.NewRequest(http.MethodPost, "/v1/sessions/logout", nil), "u1", domain.RoleStudent, "s1"))
	assert.Equal(t, http.StatusOK, rr.Code)
	svc.AssertExpectations(t)
}

func TestLogoutAll_UsesTokenUser(t *testing.T) {
	svc := &mockSessionSvc{}
	svc.On("LogoutAll", mock.Anything, "u1").Return(nil)
	rr := httptest.NewRecorder()
	NewSessionHandler(svc).LogoutAll(rr, withClaims(httptest.NewRequest(http.MethodPost, "/v1/sessions/logout-all", nil), "u1", domain.RoleStudent, "s1"))
	assert.Equal(t, http.StatusOK, rr.Code)
	svc.AssertExpectations(t)
}
