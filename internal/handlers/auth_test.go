package handlers_test

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kariyab/kariyab-backend/internal/apperrors"
	"github.com/kariyab/kariyab-backend/internal/routes"
	"github.com/kariyab/kariyab-backend/internal/services"
	"github.com/kariyab/kariyab-backend/internal/storage"
	"github.com/kariyab/kariyab-backend/internal/utils"
)

type smsRecorder struct {
	sent chan string
}

func (r *smsRecorder) Send(phone, body string) error {
	r.sent <- body
	return nil
}

func (r *smsRecorder) code(t *testing.T) string {
	t.Helper()
	select {
	case body := <-r.sent:
		return body[strings.LastIndex(body, " ")+1:]
	case <-time.After(2 * time.Second):
		t.Fatal("no SMS delivered within timeout")
		return ""
	}
}

type testApp struct {
	app   *fiber.App
	sms   *smsRecorder
	store storage.Store
}

func newTestApp(t *testing.T) *testApp {
	t.Helper()

	store := storage.NewMemoryStore()
	sms := &smsRecorder{sent: make(chan string, 16)}
	jitter := utils.CryptoJitter{}

	otpService := services.NewOTPService(store, sms, jitter, 5, 120*time.Second)
	tokenService := services.NewTokenService(store, "test-secret-at-least-32-characters", 15*time.Minute, 14, 30, jitter)
	authService := services.NewAuthService(store, otpService, tokenService)

	app := fiber.New(fiber.Config{
		ErrorHandler: apperrors.ErrorHandler,
	})
	routes.SetupRoutes(app, store, authService, 30*24*time.Hour)

	return &testApp{app: app, sms: sms, store: store}
}

func (ta *testApp) post(t *testing.T, path string, body interface{}, bearer string) (*http.Response, map[string]interface{}) {
	t.Helper()
	return ta.do(t, "POST", path, body, bearer)
}

func (ta *testApp) get(t *testing.T, path string, bearer string) (*http.Response, map[string]interface{}) {
	t.Helper()
	return ta.do(t, "GET", path, nil, bearer)
}

func (ta *testApp) do(t *testing.T, method, path string, body interface{}, bearer string) (*http.Response, map[string]interface{}) {
	t.Helper()

	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	}

	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if bearer != "" {
		req.Header.Set("Authorization", "Bearer "+bearer)
	}

	resp, err := ta.app.Test(req, -1)
	require.NoError(t, err)

	var parsed map[string]interface{}
	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	if len(raw) > 0 {
		require.NoError(t, json.Unmarshal(raw, &parsed))
	}
	return resp, parsed
}

// register walks a phone through the OTP flow and returns the session body
func (ta *testApp) register(t *testing.T, phone string) map[string]interface{} {
	t.Helper()

	resp, body := ta.post(t, "/api/auth/otp/request", fiber.Map{
		"phone":   phone,
		"purpose": "register",
	}, "")
	require.Equal(t, 200, resp.StatusCode)
	requestID := body["request_id"].(string)

	resp, session := ta.post(t, "/api/auth/otp/verify", fiber.Map{
		"request_id": requestID,
		"code":       ta.sms.code(t),
	}, "")
	require.Equal(t, 200, resp.StatusCode)
	return session
}

func TestOtpRequestAndVerify_FullFlow(t *testing.T) {
	ta := newTestApp(t)

	resp, body := ta.post(t, "/api/auth/otp/request", fiber.Map{
		"phone":   "+989121234567",
		"purpose": "register",
	}, "")
	require.Equal(t, 200, resp.StatusCode)
	assert.NotEmpty(t, body["request_id"])
	assert.NotEmpty(t, body["expires_at"])
	// The code itself is never in the response
	_, hasCode := body["code"]
	assert.False(t, hasCode)

	resp, session := ta.post(t, "/api/auth/otp/verify", fiber.Map{
		"request_id": body["request_id"],
		"code":       ta.sms.code(t),
	}, "")
	require.Equal(t, 200, resp.StatusCode)

	user := session["user"].(map[string]interface{})
	assert.Equal(t, "+989121234567", user["phone"])
	assert.Equal(t, true, user["is_phone_verified"])
	assert.NotEmpty(t, session["access_token"])
	assert.NotEmpty(t, session["refresh_token"])

	// Refresh token is also set as an httpOnly cookie scoped to the auth path
	var cookie string
	for _, c := range resp.Cookies() {
		if c.Name == "kariyab_refresh" {
			cookie = c.Value
			assert.True(t, c.HttpOnly)
			assert.Equal(t, "/api/auth", c.Path)
		}
	}
	assert.Equal(t, session["refresh_token"], cookie)
}

func TestOtpRequest_CooldownReturns429(t *testing.T) {
	ta := newTestApp(t)

	resp, _ := ta.post(t, "/api/auth/otp/request", fiber.Map{
		"phone": "+989121234567", "purpose": "login",
	}, "")
	require.Equal(t, 200, resp.StatusCode)
	ta.sms.code(t)

	resp, body := ta.post(t, "/api/auth/otp/request", fiber.Map{
		"phone": "+989121234567", "purpose": "login",
	}, "")
	assert.Equal(t, 429, resp.StatusCode)
	assert.Equal(t, "OTP_COOLDOWN", body["code"])
	assert.NotEmpty(t, resp.Header.Get("Retry-After"))
}

func TestOtpVerify_WrongCodeReturns400(t *testing.T) {
	ta := newTestApp(t)

	resp, body := ta.post(t, "/api/auth/otp/request", fiber.Map{
		"phone": "+989121234567", "purpose": "login",
	}, "")
	require.Equal(t, 200, resp.StatusCode)
	code := ta.sms.code(t)

	wrong := "000000"
	if wrong == code {
		wrong = "000001"
	}
	resp, errBody := ta.post(t, "/api/auth/otp/verify", fiber.Map{
		"request_id": body["request_id"],
		"code":       wrong,
	}, "")
	assert.Equal(t, 400, resp.StatusCode)
	assert.Equal(t, "OTP_INVALID_CODE", errBody["code"])
}

func TestPasswordLogin_NotSetReturns409(t *testing.T) {
	ta := newTestApp(t)
	ta.register(t, "+989121234567")

	resp, body := ta.post(t, "/api/auth/password/login", fiber.Map{
		"phone":    "+989121234567",
		"password": "whatever123",
	}, "")
	assert.Equal(t, 409, resp.StatusCode)
	assert.Equal(t, "PASSWORD_NOT_SET", body["code"])
}

func TestSetPasswordThenPasswordLogin(t *testing.T) {
	ta := newTestApp(t)
	session := ta.register(t, "+989121234567")
	access := session["access_token"].(string)

	resp, _ := ta.post(t, "/api/auth/password/set", fiber.Map{
		"new_password": "correct-horse",
	}, access)
	require.Equal(t, 200, resp.StatusCode)

	// The old access token died with the version bump
	resp, body := ta.get(t, "/api/auth/me", access)
	assert.Equal(t, 401, resp.StatusCode)
	assert.Equal(t, "SESSION_EXPIRED", body["code"])

	resp, login := ta.post(t, "/api/auth/password/login", fiber.Map{
		"phone":    "+989121234567",
		"password": "correct-horse",
	}, "")
	require.Equal(t, 200, resp.StatusCode)
	assert.NotEmpty(t, login["access_token"])
}

func TestRefreshEndpoint_RotatesTokens(t *testing.T) {
	ta := newTestApp(t)
	session := ta.register(t, "+989121234567")
	refresh := session["refresh_token"].(string)

	resp, pair := ta.post(t, "/api/auth/refresh", fiber.Map{"refresh_token": refresh}, "")
	require.Equal(t, 200, resp.StatusCode)
	assert.NotEmpty(t, pair["access_token"])
	assert.NotEqual(t, refresh, pair["refresh_token"])

	// Replaying the rotated token fails
	resp, body := ta.post(t, "/api/auth/refresh", fiber.Map{"refresh_token": refresh}, "")
	assert.Equal(t, 401, resp.StatusCode)
	assert.Equal(t, "REFRESH_TOKEN_REVOKED", body["code"])
}

func TestLogout_AlwaysSucceeds(t *testing.T) {
	ta := newTestApp(t)

	resp, _ := ta.post(t, "/api/auth/logout", fiber.Map{"refresh_token": "never-issued"}, "")
	assert.Equal(t, 200, resp.StatusCode)

	resp, _ = ta.post(t, "/api/auth/logout", fiber.Map{"refresh_token": "never-issued"}, "")
	assert.Equal(t, 200, resp.StatusCode)
}

func TestMe_RequiresBearerAuth(t *testing.T) {
	ta := newTestApp(t)

	resp, body := ta.get(t, "/api/auth/me", "")
	assert.Equal(t, 401, resp.StatusCode)
	assert.Equal(t, "MISSING_TOKEN", body["code"])

	session := ta.register(t, "+989121234567")
	resp, me := ta.get(t, "/api/auth/me", session["access_token"].(string))
	require.Equal(t, 200, resp.StatusCode)
	user := me["user"].(map[string]interface{})
	assert.Equal(t, "+989121234567", user["phone"])
}

func TestJobPosting_RequiresRecruiterRole(t *testing.T) {
	ta := newTestApp(t)
	session := ta.register(t, "+989121234567")
	access := session["access_token"].(string)

	// Default identity is a seeker: forbidden
	resp, body := ta.post(t, "/api/jobs/", fiber.Map{"title": "Backend Engineer"}, access)
	assert.Equal(t, 403, resp.StatusCode)
	assert.Equal(t, "FORBIDDEN", body["code"])

	// Grant recruiter and retry
	user := session["user"].(map[string]interface{})
	identity, err := ta.store.GetIdentityByID(uint(user["id"].(float64)))
	require.NoError(t, err)
	identity.GrantRole("recruiter")
	require.NoError(t, ta.store.UpdateIdentity(identity))

	resp, created := ta.post(t, "/api/jobs/", fiber.Map{
		"title": "Backend Engineer",
		"city":  "Tehran",
	}, access)
	require.Equal(t, 201, resp.StatusCode)
	job := created["job"].(map[string]interface{})
	jobID := job["job_id"].(string)

	// Public listing sees it
	resp, list := ta.get(t, "/api/jobs/?city=Tehran", "")
	require.Equal(t, 200, resp.StatusCode)
	assert.Equal(t, float64(1), list["count"])

	// A seeker can apply exactly once
	seeker := ta.register(t, "+989351112233")
	seekerAccess := seeker["access_token"].(string)

	resp, _ = ta.post(t, fmt.Sprintf("/api/jobs/%s/apply", jobID), fiber.Map{"note": "hello"}, seekerAccess)
	require.Equal(t, 201, resp.StatusCode)

	resp, dup := ta.post(t, fmt.Sprintf("/api/jobs/%s/apply", jobID), fiber.Map{"note": "again"}, seekerAccess)
	assert.Equal(t, 409, resp.StatusCode)
	assert.Equal(t, "ALREADY_APPLIED", dup["code"])
}
