package handlers

import (
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/kariyab/kariyab-backend/internal/apperrors"
	"github.com/kariyab/kariyab-backend/internal/middleware"
	"github.com/kariyab/kariyab-backend/internal/services"
)

const refreshCookieName = "kariyab_refresh"

// AuthHandler handles authentication requests
type AuthHandler struct {
	auth      *services.AuthService
	cookieTTL time.Duration
}

// NewAuthHandler creates a new auth handler
func NewAuthHandler(auth *services.AuthService, cookieTTL time.Duration) *AuthHandler {
	return &AuthHandler{
		auth:      auth,
		cookieTTL: cookieTTL,
	}
}

type otpRequestBody struct {
	Phone   string `json:"phone"`
	Purpose string `json:"purpose"`
}

// RequestOtp handles POST /auth/otp/request
func (h *AuthHandler) RequestOtp(c *fiber.Ctx) error {
	var body otpRequestBody
	if err := c.BodyParser(&body); err != nil {
		return apperrors.Validation("INVALID_BODY", "invalid request body")
	}
	if body.Phone == "" {
		return apperrors.Validation("PHONE_REQUIRED", "phone is required")
	}

	phone := normalizePhone(body.Phone)
	result, err := h.auth.RequestOtp(phone, body.Purpose, c.IP(), c.Get("User-Agent"))
	if err != nil {
		return err
	}

	return c.JSON(fiber.Map{
		"request_id": result.RequestID,
		"message":    "verification code sent",
		"expires_at": result.ExpiresAt,
	})
}

type otpVerifyBody struct {
	RequestID string `json:"request_id"`
	Code      string `json:"code"`
}

// VerifyOtp handles POST /auth/otp/verify
func (h *AuthHandler) VerifyOtp(c *fiber.Ctx) error {
	var body otpVerifyBody
	if err := c.BodyParser(&body); err != nil {
		return apperrors.Validation("INVALID_BODY", "invalid request body")
	}
	if body.RequestID == "" || body.Code == "" {
		return apperrors.Validation("FIELDS_REQUIRED", "request_id and code are required")
	}

	session, err := h.auth.OtpLogin(body.RequestID, body.Code, c.IP(), c.Get("User-Agent"))
	if err != nil {
		return err
	}

	h.setRefreshCookie(c, session.RefreshToken)
	return c.JSON(session)
}

type passwordLoginBody struct {
	Phone    string `json:"phone"`
	Password string `json:"password"`
}

// PasswordLogin handles POST /auth/password/login
func (h *AuthHandler) PasswordLogin(c *fiber.Ctx) error {
	var body passwordLoginBody
	if err := c.BodyParser(&body); err != nil {
		return apperrors.Validation("INVALID_BODY", "invalid request body")
	}
	if body.Phone == "" || body.Password == "" {
		return apperrors.Validation("FIELDS_REQUIRED", "phone and password are required")
	}

	session, err := h.auth.PasswordLogin(normalizePhone(body.Phone), body.Password, c.IP(), c.Get("User-Agent"))
	if err != nil {
		return err
	}

	h.setRefreshCookie(c, session.RefreshToken)
	return c.JSON(session)
}

type setPasswordBody struct {
	NewPassword string `json:"new_password"`
}

// SetPassword handles POST /auth/password/set (bearer auth required)
func (h *AuthHandler) SetPassword(c *fiber.Ctx) error {
	identity := middleware.IdentityFromCtx(c)

	var body setPasswordBody
	if err := c.BodyParser(&body); err != nil {
		return apperrors.Validation("INVALID_BODY", "invalid request body")
	}

	if err := h.auth.SetPassword(identity, body.NewPassword); err != nil {
		return err
	}

	return c.JSON(fiber.Map{
		"message": "password updated, please log in again",
	})
}

type refreshBody struct {
	RefreshToken string `json:"refresh_token"`
}

// Refresh handles POST /auth/refresh
func (h *AuthHandler) Refresh(c *fiber.Ctx) error {
	token := h.refreshTokenFrom(c)
	if token == "" {
		return apperrors.Unauthorized("REFRESH_TOKEN_INVALID", "missing refresh token")
	}

	pair, err := h.auth.Refresh(token, c.IP(), c.Get("User-Agent"))
	if err != nil {
		return err
	}

	h.setRefreshCookie(c, pair.RefreshToken)
	return c.JSON(pair)
}

// Logout handles POST /auth/logout. Always succeeds, whether or not the
// token was valid.
func (h *AuthHandler) Logout(c *fiber.Ctx) error {
	if token := h.refreshTokenFrom(c); token != "" {
		if err := h.auth.Logout(token); err != nil {
			return err
		}
	}

	h.clearRefreshCookie(c)
	return c.JSON(fiber.Map{
		"message": "logged out",
	})
}

// LogoutAll handles POST /auth/logout-all (bearer auth required)
func (h *AuthHandler) LogoutAll(c *fiber.Ctx) error {
	identity := middleware.IdentityFromCtx(c)

	if err := h.auth.LogoutAll(identity.ID); err != nil {
		return err
	}

	h.clearRefreshCookie(c)
	return c.JSON(fiber.Map{
		"message": "logged out everywhere",
	})
}

// Me handles GET /auth/me (bearer auth required)
func (h *AuthHandler) Me(c *fiber.Ctx) error {
	identity := middleware.IdentityFromCtx(c)
	return c.JSON(fiber.Map{
		"user": identity.Summary(),
	})
}

func (h *AuthHandler) refreshTokenFrom(c *fiber.Ctx) string {
	var body refreshBody
	if err := c.BodyParser(&body); err == nil && body.RefreshToken != "" {
		return body.RefreshToken
	}
	return c.Cookies(refreshCookieName)
}

func (h *AuthHandler) setRefreshCookie(c *fiber.Ctx, token string) {
	c.Cookie(&fiber.Cookie{
		Name:     refreshCookieName,
		Value:    token,
		Path:     "/api/auth",
		Expires:  time.Now().Add(h.cookieTTL),
		HTTPOnly: true,
		SameSite: fiber.CookieSameSiteStrictMode,
	})
}

func (h *AuthHandler) clearRefreshCookie(c *fiber.Ctx) {
	c.Cookie(&fiber.Cookie{
		Name:     refreshCookieName,
		Value:    "",
		Path:     "/api/auth",
		Expires:  time.Now().Add(-time.Hour),
		HTTPOnly: true,
		SameSite: fiber.CookieSameSiteStrictMode,
	})
}

// normalizePhone converts user input to the canonical +98 international
// format before it reaches the auth core.
func normalizePhone(phone string) string {
	phone = strings.ReplaceAll(strings.TrimSpace(phone), " ", "")
	switch {
	case strings.HasPrefix(phone, "+"):
		return phone
	case strings.HasPrefix(phone, "00"):
		return "+" + phone[2:]
	case strings.HasPrefix(phone, "0"):
		return "+98" + phone[1:]
	case strings.HasPrefix(phone, "98"):
		return "+" + phone
	default:
		return "+98" + phone
	}
}
