// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

package handlers

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/labstack/echo/v4"

	"codeberg.org/oliverandrich/loginflow/internal/auth"
	"codeberg.org/oliverandrich/loginflow/internal/i18n"
	"codeberg.org/oliverandrich/loginflow/internal/models"
	authsvc "codeberg.org/oliverandrich/loginflow/internal/services/auth"
	"codeberg.org/oliverandrich/loginflow/internal/services/session"
	"codeberg.org/oliverandrich/loginflow/internal/services/verification"
)

// AuthHandlers contains handlers for identification, login,
// registration and email verification.
type AuthHandlers struct {
	auth          *authsvc.Service
	verifications *verification.Service
	sessions      *session.Manager
}

// NewAuth creates a new AuthHandlers instance.
func NewAuth(authService *authsvc.Service, verifications *verification.Service, sessions *session.Manager) *AuthHandlers {
	return &AuthHandlers{
		auth:          authService,
		verifications: verifications,
		sessions:      sessions,
	}
}

// IdentifyRequest is the request body for account identification.
type IdentifyRequest struct {
	Email string `json:"email" form:"email"`
}

// Identify resolves an account by email, the first step of the
// two-step login flow.
func (h *AuthHandlers) Identify(c echo.Context) error {
	var req IdentifyRequest
	if err := c.Bind(&req); err != nil {
		return errorJSON(c, http.StatusBadRequest, "error_email_required")
	}

	user, err := h.auth.Identify(c.Request().Context(), req.Email)
	switch {
	case errors.Is(err, authsvc.ErrMissingEmail):
		return errorJSON(c, http.StatusBadRequest, "error_email_required")
	case errors.Is(err, authsvc.ErrUserNotFound):
		return errorJSON(c, http.StatusNotFound, "error_account_not_found")
	case err != nil:
		slog.Error("identify_failed", "error", err)
		return echo.NewHTTPError(http.StatusInternalServerError)
	}

	return c.JSON(http.StatusOK, map[string]any{
		"email":    user.Email,
		"verified": user.IsVerified(),
	})
}

// Challenge returns the sign-in methods available for an account.
func (h *AuthHandlers) Challenge(c echo.Context) error {
	email := c.QueryParam("email")

	challenge, err := h.auth.GetChallenge(c.Request().Context(), email)
	switch {
	case errors.Is(err, authsvc.ErrMissingEmail):
		return errorJSON(c, http.StatusBadRequest, "error_email_required")
	case errors.Is(err, authsvc.ErrUserNotFound):
		return errorJSON(c, http.StatusNotFound, "error_account_not_found")
	case err != nil:
		slog.Error("challenge_failed", "error", err)
		return echo.NewHTTPError(http.StatusInternalServerError)
	}

	return c.JSON(http.StatusOK, challenge)
}

// LoginRequest is the request body for password login.
type LoginRequest struct {
	Email    string `json:"email" form:"email"`
	Password string `json:"password" form:"password"`
}

// Login authenticates with email and password and starts a session.
// An empty password is answered with the available sign-in methods
// instead of an error, mirroring the two-step flow.
func (h *AuthHandlers) Login(c echo.Context) error {
	var req LoginRequest
	if err := c.Bind(&req); err != nil {
		return errorJSON(c, http.StatusBadRequest, "error_email_required")
	}

	result, err := h.auth.Login(c.Request().Context(), req.Email, req.Password)
	switch {
	case errors.Is(err, authsvc.ErrMissingEmail):
		return errorJSON(c, http.StatusBadRequest, "error_email_required")
	case errors.Is(err, authsvc.ErrUserNotFound):
		return errorJSON(c, http.StatusNotFound, "error_account_not_found")
	case errors.Is(err, authsvc.ErrNoPasswordSet):
		return errorJSON(c, http.StatusUnprocessableEntity, "error_password_missing")
	case errors.Is(err, authsvc.ErrInvalidCredentials):
		return errorJSON(c, http.StatusUnauthorized, "error_password_incorrect")
	case err != nil:
		slog.Error("login_failed", "error", err)
		return echo.NewHTTPError(http.StatusInternalServerError)
	}

	if result.NeedsPassword {
		return c.JSON(http.StatusOK, map[string]any{
			"needs_password": true,
			"methods":        result.Methods,
		})
	}

	cookie, err := h.sessions.Create(result.User)
	if err != nil {
		slog.Error("session_create_failed", "error", err)
		return echo.NewHTTPError(http.StatusInternalServerError)
	}
	c.SetCookie(cookie)

	return c.JSON(http.StatusOK, userJSON(result.User))
}

// RegisterRequest is the request body for account registration.
type RegisterRequest struct {
	FirstName string `json:"first_name" form:"first_name"`
	LastName  string `json:"last_name" form:"last_name"`
	Email     string `json:"email" form:"email"`
	Password  string `json:"password" form:"password"`
}

// Register creates an unverified account, starts a session and kicks
// off email verification.
func (h *AuthHandlers) Register(c echo.Context) error {
	var req RegisterRequest
	if err := c.Bind(&req); err != nil {
		return errorJSON(c, http.StatusBadRequest, "error_invalid_email")
	}

	user, err := h.auth.Register(c.Request().Context(), authsvc.RegisterParams{
		FirstName: req.FirstName,
		LastName:  req.LastName,
		Email:     req.Email,
		Password:  req.Password,
	})
	switch {
	case errors.Is(err, authsvc.ErrInvalidEmail):
		return errorJSON(c, http.StatusUnprocessableEntity, "error_invalid_email")
	case errors.Is(err, authsvc.ErrWeakPassword):
		return errorJSON(c, http.StatusUnprocessableEntity, "error_weak_password")
	case errors.Is(err, authsvc.ErrUserExists):
		return errorJSON(c, http.StatusConflict, "error_user_exists")
	case err != nil:
		slog.Error("register_failed", "error", err)
		return echo.NewHTTPError(http.StatusInternalServerError)
	}

	result, err := h.verifications.FindOrCreate(c.Request().Context(), user.ID)
	if err != nil {
		slog.Error("verification_create_failed", "user_id", user.ID, "error", err)
		return echo.NewHTTPError(http.StatusInternalServerError)
	}

	cookie, err := h.sessions.Create(user)
	if err != nil {
		slog.Error("session_create_failed", "error", err)
		return echo.NewHTTPError(http.StatusInternalServerError)
	}
	c.SetCookie(cookie)

	return c.JSON(http.StatusCreated, map[string]any{
		"user":       userJSON(user),
		"email_sent": result.EmailSent,
	})
}

// VerificationState returns the pending verification for the current
// user, creating one on first visit. A verified user gets a terse
// verified response without touching the verification table.
func (h *AuthHandlers) VerificationState(c echo.Context) error {
	user := auth.GetUser(c.Request().Context())

	if user.IsVerified() {
		return c.JSON(http.StatusOK, map[string]any{
			"email":    user.Email,
			"verified": true,
		})
	}

	result, err := h.verifications.FindOrCreate(c.Request().Context(), user.ID)
	if err != nil {
		slog.Error("verification_create_failed", "user_id", user.ID, "error", err)
		return echo.NewHTTPError(http.StatusInternalServerError)
	}

	return c.JSON(http.StatusOK, h.verificationJSON(user, result))
}

// VerifyEmailRequest is the request body for code submission.
type VerifyEmailRequest struct {
	Code string `json:"code" form:"code"`
}

// VerifyEmail validates a submitted OTP code for the current user.
func (h *AuthHandlers) VerifyEmail(c echo.Context) error {
	user := auth.GetUser(c.Request().Context())

	var req VerifyEmailRequest
	if err := c.Bind(&req); err != nil {
		return errorJSON(c, http.StatusBadRequest, "error_code_invalid")
	}

	err := h.verifications.Verify(c.Request().Context(), user.ID, req.Code)

	var invalidCode *verification.InvalidCodeError
	switch {
	case errors.Is(err, verification.ErrNotFound):
		return errorJSON(c, http.StatusNotFound, "error_no_verification")
	case errors.Is(err, verification.ErrExpired):
		return errorJSON(c, http.StatusGone, "error_code_expired")
	case errors.Is(err, verification.ErrAttemptsExhausted):
		return errorJSON(c, http.StatusTooManyRequests, "error_attempts_exhausted")
	case errors.As(err, &invalidCode):
		return c.JSON(http.StatusUnprocessableEntity, map[string]any{
			"error":              i18n.T(c.Request().Context(), "error_code_invalid"),
			"code":               "error_code_invalid",
			"attempts_remaining": invalidCode.AttemptsRemaining,
		})
	case err != nil:
		slog.Error("verify_failed", "user_id", user.ID, "error", err)
		return echo.NewHTTPError(http.StatusInternalServerError)
	}

	return c.JSON(http.StatusOK, map[string]any{
		"verified": true,
		"message":  i18n.T(c.Request().Context(), "email_verified"),
	})
}

// ResendVerification regenerates and re-sends the OTP for the current user.
func (h *AuthHandlers) ResendVerification(c echo.Context) error {
	user := auth.GetUser(c.Request().Context())

	result, err := h.verifications.Resend(c.Request().Context(), user.ID)

	var throttled *verification.ThrottledError
	switch {
	case errors.Is(err, verification.ErrNotFound):
		return errorJSON(c, http.StatusNotFound, "error_no_verification")
	case errors.As(err, &throttled):
		return c.JSON(http.StatusTooManyRequests, map[string]any{
			"error": i18n.TData(c.Request().Context(), "error_throttled",
				map[string]any{"Seconds": throttled.WaitSeconds}),
			"code":         "error_throttled",
			"wait_seconds": throttled.WaitSeconds,
		})
	case err != nil:
		slog.Error("resend_failed", "user_id", user.ID, "error", err)
		return echo.NewHTTPError(http.StatusInternalServerError)
	}

	body := h.verificationJSON(user, result)
	body["message"] = i18n.T(c.Request().Context(), "verification_code_sent")
	return c.JSON(http.StatusOK, body)
}

// Logout clears the session cookie.
func (h *AuthHandlers) Logout(c echo.Context) error {
	c.SetCookie(h.sessions.Clear())
	return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
}

// Me returns the current user.
func (h *AuthHandlers) Me(c echo.Context) error {
	user := auth.GetUser(c.Request().Context())
	return c.JSON(http.StatusOK, userJSON(user))
}

// verificationJSON builds the verification state payload shared by the
// state and resend endpoints. The OTP code itself never leaves the server.
func (h *AuthHandlers) verificationJSON(user *models.User, result *verification.Result) map[string]any {
	v := result.Verification
	timing := h.verifications.Timing(v)

	body := map[string]any{
		"email":              user.Email,
		"verified":           false,
		"expires_at":         v.ExpiresAt,
		"attempts_remaining": v.MaxAttempts - v.Attempts,
		"resend_count":       v.ResendCount,
		"can_resend":         timing.CanResend,
		"wait_seconds":       timing.WaitSeconds,
		"email_sent":         result.EmailSent,
	}
	if result.EmailError != "" {
		body["email_error"] = result.EmailError
	}
	return body
}

func userJSON(user *models.User) map[string]any {
	return map[string]any{
		"id":         user.ID,
		"first_name": user.FirstName,
		"last_name":  user.LastName,
		"email":      user.Email,
		"role":       user.Role,
		"verified":   user.IsVerified(),
	}
}
