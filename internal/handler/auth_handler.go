package handler

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"byd90-backend/internal/middleware"
	"byd90-backend/internal/model"
	"byd90-backend/pkg/apierror"
)

const (
	msgLoggedOut          = "Successfully logged out"
	msgResetRequested     = "If the email exists, a reset link has been sent"
	msgPasswordReset      = "Password successfully reset"
	msgEmailVerified      = "Email successfully verified"
	msgAlreadyVerified    = "Email already verified"
	msgVerificationSent   = "Verification email sent"
	msgInvalidRefresh     = "Invalid refresh token"
	msgInvalidReset       = "Invalid or expired reset token"
	msgInvalidVerifyToken = "Invalid or expired verification token"
)

type authService interface {
	Register(ctx context.Context, req model.RegisterRequest) (model.AuthResult, error)
	Login(ctx context.Context, email string, password string) (model.AuthResult, error)
	Refresh(ctx context.Context, refreshToken string) (model.TokenPair, error)
	Logout(ctx context.Context, access *model.AuthClaims, refreshToken string) error
	RequestPasswordReset(ctx context.Context, email string) (string, error)
	ConfirmPasswordReset(ctx context.Context, req model.PasswordResetConfirmRequest) error
	VerifyEmail(ctx context.Context, token string) (bool, error)
	ResendVerification(ctx context.Context, subject string) (string, bool, error)
}

type AuthHandler struct {
	service authService
}

func NewAuthHandler(service authService) *AuthHandler {
	return &AuthHandler{service: service}
}

// Register treats an omitted terms_accepted as accepted.
func (h *AuthHandler) Register(w http.ResponseWriter, r *http.Request) {
	payload := model.RegisterRequest{TermsAccepted: true}
	if err := decodeJSON(w, r, &payload, false); err != nil {
		writeError(w, r, err)
		return
	}

	result, err := h.service.Register(r.Context(), payload)
	if err != nil {
		writeError(w, r, err)
		return
	}

	writeSuccess(w, http.StatusCreated, result)
}

// Login accepts an OAuth2 password form where "username" carries the email.
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := r.ParseForm(); err != nil {
		writeError(w, r, apierror.New(apierror.CodeValidation, "invalid form body", "malformed form body", http.StatusUnprocessableEntity))
		return
	}

	username := r.PostForm.Get("username")
	password := r.PostForm.Get("password")
	if strings.TrimSpace(username) == "" || password == "" {
		writeError(w, r, model.NewValidationError("username", "username and password are required"))
		return
	}

	h.login(w, r, username, password)
}

func (h *AuthHandler) LoginEmail(w http.ResponseWriter, r *http.Request) {
	var payload model.LoginRequest
	if err := decodeJSON(w, r, &payload, false); err != nil {
		writeError(w, r, err)
		return
	}
	if strings.TrimSpace(payload.Email) == "" || payload.Password == "" {
		writeError(w, r, model.NewValidationError("email", "email and password are required"))
		return
	}

	h.login(w, r, payload.Email, payload.Password)
}

func (h *AuthHandler) login(w http.ResponseWriter, r *http.Request, email, password string) {
	result, err := h.service.Login(r.Context(), email, password)
	if err != nil {
		writeError(w, r, err)
		return
	}

	writeSuccess(w, http.StatusOK, result)
}

func (h *AuthHandler) Refresh(w http.ResponseWriter, r *http.Request) {
	var payload model.RefreshRequest
	if err := decodeJSON(w, r, &payload, false); err != nil {
		writeError(w, r, err)
		return
	}

	payload.RefreshToken = strings.TrimSpace(payload.RefreshToken)
	if payload.RefreshToken == "" {
		writeError(w, r, model.NewValidationError("refresh_token", "refresh_token is required"))
		return
	}

	tokens, err := h.service.Refresh(r.Context(), payload.RefreshToken)
	if errors.Is(err, model.ErrInvalidToken) {
		writeError(w, r, apierror.Unauthorized(msgInvalidRefresh))
		return
	}
	if err != nil {
		writeError(w, r, err)
		return
	}

	writeSuccess(w, http.StatusOK, tokens)
}

// Logout optionally takes {"refresh_token": "..."} to revoke alongside the access token.
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	claims, ok := middleware.ClaimsFromContext(r.Context())
	if !ok {
		writeError(w, r, model.ErrUnauthorized)
		return
	}

	var payload model.LogoutRequest
	if r.ContentLength != 0 {
		if err := decodeJSON(w, r, &payload, false); err != nil {
			var apiErr *apierror.APIError
			if !errors.As(err, &apiErr) || apiErr.Code != apierror.CodeBadRequest {
				writeError(w, r, err)
				return
			}
		}
	}

	if err := h.service.Logout(r.Context(), claims, payload.RefreshToken); err != nil {
		writeError(w, r, err)
		return
	}

	writeMessage(w, http.StatusOK, msgLoggedOut)
}

func (h *AuthHandler) RequestPasswordReset(w http.ResponseWriter, r *http.Request) {
	var payload model.PasswordResetRequest
	if err := decodeJSON(w, r, &payload, false); err != nil {
		writeError(w, r, err)
		return
	}

	token, err := h.service.RequestPasswordReset(r.Context(), payload.Email)
	if err != nil {
		writeError(w, r, err)
		return
	}

	writeSuccess(w, http.StatusOK, model.MessageResponse{Message: msgResetRequested, ResetToken: token})
}

func (h *AuthHandler) ConfirmPasswordReset(w http.ResponseWriter, r *http.Request) {
	var payload model.PasswordResetConfirmRequest
	if err := decodeJSON(w, r, &payload, false); err != nil {
		writeError(w, r, err)
		return
	}

	err := h.service.ConfirmPasswordReset(r.Context(), payload)
	switch {
	case err == nil:
		writeMessage(w, http.StatusOK, msgPasswordReset)
	case errors.Is(err, model.ErrInvalidToken):
		writeError(w, r, apierror.BadRequest(msgInvalidReset, ""))
	default:
		writeError(w, r, err)
	}
}

func (h *AuthHandler) VerifyEmail(w http.ResponseWriter, r *http.Request) {
	var payload model.EmailVerificationRequest
	if err := decodeJSON(w, r, &payload, false); err != nil {
		writeError(w, r, err)
		return
	}

	already, err := h.service.VerifyEmail(r.Context(), payload.Token)
	switch {
	case err == nil && already:
		writeMessage(w, http.StatusOK, msgAlreadyVerified)
	case err == nil:
		writeMessage(w, http.StatusOK, msgEmailVerified)
	case errors.Is(err, model.ErrInvalidToken):
		writeError(w, r, apierror.BadRequest(msgInvalidVerifyToken, ""))
	default:
		writeError(w, r, err)
	}
}

func (h *AuthHandler) Me(w http.ResponseWriter, r *http.Request) {
	user, ok := middleware.UserFromContext(r.Context())
	if !ok {
		writeError(w, r, model.ErrUnauthorized)
		return
	}

	writeSuccess(w, http.StatusOK, user)
}

func (h *AuthHandler) ResendVerification(w http.ResponseWriter, r *http.Request) {
	claims, ok := middleware.ClaimsFromContext(r.Context())
	if !ok {
		writeError(w, r, model.ErrUnauthorized)
		return
	}

	token, already, err := h.service.ResendVerification(r.Context(), claims.UserID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	if already {
		writeMessage(w, http.StatusOK, msgAlreadyVerified)
		return
	}

	writeSuccess(w, http.StatusOK, model.MessageResponse{Message: msgVerificationSent, VerificationToken: token})
}
