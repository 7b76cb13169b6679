//go:build integration

package integration

import (
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegistrationVerificationAndLogin(t *testing.T) {
	t.Parallel()

	server := newServer(t)
	registered := register(t, server, "Jordan@Example.com", "jordan")

	assert.Equal(t, "bearer", registered.TokenType)
	assert.NotEmpty(t, registered.AccessToken)
	assert.NotEmpty(t, registered.RefreshToken)
	assert.NotEmpty(t, registered.VerificationToken)
	assert.Equal(t, "jordan@example.com", registered.User.Email)
	assert.Equal(t, "athlete", registered.User.UserType)
	assert.False(t, registered.User.IsVerified)

	t.Run("duplicate email is rejected", func(t *testing.T) {
		resp := postJSON(t, server.URL+"/api/v1/auth/register", registerPayload("jordan@example.com", "other"), "")
		require.Equal(t, http.StatusBadRequest, resp.status)
		assert.Equal(t, "User with this email already exists", resp.errorMessage())
	})

	t.Run("confirm password and terms may be omitted", func(t *testing.T) {
		payload := registerPayload("casey@example.com", "casey")
		delete(payload, "confirm_password")
		delete(payload, "terms_accepted")

		resp := postJSON(t, server.URL+"/api/v1/auth/register", payload, "")
		require.Equal(t, http.StatusCreated, resp.status, resp.raw)

		payload = registerPayload("drew@example.com", "drew")
		payload["terms_accepted"] = false
		resp = postJSON(t, server.URL+"/api/v1/auth/register", payload, "")
		require.Equal(t, http.StatusUnprocessableEntity, resp.status)
	})

	t.Run("form login and json login", func(t *testing.T) {
		resp := loginForm(t, server, "jordan@example.com", testPassword)
		require.Equal(t, http.StatusOK, resp.status, resp.raw)

		resp = postJSON(t, server.URL+"/api/v1/auth/login/email", map[string]string{"email": "JORDAN@example.com", "password": testPassword}, "")
		require.Equal(t, http.StatusOK, resp.status, resp.raw)

		resp = loginForm(t, server, "jordan@example.com", "WrongPass123")
		require.Equal(t, http.StatusUnauthorized, resp.status)
		assert.Equal(t, "Incorrect email or password", resp.errorMessage())

		unknown := loginForm(t, server, "nobody@example.com", testPassword)
		require.Equal(t, http.StatusUnauthorized, unknown.status)
		assert.Equal(t, resp.errorMessage(), unknown.errorMessage())
	})

	t.Run("verify email is idempotent", func(t *testing.T) {
		resp := postJSON(t, server.URL+"/api/v1/auth/verify-email", map[string]string{"token": registered.VerificationToken}, "")
		require.Equal(t, http.StatusOK, resp.status, resp.raw)
		var msg messageResult
		resp.decode(t, &msg)
		assert.Equal(t, "Email successfully verified", msg.Message)

		resp = postJSON(t, server.URL+"/api/v1/auth/verify-email", map[string]string{"token": registered.VerificationToken}, "")
		require.Equal(t, http.StatusOK, resp.status)
		resp.decode(t, &msg)
		assert.Equal(t, "Email already verified", msg.Message)

		resp = postJSON(t, server.URL+"/api/v1/auth/resend-verification", nil, registered.AccessToken)
		require.Equal(t, http.StatusOK, resp.status)
		resp.decode(t, &msg)
		assert.Equal(t, "Email already verified", msg.Message)
		assert.Empty(t, msg.VerificationToken)
	})

	t.Run("verification token is not an access token", func(t *testing.T) {
		resp := get(t, server.URL+"/api/v1/auth/me", registered.VerificationToken)
		require.Equal(t, http.StatusUnauthorized, resp.status)
		assert.Equal(t, "Bearer", resp.header.Get("WWW-Authenticate"))
	})

	t.Run("me returns the account", func(t *testing.T) {
		resp := get(t, server.URL+"/api/v1/auth/me", registered.AccessToken)
		require.Equal(t, http.StatusOK, resp.status, resp.raw)

		var me struct {
			Email      string `json:"email"`
			IsVerified bool   `json:"is_verified"`
			Password   string `json:"hashed_password"`
		}
		resp.decode(t, &me)
		assert.Equal(t, "jordan@example.com", me.Email)
		assert.True(t, me.IsVerified)
		assert.Empty(t, me.Password)
		assert.NotContains(t, resp.raw, "$2a$")
	})
}

func TestResendVerificationIssuesNewToken(t *testing.T) {
	t.Parallel()

	server := newServer(t)
	registered := register(t, server, "casey@example.com", "casey")

	resp := postJSON(t, server.URL+"/api/v1/auth/resend-verification", nil, registered.AccessToken)
	require.Equal(t, http.StatusOK, resp.status, resp.raw)

	var msg messageResult
	resp.decode(t, &msg)
	assert.Equal(t, "Verification email sent", msg.Message)
	require.NotEmpty(t, msg.VerificationToken)

	resp = postJSON(t, server.URL+"/api/v1/auth/verify-email", map[string]string{"token": msg.VerificationToken}, "")
	require.Equal(t, http.StatusOK, resp.status)
}

func TestRefreshRotationAndLogout(t *testing.T) {
	t.Parallel()

	server := newServer(t)
	registered := register(t, server, "sam@example.com", "sam")

	resp := postJSON(t, server.URL+"/api/v1/auth/refresh", map[string]string{"refresh_token": registered.RefreshToken}, "")
	require.Equal(t, http.StatusOK, resp.status, resp.raw)
	var rotated authResult
	resp.decode(t, &rotated)
	require.NotEmpty(t, rotated.AccessToken)
	require.NotEqual(t, registered.RefreshToken, rotated.RefreshToken)

	t.Run("consumed refresh token is rejected", func(t *testing.T) {
		resp := postJSON(t, server.URL+"/api/v1/auth/refresh", map[string]string{"refresh_token": registered.RefreshToken}, "")
		require.Equal(t, http.StatusUnauthorized, resp.status)
		assert.Equal(t, "Invalid refresh token", resp.errorMessage())
	})

	t.Run("access token cannot refresh", func(t *testing.T) {
		resp := postJSON(t, server.URL+"/api/v1/auth/refresh", map[string]string{"refresh_token": rotated.AccessToken}, "")
		require.Equal(t, http.StatusUnauthorized, resp.status)
	})

	t.Run("logout revokes access and refresh tokens", func(t *testing.T) {
		resp := postJSON(t, server.URL+"/api/v1/auth/logout", map[string]string{"refresh_token": rotated.RefreshToken}, rotated.AccessToken)
		require.Equal(t, http.StatusOK, resp.status, resp.raw)
		var msg messageResult
		resp.decode(t, &msg)
		assert.Equal(t, "Successfully logged out", msg.Message)

		resp = get(t, server.URL+"/api/v1/auth/me", rotated.AccessToken)
		require.Equal(t, http.StatusUnauthorized, resp.status)

		resp = postJSON(t, server.URL+"/api/v1/auth/refresh", map[string]string{"refresh_token": rotated.RefreshToken}, "")
		require.Equal(t, http.StatusUnauthorized, resp.status)
	})

	t.Run("logout without token", func(t *testing.T) {
		resp := postJSON(t, server.URL+"/api/v1/auth/logout", nil, "")
		require.Equal(t, http.StatusUnauthorized, resp.status)
	})
}

func TestPasswordResetFlow(t *testing.T) {
	t.Parallel()

	server := newServer(t)
	register(t, server, "riley@example.com", "riley")

	unknown := postJSON(t, server.URL+"/api/v1/auth/password-reset", map[string]string{"email": "ghost@example.com"}, "")
	require.Equal(t, http.StatusOK, unknown.status)
	var unknownMsg messageResult
	unknown.decode(t, &unknownMsg)
	assert.Empty(t, unknownMsg.ResetToken)

	known := postJSON(t, server.URL+"/api/v1/auth/password-reset", map[string]string{"email": "riley@example.com"}, "")
	require.Equal(t, http.StatusOK, known.status)
	var knownMsg messageResult
	known.decode(t, &knownMsg)
	require.NotEmpty(t, knownMsg.ResetToken)
	assert.Equal(t, unknownMsg.Message, knownMsg.Message)

	confirm := map[string]string{
		"token":            knownMsg.ResetToken,
		"new_password":     "NewPassword456",
		"confirm_password": "NewPassword456",
	}

	t.Run("weak password is rejected", func(t *testing.T) {
		weak := map[string]string{"token": knownMsg.ResetToken, "new_password": "short", "confirm_password": "short"}
		resp := postJSON(t, server.URL+"/api/v1/auth/password-reset/confirm", weak, "")
		require.Equal(t, http.StatusUnprocessableEntity, resp.status)
	})

	resp := postJSON(t, server.URL+"/api/v1/auth/password-reset/confirm", confirm, "")
	require.Equal(t, http.StatusOK, resp.status, resp.raw)

	t.Run("reset token is single use", func(t *testing.T) {
		resp := postJSON(t, server.URL+"/api/v1/auth/password-reset/confirm", confirm, "")
		require.Equal(t, http.StatusBadRequest, resp.status)
		assert.Equal(t, "Invalid or expired reset token", resp.errorMessage())
	})

	t.Run("only the new password works", func(t *testing.T) {
		require.Equal(t, http.StatusUnauthorized, loginForm(t, server, "riley@example.com", testPassword).status)
		require.Equal(t, http.StatusOK, loginForm(t, server, "riley@example.com", "NewPassword456").status)
	})

	t.Run("garbage token", func(t *testing.T) {
		resp := postJSON(t, server.URL+"/api/v1/auth/password-reset/confirm", map[string]string{
			"token": "not-a-token", "new_password": "NewPassword456", "confirm_password": "NewPassword456",
		}, "")
		require.Equal(t, http.StatusBadRequest, resp.status)
	})
}

func TestAdminAccountManagement(t *testing.T) {
	t.Parallel()

	server := newServer(t)
	athlete := register(t, server, "alex@example.com", "alex")

	adminLogin := loginForm(t, server, adminEmail, adminPassword)
	require.Equal(t, http.StatusOK, adminLogin.status, adminLogin.raw)
	var admin authResult
	adminLogin.decode(t, &admin)
	require.Equal(t, "admin", admin.User.UserType)

	userURL := server.URL + "/api/v1/users/" + itoa(athlete.User.ID)

	t.Run("athletes cannot use admin routes", func(t *testing.T) {
		resp := get(t, userURL, athlete.AccessToken)
		require.Equal(t, http.StatusForbidden, resp.status)
		assert.Equal(t, "Not enough permissions", resp.errorMessage())
	})

	t.Run("admin reads a user", func(t *testing.T) {
		resp := get(t, userURL, admin.AccessToken)
		require.Equal(t, http.StatusOK, resp.status, resp.raw)
	})

	t.Run("unknown user", func(t *testing.T) {
		resp := get(t, server.URL+"/api/v1/users/99999", admin.AccessToken)
		require.Equal(t, http.StatusNotFound, resp.status)
	})

	t.Run("deactivated user is locked out", func(t *testing.T) {
		resp := doJSON(t, http.MethodPatch, userURL+"/status", map[string]bool{"is_active": false}, admin.AccessToken)
		require.Equal(t, http.StatusOK, resp.status, resp.raw)

		login := loginForm(t, server, "alex@example.com", testPassword)
		require.Equal(t, http.StatusBadRequest, login.status)

		me := get(t, server.URL+"/api/v1/auth/me", athlete.AccessToken)
		require.Equal(t, http.StatusBadRequest, me.status)
		assert.Equal(t, "Inactive user", me.errorMessage())

		refresh := postJSON(t, server.URL+"/api/v1/auth/refresh", map[string]string{"refresh_token": athlete.RefreshToken}, "")
		require.Equal(t, http.StatusUnauthorized, refresh.status)
	})

	t.Run("admin cannot deactivate self", func(t *testing.T) {
		resp := doJSON(t, http.MethodPatch, server.URL+"/api/v1/users/"+itoa(admin.User.ID)+"/status", map[string]bool{"is_active": false}, admin.AccessToken)
		require.Equal(t, http.StatusUnprocessableEntity, resp.status)
	})
}

func TestProfileUpdate(t *testing.T) {
	t.Parallel()

	server := newServer(t)
	registered := register(t, server, "morgan@example.com", "morgan")

	resp := doJSON(t, http.MethodPatch, server.URL+"/api/v1/users/me", map[string]string{"bio": "Sprinter", "first_name": "Morgan"}, registered.AccessToken)
	require.Equal(t, http.StatusOK, resp.status, resp.raw)

	var user struct {
		FirstName string `json:"first_name"`
		Bio       string `json:"bio"`
		UserType  string `json:"user_type"`
	}
	resp.decode(t, &user)
	assert.Equal(t, "Morgan", user.FirstName)
	assert.Equal(t, "Sprinter", user.Bio)

	resp = doJSON(t, http.MethodPatch, server.URL+"/api/v1/users/me", map[string]string{"user_type": "admin"}, registered.AccessToken)
	require.Equal(t, http.StatusUnprocessableEntity, resp.status)
}
