//go:build integration

package integration

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"byd90-backend/internal/app"
	"byd90-backend/internal/config"
)

const (
	adminEmail    = "admin@byd90.com"
	adminPassword = "AdminPass123"
	testPassword  = "Password123"
)

type envelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Error   *struct {
		Code    string `json:"code"`
		Message string `json:"message"`
		Details string `json:"details"`
	} `json:"error"`
}

type authResult struct {
	AccessToken       string `json:"access_token"`
	RefreshToken      string `json:"refresh_token"`
	TokenType         string `json:"token_type"`
	VerificationToken string `json:"verification_token"`
	User              struct {
		ID         int64  `json:"id"`
		Email      string `json:"email"`
		UserType   string `json:"user_type"`
		IsVerified bool   `json:"is_verified"`
	} `json:"user"`
}

type messageResult struct {
	Message           string `json:"message"`
	ResetToken        string `json:"reset_token"`
	VerificationToken string `json:"verification_token"`
}

func testConfig() *config.Config {
	return &config.Config{
		AppName:                   "BYD90 - Beyond Ninety",
		AppVersion:                "1.0.0",
		AppDescription:            "AI-powered athlete performance platform",
		AppEnv:                    config.EnvDevelopment,
		ServerPort:                "8000",
		RequestTimeout:            10 * time.Second,
		ShutdownTimeout:           time.Second,
		StoreBackend:              config.StoreBackendMemory,
		JWTSecret:                 "integration-secret-0123456789abcdef",
		JWTIssuer:                 "byd90",
		AccessTokenTTL:            8 * 24 * time.Hour,
		RefreshTokenTTL:           30 * 24 * time.Hour,
		PasswordResetTokenTTL:     48 * time.Hour,
		EmailVerificationTokenTTL: 48 * time.Hour,
		RotateRefreshTokens:       true,
		ExposeDevTokens:           true,
		PasswordHasher:            "bcrypt",
		BcryptCost:                4,
		PasswordMinLength:         8,
		DenylistBackend:           config.DenylistMemory,
		AdminEmail:                adminEmail,
		AdminUsername:             "admin",
		AdminPassword:             adminPassword,
		CORSOrigins:               []string{"http://localhost:3000"},
		RateLimitRPM:              1000,
		AuthRateLimitRPM:          1000,
		MetricsEnabled:            true,
		OpenAPISpecPath:           "../../docs/openapi.yaml",
	}
}

func newServer(t *testing.T, mutate ...func(*config.Config)) *httptest.Server {
	t.Helper()

	cfg := testConfig()
	for _, fn := range mutate {
		fn(cfg)
	}

	application, err := app.New(context.Background(), cfg)
	require.NoError(t, err)
	t.Cleanup(application.Close)

	server := httptest.NewServer(application.Handler())
	t.Cleanup(server.Close)
	return server
}

func registerPayload(email, username string) map[string]any {
	return map[string]any{
		"email":            email,
		"username":         username,
		"password":         testPassword,
		"confirm_password": testPassword,
		"first_name":       "Jordan",
		"last_name":        "Reyes",
		"user_type":        "athlete",
		"terms_accepted":   true,
	}
}

func register(t *testing.T, server *httptest.Server, email, username string) authResult {
	t.Helper()

	resp := postJSON(t, server.URL+"/api/v1/auth/register", registerPayload(email, username), "")
	require.Equal(t, http.StatusCreated, resp.status, resp.raw)

	var result authResult
	resp.decode(t, &result)
	return result
}

func loginForm(t *testing.T, server *httptest.Server, email, password string) response {
	t.Helper()

	form := url.Values{"username": {email}, "password": {password}}
	req, err := http.NewRequest(http.MethodPost, server.URL+"/api/v1/auth/login", strings.NewReader(form.Encode()))
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	return doRequest(t, req)
}

type response struct {
	status int
	header http.Header
	body   envelope
	raw    string
}

func (r response) decode(t *testing.T, dst any) {
	t.Helper()
	require.True(t, r.body.Success, r.raw)
	require.NoError(t, json.Unmarshal(r.body.Data, dst))
}

func (r response) errorCode() string {
	if r.body.Error == nil {
		return ""
	}
	return r.body.Error.Code
}

func (r response) errorMessage() string {
	if r.body.Error == nil {
		return ""
	}
	return r.body.Error.Message
}

func postJSON(t *testing.T, url string, payload any, accessToken string) response {
	t.Helper()
	return doJSON(t, http.MethodPost, url, payload, accessToken)
}

func doJSON(t *testing.T, method, url string, payload any, accessToken string) response {
	t.Helper()

	var body []byte
	if payload != nil {
		var err error
		body, err = json.Marshal(payload)
		require.NoError(t, err)
	}

	req, err := http.NewRequest(method, url, bytes.NewReader(body))
	require.NoError(t, err)
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if accessToken != "" {
		req.Header.Set("Authorization", "Bearer "+accessToken)
	}
	return doRequest(t, req)
}

func get(t *testing.T, url string, accessToken string) response {
	t.Helper()
	return doJSON(t, http.MethodGet, url, nil, accessToken)
}

func doRequest(t *testing.T, req *http.Request) response {
	t.Helper()

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer func() { _ = resp.Body.Close() }()

	var buf bytes.Buffer
	_, err = buf.ReadFrom(resp.Body)
	require.NoError(t, err)

	out := response{status: resp.StatusCode, header: resp.Header, raw: buf.String()}
	if strings.HasPrefix(resp.Header.Get("Content-Type"), "application/json") {
		require.NoError(t, json.Unmarshal(buf.Bytes(), &out.body), out.raw)
	}
	return out
}
