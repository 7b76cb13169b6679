//go:build integration

package integration

import (
	"net/http"
	"strconv"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"byd90-backend/internal/config"
)

func itoa(id int64) string {
	return strconv.FormatInt(id, 10)
}

func TestSecurityHeadersOnResponses(t *testing.T) {
	t.Parallel()

	server := newServer(t)

	resp := get(t, server.URL+"/health", "")
	require.Equal(t, http.StatusOK, resp.status)
	require.Equal(t, "nosniff", resp.header.Get("X-Content-Type-Options"))
	require.Equal(t, "DENY", resp.header.Get("X-Frame-Options"))
	require.Equal(t, "no-referrer", resp.header.Get("Referrer-Policy"))
	require.NotEmpty(t, resp.header.Get("X-Process-Time"))
	require.NotEmpty(t, resp.header.Get("X-Request-ID"))
}

func TestServiceEndpoints(t *testing.T) {
	t.Parallel()

	server := newServer(t)

	t.Run("root", func(t *testing.T) {
		resp := get(t, server.URL+"/", "")
		require.Equal(t, http.StatusOK, resp.status)

		var info struct {
			Message    string `json:"message"`
			APIVersion string `json:"api_version"`
		}
		resp.decode(t, &info)
		assert.Equal(t, "Welcome to BYD90 - Beyond Ninety", info.Message)
		assert.Equal(t, "/api/v1", info.APIVersion)
	})

	t.Run("placeholders", func(t *testing.T) {
		for path, name := range map[string]string{
			"/api/v1/athletes":        "Athletes",
			"/api/v1/coaches":         "Coaches",
			"/api/v1/recommendations": "Recommendations",
			"/api/v1/communities":     "Communities",
			"/api/v1/users":           "Users",
		} {
			resp := get(t, server.URL+path, "")
			require.Equal(t, http.StatusOK, resp.status, path)

			var msg messageResult
			resp.decode(t, &msg)
			assert.Equal(t, name+" endpoint - coming soon", msg.Message)
		}
	})

	t.Run("metrics", func(t *testing.T) {
		resp := get(t, server.URL+"/metrics", "")
		require.Equal(t, http.StatusOK, resp.status)
		assert.Contains(t, resp.raw, "byd90_http_requests_total")
	})
}

func TestAuthRateLimitReturns429(t *testing.T) {
	t.Parallel()

	server := newServer(t, func(c *config.Config) {
		c.AuthRateLimitRPM = 2
	})

	for attempt := 0; attempt < 2; attempt++ {
		resp := loginForm(t, server, adminEmail, adminPassword)
		require.Equal(t, http.StatusOK, resp.status)
	}

	resp := loginForm(t, server, adminEmail, adminPassword)
	require.Equal(t, http.StatusTooManyRequests, resp.status)
	require.NotEmpty(t, resp.header.Get("Retry-After"))
	require.Equal(t, "RATE_LIMITED", resp.errorCode())

	health := get(t, server.URL+"/health", "")
	require.Equal(t, http.StatusOK, health.status)
}

func TestCORSPreflight(t *testing.T) {
	t.Parallel()

	server := newServer(t)

	req, err := http.NewRequest(http.MethodOptions, server.URL+"/api/v1/auth/login", nil)
	require.NoError(t, err)
	req.Header.Set("Origin", "http://localhost:3000")
	req.Header.Set("Access-Control-Request-Method", http.MethodPost)

	resp := doRequest(t, req)
	require.Less(t, resp.status, 300)
	assert.Equal(t, "http://localhost:3000", resp.header.Get("Access-Control-Allow-Origin"))
}
