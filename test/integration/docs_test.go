//go:build integration

package integration

import (
	"io"
	"net/http"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestOpenAPISpecAndSwaggerUI(t *testing.T) {
	t.Parallel()

	server := newServer(t)

	specResp, err := http.Get(server.URL + "/openapi.yaml")
	require.NoError(t, err)
	t.Cleanup(func() { _ = specResp.Body.Close() })
	require.Equal(t, http.StatusOK, specResp.StatusCode)
	require.Equal(t, "application/yaml", specResp.Header.Get("Content-Type"))

	specBytes, err := io.ReadAll(specResp.Body)
	require.NoError(t, err)
	specText := string(specBytes)
	require.Contains(t, specText, "openapi: 3.0.3")
	require.Contains(t, specText, "/api/v1/auth/register")
	require.Contains(t, specText, "/api/v1/auth/password-reset/confirm")
	require.Contains(t, specText, "/api/v1/users/{id}/status")

	swaggerResp, err := http.Get(server.URL + "/docs")
	require.NoError(t, err)
	t.Cleanup(func() { _ = swaggerResp.Body.Close() })
	require.Equal(t, http.StatusOK, swaggerResp.StatusCode)
	require.Contains(t, swaggerResp.Header.Get("Content-Type"), "text/html")

	swaggerBytes, err := io.ReadAll(swaggerResp.Body)
	require.NoError(t, err)
	require.True(t, strings.Contains(string(swaggerBytes), "SwaggerUIBundle"))
}
