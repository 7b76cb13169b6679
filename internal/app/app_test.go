package app

import (
	"context"
	"encoding/json"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"byd90-backend/internal/config"
	"byd90-backend/internal/model"
)

func memoryConfig() *config.Config {
	return &config.Config{
		AppName:                   "BYD90 - Beyond Ninety",
		AppVersion:                "1.0.0",
		AppDescription:            "AI-powered athlete performance platform",
		AppEnv:                    config.EnvDevelopment,
		ServerPort:                "0",
		RequestTimeout:            5 * time.Second,
		ShutdownTimeout:           time.Second,
		StoreBackend:              config.StoreBackendMemory,
		JWTSecret:                 "0123456789abcdef0123456789abcdef",
		JWTIssuer:                 "byd90",
		AccessTokenTTL:            time.Hour,
		RefreshTokenTTL:           24 * time.Hour,
		PasswordResetTokenTTL:     time.Hour,
		EmailVerificationTokenTTL: time.Hour,
		RotateRefreshTokens:       true,
		ExposeDevTokens:           true,
		PasswordHasher:            "bcrypt",
		BcryptCost:                4,
		PasswordMinLength:         8,
		DenylistBackend:           config.DenylistMemory,
		CORSOrigins:               []string{"http://localhost:3000"},
		MetricsEnabled:            true,
		AdminEmail:                "root@byd90.com",
		AdminUsername:             "root",
		AdminPassword:             "RootPass123",
	}
}

func TestNewWithMemoryStore(t *testing.T) {
	t.Parallel()

	a, err := New(context.Background(), memoryConfig())
	require.NoError(t, err)
	t.Cleanup(a.Close)

	t.Run("health", func(t *testing.T) {
		rec := httptest.NewRecorder()
		a.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))

		require.Equal(t, http.StatusOK, rec.Code)
		var body struct {
			Data model.HealthResponse `json:"data"`
		}
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
		assert.Equal(t, "healthy", body.Data.Status)
		assert.Empty(t, body.Data.Database)
	})

	t.Run("seeded admin can log in", func(t *testing.T) {
		form := strings.NewReader("username=root@byd90.com&password=RootPass123")
		req := httptest.NewRequest(http.MethodPost, "/api/v1/auth/login", form)
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
		rec := httptest.NewRecorder()
		a.Handler().ServeHTTP(rec, req)

		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	})

	t.Run("metrics exposed", func(t *testing.T) {
		rec := httptest.NewRecorder()
		a.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

		require.Equal(t, http.StatusOK, rec.Code)
		assert.Contains(t, rec.Body.String(), "byd90_auth_events_total")
	})
}

func TestNewRejectsBadHasher(t *testing.T) {
	t.Parallel()

	cfg := memoryConfig()
	cfg.PasswordHasher = "md5"

	_, err := New(context.Background(), cfg)
	require.Error(t, err)
}

type countingSweeper struct {
	calls atomic.Int32
}

func (s *countingSweeper) CleanExpired(context.Context) (int64, error) {
	s.calls.Add(1)
	return 1, nil
}

func TestStartCleanupTickerStopsOnCancel(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	sweeper := &countingSweeper{}
	done := make(chan struct{})

	go func() {
		startCleanupTicker(ctx, sweeper, 5*time.Millisecond)
		close(done)
	}()

	require.Eventually(t, func() bool { return sweeper.calls.Load() >= 2 }, time.Second, 5*time.Millisecond)
	cancel()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("cleanup ticker did not stop")
	}
}

func TestPasswordResetDoesNotWaitOnMailRelay(t *testing.T) {
	t.Parallel()

	// A relay that accepts connections but never greets.
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	var conns []net.Conn
	var mu sync.Mutex
	go func() {
		for {
			conn, err := ln.Accept()
			if err != nil {
				return
			}
			mu.Lock()
			conns = append(conns, conn)
			mu.Unlock()
		}
	}()
	t.Cleanup(func() {
		_ = ln.Close()
		mu.Lock()
		defer mu.Unlock()
		for _, c := range conns {
			_ = c.Close()
		}
	})

	addr := ln.Addr().(*net.TCPAddr)
	cfg := memoryConfig()
	cfg.SMTPHost = addr.IP.String()
	cfg.SMTPPort = addr.Port
	cfg.SMTPTimeout = 2 * time.Second
	cfg.NotifyQueueSize = 10

	a, err := New(context.Background(), cfg)
	require.NoError(t, err)
	t.Cleanup(a.Close)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/auth/password-reset", strings.NewReader(`{"email":"root@byd90.com"}`))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()

	start := time.Now()
	a.Handler().ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Less(t, time.Since(start), time.Second)
}
