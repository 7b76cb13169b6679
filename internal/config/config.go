package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

const (
	EnvDevelopment = "development"
	EnvProduction  = "production"

	StoreBackendPostgres = "postgres"
	StoreBackendMemory   = "memory"

	DenylistNone     = "none"
	DenylistMemory   = "memory"
	DenylistPostgres = "postgres"
	DenylistRedis    = "redis"

	minJWTSecretLength = 32
)

type Config struct {
	AppName        string
	AppVersion     string
	AppDescription string
	AppEnv         string

	ServerPort              string
	ServerReadHeaderTimeout time.Duration
	ServerWriteTimeout      time.Duration
	ServerIdleTimeout       time.Duration
	ShutdownTimeout         time.Duration
	RequestTimeout          time.Duration

	StoreBackend   string
	DatabaseURL    string
	DBMaxConns     int32
	DBMinConns     int32
	MigrateOnStart bool

	JWTSecret                 string
	JWTIssuer                 string
	AccessTokenTTL            time.Duration
	RefreshTokenTTL           time.Duration
	PasswordResetTokenTTL     time.Duration
	EmailVerificationTokenTTL time.Duration
	RotateRefreshTokens       bool
	ExposeDevTokens           bool

	PasswordHasher    string
	BcryptCost        int
	PasswordMinLength int

	DenylistBackend string
	RedisAddr       string
	RedisPassword   string
	RedisDB         int

	SMTPHost     string
	SMTPPort     int
	SMTPUser     string
	SMTPPassword string
	EmailsFrom   string
	SMTPTimeout  time.Duration

	NotifyQueueSize int

	AdminEmail    string
	AdminUsername string
	AdminPassword string

	CORSOrigins      []string
	RateLimitRPM     int
	AuthRateLimitRPM int
	MetricsEnabled   bool
	OpenAPISpecPath  string

	LogFormat string
	LogLevel  string
}

// Load reads .env, then an optional YAML file named by CONFIG_FILE, then the
// environment. Environment variables win over the file.
func Load() (*Config, error) {
	_ = godotenv.Load()

	src, err := newSource(strings.TrimSpace(os.Getenv("CONFIG_FILE")))
	if err != nil {
		return nil, err
	}

	cfg := src.build()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func (s source) build() *Config {
	appEnv := strings.ToLower(s.getEnv("APP_ENV", EnvProduction))

	return &Config{
		AppName:        s.getEnv("APP_NAME", "BYD90 - Beyond Ninety"),
		AppVersion:     s.getEnv("APP_VERSION", "1.0.0"),
		AppDescription: s.getEnv("APP_DESCRIPTION", "AI-powered athlete performance platform"),
		AppEnv:         appEnv,

		ServerPort:              s.getEnv("SERVER_PORT", "8000"),
		ServerReadHeaderTimeout: s.getDuration("SERVER_READ_HEADER_TIMEOUT", 10*time.Second),
		ServerWriteTimeout:      s.getDuration("SERVER_WRITE_TIMEOUT", 30*time.Second),
		ServerIdleTimeout:       s.getDuration("SERVER_IDLE_TIMEOUT", 120*time.Second),
		ShutdownTimeout:         s.getDuration("SHUTDOWN_TIMEOUT", 10*time.Second),
		RequestTimeout:          s.getDuration("REQUEST_TIMEOUT", 30*time.Second),

		StoreBackend:   strings.ToLower(s.getEnv("STORE_BACKEND", StoreBackendPostgres)),
		DatabaseURL:    s.getEnv("DATABASE_URL", ""),
		DBMaxConns:     int32(s.getInt("DB_MAX_CONNS", 10)),
		DBMinConns:     int32(s.getInt("DB_MIN_CONNS", 2)),
		MigrateOnStart: s.getBool("MIGRATE_ON_START", true),

		JWTSecret:                 s.getEnv("JWT_SECRET", ""),
		JWTIssuer:                 s.getEnv("JWT_ISSUER", "byd90"),
		AccessTokenTTL:            s.getDuration("ACCESS_TOKEN_TTL", 8*24*time.Hour),
		RefreshTokenTTL:           s.getDuration("REFRESH_TOKEN_TTL", 30*24*time.Hour),
		PasswordResetTokenTTL:     s.getDuration("PASSWORD_RESET_TOKEN_TTL", 48*time.Hour),
		EmailVerificationTokenTTL: s.getDuration("EMAIL_VERIFICATION_TOKEN_TTL", 48*time.Hour),
		RotateRefreshTokens:       s.getBool("ROTATE_REFRESH_TOKENS", true),
		ExposeDevTokens:           s.getBool("EXPOSE_DEV_TOKENS", appEnv == EnvDevelopment),

		PasswordHasher:    strings.ToLower(s.getEnv("PASSWORD_HASHER", "bcrypt")),
		BcryptCost:        s.getInt("BCRYPT_COST", 12),
		PasswordMinLength: s.getInt("PASSWORD_MIN_LENGTH", 8),

		DenylistBackend: strings.ToLower(s.getEnv("DENYLIST_BACKEND", DenylistNone)),
		RedisAddr:       s.getEnv("REDIS_ADDR", "localhost:6379"),
		RedisPassword:   s.getEnv("REDIS_PASSWORD", ""),
		RedisDB:         s.getInt("REDIS_DB", 0),

		SMTPHost:     s.getEnv("SMTP_HOST", ""),
		SMTPPort:     s.getInt("SMTP_PORT", 587),
		SMTPUser:     s.getEnv("SMTP_USER", ""),
		SMTPPassword: s.getEnv("SMTP_PASSWORD", ""),
		EmailsFrom:   s.getEnv("EMAILS_FROM", "noreply@byd90.com"),
		SMTPTimeout:  s.getDuration("SMTP_TIMEOUT", 10*time.Second),

		NotifyQueueSize: s.getInt("NOTIFY_QUEUE_SIZE", 100),

		AdminEmail:    s.getEnv("ADMIN_EMAIL", ""),
		AdminUsername: s.getEnv("ADMIN_USERNAME", "admin"),
		AdminPassword: s.getEnv("ADMIN_PASSWORD", ""),

		CORSOrigins:      splitCSV(s.getEnv("CORS_ORIGINS", "http://localhost:3000,http://localhost:8080")),
		RateLimitRPM:     s.getInt("RATE_LIMIT_RPM", 100),
		AuthRateLimitRPM: s.getInt("AUTH_RATE_LIMIT_RPM", 10),
		MetricsEnabled:   s.getBool("METRICS_ENABLED", true),
		OpenAPISpecPath:  s.getEnv("OPENAPI_SPEC_PATH", "./docs/openapi.yaml"),

		LogFormat: strings.ToLower(s.getEnv("LOG_FORMAT", "pretty")),
		LogLevel:  strings.ToLower(s.getEnv("LOG_LEVEL", "info")),
	}
}

func (c *Config) Validate() error {
	if strings.TrimSpace(c.JWTSecret) == "" {
		return fmt.Errorf("JWT_SECRET is required")
	}

	if len(c.JWTSecret) < minJWTSecretLength {
		return fmt.Errorf("JWT_SECRET must be at least %d bytes", minJWTSecretLength)
	}

	if c.ServerPort == "" {
		return fmt.Errorf("SERVER_PORT cannot be empty")
	}

	if c.RequestTimeout <= 0 {
		return fmt.Errorf("REQUEST_TIMEOUT must be positive")
	}

	if c.AccessTokenTTL <= 0 || c.RefreshTokenTTL <= 0 || c.PasswordResetTokenTTL <= 0 || c.EmailVerificationTokenTTL <= 0 {
		return fmt.Errorf("token TTLs must be positive")
	}

	if c.RefreshTokenTTL <= c.AccessTokenTTL {
		return fmt.Errorf("REFRESH_TOKEN_TTL must be longer than ACCESS_TOKEN_TTL")
	}

	switch c.StoreBackend {
	case StoreBackendMemory:
	case StoreBackendPostgres:
		if c.DatabaseURL == "" {
			return fmt.Errorf("DATABASE_URL is required when STORE_BACKEND=%s", StoreBackendPostgres)
		}
	default:
		return fmt.Errorf("unknown STORE_BACKEND %q", c.StoreBackend)
	}

	switch c.DenylistBackend {
	case DenylistNone, DenylistMemory, DenylistRedis:
	case DenylistPostgres:
		if c.StoreBackend != StoreBackendPostgres {
			return fmt.Errorf("DENYLIST_BACKEND=%s requires STORE_BACKEND=%s", DenylistPostgres, StoreBackendPostgres)
		}
	default:
		return fmt.Errorf("unknown DENYLIST_BACKEND %q", c.DenylistBackend)
	}

	switch c.PasswordHasher {
	case "bcrypt", "argon2id":
	default:
		return fmt.Errorf("unknown PASSWORD_HASHER %q", c.PasswordHasher)
	}

	if c.PasswordMinLength < 1 {
		return fmt.Errorf("PASSWORD_MIN_LENGTH must be positive")
	}

	if c.SMTPTimeout <= 0 {
		return fmt.Errorf("SMTP_TIMEOUT must be positive")
	}

	if c.NotifyQueueSize < 1 {
		return fmt.Errorf("NOTIFY_QUEUE_SIZE must be positive")
	}

	if c.DBMinConns > c.DBMaxConns {
		return fmt.Errorf("DB_MIN_CONNS cannot exceed DB_MAX_CONNS")
	}

	if (c.AdminEmail == "") != (c.AdminPassword == "") {
		return fmt.Errorf("ADMIN_EMAIL and ADMIN_PASSWORD must be set together")
	}

	return nil
}

func (c *Config) IsDevelopment() bool {
	return c.AppEnv == EnvDevelopment
}

// source resolves a key from the environment first and the YAML file second.
type source struct {
	file map[string]string
}

func newSource(path string) (source, error) {
	if path == "" {
		return source{}, nil
	}

	raw, err := os.ReadFile(path)
	if err != nil {
		return source{}, fmt.Errorf("read config file: %w", err)
	}

	var values map[string]any
	if err := yaml.Unmarshal(raw, &values); err != nil {
		return source{}, fmt.Errorf("parse config file %s: %w", path, err)
	}

	file := make(map[string]string, len(values))
	for key, value := range values {
		file[strings.ToUpper(strings.TrimSpace(key))] = yamlScalar(value)
	}

	return source{file: file}, nil
}

func yamlScalar(value any) string {
	switch v := value.(type) {
	case nil:
		return ""
	case []any:
		parts := make([]string, 0, len(v))
		for _, item := range v {
			parts = append(parts, fmt.Sprint(item))
		}
		return strings.Join(parts, ",")
	default:
		return fmt.Sprint(v)
	}
}

func (s source) lookup(key string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return strings.TrimSpace(s.file[key])
}

func (s source) getEnv(key string, fallback string) string {
	v := s.lookup(key)
	if v == "" {
		return fallback
	}

	return v
}

func (s source) getInt(key string, fallback int) int {
	raw := s.lookup(key)
	if raw == "" {
		return fallback
	}

	v, err := strconv.Atoi(raw)
	if err != nil {
		return fallback
	}

	return v
}

func (s source) getBool(key string, fallback bool) bool {
	raw := s.lookup(key)
	if raw == "" {
		return fallback
	}

	v, err := strconv.ParseBool(raw)
	if err != nil {
		return fallback
	}

	return v
}

func (s source) getDuration(key string, fallback time.Duration) time.Duration {
	raw := s.lookup(key)
	if raw == "" {
		return fallback
	}

	v, err := time.ParseDuration(raw)
	if err != nil {
		return fallback
	}

	return v
}

func splitCSV(raw string) []string {
	if strings.TrimSpace(raw) == "" {
		return nil
	}

	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, part := range parts {
		trimmed := strings.TrimSpace(part)
		if trimmed == "" {
			continue
		}
		out = append(out, trimmed)
	}

	return out
}
