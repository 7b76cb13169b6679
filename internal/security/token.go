package security

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/samber/oops"

	"byd90-backend/internal/model"
)

type Purpose string

const (
	PurposeAccess            Purpose = "access"
	PurposeRefresh           Purpose = "refresh"
	PurposePasswordReset     Purpose = "password_reset"
	PurposeEmailVerification Purpose = "email_verification"
)

func (p Purpose) Valid() bool {
	switch p {
	case PurposeAccess, PurposeRefresh, PurposePasswordReset, PurposeEmailVerification:
		return true
	}
	return false
}

// MinSecretLength is the minimum HMAC key size accepted by NewTokenCodec.
const MinSecretLength = 32

const signingAlgorithm = "HS256"

// Claims is the payload carried by every token the codec issues.
type Claims struct {
	Type Purpose `json:"type"`

	// Fingerprint binds the token to a piece of account state, see IssueBound.
	Fingerprint string `json:"fgp,omitempty"`

	jwt.RegisteredClaims
}

// TokenTTLs holds the default lifetime for each purpose.
type TokenTTLs struct {
	Access            time.Duration
	Refresh           time.Duration
	PasswordReset     time.Duration
	EmailVerification time.Duration
}

// TokenCodec issues and verifies HMAC-signed, purpose-tagged tokens.
type TokenCodec struct {
	secret []byte
	issuer string
	ttls   TokenTTLs
	now    func() time.Time
	parser *jwt.Parser
}

type CodecOption func(*TokenCodec)

// WithClock overrides the time source used for issuing and verifying.
func WithClock(now func() time.Time) CodecOption {
	return func(c *TokenCodec) {
		if now != nil {
			c.now = now
		}
	}
}

func WithIssuer(issuer string) CodecOption {
	return func(c *TokenCodec) {
		c.issuer = strings.TrimSpace(issuer)
	}
}

func NewTokenCodec(secret string, ttls TokenTTLs, opts ...CodecOption) (*TokenCodec, error) {
	if len(secret) < MinSecretLength {
		return nil, fmt.Errorf("token secret must be at least %d bytes", MinSecretLength)
	}

	c := &TokenCodec{
		secret: []byte(secret),
		ttls:   ttls,
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}

	parserOpts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{signingAlgorithm}),
		jwt.WithExpirationRequired(),
		jwt.WithIssuedAt(),
		jwt.WithTimeFunc(func() time.Time { return c.now() }),
	}
	if c.issuer != "" {
		parserOpts = append(parserOpts, jwt.WithIssuer(c.issuer))
	}
	c.parser = jwt.NewParser(parserOpts...)

	return c, nil
}

// TTL returns the configured default lifetime for purpose.
func (c *TokenCodec) TTL(purpose Purpose) time.Duration {
	switch purpose {
	case PurposeAccess:
		return c.ttls.Access
	case PurposeRefresh:
		return c.ttls.Refresh
	case PurposePasswordReset:
		return c.ttls.PasswordReset
	case PurposeEmailVerification:
		return c.ttls.EmailVerification
	}
	return 0
}

// Issue signs a token for subject using the purpose's default lifetime.
func (c *TokenCodec) Issue(subject string, purpose Purpose) (string, Claims, error) {
	return c.IssueWithTTL(subject, purpose, c.TTL(purpose))
}

// IssueWithTTL signs a token valid from now until now+ttl.
func (c *TokenCodec) IssueWithTTL(subject string, purpose Purpose, ttl time.Duration) (string, Claims, error) {
	return c.issue(subject, purpose, ttl, "")
}

// IssueBound signs a token that only matches while binding is unchanged.
// The binding itself is not embedded, only a keyed digest of it.
func (c *TokenCodec) IssueBound(subject string, purpose Purpose, binding string) (string, Claims, error) {
	return c.issue(subject, purpose, c.TTL(purpose), c.fingerprint(binding))
}

// MatchesBinding reports whether claims were issued by IssueBound for binding.
func (c *TokenCodec) MatchesBinding(claims Claims, binding string) bool {
	if claims.Fingerprint == "" {
		return false
	}
	return hmac.Equal([]byte(claims.Fingerprint), []byte(c.fingerprint(binding)))
}

func (c *TokenCodec) fingerprint(binding string) string {
	mac := hmac.New(sha256.New, c.secret)
	mac.Write([]byte("binding:"))
	mac.Write([]byte(binding))
	return base64.RawURLEncoding.EncodeToString(mac.Sum(nil)[:16])
}

func (c *TokenCodec) issue(subject string, purpose Purpose, ttl time.Duration, fingerprint string) (string, Claims, error) {
	if strings.TrimSpace(subject) == "" {
		return "", Claims{}, errors.New("token subject is required")
	}
	if !purpose.Valid() {
		return "", Claims{}, fmt.Errorf("unknown token purpose %q", purpose)
	}

	now := c.now()
	claims := Claims{
		Type:        purpose,
		Fingerprint: fingerprint,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    c.issuer,
			Subject:   subject,
			ID:        uuid.NewString(),
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(c.secret)
	if err != nil {
		return "", Claims{}, oops.Code("AUTH_TOKEN_SIGN_FAILED").With("purpose", string(purpose)).Wrap(err)
	}

	return signed, claims, nil
}

// Parse verifies signature, algorithm, time window and purpose. Every failure
// collapses into model.ErrInvalidToken.
func (c *TokenCodec) Parse(tokenString string, purpose Purpose) (Claims, error) {
	tokenString = strings.TrimSpace(tokenString)
	if tokenString == "" {
		return Claims{}, model.ErrInvalidToken
	}

	var claims Claims
	token, err := c.parser.ParseWithClaims(tokenString, &claims, func(_ *jwt.Token) (any, error) {
		return c.secret, nil
	})
	if err != nil || !token.Valid {
		return Claims{}, model.ErrInvalidToken
	}

	if claims.Type != purpose || claims.Subject == "" || claims.ID == "" {
		return Claims{}, model.ErrInvalidToken
	}

	return claims, nil
}

// Verify returns the subject of a valid token of the given purpose.
func (c *TokenCodec) Verify(tokenString string, purpose Purpose) (string, error) {
	claims, err := c.Parse(tokenString, purpose)
	if err != nil {
		return "", err
	}
	return claims.Subject, nil
}

// ExpiresAtTime returns the expiry of claims, or the zero time when absent.
func (c Claims) ExpiresAtTime() time.Time {
	if c.ExpiresAt == nil {
		return time.Time{}
	}
	return c.ExpiresAt.Time
}
