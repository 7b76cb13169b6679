package service

import (
	"context"
	"errors"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/samber/oops"

	"byd90-backend/internal/model"
	"byd90-backend/internal/notify"
	"byd90-backend/internal/repository"
	"byd90-backend/internal/security"
)

const tokenTypeBearer = "bearer"

// IdentityStore persists accounts. Implementations return model.ErrUserNotFound,
// model.ErrDuplicateEmail and model.ErrDuplicateUsername for the matching cases.
type IdentityStore interface {
	FindByID(ctx context.Context, id int64) (model.User, error)
	FindByEmail(ctx context.Context, email string) (model.User, error)
	FindByUsername(ctx context.Context, username string) (model.User, error)
	Create(ctx context.Context, nu model.NewUser, now time.Time) (model.User, error)
	SetPasswordHash(ctx context.Context, id int64, hash string, now time.Time) error
	MarkVerified(ctx context.Context, id int64, now time.Time) (bool, error)
	RecordLogin(ctx context.Context, id int64, now time.Time) error
	UpdateProfile(ctx context.Context, id int64, update model.ProfileUpdate, now time.Time) (model.User, error)
	SetActive(ctx context.Context, id int64, active bool, now time.Time) error
}

// TokenDenylist records token ids that must no longer verify.
type TokenDenylist interface {
	Revoke(ctx context.Context, jti string, expiresAt time.Time) error
	IsRevoked(ctx context.Context, jti string) (bool, error)
}

// EventRecorder counts auth outcomes.
type EventRecorder interface {
	AuthEvent(operation, outcome string)
}

type AuthServiceConfig struct {
	Denylist TokenDenylist
	Notifier notify.Notifier
	Policy   security.PasswordPolicy
	Recorder EventRecorder

	// RotateRefreshTokens revokes the presented refresh token and issues a new one on refresh.
	RotateRefreshTokens bool
	// ExposeDevTokens echoes reset and verification tokens in API responses.
	ExposeDevTokens bool

	Clock func() time.Time
}

type AuthService struct {
	users    IdentityStore
	hasher   security.PasswordHasher
	tokens   *security.TokenCodec
	denylist TokenDenylist
	notifier notify.Notifier
	policy   security.PasswordPolicy
	recorder EventRecorder

	rotateRefresh   bool
	exposeDevTokens bool
	dummyHash       string
	now             func() time.Time
}

func NewAuthService(users IdentityStore, hasher security.PasswordHasher, tokens *security.TokenCodec, cfg AuthServiceConfig) (*AuthService, error) {
	if users == nil || hasher == nil || tokens == nil {
		return nil, errors.New("auth service requires a user store, hasher and token codec")
	}

	// Verified against when the account does not exist so both paths cost one hash.
	dummyHash, err := hasher.Hash("byd90-timing-equalizer")
	if err != nil {
		return nil, oops.Code("AUTH_INIT_FAILED").Wrap(err)
	}

	s := &AuthService{
		users:           users,
		hasher:          hasher,
		tokens:          tokens,
		denylist:        cfg.Denylist,
		notifier:        cfg.Notifier,
		policy:          cfg.Policy,
		recorder:        cfg.Recorder,
		rotateRefresh:   cfg.RotateRefreshTokens,
		exposeDevTokens: cfg.ExposeDevTokens,
		dummyHash:       dummyHash,
		now:             cfg.Clock,
	}
	if s.denylist == nil {
		s.denylist = repository.NoopDenylist{}
	}
	if s.notifier == nil {
		s.notifier = notify.NewLogNotifier(nil)
	}
	if s.policy.MinLength == 0 {
		s.policy = security.DefaultPasswordPolicy(0)
	}
	if s.recorder == nil {
		s.recorder = noopRecorder{}
	}
	if s.now == nil {
		s.now = time.Now
	}

	return s, nil
}

// Register validates the payload, creates an active unverified account and
// returns a fresh token pair.
func (s *AuthService) Register(ctx context.Context, req model.RegisterRequest) (result model.AuthResult, err error) {
	defer func() { s.record("register", err) }()

	req, err = validateRegistration(req, s.policy)
	if err != nil {
		return model.AuthResult{}, err
	}

	if _, err := s.users.FindByEmail(ctx, req.Email); err == nil {
		return model.AuthResult{}, model.ErrDuplicateEmail
	} else if !errors.Is(err, model.ErrUserNotFound) {
		return model.AuthResult{}, s.wrap("register", err)
	}
	if _, err := s.users.FindByUsername(ctx, req.Username); err == nil {
		return model.AuthResult{}, model.ErrDuplicateUsername
	} else if !errors.Is(err, model.ErrUserNotFound) {
		return model.AuthResult{}, s.wrap("register", err)
	}

	hash, err := s.hasher.Hash(req.Password)
	if err != nil {
		return model.AuthResult{}, s.wrap("register", err)
	}

	user, err := s.users.Create(ctx, model.NewUser{
		Email:        req.Email,
		Username:     req.Username,
		PasswordHash: hash,
		FirstName:    req.FirstName,
		LastName:     req.LastName,
		PhoneNumber:  req.PhoneNumber,
		UserType:     req.UserType,
	}, s.now().UTC())
	if err != nil {
		if errors.Is(err, model.ErrDuplicateEmail) || errors.Is(err, model.ErrDuplicateUsername) {
			return model.AuthResult{}, err
		}
		return model.AuthResult{}, s.wrap("register", err)
	}

	pair, err := s.issueTokenPair(user)
	if err != nil {
		return model.AuthResult{}, s.wrap("register", err)
	}

	result = model.AuthResult{TokenPair: pair, User: user.Summary()}

	verification, err := s.issueOneTime(ctx, user.Email, security.PurposeEmailVerification, "")
	if err != nil {
		slog.WarnContext(ctx, "verification token not delivered", "user_id", user.ID, "error", err)
	}
	if s.exposeDevTokens {
		result.VerificationToken = verification
	}

	slog.InfoContext(ctx, "user registered", "user_id", user.ID, "user_type", string(user.UserType))
	return result, nil
}

// Login checks credentials. Unknown emails and wrong passwords are
// indistinguishable to the caller.
func (s *AuthService) Login(ctx context.Context, email string, password string) (result model.AuthResult, err error) {
	defer func() { s.record("login", err) }()

	email = strings.ToLower(strings.TrimSpace(email))
	user, err := s.users.FindByEmail(ctx, email)
	if errors.Is(err, model.ErrUserNotFound) {
		s.hasher.Verify(password, s.dummyHash)
		return model.AuthResult{}, model.ErrInvalidCredentials
	}
	if err != nil {
		return model.AuthResult{}, s.wrap("login", err)
	}

	if !s.hasher.Verify(password, user.PasswordHash) {
		return model.AuthResult{}, model.ErrInvalidCredentials
	}
	if !user.IsActive {
		return model.AuthResult{}, model.ErrInactiveAccount
	}

	now := s.now().UTC()
	if err := s.users.RecordLogin(ctx, user.ID, now); err != nil {
		return model.AuthResult{}, s.wrap("login", err)
	}
	user.LastLogin = &now

	s.upgradeHash(ctx, user, password)

	pair, err := s.issueTokenPair(user)
	if err != nil {
		return model.AuthResult{}, s.wrap("login", err)
	}

	return model.AuthResult{TokenPair: pair, User: user.Summary()}, nil
}

// Refresh exchanges a refresh token for a new access token. With rotation
// enabled the presented refresh token is revoked and replaced.
func (s *AuthService) Refresh(ctx context.Context, refreshToken string) (pair model.TokenPair, err error) {
	defer func() { s.record("refresh", err) }()

	claims, err := s.verify(ctx, refreshToken, security.PurposeRefresh)
	if err != nil {
		return model.TokenPair{}, err
	}

	user, err := s.userFromSubject(ctx, claims.Subject)
	if err != nil {
		if errors.Is(err, model.ErrUserNotFound) {
			return model.TokenPair{}, model.ErrInvalidToken
		}
		return model.TokenPair{}, s.wrap("refresh", err)
	}
	if !user.IsActive {
		return model.TokenPair{}, model.ErrInvalidToken
	}

	if !s.rotateRefresh {
		access, _, err := s.tokens.Issue(claims.Subject, security.PurposeAccess)
		if err != nil {
			return model.TokenPair{}, s.wrap("refresh", err)
		}
		return s.pair(access, refreshToken), nil
	}

	if err := s.denylist.Revoke(ctx, claims.ID, claims.ExpiresAtTime()); err != nil {
		return model.TokenPair{}, s.wrap("refresh", err)
	}
	return s.issueTokenPair(user)
}

// Logout revokes the caller's access token and, when given, a refresh token
// belonging to the same subject. With no denylist configured this is a no-op.
func (s *AuthService) Logout(ctx context.Context, access *model.AuthClaims, refreshToken string) (err error) {
	defer func() { s.record("logout", err) }()

	if access == nil {
		return model.ErrUnauthorized
	}

	if err := s.denylist.Revoke(ctx, access.TokenID, access.ExpiresAt); err != nil {
		return s.wrap("logout", err)
	}

	if strings.TrimSpace(refreshToken) == "" {
		return nil
	}
	claims, err := s.tokens.Parse(refreshToken, security.PurposeRefresh)
	if err != nil || claims.Subject != access.UserID {
		return nil
	}
	if err := s.denylist.Revoke(ctx, claims.ID, claims.ExpiresAtTime()); err != nil {
		return s.wrap("logout", err)
	}
	return nil
}

// RequestPasswordReset issues a reset token for a known email. The result is
// the same for unknown emails, except that no token exists.
func (s *AuthService) RequestPasswordReset(ctx context.Context, rawEmail string) (token string, err error) {
	defer func() { s.record("password_reset_request", err) }()

	email, err := normalizeEmail(rawEmail)
	if err != nil {
		return "", err
	}

	user, err := s.users.FindByEmail(ctx, email)
	if errors.Is(err, model.ErrUserNotFound) {
		return "", nil
	}
	if err != nil {
		return "", s.wrap("password_reset_request", err)
	}

	token, err = s.issueOneTime(ctx, user.Email, security.PurposePasswordReset, user.PasswordHash)
	if err != nil {
		if token == "" {
			return "", s.wrap("password_reset_request", err)
		}
		slog.WarnContext(ctx, "password reset token not delivered", "user_id", user.ID, "error", err)
	}

	if !s.exposeDevTokens {
		return "", nil
	}
	return token, nil
}

// ConfirmPasswordReset sets a new password for the account named by a valid
// reset token and then revokes that token. A reset token only matches the
// password hash it was issued against, so it is single use even without a
// denylist.
func (s *AuthService) ConfirmPasswordReset(ctx context.Context, req model.PasswordResetConfirmRequest) (err error) {
	defer func() { s.record("password_reset_confirm", err) }()

	if err := s.policy.Validate("new_password", req.NewPassword); err != nil {
		return err
	}
	if req.NewPassword != req.ConfirmPassword {
		return model.NewValidationError("confirm_password", "passwords do not match")
	}

	claims, err := s.verify(ctx, req.Token, security.PurposePasswordReset)
	if err != nil {
		return err
	}

	user, err := s.users.FindByEmail(ctx, claims.Subject)
	if err != nil {
		if errors.Is(err, model.ErrUserNotFound) {
			return err
		}
		return s.wrap("password_reset_confirm", err)
	}
	if !s.tokens.MatchesBinding(claims, user.PasswordHash) {
		return model.ErrInvalidToken
	}

	hash, err := s.hasher.Hash(req.NewPassword)
	if err != nil {
		return s.wrap("password_reset_confirm", err)
	}
	if err := s.users.SetPasswordHash(ctx, user.ID, hash, s.now().UTC()); err != nil {
		if errors.Is(err, model.ErrUserNotFound) {
			return err
		}
		return s.wrap("password_reset_confirm", err)
	}

	if err := s.denylist.Revoke(ctx, claims.ID, claims.ExpiresAtTime()); err != nil {
		slog.WarnContext(ctx, "reset token not revoked", "user_id", user.ID, "error", err)
	}

	slog.InfoContext(ctx, "password reset", "user_id", user.ID)
	return nil
}

// VerifyEmail marks the account named by a verification token as verified.
// It reports whether the account had already been verified.
func (s *AuthService) VerifyEmail(ctx context.Context, token string) (alreadyVerified bool, err error) {
	defer func() { s.record("verify_email", err) }()

	claims, err := s.verify(ctx, token, security.PurposeEmailVerification)
	if err != nil {
		return false, err
	}

	user, err := s.users.FindByEmail(ctx, claims.Subject)
	if err != nil {
		if errors.Is(err, model.ErrUserNotFound) {
			return false, err
		}
		return false, s.wrap("verify_email", err)
	}
	if user.IsVerified {
		return true, nil
	}

	changed, err := s.users.MarkVerified(ctx, user.ID, s.now().UTC())
	if err != nil {
		return false, s.wrap("verify_email", err)
	}
	return !changed, nil
}

// ResendVerification issues a new verification token for the caller.
func (s *AuthService) ResendVerification(ctx context.Context, subject string) (token string, alreadyVerified bool, err error) {
	defer func() { s.record("resend_verification", err) }()

	user, err := s.userFromSubject(ctx, subject)
	if err != nil {
		if errors.Is(err, model.ErrUserNotFound) {
			return "", false, model.ErrUnauthorized
		}
		return "", false, s.wrap("resend_verification", err)
	}
	if user.IsVerified {
		return "", true, nil
	}

	token, err = s.issueOneTime(ctx, user.Email, security.PurposeEmailVerification, "")
	if err != nil {
		if token == "" {
			return "", false, s.wrap("resend_verification", err)
		}
		slog.WarnContext(ctx, "verification token not delivered", "user_id", user.ID, "error", err)
	}

	if !s.exposeDevTokens {
		return "", false, nil
	}
	return token, false, nil
}

// AuthenticateAccessToken verifies an access token for the request middleware.
func (s *AuthService) AuthenticateAccessToken(ctx context.Context, token string) (*model.AuthClaims, error) {
	claims, err := s.verify(ctx, token, security.PurposeAccess)
	if err != nil {
		return nil, err
	}
	return &model.AuthClaims{
		UserID:    claims.Subject,
		Type:      string(claims.Type),
		TokenID:   claims.ID,
		ExpiresAt: claims.ExpiresAtTime(),
	}, nil
}

// CurrentUser resolves an access token subject. A vanished account is
// model.ErrUnauthorized and a deactivated one model.ErrInactiveAccount.
func (s *AuthService) CurrentUser(ctx context.Context, subject string) (model.User, error) {
	user, err := s.userFromSubject(ctx, subject)
	if err != nil {
		if errors.Is(err, model.ErrUserNotFound) {
			return model.User{}, model.ErrUnauthorized
		}
		return model.User{}, s.wrap("current_user", err)
	}
	if !user.IsActive {
		return model.User{}, model.ErrInactiveAccount
	}
	return user, nil
}

// EnsureAdmin creates a verified admin account unless the email is already registered.
func (s *AuthService) EnsureAdmin(ctx context.Context, email, username, password string) error {
	email, err := normalizeEmail(email)
	if err != nil {
		return err
	}
	if _, err := s.users.FindByEmail(ctx, email); err == nil {
		return nil
	} else if !errors.Is(err, model.ErrUserNotFound) {
		return s.wrap("ensure_admin", err)
	}
	if err := s.policy.Validate("password", password); err != nil {
		return err
	}

	hash, err := s.hasher.Hash(password)
	if err != nil {
		return s.wrap("ensure_admin", err)
	}

	now := s.now().UTC()
	user, err := s.users.Create(ctx, model.NewUser{
		Email:        email,
		Username:     username,
		PasswordHash: hash,
		FirstName:    "BYD90",
		LastName:     "Admin",
		UserType:     model.UserTypeAdmin,
	}, now)
	if err != nil {
		return s.wrap("ensure_admin", err)
	}
	if _, err := s.users.MarkVerified(ctx, user.ID, now); err != nil {
		return s.wrap("ensure_admin", err)
	}

	slog.InfoContext(ctx, "admin account created", "user_id", user.ID)
	return nil
}

// verify parses a token and consults the denylist. A denylist failure is
// treated as an invalid token.
func (s *AuthService) verify(ctx context.Context, token string, purpose security.Purpose) (security.Claims, error) {
	claims, err := s.tokens.Parse(token, purpose)
	if err != nil {
		return security.Claims{}, err
	}

	revoked, err := s.denylist.IsRevoked(ctx, claims.ID)
	if err != nil {
		slog.WarnContext(ctx, "token denylist lookup failed", "purpose", string(purpose), "error", err)
		return security.Claims{}, model.ErrInvalidToken
	}
	if revoked {
		return security.Claims{}, model.ErrInvalidToken
	}
	return claims, nil
}

func (s *AuthService) userFromSubject(ctx context.Context, subject string) (model.User, error) {
	id, err := strconv.ParseInt(subject, 10, 64)
	if err != nil || id <= 0 {
		return model.User{}, model.ErrUserNotFound
	}
	return s.users.FindByID(ctx, id)
}

func (s *AuthService) issueTokenPair(user model.User) (model.TokenPair, error) {
	subject := strconv.FormatInt(user.ID, 10)

	access, _, err := s.tokens.Issue(subject, security.PurposeAccess)
	if err != nil {
		return model.TokenPair{}, err
	}
	refresh, _, err := s.tokens.Issue(subject, security.PurposeRefresh)
	if err != nil {
		return model.TokenPair{}, err
	}

	return s.pair(access, refresh), nil
}

func (s *AuthService) pair(access, refresh string) model.TokenPair {
	return model.TokenPair{
		AccessToken:  access,
		RefreshToken: refresh,
		TokenType:    tokenTypeBearer,
		ExpiresIn:    int64(s.tokens.TTL(security.PurposeAccess).Seconds()),
	}
}

// issueOneTime signs a token and hands it to the notifier. A non-empty binding
// ties the token to that account state. A delivery failure still returns the
// token alongside the error.
func (s *AuthService) issueOneTime(ctx context.Context, email string, purpose security.Purpose, binding string) (string, error) {
	var (
		token string
		err   error
	)
	if binding != "" {
		token, _, err = s.tokens.IssueBound(email, purpose, binding)
	} else {
		token, _, err = s.tokens.Issue(email, purpose)
	}
	if err != nil {
		return "", err
	}
	if err := s.notifier.Send(ctx, notify.Message{To: email, Purpose: notifyPurpose(purpose), Token: token}); err != nil {
		return token, err
	}
	return token, nil
}

func notifyPurpose(purpose security.Purpose) notify.Purpose {
	if purpose == security.PurposePasswordReset {
		return notify.PurposePasswordReset
	}
	return notify.PurposeEmailVerification
}

func (s *AuthService) upgradeHash(ctx context.Context, user model.User, password string) {
	if !s.hasher.NeedsUpgrade(user.PasswordHash) {
		return
	}
	hash, err := s.hasher.Hash(password)
	if err != nil {
		slog.WarnContext(ctx, "password rehash failed", "user_id", user.ID, "error", err)
		return
	}
	if err := s.users.SetPasswordHash(ctx, user.ID, hash, s.now().UTC()); err != nil {
		slog.WarnContext(ctx, "password rehash not stored", "user_id", user.ID, "error", err)
	}
}

func (s *AuthService) wrap(operation string, err error) error {
	return oops.Code("AUTH_"+strings.ToUpper(operation)+"_FAILED").With("operation", operation).Wrap(err)
}

func (s *AuthService) record(operation string, err error) {
	s.recorder.AuthEvent(operation, outcomeOf(err))
}

func outcomeOf(err error) string {
	switch {
	case err == nil:
		return "success"
	case errors.Is(err, model.ErrValidation):
		return "invalid_input"
	case errors.Is(err, model.ErrDuplicateEmail), errors.Is(err, model.ErrDuplicateUsername):
		return "duplicate"
	case errors.Is(err, model.ErrInvalidCredentials):
		return "invalid_credentials"
	case errors.Is(err, model.ErrInactiveAccount):
		return "inactive"
	case errors.Is(err, model.ErrInvalidToken):
		return "invalid_token"
	case errors.Is(err, model.ErrUserNotFound), errors.Is(err, model.ErrUnauthorized):
		return "unknown_user"
	default:
		return "error"
	}
}

type noopRecorder struct{}

func (noopRecorder) AuthEvent(string, string) {}
