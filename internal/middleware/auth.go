package middleware

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"byd90-backend/internal/model"
	"byd90-backend/pkg/apierror"
)

type tokenAuthenticator interface {
	AuthenticateAccessToken(ctx context.Context, token string) (*model.AuthClaims, error)
	CurrentUser(ctx context.Context, subject string) (model.User, error)
}

type contextKey string

const (
	authClaimsContextKey contextKey = "auth_claims"
	authUserContextKey   contextKey = "auth_user"
)

type AuthMiddleware struct {
	authenticator tokenAuthenticator
}

func NewAuthMiddleware(authenticator tokenAuthenticator) *AuthMiddleware {
	return &AuthMiddleware{authenticator: authenticator}
}

// RequireAuth accepts "Authorization: Bearer <access token>" and stores the
// verified claims in the request context.
func (m *AuthMiddleware) RequireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token, ok := bearerToken(r)
		if !ok {
			writeUnauthorized(w, "Not authenticated")
			return
		}

		claims, err := m.authenticator.AuthenticateAccessToken(r.Context(), token)
		if err != nil {
			writeUnauthorized(w, "Could not validate credentials")
			return
		}

		ctx := context.WithValue(r.Context(), authClaimsContextKey, claims)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// RequireActiveUser loads the caller's account and rejects deactivated ones.
// It must run after RequireAuth.
func (m *AuthMiddleware) RequireActiveUser(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		claims, ok := ClaimsFromContext(r.Context())
		if !ok {
			writeUnauthorized(w, "Not authenticated")
			return
		}

		user, err := m.authenticator.CurrentUser(r.Context(), claims.UserID)
		switch {
		case err == nil:
		case errors.Is(err, model.ErrInactiveAccount):
			writeJSONError(w, http.StatusBadRequest, apierror.CodeBadRequest, "Inactive user", "")
			return
		case errors.Is(err, model.ErrUnauthorized):
			writeUnauthorized(w, "Could not validate credentials")
			return
		default:
			slog.ErrorContext(r.Context(), "load current user failed", "error", err, "path", r.URL.Path)
			writeJSONError(w, http.StatusInternalServerError, apierror.CodeInternal, "Unexpected server error", "")
			return
		}

		ctx := context.WithValue(r.Context(), authUserContextKey, user)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// RequireUserTypes admits only the listed account types. It must run after RequireActiveUser.
func (m *AuthMiddleware) RequireUserTypes(allowed ...model.UserType) func(http.Handler) http.Handler {
	typeSet := map[model.UserType]struct{}{}
	for _, t := range allowed {
		typeSet[t] = struct{}{}
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			user, ok := UserFromContext(r.Context())
			if !ok {
				writeUnauthorized(w, "Not authenticated")
				return
			}

			if _, exists := typeSet[user.UserType]; !exists {
				writeJSONError(w, http.StatusForbidden, apierror.CodeForbidden, "Not enough permissions", "")
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

func ClaimsFromContext(ctx context.Context) (*model.AuthClaims, bool) {
	claims, ok := ctx.Value(authClaimsContextKey).(*model.AuthClaims)
	return claims, ok
}

func UserFromContext(ctx context.Context) (model.User, bool) {
	user, ok := ctx.Value(authUserContextKey).(model.User)
	return user, ok
}

func bearerToken(r *http.Request) (string, bool) {
	header := strings.TrimSpace(r.Header.Get("Authorization"))
	if len(header) < 7 || !strings.EqualFold(header[:7], "bearer ") {
		return "", false
	}
	token := strings.TrimSpace(header[7:])
	return token, token != ""
}

func writeUnauthorized(w http.ResponseWriter, message string) {
	w.Header().Set("WWW-Authenticate", "Bearer")
	writeJSONError(w, http.StatusUnauthorized, apierror.CodeUnauthorized, message, "")
}
