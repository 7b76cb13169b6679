package middleware

import (
	"fmt"
	"log/slog"
	"net/http"
	"runtime/debug"

	"byd90-backend/pkg/apierror"
)

// Recovery turns a panic into a 500 naming only the request path.
func Recovery(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if recovered := recover(); recovered != nil {
				if recovered == http.ErrAbortHandler {
					panic(recovered)
				}
				slog.ErrorContext(r.Context(), "panic recovered",
					"request_id", RequestIDFromContext(r.Context()),
					"path", r.URL.Path,
					"error", fmt.Sprintf("%v", recovered),
					"stack", string(debug.Stack()),
				)
				writeJSONError(w, http.StatusInternalServerError, apierror.CodeInternal,
					"Internal server error", "unexpected error while handling "+r.URL.Path)
			}
		}()

		next.ServeHTTP(w, r)
	})
}
