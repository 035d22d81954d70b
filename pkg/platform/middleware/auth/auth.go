package auth

import (
	"context"
	"log/slog"
	"net/http"
	"strings"

	"whozin/pkg/platform/httputil"
	"whozin/pkg/requestcontext"
)

// SessionCookie carries the session token for browser callers.
const SessionCookie = "whozin_session"

// JWTValidator defines the interface for validating session tokens
type JWTValidator interface {
	ValidateToken(tokenString string) (*JWTClaims, error)
}

// JWTClaims represents the claims we expect from the JWT validator
type JWTClaims struct {
	UserID             string
	DisplayName        string
	OnboardingComplete bool
}

// Context keys for storing the authenticated profile
type contextKeyClaims struct{}

var ContextKeyClaims = contextKeyClaims{}

// GetUserID retrieves the authenticated user ID from the context
func GetUserID(ctx context.Context) string {
	return requestcontext.UserID(ctx)
}

// GetClaims retrieves the authenticated session claims, or nil for anonymous requests.
func GetClaims(ctx context.Context) *JWTClaims {
	claims, ok := ctx.Value(ContextKeyClaims).(*JWTClaims)
	if !ok {
		return nil
	}
	return claims
}

// WithClaims stores claims and the user ID in ctx.
func WithClaims(ctx context.Context, claims *JWTClaims) context.Context {
	ctx = context.WithValue(ctx, ContextKeyClaims, claims)
	return requestcontext.WithUserID(ctx, claims.UserID)
}

// tokenFromRequest prefers the Authorization header over the session cookie.
func tokenFromRequest(r *http.Request) string {
	if after, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer "); ok {
		return strings.TrimSpace(after)
	}
	if c, err := r.Cookie(SessionCookie); err == nil {
		return c.Value
	}
	return ""
}

func writeUnauthorized(w http.ResponseWriter, desc string) {
	httputil.WriteJSON(w, http.StatusUnauthorized, httputil.ErrorResponse{
		Error:            "unauthorized",
		ErrorDescription: desc,
	})
}

func RequireAuth(validator JWTValidator, logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			token := tokenFromRequest(r)
			if token == "" {
				logger.WarnContext(ctx, "unauthorized access - missing token",
					"request_id", requestcontext.RequestID(ctx),
				)
				writeUnauthorized(w, "Missing session")
				return
			}

			claims, err := validator.ValidateToken(token)
			if err != nil {
				logger.WarnContext(ctx, "unauthorized access - invalid token",
					"error", err,
					"request_id", requestcontext.RequestID(ctx),
				)
				writeUnauthorized(w, "Invalid or expired session")
				return
			}

			next.ServeHTTP(w, r.WithContext(WithClaims(ctx, claims)))
		})
	}
}

// OptionalAuth attaches claims when a valid session is present and otherwise
// serves the request anonymously.
func OptionalAuth(validator JWTValidator, logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token := tokenFromRequest(r)
			if token == "" {
				next.ServeHTTP(w, r)
				return
			}
			claims, err := validator.ValidateToken(token)
			if err != nil {
				logger.DebugContext(r.Context(), "ignoring invalid session", "error", err)
				next.ServeHTTP(w, r)
				return
			}
			next.ServeHTTP(w, r.WithContext(WithClaims(r.Context(), claims)))
		})
	}
}
