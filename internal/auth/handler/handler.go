package handler

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/url"
	"unicode/utf8"

	"github.com/go-chi/chi/v5"

	"whozin/internal/auth/gate"
	"whozin/internal/auth/models"
	"whozin/internal/platform/metrics"
	"whozin/internal/redirect"
	dErrors "whozin/pkg/domain-errors"
	"whozin/pkg/platform/httputil"
	authmw "whozin/pkg/platform/middleware/auth"
	"whozin/pkg/requestcontext"
)

const (
	// PostAuthRedirectCookie holds the destination across an OAuth round trip.
	PostAuthRedirectCookie = "whozin_post_auth_redirect"
	LoginPath              = "/login"

	maxLoggedInput = 256
	stashMaxAge    = 600
)

// Handler serves the redirect endpoints used around sign in and setup.
type Handler struct {
	logger        *slog.Logger
	policy        *redirect.Policy
	gate          *gate.Gate
	metrics       *metrics.Metrics
	jwtValidator  authmw.JWTValidator
	secureCookies bool
}

type Option func(*Handler)

func WithSecureCookies(secure bool) Option {
	return func(h *Handler) {
		h.secureCookies = secure
	}
}

// New creates a new auth redirect Handler.
func New(
	policy *redirect.Policy,
	jwtValidator authmw.JWTValidator,
	logger *slog.Logger,
	metrics *metrics.Metrics,
	opts ...Option) *Handler {
	if policy == nil {
		policy = redirect.DefaultPolicy()
	}
	h := &Handler{
		logger:       logger,
		policy:       policy,
		gate:         gate.New(policy),
		metrics:      metrics,
		jwtValidator: jwtValidator,
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Register registers the auth redirect routes with the chi router.
func (h *Handler) Register(r chi.Router) {
	r.Get("/auth/redirect", h.handleRedirect)
	r.Get("/auth/redirect-target", h.handleRedirectTarget)
	r.Post("/auth/post-auth-redirect", h.handleStashRedirect)
	r.Get("/auth/callback", h.handleCallback)
	r.With(authmw.OptionalAuth(h.jwtValidator, h.logger)).Get("/auth/gate", h.handleGate)
}

// handleRedirect sends the browser to the sanitized ?redirect= target.
func (h *Handler) handleRedirect(w http.ResponseWriter, r *http.Request) {
	target := h.sanitize(r.Context(), r.URL.Query().Get(redirect.QueryParam), "query")
	found(w, target)
}

func (h *Handler) handleRedirectTarget(w http.ResponseWriter, r *http.Request) {
	target := h.sanitize(r.Context(), r.URL.Query().Get(redirect.QueryParam), "query")
	httputil.WriteJSON(w, http.StatusOK, models.RedirectResponse{Redirect: target})
}

func (h *Handler) handleStashRedirect(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req models.RedirectRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, 4096)).Decode(&req); err != nil {
		h.logger.WarnContext(ctx, "invalid post auth redirect request",
			"request_id", requestcontext.RequestID(ctx),
			"error", err.Error(),
		)
		httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid request body"))
		return
	}

	target := h.sanitize(ctx, req.Redirect, "stash")
	http.SetCookie(w, &http.Cookie{
		Name:     PostAuthRedirectCookie,
		Value:    url.QueryEscape(target),
		Path:     "/",
		MaxAge:   stashMaxAge,
		HttpOnly: true,
		Secure:   h.secureCookies,
		SameSite: http.SameSiteLaxMode,
	})
	httputil.WriteJSON(w, http.StatusOK, models.RedirectResponse{Redirect: target})
}

// handleCallback finishes an OAuth round trip. Provider errors go back to
// login; otherwise the stashed destination is consumed.
func (h *Handler) handleCallback(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	q := r.URL.Query()
	for _, key := range []string{"error_description", "error", "message"} {
		if msg := q.Get(key); msg != "" {
			h.logger.WarnContext(ctx, "auth callback returned error",
				"request_id", requestcontext.RequestID(ctx),
				"param", key,
				"error", truncate(msg),
			)
			found(w, LoginPath)
			return
		}
	}

	stashed := ""
	if c, err := r.Cookie(PostAuthRedirectCookie); err == nil {
		if v, err := url.QueryUnescape(c.Value); err == nil {
			stashed = v
		}
	}
	target := h.sanitize(ctx, stashed, "stash")

	http.SetCookie(w, &http.Cookie{
		Name:     PostAuthRedirectCookie,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   h.secureCookies,
		SameSite: http.SameSiteLaxMode,
	})
	found(w, target)
}

func (h *Handler) handleGate(w http.ResponseWriter, r *http.Request) {
	path := r.URL.Query().Get("path")
	if path == "" {
		path = redirect.Root
	}

	profile := gate.Profile{}
	if claims := authmw.GetClaims(r.Context()); claims != nil {
		profile = gate.Profile{
			Authenticated:      true,
			DisplayName:        claims.DisplayName,
			OnboardingComplete: claims.OnboardingComplete,
		}
	}
	httputil.WriteJSON(w, http.StatusOK, models.GateResponse(h.gate.Check(profile, path)))
}

// sanitize applies the redirect policy and records rejected inputs.
func (h *Handler) sanitize(ctx context.Context, raw, source string) string {
	target, reason := h.policy.Evaluate(raw)
	if reason == redirect.ReasonAccepted || reason == redirect.ReasonEmpty {
		return target
	}
	h.metrics.IncrementRedirectRejected(string(reason))
	h.logger.WarnContext(ctx, "redirect_rejected",
		"event", "redirect_rejected",
		"reason", string(reason),
		"source", source,
		"input", truncate(raw),
		"request_id", requestcontext.RequestID(ctx),
	)
	return target
}

// found writes a 302 without http.Redirect's path cleaning, so the Location is
// exactly the sanitized target.
func found(w http.ResponseWriter, target string) {
	w.Header().Set("Location", target)
	w.WriteHeader(http.StatusFound)
}

func truncate(s string) string {
	if len(s) <= maxLoggedInput {
		return s
	}
	cut := maxLoggedInput
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	return s[:cut]
}
