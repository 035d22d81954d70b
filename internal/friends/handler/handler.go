package handler

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"whozin/internal/friends/models"
	rlmiddleware "whozin/internal/ratelimit/middleware"
	dErrors "whozin/pkg/domain-errors"
	"whozin/pkg/platform/httputil"
	authmw "whozin/pkg/platform/middleware/auth"
	"whozin/pkg/requestcontext"
)

// Service defines the interface for friend request operations.
type Service interface {
	Send(ctx context.Context, userID string, req *models.CreateFriendRequest) (*models.FriendRequest, error)
	List(ctx context.Context, userID string) ([]*models.FriendRequest, error)
}

// Handler handles friend request endpoints.
type Handler struct {
	logger       *slog.Logger
	friends      Service
	jwtValidator authmw.JWTValidator
}

// New creates a new friends Handler.
func New(friends Service, jwtValidator authmw.JWTValidator, logger *slog.Logger) *Handler {
	return &Handler{
		logger:       logger,
		friends:      friends,
		jwtValidator: jwtValidator,
	}
}

// Register registers the friend request routes with the chi router.
func (h *Handler) Register(r chi.Router) {
	r.Group(func(r chi.Router) {
		r.Use(authmw.RequireAuth(h.jwtValidator, h.logger))
		r.Post("/friends/requests", h.handleSend)
		r.Get("/friends/requests", h.handleList)
	})
}

type listResponse struct {
	Requests []*models.FriendRequest `json:"requests"`
}

type sendResponse struct {
	ID       string `json:"id"`
	Status   string `json:"status"`
	Username string `json:"username"`
}

func (h *Handler) handleSend(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)
	userID := authmw.GetUserID(ctx)

	var req models.CreateFriendRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, 4096)).Decode(&req); err != nil {
		h.logger.WarnContext(ctx, "invalid friend request body",
			"request_id", requestID,
			"error", err.Error(),
		)
		httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid request body"))
		return
	}

	fr, err := h.friends.Send(ctx, userID, &req)
	if err != nil {
		var limited *models.RateLimitedError
		if errors.As(err, &limited) {
			rlmiddleware.WriteRateLimitExceeded(w, limited.Decision)
			return
		}
		if dErrors.CodeOf(err) == dErrors.CodeInternal {
			h.logger.ErrorContext(ctx, "failed to send friend request",
				"request_id", requestID,
				"error", err.Error(),
			)
		}
		httputil.WriteError(w, err)
		return
	}

	httputil.WriteJSON(w, http.StatusAccepted, sendResponse{
		ID:       fr.ID,
		Status:   fr.Status,
		Username: fr.Username,
	})
}

func (h *Handler) handleList(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	list, err := h.friends.List(ctx, authmw.GetUserID(ctx))
	if err != nil {
		h.logger.ErrorContext(ctx, "failed to list friend requests",
			"request_id", requestcontext.RequestID(ctx),
			"error", err.Error(),
		)
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, listResponse{Requests: list})
}
