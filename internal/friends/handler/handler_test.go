package handler

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/suite"

	friendservice "whozin/internal/friends/service"
	"whozin/internal/friends/store"
	rlservice "whozin/internal/ratelimit/service"
	"whozin/internal/ratelimit/store/action"
	authmw "whozin/pkg/platform/middleware/auth"
	requesttime "whozin/pkg/platform/middleware/requesttime"
)

type stubValidator map[string]*authmw.JWTClaims

func (v stubValidator) ValidateToken(token string) (*authmw.JWTClaims, error) {
	if c, ok := v[token]; ok {
		return c, nil
	}
	return nil, errors.New("invalid token")
}

// =============================================================================
// Friends Handler Test Suite
// =============================================================================
// Justification: End-to-end over the real limiter and outbox with a virtual
// clock, asserting the 429 contract and that limited requests are not queued.

type HandlerSuite struct {
	suite.Suite
	router chi.Router
	outbox *store.InMemoryFriendRequestStore
	now    time.Time
}

func TestHandlerSuite(t *testing.T) {
	suite.Run(t, new(HandlerSuite))
}

func (s *HandlerSuite) SetupTest() {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	s.now = time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	s.outbox = store.New()

	limiter, err := rlservice.New(action.New(), rlservice.WithLogger(logger))
	s.Require().NoError(err)
	svc, err := friendservice.New(limiter, s.outbox, friendservice.WithLogger(logger))
	s.Require().NoError(err)

	validator := stubValidator{
		"t1": {UserID: "u1", DisplayName: "Ada", OnboardingComplete: true},
		"t2": {UserID: "u2", DisplayName: "Bob", OnboardingComplete: true},
	}
	s.router = chi.NewRouter()
	s.router.Use(requesttime.WithClock(func() time.Time { return s.now }))
	New(svc, validator, logger).Register(s.router)
}

func (s *HandlerSuite) send(token, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, "/friends/requests", strings.NewReader(body))
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)
	return rec
}

func (s *HandlerSuite) TestSendAccepted() {
	rec := s.send("t1", `{"username":"@Carol","source":"manual"}`)
	s.Require().Equal(http.StatusAccepted, rec.Code)

	var body map[string]any
	s.Require().NoError(json.Unmarshal(rec.Body.Bytes(), &body))
	s.Equal("pending", body["status"])
	s.Equal("carol", body["username"])
	s.NotEmpty(body["id"])
}

func (s *HandlerSuite) TestRepeatWithinWindowIs429() {
	s.Require().Equal(http.StatusAccepted, s.send("t1", `{"username":"carol"}`).Code)

	s.now = s.now.Add(1200 * time.Millisecond)
	rec := s.send("t1", `{"username":"carol"}`)
	s.Require().Equal(http.StatusTooManyRequests, rec.Code)
	s.Equal("4", rec.Header().Get("Retry-After"))
	s.JSONEq(`{"error":"rate_limit_exceeded","message":"Please wait 4 seconds before trying again.","retry_after":4}`, rec.Body.String())

	list, err := s.outbox.ListByUser(context.Background(), "u1")
	s.Require().NoError(err)
	s.Len(list, 1, "rejected request must not be queued")

	s.now = s.now.Add(3800 * time.Millisecond)
	s.Equal(http.StatusAccepted, s.send("t1", `{"username":"carol"}`).Code)
}

func (s *HandlerSuite) TestKeysAreScoped() {
	s.Require().Equal(http.StatusAccepted, s.send("t1", `{"username":"carol"}`).Code)
	s.Equal(http.StatusAccepted, s.send("t1", `{"username":"dave"}`).Code, "other target")
	s.Equal(http.StatusAccepted, s.send("t1", `{"username":"carol","source":"invite"}`).Code, "other source")
	s.Equal(http.StatusAccepted, s.send("t2", `{"username":"carol"}`).Code, "other user")
}

func (s *HandlerSuite) TestBadInput() {
	for _, body := range []string{`{`, `{"username":"x"}`, `{"username":"carol","source":"fax"}`, `{"username":"ca rol"}`} {
		rec := s.send("t1", body)
		s.Equal(http.StatusBadRequest, rec.Code, body)
	}
}

func (s *HandlerSuite) TestRequiresAuth() {
	s.Equal(http.StatusUnauthorized, s.send("", `{"username":"carol"}`).Code)
	s.Equal(http.StatusUnauthorized, s.send("nope", `{"username":"carol"}`).Code)
}

func (s *HandlerSuite) TestList() {
	s.Require().Equal(http.StatusAccepted, s.send("t1", `{"username":"carol"}`).Code)
	s.Require().Equal(http.StatusAccepted, s.send("t2", `{"username":"erin"}`).Code)

	req := httptest.NewRequest(http.MethodGet, "/friends/requests", nil)
	req.Header.Set("Authorization", "Bearer t1")
	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)
	s.Require().Equal(http.StatusOK, rec.Code)

	var body struct {
		Requests []struct {
			Username string `json:"username"`
			Status   string `json:"status"`
		} `json:"requests"`
	}
	s.Require().NoError(json.Unmarshal(rec.Body.Bytes(), &body))
	s.Require().Len(body.Requests, 1)
	s.Equal("carol", body.Requests[0].Username)
	s.Equal("pending", body.Requests[0].Status)
}
