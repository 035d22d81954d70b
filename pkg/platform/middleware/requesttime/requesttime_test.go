package requesttime

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"whozin/pkg/requestcontext"
)

func TestWithClock(t *testing.T) {
	fixed := time.Date(2026, 10, 17, 9, 30, 0, 0, time.UTC)
	var seen time.Time
	h := WithClock(func() time.Time { return fixed })(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = requestcontext.Now(r.Context())
	}))

	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))

	assert.Equal(t, fixed, seen)
}
