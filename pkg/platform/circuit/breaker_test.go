package circuit

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// step records one primary outcome ('F' failure, 'S' success) and the breaker
// state expected afterwards.
type step struct {
	outcome  byte
	wantOpen bool
}

func replay(t *testing.T, b *Breaker, steps []step) {
	t.Helper()
	for i, st := range steps {
		switch st.outcome {
		case 'F':
			useFallback, _ := b.RecordFailure()
			assert.Equal(t, st.wantOpen, useFallback, "step %d fallback", i)
		case 'S':
			usePrimary, _ := b.RecordSuccess()
			assert.Equal(t, !st.wantOpen, usePrimary, "step %d primary", i)
		default:
			require.FailNow(t, "unknown outcome", "step %d: %q", i, st.outcome)
		}
		assert.Equal(t, st.wantOpen, b.IsOpen(), "step %d state", i)
	}
}

func TestBreaker_Sequences(t *testing.T) {
	tests := []struct {
		name  string
		opts  []Option
		steps []step
	}{
		{
			name:  "opens on the third consecutive failure",
			opts:  []Option{WithFailureThreshold(3)},
			steps: []step{{'F', false}, {'F', false}, {'F', true}},
		},
		{
			name: "a success between failures restarts the count",
			opts: []Option{WithFailureThreshold(3)},
			steps: []step{
				{'F', false}, {'F', false}, {'S', false},
				{'F', false}, {'F', false}, {'F', true},
			},
		},
		{
			name:  "closes after two successes while open",
			opts:  []Option{WithFailureThreshold(1), WithSuccessThreshold(2)},
			steps: []step{{'F', true}, {'S', true}, {'S', false}},
		},
		{
			name: "a failure while recovering restarts the success count",
			opts: []Option{WithFailureThreshold(1), WithSuccessThreshold(3)},
			steps: []step{
				{'F', true}, {'S', true}, {'S', true}, {'F', true},
				{'S', true}, {'S', true}, {'S', false},
			},
		},
		{
			name: "defaults are five failures and three successes",
			steps: []step{
				{'F', false}, {'F', false}, {'F', false}, {'F', false}, {'F', true},
				{'S', true}, {'S', true}, {'S', false},
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			replay(t, New("redis-action-store", tt.opts...), tt.steps)
		})
	}
}

func TestBreaker_StateChangesAreReportedOnce(t *testing.T) {
	b := New("redis-action-store", WithFailureThreshold(2), WithSuccessThreshold(1))

	_, change := b.RecordFailure()
	assert.Equal(t, StateChange{}, change)
	_, change = b.RecordFailure()
	assert.Equal(t, StateChange{Opened: true}, change)
	_, change = b.RecordFailure()
	assert.Equal(t, StateChange{}, change, "already open")

	_, change = b.RecordSuccess()
	assert.Equal(t, StateChange{Closed: true}, change)
	_, change = b.RecordSuccess()
	assert.Equal(t, StateChange{}, change, "already closed")
}

func TestBreaker_NameStateAndReset(t *testing.T) {
	b := New("postgres-action-store", WithFailureThreshold(1))
	assert.Equal(t, "postgres-action-store", b.Name())
	assert.Equal(t, "closed", b.State().String())

	b.RecordFailure()
	assert.Equal(t, StateOpen, b.State())
	assert.Equal(t, "open", b.State().String())

	b.Reset()
	assert.Equal(t, StateClosed, b.State())
	// Counters are cleared too: one failure reopens, not zero.
	useFallback, change := b.RecordFailure()
	assert.True(t, useFallback)
	assert.True(t, change.Opened)
}

func TestBreaker_NonPositiveThresholdsKeepDefaults(t *testing.T) {
	b := New("store", WithFailureThreshold(0), WithSuccessThreshold(-1))
	assert.Equal(t, defaultFailureThreshold, b.failureThreshold)
	assert.Equal(t, defaultSuccessThreshold, b.successThreshold)
}

func TestBreaker_ConcurrentFailuresOpenOnce(t *testing.T) {
	b := New("store", WithFailureThreshold(10))
	var wg sync.WaitGroup
	var mu sync.Mutex
	opened := 0
	for range 100 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, change := b.RecordFailure(); change.Opened {
				mu.Lock()
				opened++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()
	assert.Equal(t, 1, opened)
	assert.True(t, b.IsOpen())
}
