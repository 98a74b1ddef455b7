package chatclient

import (
	"sync"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type typingRecorder struct {
	mu     sync.Mutex
	clock  clockwork.Clock
	events []typingAt
}

type typingAt struct {
	typing bool
	at     time.Time
}

func (r *typingRecorder) emit(typing bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, typingAt{typing: typing, at: r.clock.Now()})
}

func (r *typingRecorder) stops() []typingAt {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []typingAt
	for _, e := range r.events {
		if !e.typing {
			out = append(out, e)
		}
	}
	return out
}

func (r *typingRecorder) starts() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, e := range r.events {
		if e.typing {
			n++
		}
	}
	return n
}

func TestTypingNotifierDebouncesStop(t *testing.T) {
	clock := clockwork.NewFakeClock()
	start := clock.Now()
	rec := &typingRecorder{clock: clock}
	notifier := NewTypingNotifier(clock, rec.emit)

	notifier.Keystroke()
	clock.Advance(200 * time.Millisecond)
	notifier.Keystroke()
	clock.Advance(200 * time.Millisecond)
	notifier.Keystroke()

	assert.Equal(t, 3, rec.starts())

	clock.Advance(999 * time.Millisecond)
	assert.Never(t, func() bool { return len(rec.stops()) > 0 }, 50*time.Millisecond, 5*time.Millisecond)

	clock.Advance(time.Millisecond)
	require.Eventually(t, func() bool { return len(rec.stops()) == 1 }, time.Second, 5*time.Millisecond)
	assert.Equal(t, 1400*time.Millisecond, rec.stops()[0].at.Sub(start))

	clock.Advance(5 * time.Second)
	assert.Never(t, func() bool { return len(rec.stops()) > 1 }, 50*time.Millisecond, 5*time.Millisecond)
}

func TestTypingNotifierStopCancelsPendingTimer(t *testing.T) {
	clock := clockwork.NewFakeClock()
	rec := &typingRecorder{clock: clock}
	notifier := NewTypingNotifier(clock, rec.emit)

	notifier.Keystroke()
	clock.Advance(500 * time.Millisecond)
	notifier.Stop()
	clock.Advance(2 * time.Second)

	assert.Never(t, func() bool { return len(rec.stops()) > 0 }, 50*time.Millisecond, 5*time.Millisecond)
	assert.Equal(t, 1, rec.starts())
}
