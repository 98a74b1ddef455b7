package chatclient

import (
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
)

// TypingStopDelay is how long after the last keystroke typing=false is sent.
const TypingStopDelay = time.Second

// TypingNotifier turns keystrokes into typing indicator events. Every
// keystroke sends typing=true; typing=false follows once keystrokes pause for
// TypingStopDelay.
type TypingNotifier struct {
	clock clockwork.Clock
	delay time.Duration
	emit  func(typing bool)

	mu    sync.Mutex
	timer clockwork.Timer
	gen   uint64
}

func NewTypingNotifier(clock clockwork.Clock, emit func(typing bool)) *TypingNotifier {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &TypingNotifier{clock: clock, delay: TypingStopDelay, emit: emit}
}

func (n *TypingNotifier) Keystroke() {
	n.mu.Lock()
	n.gen++
	gen := n.gen
	if n.timer != nil {
		n.timer.Stop()
	}
	n.timer = n.clock.AfterFunc(n.delay, func() { n.fire(gen) })
	n.mu.Unlock()

	n.emit(true)
}

// Stop cancels a pending typing=false without sending it.
func (n *TypingNotifier) Stop() {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.gen++
	if n.timer != nil {
		n.timer.Stop()
		n.timer = nil
	}
}

func (n *TypingNotifier) fire(gen uint64) {
	n.mu.Lock()
	if gen != n.gen {
		n.mu.Unlock()
		return
	}
	n.timer = nil
	n.mu.Unlock()

	n.emit(false)
}
