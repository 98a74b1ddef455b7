package chatstore

import (
	"context"
	"sync"
)

const watchBuffer = 16

// MemoryBackend is an in-process key-value map shared by any number of
// MemoryKV handles. A write through one handle is announced to the watchers
// of every other handle, never to its own.
type MemoryBackend struct {
	mu       sync.Mutex
	data     map[string]string
	watchers map[*memoryWatch]struct{}
}

type memoryWatch struct {
	owner *MemoryKV
	ch    chan string
}

func NewMemoryBackend() *MemoryBackend {
	return &MemoryBackend{
		data:     make(map[string]string),
		watchers: make(map[*memoryWatch]struct{}),
	}
}

// Handle returns a new writer on the shared data.
func (b *MemoryBackend) Handle() *MemoryKV {
	return &MemoryKV{backend: b}
}

// MemoryKV is one writer on a MemoryBackend.
type MemoryKV struct {
	backend *MemoryBackend
}

// NewMemoryKV returns a handle on a private backend.
func NewMemoryKV() *MemoryKV {
	return NewMemoryBackend().Handle()
}

func (h *MemoryKV) Get(_ context.Context, key string) (string, bool, error) {
	h.backend.mu.Lock()
	defer h.backend.mu.Unlock()
	value, ok := h.backend.data[key]
	return value, ok, nil
}

func (h *MemoryKV) Set(_ context.Context, key, value string) error {
	h.backend.mu.Lock()
	defer h.backend.mu.Unlock()

	h.backend.data[key] = value
	for watch := range h.backend.watchers {
		if watch.owner == h {
			continue
		}
		select {
		case watch.ch <- key:
		default:
			// a pending notification already forces a full refresh
		}
	}
	return nil
}

func (h *MemoryKV) Watch(ctx context.Context) (<-chan string, error) {
	watch := &memoryWatch{owner: h, ch: make(chan string, watchBuffer)}

	h.backend.mu.Lock()
	h.backend.watchers[watch] = struct{}{}
	h.backend.mu.Unlock()

	go func() {
		<-ctx.Done()
		h.backend.mu.Lock()
		delete(h.backend.watchers, watch)
		close(watch.ch)
		h.backend.mu.Unlock()
	}()

	return watch.ch, nil
}
