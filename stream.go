package glaucoscan

import (
	"log/slog"
	"sync"

	"github.com/aretw0/glaucoscan/pkg/domain"
)

// subscriberBuffer bounds how far a slow subscriber may fall behind before
// diffs are dropped for it.
const subscriberBuffer = 16

// streamHub fans state diffs out to per-session subscribers.
type streamHub struct {
	mu          sync.RWMutex
	subscribers map[string]map[chan *domain.StateDiff]struct{}
	closed      bool
	logger      *slog.Logger
}

func newStreamHub(logger *slog.Logger) *streamHub {
	return &streamHub{
		subscribers: make(map[string]map[chan *domain.StateDiff]struct{}),
		logger:      logger,
	}
}

func (h *streamHub) subscribe(sessionID string) (<-chan *domain.StateDiff, func()) {
	h.mu.Lock()
	defer h.mu.Unlock()

	ch := make(chan *domain.StateDiff, subscriberBuffer)
	if h.closed {
		close(ch)
		return ch, func() {}
	}
	if _, ok := h.subscribers[sessionID]; !ok {
		h.subscribers[sessionID] = make(map[chan *domain.StateDiff]struct{})
	}
	h.subscribers[sessionID][ch] = struct{}{}

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			h.mu.Lock()
			defer h.mu.Unlock()
			subs, ok := h.subscribers[sessionID]
			if !ok {
				return
			}
			if _, ok := subs[ch]; !ok {
				return
			}
			delete(subs, ch)
			close(ch)
			if len(subs) == 0 {
				delete(h.subscribers, sessionID)
			}
		})
	}
}

func (h *streamHub) publish(sessionID string, diff *domain.StateDiff) {
	if diff == nil || diff.IsEmpty() {
		return
	}
	h.mu.RLock()
	defer h.mu.RUnlock()

	for ch := range h.subscribers[sessionID] {
		select {
		case ch <- diff:
		default:
			h.logger.Warn("Dropping diff for slow subscriber", "session_id", sessionID)
		}
	}
}

func (h *streamHub) closeAll() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for id, subs := range h.subscribers {
		for ch := range subs {
			close(ch)
		}
		delete(h.subscribers, id)
	}
	h.closed = true
}
