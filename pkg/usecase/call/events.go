package call

import (
	"sync"

	"github.com/alokranjan04/admin-voice-agent/pkg/model"
)

const (
	statusBuffer = 8
	volumeBuffer = 16
	logBuffer    = 128
)

// Subscription receives host events until Unsubscribe is called. Sends
// never block: a subscriber that falls behind misses events.
type Subscription struct {
	Status <-chan model.SessionState
	Volume <-chan float64
	Log    <-chan model.LogEntry

	hub *eventHub
	sub *subscriber
}

// Unsubscribe stops delivery and closes the channels. It is safe to call twice.
func (x *Subscription) Unsubscribe() {
	x.hub.remove(x.sub)
}

type subscriber struct {
	status chan model.SessionState
	volume chan float64
	log    chan model.LogEntry
}

type eventHub struct {
	mu   sync.RWMutex
	subs map[*subscriber]struct{}
}

func newEventHub() *eventHub {
	return &eventHub{subs: make(map[*subscriber]struct{})}
}

func (h *eventHub) subscribe() *Subscription {
	s := &subscriber{
		status: make(chan model.SessionState, statusBuffer),
		volume: make(chan float64, volumeBuffer),
		log:    make(chan model.LogEntry, logBuffer),
	}

	h.mu.Lock()
	h.subs[s] = struct{}{}
	h.mu.Unlock()

	return &Subscription{Status: s.status, Volume: s.volume, Log: s.log, hub: h, sub: s}
}

func (h *eventHub) remove(s *subscriber) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.subs[s]; !ok {
		return
	}
	delete(h.subs, s)
	close(s.status)
	close(s.volume)
	close(s.log)
}

func (h *eventHub) status(state model.SessionState) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for s := range h.subs {
		select {
		case s.status <- state:
		default:
		}
	}
}

func (h *eventHub) volume(v float64) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for s := range h.subs {
		select {
		case s.volume <- v:
		default:
		}
	}
}

func (h *eventHub) log(entry model.LogEntry) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for s := range h.subs {
		select {
		case s.log <- entry:
		default:
		}
	}
}
