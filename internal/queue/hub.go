package queue

import (
	"sync"
	"time"
)

// Event is a job status change.
type Event struct {
	JobID       string    `json:"job_id"`
	RequestName string    `json:"request_name"`
	Status      string    `json:"status"`
	Error       string    `json:"error,omitempty"`
	LocalPath   string    `json:"local_path,omitempty"`
	GDriveURL   string    `json:"gdrive_url,omitempty"`
	Time        time.Time `json:"time"`
}

// StatusHub fans job events out to subscribers. Publishing never blocks: a
// subscriber whose buffer is full misses the event.
type StatusHub struct {
	mu     sync.RWMutex
	subs   map[int]chan Event
	next   int
	buffer int
}

// NewStatusHub creates a hub giving each subscriber a buffer of the given size.
func NewStatusHub(buffer int) *StatusHub {
	if buffer <= 0 {
		buffer = 16
	}
	return &StatusHub{subs: make(map[int]chan Event), buffer: buffer}
}

// Subscribe registers a subscriber. Call the returned function to unsubscribe;
// it closes the channel.
func (h *StatusHub) Subscribe() (<-chan Event, func()) {
	h.mu.Lock()
	defer h.mu.Unlock()

	id := h.next
	h.next++
	ch := make(chan Event, h.buffer)
	h.subs[id] = ch

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			h.mu.Lock()
			defer h.mu.Unlock()
			delete(h.subs, id)
			close(ch)
		})
	}
}

// Publish delivers ev to every subscriber with room for it.
func (h *StatusHub) Publish(ev Event) {
	if ev.Time.IsZero() {
		ev.Time = time.Now()
	}
	h.mu.RLock()
	defer h.mu.RUnlock()
	for _, ch := range h.subs {
		select {
		case ch <- ev:
		default:
		}
	}
}

// Subscribers returns the number of active subscribers.
func (h *StatusHub) Subscribers() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subs)
}
