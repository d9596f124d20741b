// Package progress fans ingestion progress out to stream subscribers.
package progress

import "sync"

// Frame is one progress update as sent over the admin stream.
type Frame struct {
	JobID           string   `json:"jobId"`
	BatchNumber     int      `json:"batchNumber"`
	CurrentBusiness string   `json:"currentBusiness"`
	TotalBusinesses int      `json:"totalBusinesses"`
	Processed       int      `json:"processed"`
	Status          string   `json:"status"`
	Logos           int      `json:"logos"`
	Photos          int      `json:"photos"`
	Errors          []string `json:"errors"`
}

// Broker keeps the latest frame and delivers new frames to subscribers.
// Subscribers that fall behind miss frames instead of blocking publishers.
type Broker struct {
	mu     sync.RWMutex
	subs   map[int]chan Frame
	next   int
	latest *Frame
	buffer int
}

// NewBroker creates a broker with the given per-subscriber buffer.
func NewBroker(buffer int) *Broker {
	if buffer <= 0 {
		buffer = 16
	}
	return &Broker{subs: make(map[int]chan Frame), buffer: buffer}
}

// Publish records f as the latest frame and offers it to every subscriber.
func (b *Broker) Publish(f Frame) {
	f.Errors = append([]string{}, f.Errors...)

	b.mu.Lock()
	defer b.mu.Unlock()

	b.latest = &f
	for _, ch := range b.subs {
		select {
		case ch <- f:
		default:
		}
	}
}

// Subscribe returns a channel of frames, primed with the latest frame, and a
// cancel func that must be called to release it.
func (b *Broker) Subscribe() (<-chan Frame, func()) {
	b.mu.Lock()
	defer b.mu.Unlock()

	id := b.next
	b.next++
	ch := make(chan Frame, b.buffer)
	if b.latest != nil {
		ch <- *b.latest
	}
	b.subs[id] = ch

	var once sync.Once
	cancel := func() {
		once.Do(func() {
			b.mu.Lock()
			defer b.mu.Unlock()
			delete(b.subs, id)
			close(ch)
		})
	}
	return ch, cancel
}

// Latest returns the most recent frame, if any.
func (b *Broker) Latest() (Frame, bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.latest == nil {
		return Frame{}, false
	}
	return *b.latest, true
}

// Subscribers returns the number of active subscribers.
func (b *Broker) Subscribers() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subs)
}
