package core

import "github.com/vijikalavarkar/sanvi-technologies/internal/domain"

// MessageHistory is how many chat-class events a room retains,
// oldest evicted first.
const MessageHistory = 100

// messageRing is a fixed-capacity ordered retention of the most recent
// retained events. Not safe for concurrent use; callers hold the room lock.
type messageRing struct {
	capacity int
	buf      []domain.Event
}

func newMessageRing(capacity int) *messageRing {
	return &messageRing{capacity: capacity, buf: make([]domain.Event, 0, capacity+1)}
}

func (r *messageRing) Append(ev domain.Event) {
	r.buf = append(r.buf, ev)
	if len(r.buf) > r.capacity {
		r.buf = append(r.buf[:0], r.buf[1:]...)
	}
}

func (r *messageRing) Len() int { return len(r.buf) }

// Snapshot copies the retained events in submission order.
func (r *messageRing) Snapshot() []domain.Event {
	out := make([]domain.Event, len(r.buf))
	copy(out, r.buf)
	return out
}
