package core

import (
	"maps"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"github.com/samber/lo"

	"github.com/vijikalavarkar/sanvi-technologies/internal/domain"
)

// Room is the unit of isolation for realtime state and fan-out. A single
// mutex guards participants, media states, message history, polls and the
// typing set; event side effects run inside it, delivery never does more
// than a non-blocking enqueue there.
type Room struct {
	id        domain.RoomID
	createdAt time.Time

	mu           sync.Mutex
	participants map[domain.ParticipantID]*domain.Participant
	conns        map[domain.ParticipantID]ConnectionHandle
	mediaStates  map[domain.ParticipantID]domain.MediaState
	messages     *messageRing
	polls        map[string]*domain.Poll
	typing       map[domain.ParticipantID]string

	// invoked after the last participant leaves, outside the room lock
	onEmpty func(domain.RoomID)
}

func NewRoom(id domain.RoomID, onEmpty func(domain.RoomID)) *Room {
	return &Room{
		id:           id,
		createdAt:    time.Now(),
		participants: make(map[domain.ParticipantID]*domain.Participant),
		conns:        make(map[domain.ParticipantID]ConnectionHandle),
		mediaStates:  make(map[domain.ParticipantID]domain.MediaState),
		messages:     newMessageRing(MessageHistory),
		polls:        make(map[string]*domain.Poll),
		typing:       make(map[domain.ParticipantID]string),
		onEmpty:      onEmpty,
	}
}

func (r *Room) ID() domain.RoomID    { return r.id }
func (r *Room) CreatedAt() time.Time { return r.createdAt }

func (r *Room) ParticipantCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.participants)
}

func (r *Room) Info() domain.RoomInfo {
	r.mu.Lock()
	defer r.mu.Unlock()
	return domain.RoomInfo{ID: r.id, ParticipantCount: len(r.participants), CreatedAt: r.createdAt}
}

// Admit registers a participant with its connection, resets its media flags
// to defaults and returns a consistent snapshot for the new connection. The
// snapshot is also enqueued as a room_state event on that connection while
// the lock is still held, so no concurrent broadcast can reach it first.
// Remaining participants learn about the join through a user_joined event.
// Reconnecting under an occupied id overwrites the prior entry; the
// superseded connection is not notified.
func (r *Room) Admit(id domain.ParticipantID, name string, conn ConnectionHandle) (domain.RoomSnapshot, error) {
	p, err := domain.NewParticipant(id, name)
	if err != nil {
		return domain.RoomSnapshot{}, err
	}

	r.mu.Lock()
	r.participants[id] = p
	r.conns[id] = conn
	r.mediaStates[id] = domain.DefaultMediaState()
	snap := r.snapshotLocked()
	var failed []domain.ParticipantID
	if err := conn.TrySend(domain.Event{
		Type:      domain.EventRoomState,
		Data:      &snap,
		Timestamp: time.Now(),
	}); err != nil {
		failed = append(failed, id)
	}
	joined := domain.Event{
		Type:      domain.EventUserJoined,
		User:      p,
		UserID:    id,
		UserName:  name,
		Timestamp: time.Now(),
	}
	failed = append(failed, r.enqueueLocked(joined, id)...)
	r.mu.Unlock()

	log.Info().Str("module", "core.room").Str("room", string(r.id)).Str("user", string(id)).Msg("participant admitted")
	r.evict(failed)
	return snap, nil
}

// Disconnect removes the participant, tells the remaining ones and, once
// the room is empty, signals the registry. Calling it again for an already
// removed participant is a no-op.
func (r *Room) Disconnect(id domain.ParticipantID) {
	r.mu.Lock()
	p, ok := r.participants[id]
	if !ok {
		r.mu.Unlock()
		return
	}
	delete(r.participants, id)
	delete(r.conns, id)
	delete(r.mediaStates, id)
	delete(r.typing, id)
	left := domain.Event{
		Type:      domain.EventUserLeft,
		UserID:    id,
		UserName:  p.Name,
		Timestamp: time.Now(),
	}
	failed := r.enqueueLocked(left, id)
	empty := len(r.participants) == 0
	r.mu.Unlock()

	log.Info().Str("module", "core.room").Str("room", string(r.id)).Str("user", string(id)).Msg("participant removed")
	r.evict(failed)
	if empty && r.onEmpty != nil {
		r.onEmpty(r.id)
	}
}

// Broadcast applies the event's side effects under the room boundary, then
// fans it out to every connection except the excluded one. A failed enqueue
// on one connection evicts that peer and never surfaces to the caller.
// Pass an empty exclude id to reach everyone.
func (r *Room) Broadcast(ev domain.Event, exclude domain.ParticipantID) {
	r.mu.Lock()
	ev.Timestamp = time.Now()
	ev, ok := r.applyLocked(ev)
	if !ok {
		r.mu.Unlock()
		return
	}
	failed := r.enqueueLocked(ev, exclude)
	r.mu.Unlock()

	r.evict(failed)
}

// RelayTo delivers a signaling event to exactly one participant. A missing
// target is a race inherent to realtime sessions, not an error: the event
// is dropped. Relayed events are never retained.
func (r *Room) RelayTo(target domain.ParticipantID, ev domain.Event) {
	r.mu.Lock()
	conn, ok := r.conns[target]
	r.mu.Unlock()
	if !ok {
		log.Debug().Str("module", "core.room").Str("room", string(r.id)).Str("target", string(target)).Msg("relay target not connected")
		return
	}
	ev.Timestamp = time.Now()
	if err := conn.TrySend(ev); err != nil {
		log.Debug().Err(err).Str("module", "core.room").Str("room", string(r.id)).Str("target", string(target)).Msg("relay send failed")
		r.Disconnect(target)
	}
}

// SetTyping stores or clears the participant in the typing set and tells
// the whole room, sender included; filtering the echo is a UI concern.
func (r *Room) SetTyping(id domain.ParticipantID, name string, isTyping bool) {
	r.mu.Lock()
	if isTyping {
		r.typing[id] = name
	} else {
		delete(r.typing, id)
	}
	ev := domain.Event{
		Type:      domain.EventTyping,
		UserID:    id,
		UserName:  name,
		IsTyping:  &isTyping,
		Timestamp: time.Now(),
	}
	failed := r.enqueueLocked(ev, "")
	r.mu.Unlock()

	r.evict(failed)
}

// TypingNames returns who is currently marked as typing.
func (r *Room) TypingNames() map[domain.ParticipantID]string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return maps.Clone(r.typing)
}

// MediaStateOf reports the current media flags of a participant.
func (r *Room) MediaStateOf(id domain.ParticipantID) (domain.MediaState, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	ms, ok := r.mediaStates[id]
	return ms, ok
}

// PollSnapshot returns a copy of one poll's current state.
func (r *Room) PollSnapshot(pollID string) (*domain.Poll, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.polls[pollID]
	if !ok {
		return nil, false
	}
	return p.Clone(), true
}

// applyLocked runs the per-variant side effects before fan-out. The second
// return is false when the event must be dropped without delivery.
func (r *Room) applyLocked(ev domain.Event) (domain.Event, bool) {
	switch ev.Type {
	case domain.EventChat, domain.EventSystem, domain.EventFile:
		if ev.ID == "" {
			ev.ID = uuid.NewString()
		}
		r.messages.Append(ev)

	case domain.EventMediaState:
		ms, ok := r.mediaStates[ev.UserID]
		if !ok || ev.State == nil {
			return ev, false
		}
		r.mediaStates[ev.UserID] = ms.Apply(*ev.State)

	case domain.EventPoll:
		p := domain.NewPoll(ev.Question, ev.Options)
		r.polls[p.ID] = p
		ev.PollID = p.ID

	case domain.EventVote:
		p, ok := r.polls[ev.PollID]
		if !ok || ev.OptionIndex == nil {
			return ev, false
		}
		if err := p.Record(ev.UserID, *ev.OptionIndex); err != nil {
			return ev, false
		}
		tally := p.Clone()
		ev = domain.Event{
			Type:      domain.EventPollUpdate,
			PollID:    p.ID,
			Votes:     tally.Votes,
			Timestamp: ev.Timestamp,
		}
	}
	return ev, true
}

// enqueueLocked hands the event to every connection but the excluded one.
// Enqueue order under the lock is what makes successive broadcasts FIFO;
// actual socket writes happen on each connection's own pump.
func (r *Room) enqueueLocked(ev domain.Event, exclude domain.ParticipantID) []domain.ParticipantID {
	var failed []domain.ParticipantID
	for id, conn := range r.conns {
		if id == exclude {
			continue
		}
		if err := conn.TrySend(ev); err != nil {
			failed = append(failed, id)
		}
	}
	if len(failed) > 0 {
		log.Debug().Str("module", "core.room").Str("room", string(r.id)).Int("failed", len(failed)).Msg("fanout enqueue failures")
	}
	return failed
}

// evict runs dead peers through the same path as an explicit disconnect.
func (r *Room) evict(ids []domain.ParticipantID) {
	for _, id := range ids {
		r.Disconnect(id)
	}
}

func (r *Room) snapshotLocked() domain.RoomSnapshot {
	return domain.RoomSnapshot{
		Participants: lo.MapValues(r.participants, func(p *domain.Participant, _ domain.ParticipantID) domain.Participant {
			return *p
		}),
		MediaStates: maps.Clone(r.mediaStates),
		Messages:    r.messages.Snapshot(),
		Polls: lo.MapValues(r.polls, func(p *domain.Poll, _ string) *domain.Poll {
			return p.Clone()
		}),
	}
}
