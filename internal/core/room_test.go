package core

import (
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/vijikalavarkar/sanvi-technologies/internal/domain"
)

type fakeConn struct {
	mu     sync.Mutex
	events []domain.Event
	fail   bool
	closed bool
}

func (c *fakeConn) TrySend(ev domain.Event) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.fail || c.closed {
		return errors.New("send failed")
	}
	c.events = append(c.events, ev)
	return nil
}

func (c *fakeConn) SetFail(fail bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.fail = fail
}

func (c *fakeConn) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = true
}

func (c *fakeConn) Events() []domain.Event {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]domain.Event, len(c.events))
	copy(out, c.events)
	return out
}

func (c *fakeConn) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.events = nil
}

func (c *fakeConn) LastEvent(t *testing.T) domain.Event {
	t.Helper()
	evs := c.Events()
	require.NotEmpty(t, evs)
	return evs[len(evs)-1]
}

func TestRoom_LifecycleScenario(t *testing.T) {
	req := require.New(t)
	reg := NewRegistry()

	// Given an empty registry
	req.Equal(0, reg.Len())

	// When Alice joins room r1
	room := reg.GetOrCreate("r1")
	alice := &fakeConn{}
	_, err := room.Admit("A", "Alice", alice)
	req.NoError(err)

	// Then the registry holds r1 with one participant
	got, ok := reg.Get("r1")
	req.True(ok)
	req.Equal(1, got.ParticipantCount())

	// When Bob joins
	bob := &fakeConn{}
	snap, err := room.Admit("B", "Bob", bob)
	req.NoError(err)

	// Then Bob's snapshot lists Alice and Alice hears about Bob
	req.Contains(snap.Participants, domain.ParticipantID("A"))
	req.Contains(snap.MediaStates, domain.ParticipantID("A"))
	joined := alice.LastEvent(t)
	req.Equal(domain.EventUserJoined, joined.Type)
	req.Equal(domain.ParticipantID("B"), joined.UserID)

	// And Bob's own connection sees only the snapshot, never his own join
	bobEvs := bob.Events()
	req.Len(bobEvs, 1)
	req.Equal(domain.EventRoomState, bobEvs[0].Type)
	req.Contains(bobEvs[0].Data.Participants, domain.ParticipantID("A"))

	// When Alice disconnects
	room.Disconnect("A")

	// Then Bob hears user_left and the room survives
	left := bob.LastEvent(t)
	req.Equal(domain.EventUserLeft, left.Type)
	req.Equal(domain.ParticipantID("A"), left.UserID)
	_, ok = reg.Get("r1")
	req.True(ok)
	req.Equal(1, room.ParticipantCount())

	// When the last participant disconnects, the room is gone
	room.Disconnect("B")
	_, ok = reg.Get("r1")
	req.False(ok)
}

func TestRoom_DisconnectIsIdempotent(t *testing.T) {
	req := require.New(t)
	room := NewRoom("r1", nil)
	conn := &fakeConn{}
	_, err := room.Admit("A", "Alice", conn)
	req.NoError(err)

	room.Disconnect("A")
	room.Disconnect("A") // second call must be a no-op
	req.Equal(0, room.ParticipantCount())
}

func TestRoom_AdmitRejectsBadIdentity(t *testing.T) {
	req := require.New(t)
	room := NewRoom("r1", nil)

	_, err := room.Admit("", "Alice", &fakeConn{})
	req.ErrorIs(err, domain.ErrParticipantIDEmpty)

	_, err = room.Admit("A", "", &fakeConn{})
	req.ErrorIs(err, domain.ErrDisplayNameEmpty)
}

func TestRoom_ReconnectOverwrites(t *testing.T) {
	req := require.New(t)
	room := NewRoom("r1", nil)
	first := &fakeConn{}
	second := &fakeConn{}

	_, err := room.Admit("A", "Alice", first)
	req.NoError(err)
	_, err = room.Admit("A", "Alice", second)
	req.NoError(err)

	// last writer wins: one participant, old connection no longer reached
	req.Equal(1, room.ParticipantCount())
	first.Reset()
	second.Reset()
	room.Broadcast(domain.Event{Type: domain.EventChat, UserID: "A", Content: "hi"}, "")
	req.Empty(first.Events())
	req.Len(second.Events(), 1)
}

func TestRoom_BroadcastExcludesSender(t *testing.T) {
	req := require.New(t)
	room := NewRoom("r1", nil)
	conns := map[domain.ParticipantID]*fakeConn{}
	for _, id := range []domain.ParticipantID{"A", "B", "C"} {
		conns[id] = &fakeConn{}
		_, err := room.Admit(id, string(id), conns[id])
		req.NoError(err)
	}
	for _, c := range conns {
		c.Reset()
	}

	room.Broadcast(domain.Event{Type: domain.EventChat, UserID: "B", Content: "hi"}, "B")

	req.Empty(conns["B"].Events())
	req.Len(conns["A"].Events(), 1)
	req.Len(conns["C"].Events(), 1)
}

func TestRoom_MessageHistoryCap(t *testing.T) {
	req := require.New(t)
	room := NewRoom("r1", nil)
	conn := &fakeConn{}
	_, err := room.Admit("A", "Alice", conn)
	req.NoError(err)

	for i := 0; i < MessageHistory+50; i++ {
		room.Broadcast(domain.Event{
			Type:    domain.EventChat,
			UserID:  "A",
			Content: fmt.Sprintf("msg-%d", i),
		}, "")
	}

	snap, err := room.Admit("B", "Bob", &fakeConn{})
	req.NoError(err)
	req.Len(snap.Messages, MessageHistory)

	// exactly the most recent, in submission order
	req.Equal("msg-50", snap.Messages[0].Content)
	req.Equal(fmt.Sprintf("msg-%d", MessageHistory+49), snap.Messages[len(snap.Messages)-1].Content)
}

func TestRoom_MediaStatePartialMerge(t *testing.T) {
	req := require.New(t)
	room := NewRoom("r1", nil)
	_, err := room.Admit("A", "Alice", &fakeConn{})
	req.NoError(err)

	// defaults on admission
	ms, ok := room.MediaStateOf("A")
	req.True(ok)
	req.Equal(domain.MediaState{Video: true, Audio: true, ScreenShare: false}, ms)

	off := false
	room.Broadcast(domain.Event{
		Type:   domain.EventMediaState,
		UserID: "A",
		State:  &domain.MediaStatePatch{Video: &off},
	}, "")

	// only the provided field changed
	ms, _ = room.MediaStateOf("A")
	req.False(ms.Video)
	req.True(ms.Audio)
	req.False(ms.ScreenShare)
}

func TestRoom_PollCreateAndRevote(t *testing.T) {
	req := require.New(t)
	room := NewRoom("r1", nil)
	alice := &fakeConn{}
	_, err := room.Admit("A", "Alice", alice)
	req.NoError(err)

	room.Broadcast(domain.Event{
		Type:     domain.EventPoll,
		UserID:   "A",
		Question: "tea or coffee?",
		Options:  []string{"A", "B"},
	}, "")

	created := alice.LastEvent(t)
	req.Equal(domain.EventPoll, created.Type)
	req.NotEmpty(created.PollID)
	pollID := created.PollID

	idx0, idx1 := 0, 1
	room.Broadcast(domain.Event{Type: domain.EventVote, UserID: "X", PollID: pollID, OptionIndex: &idx0}, "")
	room.Broadcast(domain.Event{Type: domain.EventVote, UserID: "X", PollID: pollID, OptionIndex: &idx1}, "")

	poll, ok := room.PollSnapshot(pollID)
	req.True(ok)
	req.Equal([]int{0, 1}, poll.Votes)
	req.Equal(1, poll.Voters["X"])

	// vote events are rewritten into poll_update carrying the tally
	update := alice.LastEvent(t)
	req.Equal(domain.EventPollUpdate, update.Type)
	req.Equal(pollID, update.PollID)
	req.Equal([]int{0, 1}, update.Votes)

	// repeated vote for the same index leaves the tally untouched
	room.Broadcast(domain.Event{Type: domain.EventVote, UserID: "X", PollID: pollID, OptionIndex: &idx1}, "")
	poll, _ = room.PollSnapshot(pollID)
	req.Equal([]int{0, 1}, poll.Votes)
}

func TestRoom_VoteUnknownPollDroppedSilently(t *testing.T) {
	req := require.New(t)
	room := NewRoom("r1", nil)
	alice := &fakeConn{}
	_, err := room.Admit("A", "Alice", alice)
	req.NoError(err)
	alice.Reset()

	idx := 0
	room.Broadcast(domain.Event{Type: domain.EventVote, UserID: "A", PollID: "nope", OptionIndex: &idx}, "")
	req.Empty(alice.Events())
}

func TestRoom_ConcurrentVotesNoLostUpdates(t *testing.T) {
	req := require.New(t)
	room := NewRoom("r1", nil)
	creator := &fakeConn{}
	_, err := room.Admit("P0", "p0", creator)
	req.NoError(err)

	room.Broadcast(domain.Event{
		Type:     domain.EventPoll,
		UserID:   "P0",
		Question: "q",
		Options:  []string{"yes", "no"},
	}, "")
	pollID := creator.LastEvent(t).PollID

	const voters = 64
	var wg sync.WaitGroup
	for i := 0; i < voters; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			idx := 0
			room.Broadcast(domain.Event{
				Type:        domain.EventVote,
				UserID:      domain.ParticipantID(fmt.Sprintf("V%d", i)),
				PollID:      pollID,
				OptionIndex: &idx,
			}, "")
		}(i)
	}
	wg.Wait()

	poll, ok := room.PollSnapshot(pollID)
	req.True(ok)
	req.Equal(voters, poll.Votes[0])
	req.Len(poll.Voters, voters)
}

func TestRoom_RelayReachesOnlyTarget(t *testing.T) {
	req := require.New(t)
	room := NewRoom("r1", nil)
	conns := map[domain.ParticipantID]*fakeConn{}
	for _, id := range []domain.ParticipantID{"A", "B", "C"} {
		conns[id] = &fakeConn{}
		_, err := room.Admit(id, string(id), conns[id])
		req.NoError(err)
	}
	for _, c := range conns {
		c.Reset()
	}

	room.RelayTo("B", domain.Event{Type: domain.EventOffer, UserID: "A", TargetUserID: "B"})

	req.Len(conns["B"].Events(), 1)
	req.Equal(domain.EventOffer, conns["B"].Events()[0].Type)
	req.Empty(conns["A"].Events())
	req.Empty(conns["C"].Events())

	// missing target: dropped, nothing delivered, nothing breaks
	room.RelayTo("Z", domain.Event{Type: domain.EventAnswer, UserID: "A", TargetUserID: "Z"})
	req.Len(conns["B"].Events(), 1)
}

func TestRoom_DeadConnectionEvicted(t *testing.T) {
	req := require.New(t)
	reg := NewRegistry()
	room := reg.GetOrCreate("r1")
	alive := &fakeConn{}
	dead := &fakeConn{}
	_, err := room.Admit("A", "Alice", alive)
	req.NoError(err)
	_, err = room.Admit("B", "Bob", dead)
	req.NoError(err)
	alive.Reset()
	dead.SetFail(true)

	room.Broadcast(domain.Event{Type: domain.EventChat, UserID: "A", Content: "hi"}, "")

	// the dead peer is removed through the regular disconnect path
	req.Equal(1, room.ParticipantCount())
	types := []domain.EventType{}
	for _, ev := range alive.Events() {
		types = append(types, ev.Type)
	}
	req.Contains(types, domain.EventChat)
	req.Contains(types, domain.EventUserLeft)

	// a connection that cannot even take its snapshot is evicted right away
	_, err = room.Admit("C", "Carol", &fakeConn{fail: true})
	req.NoError(err)
	req.Equal(1, room.ParticipantCount())
}

func TestRoom_AdmissionSnapshotPrecedesFanout(t *testing.T) {
	req := require.New(t)
	room := NewRoom("r1", nil)
	_, err := room.Admit("A", "Alice", &fakeConn{})
	req.NoError(err)

	// a writer hammers the room while Bob is being admitted
	stop := make(chan struct{})
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		for i := 0; ; i++ {
			select {
			case <-stop:
				return
			default:
				room.Broadcast(domain.Event{
					Type:    domain.EventChat,
					UserID:  "A",
					Content: fmt.Sprintf("m-%d", i),
				}, "")
			}
		}
	}()

	bob := &fakeConn{}
	_, err = room.Admit("B", "Bob", bob)
	req.NoError(err)
	close(stop)
	wg.Wait()

	// the snapshot is Bob's first event, and nothing delivered after it
	// is older than what the snapshot already contains
	evs := bob.Events()
	req.NotEmpty(evs)
	req.Equal(domain.EventRoomState, evs[0].Type)
	inSnapshot := map[string]bool{}
	for _, m := range evs[0].Data.Messages {
		inSnapshot[m.Content] = true
	}
	for _, ev := range evs[1:] {
		if ev.Type == domain.EventChat {
			req.False(inSnapshot[ev.Content])
		}
	}
}

func TestRoom_TypingBroadcastsToEveryone(t *testing.T) {
	req := require.New(t)
	room := NewRoom("r1", nil)
	alice := &fakeConn{}
	bob := &fakeConn{}
	_, err := room.Admit("A", "Alice", alice)
	req.NoError(err)
	_, err = room.Admit("B", "Bob", bob)
	req.NoError(err)
	alice.Reset()
	bob.Reset()

	room.SetTyping("A", "Alice", true)

	// no exclusion: the sender hears its own typing echo
	req.Len(alice.Events(), 1)
	req.Len(bob.Events(), 1)
	req.Equal(domain.EventTyping, bob.Events()[0].Type)
	req.Equal(map[domain.ParticipantID]string{"A": "Alice"}, room.TypingNames())

	room.SetTyping("A", "Alice", false)
	req.Empty(room.TypingNames())
}

func TestRoom_SnapshotIsConsistentCopy(t *testing.T) {
	req := require.New(t)
	room := NewRoom("r1", nil)
	alice := &fakeConn{}
	_, err := room.Admit("A", "Alice", alice)
	req.NoError(err)
	room.Broadcast(domain.Event{
		Type:     domain.EventPoll,
		UserID:   "A",
		Question: "q",
		Options:  []string{"x", "y"},
	}, "")
	pollID := alice.LastEvent(t).PollID

	snap, err := room.Admit("B", "Bob", &fakeConn{})
	req.NoError(err)

	// mutating the snapshot must not leak into room state
	snap.Polls[pollID].Votes[0] = 99
	poll, _ := room.PollSnapshot(pollID)
	req.Equal(0, poll.Votes[0])
}
