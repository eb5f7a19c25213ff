package core

import (
	"slices"
	"sync"

	"github.com/vijikalavarkar/sanvi-technologies/internal/domain"
)

// ReactionStore tracks emoji reactions on stored chat messages. A message
// entry exists only while at least one reaction is recorded on it, so the
// store never outgrows the set of actively reacted messages.
type ReactionStore struct {
	mu    sync.Mutex
	byMsg map[string]map[string][]domain.ParticipantID // message -> reaction -> ordered reactors
}

func NewReactionStore() *ReactionStore {
	return &ReactionStore{byMsg: make(map[string]map[string][]domain.ParticipantID)}
}

// Toggle adds the participant to the reaction's set when absent, removes it
// otherwise. Emptied reaction keys are dropped, and a message whose last
// reaction disappears is forgotten entirely. Toggling twice is a no-op.
// Returns the message's reactions after the change.
func (s *ReactionStore) Toggle(messageID, reaction string, user domain.ParticipantID) map[string][]domain.ParticipantID {
	s.mu.Lock()
	defer s.mu.Unlock()

	byReaction := s.byMsg[messageID]
	if byReaction == nil {
		byReaction = make(map[string][]domain.ParticipantID)
		s.byMsg[messageID] = byReaction
	}

	reactors := byReaction[reaction]
	if i := slices.Index(reactors, user); i >= 0 {
		reactors = slices.Delete(reactors, i, i+1)
		if len(reactors) == 0 {
			delete(byReaction, reaction)
		} else {
			byReaction[reaction] = reactors
		}
	} else {
		byReaction[reaction] = append(reactors, user)
	}

	if len(byReaction) == 0 {
		delete(s.byMsg, messageID)
	}
	return snapshotReactions(byReaction)
}

// Reactions returns the current reactions recorded for a message. An unknown
// message yields an empty map without registering anything.
func (s *ReactionStore) Reactions(messageID string) map[string][]domain.ParticipantID {
	s.mu.Lock()
	defer s.mu.Unlock()
	return snapshotReactions(s.byMsg[messageID])
}

func snapshotReactions(byReaction map[string][]domain.ParticipantID) map[string][]domain.ParticipantID {
	out := make(map[string][]domain.ParticipantID, len(byReaction))
	for r, users := range byReaction {
		out[r] = slices.Clone(users)
	}
	return out
}
