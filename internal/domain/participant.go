// Package domain contains entities without logic, just meta-data
package domain

import (
	"time"
)

const MaxDisplayNameLen = 64

type (
	RoomID        string
	ParticipantID string
)

// Participant is one admitted identity inside a room. Owned exclusively
// by the room it belongs to; created on admission, dropped on disconnect.
type Participant struct {
	ID       ParticipantID `json:"id"`
	Name     string        `json:"name"`
	JoinedAt time.Time     `json:"joined_at"`
}

// NewParticipant avoids raw literals in adapters and keeps construction obvious.
func NewParticipant(id ParticipantID, name string) (*Participant, error) {
	if id == "" {
		return nil, ErrParticipantIDEmpty
	}
	if name == "" {
		return nil, ErrDisplayNameEmpty
	}
	if len(name) > MaxDisplayNameLen {
		return nil, ErrDisplayNameTooLong
	}
	return &Participant{ID: id, Name: name, JoinedAt: time.Now()}, nil
}

// MediaState holds the per-participant media flags. Mutated only through
// a media_state event from its owning participant.
type MediaState struct {
	Video       bool `json:"video"`
	Audio       bool `json:"audio"`
	ScreenShare bool `json:"screen_share"`
}

func DefaultMediaState() MediaState {
	return MediaState{Video: true, Audio: true, ScreenShare: false}
}

// MediaStatePatch is a partial media_state update; nil fields stay unchanged.
type MediaStatePatch struct {
	Video       *bool `json:"video,omitempty"`
	Audio       *bool `json:"audio,omitempty"`
	ScreenShare *bool `json:"screen_share,omitempty"`
}

func (s MediaState) Apply(p MediaStatePatch) MediaState {
	if p.Video != nil {
		s.Video = *p.Video
	}
	if p.Audio != nil {
		s.Audio = *p.Audio
	}
	if p.ScreenShare != nil {
		s.ScreenShare = *p.ScreenShare
	}
	return s
}
