package domain

import "time"

// RoomSnapshot is the consistent point-in-time view delivered once to a
// freshly admitted connection.
type RoomSnapshot struct {
	Participants map[ParticipantID]Participant `json:"participants"`
	MediaStates  map[ParticipantID]MediaState  `json:"media_states"`
	Messages     []Event                       `json:"messages"`
	Polls        map[string]*Poll              `json:"polls"`
}

// RoomInfo is a read-only view for APIs (no transport fields).
type RoomInfo struct {
	ID               RoomID    `json:"id"`
	ParticipantCount int       `json:"participant_count"`
	CreatedAt        time.Time `json:"created_at"`
}
