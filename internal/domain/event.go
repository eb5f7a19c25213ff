package domain

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/pion/webrtc/v4"
)

type EventType string

const (
	EventChat         EventType = "chat"
	EventSystem       EventType = "system"
	EventFile         EventType = "file"
	EventMediaState   EventType = "media_state"
	EventPoll         EventType = "poll"
	EventVote         EventType = "vote"
	EventPollUpdate   EventType = "poll_update"
	EventUserJoined   EventType = "user_joined"
	EventUserLeft     EventType = "user_left"
	EventTyping       EventType = "typing"
	EventOffer        EventType = "offer"
	EventAnswer       EventType = "answer"
	EventICECandidate EventType = "ice_candidate"
	EventRoomState    EventType = "room_state"
	EventError        EventType = "error"
)

// FileData is the metadata attached to a file event once the blob has
// been handed to the storage collaborator.
type FileData struct {
	Filename    string `json:"filename"`
	ContentType string `json:"content_type"`
	Size        int64  `json:"size"`
}

// Event is the single tagged variant flowing through rooms: decoded once at
// the transport boundary, stamped with a timestamp at broadcast time, and
// retained in the room history for the chat-class variants only.
type Event struct {
	Type      EventType     `json:"type"`
	ID        string        `json:"id,omitempty"`
	UserID    ParticipantID `json:"user_id,omitempty"`
	UserName  string        `json:"user_name,omitempty"`
	Timestamp time.Time     `json:"timestamp,omitempty"`

	// chat / system / file
	Content    string    `json:"content,omitempty"`
	ReplyTo    string    `json:"reply_to,omitempty"`
	IsRichText bool      `json:"is_rich_text,omitempty"`
	File       *FileData `json:"file_data,omitempty"`

	// file, inbound only: base64 payload consumed by the adapter before fan-out
	FileContent string `json:"file_content,omitempty"`
	Filename    string `json:"filename,omitempty"`
	ContentType string `json:"content_type,omitempty"`

	// user_joined
	User *Participant `json:"user,omitempty"`

	// media_state
	State *MediaStatePatch `json:"state,omitempty"`

	// poll / vote / poll_update
	PollID      string   `json:"poll_id,omitempty"`
	Question    string   `json:"question,omitempty"`
	Options     []string `json:"options,omitempty"`
	OptionIndex *int     `json:"option_index,omitempty"`
	Votes       []int    `json:"votes,omitempty"`

	// typing
	IsTyping *bool `json:"is_typing,omitempty"`

	// signaling
	TargetUserID ParticipantID              `json:"target_user_id,omitempty"`
	SDP          *webrtc.SessionDescription `json:"sdp,omitempty"`
	Candidate    *webrtc.ICECandidateInit   `json:"candidate,omitempty"`

	// room_state snapshot delivered once, on admission
	Data *RoomSnapshot `json:"data,omitempty"`

	// error
	Error string `json:"error,omitempty"`
}

var validate = validator.New()

// DecodeEvent parses one inbound frame into a checked Event. Anything that
// fails here is a client bug, not a race: the caller answers with an error
// event to the sender only.
func DecodeEvent(data []byte) (Event, error) {
	var ev Event
	if err := json.Unmarshal(data, &ev); err != nil {
		return Event{}, fmt.Errorf("decode event: %w", err)
	}
	if err := ev.validateInbound(); err != nil {
		return Event{}, err
	}
	return ev, nil
}

func (e *Event) validateInbound() error {
	switch e.Type {
	case EventChat, EventSystem:
		return validate.Var(e.Content, "required")
	case EventFile:
		if err := validate.Var(e.Filename, "required"); err != nil {
			return err
		}
		return validate.Var(e.FileContent, "required,base64")
	case EventMediaState:
		if e.State == nil {
			return fmt.Errorf("media_state: %w", errMissingField("state"))
		}
		return nil
	case EventPoll:
		if err := validate.Var(e.Question, "required"); err != nil {
			return err
		}
		return validate.Var(e.Options, "required,min=2,dive,required")
	case EventVote:
		if err := validate.Var(e.PollID, "required"); err != nil {
			return err
		}
		if e.OptionIndex == nil || *e.OptionIndex < 0 {
			return fmt.Errorf("vote: %w", errMissingField("option_index"))
		}
		return nil
	case EventTyping:
		if e.IsTyping == nil {
			return fmt.Errorf("typing: %w", errMissingField("is_typing"))
		}
		return nil
	case EventOffer, EventAnswer:
		if e.SDP == nil || e.SDP.SDP == "" {
			return fmt.Errorf("%s: %w", e.Type, errMissingField("sdp"))
		}
		return validate.Var(string(e.TargetUserID), "required")
	case EventICECandidate:
		if e.Candidate == nil {
			return fmt.Errorf("ice_candidate: %w", errMissingField("candidate"))
		}
		return validate.Var(string(e.TargetUserID), "required")
	default:
		return fmt.Errorf("%q: %w", e.Type, ErrUnknownEventType)
	}
}

func errMissingField(name string) error {
	return fmt.Errorf("missing required field %q", name)
}

// Retained reports whether the variant is kept in the room history.
// Everything else is transient.
func (e Event) Retained() bool {
	switch e.Type {
	case EventChat, EventSystem, EventFile:
		return true
	}
	return false
}

// ErrorEvent builds the reply sent back to an originating connection
// when its frame could not be processed.
func ErrorEvent(err error) Event {
	return Event{Type: EventError, Error: err.Error(), Timestamp: time.Now()}
}
