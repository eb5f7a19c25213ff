package domain

import "errors"

var (
	ErrParticipantIDEmpty = errors.New("participant id empty")
	ErrDisplayNameEmpty   = errors.New("display name empty")
	ErrDisplayNameTooLong = errors.New("display name too long")

	ErrRoomNotFound = errors.New("room not found")
	ErrPollNotFound = errors.New("poll not found")

	ErrUnknownEventType = errors.New("unknown event type")
	ErrOptionOutOfRange = errors.New("poll option out of range")
)
