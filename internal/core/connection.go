package core

import (
	"errors"

	"github.com/vijikalavarkar/sanvi-technologies/internal/domain"
)

var (
	ErrBackpressure     = errors.New("backpressure")
	ErrConnectionClosed = errors.New("connection closed")
)

// ConnectionHandle is the transport endpoint of one admitted participant.
// TrySend must never block: it enqueues or fails immediately, so a stalled
// peer cannot hold a room's mutation boundary.
// Owned by the adapter; the adapter must Close() it.
type ConnectionHandle interface {
	TrySend(domain.Event) error
	Close()
}
