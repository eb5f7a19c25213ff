package core

import (
	"sync"

	"github.com/rs/zerolog/log"
	"github.com/samber/lo"

	"github.com/vijikalavarkar/sanvi-technologies/internal/domain"
)

// Registry is the process-wide map of live rooms. It owns its own lock,
// independent of any room's boundary: room creation and teardown race
// against admits and disconnects in other rooms.
type Registry struct {
	mu    sync.RWMutex
	rooms map[domain.RoomID]*Room
}

func NewRegistry() *Registry {
	return &Registry{rooms: make(map[domain.RoomID]*Room)}
}

// GetOrCreate returns the room registered under id, constructing and
// registering an empty one when absent. At most one Room object exists
// per id at any instant.
func (g *Registry) GetOrCreate(id domain.RoomID) *Room {
	g.mu.RLock()
	room, ok := g.rooms[id]
	g.mu.RUnlock()
	if ok {
		return room
	}

	g.mu.Lock()
	defer g.mu.Unlock()
	if room, ok = g.rooms[id]; ok {
		return room
	}
	room = NewRoom(id, g.Remove)
	g.rooms[id] = room
	log.Info().Str("module", "core.registry").Str("room", string(id)).Msg("room created")
	return room
}

func (g *Registry) Get(id domain.RoomID) (*Room, bool) {
	g.mu.RLock()
	defer g.mu.RUnlock()
	room, ok := g.rooms[id]
	return room, ok
}

// Remove drops the room when it is still empty; a participant admitted
// between the last disconnect and this call keeps the room alive.
// No-op for unknown ids.
func (g *Registry) Remove(id domain.RoomID) {
	g.mu.Lock()
	defer g.mu.Unlock()
	room, ok := g.rooms[id]
	if !ok {
		return
	}
	if room.ParticipantCount() > 0 {
		return
	}
	delete(g.rooms, id)
	log.Info().Str("module", "core.registry").Str("room", string(id)).Msg("room removed")
}

func (g *Registry) List() []domain.RoomInfo {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return lo.MapToSlice(g.rooms, func(_ domain.RoomID, r *Room) domain.RoomInfo {
		return r.Info()
	})
}

func (g *Registry) Len() int {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return len(g.rooms)
}
