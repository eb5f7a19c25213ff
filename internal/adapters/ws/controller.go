package ws

import (
	"context"
	"encoding/base64"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"github.com/vijikalavarkar/sanvi-technologies/internal/config"
	"github.com/vijikalavarkar/sanvi-technologies/internal/core"
	"github.com/vijikalavarkar/sanvi-technologies/internal/domain"
	"github.com/vijikalavarkar/sanvi-technologies/internal/storage"
)

const sendBuffer = 32

var errRateLimited = errors.New("too many messages, slow down")

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// Controller owns the websocket side of room coordination: it admits
// connections into rooms and pumps their inbound events.
type Controller struct {
	registry *core.Registry
	files    *storage.FileStore
	limiter  *RateLimiter

	readLimit  int64
	pingPeriod time.Duration
}

func NewController(cfg *config.Config, registry *core.Registry, files *storage.FileStore) *Controller {
	return &Controller{
		registry:   registry,
		files:      files,
		limiter:    NewRateLimiter(cfg.RateLimit, cfg.RateInterval),
		readLimit:  cfg.ReadLimit,
		pingPeriod: cfg.PingPeriod,
	}
}

// HandleRoom is the transport entry point: GET /ws/rooms/:id?user_id=&user_name=.
// Identity arrives already authenticated from the caller; when user_id is
// absent the per-client session token stands in for it.
func (ctl *Controller) HandleRoom(ctx context.Context, c *gin.Context) {
	roomID := domain.RoomID(c.Param("id"))
	userID := strings.TrimSpace(c.Query("user_id"))
	userName := strings.TrimSpace(c.Query("user_name"))
	if userID == "" {
		userID = c.GetString("client_token")
	}
	if roomID == "" || userID == "" || userName == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "missing room id, user_id or user_name"})
		return
	}

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		log.Error().Err(err).Str("module", "adapters.ws").Msg("ws upgrade")
		return
	}

	pid := domain.ParticipantID(userID)
	rc := newRoomConn(conn, sendBuffer)
	room := ctl.registry.GetOrCreate(roomID)

	// the write pump is not running yet, so the rejection goes straight
	// onto the socket
	if _, err := room.Admit(pid, userName, rc); err != nil {
		_ = conn.SetWriteDeadline(time.Now().Add(5 * time.Second))
		_ = conn.WriteJSON(domain.ErrorEvent(err))
		rc.Close()
		return
	}

	log.Info().Str("module", "adapters.ws").Str("room", string(roomID)).Str("user", userID).Msg("connection admitted")

	connCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	go ctl.writePump(connCtx, rc)
	ctl.readPump(connCtx, room, pid, userName, rc)

	room.Disconnect(pid)
	ctl.limiter.Forget(pid)
	rc.Close()
}

func (ctl *Controller) writePump(ctx context.Context, c *roomConn) {
	ticker := time.NewTicker(ctl.pingPeriod)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			_ = c.conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(5*time.Second))
		case ev, ok := <-c.send:
			if !ok {
				return
			}
			if err := c.conn.SetWriteDeadline(time.Now().Add(5 * time.Second)); err != nil {
				log.Debug().Err(err).Str("module", "adapters.ws").Msg("writePump set deadline")
				return
			}
			if err := c.conn.WriteJSON(ev); err != nil {
				log.Debug().Err(err).Str("module", "adapters.ws").Msg("writePump write")
				return
			}
		}
	}
}

func (ctl *Controller) readPump(ctx context.Context, room *core.Room, pid domain.ParticipantID, name string, c *roomConn) {
	c.conn.SetReadLimit(ctl.readLimit)
	_ = c.conn.SetReadDeadline(time.Now().Add(2 * ctl.pingPeriod))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(2 * ctl.pingPeriod))
	})

	for {
		select {
		case <-ctx.Done():
			return
		default:
			_, data, err := c.conn.ReadMessage()
			if err != nil {
				log.Debug().Err(err).Str("module", "adapters.ws").Str("user", string(pid)).Msg("readPump exit")
				return
			}
			ctl.dispatch(room, pid, name, c, data)
		}
	}
}

// dispatch routes one decoded inbound event. Malformed frames answer the
// sender only; the room never sees them.
func (ctl *Controller) dispatch(room *core.Room, pid domain.ParticipantID, name string, c *roomConn, data []byte) {
	ev, err := domain.DecodeEvent(data)
	if err != nil {
		log.Debug().Err(err).Str("module", "adapters.ws").Str("user", string(pid)).Msg("bad inbound event")
		_ = c.TrySend(domain.ErrorEvent(err))
		return
	}

	// identity is server-assigned, never trusted from the payload
	ev.UserID = pid
	if ev.UserName == "" {
		ev.UserName = name
	}

	switch ev.Type {
	case domain.EventOffer, domain.EventAnswer, domain.EventICECandidate:
		room.RelayTo(ev.TargetUserID, ev)

	case domain.EventTyping:
		room.SetTyping(pid, name, *ev.IsTyping)

	case domain.EventFile:
		ctl.handleFile(room, c, ev)

	case domain.EventChat, domain.EventSystem:
		if !ctl.limiter.Allow(pid) {
			_ = c.TrySend(domain.ErrorEvent(errRateLimited))
			return
		}
		room.Broadcast(ev, "")

	default:
		// media_state, poll, vote
		room.Broadcast(ev, "")
	}
}

// handleFile hands the decoded blob to the storage collaborator and
// rebroadcasts the event with attachment metadata instead of the payload.
func (ctl *Controller) handleFile(room *core.Room, c *roomConn, ev domain.Event) {
	blob, err := base64.StdEncoding.DecodeString(ev.FileContent)
	if err != nil {
		_ = c.TrySend(domain.ErrorEvent(err))
		return
	}
	meta, err := ctl.files.Save(room.ID(), ev.Filename, blob, ev.ContentType)
	if err != nil {
		log.Warn().Err(err).Str("module", "adapters.ws").Str("room", string(room.ID())).Msg("file save failed")
		_ = c.TrySend(domain.ErrorEvent(err))
		return
	}
	ev.File = &meta
	ev.FileContent = ""
	ev.Filename = ""
	ev.ContentType = ""
	room.Broadcast(ev, "")
}
