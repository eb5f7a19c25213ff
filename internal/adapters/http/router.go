package http

import (
	"context"
	"io"
	"net/http"

	"github.com/gin-contrib/sessions"
	"github.com/gin-contrib/sessions/cookie"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/vijikalavarkar/sanvi-technologies/internal/adapters/ws"
	"github.com/vijikalavarkar/sanvi-technologies/internal/config"
	"github.com/vijikalavarkar/sanvi-technologies/internal/core"
	"github.com/vijikalavarkar/sanvi-technologies/internal/domain"
	"github.com/vijikalavarkar/sanvi-technologies/internal/storage"
)

const maxUploadBytes = 16 << 20

// ClientTokenMiddleware hands every browser a stable opaque token; the ws
// endpoint falls back to it when the caller supplies no user_id.
func ClientTokenMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		token, _ := c.Cookie("ct")
		if token == "" {
			token = uuid.NewString()
			c.SetCookie("ct", token, 3600*24*7, "/", "", false, true)
		}
		c.Set("client_token", token)
		c.Next()
	}
}

func SetupRouter(
	ctx context.Context,
	cfg *config.Config,
	registry *core.Registry,
	files *storage.FileStore,
	reactions *core.ReactionStore,
) *gin.Engine {
	if cfg.Mode == "release" {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	if cfg.Mode == "debug" {
		r.Use(gin.Logger())
	}
	r.Use(gin.Recovery())

	store := cookie.NewStore([]byte(cfg.Secret))
	r.Use(sessions.Sessions("SanviSessions", store))
	r.Use(ClientTokenMiddleware())

	r.Static("/static", cfg.StaticPath)
	r.GET("/", func(c *gin.Context) {
		c.File(cfg.StaticPath + "/index.html")
	})

	log.Info().Str("module", "adapters.http").Str("static", cfg.StaticPath).Msg("router setup")

	api := r.Group("/api")

	// GET /api/rooms — list live rooms
	api.GET("/rooms", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"rooms": registry.List()})
	})

	// GET /api/rooms/:id — room info
	api.GET("/rooms/:id", func(c *gin.Context) {
		room, ok := registry.Get(domain.RoomID(c.Param("id")))
		if !ok {
			c.JSON(http.StatusNotFound, gin.H{"error": domain.ErrRoomNotFound.Error()})
			return
		}
		c.JSON(http.StatusOK, room.Info())
	})

	// POST /api/chat/files/:id — upload a blob for a room
	api.POST("/chat/files/:id", func(c *gin.Context) {
		roomID := domain.RoomID(c.Param("id"))
		fh, err := c.FormFile("file")
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "missing file"})
			return
		}
		if fh.Size > maxUploadBytes {
			c.JSON(http.StatusRequestEntityTooLarge, gin.H{"error": "file too large"})
			return
		}
		f, err := fh.Open()
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		defer f.Close()
		data := make([]byte, fh.Size)
		if _, err := io.ReadFull(f, data); err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		meta, err := files.Save(roomID, fh.Filename, data, fh.Header.Get("Content-Type"))
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, meta)
	})

	// GET /api/chat/files/:id/:filename — serve a stored blob back
	api.GET("/chat/files/:id/:filename", func(c *gin.Context) {
		roomID := domain.RoomID(c.Param("id"))
		filename := c.Param("filename")
		size, err := files.Stat(roomID, filename)
		if err != nil {
			c.JSON(http.StatusNotFound, gin.H{"error": "file not found"})
			return
		}
		f, err := files.Open(roomID, filename)
		if err != nil {
			c.JSON(http.StatusNotFound, gin.H{"error": "file not found"})
			return
		}
		defer f.Close()
		c.DataFromReader(http.StatusOK, size, "application/octet-stream", f, map[string]string{
			"Content-Disposition": `attachment; filename="` + filename + `"`,
		})
	})

	// PUT /api/chat/messages/:id/reaction — toggle one user's reaction
	api.PUT("/chat/messages/:id/reaction", func(c *gin.Context) {
		messageID := c.Param("id")
		reaction := c.Query("reaction")
		userID := c.Query("user_id")
		if userID == "" {
			userID = c.GetString("client_token")
		}
		if reaction == "" || userID == "" {
			c.JSON(http.StatusBadRequest, gin.H{"error": "missing reaction or user_id"})
			return
		}
		updated := reactions.Toggle(messageID, reaction, domain.ParticipantID(userID))
		c.JSON(http.StatusOK, gin.H{"message_id": messageID, "reactions": updated})
	})

	ctl := ws.NewController(cfg, registry, files)
	r.GET("/ws/rooms/:id", func(c *gin.Context) {
		ctl.HandleRoom(ctx, c)
	})

	return r
}
