package http

import (
	"context"
	"net/http"

	"github.com/gin-contrib/sessions"
	"github.com/gin-contrib/sessions/cookie"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/pion/webrtc/v4"
	"github.com/rs/zerolog/log"

	"github.com/huddlewire/signaling/internal/adapters"
	"github.com/huddlewire/signaling/internal/app"
	"github.com/huddlewire/signaling/internal/config"
	"github.com/huddlewire/signaling/internal/domain"
)

func genClientToken() string {
	return uuid.NewString()
}

func ClientTokenMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		token, _ := c.Cookie("ct")
		if token == "" {
			token = genClientToken()
			c.SetCookie("ct", token, 3600*24*7, "/", "", false, true)
		}
		c.Set("client_token", token)
		c.Next()
	}
}

// iceServers assembles the ICE configuration handed to clients. The relay
// never touches negotiation payloads; it only tells peers where STUN/TURN
// lives.
func iceServers(cfg *config.Config) []webrtc.ICEServer {
	servers := make([]webrtc.ICEServer, 0, 2)
	if len(cfg.STUNServers) > 0 {
		servers = append(servers, webrtc.ICEServer{URLs: cfg.STUNServers})
	}
	if cfg.TURNServer != "" {
		servers = append(servers, webrtc.ICEServer{
			URLs:           []string{cfg.TURNServer},
			Username:       cfg.TURNUsername,
			Credential:     cfg.TURNCredential,
			CredentialType: webrtc.ICECredentialTypePassword,
		})
	}
	return servers
}

func SetupRouter(ctx context.Context, cfg *config.Config, orch *app.Orchestrator, ctl *adapters.SignalController) *gin.Engine {
	if cfg.Mode == "release" {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	if cfg.Mode == "debug" {
		r.Use(gin.Logger())
	}
	r.Use(gin.Recovery())

	store := cookie.NewStore([]byte(cfg.Secret))
	r.Use(sessions.Sessions("SignalSessions", store))
	r.Use(ClientTokenMiddleware())

	r.Static("/static", cfg.StaticPath)
	r.GET("/", func(c *gin.Context) {
		c.File(cfg.StaticPath + "/index.html")
	})

	log.Info().Str("module", "adapters.http").Str("static", cfg.StaticPath).Msg("router setup")

	api := r.Group("/api")

	// POST /api/sessions — create a session out of band (thin wrapper over
	// the store; the creator joins over the websocket afterwards).
	api.POST("/sessions", func(c *gin.Context) {
		var req struct {
			ClientInfo string `json:"clientInfo"`
		}
		_ = c.ShouldBindJSON(&req)
		sid, err := orch.CreateSession(domain.SessionMeta{
			CreatorAddr: c.ClientIP(),
			ClientInfo:  req.ClientInfo,
		})
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{"sessionId": sid})
	})

	// GET /api/sessions — list sessions (local view of this instance).
	api.GET("/sessions", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"sessions": orch.Store.List()})
	})

	// GET /api/sessions/:id — session info with membership snapshot.
	api.GET("/sessions/:id", func(c *gin.Context) {
		id := domain.SessionID(c.Param("id"))
		info, err := orch.Store.Get(id)
		if err != nil {
			c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
			return
		}
		participants, _ := orch.Store.Participants(id)
		if participants == nil {
			participants = []domain.Participant{}
		}
		c.JSON(http.StatusOK, gin.H{
			"session":      info,
			"participants": participants,
		})
	})

	// DELETE /api/sessions/:id — admin eviction.
	api.DELETE("/sessions/:id", func(c *gin.Context) {
		if !orch.EvictSession(domain.SessionID(c.Param("id"))) {
			c.JSON(http.StatusNotFound, gin.H{"error": domain.ErrSessionNotFound.Error()})
			return
		}
		c.Status(http.StatusNoContent)
	})

	// GET /api/ice-servers — STUN/TURN configuration for peers.
	api.GET("/ice-servers", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"iceServers": iceServers(cfg)})
	})

	api.GET("/ws/signal", func(c *gin.Context) {
		ctl.HandleSignal(ctx, c)
	})

	return r
}
