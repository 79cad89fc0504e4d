package adapters

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"github.com/huddlewire/signaling/internal/app"
	"github.com/huddlewire/signaling/internal/config"
	"github.com/huddlewire/signaling/internal/core"
	"github.com/huddlewire/signaling/internal/domain"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

type ackPayload struct {
	Status string `json:"status"`
	Error  string `json:"error,omitempty"`
}

type errorPayload struct {
	Error string `json:"error"`
}

// SignalController owns the websocket endpoint: upgrade, pumps and the
// per-message dispatch into the orchestrator and relay.
type SignalController struct {
	cfg     *config.Config
	hub     *Hub
	orch    *app.Orchestrator
	relay   *app.Relay
	limiter *RateLimiter
}

func NewSignalController(cfg *config.Config, hub *Hub, orch *app.Orchestrator, relay *app.Relay) *SignalController {
	return &SignalController{
		cfg:     cfg,
		hub:     hub,
		orch:    orch,
		relay:   relay,
		limiter: NewRateLimiter(cfg.MessageRateLimit, cfg.MessageRateWindow),
	}
}

type connState struct {
	id   domain.ConnectionID
	conn *wsConn
	meta domain.SessionMeta
}

func (ctl *SignalController) HandleSignal(ctx context.Context, c *gin.Context) {
	// Credential check happens before the upgrade, before any state exists.
	if ctl.cfg.Secret != "" && c.Query("token") != ctl.cfg.Secret {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": domain.ErrUnauthorized.Error()})
		return
	}

	ws, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		log.Warn().Str("module", "adapters.ws").Err(err).Msg("upgrade failed")
		return
	}
	if ctl.cfg.ReadLimit > 0 {
		ws.SetReadLimit(ctl.cfg.ReadLimit)
	}

	conn := newWSConn(ws)
	id := ctl.orch.Registry.Connect()
	ctl.hub.add(id, conn)

	st := &connState{
		id:   id,
		conn: conn,
		meta: domain.SessionMeta{
			CreatorAddr: c.ClientIP(),
			ClientInfo:  c.Request.UserAgent(),
		},
	}

	_ = ctl.hub.Send(id, core.EventConnected, map[string]any{
		"id":                id,
		"heartbeatInterval": ctl.cfg.HeartbeatInterval.Milliseconds(),
	})

	ctx, cancel := context.WithCancel(ctx)
	go ctl.writePump(ctx, conn)
	go ctl.readPump(ctx, cancel, st)
}

func (ctl *SignalController) writePump(ctx context.Context, c *wsConn) {
	for {
		select {
		case <-ctx.Done():
			return
		case data, ok := <-c.send:
			if !ok {
				return
			}
			if err := c.conn.SetWriteDeadline(time.Now().Add(5 * time.Second)); err != nil {
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
				return
			}
		}
	}
}

// readPump is the single consumer of inbound frames, so messages from one
// connection are handled strictly in order.
func (ctl *SignalController) readPump(ctx context.Context, cancel context.CancelFunc, st *connState) {
	defer func() {
		cancel()
		ctl.limiter.Forget(st.id)
		ctl.orch.Disconnect(st.id)
	}()

	for {
		select {
		case <-ctx.Done():
			return
		default:
			_, data, err := st.conn.conn.ReadMessage()
			if err != nil {
				log.Debug().Str("module", "adapters.ws").Str("conn", string(st.id)).Err(err).Msg("read loop exit")
				return
			}
			ctl.handleMessage(st, data)
		}
	}
}

func (ctl *SignalController) handleMessage(st *connState, data []byte) {
	msg, err := DecodeMessage(data)
	if err != nil {
		ctl.sendError(st, 0, domain.ErrInvalidMessage.Error())
		return
	}

	switch msg.Type {
	case "create-session":
		ctl.handleCreate(st, msg)
	case "join-session":
		ctl.handleJoin(st, msg)
	case "leave-session":
		ctl.orch.Leave(st.id, domain.SessionID(msg.Session.SessionID))
	case app.SignalOffer, app.SignalAnswer, app.SignalCandidate:
		ctl.handleSignalMessage(st, msg)
	case "update-state":
		ctl.orch.UpdateState(st.id, domain.SessionID(msg.State.SessionID), msg.State.State)
		_ = ctl.hub.SendSeq(st.id, core.EventStateAck, msg.Seq, ackPayload{Status: "success"})
	case "heartbeat":
		ctl.orch.Registry.Heartbeat(st.id)
		_ = ctl.hub.SendSeq(st.id, core.EventHeartbeatAck, msg.Seq, nil)
	}
}

func (ctl *SignalController) handleCreate(st *connState, msg *Message) {
	meta := st.meta
	if msg.Create != nil && msg.Create.ClientInfo != "" {
		meta.ClientInfo = msg.Create.ClientInfo
	}
	sid, err := ctl.orch.CreateSession(meta)
	if err != nil {
		ctl.sendError(st, msg.Seq, err.Error())
		return
	}
	_ = ctl.hub.SendSeq(st.id, core.EventSessionCreated, msg.Seq, map[string]any{"sessionId": sid})
}

func (ctl *SignalController) handleJoin(st *connState, msg *Message) {
	participants, err := ctl.orch.Join(st.id, domain.SessionID(msg.Session.SessionID))
	if err != nil {
		ctl.sendError(st, msg.Seq, err.Error())
		return
	}
	if participants == nil {
		participants = []domain.Participant{}
	}
	_ = ctl.hub.SendSeq(st.id, core.EventJoinResult, msg.Seq, map[string]any{"participants": participants})
}

func (ctl *SignalController) handleSignalMessage(st *connState, msg *Message) {
	if !ctl.limiter.Allow(st.id) {
		_ = ctl.hub.SendSeq(st.id, core.EventSignalAck, msg.Seq, ackPayload{Status: "error", Error: "rate limited"})
		return
	}
	if err := ctl.relay.Forward(msg.Type, st.id, domain.ParticipantID(msg.Signal.To), msg.Signal.Payload); err != nil {
		_ = ctl.hub.SendSeq(st.id, core.EventSignalAck, msg.Seq, ackPayload{Status: "error", Error: err.Error()})
		return
	}
	_ = ctl.hub.SendSeq(st.id, core.EventSignalAck, msg.Seq, ackPayload{Status: "success"})
}

func (ctl *SignalController) sendError(st *connState, seq int64, msg string) {
	_ = ctl.hub.SendSeq(st.id, core.EventError, seq, errorPayload{Error: msg})
}
