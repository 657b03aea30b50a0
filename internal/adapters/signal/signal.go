// Package signal serves the real-time session channel over WebSocket.
package signal

import (
	"context"
	"net/http"
	"slices"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"github.com/dkeye/CineMatch/internal/app/orch"
	"github.com/dkeye/CineMatch/internal/auth"
	"github.com/dkeye/CineMatch/internal/core"
)

const (
	sendBuffer   = 32
	writeTimeout = 5 * time.Second
)

type Options struct {
	ReadLimit  int64
	PingPeriod time.Duration
	// AllowedOrigins restricts the handshake Origin; empty or "*" allows any.
	AllowedOrigins []string
}

type SignalWSController struct {
	Orch    *orch.Orchestrator
	Gate    *auth.Gate
	Limiter *LikeRateLimiter

	opts     Options
	upgrader websocket.Upgrader
}

func NewSignalWSController(o *orch.Orchestrator, gate *auth.Gate, limiter *LikeRateLimiter, opts Options) *SignalWSController {
	ctl := &SignalWSController{Orch: o, Gate: gate, Limiter: limiter, opts: opts}
	ctl.upgrader = websocket.Upgrader{CheckOrigin: ctl.checkOrigin}
	return ctl
}

func (ctl *SignalWSController) checkOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" || len(ctl.opts.AllowedOrigins) == 0 || slices.Contains(ctl.opts.AllowedOrigins, "*") {
		return true
	}
	return slices.Contains(ctl.opts.AllowedOrigins, origin)
}

type wsSignalConn struct {
	conn *websocket.Conn
	send chan core.Frame

	mu     sync.RWMutex
	closed bool
}

func (c *wsSignalConn) TrySend(f core.Frame) error {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.closed {
		return core.ErrConnClosed
	}
	select {
	case c.send <- f:
	default:
		return core.ErrBackpressure
	}
	return nil
}

func (c *wsSignalConn) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	c.closed = true
	close(c.send)
	_ = c.conn.Close()
}

// HandleSignal authenticates the handshake and, only on success, upgrades
// and starts the pumps. ctx bounds the connection lifetime.
func (ctl *SignalWSController) HandleSignal(ctx context.Context, c *gin.Context) {
	identity, err := ctl.Gate.Authenticate(c.Request)
	if err != nil {
		log.Warn().Err(err).Str("module", "signal").Str("remote", c.ClientIP()).Msg("handshake rejected")
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	ws, err := ctl.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		log.Error().Err(err).Str("module", "signal").Msg("ws upgrade")
		return
	}

	cid := core.ConnID(uuid.NewString())
	conn := &wsSignalConn{conn: ws, send: make(chan core.Frame, sendBuffer)}
	ctx, cancel := context.WithCancel(ctx)
	ctl.Orch.Connect(cid, core.NewMemberSession(identity, conn), cancel)
	log.Info().Str("module", "signal").Str("cid", string(cid)).Str("user", string(identity.ID)).Msg("new WS connection")

	go ctl.writePump(ctx, conn)
	go ctl.readPump(ctx, cancel, cid, conn)
}
