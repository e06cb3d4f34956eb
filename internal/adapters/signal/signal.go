package signal

import (
	"context"
	"errors"
	"net/http"
	"reflect"
	"strings"
	"sync"
	"time"

	"github.com/dkeye/Vote/internal/app/orch"
	"github.com/dkeye/Vote/internal/core"
	"github.com/dkeye/Vote/internal/domain"
	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"
)

var (
	ErrBackpressure = errors.New("backpressure")
	ErrClosed       = errors.New("connection closed")
)

const (
	sendBuffer   = 64
	writeTimeout = 5 * time.Second
)

// WSConn is the part of *websocket.Conn the pumps use.
type WSConn interface {
	ReadMessage() (int, []byte, error)
	WriteMessage(mt int, data []byte) error
	SetWriteDeadline(t time.Time) error
	SetReadDeadline(t time.Time) error
	SetReadLimit(limit int64)
	SetPongHandler(h func(appData string) error)
	Close() error
}

type Options struct {
	ReadLimit  int64
	PingPeriod time.Duration
	// Signal limits every inbound message, Chat limits send-message on top.
	Signal *RoomRateLimiter
	Chat   *RoomRateLimiter
}

type SignalWSController struct {
	Orch     *orch.Orchestrator
	opts     Options
	validate *validator.Validate
}

func NewSignalWSController(o *orch.Orchestrator, opts Options) *SignalWSController {
	if opts.PingPeriod <= 0 {
		opts.PingPeriod = 54 * time.Second
	}
	v := validator.New(validator.WithRequiredStructEnabled())
	// Report wire field names in validation errors.
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		return name
	})
	return &SignalWSController{
		Orch:     o,
		opts:     opts,
		validate: v,
	}
}

// WsSignalConn implements core.SignalConnection over a websocket.
type WsSignalConn struct {
	conn WSConn
	send chan core.Frame

	mu     sync.RWMutex
	closed bool
}

func NewWsSignalConn(conn WSConn) *WsSignalConn {
	return &WsSignalConn{
		conn: conn,
		send: make(chan core.Frame, sendBuffer),
	}
}

func (c *WsSignalConn) TrySend(f core.Frame) error {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.closed {
		return ErrClosed
	}
	select {
	case c.send <- f:
	default:
		return ErrBackpressure
	}
	return nil
}

func (c *WsSignalConn) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	c.closed = true
	close(c.send)
	_ = c.conn.Close()
}

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// HandleSignal upgrades the request and serves one connection until it
// closes or ctx is canceled.
func (ctl *SignalWSController) HandleSignal(ctx context.Context, c *gin.Context) {
	ws, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		log.Error().Err(err).Str("module", "signal").Msg("ws upgrade")
		return
	}
	ctl.Serve(ctx, domain.ConnID(uuid.NewString()), c.GetString(ClientTokenKey), ws)
}

// ClientTokenKey is the gin context key holding the browser's client token.
const ClientTokenKey = "client_token"

// Serve binds conn to sid and starts its pumps.
func (ctl *SignalWSController) Serve(ctx context.Context, sid domain.ConnID, token string, ws WSConn) {
	log.Info().Str("module", "signal").Str("sid", string(sid)).Str("token", token).Msg("new WS connection")

	conn := NewWsSignalConn(ws)
	sess := core.NewMemberSession(sid, token, conn)
	ctx, cancel := context.WithCancel(ctx)
	ctl.Orch.Sessions.Bind(sid, sess, cancel)

	go ctl.writePump(ctx, conn)
	go ctl.readPump(ctx, cancel, sid, conn)
}
