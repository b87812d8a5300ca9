package ws

import (
	"net/http"
	"sync"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"prodcat/internal"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  4096,
	WriteBufferSize: 4096,
	// The browser client is served from a different origin in development;
	// the original service accepted it the same way.
	CheckOrigin: func(*http.Request) bool { return true },
}

// Conn is one live upload channel. Writes are serialized so events reach the
// client in submission order.
type Conn struct {
	ID   string
	sock *websocket.Conn

	mu     sync.Mutex
	closed bool
}

// Emit pushes one event to this channel. Once the channel has dropped, Emit
// becomes a no-op: an import that outlives its client must not crash on
// delivery.
func (c *Conn) Emit(ev internal.Event) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	if err := c.sock.WriteJSON(ev); err != nil {
		c.closed = true
	}
}

func (c *Conn) markClosed() {
	c.mu.Lock()
	c.closed = true
	c.mu.Unlock()
	_ = c.sock.Close()
}

// Registry is pure connection bookkeeping for the live channel set. It holds
// no session state and is safe to share across concurrent sessions.
type Registry struct {
	mu    sync.Mutex
	conns map[*Conn]struct{}
	log   *zap.Logger
}

func NewRegistry(log *zap.Logger) *Registry {
	return &Registry{conns: map[*Conn]struct{}{}, log: log}
}

// Register completes the WebSocket handshake and adds the channel to the live
// set.
func (r *Registry) Register(w http.ResponseWriter, req *http.Request) (*Conn, error) {
	sock, err := upgrader.Upgrade(w, req, nil)
	if err != nil {
		return nil, err
	}

	conn := &Conn{ID: uuid.NewString(), sock: sock}
	r.mu.Lock()
	r.conns[conn] = struct{}{}
	total := len(r.conns)
	r.mu.Unlock()

	r.log.Info("websocket connected", zap.String("conn", conn.ID), zap.Int("total", total))
	return conn, nil
}

// Unregister removes a channel and closes its socket. Unregistering a channel
// that is not present is a no-op.
func (r *Registry) Unregister(conn *Conn) {
	r.mu.Lock()
	_, present := r.conns[conn]
	delete(r.conns, conn)
	total := len(r.conns)
	r.mu.Unlock()

	if !present {
		return
	}
	conn.markClosed()
	r.log.Info("websocket disconnected", zap.String("conn", conn.ID), zap.Int("total", total))
}

func (r *Registry) Count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.conns)
}
