package ws

import (
	"fmt"
	"net/http"
	"sync/atomic"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"prodcat/internal"
	"prodcat/internal/pipeline"
	"prodcat/internal/storage"
)

// command is one inbound message on the upload channel.
type command struct {
	Action          string           `json:"action"`
	Rows            []map[string]any `json:"rows"`
	DuplicateAction string           `json:"duplicate_action"`
}

// Controller owns the upload-channel protocol: it reads commands in arrival
// order, answers pings inline, and runs at most one import per channel on its
// own goroutine so a long import never starves keep-alives.
type Controller struct {
	db       *storage.DB
	registry *Registry
	importer *pipeline.ImportService
	log      *zap.Logger

	// onComplete runs after a successful import, outside the session path.
	onComplete func()
}

func NewController(db *storage.DB, registry *Registry, importer *pipeline.ImportService, log *zap.Logger) *Controller {
	return &Controller{db: db, registry: registry, importer: importer, log: log}
}

// OnImportComplete registers a hook invoked after each successful import
// (cache invalidation and the like).
func (c *Controller) OnImportComplete(fn func()) {
	c.onComplete = fn
}

// Serve handles one upload channel until the client disconnects. Disconnecting
// mid-import does not abort in-flight work; it only stops event delivery.
func (c *Controller) Serve(w http.ResponseWriter, req *http.Request) {
	conn, err := c.registry.Register(w, req)
	if err != nil {
		c.log.Warn("websocket upgrade failed", zap.Error(err))
		return
	}
	defer c.registry.Unregister(conn)

	var importing atomic.Bool
	for {
		var cmd command
		if err := conn.sock.ReadJSON(&cmd); err != nil {
			return
		}

		switch cmd.Action {
		case "ping":
			conn.Emit(internal.Event{Type: internal.EventPong})
		case "start_upload":
			c.startUpload(conn, cmd, &importing)
		default:
			c.log.Debug("ignoring unknown action", zap.String("conn", conn.ID), zap.String("action", cmd.Action))
		}
	}
}

func (c *Controller) startUpload(conn *Conn, cmd command, importing *atomic.Bool) {
	if len(cmd.Rows) == 0 {
		conn.Emit(internal.Event{Type: internal.EventError, Message: "no rows to process"})
		return
	}

	policy := internal.ResolutionPolicy(cmd.DuplicateAction)
	if cmd.DuplicateAction == "" {
		policy = internal.PolicySkip
	}
	if !policy.Valid() {
		conn.Emit(internal.Event{Type: internal.EventError, Message: fmt.Sprintf("invalid duplicate_action: %q", cmd.DuplicateAction)})
		return
	}

	if !importing.CompareAndSwap(false, true) {
		conn.Emit(internal.Event{Type: internal.EventError, Message: "an import is already in progress on this connection"})
		return
	}

	go func() {
		defer importing.Store(false)
		c.runImport(conn, cmd.Rows, policy)
	}()
}

func (c *Controller) runImport(conn *Conn, rows []map[string]any, policy internal.ResolutionPolicy) {
	sessionID := uuid.NewString()
	session := c.db.NewWriteSession()

	defer func() {
		if r := recover(); r != nil {
			_ = session.Rollback()
			conn.Emit(internal.Event{Type: internal.EventError, Message: fmt.Sprintf("import failed: %v", r)})
			c.log.Error("import panicked", zap.String("session", sessionID), zap.Any("panic", r))
		}
	}()

	c.log.Info("import started",
		zap.String("session", sessionID),
		zap.String("conn", conn.ID),
		zap.Int("rows", len(rows)),
		zap.String("policy", string(policy)))

	if _, err := c.importer.Run(sessionID, session, conn, rows, policy); err != nil {
		// The coordinator already rolled back and emitted the terminal
		// error event.
		_ = session.Rollback()
		return
	}
	if c.onComplete != nil {
		c.onComplete()
	}
}
