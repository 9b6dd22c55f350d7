// Package gateway serves the websocket endpoint that real-time clients use
// to drive the combat engine and the tactical controller. Each connection
// receives the full room snapshot on connect and on every state change, and
// submits commands as JSON messages.
package gateway

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/cory-johannsen/crawl/internal/game/action"
	"github.com/cory-johannsen/crawl/internal/game/combat"
	"github.com/cory-johannsen/crawl/internal/game/tactical"
)

// engageGrace is added to the move execution time before the follow-up
// attack is queued, so the move has dispatched before the attack validates
// range.
const engageGrace = 150 * time.Millisecond

// Server accepts websocket connections and bridges them to the engine.
type Server struct {
	addr       string
	logger     *zap.Logger
	engine     *combat.Engine
	controller *tactical.Controller
	table      *action.Table
	upgrader   websocket.Upgrader
	srv        *http.Server

	mu     sync.Mutex
	timers []*time.Timer
	closed bool
}

// NewServer creates a gateway listening on addr.
//
// Precondition: logger, engine, controller, and table must be non-nil.
func NewServer(addr string, logger *zap.Logger, engine *combat.Engine, controller *tactical.Controller, table *action.Table) *Server {
	s := &Server{
		addr:       addr,
		logger:     logger,
		engine:     engine,
		controller: controller,
		table:      table,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool { return true },
		},
	}
	mux := http.NewServeMux()
	mux.HandleFunc("/ws", s.handleWebSocket)
	s.srv = &http.Server{Addr: addr, Handler: mux}
	return s
}

// Handler returns the HTTP handler serving the websocket endpoint, for
// mounting under a test server.
func (s *Server) Handler() http.Handler { return s.srv.Handler }

// Start serves until Stop is called.
func (s *Server) Start() error {
	s.logger.Info("gateway listening", zap.String("addr", s.addr))
	if err := s.srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("gateway: %w", err)
	}
	return nil
}

// Stop shuts the listener down and cancels pending engage follow-ups.
func (s *Server) Stop() {
	s.mu.Lock()
	s.closed = true
	for _, t := range s.timers {
		t.Stop()
	}
	s.timers = nil
	s.mu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_ = s.srv.Shutdown(ctx)
}

func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warn("websocket upgrade failed", zap.Error(err))
		return
	}
	s.handleConnection(r.Context(), conn)
}

func (s *Server) handleConnection(ctx context.Context, conn *websocket.Conn) {
	remote := conn.RemoteAddr().String()
	s.logger.Info("client connected", zap.String("remote", remote))

	// Writes come from both the read loop (errors) and the snapshot
	// subscription, so they are serialized.
	var writeMu sync.Mutex
	send := func(msg serverMessage) {
		writeMu.Lock()
		defer writeMu.Unlock()
		if err := conn.WriteJSON(msg); err != nil {
			s.logger.Debug("write failed", zap.String("remote", remote), zap.Error(err))
		}
	}

	unsubscribe := s.engine.Subscribe(func(snap combat.Snapshot) {
		send(stateMessage(snap, s.roomID()))
	})
	defer func() {
		unsubscribe()
		conn.Close()
		s.logger.Info("client disconnected", zap.String("remote", remote))
	}()

	for {
		var cmd Command
		if err := conn.ReadJSON(&cmd); err != nil {
			return
		}
		s.handleCommand(ctx, cmd, send)
	}
}

func (s *Server) handleCommand(ctx context.Context, cmd Command, send func(serverMessage)) {
	switch cmd.Type {
	case cmdQueueAction:
		if !s.engine.QueueAction(cmd.Entity, cmd.Action, cmd.Target, nil) {
			send(errorMessage("action rejected"))
		}
	case cmdQueueMove:
		if !s.engine.QueueMoveAction(cmd.Entity, combat.Position{X: cmd.X, Y: cmd.Y}) {
			send(errorMessage("move rejected"))
		}
	case cmdCancel:
		s.engine.CancelAction(cmd.Queue)
	case cmdSelect:
		if !s.engine.SelectEntity(cmd.Entity) {
			send(errorMessage("unknown entity"))
		}
	case cmdMove:
		s.controller.Step(ctx, cmd.Entity, cmd.VX, cmd.VY)
	case cmdEngage:
		if err := s.engage(cmd.Entity, cmd.Action, cmd.Target); err != nil {
			send(errorMessage(err.Error()))
		}
	default:
		s.logger.Debug("unknown command", zap.String("type", cmd.Type))
		send(errorMessage("unknown command"))
	}
}

// engage closes distance before attacking: if the target is already in
// range the attack is queued directly, otherwise a move toward the target
// is queued and the attack follows once the move has executed.
func (s *Server) engage(entityID, actionID, targetID string) error {
	def, ok := s.table.Get(actionID)
	if !ok || def.Type != action.TypeAttack {
		return fmt.Errorf("engage: %q is not an attack", actionID)
	}
	attacker, ok := s.engine.Entity(entityID)
	if !ok {
		return fmt.Errorf("engage: unknown entity %q", entityID)
	}
	target, ok := s.engine.Entity(targetID)
	if !ok || target.IsDefeated() {
		return fmt.Errorf("engage: no living target %q", targetID)
	}

	if combat.InRange(attacker.Pos, target.Pos, def.Range) {
		if !s.engine.QueueAction(entityID, actionID, targetID, nil) {
			return fmt.Errorf("engage: attack rejected")
		}
		return nil
	}

	dest := combat.ApproachPosition(attacker.Pos, target.Pos, def.Range)
	if !s.engine.QueueMoveAction(entityID, dest) {
		return fmt.Errorf("engage: approach rejected")
	}
	moveDef, ok := s.table.Get("move")
	delay := engageGrace
	if ok {
		delay += moveDef.ExecutionTime
	}
	s.after(delay, func() {
		if !s.engine.QueueAction(entityID, actionID, targetID, nil) {
			s.logger.Debug("engage follow-up rejected",
				zap.String("entity", entityID),
				zap.String("target", targetID),
			)
		}
	})
	return nil
}

// after schedules fn on a tracked timer so Stop can cancel it.
func (s *Server) after(d time.Duration, fn func()) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	t := time.AfterFunc(d, fn)
	s.timers = append(s.timers, t)
}

func (s *Server) roomID() string {
	if room := s.controller.CurrentRoom(); room != nil {
		return room.ID
	}
	return ""
}
