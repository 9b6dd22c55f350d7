// Package tactical converts continuous per-frame movement input into
// position and facing updates, and detects boundary-gate crossings that
// request a room transition.
package tactical

import (
	"context"
	"math"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/cory-johannsen/crawl/internal/game/combat"
	"github.com/cory-johannsen/crawl/internal/game/world"
)

// Registry is the subset of the combat engine the controller mutates
// through. A local interface keeps the package testable with a stub.
type Registry interface {
	Entity(id string) (combat.Entity, bool)
	UpdateEntity(id string, p combat.Patch) bool
	ClearTransient()
}

// RoomMover is the external collaborator performing the room-movement
// round trip. A nil room with a nil error is treated as a failure.
type RoomMover interface {
	Move(ctx context.Context, dir world.Direction) (*world.Room, error)
}

// TransitionRecorder counts confirmed room transitions.
type TransitionRecorder interface {
	RoomTransition()
}

type nopTransitionRecorder struct{}

func (nopTransitionRecorder) RoomTransition() {}

const (
	// DefaultSpeed is the per-frame movement step in room-space units.
	DefaultSpeed = 1.5
	// DefaultDebounceWindow guards gate re-triggering after a successful
	// transition request.
	DefaultDebounceWindow = 2 * time.Second
)

// Entry placement coordinates for arrivals, near the edge opposite the
// direction of travel.
const (
	entryNear   = 10.0
	entryFar    = 90.0
	entryCenter = 50.0
)

// Controller owns per-frame movement for one room session.
type Controller struct {
	mu     sync.Mutex
	logger *zap.Logger
	reg    Registry
	mover  RoomMover
	rec    TransitionRecorder
	now    func() time.Time

	room    *world.Room
	speed   float64
	window  time.Duration
	deb     debouncer
	arrived func(ctx context.Context, room *world.Room)
}

// ControllerOption configures a Controller at construction.
type ControllerOption func(*Controller)

// WithLogger sets the controller's structured logger.
func WithLogger(l *zap.Logger) ControllerOption { return func(c *Controller) { c.logger = l } }

// WithSpeed sets the per-frame movement step.
func WithSpeed(s float64) ControllerOption { return func(c *Controller) { c.speed = s } }

// WithDebounceWindow sets the gate re-trigger guard window.
func WithDebounceWindow(d time.Duration) ControllerOption {
	return func(c *Controller) { c.window = d }
}

// WithClock overrides the wall clock for deterministic tests.
func WithClock(now func() time.Time) ControllerOption { return func(c *Controller) { c.now = now } }

// WithRecorder sets the transition metrics recorder.
func WithRecorder(r TransitionRecorder) ControllerOption { return func(c *Controller) { c.rec = r } }

// WithArrivalHook sets a callback invoked after a confirmed transition,
// once the transient roster has been cleared and the entrant re-homed.
// Callers use it to seed the new room's roster.
func WithArrivalHook(fn func(ctx context.Context, room *world.Room)) ControllerOption {
	return func(c *Controller) { c.arrived = fn }
}

// NewController creates a controller over reg, starting in room, issuing
// transitions through mover.
//
// Precondition: reg, mover, and room must be non-nil.
func NewController(reg Registry, mover RoomMover, room *world.Room, opts ...ControllerOption) *Controller {
	c := &Controller{
		logger: zap.NewNop(),
		reg:    reg,
		mover:  mover,
		rec:    nopTransitionRecorder{},
		now:    time.Now,
		room:   room,
		speed:  DefaultSpeed,
		window: DefaultDebounceWindow,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// CurrentRoom returns the room the controller currently operates in.
func (c *Controller) CurrentRoom() *world.Room {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.room
}

// SetRoom replaces the current room, e.g. after an externally driven
// transition.
func (c *Controller) SetRoom(r *world.Room) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.room = r
}

// Step applies one frame of movement input for entity id: candidate
// position = position + (vx,vy)*speed. A candidate crossing a gate in the
// direction of travel triggers a room transition, debounced to one request
// per window; all other movement is clamped to the wall bounds.
//
// Postcondition: Returns false for unknown entities or a nil input vector;
// otherwise the entity's position and facing are updated.
func (c *Controller) Step(ctx context.Context, id string, vx, vy float64) bool {
	if vx == 0 && vy == 0 {
		return false
	}
	ent, ok := c.reg.Entity(id)
	if !ok {
		return false
	}
	// Defensive re-normalization; diagonal input must not be faster.
	if mag := math.Hypot(vx, vy); mag > 1 {
		vx /= mag
		vy /= mag
	}

	c.mu.Lock()
	cand := combat.Position{
		X: ent.Pos.X + vx*c.speed,
		Y: ent.Pos.Y + vy*c.speed,
	}

	dir, crossing := c.gateCrossingLocked(cand, vx, vy)
	triggered := false
	if crossing {
		triggered = c.deb.TryTrigger(c.now(), c.window)
	}

	var dest combat.Position
	if triggered {
		// Transition-triggering movement may overshoot the walls until
		// the room change completes.
		dest = cand.ClampOvershoot()
	} else {
		dest = cand.ClampWalls()
	}
	c.mu.Unlock()

	facing, _ := combat.FacingDegrees(vx, vy)
	c.reg.UpdateEntity(id, combat.Patch{Pos: &dest, Facing: &facing})

	if triggered {
		c.logger.Info("gate crossed",
			zap.String("entity", id),
			zap.String("direction", string(dir)),
		)
		go c.transition(ctx, id, dir)
	}
	return true
}

// gateCrossingLocked reports whether the candidate position crosses a gate
// of the current room in the direction of travel: the vector's sign must
// match the exit, the travel coordinate must cross the boundary threshold,
// and the perpendicular coordinate must lie within the gate span. Caller
// must hold c.mu.
func (c *Controller) gateCrossingLocked(cand combat.Position, vx, vy float64) (world.Direction, bool) {
	if c.room == nil {
		return "", false
	}
	inSpan := func(v float64) bool {
		return v >= world.GateSpanMin && v <= world.GateSpanMax
	}
	var dir world.Direction
	switch {
	case vy < 0 && cand.Y <= combat.WallMin && inSpan(cand.X):
		dir = world.North
	case vy > 0 && cand.Y >= combat.WallMax && inSpan(cand.X):
		dir = world.South
	case vx > 0 && cand.X >= combat.WallMax && inSpan(cand.Y):
		dir = world.East
	case vx < 0 && cand.X <= combat.WallMin && inSpan(cand.Y):
		dir = world.West
	default:
		return "", false
	}
	if _, ok := c.room.GateFor(dir); !ok {
		return "", false
	}
	return dir, true
}

// transition performs the asynchronous room-movement round trip. Only a
// confirmed success clears the transient roster and re-homes the entrant;
// on failure the registry is left untouched and the debounce window keeps
// guarding re-triggers.
func (c *Controller) transition(ctx context.Context, entityID string, dir world.Direction) {
	next, err := c.mover.Move(ctx, dir)
	if err != nil || next == nil {
		c.logger.Warn("room transition failed",
			zap.String("direction", string(dir)),
			zap.Error(err),
		)
		return
	}

	c.mu.Lock()
	c.room = next
	c.mu.Unlock()

	c.reg.ClearTransient()
	entry := EntryPosition(dir)
	facing, _ := combat.FacingDegrees(directionVector(dir))
	c.reg.UpdateEntity(entityID, combat.Patch{Pos: &entry, Facing: &facing})

	if c.arrived != nil {
		c.arrived(ctx, next)
	}

	c.rec.RoomTransition()
	c.logger.Info("room transition confirmed",
		zap.String("room", next.ID),
		zap.String("direction", string(dir)),
	)
}

// EntryPosition returns the arrival placement for an entrant that
// travelled in dir: near the opposite edge of the new room, or the room
// center when the direction is unknown.
func EntryPosition(dir world.Direction) combat.Position {
	switch dir {
	case world.North:
		return combat.Position{X: entryCenter, Y: entryFar}
	case world.South:
		return combat.Position{X: entryCenter, Y: entryNear}
	case world.East:
		return combat.Position{X: entryNear, Y: entryCenter}
	case world.West:
		return combat.Position{X: entryFar, Y: entryCenter}
	default:
		return combat.Position{X: entryCenter, Y: entryCenter}
	}
}

// directionVector maps a travel direction to a unit displacement for
// facing computation.
func directionVector(dir world.Direction) (float64, float64) {
	switch dir {
	case world.North:
		return 0, -1
	case world.South:
		return 0, 1
	case world.East:
		return 1, 0
	case world.West:
		return -1, 0
	default:
		return 0, 0
	}
}
