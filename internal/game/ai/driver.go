// Package ai drives hostile combatants. On a fixed cadence the driver
// inspects the room state, picks an attack for every idle living hostile,
// and queues it against the nearest living player-aligned target, closing
// distance first when out of range.
package ai

import (
	"math"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/cory-johannsen/crawl/internal/game/action"
	"github.com/cory-johannsen/crawl/internal/game/combat"
)

// DefaultInterval is the decision cadence when not configured.
const DefaultInterval = 500 * time.Millisecond

// Driver periodically issues intents for hostile entities. It runs as a
// lifecycle service; Start blocks until Stop.
type Driver struct {
	logger   *zap.Logger
	engine   *combat.Engine
	table    *action.Table
	interval time.Duration

	done chan struct{}
	once sync.Once
}

// Option configures a Driver at construction.
type Option func(*Driver)

// WithLogger sets the driver's structured logger.
func WithLogger(l *zap.Logger) Option { return func(d *Driver) { d.logger = l } }

// WithInterval sets the decision cadence.
func WithInterval(i time.Duration) Option { return func(d *Driver) { d.interval = i } }

// NewDriver creates a driver over engine, attacking with the first
// hostile-usable attack in table.
//
// Precondition: engine and table must be non-nil.
func NewDriver(engine *combat.Engine, table *action.Table, opts ...Option) *Driver {
	d := &Driver{
		logger:   zap.NewNop(),
		engine:   engine,
		table:    table,
		interval: DefaultInterval,
		done:     make(chan struct{}),
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Start runs the decision loop until Stop is called.
func (d *Driver) Start() error {
	ticker := time.NewTicker(d.interval)
	defer ticker.Stop()
	for {
		select {
		case <-d.done:
			return nil
		case <-ticker.C:
			d.pass()
		}
	}
}

// Stop terminates the decision loop. Safe to call more than once.
func (d *Driver) Stop() {
	d.once.Do(func() { close(d.done) })
}

// pass issues at most one intent per idle hostile: an attack when the
// nearest player-aligned target is in range, an approach move otherwise.
// Queue rejections (cooldown, busy) are left for the next pass.
func (d *Driver) pass() {
	def, ok := d.attackDef()
	if !ok {
		return
	}

	snap := d.engine.Snapshot()
	busy := make(map[string]bool, len(snap.Queue))
	for _, qa := range snap.Queue {
		busy[qa.EntityID] = true
	}

	for _, ent := range snap.Entities {
		if ent.Kind != combat.KindHostile || ent.IsDefeated() || busy[ent.ID] {
			continue
		}
		target, found := nearestPlayerAligned(snap.Entities, ent)
		if !found {
			continue
		}
		if combat.InRange(ent.Pos, target.Pos, def.Range) {
			if d.engine.QueueAction(ent.ID, def.ID, target.ID, nil) {
				d.logger.Debug("hostile attacks",
					zap.String("entity", ent.ID),
					zap.String("target", target.ID),
				)
			}
			continue
		}
		dest := combat.ApproachPosition(ent.Pos, target.Pos, def.Range)
		if d.engine.QueueMoveAction(ent.ID, dest) {
			d.logger.Debug("hostile approaches",
				zap.String("entity", ent.ID),
				zap.String("target", target.ID),
			)
		}
	}
}

// attackDef returns the first attack in the table usable by non-players.
func (d *Driver) attackDef() (action.Definition, bool) {
	for _, def := range d.table.All() {
		if def.Type == action.TypeAttack && !def.PlayerOnly {
			return def, true
		}
	}
	return action.Definition{}, false
}

// nearestPlayerAligned returns the closest living player-aligned entity to
// from.
func nearestPlayerAligned(entities []combat.Entity, from combat.Entity) (combat.Entity, bool) {
	var (
		best     combat.Entity
		bestDist = math.MaxFloat64
		found    bool
	)
	for _, cand := range entities {
		if !cand.Kind.PlayerAligned() || cand.IsDefeated() {
			continue
		}
		dx := cand.Pos.X - from.Pos.X
		dy := cand.Pos.Y - from.Pos.Y
		if dist := math.Hypot(dx, dy); dist < bestDist {
			best = cand
			bestDist = dist
			found = true
		}
	}
	return best, found
}
