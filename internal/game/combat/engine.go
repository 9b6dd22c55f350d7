package combat

import (
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/cory-johannsen/crawl/internal/broadcast"
	"github.com/cory-johannsen/crawl/internal/game/action"
)

// Source yields uniform random ints. A local interface keeps the engine
// decoupled from the dice package; tests substitute a fixed sequence.
type Source interface {
	Intn(n int) int
}

// Recorder receives engine metric events. All methods must be cheap and
// non-blocking.
type Recorder interface {
	ActionQueued()
	ActionExecuted(kind string)
	ActionRejected(reason string)
	RoomTransition()
	TickObserved(d time.Duration)
}

// nopRecorder is the default Recorder when none is configured.
type nopRecorder struct{}

func (nopRecorder) ActionQueued()              {}
func (nopRecorder) ActionExecuted(string)      {}
func (nopRecorder) ActionRejected(string)      {}
func (nopRecorder) RoomTransition()            {}
func (nopRecorder) TickObserved(time.Duration) {}

// AbilityEffect is the resolved outcome of an ability action.
type AbilityEffect struct {
	// Heal is hit points restored to the target.
	Heal int
	// Damage is hit points removed from the target.
	Damage int
}

// AbilityRunner resolves scripted ability effects. Script is the ability's
// script name from the action table; caster and target are read-only copies.
type AbilityRunner interface {
	Run(script string, caster, target Entity, power int) (AbilityEffect, error)
}

// Snapshot is the externally visible combat state. All fields are copies;
// consumers must treat it as read-only.
type Snapshot struct {
	Entities    []Entity
	Queue       []QueuedAction
	InCombat    bool
	CombatStart time.Time
	SelectedID  string
}

// Engine holds the authoritative in-memory state of combatants inside one
// room session: the entity registry, the action queue, and the tick loop.
// All exported methods are safe for concurrent use; the engine is the
// single writer of its state.
type Engine struct {
	mu sync.Mutex

	logger  *zap.Logger
	table   *action.Table
	src     Source
	now     func() time.Time
	rec     Recorder
	runner  AbilityRunner
	hub     *broadcast.Hub[Snapshot]
	tickInt time.Duration

	entities map[string]*Entity
	order    []string
	queue    []*QueuedAction
	seq      uint64

	selected    string
	inCombat    bool
	combatStart time.Time

	ticking bool
	done    chan struct{}
	closed  bool
}

// Option configures an Engine at construction.
type Option func(*Engine)

// WithLogger sets the engine's structured logger.
func WithLogger(l *zap.Logger) Option { return func(e *Engine) { e.logger = l } }

// WithSource sets the random source used for hit rolls.
func WithSource(src Source) Option { return func(e *Engine) { e.src = src } }

// WithClock overrides the wall clock. Tests use this to control cooldown
// and execution timing deterministically.
func WithClock(now func() time.Time) Option { return func(e *Engine) { e.now = now } }

// WithTickInterval sets the scheduler tick period.
func WithTickInterval(d time.Duration) Option { return func(e *Engine) { e.tickInt = d } }

// WithRecorder sets the metrics recorder.
func WithRecorder(r Recorder) Option { return func(e *Engine) { e.rec = r } }

// WithAbilityRunner sets the scripted-ability resolver. Abilities whose
// definition names a script are dispatched to it; others use the built-in
// effects.
func WithAbilityRunner(r AbilityRunner) Option { return func(e *Engine) { e.runner = r } }

// DefaultTickInterval is the scheduler pass period when not configured.
const DefaultTickInterval = 100 * time.Millisecond

// NewEngine creates an engine over the given action table. The tick loop
// starts lazily on the first queued action.
//
// Precondition: table must be non-nil.
// Postcondition: Returns a non-nil Engine with an empty registry and queue.
func NewEngine(table *action.Table, opts ...Option) *Engine {
	e := &Engine{
		logger:   zap.NewNop(),
		table:    table,
		now:      time.Now,
		rec:      nopRecorder{},
		hub:      broadcast.NewHub[Snapshot](),
		tickInt:  DefaultTickInterval,
		entities: make(map[string]*Entity),
		done:     make(chan struct{}),
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.src == nil {
		e.src = newLockedSource()
	}
	return e
}

// Close stops the tick loop. The engine must not be used after Close.
func (e *Engine) Close() {
	e.mu.Lock()
	defer e.mu.Unlock()
	if !e.closed {
		e.closed = true
		close(e.done)
	}
}

// AddEntity registers e, replacing any existing entity with the same ID.
//
// Postcondition: The registry contains e; subscribers receive a new snapshot.
func (e *Engine) AddEntity(ent Entity) {
	e.mu.Lock()
	ent.normalize()
	if _, exists := e.entities[ent.ID]; !exists {
		e.order = append(e.order, ent.ID)
	}
	e.entities[ent.ID] = &ent
	e.refreshCombatLocked()
	snap := e.snapshotLocked()
	e.mu.Unlock()
	e.hub.Publish(snap)
}

// Patch holds the optional fields of an entity update. Nil members leave
// the current value unchanged.
type Patch struct {
	Name     *string
	HP       *int
	MaxHP    *int
	Attack   *int
	Defense  *int
	Speed    *int
	Accuracy *int
	Evasion  *int
	Level    *int
	Pos      *Position
	Facing   *float64
	Weapon   *string
}

// UpdateEntity merges the non-nil fields of p into the entity with the
// given ID.
//
// Postcondition: Returns false and leaves state unchanged if the ID is
// unknown; otherwise applies the patch, re-clamps hp, and broadcasts.
func (e *Engine) UpdateEntity(id string, p Patch) bool {
	e.mu.Lock()
	ent, ok := e.entities[id]
	if !ok {
		e.mu.Unlock()
		return false
	}
	if p.Name != nil {
		ent.Name = *p.Name
	}
	if p.MaxHP != nil {
		ent.MaxHP = *p.MaxHP
	}
	if p.HP != nil {
		ent.HP = *p.HP
	}
	if p.Attack != nil {
		ent.Attack = *p.Attack
	}
	if p.Defense != nil {
		ent.Defense = *p.Defense
	}
	if p.Speed != nil {
		ent.Speed = *p.Speed
	}
	if p.Accuracy != nil {
		ent.Accuracy = *p.Accuracy
	}
	if p.Evasion != nil {
		ent.Evasion = *p.Evasion
	}
	if p.Level != nil {
		ent.Level = *p.Level
	}
	if p.Pos != nil {
		ent.Pos = *p.Pos
	}
	if p.Facing != nil {
		ent.Facing = *p.Facing
	}
	if p.Weapon != nil {
		ent.Weapon = *p.Weapon
	}
	ent.normalize()
	e.refreshCombatLocked()
	snap := e.snapshotLocked()
	e.mu.Unlock()
	e.hub.Publish(snap)
	return true
}

// RemoveEntity deletes the entity with the given ID. If it was selected,
// the selection is cleared. Queued actions referencing it are dropped
// silently at tick time.
//
// Postcondition: Returns false if the ID is unknown; otherwise the entity
// is gone and subscribers receive a new snapshot.
func (e *Engine) RemoveEntity(id string) bool {
	e.mu.Lock()
	if _, ok := e.entities[id]; !ok {
		e.mu.Unlock()
		return false
	}
	e.removeEntityLocked(id)
	e.refreshCombatLocked()
	snap := e.snapshotLocked()
	e.mu.Unlock()
	e.hub.Publish(snap)
	return true
}

func (e *Engine) removeEntityLocked(id string) {
	delete(e.entities, id)
	for i, oid := range e.order {
		if oid == id {
			e.order = append(e.order[:i], e.order[i+1:]...)
			break
		}
	}
	if e.selected == id {
		e.selected = ""
	}
}

// ClearTransient removes every non-persistent entity, pruning their queued
// actions. Called on a confirmed room transition; clearing an already
// cleared roster is a no-op.
func (e *Engine) ClearTransient() {
	e.mu.Lock()
	removed := make(map[string]bool)
	for id, ent := range e.entities {
		if !ent.Persistent {
			removed[id] = true
		}
	}
	for id := range removed {
		e.removeEntityLocked(id)
	}
	if len(removed) > 0 {
		kept := e.queue[:0]
		for _, qa := range e.queue {
			if !removed[qa.EntityID] {
				kept = append(kept, qa)
			}
		}
		e.queue = kept
	}
	e.refreshCombatLocked()
	snap := e.snapshotLocked()
	e.mu.Unlock()
	e.hub.Publish(snap)
}

// Entity returns a copy of the entity with the given ID.
//
// Postcondition: Returns (copy, true) if found, or (Entity{}, false) otherwise.
func (e *Engine) Entity(id string) (Entity, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	ent, ok := e.entities[id]
	if !ok {
		return Entity{}, false
	}
	return ent.clone(), true
}

// SelectEntity marks the entity with the given ID as selected; an empty ID
// clears the selection.
//
// Postcondition: Returns false and leaves state unchanged for unknown IDs.
func (e *Engine) SelectEntity(id string) bool {
	e.mu.Lock()
	if id != "" {
		if _, ok := e.entities[id]; !ok {
			e.mu.Unlock()
			return false
		}
	}
	if prev, ok := e.entities[e.selected]; ok {
		prev.Selected = false
	}
	e.selected = id
	if ent, ok := e.entities[id]; ok {
		ent.Selected = true
	}
	snap := e.snapshotLocked()
	e.mu.Unlock()
	e.hub.Publish(snap)
	return true
}

// AvailableActions returns the definitions the entity may queue right now:
// off cooldown and, for player-only actions, kind-permitted. Defeated or
// unknown entities have no available actions.
func (e *Engine) AvailableActions(entityID string) []action.Definition {
	e.mu.Lock()
	defer e.mu.Unlock()
	ent, ok := e.entities[entityID]
	if !ok || ent.IsDefeated() {
		return nil
	}
	now := e.now()
	var out []action.Definition
	for _, def := range e.table.All() {
		if def.PlayerOnly && ent.Kind != KindPlayer {
			continue
		}
		if now.Before(ent.ReadyAt(def.ID, def.Cooldown)) {
			continue
		}
		out = append(out, def)
	}
	return out
}

// InCombat reports whether at least one living hostile and one living
// player-aligned entity currently coexist in the registry.
func (e *Engine) InCombat() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.inCombat
}

// Snapshot returns a copy of the externally visible combat state.
func (e *Engine) Snapshot() Snapshot {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.snapshotLocked()
}

// Subscribe registers fn to receive the current snapshot immediately and a
// new snapshot after every mutation. The returned function unsubscribes.
func (e *Engine) Subscribe(fn func(Snapshot)) (unsubscribe func()) {
	e.mu.Lock()
	snap := e.snapshotLocked()
	e.mu.Unlock()
	fn(snap)
	return e.hub.Subscribe(fn)
}

// snapshotLocked builds a deep-copied snapshot. Caller must hold e.mu.
func (e *Engine) snapshotLocked() Snapshot {
	snap := Snapshot{
		Entities:    make([]Entity, 0, len(e.order)),
		Queue:       make([]QueuedAction, 0, len(e.queue)),
		InCombat:    e.inCombat,
		CombatStart: e.combatStart,
		SelectedID:  e.selected,
	}
	for _, id := range e.order {
		snap.Entities = append(snap.Entities, e.entities[id].clone())
	}
	for _, qa := range e.sortedQueueLocked() {
		snap.Queue = append(snap.Queue, *qa)
	}
	return snap
}

// refreshCombatLocked re-evaluates the in-combat flag: true iff a living
// hostile and a living player-aligned entity coexist. Caller must hold e.mu.
func (e *Engine) refreshCombatLocked() {
	hostile, aligned := false, false
	for _, ent := range e.entities {
		if ent.IsDefeated() {
			continue
		}
		switch {
		case ent.Kind == KindHostile:
			hostile = true
		case ent.Kind.PlayerAligned():
			aligned = true
		}
	}
	active := hostile && aligned
	if active && !e.inCombat {
		e.combatStart = e.now()
	}
	if !active {
		e.combatStart = time.Time{}
	}
	e.inCombat = active
}
