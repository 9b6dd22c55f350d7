package combat

import (
	"math/rand"
	"sort"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/cory-johannsen/crawl/internal/game/action"
)

// Rejection reasons passed to the Recorder when a queue request fails.
const (
	RejectUnknownEntity = "unknown_entity"
	RejectUnknownAction = "unknown_action"
	RejectDefeated      = "defeated"
	RejectOnCooldown    = "on_cooldown"
	RejectBusy          = "busy"
	RejectNotPermitted  = "not_permitted"
	RejectInvalidTarget = "invalid_target"
	RejectOutOfRange    = "out_of_range"
)

// QueuedAction is one pending entry in the scheduler's queue. It exists
// only between acceptance and execution or cancellation.
type QueuedAction struct {
	// ID uniquely identifies the queue entry, for cancellation.
	ID string
	// EntityID is the acting entity.
	EntityID string
	// Action is the definition being executed.
	Action action.Definition
	// TargetID is the target entity for attacks and targeted abilities.
	TargetID string
	// TargetPos is the destination for moves.
	TargetPos *Position
	// QueuedAt is the acceptance time.
	QueuedAt time.Time
	// ExecutesAt is when the effect applies: QueuedAt + ExecutionTime.
	ExecutesAt time.Time

	// seq breaks ExecutesAt ties in insertion order.
	seq uint64
}

// QueueAction validates and enqueues an action for the given entity.
// The cooldown is stamped at queue time, not completion: repeat input is
// locked out immediately, and cancellation does not refund it.
//
// Postcondition: Returns false with no state change when the entity or
// action is unknown, the entity is defeated or not permitted the action,
// the action is on cooldown, or the entity already has a pending action.
// On success the entry is queued, the cooldown is stamped, the tick loop
// is running, and subscribers receive a new snapshot.
func (e *Engine) QueueAction(entityID, actionID, targetID string, targetPos *Position) bool {
	e.mu.Lock()
	ent, ok := e.entities[entityID]
	if !ok {
		e.mu.Unlock()
		e.rec.ActionRejected(RejectUnknownEntity)
		return false
	}
	def, ok := e.table.Get(actionID)
	if !ok {
		e.mu.Unlock()
		e.rec.ActionRejected(RejectUnknownAction)
		return false
	}
	if ent.IsDefeated() {
		e.mu.Unlock()
		e.rec.ActionRejected(RejectDefeated)
		return false
	}
	if def.PlayerOnly && ent.Kind != KindPlayer {
		e.mu.Unlock()
		e.rec.ActionRejected(RejectNotPermitted)
		return false
	}
	now := e.now()
	if now.Before(ent.ReadyAt(def.ID, def.Cooldown)) {
		e.mu.Unlock()
		e.rec.ActionRejected(RejectOnCooldown)
		return false
	}
	if def.Type == action.TypeAttack {
		target, ok := e.entities[targetID]
		if !ok || target.IsDefeated() || !validAttackTarget(ent, target) {
			e.mu.Unlock()
			e.rec.ActionRejected(RejectInvalidTarget)
			return false
		}
		if !InRange(ent.Pos, target.Pos, def.Range) {
			e.mu.Unlock()
			e.rec.ActionRejected(RejectOutOfRange)
			return false
		}
	}
	// Single-action-in-flight: a busy entity's request is rejected, not
	// queued behind the pending one.
	for _, qa := range e.queue {
		if qa.EntityID == entityID {
			e.mu.Unlock()
			e.rec.ActionRejected(RejectBusy)
			return false
		}
	}

	e.seq++
	qa := &QueuedAction{
		ID:         uuid.NewString(),
		EntityID:   entityID,
		Action:     def,
		TargetID:   targetID,
		QueuedAt:   now,
		ExecutesAt: now.Add(def.ExecutionTime),
		seq:        e.seq,
	}
	if targetPos != nil {
		pos := *targetPos
		qa.TargetPos = &pos
	}
	e.queue = append(e.queue, qa)
	ent.cooldowns[def.ID] = now
	e.startTickLocked()
	snap := e.snapshotLocked()
	e.mu.Unlock()

	e.rec.ActionQueued()
	e.logger.Debug("action queued",
		zap.String("entity", entityID),
		zap.String("action", actionID),
		zap.Time("executes_at", qa.ExecutesAt),
	)
	e.hub.Publish(snap)
	return true
}

// QueueMoveAction enqueues a move toward pos for the given entity.
//
// Postcondition: Same rejection semantics as QueueAction.
func (e *Engine) QueueMoveAction(entityID string, pos Position) bool {
	return e.QueueAction(entityID, "move", "", &pos)
}

// CancelAction removes the not-yet-executed queue entry with the given ID.
// It is a no-op if absent, and never refunds the cooldown charged at queue
// time.
func (e *Engine) CancelAction(actionID string) {
	e.mu.Lock()
	found := false
	for i, qa := range e.queue {
		if qa.ID == actionID {
			e.queue = append(e.queue[:i], e.queue[i+1:]...)
			found = true
			break
		}
	}
	if !found {
		e.mu.Unlock()
		return
	}
	snap := e.snapshotLocked()
	e.mu.Unlock()
	e.hub.Publish(snap)
}

// startTickLocked launches the tick goroutine if it is dormant. Caller
// must hold e.mu.
func (e *Engine) startTickLocked() {
	if e.ticking || e.closed {
		return
	}
	e.ticking = true
	go e.runTicker()
}

// runTicker dispatches ready actions every tick interval and exits once
// the queue drains; QueueAction restarts it lazily.
func (e *Engine) runTicker() {
	ticker := time.NewTicker(e.tickInt)
	defer ticker.Stop()
	for {
		select {
		case <-e.done:
			return
		case <-ticker.C:
			start := time.Now()
			empty := e.dispatchDue()
			e.rec.TickObserved(time.Since(start))
			if empty {
				e.mu.Lock()
				// Re-check under the lock: an action may have been
				// queued between the dispatch and here.
				if len(e.queue) == 0 {
					e.ticking = false
					e.mu.Unlock()
					return
				}
				e.mu.Unlock()
			}
		}
	}
}

// dispatchDue executes every queue entry whose ExecutesAt has arrived, in
// ascending ExecutesAt order with ties broken by insertion order, then
// reports whether the queue is empty.
func (e *Engine) dispatchDue() bool {
	e.mu.Lock()
	now := e.now()

	var due []*QueuedAction
	remaining := e.queue[:0]
	for _, qa := range e.queue {
		if !qa.ExecutesAt.After(now) {
			due = append(due, qa)
		} else {
			remaining = append(remaining, qa)
		}
	}
	e.queue = remaining

	if len(due) == 0 {
		empty := len(e.queue) == 0
		e.mu.Unlock()
		return empty
	}

	sort.SliceStable(due, func(i, j int) bool {
		if due[i].ExecutesAt.Equal(due[j].ExecutesAt) {
			return due[i].seq < due[j].seq
		}
		return due[i].ExecutesAt.Before(due[j].ExecutesAt)
	})

	for _, qa := range due {
		e.executeLocked(qa)
	}
	e.refreshCombatLocked()
	empty := len(e.queue) == 0
	snap := e.snapshotLocked()
	e.mu.Unlock()
	e.hub.Publish(snap)
	return empty
}

// sortedQueueLocked returns the pending entries ordered by (ExecutesAt,
// insertion). Caller must hold e.mu.
func (e *Engine) sortedQueueLocked() []*QueuedAction {
	out := make([]*QueuedAction, len(e.queue))
	copy(out, e.queue)
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].ExecutesAt.Equal(out[j].ExecutesAt) {
			return out[i].seq < out[j].seq
		}
		return out[i].ExecutesAt.Before(out[j].ExecutesAt)
	})
	return out
}

// lockedSource is the default hit-roll source. The top-level math/rand
// functions are safe for concurrent use and auto-seeded.
type lockedSource struct{}

func newLockedSource() Source { return lockedSource{} }

func (lockedSource) Intn(n int) int { return rand.Intn(n) }
