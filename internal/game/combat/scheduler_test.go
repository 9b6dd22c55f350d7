package combat_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cory-johannsen/crawl/internal/game/action"
	"github.com/cory-johannsen/crawl/internal/game/combat"
)

const (
	testTick  = 2 * time.Millisecond
	waitFor   = 2 * time.Second
	pollEvery = 2 * time.Millisecond
)

// newTestEngine builds an engine with a controllable clock, a rigged roll
// source, and a fast real ticker.
func newTestEngine(t *testing.T, roll int) (*combat.Engine, *fakeClock, *countingRecorder) {
	t.Helper()
	clock := newFakeClock()
	rec := newCountingRecorder()
	e := combat.NewEngine(action.DefaultTable(),
		combat.WithClock(clock.Now),
		combat.WithSource(fixedSource{roll: roll}),
		combat.WithTickInterval(testTick),
		combat.WithRecorder(rec),
	)
	t.Cleanup(e.Close)
	return e, clock, rec
}

// TestQueueAction_Validation verifies every rejection path reports the
// matching reason and leaves state unchanged.
func TestQueueAction_Validation(t *testing.T) {
	e, _, rec := newTestEngine(t, 0)
	e.AddEntity(player("p1"))
	e.AddEntity(goblin("g1"))
	e.AddEntity(combat.Entity{ID: "n1", Kind: combat.KindNeutral, HP: 1, MaxHP: 1,
		Pos: combat.Position{X: 52, Y: 50}})
	e.AddEntity(combat.Entity{ID: "dead", Kind: combat.KindHostile, HP: 0, MaxHP: 10})

	assert.False(t, e.QueueAction("ghost", "basic_attack", "g1", nil))
	assert.Equal(t, 1, rec.rejectedCount(combat.RejectUnknownEntity))

	assert.False(t, e.QueueAction("p1", "fireball", "g1", nil))
	assert.Equal(t, 1, rec.rejectedCount(combat.RejectUnknownAction))

	assert.False(t, e.QueueAction("dead", "basic_attack", "p1", nil))
	assert.Equal(t, 1, rec.rejectedCount(combat.RejectDefeated))

	assert.False(t, e.QueueAction("g1", "power_strike", "p1", nil))
	assert.Equal(t, 1, rec.rejectedCount(combat.RejectNotPermitted))

	assert.False(t, e.QueueAction("p1", "basic_attack", "n1", nil),
		"neutrals are never valid attack targets")
	assert.False(t, e.QueueAction("p1", "basic_attack", "dead", nil),
		"defeated entities are never valid attack targets")
	assert.Equal(t, 2, rec.rejectedCount(combat.RejectInvalidTarget))

	far := goblin("far")
	far.Pos = combat.Position{X: 90, Y: 90}
	e.AddEntity(far)
	assert.False(t, e.QueueAction("p1", "basic_attack", "far", nil))
	assert.Equal(t, 1, rec.rejectedCount(combat.RejectOutOfRange))

	assert.Empty(t, e.Snapshot().Queue, "every rejection leaves the queue empty")
}

// TestQueueAction_CooldownStampedAtQueueTime verifies repeat input is
// locked out the instant an action is accepted.
func TestQueueAction_CooldownStampedAtQueueTime(t *testing.T) {
	e, clock, rec := newTestEngine(t, 0)
	e.AddEntity(player("p1"))
	e.AddEntity(goblin("g1"))

	require.True(t, e.QueueAction("p1", "basic_attack", "g1", nil))

	// The entry has not executed yet, but the cooldown already applies
	// and the entity is busy.
	assert.False(t, e.QueueAction("p1", "basic_attack", "g1", nil))
	assert.Equal(t, 1, rec.rejectedCount(combat.RejectOnCooldown))

	// After the queue drains the cooldown still holds until it elapses.
	clock.Advance(500 * time.Millisecond)
	require.Eventually(t, func() bool {
		return len(e.Snapshot().Queue) == 0
	}, waitFor, pollEvery, "the entry must dispatch once its timestamp arrives")

	assert.False(t, e.QueueAction("p1", "basic_attack", "g1", nil),
		"the 1200ms cooldown is still running at +500ms")

	clock.Advance(time.Second)
	assert.True(t, e.QueueAction("p1", "basic_attack", "g1", nil),
		"the action is available again once the cooldown elapses")
}

// TestQueueAction_SingleActionInFlight verifies a busy entity's second
// request is rejected rather than replacing or queueing behind the first.
func TestQueueAction_SingleActionInFlight(t *testing.T) {
	e, _, rec := newTestEngine(t, 0)
	e.AddEntity(player("p1"))
	e.AddEntity(goblin("g1"))

	require.True(t, e.QueueAction("p1", "basic_attack", "g1", nil))
	assert.False(t, e.QueueMoveAction("p1", combat.Position{X: 20, Y: 20}),
		"a second request while one is pending is rejected")
	assert.Equal(t, 1, rec.rejectedCount(combat.RejectBusy))

	snap := e.Snapshot()
	require.Len(t, snap.Queue, 1)
	assert.Equal(t, "basic_attack", snap.Queue[0].Action.ID, "the original entry is untouched")
}

// TestDispatch_AttackHit verifies a guaranteed hit applies the damage
// formula against the live target.
func TestDispatch_AttackHit(t *testing.T) {
	e, clock, _ := newTestEngine(t, 0)
	p := player("p1")
	p.Attack = 15
	p.Level = 5
	e.AddEntity(p)
	g := goblin("g1")
	g.Defense = 7
	g.HP, g.MaxHP = 20, 20
	e.AddEntity(g)

	require.True(t, e.QueueAction("p1", "basic_attack", "g1", nil))
	clock.Advance(time.Second)

	require.Eventually(t, func() bool {
		ent, _ := e.Entity("g1")
		return ent.HP == 8
	}, waitFor, pollEvery, "damage must be floor(15+0.5-3.5) = 12")

	ent, _ := e.Entity("p1")
	assert.Equal(t, "basic_attack", ent.LastAction)
}

// TestDispatch_AttackMiss verifies a guaranteed miss leaves the target
// untouched.
func TestDispatch_AttackMiss(t *testing.T) {
	e, clock, _ := newTestEngine(t, 9999)
	e.AddEntity(player("p1"))
	e.AddEntity(goblin("g1"))

	require.True(t, e.QueueAction("p1", "basic_attack", "g1", nil))
	clock.Advance(time.Second)

	require.Eventually(t, func() bool {
		return len(e.Snapshot().Queue) == 0
	}, waitFor, pollEvery)

	ent, _ := e.Entity("g1")
	assert.Equal(t, 20, ent.HP, "a missed attack deals no damage")
}

// TestDispatch_DefeatEndsCombat verifies a killing blow marks the target
// defeated and drops the in-combat flag.
func TestDispatch_DefeatEndsCombat(t *testing.T) {
	e, clock, _ := newTestEngine(t, 0)
	p := player("p1")
	p.Attack = 100
	e.AddEntity(p)
	e.AddEntity(goblin("g1"))
	require.True(t, e.InCombat())

	require.True(t, e.QueueAction("p1", "basic_attack", "g1", nil))
	clock.Advance(time.Second)

	require.Eventually(t, func() bool {
		ent, _ := e.Entity("g1")
		return ent.Defeated
	}, waitFor, pollEvery)

	assert.False(t, e.InCombat(), "combat ends when the last hostile falls")

	// The corpse stays registered but cannot act or be attacked.
	assert.False(t, e.QueueAction("g1", "basic_attack", "p1", nil))
	clock.Advance(2 * time.Second)
	assert.False(t, e.QueueAction("p1", "basic_attack", "g1", nil))
}

// TestDispatch_TargetDiedBeforeExecution verifies an attack whose target
// fell between queue and dispatch resolves as a no-op.
func TestDispatch_TargetDiedBeforeExecution(t *testing.T) {
	e, clock, _ := newTestEngine(t, 0)
	e.AddEntity(player("p1"))
	e.AddEntity(goblin("g1"))

	require.True(t, e.QueueAction("p1", "basic_attack", "g1", nil))
	hp := 0
	e.UpdateEntity("g1", combat.Patch{HP: &hp})

	clock.Advance(time.Second)
	require.Eventually(t, func() bool {
		return len(e.Snapshot().Queue) == 0
	}, waitFor, pollEvery)

	ent, _ := e.Entity("p1")
	assert.Equal(t, "basic_attack", ent.LastAction,
		"the action still executes; only its effect fizzles")
}

// TestDispatch_OrphanedActionDropped verifies an entry whose actor was
// removed dispatches silently without effect.
func TestDispatch_OrphanedActionDropped(t *testing.T) {
	e, clock, rec := newTestEngine(t, 0)
	e.AddEntity(player("p1"))
	e.AddEntity(goblin("g1"))

	require.True(t, e.QueueAction("g1", "basic_attack", "p1", nil))
	require.True(t, e.RemoveEntity("g1"))

	clock.Advance(time.Second)
	require.Eventually(t, func() bool {
		return len(e.Snapshot().Queue) == 0
	}, waitFor, pollEvery)

	ent, _ := e.Entity("p1")
	assert.Equal(t, 40, ent.HP, "an orphaned attack must not land")
	rec.mu.Lock()
	executed := rec.executed["attack"]
	rec.mu.Unlock()
	assert.Zero(t, executed, "a dropped entry does not count as executed")
}

// TestDispatch_Ordering verifies due entries execute in timestamp order
// with insertion order breaking ties.
func TestDispatch_Ordering(t *testing.T) {
	e, clock, _ := newTestEngine(t, 0)
	p := player("p1")
	p.Attack = 100
	e.AddEntity(p)
	g := goblin("g1")
	g.Pos = combat.Position{X: 55, Y: 50}
	e.AddEntity(g)

	// p1's attack (400ms) lands before g1's (queued second with the same
	// execution time); after p1's strike kills g1, g1's entry fizzles.
	require.True(t, e.QueueAction("p1", "basic_attack", "g1", nil))
	require.True(t, e.QueueAction("g1", "basic_attack", "p1", nil))

	clock.Advance(time.Second)
	require.Eventually(t, func() bool {
		return len(e.Snapshot().Queue) == 0
	}, waitFor, pollEvery)

	hero, _ := e.Entity("p1")
	assert.Equal(t, 40, hero.HP, "the defeated goblin's simultaneous entry must not land")
	corpse, _ := e.Entity("g1")
	assert.True(t, corpse.Defeated)
}

// TestDispatch_MoveOvershoot verifies a queued move lands in the extended
// band beyond the walls.
func TestDispatch_MoveOvershoot(t *testing.T) {
	e, clock, _ := newTestEngine(t, 0)
	e.AddEntity(player("p1"))

	require.True(t, e.QueueMoveAction("p1", combat.Position{X: -30, Y: 120}))
	clock.Advance(time.Second)

	require.Eventually(t, func() bool {
		ent, _ := e.Entity("p1")
		return ent.Pos == combat.Position{X: -10, Y: 110}
	}, waitFor, pollEvery, "queued moves clamp to the overshoot band, not the walls")
}

// TestDispatch_AbilityHeal verifies the built-in heal restores the caster,
// capped at MaxHP.
func TestDispatch_AbilityHeal(t *testing.T) {
	e, clock, _ := newTestEngine(t, 0)
	p := player("p1")
	p.HP = 10
	e.AddEntity(p)

	require.True(t, e.QueueAction("p1", "heal", "", nil))
	clock.Advance(time.Second)

	require.Eventually(t, func() bool {
		ent, _ := e.Entity("p1")
		return ent.HP == 22
	}, waitFor, pollEvery, "heal restores its power (12) to the caster")
}

// TestCancelAction verifies cancellation removes the entry without
// refunding the cooldown, and that unknown IDs are a no-op.
func TestCancelAction(t *testing.T) {
	e, clock, _ := newTestEngine(t, 0)
	e.AddEntity(player("p1"))
	e.AddEntity(goblin("g1"))

	require.True(t, e.QueueAction("p1", "basic_attack", "g1", nil))
	snap := e.Snapshot()
	require.Len(t, snap.Queue, 1)

	e.CancelAction("not-a-queue-id")
	assert.Len(t, e.Snapshot().Queue, 1, "unknown IDs are a no-op")

	e.CancelAction(snap.Queue[0].ID)
	assert.Empty(t, e.Snapshot().Queue)

	clock.Advance(time.Second)
	ent, _ := e.Entity("g1")
	assert.Equal(t, 20, ent.HP, "a cancelled attack never lands")

	assert.False(t, e.QueueAction("p1", "basic_attack", "g1", nil),
		"cancellation does not refund the cooldown")
}

// TestScheduler_IdlesWhenDrained verifies the tick loop restarts cleanly
// after the queue empties.
func TestScheduler_IdlesWhenDrained(t *testing.T) {
	e, clock, _ := newTestEngine(t, 0)
	e.AddEntity(player("p1"))

	require.True(t, e.QueueMoveAction("p1", combat.Position{X: 60, Y: 60}))
	clock.Advance(time.Second)
	require.Eventually(t, func() bool {
		return len(e.Snapshot().Queue) == 0
	}, waitFor, pollEvery)

	// A second round must dispatch too, on a freshly started ticker.
	require.True(t, e.QueueMoveAction("p1", combat.Position{X: 70, Y: 70}))
	clock.Advance(time.Second)
	require.Eventually(t, func() bool {
		ent, _ := e.Entity("p1")
		return ent.Pos == combat.Position{X: 70, Y: 70}
	}, waitFor, pollEvery)
}
