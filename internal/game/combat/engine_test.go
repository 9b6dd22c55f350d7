package combat_test

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cory-johannsen/crawl/internal/game/action"
	"github.com/cory-johannsen/crawl/internal/game/combat"
)

// fakeClock is a manually advanced clock injected into the engine so
// cooldowns and execution timestamps are deterministic.
type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{t: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(d)
}

// fixedSource always returns the same roll. 0 guarantees hits; 9999
// guarantees misses.
type fixedSource struct{ roll int }

func (s fixedSource) Intn(n int) int { return s.roll % n }

// countingRecorder tallies recorder events for assertions.
type countingRecorder struct {
	mu       sync.Mutex
	queued   int
	executed map[string]int
	rejected map[string]int
}

func newCountingRecorder() *countingRecorder {
	return &countingRecorder{
		executed: make(map[string]int),
		rejected: make(map[string]int),
	}
}

func (r *countingRecorder) ActionQueued() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.queued++
}

func (r *countingRecorder) ActionExecuted(kind string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.executed[kind]++
}

func (r *countingRecorder) ActionRejected(reason string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.rejected[reason]++
}

func (r *countingRecorder) RoomTransition()            {}
func (r *countingRecorder) TickObserved(time.Duration) {}

func (r *countingRecorder) rejectedCount(reason string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.rejected[reason]
}

func player(id string) combat.Entity {
	return combat.Entity{
		ID: id, Name: "Hero", Kind: combat.KindPlayer,
		HP: 40, MaxHP: 40, Attack: 10, Defense: 6,
		Accuracy: 70, Evasion: 30, Level: 1,
		Pos: combat.Position{X: 50, Y: 50}, Persistent: true,
	}
}

func goblin(id string) combat.Entity {
	return combat.Entity{
		ID: id, Name: "Goblin", Kind: combat.KindHostile,
		HP: 20, MaxHP: 20, Attack: 6, Defense: 2,
		Accuracy: 50, Evasion: 20, Level: 1,
		Pos: combat.Position{X: 55, Y: 50},
	}
}

// TestEngine_AddEntity verifies registration, normalization, and
// same-ID replacement.
func TestEngine_AddEntity(t *testing.T) {
	e := combat.NewEngine(action.DefaultTable())
	defer e.Close()

	e.AddEntity(combat.Entity{ID: "p1", Kind: combat.KindPlayer, HP: 99, MaxHP: 40})
	ent, ok := e.Entity("p1")
	require.True(t, ok)
	assert.Equal(t, 40, ent.HP, "hp clamps to MaxHP at registration")

	e.AddEntity(combat.Entity{ID: "p1", Kind: combat.KindPlayer, Name: "Renamed", HP: 10, MaxHP: 40})
	ent, ok = e.Entity("p1")
	require.True(t, ok)
	assert.Equal(t, "Renamed", ent.Name, "same-ID registration replaces the record")

	snap := e.Snapshot()
	assert.Len(t, snap.Entities, 1)
}

// TestEngine_UpdateEntity verifies partial patches and the unknown-ID
// rejection.
func TestEngine_UpdateEntity(t *testing.T) {
	e := combat.NewEngine(action.DefaultTable())
	defer e.Close()
	e.AddEntity(player("p1"))

	hp := 12
	pos := combat.Position{X: 30, Y: 70}
	require.True(t, e.UpdateEntity("p1", combat.Patch{HP: &hp, Pos: &pos}))

	ent, _ := e.Entity("p1")
	assert.Equal(t, 12, ent.HP)
	assert.Equal(t, pos, ent.Pos)
	assert.Equal(t, "Hero", ent.Name, "unset patch fields stay unchanged")

	assert.False(t, e.UpdateEntity("ghost", combat.Patch{HP: &hp}))
}

// TestEngine_RemoveEntity verifies removal clears selection.
func TestEngine_RemoveEntity(t *testing.T) {
	e := combat.NewEngine(action.DefaultTable())
	defer e.Close()
	e.AddEntity(player("p1"))
	require.True(t, e.SelectEntity("p1"))

	require.True(t, e.RemoveEntity("p1"))
	assert.False(t, e.RemoveEntity("p1"), "double removal reports false")

	snap := e.Snapshot()
	assert.Empty(t, snap.SelectedID, "removing the selected entity clears the selection")
}

// TestEngine_SelectEntity verifies selection moves the flag between
// entities and an empty ID clears it.
func TestEngine_SelectEntity(t *testing.T) {
	e := combat.NewEngine(action.DefaultTable())
	defer e.Close()
	e.AddEntity(player("p1"))
	e.AddEntity(goblin("g1"))

	require.True(t, e.SelectEntity("g1"))
	ent, _ := e.Entity("g1")
	assert.True(t, ent.Selected)

	require.True(t, e.SelectEntity("p1"))
	ent, _ = e.Entity("g1")
	assert.False(t, ent.Selected, "selection is exclusive")

	require.True(t, e.SelectEntity(""))
	assert.Empty(t, e.Snapshot().SelectedID)

	assert.False(t, e.SelectEntity("ghost"), "unknown IDs leave the selection unchanged")
}

// TestEngine_AvailableActions verifies the cooldown and player-only
// filters.
func TestEngine_AvailableActions(t *testing.T) {
	clock := newFakeClock()
	e := combat.NewEngine(action.DefaultTable(), combat.WithClock(clock.Now))
	defer e.Close()
	e.AddEntity(player("p1"))
	e.AddEntity(goblin("g1"))

	ids := func(defs []action.Definition) []string {
		out := make([]string, 0, len(defs))
		for _, d := range defs {
			out = append(out, d.ID)
		}
		return out
	}

	assert.Contains(t, ids(e.AvailableActions("p1")), "power_strike")
	assert.NotContains(t, ids(e.AvailableActions("g1")), "power_strike",
		"player-only actions are hidden from hostiles")

	require.True(t, e.QueueAction("p1", "basic_attack", "g1", nil))
	assert.NotContains(t, ids(e.AvailableActions("p1")), "basic_attack",
		"queueing starts the cooldown immediately")

	clock.Advance(2 * time.Second)
	assert.Contains(t, ids(e.AvailableActions("p1")), "basic_attack",
		"the action returns once the cooldown elapses")

	assert.Nil(t, e.AvailableActions("ghost"))
}

// TestEngine_InCombat verifies the flag requires a living hostile and a
// living player-aligned entity to coexist.
func TestEngine_InCombat(t *testing.T) {
	e := combat.NewEngine(action.DefaultTable())
	defer e.Close()

	e.AddEntity(player("p1"))
	assert.False(t, e.InCombat(), "a lone player is not in combat")

	e.AddEntity(combat.Entity{ID: "n1", Kind: combat.KindNeutral, HP: 1, MaxHP: 1})
	assert.False(t, e.InCombat(), "neutrals never start combat")

	e.AddEntity(goblin("g1"))
	assert.True(t, e.InCombat())
	assert.False(t, e.Snapshot().CombatStart.IsZero(), "combat start is stamped on entry")

	hp := 0
	e.UpdateEntity("g1", combat.Patch{HP: &hp})
	assert.False(t, e.InCombat(), "a defeated hostile ends combat")
	assert.True(t, e.Snapshot().CombatStart.IsZero(), "combat start resets on exit")
}

// TestEngine_ClearTransient verifies non-persistent entities and their
// queued actions are dropped while the player survives.
func TestEngine_ClearTransient(t *testing.T) {
	e := combat.NewEngine(action.DefaultTable(), combat.WithTickInterval(time.Hour))
	defer e.Close()
	e.AddEntity(player("p1"))
	e.AddEntity(goblin("g1"))

	require.True(t, e.QueueAction("g1", "basic_attack", "p1", nil))
	require.True(t, e.QueueMoveAction("p1", combat.Position{X: 60, Y: 60}))

	e.ClearTransient()

	_, ok := e.Entity("g1")
	assert.False(t, ok, "transient entities are removed")
	_, ok = e.Entity("p1")
	assert.True(t, ok, "persistent entities survive")

	snap := e.Snapshot()
	require.Len(t, snap.Queue, 1, "the removed entity's queue entry is pruned")
	assert.Equal(t, "p1", snap.Queue[0].EntityID)
	assert.False(t, snap.InCombat)
}

// TestEngine_Subscribe verifies the immediate snapshot, change
// notifications, and unsubscription.
func TestEngine_Subscribe(t *testing.T) {
	e := combat.NewEngine(action.DefaultTable())
	defer e.Close()

	var mu sync.Mutex
	var got []combat.Snapshot
	unsubscribe := e.Subscribe(func(s combat.Snapshot) {
		mu.Lock()
		defer mu.Unlock()
		got = append(got, s)
	})

	mu.Lock()
	require.Len(t, got, 1, "subscribers receive the current snapshot immediately")
	mu.Unlock()

	e.AddEntity(player("p1"))
	mu.Lock()
	require.Len(t, got, 2)
	assert.Len(t, got[1].Entities, 1)
	mu.Unlock()

	unsubscribe()
	e.AddEntity(goblin("g1"))
	mu.Lock()
	assert.Len(t, got, 2, "no notifications after unsubscribing")
	mu.Unlock()
}
