// Package combat implements the real-time room combat engine: the entity
// registry, the timestamp-driven action scheduler, and the resolver that
// applies movement, attacks, and abilities.
package combat

import (
	"fmt"
	"math"
	"time"
)

// Kind is the closed set of combatant alignments.
type Kind int

const (
	KindPlayer Kind = iota
	KindHostile
	KindNeutral
	KindAlly
)

// String returns a human-readable kind label.
func (k Kind) String() string {
	switch k {
	case KindPlayer:
		return "player"
	case KindHostile:
		return "hostile"
	case KindNeutral:
		return "neutral"
	case KindAlly:
		return "ally"
	default:
		return "unknown"
	}
}

// ParseKind converts a kind label to a Kind.
//
// Postcondition: Returns a valid Kind, or an error for unrecognized labels.
func ParseKind(s string) (Kind, error) {
	switch s {
	case "player":
		return KindPlayer, nil
	case "hostile":
		return KindHostile, nil
	case "neutral":
		return KindNeutral, nil
	case "ally":
		return KindAlly, nil
	default:
		return 0, fmt.Errorf("unknown entity kind %q", s)
	}
}

// PlayerAligned reports whether the kind fights on the player's side.
func (k Kind) PlayerAligned() bool {
	return k == KindPlayer || k == KindAlly
}

// Room-space position bounds. Ordinary movement clamps to the wall bounds;
// a queued move may land in the overshoot band while crossing a gate,
// before room entry normalizes it.
const (
	WallMin      = 5.0
	WallMax      = 95.0
	OvershootMin = -10.0
	OvershootMax = 110.0
)

// Position is a continuous room-local coordinate pair, nominally bounded
// [0,100] on each axis.
type Position struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// DistanceTo returns the Euclidean distance to q in room-space units.
func (p Position) DistanceTo(q Position) float64 {
	dx := p.X - q.X
	dy := p.Y - q.Y
	return math.Hypot(dx, dy)
}

// ClampWalls returns p clamped to the wall bounds on both axes.
func (p Position) ClampWalls() Position {
	return Position{
		X: clampFloat(p.X, WallMin, WallMax),
		Y: clampFloat(p.Y, WallMin, WallMax),
	}
}

// ClampOvershoot returns p clamped to the extended overshoot bounds.
func (p Position) ClampOvershoot() Position {
	return Position{
		X: clampFloat(p.X, OvershootMin, OvershootMax),
		Y: clampFloat(p.Y, OvershootMin, OvershootMax),
	}
}

// FacingDegrees converts a displacement vector into a facing angle in
// degrees, 0 = north, clockwise positive, normalized to [0,360).
//
// Postcondition: Returns (angle, true) for a nonzero vector, or (0, false)
// for the zero vector (facing unchanged by convention).
func FacingDegrees(dx, dy float64) (float64, bool) {
	if dx == 0 && dy == 0 {
		return 0, false
	}
	deg := math.Atan2(dx, -dy) * 180 / math.Pi
	deg = math.Mod(deg, 360)
	if deg < 0 {
		deg += 360
	}
	return deg, true
}

// Entity is one combatant record. Entities are owned exclusively by the
// engine; callers receive copies and mutate only through engine operations.
type Entity struct {
	ID       string
	Name     string
	Kind     Kind
	HP       int
	MaxHP    int
	Attack   int
	Defense  int
	Speed    int
	Accuracy int
	Evasion  int
	Level    int
	Pos      Position
	// Facing is the heading in degrees, [0,360), 0 = north.
	Facing float64
	// Defeated is terminal: a defeated entity stays in the registry as
	// inert until removal and is excluded from targeting.
	Defeated bool
	Selected bool
	// Weapon is the optional equipped weapon reference.
	Weapon string
	// LastAction is the label of the most recently resolved action.
	LastAction string
	// Persistent entities survive room transitions (the player); all others
	// are cleared when a transition is confirmed.
	Persistent bool

	// cooldowns maps action ID to the time the action was last queued.
	cooldowns map[string]time.Time
}

// IsDefeated reports whether the entity is out of the fight.
func (e *Entity) IsDefeated() bool {
	return e.Defeated || e.HP <= 0
}

// ApplyDamage reduces HP by amount, flooring at zero. Reaching zero marks
// the entity defeated.
//
// Precondition: amount >= 0.
// Postcondition: HP in [0, MaxHP]; Defeated is true if HP reached 0.
func (e *Entity) ApplyDamage(amount int) {
	e.HP -= amount
	if e.HP <= 0 {
		e.HP = 0
		e.Defeated = true
	}
}

// ApplyHeal raises HP by amount, capped at MaxHP. Healing does not revive
// a defeated entity.
//
// Precondition: amount >= 0.
// Postcondition: HP in [0, MaxHP].
func (e *Entity) ApplyHeal(amount int) {
	if e.Defeated {
		return
	}
	e.HP += amount
	if e.HP > e.MaxHP {
		e.HP = e.MaxHP
	}
}

// ReadyAt returns the earliest instant the entity may use the action again.
// The zero time means the action has never been used.
func (e *Entity) ReadyAt(actionID string, cooldown time.Duration) time.Time {
	last, ok := e.cooldowns[actionID]
	if !ok {
		return time.Time{}
	}
	return last.Add(cooldown)
}

// normalize resolves defaulted fields at registration: hp is clamped into
// [0, MaxHP] and the cooldown map is allocated.
func (e *Entity) normalize() {
	if e.MaxHP < 1 {
		e.MaxHP = 1
	}
	if e.HP > e.MaxHP {
		e.HP = e.MaxHP
	}
	if e.HP < 0 {
		e.HP = 0
	}
	if e.HP == 0 {
		e.Defeated = true
	}
	if e.cooldowns == nil {
		e.cooldowns = make(map[string]time.Time)
	}
}

// clone returns a deep copy safe to hand to subscribers.
func (e *Entity) clone() Entity {
	cp := *e
	cp.cooldowns = make(map[string]time.Time, len(e.cooldowns))
	for k, v := range e.cooldowns {
		cp.cooldowns[k] = v
	}
	return cp
}

func clampFloat(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
