package combat

import "github.com/cory-johannsen/crawl/internal/game/action"

// InRange reports whether a and b are within rng room-space units of each
// other. A zero rng never matches distinct positions.
func InRange(a, b Position, rng float64) bool {
	return a.DistanceTo(b) <= rng
}

// validAttackTarget applies the faction rules: player-aligned entities
// attack hostiles, hostiles attack player-aligned entities, and neutrals
// are never valid automatic targets in either role.
func validAttackTarget(attacker, target *Entity) bool {
	switch {
	case target.Kind == KindNeutral:
		return false
	case attacker.Kind.PlayerAligned():
		return target.Kind == KindHostile
	case attacker.Kind == KindHostile:
		return target.Kind.PlayerAligned()
	default:
		return false
	}
}

// ValidTargets returns copies of the entities the given entity may target
// with def: never itself or a defeated entity, always within def.Range,
// and faction-restricted for attack-type actions.
//
// Postcondition: Returns nil for unknown entity IDs.
func (e *Engine) ValidTargets(entityID string, def action.Definition) []Entity {
	e.mu.Lock()
	defer e.mu.Unlock()
	actor, ok := e.entities[entityID]
	if !ok {
		return nil
	}
	var out []Entity
	for _, id := range e.order {
		cand := e.entities[id]
		if cand.ID == actor.ID || cand.IsDefeated() {
			continue
		}
		if !InRange(actor.Pos, cand.Pos, def.Range) {
			continue
		}
		if def.Type == action.TypeAttack && !validAttackTarget(actor, cand) {
			continue
		}
		out = append(out, cand.clone())
	}
	return out
}

// CalculateDistance returns the room-space distance between two registered
// entities.
//
// Postcondition: Returns (distance, true), or (0, false) if either ID is
// unknown.
func (e *Engine) CalculateDistance(aID, bID string) (float64, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	a, okA := e.entities[aID]
	b, okB := e.entities[bID]
	if !okA || !okB {
		return 0, false
	}
	return a.Pos.DistanceTo(b.Pos), true
}

// ApproachBuffer is how far inside weapon range an approach move stops,
// leaving margin so the follow-up attack is not razor-edge on range.
const ApproachBuffer = 2.0

// ApproachPosition returns the point on the segment from→to at which an
// approaching entity should stop to bring the target within rng, keeping
// the approach buffer. If from is already close enough it is returned as is.
func ApproachPosition(from, to Position, rng float64) Position {
	stop := rng - ApproachBuffer
	if stop < 0 {
		stop = 0
	}
	dist := from.DistanceTo(to)
	if dist <= stop || dist == 0 {
		return from
	}
	frac := (dist - stop) / dist
	return Position{
		X: from.X + (to.X-from.X)*frac,
		Y: from.Y + (to.Y-from.Y)*frac,
	}
}
