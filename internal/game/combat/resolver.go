package combat

import (
	"math"

	"go.uber.org/zap"

	"github.com/cory-johannsen/crawl/internal/game/action"
)

// Hit chance bounds. A roll can never be a certainty in either direction.
const (
	MinHitChance = 0.1
	MaxHitChance = 0.95
)

// HitChance computes the probability that attacker lands a hit on defender:
// (accuracy + levelDiff) / (accuracy + evasion + |levelDiff|), clamped to
// [MinHitChance, MaxHitChance]. A degenerate zero denominator resolves to
// an even chance before clamping.
//
// Postcondition: Returns a value in [MinHitChance, MaxHitChance].
func HitChance(attacker, defender Entity) float64 {
	levelDiff := float64(attacker.Level - defender.Level)
	denom := float64(attacker.Accuracy+defender.Evasion) + math.Abs(levelDiff)
	chance := 0.5
	if denom > 0 {
		chance = (float64(attacker.Accuracy) + levelDiff) / denom
	}
	return clampFloat(chance, MinHitChance, MaxHitChance)
}

// DamageAmount computes the damage of a landed hit:
// max(1, floor(attack + bonus + level*0.1 - defense*0.5)).
//
// Postcondition: Returns >= 1.
func DamageAmount(attacker, defender Entity, bonus int) int {
	raw := float64(attacker.Attack+bonus) + float64(attacker.Level)*0.1 - float64(defender.Defense)*0.5
	dmg := int(math.Floor(raw))
	if dmg < 1 {
		dmg = 1
	}
	return dmg
}

// MoveEntityToPosition moves the entity to pos clamped to the wall bounds,
// updating facing from the displacement vector.
//
// Postcondition: Returns false for unknown IDs; otherwise the entity's
// position is (clamp(x,5,95), clamp(y,5,95)) and subscribers are notified.
func (e *Engine) MoveEntityToPosition(id string, pos Position) bool {
	e.mu.Lock()
	ent, ok := e.entities[id]
	if !ok {
		e.mu.Unlock()
		return false
	}
	dest := pos.ClampWalls()
	if facing, ok := FacingDegrees(dest.X-ent.Pos.X, dest.Y-ent.Pos.Y); ok {
		ent.Facing = facing
	}
	ent.Pos = dest
	snap := e.snapshotLocked()
	e.mu.Unlock()
	e.hub.Publish(snap)
	return true
}

// executeLocked applies one due queue entry. An entry whose actor was
// removed or defeated since queue time is dropped silently. Caller must
// hold e.mu.
func (e *Engine) executeLocked(qa *QueuedAction) {
	actor, ok := e.entities[qa.EntityID]
	if !ok {
		e.logger.Debug("dropping orphaned action", zap.String("entry", qa.ID))
		return
	}
	if actor.IsDefeated() {
		return
	}
	switch qa.Action.Type {
	case action.TypeMove:
		e.resolveMoveLocked(actor, qa)
	case action.TypeAttack:
		e.resolveAttackLocked(actor, qa)
	case action.TypeAbility:
		e.resolveAbilityLocked(actor, qa)
	}
	actor.LastAction = qa.Action.ID
	e.rec.ActionExecuted(qa.Action.Type.String())
}

// resolveMoveLocked lands the actor on the targeted position, clamped to
// the extended overshoot bounds so a door-crossing step may briefly leave
// the room before the gate controller normalizes it.
func (e *Engine) resolveMoveLocked(actor *Entity, qa *QueuedAction) {
	if qa.TargetPos == nil {
		return
	}
	dest := qa.TargetPos.ClampOvershoot()
	if facing, ok := FacingDegrees(dest.X-actor.Pos.X, dest.Y-actor.Pos.Y); ok {
		actor.Facing = facing
	}
	actor.Pos = dest
}

// resolveAttackLocked rolls the attack against a live target. A dead or
// missing target makes the attack a no-op.
func (e *Engine) resolveAttackLocked(actor *Entity, qa *QueuedAction) {
	target, ok := e.entities[qa.TargetID]
	if !ok || target.IsDefeated() {
		return
	}
	chance := HitChance(*actor, *target)
	roll := float64(e.src.Intn(10000)) / 10000
	if roll >= chance {
		e.logger.Debug("attack missed",
			zap.String("attacker", actor.ID),
			zap.String("target", target.ID),
			zap.Float64("chance", chance),
		)
		return
	}
	dmg := DamageAmount(*actor, *target, qa.Action.Damage)
	target.ApplyDamage(dmg)
	e.logger.Debug("attack hit",
		zap.String("attacker", actor.ID),
		zap.String("target", target.ID),
		zap.Int("damage", dmg),
		zap.Int("target_hp", target.HP),
		zap.Bool("defeated", target.IsDefeated()),
	)
}

// resolveAbilityLocked applies an ability effect. Abilities with a script
// go through the configured AbilityRunner; the rest dispatch on the action
// ID, so new effects extend without touching the scheduler.
func (e *Engine) resolveAbilityLocked(actor *Entity, qa *QueuedAction) {
	target := actor
	if qa.TargetID != "" {
		t, ok := e.entities[qa.TargetID]
		if !ok || t.IsDefeated() {
			return
		}
		target = t
	}

	if qa.Action.Script != "" && e.runner != nil {
		effect, err := e.runner.Run(qa.Action.Script, actor.clone(), target.clone(), qa.Action.Power)
		if err != nil {
			e.logger.Warn("ability script failed",
				zap.String("script", qa.Action.Script),
				zap.Error(err),
			)
			return
		}
		if effect.Heal > 0 {
			target.ApplyHeal(effect.Heal)
		}
		if effect.Damage > 0 {
			target.ApplyDamage(effect.Damage)
		}
		return
	}

	switch qa.Action.ID {
	case "heal":
		target.ApplyHeal(qa.Action.Power)
	default:
		e.logger.Warn("ability has no effect handler", zap.String("action", qa.Action.ID))
	}
}
