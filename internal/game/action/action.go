// Package action provides the static catalogue of combat actions: moves,
// attacks, and abilities, with their cooldown, execution latency, range,
// and damage numbers.
package action

import (
	"fmt"
	"time"
)

// Type identifies what kind of effect an action has.
// The zero value (TypeUnknown) is intentionally invalid.
type Type int

const (
	TypeUnknown Type = iota // zero value; intentionally invalid
	TypeMove                // reposition toward a target position
	TypeAttack              // damage a target entity
	TypeAbility             // scripted or built-in effect, e.g. a heal
)

// String returns the human-readable name of the Type.
// Postcondition: returns "move", "attack", "ability", or "unknown".
func (t Type) String() string {
	switch t {
	case TypeMove:
		return "move"
	case TypeAttack:
		return "attack"
	case TypeAbility:
		return "ability"
	default:
		return "unknown"
	}
}

// parseType converts a YAML type string to a Type.
func parseType(s string) (Type, error) {
	switch s {
	case "move":
		return TypeMove, nil
	case "attack":
		return TypeAttack, nil
	case "ability":
		return TypeAbility, nil
	default:
		return TypeUnknown, fmt.Errorf("unknown action type %q", s)
	}
}

// Definition describes one action kind. Definitions are immutable after the
// table is constructed.
type Definition struct {
	// ID uniquely identifies the action within the table.
	ID string
	// Name is the display name.
	Name string
	// Type selects the resolver branch that applies the effect.
	Type Type
	// Cooldown is the minimum wall-clock interval between successive uses
	// by the same entity. Zero means no cooldown.
	Cooldown time.Duration
	// ExecutionTime is the latency between acceptance and the application
	// of the effect.
	ExecutionTime time.Duration
	// Range is the maximum Euclidean distance to the target in room-space
	// units. Zero means self-targeted or unbounded (move).
	Range float64
	// Damage is the flat bonus added to the attacker's attack stat for
	// attack-type actions. Zero for non-attacks.
	Damage int
	// Power is the effect magnitude for abilities (e.g. hit points restored
	// by a heal). Zero for non-abilities.
	Power int
	// PlayerOnly restricts the action to player entities.
	PlayerOnly bool
	// Script names a Lua ability script overriding the built-in effect
	// dispatch. Empty means use the built-in effect for this ID.
	Script string
}

// Validate checks definition invariants.
//
// Postcondition: Returns nil iff ID and Name are non-empty, Type is valid,
// and all durations and magnitudes are non-negative.
func (d Definition) Validate() error {
	if d.ID == "" {
		return fmt.Errorf("action id must not be empty")
	}
	if d.Name == "" {
		return fmt.Errorf("action %q: name must not be empty", d.ID)
	}
	if d.Type == TypeUnknown {
		return fmt.Errorf("action %q: type must be move, attack, or ability", d.ID)
	}
	if d.Cooldown < 0 {
		return fmt.Errorf("action %q: cooldown must not be negative", d.ID)
	}
	if d.ExecutionTime < 0 {
		return fmt.Errorf("action %q: execution_time must not be negative", d.ID)
	}
	if d.Range < 0 {
		return fmt.Errorf("action %q: range must not be negative", d.ID)
	}
	if d.Damage < 0 || d.Power < 0 {
		return fmt.Errorf("action %q: damage and power must not be negative", d.ID)
	}
	return nil
}
