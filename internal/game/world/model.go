// Package world provides the room model: cardinal directions, boundary
// gates, and room descriptors.
package world

import "fmt"

// Direction is one of the four cardinal exit directions.
type Direction string

const (
	North Direction = "north"
	South Direction = "south"
	East  Direction = "east"
	West  Direction = "west"
)

// CardinalDirections contains the four directions a room may expose a gate on.
var CardinalDirections = []Direction{North, South, East, West}

// IsCardinal reports whether d is one of the four cardinal directions.
func (d Direction) IsCardinal() bool {
	for _, cd := range CardinalDirections {
		if d == cd {
			return true
		}
	}
	return false
}

// Opposite returns the opposite cardinal direction.
// For non-cardinal values, it returns an empty string.
func (d Direction) Opposite() Direction {
	switch d {
	case North:
		return South
	case South:
		return North
	case East:
		return West
	case West:
		return East
	default:
		return ""
	}
}

// Gate span bounds on the axis perpendicular to the exit, in room-space
// percent. Every gate covers the middle third of its wall.
const (
	GateSpanMin = 40.0
	GateSpanMax = 60.0
)

// Gate is a bounded segment of a room's boundary through which movement
// triggers a room change.
type Gate struct {
	// Direction is the wall the gate sits on.
	Direction Direction
	// TargetRoom is the ID of the destination room.
	TargetRoom string
}

// Room represents one room of the dungeon.
type Room struct {
	// ID uniquely identifies this room.
	ID string
	// Title is the short display name of the room.
	Title string
	// Description is the multi-line room description shown to players.
	Description string
	// Gates lists the boundary gates leading out of this room, at most one
	// per cardinal direction.
	Gates []Gate
	// HasLoot marks rooms that spawn a loot drop.
	HasLoot bool
	// Safe marks rooms that never spawn hostiles.
	Safe bool
}

// GateFor returns the gate in the given direction, if one exists.
//
// Postcondition: Returns (gate, true) if found, or (Gate{}, false) otherwise.
func (r *Room) GateFor(dir Direction) (Gate, bool) {
	for _, g := range r.Gates {
		if g.Direction == dir {
			return g, true
		}
	}
	return Gate{}, false
}

// Validate checks room invariants.
//
// Postcondition: Returns nil if valid, or an error describing the first violation.
func (r *Room) Validate() error {
	if r.ID == "" {
		return fmt.Errorf("room ID must not be empty")
	}
	if r.Title == "" {
		return fmt.Errorf("room %q: title must not be empty", r.ID)
	}
	seen := make(map[Direction]bool, len(r.Gates))
	for _, g := range r.Gates {
		if !g.Direction.IsCardinal() {
			return fmt.Errorf("room %q: gate direction %q is not cardinal", r.ID, g.Direction)
		}
		if g.TargetRoom == "" {
			return fmt.Errorf("room %q: gate %q has empty target", r.ID, g.Direction)
		}
		if seen[g.Direction] {
			return fmt.Errorf("room %q: duplicate gate direction %q", r.ID, g.Direction)
		}
		seen[g.Direction] = true
	}
	return nil
}
