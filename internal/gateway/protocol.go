package gateway

import (
	"time"

	"github.com/cory-johannsen/crawl/internal/game/combat"
)

// Command is a client request. Type selects the operation; the remaining
// fields are read per type and ignored otherwise.
type Command struct {
	Type string `json:"type"`
	// Entity is the acting entity for queue, move, and engage commands.
	Entity string `json:"entity,omitempty"`
	// Action is the action definition ID.
	Action string `json:"action,omitempty"`
	// Target is the target entity ID for attacks, abilities, and engage.
	Target string `json:"target,omitempty"`
	// Queue is the queue entry ID for cancellation.
	Queue string `json:"queue,omitempty"`
	// X and Y carry a destination for queue_move.
	X float64 `json:"x,omitempty"`
	Y float64 `json:"y,omitempty"`
	// VX and VY carry a per-frame input vector for move.
	VX float64 `json:"vx,omitempty"`
	VY float64 `json:"vy,omitempty"`
}

const (
	cmdQueueAction = "queue_action"
	cmdQueueMove   = "queue_move"
	cmdCancel      = "cancel"
	cmdSelect      = "select"
	cmdMove        = "move"
	cmdEngage      = "engage"
)

type entityPayload struct {
	ID         string          `json:"id"`
	Name       string          `json:"name"`
	Kind       string          `json:"kind"`
	HP         int             `json:"hp"`
	MaxHP      int             `json:"max_hp"`
	Pos        combat.Position `json:"pos"`
	Facing     float64         `json:"facing"`
	Level      int             `json:"level"`
	Defeated   bool            `json:"defeated"`
	Selected   bool            `json:"selected"`
	Weapon     string          `json:"weapon,omitempty"`
	LastAction string          `json:"last_action,omitempty"`
}

type queuePayload struct {
	ID         string    `json:"id"`
	EntityID   string    `json:"entity"`
	ActionID   string    `json:"action"`
	TargetID   string    `json:"target,omitempty"`
	ExecutesAt time.Time `json:"executes_at"`
}

type statePayload struct {
	Entities    []entityPayload `json:"entities"`
	Queue       []queuePayload  `json:"queue"`
	InCombat    bool            `json:"in_combat"`
	CombatStart *time.Time      `json:"combat_start,omitempty"`
	SelectedID  string          `json:"selected,omitempty"`
	Room        string          `json:"room,omitempty"`
}

type serverMessage struct {
	Type  string        `json:"type"`
	State *statePayload `json:"state,omitempty"`
	Error string        `json:"error,omitempty"`
}

func stateMessage(snap combat.Snapshot, roomID string) serverMessage {
	st := &statePayload{
		Entities:   make([]entityPayload, 0, len(snap.Entities)),
		Queue:      make([]queuePayload, 0, len(snap.Queue)),
		InCombat:   snap.InCombat,
		SelectedID: snap.SelectedID,
		Room:       roomID,
	}
	for _, ent := range snap.Entities {
		st.Entities = append(st.Entities, entityPayload{
			ID:         ent.ID,
			Name:       ent.Name,
			Kind:       ent.Kind.String(),
			HP:         ent.HP,
			MaxHP:      ent.MaxHP,
			Pos:        ent.Pos,
			Facing:     ent.Facing,
			Level:      ent.Level,
			Defeated:   ent.Defeated,
			Selected:   ent.Selected,
			Weapon:     ent.Weapon,
			LastAction: ent.LastAction,
		})
	}
	for _, qa := range snap.Queue {
		st.Queue = append(st.Queue, queuePayload{
			ID:         qa.ID,
			EntityID:   qa.EntityID,
			ActionID:   qa.Action.ID,
			TargetID:   qa.TargetID,
			ExecutesAt: qa.ExecutesAt,
		})
	}
	if !snap.CombatStart.IsZero() {
		ts := snap.CombatStart
		st.CombatStart = &ts
	}
	return serverMessage{Type: "state", State: st}
}

func errorMessage(msg string) serverMessage {
	return serverMessage{Type: "error", Error: msg}
}
