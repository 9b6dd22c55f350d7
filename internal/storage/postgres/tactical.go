package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/cory-johannsen/crawl/internal/game/combat"
	"github.com/cory-johannsen/crawl/internal/game/world"
)

// ErrRoomNotFound is returned when a room lookup yields no results.
var ErrRoomNotFound = errors.New("room not found")

// TacticalRepository reads the external relational store holding the room
// graph and the per-room mob and loot tables. It is the production
// implementation of the roster feed.
type TacticalRepository struct {
	db *pgxpool.Pool
}

// NewTacticalRepository creates a TacticalRepository backed by the given pool.
//
// Precondition: db must be a valid, open connection pool.
func NewTacticalRepository(db *pgxpool.Pool) *TacticalRepository {
	return &TacticalRepository{db: db}
}

// Room loads the room descriptor and its gates.
//
// Postcondition: Returns the room, ErrRoomNotFound, or a query error.
func (r *TacticalRepository) Room(ctx context.Context, id string) (*world.Room, error) {
	var room world.Room
	err := r.db.QueryRow(ctx, `
		SELECT id, title, description, has_loot, safe
		FROM rooms WHERE id = $1`,
		id,
	).Scan(&room.ID, &room.Title, &room.Description, &room.HasLoot, &room.Safe)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrRoomNotFound
		}
		return nil, fmt.Errorf("loading room %q: %w", id, err)
	}

	rows, err := r.db.Query(ctx, `
		SELECT direction, target_room
		FROM room_gates WHERE room_id = $1 ORDER BY direction ASC`,
		id,
	)
	if err != nil {
		return nil, fmt.Errorf("loading gates for room %q: %w", id, err)
	}
	defer rows.Close()
	for rows.Next() {
		var g world.Gate
		var dir string
		if err := rows.Scan(&dir, &g.TargetRoom); err != nil {
			return nil, fmt.Errorf("scanning gate for room %q: %w", id, err)
		}
		g.Direction = world.Direction(dir)
		room.Gates = append(room.Gates, g)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating gates for room %q: %w", id, err)
	}
	return &room, nil
}

// RoomRoster loads the mob and loot spawns for room and converts them into
// combatant records ready for registration.
//
// Postcondition: Returns a slice (may be empty) or a non-nil error; the
// room is never mutated.
func (r *TacticalRepository) RoomRoster(ctx context.Context, room *world.Room) ([]combat.Entity, error) {
	rows, err := r.db.Query(ctx, `
		SELECT s.instance_id, m.name, m.kind, m.max_hp, m.attack, m.defense,
		       m.speed, m.accuracy, m.evasion, m.level, s.spawn_x, s.spawn_y
		FROM room_spawns s
		JOIN mob_templates m ON m.id = s.template_id
		WHERE s.room_id = $1
		ORDER BY s.instance_id ASC`,
		room.ID,
	)
	if err != nil {
		return nil, fmt.Errorf("loading roster for room %q: %w", room.ID, err)
	}
	defer rows.Close()

	var out []combat.Entity
	for rows.Next() {
		var ent combat.Entity
		var kind string
		if err := rows.Scan(
			&ent.ID, &ent.Name, &kind, &ent.MaxHP, &ent.Attack, &ent.Defense,
			&ent.Speed, &ent.Accuracy, &ent.Evasion, &ent.Level,
			&ent.Pos.X, &ent.Pos.Y,
		); err != nil {
			return nil, fmt.Errorf("scanning spawn for room %q: %w", room.ID, err)
		}
		k, err := combat.ParseKind(kind)
		if err != nil {
			return nil, fmt.Errorf("spawn %q in room %q: %w", ent.ID, room.ID, err)
		}
		ent.Kind = k
		ent.HP = ent.MaxHP
		out = append(out, ent)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating roster for room %q: %w", room.ID, err)
	}
	return out, nil
}
