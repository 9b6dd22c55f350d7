// Package roster supplies the per-room combatant roster the engine is
// populated with on room entry: a storage-backed feed in production, and a
// deterministic fallback generator when the feed is unavailable.
package roster

import (
	"context"
	"fmt"
	"hash/fnv"
	"math/rand"

	"go.uber.org/zap"

	"github.com/cory-johannsen/crawl/internal/game/combat"
	"github.com/cory-johannsen/crawl/internal/game/world"
)

// Feed produces the entity roster for a room. Implementations must not
// mutate the room.
type Feed interface {
	RoomRoster(ctx context.Context, room *world.Room) ([]combat.Entity, error)
}

// Fallback is the degraded-mode roster generator: seeded by the room ID
// and flags, it always produces the same minimal placeholder roster for
// the same room, keeping the engine exercisable without the tactical feed.
type Fallback struct{}

// RoomRoster generates the placeholder roster for room.
//
// Postcondition: The result is deterministic for a given room ID and flag
// set; safe rooms contain no hostiles; err is always nil.
func (Fallback) RoomRoster(_ context.Context, room *world.Room) ([]combat.Entity, error) {
	h := fnv.New64a()
	h.Write([]byte(room.ID))
	if room.HasLoot {
		h.Write([]byte{1})
	}
	if room.Safe {
		h.Write([]byte{2})
	}
	rng := rand.New(rand.NewSource(int64(h.Sum64())))

	var out []combat.Entity
	if !room.Safe {
		count := 1 + rng.Intn(3)
		for i := 0; i < count; i++ {
			level := 1 + rng.Intn(3)
			out = append(out, combat.Entity{
				ID:       fmt.Sprintf("%s-husk-%d", room.ID, i+1),
				Name:     "Hollow Husk",
				Kind:     combat.KindHostile,
				HP:       14 + 4*level,
				MaxHP:    14 + 4*level,
				Attack:   6 + 2*level,
				Defense:  4 + level,
				Speed:    5,
				Accuracy: 10 + level,
				Evasion:  4 + level,
				Level:    level,
				Pos:      randomPos(rng),
			})
		}
	}
	if room.HasLoot {
		out = append(out, combat.Entity{
			ID:    room.ID + "-cache",
			Name:  "Supply Cache",
			Kind:  combat.KindNeutral,
			HP:    1,
			MaxHP: 1,
			Pos:   randomPos(rng),
		})
	}
	return out, nil
}

// randomPos draws a spawn position away from the walls and gates.
func randomPos(rng *rand.Rand) combat.Position {
	return combat.Position{
		X: 20 + rng.Float64()*60,
		Y: 20 + rng.Float64()*60,
	}
}

// Resilient wraps a primary feed with the fallback generator: a primary
// failure is a documented degraded mode, not an error.
type Resilient struct {
	Primary  Feed
	Fallback Feed
	Logger   *zap.Logger
}

// NewResilient builds a Resilient feed over primary. A nil primary runs
// on the fallback generator alone.
//
// Precondition: logger may be nil.
func NewResilient(primary Feed, logger *zap.Logger) *Resilient {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Resilient{Primary: primary, Fallback: Fallback{}, Logger: logger}
}

// RoomRoster consults the primary feed and degrades to the fallback
// generator if it fails.
//
// Postcondition: err is always nil; degraded mode is logged.
func (r *Resilient) RoomRoster(ctx context.Context, room *world.Room) ([]combat.Entity, error) {
	if r.Primary == nil {
		return r.Fallback.RoomRoster(ctx, room)
	}
	roster, err := r.Primary.RoomRoster(ctx, room)
	if err != nil {
		r.Logger.Warn("tactical feed unavailable, using fallback roster",
			zap.String("room", room.ID),
			zap.Error(err),
		)
		return r.Fallback.RoomRoster(ctx, room)
	}
	return roster, nil
}
