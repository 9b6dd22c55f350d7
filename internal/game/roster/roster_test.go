package roster_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/cory-johannsen/crawl/internal/game/combat"
	"github.com/cory-johannsen/crawl/internal/game/roster"
	"github.com/cory-johannsen/crawl/internal/game/world"
)

// failingFeed is a primary feed that always errors.
type failingFeed struct{}

func (failingFeed) RoomRoster(context.Context, *world.Room) ([]combat.Entity, error) {
	return nil, errors.New("connection refused")
}

// fixedFeed returns a canned roster.
type fixedFeed struct{ roster []combat.Entity }

func (f fixedFeed) RoomRoster(context.Context, *world.Room) ([]combat.Entity, error) {
	return f.roster, nil
}

// TestFallback_Deterministic verifies the generator is a pure function of
// the room ID and flags.
func TestFallback_Deterministic(t *testing.T) {
	room := &world.Room{ID: "crypt", Title: "The Crypt"}

	first, err := roster.Fallback{}.RoomRoster(context.Background(), room)
	require.NoError(t, err)
	second, err := roster.Fallback{}.RoomRoster(context.Background(), room)
	require.NoError(t, err)

	assert.Equal(t, first, second, "same room yields the same roster")

	other, err := roster.Fallback{}.RoomRoster(context.Background(), &world.Room{ID: "vault"})
	require.NoError(t, err)
	assert.NotEqual(t, first, other, "different rooms yield different rosters")
}

// TestFallback_SafeRoomHasNoHostiles verifies safe rooms spawn nothing
// aggressive.
func TestFallback_SafeRoomHasNoHostiles(t *testing.T) {
	room := &world.Room{ID: "antechamber", Safe: true}

	out, err := roster.Fallback{}.RoomRoster(context.Background(), room)
	require.NoError(t, err)
	for _, e := range out {
		assert.NotEqual(t, combat.KindHostile, e.Kind, "safe rooms contain no hostiles")
	}
}

// TestFallback_HostileRoom verifies unsafe rooms spawn at least one living
// hostile within the walls.
func TestFallback_HostileRoom(t *testing.T) {
	room := &world.Room{ID: "crypt"}

	out, err := roster.Fallback{}.RoomRoster(context.Background(), room)
	require.NoError(t, err)
	require.NotEmpty(t, out)

	for _, e := range out {
		assert.Equal(t, combat.KindHostile, e.Kind)
		assert.Positive(t, e.HP)
		assert.Equal(t, e.MaxHP, e.HP)
		assert.GreaterOrEqual(t, e.Pos.X, 5.0)
		assert.LessOrEqual(t, e.Pos.X, 95.0)
		assert.GreaterOrEqual(t, e.Pos.Y, 5.0)
		assert.LessOrEqual(t, e.Pos.Y, 95.0)
	}
}

// TestFallback_LootRoomGetsCache verifies loot rooms gain a neutral supply
// cache.
func TestFallback_LootRoomGetsCache(t *testing.T) {
	room := &world.Room{ID: "vault", Safe: true, HasLoot: true}

	out, err := roster.Fallback{}.RoomRoster(context.Background(), room)
	require.NoError(t, err)
	require.Len(t, out, 1)
	assert.Equal(t, "vault-cache", out[0].ID)
	assert.Equal(t, combat.KindNeutral, out[0].Kind)
}

// TestResilient_PrefersPrimary verifies a healthy primary feed is used
// verbatim.
func TestResilient_PrefersPrimary(t *testing.T) {
	want := []combat.Entity{{ID: "boss", Name: "Boss", Kind: combat.KindHostile, HP: 50, MaxHP: 50}}
	feed := roster.NewResilient(fixedFeed{roster: want}, zap.NewNop())

	got, err := feed.RoomRoster(context.Background(), &world.Room{ID: "crypt"})
	require.NoError(t, err)
	assert.Equal(t, want, got)
}

// TestResilient_DegradesToFallback verifies a primary failure is absorbed,
// not propagated.
func TestResilient_DegradesToFallback(t *testing.T) {
	feed := roster.NewResilient(failingFeed{}, zap.NewNop())
	room := &world.Room{ID: "crypt"}

	got, err := feed.RoomRoster(context.Background(), room)
	require.NoError(t, err, "primary failure degrades instead of erroring")

	want, err := roster.Fallback{}.RoomRoster(context.Background(), room)
	require.NoError(t, err)
	assert.Equal(t, want, got, "degraded mode uses the deterministic generator")
}

// TestResilient_NilPrimary verifies feed-less operation runs on the
// generator alone.
func TestResilient_NilPrimary(t *testing.T) {
	feed := roster.NewResilient(nil, nil)
	room := &world.Room{ID: "vault", HasLoot: true, Safe: true}

	got, err := feed.RoomRoster(context.Background(), room)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "vault-cache", got[0].ID)
}
