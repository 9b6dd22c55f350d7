package world_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cory-johannsen/crawl/internal/game/world"
)

// TestDirection_Opposite verifies the cardinal pairs and the non-cardinal
// fallback.
func TestDirection_Opposite(t *testing.T) {
	assert.Equal(t, world.South, world.North.Opposite())
	assert.Equal(t, world.North, world.South.Opposite())
	assert.Equal(t, world.West, world.East.Opposite())
	assert.Equal(t, world.East, world.West.Opposite())
	assert.Equal(t, world.Direction(""), world.Direction("up").Opposite())
}

// TestRoom_Validate verifies the room invariants.
func TestRoom_Validate(t *testing.T) {
	valid := &world.Room{
		ID:    "hall",
		Title: "Hall",
		Gates: []world.Gate{{Direction: world.North, TargetRoom: "vault"}},
	}
	require.NoError(t, valid.Validate())

	cases := []struct {
		name string
		room *world.Room
	}{
		{"empty id", &world.Room{Title: "X"}},
		{"empty title", &world.Room{ID: "x"}},
		{"non-cardinal gate", &world.Room{ID: "x", Title: "X",
			Gates: []world.Gate{{Direction: "up", TargetRoom: "y"}}}},
		{"empty gate target", &world.Room{ID: "x", Title: "X",
			Gates: []world.Gate{{Direction: world.North}}}},
		{"duplicate gate direction", &world.Room{ID: "x", Title: "X",
			Gates: []world.Gate{
				{Direction: world.North, TargetRoom: "y"},
				{Direction: world.North, TargetRoom: "z"},
			}}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Error(t, tc.room.Validate())
		})
	}
}

// TestRoom_GateFor verifies gate lookup by direction.
func TestRoom_GateFor(t *testing.T) {
	r := &world.Room{
		ID:    "hall",
		Title: "Hall",
		Gates: []world.Gate{{Direction: world.East, TargetRoom: "crypt"}},
	}
	g, ok := r.GateFor(world.East)
	require.True(t, ok)
	assert.Equal(t, "crypt", g.TargetRoom)

	_, ok = r.GateFor(world.West)
	assert.False(t, ok)
}

// TestLoadRoomFromBytes verifies YAML parsing of the room schema.
func TestLoadRoomFromBytes(t *testing.T) {
	data := []byte(`
room:
  id: crypt
  title: The Flooded Crypt
  description: Ankle-deep water covers the floor.
  has_loot: true
  gates:
    - direction: west
      target: hall
`)
	room, err := world.LoadRoomFromBytes(data)
	require.NoError(t, err)
	assert.Equal(t, "crypt", room.ID)
	assert.Equal(t, "The Flooded Crypt", room.Title)
	assert.True(t, room.HasLoot)
	assert.False(t, room.Safe)
	require.Len(t, room.Gates, 1)
	assert.Equal(t, world.West, room.Gates[0].Direction)
	assert.Equal(t, "hall", room.Gates[0].TargetRoom)
}

// TestLoadRoomFromBytes_Invalid verifies parse and validation failures
// surface as errors.
func TestLoadRoomFromBytes_Invalid(t *testing.T) {
	_, err := world.LoadRoomFromBytes([]byte("room: [not a map"))
	assert.Error(t, err, "malformed YAML must be rejected")

	_, err = world.LoadRoomFromBytes([]byte("room:\n  id: x\n"))
	assert.Error(t, err, "a room without a title must fail validation")
}

// TestLoadRoomsFromDir verifies directory loading skips non-YAML files.
func TestLoadRoomsFromDir(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "a.yaml"),
		"room:\n  id: a\n  title: A\n  gates:\n    - direction: north\n      target: b\n")
	writeFile(t, filepath.Join(dir, "b.yaml"), "room:\n  id: b\n  title: B\n")
	writeFile(t, filepath.Join(dir, "notes.txt"), "not a room")

	rooms, err := world.LoadRoomsFromDir(dir)
	require.NoError(t, err)
	assert.Len(t, rooms, 2)
}

// TestManager verifies indexing, the start room, and gate validation.
func TestManager(t *testing.T) {
	a := &world.Room{ID: "a", Title: "A",
		Gates: []world.Gate{{Direction: world.North, TargetRoom: "b"}}}
	b := &world.Room{ID: "b", Title: "B"}

	m, err := world.NewManager([]*world.Room{a, b})
	require.NoError(t, err)
	assert.Equal(t, "a", m.StartRoom(), "the first room is the entry room")
	assert.Equal(t, 2, m.RoomCount())
	require.NoError(t, m.ValidateGates())

	got, ok := m.Room("b")
	require.True(t, ok)
	assert.Equal(t, "B", got.Title)

	_, ok = m.Room("z")
	assert.False(t, ok)
}

// TestManager_Errors verifies the construction and gate failure modes.
func TestManager_Errors(t *testing.T) {
	_, err := world.NewManager(nil)
	assert.Error(t, err, "an empty world is rejected")

	a := &world.Room{ID: "a", Title: "A"}
	dup := &world.Room{ID: "a", Title: "A again"}
	_, err = world.NewManager([]*world.Room{a, dup})
	assert.Error(t, err, "duplicate room IDs are rejected")

	dangling := &world.Room{ID: "d", Title: "D",
		Gates: []world.Gate{{Direction: world.East, TargetRoom: "nowhere"}}}
	m, err := world.NewManager([]*world.Room{dangling})
	require.NoError(t, err)
	assert.Error(t, m.ValidateGates(), "dangling gate targets are reported")
}

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}
