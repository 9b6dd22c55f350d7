package world

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// yamlRoomFile is the top-level YAML structure for room files.
type yamlRoomFile struct {
	Room yamlRoom `yaml:"room"`
}

// yamlRoom is the YAML representation of a room.
type yamlRoom struct {
	ID          string     `yaml:"id"`
	Title       string     `yaml:"title"`
	Description string     `yaml:"description"`
	Gates       []yamlGate `yaml:"gates"`
	HasLoot     bool       `yaml:"has_loot"`
	Safe        bool       `yaml:"safe"`
}

// yamlGate is the YAML representation of a boundary gate.
type yamlGate struct {
	Direction string `yaml:"direction"`
	Target    string `yaml:"target"`
}

// LoadRoomFromBytes parses and validates a room from YAML bytes.
//
// Precondition: data must be valid YAML conforming to the room schema.
// Postcondition: Returns a validated Room or a non-nil error.
func LoadRoomFromBytes(data []byte) (*Room, error) {
	var file yamlRoomFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("parsing room YAML: %w", err)
	}

	room := &Room{
		ID:          file.Room.ID,
		Title:       file.Room.Title,
		Description: file.Room.Description,
		HasLoot:     file.Room.HasLoot,
		Safe:        file.Room.Safe,
	}
	for _, g := range file.Room.Gates {
		room.Gates = append(room.Gates, Gate{
			Direction:  Direction(g.Direction),
			TargetRoom: g.Target,
		})
	}

	if err := room.Validate(); err != nil {
		return nil, fmt.Errorf("validating room: %w", err)
	}
	return room, nil
}

// LoadRoomFromFile reads and validates a single room YAML file.
//
// Precondition: path must point to a valid YAML room file.
// Postcondition: Returns a validated Room or a non-nil error.
func LoadRoomFromFile(path string) (*Room, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading room file %s: %w", path, err)
	}
	return LoadRoomFromBytes(data)
}

// LoadRoomsFromDir loads all YAML files in a directory as rooms.
//
// Precondition: dir must be a valid directory path.
// Postcondition: Returns all validated rooms or the first error encountered.
func LoadRoomsFromDir(dir string) ([]*Room, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("reading rooms dir %q: %w", dir, err)
	}

	var rooms []*Room
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		name := entry.Name()
		if !strings.HasSuffix(name, ".yaml") && !strings.HasSuffix(name, ".yml") {
			continue
		}
		room, err := LoadRoomFromFile(filepath.Join(dir, name))
		if err != nil {
			return nil, err
		}
		rooms = append(rooms, room)
	}
	return rooms, nil
}
