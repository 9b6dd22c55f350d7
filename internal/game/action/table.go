package action

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Table is the immutable action catalogue, fixed at construction.
type Table struct {
	defs  map[string]Definition
	order []string
}

// NewTable builds a table from the given definitions.
//
// Precondition: defs must contain at least one definition.
// Postcondition: Returns a Table or an error on an invalid or duplicate
// definition.
func NewTable(defs ...Definition) (*Table, error) {
	if len(defs) == 0 {
		return nil, fmt.Errorf("action table must not be empty")
	}
	t := &Table{defs: make(map[string]Definition, len(defs))}
	for _, d := range defs {
		if err := d.Validate(); err != nil {
			return nil, err
		}
		if _, exists := t.defs[d.ID]; exists {
			return nil, fmt.Errorf("duplicate action id %q", d.ID)
		}
		t.defs[d.ID] = d
		t.order = append(t.order, d.ID)
	}
	return t, nil
}

// Get returns the definition for id.
//
// Postcondition: Returns (def, true) if found, or (Definition{}, false) otherwise.
func (t *Table) Get(id string) (Definition, bool) {
	d, ok := t.defs[id]
	return d, ok
}

// All returns the definitions in registration order.
func (t *Table) All() []Definition {
	out := make([]Definition, 0, len(t.order))
	for _, id := range t.order {
		out = append(out, t.defs[id])
	}
	return out
}

// Len returns the number of definitions in the table.
func (t *Table) Len() int { return len(t.defs) }

// DefaultTable returns the compiled-in catalogue used when no content file
// is supplied.
//
// Postcondition: Returns a non-nil table containing at minimum "move",
// "basic_attack", and "heal".
func DefaultTable() *Table {
	t, err := NewTable(
		Definition{
			ID:            "move",
			Name:          "Move",
			Type:          TypeMove,
			ExecutionTime: 300 * time.Millisecond,
		},
		Definition{
			ID:            "basic_attack",
			Name:          "Attack",
			Type:          TypeAttack,
			Cooldown:      1200 * time.Millisecond,
			ExecutionTime: 400 * time.Millisecond,
			Range:         15,
		},
		Definition{
			ID:            "power_strike",
			Name:          "Power Strike",
			Type:          TypeAttack,
			Cooldown:      4 * time.Second,
			ExecutionTime: 800 * time.Millisecond,
			Range:         15,
			Damage:        8,
			PlayerOnly:    true,
		},
		Definition{
			ID:            "piercing_shot",
			Name:          "Piercing Shot",
			Type:          TypeAttack,
			Cooldown:      6 * time.Second,
			ExecutionTime: 600 * time.Millisecond,
			Range:         45,
			Damage:        5,
			PlayerOnly:    true,
		},
		Definition{
			ID:            "heal",
			Name:          "Heal",
			Type:          TypeAbility,
			Cooldown:      8 * time.Second,
			ExecutionTime: 500 * time.Millisecond,
			Power:         12,
			PlayerOnly:    true,
		},
	)
	if err != nil {
		panic("action: building default table: " + err.Error())
	}
	return t
}

// yamlTableFile is the top-level YAML structure for action catalogue files.
type yamlTableFile struct {
	Actions []yamlAction `yaml:"actions"`
}

// yamlAction is the YAML representation of a Definition. Durations use Go
// duration strings ("800ms", "4s").
type yamlAction struct {
	ID            string  `yaml:"id"`
	Name          string  `yaml:"name"`
	Type          string  `yaml:"type"`
	Cooldown      string  `yaml:"cooldown"`
	ExecutionTime string  `yaml:"execution_time"`
	Range         float64 `yaml:"range"`
	Damage        int     `yaml:"damage"`
	Power         int     `yaml:"power"`
	PlayerOnly    bool    `yaml:"player_only"`
	Script        string  `yaml:"script"`
}

// LoadTableFromBytes parses an action catalogue from YAML bytes.
//
// Precondition: data must be valid YAML conforming to the catalogue schema.
// Postcondition: Returns a validated Table or a non-nil error.
func LoadTableFromBytes(data []byte) (*Table, error) {
	var file yamlTableFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("parsing action catalogue YAML: %w", err)
	}

	defs := make([]Definition, 0, len(file.Actions))
	for _, a := range file.Actions {
		typ, err := parseType(a.Type)
		if err != nil {
			return nil, fmt.Errorf("action %q: %w", a.ID, err)
		}
		cooldown, err := parseOptionalDuration(a.Cooldown)
		if err != nil {
			return nil, fmt.Errorf("action %q: cooldown: %w", a.ID, err)
		}
		execTime, err := parseOptionalDuration(a.ExecutionTime)
		if err != nil {
			return nil, fmt.Errorf("action %q: execution_time: %w", a.ID, err)
		}
		defs = append(defs, Definition{
			ID:            a.ID,
			Name:          a.Name,
			Type:          typ,
			Cooldown:      cooldown,
			ExecutionTime: execTime,
			Range:         a.Range,
			Damage:        a.Damage,
			Power:         a.Power,
			PlayerOnly:    a.PlayerOnly,
			Script:        a.Script,
		})
	}
	return NewTable(defs...)
}

// LoadTableFromFile reads and validates an action catalogue YAML file.
//
// Precondition: path must point to a valid YAML catalogue file.
// Postcondition: Returns a validated Table or a non-nil error.
func LoadTableFromFile(path string) (*Table, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading action catalogue %s: %w", path, err)
	}
	return LoadTableFromBytes(data)
}

func parseOptionalDuration(s string) (time.Duration, error) {
	if s == "" {
		return 0, nil
	}
	return time.ParseDuration(s)
}
