package scripting

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	lua "github.com/yuin/gopher-lua"
	"go.uber.org/zap"
)

// Stats is the read-only combatant snapshot passed to ability scripts.
type Stats struct {
	ID       string
	Name     string
	HP       int
	MaxHP    int
	Attack   int
	Defense  int
	Level    int
	Accuracy int
	Evasion  int
}

// Effect is the outcome an ability script returns.
type Effect struct {
	// Heal is hit points to restore on the target.
	Heal int
	// Damage is hit points to remove from the target.
	Damage int
}

// Runner executes ability-effect scripts. Each *.lua file in the script
// directory defines a global function
//
//	apply(caster, target, power) -> { heal = n, damage = n }
//
// keyed by its file name without the extension. Runner is safe for
// concurrent use; executions are serialized per VM.
type Runner struct {
	mu     sync.Mutex
	states map[string]*lua.LState
	limit  int
	logger *zap.Logger
}

// NewRunner loads every *.lua file in dir into its own sandboxed VM.
//
// Precondition: dir must be a readable directory; instLimit >= 0 (0 uses
// DefaultInstructionLimit); logger may be nil.
// Postcondition: Returns a Runner with one VM per script, or an error on
// the first load failure. The caller must Close the Runner when done.
func NewRunner(dir string, instLimit int, logger *zap.Logger) (*Runner, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("scripting: reading script dir %q: %w", dir, err)
	}

	r := &Runner{
		states: make(map[string]*lua.LState),
		limit:  instLimit,
		logger: logger,
	}
	for _, e := range entries {
		if e.IsDir() || filepath.Ext(e.Name()) != ".lua" {
			continue
		}
		name := strings.TrimSuffix(e.Name(), ".lua")
		L := NewSandboxedState(instLimit)
		if err := L.DoFile(filepath.Join(dir, e.Name())); err != nil {
			L.Close()
			r.Close()
			return nil, fmt.Errorf("scripting: loading %q: %w", e.Name(), err)
		}
		if L.GetGlobal("apply").Type() != lua.LTFunction {
			L.Close()
			r.Close()
			return nil, fmt.Errorf("scripting: script %q does not define apply()", name)
		}
		r.states[name] = L
	}
	return r, nil
}

// Scripts returns the names of the loaded scripts.
func (r *Runner) Scripts() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	names := make([]string, 0, len(r.states))
	for name := range r.states {
		names = append(names, name)
	}
	return names
}

// Run executes the named script's apply() with the given caster, target,
// and power.
//
// Postcondition: Returns the script's effect, or an error for unknown
// scripts, runtime failures, and opcode-budget overruns; effect magnitudes
// are floored at zero.
func (r *Runner) Run(script string, caster, target Stats, power int) (Effect, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	L, ok := r.states[script]
	if !ok {
		return Effect{}, fmt.Errorf("scripting: unknown ability script %q", script)
	}

	// Fresh opcode budget per execution.
	limit := r.limit
	if limit <= 0 {
		limit = DefaultInstructionLimit
	}
	ctx, cancel := newCountingContext(limit)
	defer cancel()
	L.SetContext(ctx)

	if err := L.CallByParam(lua.P{
		Fn:      L.GetGlobal("apply"),
		NRet:    1,
		Protect: true,
	}, statsTable(L, caster), statsTable(L, target), lua.LNumber(power)); err != nil {
		return Effect{}, fmt.Errorf("scripting: running %q: %w", script, err)
	}

	ret := L.Get(-1)
	L.Pop(1)
	tbl, ok := ret.(*lua.LTable)
	if !ok {
		return Effect{}, fmt.Errorf("scripting: %q returned %s, want table", script, ret.Type())
	}

	effect := Effect{
		Heal:   intField(tbl, "heal"),
		Damage: intField(tbl, "damage"),
	}
	if effect.Heal < 0 {
		effect.Heal = 0
	}
	if effect.Damage < 0 {
		effect.Damage = 0
	}
	return effect, nil
}

// Close releases all script VMs.
func (r *Runner) Close() {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, L := range r.states {
		L.Close()
	}
	r.states = make(map[string]*lua.LState)
}

// statsTable converts a Stats snapshot into a Lua table.
func statsTable(L *lua.LState, s Stats) *lua.LTable {
	tbl := L.NewTable()
	L.SetField(tbl, "id", lua.LString(s.ID))
	L.SetField(tbl, "name", lua.LString(s.Name))
	L.SetField(tbl, "hp", lua.LNumber(s.HP))
	L.SetField(tbl, "max_hp", lua.LNumber(s.MaxHP))
	L.SetField(tbl, "attack", lua.LNumber(s.Attack))
	L.SetField(tbl, "defense", lua.LNumber(s.Defense))
	L.SetField(tbl, "level", lua.LNumber(s.Level))
	L.SetField(tbl, "accuracy", lua.LNumber(s.Accuracy))
	L.SetField(tbl, "evasion", lua.LNumber(s.Evasion))
	return tbl
}

// intField reads an integer field from a Lua table, defaulting to 0.
func intField(tbl *lua.LTable, key string) int {
	v := tbl.RawGetString(key)
	if n, ok := v.(lua.LNumber); ok {
		return int(n)
	}
	return 0
}
