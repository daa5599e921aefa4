// Package runtime implements C11: a single-threaded, cooperative
// tree-walking interpreter over a compiler.CompiledProgram (spec.md §4.11).
package runtime

import (
	"sort"

	"github.com/user/humanlogica/internal/ast"
	"github.com/user/humanlogica/internal/compiler"
	"github.com/user/humanlogica/internal/mary"
	"github.com/user/humanlogica/internal/speaker"
	"github.com/user/humanlogica/internal/value"
)

// Environment is the mutable state threaded through one program execution.
type Environment struct {
	Mary *mary.Mary

	// NameToID resolves a declared speaker name to its kernel id. "world" is
	// always present, aliased to root.
	NameToID map[string]int64

	CurrentName string
	CurrentID   int64

	Functions map[string]*ast.Fn

	scopes []map[string]value.Value
	sealed map[string]bool

	Output []string

	returnValue value.Value
	hasReturn   bool
}

// NewEnvironment builds an Environment bound to an already-booted kernel.
func NewEnvironment(m *mary.Mary) *Environment {
	return &Environment{
		Mary:      m,
		NameToID:  map[string]int64{"world": speaker.RootID},
		Functions: make(map[string]*ast.Fn),
		sealed:    make(map[string]bool),
	}
}

func (e *Environment) pushScope() { e.scopes = append(e.scopes, make(map[string]value.Value)) }
func (e *Environment) popScope()  { e.scopes = e.scopes[:len(e.scopes)-1] }

func (e *Environment) localScope() (map[string]value.Value, bool) {
	if len(e.scopes) == 0 {
		return nil, false
	}
	return e.scopes[len(e.scopes)-1], true
}

// resolveRead implements spec.md §4.11's variable resolution order:
// innermost local scope first, then the current speaker's partition via the
// kernel, then a check for a declared-speaker name (used by member access
// and inspect).
func (e *Environment) resolveRead(name string) value.Value {
	if scope, ok := e.localScope(); ok {
		if v, found := scope[name]; found {
			return v
		}
	}
	v, err := e.Mary.Read(e.CurrentID, e.CurrentID, name)
	if err == nil && !value.IsNone(v) {
		return v
	}
	if id, ok := e.NameToID[name]; ok {
		return value.Str(speakerNameByID(e, id))
	}
	return value.None{}
}

func speakerNameByID(e *Environment, id int64) string {
	for name, sid := range e.NameToID {
		if sid == id {
			return name
		}
	}
	s, ok := e.Mary.Registry.Get(id)
	if ok {
		return s.Name
	}
	return ""
}

// sealKey builds the sealed-set key for a variable in a given speaker's
// partition (speaker-qualified, since seal is scoped to "speaker.name").
func sealKey(speakerName, varName string) string { return speakerName + "." + varName }

// write implements the write side of variable resolution: innermost local
// scope if present, else the current speaker's partition via the kernel
// (which enforces A8).
func (e *Environment) write(name string, v value.Value) error {
	key := sealKey(e.CurrentName, name)
	if e.sealed[key] {
		return sealedWriteError(e.CurrentName, name)
	}
	if scope, ok := e.localScope(); ok {
		if _, isLocal := scope[name]; isLocal {
			scope[name] = v
			return nil
		}
	}
	return e.Mary.Write(e.CurrentID, name, v)
}

// bindLocal creates or overwrites a binding in the innermost local scope.
// Only called while a function call's scope is on the stack (parameter
// seeding), so the scope is always present.
func (e *Environment) bindLocal(name string, v value.Value) {
	scope, _ := e.localScope()
	scope[name] = v
}

// sortedFunctionNames returns Functions' keys in sorted order — A6
// determinism for any iteration across the function table.
func (e *Environment) sortedFunctionNames() []string {
	names := make([]string, 0, len(e.Functions))
	for n := range e.Functions {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// loadFunctions copies a compiled program's function table so the runtime
// owns its own deterministic, resolvable copy.
func (e *Environment) loadFunctions(cp *compiler.CompiledProgram) {
	for name, info := range cp.Functions {
		e.Functions[name] = info.Node
	}
}
