// Package value implements the dynamically-tagged Value sum type shared by
// memory partitions, the evaluator, and the runtime: integer, float,
// string, boolean, none, status literal, reference, and ordered/associative
// containers (spec.md §3 "Value").
package value

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
)

// Kind is the closed tag set. Kind itself is never exposed to program text
// except through the status literal kind.
type Kind string

const (
	KindInt    Kind = "int"
	KindFloat  Kind = "float"
	KindString Kind = "string"
	KindBool   Kind = "bool"
	KindNone   Kind = "none"
	KindStatus Kind = "status"
	KindRef    Kind = "ref"
	KindList   Kind = "list"
	KindMap    Kind = "map"
)

// Status is the closed status-literal value (distinct from ledger.Status,
// which this package does not depend on, to keep value a leaf package).
type Status string

const (
	StatusActive   Status = "active"
	StatusInactive Status = "inactive"
	StatusBroken   Status = "broken"
)

// Value is implemented by every concrete value kind. It is intentionally a
// closed set — type-switch on the concrete type, never add a new
// implementation outside this package.
type Value interface {
	Kind() Kind
	String() string
	value() // unexported marker to seal the interface to this package
}

type Int int64

func (Int) Kind() Kind        { return KindInt }
func (v Int) String() string  { return strconv.FormatInt(int64(v), 10) }
func (Int) value()            {}

type Float float64

func (Float) Kind() Kind       { return KindFloat }
func (v Float) String() string { return strconv.FormatFloat(float64(v), 'g', -1, 64) }
func (Float) value()           {}

type Str string

func (Str) Kind() Kind        { return KindString }
func (v Str) String() string  { return string(v) }
func (Str) value()            {}

type Bool bool

func (Bool) Kind() Kind       { return KindBool }
func (v Bool) String() string { return strconv.FormatBool(bool(v)) }
func (Bool) value()           {}

// None is the single undefined value; it propagates through arithmetic and
// comparisons (spec.md §3, §8 boundary behaviors).
type None struct{}

func (None) Kind() Kind     { return KindNone }
func (None) String() string { return "none" }
func (None) value()         {}

type StatusVal Status

func (StatusVal) Kind() Kind       { return KindStatus }
func (v StatusVal) String() string { return string(v) }
func (StatusVal) value()           {}

// Ref is a reference to another variable by dotted-segment path (spec.md
// §9: "not nested structures — a string key within a partition").
type Ref string

func (Ref) Kind() Kind       { return KindRef }
func (v Ref) String() string { return "ref:" + string(v) }
func (Ref) value()           {}

// List is an ordered container.
type List []Value

func (List) Kind() Kind { return KindList }
func (v List) String() string {
	parts := make([]string, len(v))
	for i, e := range v {
		parts[i] = e.String()
	}
	return "[" + strings.Join(parts, ", ") + "]"
}
func (List) value() {}

// Map is an associative container. Iteration order (e.g. String()) is
// always sorted by key — spec.md A6 determinism.
type Map map[string]Value

func (Map) Kind() Kind { return KindMap }
func (v Map) String() string {
	keys := make([]string, 0, len(v))
	for k := range v {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, len(keys))
	for i, k := range keys {
		parts[i] = fmt.Sprintf("%s: %s", k, v[k].String())
	}
	return "{" + strings.Join(parts, ", ") + "}"
}
func (Map) value() {}

// IsNone reports whether v is the none value (or a nil interface, which
// memory.Read and similar treat identically to None{}).
func IsNone(v Value) bool {
	if v == nil {
		return true
	}
	_, ok := v.(None)
	return ok
}
