// Package langerr defines the closed error taxonomy every pipeline stage
// returns instead of throwing: lex, parse, and axiom errors abort before any
// ledger effect; runtime errors unwind to the nearest when-block or to the
// caller of Run.
package langerr

import "fmt"

// Kind distinguishes the five error categories of spec.md §7.
type Kind string

const (
	KindLex       Kind = "lex"
	KindParse     Kind = "parse"
	KindAxiom     Kind = "axiom"
	KindRuntime   Kind = "runtime"
	KindKernelHalt Kind = "kernel_halt"
)

// Pos is a source location. Zero value means "no position" (e.g. a kernel
// halt has no source line).
type Pos struct {
	Line int
	Col  int
}

func (p Pos) String() string {
	if p.Line == 0 {
		return ""
	}
	return fmt.Sprintf("%d:%d", p.Line, p.Col)
}

// Error is the single sum-type error returned across the pipeline boundary.
type Error struct {
	Kind    Kind
	Pos     Pos
	Message string

	// Axiom-only fields.
	AxiomNumber int
	AxiomName   string

	// Runtime-only field: the speaker active when the error occurred, if any.
	Speaker string

	wrapped error
}

func (e *Error) Error() string {
	switch e.Kind {
	case KindAxiom:
		return fmt.Sprintf("Axiom %d violation (line %d) — %s: %s", e.AxiomNumber, e.Pos.Line, e.AxiomName, e.Message)
	case KindRuntime:
		if e.Speaker != "" {
			return fmt.Sprintf("Broken [%s]: %s", e.Speaker, e.Message)
		}
		return fmt.Sprintf("Broken: %s", e.Message)
	case KindLex:
		return fmt.Sprintf("Lex error at %s: %s", e.Pos, e.Message)
	case KindParse:
		return fmt.Sprintf("Parse error at %s: %s", e.Pos, e.Message)
	case KindKernelHalt:
		return fmt.Sprintf("kernel halt: %s", e.Message)
	default:
		return e.Message
	}
}

func (e *Error) Unwrap() error { return e.wrapped }

// Lex builds a LexError at the given position.
func Lex(pos Pos, format string, args ...interface{}) *Error {
	return &Error{Kind: KindLex, Pos: pos, Message: fmt.Sprintf(format, args...)}
}

// Parse builds a ParseError at the given position.
func Parse(pos Pos, format string, args ...interface{}) *Error {
	return &Error{Kind: KindParse, Pos: pos, Message: fmt.Sprintf(format, args...)}
}

// Axiom builds an AxiomViolation.
func Axiom(number int, name string, pos Pos, format string, args ...interface{}) *Error {
	return &Error{
		Kind:        KindAxiom,
		Pos:         pos,
		AxiomNumber: number,
		AxiomName:   name,
		Message:     fmt.Sprintf(format, args...),
	}
}

// Runtime builds a RuntimeError, optionally naming the active speaker.
func Runtime(speaker string, format string, args ...interface{}) *Error {
	return &Error{Kind: KindRuntime, Speaker: speaker, Message: fmt.Sprintf(format, args...)}
}

// KernelHalt builds the unrecoverable kernel halt error. wrapped carries the
// stack-traced cause supplied by the caller.
func KernelHalt(wrapped error, format string, args ...interface{}) *Error {
	return &Error{Kind: KindKernelHalt, Message: fmt.Sprintf(format, args...), wrapped: wrapped}
}

// IsAxiom reports whether err is an AxiomViolation, and if so which one.
func IsAxiom(err error) (*Error, bool) {
	e, ok := err.(*Error)
	if !ok || e.Kind != KindAxiom {
		return nil, false
	}
	return e, true
}
