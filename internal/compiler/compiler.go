// Package compiler implements C10: a two-pass proof checker that walks the
// AST, enforces the compile-time axioms (A1, A3, A7, A8, A9), and emits a
// linear CompiledProgram (spec.md §4.10).
package compiler

import (
	"fmt"
	"sort"

	"github.com/user/humanlogica/internal/ast"
	"github.com/user/humanlogica/internal/langerr"
)

// OpKind is the closed set of operations emitted into CompiledProgram.
type OpKind string

const (
	OpSpeakerDecl OpKind = "speaker_decl"
	OpWorldDecl   OpKind = "world_decl"
	OpAsEnter     OpKind = "as_enter"
	OpLet         OpKind = "let"
	OpSpeak       OpKind = "speak"
	OpWhenEval    OpKind = "when_eval"
	OpIfEval      OpKind = "if_eval"
	OpLoopStart   OpKind = "loop_start"
	OpFnDefine    OpKind = "fn_define"
	OpReturn      OpKind = "return"
	OpRequest     OpKind = "request"
	OpRespond     OpKind = "respond"
	OpInspect     OpKind = "inspect"
	OpHistory     OpKind = "history"
	OpLedger      OpKind = "ledger"
	OpVerify      OpKind = "verify"
	OpSeal        OpKind = "seal"
	OpPass        OpKind = "pass"
	OpFail        OpKind = "fail"
	OpExprStmt    OpKind = "expression_statement"
)

// Op is one emitted operation. Node carries the original AST subtree so the
// runtime can re-walk block-structured ops (when_eval, if_eval, loop_start,
// fn_define) with the statement executor.
type Op struct {
	Kind    OpKind
	Node    ast.Node
	Speaker string // the enclosing "as S" speaker context, "" at top level
}

// FnInfo is a top-level function signature collected on the first pass.
type FnInfo struct {
	Name   string
	Params []string
	Node   *ast.Fn
}

// CompiledProgram is the compiler's output.
type CompiledProgram struct {
	Operations []Op
	Speakers   map[string]bool
	Functions  map[string]FnInfo
}

// Compile runs both passes over prog.
func Compile(prog *ast.Program) (*CompiledProgram, *langerr.Error) {
	cp := &CompiledProgram{
		Speakers:  make(map[string]bool),
		Functions: make(map[string]FnInfo),
	}

	collectDecls(prog.Statements, cp)

	c := &checker{cp: cp}
	if err := c.checkAndEmit(prog.Statements, "", true); err != nil {
		return nil, err
	}
	return cp, nil
}

// collectDecls is the first pass: gather top-level speaker and fn names
// regardless of order, so forward references are legal.
func collectDecls(stmts []ast.Node, cp *CompiledProgram) {
	for _, s := range stmts {
		switch n := s.(type) {
		case *ast.SpeakerDecl:
			cp.Speakers[n.Name] = true
		case *ast.Fn:
			cp.Functions[n.Name] = FnInfo{Name: n.Name, Params: n.Params, Node: n}
		}
	}
}

// checker implements the second pass, tracking the current speaker context
// for A1/A7/A8.
type checker struct {
	cp *CompiledProgram
}

// checkAndEmit walks a SEQUENTIAL, unconditionally-executed statement list
// (the program top level, or an as-block's body), appending Ops to
// c.cp.Operations in execution order: one per statement, except that a
// top-level fn emits none and an as-block emits its body's ops. speaker is the enclosing
// "as S" context ("" means "no speaker context yet"). topLevel restricts
// which statements may appear directly (A1).
func (c *checker) checkAndEmit(stmts []ast.Node, speaker string, topLevel bool) *langerr.Error {
	for _, s := range stmts {
		if err := c.checkOne(s, speaker, topLevel); err != nil {
			return err
		}
	}
	return nil
}

// validateOnly walks a CONDITIONAL or REPEATED body (when/if/while/fn) and
// re-applies every axiom recursively, WITHOUT appending to c.cp.Operations:
// such bodies are not part of the linear top-level sequence — the runtime's
// statement executor re-walks the AST subtree attached to the enclosing
// block op (when_eval, if_eval, loop_start, fn_define) directly instead.
func (c *checker) validateOnly(stmts []ast.Node, speaker string) *langerr.Error {
	for _, s := range stmts {
		if err := c.validateOne(s, speaker); err != nil {
			return err
		}
	}
	return nil
}

func (c *checker) validateOne(s ast.Node, speaker string) *langerr.Error {
	switch n := s.(type) {
	case *ast.SpeakerDecl, *ast.WorldDecl:
		return nil
	case *ast.AsBlock:
		if !c.cp.Speakers[n.Speaker] {
			return axiom1(n.Position(), fmt.Sprintf("as block enters undeclared speaker %q", n.Speaker))
		}
		return c.validateOnly(n.Body, n.Speaker)
	default:
		if speaker == "" {
			return axiom1(s.Position(), "side-effectful statement issued outside any speaker context")
		}
		return c.validateSideEffectful(s, speaker)
	}
}

func (c *checker) validateSideEffectful(s ast.Node, speaker string) *langerr.Error {
	switch n := s.(type) {
	case *ast.Let:
		return checkWriteOwnership(c.cp, n, speaker)
	case *ast.When:
		if err := c.validateOnly(n.Active, speaker); err != nil {
			return err
		}
		if err := c.validateOnly(n.Otherwise, speaker); err != nil {
			return err
		}
		return c.validateOnly(n.Broken, speaker)
	case *ast.If:
		if err := c.validateOnly(n.Then, speaker); err != nil {
			return err
		}
		for _, e := range n.Elifs {
			if err := c.validateOnly(e.Body, speaker); err != nil {
				return err
			}
		}
		return c.validateOnly(n.Else, speaker)
	case *ast.While:
		if n.Max == nil {
			return axiom9(n.Position(), "while loop has no max N bound")
		}
		return c.validateOnly(n.Body, speaker)
	case *ast.Fn:
		return c.validateOnly(n.Body, speaker)
	default:
		return nil
	}
}

func (c *checker) checkOne(s ast.Node, speaker string, topLevel bool) *langerr.Error {
	switch n := s.(type) {
	case *ast.SpeakerDecl:
		c.cp.Operations = append(c.cp.Operations, Op{Kind: OpSpeakerDecl, Node: n, Speaker: speaker})
		return nil

	case *ast.WorldDecl:
		c.cp.Operations = append(c.cp.Operations, Op{Kind: OpWorldDecl, Node: n, Speaker: speaker})
		return nil

	case *ast.Fn:
		// A top-level fn is a pure declaration, already gathered by
		// collectDecls — it carries no speaker context of its own (one is
		// supplied by whichever "as S" block calls it). Its body is not
		// axiom-checked here, and no later compile step checks it either.
		return nil

	case *ast.AsBlock:
		if !c.cp.Speakers[n.Speaker] {
			return axiom1(n.Position(), fmt.Sprintf("as block enters undeclared speaker %q", n.Speaker))
		}
		// The body is a sequential list, so it is flattened into the linear
		// op sequence with n.Speaker as each op's speaker context.
		return c.checkAndEmit(n.Body, n.Speaker, false)

	default:
		if topLevel {
			return axiom1(s.Position(), "non-declaration statement outside an as-block at top level")
		}
		if speaker == "" {
			return axiom1(s.Position(), "side-effectful statement issued outside any speaker context")
		}
		return c.checkSideEffectful(s, speaker)
	}
}

// checkSideEffectful handles every statement kind legal inside an as-block.
func (c *checker) checkSideEffectful(s ast.Node, speaker string) *langerr.Error {
	switch n := s.(type) {
	case *ast.Let:
		if err := checkWriteOwnership(c.cp, n, speaker); err != nil {
			return err
		}
		c.cp.Operations = append(c.cp.Operations, Op{Kind: OpLet, Node: n, Speaker: speaker})
		return nil

	case *ast.Speak:
		c.cp.Operations = append(c.cp.Operations, Op{Kind: OpSpeak, Node: n, Speaker: speaker})
		return nil

	case *ast.When:
		// A3: all three arms (active/otherwise/broken) are preserved as-is
		// in the emitted op; the runtime picks exactly one at eval time.
		// Their bodies are validated recursively here but NOT flattened
		// into the top-level sequence (they run conditionally).
		if err := c.validateOnly(n.Active, speaker); err != nil {
			return err
		}
		if err := c.validateOnly(n.Otherwise, speaker); err != nil {
			return err
		}
		if err := c.validateOnly(n.Broken, speaker); err != nil {
			return err
		}
		c.cp.Operations = append(c.cp.Operations, Op{Kind: OpWhenEval, Node: n, Speaker: speaker})
		return nil

	case *ast.If:
		if err := c.validateOnly(n.Then, speaker); err != nil {
			return err
		}
		for _, e := range n.Elifs {
			if err := c.validateOnly(e.Body, speaker); err != nil {
				return err
			}
		}
		if err := c.validateOnly(n.Else, speaker); err != nil {
			return err
		}
		c.cp.Operations = append(c.cp.Operations, Op{Kind: OpIfEval, Node: n, Speaker: speaker})
		return nil

	case *ast.While:
		if n.Max == nil {
			return axiom9(n.Position(), "while loop has no max N bound")
		}
		if err := c.validateOnly(n.Body, speaker); err != nil {
			return err
		}
		c.cp.Operations = append(c.cp.Operations, Op{Kind: OpLoopStart, Node: n, Speaker: speaker})
		return nil

	case *ast.Fn:
		if err := c.validateOnly(n.Body, speaker); err != nil {
			return err
		}
		c.cp.Functions[n.Name] = FnInfo{Name: n.Name, Params: n.Params, Node: n}
		c.cp.Operations = append(c.cp.Operations, Op{Kind: OpFnDefine, Node: n, Speaker: speaker})
		return nil

	case *ast.Return:
		c.cp.Operations = append(c.cp.Operations, Op{Kind: OpReturn, Node: n, Speaker: speaker})
		return nil

	case *ast.Request:
		c.cp.Operations = append(c.cp.Operations, Op{Kind: OpRequest, Node: n, Speaker: speaker})
		return nil

	case *ast.Respond:
		c.cp.Operations = append(c.cp.Operations, Op{Kind: OpRespond, Node: n, Speaker: speaker})
		return nil

	case *ast.Inspect:
		c.cp.Operations = append(c.cp.Operations, Op{Kind: OpInspect, Node: n, Speaker: speaker})
		return nil

	case *ast.History:
		c.cp.Operations = append(c.cp.Operations, Op{Kind: OpHistory, Node: n, Speaker: speaker})
		return nil

	case *ast.LedgerStmt:
		c.cp.Operations = append(c.cp.Operations, Op{Kind: OpLedger, Node: n, Speaker: speaker})
		return nil

	case *ast.Verify:
		c.cp.Operations = append(c.cp.Operations, Op{Kind: OpVerify, Node: n, Speaker: speaker})
		return nil

	case *ast.Seal:
		c.cp.Operations = append(c.cp.Operations, Op{Kind: OpSeal, Node: n, Speaker: speaker})
		return nil

	case *ast.Pass:
		c.cp.Operations = append(c.cp.Operations, Op{Kind: OpPass, Node: n, Speaker: speaker})
		return nil

	case *ast.Fail:
		c.cp.Operations = append(c.cp.Operations, Op{Kind: OpFail, Node: n, Speaker: speaker})
		return nil

	case *ast.SpeakerDecl, *ast.WorldDecl, *ast.AsBlock:
		// Declarations remain legal anywhere (A1 only restricts the
		// top-level + no-context cases, both handled by the caller).
		return c.checkOne(s, speaker, false)

	case *ast.ExpressionStatement:
		c.cp.Operations = append(c.cp.Operations, Op{Kind: OpExprStmt, Node: n, Speaker: speaker})
		return nil

	default:
		c.cp.Operations = append(c.cp.Operations, Op{Kind: OpExprStmt, Node: n, Speaker: speaker})
		return nil
	}
}

// checkWriteOwnership implements A8: `let X = v` where X carries a dotted
// prefix naming a declared speaker other than the current one is illegal;
// `let self.v = v` and unqualified `let v = v` are always legal.
func checkWriteOwnership(cp *CompiledProgram, n *ast.Let, speaker string) *langerr.Error {
	prefix, _ := splitDotted(n.Name)
	if prefix == "" || prefix == "self" || prefix == speaker {
		return nil
	}
	// WHY: only reject a prefix that names a *declared* speaker. A dotted
	// name whose prefix is some other local identifier isn't a cross-speaker
	// write at all — it's resolved against local scope at runtime — so
	// treating every unrecognized prefix as a violation would reject legal
	// programs the compiler can't yet prove are local.
	if cp.Speakers[prefix] {
		return axiom8(n.Position(), fmt.Sprintf("let %s assigns into speaker %q's partition from speaker %q's context", n.Name, prefix, speaker))
	}
	return nil
}

func splitDotted(name string) (prefix, rest string) {
	idx := -1
	for i := 0; i < len(name); i++ {
		if name[i] == '.' {
			idx = i
			break
		}
	}
	if idx < 0 {
		return "", name
	}
	return name[:idx], name[idx+1:]
}

func axiom1(pos ast.Pos, msg string) *langerr.Error {
	return langerr.Axiom(1, "Speaker Requirement", langerr.Pos{Line: pos.Line, Col: pos.Col}, "%s", msg)
}

func axiom9(pos ast.Pos, msg string) *langerr.Error {
	return langerr.Axiom(9, "No Infinite Loops", langerr.Pos{Line: pos.Line, Col: pos.Col}, "%s", msg)
}

func axiom8(pos ast.Pos, msg string) *langerr.Error {
	return langerr.Axiom(8, "Write Ownership", langerr.Pos{Line: pos.Line, Col: pos.Col}, "%s", msg)
}

// SortedFunctionNames returns function table keys in deterministic order
// (A6).
func SortedFunctionNames(cp *CompiledProgram) []string {
	names := make([]string, 0, len(cp.Functions))
	for n := range cp.Functions {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}
