package runtime

import (
	"fmt"
	"sort"

	"github.com/user/humanlogica/internal/ast"
	"github.com/user/humanlogica/internal/compiler"
	"github.com/user/humanlogica/internal/evaluator"
	"github.com/user/humanlogica/internal/ledger"
	"github.com/user/humanlogica/internal/langerr"
	"github.com/user/humanlogica/internal/speaker"
	"github.com/user/humanlogica/internal/value"
)

const defaultHistoryCount = 10

// Run drives a compiled program to completion: a single linear pass over
// cp.Operations, with block-structured ops re-walking their attached AST
// subtree via execBody/execStmt.
func Run(cp *compiler.CompiledProgram, env *Environment) ([]string, *langerr.Error) {
	env.loadFunctions(cp)
	if err := preDeclareSpeakers(cp, env); err != nil {
		return nil, err
	}

	for _, op := range cp.Operations {
		if err := env.execStmt(op.Node, op.Speaker); err != nil {
			return env.Output, err
		}
	}
	return env.Output, nil
}

// preDeclareSpeakers mints every statically declared speaker up front, in
// sorted name order (A6), so forward references ("as X" before "speaker X"
// in source order) resolve correctly.
func preDeclareSpeakers(cp *compiler.CompiledProgram, env *Environment) *langerr.Error {
	// Seed every speaker already known to this kernel first, so a program
	// run against a persisted Mary (the REPL's --persist mode) can refer to
	// speakers declared by an earlier input without redeclaring them.
	for _, s := range env.Mary.Registry.ListAll() {
		if _, exists := env.NameToID[s.Name]; !exists {
			env.NameToID[s.Name] = s.ID
		}
	}

	names := make([]string, 0, len(cp.Speakers))
	for n := range cp.Speakers {
		names = append(names, n)
	}
	sort.Strings(names)
	for _, name := range names {
		if _, exists := env.NameToID[name]; exists {
			continue
		}
		if s, found := env.Mary.Registry.GetByName(name); found {
			// Speaker already exists on this kernel (e.g. a prior Run call
			// against the same persisted *mary.Mary) — reuse its id rather
			// than minting a duplicate.
			env.NameToID[name] = s.ID
			continue
		}
		s, err := env.Mary.CreateSpeaker(speaker.RootID, name)
		if err != nil {
			return langerr.Runtime("", "failed to mint declared speaker %q: %s", name, err)
		}
		env.NameToID[name] = s.ID
	}
	return nil
}

// execBody runs a sequential statement list sharing the same speaker
// context — used both for AsBlock bodies and conditional/repeated bodies
// (when/if/while/fn) re-walked off their AST subtree.
func (e *Environment) execBody(stmts []ast.Node, speakerName string) *langerr.Error {
	for _, s := range stmts {
		if err := e.execStmt(s, speakerName); err != nil {
			return err
		}
	}
	return nil
}

func (e *Environment) enter(speakerName string) (prevName string, prevID int64) {
	prevName, prevID = e.CurrentName, e.CurrentID
	e.CurrentName = speakerName
	e.CurrentID = e.NameToID[speakerName]
	return
}

func (e *Environment) leave(prevName string, prevID int64) {
	e.CurrentName, e.CurrentID = prevName, prevID
}

// execStmt dispatches a single statement. speakerName is the statement's
// enclosing "as S" context (possibly unchanged from the caller's, for
// nested bodies).
func (e *Environment) execStmt(node ast.Node, speakerName string) *langerr.Error {
	switch n := node.(type) {
	case *ast.SpeakerDecl, *ast.WorldDecl:
		return nil // minted by preDeclareSpeakers / NewEnvironment.

	case *ast.AsBlock:
		prevName, prevID := e.enter(n.Speaker)
		err := e.execBody(n.Body, n.Speaker)
		e.leave(prevName, prevID)
		return err

	case *ast.Let:
		prevName, prevID := e.enter(speakerName)
		defer e.leave(prevName, prevID)
		v, err := e.evalExpr(n.Value)
		if err != nil {
			return err
		}
		target := resolveLetTarget(n.Name)
		if err := e.write(target, v); err != nil {
			if lerr, ok := err.(*langerr.Error); ok {
				return lerr
			}
			return langerr.Runtime(e.CurrentName, "%s", err)
		}
		return nil

	case *ast.Speak:
		prevName, prevID := e.enter(speakerName)
		defer e.leave(prevName, prevID)
		v, err := e.evalExpr(n.Value)
		if err != nil {
			return err
		}
		e.Output = append(e.Output, fmt.Sprintf("  [%s] %s", e.CurrentName, v.String()))
		return nil

	case *ast.When:
		return e.execWhen(n, speakerName)

	case *ast.If:
		return e.execIf(n, speakerName)

	case *ast.While:
		return e.execWhile(n, speakerName)

	case *ast.Fn:
		e.Functions[n.Name] = n
		return nil

	case *ast.Return:
		prevName, prevID := e.enter(speakerName)
		defer e.leave(prevName, prevID)
		if n.Value == nil {
			e.returnValue, e.hasReturn = value.None{}, true
			return nil
		}
		v, err := e.evalExpr(n.Value)
		if err != nil {
			return err
		}
		e.returnValue, e.hasReturn = v, true
		return nil

	case *ast.Request:
		return e.execRequest(n, speakerName)

	case *ast.Respond:
		return e.execRespond(n, speakerName)

	case *ast.Inspect:
		return e.execInspect(n, speakerName)

	case *ast.History:
		return e.execHistory(n, speakerName)

	case *ast.LedgerStmt:
		return e.execLedgerStmt(n, speakerName)

	case *ast.Verify:
		prevName, prevID := e.enter(speakerName)
		defer e.leave(prevName, prevID)
		ok, err := e.Mary.LedgerVerify(e.CurrentID)
		if err != nil {
			return langerr.Runtime(e.CurrentName, "%s", err)
		}
		e.Output = append(e.Output, fmt.Sprintf("ledger verified: %v", ok))
		return nil

	case *ast.Seal:
		prevName, prevID := e.enter(speakerName)
		defer e.leave(prevName, prevID)
		if err := e.Mary.Seal(e.CurrentID, n.Name); err != nil {
			return langerr.Runtime(e.CurrentName, "%s", err)
		}
		e.sealed[sealKey(e.CurrentName, n.Name)] = true
		return nil

	case *ast.Pass:
		prevName, prevID := e.enter(speakerName)
		defer e.leave(prevName, prevID)
		_, err := e.Mary.Submit(e.CurrentID, &evaluator.Expression{ActionLabel: "pass", Action: func() bool { return true }})
		if err != nil {
			return langerr.Runtime(e.CurrentName, "%s", err)
		}
		return nil

	case *ast.Fail:
		return e.execFail(n, speakerName)

	case *ast.ExpressionStatement:
		prevName, prevID := e.enter(speakerName)
		defer e.leave(prevName, prevID)
		_, err := e.evalExpr(n.Expr)
		return err

	default:
		return langerr.Runtime(speakerName, "unsupported statement kind %T", node)
	}
}

// resolveLetTarget strips any dotted prefix and returns the bare variable
// name. A prefix naming another declared speaker was already rejected at
// compile time by A8, so a remaining prefix is "self", the current speaker's
// own name, or a name that is not a declared speaker; in every case the
// write goes to the current speaker.
func resolveLetTarget(name string) string {
	for i := 0; i < len(name); i++ {
		if name[i] == '.' {
			return name[i+1:]
		}
	}
	return name
}

func (e *Environment) execWhen(n *ast.When, speakerName string) *langerr.Error {
	prevName, prevID := e.enter(speakerName)
	defer e.leave(prevName, prevID)

	cond, condErr := e.evalExpr(n.Condition)
	if condErr != nil {
		return e.execBody(n.Broken, speakerName)
	}
	if isTruthy(cond) {
		if err := e.execBody(n.Active, speakerName); err != nil {
			return e.execBody(n.Broken, speakerName)
		}
		return nil
	}
	return e.execBody(n.Otherwise, speakerName)
}

func (e *Environment) execIf(n *ast.If, speakerName string) *langerr.Error {
	prevName, prevID := e.enter(speakerName)
	defer e.leave(prevName, prevID)

	cond, err := e.evalExpr(n.Condition)
	if err != nil {
		return err
	}
	if isTruthy(cond) {
		return e.execBody(n.Then, speakerName)
	}
	for _, elif := range n.Elifs {
		c, err := e.evalExpr(elif.Condition)
		if err != nil {
			return err
		}
		if isTruthy(c) {
			return e.execBody(elif.Body, speakerName)
		}
	}
	return e.execBody(n.Else, speakerName)
}

func (e *Environment) execWhile(n *ast.While, speakerName string) *langerr.Error {
	prevName, prevID := e.enter(speakerName)
	defer e.leave(prevName, prevID)

	maxV, err := e.evalExpr(n.Max)
	if err != nil {
		return err
	}
	bound, ok := asInt(maxV)
	if !ok {
		return langerr.Runtime(e.CurrentName, "while loop bound did not evaluate to an integer")
	}

	count := 0
	for count < bound {
		condV, err := e.evalExpr(n.Condition)
		if err != nil {
			return err
		}
		if !isTruthy(condV) {
			return nil
		}
		if err := e.execBody(n.Body, speakerName); err != nil {
			return err
		}
		count++
	}
	return langerr.Runtime(e.CurrentName, "loop exceeded max %d iterations", bound)
}

func (e *Environment) execFail(n *ast.Fail, speakerName string) *langerr.Error {
	prevName, prevID := e.enter(speakerName)
	defer e.leave(prevName, prevID)

	reason := "fail"
	if n.Reason != nil {
		v, err := e.evalExpr(n.Reason)
		if err == nil {
			reason = v.String()
		}
	}
	e.Mary.Submit(e.CurrentID, &evaluator.Expression{
		ActionLabel: "fail",
		Action:      func() bool { return false },
	})
	return langerr.Runtime(e.CurrentName, "%s", reason)
}

func (e *Environment) execRequest(n *ast.Request, speakerName string) *langerr.Error {
	prevName, prevID := e.enter(speakerName)
	defer e.leave(prevName, prevID)

	targetID, err := e.resolveSpeakerRef(n.Target)
	if err != nil {
		return err
	}
	var payload value.Value
	hasPayload := n.Payload != nil
	if hasPayload {
		v, err := e.evalExpr(n.Payload)
		if err != nil {
			return err
		}
		payload = v
	}
	if _, kerr := e.Mary.Request(e.CurrentID, targetID, n.Label, payload, hasPayload, 0, false); kerr != nil {
		return langerr.Runtime(e.CurrentName, "%s", kerr)
	}
	return nil
}

func (e *Environment) execRespond(n *ast.Respond, speakerName string) *langerr.Error {
	prevName, prevID := e.enter(speakerName)
	defer e.leave(prevName, prevID)

	var payload value.Value
	hasPayload := n.Payload != nil
	if hasPayload {
		v, err := e.evalExpr(n.Payload)
		if err != nil {
			return err
		}
		payload = v
	}
	if _, kerr := e.Mary.Respond(e.CurrentID, "", n.Accept, payload, hasPayload); kerr != nil {
		return langerr.Runtime(e.CurrentName, "%s", kerr)
	}
	return nil
}

func (e *Environment) execInspect(n *ast.Inspect, speakerName string) *langerr.Error {
	prevName, prevID := e.enter(speakerName)
	defer e.leave(prevName, prevID)

	if member, ok := n.Target.(*ast.MemberAccess); ok {
		ownerID, rerr := e.resolveSpeakerRef(member.Target)
		if rerr == nil {
			v, err := e.Mary.InspectVariable(e.CurrentID, ownerID, member.Name)
			if err != nil {
				return langerr.Runtime(e.CurrentName, "%s", err)
			}
			e.Output = append(e.Output, fmt.Sprintf("%s.%s = %s", speakerNameByID(e, ownerID), member.Name, v.String()))
			return nil
		}
	}
	if id, err := e.resolveSpeakerRef(n.Target); err == nil {
		s, kerr := e.Mary.InspectSpeaker(e.CurrentID, id)
		if kerr != nil {
			return langerr.Runtime(e.CurrentName, "%s", kerr)
		}
		e.Output = append(e.Output, fmt.Sprintf("speaker #%d %s [%s]", s.ID, s.Name, s.Status))
		return nil
	}

	v, verr := e.evalExpr(n.Target)
	if verr != nil {
		return verr
	}
	e.Output = append(e.Output, v.String())
	return nil
}

func (e *Environment) execHistory(n *ast.History, speakerName string) *langerr.Error {
	prevName, prevID := e.enter(speakerName)
	defer e.leave(prevName, prevID)

	count := defaultHistoryCount
	if n.Count != nil {
		v, err := e.evalExpr(n.Count)
		if err != nil {
			return err
		}
		if c, ok := asInt(v); ok {
			count = c
		}
	}
	entries, err := e.Mary.LedgerSearch(e.CurrentID, ledger.Filter{HasSpeakerID: true, SpeakerID: e.CurrentID})
	if err != nil {
		return langerr.Runtime(e.CurrentName, "%s", err)
	}
	if len(entries) > count {
		entries = entries[len(entries)-count:]
	}
	for _, entry := range entries {
		e.Output = append(e.Output, entry.String())
	}
	return nil
}

func (e *Environment) execLedgerStmt(n *ast.LedgerStmt, speakerName string) *langerr.Error {
	prevName, prevID := e.enter(speakerName)
	defer e.leave(prevName, prevID)

	v, err := e.evalExpr(n.Count)
	if err != nil {
		return err
	}
	count, ok := asInt(v)
	if !ok {
		return langerr.Runtime(e.CurrentName, "ledger count did not evaluate to an integer")
	}

	var from, to int64
	if n.Last {
		total, cerr := e.Mary.LedgerCount(e.CurrentID)
		if cerr != nil {
			return langerr.Runtime(e.CurrentName, "%s", cerr)
		}
		to = total
		from = total - int64(count)
		if from < 0 {
			from = 0
		}
	} else {
		from, to = 0, int64(count)
	}
	entries, rerr := e.Mary.LedgerRead(e.CurrentID, from, to)
	if rerr != nil {
		return langerr.Runtime(e.CurrentName, "%s", rerr)
	}
	for _, entry := range entries {
		e.Output = append(e.Output, entry.String())
	}
	return nil
}
