package runtime

import (
	"github.com/user/humanlogica/internal/ast"
	"github.com/user/humanlogica/internal/langerr"
	"github.com/user/humanlogica/internal/value"
)

// sealedWriteError reports an attempt to write a variable previously sealed
// by the owning speaker (spec.md §4.11 seal semantics).
func sealedWriteError(speakerName, varName string) error {
	return langerr.Runtime(speakerName, "cannot write to sealed variable %s", varName)
}

// resolveSpeakerRef evaluates a target expression that must name a speaker
// (an Identifier naming a declared speaker, "self", or "world") and returns
// its kernel id.
func (e *Environment) resolveSpeakerRef(n ast.Node) (int64, *langerr.Error) {
	id, ok := n.(*ast.Identifier)
	if !ok {
		return 0, langerr.Runtime(e.CurrentName, "expected a speaker name")
	}
	if id.Name == "self" {
		return e.CurrentID, nil
	}
	sid, found := e.NameToID[id.Name]
	if !found {
		return 0, langerr.Runtime(e.CurrentName, "unknown speaker %q", id.Name)
	}
	return sid, nil
}

// evalExpr evaluates an expression node against the current environment.
func (e *Environment) evalExpr(node ast.Node) (value.Value, *langerr.Error) {
	switch n := node.(type) {
	case *ast.IntLit:
		return value.Int(n.Value), nil
	case *ast.FloatLit:
		return value.Float(n.Value), nil
	case *ast.StringLit:
		return value.Str(n.Value), nil
	case *ast.BoolLit:
		return value.Bool(n.Value), nil
	case *ast.NoneLit:
		return value.None{}, nil
	case *ast.StatusLit:
		return value.StatusVal(n.Value), nil

	case *ast.Identifier:
		return e.resolveRead(n.Name), nil

	case *ast.MemberAccess:
		return e.evalMemberAccess(n)

	case *ast.IndexAccess:
		return e.evalIndexAccess(n)

	case *ast.BinaryOp:
		return e.evalBinaryOp(n)

	case *ast.UnaryOp:
		return e.evalUnaryOp(n)

	case *ast.FnCall:
		return e.evalFnCall(n)

	case *ast.ReadExpr:
		return e.evalReadExpr(n)

	default:
		return value.None{}, langerr.Runtime(e.CurrentName, "unsupported expression kind %T", node)
	}
}

func (e *Environment) evalMemberAccess(n *ast.MemberAccess) (value.Value, *langerr.Error) {
	if id, ok := n.Target.(*ast.Identifier); ok {
		if sid, found := e.NameToID[id.Name]; found {
			v, err := e.Mary.Read(e.CurrentID, sid, n.Name)
			if err != nil {
				return value.None{}, langerr.Runtime(e.CurrentName, "%s", err)
			}
			return v, nil
		}
		if id.Name == "self" {
			v, err := e.Mary.Read(e.CurrentID, e.CurrentID, n.Name)
			if err != nil {
				return value.None{}, langerr.Runtime(e.CurrentName, "%s", err)
			}
			return v, nil
		}
	}
	target, err := e.evalExpr(n.Target)
	if err != nil {
		return value.None{}, err
	}
	if m, ok := target.(value.Map); ok {
		if v, found := m[n.Name]; found {
			return v, nil
		}
		return value.None{}, nil
	}
	return value.None{}, langerr.Runtime(e.CurrentName, "cannot access member %q of %s", n.Name, target.Kind())
}

func (e *Environment) evalIndexAccess(n *ast.IndexAccess) (value.Value, *langerr.Error) {
	target, err := e.evalExpr(n.Target)
	if err != nil {
		return value.None{}, err
	}
	idx, err := e.evalExpr(n.Index)
	if err != nil {
		return value.None{}, err
	}
	switch t := target.(type) {
	case value.List:
		i, ok := asInt(idx)
		if !ok || i < 0 || i >= len(t) {
			return value.None{}, nil
		}
		return t[i], nil
	case value.Map:
		key, ok := idx.(value.Str)
		if !ok {
			return value.None{}, nil
		}
		if v, found := t[string(key)]; found {
			return v, nil
		}
		return value.None{}, nil
	default:
		return value.None{}, langerr.Runtime(e.CurrentName, "cannot index %s", target.Kind())
	}
}

func (e *Environment) evalReadExpr(n *ast.ReadExpr) (value.Value, *langerr.Error) {
	if n.Speaker == "" || n.Speaker == "self" {
		return e.resolveRead(n.Name), nil
	}
	sid, found := e.NameToID[n.Speaker]
	if !found {
		return value.None{}, langerr.Runtime(e.CurrentName, "unknown speaker %q", n.Speaker)
	}
	v, err := e.Mary.Read(e.CurrentID, sid, n.Name)
	if err != nil {
		return value.None{}, langerr.Runtime(e.CurrentName, "%s", err)
	}
	return v, nil
}

func (e *Environment) evalUnaryOp(n *ast.UnaryOp) (value.Value, *langerr.Error) {
	v, err := e.evalExpr(n.Operand)
	if err != nil {
		return value.None{}, err
	}
	switch n.Op {
	case "-":
		switch x := v.(type) {
		case value.Int:
			return value.Int(-x), nil
		case value.Float:
			return value.Float(-x), nil
		default:
			return value.None{}, langerr.Runtime(e.CurrentName, "cannot negate %s", v.Kind())
		}
	case "not":
		return value.Bool(!isTruthy(v)), nil
	default:
		return value.None{}, langerr.Runtime(e.CurrentName, "unknown unary operator %q", n.Op)
	}
}

func (e *Environment) evalBinaryOp(n *ast.BinaryOp) (value.Value, *langerr.Error) {
	if n.Op == "or" {
		l, err := e.evalExpr(n.Left)
		if err != nil {
			return value.None{}, err
		}
		if isTruthy(l) {
			return value.Bool(true), nil
		}
		r, err := e.evalExpr(n.Right)
		if err != nil {
			return value.None{}, err
		}
		return value.Bool(isTruthy(r)), nil
	}
	if n.Op == "and" {
		l, err := e.evalExpr(n.Left)
		if err != nil {
			return value.None{}, err
		}
		if !isTruthy(l) {
			return value.Bool(false), nil
		}
		r, err := e.evalExpr(n.Right)
		if err != nil {
			return value.None{}, err
		}
		return value.Bool(isTruthy(r)), nil
	}

	l, err := e.evalExpr(n.Left)
	if err != nil {
		return value.None{}, err
	}
	r, err := e.evalExpr(n.Right)
	if err != nil {
		return value.None{}, err
	}

	switch n.Op {
	case "==", "!=":
		eq := valuesEqual(l, r)
		if n.Op == "!=" {
			eq = !eq
		}
		return value.Bool(eq), nil
	case "<", ">", "<=", ">=":
		return compareNumeric(e, n.Op, l, r)
	case "+":
		if ls, ok := l.(value.Str); ok {
			if rs, ok := r.(value.Str); ok {
				return value.Str(string(ls) + string(rs)), nil
			}
		}
		return arithmetic(e, n.Op, l, r)
	case "-", "*", "/", "%":
		return arithmetic(e, n.Op, l, r)
	default:
		return value.None{}, langerr.Runtime(e.CurrentName, "unknown binary operator %q", n.Op)
	}
}

func (e *Environment) evalFnCall(n *ast.FnCall) (value.Value, *langerr.Error) {
	id, ok := n.Callee.(*ast.Identifier)
	if !ok {
		return value.None{}, langerr.Runtime(e.CurrentName, "call target must be a function name")
	}
	fn, found := e.Functions[id.Name]
	if !found {
		return value.None{}, langerr.Runtime(e.CurrentName, "unknown function %q", id.Name)
	}
	if len(n.Args) != len(fn.Params) {
		return value.None{}, langerr.Runtime(e.CurrentName, "function %q expects %d arguments, got %d", id.Name, len(fn.Params), len(n.Args))
	}

	args := make([]value.Value, len(n.Args))
	for i, a := range n.Args {
		v, err := e.evalExpr(a)
		if err != nil {
			return value.None{}, err
		}
		args[i] = v
	}

	e.pushScope()
	for i, p := range fn.Params {
		e.bindLocal(p, args[i])
	}

	savedReturn, savedHasReturn := e.returnValue, e.hasReturn
	e.returnValue, e.hasReturn = value.None{}, false

	var callErr *langerr.Error
	for _, stmt := range fn.Body {
		if callErr = e.execStmt(stmt, e.CurrentName); callErr != nil {
			break
		}
		if e.hasReturn {
			break
		}
	}

	result := e.returnValue
	hadReturn := e.hasReturn
	e.returnValue, e.hasReturn = savedReturn, savedHasReturn
	e.popScope()

	if callErr != nil {
		return value.None{}, callErr
	}
	if !hadReturn {
		return value.None{}, nil
	}
	return result, nil
}

func isTruthy(v value.Value) bool {
	switch x := v.(type) {
	case value.Bool:
		return bool(x)
	case value.None:
		return false
	case value.Int:
		return x != 0
	case value.Float:
		return x != 0
	case value.Str:
		return x != ""
	case value.StatusVal:
		return x == value.StatusVal(value.StatusActive)
	default:
		return true
	}
}

func asInt(v value.Value) (int, bool) {
	switch x := v.(type) {
	case value.Int:
		return int(x), true
	case value.Float:
		return int(x), true
	default:
		return 0, false
	}
}

func asFloat(v value.Value) (float64, bool) {
	switch x := v.(type) {
	case value.Int:
		return float64(x), true
	case value.Float:
		return float64(x), true
	default:
		return 0, false
	}
}

func valuesEqual(l, r value.Value) bool {
	if value.IsNone(l) && value.IsNone(r) {
		return true
	}
	if lf, ok := asFloat(l); ok {
		if rf, ok := asFloat(r); ok {
			return lf == rf
		}
	}
	return l.Kind() == r.Kind() && l.String() == r.String()
}

func compareNumeric(e *Environment, op string, l, r value.Value) (value.Value, *langerr.Error) {
	if value.IsNone(l) || value.IsNone(r) {
		return value.None{}, nil
	}
	lf, lok := asFloat(l)
	rf, rok := asFloat(r)
	if !lok || !rok {
		return value.None{}, langerr.Runtime(e.CurrentName, "cannot compare %s and %s", l.Kind(), r.Kind())
	}
	switch op {
	case "<":
		return value.Bool(lf < rf), nil
	case ">":
		return value.Bool(lf > rf), nil
	case "<=":
		return value.Bool(lf <= rf), nil
	case ">=":
		return value.Bool(lf >= rf), nil
	default:
		return value.None{}, langerr.Runtime(e.CurrentName, "unknown comparison operator %q", op)
	}
}

func arithmetic(e *Environment, op string, l, r value.Value) (value.Value, *langerr.Error) {
	// none propagates through arithmetic rather than erroring (spec.md §3,
	// §8 boundary behaviors).
	if value.IsNone(l) || value.IsNone(r) {
		return value.None{}, nil
	}

	li, liok := l.(value.Int)
	ri, riok := r.(value.Int)
	if liok && riok {
		switch op {
		case "+":
			return li + ri, nil
		case "-":
			return li - ri, nil
		case "*":
			return li * ri, nil
		case "/":
			if ri == 0 {
				return value.None{}, langerr.Runtime(e.CurrentName, "division by zero")
			}
			return li / ri, nil
		case "%":
			if ri == 0 {
				return value.None{}, langerr.Runtime(e.CurrentName, "modulo by zero")
			}
			return li % ri, nil
		}
	}

	lf, lok := asFloat(l)
	rf, rok := asFloat(r)
	if !lok || !rok {
		return value.None{}, langerr.Runtime(e.CurrentName, "cannot apply %q to %s and %s", op, l.Kind(), r.Kind())
	}
	switch op {
	case "+":
		return value.Float(lf + rf), nil
	case "-":
		return value.Float(lf - rf), nil
	case "*":
		return value.Float(lf * rf), nil
	case "/":
		if rf == 0 {
			return value.None{}, langerr.Runtime(e.CurrentName, "division by zero")
		}
		return value.Float(lf / rf), nil
	case "%":
		return value.None{}, langerr.Runtime(e.CurrentName, "modulo requires integer operands")
	default:
		return value.None{}, langerr.Runtime(e.CurrentName, "unknown arithmetic operator %q", op)
	}
}
