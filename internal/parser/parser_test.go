package parser

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/user/humanlogica/internal/ast"
)

func TestParseSpeakerAndAsBlock(t *testing.T) {
	prog, err := Parse("speaker Jared\nas Jared {\n  speak \"hi\"\n}\n")
	require.Nil(t, err)
	require.Len(t, prog.Statements, 2)
	require.IsType(t, &ast.SpeakerDecl{}, prog.Statements[0])
	asBlock, ok := prog.Statements[1].(*ast.AsBlock)
	require.True(t, ok)
	require.Equal(t, "Jared", asBlock.Speaker)
	require.Len(t, asBlock.Body, 1)
	speak, ok := asBlock.Body[0].(*ast.Speak)
	require.True(t, ok)
	str, ok := speak.Value.(*ast.StringLit)
	require.True(t, ok)
	require.Equal(t, "hi", str.Value)
}

func TestParseLetWithDottedName(t *testing.T) {
	prog, err := Parse("let self.grade = 100\n")
	require.Nil(t, err)
	let := prog.Statements[0].(*ast.Let)
	require.Equal(t, "self.grade", let.Name)
}

func TestParseWhenOtherwiseBroken(t *testing.T) {
	src := `when x > 0 {
  speak "pos"
} otherwise {
  speak "nonpos"
} broken {
  speak "err"
}
`
	prog, err := Parse(src)
	require.Nil(t, err)
	w := prog.Statements[0].(*ast.When)
	require.Len(t, w.Active, 1)
	require.Len(t, w.Otherwise, 1)
	require.Len(t, w.Broken, 1)
	cond := w.Condition.(*ast.BinaryOp)
	require.Equal(t, ">", cond.Op)
}

func TestParseWhileMax(t *testing.T) {
	prog, err := Parse("while true, max 10 {\n  pass\n}\n")
	require.Nil(t, err)
	wh := prog.Statements[0].(*ast.While)
	require.IsType(t, &ast.BoolLit{}, wh.Condition)
	max := wh.Max.(*ast.IntLit)
	require.EqualValues(t, 10, max.Value)
}

func TestParseFnAndReturn(t *testing.T) {
	prog, err := Parse("fn add(a, b) {\n  return a + b\n}\n")
	require.Nil(t, err)
	fn := prog.Statements[0].(*ast.Fn)
	require.Equal(t, "add", fn.Name)
	require.Equal(t, []string{"a", "b"}, fn.Params)
	ret := fn.Body[0].(*ast.Return)
	bin := ret.Value.(*ast.BinaryOp)
	require.Equal(t, "+", bin.Op)
}

func TestParsePrecedence(t *testing.T) {
	// "a or b and not c == 1" should parse with and binding tighter than or,
	// not tighter than ==... per the declared chain: or > and > not > comparison.
	prog, err := Parse("speak a or b and not c == 1\n")
	require.Nil(t, err)
	speak := prog.Statements[0].(*ast.Speak)
	top := speak.Value.(*ast.BinaryOp)
	require.Equal(t, "or", top.Op)
}

func TestParseReadExprDotted(t *testing.T) {
	prog, err := Parse("let x = read Jared.grade\n")
	require.Nil(t, err)
	let := prog.Statements[0].(*ast.Let)
	re := let.Value.(*ast.ReadExpr)
	require.Equal(t, "Jared", re.Speaker)
	require.Equal(t, "grade", re.Name)
}

func TestParseLedgerLastN(t *testing.T) {
	prog, err := Parse("ledger last 5\n")
	require.Nil(t, err)
	ls := prog.Statements[0].(*ast.LedgerStmt)
	require.True(t, ls.Last)
	n := ls.Count.(*ast.IntLit)
	require.EqualValues(t, 5, n.Value)
}

func TestParseVerifyLedger(t *testing.T) {
	prog, err := Parse("verify ledger\n")
	require.Nil(t, err)
	require.IsType(t, &ast.Verify{}, prog.Statements[0])
}

func TestParseRequestAndRespond(t *testing.T) {
	prog, err := Parse("request Jared, grade_bump, 5\nrespond accept 10\n")
	require.Nil(t, err)
	req := prog.Statements[0].(*ast.Request)
	require.Equal(t, "grade_bump", req.Label)
	require.NotNil(t, req.Payload)

	resp := prog.Statements[1].(*ast.Respond)
	require.True(t, resp.Accept)
	require.NotNil(t, resp.Payload)
}

func TestParseMissingMaxLeavesMaxNilForCompiler(t *testing.T) {
	prog, err := Parse("while true {\n  pass\n}\n")
	require.Nil(t, err)
	require.Nil(t, prog.Statements[0].(*ast.While).Max)
}

func TestParsePostfixChain(t *testing.T) {
	prog, err := Parse("speak a.b(1, 2)[0]\n")
	require.Nil(t, err)
	speak := prog.Statements[0].(*ast.Speak)
	idx := speak.Value.(*ast.IndexAccess)
	call := idx.Target.(*ast.FnCall)
	member := call.Callee.(*ast.MemberAccess)
	require.Equal(t, "b", member.Name)
	require.Len(t, call.Args, 2)
}
