package runtime

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/user/humanlogica/internal/compiler"
	"github.com/user/humanlogica/internal/mary"
	"github.com/user/humanlogica/internal/parser"
)

func counterClock() mary.Clock {
	var n int64
	return func() int64 {
		n++
		return n
	}
}

func runSrc(t *testing.T, src string) ([]string, error) {
	t.Helper()
	prog, perr := parser.Parse(src)
	if perr != nil {
		return nil, perr
	}
	cp, cerr := compiler.Compile(prog)
	if cerr != nil {
		return nil, cerr
	}
	m := mary.Boot(mary.WithClock(counterClock()), mary.WithLoopBound(10000))
	env := NewEnvironment(m)
	out, rerr := Run(cp, env)
	if rerr != nil {
		return out, rerr
	}
	return out, nil
}

func TestRunHelloWorld(t *testing.T) {
	out, err := runSrc(t, "speaker Jared\nas Jared {\n  speak \"Hello, World!\"\n}\n")
	require.NoError(t, err)
	require.Equal(t, []string{"  [Jared] Hello, World!"}, out)
}

func TestRunWriteOwnershipEndToEnd(t *testing.T) {
	_, err := runSrc(t, "speaker Jared\nas Jared {\n  let self.grade = 100\n  speak self.grade\n}\n")
	require.NoError(t, err)
}

func TestRunWhenThreeValued(t *testing.T) {
	src := `speaker Jared
as Jared {
  let self.score = 90
  when self.score > 80 {
    speak "pass"
  } otherwise {
    speak "fail"
  } broken {
    speak "broken"
  }
}
`
	out, err := runSrc(t, src)
	require.NoError(t, err)
	require.Contains(t, out, "  [Jared] pass")
}

func TestRunWhenOtherwiseArm(t *testing.T) {
	src := `speaker Jared
as Jared {
  let self.score = 10
  when self.score > 80 {
    speak "pass"
  } otherwise {
    speak "fail"
  }
}
`
	out, err := runSrc(t, src)
	require.NoError(t, err)
	require.Contains(t, out, "  [Jared] fail")
}

func TestRunWhileBoundedLoop(t *testing.T) {
	src := `speaker Jared
as Jared {
  let self.count = 0
  while self.count < 3, max 10 {
    let self.count = self.count + 1
    speak self.count
  }
}
`
	out, err := runSrc(t, src)
	require.NoError(t, err)
	require.Equal(t, []string{"  [Jared] 1", "  [Jared] 2", "  [Jared] 3"}, out)
}

func TestRunWhileExceedsMaxIsBroken(t *testing.T) {
	src := `speaker Jared
as Jared {
  while true, max 3 {
    speak "again"
  }
}
`
	_, err := runSrc(t, src)
	require.Error(t, err)
}

func TestRunFnCallWithReturn(t *testing.T) {
	src := `fn add(a, b) {
  return a + b
}
speaker Jared
as Jared {
  let self.total = add(2, 3)
  speak self.total
}
`
	out, err := runSrc(t, src)
	require.NoError(t, err)
	require.Equal(t, []string{"  [Jared] 5"}, out)
}

func TestRunCrossSpeakerReadIsLegal(t *testing.T) {
	src := `speaker Jared
speaker Maria
as Jared {
  let self.grade = 88
}
as Maria {
  speak Jared.grade
}
`
	out, err := runSrc(t, src)
	require.NoError(t, err)
	require.Equal(t, []string{"  [Maria] 88"}, out)
}

func TestRunSealedVariableRejectsFurtherWrites(t *testing.T) {
	src := `speaker Jared
as Jared {
  let self.grade = 100
  seal grade
  let self.grade = 0
}
`
	_, err := runSrc(t, src)
	require.Error(t, err)
}

func TestRunNonePropagatesThroughArithmeticAndComparison(t *testing.T) {
	src := `speaker Jared
as Jared {
  speak self.missing + 1
  speak self.missing < 5
}
`
	out, err := runSrc(t, src)
	require.NoError(t, err)
	require.Equal(t, []string{"  [Jared] none", "  [Jared] none"}, out)
}

func TestRunFailRaisesRuntimeError(t *testing.T) {
	src := `speaker Jared
as Jared {
  fail "refused"
}
`
	_, err := runSrc(t, src)
	require.Error(t, err)
}
