package compiler

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/user/humanlogica/internal/parser"
)

func compileSrc(t *testing.T, src string) (*CompiledProgram, error) {
	t.Helper()
	prog, perr := parser.Parse(src)
	if perr != nil {
		return nil, perr
	}
	cp, cerr := Compile(prog)
	if cerr != nil {
		return nil, cerr
	}
	return cp, nil
}

func TestCompileSimpleAsBlock(t *testing.T) {
	cp, err := compileSrc(t, "speaker Jared\nas Jared {\n  speak \"hi\"\n}\n")
	require.NoError(t, err)
	require.True(t, cp.Speakers["Jared"])
}

func TestAxiom1NonDeclarationAtTopLevel(t *testing.T) {
	_, err := compileSrc(t, "speak \"oops\"\n")
	require.Error(t, err)
	require.Contains(t, err.Error(), "Axiom 1")
}

func TestAxiom1EnteringUndeclaredSpeaker(t *testing.T) {
	_, err := compileSrc(t, "as Ghost {\n  speak \"boo\"\n}\n")
	require.Error(t, err)
	require.Contains(t, err.Error(), "Axiom 1")
}

func TestAxiom8CrossSpeakerWrite(t *testing.T) {
	_, err := compileSrc(t, "speaker Jared\nspeaker Maria\nas Maria {\n  let Jared.grade = 100\n}\n")
	require.Error(t, err)
	require.Contains(t, err.Error(), "Axiom 8")
}

func TestAxiom8SelfWriteLegal(t *testing.T) {
	cp, err := compileSrc(t, "speaker Jared\nas Jared {\n  let self.grade = 100\n}\n")
	require.NoError(t, err)
	require.True(t, cp.Speakers["Jared"])
}

func TestAxiom8OwnUnqualifiedWriteLegal(t *testing.T) {
	_, err := compileSrc(t, "speaker Jared\nas Jared {\n  let grade = 100\n}\n")
	require.NoError(t, err)
}

func TestAxiom9WhileWithoutMax(t *testing.T) {
	_, err := compileSrc(t, "speaker Jared\nas Jared {\n  while true {\n    pass\n  }\n}\n")
	require.Error(t, err)
	require.Contains(t, err.Error(), "Axiom 9")
}

func TestAxiom9RecursesIntoNestedBlocks(t *testing.T) {
	src := `speaker Jared
as Jared {
  when true {
    while true {
      pass
    }
  }
}
`
	_, err := compileSrc(t, src)
	require.Error(t, err)
	require.Contains(t, err.Error(), "Axiom 9")
}

func TestWhenPreservesAllThreeArms(t *testing.T) {
	src := `speaker Jared
as Jared {
  when true {
    speak "a"
  } otherwise {
    speak "b"
  } broken {
    speak "c"
  }
}
`
	cp, err := compileSrc(t, src)
	require.NoError(t, err)

	var whenOps int
	for _, op := range cp.Operations {
		if op.Kind == OpWhenEval {
			whenOps++
		}
	}
	require.Equal(t, 1, whenOps)
}

func TestFnDeclarationCollectedOnFirstPass(t *testing.T) {
	src := `fn add(a, b) {
  return a + b
}
speaker Jared
as Jared {
  let x = add(1, 2)
}
`
	cp, err := compileSrc(t, src)
	require.NoError(t, err)
	fn, ok := cp.Functions["add"]
	require.True(t, ok)
	require.Equal(t, []string{"a", "b"}, fn.Params)
}
