package logica

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/user/humanlogica/internal/mary"
)

func TestRunExecutesProgramAgainstSuppliedKernel(t *testing.T) {
	m := mary.Boot()
	out, err := Run("speaker Jared\nas Jared {\n  speak \"hi\"\n}\n", m)
	require.Nil(t, err)
	require.Equal(t, []string{"  [Jared] hi"}, out)
}

func TestCheckCatchesAxiomViolationsWithoutExecuting(t *testing.T) {
	err := Check("speak \"oops\"\n")
	require.Error(t, err)
	require.Contains(t, err.Error(), "Axiom 1")
}

func TestCheckAcceptsValidProgram(t *testing.T) {
	err := Check("speaker Jared\nas Jared {\n  speak \"hi\"\n}\n")
	require.Nil(t, err)
}

func TestTokenizeReturnsKeywordAndIdentTokens(t *testing.T) {
	toks, err := Tokenize("speaker Jared\n")
	require.Nil(t, err)
	require.GreaterOrEqual(t, len(toks), 3)
}

func TestParseReturnsProgramAST(t *testing.T) {
	prog, err := Parse("speaker Jared\n")
	require.Nil(t, err)
	require.Len(t, prog.Statements, 1)
}

func TestRunPersistsStateAcrossCallsOnSharedKernel(t *testing.T) {
	m := mary.Boot()
	_, err := Run("speaker Jared\nas Jared {\n  let self.grade = 95\n}\n", m)
	require.Nil(t, err)

	out, err := Run("speaker Maria\nas Maria {\n  speak Jared.grade\n}\n", m)
	require.Nil(t, err)
	require.Equal(t, []string{"  [Maria] 95"}, out)
}
