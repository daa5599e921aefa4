package lexer

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
	"github.com/stretchr/testify/require"
)

func kinds(toks []Token) []Kind {
	out := make([]Kind, len(toks))
	for i, t := range toks {
		out[i] = t.Kind
	}
	return out
}

func TestTokenizeKeywordsAndIdents(t *testing.T) {
	toks, err := Tokenize(`speaker Jared as let x`)
	require.Nil(t, err)
	require.Equal(t, []Kind{SPEAKER, IDENT, AS, LET, IDENT, EOF}, kinds(toks))
	require.Equal(t, "Jared", toks[1].Lexeme)
}

func TestTokenizeTwoCharOperatorsBeforeSingle(t *testing.T) {
	toks, err := Tokenize(`a == b != c <= d >= e -> f = g < h > i`)
	require.Nil(t, err)
	require.Equal(t, []Kind{
		IDENT, EQ, IDENT, NEQ, IDENT, LE, IDENT, GE, IDENT, ARROW, IDENT,
		ASSIGN, IDENT, LT, IDENT, GT, IDENT, EOF,
	}, kinds(toks))
}

func TestTokenizeIntegerAndFloat(t *testing.T) {
	toks, err := Tokenize(`42 3.14 7.`)
	require.Nil(t, err)
	require.Equal(t, INT, toks[0].Kind)
	require.EqualValues(t, 42, toks[0].IntVal)
	require.Equal(t, FLOAT, toks[1].Kind)
	require.InDelta(t, 3.14, toks[1].FloatVal, 1e-9)
	// "7." with no trailing digit: '.' is not part of the number, DOT follows.
	require.Equal(t, INT, toks[2].Kind)
	require.Equal(t, DOT, toks[3].Kind)
}

func TestTokenizeStringWithEscapes(t *testing.T) {
	toks, err := Tokenize(`"hello\nworld"`)
	require.Nil(t, err)
	require.Equal(t, STRING, toks[0].Kind)
	require.Equal(t, "hello\nworld", toks[0].StrVal)
}

func TestTokenizeComment(t *testing.T) {
	toks, err := Tokenize("let x = 1 # trailing comment\nlet y = 2")
	require.Nil(t, err)
	require.Equal(t, []Kind{LET, IDENT, ASSIGN, INT, NEWLINE, LET, IDENT, ASSIGN, INT, EOF}, kinds(toks))
}

func TestTokenizeUnterminatedStringErrors(t *testing.T) {
	_, err := Tokenize(`"no closing quote`)
	require.NotNil(t, err)
	require.Equal(t, "lex", string(err.Kind))
}

func TestTokenizeUnknownCharacterErrors(t *testing.T) {
	_, err := Tokenize("let x = @")
	require.NotNil(t, err)
}

func TestTokenizeLineColTracking(t *testing.T) {
	toks, err := Tokenize("let x\nlet y")
	require.Nil(t, err)
	// second "let" is on line 2.
	var secondLet Token
	seen := 0
	for _, tok := range toks {
		if tok.Kind == LET {
			seen++
			if seen == 2 {
				secondLet = tok
			}
		}
	}
	require.Equal(t, 2, secondLet.Line)
}

func TestTokenizeFullTokenShape(t *testing.T) {
	toks, err := Tokenize("let x = 1\nspeak x")
	require.Nil(t, err)

	want := []Token{
		{Kind: LET, Lexeme: "let", Line: 1, Col: 1},
		{Kind: IDENT, Lexeme: "x", Line: 1, Col: 5},
		{Kind: ASSIGN, Lexeme: "=", Line: 1, Col: 7},
		{Kind: INT, Lexeme: "1", Line: 1, Col: 9, IntVal: 1},
		{Kind: NEWLINE, Lexeme: "\\n", Line: 1, Col: 10},
		{Kind: SPEAK, Lexeme: "speak", Line: 2, Col: 1},
		{Kind: IDENT, Lexeme: "x", Line: 2, Col: 7},
		{Kind: EOF, Line: 2, Col: 8},
	}

	// Column tracking is incidental to this test's purpose (full token
	// shape, not exact columns), so Col is ignored on every token.
	if diff := cmp.Diff(want, toks, cmpopts.IgnoreFields(Token{}, "Col")); diff != "" {
		t.Errorf("token stream mismatch (-want +got):\n%s", diff)
	}
}

func TestTokenizeAllKeywords(t *testing.T) {
	src := "speaker as let read speak when otherwise broken fn return while max " +
		"request respond accept refuse inspect history ledger verify world seal " +
		"and or not active inactive true false none if elif else pass fail"
	toks, err := Tokenize(src)
	require.Nil(t, err)
	for _, tok := range toks {
		if tok.Kind == EOF {
			continue
		}
		require.NotEqual(t, IDENT, tok.Kind, "keyword %q lexed as IDENT", tok.Lexeme)
	}
}
