// Package logica implements C12: the public compile-and-run pipeline a CLI
// or embedder drives instead of reaching into internal/lexer, parser,
// compiler, and runtime directly.
package logica

import (
	"github.com/user/humanlogica/internal/ast"
	"github.com/user/humanlogica/internal/compiler"
	"github.com/user/humanlogica/internal/langerr"
	"github.com/user/humanlogica/internal/lexer"
	"github.com/user/humanlogica/internal/mary"
	"github.com/user/humanlogica/internal/parser"
	"github.com/user/humanlogica/internal/runtime"
)

// Tokenize lexes source and returns its token stream, for the `tokens` CLI
// subcommand and embedders that want to inspect lexical structure alone.
func Tokenize(source string) ([]lexer.Token, *langerr.Error) {
	return lexer.Tokenize(source)
}

// Check parses and compiles source, reporting the first lex/parse/axiom
// error without executing anything. Used by the `check` CLI subcommand.
func Check(source string) *langerr.Error {
	prog, err := parser.Parse(source)
	if err != nil {
		return err
	}
	_, err = compiler.Compile(prog)
	return err
}

// Parse exposes the AST stage directly, for the `ast` CLI subcommand.
func Parse(source string) (*ast.Program, *langerr.Error) {
	return parser.Parse(source)
}

// Run lexes, parses, compiles, and executes source against m, returning the
// accumulated `speak`/`inspect`/`history`/`ledger`/`verify` output lines in
// order. m is caller-owned — callers that want a fresh kernel per run should
// pass a newly Boot()ed one; the REPL's --persist mode reuses the same m
// across calls to let speaker state carry over.
func Run(source string, m *mary.Mary) ([]string, *langerr.Error) {
	prog, err := parser.Parse(source)
	if err != nil {
		return nil, err
	}
	cp, err := compiler.Compile(prog)
	if err != nil {
		return nil, err
	}
	env := runtime.NewEnvironment(m)
	return runtime.Run(cp, env)
}
