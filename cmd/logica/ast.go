package main

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/user/humanlogica/internal/ast"
	"github.com/user/humanlogica/internal/logica"
)

func newASTCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "ast FILE",
		Short: "Print the parsed AST for a program",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			src, err := os.ReadFile(args[0])
			if err != nil {
				return fmt.Errorf("reading %s: %w", args[0], err)
			}
			prog, lerr := logica.Parse(string(src))
			if lerr != nil {
				fmt.Fprintln(os.Stderr, lerr.Error())
				os.Exit(1)
			}
			for _, stmt := range prog.Statements {
				dumpNode(cmd.OutOrStdout(), stmt, 0)
			}
			return nil
		},
	}
}

// dumpNode renders a node and its children as an indented tree. It only
// needs to be readable for a developer staring at `logica ast`, not
// machine-parseable — a bare %T plus position is enough to orient in the
// grammar, and the handful of block-structured kinds recurse into their
// children explicitly.
func dumpNode(w io.Writer, n ast.Node, depth int) {
	indent := strings.Repeat("  ", depth)
	pos := n.Position()
	fmt.Fprintf(w, "%s%T (%d:%d)\n", indent, n, pos.Line, pos.Col)

	switch x := n.(type) {
	case *ast.Program:
		for _, s := range x.Statements {
			dumpNode(w, s, depth+1)
		}
	case *ast.AsBlock:
		for _, s := range x.Body {
			dumpNode(w, s, depth+1)
		}
	case *ast.When:
		for _, s := range x.Active {
			dumpNode(w, s, depth+1)
		}
		for _, s := range x.Otherwise {
			dumpNode(w, s, depth+1)
		}
		for _, s := range x.Broken {
			dumpNode(w, s, depth+1)
		}
	case *ast.If:
		for _, s := range x.Then {
			dumpNode(w, s, depth+1)
		}
		for _, e := range x.Elifs {
			for _, s := range e.Body {
				dumpNode(w, s, depth+1)
			}
		}
		for _, s := range x.Else {
			dumpNode(w, s, depth+1)
		}
	case *ast.While:
		for _, s := range x.Body {
			dumpNode(w, s, depth+1)
		}
	case *ast.Fn:
		for _, s := range x.Body {
			dumpNode(w, s, depth+1)
		}
	}
}
