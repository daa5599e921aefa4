package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/user/humanlogica/internal/logica"
)

func newTokensCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "tokens FILE",
		Short: "Print the token stream for a program",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			src, err := os.ReadFile(args[0])
			if err != nil {
				return fmt.Errorf("reading %s: %w", args[0], err)
			}
			toks, lerr := logica.Tokenize(string(src))
			if lerr != nil {
				fmt.Fprintln(os.Stderr, lerr.Error())
				os.Exit(1)
			}
			for _, t := range toks {
				fmt.Println(t.String())
			}
			return nil
		},
	}
}
