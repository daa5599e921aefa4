package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/user/humanlogica/internal/logica"
)

func newCheckCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "check FILE",
		Short: "Lex, parse, and axiom-check a program without running it",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			src, err := os.ReadFile(args[0])
			if err != nil {
				return fmt.Errorf("reading %s: %w", args[0], err)
			}
			if lerr := logica.Check(string(src)); lerr != nil {
				fmt.Fprintln(os.Stderr, lerr.Error())
				os.Exit(1)
			}
			fmt.Println("ok")
			return nil
		},
	}
}
