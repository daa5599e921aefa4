// Command logica is the CLI front end for C12: run, check, tokenize, and
// inspect the AST of a Logica program, or drop into a REPL.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/user/humanlogica/internal/config"
	"github.com/user/humanlogica/internal/obs"
)

var (
	configPath string
	verbose    bool
)

func main() {
	root := &cobra.Command{
		Use:   "logica",
		Short: "Run and inspect Logica programs against a Mary kernel",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runREPL(cmd, loggerFromFlags())
		},
	}
	root.PersistentFlags().StringVar(&configPath, "config", "", "path to humanlogica.toml")
	root.PersistentFlags().BoolVar(&verbose, "verbose", false, "enable debug logging")
	root.Flags().Bool("persist", false, "keep one kernel alive across REPL inputs")

	root.AddCommand(newRunCmd(), newCheckCmd(), newTokensCmd(), newASTCmd())

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func loggerFromFlags() *zap.Logger {
	if verbose {
		return obs.New(obs.LevelDebug)
	}
	return obs.New(loadConfig().Log.Level)
}

func loadConfig() config.Config {
	cfg, err := config.Load(configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "warning: failed to load %s, using defaults: %v\n", configPath, err)
		return config.Default()
	}
	return cfg
}
