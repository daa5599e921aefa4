package main

import (
	"fmt"
	"os"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/cobra"

	"github.com/user/humanlogica/internal/logica"
	"github.com/user/humanlogica/internal/mary"
)

func newRunCmd() *cobra.Command {
	var watch bool
	cmd := &cobra.Command{
		Use:   "run FILE",
		Short: "Compile and execute a Logica program",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := args[0]
			if !watch {
				return runOnce(path)
			}
			return runWatch(cmd, path)
		},
	}
	cmd.Flags().BoolVar(&watch, "watch", false, "re-run FILE each time it is saved")
	return cmd
}

func runOnce(path string) error {
	src, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("reading %s: %w", path, err)
	}
	cfg := loadConfig()
	m := mary.Boot(mary.WithLoopBound(cfg.Loop.MaxDefault), mary.WithHelena(cfg.Boot.MintHelena), mary.WithLogger(loggerFromFlags()))
	out, lerr := logica.Run(string(src), m)
	for _, line := range out {
		fmt.Println(line)
	}
	if lerr != nil {
		fmt.Fprintln(os.Stderr, lerr.Error())
		os.Exit(1)
	}
	return nil
}

// runWatch re-runs path against a fresh kernel each time it changes on
// disk — a CLI-surface convenience, not a new kernel capability (SPEC_FULL.md
// Domain Stack).
func runWatch(cmd *cobra.Command, path string) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("starting watcher: %w", err)
	}
	defer watcher.Close()

	if err := watcher.Add(path); err != nil {
		return fmt.Errorf("watching %s: %w", path, err)
	}

	fmt.Fprintf(cmd.OutOrStdout(), "watching %s (ctrl-c to stop)\n", path)
	runOnce(path)

	for {
		select {
		case ev, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if ev.Op&(fsnotify.Write|fsnotify.Create) != 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "---")
				runOnce(path)
			}
		case werr, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			fmt.Fprintln(os.Stderr, "watch error:", werr)
		}
	}
}
