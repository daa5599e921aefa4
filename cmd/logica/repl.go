package main

import (
	"bufio"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/user/humanlogica/internal/logica"
	"github.com/user/humanlogica/internal/mary"
)

// runREPL implements SPEC_FULL.md's line-oriented REPL: since the grammar
// is stateless (no partial-statement continuation), each input is a full
// program terminated by a blank line, run either against a fresh kernel
// (default) or a kernel persisted across inputs (--persist).
func runREPL(cmd *cobra.Command, log *zap.Logger) error {
	persist, _ := cmd.Flags().GetBool("persist")

	cfg := loadConfig()
	var shared *mary.Mary
	if persist {
		shared = mary.Boot(mary.WithLoopBound(cfg.Loop.MaxDefault), mary.WithHelena(cfg.Boot.MintHelena), mary.WithLogger(log))
	}

	in := bufio.NewReader(cmd.InOrStdin())
	out := cmd.OutOrStdout()
	fmt.Fprintln(out, "logica REPL — enter a program, blank line to run, ctrl-d to exit")

	var buf strings.Builder
	for {
		fmt.Fprint(out, "> ")
		line, err := in.ReadString('\n')
		done := err == io.EOF
		if line = strings.TrimRight(line, "\n"); line != "" {
			buf.WriteString(line)
			buf.WriteByte('\n')
			if !done {
				continue
			}
		}

		src := buf.String()
		buf.Reset()
		if strings.TrimSpace(src) != "" {
			m := shared
			if m == nil {
				m = mary.Boot(mary.WithLoopBound(cfg.Loop.MaxDefault), mary.WithHelena(cfg.Boot.MintHelena), mary.WithLogger(log))
			}
			result, lerr := logica.Run(src, m)
			for _, l := range result {
				fmt.Fprintln(out, l)
			}
			if lerr != nil {
				fmt.Fprintln(out, lerr.Error())
			}
			// A persisted kernel is the only long-lived Mary this CLI runs,
			// so each input doubles as the "coarse interval" spec.md §5
			// calls for: a good point to retire requests that expired while
			// the user was typing.
			if shared != nil {
				for _, r := range shared.CheckTimeouts() {
					fmt.Fprintf(out, "request %s from %d to %d expired\n", r.ID, r.FromSpeaker, r.ToSpeaker)
				}
			}
		}

		if done {
			return nil
		}
	}
}
