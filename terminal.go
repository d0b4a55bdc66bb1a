/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/Seednode/foosball/internal/reveal"
	"github.com/Seednode/foosball/internal/teams"
	"github.com/jonboulle/clockwork"
	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"
)

func newDrawCmd(cfg *Config) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "draw [names...]",
		Short: "Draw teams in the terminal, from the given names or the default roster.",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDraw(cmd.Context(), cfg, args, cmd.OutOrStdout())
		},
	}

	cmd.Flags().BoolVar(&cfg.noAnimate, "no-animate", false, "print the teams without the reveal (env: FOOSBALL_NO_ANIMATE)")

	return cmd
}

func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	return ok && (isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd()))
}

func runDraw(ctx context.Context, cfg *Config, args []string, out io.Writer) error {
	roster := teams.NewRoster(cfg.defaultRoster())
	if len(args) > 0 {
		roster.Replace(args)
	}

	rng := cfg.randomSource()

	a, err := teams.Draw(roster.Names(), cfg.teamSize, rng)
	if err != nil {
		return err
	}

	if !cfg.noAnimate && isTerminal(out) && len(a.Teams) > 0 {
		reel := reveal.Reel{
			Assignment: a,
			Pool:       roster.Names(),
			Seed:       uint64(rng.Intn(1 << 30)),
		}
		if err := animateReveal(ctx, clockwork.NewRealClock(), out, reel); err != nil {
			return err
		}
		fmt.Fprintln(out)
	}

	_, err = fmt.Fprintln(out, teams.Summary(a))
	return err
}

// animateReveal redraws the board every spin frame until the reveal is done.
func animateReveal(ctx context.Context, clock clockwork.Clock, out io.Writer, reel reveal.Reel) error {
	s := reveal.New(clock)
	defer s.Close()

	if err := s.Start(reel.Assignment); err != nil {
		return err
	}

	frames := clock.NewTicker(reveal.SpinCadence)
	defer frames.Stop()

	drawn := false
	for {
		st := s.Snapshot()
		renderBoard(out, reel.Board(st, clock.Now()), st, drawn)
		drawn = true

		if st.Phase == reveal.PhaseDone {
			return nil
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-frames.Chan():
		case <-s.Changes():
		}
	}
}

func renderBoard(out io.Writer, board [][]string, st reveal.State, redraw bool) {
	if redraw {
		fmt.Fprintf(out, "\x1b[%dA", len(board))
	}

	for t, names := range board {
		marker := "  "
		if !st.Revealed(t) {
			marker = "~ "
		}
		fmt.Fprintf(out, "\x1b[2K%sTeam %d: %s\n", marker, t+1, strings.Join(names, " + "))
	}
}
