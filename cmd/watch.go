// Copyright 2025 Canonical Ltd.
// SPDX-License-Identifier: AGPL-3.0

package cmd

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/canonical/roster-sync/internal/types"
	"github.com/canonical/roster-sync/pkg/completion"
	"github.com/canonical/roster-sync/pkg/liveness"
	"github.com/canonical/roster-sync/pkg/membership"
	"github.com/canonical/roster-sync/pkg/push"
	"github.com/canonical/roster-sync/pkg/roster"
	"github.com/canonical/roster-sync/pkg/store"
	"github.com/canonical/roster-sync/pkg/synchronizer"
)

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Follow the rosters live and report when your group fills up",
	Long: `Keep a live roster view: a full pull, the push channel and a periodic
refresh while the player is in an active group. Prints the player's active
group whenever it changes and a notice when it becomes full.`,
	Args: cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		if err := runWatch(cmd); err != nil {
			fmt.Fprintf(os.Stderr, "Watch failed: %v\n", err)
			os.Exit(1)
		}
	},
}

func init() {
	rootCmd.AddCommand(watchCmd)
}

// activePrinter prints the player's active group when it changes.
type activePrinter struct {
	store    store.ReaderInterface
	playerID string

	mu          sync.Mutex
	out         io.Writer
	last        string
	unsubscribe func()
}

func (p *activePrinter) Attach() {
	p.mu.Lock()
	if p.unsubscribe != nil {
		p.mu.Unlock()
		return
	}
	p.unsubscribe = func() {}
	p.mu.Unlock()

	unsubscribe := p.store.Subscribe(func(c store.Change) { p.print(c.Groups) })

	p.mu.Lock()
	p.unsubscribe = unsubscribe
	p.mu.Unlock()
}

func (p *activePrinter) Close() {
	p.mu.Lock()
	unsubscribe := p.unsubscribe
	p.unsubscribe = nil
	p.mu.Unlock()

	if unsubscribe != nil {
		unsubscribe()
	}
}

func (p *activePrinter) print(groups []types.Group) {
	line := "not in an active group"
	if g, ok := types.ActiveGroupOf(groups, p.playerID); ok {
		line = describe(g)
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	if line == p.last {
		return
	}
	p.last = line
	fmt.Fprintln(p.out, line)
}

func completionSink(out io.Writer) completion.Sink {
	var mu sync.Mutex
	return func(ev completion.Event) {
		mu.Lock()
		defer mu.Unlock()

		switch ev.Kind {
		case completion.Completed:
			fmt.Fprintf(out, "Group %q is complete! %d/%d\n", ev.Group.Name, ev.Group.OccupiedCount(), ev.Group.Capacity())
		case completion.Cleared:
			fmt.Fprintf(out, "Group %s is no longer complete\n", ev.Group.ID)
		}
	}
}

func runWatch(cmd *cobra.Command) error {
	specs, err := loadSpecs(cmd)
	if err != nil {
		return err
	}

	logger := newCommandLogger(specs)
	defer logger.Sync()

	c := newClient(specs, logger)
	out := cmd.OutOrStdout()

	var subscriber synchronizer.SubscriberInterface
	if specs.PushURL != "" {
		subscriber = push.NewClient(specs.PushURL, specs.ApiToken, specs.PlayerID, specs.PushBackoffMin, specs.PushBackoffMax, c.tracer, c.monitor, logger)
	}

	sy := synchronizer.NewSynchronizer(c.store, c.remote, subscriber, specs.PullRateLimit, c.tracer, c.monitor, logger)
	supervisor := liveness.NewSupervisor(c.store, sy, specs.PlayerID, specs.RefreshInterval, logger)
	detector := completion.NewDetector(c.store, specs.PlayerID, completionSink(out), logger)
	workflow := membership.NewWorkflow(c.remote, c.store, specs.PlayerID, c.tracer, logger)
	printer := &activePrinter{store: c.store, playerID: specs.PlayerID, out: out}

	session := roster.NewSession(sy, supervisor, logger, detector, workflow, printer)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := session.Activate(ctx); err != nil {
		return err
	}
	defer session.Deactivate()

	fmt.Fprintf(out, "Watching rosters for %s, press Ctrl+C to stop\n", specs.PlayerID)
	<-ctx.Done()

	return nil
}
