// Copyright 2025 Canonical Ltd.
// SPDX-License-Identifier: AGPL-3.0

package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/canonical/roster-sync/pkg/membership"
)

var joinCmd = &cobra.Command{
	Use:   "join GROUP_ID",
	Short: "Join a group, optionally in a given role",
	Long: `Join a group. When the player already occupies a slot in another active
group the join is refused; run again with --confirm to leave that group and
join this one.`,
	Args: cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		if err := runJoin(cmd, args[0]); err != nil {
			fmt.Fprintf(os.Stderr, "Join failed: %v\n", err)
			os.Exit(1)
		}
	},
}

var leaveCmd = &cobra.Command{
	Use:   "leave GROUP_ID",
	Short: "Leave a group",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		if err := runLeave(cmd, args[0]); err != nil {
			fmt.Fprintf(os.Stderr, "Leave failed: %v\n", err)
			os.Exit(1)
		}
	},
}

var roleCmd = &cobra.Command{
	Use:   "role GROUP_ID ROLE",
	Short: "Move to a free slot of another role in the same group",
	Args:  cobra.ExactArgs(2),
	Run: func(cmd *cobra.Command, args []string) {
		if err := runRole(cmd, args[0], args[1]); err != nil {
			fmt.Fprintf(os.Stderr, "Role change failed: %v\n", err)
			os.Exit(1)
		}
	},
}

func init() {
	joinCmd.Flags().String("role", "", "Role to take, any free slot when empty")
	joinCmd.Flags().Bool("confirm", false, "Leave the current active group if needed")

	rootCmd.AddCommand(joinCmd, leaveCmd, roleCmd)
}

func runJoin(cmd *cobra.Command, groupID string) error {
	role, _ := cmd.Flags().GetString("role")
	confirm, _ := cmd.Flags().GetBool("confirm")

	return withWorkflow(cmd, func(ctx context.Context, out io.Writer, w *membership.Workflow, playerID string) error {
		g, err := w.Join(ctx, groupID, playerID, role)

		var conflict *membership.Conflict
		if errors.As(err, &conflict) {
			fmt.Fprintf(out, "%s already occupies a slot in %q (%d/%d).\n", conflict.PlayerID, conflict.Existing.Name, conflict.Occupied(), conflict.Capacity())
			if !confirm {
				fmt.Fprintln(out, "Run again with --confirm to leave it and join.")
				return explain(err)
			}
			g, err = w.Confirm(ctx, conflict)
		}
		if err != nil {
			return explain(err)
		}

		fmt.Fprintf(out, "Joined %s\n", describe(g))
		return nil
	})
}

func runLeave(cmd *cobra.Command, groupID string) error {
	return withWorkflow(cmd, func(ctx context.Context, out io.Writer, w *membership.Workflow, playerID string) error {
		g, err := w.Leave(ctx, groupID, playerID)
		if err != nil {
			return explain(err)
		}
		if g.ID == "" {
			fmt.Fprintf(out, "Left %s\n", groupID)
			return nil
		}
		fmt.Fprintf(out, "Left %s\n", describe(g))
		return nil
	})
}

func runRole(cmd *cobra.Command, groupID, role string) error {
	return withWorkflow(cmd, func(ctx context.Context, out io.Writer, w *membership.Workflow, playerID string) error {
		g, err := w.ChangeRole(ctx, groupID, playerID, role)
		if err != nil {
			return explain(err)
		}
		fmt.Fprintf(out, "Now %s in %s\n", role, describe(g))
		return nil
	})
}

func withWorkflow(cmd *cobra.Command, fn func(context.Context, io.Writer, *membership.Workflow, string) error) error {
	specs, err := loadSpecs(cmd)
	if err != nil {
		return err
	}

	logger := newCommandLogger(specs)
	defer logger.Sync()

	ctx := context.Background()
	w, err := newClient(specs, logger).workflow(ctx)
	if err != nil {
		return err
	}
	defer w.Close()

	return fn(ctx, cmd.OutOrStdout(), w, specs.PlayerID)
}

// explain prefixes domain failures with their kind so scripts can match on it.
func explain(err error) error {
	kind := membership.KindOf(err)
	if !kind.IsDomain() {
		return err
	}
	return fmt.Errorf("%s: %w", kind, err)
}
