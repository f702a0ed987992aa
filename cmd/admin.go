// Copyright 2025 Canonical Ltd.
// SPDX-License-Identifier: AGPL-3.0

package cmd

import (
	"context"
	"fmt"
	"io"
	"os"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/canonical/roster-sync/internal/types"
	"github.com/canonical/roster-sync/pkg/membership"
)

// creator operations, all of them go through the membership workflow

var slotCmd = &cobra.Command{
	Use:   "slot",
	Short: "Edit the slots of a group you created",
}

var slotAddCmd = &cobra.Command{
	Use:   "add GROUP_ID ROLE",
	Short: "Append an empty slot",
	Args:  cobra.ExactArgs(2),
	Run: adminRun("Adding slot", func(ctx context.Context, w *membership.Workflow, args []string) (types.Group, error) {
		return w.AddSlot(ctx, args[0], args[1])
	}),
}

var slotRemoveCmd = &cobra.Command{
	Use:   "remove GROUP_ID INDEX",
	Short: "Remove the slot at INDEX, its occupant loses the slot",
	Args:  cobra.ExactArgs(2),
	Run: adminRun("Removing slot", func(ctx context.Context, w *membership.Workflow, args []string) (types.Group, error) {
		idx, err := strconv.Atoi(args[1])
		if err != nil {
			return types.Group{}, fmt.Errorf("invalid slot index %q", args[1])
		}
		return w.RemoveSlot(ctx, args[0], idx)
	}),
}

var slotRoleCmd = &cobra.Command{
	Use:   "role GROUP_ID INDEX ROLE",
	Short: "Change the role of the slot at INDEX",
	Args:  cobra.ExactArgs(3),
	Run: adminRun("Changing slot role", func(ctx context.Context, w *membership.Workflow, args []string) (types.Group, error) {
		idx, err := strconv.Atoi(args[1])
		if err != nil {
			return types.Group{}, fmt.Errorf("invalid slot index %q", args[1])
		}
		return w.SetSlotRole(ctx, args[0], idx, args[2])
	}),
}

var kickCmd = &cobra.Command{
	Use:   "kick GROUP_ID PLAYER_ID",
	Short: "Remove a member from a group you created",
	Args:  cobra.ExactArgs(2),
	Run: adminRun("Kick", func(ctx context.Context, w *membership.Workflow, args []string) (types.Group, error) {
		return w.Kick(ctx, args[0], args[1])
	}),
}

var deleteCmd = &cobra.Command{
	Use:   "delete GROUP_ID",
	Short: "Delete a group you created",
	Args:  cobra.ExactArgs(1),
	Run: adminRun("Delete", func(ctx context.Context, w *membership.Workflow, args []string) (types.Group, error) {
		return types.Group{}, w.DeleteGroup(ctx, args[0])
	}),
}

func init() {
	slotCmd.AddCommand(slotAddCmd, slotRemoveCmd, slotRoleCmd)
	rootCmd.AddCommand(slotCmd, kickCmd, deleteCmd)
}

type adminFunc func(context.Context, *membership.Workflow, []string) (types.Group, error)

func adminRun(action string, fn adminFunc) func(*cobra.Command, []string) {
	return func(cmd *cobra.Command, args []string) {
		if err := runAdmin(cmd, args, fn); err != nil {
			fmt.Fprintf(os.Stderr, "%s failed: %v\n", action, err)
			os.Exit(1)
		}
	}
}

func runAdmin(cmd *cobra.Command, args []string, fn adminFunc) error {
	return withWorkflow(cmd, func(ctx context.Context, out io.Writer, w *membership.Workflow, _ string) error {
		g, err := fn(ctx, w, args)
		if err != nil {
			return explain(err)
		}
		if g.ID == "" {
			fmt.Fprintln(out, "Done")
			return nil
		}
		fmt.Fprintf(out, "Updated %s\n", describe(g))
		return nil
	})
}
