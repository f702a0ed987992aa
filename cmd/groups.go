// Copyright 2025 Canonical Ltd.
// SPDX-License-Identifier: AGPL-3.0

package cmd

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/canonical/roster-sync/internal/types"
)

var groupsCmd = &cobra.Command{
	Use:   "groups",
	Short: "List group rosters, the player's active group first",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		if err := runGroups(cmd); err != nil {
			fmt.Fprintf(os.Stderr, "Listing groups failed: %v\n", err)
			os.Exit(1)
		}
	},
}

func init() {
	groupsCmd.Flags().Bool("slots", false, "Print every slot")
	rootCmd.AddCommand(groupsCmd)
}

func runGroups(cmd *cobra.Command) error {
	specs, err := loadSpecs(cmd)
	if err != nil {
		return err
	}

	logger := newCommandLogger(specs)
	defer logger.Sync()

	c := newClient(specs, logger)
	if err := c.synchronizer.Refresh(context.Background()); err != nil {
		return err
	}

	slots, _ := cmd.Flags().GetBool("slots")
	return printGroups(cmd.OutOrStdout(), c.store.List(), specs.PlayerID, slots)
}

func printGroups(out io.Writer, groups []types.Group, playerID string, slots bool) error {
	w := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tNAME\tACTIVITY\tSTATUS\tSLOTS\t")

	for _, g := range types.SortActiveFirst(groups, playerID) {
		marker := ""
		if g.HasOccupant(playerID) {
			marker = " *"
		}
		fmt.Fprintf(w, "%s\t%s%s\t%s\t%s\t%d/%d\t\n", g.ID, g.Name, marker, g.ActivityType, g.Status, g.OccupiedCount(), g.Capacity())

		if !slots {
			continue
		}
		for i, s := range g.Slots {
			fmt.Fprintf(w, "\t  %d. %s\t%s\t\t\t\n", i, s.Role, occupantName(s))
		}
	}

	return w.Flush()
}

func occupantName(s types.Slot) string {
	switch {
	case s.Occupant == nil:
		return "-"
	case s.Occupant.Nick != "":
		return s.Occupant.Nick
	default:
		return s.Occupant.ID
	}
}

func describe(g types.Group) string {
	roles := make([]string, 0, len(g.Slots))
	for _, s := range g.Slots {
		roles = append(roles, fmt.Sprintf("%s=%s", s.Role, occupantName(s)))
	}
	return fmt.Sprintf("%s %q [%s] %d/%d %s", g.ID, g.Name, strings.Join(roles, " "), g.OccupiedCount(), g.Capacity(), g.Status)
}
