// Copyright 2025 Canonical Ltd.
// SPDX-License-Identifier: AGPL-3.0

package cmd

import (
	"os"
	"runtime/debug"

	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "roster-sync",
	Short: "Group roster synchronization and membership",
	Long: `roster-sync keeps a local view of activity group rosters in sync with a
membership service and performs membership changes against it.

Connection settings are read from the environment (API_URL, PUSH_URL,
API_TOKEN, PLAYER_ID) and can be overridden with flags.`,
	SilenceUsage: true,
	Version:      version(),
}

// version reports the module version stamped by the go tool, "dev" for
// local builds.
func version() string {
	info, ok := debug.ReadBuildInfo()
	if !ok || info.Main.Version == "" || info.Main.Version == "(devel)" {
		return "dev"
	}
	return info.Main.Version
}

func init() {
	pf := rootCmd.PersistentFlags()
	pf.String("api-url", "", "Membership service base URL (API_URL)")
	pf.String("push-url", "", "Push channel websocket URL (PUSH_URL)")
	pf.String("token", "", "Bearer token sent to the service (API_TOKEN)")
	pf.String("player", "", "Id of the local player (PLAYER_ID)")
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
