// Copyright 2025 Canonical Ltd.
// SPDX-License-Identifier: AGPL-3.0

package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	httptypes "github.com/canonical/roster-sync/internal/http/types"
	"github.com/canonical/roster-sync/internal/templates"
	"github.com/canonical/roster-sync/pkg/membership"
)

var createCmd = &cobra.Command{
	Use:   "create [NAME]",
	Short: "Create a group from a template or an explicit role list",
	Long: `Create a group. The slot layout comes from --template (built-in templates
can be extended with TEMPLATES_FILE) or from --roles.

Example:
  roster-sync create "Tuesday dungeon" --template dungeon --join-role Tank`,
	Args: cobra.MaximumNArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		if err := runCreate(cmd, args); err != nil {
			fmt.Fprintf(os.Stderr, "Create failed: %v\n", err)
			os.Exit(1)
		}
	},
}

func init() {
	createCmd.Flags().String("template", "", "Template key")
	createCmd.Flags().String("templates-file", "", "YAML file with extra templates (TEMPLATES_FILE)")
	createCmd.Flags().StringSlice("roles", nil, "Comma separated roles, one per slot")
	createCmd.Flags().String("activity", "", "Activity type")
	createCmd.Flags().String("description", "", "Description")
	createCmd.Flags().String("join-role", "", "Take a slot of this role right away")
	createCmd.Flags().Bool("confirm", false, "Leave the current active group if --join-role needs it")

	rootCmd.AddCommand(createCmd)
}

// buildCreateRequest resolves the template and the flags into a request.
// Explicit flags win over template values.
func buildCreateRequest(cmd *cobra.Command, args []string, templatesFile string) (httptypes.CreateGroupRequest, error) {
	key, _ := cmd.Flags().GetString("template")
	roles, _ := cmd.Flags().GetStringSlice("roles")
	activity, _ := cmd.Flags().GetString("activity")
	description, _ := cmd.Flags().GetString("description")
	joinRole, _ := cmd.Flags().GetString("join-role")

	name := ""
	if len(args) > 0 {
		name = strings.TrimSpace(args[0])
	}

	var req httptypes.CreateGroupRequest
	switch {
	case key != "":
		registry, err := templates.Load(templatesFile)
		if err != nil {
			return req, err
		}
		t, err := registry.Get(key)
		if err != nil {
			return req, fmt.Errorf("%w, available: %s", err, strings.Join(registry.Keys(), ", "))
		}
		req = t.Request(name)
	case len(roles) > 0:
		if name == "" {
			return req, fmt.Errorf("a name is required without --template")
		}
		req = httptypes.CreateGroupRequest{Name: name, Roles: roles}
	default:
		return req, fmt.Errorf("either --template or --roles is required")
	}

	if activity != "" {
		req.ActivityType = activity
	}
	if len(roles) > 0 {
		req.Roles = roles
	}
	req.Description = description
	req.JoinRole = joinRole

	return req, nil
}

func runCreate(cmd *cobra.Command, args []string) error {
	specs, err := loadSpecs(cmd)
	if err != nil {
		return err
	}

	templatesFile, _ := cmd.Flags().GetString("templates-file")
	if templatesFile == "" {
		templatesFile = specs.TemplatesFile
	}

	req, err := buildCreateRequest(cmd, args, templatesFile)
	if err != nil {
		return err
	}
	confirm, _ := cmd.Flags().GetBool("confirm")

	return withWorkflow(cmd, func(ctx context.Context, out io.Writer, w *membership.Workflow, playerID string) error {
		g, err := w.CreateGroup(ctx, req)

		var conflict *membership.Conflict
		if errors.As(err, &conflict) {
			fmt.Fprintf(out, "%s already occupies a slot in %q (%d/%d).\n", conflict.PlayerID, conflict.Existing.Name, conflict.Occupied(), conflict.Capacity())
			if !confirm {
				fmt.Fprintln(out, "Run again with --confirm to leave it and create the group.")
				return explain(err)
			}
			g, err = w.Confirm(ctx, conflict)
		}
		if err != nil {
			return explain(err)
		}
		fmt.Fprintf(out, "Created %s\n", describe(g))
		return nil
	})
}
