// Copyright 2025 Canonical Ltd.
// SPDX-License-Identifier: AGPL-3.0

package cmd

import (
	"context"
	"errors"
	"fmt"

	"github.com/kelseyhightower/envconfig"
	"github.com/spf13/cobra"

	"github.com/canonical/roster-sync/internal/config"
	"github.com/canonical/roster-sync/internal/logging"
	"github.com/canonical/roster-sync/internal/monitoring"
	"github.com/canonical/roster-sync/internal/monitoring/prometheus"
	"github.com/canonical/roster-sync/internal/tracing"
	"github.com/canonical/roster-sync/pkg/membership"
	"github.com/canonical/roster-sync/pkg/remote"
	"github.com/canonical/roster-sync/pkg/store"
	"github.com/canonical/roster-sync/pkg/synchronizer"
)

const serviceName = "roster-sync"

var (
	errMissingPlayer = errors.New("a player id is required, set --player or PLAYER_ID")
	errEnvironment   = errors.New("issues with environment sourcing")
)

// loadSpecs reads the environment and applies the connection flags on top.
// A malformed variable fails the command instead of zeroing later fields.
func loadSpecs(cmd *cobra.Command) (*config.EnvSpec, error) {
	specs := new(config.EnvSpec)
	if err := envconfig.Process("", specs); err != nil {
		return nil, fmt.Errorf("%w: %w", errEnvironment, err)
	}

	for flag, field := range map[string]*string{
		"api-url":  &specs.ApiURL,
		"push-url": &specs.PushURL,
		"token":    &specs.ApiToken,
		"player":   &specs.PlayerID,
	} {
		if v, _ := cmd.Flags().GetString(flag); v != "" {
			*field = v
		}
	}

	if specs.PlayerID == "" {
		return nil, errMissingPlayer
	}
	if specs.ApiURL == "" {
		return nil, fmt.Errorf("an api url is required, set --api-url or API_URL")
	}
	return specs, nil
}

// client bundles what every membership command needs: a cache, a puller to
// fill it and the remote service.
type client struct {
	specs *config.EnvSpec

	store        *store.Store
	remote       *remote.Client
	synchronizer *synchronizer.Synchronizer

	tracer  tracing.TracingInterface
	monitor monitoring.MonitorInterface
	logger  logging.LoggerInterface
}

// newClient builds a pull-only client. watch adds the push channel itself.
func newClient(specs *config.EnvSpec, logger logging.LoggerInterface) *client {
	c := new(client)

	c.specs = specs
	c.logger = logger
	c.monitor = prometheus.NewMonitor(serviceName, logger)
	c.tracer = tracing.NewTracer(tracing.NewConfig(specs.TracingEnabled, specs.OtelGRPCEndpoint, specs.OtelHTTPEndpoint, logger))

	var opts []store.Option
	if specs.VersionGuard {
		opts = append(opts, store.WithVersionGuard())
	}
	c.store = store.NewStore(logger, opts...)

	c.remote = remote.NewClient(specs.ApiURL, specs.ApiToken, specs.PlayerID, specs.RequestTimeout, c.tracer, c.monitor, logger)
	c.synchronizer = synchronizer.NewSynchronizer(c.store, c.remote, nil, specs.PullRateLimit, c.tracer, c.monitor, logger)

	return c
}

// workflow returns a membership workflow over a freshly pulled cache.
func (c *client) workflow(ctx context.Context) (*membership.Workflow, error) {
	if err := c.synchronizer.Refresh(ctx); err != nil {
		return nil, fmt.Errorf("failed to load rosters: %w", err)
	}

	w := membership.NewWorkflow(c.remote, c.store, c.specs.PlayerID, c.tracer, c.logger)
	w.Attach()
	return w, nil
}

func newCommandLogger(specs *config.EnvSpec) *logging.Logger {
	opts := make([]logging.Option, 0, 1)
	if specs.LogFile != "" {
		opts = append(opts, logging.WithFile(specs.LogFile, specs.LogFileMaxSizeMB, specs.LogFileBackups))
	}
	return logging.NewLogger(specs.LogLevel, opts...)
}
