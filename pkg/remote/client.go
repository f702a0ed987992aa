// Copyright 2025 Canonical Ltd
// SPDX-License-Identifier: AGPL-3.0

package remote

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	httptypes "github.com/canonical/roster-sync/internal/http/types"
	"github.com/canonical/roster-sync/internal/logging"
	"github.com/canonical/roster-sync/internal/monitoring"
	"github.com/canonical/roster-sync/internal/tracing"
	"github.com/canonical/roster-sync/internal/types"
)

var _ ClientInterface = (*Client)(nil)

type Client struct {
	baseURL string
	token   string
	actorID string

	http *http.Client

	tracer  tracing.TracingInterface
	monitor monitoring.MonitorInterface
	logger  logging.LoggerInterface
}

func (c *Client) ListGroups(ctx context.Context) ([]types.Group, error) {
	ctx, span := c.tracer.Start(ctx, "remote.Client.ListGroups")
	defer span.End()

	groups := make([]types.Group, 0)
	if err := c.do(ctx, http.MethodGet, "/groups", nil, &groups); err != nil {
		return nil, err
	}
	return groups, nil
}

func (c *Client) CreateGroup(ctx context.Context, req httptypes.CreateGroupRequest) (types.Group, error) {
	ctx, span := c.tracer.Start(ctx, "remote.Client.CreateGroup")
	defer span.End()

	var group types.Group
	err := c.do(ctx, http.MethodPost, "/groups", req, &group)
	return group, err
}

func (c *Client) UpdateGroup(ctx context.Context, id string, group types.Group) (types.Group, error) {
	ctx, span := c.tracer.Start(ctx, "remote.Client.UpdateGroup")
	defer span.End()

	var updated types.Group
	err := c.do(ctx, http.MethodPut, "/groups/"+url.PathEscape(id), group, &updated)
	return updated, err
}

func (c *Client) DeleteGroup(ctx context.Context, id string) error {
	ctx, span := c.tracer.Start(ctx, "remote.Client.DeleteGroup")
	defer span.End()

	return c.do(ctx, http.MethodDelete, "/groups/"+url.PathEscape(id), nil, nil)
}

func (c *Client) AddMember(ctx context.Context, groupID string, req httptypes.JoinRequest) (types.Group, error) {
	ctx, span := c.tracer.Start(ctx, "remote.Client.AddMember")
	defer span.End()

	var group types.Group
	err := c.do(ctx, http.MethodPost, fmt.Sprintf("/groups/%s/members", url.PathEscape(groupID)), req, &group)
	return group, err
}

// RemoveMember returns the updated group, which is zero valued when the
// service answers the no-op case without a body.
func (c *Client) RemoveMember(ctx context.Context, groupID, playerID string) (types.Group, error) {
	ctx, span := c.tracer.Start(ctx, "remote.Client.RemoveMember")
	defer span.End()

	var group types.Group
	err := c.do(
		ctx,
		http.MethodDelete,
		fmt.Sprintf("/groups/%s/members/%s", url.PathEscape(groupID), url.PathEscape(playerID)),
		nil,
		&group,
	)
	return group, err
}

func (c *Client) GetActiveGroup(ctx context.Context, playerID string) (types.Group, error) {
	ctx, span := c.tracer.Start(ctx, "remote.Client.GetActiveGroup")
	defer span.End()

	var group types.Group
	err := c.do(ctx, http.MethodGet, "/groups/active/"+url.PathEscape(playerID), nil, &group)
	return group, err
}

func (c *Client) do(ctx context.Context, method, path string, in, out interface{}) error {
	var body io.Reader
	if in != nil {
		payload, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("failed to encode request: %w", err)
		}
		body = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return fmt.Errorf("failed to build request: %w", err)
	}

	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
	if c.actorID != "" {
		req.Header.Set(httptypes.ActorHeader, c.actorID)
	}

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		c.observe(method, path, "error", start)
		return fmt.Errorf("%w: %s %s: %v", ErrTransport, method, path, err)
	}
	defer resp.Body.Close()

	c.observe(method, path, fmt.Sprint(resp.StatusCode), start)

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("%w: failed to read response: %v", ErrTransport, err)
	}

	if resp.StatusCode >= http.StatusBadRequest {
		var e httptypes.ErrorResponse
		if len(raw) > 0 {
			if err := json.Unmarshal(raw, &e); err != nil {
				c.logger.Debugf("undecodable error body for %s %s: %v", method, path, err)
			}
		}
		if e.Message == "" {
			e.Message = http.StatusText(resp.StatusCode)
		}
		return newAPIError(resp.StatusCode, e)
	}

	if out == nil || len(bytes.TrimSpace(raw)) == 0 {
		return nil
	}

	if err := json.Unmarshal(httptypes.UnwrapData(raw), out); err != nil {
		return fmt.Errorf("failed to decode response of %s %s: %w", method, path, err)
	}
	return nil
}

func (c *Client) observe(method, path, status string, start time.Time) {
	tags := map[string]string{
		"route":  fmt.Sprintf("%s %s", method, routeOf(path)),
		"status": status,
	}
	if err := c.monitor.SetResponseTimeMetric(tags, time.Since(start).Seconds()); err != nil {
		c.logger.Debugf("error setting response time metric: %v", err)
	}
}

// routeOf collapses ids so metrics keep a bounded label set.
func routeOf(path string) string {
	parts := strings.Split(strings.Trim(path, "/"), "/")
	for i := range parts {
		if i%2 == 1 && parts[i] != "members" && parts[i] != "active" {
			parts[i] = "{id}"
		}
	}
	if len(parts) > 2 && parts[1] == "active" {
		parts[2] = "{id}"
	}
	return "/" + strings.Join(parts, "/")
}

func NewClient(
	baseURL, token, actorID string,
	timeout time.Duration,
	tracer tracing.TracingInterface,
	monitor monitoring.MonitorInterface,
	logger logging.LoggerInterface,
) *Client {
	c := new(Client)

	c.baseURL = strings.TrimRight(baseURL, "/")
	c.token = token
	c.actorID = actorID

	c.http = &http.Client{
		Timeout:   timeout,
		Transport: otelhttp.NewTransport(http.DefaultTransport),
	}

	c.tracer = tracer
	c.monitor = monitor
	c.logger = logger

	return c
}
