// Copyright 2025 Canonical Ltd
// SPDX-License-Identifier: AGPL-3.0

package push

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"

	httptypes "github.com/canonical/roster-sync/internal/http/types"
	"github.com/canonical/roster-sync/internal/logging"
	"github.com/canonical/roster-sync/internal/monitoring"
	"github.com/canonical/roster-sync/internal/tracing"
)

const (
	component = "push_channel"

	defaultReadLimit = 4 << 20
)

// Client keeps a websocket subscription to the roster push channel alive.
//
// Every (re)connection asks for a fresh roster_init, events missed while
// disconnected are never replayed by the server.
type Client struct {
	url     string
	token   string
	actorID string

	minBackoff time.Duration
	maxBackoff time.Duration
	readLimit  int64

	tracer  tracing.TracingInterface
	monitor monitoring.MonitorInterface
	logger  logging.LoggerInterface
}

// Run blocks until ctx is cancelled, reconnecting with exponential backoff.
func (c *Client) Run(ctx context.Context, handler HandlerInterface) {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = c.minBackoff
	b.MaxInterval = c.maxBackoff

	for {
		connected, err := c.session(ctx, handler)

		c.setAvailability(0)
		if connected {
			handler.OnDisconnected(err)
			b.Reset()
		}

		if ctx.Err() != nil {
			return
		}

		wait := b.NextBackOff()
		c.logger.Infof("push channel unavailable, retrying in %s: %v", wait, err)

		t := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			t.Stop()
			return
		case <-t.C:
		}
	}
}

func (c *Client) session(ctx context.Context, handler HandlerInterface) (bool, error) {
	dialCtx, span := c.tracer.Start(ctx, "push.Client.Dial")
	conn, _, err := websocket.Dial(dialCtx, c.url, &websocket.DialOptions{HTTPHeader: c.headers()})
	span.End()
	if err != nil {
		return false, fmt.Errorf("failed to dial %s: %w", c.url, err)
	}
	defer conn.CloseNow()

	conn.SetReadLimit(c.readLimit)

	c.setAvailability(1)
	handler.OnConnected()

	if err := wsjson.Write(ctx, conn, Frame{Event: EventInit}); err != nil {
		return true, fmt.Errorf("failed to request %s: %w", EventInit, err)
	}

	for {
		var f Frame
		if err := wsjson.Read(ctx, conn, &f); err != nil {
			if errors.Is(err, context.Canceled) {
				conn.Close(websocket.StatusNormalClosure, "")
			}
			return true, err
		}
		c.dispatch(f, handler)
	}
}

// dispatch never patches the cache from a payload it could not fully decode.
func (c *Client) dispatch(f Frame, handler HandlerInterface) {
	switch f.Event {
	case EventInit:
		groups, err := DecodeGroups(f.Data)
		if err != nil {
			c.logger.Errorf("dropping %s event: %v", f.Event, err)
			return
		}
		handler.OnInit(groups)
	case EventCreated, EventUpdated:
		group, err := DecodeGroup(f.Data)
		if err != nil {
			c.logger.Errorf("dropping %s event: %v", f.Event, err)
			return
		}
		handler.OnUpsert(group)
	case EventDeleted:
		id, err := DecodeID(f.Data)
		if err != nil {
			c.logger.Errorf("dropping %s event: %v", f.Event, err)
			return
		}
		handler.OnDelete(id)
	default:
		c.logger.Debugf("ignoring unknown push event %q", f.Event)
	}
}

func (c *Client) headers() http.Header {
	h := make(http.Header)
	if c.token != "" {
		h.Set("Authorization", "Bearer "+c.token)
	}
	if c.actorID != "" {
		h.Set(httptypes.ActorHeader, c.actorID)
	}
	return h
}

func (c *Client) setAvailability(v float64) {
	if err := c.monitor.SetDependencyAvailability(map[string]string{"component": component}, v); err != nil {
		c.logger.Debugf("error setting dependency availability: %v", err)
	}
}

func NewClient(
	url, token, actorID string,
	minBackoff, maxBackoff time.Duration,
	tracer tracing.TracingInterface,
	monitor monitoring.MonitorInterface,
	logger logging.LoggerInterface,
) *Client {
	c := new(Client)

	c.url = url
	c.token = token
	c.actorID = actorID

	c.minBackoff = minBackoff
	c.maxBackoff = maxBackoff
	c.readLimit = defaultReadLimit

	c.tracer = tracer
	c.monitor = monitor
	c.logger = logger

	return c
}
