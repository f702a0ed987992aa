// Copyright 2025 Canonical Ltd
// SPDX-License-Identifier: AGPL-3.0

package groups

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"

	"github.com/canonical/roster-sync/internal/logging"
	"github.com/canonical/roster-sync/internal/monitoring"
	"github.com/canonical/roster-sync/internal/tracing"
	"github.com/canonical/roster-sync/pkg/push"
)

const (
	subscriberBuffer = 64
	writeTimeout     = 5 * time.Second
)

var _ PublisherInterface = (*Hub)(nil)

type subscriber struct {
	frames chan push.Frame
	// slow is closed when the subscriber fell behind. It is disconnected and
	// rehydrates with roster_init when it reconnects.
	slow chan struct{}
	once sync.Once
}

func (s *subscriber) drop() {
	s.once.Do(func() { close(s.slow) })
}

// Hub is the server side of the push channel.
type Hub struct {
	lister ListerInterface

	mu   sync.Mutex
	subs map[*subscriber]struct{}

	tracer  tracing.TracingInterface
	monitor monitoring.MonitorInterface
	logger  logging.LoggerInterface
}

// Publish sends event to every connected subscriber without blocking.
func (h *Hub) Publish(event string, payload interface{}) {
	f, err := push.NewFrame(event, payload)
	if err != nil {
		h.logger.Errorf("failed to publish %s: %v", event, err)
		return
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	for s := range h.subs {
		select {
		case s.frames <- f:
		default:
			h.logger.Warnf("push subscriber too slow, dropping it")
			s.drop()
		}
	}
}

// Subscribers returns the number of connected push subscribers.
func (h *Hub) Subscribers() int {
	h.mu.Lock()
	defer h.mu.Unlock()

	return len(h.subs)
}

func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := websocket.Accept(w, r, nil)
	if err != nil {
		h.logger.Debugf("websocket upgrade failed: %v", err)
		return
	}
	defer conn.CloseNow()

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	s := &subscriber{frames: make(chan push.Frame, subscriberBuffer), slow: make(chan struct{})}
	h.add(s)
	defer h.remove(s)

	go h.read(ctx, cancel, conn, s)

	for {
		select {
		case <-ctx.Done():
			conn.Close(websocket.StatusNormalClosure, "")
			return
		case <-s.slow:
			conn.Close(websocket.StatusPolicyViolation, "subscriber too slow")
			return
		case f := <-s.frames:
			wctx, wcancel := context.WithTimeout(ctx, writeTimeout)
			err := wsjson.Write(wctx, conn, f)
			wcancel()
			if err != nil {
				h.logger.Debugf("push write failed: %v", err)
				return
			}
		}
	}
}

// read handles requests from the subscriber, only roster_init is understood.
func (h *Hub) read(ctx context.Context, cancel context.CancelFunc, conn *websocket.Conn, s *subscriber) {
	defer cancel()

	for {
		var f push.Frame
		if err := wsjson.Read(ctx, conn, &f); err != nil {
			var closeErr websocket.CloseError
			if !errors.As(err, &closeErr) && ctx.Err() == nil {
				h.logger.Debugf("push read failed: %v", err)
			}
			return
		}

		if f.Event != push.EventInit {
			h.logger.Debugf("ignoring push request %q", f.Event)
			continue
		}

		if err := h.rehydrate(ctx, s); err != nil {
			h.logger.Errorf("failed to answer %s: %v", push.EventInit, err)
		}
	}
}

// rehydrate queues a full snapshot. The listing and the enqueue happen under
// mu so no broadcast can be ordered between them.
func (h *Hub) rehydrate(ctx context.Context, s *subscriber) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	groups, err := h.lister.ListGroups(ctx)
	if err != nil {
		return err
	}

	snapshot, err := push.NewFrame(push.EventInit, groups)
	if err != nil {
		return err
	}

	select {
	case s.frames <- snapshot:
	default:
		s.drop()
	}
	return nil
}

func (h *Hub) add(s *subscriber) {
	h.mu.Lock()
	h.subs[s] = struct{}{}
	n := len(h.subs)
	h.mu.Unlock()

	h.logger.Debugf("push subscriber connected, %d active", n)
}

func (h *Hub) remove(s *subscriber) {
	h.mu.Lock()
	delete(h.subs, s)
	h.mu.Unlock()
}

func NewHub(lister ListerInterface, tracer tracing.TracingInterface, monitor monitoring.MonitorInterface, logger logging.LoggerInterface) *Hub {
	h := new(Hub)

	h.lister = lister
	h.subs = make(map[*subscriber]struct{})

	h.tracer = tracer
	h.monitor = monitor
	h.logger = logger

	return h
}
