// Copyright 2025 Canonical Ltd.
// SPDX-License-Identifier: AGPL-3.0

package logging

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5/middleware"
)

type LogFormatter struct {
	logger LoggerInterface
}

func (f *LogFormatter) NewLogEntry(r *http.Request) middleware.LogEntry {
	return &LogEntry{
		method:    r.Method,
		path:      r.URL.Path,
		requestID: middleware.GetReqID(r.Context()),
		logger:    f.logger,
	}
}

type LogEntry struct {
	method    string
	path      string
	requestID string

	logger LoggerInterface
}

func (e *LogEntry) Write(status, bytes int, header http.Header, elapsed time.Duration, extra interface{}) {
	e.logger.Debugf(
		"request_id=%s method=%s path=%s status=%d bytes=%d elapsed=%s",
		e.requestID, e.method, e.path, status, bytes, elapsed,
	)
}

func (e *LogEntry) Panic(v interface{}, stack []byte) {
	e.logger.Errorf("request_id=%s panic=%v stack=%s", e.requestID, v, string(stack))
}

// NewLogFormatter only produces output when the logger runs at DEBUG level
func NewLogFormatter(logger LoggerInterface) *LogFormatter {
	f := new(LogFormatter)
	f.logger = logger

	return f
}
