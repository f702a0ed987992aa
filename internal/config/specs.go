// Copyright 2025 Canonical Ltd.
// SPDX-License-Identifier: AGPL-3.0

package config

import (
	"time"
)

// EnvSpec is the basic environment configuration setup needed for the app to start
type EnvSpec struct {
	OtelGRPCEndpoint string `envconfig:"otel_grpc_endpoint"`
	OtelHTTPEndpoint string `envconfig:"otel_http_endpoint"`
	TracingEnabled   bool   `envconfig:"tracing_enabled" default:"true"`

	LogLevel         string `envconfig:"log_level" default:"error"`
	LogFile          string `envconfig:"log_file" default:""`
	LogFileMaxSizeMB int    `envconfig:"log_file_max_size_mb" default:"50"`
	LogFileBackups   int    `envconfig:"log_file_backups" default:"3"`
	Debug            bool   `envconfig:"debug" default:"false"`

	Port int `envconfig:"port" default:"8080"`

	ApiURL   string `envconfig:"api_url" default:"http://localhost:8080"`
	PushURL  string `envconfig:"push_url" default:"ws://localhost:8080/ws"`
	ApiToken string `envconfig:"api_token" default:""`
	PlayerID string `envconfig:"player_id" default:""`

	RefreshInterval time.Duration `envconfig:"refresh_interval" default:"30s"`
	PushBackoffMin  time.Duration `envconfig:"push_backoff_min" default:"500ms"`
	PushBackoffMax  time.Duration `envconfig:"push_backoff_max" default:"30s"`
	PullRateLimit   time.Duration `envconfig:"pull_rate_limit" default:"1s"`
	RequestTimeout  time.Duration `envconfig:"request_timeout" default:"10s"`

	VersionGuard  bool   `envconfig:"version_guard" default:"false"`
	TemplatesFile string `envconfig:"templates_file" default:""`
}
