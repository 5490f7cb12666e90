// Copyright 2025 The Rivaas Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package main

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"dario.cat/mergo"
	"github.com/BurntSushi/toml"
	"github.com/go-playground/validator/v10"
	"github.com/go-viper/mapstructure/v2"
	"github.com/goccy/go-yaml"
)

// envPrefix selects the environment variables read by loadConfig.
// PAGETRACK_SERVER_SHUTDOWN_TIMEOUT sets server.shutdown_timeout.
const envPrefix = "PAGETRACK_"

// ErrInvalidConfig wraps validation failures.
var ErrInvalidConfig = errors.New("invalid configuration")

// Config is the daemon configuration.
type Config struct {
	Server    ServerConfig    `config:"server" yaml:"server"`
	Log       LogConfig       `config:"log" yaml:"log"`
	Tracking  TrackingConfig  `config:"tracking" yaml:"tracking"`
	Telemetry TelemetryConfig `config:"telemetry" yaml:"telemetry"`
}

type ServerConfig struct {
	Addr              string        `config:"addr" yaml:"addr" validate:"required,hostname_port"`
	ReadHeaderTimeout time.Duration `config:"read_header_timeout" yaml:"read_header_timeout" validate:"gt=0"`
	ShutdownTimeout   time.Duration `config:"shutdown_timeout" yaml:"shutdown_timeout" validate:"gt=0"`

	// Banner prints the startup banner when stdout is a terminal.
	Banner bool `config:"banner" yaml:"banner"`
}

type LogConfig struct {
	Level  string `config:"level" yaml:"level" validate:"oneof=debug info warn error"`
	// Format "auto" selects text on a terminal and JSON otherwise.
	Format string `config:"format" yaml:"format" validate:"oneof=auto json text"`
}

type TrackingConfig struct {
	// Domain is reported as the page view host; empty uses the machine
	// hostname, then the request host.
	Domain                 string        `config:"domain" yaml:"domain" validate:"omitempty,hostname_rfc1123"`
	Account                string        `config:"account" yaml:"account"`
	IncludeActionArguments bool          `config:"include_action_arguments" yaml:"include_action_arguments"`
	QueryArguments         []string      `config:"query_arguments" yaml:"query_arguments"`
	ExcludePaths           []string      `config:"exclude_paths" yaml:"exclude_paths" validate:"dive,startswith=/"`
	Async                  bool          `config:"async" yaml:"async"`
	// MaxPending bounds asynchronous deliveries in flight; 0 means no limit.
	MaxPending             int           `config:"max_pending" yaml:"max_pending" validate:"gte=0"`
	Timeout                time.Duration `config:"timeout" yaml:"timeout" validate:"gte=0"`
}

type TelemetryConfig struct {
	ServiceName    string        `config:"service_name" yaml:"service_name" validate:"required"`
	Traces         string        `config:"traces" yaml:"traces" validate:"oneof=stdout otlp otlp-grpc none"`
	Metrics        string        `config:"metrics" yaml:"metrics" validate:"oneof=prometheus stdout otlp otlp-grpc none"`
	MetricsPath    string        `config:"metrics_path" yaml:"metrics_path" validate:"startswith=/"`
	ExportInterval time.Duration `config:"export_interval" yaml:"export_interval" validate:"gte=1s"`

	// OTLPEndpoint is used by the otlp exporters, e.g. "http://localhost:4318"
	// for otlp (HTTP) or "http://localhost:4317" for otlp-grpc.
	// Empty uses the OTEL_EXPORTER_OTLP_* environment defaults.
	OTLPEndpoint string `config:"otlp_endpoint" yaml:"otlp_endpoint" validate:"omitempty,url"`
}

func defaultValues() map[string]any {
	return map[string]any{
		"server": map[string]any{
			"addr":                ":8080",
			"read_header_timeout": "5s",
			"shutdown_timeout":    "10s",
			"banner":              true,
		},
		"log": map[string]any{
			"level":  "info",
			"format": "auto",
		},
		"tracking": map[string]any{
			"include_action_arguments": true,
			"timeout":                  "2s",
			"max_pending":              1024,
		},
		"telemetry": map[string]any{
			"service_name":    "pagetrackd",
			"traces":          "none",
			"metrics":         "prometheus",
			"metrics_path":    "/metrics",
			"export_interval": "30s",
		},
	}
}

// loadConfig layers defaults, the file at path (optional, YAML or TOML by
// extension) and the prefixed variables in environ, then binds and
// validates the result.
func loadConfig(path string, environ []string) (*Config, error) {
	values := defaultValues()

	if path != "" {
		fileValues, err := readConfigFile(path)
		if err != nil {
			return nil, err
		}
		if err = mergo.Map(&values, normalizeMapKeys(fileValues), mergo.WithOverride); err != nil {
			return nil, fmt.Errorf("failed to merge config file: %w", err)
		}
	}

	if err := mergo.Map(&values, envValues(environ), mergo.WithOverride); err != nil {
		return nil, fmt.Errorf("failed to merge environment: %w", err)
	}

	var cfg Config
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		TagName:          "config",
		WeaklyTypedInput: true,
		DecodeHook: mapstructure.ComposeDecodeHookFunc(
			mapstructure.StringToTimeDurationHookFunc(),
			mapstructure.StringToSliceHookFunc(","),
		),
		Result: &cfg,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create decoder: %w", err)
	}
	if err = decoder.Decode(values); err != nil {
		return nil, fmt.Errorf("failed to decode configuration: %w", err)
	}

	if err = validator.New(validator.WithRequiredStructEnabled()).Struct(&cfg); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}

	return &cfg, nil
}

func readConfigFile(path string) (map[string]any, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var values map[string]any
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".toml":
		err = toml.Unmarshal(data, &values)
	case ".yaml", ".yml", "":
		err = yaml.Unmarshal(data, &values)
	default:
		return nil, fmt.Errorf("unsupported config file extension %q", ext)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
	}

	return values, nil
}

// envValues turns PAGETRACK_<SECTION>_<KEY>=value into {section: {key: value}}.
// Only the first underscore after the prefix separates section from key.
func envValues(environ []string) map[string]any {
	out := make(map[string]any)
	for _, kv := range environ {
		name, value, ok := strings.Cut(kv, "=")
		if !ok {
			continue
		}
		name, ok = strings.CutPrefix(name, envPrefix)
		if !ok {
			continue
		}
		section, key, ok := strings.Cut(strings.ToLower(name), "_")
		if !ok || section == "" || key == "" {
			continue
		}
		sub, _ := out[section].(map[string]any)
		if sub == nil {
			sub = make(map[string]any)
			out[section] = sub
		}
		sub[key] = value
	}

	return out
}

// normalizeMapKeys lowercases keys recursively.
func normalizeMapKeys(m map[string]any) map[string]any {
	if m == nil {
		return nil
	}
	normalized := make(map[string]any, len(m))
	for k, v := range m {
		if nested, ok := v.(map[string]any); ok {
			v = normalizeMapKeys(nested)
		}
		normalized[strings.ToLower(k)] = v
	}

	return normalized
}
