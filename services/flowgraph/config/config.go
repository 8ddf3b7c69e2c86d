// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package config loads flowgraph configuration.
//
// Configuration is layered. The embedded defaults.yaml is decoded first and
// an optional YAML file is decoded over it, so omitted keys keep their
// defaults. Maps merge key by key, lists are replaced. Environment
// overrides are applied last, then the result is validated.
//
// Thread Safety:
//
//	A loaded *Config is read-only and safe for concurrent use.
package config

import (
	"bytes"
	"context"
	_ "embed"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"gopkg.in/yaml.v3"

	"github.com/AleutianAI/flowgraph/pkg/logging"
	"github.com/AleutianAI/flowgraph/services/flowgraph/builder"
	"github.com/AleutianAI/flowgraph/services/flowgraph/graph"
	"github.com/AleutianAI/flowgraph/services/flowgraph/impact"
	"github.com/AleutianAI/flowgraph/services/flowgraph/normalize"
	"github.com/AleutianAI/flowgraph/services/flowgraph/semver"
)

const (
	// MaxYAMLFileSize is the maximum accepted config file size (1MB).
	MaxYAMLFileSize = 1024 * 1024

	// EnvConfigPath names the config file when no path is given.
	EnvConfigPath = "FLOWGRAPH_CONFIG"

	// EnvLogLevel overrides logging.level.
	EnvLogLevel = "FLOWGRAPH_LOG_LEVEL"

	// DefaultFileName is looked up in the working directory.
	DefaultFileName = "flowgraph.yaml"
)

// Config sources.
const (
	SourceEmbedded = "embedded"
	SourceFile     = "file"
)

var (
	// ErrFileTooLarge is returned for config files above MaxYAMLFileSize.
	ErrFileTooLarge = errors.New("config file too large")

	// ErrInvalidConfig wraps validation failures.
	ErrInvalidConfig = errors.New("invalid config")
)

//go:embed defaults.yaml
var defaultConfigYAML []byte

var (
	configLoadErrors = promauto.NewCounter(prometheus.CounterOpts{
		Name: "flowgraph_config_load_errors_total",
		Help: "Total flowgraph config load errors",
	})

	configLoadDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "flowgraph_config_load_duration_seconds",
		Help:    "Duration of flowgraph config loading",
		Buckets: []float64{0.001, 0.01, 0.05, 0.1, 0.5},
	})
)

var configTracer = otel.Tracer("flowgraph.config")

// Config is the root configuration.
type Config struct {
	Normalize NormalizeConfig `yaml:"normalize"`
	Build     BuildConfig     `yaml:"build"`

	// Environments maps an environment name to the directory holding its
	// exported runtime components.
	Environments map[string]string `yaml:"environments" validate:"dive,keys,required,excludes=/,endkeys,required"`

	Snapshot  SnapshotConfig  `yaml:"snapshot"`
	Server    ServerConfig    `yaml:"server"`
	Impact    ImpactConfig    `yaml:"impact"`
	Telemetry TelemetryConfig `yaml:"telemetry"`
	Logging   LoggingConfig   `yaml:"logging"`

	// Source is SourceEmbedded or SourceFile.
	Source string `yaml:"-"`

	// Path is the file decoded over the defaults, if any.
	Path string `yaml:"-"`
}

// NormalizeConfig configures reference normalization.
type NormalizeConfig struct {
	DefaultDomain  string                    `yaml:"default_domain" validate:"required,excludes=/"`
	DefaultVersion string                    `yaml:"default_version" validate:"required"`
	DirectoryFlows []normalize.DirectoryFlow `yaml:"directory_flows"`
	TypeFlows      map[string]string         `yaml:"type_flows" validate:"dive,required"`
}

// BuildConfig configures the graph builder.
type BuildConfig struct {
	SearchDirs       map[string][]string `yaml:"search_dirs" validate:"dive,min=1"`
	ExcludedSuffixes []string            `yaml:"excluded_suffixes"`

	// Workers is the parallel reader count. 0 means one per CPU.
	Workers int  `yaml:"workers" validate:"gte=0"`
	Hashing bool `yaml:"hashing"`
	Strict  bool `yaml:"strict"`

	// MaxNodes and MaxEdges cap the graph. 0 keeps the graph defaults.
	MaxNodes int `yaml:"max_nodes" validate:"gte=0"`
	MaxEdges int `yaml:"max_edges" validate:"gte=0"`
}

// SnapshotConfig configures the snapshot store.
type SnapshotConfig struct {
	// Path is the BadgerDB directory. Supports ~ expansion.
	Path string `yaml:"path" validate:"required"`
}

// ServerConfig configures the HTTP API.
type ServerConfig struct {
	Port int `yaml:"port" validate:"gte=1,lte=65535"`
}

// ImpactConfig configures impact analysis defaults.
type ImpactConfig struct {
	MaxDepth  int    `yaml:"max_depth" validate:"gte=0"`
	Threshold string `yaml:"threshold" validate:"oneof=low medium high critical LOW MEDIUM HIGH CRITICAL"`
}

// TelemetryConfig selects OpenTelemetry exporters.
type TelemetryConfig struct {
	ServiceName  string `yaml:"service_name" validate:"required"`
	Traces       string `yaml:"traces" validate:"oneof=none stdout otlp"`
	Metrics      string `yaml:"metrics" validate:"oneof=none stdout prometheus"`
	OTLPEndpoint string `yaml:"otlp_endpoint" validate:"required_if=Traces otlp"`
}

// LoggingConfig configures pkg/logging.
type LoggingConfig struct {
	Level string `yaml:"level" validate:"oneof=debug info warn error"`
	Dir   string `yaml:"dir"`
	JSON  bool   `yaml:"json"`
}

var configValidate = validator.New()

// Default returns the embedded defaults.
func Default() *Config {
	cfg, err := parse(defaultConfigYAML, nil)
	if err != nil {
		panic(fmt.Sprintf("embedded defaults.yaml is invalid: %v", err))
	}
	cfg.Source = SourceEmbedded
	return cfg
}

// Load reads configuration.
//
// Description:
//
//	Decodes the embedded defaults, then the first file found among path,
//	$FLOWGRAPH_CONFIG and ./flowgraph.yaml. An explicit path or
//	environment path that cannot be read is an error; a missing
//	./flowgraph.yaml is not. Environment overrides are applied and the
//	result is validated.
//
// Inputs:
//
//	ctx - Context for tracing. Must not be nil.
//	path - Optional config file path. Empty means look it up.
//
// Outputs:
//
//	*Config - The validated configuration.
//	error - ErrFileTooLarge, a decode error, or ErrInvalidConfig.
func Load(ctx context.Context, path string) (*Config, error) {
	_, span := configTracer.Start(ctx, "config.Load")
	defer span.End()

	start := time.Now()
	defer func() {
		configLoadDuration.Observe(time.Since(start).Seconds())
	}()

	fail := func(err error) (*Config, error) {
		span.RecordError(err)
		span.SetStatus(codes.Error, "load failed")
		configLoadErrors.Inc()
		return nil, err
	}

	if path == "" {
		path = os.Getenv(EnvConfigPath)
	}
	if path == "" {
		if _, err := os.Stat(DefaultFileName); err == nil {
			path = DefaultFileName
		}
	}

	var overlay []byte
	source := SourceEmbedded
	if path != "" {
		data, err := readFile(path)
		if err != nil {
			return fail(err)
		}
		overlay = data
		source = SourceFile
	}

	cfg, err := parse(defaultConfigYAML, overlay)
	if err != nil {
		return fail(err)
	}
	cfg.Source = source
	if source == SourceFile {
		cfg.Path, _ = filepath.Abs(path)
	}

	cfg.applyEnv()
	if err := cfg.Validate(); err != nil {
		return fail(err)
	}

	span.SetAttributes(
		attribute.String("source", source),
		attribute.Int("environments", len(cfg.Environments)),
	)
	slog.Debug("flowgraph config loaded",
		slog.String("source", source),
		slog.String("path", cfg.Path),
	)
	return cfg, nil
}

func readFile(path string) ([]byte, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("stat config: %w", err)
	}
	if info.Size() > MaxYAMLFileSize {
		return nil, fmt.Errorf("%w: %d bytes (max %d)", ErrFileTooLarge, info.Size(), MaxYAMLFileSize)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	return data, nil
}

// parse decodes base, then overlay over it.
func parse(base, overlay []byte) (*Config, error) {
	cfg := &Config{}
	if err := decode(base, cfg); err != nil {
		return nil, fmt.Errorf("decode defaults: %w", err)
	}
	if len(bytes.TrimSpace(overlay)) > 0 {
		if err := decode(overlay, cfg); err != nil {
			return nil, fmt.Errorf("decode config: %w", err)
		}
	}
	return cfg, nil
}

func decode(data []byte, cfg *Config) error {
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	return dec.Decode(cfg)
}

func (c *Config) applyEnv() {
	if level := os.Getenv(EnvLogLevel); level != "" {
		c.Logging.Level = strings.ToLower(level)
	}
}

// Validate checks field constraints and cross-field rules.
func (c *Config) Validate() error {
	if err := configValidate.Struct(c); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}
	if !semver.Valid(c.Normalize.DefaultVersion) {
		return fmt.Errorf("%w: normalize.default_version %q is not a semantic version", ErrInvalidConfig, c.Normalize.DefaultVersion)
	}
	for name := range c.Normalize.TypeFlows {
		if _, err := graph.ParseComponentType(name); err != nil {
			return fmt.Errorf("%w: normalize.type_flows: %v", ErrInvalidConfig, err)
		}
	}
	for name := range c.Build.SearchDirs {
		if _, err := graph.ParseComponentType(name); err != nil {
			return fmt.Errorf("%w: build.search_dirs: %v", ErrInvalidConfig, err)
		}
	}
	for i, df := range c.Normalize.DirectoryFlows {
		if df.Match == "" || df.Flow == "" {
			return fmt.Errorf("%w: normalize.directory_flows[%d] needs match and flow", ErrInvalidConfig, i)
		}
	}
	return nil
}

// NormalizerOptions returns the normalize options described by c.
func (c *Config) NormalizerOptions() []normalize.Option {
	return []normalize.Option{
		normalize.WithDefaultDomain(strings.ToLower(c.Normalize.DefaultDomain)),
		normalize.WithDefaultVersion(c.Normalize.DefaultVersion),
		normalize.WithDirectoryFlows(c.Normalize.DirectoryFlows),
		normalize.WithTypeFlows(typeKeyed(c.Normalize.TypeFlows)),
		normalize.WithStrict(c.Build.Strict),
	}
}

// NewNormalizer returns a normalizer resolving file references against root.
func (c *Config) NewNormalizer(root string) *normalize.Normalizer {
	opts := append(c.NormalizerOptions(), normalize.WithResolver(normalize.NewFileResolver(root)))
	return normalize.New(opts...)
}

// BuilderOptions returns the builder options for a workspace at root.
func (c *Config) BuilderOptions(root string) []builder.BuilderOption {
	opts := []builder.BuilderOption{
		builder.WithRoot(root),
		builder.WithNormalizer(c.NewNormalizer(root)),
		builder.WithSearchDirs(typeKeyed(c.Build.SearchDirs)),
		builder.WithExcludedSuffixes(c.Build.ExcludedSuffixes...),
		builder.WithHashing(c.Build.Hashing),
		builder.WithStrict(c.Build.Strict),
	}
	if c.Build.Workers > 0 {
		opts = append(opts, builder.WithWorkerCount(c.Build.Workers))
	}
	if c.Build.MaxNodes > 0 {
		opts = append(opts, builder.WithMaxNodes(c.Build.MaxNodes))
	}
	if c.Build.MaxEdges > 0 {
		opts = append(opts, builder.WithMaxEdges(c.Build.MaxEdges))
	}
	return opts
}

// LogLevel returns the configured log level.
func (c *Config) LogLevel() logging.Level {
	level, err := logging.ParseLevel(c.Logging.Level)
	if err != nil {
		return logging.LevelInfo
	}
	return level
}

// ImpactThreshold returns the risk level above which impact fails.
func (c *Config) ImpactThreshold() impact.RiskLevel {
	return impact.ParseRiskLevel(c.Impact.Threshold)
}

// SnapshotPath returns the snapshot directory with ~ expanded.
func (c *Config) SnapshotPath() string {
	return expandHome(c.Snapshot.Path)
}

// LogDir returns the log directory with ~ expanded, or "".
func (c *Config) LogDir() string {
	return expandHome(c.Logging.Dir)
}

func expandHome(p string) string {
	if p == "~" || strings.HasPrefix(p, "~/") {
		if home, err := os.UserHomeDir(); err == nil {
			return filepath.Join(home, p[1:])
		}
	}
	return p
}

// typeKeyed converts type-name keys, skipping names that do not parse.
// Validate rejects those before this is reached.
func typeKeyed[V any](in map[string]V) map[graph.ComponentType]V {
	out := make(map[graph.ComponentType]V, len(in))
	for name, v := range in {
		t, err := graph.ParseComponentType(name)
		if err != nil {
			continue
		}
		out[t] = v
	}
	return out
}
