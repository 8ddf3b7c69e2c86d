// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package config

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AleutianAI/flowgraph/pkg/logging"
	"github.com/AleutianAI/flowgraph/services/flowgraph/builder"
	"github.com/AleutianAI/flowgraph/services/flowgraph/graph"
	"github.com/AleutianAI/flowgraph/services/flowgraph/impact"
	"github.com/AleutianAI/flowgraph/services/flowgraph/normalize"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "flowgraph.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestDefault(t *testing.T) {
	cfg := Default()
	require.NoError(t, cfg.Validate())

	assert.Equal(t, SourceEmbedded, cfg.Source)
	assert.Equal(t, "core", cfg.Normalize.DefaultDomain)
	assert.Equal(t, "1.0.0", cfg.Normalize.DefaultVersion)
	assert.Equal(t, normalize.DefaultDirectoryFlows(), cfg.Normalize.DirectoryFlows)
	assert.Equal(t, []string{"Tasks"}, cfg.Build.SearchDirs["task"])
	assert.Equal(t, builder.DefaultExcludedSuffixes(), cfg.Build.ExcludedSuffixes)
	assert.True(t, cfg.Build.Hashing)
	assert.Equal(t, 8095, cfg.Server.Port)
	assert.Equal(t, impact.RiskHigh, cfg.ImpactThreshold())
	assert.Equal(t, logging.LevelInfo, cfg.LogLevel())
	assert.Empty(t, cfg.Environments)
}

func TestDefault_TypeFlowsMatchNormalizer(t *testing.T) {
	cfg := Default()
	assert.Equal(t, normalize.DefaultTypeFlows(), typeKeyed(cfg.Normalize.TypeFlows))
	assert.Equal(t, builder.DefaultSearchDirs(), typeKeyed(cfg.Build.SearchDirs))
}

func TestLoad_OverlayKeepsDefaults(t *testing.T) {
	t.Setenv(EnvConfigPath, "")
	t.Setenv(EnvLogLevel, "")
	path := writeConfig(t, `
normalize:
  default_domain: billing
  type_flows:
    task: jobs
build:
  search_dirs:
    task: [Jobs, Tasks]
  workers: 4
environments:
  prod: /srv/export/prod
  qa: /srv/export/qa
impact:
  threshold: medium
`)

	cfg, err := Load(context.Background(), path)
	require.NoError(t, err)

	assert.Equal(t, SourceFile, cfg.Source)
	assert.True(t, filepath.IsAbs(cfg.Path))
	assert.Equal(t, "billing", cfg.Normalize.DefaultDomain)
	assert.Equal(t, "1.0.0", cfg.Normalize.DefaultVersion)
	assert.Equal(t, "jobs", cfg.Normalize.TypeFlows["task"])
	assert.Equal(t, "sys-flows", cfg.Normalize.TypeFlows["workflow"])
	assert.Equal(t, []string{"Jobs", "Tasks"}, cfg.Build.SearchDirs["task"])
	assert.Equal(t, []string{"Schemas"}, cfg.Build.SearchDirs["schema"])
	assert.Equal(t, 4, cfg.Build.Workers)
	assert.Equal(t, "/srv/export/prod", cfg.Environments["prod"])
	assert.Equal(t, impact.RiskMedium, cfg.ImpactThreshold())
}

func TestLoad_EnvironmentPath(t *testing.T) {
	path := writeConfig(t, "server:\n  port: 9000\n")
	t.Setenv(EnvConfigPath, path)
	t.Setenv(EnvLogLevel, "")

	cfg, err := Load(context.Background(), "")
	require.NoError(t, err)
	assert.Equal(t, 9000, cfg.Server.Port)
}

func TestLoad_LogLevelOverride(t *testing.T) {
	t.Setenv(EnvConfigPath, writeConfig(t, "logging:\n  level: warn\n"))
	t.Setenv(EnvLogLevel, "DEBUG")

	cfg, err := Load(context.Background(), "")
	require.NoError(t, err)
	assert.Equal(t, "debug", cfg.Logging.Level)
	assert.Equal(t, logging.LevelDebug, cfg.LogLevel())
}

func TestLoad_Errors(t *testing.T) {
	t.Setenv(EnvConfigPath, "")
	t.Setenv(EnvLogLevel, "")
	ctx := context.Background()

	tests := []struct {
		name string
		body string
		want error
	}{
		{name: "bad port", body: "server:\n  port: 0\n", want: ErrInvalidConfig},
		{name: "bad traces exporter", body: "telemetry:\n  traces: jaeger\n", want: ErrInvalidConfig},
		{name: "bad version", body: "normalize:\n  default_version: one\n", want: ErrInvalidConfig},
		{name: "bad type name", body: "normalize:\n  type_flows:\n    widget: sys-widgets\n", want: ErrInvalidConfig},
		{name: "empty search dirs", body: "build:\n  search_dirs:\n    task: []\n", want: ErrInvalidConfig},
		{name: "environment with slash", body: "environments:\n  prod/eu: /srv\n", want: ErrInvalidConfig},
		{name: "bad threshold", body: "impact:\n  threshold: extreme\n", want: ErrInvalidConfig},
		{name: "half directory flow", body: "normalize:\n  directory_flows:\n    - match: task\n", want: ErrInvalidConfig},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(ctx, writeConfig(t, tt.body))
			assert.ErrorIs(t, err, tt.want)
		})
	}

	t.Run("unknown key", func(t *testing.T) {
		_, err := Load(ctx, writeConfig(t, "bogus: true\n"))
		assert.Error(t, err)
	})
	t.Run("missing file", func(t *testing.T) {
		_, err := Load(ctx, filepath.Join(t.TempDir(), "nope.yaml"))
		assert.Error(t, err)
	})
	t.Run("too large", func(t *testing.T) {
		body := "# " + strings.Repeat("x", MaxYAMLFileSize) + "\n"
		_, err := Load(ctx, writeConfig(t, body))
		assert.ErrorIs(t, err, ErrFileTooLarge)
	})
}

func TestBuilderOptions(t *testing.T) {
	cfg := Default()
	cfg.Build.Workers = 3
	cfg.Build.MaxNodes = 10
	cfg.Build.SearchDirs["task"] = []string{"Jobs"}

	var o builder.BuilderOptions = builder.DefaultBuilderOptions()
	for _, opt := range cfg.BuilderOptions("/ws") {
		opt(&o)
	}
	assert.Equal(t, "/ws", o.Root)
	assert.Equal(t, 3, o.WorkerCount)
	assert.Equal(t, 10, o.MaxNodes)
	assert.Equal(t, graph.DefaultMaxEdges, o.MaxEdges)
	assert.Equal(t, []string{"Jobs"}, o.SearchDirs[graph.ComponentTypeTask])
	require.NotNil(t, o.Normalizer)
	assert.NotNil(t, o.Normalizer.Options().Resolver)
}

func TestNormalizerOptions(t *testing.T) {
	cfg := Default()
	cfg.Normalize.DefaultDomain = "Billing"
	cfg.Normalize.TypeFlows["task"] = "jobs"

	n := normalize.New(cfg.NormalizerOptions()...)
	ref, err := n.Normalize(context.Background(), "Tasks/charge.json", graph.ComponentTypeTask)
	require.NoError(t, err)
	require.NotNil(t, ref)
	assert.Equal(t, "billing/sys-tasks/charge@1.0.0", ref.ID())

	ref, err = n.Normalize(context.Background(), map[string]any{"key": "x", "domain": "core"}, graph.ComponentTypeTask)
	require.NoError(t, err)
	assert.Equal(t, "core/jobs/x@1.0.0", ref.ID())
}

func TestExpandHome(t *testing.T) {
	home, err := os.UserHomeDir()
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(home, ".flowgraph"), expandHome("~/.flowgraph"))
	assert.Equal(t, "/var/lib/flowgraph", expandHome("/var/lib/flowgraph"))
	assert.Equal(t, "", expandHome(""))
}
