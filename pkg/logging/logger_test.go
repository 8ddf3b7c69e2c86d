// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package logging

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLevel_String(t *testing.T) {
	assert.Equal(t, "DEBUG", LevelDebug.String())
	assert.Equal(t, "INFO", LevelInfo.String())
	assert.Equal(t, "WARN", LevelWarn.String())
	assert.Equal(t, "ERROR", LevelError.String())
	assert.Equal(t, "UNKNOWN", Level(99).String())
	assert.Equal(t, slog.LevelInfo, Level(99).toSlogLevel())
}

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in      string
		want    Level
		wantErr bool
	}{
		{"debug", LevelDebug, false},
		{"INFO", LevelInfo, false},
		{"", LevelInfo, false},
		{" warning ", LevelWarn, false},
		{"Error", LevelError, false},
		{"verbose", LevelInfo, true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseLevel(tt.in)
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestNew_ConsoleFiltersByLevel(t *testing.T) {
	var buf bytes.Buffer
	logger := New(Config{Level: LevelWarn, Writer: &buf, Service: "flowgraph"})

	logger.Info("build finished", "nodes", 3)
	logger.Warn("file skipped", "file", "Tasks/bad.json")

	out := buf.String()
	assert.NotContains(t, out, "build finished")
	assert.Contains(t, out, "file skipped")
	assert.Contains(t, out, "file=Tasks/bad.json")
	assert.Contains(t, out, "service=flowgraph")
}

func TestNew_JSONConsole(t *testing.T) {
	var buf bytes.Buffer
	logger := New(Config{JSON: true, Writer: &buf})
	logger.With("component", "builder").Info("build finished", slog.Int("nodes", 2))

	var rec map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &rec))
	assert.Equal(t, "build finished", rec["msg"])
	assert.Equal(t, "builder", rec["component"])
	assert.EqualValues(t, 2, rec["nodes"])
}

func TestNew_FileLogging(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "logs")
	var buf bytes.Buffer
	logger := New(Config{LogDir: dir, Service: "flowgraph-test", Writer: &buf})
	logger.Error("snapshot save failed", "environment", "prod")
	require.NoError(t, logger.Close())
	require.NoError(t, logger.Close())

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.True(t, strings.HasPrefix(entries[0].Name(), "flowgraph-test_"))

	data, err := os.ReadFile(filepath.Join(dir, entries[0].Name()))
	require.NoError(t, err)
	var rec map[string]any
	require.NoError(t, json.Unmarshal(bytes.TrimSpace(data), &rec))
	assert.Equal(t, "snapshot save failed", rec["msg"])
	assert.Equal(t, "prod", rec["environment"])
	assert.Contains(t, buf.String(), "snapshot save failed")
}

func TestExporter(t *testing.T) {
	exporter := NewBufferedExporter()
	logger := New(Config{Level: LevelInfo, Quiet: true, Service: "flowgraph", Exporter: exporter})

	logger.Debug("dropped")
	logger.Info("diff finished", "errors", 1, slog.String("environment", "prod"))
	require.NoError(t, logger.Close())

	entries := exporter.Entries()
	require.Len(t, entries, 1)
	assert.Equal(t, "diff finished", entries[0].Message)
	assert.Equal(t, LevelInfo, entries[0].Level)
	assert.Equal(t, "flowgraph", entries[0].Service)
	assert.Equal(t, 1, entries[0].Attrs["errors"])
	assert.Equal(t, "prod", entries[0].Attrs["environment"])
}

func TestArgsToMap(t *testing.T) {
	m := argsToMap([]any{"a", 1, slog.Bool("b", true), "dangling"})
	assert.Equal(t, map[string]any{"a": 1, "b": true}, m)
}

func TestExpandPath(t *testing.T) {
	home, err := os.UserHomeDir()
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(home, "logs"), expandPath("~/logs"))
	assert.Equal(t, "/var/log", expandPath("/var/log"))
}

func TestSetDefault(t *testing.T) {
	prev := slog.Default()
	t.Cleanup(func() { slog.SetDefault(prev) })

	var buf bytes.Buffer
	SetDefault(New(Config{Writer: &buf}))
	slog.Info("routed")
	assert.Contains(t, buf.String(), "routed")
}

func TestNopExporter(t *testing.T) {
	logger := New(Config{Quiet: true, Exporter: NopExporter{}})
	logger.Warn("ignored")
	assert.NoError(t, logger.Close())
}
