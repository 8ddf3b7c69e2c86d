// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package ux

import (
	"bytes"
	"strings"
	"testing"
)

// withLevel sets the personality level for the duration of a test.
func withLevel(t *testing.T, level PersonalityLevel) {
	t.Helper()
	old := GetPersonality()
	SetPersonality(Personality{Level: level})
	t.Cleanup(func() { SetPersonality(old) })
}

// =============================================================================
// Icon.Render Tests
// =============================================================================

func TestIcon_Render(t *testing.T) {
	for _, icon := range []Icon{IconSuccess, IconWarning, IconError, IconInfo, IconPending, IconArrow} {
		if !strings.Contains(icon.Render(), string(icon)) {
			t.Errorf("Render(%q) lost the icon glyph", icon)
		}
	}
}

// =============================================================================
// Status printer Tests
// =============================================================================

func TestStatus_Machine(t *testing.T) {
	withLevel(t, PersonalityMachine)

	tests := []struct {
		name  string
		print func(*bytes.Buffer)
		want  string
	}{
		{"success", func(b *bytes.Buffer) { Success(b, "built") }, "OK: built\n"},
		{"warning", func(b *bytes.Buffer) { Warning(b, "drift") }, "WARN: drift\n"},
		{"error", func(b *bytes.Buffer) { Error(b, "broken") }, "ERROR: broken\n"},
		{"info", func(b *bytes.Buffer) { Info(b, "plain") }, "plain\n"},
		{"title", func(b *bytes.Buffer) { Title(b, "hidden") }, ""},
		{"muted", func(b *bytes.Buffer) { Muted(b, "hidden") }, ""},
		{"key value", func(b *bytes.Buffer) { KeyValue(b, "nodes", 3) }, "nodes\t3\n"},
		{"box", func(b *bytes.Buffer) { Box(b, "Summary", "a\nb") }, "Summary: a; b\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			tt.print(&buf)
			if got := buf.String(); got != tt.want {
				t.Errorf("got %q, want %q", got, tt.want)
			}
		})
	}
}

func TestStatus_Standard(t *testing.T) {
	withLevel(t, PersonalityStandard)

	var buf bytes.Buffer
	Success(&buf, "built")
	Warning(&buf, "drift")
	Title(&buf, "Report")
	Box(&buf, "Summary", "content")

	out := buf.String()
	for _, want := range []string{"✓", "built", "⚠", "drift", "Report", "Summary", "content"} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}
}

func TestStatus_Minimal(t *testing.T) {
	withLevel(t, PersonalityMinimal)

	var buf bytes.Buffer
	Error(&buf, "broken")
	if !strings.Contains(buf.String(), "broken") || !strings.Contains(buf.String(), "✗") {
		t.Errorf("unexpected output %q", buf.String())
	}
}

// =============================================================================
// ProgressBar Tests
// =============================================================================

func TestProgressBar(t *testing.T) {
	t.Run("machine", func(t *testing.T) {
		withLevel(t, PersonalityMachine)
		if got := ProgressBar(3, 10, 20); got != "3/10" {
			t.Errorf("got %q", got)
		}
	})

	t.Run("standard", func(t *testing.T) {
		withLevel(t, PersonalityStandard)
		if got := ProgressBar(5, 10, 20); !strings.Contains(got, "50%") {
			t.Errorf("got %q, want 50%%", got)
		}
	})

	t.Run("zero total", func(t *testing.T) {
		withLevel(t, PersonalityStandard)
		if got := ProgressBar(0, 0, 20); got != "0/0" {
			t.Errorf("got %q", got)
		}
	})

	t.Run("over full", func(t *testing.T) {
		withLevel(t, PersonalityStandard)
		if got := ProgressBar(12, 10, 20); !strings.Contains(got, "100%") {
			t.Errorf("got %q, want 100%%", got)
		}
	})
}
