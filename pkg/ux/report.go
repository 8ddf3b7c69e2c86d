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
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"

	"github.com/AleutianAI/flowgraph/services/flowgraph/builder"
	"github.com/AleutianAI/flowgraph/services/flowgraph/changeset"
	"github.com/AleutianAI/flowgraph/services/flowgraph/diff"
	"github.com/AleutianAI/flowgraph/services/flowgraph/impact"
	"github.com/AleutianAI/flowgraph/services/flowgraph/snapshot"
)

// WriteJSON writes v as indented JSON.
func WriteJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// RenderBuild prints build statistics and per-file problems.
func RenderBuild(w io.Writer, root string, r *builder.BuildResult) {
	s := r.Stats
	Title(w, "Build "+root)
	KeyValue(w, "nodes", s.NodesCreated)
	KeyValue(w, "edges", s.EdgesCreated)
	KeyValue(w, "files", fmt.Sprintf("%d discovered, %d processed, %d failed", s.FilesDiscovered, s.FilesProcessed, s.FilesFailed))
	if s.DuplicateFiles > 0 {
		KeyValue(w, "duplicates", s.DuplicateFiles)
	}
	if s.DanglingEdges > 0 {
		KeyValue(w, "dangling edges", s.DanglingEdges)
	}
	KeyValue(w, "duration", time.Duration(s.DurationMilli)*time.Millisecond)

	for _, fe := range r.FileErrors {
		Error(w, fe.Error())
	}
	for _, d := range r.Duplicates {
		Warning(w, fmt.Sprintf("%s duplicates %s (%s kept)", d.FilePath, d.ID, d.KeptPath))
	}
	for _, ri := range r.ReferenceIssues {
		Warning(w, fmt.Sprintf("%s: unresolved %s reference at %s: %s", ri.FilePath, ri.Type, ri.Location, ri.Reason))
	}
	if r.Incomplete {
		Warning(w, "build incomplete: cancelled before finishing")
	}
}

// RenderDelta prints violations grouped by severity, errors first.
func RenderDelta(w io.Writer, title string, d *diff.GraphDelta) {
	Title(w, title)
	if d.Stats.Total == 0 {
		Success(w, "no findings")
		return
	}

	if machine() {
		for _, v := range d.Violations {
			fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", v.Severity, v.Kind, strings.Join(v.ComponentIDs, ","), v.Message)
		}
		return
	}

	for _, group := range []struct {
		icon  Icon
		style lipgloss.Style
		items []diff.Violation
	}{
		{IconError, Styles.Error, d.Errors},
		{IconWarning, Styles.Warning, d.Warnings},
		{IconInfo, Styles.Muted, d.Info},
	} {
		for _, v := range group.items {
			fmt.Fprintf(w, "%s %s %s\n", group.icon.Render(), group.style.Render(string(v.Kind)), v.Message)
		}
	}
	fmt.Fprintf(w, "\n%s %s  %s %s  %s %s\n",
		Styles.Error.Render(fmt.Sprint(len(d.Errors))), Styles.Muted.Render("errors"),
		Styles.Warning.Render(fmt.Sprint(len(d.Warnings))), Styles.Muted.Render("warnings"),
		Styles.Bold.Render(fmt.Sprint(len(d.Info))), Styles.Muted.Render("info"),
	)
}

// RenderImpact prints an impact cone, nearest components first.
func RenderImpact(w io.Writer, r *impact.Result, changes *changeset.ChangeSet, threshold impact.RiskLevel, exceeded bool) {
	if changes != nil {
		Title(w, "Changed components")
		for _, id := range changes.ComponentIDs {
			Info(w, id)
		}
		for _, p := range changes.Unmatched {
			Muted(w, "  unmatched: "+p)
		}
	}

	Title(w, "Impact")
	if machine() {
		for _, a := range r.AffectedComponents {
			fmt.Fprintf(w, "%d\t%s\t%s\t%s\n", a.Depth, a.Type, a.ID, a.Origin)
		}
	} else {
		for _, a := range r.AffectedComponents {
			line := strings.Repeat("  ", a.Depth) + a.ID
			if a.Missing {
				line += Styles.Error.Render(" (missing)")
			}
			if a.Depth == 0 {
				fmt.Fprintln(w, Styles.Highlight.Render(line))
				continue
			}
			fmt.Fprintf(w, "%s %s\n", Styles.Muted.Render(string(IconArrow)), line)
		}
	}

	KeyValue(w, "dependents", r.Stats.Dependents)
	KeyValue(w, "max depth", r.Stats.MaxDepthReached)
	KeyValue(w, "risk", r.Stats.Risk)
	if r.Truncated {
		Warning(w, "analysis truncated")
	}
	if exceeded {
		Error(w, fmt.Sprintf("risk %s exceeds threshold %s", r.Stats.Risk, threshold))
	}
}

// RenderPath prints a dependency chain.
func RenderPath(w io.Writer, path []string) {
	if machine() {
		for _, id := range path {
			fmt.Fprintln(w, id)
		}
		return
	}
	arrow := " " + Styles.Muted.Render(string(IconArrow)) + " "
	fmt.Fprintln(w, strings.Join(path, arrow))
}

// RenderSnapshots prints snapshot metadata, one per line.
func RenderSnapshots(w io.Writer, metas []snapshot.Meta) {
	if len(metas) == 0 {
		Muted(w, "no snapshots")
		return
	}
	for _, m := range metas {
		created := time.UnixMilli(m.CreatedAtMilli).UTC().Format(time.RFC3339)
		if machine() {
			fmt.Fprintf(w, "%s\t%s\t%s\t%d\t%d\t%s\n", m.ID, m.Environment, created, m.NodeCount, m.EdgeCount, m.Note)
			continue
		}
		line := fmt.Sprintf("%s  %s  %d nodes, %d edges", Styles.Bold.Render(m.ID), created, m.NodeCount, m.EdgeCount)
		if m.Note != "" {
			line += "  " + Styles.Muted.Render(m.Note)
		}
		fmt.Fprintln(w, line)
	}
}
