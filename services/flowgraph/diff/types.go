// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package diff compares component graphs and checks graph health.
//
// Diff compares a local (design-time) graph against a runtime (deployed)
// graph and classifies every difference as a Violation. CheckHealth looks
// at one graph alone for missing dependencies, circular dependencies and
// version range violations.
//
// Findings are data, not errors: a GraphDelta full of error-severity
// violations is still a successful analysis.
//
// # Thread Safety
//
// All functions are pure readers of frozen graphs and safe for concurrent
// use.
package diff

import "fmt"

// Kind classifies a violation.
type Kind string

const (
	KindNodeAdded          Kind = "node-added"
	KindNodeRemoved        Kind = "node-removed"
	KindNodeChanged        Kind = "node-changed"
	KindVersionDrift       Kind = "version-drift"
	KindAPIDrift           Kind = "api-drift"
	KindConfigDrift        Kind = "config-drift"
	KindSemverViolation    Kind = "semver-violation"
	KindMissingDependency  Kind = "missing-dependency"
	KindCircularDependency Kind = "circular-dependency"
)

// Severity indicates the importance of a violation.
type Severity string

const (
	SeverityError   Severity = "error"
	SeverityWarning Severity = "warning"
	SeverityInfo    Severity = "info"
)

// Rank orders severities: error > warning > info.
func (s Severity) Rank() int {
	switch s {
	case SeverityError:
		return 3
	case SeverityWarning:
		return 2
	case SeverityInfo:
		return 1
	default:
		return 0
	}
}

// ParseSeverity parses a severity name.
func ParseSeverity(s string) (Severity, error) {
	switch Severity(s) {
	case SeverityError, SeverityWarning, SeverityInfo:
		return Severity(s), nil
	}
	return "", fmt.Errorf("unknown severity %q (want error, warning or info)", s)
}

// Violation is one finding.
type Violation struct {
	// Kind classifies the finding.
	Kind Kind `json:"kind"`

	// Severity is fixed per kind.
	Severity Severity `json:"severity"`

	// ComponentIDs are the implicated component ids.
	ComponentIDs []string `json:"componentIds"`

	// Message is a human-readable summary.
	Message string `json:"message"`

	// Details holds kind-specific structured data.
	Details map[string]any `json:"details,omitempty"`
}

// Stats aggregates a violation list.
type Stats struct {
	Total      int              `json:"total"`
	BySeverity map[Severity]int `json:"bySeverity"`
	ByKind     map[Kind]int     `json:"byKind"`
}

// GraphDelta is the result of a diff.
//
// Violations holds every finding in pass order. Errors, Warnings and Info
// partition the same findings by severity.
type GraphDelta struct {
	Violations []Violation `json:"violations"`
	Errors     []Violation `json:"errors"`
	Warnings   []Violation `json:"warnings"`
	Info       []Violation `json:"info"`
	Stats      Stats       `json:"stats"`
}

// NewGraphDelta partitions violations and computes statistics.
func NewGraphDelta(violations []Violation) *GraphDelta {
	d := &GraphDelta{
		Violations: violations,
		Errors:     []Violation{},
		Warnings:   []Violation{},
		Info:       []Violation{},
		Stats: Stats{
			Total:      len(violations),
			BySeverity: make(map[Severity]int),
			ByKind:     make(map[Kind]int),
		},
	}
	if d.Violations == nil {
		d.Violations = []Violation{}
	}
	for _, v := range violations {
		switch v.Severity {
		case SeverityError:
			d.Errors = append(d.Errors, v)
		case SeverityWarning:
			d.Warnings = append(d.Warnings, v)
		default:
			d.Info = append(d.Info, v)
		}
		d.Stats.BySeverity[v.Severity]++
		d.Stats.ByKind[v.Kind]++
	}
	return d
}

// HasErrors returns true if any violation has error severity.
func (d *GraphDelta) HasErrors() bool {
	return len(d.Errors) > 0
}

// ByKind returns the violations of one kind, in pass order.
func (d *GraphDelta) ByKind(k Kind) []Violation {
	var out []Violation
	for _, v := range d.Violations {
		if v.Kind == k {
			out = append(out, v)
		}
	}
	return out
}

// AtLeast returns the violations whose severity is at least floor.
func (d *GraphDelta) AtLeast(floor Severity) []Violation {
	var out []Violation
	for _, v := range d.Violations {
		if v.Severity.Rank() >= floor.Rank() {
			out = append(out, v)
		}
	}
	return out
}
