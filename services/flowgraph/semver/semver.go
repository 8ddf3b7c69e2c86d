// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package semver checks component versions against version ranges.
//
// Versions must spell out major.minor.patch; the "v" prefix is optional.
// Validation and ordering use golang.org/x/mod/semver. Ranges are
// Masterminds/semver constraints, which follow the npm grammar:
//
//	x  *                     any release
//	1.2.3  =1.2.3            exact
//	>1.2.3 >=1.2 <2 <=1.x    comparators, partial versions allowed
//	^1.2.3 ^0.2 ^0.0.3       compatible with (left-most non-zero component)
//	~1.2.3 ~1.2 ~1           patch-level changes
//	1.x  1.2.x  1.*          x-ranges
//	1.2.3 - 2.0.0            inclusive hyphen range
//	>=1.0.0 <2.0.0           space or comma separated: all must match
//	^1.0.0 || ^2.0.0         either set may match
//
// A pre-release version only satisfies a range whose comparators name a
// pre-release. The empty range accepts every valid version.
package semver

import (
	"errors"
	"fmt"
	"strings"

	msemver "github.com/Masterminds/semver/v3"
	xsemver "golang.org/x/mod/semver"
)

var (
	// ErrInvalidVersion is returned when a version is not valid semver.
	ErrInvalidVersion = errors.New("invalid version")

	// ErrInvalidRange is returned when a range cannot be parsed.
	ErrInvalidRange = errors.New("invalid version range")
)

// Range is a parsed version range.
type Range struct {
	raw         string
	constraints *msemver.Constraints
}

// String returns the range as it was parsed.
func (r *Range) String() string {
	return r.raw
}

// Contains reports whether version satisfies the range.
func (r *Range) Contains(version string) (bool, error) {
	v, err := parseVersion(version)
	if err != nil {
		return false, err
	}
	if r.constraints == nil {
		return true, nil
	}
	return r.constraints.Check(v), nil
}

// Satisfies reports whether version is within rng.
//
// Errors:
//
//	ErrInvalidVersion - version is not valid semver
//	ErrInvalidRange - rng cannot be parsed
func Satisfies(version, rng string) (bool, error) {
	r, err := ParseRange(rng)
	if err != nil {
		return false, err
	}
	return r.Contains(version)
}

// Valid reports whether s is a valid version, with or without "v".
func Valid(s string) bool {
	_, err := canonical(s)
	return err == nil
}

// Compare returns -1, 0 or +1 comparing two versions. Invalid versions sort
// before valid ones, as in golang.org/x/mod/semver.
func Compare(a, b string) int {
	return xsemver.Compare(withV(a), withV(b))
}

// ParseRange parses a range expression.
func ParseRange(rng string) (*Range, error) {
	r := &Range{raw: rng}
	s := strings.TrimSpace(rng)
	if s == "" {
		return r, nil
	}
	c, err := msemver.NewConstraint(s)
	if err != nil {
		return nil, fmt.Errorf("%w %q: %w", ErrInvalidRange, rng, err)
	}
	r.constraints = c
	return r, nil
}

func parseVersion(s string) (*msemver.Version, error) {
	if _, err := canonical(s); err != nil {
		return nil, err
	}
	v, err := msemver.NewVersion(strings.TrimPrefix(withV(s), "v"))
	if err != nil {
		return nil, fmt.Errorf("%w: %q: %w", ErrInvalidVersion, s, err)
	}
	return v, nil
}

func withV(s string) string {
	s = strings.TrimSpace(s)
	if strings.HasPrefix(s, "v") {
		return s
	}
	return "v" + s
}

func canonical(s string) (string, error) {
	v := withV(s)
	if !xsemver.IsValid(v) || !fullCore(v) {
		return "", fmt.Errorf("%w: %q", ErrInvalidVersion, s)
	}
	return xsemver.Canonical(v), nil
}

// fullCore reports whether v spells out major.minor.patch. x/mod/semver
// accepts "v1" and "v1.2" shorthands, which component versions never use.
func fullCore(v string) bool {
	core := v
	if i := strings.IndexAny(core, "-+"); i >= 0 {
		core = core[:i]
	}
	return strings.Count(core, ".") == 2
}
