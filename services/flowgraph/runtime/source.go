// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package runtime defines where deployed component graphs come from.
//
// The diff engine compares a local graph against a runtime graph but never
// fetches one itself. A Source hands it one: a directory exported from an
// environment, a stored snapshot, or any other backend implementing the
// interface.
package runtime

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/AleutianAI/flowgraph/services/flowgraph/builder"
	"github.com/AleutianAI/flowgraph/services/flowgraph/graph"
)

var (
	// ErrUnknownEnvironment is returned for an environment the source
	// does not know.
	ErrUnknownEnvironment = errors.New("unknown environment")

	// ErrNoRuntimeGraph is returned when an environment has no graph yet.
	ErrNoRuntimeGraph = errors.New("no runtime graph")
)

// FetchOptions narrows what a Source returns.
type FetchOptions struct {
	// Types limits the component types fetched. Empty means all.
	Types []graph.ComponentType
}

// Source supplies runtime graphs.
//
// Implementations must return frozen graphs whose nodes carry
// graph.SourceRuntime.
type Source interface {
	// FetchGraph returns the deployed graph of environment, restricted
	// to domain when domain is non-empty.
	FetchGraph(ctx context.Context, environment, domain string, opts FetchOptions) (*graph.Graph, error)

	// TestConnection reports whether environment is reachable and has a
	// graph to offer.
	TestConnection(ctx context.Context, environment string) (bool, error)
}

// FilterDomain returns the subgraph of nodes in domain. An empty domain
// returns g unchanged. Edges leaving the domain become dangling.
func FilterDomain(g *graph.Graph, domain string) *graph.Graph {
	domain = strings.ToLower(strings.TrimSpace(domain))
	if domain == "" {
		return g
	}
	return g.Filter(func(n *graph.Node) bool {
		return n.Ref.Domain == domain
	})
}

// DirectorySource reads runtime graphs from directories exported from each
// environment, laid out like a workspace.
type DirectorySource struct {
	environments map[string]string
	builderOpts  []builder.BuilderOption
	optionsFor   func(dir string) []builder.BuilderOption
	logger       *slog.Logger
}

// NewDirectorySource creates a source over environment → directory.
//
// builderOpts are applied to every build, before the source's own root
// and source settings.
func NewDirectorySource(environments map[string]string, logger *slog.Logger, builderOpts ...builder.BuilderOption) *DirectorySource {
	if logger == nil {
		logger = slog.Default()
	}
	envs := make(map[string]string, len(environments))
	for k, v := range environments {
		envs[k] = v
	}
	return &DirectorySource{
		environments: envs,
		builderOpts:  builderOpts,
		logger:       logger.With(slog.String("component", "runtime_source")),
	}
}

// WithOptionsFor sets a function returning per-directory builder options,
// applied after the fixed builderOpts. Use it when options depend on the
// root, such as a normalizer resolving file references inside it.
func (s *DirectorySource) WithOptionsFor(fn func(dir string) []builder.BuilderOption) *DirectorySource {
	s.optionsFor = fn
	return s
}

// Environments returns the configured environment names.
func (s *DirectorySource) Environments() []string {
	out := make([]string, 0, len(s.environments))
	for k := range s.environments {
		out = append(out, k)
	}
	return out
}

func (s *DirectorySource) dir(environment string) (string, error) {
	dir, ok := s.environments[environment]
	if !ok {
		return "", fmt.Errorf("%w: %s", ErrUnknownEnvironment, environment)
	}
	return dir, nil
}

// FetchGraph builds the environment's directory.
func (s *DirectorySource) FetchGraph(ctx context.Context, environment, domain string, opts FetchOptions) (*graph.Graph, error) {
	dir, err := s.dir(environment)
	if err != nil {
		return nil, err
	}

	bopts := append([]builder.BuilderOption{}, s.builderOpts...)
	if s.optionsFor != nil {
		bopts = append(bopts, s.optionsFor(dir)...)
	}
	bopts = append(bopts,
		builder.WithRoot(dir),
		builder.WithSource(graph.SourceRuntime),
		builder.WithLogger(s.logger),
	)
	if len(opts.Types) > 0 {
		bopts = append(bopts, builder.WithTypes(opts.Types...))
	}

	result, err := builder.NewBuilder(bopts...).Build(ctx)
	if err != nil {
		return nil, fmt.Errorf("fetch %s: %w", environment, err)
	}
	if result.Incomplete {
		return nil, fmt.Errorf("fetch %s: %w", environment, ctx.Err())
	}
	if result.HasErrors() {
		s.logger.Warn("runtime graph built with errors",
			slog.String("environment", environment),
			slog.Int("errors", result.TotalErrors()),
		)
	}
	return FilterDomain(result.Graph, domain), nil
}

// TestConnection reports whether the environment's directory exists.
func (s *DirectorySource) TestConnection(_ context.Context, environment string) (bool, error) {
	dir, err := s.dir(environment)
	if err != nil {
		return false, err
	}
	info, err := os.Stat(dir)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return false, nil
		}
		return false, err
	}
	return info.IsDir(), nil
}
