// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package flowgraph ties the graph packages into one service.
//
// Service owns configuration, logging and the optional snapshot store. It
// is constructed explicitly and holds no global state, so several
// services with different configs can live in one process. The CLI and
// the HTTP handlers are thin layers over it.
package flowgraph

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"golang.org/x/sync/singleflight"

	"github.com/AleutianAI/flowgraph/services/flowgraph/builder"
	"github.com/AleutianAI/flowgraph/services/flowgraph/changeset"
	"github.com/AleutianAI/flowgraph/services/flowgraph/config"
	"github.com/AleutianAI/flowgraph/services/flowgraph/diff"
	"github.com/AleutianAI/flowgraph/services/flowgraph/graph"
	"github.com/AleutianAI/flowgraph/services/flowgraph/impact"
	"github.com/AleutianAI/flowgraph/services/flowgraph/runtime"
	"github.com/AleutianAI/flowgraph/services/flowgraph/snapshot"
	"github.com/AleutianAI/flowgraph/services/flowgraph/telemetry"
)

// ServiceVersion is reported by the health endpoint and the CLI.
const ServiceVersion = "0.1.0"

// Runtime graph origins reported in DiffReport.RuntimeSource.
const (
	RuntimeFromDirectory = "directory"
	RuntimeFromSnapshot  = "snapshot"
)

var serviceTracer = otel.Tracer("flowgraph.service")

// ServiceConfig configures a Service.
type ServiceConfig struct {
	// Config is the loaded configuration. Default: config.Default().
	Config *config.Config

	// Logger is the service logger. Default: slog.Default().
	Logger *slog.Logger

	// Snapshots is the optional snapshot store. Without it, only
	// environments with a configured directory can be diffed.
	Snapshots *snapshot.Store

	// Progress receives local build progress. May be nil.
	Progress builder.ProgressFunc
}

// Service runs builds, checks, diffs and impact analysis for workspaces.
//
// Thread Safety:
//
//	Safe for concurrent use. Concurrent builds of the same root share one
//	build; the shared result and its frozen graph are read-only.
type Service struct {
	cfg         *config.Config
	logger      *slog.Logger
	snapshots   *snapshot.Store
	directories *runtime.DirectorySource
	progress    builder.ProgressFunc
	builds      singleflight.Group
}

// NewService creates a service.
func NewService(sc ServiceConfig) *Service {
	cfg := sc.Config
	if cfg == nil {
		cfg = config.Default()
	}
	logger := sc.Logger
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With(slog.String("component", "flowgraph_service"))

	return &Service{
		cfg:       cfg,
		logger:    logger,
		snapshots: sc.Snapshots,
		progress:  sc.Progress,
		directories: runtime.NewDirectorySource(cfg.Environments, logger).
			WithOptionsFor(cfg.BuilderOptions),
	}
}

// Config returns the service configuration.
func (s *Service) Config() *config.Config {
	return s.cfg
}

// Snapshots returns the snapshot store, or nil.
func (s *Service) Snapshots() *snapshot.Store {
	return s.snapshots
}

// Environments returns the environments with a configured directory,
// sorted.
func (s *Service) Environments() []string {
	envs := s.directories.Environments()
	slices.Sort(envs)
	return envs
}

// CheckReport is the outcome of a health check of one workspace.
type CheckReport struct {
	Build *builder.BuildResult `json:"build"`
	Delta *diff.GraphDelta     `json:"delta"`
}

// DiffReport is the outcome of comparing a workspace with an environment.
type DiffReport struct {
	Environment string `json:"environment"`
	Domain      string `json:"domain,omitempty"`

	// RuntimeSource is RuntimeFromDirectory or RuntimeFromSnapshot.
	RuntimeSource string               `json:"runtimeSource"`
	Build         *builder.BuildResult `json:"build"`
	Delta         *diff.GraphDelta     `json:"delta"`
}

// ImpactTarget names what changed. IDs, a unified diff and plain file
// paths may be combined; their components are unioned.
type ImpactTarget struct {
	IDs   []string
	Patch []byte
	Paths []string

	// Threshold overrides the configured risk threshold when non-empty.
	Threshold string
}

// ImpactReport is the outcome of an impact analysis.
type ImpactReport struct {
	Result *impact.Result `json:"result"`

	// Changes maps the patch and paths to components. Nil when the target
	// named only ids.
	Changes *changeset.ChangeSet `json:"changes,omitempty"`

	Threshold impact.RiskLevel `json:"threshold"`
	Exceeded  bool             `json:"exceeded"`
}

// Build builds the workspace at root.
//
// Description:
//
//	Builds with the configured builder options. Concurrent calls for the
//	same root share one build and one result. A cancelled build returns
//	its partial result with Incomplete set and no error.
//
// Inputs:
//
//	ctx - Context for cancellation and tracing.
//	root - Workspace directory. Relative paths resolve against the
//	       working directory.
//
// Outputs:
//
//	*builder.BuildResult - The build result. Its graph is frozen.
//	error - ErrPathTraversal, ErrNotDirectory or a build error.
func (s *Service) Build(ctx context.Context, root string) (*builder.BuildResult, error) {
	ctx, span := serviceTracer.Start(ctx, "Service.Build")
	defer span.End()

	abs, err := resolveRoot(root)
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}
	span.SetAttributes(attribute.String("root", abs))

	v, err, shared := s.builds.Do(abs, func() (any, error) {
		opts := append(s.cfg.BuilderOptions(abs), builder.WithLogger(s.logger))
		if s.progress != nil {
			opts = append(opts, builder.WithProgressCallback(s.progress))
		}
		return builder.NewBuilder(opts...).Build(ctx)
	})
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, fmt.Errorf("build %s: %w", abs, err)
	}
	result := v.(*builder.BuildResult)
	span.SetAttributes(
		attribute.Bool("shared", shared),
		attribute.Int("nodes", result.Stats.NodesCreated),
		attribute.Int("edges", result.Stats.EdgesCreated),
	)

	telemetry.LoggerWithTrace(ctx, s.logger).Info("workspace built",
		slog.String("root", abs),
		slog.Int("nodes", result.Stats.NodesCreated),
		slog.Int("edges", result.Stats.EdgesCreated),
		slog.Int("file_errors", len(result.FileErrors)),
		slog.Bool("shared", shared),
	)
	return result, nil
}

// localGraph builds root and refuses partial graphs.
func (s *Service) localGraph(ctx context.Context, root string) (*builder.BuildResult, error) {
	result, err := s.Build(ctx, root)
	if err != nil {
		return nil, err
	}
	if result.Incomplete {
		return result, ErrBuildIncomplete
	}
	return result, nil
}

// Check builds root and runs the health checks on it.
func (s *Service) Check(ctx context.Context, root string) (*CheckReport, error) {
	result, err := s.localGraph(ctx, root)
	if err != nil {
		return nil, err
	}
	return &CheckReport{Build: result, Delta: diff.Check(ctx, result.Graph)}, nil
}

// Diff compares the workspace at root with environment env.
//
// Description:
//
//	When domain is non-empty only its components are compared; health
//	findings still see the whole workspace, so dependencies on other
//	domains resolve. The runtime graph comes from the environment's
//	configured directory when there is one, else from its newest snapshot.
//
// Outputs:
//
//	*DiffReport - The comparison.
//	error - A build error, runtime.ErrUnknownEnvironment,
//	        runtime.ErrNoRuntimeGraph or a fetch error.
func (s *Service) Diff(ctx context.Context, root, env, domain string) (*DiffReport, error) {
	ctx, span := serviceTracer.Start(ctx, "Service.Diff")
	defer span.End()
	span.SetAttributes(attribute.String("environment", env), attribute.String("domain", domain))

	result, err := s.localGraph(ctx, root)
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}
	remote, from, err := s.Runtime(ctx, env, domain)
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}

	delta := diff.DiffDomain(ctx, result.Graph, remote, domain)

	telemetry.LoggerWithTrace(ctx, s.logger).Info("diff finished",
		slog.String("environment", env),
		slog.String("runtime_source", from),
		slog.Int("errors", len(delta.Errors)),
		slog.Int("warnings", len(delta.Warnings)),
	)
	return &DiffReport{
		Environment:   env,
		Domain:        strings.ToLower(strings.TrimSpace(domain)),
		RuntimeSource: from,
		Build:         result,
		Delta:         delta,
	}, nil
}

// Runtime fetches the runtime graph of env, narrowed to domain, and
// reports where it came from.
func (s *Service) Runtime(ctx context.Context, env, domain string) (*graph.Graph, string, error) {
	g, err := s.directories.FetchGraph(ctx, env, domain, runtime.FetchOptions{})
	if err == nil {
		return g, RuntimeFromDirectory, nil
	}
	if !errors.Is(err, runtime.ErrUnknownEnvironment) || s.snapshots == nil {
		return nil, "", err
	}

	g, err = s.snapshots.FetchGraph(ctx, env, domain, runtime.FetchOptions{})
	if err != nil {
		return nil, "", err
	}
	return g, RuntimeFromSnapshot, nil
}

// Impact computes the impact cone of a change in the workspace at root.
//
// Description:
//
//	Components are taken from target.IDs plus whatever target.Patch and
//	target.Paths touch. The configured max depth is applied before opts.
//	The report's Exceeded is true when the risk is strictly above the
//	threshold.
//
// Outputs:
//
//	*ImpactReport - The analysis.
//	error - A build error, changeset.ErrInvalidPatch or
//	        ErrNoStartComponents.
func (s *Service) Impact(ctx context.Context, root string, target ImpactTarget, opts ...impact.Option) (*ImpactReport, error) {
	result, err := s.localGraph(ctx, root)
	if err != nil {
		return nil, err
	}
	g := result.Graph

	ids := append([]string{}, target.IDs...)
	var changes *changeset.ChangeSet
	if len(target.Patch) > 0 || len(target.Paths) > 0 {
		changes = &changeset.ChangeSet{}
		if len(target.Patch) > 0 {
			fromPatch, err := changeset.FromPatch(target.Patch, g)
			if err != nil {
				return nil, err
			}
			changes = merge(changes, fromPatch)
		}
		if len(target.Paths) > 0 {
			changes = merge(changes, changeset.FromPaths(target.Paths, g))
		}
		ids = append(ids, changes.ComponentIDs...)
	}
	if len(ids) == 0 {
		return nil, ErrNoStartComponents
	}

	all := append([]impact.Option{impact.WithMaxDepth(s.cfg.Impact.MaxDepth)}, opts...)
	res, err := impact.ImpactCone(ctx, g, ids, all...)
	if err != nil {
		return nil, err
	}

	threshold := s.cfg.ImpactThreshold()
	if target.Threshold != "" {
		threshold = impact.ParseRiskLevel(target.Threshold)
	}
	return &ImpactReport{
		Result:    res,
		Changes:   changes,
		Threshold: threshold,
		Exceeded:  res.Stats.Risk.Exceeds(threshold),
	}, nil
}

func merge(a, b *changeset.ChangeSet) *changeset.ChangeSet {
	out := &changeset.ChangeSet{
		Files:        append(append([]changeset.ChangedFile{}, a.Files...), b.Files...),
		ComponentIDs: append(append([]string{}, a.ComponentIDs...), b.ComponentIDs...),
		Unmatched:    append(append([]string{}, a.Unmatched...), b.Unmatched...),
	}
	slices.Sort(out.ComponentIDs)
	out.ComponentIDs = slices.Compact(out.ComponentIDs)
	slices.Sort(out.Unmatched)
	out.Unmatched = slices.Compact(out.Unmatched)
	return out
}

// Path returns the shortest chain of dependents from one component to
// another: each element depends on the one before it. A change to from
// reaches to along this chain.
func (s *Service) Path(ctx context.Context, root, from, to string) ([]string, error) {
	result, err := s.localGraph(ctx, root)
	if err != nil {
		return nil, err
	}
	return impact.ShortestPath(ctx, result.Graph, from, to)
}

// SaveSnapshot records the runtime graph of env in the snapshot store.
//
// Description:
//
//	When dir is empty the environment's configured directory is built;
//	otherwise dir is built as the environment's export.
//
// Outputs:
//
//	snapshot.Meta - The stored snapshot.
//	error - ErrNoSnapshotStore, runtime.ErrUnknownEnvironment, a build
//	        error or a storage error.
func (s *Service) SaveSnapshot(ctx context.Context, env, dir, note string) (snapshot.Meta, error) {
	ctx, span := serviceTracer.Start(ctx, "Service.SaveSnapshot")
	defer span.End()

	if s.snapshots == nil {
		return snapshot.Meta{}, ErrNoSnapshotStore
	}

	src := s.directories
	if dir != "" {
		abs, err := resolveRoot(dir)
		if err != nil {
			telemetry.RecordError(span, err)
			return snapshot.Meta{}, err
		}
		src = runtime.NewDirectorySource(map[string]string{env: abs}, s.logger).
			WithOptionsFor(s.cfg.BuilderOptions)
	}

	g, err := src.FetchGraph(ctx, env, "", runtime.FetchOptions{})
	if err != nil {
		telemetry.RecordError(span, err)
		return snapshot.Meta{}, err
	}
	meta, err := s.snapshots.Save(ctx, env, g, note)
	telemetry.RecordError(span, err)
	return meta, err
}

// EnvironmentStatus reports reachability of one environment.
type EnvironmentStatus struct {
	Name      string `json:"name"`
	Reachable bool   `json:"reachable"`
	Error     string `json:"error,omitempty"`
}

// Health tests every configured environment directory.
func (s *Service) Health(ctx context.Context) []EnvironmentStatus {
	envs := s.Environments()
	out := make([]EnvironmentStatus, 0, len(envs))
	for _, env := range envs {
		ok, err := s.directories.TestConnection(ctx, env)
		st := EnvironmentStatus{Name: env, Reachable: ok}
		if err != nil {
			st.Error = err.Error()
		}
		out = append(out, st)
	}
	return out
}

// resolveRoot rejects traversal and returns the absolute directory path.
func resolveRoot(root string) (string, error) {
	if root == "" {
		return "", fmt.Errorf("%w: empty path", ErrNotDirectory)
	}
	for _, seg := range strings.Split(filepath.ToSlash(root), "/") {
		if seg == ".." {
			return "", fmt.Errorf("%w: %s", ErrPathTraversal, root)
		}
	}
	abs, err := filepath.Abs(root)
	if err != nil {
		return "", fmt.Errorf("resolve %s: %w", root, err)
	}
	info, err := os.Stat(abs)
	if err != nil || !info.IsDir() {
		return "", fmt.Errorf("%w: %s", ErrNotDirectory, abs)
	}
	return abs, nil
}
