// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/AleutianAI/flowgraph/pkg/logging"
	"github.com/AleutianAI/flowgraph/pkg/ux"
	"github.com/AleutianAI/flowgraph/services/flowgraph"
	"github.com/AleutianAI/flowgraph/services/flowgraph/builder"
	"github.com/AleutianAI/flowgraph/services/flowgraph/config"
	"github.com/AleutianAI/flowgraph/services/flowgraph/snapshot"
	fgbadger "github.com/AleutianAI/flowgraph/services/flowgraph/storage/badger"
)

// Exit codes.
const (
	ExitSuccess  = 0
	ExitFindings = 1
	ExitError    = 2
)

// exitError carries a non-default exit code. Silent errors have already
// been reported to the user.
type exitError struct {
	code   int
	err    error
	silent bool
}

func (e *exitError) Error() string { return e.err.Error() }
func (e *exitError) Unwrap() error { return e.err }

// findings returns an ExitFindings error that prints nothing more.
func findings(format string, args ...any) error {
	return &exitError{code: ExitFindings, err: fmt.Errorf(format, args...), silent: true}
}

// app holds global flags and the per-invocation resources.
type app struct {
	stdout io.Writer
	stderr io.Writer

	configPath string
	jsonOut    bool
	logLevel   string
	output     string

	cfg    *config.Config
	logger *logging.Logger
	db     *fgbadger.DB
	store  *snapshot.Store
}

// execute runs the CLI and returns the process exit code.
func execute(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	a := &app{stdout: stdout, stderr: stderr}
	defer a.close()

	root := newRootCmd(a)
	root.SetArgs(args)
	root.SetOut(stdout)
	root.SetErr(stderr)

	err := root.ExecuteContext(ctx)
	if err == nil {
		return ExitSuccess
	}

	var ee *exitError
	if errors.As(err, &ee) {
		if !ee.silent {
			ux.Error(stderr, ee.Error())
		}
		return ee.code
	}
	ux.Error(stderr, err.Error())
	return ExitError
}

func newRootCmd(a *app) *cobra.Command {
	root := &cobra.Command{
		Use:   "flowgraph",
		Short: "Dependency graphs for workflow component workspaces",
		Long: `flowgraph builds the dependency graph of a workspace of workflow
components (tasks, schemas, views, functions, extensions, workflows),
checks it for missing and circular dependencies, compares it with what
is deployed in an environment and computes the impact of a change.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.setup(cmd)
		},
	}

	root.PersistentFlags().StringVar(&a.configPath, "config", "",
		"Config file (default $FLOWGRAPH_CONFIG or ./flowgraph.yaml)")
	root.PersistentFlags().BoolVar(&a.jsonOut, "json", false,
		"Output JSON (default when stdout is not a terminal)")
	root.PersistentFlags().StringVar(&a.logLevel, "log-level", "",
		"Log level: debug, info, warn, error")
	root.PersistentFlags().StringVar(&a.output, "output", "",
		"Text output style: standard, minimal, machine")

	root.AddCommand(
		newBuildCmd(a),
		newCheckCmd(a),
		newDiffCmd(a),
		newImpactCmd(a),
		newPathCmd(a),
		newSnapshotCmd(a),
		newWatchCmd(a),
		newServeCmd(a),
		newVersionCmd(a),
	)
	return root
}

// setup loads configuration and installs logging and output style.
func (a *app) setup(cmd *cobra.Command) error {
	cfg, err := config.Load(cmd.Context(), a.configPath)
	if err != nil {
		return err
	}
	if a.logLevel != "" {
		if _, err := logging.ParseLevel(a.logLevel); err != nil {
			return err
		}
		cfg.Logging.Level = a.logLevel
	}
	a.cfg = cfg

	a.logger = logging.New(logging.Config{
		Level:   cfg.LogLevel(),
		LogDir:  cfg.LogDir(),
		Service: "flowgraph",
		JSON:    cfg.Logging.JSON,
		Writer:  a.stderr,
	})
	logging.SetDefault(a.logger)

	if !cmd.Flags().Changed("json") && !ux.IsTerminal() {
		a.jsonOut = true
	}
	switch {
	case a.output != "":
		ux.SetPersonality(ux.Personality{Level: ux.ParsePersonalityLevel(a.output)})
	default:
		ux.InitPersonality()
	}

	a.logger.Debug("configuration loaded",
		slog.String("source", cfg.Source),
		slog.String("path", cfg.Path),
	)
	return nil
}

func (a *app) close() {
	if a.db != nil {
		if err := a.db.Close(); err != nil {
			a.logger.Warn("close snapshot store", slog.String("error", err.Error()))
		}
	}
	if a.logger != nil {
		a.logger.Close()
	}
}

// snapshots opens the snapshot store on first use.
func (a *app) snapshots() (*snapshot.Store, error) {
	if a.store != nil {
		return a.store, nil
	}
	bcfg := fgbadger.DefaultConfig()
	bcfg.Path = a.cfg.SnapshotPath()
	bcfg.Logger = a.logger.Slog()
	db, err := fgbadger.OpenDB(bcfg)
	if err != nil {
		return nil, fmt.Errorf("open snapshot store %s: %w", bcfg.Path, err)
	}
	a.db = db
	a.store = snapshot.NewStore(db, snapshot.WithLogger(a.logger.Slog()))
	return a.store, nil
}

// service creates a service whose builds report progress to spin.
func (a *app) service(store *snapshot.Store, spin *ux.Spinner) *flowgraph.Service {
	sc := flowgraph.ServiceConfig{
		Config:    a.cfg,
		Logger:    a.logger.Slog(),
		Snapshots: store,
	}
	if spin != nil {
		sc.Progress = func(p builder.BuildProgress) {
			spin.UpdateMessage(fmt.Sprintf("%s %s", p.Phase, ux.ProgressBar(p.FilesProcessed, p.FilesTotal, 20)))
		}
	}
	return flowgraph.NewService(sc)
}

// emit writes v as JSON, or calls text.
func (a *app) emit(v any, text func(w io.Writer)) error {
	if a.jsonOut {
		return ux.WriteJSON(a.stdout, v)
	}
	text(a.stdout)
	return nil
}

func rootArg(args []string) string {
	if len(args) > 0 {
		return args[0]
	}
	return "."
}

func newVersionCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the flowgraph version",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.emit(map[string]string{"version": flowgraph.ServiceVersion}, func(w io.Writer) {
				fmt.Fprintf(w, "flowgraph %s\n", flowgraph.ServiceVersion)
			})
		},
	}
}
