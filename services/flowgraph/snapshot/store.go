// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package snapshot stores runtime graph snapshots per environment.
//
// A snapshot is an immutable copy of a runtime graph taken at a point in
// time. The newest snapshot of an environment can stand in for the live
// environment: Store implements runtime.Source.
//
// # Key Layout
//
//	snapshot/<env>/<unixmilli>-<uuid>  → record (meta + graph document)
//	latest/<env>                       → id of the newest snapshot
//
// Millisecond timestamps are zero-padded so keys sort chronologically.
package snapshot

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/google/uuid"

	"github.com/AleutianAI/flowgraph/services/flowgraph/graph"
	"github.com/AleutianAI/flowgraph/services/flowgraph/runtime"
	fgbadger "github.com/AleutianAI/flowgraph/services/flowgraph/storage/badger"
)

var (
	// ErrNotFound is returned when a snapshot does not exist.
	ErrNotFound = errors.New("snapshot not found")

	// ErrInvalidEnvironment is returned for empty environment names or
	// names containing '/'.
	ErrInvalidEnvironment = errors.New("invalid environment name")
)

const (
	snapshotPrefix = "snapshot/"
	latestPrefix   = "latest/"
)

// Meta describes a stored snapshot.
type Meta struct {
	ID             string `json:"id"`
	Environment    string `json:"environment"`
	CreatedAtMilli int64  `json:"createdAtMilli"`
	NodeCount      int    `json:"nodeCount"`
	EdgeCount      int    `json:"edgeCount"`
	Note           string `json:"note,omitempty"`
}

// Snapshot is a stored graph with its metadata.
type Snapshot struct {
	Meta
	Graph *graph.Graph `json:"graph"`
}

type record struct {
	Meta  Meta            `json:"meta"`
	Graph json.RawMessage `json:"graph"`
}

// Store persists snapshots in BadgerDB.
//
// Thread Safety:
//
//	Safe for concurrent use. Each operation runs in its own transaction.
type Store struct {
	db     *fgbadger.DB
	logger *slog.Logger
	now    func() time.Time
}

// StoreOption configures a Store.
type StoreOption func(*Store)

// WithLogger sets the store logger.
func WithLogger(l *slog.Logger) StoreOption {
	return func(s *Store) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithClock overrides the time source.
func WithClock(now func() time.Time) StoreOption {
	return func(s *Store) {
		if now != nil {
			s.now = now
		}
	}
}

// NewStore wraps an open database. The caller keeps ownership of db.
func NewStore(db *fgbadger.DB, opts ...StoreOption) *Store {
	s := &Store{
		db:     db,
		logger: slog.Default(),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	s.logger = s.logger.With(slog.String("component", "snapshot_store"))
	return s
}

var _ runtime.Source = (*Store)(nil)

func validEnvironment(env string) error {
	if strings.TrimSpace(env) == "" || strings.Contains(env, "/") {
		return fmt.Errorf("%w: %q", ErrInvalidEnvironment, env)
	}
	return nil
}

func snapshotKey(env, id string) []byte {
	return []byte(snapshotPrefix + env + "/" + id)
}

func latestKey(env string) []byte {
	return []byte(latestPrefix + env)
}

// Save stores g as the newest snapshot of env.
//
// Outputs:
//
//	Meta - The stored snapshot's metadata.
//	error - ErrInvalidEnvironment, an encoding error or a storage error.
func (s *Store) Save(ctx context.Context, env string, g *graph.Graph, note string) (Meta, error) {
	if err := validEnvironment(env); err != nil {
		return Meta{}, err
	}

	created := s.now().UnixMilli()
	meta := Meta{
		ID:             fmt.Sprintf("%013d-%s", created, uuid.NewString()),
		Environment:    env,
		CreatedAtMilli: created,
		NodeCount:      g.NodeCount(),
		EdgeCount:      g.EdgeCount(),
		Note:           note,
	}

	doc, err := json.Marshal(g)
	if err != nil {
		return Meta{}, fmt.Errorf("encode graph: %w", err)
	}
	value, err := json.Marshal(record{Meta: meta, Graph: doc})
	if err != nil {
		return Meta{}, fmt.Errorf("encode snapshot: %w", err)
	}

	err = s.db.WithTxn(ctx, func(txn *badger.Txn) error {
		if err := txn.Set(snapshotKey(env, meta.ID), value); err != nil {
			return err
		}
		return txn.Set(latestKey(env), []byte(meta.ID))
	})
	if err != nil {
		return Meta{}, fmt.Errorf("save snapshot: %w", err)
	}

	s.logger.Info("snapshot saved",
		slog.String("environment", env),
		slog.String("snapshot_id", meta.ID),
		slog.Int("nodes", meta.NodeCount),
	)
	return meta, nil
}

// Get loads one snapshot.
func (s *Store) Get(ctx context.Context, env, id string) (*Snapshot, error) {
	if err := validEnvironment(env); err != nil {
		return nil, err
	}
	var rec record
	err := s.db.WithReadTxn(ctx, func(txn *badger.Txn) error {
		return readRecord(txn, snapshotKey(env, id), &rec)
	})
	if err != nil {
		return nil, err
	}
	return decode(rec)
}

// Latest loads the newest snapshot of env.
func (s *Store) Latest(ctx context.Context, env string) (*Snapshot, error) {
	if err := validEnvironment(env); err != nil {
		return nil, err
	}
	var rec record
	err := s.db.WithReadTxn(ctx, func(txn *badger.Txn) error {
		id, err := latestID(txn, env)
		if err != nil {
			return err
		}
		return readRecord(txn, snapshotKey(env, id), &rec)
	})
	if err != nil {
		return nil, err
	}
	return decode(rec)
}

// List returns snapshot metadata of env, newest first. limit <= 0 means
// all.
func (s *Store) List(ctx context.Context, env string, limit int) ([]Meta, error) {
	if err := validEnvironment(env); err != nil {
		return nil, err
	}
	out := make([]Meta, 0)
	err := s.db.WithReadTxn(ctx, func(txn *badger.Txn) error {
		var keys [][]byte
		fgbadger.ScanKeys(txn, []byte(snapshotPrefix+env+"/"), true, func(key []byte) bool {
			keys = append(keys, key)
			return limit <= 0 || len(keys) < limit
		})
		for _, key := range keys {
			var rec record
			if err := readRecord(txn, key, &rec); err != nil {
				return err
			}
			out = append(out, rec.Meta)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// Delete removes a snapshot. If it was the newest, the latest pointer
// moves to the next newest, or is removed when none is left.
func (s *Store) Delete(ctx context.Context, env, id string) error {
	if err := validEnvironment(env); err != nil {
		return err
	}
	err := s.db.WithTxn(ctx, func(txn *badger.Txn) error {
		key := snapshotKey(env, id)
		if _, err := txn.Get(key); err != nil {
			if errors.Is(err, badger.ErrKeyNotFound) {
				return fmt.Errorf("%w: %s/%s", ErrNotFound, env, id)
			}
			return err
		}
		if err := txn.Delete(key); err != nil {
			return err
		}

		current, err := latestID(txn, env)
		if err != nil && !errors.Is(err, ErrNotFound) {
			return err
		}
		if current != id {
			return nil
		}

		var next string
		prefix := []byte(snapshotPrefix + env + "/")
		fgbadger.ScanKeys(txn, prefix, true, func(k []byte) bool {
			candidate := strings.TrimPrefix(string(k), string(prefix))
			if candidate == id {
				return true
			}
			next = candidate
			return false
		})
		if next == "" {
			return txn.Delete(latestKey(env))
		}
		return txn.Set(latestKey(env), []byte(next))
	})
	if err != nil {
		return err
	}

	s.logger.Info("snapshot deleted",
		slog.String("environment", env),
		slog.String("snapshot_id", id),
	)
	return nil
}

// FetchGraph returns the newest snapshot's graph, narrowed to domain and
// opts.Types.
func (s *Store) FetchGraph(ctx context.Context, environment, domain string, opts runtime.FetchOptions) (*graph.Graph, error) {
	snap, err := s.Latest(ctx, environment)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, fmt.Errorf("%w: %s", runtime.ErrNoRuntimeGraph, environment)
		}
		return nil, err
	}

	g := runtime.FilterDomain(snap.Graph, domain)
	if len(opts.Types) > 0 {
		allowed := make(map[graph.ComponentType]bool, len(opts.Types))
		for _, t := range opts.Types {
			allowed[t] = true
		}
		g = g.Filter(func(n *graph.Node) bool { return allowed[n.Type] })
	}
	return g, nil
}

// TestConnection reports whether env has any snapshot.
func (s *Store) TestConnection(ctx context.Context, environment string) (bool, error) {
	if err := validEnvironment(environment); err != nil {
		return false, err
	}
	found := false
	err := s.db.WithReadTxn(ctx, func(txn *badger.Txn) error {
		_, err := latestID(txn, environment)
		if errors.Is(err, ErrNotFound) {
			return nil
		}
		found = err == nil
		return err
	})
	return found, err
}

func latestID(txn *badger.Txn, env string) (string, error) {
	item, err := txn.Get(latestKey(env))
	if err != nil {
		if errors.Is(err, badger.ErrKeyNotFound) {
			return "", fmt.Errorf("%w: no snapshot for %s", ErrNotFound, env)
		}
		return "", err
	}
	v, err := item.ValueCopy(nil)
	if err != nil {
		return "", err
	}
	return string(v), nil
}

func readRecord(txn *badger.Txn, key []byte, rec *record) error {
	item, err := txn.Get(key)
	if err != nil {
		if errors.Is(err, badger.ErrKeyNotFound) {
			return fmt.Errorf("%w: %s", ErrNotFound, strings.TrimPrefix(string(key), snapshotPrefix))
		}
		return err
	}
	return item.Value(func(val []byte) error {
		if err := json.Unmarshal(val, rec); err != nil {
			return fmt.Errorf("decode snapshot %s: %w", key, err)
		}
		return nil
	})
}

func decode(rec record) (*Snapshot, error) {
	g := new(graph.Graph)
	if err := json.Unmarshal(rec.Graph, g); err != nil {
		return nil, fmt.Errorf("decode graph of %s: %w", rec.Meta.ID, err)
	}
	return &Snapshot{Meta: rec.Meta, Graph: g}, nil
}
