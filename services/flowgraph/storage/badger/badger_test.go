// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package badger

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openTestDB(t *testing.T) *DB {
	t.Helper()
	db, err := OpenDB(InMemoryConfig())
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db
}

func TestOpenDB_Persistent(t *testing.T) {
	dir := t.TempDir()
	cfg := DefaultConfig()
	cfg.Path = dir
	cfg.GCInterval = 0

	db, err := OpenDB(cfg)
	require.NoError(t, err)
	assert.Equal(t, dir, db.Path())
	assert.False(t, db.InMemory())

	ctx := context.Background()
	require.NoError(t, db.WithTxn(ctx, func(txn *badger.Txn) error {
		return txn.Set([]byte("latest/prod"), []byte("snapshot/prod/1"))
	}))
	require.NoError(t, db.Close())
	require.NoError(t, db.Close())

	db2, err := OpenDB(cfg)
	require.NoError(t, err)
	defer db2.Close()

	require.NoError(t, db2.WithReadTxn(ctx, func(txn *badger.Txn) error {
		item, err := txn.Get([]byte("latest/prod"))
		require.NoError(t, err)
		return item.Value(func(val []byte) error {
			assert.Equal(t, "snapshot/prod/1", string(val))
			return nil
		})
	}))
}

func TestOpen_RequiresPath(t *testing.T) {
	_, err := Open(Config{})
	assert.ErrorIs(t, err, ErrPathRequired)
}

func TestConfigDefaults(t *testing.T) {
	cfg := DefaultConfig()
	assert.True(t, cfg.SyncWrites)
	assert.Equal(t, 5*time.Minute, cfg.GCInterval)

	mem := InMemoryConfig()
	assert.True(t, mem.InMemory)
	assert.Zero(t, mem.GCInterval)
}

func TestDB_WithTxnRollsBackOnError(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()
	boom := errors.New("boom")

	err := db.WithTxn(ctx, func(txn *badger.Txn) error {
		if err := txn.Set([]byte("k"), []byte("v")); err != nil {
			return err
		}
		return boom
	})
	assert.ErrorIs(t, err, boom)

	require.NoError(t, db.WithReadTxn(ctx, func(txn *badger.Txn) error {
		_, err := txn.Get([]byte("k"))
		assert.ErrorIs(t, err, badger.ErrKeyNotFound)
		return nil
	}))
}

func TestDB_CancelledContext(t *testing.T) {
	db := openTestDB(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	assert.ErrorIs(t, db.WithTxn(ctx, func(*badger.Txn) error { return nil }), context.Canceled)
	assert.ErrorIs(t, db.WithReadTxn(ctx, func(*badger.Txn) error { return nil }), context.Canceled)
}

func TestScanKeys(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()

	require.NoError(t, db.WithTxn(ctx, func(txn *badger.Txn) error {
		for _, k := range []string{"snapshot/prod/1", "snapshot/prod/2", "snapshot/prod/3", "snapshot/qa/1", "latest/prod"} {
			if err := txn.Set([]byte(k), []byte("x")); err != nil {
				return err
			}
		}
		return nil
	}))

	collect := func(reverse bool, limit int) []string {
		var out []string
		require.NoError(t, db.WithReadTxn(ctx, func(txn *badger.Txn) error {
			ScanKeys(txn, []byte("snapshot/prod/"), reverse, func(key []byte) bool {
				out = append(out, string(key))
				return len(out) < limit
			})
			return nil
		}))
		return out
	}

	assert.Equal(t, []string{"snapshot/prod/1", "snapshot/prod/2", "snapshot/prod/3"}, collect(false, 10))
	assert.Equal(t, []string{"snapshot/prod/3", "snapshot/prod/2"}, collect(true, 2))
}

func TestGCRunner(t *testing.T) {
	db := openTestDB(t)

	_, err := NewGCRunner(nil, time.Second, 0.5, nil)
	assert.Error(t, err)
	_, err = NewGCRunner(db.DB, 0, 0.5, nil)
	assert.Error(t, err)
	_, err = NewGCRunner(db.DB, time.Second, 1.5, nil)
	assert.Error(t, err)

	runner, err := NewGCRunner(db.DB, 10*time.Millisecond, 0.5, nil)
	require.NoError(t, err)
	runner.Start()
	runner.Start()
	time.Sleep(30 * time.Millisecond)
	runner.Stop()
	runner.Stop()

	idle, err := NewGCRunner(db.DB, time.Second, 0.5, nil)
	require.NoError(t, err)
	idle.Stop()
}
