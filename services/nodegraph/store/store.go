// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/AleutianAI/objectnodes/services/nodegraph/backend"
	"github.com/AleutianAI/objectnodes/services/nodegraph/compiler"
)

const keyPrefix = "graph:"

var (
	// ErrNotFound is returned when no graph is stored under a hash.
	ErrNotFound = errors.New("graph not found")

	// ErrInvalidRecord is returned when a record cannot be stored.
	ErrInvalidRecord = errors.New("invalid graph record")
)

var (
	storeOps = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "nodegraph_store_operations_total",
		Help: "Graph store operations by operation and result",
	}, []string{"operation", "result"})

	storeRecordBytes = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "nodegraph_store_record_bytes",
		Help:    "Size of stored graph records in bytes",
		Buckets: prometheus.ExponentialBuckets(256, 4, 8),
	})
)

// Record is a compiled graph as stored.
type Record struct {
	Hash       string            `json:"hash"`
	Main       string            `json:"main"`
	SessionID  string            `json:"session_id"`
	CompiledAt time.Time         `json:"compiled_at"`
	Stats      compiler.Stats    `json:"stats"`
	Snapshot   *backend.Snapshot `json:"snapshot"`
}

// RecordFromResult builds a record from a successful compile.
func RecordFromResult(r *compiler.Result) *Record {
	return &Record{
		Hash:       r.TreeHash,
		Main:       r.Main,
		SessionID:  r.SessionID,
		CompiledAt: time.Now().UTC(),
		Stats:      r.Stats,
		Snapshot:   r.Snapshot,
	}
}

// Store persists compiled graphs.
//
// Thread Safety: Safe for concurrent use.
type Store struct {
	db     *badger.DB
	gc     *gcRunner
	ttl    time.Duration
	logger *slog.Logger
}

// Open opens a store.
//
// Description:
//
//	Opens BadgerDB at cfg.Path, or in memory, and starts value log GC when
//	cfg.GCInterval is set on a persistent store.
//
// Outputs:
//
//	*Store - The opened store. Caller must call Close().
//	error - Non-nil if the database cannot be opened.
func Open(cfg Config) (*Store, error) {
	db, err := openBadger(cfg)
	if err != nil {
		return nil, err
	}

	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	s := &Store{db: db, ttl: cfg.TTL, logger: logger}

	if cfg.GCInterval > 0 && !cfg.InMemory {
		runner, err := newGCRunner(db, cfg.GCInterval, cfg.GCDiscardRatio, logger)
		if err != nil {
			db.Close()
			return nil, fmt.Errorf("create GC runner: %w", err)
		}
		s.gc = runner
		runner.start()
	}
	return s, nil
}

// Close stops GC and closes the database.
func (s *Store) Close() error {
	if s.gc != nil {
		s.gc.stop()
	}
	return s.db.Close()
}

// Put stores a record under its hash, replacing any previous one.
func (s *Store) Put(ctx context.Context, rec *Record) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("context cancelled: %w", err)
	}
	if rec == nil || rec.Hash == "" {
		observe("put", ErrInvalidRecord)
		return fmt.Errorf("%w: missing hash", ErrInvalidRecord)
	}

	data, err := json.Marshal(rec)
	if err != nil {
		observe("put", err)
		return fmt.Errorf("encode graph record: %w", err)
	}

	err = s.db.Update(func(txn *badger.Txn) error {
		entry := badger.NewEntry(key(rec.Hash), data)
		if s.ttl > 0 {
			entry = entry.WithTTL(s.ttl)
		}
		return txn.SetEntry(entry)
	})
	observe("put", err)
	if err != nil {
		return fmt.Errorf("store graph %s: %w", rec.Hash, err)
	}

	storeRecordBytes.Observe(float64(len(data)))
	s.logger.Debug("graph stored",
		slog.String("hash", rec.Hash),
		slog.Int("bytes", len(data)),
	)
	return nil
}

// Get returns the record stored under hash.
func (s *Store) Get(ctx context.Context, hash string) (*Record, error) {
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("context cancelled: %w", err)
	}

	var rec Record
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(key(hash))
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			return json.Unmarshal(val, &rec)
		})
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		observe("get", nil)
		return nil, fmt.Errorf("%w: %s", ErrNotFound, hash)
	}
	observe("get", err)
	if err != nil {
		return nil, fmt.Errorf("load graph %s: %w", hash, err)
	}
	return &rec, nil
}

// Delete removes the record stored under hash.
func (s *Store) Delete(ctx context.Context, hash string) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("context cancelled: %w", err)
	}
	err := s.db.Update(func(txn *badger.Txn) error {
		if _, err := txn.Get(key(hash)); err != nil {
			return err
		}
		return txn.Delete(key(hash))
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		observe("delete", nil)
		return fmt.Errorf("%w: %s", ErrNotFound, hash)
	}
	observe("delete", err)
	return err
}

// List returns the stored hashes in key order.
func (s *Store) List(ctx context.Context) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("context cancelled: %w", err)
	}

	var hashes []string
	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false
		opts.Prefix = []byte(keyPrefix)
		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Rewind(); it.Valid(); it.Next() {
			hashes = append(hashes, strings.TrimPrefix(string(it.Item().Key()), keyPrefix))
		}
		return nil
	})
	observe("list", err)
	return hashes, err
}

func key(hash string) []byte {
	return []byte(keyPrefix + hash)
}

func observe(op string, err error) {
	result := "ok"
	if err != nil {
		result = "error"
	}
	storeOps.WithLabelValues(op, result).Inc()
}
