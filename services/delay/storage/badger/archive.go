// Copyright (C) 2025 Clearspan Analytics (engineering@clearspan.io)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package badger

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/dgraph-io/badger/v4"

	"github.com/clearspan/slipline/services/delay"
)

// ErrRunNotFound indicates no archived result exists for the run id.
var ErrRunNotFound = errors.New("archived run not found")

const runKeyPrefix = "run/"

// Archive persists analysis results keyed by run id. Implements
// delay.ResultArchive.
//
// Thread Safety:
//
//	Safe for concurrent use; BadgerDB transactions provide isolation.
type Archive struct {
	db  *badger.DB
	cfg Config

	stopOnce sync.Once
	stopCh   chan struct{}
	doneCh   chan struct{}
}

var _ delay.ResultArchive = (*Archive)(nil)

// NewArchive opens the archive database and, for persistent archives,
// starts periodic value log garbage collection.
func NewArchive(cfg Config) (*Archive, error) {
	db, err := open(cfg)
	if err != nil {
		return nil, err
	}

	a := &Archive{
		db:     db,
		cfg:    cfg,
		stopCh: make(chan struct{}),
		doneCh: make(chan struct{}),
	}
	if cfg.GCInterval > 0 && !cfg.InMemory {
		go a.gcLoop()
	} else {
		close(a.doneCh)
	}
	return a, nil
}

// Save stores a completed analysis. Overwrites any prior result with the
// same run id.
func (a *Archive) Save(ctx context.Context, result *delay.AnalysisResult) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if result == nil || result.RunID == "" {
		return errors.New("result must have a run id")
	}

	data, err := json.Marshal(result)
	if err != nil {
		return fmt.Errorf("marshal result %s: %w", result.RunID, err)
	}

	return a.db.Update(func(txn *badger.Txn) error {
		return txn.Set([]byte(runKeyPrefix+result.RunID), data)
	})
}

// Load retrieves an archived analysis by run id.
func (a *Archive) Load(ctx context.Context, runID string) (*delay.AnalysisResult, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var result delay.AnalysisResult
	err := a.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(runKeyPrefix + runID))
		if errors.Is(err, badger.ErrKeyNotFound) {
			return fmt.Errorf("%w: %s", ErrRunNotFound, runID)
		}
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			return json.Unmarshal(val, &result)
		})
	})
	if err != nil {
		return nil, err
	}
	return &result, nil
}

// List returns all archived run ids, sorted.
func (a *Archive) List(ctx context.Context) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var ids []string
	err := a.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false
		opts.Prefix = []byte(runKeyPrefix)

		it := txn.NewIterator(opts)
		defer it.Close()
		for it.Rewind(); it.Valid(); it.Next() {
			ids = append(ids, string(it.Item().Key()[len(runKeyPrefix):]))
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	sort.Strings(ids)
	return ids, nil
}

// Close stops garbage collection and closes the database. Safe to call
// multiple times.
func (a *Archive) Close() error {
	a.stopOnce.Do(func() { close(a.stopCh) })
	<-a.doneCh
	return a.db.Close()
}

func (a *Archive) gcLoop() {
	defer close(a.doneCh)

	ticker := time.NewTicker(a.cfg.GCInterval)
	defer ticker.Stop()

	for {
		select {
		case <-a.stopCh:
			return
		case <-ticker.C:
			// ErrNoRewrite means nothing to collect, not a failure.
			err := a.db.RunValueLogGC(a.cfg.GCDiscardRatio)
			if err != nil && !errors.Is(err, badger.ErrNoRewrite) {
				slog.Warn("archive value log GC error", slog.Any("error", err))
			}
		}
	}
}
