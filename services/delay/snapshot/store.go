// Copyright (C) 2025 Clearspan Analytics (engineering@clearspan.io)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package snapshot

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"
)

// Info is a registry entry for one stored snapshot.
type Info struct {
	// ID is the snapshot identifier.
	ID string `json:"id"`

	// DataDate is the progress cut-off date of the export.
	DataDate time.Time `json:"data_date"`

	// TaskCount is the number of tasks in the export.
	TaskCount int `json:"task_count"`

	// EdgeCount is the number of predecessor rows in the export.
	EdgeCount int `json:"edge_count"`
}

// Store is the read surface the delay engine consumes snapshots through.
//
// Description:
//
//	The engine treats the snapshot store as an external collaborator: it
//	only reads fully loaded, immutable snapshots. MemoryStore is the
//	reference implementation backing the CLI, the API server, and tests;
//	production deployments may substitute a store backed by their own
//	schedule registry.
//
// Thread Safety: implementations must be safe for concurrent use.
type Store interface {
	// Get returns the snapshot with the given id, or ErrNotFound.
	Get(ctx context.Context, id string) (*Snapshot, error)

	// List returns registry entries for all stored snapshots, sorted by
	// data date ascending (ties broken by id).
	List(ctx context.Context) ([]Info, error)

	// ResolvePeriod returns the ids of the nearest snapshots bracketing
	// the given calendar month: the latest data date at or before the
	// first of the month, and the earliest at or after the first of the
	// following month. Returns ErrPeriodNotBracketed when either side is
	// missing.
	ResolvePeriod(ctx context.Context, year int, month time.Month) (prevID, currID string, err error)
}

// MemoryStore is an in-memory Store with registration.
//
// Thread Safety: safe for concurrent use via RWMutex.
type MemoryStore struct {
	mu    sync.RWMutex
	snaps map[string]*Snapshot
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{snaps: make(map[string]*Snapshot)}
}

// Put registers a snapshot. Returns ErrDuplicateID if the id is taken.
func (m *MemoryStore) Put(ctx context.Context, s *Snapshot) error {
	if s == nil || s.ID == "" {
		return fmt.Errorf("%w: missing snapshot id", ErrMalformedExport)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.snaps[s.ID]; ok {
		return fmt.Errorf("%w: %s", ErrDuplicateID, s.ID)
	}
	m.snaps[s.ID] = s
	return nil
}

// Replace registers a snapshot, overwriting any existing entry with the
// same id. Used by the directory watcher when an export file is rewritten.
func (m *MemoryStore) Replace(ctx context.Context, s *Snapshot) error {
	if s == nil || s.ID == "" {
		return fmt.Errorf("%w: missing snapshot id", ErrMalformedExport)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.snaps[s.ID] = s
	return nil
}

// Get implements Store.
func (m *MemoryStore) Get(ctx context.Context, id string) (*Snapshot, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.snaps[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return s, nil
}

// List implements Store.
func (m *MemoryStore) List(ctx context.Context) ([]Info, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	infos := make([]Info, 0, len(m.snaps))
	for _, s := range m.snaps {
		infos = append(infos, Info{
			ID:        s.ID,
			DataDate:  s.DataDate,
			TaskCount: len(s.Tasks),
			EdgeCount: len(s.Edges),
		})
	}
	sort.Slice(infos, func(i, j int) bool {
		if !infos[i].DataDate.Equal(infos[j].DataDate) {
			return infos[i].DataDate.Before(infos[j].DataDate)
		}
		return infos[i].ID < infos[j].ID
	})
	return infos, nil
}

// ResolvePeriod implements Store.
func (m *MemoryStore) ResolvePeriod(ctx context.Context, year int, month time.Month) (string, string, error) {
	infos, err := m.List(ctx)
	if err != nil {
		return "", "", err
	}

	monthStart := time.Date(year, month, 1, 0, 0, 0, 0, time.UTC)
	nextMonth := monthStart.AddDate(0, 1, 0)

	var prevID, currID string
	for _, info := range infos {
		if !info.DataDate.After(monthStart) {
			prevID = info.ID // infos sorted ascending: keep latest
		}
		if currID == "" && !info.DataDate.Before(nextMonth) {
			currID = info.ID // first at or after the following month
		}
	}

	if prevID == "" || currID == "" || prevID == currID {
		return "", "", fmt.Errorf("%w: %04d-%02d", ErrPeriodNotBracketed, year, int(month))
	}
	return prevID, currID, nil
}

var _ Store = (*MemoryStore)(nil)
