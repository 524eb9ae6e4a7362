// Copyright (C) 2025 Clearspan Analytics (engineering@clearspan.io)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package snapshot

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func storeWith(t *testing.T, dates map[string]time.Time) *MemoryStore {
	t.Helper()
	store := NewMemoryStore()
	for id, dd := range dates {
		snap := New(id, dd, []Task{testTask("A", 0, 1, 0)}, nil)
		require.NoError(t, store.Put(context.Background(), snap))
	}
	return store
}

func TestMemoryStorePutGet(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()

	snap := New("2025-05-31", day(30), []Task{testTask("A", 0, 1, 0)}, nil)
	require.NoError(t, store.Put(ctx, snap))

	got, err := store.Get(ctx, "2025-05-31")
	require.NoError(t, err)
	assert.Same(t, snap, got)

	_, err = store.Get(ctx, "missing")
	assert.ErrorIs(t, err, ErrNotFound)

	err = store.Put(ctx, New("2025-05-31", day(30), []Task{testTask("A", 0, 1, 0)}, nil))
	assert.ErrorIs(t, err, ErrDuplicateID)

	// Replace overwrites without complaint.
	replacement := New("2025-05-31", day(31), []Task{testTask("A", 0, 2, 0)}, nil)
	require.NoError(t, store.Replace(ctx, replacement))
	got, err = store.Get(ctx, "2025-05-31")
	require.NoError(t, err)
	assert.Same(t, replacement, got)
}

func TestMemoryStoreListSorted(t *testing.T) {
	ctx := context.Background()
	store := storeWith(t, map[string]time.Time{
		"C": time.Date(2025, 7, 1, 0, 0, 0, 0, time.UTC),
		"A": time.Date(2025, 5, 1, 0, 0, 0, 0, time.UTC),
		"B": time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC),
	})

	infos, err := store.List(ctx)
	require.NoError(t, err)
	require.Len(t, infos, 3)
	assert.Equal(t, "A", infos[0].ID)
	assert.Equal(t, "B", infos[1].ID)
	assert.Equal(t, "C", infos[2].ID)
	assert.Equal(t, 1, infos[0].TaskCount)
}

func TestMemoryStoreResolvePeriod(t *testing.T) {
	ctx := context.Background()
	store := storeWith(t, map[string]time.Time{
		"2025-04-30": time.Date(2025, 4, 30, 0, 0, 0, 0, time.UTC),
		"2025-05-31": time.Date(2025, 5, 31, 0, 0, 0, 0, time.UTC),
		"2025-07-02": time.Date(2025, 7, 2, 0, 0, 0, 0, time.UTC),
	})

	// June 2025: prev = latest at or before Jun 1, curr = earliest at or
	// after Jul 1.
	prevID, currID, err := store.ResolvePeriod(ctx, 2025, time.June)
	require.NoError(t, err)
	assert.Equal(t, "2025-05-31", prevID)
	assert.Equal(t, "2025-07-02", currID)

	// No snapshot after August.
	_, _, err = store.ResolvePeriod(ctx, 2025, time.August)
	assert.ErrorIs(t, err, ErrPeriodNotBracketed)

	// Nothing at or before January.
	_, _, err = store.ResolvePeriod(ctx, 2025, time.January)
	assert.ErrorIs(t, err, ErrPeriodNotBracketed)
}

func TestMemoryStoreResolvePeriodSameSnapshot(t *testing.T) {
	// A single snapshot cannot bracket a period even if its date would
	// qualify for both sides.
	store := storeWith(t, map[string]time.Time{
		"ONLY": time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC),
	})
	_, _, err := store.ResolvePeriod(context.Background(), 2025, time.June)
	assert.ErrorIs(t, err, ErrPeriodNotBracketed)
}
