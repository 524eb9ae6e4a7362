// Copyright (C) 2025 Clearspan Analytics (engineering@clearspan.io)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package snapshot

import "errors"

// Sentinel errors for the snapshot store.
var (
	// ErrNotFound indicates the requested snapshot id is not registered.
	ErrNotFound = errors.New("snapshot not found")

	// ErrDuplicateID indicates a snapshot with the same id is already stored.
	ErrDuplicateID = errors.New("snapshot id already registered")

	// ErrPeriodNotBracketed indicates no snapshot pair brackets the
	// requested calendar period.
	ErrPeriodNotBracketed = errors.New("no snapshot pair brackets the requested period")

	// ErrMalformedExport indicates the export file failed schema validation.
	ErrMalformedExport = errors.New("malformed schedule export")
)
