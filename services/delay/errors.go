// Copyright (C) 2025 Clearspan Analytics (engineering@clearspan.io)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package delay

import "errors"

// Sentinel errors for the delay engine.
var (
	// ErrSnapshotMismatch indicates one of the snapshot task sets is
	// empty or the requested ids do not form a comparable pair. Fatal for
	// the comparison; no partial result is produced.
	ErrSnapshotMismatch = errors.New("snapshot mismatch")

	// ErrSameSnapshot indicates the previous and current ids are equal.
	ErrSameSnapshot = errors.New("previous and current snapshot ids are identical")

	// ErrNoStore indicates the service was constructed without a store.
	ErrNoStore = errors.New("no snapshot store configured")
)
