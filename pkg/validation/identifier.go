// Copyright (C) 2025 Clearspan Analytics (engineering@clearspan.io)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package validation provides input validation for externally supplied
// schedule identifiers.
//
// Task codes and snapshot ids arrive from schedule export files and API
// requests, and end up in log lines, archive keys, and file paths. These
// validators reject anything outside the identifier alphabet so a hostile
// export cannot smuggle path traversal or key-delimiter characters through.
package validation

import (
	"fmt"
	"regexp"
)

// taskCodePattern matches valid activity codes.
// Allows: letters, digits, dots, hyphens, underscores (A1010, MS-100, FDN.02)
// Max length: 40 characters (P6 activity ids are capped at 40).
var taskCodePattern = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9._\-]{0,39}$`)

// snapshotIDPattern matches valid snapshot identifiers.
// Allows the same alphabet as task codes, up to 64 characters
// ("2024-03-UPDATE", "BL-2023-12").
var snapshotIDPattern = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9._\-]{0,63}$`)

// ValidateTaskCode validates an activity code from an export or request.
//
// Valid codes:
//   - 1-40 characters
//   - Letters, digits, dots, hyphens, underscores
//   - Must start with a letter or digit
//
// Returns an error if the code is invalid.
func ValidateTaskCode(code string) error {
	if code == "" {
		return fmt.Errorf("task code cannot be empty")
	}
	if !taskCodePattern.MatchString(code) {
		return fmt.Errorf("invalid task code %q (must be 1-40 alphanumeric chars, dots, hyphens, or underscores)", code)
	}
	return nil
}

// ValidateSnapshotID validates a snapshot identifier.
func ValidateSnapshotID(id string) error {
	if id == "" {
		return fmt.Errorf("snapshot id cannot be empty")
	}
	if !snapshotIDPattern.MatchString(id) {
		return fmt.Errorf("invalid snapshot id %q (must be 1-64 alphanumeric chars, dots, hyphens, or underscores)", id)
	}
	return nil
}
