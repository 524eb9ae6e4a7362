// Copyright (C) 2025 Clearspan Analytics (engineering@clearspan.io)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package validation

import (
	"strings"
	"testing"
)

func TestValidateTaskCode(t *testing.T) {
	tests := []struct {
		name    string
		code    string
		wantErr bool
	}{
		// Valid codes
		{"simple", "A1010", false},
		{"single char", "A", false},
		{"single digit", "7", false},
		{"milestone hyphen", "MS-100", false},
		{"wbs dots", "FDN.02.A", false},
		{"underscore", "STL_ERECT_2", false},
		{"lowercase", "a1010", false},
		{"max length", strings.Repeat("A", 40), false},

		// Invalid codes - injection attempts
		{"empty", "", true},
		{"path traversal", "../etc/passwd", true},
		{"key delimiter", "A1010|B1020", true},
		{"sql injection", "A'; DROP TABLE--", true},
		{"newline", "A1010\nB1020", true},
		{"spaces", "A 1010", true},
		{"starts with dot", ".A1010", true},
		{"starts with hyphen", "-A1010", true},
		{"too long", strings.Repeat("A", 41), true},
		{"unicode", "A1010™", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateTaskCode(tt.code)
			if (err != nil) != tt.wantErr {
				t.Errorf("ValidateTaskCode(%q) error = %v, wantErr %v", tt.code, err, tt.wantErr)
			}
		})
	}
}

func TestValidateSnapshotID(t *testing.T) {
	tests := []struct {
		name    string
		id      string
		wantErr bool
	}{
		{"monthly update", "2024-03-UPDATE", false},
		{"baseline", "BL-2023-12", false},
		{"plain date", "2024-03-31", false},
		{"max length", strings.Repeat("x", 64), false},

		{"empty", "", true},
		{"too long", strings.Repeat("x", 65), true},
		{"slash", "2024/03", true},
		{"starts with underscore", "_2024", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateSnapshotID(tt.id)
			if (err != nil) != tt.wantErr {
				t.Errorf("ValidateSnapshotID(%q) error = %v, wantErr %v", tt.id, err, tt.wantErr)
			}
		})
	}
}
