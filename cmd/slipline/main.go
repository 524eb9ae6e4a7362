// Copyright (C) 2025 Clearspan Analytics (engineering@clearspan.io)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Command slipline compares CPM schedule snapshots and attributes the
// delay between them.
//
// Usage:
//
//	slipline compare PREV_ID CURR_ID --snapshots ./exports
//	slipline period 2025 6 --snapshots ./exports
//	slipline snapshots --snapshots ./exports
//	slipline serve --snapshots ./exports --port 8080 --watch
//
// Snapshot exports are JSON files (one snapshot per file) in the
// directory given by --snapshots. See the project README for the export
// format.
package main

func main() {
	Execute()
}
