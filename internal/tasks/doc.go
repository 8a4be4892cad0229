// Package tasks runs the long book-list operations with real-time progress reporting.
//
// # Core Operations
//
// The [SyncEngine] interface defines two operations:
//
//  1. [SyncEngine.Sync] : Calil → local cache
//     - Fetches every page of a list through the session-aware fetcher
//     - Replaces the cached snapshot of that list
//     - Looks up bibliographic detail on NDL for books not seen before
//
//  2. [SyncEngine.Export] : local cache → files
//     - Reads cached lists and bibliographies
//     - Writes JSON, CSV, Markdown (with covers) or plain text per list
//     - Writes a manifest summarising the run
//
// # Progress Reporting
//
// The [ProgressUpdate] struct contains phase, step counters, messages, and optional data for advanced UI rendering.
// Updates use select with default so a slow reader never blocks an operation.
//
// # Implementation
//
// [BookEngine] implements [SyncEngine] with dependencies on:
//   - [services.Lister] : Calil list fetcher
//   - [services.Catalogue] : NDL lookups (optional)
//   - [BookStore] and [BibliographyStore] : the SQLite cache (repositories package)
//   - [CoverSource] : cover cache, used for Markdown exports (optional)
package tasks
