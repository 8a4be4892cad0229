// Package models defines the book records shared by the upstream client, the cache and the CLI.
//
//   - [Book] : one entry of a Calil list, ordered by Position
//   - [Bibliography] : NDL bibliographic record keyed by ISBN
//   - [ListType] : which Calil list a book belongs to
//
// Persisted entities implement [Model] and are stored through a [Repository].
package models
