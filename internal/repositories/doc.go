// Package repositories implements SQLite persistence for the local book cache.
//
// Key Implementations:
//   - [BookRepository] : last synced snapshot of each Calil list, replaced wholesale on sync
//   - [BibliographyRepository] : NDL records keyed by ISBN, implements [models.Repository]
//
// Schema lives in the embedded migrations run by [shared.RunMigrations].
package repositories
