package repositories

import (
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/desertthunder/bookx/internal/models"
	"github.com/desertthunder/bookx/internal/shared"
)

// BibliographyRepository implements [models.Repository] for NDL records keyed by ISBN.
type BibliographyRepository struct {
	db *sql.DB
}

var _ models.Repository[models.Bibliography] = (*BibliographyRepository)(nil)

// NewBibliographyRepository creates a new BibliographyRepository with the given database connection
func NewBibliographyRepository(db *sql.DB) *BibliographyRepository {
	return &BibliographyRepository{db: db}
}

// Get returns the record for isbn, or [shared.ErrBookNotFound].
func (r *BibliographyRepository) Get(isbn string) (models.Bibliography, error) {
	query := `
		SELECT isbn, title, creator, publisher, issued, subjects, link, fetched_at
		FROM bibliographies
		WHERE isbn = ?
	`

	var (
		b        models.Bibliography
		subjects string
	)
	err := r.db.QueryRow(query, shared.NormalizeISBN(isbn)).Scan(
		&b.ISBN, &b.Title, &b.Creator, &b.Publisher, &b.Issued, &subjects, &b.Link, &b.FetchedAt,
	)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		return b, fmt.Errorf("%w: %s", shared.ErrBookNotFound, isbn)
	case err != nil:
		return b, fmt.Errorf("failed to get bibliography: %w", err)
	}

	if subjects != "" {
		b.Subjects = strings.Split(subjects, "\n")
	}
	return b, nil
}

// Put inserts or replaces the record for b.ISBN.
func (r *BibliographyRepository) Put(b models.Bibliography) error {
	if err := b.Validate(); err != nil {
		return fmt.Errorf("validation failed: %w", err)
	}
	if b.FetchedAt.IsZero() {
		b.FetchedAt = time.Now().UTC()
	}

	query := `
		INSERT INTO bibliographies (isbn, title, creator, publisher, issued, subjects, link, fetched_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (isbn) DO UPDATE SET
			title = excluded.title,
			creator = excluded.creator,
			publisher = excluded.publisher,
			issued = excluded.issued,
			subjects = excluded.subjects,
			link = excluded.link,
			fetched_at = excluded.fetched_at
	`

	_, err := r.db.Exec(query,
		shared.NormalizeISBN(b.ISBN),
		b.Title,
		b.Creator,
		b.Publisher,
		b.Issued,
		strings.Join(b.Subjects, "\n"),
		b.Link,
		b.FetchedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to save bibliography: %w", err)
	}
	return nil
}

// Missing returns the ISBNs from isbns that have no stored record, in input order without duplicates.
func (r *BibliographyRepository) Missing(isbns []string) ([]string, error) {
	seen := make(map[string]bool, len(isbns))
	var missing []string

	for _, raw := range isbns {
		isbn := shared.NormalizeISBN(raw)
		if isbn == "" || seen[isbn] {
			continue
		}
		seen[isbn] = true

		var exists int
		err := r.db.QueryRow(`SELECT 1 FROM bibliographies WHERE isbn = ?`, isbn).Scan(&exists)
		switch {
		case errors.Is(err, sql.ErrNoRows):
			missing = append(missing, isbn)
		case err != nil:
			return nil, fmt.Errorf("failed to check bibliography: %w", err)
		}
	}
	return missing, nil
}
