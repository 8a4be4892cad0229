package repositories

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/desertthunder/bookx/internal/models"
	"github.com/desertthunder/bookx/internal/shared"
)

// BookRepository stores the last synced snapshot of each list.
type BookRepository struct {
	db *sql.DB
}

// NewBookRepository creates a new BookRepository with the given database connection
func NewBookRepository(db *sql.DB) *BookRepository {
	return &BookRepository{db: db}
}

// ReplaceList swaps the cached snapshot of listType for books in one transaction.
func (r *BookRepository) ReplaceList(listType models.ListType, books []models.Book) error {
	for i, b := range books {
		if err := b.Validate(); err != nil {
			return fmt.Errorf("book %d: validation failed: %w", i, err)
		}
	}

	now := time.Now().UTC()
	return withTx(r.db, func(tx *sql.Tx) error {
		if _, err := tx.Exec(`DELETE FROM books WHERE list_type = ?`, listType); err != nil {
			return fmt.Errorf("failed to clear list: %w", err)
		}

		stmt, err := tx.Prepare(`
			INSERT INTO books (id, list_type, position, isbn, title, author, publisher, cover_url, added_at, synced_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		`)
		if err != nil {
			return fmt.Errorf("failed to prepare insert: %w", err)
		}
		defer stmt.Close()

		for i, b := range books {
			position := b.Position
			if position == 0 {
				position = i + 1
			}
			_, err := stmt.Exec(
				shared.GenerateID(),
				listType,
				position,
				b.ISBN,
				b.Title,
				b.Author,
				b.Publisher,
				b.CoverURL,
				formatTime(b.AddedAt),
				now,
			)
			if err != nil {
				return fmt.Errorf("failed to insert book: %w", err)
			}
		}
		return nil
	})
}

// List returns the cached snapshot of listType in list order.
func (r *BookRepository) List(listType models.ListType) ([]models.Book, error) {
	query := `
		SELECT position, isbn, title, author, publisher, cover_url, added_at
		FROM books
		WHERE list_type = ?
		ORDER BY position ASC
	`

	rows, err := r.db.Query(query, listType)
	if err != nil {
		return nil, fmt.Errorf("failed to query books: %w", err)
	}
	defer rows.Close()

	var books []models.Book
	for rows.Next() {
		var (
			b       models.Book
			addedAt string
		)
		if err := rows.Scan(&b.Position, &b.ISBN, &b.Title, &b.Author, &b.Publisher, &b.CoverURL, &addedAt); err != nil {
			return nil, fmt.Errorf("failed to scan book: %w", err)
		}
		b.AddedAt = parseTime(addedAt)
		books = append(books, b)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}

	return books, nil
}

// Count returns how many books are cached for listType.
func (r *BookRepository) Count(listType models.ListType) (int, error) {
	var n int
	if err := r.db.QueryRow(`SELECT COUNT(*) FROM books WHERE list_type = ?`, listType).Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count books: %w", err)
	}
	return n, nil
}

// SyncedAt returns when listType was last replaced, or the zero time if it never was.
func (r *BookRepository) SyncedAt(listType models.ListType) (time.Time, error) {
	var syncedAt time.Time
	err := r.db.QueryRow(`
		SELECT synced_at FROM books
		WHERE list_type = ?
		ORDER BY synced_at DESC
		LIMIT 1
	`, listType).Scan(&syncedAt)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		return time.Time{}, nil
	case err != nil:
		return time.Time{}, fmt.Errorf("failed to read sync time: %w", err)
	}
	return syncedAt, nil
}
