// package models defines the data model for the book list cache
package models

import (
	"fmt"
	"strings"
	"time"

	"github.com/desertthunder/bookx/internal/shared"
)

// Model defines the base interface for persisted records.
type Model interface {
	Key() string    // Key returns the identifier the record is stored under
	Validate() error // Validate checks the record before it is written
}

// Repository defines keyed read/write access for one model type.
type Repository[T Model] interface {
	Get(key string) (T, error)
	Put(model T) error
}

// ListType names a Calil book list.
type ListType string

const (
	ListWish ListType = "wish" // want to read
	ListRead ListType = "read"
)

// ListTypes returns every supported list in display order.
func ListTypes() []ListType {
	return []ListType{ListWish, ListRead}
}

// ParseListType validates a list name.
func ParseListType(s string) (ListType, error) {
	switch lt := ListType(strings.ToLower(strings.TrimSpace(s))); lt {
	case ListWish, ListRead:
		return lt, nil
	default:
		return "", fmt.Errorf("%w: %q (expected wish or read)", shared.ErrInvalidListType, s)
	}
}

// Label returns a human readable list name.
func (l ListType) Label() string {
	switch l {
	case ListWish:
		return "Want to read"
	case ListRead:
		return "Read"
	default:
		return string(l)
	}
}

// Book is one entry of a Calil list.
type Book struct {
	ISBN      string    `json:"isbn"`
	Title     string    `json:"title"`
	Author    string    `json:"author"`
	Publisher string    `json:"publisher"`
	CoverURL  string    `json:"cover_url,omitempty"`
	AddedAt   time.Time `json:"added_at,omitzero"`
	Position  int       `json:"position"`
}

// Key implements [Model]. Books are keyed by ISBN within a list.
func (b Book) Key() string {
	return b.ISBN
}

// Validate implements [Model].
func (b Book) Validate() error {
	if strings.TrimSpace(b.Title) == "" && b.ISBN == "" {
		return fmt.Errorf("%w: book needs a title or an ISBN", shared.ErrInvalidInput)
	}
	return nil
}

// Bibliography is the NDL record for one ISBN.
type Bibliography struct {
	ISBN      string    `json:"isbn"`
	Title     string    `json:"title"`
	Creator   string    `json:"creator"`
	Publisher string    `json:"publisher"`
	Issued    string    `json:"issued"`
	Subjects  []string  `json:"subjects,omitempty"`
	Link      string    `json:"link"`
	FetchedAt time.Time `json:"fetched_at,omitzero"`
}

// Key implements [Model].
func (b Bibliography) Key() string {
	return b.ISBN
}

// Validate implements [Model].
func (b Bibliography) Validate() error {
	if shared.NormalizeISBN(b.ISBN) == "" {
		return fmt.Errorf("%w: isbn %q", shared.ErrInvalidInput, b.ISBN)
	}
	return nil
}
