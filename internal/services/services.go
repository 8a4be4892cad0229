// package services defines clients for the upstream HTTP APIs
//
// Calil (book lists, behind a browser login) and the National Diet Library (bibliographic data)
package services

import (
	"context"

	"github.com/desertthunder/bookx/internal/models"
)

// Lister reads Calil lists. Implemented by [ListFetcher].
type Lister interface {
	// Count returns the number of books in the list.
	Count(ctx context.Context, listType models.ListType) (int, error)

	// Page returns one page (1-based) of the list.
	Page(ctx context.Context, listType models.ListType, page int) ([]models.Book, error)

	// All walks every page. progress may be nil.
	All(ctx context.Context, listType models.ListType, progress func(fetched, total int)) ([]models.Book, error)

	// PageSize reports how many books one page holds.
	PageSize() int
}

// Catalogue looks books up by ISBN. Implemented by [NDLService].
type Catalogue interface {
	LookupISBN(ctx context.Context, isbn string) (*models.Bibliography, error)
}

// ThumbnailSource downloads cover thumbnails. Implemented by [NDLService].
type ThumbnailSource interface {
	Thumbnail(ctx context.Context, isbn string) ([]byte, error)
}

var (
	_ Lister          = (*ListFetcher)(nil)
	_ ListSource      = (*CalilService)(nil)
	_ Catalogue       = (*NDLService)(nil)
	_ ThumbnailSource = (*NDLService)(nil)
)
