package services

import (
	"context"
	"fmt"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/bookx/internal/models"
	"github.com/desertthunder/bookx/internal/session"
	"github.com/desertthunder/bookx/internal/shared"
)

// ListSource is the upstream list API. Implemented by [CalilService].
type ListSource interface {
	ListMeta(ctx context.Context, creds session.Credentials, listType models.ListType) (int, error)
	ListPage(ctx context.Context, creds session.Credentials, listType models.ListType, page int) ([]models.Book, error)
	PageSize() int
}

// ListFetcher reads Calil lists. Every request goes through the [session.Retrier].
type ListFetcher struct {
	src     ListSource
	retrier *session.Retrier
	logger  *log.Logger
}

func NewListFetcher(src ListSource, retrier *session.Retrier, logger *log.Logger) *ListFetcher {
	return &ListFetcher{src: src, retrier: retrier, logger: shared.WithLogger(logger, "component", "lists")}
}

// PageSize reports how many books one page holds.
func (f *ListFetcher) PageSize() int {
	return f.src.PageSize()
}

// Count returns the number of books in the list.
func (f *ListFetcher) Count(ctx context.Context, listType models.ListType) (int, error) {
	return session.Do(ctx, f.retrier, func(ctx context.Context, creds session.Credentials) (int, error) {
		return f.src.ListMeta(ctx, creds, listType)
	})
}

// Page returns one page (1-based) of the list.
func (f *ListFetcher) Page(ctx context.Context, listType models.ListType, page int) ([]models.Book, error) {
	if page < 1 {
		return nil, fmt.Errorf("%w: page must be at least 1, got %d", shared.ErrInvalidArgument, page)
	}
	return session.Do(ctx, f.retrier, func(ctx context.Context, creds session.Credentials) ([]models.Book, error) {
		return f.src.ListPage(ctx, creds, listType, page)
	})
}

// All walks every page of the list. progress, when set, is called after each page with the books fetched so far.
func (f *ListFetcher) All(ctx context.Context, listType models.ListType, progress func(fetched, total int)) ([]models.Book, error) {
	total, err := f.Count(ctx, listType)
	if err != nil {
		return nil, err
	}

	size := f.src.PageSize()
	pages := (total + size - 1) / size
	books := make([]models.Book, 0, total)

	for page := 1; page <= pages; page++ {
		batch, err := f.Page(ctx, listType, page)
		if err != nil {
			return nil, fmt.Errorf("page %d of %d: %w", page, pages, err)
		}
		books = append(books, batch...)
		if progress != nil {
			progress(len(books), total)
		}
		if len(batch) < size {
			break
		}
	}

	f.logger.Debug("fetched list", "list", listType, "books", len(books), "total", total)
	return books, nil
}
