// package tasks implements the book-list sync and export operations.
//
// The core abstraction is SyncEngine, which pulls Calil lists into the local cache and writes exports from it.
// Operations emit progress updates via channels for non-blocking status reporting to CLI/UI layers.
package tasks

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/bookx/internal/models"
	"github.com/desertthunder/bookx/internal/services"
	"github.com/desertthunder/bookx/internal/shared"
)

// BookStore is the cached list snapshot. Implemented by repositories.BookRepository.
type BookStore interface {
	ReplaceList(listType models.ListType, books []models.Book) error
	List(listType models.ListType) ([]models.Book, error)
}

// BibliographyStore caches NDL lookups. Implemented by repositories.BibliographyRepository.
type BibliographyStore interface {
	models.Repository[models.Bibliography]
	Missing(isbns []string) ([]string, error)
}

// CoverSource resolves an ISBN to a local cover file. Implemented by covers.Cache.
type CoverSource interface {
	Path(ctx context.Context, isbn string) (string, error)
}

// EnrichFailure records a lookup that failed for a reason other than a missing record.
type EnrichFailure struct {
	ISBN  string
	Error error
}

// SyncResult contains the outcome of a single list sync.
type SyncResult struct {
	ListType models.ListType
	Books    []models.Book
	Enriched int             // bibliographies added to the cache
	NotFound []string        // ISBNs NDL has no record for
	Failed   []EnrichFailure // lookups that errored
	SyncedAt time.Time
}

// SyncEngine defines the long-running book-list operations.
type SyncEngine interface {
	// Sync fetches a whole list from Calil, replaces the cached snapshot and enriches new ISBNs.
	Sync(ctx context.Context, progress chan<- ProgressUpdate, listType models.ListType) (*SyncResult, error)

	// Export writes cached lists to disk in the requested format.
	Export(ctx context.Context, progress chan<- ProgressUpdate, listTypes []models.ListType, opts ExportOpts) (*ExportResult, error)
}

// BookEngine implements SyncEngine over the Calil fetcher and the local cache.
type BookEngine struct {
	lister    services.Lister
	catalogue services.Catalogue
	books     BookStore
	bibs      BibliographyStore
	covers    CoverSource
	logger    *log.Logger
	now       func() time.Time
}

// NewBookEngine creates a BookEngine. catalogue and covers may be nil, which disables enrichment and cover export.
func NewBookEngine(
	lister services.Lister,
	catalogue services.Catalogue,
	books BookStore,
	bibs BibliographyStore,
	covers CoverSource,
	logger *log.Logger,
) *BookEngine {
	return &BookEngine{
		lister:    lister,
		catalogue: catalogue,
		books:     books,
		bibs:      bibs,
		covers:    covers,
		logger:    shared.WithLogger(logger, "component", "tasks"),
		now:       time.Now,
	}
}

// sendProgress sends a progress update through the channel without blocking.
func (e *BookEngine) sendProgress(progress chan<- ProgressUpdate, update ProgressUpdate) {
	if progress == nil {
		return
	}
	select {
	case progress <- update:
	default:
	}
}

// Sync fetches every page of listType, stores the snapshot, then looks up ISBNs missing from the bibliography cache.
//
// Lookup failures are collected in the result; only cancellation aborts enrichment.
func (e *BookEngine) Sync(ctx context.Context, progress chan<- ProgressUpdate, listType models.ListType) (*SyncResult, error) {
	if e.lister == nil || e.books == nil {
		return nil, fmt.Errorf("%w: sync engine not initialized", shared.ErrServiceUnavailable)
	}

	e.sendProgress(progress, fetchingListUpdate(listType))
	books, err := e.lister.All(ctx, listType, func(fetched, total int) {
		e.sendProgress(progress, fetchedPageUpdate(fetched, total))
	})
	if err != nil {
		return nil, fmt.Errorf("failed to fetch %s list: %w", listType, err)
	}

	if err := e.books.ReplaceList(listType, books); err != nil {
		return nil, fmt.Errorf("failed to cache %s list: %w", listType, err)
	}
	e.sendProgress(progress, storedListUpdate(listType, books))

	result := &SyncResult{ListType: listType, Books: books}
	if err := e.enrich(ctx, progress, books, result); err != nil {
		return result, err
	}

	result.SyncedAt = e.now()
	e.logger.Info("synced list", "list", listType, "books", len(books), "enriched", result.Enriched,
		"not_found", len(result.NotFound), "failed", len(result.Failed))
	return result, nil
}

func (e *BookEngine) enrich(ctx context.Context, progress chan<- ProgressUpdate, books []models.Book, result *SyncResult) error {
	if e.catalogue == nil || e.bibs == nil {
		return nil
	}

	isbns := make([]string, 0, len(books))
	for _, b := range books {
		if b.ISBN != "" {
			isbns = append(isbns, b.ISBN)
		}
	}

	missing, err := e.bibs.Missing(isbns)
	if err != nil {
		return fmt.Errorf("failed to check bibliography cache: %w", err)
	}

	for i, isbn := range missing {
		if err := ctx.Err(); err != nil {
			return err
		}
		e.sendProgress(progress, enrichUpdate(i+1, len(missing), isbn))

		bib, err := e.catalogue.LookupISBN(ctx, isbn)
		switch {
		case errors.Is(err, shared.ErrBookNotFound):
			result.NotFound = append(result.NotFound, isbn)
			continue
		case err != nil:
			if ctx.Err() != nil {
				return ctx.Err()
			}
			e.logger.Warn("lookup failed", "isbn", isbn, "error", err)
			result.Failed = append(result.Failed, EnrichFailure{ISBN: isbn, Error: err})
			continue
		}

		bib.FetchedAt = e.now()
		if err := e.bibs.Put(*bib); err != nil {
			result.Failed = append(result.Failed, EnrichFailure{ISBN: isbn, Error: err})
			continue
		}
		result.Enriched++
	}
	return nil
}
