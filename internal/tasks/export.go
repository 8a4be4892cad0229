package tasks

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/desertthunder/bookx/internal/formatter"
	"github.com/desertthunder/bookx/internal/models"
	"github.com/desertthunder/bookx/internal/shared"
)

// ExportOpts contains configuration for list exports.
type ExportOpts struct {
	Format     formatter.Format // json, csv, markdown, txt
	OutputDir  string           // Base output directory (default: bookx_export_{epoch})
	NumWorkers int              // Concurrent cover downloads (default: 4)
	Refresh    bool             // Sync each list before exporting it
}

// ListExportResult is the outcome for one list.
type ListExportResult struct {
	ListType models.ListType
	Books    int
	Files    []string
	Error    error
}

// ExportResult summarises an Export run.
type ExportResult struct {
	OutputDirectory   string
	Results           []ListExportResult
	SuccessfulExports int
	FailedExports     int
	ManifestPath      string
}

// Export writes each cached list to opts.OutputDir and a manifest next to them.
//
// A failing list is recorded in the result and does not stop the others.
// Markdown exports download missing covers with a pool of opts.NumWorkers workers.
func (e *BookEngine) Export(
	ctx context.Context,
	prog chan<- ProgressUpdate,
	listTypes []models.ListType,
	opts ExportOpts,
) (*ExportResult, error) {
	if e.books == nil {
		return nil, fmt.Errorf("%w: book cache not initialized", shared.ErrServiceUnavailable)
	}
	if len(listTypes) == 0 {
		listTypes = models.ListTypes()
	}
	if opts.Format == "" {
		opts.Format = formatter.FormatJSON
	}
	if opts.OutputDir == "" {
		opts.OutputDir = fmt.Sprintf("bookx_export_%d", e.now().Unix())
	}
	if opts.NumWorkers <= 0 {
		opts.NumWorkers = 4
	}
	if opts.NumWorkers > 10 {
		opts.NumWorkers = 10
	}

	if err := os.MkdirAll(opts.OutputDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create output directory: %w", err)
	}

	result := &ExportResult{
		OutputDirectory: opts.OutputDir,
		Results:         make([]ListExportResult, 0, len(listTypes)),
	}

	for i, lt := range listTypes {
		if err := ctx.Err(); err != nil {
			return result, err
		}
		e.sendProgress(prog, exportingListUpdate(i+1, len(listTypes), lt))

		res := e.exportList(ctx, prog, lt, opts)
		result.Results = append(result.Results, res)
		if res.Error != nil {
			result.FailedExports++
			e.sendProgress(prog, exportFailedUpdate(i+1, len(listTypes), lt, res.Error))
			continue
		}
		result.SuccessfulExports++
		e.sendProgress(prog, exportCompletedUpdate(i+1, len(listTypes), lt, len(res.Files)))
	}

	manifestPath := filepath.Join(opts.OutputDir, "export_manifest.json")
	if err := formatter.WriteExportManifest(e.manifest(result, opts), manifestPath); err != nil {
		return result, fmt.Errorf("export completed but failed to write manifest: %w", err)
	}
	result.ManifestPath = manifestPath
	return result, nil
}

func (e *BookEngine) manifest(result *ExportResult, opts ExportOpts) *formatter.Manifest {
	m := &formatter.Manifest{
		Format:          opts.Format,
		OutputDirectory: result.OutputDirectory,
		CreatedAt:       e.now(),
		Lists:           make([]formatter.ManifestEntry, 0, len(result.Results)),
	}
	for _, r := range result.Results {
		entry := formatter.ManifestEntry{ListType: r.ListType, Books: r.Books, Files: r.Files}
		if r.Error != nil {
			entry.Error = r.Error.Error()
		}
		m.Lists = append(m.Lists, entry)
	}
	return m
}

// exportList builds the export for one list and writes it in the requested format.
func (e *BookEngine) exportList(ctx context.Context, prog chan<- ProgressUpdate, lt models.ListType, opts ExportOpts) ListExportResult {
	result := ListExportResult{ListType: lt, Files: []string{}}

	if opts.Refresh {
		if _, err := e.Sync(ctx, prog, lt); err != nil {
			result.Error = fmt.Errorf("sync failed: %w", err)
			return result
		}
	}

	export, err := e.buildExport(lt)
	if err != nil {
		result.Error = err
		return result
	}
	result.Books = len(export.Books)

	switch opts.Format {
	case formatter.FormatCSV:
		res, err := formatter.WriteCSVExport(export, filepath.Join(opts.OutputDir, string(lt)))
		if err != nil {
			result.Error = fmt.Errorf("CSV export failed: %w", err)
			return result
		}
		result.Files = []string{res.BooksFile, res.MetadataFile}

	case formatter.FormatMarkdown:
		covers := e.fetchCovers(ctx, export.Books, opts.NumWorkers)
		res, err := formatter.WriteMarkdownExport(export, filepath.Join(opts.OutputDir, string(lt)), covers)
		if err != nil {
			result.Error = fmt.Errorf("markdown export failed: %w", err)
			return result
		}
		result.Files = res.Files

	case formatter.FormatText:
		path, err := formatter.WriteTextExport(export, filepath.Join(opts.OutputDir, string(lt)+"_books.txt"))
		if err != nil {
			result.Error = fmt.Errorf("text export failed: %w", err)
			return result
		}
		result.Files = []string{path}

	default:
		path, err := formatter.WriteJSONExport(export, filepath.Join(opts.OutputDir, string(lt)+".json"))
		if err != nil {
			result.Error = fmt.Errorf("JSON export failed: %w", err)
			return result
		}
		result.Files = []string{path}
	}
	return result
}

func (e *BookEngine) buildExport(lt models.ListType) (*formatter.ListExport, error) {
	books, err := e.books.List(lt)
	if err != nil {
		return nil, fmt.Errorf("failed to read cached %s list: %w", lt, err)
	}

	export := &formatter.ListExport{
		ListType:       lt,
		Books:          books,
		Bibliographies: map[string]models.Bibliography{},
		ExportedAt:     e.now(),
	}
	if e.bibs == nil {
		return export, nil
	}

	for _, b := range books {
		if b.ISBN == "" {
			continue
		}
		bib, err := e.bibs.Get(b.ISBN)
		switch {
		case errors.Is(err, shared.ErrBookNotFound):
		case err != nil:
			return nil, fmt.Errorf("failed to read bibliography %s: %w", b.ISBN, err)
		default:
			export.Bibliographies[b.ISBN] = bib
		}
	}
	return export, nil
}

type coverJob struct {
	isbn string
}

type coverResult struct {
	isbn string
	path string
	err  error
}

// fetchCovers resolves cover files for books with a worker pool. Books without a cover are left out.
func (e *BookEngine) fetchCovers(ctx context.Context, books []models.Book, workers int) map[string]string {
	covers := map[string]string{}
	if e.covers == nil {
		return covers
	}

	jobs := make(chan coverJob, len(books))
	results := make(chan coverResult, len(books))

	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go e.coverWorker(ctx, &wg, jobs, results)
	}

	for _, b := range books {
		if b.ISBN != "" {
			jobs <- coverJob{isbn: b.ISBN}
		}
	}
	close(jobs)

	go func() {
		wg.Wait()
		close(results)
	}()

	for res := range results {
		if res.err != nil {
			e.logger.Debug("no cover", "isbn", res.isbn, "error", res.err)
			continue
		}
		covers[res.isbn] = res.path
	}
	return covers
}

func (e *BookEngine) coverWorker(ctx context.Context, wg *sync.WaitGroup, jobs <-chan coverJob, results chan<- coverResult) {
	defer wg.Done()

	for job := range jobs {
		if ctx.Err() != nil {
			return
		}
		path, err := e.covers.Path(ctx, job.isbn)
		results <- coverResult{isbn: job.isbn, path: path, err: err}
	}
}
