package main

import (
	"context"
	"fmt"
	"time"

	"github.com/desertthunder/bookx/internal/formatter"
	"github.com/desertthunder/bookx/internal/models"
	"github.com/desertthunder/bookx/internal/shared"
	"github.com/desertthunder/bookx/internal/tasks"
	"github.com/urfave/cli/v3"
)

// listCount is one row of `lists count`.
type listCount struct {
	ListType models.ListType `json:"list"`
	Label    string          `json:"label"`
	Count    int             `json:"count"`
	SyncedAt time.Time       `json:"synced_at,omitzero"`
}

// parseListTypes validates positional list names; none means every list.
func parseListTypes(args []string) ([]models.ListType, error) {
	if len(args) == 0 {
		return models.ListTypes(), nil
	}
	types := make([]models.ListType, 0, len(args))
	for _, arg := range args {
		lt, err := models.ParseListType(arg)
		if err != nil {
			return nil, err
		}
		types = append(types, lt)
	}
	return types, nil
}

// ListsCount prints the size of each list, from Calil or from the cache.
func (r *Runner) ListsCount(ctx context.Context, cmd *cli.Command) error {
	types, err := parseListTypes(cmd.Args().Slice())
	if err != nil {
		return err
	}

	counts := make([]listCount, 0, len(types))
	if cmd.Bool("cached") {
		books, _, err := r.repositories()
		if err != nil {
			return err
		}
		for _, lt := range types {
			n, err := books.Count(lt)
			if err != nil {
				return err
			}
			syncedAt, err := books.SyncedAt(lt)
			if err != nil {
				return err
			}
			counts = append(counts, listCount{ListType: lt, Label: lt.Label(), Count: n, SyncedAt: syncedAt})
		}
	} else {
		for _, lt := range types {
			r.logger.Debug("counting list", "list", lt)
			n, err := r.lists.Count(ctx, lt)
			if err != nil {
				return fmt.Errorf("failed to count %s: %w", lt, err)
			}
			counts = append(counts, listCount{ListType: lt, Label: lt.Label(), Count: n})
		}
	}

	if cmd.Bool("json") {
		return r.writeJSON(counts, false)
	}

	for _, c := range counts {
		r.writePlain("%-14s %d\n", c.Label+":", c.Count)
	}
	return nil
}

// ListsShow prints one list: a single page, every page, or the cached snapshot.
func (r *Runner) ListsShow(ctx context.Context, cmd *cli.Command) error {
	arg := cmd.StringArg("type")
	if arg == "" {
		return fmt.Errorf("%w: list type (wish or read)", shared.ErrMissingArgument)
	}
	lt, err := models.ParseListType(arg)
	if err != nil {
		return err
	}

	page := cmd.Int("page")
	if page < 0 {
		return fmt.Errorf("%w: --page must not be negative", shared.ErrInvalidArgument)
	}

	var books []models.Book
	switch {
	case cmd.Bool("cached"):
		repo, _, err := r.repositories()
		if err != nil {
			return err
		}
		books, err = repo.List(lt)
		if err != nil {
			return err
		}
	case page > 0:
		books, err = r.lists.Page(ctx, lt, page)
		if err != nil {
			return err
		}
	default:
		books, err = r.lists.All(ctx, lt, func(fetched, total int) {
			r.logger.Debug("fetched page", "list", lt, "fetched", fetched, "total", total)
		})
		if err != nil {
			return err
		}
	}

	if cmd.Bool("json") {
		if books == nil {
			books = []models.Book{}
		}
		return r.writeJSON(books, cmd.Bool("pretty"))
	}

	r.writePlainHeader(fmt.Sprintf("%s (%d books)", lt.Label(), len(books)))
	for _, b := range books {
		r.writePlain("%3d. %s", b.Position, b.Title)
		if b.Author != "" {
			r.writePlain(" / %s", b.Author)
		}
		if b.ISBN != "" {
			r.writePlain(" [%s]", b.ISBN)
		}
		r.writePlain("\n")
	}
	return nil
}

// ListsSync pulls lists from Calil into the cache and enriches new ISBNs.
func (r *Runner) ListsSync(ctx context.Context, cmd *cli.Command) error {
	types, err := parseListTypes(cmd.Args().Slice())
	if err != nil {
		return err
	}
	engine, err := r.engine()
	if err != nil {
		return err
	}

	progressCh, done := r.printProgress()
	results := make([]*tasks.SyncResult, 0, len(types))
	for _, lt := range types {
		result, err := engine.Sync(ctx, progressCh, lt)
		if err != nil {
			close(progressCh)
			<-done
			return fmt.Errorf("failed to sync %s: %w", lt, err)
		}
		results = append(results, result)
	}
	close(progressCh)
	<-done

	r.writePlainln("═══════════════════════════════════════")
	r.writePlain("Sync Complete!\n")
	r.writePlain("═══════════════════════════════════════\n")
	for _, res := range results {
		r.writePlain("%s: %d books, %d looked up", res.ListType.Label(), len(res.Books), res.Enriched)
		if len(res.NotFound) > 0 {
			r.writePlain(", %d not on NDL", len(res.NotFound))
		}
		r.writePlain("\n")
		for _, f := range res.Failed {
			r.writePlain("  ✗ %s: %v\n", f.ISBN, f.Error)
		}
	}
	return nil
}

// ListsExport writes cached lists to disk.
func (r *Runner) ListsExport(ctx context.Context, cmd *cli.Command) error {
	types, err := parseListTypes(cmd.Args().Slice())
	if err != nil {
		return err
	}
	format, err := formatter.ParseFormat(cmd.String("format"))
	if err != nil {
		return err
	}
	engine, err := r.engine()
	if err != nil {
		return err
	}

	opts := tasks.ExportOpts{
		Format:     format,
		OutputDir:  cmd.String("output"),
		NumWorkers: cmd.Int("workers"),
		Refresh:    cmd.Bool("refresh"),
	}

	progressCh, done := r.printProgress()
	result, err := engine.Export(ctx, progressCh, types, opts)
	close(progressCh)
	<-done
	if err != nil {
		return err
	}

	r.writePlainln("═══════════════════════════════════════")
	r.writePlain("Export Complete!\n")
	r.writePlain("═══════════════════════════════════════\n")
	r.writePlain("Output: %s\n", result.OutputDirectory)
	r.writePlain("Exported: %d/%d lists\n", result.SuccessfulExports, len(result.Results))
	for _, res := range result.Results {
		if res.Error != nil {
			r.writePlain("  ✗ %s: %v\n", res.ListType.Label(), res.Error)
		}
	}
	if result.ManifestPath != "" {
		r.writePlain("Manifest: %s\n", result.ManifestPath)
	}
	return nil
}

// printProgress drains engine updates to the output until the returned channel is closed.
// done is closed once the last update has been written.
func (r *Runner) printProgress() (chan tasks.ProgressUpdate, <-chan struct{}) {
	progressCh := make(chan tasks.ProgressUpdate, 50)
	done := make(chan struct{})
	go func() {
		defer close(done)
		for update := range progressCh {
			switch update.Phase {
			case tasks.FetchList:
				if update.Total == 0 {
					r.writePlain("📥 %s\n", update.Message)
				} else {
					r.writePlain("   %s\n", update.Message)
				}
			case tasks.StoreList:
				r.writePlain("💾 %s\n", update.Message)
			case tasks.EnrichBooks:
				r.writePlain("   %s\n", update.Message)
			case tasks.ExportList:
				r.writePlain("📝 %s\n", update.Message)
			}
		}
	}()
	return progressCh, done
}
