package main

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/desertthunder/bookx/internal/models"
	"github.com/desertthunder/bookx/internal/shared"
	"github.com/urfave/cli/v3"
)

// BooksLookup prints the NDL record for an ISBN, consulting the cache first.
func (r *Runner) BooksLookup(ctx context.Context, cmd *cli.Command) error {
	isbn, err := isbnArg(cmd)
	if err != nil {
		return err
	}

	_, bibs, err := r.repositories()
	if err != nil {
		return err
	}

	bib, err := bibs.Get(isbn)
	switch {
	case err == nil:
		r.logger.Debug("bibliography cache hit", "isbn", isbn)
	case errors.Is(err, shared.ErrBookNotFound):
		found, err := r.ndl.LookupISBN(ctx, isbn)
		if err != nil {
			return err
		}
		bib = *found
		if err := bibs.Put(bib); err != nil {
			r.logger.Warn("failed to cache bibliography", "isbn", isbn, "error", err)
		}
	default:
		return err
	}

	if cmd.Bool("json") {
		return r.writeJSON(bib, true)
	}
	r.writeBibliography(bib)
	return nil
}

// BooksCover downloads (or reuses) the cover thumbnail and prints its path.
func (r *Runner) BooksCover(ctx context.Context, cmd *cli.Command) error {
	isbn, err := isbnArg(cmd)
	if err != nil {
		return err
	}

	r.logger.Debug("cover", "isbn", isbn, "cached", r.covers.Cached(isbn))
	path, err := r.covers.Path(ctx, isbn)
	if err != nil {
		return fmt.Errorf("failed to fetch cover for %s: %w", isbn, err)
	}
	return r.writePlain("%s\n", path)
}

func isbnArg(cmd *cli.Command) (string, error) {
	raw := cmd.StringArg("isbn")
	if raw == "" {
		return "", fmt.Errorf("%w: isbn", shared.ErrMissingArgument)
	}
	isbn := shared.NormalizeISBN(raw)
	if isbn == "" {
		return "", fmt.Errorf("%w: %q is not an ISBN", shared.ErrInvalidArgument, raw)
	}
	return isbn, nil
}

func (r *Runner) writeBibliography(b models.Bibliography) {
	r.writePlainHeader(b.Title)
	r.writePlain("ISBN: %s\n", b.ISBN)
	if b.Creator != "" {
		r.writePlain("Author: %s\n", b.Creator)
	}
	if b.Publisher != "" {
		r.writePlain("Publisher: %s\n", b.Publisher)
	}
	if b.Issued != "" {
		r.writePlain("Issued: %s\n", b.Issued)
	}
	if len(b.Subjects) > 0 {
		r.writePlain("Subjects: %s\n", strings.Join(b.Subjects, ", "))
	}
	if b.Link != "" {
		r.writePlain("Link: %s\n", b.Link)
	}
}
