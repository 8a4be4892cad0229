// package covers keeps downloaded cover thumbnails on disk
package covers

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/bookx/internal/services"
	"github.com/desertthunder/bookx/internal/shared"
)

// Cache stores one JPEG per ISBN under a directory.
type Cache struct {
	dir       string
	src       services.ThumbnailSource
	logger    *log.Logger
	downloads shared.Flight[string]
}

func NewCache(dir string, src services.ThumbnailSource, logger *log.Logger) *Cache {
	return &Cache{dir: dir, src: src, logger: shared.WithLogger(logger, "component", "covers")}
}

// Path returns the local file for isbn, downloading it on first use.
//
// Concurrent requests for the same ISBN share one download.
func (c *Cache) Path(ctx context.Context, isbn string) (string, error) {
	normalized := shared.NormalizeISBN(isbn)
	if normalized == "" {
		return "", fmt.Errorf("%w: isbn %q", shared.ErrInvalidInput, isbn)
	}

	path := c.file(normalized)
	if ok, err := exists(path); err != nil || ok {
		return path, err
	}

	got, _, err := c.downloads.Do(ctx, normalized, func(ctx context.Context) (string, error) {
		if ok, err := exists(path); err != nil || ok {
			return path, err
		}

		data, err := c.src.Thumbnail(ctx, normalized)
		if err != nil {
			return "", err
		}
		if err := c.write(path, data); err != nil {
			return "", err
		}

		c.logger.Debug("cached cover", "isbn", normalized, "bytes", len(data))
		return path, nil
	})
	return got, err
}

// Cached reports whether a cover for isbn is already on disk.
func (c *Cache) Cached(isbn string) bool {
	normalized := shared.NormalizeISBN(isbn)
	if normalized == "" {
		return false
	}
	ok, _ := exists(c.file(normalized))
	return ok
}

func (c *Cache) file(isbn string) string {
	return filepath.Join(c.dir, isbn+".jpg")
}

func (c *Cache) write(path string, data []byte) error {
	if err := os.MkdirAll(c.dir, 0755); err != nil {
		return fmt.Errorf("failed to create cover directory: %w", err)
	}

	tmp, err := os.CreateTemp(c.dir, ".cover-*")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to write cover: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to write cover: %w", err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("failed to store cover: %w", err)
	}
	return nil
}

func exists(path string) (bool, error) {
	info, err := os.Stat(path)
	switch {
	case err == nil:
		return info.Size() > 0, nil
	case errors.Is(err, fs.ErrNotExist):
		return false, nil
	default:
		return false, err
	}
}
