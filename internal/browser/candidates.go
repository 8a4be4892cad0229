package browser

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/charmbracelet/log"
	"github.com/go-rod/rod/lib/launcher"
)

// candidate is one provider in an ordered fallback list.
type candidate[T any] struct {
	name string
	try  func(context.Context) (T, error)
}

// firstOf returns the result of the first candidate that succeeds, or every failure joined.
func firstOf[T any](ctx context.Context, logger *log.Logger, cs []candidate[T]) (T, error) {
	var zero T
	var errs []error
	for _, c := range cs {
		if err := ctx.Err(); err != nil {
			return zero, err
		}
		v, err := c.try(ctx)
		if err == nil {
			logger.Debug("candidate succeeded", "candidate", c.name)
			return v, nil
		}
		logger.Debug("candidate failed", "candidate", c.name, "error", err)
		errs = append(errs, fmt.Errorf("%s: %w", c.name, err))
	}
	if len(errs) == 0 {
		return zero, errors.New("no candidates")
	}
	return zero, errors.Join(errs...)
}

// configuredExecutable accepts an explicit path from configuration when it exists.
func configuredExecutable(path string) candidate[string] {
	return candidate[string]{
		name: "configured",
		try: func(context.Context) (string, error) {
			if path == "" {
				return "", errors.New("not configured")
			}
			if _, err := os.Stat(path); err != nil {
				return "", err
			}
			return path, nil
		},
	}
}

// systemExecutable looks for an installed Chrome, Chromium or Edge.
func systemExecutable() candidate[string] {
	return candidate[string]{
		name: "system",
		try: func(context.Context) (string, error) {
			if path, ok := launcher.LookPath(); ok {
				return path, nil
			}
			return "", errors.New("no system browser found")
		},
	}
}

// managedExecutable downloads a pinned Chromium on first use and reuses it afterwards.
func managedExecutable() candidate[string] {
	return candidate[string]{
		name: "managed",
		try: func(ctx context.Context) (string, error) {
			b := launcher.NewBrowser()
			b.Context = ctx
			return b.Get()
		},
	}
}
