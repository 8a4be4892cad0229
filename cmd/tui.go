package main

import (
	"context"
	"fmt"

	"github.com/desertthunder/bookx/internal/shared"
	"github.com/desertthunder/bookx/internal/ui"
	"github.com/urfave/cli/v3"
)

const tuiLogPath = "./tmp/bookx-tui.log"

// TUI launches the interactive browser over the cached lists.
func (r *Runner) TUI(ctx context.Context, cmd *cli.Command) error {
	// Redirect logs to file to avoid interfering with TUI rendering
	fileLogger, err := shared.NewFileLogger(tuiLogPath)
	if err != nil {
		return fmt.Errorf("failed to create file logger: %w", err)
	}
	if err := r.SetLogger(fileLogger); err != nil {
		return err
	}

	books, bibs, err := r.repositories()
	if err != nil {
		return err
	}
	engine, err := r.engine()
	if err != nil {
		return err
	}

	return ui.Run(ui.NewModel(ctx, books, bibs, engine))
}
