package main

import (
	"context"

	"github.com/desertthunder/bookx/internal/server"
	"github.com/desertthunder/bookx/internal/shared"
	"github.com/urfave/cli/v3"
)

// Serve runs the JSON API until the command context is cancelled.
func (r *Runner) Serve(ctx context.Context, cmd *cli.Command) error {
	config := r.config.Server
	if host := cmd.String("host"); host != "" {
		config.Host = host
	}
	if port := cmd.Int("port"); port != 0 {
		config.Port = port
	}

	_, bibs, err := r.repositories()
	if err != nil {
		return err
	}

	srv := server.NewServer(server.Deps{
		Session:        r.ensurer,
		Lists:          r.lists,
		Catalogue:      r.ndl,
		Bibliographies: bibs,
		Covers:         r.covers,
	}, r.logger)

	open := cmd.Bool("open")
	return srv.ListenAndServe(ctx, server.Addr(config), func(addr string) {
		r.writePlain("✓ Listening on http://%s\n", addr)
		if open {
			if err := shared.OpenURL("http://" + addr + "/health"); err != nil {
				r.logger.Warn("failed to open browser", "error", err)
			}
		}
	})
}
