package main

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/desertthunder/bookx/internal/services"
	"github.com/desertthunder/bookx/internal/session"
	"github.com/desertthunder/bookx/internal/shared"
	"github.com/urfave/cli/v3"
)

// APIGet makes an authenticated GET request to Calil.
func (r *Runner) APIGet(ctx context.Context, cmd *cli.Command) error {
	path, err := pathArg(cmd)
	if err != nil {
		return err
	}

	r.logger.Info("GET request", "path", path)
	resp, err := session.Do(ctx, r.retrier, func(ctx context.Context, creds session.Credentials) (*services.APIResponse, error) {
		resp, err := r.calil.API().Get(ctx, path, creds)
		if err != nil {
			return nil, err
		}
		return resp, resp.Err()
	})
	if err != nil {
		return err
	}
	return r.writeResponse(resp, cmd.Bool("pretty"))
}

// APIPost makes an authenticated POST request with a JSON body to Calil.
func (r *Runner) APIPost(ctx context.Context, cmd *cli.Command) error {
	path, err := pathArg(cmd)
	if err != nil {
		return err
	}

	data := cmd.String("data")
	if data == "" {
		return fmt.Errorf("%w: --data flag is required", shared.ErrMissingArgument)
	}
	if !json.Valid([]byte(data)) {
		return fmt.Errorf("%w: data is not valid JSON", shared.ErrInvalidInput)
	}

	r.logger.Info("POST request", "path", path)
	resp, err := session.Do(ctx, r.retrier, func(ctx context.Context, creds session.Credentials) (*services.APIResponse, error) {
		resp, err := r.calil.API().Post(ctx, path, []byte(data), creds)
		if err != nil {
			return nil, err
		}
		return resp, resp.Err()
	})
	if err != nil {
		return err
	}
	return r.writeResponse(resp, true)
}

func pathArg(cmd *cli.Command) (string, error) {
	path := cmd.StringArg("path")
	if path == "" {
		return "", fmt.Errorf("%w: path", shared.ErrMissingArgument)
	}
	if !strings.HasPrefix(path, "/") {
		path = "/" + path
	}
	return path, nil
}

func (r *Runner) writeResponse(resp *services.APIResponse, pretty bool) error {
	if resp.IsJSON {
		return r.writeJSON(resp.JSONData, pretty)
	}
	if _, err := r.output.Write(resp.Body); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}
	_, err := r.output.Write([]byte("\n"))
	return err
}
