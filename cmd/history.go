package main

import (
	"context"
	"fmt"
	"time"

	"github.com/desertthunder/threadx/internal/formatter"
	"github.com/urfave/cli/v3"
)

// History prints or exports published posts grouped by thread.
func (r *Runner) History(ctx context.Context, cmd *cli.Command) error {
	repo, err := r.publishedRepository()
	if err != nil {
		return err
	}

	criteria := map[string]any{}
	if n := int(cmd.Int("limit")); n > 0 {
		criteria["limit"] = n
	}
	posts, err := repo.List(criteria)
	if err != nil {
		return fmt.Errorf("failed to load history: %w", err)
	}

	format := cmd.String("format")
	if path := cmd.String("output"); path != "" {
		written, err := formatter.WriteExport(posts, format, path, time.Now())
		if err != nil {
			return err
		}
		r.logger.Info("history exported", "path", written, "posts", len(posts))
		return r.writePlain("✓ Exported %d post(s) to %s\n", len(posts), written)
	}

	data, err := formatter.Export(posts, format, time.Now())
	if err != nil {
		return err
	}
	if _, err := r.output.Write(data); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}
	return nil
}
