package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/desertthunder/threadx/internal/shared"
	"github.com/desertthunder/threadx/internal/ui"
	"github.com/urfave/cli/v3"
)

// TUI launches the interactive draft picker.
func (r *Runner) TUI(ctx context.Context, cmd *cli.Command) error {
	// Redirect logs to file to avoid interfering with TUI rendering
	path := cmd.String("log-file")
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create log directory: %w", err)
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return fmt.Errorf("failed to create file logger: %w", err)
	}
	defer f.Close()

	fileLogger := shared.NewLogger(f)
	fileLogger.SetLevel(r.logger.GetLevel())
	r.SetLogger(fileLogger)

	threads, err := r.threadRepository()
	if err != nil {
		return err
	}
	composer, err := r.postComposer()
	if err != nil {
		return err
	}

	model := ui.NewModel(ctx, threads, composer, r.limit())
	p := tea.NewProgram(model, tea.WithAltScreen(), tea.WithContext(ctx))

	if _, err := p.Run(); err != nil {
		return fmt.Errorf("error running TUI: %w", err)
	}

	return nil
}
