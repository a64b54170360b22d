package main

import (
	"context"
	"fmt"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/desertthunder/movieweb/internal/shared"
	"github.com/desertthunder/movieweb/internal/ui"
	"github.com/urfave/cli/v3"
)

// TUI launches the interactive library browser for one account.
func (r *Runner) TUI(ctx context.Context, cmd *cli.Command) error {
	accountID, err := r.resolveAccount(ctx, cmd)
	if err != nil {
		return err
	}

	// Redirect logs to file to avoid interfering with TUI rendering
	fileLogger, err := shared.NewFileLogger(cmd.String("log-file"))
	if err != nil {
		return fmt.Errorf("failed to create file logger: %w", err)
	}
	r.SetLogger(fileLogger)

	svc, err := r.reconcile()
	if err != nil {
		return err
	}

	model := ui.NewModel(ctx, accountID, svc, r.library)
	p := tea.NewProgram(model, tea.WithAltScreen(), tea.WithContext(ctx))

	if _, err := p.Run(); err != nil {
		return fmt.Errorf("error running TUI: %w", err)
	}

	return nil
}
