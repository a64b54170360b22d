package main

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/desertthunder/movieweb/internal/models"
	"github.com/desertthunder/movieweb/internal/server"
	"github.com/desertthunder/movieweb/internal/shared"
	"github.com/urfave/cli/v3"
)

const defaultTokenTTL = 30 * 24 * time.Hour

type accountSummary struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Entries   int       `json:"entries"`
	CreatedAt time.Time `json:"created_at"`
}

// AccountAdd creates an account.
func (r *Runner) AccountAdd(ctx context.Context, cmd *cli.Command) error {
	name := cmd.StringArg("name")
	if name == "" {
		return fmt.Errorf("%w: name", shared.ErrMissingArgument)
	}
	if err := r.openStore(); err != nil {
		return err
	}

	account := models.NewAccount(name)
	if err := r.accounts.Create(ctx, account); err != nil {
		return err
	}

	r.logger.Info("account created", "account", account.ID(), "name", account.Name())
	return r.writePlain("✓ Created account %s (%s)\n", account.Name(), account.ID())
}

// AccountList prints every account with the size of its library.
func (r *Runner) AccountList(ctx context.Context, cmd *cli.Command) error {
	if err := r.openStore(); err != nil {
		return err
	}

	accounts, err := r.accounts.List(ctx)
	if err != nil {
		return err
	}

	summaries := make([]accountSummary, 0, len(accounts))
	for _, a := range accounts {
		n, err := r.library.Count(ctx, a.ID())
		if err != nil {
			return err
		}
		summaries = append(summaries, accountSummary{ID: a.ID(), Name: a.Name(), Entries: n, CreatedAt: a.CreatedAt()})
	}

	if cmd.Bool("json") {
		return r.writeJSON(summaries, true)
	}

	if len(summaries) == 0 {
		return r.writePlain("No accounts yet. Create one with 'movieweb account add <name>'.\n")
	}

	rows := make([][]string, 0, len(summaries))
	for _, s := range summaries {
		rows = append(rows, []string{s.Name, s.ID, strconv.Itoa(s.Entries), s.CreatedAt.Format(time.DateOnly)})
	}
	return r.writePlain("%s\n", renderTable(
		[]string{"Name", "ID", "Movies", "Created"},
		rows,
		[]columnAlignment{alignLeft, alignLeft, alignRight, alignLeft},
	))
}

// AccountDelete removes an account and its library.
func (r *Runner) AccountDelete(ctx context.Context, cmd *cli.Command) error {
	id, err := r.accountArg(ctx, cmd)
	if err != nil {
		return err
	}

	if err := r.accounts.Delete(ctx, id); err != nil {
		return err
	}

	r.logger.Warn("account deleted", "account", id)
	return r.writePlain("✓ Deleted account %s\n", cmd.StringArg("name"))
}

// AccountToken prints a bearer token for the HTTP API.
func (r *Runner) AccountToken(ctx context.Context, cmd *cli.Command) error {
	id, err := r.accountArg(ctx, cmd)
	if err != nil {
		return err
	}

	token, err := server.IssueToken([]byte(r.config.Server.JWTSecret), id, cmd.Duration("ttl"))
	if err != nil {
		return err
	}
	return r.writePlain("%s\n", token)
}

// accountArg resolves the name argument the same way --account is resolved.
func (r *Runner) accountArg(ctx context.Context, cmd *cli.Command) (string, error) {
	name := cmd.StringArg("name")
	if name == "" {
		return "", fmt.Errorf("%w: name", shared.ErrMissingArgument)
	}
	return r.lookupAccount(ctx, name)
}
