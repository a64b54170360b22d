package main

import (
	"context"

	"github.com/desertthunder/movieweb/internal/server"
	"github.com/desertthunder/movieweb/internal/shared"
	"github.com/urfave/cli/v3"
)

// Serve runs the library JSON API until interrupted.
func (r *Runner) Serve(ctx context.Context, cmd *cli.Command) error {
	svc, err := r.reconcile()
	if err != nil {
		return err
	}

	host := r.config.Server.Host
	if cmd.IsSet("host") {
		host = cmd.String("host")
	}
	port := r.config.Server.Port
	if cmd.IsSet("port") {
		port = cmd.Int("port")
	}

	secret := []byte(r.config.Server.JWTSecret)
	if len(secret) == 0 {
		r.logger.Warn("server.jwt_secret is empty, trusting the " + server.AccountHeader + " header")
	}

	logger := shared.WithLogger(r.logger, "component", "http")
	library := server.NewLibraryHandler(svc, r.library, logger)
	handler := server.NewHandler(library, r.accounts, secret, r.db.PingContext, logger)

	return server.NewServer(host, port, handler, logger).Run(ctx)
}
