// submodule cmd contains command definitions
package main

import (
	"github.com/desertthunder/movieweb/internal/formatter"
	"github.com/urfave/cli/v3"
)

func (r *Runner) register() []*cli.Command {
	commands := []*cli.Command{}
	for _, fn := range [](func(*Runner) *cli.Command){
		setupCommand, accountCommand, movieCommand, exportCommand, importCommand, serveCommand, tuiCommand,
	} {
		commands = append(commands, fn(r))
	}

	return commands
}

func accountFlag() cli.Flag {
	return &cli.StringFlag{
		Name:    "account",
		Aliases: []string{"a"},
		Usage:   "Account name or ID",
		Sources: cli.EnvVars(envAccount),
	}
}

func jsonFlag() cli.Flag {
	return &cli.BoolFlag{
		Name:  "json",
		Usage: "Output raw JSON",
	}
}

func filterFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:  "title",
			Usage: "Only entries whose title contains this text",
		},
		&cli.StringFlag{
			Name:  "genre",
			Usage: "Only entries whose genre contains this text",
		},
		&cli.IntFlag{
			Name:  "year",
			Usage: "Only entries released in this year",
		},
	}
}

// setupCommand handles setup operations for the config file and database.
func setupCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "setup",
		Usage: "Setup and configuration commands",
		Commands: []*cli.Command{
			{
				Name:   "database",
				Usage:  "Create the config file if missing, then initialize the database and run migrations",
				Action: r.SetupDatabase,
			},
			{
				Name:   "rollback",
				Usage:  "Roll back the most recent database migration",
				Action: r.SetupRollback,
			},
		},
	}
}

// accountCommand manages accounts
func accountCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:    "account",
		Aliases: []string{"accounts"},
		Usage:   "Manage accounts",
		Commands: []*cli.Command{
			{
				Name:  "add",
				Usage: "Create an account",
				Arguments: []cli.Argument{
					&cli.StringArg{Name: "name"},
				},
				Action: r.AccountAdd,
			},
			{
				Name:   "list",
				Usage:  "List accounts with their library sizes",
				Flags:  []cli.Flag{jsonFlag()},
				Action: r.AccountList,
			},
			{
				Name:  "delete",
				Usage: "Delete an account and its whole library",
				Arguments: []cli.Argument{
					&cli.StringArg{Name: "name"},
				},
				Action: r.AccountDelete,
			},
			{
				Name:  "token",
				Usage: "Issue an API token for an account (requires server.jwt_secret)",
				Arguments: []cli.Argument{
					&cli.StringArg{Name: "name"},
				},
				Flags: []cli.Flag{
					&cli.DurationFlag{
						Name:  "ttl",
						Usage: "Token lifetime",
						Value: defaultTokenTTL,
					},
				},
				Action: r.AccountToken,
			},
		},
	}
}

// movieCommand handles library operations for one account
func movieCommand(r *Runner) *cli.Command {
	yearFlag := func() cli.Flag {
		return &cli.StringFlag{
			Name:    "year",
			Aliases: []string{"y"},
			Usage:   "Release year to disambiguate the title",
		}
	}

	return &cli.Command{
		Name:    "movie",
		Aliases: []string{"movies", "m"},
		Usage:   "Manage the movies in a library",
		Commands: []*cli.Command{
			{
				Name:  "add",
				Usage: "Look up a title and add it to the library",
				Arguments: []cli.Argument{
					&cli.StringArg{Name: "title"},
				},
				Flags:  []cli.Flag{accountFlag(), yearFlag(), jsonFlag()},
				Action: r.MovieAdd,
			},
			{
				Name:  "preview",
				Usage: "Show the normalized metadata for a title without saving it",
				Arguments: []cli.Argument{
					&cli.StringArg{Name: "title"},
				},
				Flags:  []cli.Flag{yearFlag(), jsonFlag()},
				Action: r.MoviePreview,
			},
			{
				Name:    "list",
				Aliases: []string{"ls"},
				Usage:   "List the library, newest first",
				Flags: append([]cli.Flag{
					accountFlag(),
					jsonFlag(),
					&cli.IntFlag{
						Name:  "limit",
						Usage: "Maximum number of entries to return",
					},
				}, filterFlags()...),
				Action: r.MovieList,
			},
			{
				Name:  "show",
				Usage: "Show one entry",
				Arguments: []cli.Argument{
					&cli.StringArg{Name: "id"},
				},
				Flags:  []cli.Flag{accountFlag(), jsonFlag()},
				Action: r.MovieShow,
			},
			{
				Name:  "edit",
				Usage: "Change the notes or personal rating of an entry",
				Arguments: []cli.Argument{
					&cli.StringArg{Name: "id"},
				},
				Flags: []cli.Flag{
					accountFlag(),
					jsonFlag(),
					&cli.StringFlag{
						Name:  "notes",
						Usage: "Replace the notes",
					},
					&cli.IntFlag{
						Name:  "rating",
						Usage: "Personal rating from 1 to 10, or 0 to clear it",
					},
				},
				Action: r.MovieEdit,
			},
			{
				Name:    "delete",
				Aliases: []string{"rm"},
				Usage:   "Remove an entry from the library",
				Arguments: []cli.Argument{
					&cli.StringArg{Name: "id"},
				},
				Flags:  []cli.Flag{accountFlag()},
				Action: r.MovieDelete,
			},
		},
	}
}

// exportCommand writes a library to disk
func exportCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "export",
		Usage: "Export a library as JSON, CSV, Markdown, or text",
		Flags: append([]cli.Flag{
			accountFlag(),
			&cli.StringFlag{
				Name:    "format",
				Aliases: []string{"f"},
				Usage:   "One of json, csv, markdown, txt",
				Value:   formatter.FormatJSON,
			},
			&cli.StringFlag{
				Name:    "output",
				Aliases: []string{"o"},
				Usage:   "Output directory (default: movieweb_export_<timestamp>)",
			},
			&cli.BoolFlag{
				Name:  "posters",
				Usage: "Download posters next to a markdown export",
			},
			&cli.IntFlag{
				Name:  "workers",
				Usage: "Concurrent poster downloads",
				Value: 5,
			},
		}, filterFlags()...),
		Action: r.Export,
	}
}

// importCommand adds many titles from a file
func importCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "import",
		Usage: "Add every title listed in a file, one \"title[,year]\" per line",
		Arguments: []cli.Argument{
			&cli.StringArg{Name: "path"},
		},
		Flags: []cli.Flag{
			accountFlag(),
			jsonFlag(),
			&cli.FloatFlag{
				Name:  "rate",
				Usage: "Provider lookups per second (default: provider.rate_limit)",
			},
		},
		Action: r.Import,
	}
}

// serveCommand runs the HTTP API
func serveCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "serve",
		Usage: "Serve the library JSON API",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "host",
				Usage: "Listen host (default: server.host)",
			},
			&cli.IntFlag{
				Name:  "port",
				Usage: "Listen port (default: server.port)",
			},
		},
		Action: r.Serve,
	}
}

// tuiCommand returns the top-level TUI command for interactive library browsing.
func tuiCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:    "tui",
		Aliases: []string{"interactive", "ui"},
		Usage:   "Browse a library interactively",
		Flags: []cli.Flag{
			accountFlag(),
			&cli.StringFlag{
				Name:  "log-file",
				Usage: "Where to write logs while the TUI is running",
				Value: "./tmp/movieweb-tui.log",
			},
		},
		Action: r.TUI,
	}
}
