// submodule cmd contains command definitions
package main

import "github.com/urfave/cli/v3"

// setupCommand creates the config file and the cache database
func setupCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "setup",
		Usage: "Create the configuration file and the local cache",
		Commands: []*cli.Command{
			{
				Name:  "config",
				Usage: "Write an example config.toml to the --config path",
				Flags: []cli.Flag{
					&cli.BoolFlag{
						Name:  "force",
						Usage: "Overwrite an existing file",
					},
				},
				Action: r.SetupConfig,
			},
			{
				Name:  "database",
				Usage: "Create the cache database and run migrations",
				Flags: []cli.Flag{
					&cli.BoolFlag{
						Name:  "rollback",
						Usage: "Roll back the most recent migration instead (drops cached data)",
					},
				},
				Action: r.SetupDatabase,
			},
		},
	}
}

// authCommand manages the Calil session
func authCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "auth",
		Usage: "Manage the Calil login session",
		Commands: []*cli.Command{
			{
				Name:  "login",
				Usage: "Sign in through the automated browser",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:  "headless",
						Usage: "Browser window policy: auto, always or never (default: from config)",
					},
					&cli.BoolFlag{
						Name:  "plain",
						Usage: "Log progress instead of showing a spinner",
					},
				},
				Action: r.AuthLogin,
			},
			{
				Name:  "status",
				Usage: "Check whether the stored session is still accepted",
				Flags: []cli.Flag{
					&cli.BoolFlag{
						Name:  "json",
						Usage: "Output raw JSON",
					},
				},
				Action: r.AuthStatus,
			},
			{
				Name:   "logout",
				Usage:  "Forget the stored session",
				Action: r.AuthLogout,
			},
			{
				Name:  "import",
				Usage: "Import cookies copied from a signed-in browser",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:  "curl",
						Usage: "cURL command copied from the browser network tab",
					},
					&cli.StringFlag{
						Name:  "curl-file",
						Usage: "File containing a copied cURL command",
					},
					&cli.StringFlag{
						Name:  "cookie",
						Usage: "Raw Cookie header value",
					},
				},
				Action: r.AuthImport,
			},
		},
	}
}

// listsCommand reads, syncs and exports Calil lists
func listsCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "lists",
		Usage: "Calil book list operations",
		Commands: []*cli.Command{
			{
				Name:      "count",
				Usage:     "Show how many books each list holds",
				ArgsUsage: "[wish|read ...]",
				Flags: []cli.Flag{
					&cli.BoolFlag{
						Name:  "cached",
						Usage: "Read counts from the local cache instead of Calil",
					},
					&cli.BoolFlag{
						Name:  "json",
						Usage: "Output raw JSON",
					},
				},
				Action: r.ListsCount,
			},
			{
				Name:  "show",
				Usage: "Print the books of one list",
				Arguments: []cli.Argument{
					&cli.StringArg{
						Name: "type",
					},
				},
				Flags: []cli.Flag{
					&cli.IntFlag{
						Name:  "page",
						Usage: "Fetch a single page (1-based); 0 fetches every page",
					},
					&cli.BoolFlag{
						Name:  "cached",
						Usage: "Read from the local cache instead of Calil",
					},
					&cli.BoolFlag{
						Name:  "json",
						Usage: "Output raw JSON",
					},
					&cli.BoolFlag{
						Name:  "pretty",
						Usage: "Pretty-print output",
					},
				},
				Action: r.ListsShow,
			},
			{
				Name:      "sync",
				Usage:     "Fetch lists from Calil into the local cache and look up new ISBNs",
				ArgsUsage: "[wish|read ...]",
				Action:    r.ListsSync,
			},
			{
				Name:      "export",
				Usage:     "Export cached lists to files",
				ArgsUsage: "[wish|read ...]",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:    "format",
						Aliases: []string{"f"},
						Usage:   "Output format: json, csv, markdown or txt",
						Value:   "json",
					},
					&cli.StringFlag{
						Name:    "output",
						Aliases: []string{"o"},
						Usage:   "Output directory (default: bookx_export_{timestamp})",
					},
					&cli.BoolFlag{
						Name:  "refresh",
						Usage: "Sync each list before exporting it",
					},
					&cli.IntFlag{
						Name:  "workers",
						Usage: "Concurrent cover downloads (markdown only)",
						Value: 4,
					},
				},
				Action: r.ListsExport,
			},
		},
	}
}

// booksCommand looks up single books
func booksCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "books",
		Usage: "Bibliographic lookups",
		Commands: []*cli.Command{
			{
				Name:  "lookup",
				Usage: "Show the NDL record for an ISBN",
				Arguments: []cli.Argument{
					&cli.StringArg{
						Name: "isbn",
					},
				},
				Flags: []cli.Flag{
					&cli.BoolFlag{
						Name:  "json",
						Usage: "Output raw JSON",
					},
				},
				Action: r.BooksLookup,
			},
			{
				Name:  "cover",
				Usage: "Download the cover thumbnail for an ISBN and print its path",
				Arguments: []cli.Argument{
					&cli.StringArg{
						Name: "isbn",
					},
				},
				Action: r.BooksCover,
			},
		},
	}
}

// apiCommand handles direct authenticated Calil calls
func apiCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "api",
		Usage: "Direct authenticated calls to the Calil API",
		Commands: []*cli.Command{
			{
				Name:  "get",
				Usage: "Direct GET, prints the response body",
				Arguments: []cli.Argument{
					&cli.StringArg{
						Name: "path",
					},
				},
				Flags: []cli.Flag{
					&cli.BoolFlag{
						Name:  "pretty",
						Usage: "Pretty-print JSON responses",
						Value: true,
					},
				},
				Action: r.APIGet,
			},
			{
				Name:  "post",
				Usage: "Direct POST with JSON body",
				Arguments: []cli.Argument{
					&cli.StringArg{
						Name: "path",
					},
				},
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:     "data",
						Aliases:  []string{"d"},
						Usage:    "JSON body to send",
						Required: true,
					},
				},
				Action: r.APIPost,
			},
		},
	}
}

// serveCommand starts the local web API
func serveCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "serve",
		Usage: "Serve the book lists over a local HTTP API",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "host",
				Usage: "Listen address (default: from config)",
			},
			&cli.IntFlag{
				Name:  "port",
				Usage: "Listen port (default: from config)",
			},
			&cli.BoolFlag{
				Name:  "open",
				Usage: "Open the API root in a browser once listening",
			},
		},
		Action: r.Serve,
	}
}

// tuiCommand launches the terminal UI
func tuiCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:   "tui",
		Usage:  "Browse cached lists in an interactive terminal UI",
		Action: r.TUI,
	}
}
