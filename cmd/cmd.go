// submodule cmd contains command definitions
package main

import "github.com/urfave/cli/v3"

// setupCommand handles setup operations for the config file and database.
func setupCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "setup",
		Usage: "Setup and configuration commands",
		Commands: []*cli.Command{
			{
				Name:   "config",
				Usage:  "Write a config file from the default template",
				Action: r.SetupConfig,
			},
			{
				Name:   "database",
				Usage:  "Initialize database and run migrations",
				Action: r.SetupDatabase,
			},
		},
	}
}

// authCommand handles the OAuth session
func authCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "auth",
		Usage: "Manage authentication with X",
		Commands: []*cli.Command{
			{
				Name:  "login",
				Usage: "Sign in through the browser (OAuth 2.0 with PKCE)",
				Flags: []cli.Flag{
					&cli.DurationFlag{
						Name:  "timeout",
						Usage: "How long to wait for the browser callback",
						Value: defaultLoginTimeout,
					},
				},
				Action: r.AuthLogin,
			},
			{
				Name:   "logout",
				Usage:  "Delete the stored credential",
				Action: r.AuthLogout,
			},
			{
				Name:   "status",
				Usage:  "Show whether a credential is stored and when it expires",
				Action: r.AuthStatus,
			},
			{
				Name:  "whoami",
				Usage: "Show the signed-in account",
				Flags: []cli.Flag{
					&cli.BoolFlag{
						Name:  "json",
						Usage: "Output raw JSON",
					},
				},
				Action: r.AuthWhoami,
			},
		},
	}
}

// countCommand reports the weighted length of text
func countCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:      "count",
		Usage:     "Count characters the way the platform does",
		ArgsUsage: "<text>",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "file",
				Aliases: []string{"f"},
				Usage:   "Read the text from a file",
			},
			&cli.IntFlag{
				Name:  "limit",
				Usage: "Character limit (defaults to limits.max_chars)",
			},
		},
		Action: r.Count,
	}
}

// threadCommand handles draft threads
func threadCommand(r *Runner) *cli.Command {
	jsonFlag := &cli.BoolFlag{
		Name:  "json",
		Usage: "Output raw JSON",
	}

	return &cli.Command{
		Name:    "thread",
		Aliases: []string{"t"},
		Usage:   "Compose and publish threads",
		Commands: []*cli.Command{
			{
				Name:      "new",
				Usage:     "Create a draft with one item per argument",
				ArgsUsage: "[text...]",
				Action:    r.ThreadNew,
			},
			{
				Name:      "add",
				Usage:     "Append an item to a draft",
				ArgsUsage: "<number> <text>",
				Flags: []cli.Flag{
					&cli.StringSliceFlag{
						Name:    "image",
						Aliases: []string{"i"},
						Usage:   "Attach an image (repeatable, up to 4)",
					},
					&cli.StringSliceFlag{
						Name:  "alt",
						Usage: "Alt text for the image in the same position",
					},
				},
				Action: r.ThreadAdd,
			},
			{
				Name:    "list",
				Aliases: []string{"ls"},
				Usage:   "List threads",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:  "status",
						Usage: "Only show threads in this status (editing, ready, posting, posted, failed)",
					},
					jsonFlag,
				},
				Action: r.ThreadList,
			},
			{
				Name:      "show",
				Usage:     "Show a thread with per-item counts",
				ArgsUsage: "<number>",
				Action:    r.ThreadShow,
			},
			{
				Name:      "import",
				Usage:     "Create a draft from a TOML or YAML document",
				ArgsUsage: "<file>",
				Action:    r.ThreadImport,
			},
			{
				Name:      "post",
				Usage:     "Publish a draft as a reply chain",
				ArgsUsage: "<number>",
				Action:    r.ThreadPost,
			},
			{
				Name:      "retry",
				Usage:     "Resume a failed or interrupted thread",
				ArgsUsage: "<number>",
				Action:    r.ThreadRetry,
			},
			{
				Name:      "delete",
				Aliases:   []string{"rm"},
				Usage:     "Delete a thread with its items and images",
				ArgsUsage: "<number>",
				Action:    r.ThreadDelete,
			},
		},
	}
}

// historyCommand exports published posts
func historyCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "history",
		Usage: "Show or export published posts",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "format",
				Usage: "Output format: text, csv, md, json",
				Value: "text",
			},
			&cli.StringFlag{
				Name:    "output",
				Aliases: []string{"o"},
				Usage:   "Write to a file instead of stdout",
			},
			&cli.IntFlag{
				Name:  "limit",
				Usage: "Only the most recent N posts (0 for all)",
			},
		},
		Action: r.History,
	}
}

// tuiCommand returns the top-level TUI command for picking and posting drafts.
func tuiCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:    "tui",
		Aliases: []string{"interactive", "ui"},
		Usage:   "Launch interactive TUI for posting drafts",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "log-file",
				Usage: "Where logs go while the TUI owns the terminal",
				Value: "./tmp/threadx-tui.log",
			},
		},
		Action: r.TUI,
	}
}
