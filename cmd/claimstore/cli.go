package main

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"

	"github.com/urfave/cli/v2"

	"github.com/hpungsan/claimstore/internal/errors"
	"github.com/hpungsan/claimstore/internal/ops"
	"github.com/hpungsan/claimstore/internal/web"
)

// newCLIApp creates the CLI application with all commands. rt is nil when
// only help or version output is needed.
func newCLIApp(rt *runtime) *cli.App {
	app := &cli.App{
		Name:    "claimstore",
		Usage:   "Claim-check store for large message bodies",
		Version: Version,
		Commands: []*cli.Command{
			captureCmd(rt),
			redeemCmd(rt),
			inventoryCmd(rt),
			jobsCmd(rt),
			catalogCmd(rt),
			configCmd(rt),
			serveCmd(rt),
		},
	}
	// Disable default exit error handler to allow proper error return in tests
	app.ExitErrHandler = func(_ *cli.Context, _ error) {}
	return app
}

// captureCmd creates the capture command.
func captureCmd(rt *runtime) *cli.Command {
	return &cli.Command{
		Name:  "capture",
		Usage: "Capture a payload (reads it from stdin unless --path is given)",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "path", Aliases: []string{"p"}, Usage: "Read the payload from a file"},
			&cli.StringFlag{Name: "modes", Aliases: []string{"m"}, Value: ops.DefaultCaptureModes, Usage: "Tracking modes: body,claim,archive"},
			&cli.StringFlag{Name: "archive-target", Aliases: []string{"a"}, Usage: "Archive destination (implies archive mode)"},
		},
		Action: func(c *cli.Context) error {
			input := ops.CaptureInput{
				Path:          c.String("path"),
				Modes:         c.String("modes"),
				ArchiveTarget: c.String("archive-target"),
			}

			if input.Path == "" {
				if !stdinHasData() {
					return outputError(errors.NewInvalidRequest("payload must be piped via stdin or given with --path"))
				}
				content, err := readStdin()
				if err != nil {
					return outputError(errors.NewInternal(err))
				}
				if content == "" {
					return outputError(errors.NewInvalidRequest("payload is empty"))
				}
				input.Content = content
			}

			output, err := ops.Capture(c.Context, rt.store, input)
			if err != nil {
				return outputError(err)
			}

			return outputJSON(output)
		},
	}
}

// redeemCmd creates the redeem command.
func redeemCmd(rt *runtime) *cli.Command {
	return &cli.Command{
		Name:      "redeem",
		Usage:     "Redeem a claim-check reference, or a token document piped via stdin",
		ArgsUsage: "[reference]",
		Flags: []cli.Flag{
			&cli.IntFlag{Name: "max-bytes", Usage: "Maximum content bytes to print"},
			&cli.StringFlag{Name: "archive-target", Aliases: []string{"a"}, Usage: "Archive the redeemed content"},
		},
		Action: func(c *cli.Context) error {
			input := ops.RedeemInput{
				MaxBytes:      c.Int("max-bytes"),
				ArchiveTarget: c.String("archive-target"),
			}

			if c.NArg() > 0 {
				input.Reference = c.Args().First()
			} else {
				if !stdinHasData() {
					return outputError(errors.NewInvalidRequest("reference argument or piped token document is required"))
				}
				doc, err := readStdin()
				if err != nil {
					return outputError(errors.NewInternal(err))
				}
				input.Token = strings.TrimSpace(doc)
			}

			output, err := ops.Redeem(c.Context, rt.store, input)
			if err != nil {
				return outputError(err)
			}

			return outputJSON(output)
		},
	}
}

// inventoryCmd creates the inventory command.
func inventoryCmd(rt *runtime) *cli.Command {
	return &cli.Command{
		Name:      "inventory",
		Usage:     "List persisted payloads and archive jobs",
		ArgsUsage: "[partition]",
		Action: func(c *cli.Context) error {
			output, err := ops.Inventory(rt.store, ops.InventoryInput{Partition: c.Args().First()})
			if err != nil {
				return outputError(err)
			}

			return outputJSON(output)
		},
	}
}

// jobsCmd creates the jobs command.
func jobsCmd(rt *runtime) *cli.Command {
	return &cli.Command{
		Name:  "jobs",
		Usage: "List pending archive jobs",
		Action: func(c *cli.Context) error {
			output, err := ops.Jobs(rt.store)
			if err != nil {
				return outputError(err)
			}

			return outputJSON(output)
		},
	}
}

// catalogCmd creates the catalog command.
func catalogCmd(rt *runtime) *cli.Command {
	return &cli.Command{
		Name:      "catalog",
		Usage:     "Query the capture catalog",
		ArgsUsage: "[token]",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "partition", Usage: "Date partition (yyyyMMdd)"},
			&cli.IntFlag{Name: "limit", Aliases: []string{"l"}, Value: ops.DefaultCatalogLimit, Usage: "Max results"},
		},
		Action: func(c *cli.Context) error {
			output, err := ops.Catalog(rt.db, ops.CatalogInput{
				Token:     c.Args().First(),
				Partition: c.String("partition"),
				Limit:     c.Int("limit"),
			})
			if err != nil {
				return outputError(err)
			}

			return outputJSON(output)
		},
	}
}

// configCmd creates the config command and its subcommands.
func configCmd(rt *runtime) *cli.Command {
	appFlag := &cli.StringFlag{Name: "app", Usage: "Application the property belongs to"}

	return &cli.Command{
		Name:  "config",
		Usage: "Manage configuration properties",
		Subcommands: []*cli.Command{
			{
				Name:      "get",
				Usage:     "Resolve a property (environment, property store, config file)",
				ArgsUsage: "<property>",
				Flags:     []cli.Flag{appFlag},
				Action: func(c *cli.Context) error {
					output, err := ops.GetProperty(rt.provider, rt.store.Settings(), ops.PropertyInput{
						Application: c.String("app"),
						Property:    c.Args().First(),
					})
					if err != nil {
						return outputError(err)
					}
					return outputJSON(output)
				},
			},
			{
				Name:      "set",
				Usage:     "Store a property",
				ArgsUsage: "<property> <value>",
				Flags:     []cli.Flag{appFlag},
				Action: func(c *cli.Context) error {
					if c.NArg() != 2 {
						return outputError(errors.NewInvalidRequest("usage: config set <property> <value>"))
					}
					output, err := ops.SetProperty(rt.db, rt.store.Settings(), ops.PropertyInput{
						Application: c.String("app"),
						Property:    c.Args().Get(0),
						Value:       c.Args().Get(1),
					})
					if err != nil {
						return outputError(err)
					}
					return outputJSON(output)
				},
			},
			{
				Name:  "list",
				Usage: "List stored properties",
				Flags: []cli.Flag{appFlag},
				Action: func(c *cli.Context) error {
					output, err := ops.ListProperties(rt.db, c.String("app"))
					if err != nil {
						return outputError(err)
					}
					return outputJSON(output)
				},
			},
			{
				Name:      "delete",
				Usage:     "Remove a stored property",
				ArgsUsage: "<property>",
				Flags:     []cli.Flag{appFlag},
				Action: func(c *cli.Context) error {
					output, err := ops.DeleteProperty(rt.db, rt.store.Settings(), ops.PropertyInput{
						Application: c.String("app"),
						Property:    c.Args().First(),
					})
					if err != nil {
						return outputError(err)
					}
					return outputJSON(output)
				},
			},
		},
	}
}

// serveCmd creates the serve command.
func serveCmd(rt *runtime) *cli.Command {
	return &cli.Command{
		Name:  "serve",
		Usage: "Serve a read-only HTTP API over the store",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "bind", Value: "127.0.0.1", Usage: "Address to bind"},
			&cli.IntFlag{Name: "port", Value: 8787, Usage: "Port to listen on"},
		},
		Action: func(c *cli.Context) error {
			srv := web.NewServer(rt.db, rt.store, rt.log, c.String("bind"), c.Int("port"))
			if err := web.Run(srv, rt.log); err != nil && err != http.ErrServerClosed {
				return outputError(err)
			}
			return nil
		},
	}
}

// Helper functions

// outputJSON marshals result to stdout as JSON.
func outputJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// outputError formats error for CLI.
func outputError(err error) error {
	if claimErr, ok := err.(*errors.ClaimError); ok {
		return cli.Exit(fmt.Sprintf("[%s] %s", claimErr.Code, claimErr.Message), 1)
	}
	return cli.Exit(err.Error(), 1)
}

// stdinHasData returns true if stdin has piped data (not a terminal).
func stdinHasData() bool {
	stat, err := os.Stdin.Stat()
	if err != nil {
		return false
	}
	return (stat.Mode() & os.ModeCharDevice) == 0
}

// readStdin reads all content from stdin. Payload bytes are kept as is.
func readStdin() (string, error) {
	data, err := io.ReadAll(os.Stdin)
	if err != nil {
		return "", err
	}
	return string(data), nil
}
