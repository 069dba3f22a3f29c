package main

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	"go.uber.org/zap"

	"github.com/hpungsan/claimstore/internal/claimstore"
	"github.com/hpungsan/claimstore/internal/config"
	"github.com/hpungsan/claimstore/internal/db"
	"github.com/hpungsan/claimstore/internal/fetch"
	"github.com/hpungsan/claimstore/internal/logger"
	"github.com/hpungsan/claimstore/internal/mcp"
)

// Version is set via -ldflags at build time.
var Version = "dev"

// cliCommands contains known CLI subcommands.
var cliCommands = map[string]bool{
	"capture": true, "redeem": true,
	"inventory": true, "jobs": true, "catalog": true,
	"config": true, "serve": true, "help": true,
}

// runtime holds what commands and tools operate on.
type runtime struct {
	db       *sql.DB
	store    *claimstore.Store
	provider config.Provider
	log      *zap.Logger
}

// isCLIMode determines if we should run CLI vs MCP server.
func isCLIMode() bool {
	if len(os.Args) < 2 {
		return false // No args → MCP server
	}
	arg := os.Args[1]
	if cliCommands[arg] {
		return true
	}
	if arg == "--help" || arg == "-h" || arg == "--version" || arg == "-v" {
		return true
	}
	return false
}

// isHelpOrVersion returns true if the user is requesting help or version info.
func isHelpOrVersion() bool {
	if len(os.Args) < 2 {
		return false
	}
	arg := os.Args[1]
	return arg == "--help" || arg == "-h" || arg == "--version" || arg == "-v" || arg == "help"
}

// isTerminal returns true if stdin is a terminal (not piped).
func isTerminal() bool {
	stat, _ := os.Stdin.Stat()
	return (stat.Mode() & os.ModeCharDevice) != 0
}

// printBanner displays a friendly banner when run interactively without args.
func printBanner() {
	fmt.Println(`
   ___ _      _   ___ __  __ ___ _____ ___  ___ ___
  / __| |    /_\ |_ _|  \/  / __|_   _/ _ \| _ \ __|
 | (__| |__ / _ \ | || |\/| \__ \ | || (_) |   / _|
  \___|____/_/ \_\___|_|  |_|___/ |_| \___/|_|_\___|

  Claim-check store for large message bodies

  Usage: claimstore <command> [options]
         claimstore --help

  MCP server mode requires piped input.`)
}

// openRuntime wires the database, configuration, logger and store under
// baseDir. Repository config found from startDir overrides the global one.
func openRuntime(baseDir, startDir string) (*runtime, *config.Config, error) {
	database, err := db.Init(baseDir)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to initialize database: %w", err)
	}

	cfg, err := config.LoadWithRepo(baseDir, startDir)
	if err != nil {
		database.Close()
		return nil, nil, fmt.Errorf("failed to load config: %w", err)
	}
	db.ConfigurePool(database, cfg)

	log, err := logger.New(cfg, os.Stderr)
	if err != nil {
		database.Close()
		return nil, nil, err
	}

	env, err := config.NewEnvProvider(filepath.Join(baseDir, ".env"))
	if err != nil {
		database.Close()
		return nil, nil, fmt.Errorf("failed to load environment: %w", err)
	}

	// Environment overrides the property store, which overrides config.json.
	provider := config.Chain{env, db.NewPropertyStore(database), config.NewFileProvider(cfg)}

	store := claimstore.New(
		claimstore.NewSettings(provider, cfg.Application),
		claimstore.WithFetcher(fetch.NewDefaultRegistry(cfg)),
		claimstore.WithRecorder(db.NewCatalog(database)),
		claimstore.WithLogger(log),
	)

	if unknown := mcp.ValidateDisabledTools(cfg.DisabledTools); len(unknown) > 0 {
		log.Warn("ignoring unknown disabled tools", zap.Strings("tools", unknown))
	}

	return &runtime{db: database, store: store, provider: provider, log: log}, cfg, nil
}

func main() {
	// No args + interactive terminal → show banner and exit
	if len(os.Args) < 2 && isTerminal() {
		printBanner()
		return
	}

	// Handle --help/--version before DB init (no DB needed)
	if isHelpOrVersion() {
		app := newCLIApp(nil)
		if err := app.Run(os.Args); err != nil {
			fmt.Fprintf(os.Stderr, "error: %v\n", err)
			os.Exit(1)
		}
		return
	}

	homeDir, err := os.UserHomeDir()
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: could not determine home directory: %v\n", err)
		os.Exit(1)
	}
	cwd, err := os.Getwd()
	if err != nil {
		cwd = homeDir
	}

	rt, cfg, err := openRuntime(filepath.Join(homeDir, ".claimstore"), cwd)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
	defer rt.db.Close()
	defer rt.log.Sync()

	// CLI mode: known subcommand
	if isCLIMode() {
		app := newCLIApp(rt)
		if err := app.Run(os.Args); err != nil {
			fmt.Fprintf(os.Stderr, "error: %v\n", err)
			os.Exit(1)
		}
		return
	}

	// Unknown argument + terminal → show error (don't start MCP server)
	if len(os.Args) >= 2 && isTerminal() {
		fmt.Fprintf(os.Stderr, "error: unknown command %q\n", os.Args[1])
		fmt.Fprintf(os.Stderr, "Run 'claimstore --help' for usage.\n")
		os.Exit(1)
	}

	// MCP server mode (default)
	rt.log.Info("starting MCP server", zap.String("version", Version))
	if err := mcp.Run(rt.db, rt.store, rt.provider, cfg, Version); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}
