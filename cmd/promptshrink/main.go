package main

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	"github.com/hpungsan/promptshrink/internal/config"
	"github.com/hpungsan/promptshrink/internal/db"
	"github.com/hpungsan/promptshrink/internal/mcp"
	"github.com/hpungsan/promptshrink/internal/rewrite"
	"github.com/hpungsan/promptshrink/internal/tokenizer"
)

// Version is set via -ldflags at build time.
var Version = "dev"

// cliCommands contains known CLI subcommands.
var cliCommands = map[string]bool{
	"optimize": true, "patterns": true, "concepts": true, "serve": true,
	"help": true,
}

// isCLIMode determines if we should run CLI vs MCP server.
func isCLIMode() bool {
	if len(os.Args) < 2 {
		return false // No args → MCP server
	}
	arg := os.Args[1]
	// Known subcommand → CLI
	if cliCommands[arg] {
		return true
	}
	// --help or --version → CLI
	if arg == "--help" || arg == "-h" || arg == "--version" || arg == "-v" {
		return true
	}
	return false // Default → MCP server
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
  ____                            _   ____  _          _       _
 |  _ \ _ __ ___  _ __ ___  _ __ | |_/ ___|| |__  _ __(_)_ __ | | __
 | |_) | '__/ _ \| '_ ' _ \| '_ \| __\___ \| '_ \| '__| | '_ \| |/ /
 |  __/| | | (_) | | | | | | |_) | |_ ___) | | | | |  | | | | |   <
 |_|   |_|  \___/|_| |_| |_| .__/ \__|____/|_| |_|_|  |_|_| |_|_|\_\
                           |_|

  Cross-lingual, catalog-driven prompt token reduction

  Usage: promptshrink optimize [options]     (reads prompt from stdin)
         promptshrink patterns list
         promptshrink concepts list
         promptshrink serve [options]
         promptshrink --help

  MCP server mode requires piped input.`)
}

func main() {
	// No args + interactive terminal → show banner and exit
	if len(os.Args) < 2 && isTerminal() {
		printBanner()
		return
	}

	// Handle --help/--version before DB init (no DB needed)
	if isHelpOrVersion() {
		app := newCLIApp(nil, nil, nil)
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

	baseDir := filepath.Join(homeDir, ".promptshrink")

	database, err := db.Init(baseDir)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: failed to initialize database: %v\n", err)
		os.Exit(1)
	}
	defer database.Close()

	cwd, err := os.Getwd()
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: could not determine working directory: %v\n", err)
		os.Exit(1)
	}

	cfg, err := config.LoadWithRepo(baseDir, cwd)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: failed to load config: %v\n", err)
		os.Exit(1)
	}
	db.ConfigurePool(database, cfg)

	if err := seedIfEmpty(database); err != nil {
		fmt.Fprintf(os.Stderr, "error: failed to seed catalog: %v\n", err)
		os.Exit(1)
	}

	tokenizers := tokenizer.NewRegistry()

	// CLI mode: known subcommand
	if isCLIMode() {
		app := newCLIApp(database, cfg, tokenizers)
		if err := app.Run(os.Args); err != nil {
			fmt.Fprintf(os.Stderr, "error: %v\n", err)
			os.Exit(1)
		}
		return
	}

	// Unknown argument + terminal → show error (don't start MCP server)
	if len(os.Args) >= 2 && isTerminal() {
		fmt.Fprintf(os.Stderr, "error: unknown command %q\n", os.Args[1])
		fmt.Fprintf(os.Stderr, "Run 'promptshrink --help' for usage.\n")
		os.Exit(1)
	}

	// MCP server mode (default)
	if err := mcp.Run(database, cfg, tokenizers, Version); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

// seedIfEmpty populates the pattern and concept catalogs on first run
// against a fresh database, the same way db.Init lays down the schema on
// first run.
func seedIfEmpty(database *sql.DB) error {
	patterns, err := db.LoadPatterns(database)
	if err != nil {
		return err
	}
	if len(patterns) == 0 {
		for _, p := range rewrite.SeedPatterns() {
			if err := db.InsertPattern(database, p); err != nil {
				return err
			}
		}
	}

	concepts, err := db.ListConcepts(database)
	if err != nil {
		return err
	}
	if len(concepts) == 0 {
		for _, sc := range rewrite.SeedConcepts() {
			if err := db.UpsertConcept(database, sc.Concept); err != nil {
				return err
			}
			for _, f := range sc.SurfaceForms {
				if err := db.InsertSurfaceForm(database, f); err != nil {
					return err
				}
			}
		}
	}

	return nil
}
