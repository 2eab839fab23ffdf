package main

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/urfave/cli/v2"

	"github.com/hpungsan/promptshrink/internal/config"
	"github.com/hpungsan/promptshrink/internal/db"
	"github.com/hpungsan/promptshrink/internal/errors"
	"github.com/hpungsan/promptshrink/internal/optimize"
	"github.com/hpungsan/promptshrink/internal/tokenizer"
	"github.com/hpungsan/promptshrink/internal/web"
)

// newCLIApp creates the CLI application with all commands.
func newCLIApp(database *sql.DB, cfg *config.Config, tokenizers *tokenizer.Registry) *cli.App {
	app := &cli.App{
		Name:    "promptshrink",
		Usage:   "Cross-lingual, catalog-driven prompt token reduction",
		Version: Version,
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "config", Usage: "Path to a YAML config overlay, merged on top of ~/.promptshrink/config.json"},
		},
		Before: func(c *cli.Context) error {
			path := c.String("config")
			if path == "" || cfg == nil {
				return nil
			}
			overlay, err := config.LoadYAMLOverlay(path)
			if err != nil {
				return outputError(errors.NewInvalidRequest("failed to load --config: " + err.Error()))
			}
			*cfg = *config.Merge(cfg, overlay)
			return nil
		},
		Commands: []*cli.Command{
			optimizeCmd(database, cfg, tokenizers),
			patternsCmd(database),
			conceptsCmd(database),
			serveCmd(database, cfg, tokenizers),
		},
	}
	// Disable default exit error handler to allow proper error return in tests
	app.ExitErrHandler = func(_ *cli.Context, _ error) {}
	return app
}

// optimizeCmd creates the optimize command. It is the CLI's only write-like
// surface over the pipeline; catalog mutation stays confined to the
// feedback-triggered update path, per spec.md §4.8.
func optimizeCmd(database *sql.DB, cfg *config.Config, tokenizers *tokenizer.Registry) *cli.Command {
	return &cli.Command{
		Name:  "optimize",
		Usage: "Optimize a prompt for token count (reads prompt from stdin)",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "tokenizer", Aliases: []string{"t"}, Usage: "Tokenizer id: cl100k_base, claude, or word_heuristic"},
			&cli.StringFlag{Name: "output-language", Aliases: []string{"l"}, Usage: "Output-language directive, e.g. zh"},
			&cli.Float64Flag{Name: "confidence-threshold", Aliases: []string{"c"}, Usage: "Minimum calibrated confidence to apply a rewrite"},
			&cli.BoolFlag{Name: "aggressive", Aliases: []string{"a"}, Usage: "Lower the confidence floor and allow non-token-saving structural rewrites"},
			&cli.StringFlag{Name: "selection-policy", Usage: "min_tokens|same_language|prefer_original_language"},
			&cli.StringFlag{Name: "protection-policy", Usage: "conservative|aggressive"},
			&cli.StringFlag{Name: "directive-format", Usage: "bracketed|instructive|xml|natural|none"},
		},
		Action: func(c *cli.Context) error {
			if !stdinHasData() {
				return outputError(errors.NewInvalidRequest("prompt must be piped via stdin"))
			}
			prompt, err := readStdin()
			if err != nil {
				return outputError(errors.NewInternal(err))
			}
			if prompt == "" {
				return outputError(errors.NewInvalidRequest("prompt is required"))
			}

			req := optimize.Request{
				Prompt:              prompt,
				TokenizerID:         c.String("tokenizer"),
				OutputLanguage:      c.String("output-language"),
				ConfidenceThreshold: c.Float64("confidence-threshold"),
				Aggressive:          c.Bool("aggressive"),
				SelectionPolicy:     optimize.SelectionPolicy(c.String("selection-policy")),
				ProtectionPolicy:    c.String("protection-policy"),
				DirectiveFormat:     optimize.DirectiveFormat(c.String("directive-format")),
			}

			result, err := optimize.Run(context.Background(), database, cfg, tokenizers, req)
			if err != nil {
				return outputError(err)
			}

			return outputJSON(result)
		},
	}
}

// patternsCmd creates the `patterns` command group, read-only catalog
// inspection over internal/catalog.
func patternsCmd(database *sql.DB) *cli.Command {
	return &cli.Command{
		Name:  "patterns",
		Usage: "Inspect the pattern catalog",
		Subcommands: []*cli.Command{
			{
				Name:  "list",
				Usage: "List all catalog patterns",
				Action: func(c *cli.Context) error {
					patterns, err := db.LoadPatterns(database)
					if err != nil {
						return outputError(err)
					}
					return outputJSON(patterns)
				},
			},
		},
	}
}

// conceptsCmd creates the `concepts` command group, read-only catalog
// inspection over internal/catalog.
func conceptsCmd(database *sql.DB) *cli.Command {
	return &cli.Command{
		Name:  "concepts",
		Usage: "Inspect the concept catalog",
		Subcommands: []*cli.Command{
			{
				Name:  "list",
				Usage: "List all catalog concepts",
				Action: func(c *cli.Context) error {
					concepts, err := db.ListConcepts(database)
					if err != nil {
						return outputError(err)
					}
					return outputJSON(concepts)
				},
			},
		},
	}
}

// serveCmd creates the serve command, starting the review UI and JSON API
// over HTTP.
func serveCmd(database *sql.DB, cfg *config.Config, tokenizers *tokenizer.Registry) *cli.Command {
	return &cli.Command{
		Name:  "serve",
		Usage: "Start the review UI and JSON API over HTTP",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "bind", Value: "127.0.0.1", Usage: "Address to bind"},
			&cli.IntFlag{Name: "port", Aliases: []string{"p"}, Value: 8080, Usage: "Port to listen on"},
		},
		Action: func(c *cli.Context) error {
			srv := web.NewServer(database, cfg, tokenizers, Version, c.String("bind"), c.Int("port"))
			if err := web.Run(srv); err != nil {
				return outputError(errors.NewInternal(err))
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
	if optErr, ok := err.(*errors.OptimizeError); ok {
		return cli.Exit(fmt.Sprintf("[%s] %s", optErr.Code, optErr.Message), 1)
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

// readStdin reads all content from stdin.
func readStdin() (string, error) {
	data, err := io.ReadAll(os.Stdin)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(string(data)), nil
}
