// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/jeranaias/ollama-chat/internal/config"
)

// =============================================================================
// LOADING
// =============================================================================

// LoadConfig loads the configuration for a command: the --config file when
// given, otherwise the default file. Flags override file and environment.
//
// A default config file that fails to decode is reported on warn and the
// defaults are used; an explicit --config file that fails is an error.
func LoadConfig(args Args, warn io.Writer) (*config.Config, error) {
	var (
		cfg *config.Config
		err error
	)
	if args.ConfigPath != "" {
		cfg, err = config.LoadFromPath(args.ConfigPath)
		if err != nil {
			return nil, err
		}
	} else {
		cfg, err = config.Load()
		if cfg == nil {
			return nil, err
		}
		if err != nil {
			fmt.Fprintf(warn, "Warning: %v (using defaults)\n", err)
		}
	}

	cfg = cfg.Clone()
	applyFlagOverrides(cfg, args)
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid flags: %w", err)
	}
	return cfg, nil
}

func applyFlagOverrides(cfg *config.Config, args Args) {
	if args.Backend != "" {
		cfg.Client.BackendURL = args.Backend
	}
	if args.Addr != "" {
		cfg.Server.Addr = args.Addr
	}
	if args.HistoryDB != "" {
		cfg.Server.HistoryDB = args.HistoryDB
	}
	if args.OllamaURL != "" {
		cfg.Server.OllamaURL = args.OllamaURL
	}
	if args.RateLimit >= 0 {
		cfg.Server.RateLimitPerMin = args.RateLimit
	}
	if args.Model != "" {
		cfg.Server.DefaultModel = args.Model
	}
}

// configFilePath is where config path and config reset operate.
func configFilePath(args Args) (string, error) {
	if args.ConfigPath != "" {
		return args.ConfigPath, nil
	}
	return config.ActivePath()
}

// =============================================================================
// CONFIG COMMAND
// =============================================================================

// HandleConfig handles "config [show|path|reset]".
func HandleConfig(args Args, w io.Writer) error {
	switch args.Subcommand {
	case "", "show":
		return handleConfigShow(args, w)
	case "path":
		return handleConfigPath(args, w)
	case "reset":
		return handleConfigReset(args, w)
	default:
		return NewValidationErrorWithExample("config subcommand", args.Subcommand,
			"unknown subcommand", "ollama-chat config show")
	}
}

func handleConfigShow(args Args, w io.Writer) error {
	cfg, err := LoadConfig(args, os.Stderr)
	if err != nil {
		return err
	}
	if args.JSON {
		return NewJSONResponse("config show", cfg).Fprint(w)
	}

	path, _ := configFilePath(args)

	fmt.Fprintln(w, TitleStyle.Render("ollama-chat configuration"))

	printSection(w, "[client]", [][2]string{
		{"backend_url", cfg.Client.BackendURL},
		{"request_timeout_secs", strconv.Itoa(cfg.Client.RequestTimeoutSecs)},
	})
	history := cfg.Server.HistoryDB
	if history == "" {
		history = "(memory)"
	}
	origins := strings.Join(cfg.Server.AllowedOrigins, ", ")
	if origins == "" {
		origins = "(same origin)"
	}
	printSection(w, "[server]", [][2]string{
		{"addr", cfg.Server.Addr},
		{"history_db", history},
		{"rate_limit_per_min", strconv.Itoa(cfg.Server.RateLimitPerMin)},
		{"ollama_url", cfg.Server.OllamaURL},
		{"default_model", cfg.Server.DefaultModel},
		{"ollama_timeout_secs", strconv.Itoa(cfg.Server.OllamaTimeoutSecs)},
		{"allowed_origins", origins},
	})
	printSection(w, "[ui]", [][2]string{
		{"theme", cfg.UI.Theme},
		{"word_wrap", strconv.Itoa(cfg.UI.WordWrap)},
	})

	fmt.Fprintln(w, RenderSeparator(41))
	fmt.Fprintf(w, "Config file: %s\n", DimStyle.Render(path))
	return nil
}

func printSection(w io.Writer, name string, rows [][2]string) {
	fmt.Fprintln(w, SectionStyle.Render(name))
	for _, row := range rows {
		fmt.Fprintf(w, "  %s%s\n", RenderLabel(row[0]+":", 24), ValueStyle.Render(row[1]))
	}
}

func handleConfigPath(args Args, w io.Writer) error {
	path, err := configFilePath(args)
	if err != nil {
		return err
	}
	_, statErr := os.Stat(path)
	exists := statErr == nil

	if args.JSON {
		return NewJSONResponse("config path", ConfigPathData{Path: path, Exists: exists}).Fprint(w)
	}

	fmt.Fprintln(w, path)
	if !exists && !args.Quiet {
		fmt.Fprintf(os.Stderr, "%s (file does not exist, defaults are in effect)\n", DimStyle.Render("Note"))
	}
	return nil
}

func handleConfigReset(args Args, w io.Writer) error {
	path, err := configFilePath(args)
	if err != nil {
		return err
	}

	cfg := config.Default()
	if strings.HasSuffix(path, ".json") {
		err = config.SaveJSON(cfg, path)
	} else {
		err = config.SaveTOML(cfg, path)
	}
	if err != nil {
		return NewCommandError("config", "reset", "failed to save config", err)
	}

	if args.JSON {
		return NewJSONResponse("config reset", ConfigPathData{Path: path, Exists: true}).Fprint(w)
	}
	fmt.Fprintf(w, "%s Configuration reset to defaults\n", SuccessStyle.Render("[OK]"))
	fmt.Fprintf(w, "Config file: %s\n", DimStyle.Render(path))
	return nil
}
