// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"sort"
	"strings"
)

// slashCommands are the REPL commands offered by tab completion.
var slashCommands = []string{
	"/clear", "/export", "/help", "/model", "/models", "/params", "/quit",
}

var paramsSubcommands = []string{"reset", "set"}

// Complete returns full-line completions for line: command names, then model
// names after /model and subcommands after /params.
func (s *ChatSession) Complete(line string) []string {
	if !strings.HasPrefix(line, "/") {
		return nil
	}

	command, arg, hasArg := strings.Cut(line, " ")
	if !hasArg {
		return withPrefix(slashCommands, command, "")
	}

	switch strings.ToLower(command) {
	case "/model", "/m":
		var names []string
		for _, opt := range s.ctrl.Models() {
			if !opt.Sentinel() {
				names = append(names, opt.Value)
			}
		}
		return withPrefix(names, arg, command+" ")
	case "/params", "/p":
		if strings.Contains(arg, " ") {
			return nil
		}
		return withPrefix(paramsSubcommands, arg, command+" ")
	}
	return nil
}

// withPrefix returns lead+c for every candidate c starting with prefix, sorted.
func withPrefix(candidates []string, prefix, lead string) []string {
	var out []string
	for _, c := range candidates {
		if strings.HasPrefix(c, prefix) {
			out = append(out, lead+c)
		}
	}
	sort.Strings(out)
	return out
}
