// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"

	"github.com/jeranaias/ollama-chat/internal/util"
	"github.com/jeranaias/ollama-chat/internal/widget"
)

// HandleModels lists the models the backend offers. The first model, or the
// --model one when offered, is marked as the selection the front ends would
// start with.
func HandleModels(args Args, w io.Writer) error {
	cfg, err := LoadConfig(args, os.Stderr)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(context.Background(), cfg.RequestTimeout())
	defer cancel()

	backend := widget.NewHTTPBackend(cfg.Client.BackendURL, &http.Client{Timeout: cfg.RequestTimeout()})
	return listModels(ctx, backend, args, w)
}

func listModels(ctx context.Context, backend *widget.HTTPBackend, args Args, w io.Writer) error {
	return OutputJSON(w, args.JSON, "models", func() (interface{}, error) {
		start := time.Now()
		reply, err := backend.ListModels(ctx)
		if err != nil {
			return nil, NewCommandError("models", "list", "backend unreachable at "+backend.BaseURL(), err)
		}
		if reply.Error != "" {
			return nil, NewCommandError("models", "list", reply.Error, nil)
		}

		data := ModelsData{Backend: backend.BaseURL(), Models: reply.Models}
		if data.Models == nil {
			data.Models = []string{}
		}
		if len(data.Models) > 0 {
			data.Selected = data.Models[0]
		}
		for _, name := range data.Models {
			if name == args.Model {
				data.Selected = name
			}
		}

		if !args.JSON {
			printModelList(w, data, time.Since(start), args.Quiet)
		}
		return data, nil
	})
}

func printModelList(w io.Writer, data ModelsData, took time.Duration, quiet bool) {
	if len(data.Models) == 0 {
		fmt.Fprintln(w, DimStyle.Render(widget.SentinelNoModels))
		return
	}

	width := GetTerminalWidth() - 4
	for _, name := range data.Models {
		label := util.TruncateWidth(name, width)
		if name == data.Selected {
			fmt.Fprintf(w, "* %s\n", commandStyle.Render(label))
		} else {
			fmt.Fprintf(w, "  %s\n", label)
		}
	}
	if !quiet {
		fmt.Fprintln(w, DimStyle.Render(fmt.Sprintf("%d models from %s (%s)",
			len(data.Models), data.Backend, formatDurationShort(took))))
	}
}
