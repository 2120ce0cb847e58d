// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jeranaias/ollama-chat/internal/config"
	"github.com/jeranaias/ollama-chat/internal/ollama"
	"github.com/jeranaias/ollama-chat/internal/server"
	"github.com/jeranaias/ollama-chat/internal/storage"
)

// shutdownTimeout bounds graceful shutdown; chat turns can be slow.
const shutdownTimeout = 30 * time.Second

// HandleServe runs the chat backend until SIGINT or SIGTERM. When the config
// file exists it is watched, and edits to the Ollama URL, timeout or default
// model take effect without a restart. Command-line flags keep precedence.
func HandleServe(args Args) error {
	cfg, err := LoadConfig(args, os.Stderr)
	if err != nil {
		return err
	}

	logger := log.New(os.Stderr, "", log.LstdFlags)

	history, err := storage.Open(cfg.Server.HistoryDB)
	if err != nil {
		return NewCommandError("serve", "open history", cfg.Server.HistoryDB, err)
	}
	defer history.Close()

	srv := server.New(server.Config{
		Addr:            cfg.Server.Addr,
		DefaultModel:    cfg.Server.DefaultModel,
		RateLimitPerMin: cfg.Server.RateLimitPerMin,
		AllowedOrigins:  cfg.Server.AllowedOrigins,
		Logger:          logger,
	}, newOllamaClient(cfg), history)

	if watcher := watchConfig(args, srv, logger); watcher != nil {
		defer watcher.Close()
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Start()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return NewCommandError("serve", "listen", cfg.Server.Addr, err)
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return NewCommandError("serve", "shutdown", "in-flight requests did not finish", err)
	}
	return nil
}

func newOllamaClient(cfg *config.Config) *ollama.Client {
	return ollama.NewClientWithConfig(&ollama.ClientConfig{
		BaseURL: cfg.Server.OllamaURL,
		Timeout: cfg.OllamaTimeout(),
	})
}

// watchConfig starts a config watcher that reconfigures srv. It returns nil
// when there is no file to watch or watching failed.
func watchConfig(args Args, srv *server.Server, logger *log.Logger) *config.Watcher {
	path, err := configFilePath(args)
	if err != nil {
		return nil
	}
	if _, err := os.Stat(path); err != nil {
		return nil
	}

	watcher, err := config.NewWatcher(path, config.DefaultDebounce, func(next *config.Config) {
		applyFlagOverrides(next, args)
		logger.Printf("CONFIG_RELOADED | path=%s ollama_url=%s", path, next.Server.OllamaURL)
		srv.Reconfigure(newOllamaClient(next), next.Server.DefaultModel)
	})
	if err != nil {
		logger.Printf("CONFIG_WATCH_FAILED | path=%s error=%v", path, err)
		return nil
	}
	watcher.OnError(func(err error) {
		logger.Printf("CONFIG_RELOAD_FAILED | path=%s error=%v", path, err)
	})
	if err := watcher.Watch(); err != nil {
		watcher.Close()
		logger.Printf("CONFIG_WATCH_FAILED | path=%s error=%v", path, err)
		return nil
	}
	return watcher
}
