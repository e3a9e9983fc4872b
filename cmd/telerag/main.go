// Copyright 2025 The telerag authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package main

import (
	"fmt"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/urfave/cli/v2"

	"github.com/telerag/telerag"
	"github.com/telerag/telerag/ai"
	"github.com/telerag/telerag/config"
	"github.com/telerag/telerag/scraper/file"
	"github.com/telerag/telerag/storage/badger"
)

func main() {
	app := &cli.App{
		Name:  "telerag",
		Usage: "Question answering over subscribed channel content",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "log-level",
				Aliases: []string{"l"},
				Usage:   "Set logging level (debug, info, warn, error)",
				Value:   "info",
			},
		},
		Before: setupLogger,
		Commands: []*cli.Command{
			{
				Name:   "serve",
				Usage:  "Run the ingestion and query service",
				Action: serveCommand,
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:    "config",
						Aliases: []string{"c"},
						Usage:   "Path to the configuration file",
					},
					&cli.StringFlag{
						Name:  "channels-dir",
						Usage: "Directory of channel content files (file-backed content source)",
						Value: "channels",
					},
				},
			},
			{
				Name:   "channels",
				Usage:  "List registered channels and their subscriber counts",
				Action: channelsCommand,
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:    "config",
						Aliases: []string{"c"},
						Usage:   "Path to the configuration file",
					},
				},
			},
		},
	}

	if err := app.Run(os.Args); err != nil {
		log.Fatal(err)
	}
}

func serveCommand(c *cli.Context) error {
	cfg, err := config.Load(c.String("config"))
	if err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	client, err := file.NewClient(c.String("channels-dir"))
	if err != nil {
		return fmt.Errorf("opening channel directory: %w", err)
	}

	opts := []telerag.ServiceOption{
		telerag.WithAIConfig(ai.NewConfig(
			ai.WithEmbeddingHost(cfg.AI.EmbeddingHost),
			ai.WithCompletionHost(cfg.AI.CompletionHost),
			ai.WithEmbeddingModel(cfg.AI.EmbeddingModel),
			ai.WithCompletionModel(cfg.AI.CompletionModel),
			ai.WithToken(cfg.AI.Token),
		)),
		telerag.WithHistoryLimit(cfg.Scraper.HistoryLimit),
		telerag.WithMaxChunkSize(cfg.RAG.MaxChunkSize),
		telerag.WithTopResults(cfg.RAG.TopResults),
		telerag.WithLanguage(cfg.RAG.Language),
	}
	if cfg.Storage.InMemory {
		opts = append(opts, telerag.WithInMemoryStorage())
	} else {
		opts = append(opts, telerag.WithStoragePath(cfg.Storage.Path))
	}

	svc, err := telerag.NewService(client, opts...)
	if err != nil {
		return err
	}
	defer svc.Close()

	ctx, stop := signal.NotifyContext(c.Context, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := svc.Start(ctx); err != nil {
		return err
	}
	slog.Info("service started", "storage", cfg.Storage.Path, "in_memory", cfg.Storage.InMemory)

	<-ctx.Done()
	slog.Info("shutting down")
	return nil
}

func channelsCommand(c *cli.Context) error {
	cfg, err := config.Load(c.String("config"))
	if err != nil {
		return err
	}
	if cfg.Storage.InMemory {
		return fmt.Errorf("in-memory storage holds no channels to list")
	}

	backend, err := badger.OpenBackend(cfg.Storage.Path, false)
	if err != nil {
		return fmt.Errorf("opening store: %w", err)
	}
	defer backend.Close()

	channels, err := badger.NewAccountRepository(backend).ListChannels(c.Context)
	if err != nil {
		return err
	}
	if len(channels) == 0 {
		fmt.Println("no channels registered")
		return nil
	}
	for _, channel := range channels {
		fmt.Printf("%d\t%q\t%d subscriber(s)\n", channel.ID, channel.Title, channel.Subscribers)
	}
	return nil
}

func setupLogger(c *cli.Context) error {
	levelStr := strings.ToLower(c.String("log-level"))

	var level slog.Level
	switch levelStr {
	case "debug":
		level = slog.LevelDebug
	case "info":
		level = slog.LevelInfo
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		return fmt.Errorf("invalid log level %q: must be one of debug, info, warn, error", levelStr)
	}

	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: level,
	}))
	slog.SetDefault(logger)

	return nil
}
