// Copyright 2025 Poiesic Systems
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
	"context"
	"fmt"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/urfave/cli/v2"

	"github.com/poiesic/newswire"
	"github.com/poiesic/newswire/ai"
	"github.com/poiesic/newswire/ai/ollama"
	"github.com/poiesic/newswire/feedback"
	"github.com/poiesic/newswire/pipeline"
	"github.com/poiesic/newswire/publish"
	"github.com/poiesic/newswire/retrying"
	"github.com/poiesic/newswire/similarity"
	"github.com/poiesic/newswire/storage/badger"
)

func main() {
	app := &cli.App{
		Name:  "newswire",
		Usage: "Operations tooling for the newswire content aggregator",
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
				Name:   "run",
				Usage:  "Run the aggregation pipeline until interrupted",
				Action: runCommand,
				Flags: []cli.Flag{
					dbFlag(),
					&cli.DurationFlag{
						Name:  "poll-interval",
						Usage: "Batch cycle period",
						Value: pipeline.DefaultPollInterval,
					},
					&cli.DurationFlag{
						Name:  "retention",
						Usage: "Retention window for processed state",
						Value: pipeline.DefaultRetention,
					},
					&cli.Float64Flag{
						Name:  "duplicate-threshold",
						Usage: "Cosine similarity at which items are dups",
						Value: similarity.DefaultDuplicateThreshold,
					},
					&cli.Float64Flag{
						Name:  "similar-threshold",
						Usage: "Cosine similarity at which items are low signal",
						Value: similarity.DefaultSimilarThreshold,
					},
					&cli.IntFlag{
						Name:  "max-retries",
						Usage: "Retry budget per failed item",
						Value: retrying.DefaultMaxRetries,
					},
					&cli.StringFlag{
						Name:  "host",
						Usage: "Ollama server URL",
						Value: "http://localhost:11434",
					},
					&cli.StringFlag{
						Name:  "embedding-model",
						Usage: "Embedding model name",
						Value: "nomic-embed-text",
					},
					&cli.StringFlag{
						Name:  "classifier-model",
						Usage: "Classification model name",
						Value: "qwen2.5:3b",
					},
				},
			},
			{
				Name:   "stats",
				Usage:  "Show sizes of the persisted pipeline state",
				Action: statsCommand,
				Flags:  []cli.Flag{dbFlag()},
			},
			{
				Name:   "cleanup",
				Usage:  "Remove processed ids and embeddings outside the retention window",
				Action: cleanupCommand,
				Flags: []cli.Flag{
					dbFlag(),
					&cli.DurationFlag{
						Name:  "retention",
						Usage: "Retention window for processed state",
						Value: 48 * time.Hour,
					},
				},
			},
			{
				Name:   "previews",
				Usage:  "Show previews of recently removed entries",
				Action: previewsCommand,
				Flags: []cli.Flag{
					dbFlag(),
					&cli.IntFlag{
						Name:  "limit",
						Usage: "Maximum number of previews",
						Value: feedback.DefaultPreviewLimit,
					},
					&cli.IntFlag{
						Name:  "max-length",
						Usage: "Preview truncation length",
						Value: feedback.DefaultPreviewMaxLen,
					},
				},
			},
			{
				Name:      "similar",
				Usage:     "Embed a query and look it up against stored content",
				ArgsUsage: "<text>",
				Action:    similarCommand,
				Flags: []cli.Flag{
					dbFlag(),
					&cli.StringFlag{
						Name:  "host",
						Usage: "Ollama server URL",
						Value: "http://localhost:11434",
					},
					&cli.StringFlag{
						Name:  "model",
						Usage: "Embedding model name",
						Value: "nomic-embed-text",
					},
					&cli.Float64Flag{
						Name:  "threshold",
						Usage: "Minimum cosine similarity",
						Value: similarity.DefaultSimilarThreshold,
					},
				},
			},
			{
				Name:      "restore",
				Usage:     "Take an entry out of the removed archive",
				ArgsUsage: "<entry-id>",
				Action:    restoreCommand,
				Flags:     []cli.Flag{dbFlag()},
			},
			{
				Name:   "purge",
				Usage:  "Purge archived removals past the long retention horizon",
				Action: purgeCommand,
				Flags: []cli.Flag{
					dbFlag(),
					&cli.DurationFlag{
						Name:  "retention",
						Usage: "Archive retention horizon",
						Value: feedback.DefaultRetention,
					},
				},
			},
		},
	}

	if err := app.Run(os.Args); err != nil {
		log.Fatal(err)
	}
}

func dbFlag() cli.Flag {
	return &cli.StringFlag{
		Name:     "db",
		Aliases:  []string{"d"},
		Usage:    "Path to BadgerDB database directory",
		Required: true,
	}
}

func runCommand(c *cli.Context) error {
	pollInterval := c.Duration("poll-interval")
	if pollInterval <= 0 {
		pollInterval = pipeline.DefaultPollInterval
	}
	cyclesPerHour := int(time.Hour / pollInterval)
	if cyclesPerHour < 1 {
		cyclesPerHour = 1
	}

	agg, err := newswire.Open(c.String("db"),
		newswire.WithAIConfig(ai.NewConfig(
			ai.WithHost(c.String("host")),
			ai.WithEmbeddingModel(c.String("embedding-model")),
			ai.WithClassifierModel(c.String("classifier-model")),
		)),
		newswire.WithSimilarityThresholds(
			c.Float64("duplicate-threshold"), c.Float64("similar-threshold")),
		newswire.WithRetryOptions(
			retrying.WithMaxRetries(c.Int("max-retries")),
			retrying.WithCyclesPerHour(cyclesPerHour),
		),
	)
	if err != nil {
		return err
	}
	defer agg.Close()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Pollers and the real sink are registered by the embedding
	// application; standalone runs log what would be published.
	orch, err := agg.NewOrchestrator(ctx, publish.NewLogPublisher(nil),
		pipeline.WithPollInterval(pollInterval),
		pipeline.WithRetention(c.Duration("retention")),
	)
	if err != nil {
		return err
	}
	defer orch.Release()

	slog.Info("pipeline running", "poll_interval", pollInterval.String())
	return orch.Run(ctx)
}

func statsCommand(c *cli.Context) error {
	backend, state, err := openState(c)
	if err != nil {
		return err
	}
	defer backend.Close()
	defer state.Close()

	stats, err := state.Stats(context.Background())
	if err != nil {
		return err
	}
	fmt.Printf("processed ids: %d\n", stats.ProcessedIds)
	fmt.Printf("embeddings:    %d\n", stats.Embeddings)
	fmt.Printf("mappings:      %d\n", stats.Mappings)
	return nil
}

func cleanupCommand(c *cli.Context) error {
	backend, state, err := openState(c)
	if err != nil {
		return err
	}
	defer backend.Close()
	defer state.Close()

	removed, err := state.CleanupOlderThan(context.Background(), c.Duration("retention"))
	if err != nil {
		return err
	}
	fmt.Printf("removed %d stale records\n", removed)
	return nil
}

func previewsCommand(c *cli.Context) error {
	backend, archive, err := openArchive(c)
	if err != nil {
		return err
	}
	defer backend.Close()

	previews, err := archive.ContentPreviews(context.Background(), c.Int("limit"), c.Int("max-length"))
	if err != nil {
		return err
	}
	if len(previews) == 0 {
		fmt.Println("no removed entries")
		return nil
	}
	for i, preview := range previews {
		fmt.Printf("%2d. %s\n", i+1, preview)
	}
	return nil
}

func similarCommand(c *cli.Context) error {
	query := strings.TrimSpace(c.Args().First())
	if query == "" {
		return fmt.Errorf("query text is required")
	}

	embedder, err := ollama.NewEmbedder(ai.NewConfig(
		ai.WithHost(c.String("host")),
		ai.WithEmbeddingModel(c.String("model")),
	))
	if err != nil {
		return err
	}

	backend, state, err := openState(c)
	if err != nil {
		return err
	}
	defer backend.Close()
	defer state.Close()

	ctx := context.Background()
	vector, err := embedder.EmbedText(ctx, query)
	if err != nil {
		return err
	}

	match, err := state.FindSimilar(ctx, vector, c.Float64("threshold"))
	if err != nil {
		return err
	}
	if match == nil {
		fmt.Println("no match above threshold")
		return nil
	}
	fmt.Printf("score:   %.4f\n", match.Score)
	fmt.Printf("hash:    %s\n", match.Hash)
	fmt.Printf("preview: %s\n", match.Preview)
	return nil
}

func restoreCommand(c *cli.Context) error {
	entryId := c.Args().First()
	if entryId == "" {
		return fmt.Errorf("entry id is required")
	}
	backend, archive, err := openArchive(c)
	if err != nil {
		return err
	}
	defer backend.Close()

	entry, err := archive.Restore(context.Background(), entryId)
	if err != nil {
		return err
	}
	fmt.Printf("restored %s (category %s, removed by %s)\n",
		entry.EntryId, entry.Category, strings.Join(entry.VoterIds, ", "))
	return nil
}

func purgeCommand(c *cli.Context) error {
	backend, archive, err := openArchiveWithRetention(c, c.Duration("retention"))
	if err != nil {
		return err
	}
	defer backend.Close()

	removed, err := archive.Purge(context.Background())
	if err != nil {
		return err
	}
	fmt.Printf("purged %d archived entries\n", removed)
	return nil
}

func openState(c *cli.Context) (*badger.Backend, *badger.StateRepository, error) {
	backend, err := badger.OpenBackend(c.String("db"), false)
	if err != nil {
		return nil, nil, err
	}
	state, err := badger.NewStateRepository(backend)
	if err != nil {
		backend.Close()
		return nil, nil, err
	}
	return backend, state, nil
}

func openArchive(c *cli.Context) (*badger.Backend, *feedback.Archive, error) {
	return openArchiveWithRetention(c, feedback.DefaultRetention)
}

func openArchiveWithRetention(c *cli.Context, retention time.Duration) (*badger.Backend, *feedback.Archive, error) {
	backend, err := badger.OpenBackend(c.String("db"), false)
	if err != nil {
		return nil, nil, err
	}
	repo, err := badger.NewArchiveRepository(backend)
	if err != nil {
		backend.Close()
		return nil, nil, err
	}
	return backend, feedback.NewArchive(repo, feedback.WithRetention(retention)), nil
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
		return fmt.Errorf("invalid log level: %s", levelStr)
	}

	handler := slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})
	slog.SetDefault(slog.New(handler))
	return nil
}
