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
	"errors"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/urfave/cli/v2"

	"github.com/poiesic/vecsync"
	"github.com/poiesic/vecsync/core"
	"github.com/poiesic/vecsync/pipeline"
	"github.com/poiesic/vecsync/storage"
)

func main() {
	if err := newApp().Run(os.Args); err != nil {
		log.Fatal(err)
	}
}

func newApp() *cli.App {
	return &cli.App{
		Name:  "vecsync",
		Usage: "Incremental sync of changed source records into a vector-searchable destination",
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
				Usage:  "Run the sync pipeline once, or repeatedly with --every",
				Action: runCommand,
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:  "config",
						Usage: "Path to YAML config file",
					},
					&cli.StringFlag{
						Name:    "db",
						Aliases: []string{"d"},
						Usage:   "Path to BadgerDB database directory",
					},
					&cli.StringFlag{
						Name:  "pipeline",
						Usage: "Pipeline name; each pipeline keeps its own watermark",
						Value: "records",
					},
					&cli.StringFlag{
						Name:  "embedding-host",
						Usage: "Embedding service host URL",
						Value: "http://localhost:11434/v1",
					},
					&cli.StringFlag{
						Name:  "embedding-model",
						Usage: "Embedding model name",
						Value: "embeddinggemma",
					},
					&cli.Float64Flag{
						Name:  "embedding-rps",
						Usage: "Embedding request rate limit per second (0 = unlimited)",
					},
					&cli.StringSliceFlag{
						Name:  "redis-addr",
						Usage: "Redis address for shared watermarks and leases (repeatable)",
					},
					&cli.IntFlag{
						Name:  "batch-size",
						Usage: "Number of records to process in each batch",
						Value: 500,
					},
					&cli.IntFlag{
						Name:  "workers",
						Usage: "Number of concurrent embedding workers (0 = all CPUs)",
					},
					&cli.IntFlag{
						Name:  "max-retries",
						Usage: "Maximum retry attempts for failed operations",
						Value: 3,
					},
					&cli.DurationFlag{
						Name:  "retry-delay",
						Usage: "Base delay for exponential backoff",
						Value: 1 * time.Second,
					},
					&cli.DurationFlag{
						Name:  "embed-timeout",
						Usage: "Timeout for a single embedding call",
						Value: 30 * time.Second,
					},
					&cli.DurationFlag{
						Name:  "lease-ttl",
						Usage: "How long a crashed runner blocks its pipeline",
						Value: 5 * time.Minute,
					},
					&cli.IntFlag{
						Name:  "report-interval",
						Usage: "Report progress every N records",
						Value: 500,
					},
					&cli.StringFlag{
						Name:  "metrics-addr",
						Usage: "Address for the Prometheus /metrics endpoint (empty = disabled)",
					},
					&cli.StringFlag{
						Name:  "owner",
						Usage: "Lease owner identity (defaults to a generated one)",
					},
					&cli.DurationFlag{
						Name:  "every",
						Usage: "Keep running, starting a new sync this often (0 = run once)",
					},
				},
			},
			{
				Name:   "status",
				Usage:  "Show the watermark, lease, and record counts of a pipeline",
				Action: statusCommand,
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:  "config",
						Usage: "Path to YAML config file",
					},
					&cli.StringFlag{
						Name:    "db",
						Aliases: []string{"d"},
						Usage:   "Path to BadgerDB database directory",
					},
					&cli.StringFlag{
						Name:  "pipeline",
						Usage: "Pipeline name",
						Value: "records",
					},
					&cli.StringSliceFlag{
						Name:  "redis-addr",
						Usage: "Redis address for shared watermarks and leases (repeatable)",
					},
				},
			},
			{
				Name:   "seed",
				Usage:  "Add synthetic source records for trying out the pipeline",
				Action: seedCommand,
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:  "config",
						Usage: "Path to YAML config file",
					},
					&cli.StringFlag{
						Name:    "db",
						Aliases: []string{"d"},
						Usage:   "Path to BadgerDB database directory",
					},
					&cli.IntFlag{
						Name:  "count",
						Usage: "Number of new records to add",
						Value: 100,
					},
					&cli.IntFlag{
						Name:  "edit",
						Usage: "Number of existing records to modify",
					},
					&cli.StringFlag{
						Name:  "record-owner",
						Usage: "Owner ID stamped on seeded records",
						Value: "seed",
					},
				},
			},
		},
	}
}

// resolveConfig merges the optional config file with command line flags.
// Explicit flags win over the file; defaults fill the rest.
func resolveConfig(c *cli.Context) (runnerConfig, error) {
	var cfg runnerConfig
	if path := c.String("config"); path != "" {
		loaded, err := loadConfig(path)
		if err != nil {
			return runnerConfig{}, err
		}
		cfg = loaded
	} else {
		cfg.applyDefaults()
	}

	if c.IsSet("db") {
		cfg.DB = c.String("db")
	}
	if c.IsSet("pipeline") {
		cfg.Pipeline = c.String("pipeline")
	}
	if c.IsSet("embedding-host") {
		cfg.Embedding.Host = c.String("embedding-host")
	}
	if c.IsSet("embedding-model") {
		cfg.Embedding.Model = c.String("embedding-model")
	}
	if c.IsSet("embedding-rps") {
		cfg.Embedding.RequestsPerSecond = c.Float64("embedding-rps")
	}
	if c.IsSet("redis-addr") {
		cfg.Redis.Addrs = c.StringSlice("redis-addr")
	}
	if c.IsSet("batch-size") {
		cfg.Run.BatchSize = c.Int("batch-size")
	}
	if c.IsSet("workers") && c.Int("workers") > 0 {
		cfg.Run.Workers = c.Int("workers")
	}
	if c.IsSet("max-retries") {
		cfg.Run.MaxRetries = c.Int("max-retries")
	}
	if c.IsSet("retry-delay") {
		cfg.Run.RetryDelayMS = int(c.Duration("retry-delay").Milliseconds())
	}
	if c.IsSet("embed-timeout") {
		cfg.Run.EmbedTimeoutSec = int(c.Duration("embed-timeout").Seconds())
	}
	if c.IsSet("lease-ttl") {
		cfg.Run.LeaseTTLSec = int(c.Duration("lease-ttl").Seconds())
	}
	if c.IsSet("report-interval") {
		cfg.Run.ReportInterval = c.Int("report-interval")
	}
	if c.IsSet("metrics-addr") {
		cfg.Metrics.Addr = c.String("metrics-addr")
	}

	if cfg.DB == "" {
		return runnerConfig{}, fmt.Errorf("database path is required")
	}
	if err := cfg.pipelineConfig().Validate(); err != nil {
		return runnerConfig{}, err
	}

	return cfg, nil
}

// openEngine builds an engine from the resolved configuration.
func openEngine(cfg runnerConfig) (*vecsync.Engine, error) {
	opts := []vecsync.EngineOption{
		vecsync.WithEmbedConfig(cfg.embedConfig()),
	}
	if rc := cfg.redisConfig(); rc != nil {
		opts = append(opts, vecsync.WithRedisWatermarks(*rc))
	}

	engine, err := vecsync.NewEngine(cfg.DB, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to open engine: %w", err)
	}
	return engine, nil
}

func runCommand(c *cli.Context) error {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
	defer cancel()

	cfg, err := resolveConfig(c)
	if err != nil {
		return err
	}

	engine, err := openEngine(cfg)
	if err != nil {
		return err
	}
	defer engine.Close()

	monitors := []pipeline.RunMonitor{
		pipeline.NewProgressMonitor(os.Stderr, cfg.Run.ReportInterval),
	}

	var metricsSrv *http.Server
	if cfg.Metrics.Addr != "" {
		monitors = append(monitors, pipeline.NewMetrics(prometheus.DefaultRegisterer))
		metricsSrv = serveMetrics(cfg.Metrics.Addr)
		defer func() {
			shutCtx, shutCancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer shutCancel()
			_ = metricsSrv.Shutdown(shutCtx)
		}()
	}

	opts := []pipeline.CoordinatorOption{
		pipeline.WithMonitor(pipeline.MultiMonitor(monitors...)),
	}
	if owner := c.String("owner"); owner != "" {
		opts = append(opts, pipeline.WithOwner(owner))
	}

	coordinator, err := engine.NewCoordinator(cfg.pipelineConfig(), opts...)
	if err != nil {
		return fmt.Errorf("failed to create coordinator: %w", err)
	}
	defer coordinator.Release()

	fmt.Fprintf(os.Stderr, "Database: %s\n", cfg.DB)
	fmt.Fprintf(os.Stderr, "Pipeline: %s\n", cfg.Pipeline)
	fmt.Fprintf(os.Stderr, "Embedding host: %s\n", cfg.Embedding.Host)
	fmt.Fprintf(os.Stderr, "Embedding model: %s\n", cfg.Embedding.Model)
	fmt.Fprintln(os.Stderr)

	if every := c.Duration("every"); every > 0 {
		return runEvery(ctx, coordinator, cfg.Pipeline, every)
	}

	summary, err := coordinator.RunOnce(ctx, cfg.Pipeline)
	if err != nil {
		return fmt.Errorf("sync failed: %w", err)
	}
	if summary.Failed > 0 {
		slog.Warn("run left failed records behind, the next run retries them",
			"pipeline", cfg.Pipeline, "failed", summary.Failed)
	}
	return nil
}

// runEvery keeps starting runs until the context is canceled. Failed runs and
// lease conflicts are logged and retried on the next tick, not fatal.
func runEvery(ctx context.Context, coordinator *pipeline.Coordinator, name string, every time.Duration) error {
	ticker := time.NewTicker(every)
	defer ticker.Stop()

	for {
		summary, err := coordinator.RunOnce(ctx, name)
		switch {
		case err == nil:
			if summary.Failed > 0 {
				slog.Warn("run left failed records behind, the next run retries them",
					"pipeline", name, "failed", summary.Failed)
			}
		case errors.Is(err, context.Canceled):
			return nil
		case errors.Is(err, storage.ErrLeaseConflict):
			slog.Info("pipeline is locked by another runner, will retry",
				"pipeline", name)
		default:
			slog.Error("sync failed, will retry", "pipeline", name, "error", err)
		}

		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}
	}
}

func statusCommand(c *cli.Context) error {
	ctx := context.Background()

	cfg, err := resolveConfig(c)
	if err != nil {
		return err
	}

	engine, err := openEngine(cfg)
	if err != nil {
		return err
	}
	defer engine.Close()

	watermark, err := engine.WatermarkStore().Get(ctx, cfg.Pipeline)
	if err != nil {
		return fmt.Errorf("failed to read watermark: %w", err)
	}
	lease, err := engine.WatermarkStore().GetLease(ctx, cfg.Pipeline)
	if err != nil {
		return fmt.Errorf("failed to read lease: %w", err)
	}
	sourceCount, err := engine.SourceRepository().CountSourceRecords(ctx)
	if err != nil {
		return fmt.Errorf("failed to count source records: %w", err)
	}
	destCount, err := engine.DestinationRepository().CountDestinationRows(ctx)
	if err != nil {
		return fmt.Errorf("failed to count destination rows: %w", err)
	}

	fmt.Printf("Pipeline: %s\n", cfg.Pipeline)
	if watermark == nil {
		fmt.Println("Watermark: none (the next run scans everything)")
	} else {
		fmt.Printf("Watermark: %s (committed %s)\n",
			watermark.Cursor, watermark.CommittedAt.Format(time.RFC3339))
	}
	if lease == nil {
		fmt.Println("Lease: free")
	} else {
		fmt.Printf("Lease: held by %s until %s\n",
			lease.Owner, lease.ExpiresAt.Format(time.RFC3339))
	}
	fmt.Printf("Source records: %d\n", sourceCount)
	fmt.Printf("Destination rows: %d\n", destCount)

	return nil
}

// seedTopics is cycled through when generating synthetic record content.
var seedTopics = []string{
	"the nightly import drifts when upstream batches arrive late",
	"retry budgets protect the gateway from thundering herds",
	"a stale cache entry kept serving the old price for an hour",
	"compaction pauses show up as tail latency in the write path",
	"the scheduler packs small jobs onto warm workers first",
	"replica lag spikes whenever the bulk loader runs",
	"feature flags gate the rollout of the new ranking model",
	"the audit log keeps every change for ninety days",
	"backpressure from the queue slows producers before memory fills",
	"a checksum mismatch marks the segment for re-replication",
	"the billing export reconciles usage against the ledger nightly",
	"dns caching hid the failover for almost five minutes",
}

func seedCommand(c *cli.Context) error {
	ctx := context.Background()

	cfg, err := resolveConfig(c)
	if err != nil {
		return err
	}

	engine, err := openEngine(cfg)
	if err != nil {
		return err
	}
	defer engine.Close()

	source := engine.SourceRepository()
	count := c.Int("count")
	edits := c.Int("edit")

	if count > 0 {
		records := make([]*core.SourceRecord, 0, count)
		for i := 0; i < count; i++ {
			records = append(records, &core.SourceRecord{
				ID:      uuid.NewString(),
				OwnerID: c.String("record-owner"),
				Content: fmt.Sprintf("%s (seed %03d)", seedTopics[i%len(seedTopics)], i),
			})
		}
		if _, err := source.AddSourceRecords(ctx, records...); err != nil {
			return fmt.Errorf("failed to add records: %w", err)
		}
	}

	edited := 0
	if edits > 0 {
		existing, _, err := source.QueryChanged(ctx, core.Cursor{}, core.UpperBound(time.Now()), "", edits)
		if err != nil {
			return fmt.Errorf("failed to list records to edit: %w", err)
		}
		for _, record := range existing {
			record.Content = strings.TrimSuffix(record.Content, " (edited)") + " (edited)"
		}
		if len(existing) > 0 {
			if _, err := source.UpdateSourceRecords(ctx, existing...); err != nil {
				return fmt.Errorf("failed to edit records: %w", err)
			}
		}
		edited = len(existing)
	}

	fmt.Fprintf(os.Stderr, "Seeded %d new record(s), edited %d, in %s\n", count, edited, cfg.DB)
	return nil
}

// serveMetrics starts an HTTP server for Prometheus scrapes.
func serveMetrics(addr string) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())

	srv := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		slog.Info("metrics endpoint listening", "addr", addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("metrics server failed", "error", err)
		}
	}()

	return srv
}

func setupLogger(c *cli.Context) error {
	// Get log level from flag and normalize to lowercase
	levelStr := strings.ToLower(c.String("log-level"))

	// Map string to slog.Level
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

	// Configure slog with the specified level
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: level,
	}))
	slog.SetDefault(logger)

	return nil
}
