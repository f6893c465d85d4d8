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


package vecsync

import (
	"log/slog"

	"github.com/poiesic/vecsync/embed"
	"github.com/poiesic/vecsync/embed/openai"
	"github.com/poiesic/vecsync/pipeline"
	"github.com/poiesic/vecsync/search"
	"github.com/poiesic/vecsync/storage"
	"github.com/poiesic/vecsync/storage/badger"
	"github.com/poiesic/vecsync/storage/redis"
)

// Engine bundles the source, destination, and watermark stores with an
// embedder and hands out coordinators and searchers wired over them.
type Engine struct {
	backend     *badger.Backend
	source      storage.SourceRepository
	destination storage.DestinationRepository
	watermarks  storage.WatermarkStore
	embedder    embed.Embedder
	logger      *slog.Logger
}

// EngineOption configures an Engine.
type EngineOption func(*engineOptions)

type engineOptions struct {
	embedConfig *embed.Config
	embedder    embed.Embedder
	redisConfig *redis.Config
	inMemory    bool
}

// WithEmbedConfig sets the embedding service configuration.
func WithEmbedConfig(config *embed.Config) EngineOption {
	return func(o *engineOptions) {
		if config != nil {
			o.embedConfig = config
		}
	}
}

// WithEmbedder supplies a prebuilt embedder instead of constructing one from
// the embed config.
func WithEmbedder(embedder embed.Embedder) EngineOption {
	return func(o *engineOptions) {
		o.embedder = embedder
	}
}

// WithRedisWatermarks keeps watermarks and leases in Redis instead of the
// local store, which is what lets runners on separate hosts exclude each
// other.
func WithRedisWatermarks(config redis.Config) EngineOption {
	return func(o *engineOptions) {
		o.redisConfig = &config
	}
}

// WithInMemoryStorage keeps all local stores in memory. Intended for tests.
func WithInMemoryStorage() EngineOption {
	return func(o *engineOptions) {
		o.inMemory = true
	}
}

func NewEngine(filePath string, opts ...EngineOption) (*Engine, error) {
	// Apply options
	options := &engineOptions{
		embedConfig: embed.DefaultConfig(), // Default if not provided
	}
	for _, opt := range opts {
		opt(options)
	}

	// Open backend
	backend, err := badger.OpenBackend(filePath, options.inMemory)
	if err != nil {
		return nil, err
	}

	source := badger.NewSourceRepository(backend)
	destination := badger.NewDestinationRepository(backend)

	// Watermarks default to the same backend; Redis is opt-in.
	var watermarks storage.WatermarkStore
	if options.redisConfig != nil {
		store, err := redis.NewStore(*options.redisConfig)
		if err != nil {
			destination.Close()
			source.Close()
			backend.Close()
			return nil, err
		}
		watermarks = store
	} else {
		watermarks = badger.NewWatermarkRepository(backend)
	}

	embedder := options.embedder
	if embedder == nil {
		embedder, err = openai.NewEmbedder(options.embedConfig)
		if err != nil {
			watermarks.Close()
			destination.Close()
			source.Close()
			backend.Close()
			return nil, err
		}
		if options.embedConfig.RequestsPerSecond > 0 {
			embedder = embed.NewRateLimited(embedder, options.embedConfig.RequestsPerSecond)
		}
	}

	return &Engine{
		backend:     backend,
		source:      source,
		destination: destination,
		watermarks:  watermarks,
		embedder:    embedder,
		logger:      slog.Default(),
	}, nil
}

func (e *Engine) Close() error {
	// Close stores first; watermarks may hold a separate connection.
	if err := e.watermarks.Close(); err != nil {
		e.logger.Error("error closing watermark store", "err", err)
		return err
	}
	if err := e.destination.Close(); err != nil {
		e.logger.Error("error closing destination repository", "err", err)
		return err
	}
	if err := e.source.Close(); err != nil {
		e.logger.Error("error closing source repository", "err", err)
		return err
	}

	// Close backend
	if err := e.backend.Close(); err != nil {
		e.logger.Error("error closing backend storage", "err", err)
		return err
	}
	return nil
}

func (e *Engine) SourceRepository() storage.SourceRepository {
	return e.source
}

func (e *Engine) DestinationRepository() storage.DestinationRepository {
	return e.destination
}

func (e *Engine) WatermarkStore() storage.WatermarkStore {
	return e.watermarks
}

func (e *Engine) Embedder() embed.Embedder {
	return e.embedder
}

func (e *Engine) NewCoordinator(config *pipeline.Config, opts ...pipeline.CoordinatorOption) (*pipeline.Coordinator, error) {
	return pipeline.NewCoordinator(e.source, e.destination, e.watermarks, e.embedder, config, opts...)
}

func (e *Engine) NewSearcher(opts ...search.Option) (*search.Searcher, error) {
	return search.NewSearcher(e.destination, e.embedder, opts...)
}
