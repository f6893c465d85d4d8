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
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/poiesic/vecsync/embed"
	"github.com/poiesic/vecsync/pipeline"
	"github.com/poiesic/vecsync/storage/redis"
)

// runnerConfig holds the full configuration of a sync runner. Every command
// accepts it through --config; individual flags override single fields.
type runnerConfig struct {
	DB        string            `yaml:"db"`
	Pipeline  string            `yaml:"pipeline"`
	Embedding embeddingSettings `yaml:"embedding"`
	Redis     redisSettings     `yaml:"redis"`
	Run       runSettings       `yaml:"run"`
	Metrics   metricsSettings   `yaml:"metrics"`
}

// embeddingSettings holds embedding service settings.
type embeddingSettings struct {
	Host              string  `yaml:"host"`
	Model             string  `yaml:"model"`
	RequestsPerSecond float64 `yaml:"requests_per_second"` // 0 = unlimited
}

// redisSettings holds the shared watermark store settings. When addrs is
// empty, watermarks and leases live in the local BadgerDB database.
type redisSettings struct {
	Addrs    []string `yaml:"addrs"`
	Username string   `yaml:"username"`
	Password string   `yaml:"password"`
	DB       int      `yaml:"db"`
}

// runSettings holds per-run tuning knobs.
type runSettings struct {
	BatchSize         int `yaml:"batch_size"`
	Workers           int `yaml:"workers"`
	MaxRetries        int `yaml:"max_retries"`
	RetryDelayMS      int `yaml:"retry_delay_ms"`
	EmbedTimeoutSec   int `yaml:"embed_timeout_sec"`
	LeaseTTLSec       int `yaml:"lease_ttl_sec"`
	ReportInterval    int `yaml:"report_interval"`
	MaxReportedErrors int `yaml:"max_reported_errors"`
}

// metricsSettings holds the Prometheus scrape endpoint settings.
type metricsSettings struct {
	Addr string `yaml:"addr"` // empty = no metrics endpoint
}

// loadConfig reads a runner configuration from a YAML file. The db key is
// required; everything else falls back to defaults.
func loadConfig(path string) (runnerConfig, error) {
	data, err := os.ReadFile(filepath.Clean(path))
	if err != nil {
		return runnerConfig{}, fmt.Errorf("failed to read config %s: %w", path, err)
	}

	// Substitute env variables of the form ${VAR}
	data = expandEnvVars(data)

	var cfg runnerConfig
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return runnerConfig{}, fmt.Errorf("failed to parse config: %w", err)
	}

	cfg.applyDefaults()

	if err := cfg.validate(); err != nil {
		return runnerConfig{}, fmt.Errorf("invalid config: %w", err)
	}

	return cfg, nil
}

// applyDefaults fills empty fields with default values.
func (c *runnerConfig) applyDefaults() {
	if c.Pipeline == "" {
		c.Pipeline = "records"
	}

	embedDefaults := embed.DefaultConfig()
	if c.Embedding.Host == "" {
		c.Embedding.Host = embedDefaults.Host
	}
	if c.Embedding.Model == "" {
		c.Embedding.Model = embedDefaults.Model
	}

	runDefaults := pipeline.DefaultConfig()
	if c.Run.BatchSize <= 0 {
		c.Run.BatchSize = runDefaults.BatchSize
	}
	if c.Run.Workers <= 0 {
		c.Run.Workers = runDefaults.Workers
	}
	if c.Run.MaxRetries <= 0 {
		c.Run.MaxRetries = runDefaults.MaxRetries
	}
	if c.Run.RetryDelayMS <= 0 {
		c.Run.RetryDelayMS = int(runDefaults.RetryDelay.Milliseconds())
	}
	if c.Run.EmbedTimeoutSec <= 0 {
		c.Run.EmbedTimeoutSec = int(runDefaults.EmbedTimeout.Seconds())
	}
	if c.Run.LeaseTTLSec <= 0 {
		c.Run.LeaseTTLSec = int(runDefaults.LeaseTTL.Seconds())
	}
	if c.Run.ReportInterval <= 0 {
		c.Run.ReportInterval = runDefaults.ReportInterval
	}
	if c.Run.MaxReportedErrors <= 0 {
		c.Run.MaxReportedErrors = runDefaults.MaxReportedErrors
	}
}

// validate checks the configuration for correctness.
func (c *runnerConfig) validate() error {
	if c.DB == "" {
		return fmt.Errorf("db is required")
	}
	if err := c.pipelineConfig().Validate(); err != nil {
		return err
	}
	return nil
}

// pipelineConfig converts the run settings into a pipeline configuration.
func (c *runnerConfig) pipelineConfig() *pipeline.Config {
	return &pipeline.Config{
		BatchSize:         c.Run.BatchSize,
		Workers:           c.Run.Workers,
		MaxRetries:        c.Run.MaxRetries,
		RetryDelay:        time.Duration(c.Run.RetryDelayMS) * time.Millisecond,
		EmbedTimeout:      time.Duration(c.Run.EmbedTimeoutSec) * time.Second,
		LeaseTTL:          time.Duration(c.Run.LeaseTTLSec) * time.Second,
		ReportInterval:    c.Run.ReportInterval,
		MaxReportedErrors: c.Run.MaxReportedErrors,
	}
}

// embedConfig converts the embedding settings into an embedder configuration.
func (c *runnerConfig) embedConfig() *embed.Config {
	return embed.NewConfig(
		embed.WithHost(c.Embedding.Host),
		embed.WithModel(c.Embedding.Model),
		embed.WithRequestsPerSecond(c.Embedding.RequestsPerSecond),
	)
}

// redisConfig converts the redis settings into a store configuration, or nil
// when no redis addresses are configured.
func (c *runnerConfig) redisConfig() *redis.Config {
	if len(c.Redis.Addrs) == 0 {
		return nil
	}
	return &redis.Config{
		Addrs:    c.Redis.Addrs,
		Username: c.Redis.Username,
		Password: c.Redis.Password,
		DB:       c.Redis.DB,
	}
}

// expandEnvVars replaces ${VAR} and ${VAR:-default} with environment variable values.
var envVarRegex = regexp.MustCompile(`\$\{([^}]+)\}`)

func expandEnvVars(data []byte) []byte {
	return envVarRegex.ReplaceAllFunc(data, func(match []byte) []byte {
		expr := string(match[2 : len(match)-1]) // strip ${ and }
		varName, defaultVal, hasDefault := strings.Cut(expr, ":-")
		val := os.Getenv(varName)
		if val == "" && hasDefault {
			val = defaultVal
		}
		return []byte(val)
	})
}
