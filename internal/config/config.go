// Copyright 2025 Tom Barlow
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

// Package config loads curlfetch settings from a YAML file and the environment.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/tombee/curlfetch/internal/log"
	"github.com/tombee/curlfetch/pkg/httpclient"
	cerrors "github.com/tombee/curlfetch/pkg/errors"
	"github.com/tombee/curlfetch/pkg/transfer"
)

// Config represents the complete curlfetch configuration.
type Config struct {
	Transfer TransferConfig `yaml:"transfer"`
	HTTP     HTTPConfig     `yaml:"http"`
	Log      LogConfig      `yaml:"log"`
}

// TransferConfig configures how the external transfer tool is run.
type TransferConfig struct {
	// Executable is the transfer tool name or path.
	Executable string `yaml:"executable,omitempty"`

	// ExtraArgs are appended to every invocation (proxy, CA bundle, ...).
	ExtraArgs []string `yaml:"extra_args,omitempty"`

	// ChunkSize is the read size for process output in bytes.
	ChunkSize int `yaml:"chunk_size,omitempty"`
}

// HTTPConfig configures the client used by the request command.
type HTTPConfig struct {
	Backend       string        `yaml:"backend,omitempty"`
	Timeout       time.Duration `yaml:"timeout,omitempty"`
	RetryAttempts int           `yaml:"retry_attempts"`
	RetryBackoff  time.Duration `yaml:"retry_backoff,omitempty"`
	MaxBackoff    time.Duration `yaml:"max_backoff,omitempty"`
	UserAgent     string        `yaml:"user_agent,omitempty"`

	// SpawnRate caps transfer processes per second for the curl backend.
	SpawnRate  float64 `yaml:"spawn_rate,omitempty"`
	SpawnBurst int     `yaml:"spawn_burst,omitempty"`
}

// LogConfig configures logging.
type LogConfig struct {
	// Level sets the minimum log level (trace, debug, info, warn, error).
	Level string `yaml:"level,omitempty"`

	// Format sets the output format (json, text).
	Format string `yaml:"format,omitempty"`

	// AddSource adds source file and line information to logs.
	AddSource bool `yaml:"add_source"`
}

// Default returns a Config with sensible defaults.
func Default() *Config {
	hc := httpclient.DefaultConfig()
	return &Config{
		Transfer: TransferConfig{
			Executable: "curl",
			ChunkSize:  transfer.DefaultChunkSize,
		},
		HTTP: HTTPConfig{
			Backend:       string(hc.Backend),
			Timeout:       hc.Timeout,
			RetryAttempts: hc.RetryAttempts,
			RetryBackoff:  hc.RetryBackoff,
			MaxBackoff:    hc.MaxBackoff,
			UserAgent:     hc.UserAgent,
			SpawnBurst:    hc.SpawnBurst,
		},
		Log: LogConfig{
			Level:  "info",
			Format: string(log.FormatText),
		},
	}
}

// Load loads configuration from defaults, then the YAML file at configPath
// (if non-empty), then environment variables, and validates the result.
func Load(configPath string) (*Config, error) {
	cfg := Default()

	if configPath != "" {
		if err := cfg.loadFromFile(configPath); err != nil {
			return nil, &cerrors.ConfigError{
				Key:    "config_file",
				Reason: fmt.Sprintf("failed to load from %s", configPath),
				Cause:  err,
			}
		}
	}

	cfg.applyDefaults()
	if err := cfg.loadFromEnv(); err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// applyDefaults fills in zero values that are never valid, so that minimal
// files and empty strings in them fall back to the defaults.
func (c *Config) applyDefaults() {
	defaults := Default()

	if c.Transfer.Executable == "" {
		c.Transfer.Executable = defaults.Transfer.Executable
	}
	if c.Transfer.ChunkSize == 0 {
		c.Transfer.ChunkSize = defaults.Transfer.ChunkSize
	}
	if c.HTTP.Backend == "" {
		c.HTTP.Backend = defaults.HTTP.Backend
	}
	if c.HTTP.Timeout == 0 {
		c.HTTP.Timeout = defaults.HTTP.Timeout
	}
	if c.HTTP.UserAgent == "" {
		c.HTTP.UserAgent = defaults.HTTP.UserAgent
	}
	if c.Log.Level == "" {
		c.Log.Level = defaults.Log.Level
	}
	if c.Log.Format == "" {
		c.Log.Format = defaults.Log.Format
	}
}

func (c *Config) loadFromFile(path string) error {
	if strings.HasPrefix(path, "~/") {
		home, err := os.UserHomeDir()
		if err != nil {
			return cerrors.Wrap(err, "failed to get home directory")
		}
		path = filepath.Join(home, path[2:])
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return cerrors.Wrap(err, "failed to read config file")
	}

	if err := yaml.Unmarshal(data, c); err != nil {
		return cerrors.Wrap(err, "failed to parse YAML")
	}
	return nil
}

// loadFromEnv overrides file values with environment variables. Malformed
// numeric values are reported rather than ignored.
func (c *Config) loadFromEnv() error {
	if val := os.Getenv("CURLFETCH_CURL"); val != "" {
		c.Transfer.Executable = val
	}
	if val := os.Getenv("CURLFETCH_CURL_ARGS"); val != "" {
		c.Transfer.ExtraArgs = strings.Fields(val)
	}

	if val := os.Getenv("CURLFETCH_BACKEND"); val != "" {
		c.HTTP.Backend = strings.ToLower(val)
	}
	if val := os.Getenv("CURLFETCH_TIMEOUT"); val != "" {
		d, err := time.ParseDuration(val)
		if err != nil {
			return &cerrors.ConfigError{Key: "http.timeout", Reason: "CURLFETCH_TIMEOUT is not a duration", Cause: err}
		}
		c.HTTP.Timeout = d
	}
	if val := os.Getenv("CURLFETCH_RETRY_ATTEMPTS"); val != "" {
		n, err := strconv.Atoi(val)
		if err != nil {
			return &cerrors.ConfigError{Key: "http.retry_attempts", Reason: "CURLFETCH_RETRY_ATTEMPTS is not an integer", Cause: err}
		}
		c.HTTP.RetryAttempts = n
	}
	if val := os.Getenv("CURLFETCH_USER_AGENT"); val != "" {
		c.HTTP.UserAgent = val
	}

	if val := os.Getenv("CURLFETCH_LOG_LEVEL"); val != "" {
		c.Log.Level = strings.ToLower(val)
	} else if val := os.Getenv("LOG_LEVEL"); val != "" {
		c.Log.Level = strings.ToLower(val)
	}
	if val := os.Getenv("LOG_FORMAT"); val != "" {
		c.Log.Format = strings.ToLower(val)
	}
	if val := os.Getenv("LOG_SOURCE"); val != "" {
		c.Log.AddSource = val == "1" || strings.ToLower(val) == "true"
	}
	if val := os.Getenv("CURLFETCH_DEBUG"); val == "1" || val == "true" {
		c.Log.Level = "debug"
		c.Log.AddSource = true
	}
	return nil
}

// Validate checks the configuration. Every problem is reported as a
// *errors.ConfigError; several are joined.
func (c *Config) Validate() error {
	var errs []error
	invalid := func(key, format string, args ...any) {
		errs = append(errs, &cerrors.ConfigError{Key: key, Reason: fmt.Sprintf(format, args...)})
	}

	if c.Transfer.ChunkSize <= 0 {
		invalid("transfer.chunk_size", "must be positive, got %d", c.Transfer.ChunkSize)
	}

	hc := c.HTTPClient()
	if err := hc.Validate(); err != nil {
		key := "http"
		var vErr *cerrors.ValidationError
		if errors.As(err, &vErr) {
			key = "http." + vErr.Field
			err = errors.New(vErr.Message)
		}
		invalid(key, "%v", err)
	}

	validLevels := map[string]bool{"trace": true, "debug": true, "info": true, "warn": true, "warning": true, "error": true}
	if !validLevels[c.Log.Level] {
		invalid("log.level", "must be one of [trace, debug, info, warn, error], got %q", c.Log.Level)
	}
	validFormats := map[string]bool{string(log.FormatJSON): true, string(log.FormatText): true}
	if !validFormats[c.Log.Format] {
		invalid("log.format", "must be one of [json, text], got %q", c.Log.Format)
	}

	return errors.Join(errs...)
}

// TransferLauncher returns the launcher settings. Logger and handlers are left
// for the caller to set.
func (c *Config) TransferLauncher() transfer.Config {
	tc := transfer.DefaultConfig()
	tc.Executable = c.Transfer.Executable
	tc.ExtraArgs = c.Transfer.ExtraArgs
	tc.ChunkSize = c.Transfer.ChunkSize
	return tc
}

// HTTPClient returns the client settings for the request command.
func (c *Config) HTTPClient() httpclient.Config {
	return httpclient.Config{
		Backend:       httpclient.Backend(c.HTTP.Backend),
		CurlPath:      c.Transfer.Executable,
		CurlArgs:      c.Transfer.ExtraArgs,
		SpawnRate:     c.HTTP.SpawnRate,
		SpawnBurst:    c.HTTP.SpawnBurst,
		Timeout:       c.HTTP.Timeout,
		RetryAttempts: c.HTTP.RetryAttempts,
		RetryBackoff:  c.HTTP.RetryBackoff,
		MaxBackoff:    c.HTTP.MaxBackoff,
		UserAgent:     c.HTTP.UserAgent,
	}
}

// Logging returns the logger settings.
func (c *Config) Logging() *log.Config {
	lc := log.DefaultConfig()
	lc.Level = c.Log.Level
	lc.Format = log.Format(c.Log.Format)
	lc.AddSource = c.Log.AddSource
	return lc
}
