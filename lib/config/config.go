// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/bureau-foundation/sshagent/lib/sshagent"
	"github.com/tidwall/jsonc"
	"gopkg.in/yaml.v3"
)

// EnvironmentVariable names the configuration file when no --config
// flag is given.
const EnvironmentVariable = "SSHAGENT_CONFIG"

// Config is the agent client configuration.
type Config struct {
	// SocketPath is the agent socket. Empty means $SSH_AUTH_SOCK.
	SocketPath string `yaml:"socket_path"`

	// Timeout bounds each request attempt, as a Go duration.
	// Default: 5s
	Timeout string `yaml:"timeout"`

	// ConnectTimeout bounds each connect attempt.
	// Default: 2s
	ConnectTimeout string `yaml:"connect_timeout"`

	// IdleTimeout is how long an unused connection stays open.
	// Default: 15s
	IdleTimeout string `yaml:"idle_timeout"`

	// RequestRetries is how many times a failed request is resent.
	// Zero disables retries.
	// Default: 2
	RequestRetries int `yaml:"request_retries"`

	// ConnectRetries is how many times a failed connect is retried.
	// Zero disables retries.
	// Default: 3
	ConnectRetries int `yaml:"connect_retries"`

	// RequireSameUser refuses agents run by another user (Linux only).
	RequireSameUser bool `yaml:"require_same_user"`

	// LogLevel is one of debug, info, warn or error.
	// Default: warn
	LogLevel string `yaml:"log_level"`
}

// Default returns the configuration used when no file is loaded. File
// values are merged over it.
func Default() *Config {
	return &Config{
		Timeout:        sshagent.DefaultRequestTimeout.String(),
		ConnectTimeout: sshagent.DefaultConnectTimeout.String(),
		IdleTimeout:    sshagent.DefaultIdleTimeout.String(),
		RequestRetries: sshagent.DefaultRequestRetries,
		ConnectRetries: sshagent.DefaultConnectRetries,
		LogLevel:       "warn",
	}
}

// Load loads the file named by SSHAGENT_CONFIG. With the variable
// unset it returns Default: the client is usable with no file.
func Load() (*Config, error) {
	path := os.Getenv(EnvironmentVariable)
	if path == "" {
		return Default(), nil
	}
	return LoadFile(path)
}

// LoadFile loads configuration from a specific file path and
// validates it.
func LoadFile(path string) (*Config, error) {
	cfg := Default()
	if err := cfg.loadFile(path); err != nil {
		return nil, err
	}
	cfg.expandVariables()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return cfg, nil
}

// loadFile merges one file into the current config.
func (c *Config) loadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("reading config: %w", err)
	}
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json", ".jsonc":
		// JSON is a subset of YAML, so once comments are stripped the
		// YAML decoder handles it, including the unknown-key check.
		data = jsonc.ToJSON(data)
	}
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(c); err != nil && !errors.Is(err, io.EOF) {
		return fmt.Errorf("parsing config %s: %w", path, err)
	}
	return nil
}

// expandVariables expands ${VAR} and ${VAR:-default} in the socket path.
func (c *Config) expandVariables() {
	c.SocketPath = expandVars(c.SocketPath)
}

var varPattern = regexp.MustCompile(`\$\{([^}:]+)(?::-([^}]*))?\}`)

func expandVars(s string) string {
	return varPattern.ReplaceAllStringFunc(s, func(match string) string {
		parts := varPattern.FindStringSubmatch(match)
		if value := os.Getenv(parts[1]); value != "" {
			return value
		}
		return parts[2]
	})
}

// Validate checks every field and reports all problems at once, each
// naming its key.
func (c *Config) Validate() error {
	var errs []error
	for _, field := range []struct {
		name  string
		value string
	}{
		{"timeout", c.Timeout},
		{"connect_timeout", c.ConnectTimeout},
		{"idle_timeout", c.IdleTimeout},
	} {
		if _, err := parsePositiveDuration(field.value); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", field.name, err))
		}
	}
	if c.RequestRetries < 0 {
		errs = append(errs, fmt.Errorf("request_retries must not be negative, got %d", c.RequestRetries))
	}
	if c.ConnectRetries < 0 {
		errs = append(errs, fmt.Errorf("connect_retries must not be negative, got %d", c.ConnectRetries))
	}
	if _, err := c.SlogLevel(); err != nil {
		errs = append(errs, fmt.Errorf("log_level: %w", err))
	}
	return errors.Join(errs...)
}

// SlogLevel returns LogLevel as a slog level.
func (c *Config) SlogLevel() (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(c.LogLevel)); err != nil {
		return 0, fmt.Errorf("must be one of debug, info, warn, error; got %q", c.LogLevel)
	}
	return level, nil
}

// ClientOptions converts the configuration to client options. The
// config must have passed Validate.
func (c *Config) ClientOptions(logger *slog.Logger) (sshagent.Options, error) {
	if err := c.Validate(); err != nil {
		return sshagent.Options{}, err
	}
	timeout, _ := parsePositiveDuration(c.Timeout)
	connectTimeout, _ := parsePositiveDuration(c.ConnectTimeout)
	idleTimeout, _ := parsePositiveDuration(c.IdleTimeout)
	return sshagent.Options{
		SocketPath:      c.SocketPath,
		Logger:          logger,
		RequestTimeout:  timeout,
		ConnectTimeout:  connectTimeout,
		IdleTimeout:     idleTimeout,
		RequestRetries:  retryOption(c.RequestRetries),
		ConnectRetries:  retryOption(c.ConnectRetries),
		RequireSameUser: c.RequireSameUser,
	}, nil
}

// retryOption maps a config retry count, where zero means none, onto
// sshagent.Options, where zero means the default.
func retryOption(retries int) int {
	if retries == 0 {
		return -1
	}
	return retries
}

func parsePositiveDuration(value string) (time.Duration, error) {
	duration, err := time.ParseDuration(value)
	if err != nil {
		return 0, err
	}
	if duration <= 0 {
		return 0, fmt.Errorf("must be positive, got %s", value)
	}
	return duration, nil
}
