// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 VFace Contributors

// Package config loads the matcher configuration with the standard
// precedence: flags > environment (VFACE_ prefix) > file > defaults.
package config

import (
	"errors"
	"net"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/viper"

	vfaceerr "github.com/vface-dev/vface/pkg/errors"
)

// Config is the top-level matcher configuration. Encryption keys are
// deliberately absent: they are resolved from the environment per decrypt
// call and never held in long-lived state.
type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	Store     StoreConfig     `mapstructure:"store"`
	Matching  MatchingConfig  `mapstructure:"matching"`
	Auth      AuthConfig      `mapstructure:"auth"`
	Bootstrap BootstrapConfig `mapstructure:"bootstrap"`
}

// ServerConfig controls the HTTP listener.
type ServerConfig struct {
	Listen       string        `mapstructure:"listen"`
	CORSOrigins  []string      `mapstructure:"cors_origins"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
}

// StoreConfig selects and parameterizes the vector store backend.
type StoreConfig struct {
	Backend    string `mapstructure:"backend"`
	Path       string `mapstructure:"path"`
	Collection string `mapstructure:"collection"`
	VectorDim  int    `mapstructure:"vector_dim"`
}

// MatchingConfig holds the similarity policy.
type MatchingConfig struct {
	SimilarityThreshold float64 `mapstructure:"similarity_threshold"`
	EnrollmentThreshold float64 `mapstructure:"enrollment_threshold"`
}

// AuthConfig holds the shared secret expected in X-Matching-Secret.
type AuthConfig struct {
	Secret string `mapstructure:"secret"`
}

// BootstrapConfig bounds the startup collection-ensure retry loop.
type BootstrapConfig struct {
	MaxAttempts int           `mapstructure:"max_attempts"`
	Backoff     time.Duration `mapstructure:"backoff"`
}

// SetDefaults installs the configuration defaults on v.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("server.listen", "127.0.0.1:7311")
	v.SetDefault("server.read_timeout", 30*time.Second)
	v.SetDefault("server.write_timeout", 60*time.Second)
	v.SetDefault("store.backend", "sqlite")
	v.SetDefault("store.path", "vface.db")
	v.SetDefault("store.collection", "vface_embeddings")
	v.SetDefault("store.vector_dim", 128)
	v.SetDefault("matching.similarity_threshold", 0.85)
	v.SetDefault("bootstrap.max_attempts", 10)
	v.SetDefault("bootstrap.backoff", 2*time.Second)
}

// SetupEnv binds VFACE_-prefixed environment variables.
func SetupEnv(v *viper.Viper) {
	v.SetEnvPrefix("VFACE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
}

// Load reads configuration from the given path (or defaults) with
// environment variable overrides.
func Load(path string) (*Config, error) {
	v := viper.New()

	SetDefaults(v)
	SetupEnv(v)

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, vfaceerr.Wrapf(err, vfaceerr.CodeConfigLoadReadFailure, "reading config %s", path)
		}
	}

	return FromViper(v)
}

// FromViper unmarshals and validates a prepared viper instance.
func FromViper(v *viper.Viper) (*Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, vfaceerr.Wrap(err, vfaceerr.CodeConfigValidateInvalidValue, "unmarshalling config")
	}

	if errs := cfg.Validate(); len(errs) > 0 {
		return nil, vfaceerr.Wrap(errors.Join(errs...), vfaceerr.CodeConfigValidateInvalidValue, "validating config")
	}

	return &cfg, nil
}

// Validate checks the configuration for logical errors, collecting all
// issues rather than stopping at the first one.
func (c *Config) Validate() []error {
	var errs []error

	errs = append(errs, c.validateServer()...)
	errs = append(errs, c.validateStore()...)
	errs = append(errs, c.validateMatching()...)

	return errs
}

func (c *Config) validateServer() []error {
	var errs []error

	if c.Server.Listen == "" {
		errs = append(errs, vfaceerr.Errorf(vfaceerr.CodeConfigValidateInvalidValue,
			"config: server.listen must not be empty"))
		return errs
	}

	_, portStr, err := net.SplitHostPort(c.Server.Listen)
	if err != nil {
		errs = append(errs, vfaceerr.Errorf(vfaceerr.CodeConfigValidateInvalidValue,
			"config: server.listen must be a valid host:port address, got %q: %w", c.Server.Listen, err))
		return errs
	}

	port, err := strconv.Atoi(portStr)
	if err != nil {
		errs = append(errs, vfaceerr.Errorf(vfaceerr.CodeConfigValidateInvalidValue,
			"config: server.listen port must be a number, got %q", portStr))
	} else if port < 1 || port > 65535 {
		errs = append(errs, vfaceerr.Errorf(vfaceerr.CodeConfigValidateInvalidValue,
			"config: server.listen port must be between 1 and 65535, got %d", port))
	}

	return errs
}

func (c *Config) validateStore() []error {
	var errs []error

	validBackends := map[string]bool{"sqlite": true, "vecgo": true}
	if !validBackends[c.Store.Backend] {
		errs = append(errs, vfaceerr.Errorf(vfaceerr.CodeConfigValidateInvalidValue,
			"config: store.backend must be one of [sqlite, vecgo], got %q", c.Store.Backend))
	}

	if c.Store.Backend == "sqlite" && c.Store.Path == "" {
		errs = append(errs, vfaceerr.Errorf(vfaceerr.CodeConfigValidateInvalidValue,
			"config: store.path must be set for the sqlite backend"))
	}

	if c.Store.Collection == "" {
		errs = append(errs, vfaceerr.Errorf(vfaceerr.CodeConfigValidateInvalidValue,
			"config: store.collection must not be empty"))
	}

	if c.Store.VectorDim < 1 {
		errs = append(errs, vfaceerr.Errorf(vfaceerr.CodeConfigValidateInvalidValue,
			"config: store.vector_dim must be positive, got %d", c.Store.VectorDim))
	}

	return errs
}

func (c *Config) validateMatching() []error {
	var errs []error

	if c.Matching.SimilarityThreshold <= 0 || c.Matching.SimilarityThreshold > 1 {
		errs = append(errs, vfaceerr.Errorf(vfaceerr.CodeConfigValidateInvalidValue,
			"config: matching.similarity_threshold must be in (0, 1], got %v", c.Matching.SimilarityThreshold))
	}

	if t := c.Matching.EnrollmentThreshold; t != 0 && (t <= 0 || t > 1) {
		errs = append(errs, vfaceerr.Errorf(vfaceerr.CodeConfigValidateInvalidValue,
			"config: matching.enrollment_threshold must be in (0, 1], got %v", t))
	}

	return errs
}
