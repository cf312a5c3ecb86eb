// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 VFace Contributors

package config_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vface-dev/vface/internal/config"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := config.Load("")
	require.NoError(t, err)

	assert.Equal(t, "127.0.0.1:7311", cfg.Server.Listen)
	assert.Equal(t, 30*time.Second, cfg.Server.ReadTimeout)
	assert.Equal(t, "sqlite", cfg.Store.Backend)
	assert.Equal(t, "vface_embeddings", cfg.Store.Collection)
	assert.Equal(t, 128, cfg.Store.VectorDim)
	assert.Equal(t, 0.85, cfg.Matching.SimilarityThreshold)
	assert.Equal(t, 10, cfg.Bootstrap.MaxAttempts)
	assert.Equal(t, 2*time.Second, cfg.Bootstrap.Backoff)
}

func TestLoad_EnvOverride(t *testing.T) {
	t.Setenv("VFACE_STORE_BACKEND", "vecgo")
	t.Setenv("VFACE_MATCHING_SIMILARITY_THRESHOLD", "0.9")

	cfg, err := config.Load("")
	require.NoError(t, err)

	assert.Equal(t, "vecgo", cfg.Store.Backend)
	assert.Equal(t, 0.9, cfg.Matching.SimilarityThreshold)
}

func TestLoad_File(t *testing.T) {
	path := filepath.Join(t.TempDir(), "vface.yaml")
	content := []byte(`
server:
  listen: "0.0.0.0:8080"
store:
  backend: vecgo
  collection: test_embeddings
matching:
  similarity_threshold: 0.75
  enrollment_threshold: 0.9
auth:
  secret: super-secret
`)
	require.NoError(t, os.WriteFile(path, content, 0o600))

	cfg, err := config.Load(path)
	require.NoError(t, err)

	assert.Equal(t, "0.0.0.0:8080", cfg.Server.Listen)
	assert.Equal(t, "vecgo", cfg.Store.Backend)
	assert.Equal(t, "test_embeddings", cfg.Store.Collection)
	assert.Equal(t, 0.75, cfg.Matching.SimilarityThreshold)
	assert.Equal(t, 0.9, cfg.Matching.EnrollmentThreshold)
	assert.Equal(t, "super-secret", cfg.Auth.Secret)
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := config.Load(filepath.Join(t.TempDir(), "absent.yaml"))
	assert.Error(t, err)
}

func TestValidate_CollectsAllErrors(t *testing.T) {
	cfg := &config.Config{
		Server:   config.ServerConfig{Listen: "not-an-address"},
		Store:    config.StoreConfig{Backend: "qdrant", VectorDim: 0},
		Matching: config.MatchingConfig{SimilarityThreshold: 1.5},
	}

	errs := cfg.Validate()
	assert.GreaterOrEqual(t, len(errs), 4)
}

func TestValidate_PortRange(t *testing.T) {
	cfg := &config.Config{
		Server:   config.ServerConfig{Listen: "127.0.0.1:99999"},
		Store:    config.StoreConfig{Backend: "vecgo", Collection: "c", VectorDim: 128},
		Matching: config.MatchingConfig{SimilarityThreshold: 0.85},
	}

	errs := cfg.Validate()
	require.Len(t, errs, 1)
	assert.Contains(t, errs[0].Error(), "port")
}

func TestValidate_SqliteRequiresPath(t *testing.T) {
	cfg := &config.Config{
		Server:   config.ServerConfig{Listen: "127.0.0.1:7311"},
		Store:    config.StoreConfig{Backend: "sqlite", Collection: "c", VectorDim: 128},
		Matching: config.MatchingConfig{SimilarityThreshold: 0.85},
	}

	errs := cfg.Validate()
	require.Len(t, errs, 1)
	assert.Contains(t, errs[0].Error(), "store.path")
}
