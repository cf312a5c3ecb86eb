// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 VFace Contributors

package store_test

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vface-dev/vface/internal/store"
	vfaceerr "github.com/vface-dev/vface/pkg/errors"
)

func TestStorageKey_Deterministic(t *testing.T) {
	fp := "a1b2c3d4e5f60718" + strings.Repeat("00", 24)

	k1, err := store.StorageKey(fp)
	require.NoError(t, err)
	k2, err := store.StorageKey(fp)
	require.NoError(t, err)

	assert.Equal(t, k1, k2)
	assert.Equal(t, uint64(0xa1b2c3d4e5f60718), k1)
}

func TestStorageKey_TruncatedPrefixCollision(t *testing.T) {
	// Fingerprints differing only after the 16th hex character collide under
	// the truncation scheme.
	a := "a1b2c3d4e5f60718" + strings.Repeat("aa", 24)
	b := "a1b2c3d4e5f60718" + strings.Repeat("bb", 24)

	ka, err := store.StorageKey(a)
	require.NoError(t, err)
	kb, err := store.StorageKey(b)
	require.NoError(t, err)

	assert.Equal(t, ka, kb)
}

func TestStorageKey_Invalid(t *testing.T) {
	_, err := store.StorageKey("short")
	assert.True(t, vfaceerr.HasCode(err, vfaceerr.CodeStoreInvalidInput))

	_, err = store.StorageKey("zz" + strings.Repeat("00", 31))
	assert.True(t, vfaceerr.HasCode(err, vfaceerr.CodeStoreInvalidInput))

	// Non-hex characters past the key-bearing prefix are rejected too.
	_, err = store.StorageKey("a1b2c3d4e5f60718" + strings.Repeat("zz", 24))
	assert.True(t, vfaceerr.HasCode(err, vfaceerr.CodeStoreInvalidInput))
}

func TestRoundScore(t *testing.T) {
	assert.Equal(t, 0.8765, store.RoundScore(0.87654))
	assert.Equal(t, 0.8766, store.RoundScore(0.87655))
	assert.Equal(t, 1.0, store.RoundScore(1.2))
	assert.Equal(t, 0.0, store.RoundScore(-0.1))
}
