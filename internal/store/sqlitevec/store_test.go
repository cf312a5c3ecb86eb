// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 VFace Contributors

package sqlitevec_test

import (
	"context"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vface-dev/vface/internal/embedding"
	"github.com/vface-dev/vface/internal/store"
	"github.com/vface-dev/vface/internal/store/sqlitevec"
	vfaceerr "github.com/vface-dev/vface/pkg/errors"
)

const testDim = 8

func newStore(t *testing.T) *sqlitevec.Store {
	t.Helper()

	s, err := sqlitevec.New(store.Config{
		Path:       filepath.Join(t.TempDir(), "identities.db"),
		Collection: "vface_embeddings",
		VectorDim:  testDim,
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })

	require.NoError(t, s.EnsureCollection(context.Background()))
	return s
}

func fingerprint(prefix string) string {
	return prefix + strings.Repeat("0", store.FingerprintLen-len(prefix))
}

func unitVector(axis int) []float32 {
	v := make([]float32, testDim)
	v[axis] = 1
	return v
}

func payload(fp, userID string) store.RecordPayload {
	return store.RecordPayload{
		Fingerprint: fp,
		UserID:      userID,
		Status:      store.StatusActive,
		EnrolledAt:  time.Now(),
	}
}

func TestEnsureCollection_Idempotent(t *testing.T) {
	s := newStore(t)
	// Second ensure must not fail.
	require.NoError(t, s.EnsureCollection(context.Background()))
}

func TestUpsertAndSearch(t *testing.T) {
	ctx := context.Background()
	s := newStore(t)

	fpA := fingerprint("aa11223344556677")
	fpB := fingerprint("bb11223344556677")

	require.NoError(t, s.Upsert(ctx, fpA, unitVector(0), payload(fpA, "user-a")))
	require.NoError(t, s.Upsert(ctx, fpB, unitVector(1), payload(fpB, "user-b")))

	matches, err := s.SearchSimilar(ctx, unitVector(0), 0.85, 5)
	require.NoError(t, err)
	require.Len(t, matches, 1)
	assert.Equal(t, fpA, matches[0].Fingerprint)
	assert.Equal(t, "user-a", matches[0].UserID)
	assert.InDelta(t, 1.0, matches[0].Score, 1e-3)
}

func TestSearch_ThresholdExcludes(t *testing.T) {
	ctx := context.Background()
	s := newStore(t)

	fp := fingerprint("cc11223344556677")
	require.NoError(t, s.Upsert(ctx, fp, unitVector(0), payload(fp, "user-c")))

	// An orthogonal query scores ~0 and must be excluded, not deprioritized.
	matches, err := s.SearchSimilar(ctx, unitVector(1), 0.85, 5)
	require.NoError(t, err)
	assert.Empty(t, matches)
}

func TestUpsert_SameKeyOverwrites(t *testing.T) {
	ctx := context.Background()
	s := newStore(t)

	// Same 16-char prefix, different suffix: collides by design and must
	// overwrite, not create a second record.
	fpA := "dd112233445566778" + strings.Repeat("a", store.FingerprintLen-17)
	fpB := "dd112233445566778" + strings.Repeat("b", store.FingerprintLen-17)

	require.NoError(t, s.Upsert(ctx, fpA, unitVector(0), payload(fpA, "first")))
	require.NoError(t, s.Upsert(ctx, fpB, unitVector(0), payload(fpB, "second")))

	info, err := s.CollectionInfo(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), info.Points)

	matches, err := s.SearchSimilar(ctx, unitVector(0), 0.85, 5)
	require.NoError(t, err)
	require.Len(t, matches, 1)
	assert.Equal(t, fpB, matches[0].Fingerprint)
	assert.Equal(t, "second", matches[0].UserID)
}

func TestRevoke_ExcludedFromSearch(t *testing.T) {
	ctx := context.Background()
	s := newStore(t)

	fp := fingerprint("ee11223344556677")
	vec := embedding.Normalize([]float32{1, 2, 3, 4, 5, 6, 7, 8})
	require.NoError(t, s.Upsert(ctx, fp, vec, payload(fp, "user-e")))

	require.NoError(t, s.Revoke(ctx, fp))

	// An identical query must no longer match.
	matches, err := s.SearchSimilar(ctx, vec, 0.85, 5)
	require.NoError(t, err)
	assert.Empty(t, matches)

	// The record itself is kept for audit.
	info, err := s.CollectionInfo(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), info.Points)
	assert.Equal(t, int64(0), info.Active)
}

func TestRevoke_Idempotent(t *testing.T) {
	ctx := context.Background()
	s := newStore(t)

	fp := fingerprint("ff11223344556677")
	require.NoError(t, s.Upsert(ctx, fp, unitVector(2), payload(fp, "user-f")))

	require.NoError(t, s.Revoke(ctx, fp))
	require.NoError(t, s.Revoke(ctx, fp))
}

func TestRevoke_UnknownFingerprint(t *testing.T) {
	s := newStore(t)

	err := s.Revoke(context.Background(), fingerprint("0123456789abcdef"))
	assert.True(t, vfaceerr.IsNotFound(err))
}

func TestCollectionInfo(t *testing.T) {
	ctx := context.Background()
	s := newStore(t)

	info, err := s.CollectionInfo(ctx)
	require.NoError(t, err)
	assert.Equal(t, "vface_embeddings", info.Name)
	assert.Equal(t, "sqlite", info.Backend)
	assert.Equal(t, testDim, info.VectorDim)
	assert.Equal(t, int64(0), info.Points)
}

func TestNew_InvalidConfig(t *testing.T) {
	_, err := sqlitevec.New(store.Config{Collection: "bad; drop", VectorDim: 8})
	assert.Error(t, err)

	_, err = sqlitevec.New(store.Config{Collection: "ok_name", VectorDim: 0})
	assert.Error(t, err)
}
