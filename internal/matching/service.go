// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 VFace Contributors

// Package matching orchestrates the decrypt → normalize → dedup-check →
// store/query → revoke pipeline. It is the only caller of the payload codec,
// and it scrubs every plaintext vector before returning.
package matching

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"time"

	"github.com/vface-dev/vface/internal/crypto"
	"github.com/vface-dev/vface/internal/embedding"
	"github.com/vface-dev/vface/internal/store"
	vfaceerr "github.com/vface-dev/vface/pkg/errors"
)

// Config holds the matching policy knobs.
type Config struct {
	// VectorDim is the required embedding length.
	VectorDim int

	// DefaultThreshold is the similarity threshold applied to searches that
	// do not supply one.
	DefaultThreshold float64

	// EnrollmentThreshold is the duplicate-identity cutoff; zero falls back
	// to DefaultThreshold.
	EnrollmentThreshold float64
}

func (c Config) enrollmentThreshold() float64 {
	if c.EnrollmentThreshold > 0 {
		return c.EnrollmentThreshold
	}
	return c.DefaultThreshold
}

// Service implements the enroll/search/revoke operations and the health
// probe. The store handle is shared across concurrent requests; the
// enrollment check-then-insert sequence is not serialized, so two concurrent
// enrollments of near-duplicate vectors can both pass the duplicate check.
// Neither backend offers a conditional insert; that race window is an
// accepted, documented risk.
type Service struct {
	store   store.IdentityStore
	keys    crypto.KeyResolver
	cfg     Config
	metrics *Metrics
}

// New creates a Service. metrics may be nil.
func New(s store.IdentityStore, keys crypto.KeyResolver, cfg Config, metrics *Metrics) *Service {
	if cfg.VectorDim == 0 {
		cfg.VectorDim = embedding.Dim
	}
	return &Service{store: s, keys: keys, cfg: cfg, metrics: metrics}
}

// EnrollParams carries one enrollment request.
type EnrollParams struct {
	Fingerprint        string
	EncryptedEmbedding string
	UserID             string
	Metadata           map[string]string
}

// EnrollResult reports a successful enrollment.
type EnrollResult struct {
	Fingerprint string
	VectorDim   int
}

// Enroll decrypts the payload, gates on dimension, normalizes, rejects
// near-duplicate active identities, and stores a new active record.
func (s *Service) Enroll(ctx context.Context, params EnrollParams) (*EnrollResult, error) {
	// Fail before decrypting if the fingerprint can never map to a key.
	if _, err := store.StorageKey(params.Fingerprint); err != nil {
		return nil, err
	}

	vector, err := crypto.Decrypt(params.EncryptedEmbedding, s.keys)
	if err != nil {
		return nil, err
	}
	defer embedding.Scrub(vector)

	if len(vector) != s.cfg.VectorDim {
		return nil, vfaceerr.Errorf(vfaceerr.CodeMatchingDimensionMismatch,
			"expected %d-d embedding, got %d-d", s.cfg.VectorDim, len(vector))
	}

	vector = embedding.Normalize(vector)

	threshold := s.cfg.enrollmentThreshold()
	duplicates, err := s.store.SearchSimilar(ctx, vector, threshold, 1)
	if err != nil {
		s.metrics.incStoreErrors()
		return nil, err
	}
	if len(duplicates) > 0 {
		s.metrics.incDuplicates()
		hit := duplicates[0]
		// Expected in normal operation; not an anomaly.
		slog.Info("enrollment rejected: similar identity exists",
			"fingerprint", vfaceerr.Prefix(params.Fingerprint),
			"score", hit.Score,
		)
		return nil, vfaceerr.New(vfaceerr.CodeMatchingDuplicateIdentity,
			fmt.Sprintf("similar identity already exists (score: %.4f, fingerprint: %s...)",
				hit.Score, vfaceerr.Prefix(hit.Fingerprint)),
			vfaceerr.Field("score", hit.Score),
			vfaceerr.FieldFingerprint(hit.Fingerprint),
		)
	}

	userID := params.UserID
	if userID == "" {
		userID = params.Fingerprint
	}

	payload := store.RecordPayload{
		Fingerprint: params.Fingerprint,
		UserID:      userID,
		Status:      store.StatusActive,
		EnrolledAt:  time.Now().UTC(),
		Metadata:    params.Metadata,
	}

	if err := s.store.Upsert(ctx, params.Fingerprint, vector, payload); err != nil {
		s.metrics.incStoreErrors()
		return nil, err
	}

	s.metrics.incEnrollments()
	slog.Info("enrolled identity", "fingerprint", vfaceerr.Prefix(params.Fingerprint))

	return &EnrollResult{Fingerprint: params.Fingerprint, VectorDim: s.cfg.VectorDim}, nil
}

// SearchParams carries one similarity query.
type SearchParams struct {
	EncryptedEmbedding string
	// Threshold overrides the default similarity threshold when > 0.
	Threshold float64
	// TopK bounds the result count; zero means 1.
	TopK int
}

// SearchResult reports the matches for one query.
type SearchResult struct {
	Matched   bool
	Results   []store.Match
	ElapsedMs float64
}

// Search decrypts and normalizes the query embedding and returns active
// records above the threshold, best first.
func (s *Service) Search(ctx context.Context, params SearchParams) (*SearchResult, error) {
	start := time.Now()

	vector, err := crypto.Decrypt(params.EncryptedEmbedding, s.keys)
	if err != nil {
		return nil, err
	}
	defer embedding.Scrub(vector)

	if len(vector) != s.cfg.VectorDim {
		return nil, vfaceerr.Errorf(vfaceerr.CodeMatchingDimensionMismatch,
			"expected %d-d embedding, got %d-d", s.cfg.VectorDim, len(vector))
	}

	vector = embedding.Normalize(vector)

	threshold := params.Threshold
	if threshold <= 0 {
		threshold = s.cfg.DefaultThreshold
	}
	topK := params.TopK
	if topK < 1 {
		topK = 1
	}

	matches, err := s.store.SearchSimilar(ctx, vector, threshold, topK)
	if err != nil {
		s.metrics.incStoreErrors()
		return nil, err
	}

	elapsed := time.Since(start)
	s.metrics.observeSearch(elapsed.Seconds())

	return &SearchResult{
		Matched:   len(matches) > 0,
		Results:   matches,
		ElapsedMs: roundMillis(elapsed),
	}, nil
}

// roundMillis reports a duration in milliseconds rounded to 2 decimals for
// the wire format.
func roundMillis(d time.Duration) float64 {
	return math.Round(float64(d.Microseconds())/1000*100) / 100
}

// RevokeResult reports a revocation.
type RevokeResult struct {
	Fingerprint string
}

// Revoke soft-revokes the record for fingerprint. An unknown fingerprint
// surfaces as not-found; revoking an already-revoked record succeeds.
func (s *Service) Revoke(ctx context.Context, fingerprint string) (*RevokeResult, error) {
	if err := s.store.Revoke(ctx, fingerprint); err != nil {
		if !vfaceerr.IsNotFound(err) {
			s.metrics.incStoreErrors()
		}
		return nil, err
	}

	s.metrics.incRevocations()
	slog.Info("revoked identity", "fingerprint", vfaceerr.Prefix(fingerprint))

	return &RevokeResult{Fingerprint: fingerprint}, nil
}

// HealthStatus is the probe payload. Status is "ok" or "degraded".
type HealthStatus struct {
	Status     string                `json:"status"`
	Collection *store.CollectionInfo `json:"collection,omitempty"`
	Error      string                `json:"error,omitempty"`
}

// Health never returns an error: store failures degrade the status instead.
func (s *Service) Health(ctx context.Context) *HealthStatus {
	info, err := s.store.CollectionInfo(ctx)
	if err != nil {
		slog.Warn("health probe: store unreachable", "error", err)
		return &HealthStatus{Status: "degraded", Error: "vector store unreachable"}
	}
	return &HealthStatus{Status: "ok", Collection: info}
}
