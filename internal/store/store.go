// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 VFace Contributors

// Package store defines the narrow interface to the vector-similarity index
// holding enrolled identities, plus the backend registry and startup
// bootstrap. Backends live in subpackages and self-register from init().
package store

import (
	"context"
	"time"
)

// Status is the lifecycle state of an identity record. The only transition
// is StatusActive → StatusRevoked; revocation is terminal and records are
// never physically deleted.
type Status string

const (
	StatusActive  Status = "active"
	StatusRevoked Status = "revoked"
)

// RecordPayload is the non-vector half of an identity record. The
// fingerprint is carried in the payload so it is recoverable from a raw hit.
type RecordPayload struct {
	Fingerprint string            `json:"fingerprint"`
	UserID      string            `json:"user_id"`
	Status      Status            `json:"status"`
	EnrolledAt  time.Time         `json:"enrolled_at"`
	Metadata    map[string]string `json:"metadata,omitempty"`
}

// Match is a single similarity hit against an active record.
type Match struct {
	Fingerprint string
	UserID      string
	// Score is cosine similarity, already clamped to [0,1] and rounded to
	// 4 decimal digits.
	Score float64
}

// CollectionInfo is a diagnostics snapshot for the health probe.
type CollectionInfo struct {
	Name      string `json:"name"`
	Backend   string `json:"backend"`
	Points    int64  `json:"points_count"`
	Active    int64  `json:"active_count"`
	VectorDim int    `json:"vector_dim"`
	Status    string `json:"status"`
}

// IdentityStore is the synchronous client for the external vector index.
// Implementations must be safe for concurrent use; connection pooling is the
// backend's responsibility.
type IdentityStore interface {
	// EnsureCollection idempotently creates the backing collection for the
	// configured dimension and cosine distance. A concurrent creator racing
	// the existence check is benign; "already exists" is success.
	EnsureCollection(ctx context.Context) error

	// Upsert writes (or overwrites) the record keyed by the fingerprint's
	// derived storage key. Re-upserting a fingerprint replaces the prior
	// record, including the documented truncated-prefix collision case.
	Upsert(ctx context.Context, fingerprint string, vector []float32, payload RecordPayload) error

	// SearchSimilar returns up to topK active records with similarity to
	// vector >= threshold, ordered by descending score. Records below the
	// threshold are excluded, not deprioritized.
	SearchSimilar(ctx context.Context, vector []float32, threshold float64, topK int) ([]Match, error)

	// Revoke marks the record for fingerprint revoked without removing its
	// vector or payload. An unknown storage key returns
	// errors.CodeStoreRecordNotFound; revoking an already-revoked record is
	// a no-op success.
	Revoke(ctx context.Context, fingerprint string) error

	// CollectionInfo returns point counts and index health for diagnostics.
	CollectionInfo(ctx context.Context) (*CollectionInfo, error)

	Close() error
}

// RoundScore rounds a similarity score to 4 decimal digits for presentation.
func RoundScore(s float64) float64 {
	if s < 0 {
		s = 0
	}
	if s > 1 {
		s = 1
	}
	return float64(int64(s*10000+0.5)) / 10000
}
