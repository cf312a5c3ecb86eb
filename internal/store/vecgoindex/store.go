// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 VFace Contributors

// Package vecgoindex implements store.IdentityStore on an embedded vecgo
// flat index with cosine distance. State lives in process memory, so this
// backend suits single-node deployments and tests; durability comes from the
// sqlite backend.
package vecgoindex

import (
	"context"
	"sync"

	"github.com/hupe1980/vecgo"
	"github.com/hupe1980/vecgo/metadata"

	"github.com/vface-dev/vface/internal/store"
	vfaceerr "github.com/vface-dev/vface/pkg/errors"
)

func init() {
	store.RegisterBackend("vecgo", func(cfg store.Config) (store.IdentityStore, error) {
		return New(cfg)
	})
}

// Compile-time interface check.
var _ store.IdentityStore = (*Store)(nil)

// entry tracks what the index holds for one storage key. The vector copy is
// kept so revocation can rewrite the point without a way to read vectors
// back out of the index.
type entry struct {
	indexID uint64
	vector  []float32
	payload store.RecordPayload
}

// Store implements store.IdentityStore on vecgo's flat (exact) index.
type Store struct {
	collection string
	dim        int

	mu      sync.RWMutex
	db      *vecgo.Vecgo[store.RecordPayload]
	entries map[uint64]*entry
}

// New creates the embedded store. The index itself is built lazily by
// EnsureCollection, matching the external-store bootstrap contract.
func New(cfg store.Config) (*Store, error) {
	if cfg.VectorDim < 1 {
		return nil, vfaceerr.Errorf(vfaceerr.CodeStoreInvalidInput,
			"vector dimension must be positive, got %d", cfg.VectorDim)
	}

	return &Store{
		collection: cfg.Collection,
		dim:        cfg.VectorDim,
		entries:    make(map[uint64]*entry),
	}, nil
}

// EnsureCollection builds the flat index if it does not exist yet.
func (s *Store) EnsureCollection(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.db != nil {
		return nil
	}

	db, err := vecgo.Flat[store.RecordPayload](s.dim).Cosine().Build()
	if err != nil {
		return vfaceerr.Wrap(err, vfaceerr.CodeStoreUnreachable, "building vecgo index")
	}
	s.db = db
	return nil
}

func statusMeta(status store.Status) metadata.Metadata {
	return metadata.Metadata{"status": metadata.String(string(status))}
}

// Upsert inserts or replaces the point for the fingerprint's storage key.
func (s *Store) Upsert(ctx context.Context, fingerprint string, vector []float32, payload store.RecordPayload) error {
	key, err := store.StorageKey(fingerprint)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.db == nil {
		return vfaceerr.New(vfaceerr.CodeStoreUnreachable, "collection not initialized")
	}

	vec := make([]float32, len(vector))
	copy(vec, vector)
	item := vecgo.VectorWithData[store.RecordPayload]{
		Vector:   vec,
		Data:     payload,
		Metadata: statusMeta(payload.Status),
	}

	if existing, ok := s.entries[key]; ok {
		if err := s.db.Update(ctx, existing.indexID, item); err != nil {
			return vfaceerr.Wrap(err, vfaceerr.CodeStoreUnreachable, "updating point",
				vfaceerr.FieldFingerprint(fingerprint))
		}
		existing.vector = vec
		existing.payload = payload
		return nil
	}

	id, err := s.db.Insert(ctx, item)
	if err != nil {
		return vfaceerr.Wrap(err, vfaceerr.CodeStoreUnreachable, "inserting point",
			vfaceerr.FieldFingerprint(fingerprint))
	}
	s.entries[key] = &entry{indexID: id, vector: vec, payload: payload}
	return nil
}

// SearchSimilar queries the index restricted to active points. With the
// cosine metric vecgo normalizes stored vectors and reports squared L2
// distance, so similarity = 1 - distance/2.
func (s *Store) SearchSimilar(ctx context.Context, vector []float32, threshold float64, topK int) ([]store.Match, error) {
	if topK < 1 {
		topK = 1
	}

	s.mu.RLock()
	db := s.db
	s.mu.RUnlock()
	if db == nil {
		return nil, vfaceerr.New(vfaceerr.CodeStoreUnreachable, "collection not initialized")
	}

	activeOnly := metadata.NewFilterSet(metadata.Filter{
		Key:      "status",
		Operator: metadata.OpEqual,
		Value:    metadata.String(string(store.StatusActive)),
	})

	// The hybrid search path rejects an exploration factor below k.
	ef := topK
	if ef < 64 {
		ef = 64
	}

	// PreFilter applies the status constraint during the scan. With
	// post-filtering the index only oversamples a bounded candidate set, so
	// revoked points ranked nearer than an active match can crowd it out of
	// the result entirely.
	results, err := db.HybridSearch(ctx, vector, topK, func(o *vecgo.HybridSearchOptions) {
		o.EF = ef
		o.MetadataFilters = activeOnly
		o.PreFilter = true
	})
	if err != nil {
		return nil, vfaceerr.Wrap(err, vfaceerr.CodeStoreUnreachable, "searching index")
	}

	var matches []store.Match
	for _, r := range results {
		similarity := 1 - float64(r.Distance)/2
		if similarity < threshold {
			continue
		}
		matches = append(matches, store.Match{
			Fingerprint: r.Data.Fingerprint,
			UserID:      r.Data.UserID,
			Score:       store.RoundScore(similarity),
		})
	}
	return matches, nil
}

// Revoke rewrites the point with status revoked; the vector and payload are
// retained.
func (s *Store) Revoke(ctx context.Context, fingerprint string) error {
	key, err := store.StorageKey(fingerprint)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.db == nil {
		return vfaceerr.New(vfaceerr.CodeStoreUnreachable, "collection not initialized")
	}

	existing, ok := s.entries[key]
	if !ok {
		return vfaceerr.New(vfaceerr.CodeStoreRecordNotFound, "no record for fingerprint",
			vfaceerr.FieldFingerprint(fingerprint))
	}

	if existing.payload.Status == store.StatusRevoked {
		// Terminal state; revoke is idempotent.
		return nil
	}

	revoked := existing.payload
	revoked.Status = store.StatusRevoked

	item := vecgo.VectorWithData[store.RecordPayload]{
		Vector:   existing.vector,
		Data:     revoked,
		Metadata: statusMeta(store.StatusRevoked),
	}
	if err := s.db.Update(ctx, existing.indexID, item); err != nil {
		return vfaceerr.Wrap(err, vfaceerr.CodeStoreUnreachable, "updating point status",
			vfaceerr.FieldFingerprint(fingerprint))
	}

	existing.payload = revoked
	return nil
}

// CollectionInfo reports point counts from the entry table.
func (s *Store) CollectionInfo(_ context.Context) (*store.CollectionInfo, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.db == nil {
		return nil, vfaceerr.New(vfaceerr.CodeStoreUnreachable, "collection not initialized")
	}

	var active int64
	for _, e := range s.entries {
		if e.payload.Status == store.StatusActive {
			active++
		}
	}

	return &store.CollectionInfo{
		Name:      s.collection,
		Backend:   "vecgo",
		Points:    int64(len(s.entries)),
		Active:    active,
		VectorDim: s.dim,
		Status:    "green",
	}, nil
}

// Close releases the index.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.db == nil {
		return nil
	}
	err := s.db.Close()
	s.db = nil
	return err
}
