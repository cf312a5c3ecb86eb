// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 VFace Contributors

package server

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/danielgtaylor/huma/v2"

	"github.com/vface-dev/vface/internal/matching"
	"github.com/vface-dev/vface/internal/store"
	vfaceerr "github.com/vface-dev/vface/pkg/errors"
)

func (s *Server) registerRoutes() {
	huma.Register(s.api, huma.Operation{
		OperationID:   "enroll-identity",
		Method:        http.MethodPost,
		Path:          "/enroll",
		Summary:       "Enroll an encrypted face embedding",
		Tags:          []string{"matching"},
		DefaultStatus: http.StatusCreated,
	}, s.handleEnroll)

	huma.Register(s.api, huma.Operation{
		OperationID: "search-identity",
		Method:      http.MethodPost,
		Path:        "/search",
		Summary:     "Search for similar enrolled identities",
		Tags:        []string{"matching"},
	}, s.handleSearch)

	huma.Register(s.api, huma.Operation{
		OperationID: "delete-identity",
		Method:      http.MethodPost,
		Path:        "/delete",
		Summary:     "Revoke an enrolled identity",
		Tags:        []string{"matching"},
	}, s.handleDelete)

	huma.Register(s.api, huma.Operation{
		OperationID: "health",
		Method:      http.MethodGet,
		Path:        "/health",
		Summary:     "Service and store health",
		Tags:        []string{"system"},
	}, s.handleHealth)
}

type enrollInput struct {
	Body struct {
		Fingerprint        string            `json:"fingerprint" pattern:"^[0-9a-fA-F]{64}$" doc:"64-char hex template fingerprint"`
		EncryptedEmbedding string            `json:"encrypted_embedding" doc:"Versioned hex payload iv:tag:ciphertext"`
		UserID             string            `json:"user_id,omitempty" doc:"Caller-side identity reference"`
		Metadata           map[string]string `json:"metadata,omitempty"`
	}
}

type enrollOutput struct {
	Body struct {
		Success     bool   `json:"success"`
		Fingerprint string `json:"fingerprint"`
		VectorDim   int    `json:"vector_dim"`
	}
}

type searchInput struct {
	Body struct {
		EncryptedEmbedding string  `json:"encrypted_embedding" doc:"Versioned hex payload iv:tag:ciphertext"`
		Threshold          float64 `json:"threshold,omitempty" minimum:"0" maximum:"1" doc:"Similarity cutoff, defaults to the configured threshold"`
		TopK               int     `json:"top_k,omitempty" minimum:"0" maximum:"100" doc:"Maximum matches to return, defaults to 1"`
	}
}

type searchOutput struct {
	Body struct {
		Matched      bool          `json:"matched"`
		Results      []matchResult `json:"results"`
		SearchTimeMs float64       `json:"search_time_ms"`
	}
}

type matchResult struct {
	Fingerprint string  `json:"fingerprint"`
	UserID      string  `json:"user_id"`
	Score       float64 `json:"score"`
}

type deleteInput struct {
	Body struct {
		Fingerprint string `json:"fingerprint" pattern:"^[0-9a-fA-F]{64}$" doc:"64-char hex template fingerprint"`
	}
}

type deleteOutput struct {
	Body struct {
		Success     bool   `json:"success"`
		Fingerprint string `json:"fingerprint"`
	}
}

type healthOutput struct {
	Body struct {
		Status     string                `json:"status" enum:"ok,degraded"`
		Collection *store.CollectionInfo `json:"collection,omitempty"`
		Error      string                `json:"error,omitempty"`
	}
}

func (s *Server) handleEnroll(ctx context.Context, input *enrollInput) (*enrollOutput, error) {
	result, err := s.matcher.Enroll(ctx, matching.EnrollParams{
		Fingerprint:        input.Body.Fingerprint,
		EncryptedEmbedding: input.Body.EncryptedEmbedding,
		UserID:             input.Body.UserID,
		Metadata:           input.Body.Metadata,
	})
	if err != nil {
		return nil, apiError("enrolling identity", err)
	}

	out := &enrollOutput{}
	out.Body.Success = true
	out.Body.Fingerprint = result.Fingerprint
	out.Body.VectorDim = result.VectorDim
	return out, nil
}

func (s *Server) handleSearch(ctx context.Context, input *searchInput) (*searchOutput, error) {
	result, err := s.matcher.Search(ctx, matching.SearchParams{
		EncryptedEmbedding: input.Body.EncryptedEmbedding,
		Threshold:          input.Body.Threshold,
		TopK:               input.Body.TopK,
	})
	if err != nil {
		return nil, apiError("searching identities", err)
	}

	out := &searchOutput{}
	out.Body.Matched = result.Matched
	out.Body.SearchTimeMs = result.ElapsedMs
	out.Body.Results = make([]matchResult, 0, len(result.Results))
	for _, m := range result.Results {
		out.Body.Results = append(out.Body.Results, matchResult{
			Fingerprint: m.Fingerprint,
			UserID:      m.UserID,
			Score:       m.Score,
		})
	}
	return out, nil
}

func (s *Server) handleDelete(ctx context.Context, input *deleteInput) (*deleteOutput, error) {
	result, err := s.matcher.Revoke(ctx, input.Body.Fingerprint)
	if err != nil {
		return nil, apiError("revoking identity", err)
	}

	out := &deleteOutput{}
	out.Body.Success = true
	out.Body.Fingerprint = result.Fingerprint
	return out, nil
}

func (s *Server) handleHealth(ctx context.Context, _ *struct{}) (*healthOutput, error) {
	status := s.matcher.Health(ctx)

	out := &healthOutput{}
	out.Body.Status = status.Status
	out.Body.Collection = status.Collection
	out.Body.Error = status.Error
	return out, nil
}

// apiError converts a service error into the status its class maps to.
// Decrypt failures share one uniform client message so tampered payloads
// are indistinguishable from wrong keys, and 5xx detail stays in the
// server log rather than the response.
func apiError(action string, err error) error {
	status := vfaceerr.HTTPStatus(err)

	switch {
	case vfaceerr.IsDecryptFailure(err):
		return huma.NewError(status, "invalid encrypted payload")
	case status >= http.StatusInternalServerError:
		slog.Error(action, "error", err)
		return huma.NewError(status, action+" failed")
	default:
		return huma.NewError(status, err.Error())
	}
}
