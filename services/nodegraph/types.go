// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package nodegraph

import (
	"github.com/AleutianAI/objectnodes/services/nodegraph/backend"
	"github.com/AleutianAI/objectnodes/services/nodegraph/compiler"
	"github.com/AleutianAI/objectnodes/services/nodegraph/tree"
	"github.com/AleutianAI/objectnodes/services/nodegraph/typedesc"
)

// ServiceVersion is reported by the health endpoint.
const ServiceVersion = "0.1.0"

// =============================================================================
// Requests
// =============================================================================

// CompileRequest is the body of POST /v1/nodegraph/compile.
type CompileRequest struct {
	// Library is the tree library to compile.
	Library *tree.Library `json:"library" binding:"required"`

	// Evaluate evaluates every value-typed graph output after compiling.
	Evaluate bool `json:"evaluate,omitempty"`

	// Args are external graph input values used by evaluation.
	Args map[string]any `json:"args,omitempty"`

	// Iteration is the value ITERATION nodes produce during evaluation.
	Iteration int32 `json:"iteration,omitempty"`

	// Persist stores the compiled graph under its tree hash.
	Persist bool `json:"persist,omitempty"`

	// IncludeSnapshot returns the compiled graph in the response.
	IncludeSnapshot bool `json:"include_snapshot,omitempty"`
}

// CompileOptions are the non-document parts of a compile.
type CompileOptions struct {
	Evaluate  bool
	Args      map[string]any
	Iteration int32
	Persist   bool
}

// =============================================================================
// Responses
// =============================================================================

// CompileResponse reports a successful compile.
type CompileResponse struct {
	SessionID  string            `json:"session_id"`
	Main       string            `json:"main"`
	TreeHash   string            `json:"tree_hash"`
	Stats      compiler.Stats    `json:"stats"`
	DurationMs int64             `json:"duration_ms"`
	Persisted  bool              `json:"persisted"`
	Outputs    map[string]any    `json:"outputs,omitempty"`
	Snapshot   *backend.Snapshot `json:"snapshot,omitempty"`
}

// ValidateResponse reports whether a document is a valid library.
type ValidateResponse struct {
	Valid    bool   `json:"valid"`
	Main     string `json:"main,omitempty"`
	Trees    int    `json:"trees,omitempty"`
	TreeHash string `json:"tree_hash,omitempty"`
	Error    string `json:"error,omitempty"`
	Code     string `json:"code,omitempty"`
}

// TypesResponse describes everything a tree document can reference.
type TypesResponse struct {
	ValueTypes  []string                     `json:"value_types"`
	NodeKinds   []string                     `json:"node_kinds"`
	NodeTypes   []string                     `json:"node_types"`
	Signatures  map[string]backend.Signature `json:"signatures"`
	Conversions []typedesc.Conversion        `json:"conversions"`
}

// GraphListResponse lists stored graph hashes.
type GraphListResponse struct {
	Hashes []string `json:"hashes"`
}

// HealthResponse is returned by GET /v1/nodegraph/health.
type HealthResponse struct {
	Status  string `json:"status"`
	Version string `json:"version"`
	Store   bool   `json:"store"`
}

// ErrorResponse is returned for every failed request.
type ErrorResponse struct {
	// Error is the error message.
	Error string `json:"error"`

	// Code is the stable error code.
	Code string `json:"code,omitempty"`

	// RequestID echoes X-Request-ID.
	RequestID string `json:"request_id,omitempty"`
}
