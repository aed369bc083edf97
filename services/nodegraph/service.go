// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package nodegraph exposes the node graph compiler as a service.
//
// Service ties the pieces together: it builds a reference backend graph
// for the main tree's signature, compiles the library into it, optionally
// evaluates the value outputs and caches the result in the graph store.
// Handlers and RegisterRoutes put the service behind gin.
package nodegraph

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/AleutianAI/objectnodes/services/nodegraph/backend"
	"github.com/AleutianAI/objectnodes/services/nodegraph/compiler"
	"github.com/AleutianAI/objectnodes/services/nodegraph/store"
	"github.com/AleutianAI/objectnodes/services/nodegraph/tree"
	"github.com/AleutianAI/objectnodes/services/nodegraph/typedesc"
)

// ServiceConfig configures the node graph service.
type ServiceConfig struct {
	// MaxCompileDuration bounds a single compile including evaluation.
	// Default: 10s
	MaxCompileDuration time.Duration `yaml:"max_compile_duration" validate:"gt=0"`
}

// DefaultServiceConfig returns sensible defaults.
func DefaultServiceConfig() ServiceConfig {
	return ServiceConfig{
		MaxCompileDuration: 10 * time.Second,
	}
}

// Service compiles, evaluates and stores node graphs.
//
// Thread Safety: Safe for concurrent use. Every compile builds its own
// backend graph; the node type table is only read.
type Service struct {
	cfg      ServiceConfig
	types    *backend.NodeTypeTable
	compiler *compiler.Compiler
	store    *store.Store
	logger   *slog.Logger
}

// NewService creates a service.
//
// Inputs:
//
//	cfg - Service configuration.
//	types - Backend node type table. Must not be nil.
//	comp - Compiler holding the node kinds. Must not be nil.
//	st - Graph store. May be nil, which disables persistence.
//	logger - Logger. Nil uses slog.Default().
func NewService(cfg ServiceConfig, types *backend.NodeTypeTable, comp *compiler.Compiler, st *store.Store, logger *slog.Logger) (*Service, error) {
	if types == nil || comp == nil {
		return nil, fmt.Errorf("%w: node types and compiler are required", compiler.ErrInvalidInput)
	}
	if cfg.MaxCompileDuration <= 0 {
		cfg.MaxCompileDuration = DefaultServiceConfig().MaxCompileDuration
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		cfg:      cfg,
		types:    types,
		compiler: comp,
		store:    st,
		logger:   logger,
	}, nil
}

// HasStore reports whether persistence is enabled.
func (s *Service) HasStore() bool { return s.store != nil }

// Build compiles lib into a new committed reference graph.
//
// Description:
//
//	The graph signature is taken from the kind of the main tree. On
//	failure the graph is discarded and only the error is returned.
//
// Outputs:
//
//	*backend.Graph - The committed graph, ready for evaluation.
//	*compiler.Result - Compile statistics and snapshot.
//	error - Validation, signature or compile error.
func (s *Service) Build(ctx context.Context, lib *tree.Library) (*backend.Graph, *compiler.Result, error) {
	if lib == nil {
		return nil, nil, fmt.Errorf("%w: nil library", tree.ErrInvalidTree)
	}
	main, err := lib.MainTree()
	if err != nil {
		return nil, nil, err
	}
	sig, err := backend.SignatureFor(main.Kind)
	if err != nil {
		return nil, nil, err
	}
	graph, err := backend.NewGraph(s.types, sig, backend.WithLogger(s.logger))
	if err != nil {
		return nil, nil, fmt.Errorf("create graph: %w", err)
	}
	result, err := s.compiler.Compile(ctx, lib, graph)
	if err != nil {
		return nil, nil, err
	}
	return graph, result, nil
}

// Compile compiles a library and applies opts.
//
// Description:
//
//	Compiles within MaxCompileDuration. With opts.Evaluate every graph
//	output whose type carries a value is evaluated. With opts.Persist and
//	a configured store the graph is saved under its tree hash; a store
//	failure is logged and reported through Persisted=false rather than
//	failing the compile.
//
// Outputs:
//
//	*CompileResponse - Compile result and evaluated outputs.
//	error - Non-nil on any fatal compile or evaluation error.
func (s *Service) Compile(ctx context.Context, lib *tree.Library, opts CompileOptions) (*CompileResponse, error) {
	ctx, cancel := context.WithTimeout(ctx, s.cfg.MaxCompileDuration)
	defer cancel()

	graph, result, err := s.Build(ctx, lib)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return nil, fmt.Errorf("%w: %v", ErrCompileTimeout, err)
		}
		return nil, err
	}

	resp := &CompileResponse{
		SessionID:  result.SessionID,
		Main:       result.Main,
		TreeHash:   result.TreeHash,
		Stats:      result.Stats,
		DurationMs: result.Duration.Milliseconds(),
		Snapshot:   result.Snapshot,
	}

	if opts.Evaluate {
		outputs, err := Evaluate(graph, opts.Args, opts.Iteration)
		if err != nil {
			return nil, err
		}
		resp.Outputs = outputs
	}

	if opts.Persist && s.store != nil {
		if err := s.store.Put(ctx, store.RecordFromResult(result)); err != nil {
			s.logger.Warn("persist compiled graph failed",
				slog.String("tree_hash", result.TreeHash),
				slog.String("error", err.Error()),
			)
		} else {
			resp.Persisted = true
		}
	}

	return resp, nil
}

// Evaluate evaluates every value-typed external output of a committed graph.
// Outputs without a value representation (MESH, DUPLIS) are omitted.
func Evaluate(graph *backend.Graph, args map[string]any, iteration int32) (map[string]any, error) {
	eval, err := backend.NewEvaluator(graph, args)
	if err != nil {
		return nil, err
	}
	eval.SetIteration(iteration)

	outputs := make(map[string]any)
	for _, p := range graph.Signature().Outputs {
		if !p.Type.HasValue() {
			continue
		}
		v, err := eval.EvalOutput(p.Name)
		if err != nil {
			return nil, fmt.Errorf("evaluate output %q: %w", p.Name, err)
		}
		outputs[p.Name] = v
	}
	return outputs, nil
}

// Validate parses and validates a library document.
//
// An invalid document is not an error: the response carries Valid=false
// with the message and error code.
func (s *Service) Validate(ctx context.Context, data []byte) (*ValidateResponse, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	lib, err := tree.Parse(data)
	if err != nil {
		_, code := classify(err)
		return &ValidateResponse{Valid: false, Error: err.Error(), Code: code}, nil
	}
	hash, err := tree.Hash(lib)
	if err != nil {
		return nil, fmt.Errorf("hash library: %w", err)
	}
	return &ValidateResponse{
		Valid:    true,
		Main:     lib.Main,
		Trees:    len(lib.Trees),
		TreeHash: hash,
	}, nil
}

// Types describes the value types, node kinds, backend node types,
// signatures and conversions the service knows.
func (s *Service) Types() *TypesResponse {
	resp := &TypesResponse{
		NodeKinds:   s.compiler.Kinds().Names(),
		NodeTypes:   s.types.Names(),
		Signatures:  make(map[string]backend.Signature),
		Conversions: typedesc.DeclaredPairs(),
	}
	for _, vt := range typedesc.AllTypes() {
		resp.ValueTypes = append(resp.ValueTypes, vt.String())
	}
	for _, kind := range backend.SignatureKinds() {
		if sig, err := backend.SignatureFor(kind); err == nil {
			resp.Signatures[kind] = sig
		}
	}
	return resp
}

// Graph returns a stored graph by tree hash.
func (s *Service) Graph(ctx context.Context, hash string) (*store.Record, error) {
	if s.store == nil {
		return nil, ErrStoreDisabled
	}
	return s.store.Get(ctx, hash)
}

// Graphs lists stored tree hashes.
func (s *Service) Graphs(ctx context.Context) ([]string, error) {
	if s.store == nil {
		return nil, ErrStoreDisabled
	}
	return s.store.List(ctx)
}

// DeleteGraph removes a stored graph.
func (s *Service) DeleteGraph(ctx context.Context, hash string) error {
	if s.store == nil {
		return ErrStoreDisabled
	}
	return s.store.Delete(ctx, hash)
}
