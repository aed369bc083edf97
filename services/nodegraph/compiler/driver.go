// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package compiler

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	"github.com/AleutianAI/objectnodes/services/nodegraph/backend"
	"github.com/AleutianAI/objectnodes/services/nodegraph/tree"
)

var (
	tracer = otel.Tracer("objectnodes.compiler")
	meter  = otel.Meter("objectnodes.compiler")
)

// =============================================================================
// Tree Driver
// =============================================================================

// CompileTree compiles every node of t in authoring order, then resolves
// the tree's links.
//
// Description:
//
//	Nodes of unregistered kinds are skipped. Each remaining node is pushed,
//	compiled by its kind and popped. Links are then resolved through the
//	boundary proxies of the compiled nodes; disabled links and links whose
//	endpoints were never registered are skipped and counted.
func (c *NodeCompiler) CompileTree(t *tree.Tree) error {
	if t == nil {
		return fmt.Errorf("%w: nil tree", ErrInvalidInput)
	}
	for i, active := range c.trees {
		if active == t {
			path := make([]string, 0, len(c.trees)-i+1)
			for _, at := range c.trees[i:] {
				path = append(path, at.Name)
			}
			return tree.NewCycleError(append(path, t.Name))
		}
	}
	c.trees = append(c.trees, t)
	defer func() { c.trees = c.trees[:len(c.trees)-1] }()

	frames := make(map[string]*Frame, len(t.Nodes))
	for _, node := range t.Nodes {
		kind, ok := c.kinds.Lookup(node.Kind)
		if !ok {
			c.stats.SkippedNodes++
			c.logger.Debug("node kind not registered, skipping",
				slog.String("tree", t.Name),
				slog.String("node", node.Name),
				slog.String("kind", node.Kind),
			)
			continue
		}

		f, err := c.Push(node)
		if err != nil {
			return err
		}
		if err := kind.Compile(c, node); err != nil {
			return &NodeError{NodeName: c.qualify(node.Name), Kind: node.Kind, Err: err}
		}
		if err := c.Pop(); err != nil {
			return err
		}
		frames[node.Name] = f
	}

	for _, l := range t.Links {
		if l.Disabled {
			c.stats.DisabledLinks++
			continue
		}
		src, dst := c.resolveLink(frames, l)
		if src == nil || dst == nil {
			c.stats.DanglingLinks++
			c.logger.Debug("dangling link skipped",
				slog.String("tree", t.Name),
				slog.String("link", l.String()),
			)
			continue
		}
		if err := c.Link(src, dst); err != nil {
			return fmt.Errorf("tree %q link %s: %w", t.Name, l, err)
		}
	}
	return nil
}

// resolveLink maps a user link onto the boundary proxies of its endpoints.
// Either result is nil when the endpoint was not registered.
func (c *NodeCompiler) resolveLink(frames map[string]*Frame, l tree.Link) (*OutputProxy, *InputProxy) {
	from, ok := frames[l.FromNode]
	if !ok {
		return nil, nil
	}
	to, ok := frames[l.ToNode]
	if !ok {
		return nil, nil
	}
	srcProxy, err := from.Outputs.Lookup(l.FromSocket)
	if err != nil {
		return nil, nil
	}
	dstProxy, err := to.Inputs.Lookup(l.ToSocket)
	if err != nil {
		return nil, nil
	}
	out, _ := srcProxy.Outputs.At(0)
	in, _ := dstProxy.Inputs.At(0)
	return out, in
}

// CompileSubtree compiles the named tree inside the current frame. Nodes
// of the nested tree are named under the current node's path.
func (c *NodeCompiler) CompileSubtree(name string) error {
	if c.lib == nil {
		return fmt.Errorf("%w: %q (no library)", tree.ErrGroupNotFound, name)
	}
	t, ok := c.lib.Tree(name)
	if !ok {
		return fmt.Errorf("%w: %q", tree.ErrGroupNotFound, name)
	}
	if f := c.Top(); f != nil {
		c.prefix = append(c.prefix, f.Node.Name)
		defer func() { c.prefix = c.prefix[:len(c.prefix)-1] }()
	}
	return c.CompileTree(t)
}

// =============================================================================
// Compiler
// =============================================================================

// Result describes a finished compile pass.
type Result struct {
	SessionID string            `json:"session_id" yaml:"session_id"`
	Main      string            `json:"main" yaml:"main"`
	TreeHash  string            `json:"tree_hash" yaml:"tree_hash"`
	Stats     Stats             `json:"stats" yaml:"stats"`
	Duration  time.Duration     `json:"duration" yaml:"duration"`
	Snapshot  *backend.Snapshot `json:"snapshot,omitempty" yaml:"snapshot,omitempty"`
}

// snapshotter is implemented by backends that can describe their graph.
type snapshotter interface {
	Snapshot() *backend.Snapshot
}

// Compiler compiles libraries into backend graphs.
//
// Thread Safety: Safe for concurrent use. Every Compile call builds its
// own NodeCompiler; the graph passed in must not be shared.
type Compiler struct {
	kinds  *KindTable
	logger *slog.Logger

	metricsOnce    sync.Once
	compileLatency metric.Float64Histogram
	compileTotal   metric.Int64Counter
	conversions    metric.Int64Counter
	danglingLinks  metric.Int64Counter
}

// New creates a Compiler.
//
// Inputs:
//
//	kinds - The node kinds to compile. Must not be nil.
//	logger - Logger for compile logs. If nil, uses slog.Default().
func New(kinds *KindTable, logger *slog.Logger) (*Compiler, error) {
	if kinds == nil {
		return nil, ErrInvalidInput
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Compiler{kinds: kinds, logger: logger}, nil
}

// Kinds returns the kind table.
func (c *Compiler) Kinds() *KindTable { return c.kinds }

// initMetrics lazily initializes metrics.
func (c *Compiler) initMetrics() {
	c.metricsOnce.Do(func() {
		var initErrors []string
		var err error

		c.compileLatency, err = meter.Float64Histogram("nodegraph_compile_duration_seconds",
			metric.WithDescription("Time spent compiling a node library"),
			metric.WithUnit("s"),
		)
		if err != nil {
			initErrors = append(initErrors, "compile_latency: "+err.Error())
		}

		c.compileTotal, err = meter.Int64Counter("nodegraph_compile_total",
			metric.WithDescription("Number of compile passes by status"),
		)
		if err != nil {
			initErrors = append(initErrors, "compile_total: "+err.Error())
		}

		c.conversions, err = meter.Int64Counter("nodegraph_conversions_total",
			metric.WithDescription("Number of conversion nodes inserted"),
		)
		if err != nil {
			initErrors = append(initErrors, "conversions: "+err.Error())
		}

		c.danglingLinks, err = meter.Int64Counter("nodegraph_dangling_links_total",
			metric.WithDescription("Number of user links skipped as dangling"),
		)
		if err != nil {
			initErrors = append(initErrors, "dangling_links: "+err.Error())
		}

		if len(initErrors) > 0 {
			c.logger.Error("failed to initialize some compiler metrics (observability degraded)",
				slog.Int("failed_count", len(initErrors)),
				slog.Any("errors", initErrors),
			)
		}
	})
}

// Compile translates lib into graph.
//
// Description:
//
//	Validates the library, resolves the sockets of every node of a
//	registered kind, then compiles the main tree. On success the graph is
//	committed when it implements backend.Committer; on any error it is
//	discarded. Creates a span and records metrics.
//
// Inputs:
//
//	ctx - Context for tracing and cancellation. Must not be nil.
//	lib - The library to compile.
//	graph - A fresh backend graph.
//
// Outputs:
//
//	*Result - Statistics and, when the backend supports it, a snapshot.
//	error - Non-nil on any fatal error; the graph is discarded.
func (c *Compiler) Compile(ctx context.Context, lib *tree.Library, graph backend.GraphBuilder) (result *Result, err error) {
	if ctx == nil {
		return nil, ErrNilContext
	}
	if lib == nil || graph == nil {
		return nil, ErrInvalidInput
	}

	c.initMetrics()

	ctx, span := tracer.Start(ctx, "nodegraph.Compile",
		trace.WithAttributes(
			attribute.String("nodegraph.main", lib.Main),
			attribute.Int("nodegraph.tree_count", len(lib.Trees)),
		),
	)
	defer span.End()

	start := time.Now()
	sessionID := uuid.NewString()
	logger := c.logger.With(slog.String("session_id", sessionID))

	result = &Result{SessionID: sessionID, Main: lib.Main}
	committer, _ := graph.(backend.Committer)

	defer func() {
		result.Duration = time.Since(start)
		status := "ok"
		if err != nil {
			status = "error"
			if committer != nil {
				committer.Discard()
			}
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			logger.Error("compile failed",
				slog.String("main", lib.Main),
				slog.Duration("duration", result.Duration),
				slog.String("error", err.Error()),
			)
		} else {
			span.SetStatus(codes.Ok, "")
			logger.Info("compile completed",
				slog.String("main", lib.Main),
				slog.Duration("duration", result.Duration),
				slog.Int("nodes", result.Stats.Nodes),
				slog.Int("proxies", result.Stats.Proxies),
				slog.Int("conversions", result.Stats.Conversions),
				slog.Int("dangling_links", result.Stats.DanglingLinks),
			)
		}
		c.record(ctx, status, result)
	}()

	if err := ctx.Err(); err != nil {
		return result, err
	}

	if err := tree.Validate(lib); err != nil {
		return result, err
	}
	hash, err := tree.Hash(lib)
	if err != nil {
		return result, err
	}
	result.TreeHash = hash
	span.SetAttributes(attribute.String("nodegraph.tree_hash", hash))

	if err := c.declareAll(lib); err != nil {
		return result, err
	}

	main, err := lib.MainTree()
	if err != nil {
		return result, err
	}

	nc, err := NewNodeCompiler(graph, c.kinds, lib, logger)
	if err != nil {
		return result, err
	}
	logger.Debug("compile started", slog.String("main", main.Name), slog.Int("nodes", len(main.Nodes)))

	compileErr := nc.CompileTree(main)
	result.Stats = nc.Stats()
	if compileErr != nil {
		return result, compileErr
	}
	if nc.Depth() != 0 {
		return result, fmt.Errorf("%w: depth %d", ErrStackNotEmpty, nc.Depth())
	}

	if committer != nil {
		if err := committer.Commit(); err != nil {
			return result, fmt.Errorf("commit graph: %w", err)
		}
	}
	if s, ok := graph.(snapshotter); ok {
		result.Snapshot = s.Snapshot()
	}
	return result, nil
}

// declareAll resolves the sockets of every registered node so that bad
// declarations fail before any backend node is created.
func (c *Compiler) declareAll(lib *tree.Library) error {
	for _, t := range lib.Trees {
		ctx := DeclareContext{Library: lib, Tree: t}
		for _, node := range t.Nodes {
			kind, ok := c.kinds.Lookup(node.Kind)
			if !ok {
				continue
			}
			if _, _, err := kind.Declare(node, ctx); err != nil {
				return &NodeError{NodeName: t.Name + "/" + node.Name, Kind: node.Kind, Err: err}
			}
		}
	}
	return nil
}

func (c *Compiler) record(ctx context.Context, status string, result *Result) {
	attrs := metric.WithAttributes(attribute.String("status", status))
	if c.compileLatency != nil {
		c.compileLatency.Record(ctx, result.Duration.Seconds(), attrs)
	}
	if c.compileTotal != nil {
		c.compileTotal.Add(ctx, 1, attrs)
	}
	if c.conversions != nil && result.Stats.Conversions > 0 {
		c.conversions.Add(ctx, int64(result.Stats.Conversions))
	}
	if c.danglingLinks != nil && result.Stats.DanglingLinks > 0 {
		c.danglingLinks.Add(ctx, int64(result.Stats.DanglingLinks))
	}
}
