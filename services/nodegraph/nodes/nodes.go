// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package nodes provides the builtin node kinds: common math and vector
// nodes, constants, geometry, force field, instancing and texture nodes,
// and node groups.
//
// Each kind declares its sockets and emits backend nodes through a
// compiler.NodeCompiler. Builtin returns a KindTable holding all of them.
package nodes

import (
	"fmt"

	"github.com/AleutianAI/objectnodes/services/nodegraph/backend"
	"github.com/AleutianAI/objectnodes/services/nodegraph/compiler"
	"github.com/AleutianAI/objectnodes/services/nodegraph/tree"
	"github.com/AleutianAI/objectnodes/services/nodegraph/typedesc"
)

// Builtin returns a new table holding every builtin kind.
func Builtin() (*compiler.KindTable, error) {
	return compiler.NewKindTable(All()...)
}

// All returns fresh instances of every builtin kind.
func All() []compiler.NodeKind {
	var all []compiler.NodeKind
	all = append(all, commonKinds()...)
	all = append(all, geometryKinds()...)
	all = append(all, forceKinds()...)
	all = append(all, hairKinds()...)
	all = append(all, instancingKinds()...)
	all = append(all, textureKinds()...)
	all = append(all, groupKinds()...)
	return all
}

// =============================================================================
// Kind
// =============================================================================

type declareFunc func(node *tree.Node, ctx compiler.DeclareContext) (inputs, outputs []tree.Socket, err error)

type compileFunc func(e *emitter, node *tree.Node)

// kind is a NodeKind assembled from a declare and a compile function.
type kind struct {
	name    string
	declare declareFunc
	compile compileFunc
}

func (k *kind) Name() string { return k.name }

func (k *kind) Declare(node *tree.Node, ctx compiler.DeclareContext) ([]tree.Socket, []tree.Socket, error) {
	return k.declare(node, ctx)
}

func (k *kind) Compile(c *compiler.NodeCompiler, node *tree.Node) error {
	e := &emitter{c: c, node: node}
	k.compile(e, node)
	return e.err
}

// fixed declares the same sockets for every node of a kind.
func fixed(inputs, outputs []tree.Socket) declareFunc {
	return func(*tree.Node, compiler.DeclareContext) ([]tree.Socket, []tree.Socket, error) {
		return append([]tree.Socket(nil), inputs...), append([]tree.Socket(nil), outputs...), nil
	}
}

func sock(id string, vt typedesc.ValueType, def any) tree.Socket {
	return tree.Socket{Identifier: id, Type: vt, Default: def}
}

// =============================================================================
// Emitter
// =============================================================================

// emitter wraps a NodeCompiler for kind compile logic. The first error
// sticks; later calls become no-ops and return nil proxies.
type emitter struct {
	c    *compiler.NodeCompiler
	node *tree.Node
	err  error
}

func (e *emitter) fail(err error) {
	if e.err == nil && err != nil {
		e.err = err
	}
}

func (e *emitter) add(typeTag, suffix string) *compiler.NodeProxy {
	if e.err != nil {
		return nil
	}
	name := ""
	if suffix != "" {
		name = e.node.Name + suffix
	}
	p, err := e.c.AddNode(typeTag, name)
	e.fail(err)
	return p
}

func (e *emitter) in(p *compiler.NodeProxy, key any) *compiler.InputProxy {
	if e.err != nil {
		return nil
	}
	in, err := p.Input(key)
	e.fail(err)
	return in
}

func (e *emitter) out(p *compiler.NodeProxy, key any) *compiler.OutputProxy {
	if e.err != nil {
		return nil
	}
	out, err := p.Output(key)
	e.fail(err)
	return out
}

func (e *emitter) set(in *compiler.InputProxy, v any) {
	if e.err != nil {
		return
	}
	e.fail(in.SetValue(v))
}

func (e *emitter) link(from *compiler.OutputProxy, to *compiler.InputProxy) {
	if e.err != nil {
		return
	}
	e.fail(e.c.Link(from, to))
}

func (e *emitter) mapInput(key any, target *compiler.InputProxy) {
	if e.err != nil {
		return
	}
	e.fail(e.c.MapInput(key, target))
}

func (e *emitter) mapOutput(key any, source *compiler.OutputProxy) {
	if e.err != nil {
		return
	}
	e.fail(e.c.MapOutput(key, source))
}

func (e *emitter) mapInputExternal(key any, target *compiler.InputProxy) {
	if e.err != nil {
		return
	}
	e.fail(e.c.MapInputExternal(key, target))
}

func (e *emitter) mapOutputExternal(key any, source *compiler.OutputProxy) {
	if e.err != nil {
		return
	}
	e.fail(e.c.MapOutputExternal(key, source))
}

func (e *emitter) graphInput(name string) *compiler.OutputProxy {
	if e.err != nil {
		return nil
	}
	out, err := e.c.GraphInput(name)
	e.fail(err)
	return out
}

func (e *emitter) graphOutput(name string) *compiler.InputProxy {
	if e.err != nil {
		return nil
	}
	in, err := e.c.GraphOutput(name)
	e.fail(err)
	return in
}

func (e *emitter) linked(key any) bool {
	if e.err != nil {
		return false
	}
	ok, err := e.c.InputLinked(key)
	e.fail(err)
	return ok
}

// socketList folds a variable number of inputs into one output.
//
// With no inputs the result is an empty constant of the list type. The
// first input passes through a PASS node and each further input is merged
// with a combine node, left to right.
func (e *emitter) socketList(count int, vt typedesc.ValueType, combineType string) *compiler.OutputProxy {
	if count == 0 {
		empty := e.add(backend.ValueNodeType(vt), ".empty")
		return e.out(empty, 0)
	}

	first := e.add(backend.PassNodeType(vt), ".0")
	e.mapInput(0, e.in(first, 0))
	result := e.out(first, 0)

	for i := 1; i < count; i++ {
		combine := e.add(combineType, fmt.Sprintf(".%d", i))
		e.link(result, e.in(combine, 0))
		e.mapInput(i, e.in(combine, 1))
		result = e.out(combine, 0)
	}
	return result
}
