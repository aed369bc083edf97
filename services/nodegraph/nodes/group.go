// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package nodes

import (
	"fmt"

	"github.com/AleutianAI/objectnodes/services/nodegraph/backend"
	"github.com/AleutianAI/objectnodes/services/nodegraph/compiler"
	"github.com/AleutianAI/objectnodes/services/nodegraph/tree"
)

// Group nodes inline another tree of the library. The group node's frame
// stays on the stack while the nested tree compiles, so GroupInput and
// GroupOutput nodes inside it reach the group's proxies through the
// external mappings.
func groupKinds() []compiler.NodeKind {
	return []compiler.NodeKind{
		&kind{name: "Group", declare: declareGroup, compile: compileGroup},
		&kind{name: "GroupInput", declare: declareGroupInput, compile: compileGroupInput},
		&kind{name: "GroupOutput", declare: declareGroupOutput, compile: compileGroupOutput},
	}
}

func declareGroup(node *tree.Node, ctx compiler.DeclareContext) ([]tree.Socket, []tree.Socket, error) {
	if node.Group == "" {
		return nil, nil, fmt.Errorf("%w: group node %q references no tree", ErrInvalidProperty, node.Name)
	}
	if ctx.Library == nil {
		return nil, nil, fmt.Errorf("%w: %q", tree.ErrGroupNotFound, node.Group)
	}
	t, ok := ctx.Library.Tree(node.Group)
	if !ok {
		return nil, nil, fmt.Errorf("%w: %q", tree.ErrGroupNotFound, node.Group)
	}
	return append([]tree.Socket(nil), t.Inputs...), append([]tree.Socket(nil), t.Outputs...), nil
}

func compileGroup(e *emitter, node *tree.Node) {
	if e.err != nil {
		return
	}
	e.fail(e.c.CompileSubtree(node.Group))
}

// declareGroupInput mirrors the interface inputs of the enclosing tree as
// outputs.
func declareGroupInput(_ *tree.Node, ctx compiler.DeclareContext) ([]tree.Socket, []tree.Socket, error) {
	if ctx.Tree == nil {
		return nil, nil, nil
	}
	outputs := make([]tree.Socket, len(ctx.Tree.Inputs))
	for i, s := range ctx.Tree.Inputs {
		outputs[i] = tree.Socket{Identifier: s.Identifier, Name: s.Name, Type: s.Type}
	}
	return nil, outputs, nil
}

func compileGroupInput(e *emitter, _ *tree.Node) {
	f := e.c.Top()
	for i, id := range f.Outputs.Keys() {
		proxy, _ := f.Outputs.At(i)
		in, _ := proxy.Inputs.At(0)
		pass := e.add(backend.PassNodeType(in.Type()), "."+id)
		e.mapInputExternal(id, e.in(pass, 0))
		e.mapOutput(id, e.out(pass, 0))
	}
}

// declareGroupOutput mirrors the interface outputs of the enclosing tree
// as inputs.
func declareGroupOutput(_ *tree.Node, ctx compiler.DeclareContext) ([]tree.Socket, []tree.Socket, error) {
	if ctx.Tree == nil {
		return nil, nil, nil
	}
	inputs := make([]tree.Socket, len(ctx.Tree.Outputs))
	for i, s := range ctx.Tree.Outputs {
		inputs[i] = tree.Socket{Identifier: s.Identifier, Name: s.Name, Type: s.Type}
	}
	return inputs, nil, nil
}

func compileGroupOutput(e *emitter, _ *tree.Node) {
	f := e.c.Top()
	for i, id := range f.Inputs.Keys() {
		proxy, _ := f.Inputs.At(i)
		out, _ := proxy.Outputs.At(0)
		pass := e.add(backend.PassNodeType(out.Type()), "."+id)
		e.mapInput(id, e.in(pass, 0))
		e.mapOutputExternal(id, e.out(pass, 0))
	}
}
