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
	"github.com/AleutianAI/objectnodes/services/nodegraph/compiler"
	"github.com/AleutianAI/objectnodes/services/nodegraph/tree"
	"github.com/AleutianAI/objectnodes/services/nodegraph/typedesc"
)

// =============================================================================
// Force fields
// =============================================================================

func forceKinds() []compiler.NodeKind {
	return []compiler.NodeKind{
		&kind{
			name: "ForceOutput",
			declare: fixed([]tree.Socket{
				sock("force", typedesc.TypeFloat3, zero3),
				sock("impulse", typedesc.TypeFloat3, zero3),
			}, nil),
			compile: func(e *emitter, _ *tree.Node) {
				e.mapInput(0, e.graphOutput("force"))
				e.mapInput(1, e.graphOutput("impulse"))
			},
		},
		&kind{
			name: "PointData",
			declare: fixed(nil, []tree.Socket{
				sock("position", typedesc.TypeFloat3, nil),
				sock("velocity", typedesc.TypeFloat3, nil),
			}),
			compile: func(e *emitter, _ *tree.Node) {
				p := e.add("POINT_POSITION", ".position")
				e.mapOutput(0, e.out(p, 0))
				v := e.add("POINT_VELOCITY", ".velocity")
				e.mapOutput(1, e.out(v, 0))
			},
		},
		&kind{
			name: "ForceClosestPoint",
			declare: fixed(
				[]tree.Socket{sock("vector", typedesc.TypeFloat3, zero3)},
				[]tree.Socket{
					sock("position", typedesc.TypeFloat3, nil),
					sock("normal", typedesc.TypeFloat3, nil),
					sock("tangent", typedesc.TypeFloat3, nil),
				},
			),
			compile: func(e *emitter, _ *tree.Node) {
				ob := e.add("EFFECTOR_OBJECT", ".object")
				e.link(e.graphInput("effector.object"), e.in(ob, "object"))

				n := e.add("EFFECTOR_CLOSEST_POINT", "")
				e.link(e.out(ob, "object"), e.in(n, "object"))
				e.mapInput(0, e.in(n, "vector"))
				e.mapOutput(0, e.out(n, "position"))
				e.mapOutput(1, e.out(n, "normal"))
				e.mapOutput(2, e.out(n, "tangent"))
			},
		},
	}
}

// =============================================================================
// Instancing
// =============================================================================

func instancingKinds() []compiler.NodeKind {
	return []compiler.NodeKind{
		&kind{
			name:    "InstancingOutput",
			declare: declareSocketList("duplis", typedesc.TypeDuplis, nil),
			compile: func(e *emitter, node *tree.Node) {
				count, _ := countProperty(node, 1)
				result := e.socketList(count, typedesc.TypeDuplis, "DUPLIS_COMBINE")
				e.link(result, e.graphOutput("dupli.result"))
			},
		},
		&kind{
			name: "DupliCombine",
			declare: declareSocketList("duplis", typedesc.TypeDuplis,
				[]tree.Socket{sock("duplis", typedesc.TypeDuplis, nil)}),
			compile: func(e *emitter, node *tree.Node) {
				count, _ := countProperty(node, 1)
				e.mapOutput(0, e.socketList(count, typedesc.TypeDuplis, "DUPLIS_COMBINE"))
			},
		},
		&kind{
			name: "MakeDupli",
			declare: fixed(
				[]tree.Socket{
					sock("transform", typedesc.TypeMatrix44, "identity"),
					sock("index", typedesc.TypeInt, 0),
					sock("hide", typedesc.TypeInt, 0),
					sock("recursive", typedesc.TypeInt, 1),
				},
				[]tree.Socket{sock("dupli", typedesc.TypeDuplis, nil)},
			),
			compile: func(e *emitter, _ *tree.Node) {
				n := e.add("MAKE_DUPLI", "")
				for i, name := range []string{"transform", "index", "hide", "recursive"} {
					e.mapInput(i, e.in(n, name))
				}
				e.mapOutput(0, e.out(n, 0))
			},
		},
	}
}

// =============================================================================
// Textures
// =============================================================================

func textureKinds() []compiler.NodeKind {
	return []compiler.NodeKind{
		&kind{
			name: "TextureOutput",
			declare: fixed([]tree.Socket{
				sock("color", typedesc.TypeFloat4, []any{0.0, 0.0, 0.0, 1.0}),
				sock("normal", typedesc.TypeFloat3, []any{0.0, 0.0, 1.0}),
			}, nil),
			compile: func(e *emitter, _ *tree.Node) {
				e.mapInput(0, e.graphOutput("color"))
				e.mapInput(1, e.graphOutput("normal"))
			},
		},
		&kind{
			name:    "TextureCoordinate",
			declare: fixed(nil, []tree.Socket{sock("vector", typedesc.TypeFloat3, nil)}),
			compile: func(e *emitter, _ *tree.Node) {
				e.mapOutput(0, e.graphInput("texture.co"))
			},
		},
		&kind{
			name:    "TextureClouds",
			declare: declareClouds,
			compile: compileClouds,
		},
	}
}

func declareClouds(node *tree.Node, _ compiler.DeclareContext) ([]tree.Socket, []tree.Socket, error) {
	if _, err := intProperty(node, "depth", 2); err != nil {
		return nil, nil, err
	}
	return []tree.Socket{
			sock("vector", typedesc.TypeFloat3, zero3),
			sock("nabla", typedesc.TypeFloat, 0.05),
			sock("size", typedesc.TypeFloat, 0.25),
		},
		[]tree.Socket{
			sock("intensity", typedesc.TypeFloat, nil),
			sock("color", typedesc.TypeFloat4, nil),
			sock("normal", typedesc.TypeFloat3, nil),
		},
		nil
}

func compileClouds(e *emitter, node *tree.Node) {
	depth, err := intProperty(node, "depth", 2)
	if err != nil {
		e.fail(err)
		return
	}
	basis, err := intProperty(node, "noise_basis", 0)
	if err != nil {
		e.fail(err)
		return
	}
	hard, err := intProperty(node, "noise_hard", 0)
	if err != nil {
		e.fail(err)
		return
	}

	n := e.add("TEX_PROC_CLOUDS", "")
	e.mapInput(0, e.in(n, "position"))
	e.mapInput(1, e.in(n, "nabla"))
	e.mapInput(2, e.in(n, "size"))
	e.set(e.in(n, "depth"), depth)
	e.set(e.in(n, "noise_basis"), basis)
	e.set(e.in(n, "noise_hard"), hard)
	e.mapOutput(0, e.out(n, "intensity"))
	e.mapOutput(1, e.out(n, "color"))
	e.mapOutput(2, e.out(n, "normal"))
}
