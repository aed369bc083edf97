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
	"github.com/AleutianAI/objectnodes/services/nodegraph/typedesc"
)

func geometryKinds() []compiler.NodeKind {
	return []compiler.NodeKind{
		&kind{
			name:    "GeometryOutput",
			declare: declareSocketList("mesh", typedesc.TypeMesh, nil),
			compile: func(e *emitter, node *tree.Node) {
				count, _ := countProperty(node, 1)
				result := e.socketList(count, typedesc.TypeMesh, "MESH_COMBINE")
				e.link(result, e.graphOutput("mesh"))
			},
		},
		&kind{
			name: "MeshCombine",
			declare: declareSocketList("mesh", typedesc.TypeMesh,
				[]tree.Socket{sock("mesh", typedesc.TypeMesh, nil)}),
			compile: func(e *emitter, node *tree.Node) {
				count, _ := countProperty(node, 1)
				e.mapOutput(0, e.socketList(count, typedesc.TypeMesh, "MESH_COMBINE"))
			},
		},
		&kind{
			name:    "MeshLoad",
			declare: fixed(nil, []tree.Socket{sock("mesh", typedesc.TypeMesh, nil)}),
			compile: func(e *emitter, _ *tree.Node) {
				n := e.add("MESH_LOAD", "")
				e.link(e.graphInput("modifier.base_mesh"), e.in(n, 0))
				e.mapOutput(0, e.out(n, 0))
			},
		},
		&kind{
			name: "ArrayModifier",
			declare: fixed(
				[]tree.Socket{
					sock("mesh", typedesc.TypeMesh, nil),
					sock("count", typedesc.TypeInt, 1),
					sock("transform", typedesc.TypeMatrix44, "identity"),
				},
				[]tree.Socket{sock("mesh", typedesc.TypeMesh, nil)},
			),
			compile: func(e *emitter, _ *tree.Node) {
				n := e.add("MESH_ARRAY", "")
				e.mapInput(0, e.in(n, "mesh_in"))
				e.mapInput(1, e.in(n, "count"))
				e.mapInput(2, e.in(n, "transform"))
				e.mapOutput(0, e.out(n, "mesh_out"))
			},
		},
		&kind{
			name: "DisplaceModifier",
			declare: fixed(
				[]tree.Socket{
					sock("mesh", typedesc.TypeMesh, nil),
					sock("vector", typedesc.TypeFloat3, zero3),
				},
				[]tree.Socket{sock("mesh", typedesc.TypeMesh, nil)},
			),
			compile: func(e *emitter, _ *tree.Node) {
				n := e.add("MESH_DISPLACE", "")
				e.mapInput(0, e.in(n, "mesh_in"))
				e.mapInput(1, e.in(n, "vector"))
				e.mapOutput(0, e.out(n, "mesh_out"))
			},
		},
		&kind{
			name:    "GeometryBoolean",
			declare: declareBoolean,
			compile: compileBoolean,
		},
		&kind{
			name: "ClosestPoint",
			declare: fixed(
				[]tree.Socket{
					sock("mesh", typedesc.TypeMesh, nil),
					sock("vector", typedesc.TypeFloat3, zero3),
				},
				[]tree.Socket{
					sock("position", typedesc.TypeFloat3, nil),
					sock("normal", typedesc.TypeFloat3, nil),
					sock("tangent", typedesc.TypeFloat3, nil),
				},
			),
			compile: func(e *emitter, _ *tree.Node) {
				n := e.add("MESH_CLOSEST_POINT", "")
				e.mapInput(0, e.in(n, "mesh"))
				e.mapInput(1, e.in(n, "vector"))
				e.mapOutput(0, e.out(n, "position"))
				e.mapOutput(1, e.out(n, "normal"))
				e.mapOutput(2, e.out(n, "tangent"))
			},
		},
		&kind{
			name: "ElementInfo",
			declare: fixed(nil, []tree.Socket{
				sock("index", typedesc.TypeInt, nil),
				sock("location", typedesc.TypeFloat3, nil),
			}),
			compile: func(e *emitter, _ *tree.Node) {
				e.mapOutput(0, e.graphInput("element.index"))
				e.mapOutput(1, e.graphInput("element.location"))
			},
		},
		&kind{
			name: "TranslationTransform",
			declare: fixed(
				[]tree.Socket{sock("translation", typedesc.TypeFloat3, zero3)},
				[]tree.Socket{sock("transform", typedesc.TypeMatrix44, nil)},
			),
			compile: func(e *emitter, _ *tree.Node) {
				n := e.add("LOC_TO_MATRIX44", "")
				e.mapInput(0, e.in(n, "loc"))
				e.mapOutput(0, e.out(n, "matrix"))
			},
		},
		&kind{
			name: "MatrixMultiply",
			declare: fixed(
				[]tree.Socket{
					sock("matrix_a", typedesc.TypeMatrix44, "identity"),
					sock("matrix_b", typedesc.TypeMatrix44, "identity"),
				},
				[]tree.Socket{sock("matrix", typedesc.TypeMatrix44, nil)},
			),
			compile: func(e *emitter, _ *tree.Node) {
				n := e.add("MUL_MATRIX44", "")
				e.mapInput(0, e.in(n, 0))
				e.mapInput(1, e.in(n, 1))
				e.mapOutput(0, e.out(n, 0))
			},
		},
	}
}

// Boolean operations, keyed by the "operation" property.
var booleanOperations = map[string]int{
	"INTERSECT":  0,
	"UNION":      1,
	"DIFFERENCE": 2,
}

// booleanSettings reads the properties of a GeometryBoolean node.
type booleanSettings struct {
	operation      int
	separate       int
	dissolve       int
	connectRegions int
	threshold      float64
}

func readBoolean(node *tree.Node) (booleanSettings, error) {
	op := node.Property("operation", "DIFFERENCE")
	operation, ok := booleanOperations[op]
	if !ok {
		return booleanSettings{}, fmt.Errorf("%w: boolean operation %q", ErrUnknownMode, op)
	}
	s := booleanSettings{operation: operation}
	var err error
	if s.separate, err = boolProperty(node, "use_separate", false); err != nil {
		return s, err
	}
	if s.dissolve, err = boolProperty(node, "use_dissolve", true); err != nil {
		return s, err
	}
	if s.connectRegions, err = boolProperty(node, "use_connect_regions", true); err != nil {
		return s, err
	}
	if s.threshold, err = unitProperty(node, "threshold", 0); err != nil {
		return s, err
	}
	return s, nil
}

// The operand mesh arrives on the "object" socket rather than through an
// object reference; its transform defaults to identity.
func declareBoolean(node *tree.Node, _ compiler.DeclareContext) ([]tree.Socket, []tree.Socket, error) {
	if _, err := readBoolean(node); err != nil {
		return nil, nil, err
	}
	return []tree.Socket{
			sock("mesh", typedesc.TypeMesh, nil),
			sock("object", typedesc.TypeMesh, nil),
			sock("transform", typedesc.TypeMatrix44, "identity"),
		},
		[]tree.Socket{sock("mesh", typedesc.TypeMesh, nil)},
		nil
}

func compileBoolean(e *emitter, node *tree.Node) {
	s, err := readBoolean(node)
	if err != nil {
		e.fail(err)
		return
	}

	tfm := e.add(backend.PassNodeType(typedesc.TypeMatrix44), ".transform")
	e.mapInput(2, e.in(tfm, 0))
	inv := e.add("INVERT_MATRIX44", ".inverse")
	e.link(e.out(tfm, 0), e.in(inv, 0))

	n := e.add("MESH_BOOLEAN", "")
	e.mapInput(0, e.in(n, "mesh_in"))
	e.mapInput(1, e.in(n, "object"))
	e.link(e.out(tfm, 0), e.in(n, "transform"))
	e.link(e.out(inv, 0), e.in(n, "inverse_transform"))
	e.set(e.in(n, "operation"), s.operation)
	e.set(e.in(n, "separate"), s.separate)
	e.set(e.in(n, "dissolve"), s.dissolve)
	e.set(e.in(n, "connect_regions"), s.connectRegions)
	e.set(e.in(n, "threshold"), s.threshold)
	e.mapOutput(0, e.out(n, "mesh_out"))
}

// declareSocketList declares "count" inputs named prefix_0, prefix_1 and
// so on, all of type vt.
func declareSocketList(prefix string, vt typedesc.ValueType, outputs []tree.Socket) declareFunc {
	return func(node *tree.Node, _ compiler.DeclareContext) ([]tree.Socket, []tree.Socket, error) {
		count, err := countProperty(node, 1)
		if err != nil {
			return nil, nil, err
		}
		inputs := make([]tree.Socket, count)
		for i := range inputs {
			inputs[i] = sock(fmt.Sprintf("%s_%d", prefix, i), vt, nil)
		}
		return inputs, append([]tree.Socket(nil), outputs...), nil
	}
}
