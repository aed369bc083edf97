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
	"strconv"

	"github.com/AleutianAI/objectnodes/services/nodegraph/backend"
	"github.com/AleutianAI/objectnodes/services/nodegraph/compiler"
	"github.com/AleutianAI/objectnodes/services/nodegraph/tree"
	"github.com/AleutianAI/objectnodes/services/nodegraph/typedesc"
)

// Math modes are backend node types. The bool marks binary operations.
var mathModes = map[string]bool{
	"ADD_FLOAT":    true,
	"SUB_FLOAT":    true,
	"MUL_FLOAT":    true,
	"DIV_FLOAT":    true,
	"POWER":        true,
	"LOGARITHM":    true,
	"MINIMUM":      true,
	"MAXIMUM":      true,
	"LESS_THAN":    true,
	"GREATER_THAN": true,
	"MODULO":       true,
	"SINE":         false,
	"COSINE":       false,
	"TANGENT":      false,
	"ARCSINE":      false,
	"ARCCOSINE":    false,
	"ARCTANGENT":   false,
	"ROUND":        false,
	"ABSOLUTE":     false,
	"CLAMP":        false,
	"SQRT":         false,
}

type vectorMode struct {
	binary    bool
	vectorOut bool
	valueOut  bool
}

var vectorModes = map[string]vectorMode{
	"ADD_FLOAT3":       {binary: true, vectorOut: true},
	"SUB_FLOAT3":       {binary: true, vectorOut: true},
	"AVERAGE_FLOAT3":   {binary: true, vectorOut: true},
	"DOT_FLOAT3":       {binary: true, valueOut: true},
	"CROSS_FLOAT3":     {binary: true, vectorOut: true},
	"NORMALIZE_FLOAT3": {vectorOut: true, valueOut: true},
}

var zero3 = []any{0.0, 0.0, 0.0}

func commonKinds() []compiler.NodeKind {
	return []compiler.NodeKind{
		&kind{
			name:    "Iteration",
			declare: fixed(nil, []tree.Socket{sock("n", typedesc.TypeInt, nil)}),
			compile: func(e *emitter, _ *tree.Node) {
				n := e.add("ITERATION", "")
				e.mapOutput(0, e.out(n, 0))
			},
		},
		&kind{name: "Math", declare: declareMath, compile: compileMath},
		&kind{name: "VectorMath", declare: declareVectorMath, compile: compileVectorMath},
		&kind{
			name: "SeparateVector",
			declare: fixed(
				[]tree.Socket{sock("vector", typedesc.TypeFloat3, zero3)},
				[]tree.Socket{
					sock("x", typedesc.TypeFloat, nil),
					sock("y", typedesc.TypeFloat, nil),
					sock("z", typedesc.TypeFloat, nil),
				},
			),
			compile: func(e *emitter, _ *tree.Node) {
				for i, axis := range []string{"x", "y", "z"} {
					n := e.add("GET_ELEM_FLOAT3", "."+axis)
					e.set(e.in(n, "index"), i)
					e.mapInput(0, e.in(n, "value"))
					e.mapOutput(i, e.out(n, "value"))
				}
			},
		},
		&kind{
			name: "CombineVector",
			declare: fixed(
				[]tree.Socket{
					sock("x", typedesc.TypeFloat, 0.0),
					sock("y", typedesc.TypeFloat, 0.0),
					sock("z", typedesc.TypeFloat, 0.0),
				},
				[]tree.Socket{sock("vector", typedesc.TypeFloat3, nil)},
			),
			compile: func(e *emitter, _ *tree.Node) {
				n := e.add("SET_FLOAT3", "")
				for i := 0; i < 3; i++ {
					e.mapInput(i, e.in(n, i))
				}
				e.mapOutput(0, e.out(n, 0))
			},
		},
		&kind{
			name: "GetTranslation",
			declare: fixed(
				[]tree.Socket{sock("matrix", typedesc.TypeMatrix44, "identity")},
				[]tree.Socket{sock("translation", typedesc.TypeFloat3, nil)},
			),
			compile: func(e *emitter, _ *tree.Node) {
				n := e.add("MATRIX44_TO_LOC", "")
				e.mapInput(0, e.in(n, "matrix"))
				e.mapOutput(0, e.out(n, "loc"))
			},
		},
		constantKind("Value", typedesc.TypeFloat),
		constantKind("Integer", typedesc.TypeInt),
		constantKind("Vector", typedesc.TypeFloat3),
		constantKind("Color", typedesc.TypeFloat4),
		&kind{name: "GraphInput", declare: declareGraphInput, compile: compileGraphInput},
		&kind{name: "GraphOutput", declare: declareGraphOutput, compile: compileGraphOutput},
	}
}

// =============================================================================
// Math
// =============================================================================

func mathMode(node *tree.Node) (string, bool, error) {
	mode := node.Property("mode", "ADD_FLOAT")
	binary, ok := mathModes[mode]
	if !ok {
		return "", false, fmt.Errorf("%w: math mode %q", ErrUnknownMode, mode)
	}
	return mode, binary, nil
}

func declareMath(node *tree.Node, _ compiler.DeclareContext) ([]tree.Socket, []tree.Socket, error) {
	if _, _, err := mathMode(node); err != nil {
		return nil, nil, err
	}
	return []tree.Socket{
			sock("value_a", typedesc.TypeFloat, 0.0),
			sock("value_b", typedesc.TypeFloat, 0.0),
		},
		[]tree.Socket{sock("value", typedesc.TypeFloat, nil)},
		nil
}

func compileMath(e *emitter, node *tree.Node) {
	mode, binary, err := mathMode(node)
	if err != nil {
		e.fail(err)
		return
	}
	n := e.add(mode, "")
	if binary {
		e.mapInput(0, e.in(n, 0))
		e.mapInput(1, e.in(n, 1))
	} else {
		e.mapInput(unarySource(e), e.in(n, 0))
	}
	e.mapOutput(0, e.out(n, 0))
}

// unarySource picks the input a unary operation reads: the first one,
// unless only the second one is linked.
func unarySource(e *emitter) int {
	if e.linked(0) || !e.linked(1) {
		return 0
	}
	return 1
}

func vectorMathMode(node *tree.Node) (string, vectorMode, error) {
	mode := node.Property("mode", "ADD_FLOAT3")
	vm, ok := vectorModes[mode]
	if !ok {
		return "", vectorMode{}, fmt.Errorf("%w: vector math mode %q", ErrUnknownMode, mode)
	}
	return mode, vm, nil
}

func declareVectorMath(node *tree.Node, _ compiler.DeclareContext) ([]tree.Socket, []tree.Socket, error) {
	if _, _, err := vectorMathMode(node); err != nil {
		return nil, nil, err
	}
	return []tree.Socket{
			sock("vector_a", typedesc.TypeFloat3, zero3),
			sock("vector_b", typedesc.TypeFloat3, zero3),
		},
		[]tree.Socket{
			sock("vector", typedesc.TypeFloat3, nil),
			sock("value", typedesc.TypeFloat, nil),
		},
		nil
}

func compileVectorMath(e *emitter, node *tree.Node) {
	mode, vm, err := vectorMathMode(node)
	if err != nil {
		e.fail(err)
		return
	}
	n := e.add(mode, "")
	if vm.binary {
		e.mapInput(0, e.in(n, 0))
		e.mapInput(1, e.in(n, 1))
	} else {
		e.mapInput(unarySource(e), e.in(n, 0))
	}

	switch {
	case vm.vectorOut && vm.valueOut:
		e.mapOutput(0, e.out(n, 0))
		e.mapOutput(1, e.out(n, 1))
	case vm.vectorOut:
		e.mapOutput(0, e.out(n, 0))
	case vm.valueOut:
		e.mapOutput(1, e.out(n, 0))
	}
}

// =============================================================================
// Constants and graph interface
// =============================================================================

// constantKind emits a VALUE_<TYPE> node holding node.Values["value"].
func constantKind(name string, vt typedesc.ValueType) compiler.NodeKind {
	return &kind{
		name:    name,
		declare: fixed(nil, []tree.Socket{sock("value", vt, nil)}),
		compile: func(e *emitter, node *tree.Node) {
			n := e.add(backend.ValueNodeType(vt), "")
			if v, ok := node.Values["value"]; ok {
				e.set(e.in(n, 0), v)
			}
			e.mapOutput(0, e.out(n, 0))
		},
	}
}

// interfaceName reads the "name" property of a graph interface node.
func interfaceName(node *tree.Node) (string, error) {
	name := node.Property("name", "")
	if name == "" {
		return "", fmt.Errorf("%w: %q needs a name property", ErrInvalidProperty, node.Name)
	}
	return name, nil
}

// interfaceParam reads the name and socket type of a graph interface node.
// Without a "type" property the type of the named parameter in the main
// tree's signature is used.
func interfaceParam(node *tree.Node, ctx compiler.DeclareContext, output bool) (string, typedesc.ValueType, error) {
	name, err := interfaceName(node)
	if err != nil {
		return "", 0, err
	}
	if raw := node.Property("type", ""); raw != "" {
		vt, err := typedesc.ParseValueType(raw)
		if err != nil {
			return "", 0, fmt.Errorf("%w: %v", ErrInvalidProperty, err)
		}
		return name, vt, nil
	}

	sig, err := backend.SignatureFor(signatureKind(ctx))
	if err != nil {
		return "", 0, err
	}
	params, notFound := sig.Inputs, backend.ErrUnknownGraphInput
	if output {
		params, notFound = sig.Outputs, backend.ErrUnknownGraphOutput
	}
	for _, p := range params {
		if p.Name == name {
			return name, p.Type, nil
		}
	}
	return "", 0, fmt.Errorf("%w: %q", notFound, name)
}

// signatureKind returns the tree kind whose signature the graph is
// compiled against.
func signatureKind(ctx compiler.DeclareContext) string {
	if ctx.Library != nil {
		if main, ok := ctx.Library.Tree(ctx.Library.Main); ok {
			return main.Kind
		}
	}
	if ctx.Tree != nil {
		return ctx.Tree.Kind
	}
	return tree.KindGeneric
}

func declareGraphInput(node *tree.Node, ctx compiler.DeclareContext) ([]tree.Socket, []tree.Socket, error) {
	_, vt, err := interfaceParam(node, ctx, false)
	if err != nil {
		return nil, nil, err
	}
	return nil, []tree.Socket{sock("value", vt, nil)}, nil
}

func compileGraphInput(e *emitter, node *tree.Node) {
	name, err := interfaceName(node)
	if err != nil {
		e.fail(err)
		return
	}
	e.mapOutput(0, e.graphInput(name))
}

func declareGraphOutput(node *tree.Node, ctx compiler.DeclareContext) ([]tree.Socket, []tree.Socket, error) {
	_, vt, err := interfaceParam(node, ctx, true)
	if err != nil {
		return nil, nil, err
	}
	return []tree.Socket{sock("value", vt, nil)}, nil, nil
}

func compileGraphOutput(e *emitter, node *tree.Node) {
	name, err := interfaceName(node)
	if err != nil {
		e.fail(err)
		return
	}
	e.mapInput(0, e.graphOutput(name))
}

// intProperty reads a non-negative integer property.
func intProperty(node *tree.Node, name string, def int) (int, error) {
	raw := node.Property(name, strconv.Itoa(def))
	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 {
		return 0, fmt.Errorf("%w: %s %q", ErrInvalidProperty, name, raw)
	}
	return n, nil
}

func countProperty(node *tree.Node, def int) (int, error) {
	return intProperty(node, "count", def)
}

// boolProperty reads a boolean property as 0 or 1.
func boolProperty(node *tree.Node, name string, def bool) (int, error) {
	raw := node.Property(name, strconv.FormatBool(def))
	b, err := strconv.ParseBool(raw)
	if err != nil {
		return 0, fmt.Errorf("%w: %s %q", ErrInvalidProperty, name, raw)
	}
	if b {
		return 1, nil
	}
	return 0, nil
}

// unitProperty reads a float property in [0, 1].
func unitProperty(node *tree.Node, name string, def float64) (float64, error) {
	raw := node.Property(name, strconv.FormatFloat(def, 'g', -1, 64))
	f, err := strconv.ParseFloat(raw, 64)
	if err != nil || f < 0 || f > 1 {
		return 0, fmt.Errorf("%w: %s %q", ErrInvalidProperty, name, raw)
	}
	return f, nil
}
