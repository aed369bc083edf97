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
	"context"
	"strconv"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AleutianAI/objectnodes/services/nodegraph/backend"
	"github.com/AleutianAI/objectnodes/services/nodegraph/compiler"
	"github.com/AleutianAI/objectnodes/services/nodegraph/tree"
	"github.com/AleutianAI/objectnodes/services/nodegraph/typedesc"
)

// compileDoc parses doc and compiles it into a graph with the signature of
// the main tree's kind.
func compileDoc(t *testing.T, doc string) (*backend.Graph, *compiler.Result) {
	t.Helper()
	g, result, err := tryCompileDoc(t, doc)
	require.NoError(t, err)
	return g, result
}

func tryCompileDoc(t *testing.T, doc string) (*backend.Graph, *compiler.Result, error) {
	t.Helper()
	lib, err := tree.Parse([]byte(doc))
	require.NoError(t, err)
	main, err := lib.MainTree()
	require.NoError(t, err)

	table, err := backend.DefaultNodeTypes()
	require.NoError(t, err)
	sig, err := backend.SignatureFor(main.Kind)
	require.NoError(t, err)
	g, err := backend.NewGraph(table, sig)
	require.NoError(t, err)

	kinds, err := Builtin()
	require.NoError(t, err)
	comp, err := compiler.New(kinds, nil)
	require.NoError(t, err)

	result, err := comp.Compile(context.Background(), lib, g)
	return g, result, err
}

func evalOutput(t *testing.T, g *backend.Graph, args map[string]any, name string) any {
	t.Helper()
	ev, err := backend.NewEvaluator(g, args)
	require.NoError(t, err)
	v, err := ev.EvalOutput(name)
	require.NoError(t, err)
	return v
}

func TestBuiltin_RegistersEveryKind(t *testing.T) {
	kinds, err := Builtin()
	require.NoError(t, err)

	for _, name := range []string{
		"Iteration", "Math", "VectorMath", "SeparateVector", "CombineVector",
		"Value", "Integer", "Vector", "Color", "GraphInput", "GraphOutput",
		"GeometryOutput", "MeshCombine", "MeshLoad", "ArrayModifier",
		"DisplaceModifier", "ClosestPoint", "ElementInfo", "TranslationTransform",
		"MatrixMultiply", "ForceOutput", "PointData", "InstancingOutput",
		"DupliCombine", "MakeDupli", "TextureOutput", "TextureCoordinate",
		"TextureClouds", "Group", "GroupInput", "GroupOutput",
		"HairInput", "HairDeform", "ForceClosestPoint", "GeometryBoolean",
		"GetTranslation",
	} {
		_, ok := kinds.Lookup(name)
		assert.True(t, ok, name)
	}
}

// An integer constant feeding a float output gets an INT_TO_FLOAT node
// between the two proxies.
func TestCompile_IntegerToFloatOutput(t *testing.T) {
	g, result := compileDoc(t, `
main: main
trees:
  - name: main
    kind: generic
    nodes:
      - {name: five, kind: Integer, values: {value: 5}}
      - {name: out, kind: GraphOutput, properties: {name: float, type: FLOAT}}
    links:
      - {from_node: five, from_socket: value, to_node: out, to_socket: value}
`)
	assert.Equal(t, 1, result.Stats.Conversions)
	assert.Equal(t, 1, result.Snapshot.CountType("INT_TO_FLOAT"))

	sink, ok := g.Node("out:in:value")
	require.True(t, ok)
	_, set := sink.Value(0)
	assert.False(t, set, "sink proxy must receive the value through its link")
	from, _, ok := sink.Link(0)
	require.True(t, ok)
	assert.Equal(t, "INT_TO_FLOAT", from.TypeTag())

	ev, err := backend.NewEvaluator(g, nil)
	require.NoError(t, err)
	in, err := ev.InputValue(from.Name(), "value")
	require.NoError(t, err)
	assert.Equal(t, int32(5), in)

	out, err := ev.EvalOutput("float")
	require.NoError(t, err)
	assert.Equal(t, float32(5), out)
}

// The GroupOutput inside a group maps onto the output proxy of the group
// node in the enclosing tree.
func TestCompile_GroupOutputReachesOuterFrame(t *testing.T) {
	g, result := compileDoc(t, `
main: main
trees:
  - name: main
    kind: generic
    nodes:
      - {name: two, kind: Value, values: {value: 2.5}}
      - {name: G, kind: Group, group: inner}
      - {name: out, kind: GraphOutput, properties: {name: float}}
    links:
      - {from_node: two, from_socket: value, to_node: G, to_socket: x}
      - {from_node: G, from_socket: y, to_node: out, to_socket: value}
  - name: inner
    kind: generic
    inputs:
      - {identifier: x, type: FLOAT, default: 1.0}
    outputs:
      - {identifier: y, type: FLOAT}
    nodes:
      - {name: in, kind: GroupInput}
      - {name: double, kind: Math, properties: {mode: MUL_FLOAT}, values: {value_b: 2}}
      - {name: out, kind: GroupOutput}
    links:
      - {from_node: in, from_socket: x, to_node: double, to_socket: value_a}
      - {from_node: double, from_socket: value, to_node: out, to_socket: y}
`)
	assert.Equal(t, 0, result.Stats.DanglingLinks)

	groupOut, ok := g.Node("G:out:y")
	require.True(t, ok)
	from, _, ok := groupOut.Link(0)
	require.True(t, ok)
	assert.Equal(t, "G/out.y", from.Name())

	groupInput, ok := g.Node("G/in.x")
	require.True(t, ok)
	from, _, ok = groupInput.Link(0)
	require.True(t, ok)
	assert.Equal(t, "G:in:x", from.Name())

	assert.Equal(t, float32(5), evalOutput(t, g, nil, "float"))
}

func TestCompile_GroupDefaultsApply(t *testing.T) {
	g, _ := compileDoc(t, `
main: main
trees:
  - name: main
    kind: generic
    nodes:
      - {name: G, kind: Group, group: inner}
      - {name: out, kind: GraphOutput, properties: {name: float}}
    links:
      - {from_node: G, from_socket: "0", to_node: out, to_socket: "0"}
  - name: inner
    kind: generic
    inputs:
      - {identifier: x, type: FLOAT, default: 1.5}
    outputs:
      - {identifier: y, type: FLOAT}
    nodes:
      - {name: in, kind: GroupInput}
      - {name: out, kind: GroupOutput}
    links:
      - {from_node: in, from_socket: x, to_node: out, to_socket: y}
`)
	assert.Equal(t, float32(1.5), evalOutput(t, g, nil, "float"))
}

func TestCompile_NestedGroupsQualifyNames(t *testing.T) {
	g, _ := compileDoc(t, `
main: main
trees:
  - name: main
    kind: generic
    nodes:
      - {name: A, kind: Group, group: middle}
      - {name: out, kind: GraphOutput, properties: {name: float}}
    links:
      - {from_node: A, from_socket: v, to_node: out, to_socket: value}
  - name: middle
    kind: generic
    outputs:
      - {identifier: v, type: FLOAT}
    nodes:
      - {name: B, kind: Group, group: leaf}
      - {name: out, kind: GroupOutput}
    links:
      - {from_node: B, from_socket: v, to_node: out, to_socket: v}
  - name: leaf
    kind: generic
    outputs:
      - {identifier: v, type: FLOAT}
    nodes:
      - {name: k, kind: Value, values: {value: 7}}
      - {name: out, kind: GroupOutput}
    links:
      - {from_node: k, from_socket: value, to_node: out, to_socket: v}
`)
	_, ok := g.Node("A/B/k.value_float")
	assert.True(t, ok)
	assert.Equal(t, float32(7), evalOutput(t, g, nil, "float"))
}

func TestCompile_GroupCycleRejected(t *testing.T) {
	lib := `
main: a
trees:
  - name: a
    kind: generic
    nodes:
      - {name: g, kind: Group, group: a}
`
	_, err := tree.Parse([]byte(lib))
	assert.ErrorIs(t, err, tree.ErrCyclicGroupReference)
}

func TestCompile_Math(t *testing.T) {
	tests := []struct {
		name string
		mode string
		a, b float64
		link string
		want float32
	}{
		{"add", "ADD_FLOAT", 2, 3, "", 5},
		{"divide", "DIV_FLOAT", 6, 3, "", 2},
		{"maximum", "MAXIMUM", 2, 9, "", 9},
		{"unary reads first input", "ABSOLUTE", -4, -9, "", 4},
		{"unary reads linked second input", "ABSOLUTE", -4, 0, "value_b", 8},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			links := `
      - {from_node: m, from_socket: value, to_node: out, to_socket: value}`
			if tt.link != "" {
				links += `
      - {from_node: src, from_socket: value, to_node: m, to_socket: ` + tt.link + `}`
			}
			g, _ := compileDoc(t, `
main: main
trees:
  - name: main
    kind: generic
    nodes:
      - {name: src, kind: Value, values: {value: -8}}
      - name: m
        kind: Math
        properties: {mode: `+tt.mode+`}
        values: {value_a: `+formatFloat(tt.a)+`, value_b: `+formatFloat(tt.b)+`}
      - {name: out, kind: GraphOutput, properties: {name: float}}
    links:`+links+`
`)
			assert.Equal(t, tt.want, evalOutput(t, g, nil, "float"))
		})
	}
}

func formatFloat(f float64) string {
	return strconv.FormatFloat(f, 'g', -1, 64)
}

func TestCompile_MathUnknownMode(t *testing.T) {
	g, _, err := tryCompileDoc(t, `
main: main
trees:
  - name: main
    kind: generic
    nodes:
      - {name: m, kind: Math, properties: {mode: SQUARE_DANCE}}
`)
	assert.ErrorIs(t, err, ErrUnknownMode)
	assert.True(t, g.Discarded())
}

func TestCompile_VectorMathOutputs(t *testing.T) {
	g, _ := compileDoc(t, `
main: main
trees:
  - name: main
    kind: generic
    nodes:
      - {name: dot, kind: VectorMath, properties: {mode: DOT_FLOAT3}, values: {vector_a: [1, 2, 3], vector_b: [4, 5, 6]}}
      - {name: norm, kind: VectorMath, properties: {mode: NORMALIZE_FLOAT3}, values: {vector_a: [0, 3, 4]}}
      - {name: outf, kind: GraphOutput, properties: {name: float}}
      - {name: outv, kind: GraphOutput, properties: {name: vector, type: FLOAT3}}
    links:
      - {from_node: dot, from_socket: value, to_node: outf, to_socket: value}
      - {from_node: norm, from_socket: vector, to_node: outv, to_socket: value}
`)
	assert.Equal(t, float32(32), evalOutput(t, g, nil, "float"))

	v := evalOutput(t, g, nil, "vector").(typedesc.Float3)
	assert.InDelta(t, 0.6, v[1], 1e-6)
	assert.InDelta(t, 0.8, v[2], 1e-6)

	// A value-only mode leaves the vector output proxy unlinked.
	vecOut, ok := g.Node("dot:out:vector")
	require.True(t, ok)
	_, _, linked := vecOut.Link(0)
	assert.False(t, linked)
}

func TestCompile_SeparateAndCombineVector(t *testing.T) {
	g, _ := compileDoc(t, `
main: main
trees:
  - name: main
    kind: generic
    nodes:
      - {name: v, kind: Vector, values: {value: [1, 2, 3]}}
      - {name: sep, kind: SeparateVector}
      - {name: comb, kind: CombineVector}
      - {name: outv, kind: GraphOutput, properties: {name: vector, type: FLOAT3}}
      - {name: outf, kind: GraphOutput, properties: {name: float}}
    links:
      - {from_node: v, from_socket: value, to_node: sep, to_socket: vector}
      - {from_node: sep, from_socket: z, to_node: comb, to_socket: x}
      - {from_node: sep, from_socket: x, to_node: comb, to_socket: z}
      - {from_node: sep, from_socket: y, to_node: outf, to_socket: value}
      - {from_node: comb, from_socket: vector, to_node: outv, to_socket: value}
`)
	assert.Equal(t, typedesc.Float3{3, 0, 1}, evalOutput(t, g, nil, "vector"))
	assert.Equal(t, float32(2), evalOutput(t, g, nil, "float"))
}

func TestCompile_GeometryChain(t *testing.T) {
	g, result := compileDoc(t, `
main: modifier
trees:
  - name: modifier
    kind: geometry
    nodes:
      - {name: load, kind: MeshLoad}
      - {name: move, kind: DisplaceModifier, values: {vector: [0, 0, 1]}}
      - {name: info, kind: ElementInfo}
      - {name: out, kind: GeometryOutput}
    links:
      - {from_node: load, from_socket: mesh, to_node: move, to_socket: mesh}
      - {from_node: info, from_socket: location, to_node: move, to_socket: vector}
      - {from_node: move, from_socket: mesh, to_node: out, to_socket: mesh_0}
`)
	snap := result.Snapshot
	assert.Equal(t, 1, snap.CountType("MESH_LOAD"))
	assert.Equal(t, 1, snap.CountType("MESH_DISPLACE"))
	assert.Equal(t, 0, snap.CountType("MESH_COMBINE"))

	meshOut, ok := g.OutputNode("mesh")
	require.True(t, ok)
	from, _, ok := meshOut.Link(0)
	require.True(t, ok)
	assert.Equal(t, "PASS_MESH", from.TypeTag())

	load, ok := snap.Node("load.mesh_load")
	require.True(t, ok)
	in, ok := load.Input("base_mesh")
	require.True(t, ok)
	require.NotNil(t, in.Link)
	assert.Equal(t, "input:modifier.base_mesh", in.Link.Node)
}

func TestCompile_SocketListFold(t *testing.T) {
	tests := []struct {
		count    string
		combines int
		empties  int
	}{
		{"0", 0, 1},
		{"1", 0, 0},
		{"3", 2, 0},
	}
	for _, tt := range tests {
		t.Run("count="+tt.count, func(t *testing.T) {
			_, result := compileDoc(t, `
main: main
trees:
  - name: main
    kind: instancing
    nodes:
      - name: out
        kind: InstancingOutput
        properties: {count: "`+tt.count+`"}
`)
			assert.Equal(t, tt.combines, result.Snapshot.CountType("DUPLIS_COMBINE"))
			assert.Equal(t, tt.empties, result.Snapshot.CountType("VALUE_DUPLIS"))
		})
	}
}

func TestCompile_InvalidCount(t *testing.T) {
	_, _, err := tryCompileDoc(t, `
main: main
trees:
  - name: main
    kind: geometry
    nodes:
      - {name: out, kind: GeometryOutput, properties: {count: "-2"}}
`)
	assert.ErrorIs(t, err, ErrInvalidProperty)
}

func TestCompile_ForceField(t *testing.T) {
	g, _ := compileDoc(t, `
main: wind
trees:
  - name: wind
    kind: forcefield
    nodes:
      - {name: point, kind: PointData}
      - {name: out, kind: ForceOutput, values: {impulse: [0, 0, -1]}}
    links:
      - {from_node: point, from_socket: velocity, to_node: out, to_socket: force}
`)
	args := map[string]any{"effector.velocity": []any{1, 2, 3}}
	assert.Equal(t, typedesc.Float3{1, 2, 3}, evalOutput(t, g, args, "force"))
	assert.Equal(t, typedesc.Float3{0, 0, -1}, evalOutput(t, g, args, "impulse"))
}

func TestCompile_Instancing(t *testing.T) {
	_, result := compileDoc(t, `
main: scatter
trees:
  - name: scatter
    kind: instancing
    nodes:
      - {name: move, kind: TranslationTransform, values: {translation: [1, 0, 0]}}
      - {name: dupli, kind: MakeDupli}
      - {name: out, kind: InstancingOutput}
    links:
      - {from_node: move, from_socket: transform, to_node: dupli, to_socket: transform}
      - {from_node: dupli, from_socket: dupli, to_node: out, to_socket: duplis_0}
`)
	snap := result.Snapshot
	dupli, ok := snap.Node("dupli.make_dupli")
	require.True(t, ok)
	in, ok := dupli.Input("recursive")
	require.True(t, ok)
	require.NotNil(t, in.Link)
	assert.Equal(t, "dupli:in:recursive", in.Link.Node)

	proxy, ok := snap.Node("dupli:in:recursive")
	require.True(t, ok)
	v, ok := proxy.Input("value")
	require.True(t, ok)
	assert.Equal(t, int32(1), v.Value)
}

func TestCompile_Texture(t *testing.T) {
	g, result := compileDoc(t, `
main: tex
trees:
  - name: tex
    kind: texture
    nodes:
      - {name: co, kind: TextureCoordinate}
      - {name: clouds, kind: TextureClouds, properties: {depth: "4"}}
      - {name: out, kind: TextureOutput}
    links:
      - {from_node: co, from_socket: vector, to_node: clouds, to_socket: vector}
      - {from_node: clouds, from_socket: color, to_node: out, to_socket: color}
      - {from_node: co, from_socket: vector, to_node: out, to_socket: normal}
`)
	clouds, ok := result.Snapshot.Node("clouds.tex_proc_clouds")
	require.True(t, ok)
	depth, ok := clouds.Input("depth")
	require.True(t, ok)
	assert.Equal(t, int32(4), depth.Value)

	args := map[string]any{"texture.co": []any{0.5, 0.25, 1}}
	assert.Equal(t, typedesc.Float3{0.5, 0.25, 1}, evalOutput(t, g, args, "normal"))
}

func TestCompile_Iteration(t *testing.T) {
	g, result := compileDoc(t, `
main: main
trees:
  - name: main
    kind: generic
    nodes:
      - {name: it, kind: Iteration}
      - {name: out, kind: GraphOutput, properties: {name: float}}
    links:
      - {from_node: it, from_socket: n, to_node: out, to_socket: value}
`)
	assert.Equal(t, 1, result.Snapshot.CountType("INT_TO_FLOAT"))

	ev, err := backend.NewEvaluator(g, nil)
	require.NoError(t, err)
	ev.SetIteration(3)
	v, err := ev.EvalOutput("float")
	require.NoError(t, err)
	assert.Equal(t, float32(3), v)
}

func TestCompile_GraphInputPassThrough(t *testing.T) {
	g, _ := compileDoc(t, `
main: main
trees:
  - name: main
    kind: generic
    nodes:
      - {name: in, kind: GraphInput, properties: {name: color, type: COLOR}}
      - {name: out, kind: GraphOutput, properties: {name: vector, type: VECTOR}}
    links:
      - {from_node: in, from_socket: value, to_node: out, to_socket: value}
`)
	args := map[string]any{"color": []any{0.1, 0.2, 0.3, 0.4}}
	v := evalOutput(t, g, args, "vector").(typedesc.Float3)
	assert.InDelta(t, 0.3, v[2], 1e-6)
}

func TestCompile_GraphOutputNeedsName(t *testing.T) {
	_, _, err := tryCompileDoc(t, `
main: main
trees:
  - name: main
    kind: generic
    nodes:
      - {name: out, kind: GraphOutput}
`)
	assert.ErrorIs(t, err, ErrInvalidProperty)
}

// Without a type property the interface socket takes the type of the
// signature parameter, so a vector reaches a color output component-wise.
func TestCompile_GraphInterfaceTypeFromSignature(t *testing.T) {
	g, result := compileDoc(t, `
main: main
trees:
  - name: main
    kind: generic
    nodes:
      - {name: vec, kind: Vector, values: {value: [1.5, -2, 3.25]}}
      - {name: in, kind: GraphInput, properties: {name: vector}}
      - {name: out, kind: GraphOutput, properties: {name: color}}
      - {name: echo, kind: GraphOutput, properties: {name: vector}}
    links:
      - {from_node: vec, from_socket: value, to_node: out, to_socket: value}
      - {from_node: in, from_socket: value, to_node: echo, to_socket: value}
`)
	assert.Equal(t, 1, result.Stats.Conversions)
	assert.Equal(t, 1, result.Snapshot.CountType("FLOAT3_TO_FLOAT4"))

	c := evalOutput(t, g, nil, "color").(typedesc.Float4)
	assert.InDelta(t, 1.5, c[0], 1e-6)
	assert.InDelta(t, -2, c[1], 1e-6)
	assert.InDelta(t, 3.25, c[2], 1e-6)
	assert.InDelta(t, 1, c[3], 1e-6)

	args := map[string]any{"vector": []any{4, 5, 6}}
	v := evalOutput(t, g, args, "vector").(typedesc.Float3)
	assert.Equal(t, typedesc.Float3{4, 5, 6}, v)
}

func TestCompile_GraphOutputUnknownNameWithoutType(t *testing.T) {
	_, _, err := tryCompileDoc(t, `
main: main
trees:
  - name: main
    kind: generic
    nodes:
      - {name: out, kind: GraphOutput, properties: {name: nope}}
`)
	assert.ErrorIs(t, err, backend.ErrUnknownGraphOutput)
}

func TestCompile_HairDeform(t *testing.T) {
	g, _ := compileDoc(t, `
main: hair
trees:
  - name: hair
    kind: hair
    nodes:
      - {name: in, kind: HairInput}
      - {name: lift, kind: CombineVector}
      - {name: add, kind: VectorMath, properties: {mode: ADD_FLOAT3}}
      - {name: out, kind: HairDeform}
    links:
      - {from_node: in, from_socket: parameter, to_node: lift, to_socket: z}
      - {from_node: in, from_socket: location, to_node: add, to_socket: vector_a}
      - {from_node: lift, from_socket: vector, to_node: add, to_socket: vector_b}
      - {from_node: add, from_socket: vector, to_node: out, to_socket: target}
`)
	args := map[string]any{
		"location":  []any{1, 2, 3},
		"parameter": 0.5,
	}
	assert.Equal(t, typedesc.Float3{1, 2, 3.5}, evalOutput(t, g, args, "offset"))
}

func TestCompile_HairInputTarget(t *testing.T) {
	g, _ := compileDoc(t, `
main: hair
trees:
  - name: hair
    kind: hair
    nodes:
      - {name: in, kind: HairInput}
      - {name: loc, kind: GetTranslation}
      - {name: out, kind: HairDeform}
    links:
      - {from_node: in, from_socket: target, to_node: loc, to_socket: matrix}
      - {from_node: loc, from_socket: translation, to_node: out, to_socket: target}
`)
	m := typedesc.Identity()
	m[0][3], m[1][3], m[2][3] = 4, 5, 6
	args := map[string]any{"target": m}
	assert.Equal(t, typedesc.Float3{4, 5, 6}, evalOutput(t, g, args, "offset"))
}

func TestCompile_ForceClosestPoint(t *testing.T) {
	g, result := compileDoc(t, `
main: force
trees:
  - name: force
    kind: forcefield
    nodes:
      - {name: point, kind: PointData}
      - {name: closest, kind: ForceClosestPoint}
      - {name: out, kind: ForceOutput}
    links:
      - {from_node: point, from_socket: position, to_node: closest, to_socket: vector}
      - {from_node: closest, from_socket: normal, to_node: out, to_socket: force}
`)
	assert.Equal(t, 1, result.Snapshot.CountType("EFFECTOR_OBJECT"))
	assert.Equal(t, 1, result.Snapshot.CountType("EFFECTOR_CLOSEST_POINT"))

	ob, ok := result.Snapshot.Node("closest.object")
	require.True(t, ok)
	in, ok := ob.Input("object")
	require.True(t, ok)
	require.NotNil(t, in.Link)
	assert.Equal(t, "input:effector.object", in.Link.Node)

	cp, ok := result.Snapshot.Node("closest.effector_closest_point")
	require.True(t, ok)
	in, ok = cp.Input("object")
	require.True(t, ok)
	require.NotNil(t, in.Link)
	assert.Equal(t, "closest.object", in.Link.Node)

	// The closest point needs mesh data, so the force is not evaluable.
	ev, err := backend.NewEvaluator(g, nil)
	require.NoError(t, err)
	_, err = ev.EvalOutput("force")
	assert.ErrorIs(t, err, backend.ErrNotEvaluable)
}

func TestCompile_GeometryBoolean(t *testing.T) {
	_, result := compileDoc(t, `
main: scene
trees:
  - name: scene
    kind: geometry
    nodes:
      - {name: base, kind: MeshLoad}
      - {name: cutter, kind: MeshLoad}
      - name: bool
        kind: GeometryBoolean
        properties: {operation: UNION, use_dissolve: "false", threshold: "0.25"}
      - {name: out, kind: GeometryOutput, properties: {count: "1"}}
    links:
      - {from_node: base, from_socket: mesh, to_node: bool, to_socket: mesh}
      - {from_node: cutter, from_socket: mesh, to_node: bool, to_socket: object}
      - {from_node: bool, from_socket: mesh, to_node: out, to_socket: mesh_0}
`)
	assert.Equal(t, 1, result.Snapshot.CountType("MESH_BOOLEAN"))
	assert.Equal(t, 1, result.Snapshot.CountType("INVERT_MATRIX44"))

	n, ok := result.Snapshot.Node("bool.mesh_boolean")
	require.True(t, ok)
	for name, want := range map[string]any{
		"operation":       int32(1),
		"separate":        int32(0),
		"dissolve":        int32(0),
		"connect_regions": int32(1),
		"threshold":       float32(0.25),
	} {
		in, ok := n.Input(name)
		require.True(t, ok, name)
		assert.Equal(t, want, in.Value, name)
	}
	inv, ok := n.Input("inverse_transform")
	require.True(t, ok)
	require.NotNil(t, inv.Link)
	assert.Equal(t, "bool.inverse", inv.Link.Node)
}

func TestCompile_GeometryBooleanBadProperties(t *testing.T) {
	tests := []struct {
		props string
		want  error
	}{
		{`{operation: XOR}`, ErrUnknownMode},
		{`{use_separate: "maybe"}`, ErrInvalidProperty},
		{`{threshold: "2"}`, ErrInvalidProperty},
	}
	for _, tt := range tests {
		t.Run(tt.props, func(t *testing.T) {
			_, _, err := tryCompileDoc(t, `
main: scene
trees:
  - name: scene
    kind: geometry
    nodes:
      - {name: bool, kind: GeometryBoolean, properties: `+tt.props+`}
`)
			assert.ErrorIs(t, err, tt.want)
		})
	}
}
