// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package backend

import (
	"errors"
	"math"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"github.com/AleutianAI/objectnodes/services/nodegraph/typedesc"
)

func newTestGraph(t *testing.T, kind string) *Graph {
	t.Helper()
	table, err := DefaultNodeTypes()
	require.NoError(t, err)
	sig, err := SignatureFor(kind)
	require.NoError(t, err)
	g, err := NewGraph(table, sig)
	require.NoError(t, err)
	return g
}

func addNode(t *testing.T, g *Graph, typeTag, name string) *Node {
	t.Helper()
	h, err := g.AddNode(typeTag, name)
	require.NoError(t, err)
	return h.(*Node)
}

// =============================================================================
// Node Type Table
// =============================================================================

func TestDefaultNodeTypes_Loads(t *testing.T) {
	table, err := DefaultNodeTypes()
	require.NoError(t, err)
	assert.Greater(t, table.Len(), 50)

	for _, vt := range typedesc.AllTypes() {
		_, ok := table.Lookup(PassNodeType(vt))
		assert.True(t, ok, "missing %s", PassNodeType(vt))
		_, ok = table.Lookup(ArgNodeType(vt))
		assert.True(t, ok, "missing %s", ArgNodeType(vt))
	}
	for _, name := range typedesc.ConversionNodeTypes() {
		_, ok := table.Lookup(name)
		assert.True(t, ok, "missing conversion %s", name)
	}
}

func TestDefaultNodeTypes_TemplatesExpanded(t *testing.T) {
	table, err := DefaultNodeTypes()
	require.NoError(t, err)

	add, ok := table.Lookup("ADD_FLOAT")
	require.True(t, ok)
	require.Len(t, add.Inputs, 2)
	assert.Equal(t, "value_a", add.Inputs[0].Name)
	assert.Equal(t, 1, add.Inputs[1].Index)
	assert.Equal(t, float32(0), add.Inputs[0].Default)
	assert.Equal(t, KindFunction, add.Kind)

	pass, _ := table.Lookup("PASS_MATRIX44")
	assert.Equal(t, typedesc.Identity(), pass.Inputs[0].Default)
	assert.Equal(t, KindPass, pass.Kind)

	elem, _ := table.Lookup("GET_ELEM_FLOAT3")
	assert.True(t, elem.Inputs[elem.InputIndex("index")].Constant)
	assert.Equal(t, -1, elem.InputIndex("missing"))
}

func TestParseNodeTypes_Errors(t *testing.T) {
	testCases := []struct {
		name string
		doc  string
	}{
		{"bad yaml", "version: [1"},
		{"wrong version", "version: 2\nnode_types: [{name: X}]"},
		{"no node types", "version: 1\nnode_types: []"},
		{"lowercase name", "version: 1\nnode_types: [{name: lower}]"},
		{"unknown template", "version: 1\nnode_types: [{name: X, template: nope}]"},
		{"bad default", "version: 1\nnode_types: [{name: X, inputs: [{name: a, type: INT, default: 1.5}]}]"},
		{"duplicate input", "version: 1\nnode_types: [{name: X, inputs: [{name: a, type: INT}, {name: a, type: INT}]}]"},
		{"missing proxies", "version: 1\nnode_types: [{name: X}]"},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := ParseNodeTypes([]byte(tc.doc))
			if !errors.Is(err, ErrInvalidNodeTable) {
				t.Fatalf("expected ErrInvalidNodeTable, got: %v", err)
			}
		})
	}
}

func TestLoadNodeTypesFile_RoundTripsEmbedded(t *testing.T) {
	path := filepath.Join(t.TempDir(), "types.yaml")
	require.NoError(t, os.WriteFile(path, defaultNodeTypesYAML, 0o600))

	table, err := LoadNodeTypesFile(path)
	require.NoError(t, err)
	def, err := DefaultNodeTypes()
	require.NoError(t, err)
	assert.Equal(t, def.Names(), table.Names())

	_, err = LoadNodeTypesFile(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func TestSignatureFor(t *testing.T) {
	sig, err := SignatureFor("geometry")
	require.NoError(t, err)
	assert.Equal(t, "mesh", sig.Outputs[0].Name)

	sig.Outputs[0].Name = "changed"
	again, _ := SignatureFor("geometry")
	assert.Equal(t, "mesh", again.Outputs[0].Name, "SignatureFor must return a copy")

	_, err = SignatureFor("nope")
	assert.ErrorIs(t, err, ErrUnknownSignature)
	assert.Equal(t, []string{"forcefield", "generic", "geometry", "hair", "instancing", "texture"}, SignatureKinds())
}

// =============================================================================
// Graph
// =============================================================================

func TestNewGraph_InterfaceNodes(t *testing.T) {
	g := newTestGraph(t, "geometry")

	h, idx, err := g.GetInput("element.index")
	require.NoError(t, err)
	assert.Equal(t, 0, idx)
	assert.Equal(t, "ARG_INT", h.TypeTag())

	h, idx, err = g.GetOutput("mesh")
	require.NoError(t, err)
	assert.Equal(t, 0, idx)
	assert.Equal(t, "PASS_MESH", h.TypeTag())

	_, _, err = g.GetInput("nope")
	assert.ErrorIs(t, err, ErrUnknownGraphInput)
	_, _, err = g.GetOutput("nope")
	assert.ErrorIs(t, err, ErrUnknownGraphOutput)
}

func TestGraph_AddNode_UniqueNames(t *testing.T) {
	g := newTestGraph(t, "generic")

	a := addNode(t, g, "ADD_FLOAT", "sum")
	b := addNode(t, g, "ADD_FLOAT", "sum")
	c := addNode(t, g, "ADD_FLOAT", "")
	d := addNode(t, g, "ADD_FLOAT", "")

	assert.Equal(t, "sum", a.Name())
	assert.Equal(t, "sum.001", b.Name())
	assert.Equal(t, "ADD_FLOAT", c.Name())
	assert.Equal(t, "ADD_FLOAT.001", d.Name())
	assert.Equal(t, 4, g.CountType("ADD_FLOAT"))

	_, err := g.AddNode("NOPE", "x")
	assert.ErrorIs(t, err, ErrUnknownNodeType)
}

func TestNode_SetInputLink_Errors(t *testing.T) {
	g := newTestGraph(t, "generic")
	f := addNode(t, g, "VALUE_FLOAT", "f")
	i := addNode(t, g, "VALUE_INT", "i")
	add := addNode(t, g, "ADD_FLOAT", "add")
	elem := addNode(t, g, "GET_ELEM_FLOAT3", "elem")

	other := newTestGraph(t, "generic")
	foreign := addNode(t, other, "VALUE_FLOAT", "f")

	testCases := []struct {
		name    string
		link    func() error
		wantErr error
	}{
		{"type mismatch", func() error { return add.SetInputLink(0, i, 0) }, ErrTypeMismatch},
		{"input out of range", func() error { return add.SetInputLink(5, f, 0) }, ErrSocketIndex},
		{"output out of range", func() error { return add.SetInputLink(0, f, 3) }, ErrSocketIndex},
		{"constant input", func() error { return elem.SetInputLink(0, i, 0) }, ErrConstantInput},
		{"foreign node", func() error { return add.SetInputLink(0, foreign, 0) }, ErrForeignNode},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			err := tc.link()
			require.Error(t, err)
			assert.ErrorIs(t, err, tc.wantErr)
			var se *SocketError
			assert.True(t, errors.As(err, &se))
		})
	}

	require.NoError(t, add.SetInputLink(0, f, 0))
	assert.ErrorIs(t, add.SetInputLink(0, f, 0), ErrInputAlreadyLinked)

	src, out, ok := add.Link(0)
	require.True(t, ok)
	assert.Equal(t, f, src)
	assert.Equal(t, 0, out)
	_, _, ok = add.Link(1)
	assert.False(t, ok)
}

func TestNode_SetValue(t *testing.T) {
	g := newTestGraph(t, "generic")
	n := addNode(t, g, "MUL_FLOAT3_FLOAT", "mul")

	v, set := n.Value(1)
	assert.Equal(t, float32(0), v)
	assert.False(t, set)

	require.NoError(t, n.SetValueFloat(1, 2.5))
	v, set = n.Value(1)
	assert.Equal(t, float32(2.5), v)
	assert.True(t, set)

	require.NoError(t, n.SetValueFloat3(0, typedesc.Float3{1, 2, 3}))
	assert.ErrorIs(t, n.SetValueInt(0, 1), ErrTypeMismatch)
	assert.ErrorIs(t, n.SetValueFloat4(0, typedesc.Float4{}), ErrTypeMismatch)
	assert.ErrorIs(t, n.SetValueMatrix44(0, typedesc.Identity()), ErrTypeMismatch)
	assert.ErrorIs(t, n.SetValueFloat(9, 1), ErrSocketIndex)
}

func TestGraph_CommitAndDiscard(t *testing.T) {
	g := newTestGraph(t, "generic")
	n := addNode(t, g, "VALUE_FLOAT", "v")

	require.NoError(t, g.Commit())
	assert.True(t, g.Committed())
	assert.ErrorIs(t, g.Commit(), ErrGraphSealed)

	_, err := g.AddNode("VALUE_FLOAT", "w")
	assert.ErrorIs(t, err, ErrGraphSealed)
	assert.ErrorIs(t, n.SetValueFloat(0, 1), ErrGraphSealed)

	d := newTestGraph(t, "generic")
	addNode(t, d, "VALUE_FLOAT", "v")
	d.Discard()
	d.Discard()
	assert.True(t, d.Discarded())
	assert.Equal(t, 0, d.Len())
	assert.ErrorIs(t, d.Commit(), ErrGraphSealed)
}

func TestGraph_Snapshot(t *testing.T) {
	g := newTestGraph(t, "generic")
	v := addNode(t, g, "VALUE_FLOAT", "v")
	require.NoError(t, v.SetValueFloat(0, 4))
	out, idx, err := g.GetOutput("float")
	require.NoError(t, err)
	require.NoError(t, out.SetInputLink(idx, v, 0))
	require.NoError(t, g.Commit())

	snap := g.Snapshot()
	assert.Equal(t, g.Len(), len(snap.Nodes))
	assert.Equal(t, 1, snap.CountType("VALUE_FLOAT"))

	vs, ok := snap.Node("v")
	require.True(t, ok)
	in, ok := vs.Input("value")
	require.True(t, ok)
	assert.Equal(t, float32(4), in.Value)
	assert.True(t, in.Set)

	outSnap, ok := snap.Node("output:float")
	require.True(t, ok)
	in, _ = outSnap.Input("value")
	require.NotNil(t, in.Link)
	assert.Equal(t, LinkRef{Node: "v", Socket: "value"}, *in.Link)
	assert.Nil(t, in.Value)

	data, err := yaml.Marshal(snap)
	require.NoError(t, err)
	assert.Contains(t, string(data), "type: FLOAT")
}

// =============================================================================
// Evaluator
// =============================================================================

func TestNewEvaluator_Errors(t *testing.T) {
	g := newTestGraph(t, "generic")
	_, err := NewEvaluator(g, nil)
	assert.ErrorIs(t, err, ErrNotCommitted)

	require.NoError(t, g.Commit())
	_, err = NewEvaluator(g, map[string]any{"nope": 1})
	assert.ErrorIs(t, err, ErrUnknownGraphInput)
	_, err = NewEvaluator(g, map[string]any{"int": 1.5})
	assert.ErrorIs(t, err, typedesc.ErrInvalidValue)
}

func TestEvaluator_ConversionRoundTrip(t *testing.T) {
	g := newTestGraph(t, "generic")
	in, _, err := g.GetInput("vector")
	require.NoError(t, err)
	to4 := addNode(t, g, "FLOAT3_TO_FLOAT4", "")
	to3 := addNode(t, g, "FLOAT4_TO_FLOAT3", "")
	require.NoError(t, to4.SetInputLink(0, in, 0))
	require.NoError(t, to3.SetInputLink(0, to4, 0))
	out, idx, _ := g.GetOutput("vector")
	require.NoError(t, out.SetInputLink(idx, to3, 0))
	require.NoError(t, g.Commit())

	ev, err := NewEvaluator(g, map[string]any{"vector": []any{1.5, -2, 3}})
	require.NoError(t, err)

	v, err := ev.EvalOutput("vector")
	require.NoError(t, err)
	assert.Equal(t, typedesc.Float3{1.5, -2, 3}, v)

	w, err := ev.EvalNode(to4.Name(), "value")
	require.NoError(t, err)
	assert.Equal(t, typedesc.Float4{1.5, -2, 3, 1}, w)
}

func TestEvaluator_BroadcastThenElement(t *testing.T) {
	g := newTestGraph(t, "generic")
	in, _, _ := g.GetInput("float")
	set := addNode(t, g, "SET_FLOAT3", "")
	for i := 0; i < 3; i++ {
		require.NoError(t, set.SetInputLink(i, in, 0))
	}
	elem := addNode(t, g, "GET_ELEM_FLOAT3", "")
	require.NoError(t, elem.SetValueInt(0, 0))
	require.NoError(t, elem.SetInputLink(1, set, 0))
	out, idx, _ := g.GetOutput("float")
	require.NoError(t, out.SetInputLink(idx, elem, 0))
	require.NoError(t, g.Commit())

	ev, err := NewEvaluator(g, map[string]any{"float": 7.25})
	require.NoError(t, err)
	v, err := ev.EvalOutput("float")
	require.NoError(t, err)
	assert.Equal(t, float32(7.25), v)
}

func TestEvaluator_FloatToIntTruncates(t *testing.T) {
	testCases := []struct {
		in   float64
		want int32
	}{
		{2.9, 2},
		{-2.9, -2},
		{0.4, 0},
		{-0.4, 0},
		{math.NaN(), 0},
		{math.Inf(1), math.MaxInt32},
		{math.Inf(-1), math.MinInt32},
		{3e9, math.MaxInt32},
		{-3e9, math.MinInt32},
	}

	for _, tc := range testCases {
		g := newTestGraph(t, "generic")
		in, _, _ := g.GetInput("float")
		conv := addNode(t, g, "FLOAT_TO_INT", "")
		require.NoError(t, conv.SetInputLink(0, in, 0))
		out, idx, _ := g.GetOutput("int")
		require.NoError(t, out.SetInputLink(idx, conv, 0))
		require.NoError(t, g.Commit())

		ev, err := NewEvaluator(g, map[string]any{"float": tc.in})
		require.NoError(t, err)
		v, err := ev.EvalOutput("int")
		require.NoError(t, err)
		if v != tc.want {
			t.Errorf("FLOAT_TO_INT(%v) = %v, want %v", tc.in, v, tc.want)
		}
	}
}

func TestFloatToInt_Bounds(t *testing.T) {
	assert.Equal(t, int32(0), floatToInt(float32(math.NaN())))
	assert.Equal(t, int32(math.MaxInt32), floatToInt(float32(math.MaxInt32)))
	assert.Equal(t, int32(math.MinInt32), floatToInt(float32(math.MinInt32)))
	assert.Equal(t, int32(16777216), floatToInt(16777216))
	assert.Equal(t, int32(-7), floatToInt(-7.99))
}

func TestEvaluator_MathNodes(t *testing.T) {
	testCases := []struct {
		typeTag string
		a, b    float32
		want    float32
	}{
		{"ADD_FLOAT", 2, 3, 5},
		{"SUB_FLOAT", 2, 3, -1},
		{"MUL_FLOAT", 2, 3, 6},
		{"DIV_FLOAT", 6, 3, 2},
		{"DIV_FLOAT", 6, 0, 0},
		{"MINIMUM", 2, 3, 2},
		{"MAXIMUM", 2, 3, 3},
		{"LESS_THAN", 2, 3, 1},
		{"GREATER_THAN", 2, 3, 0},
		{"MODULO", 7, 3, 1},
		{"POWER", 2, 3, 8},
	}

	for _, tc := range testCases {
		t.Run(tc.typeTag, func(t *testing.T) {
			g := newTestGraph(t, "generic")
			n := addNode(t, g, tc.typeTag, "op")
			require.NoError(t, n.SetValueFloat(0, tc.a))
			require.NoError(t, n.SetValueFloat(1, tc.b))
			require.NoError(t, g.Commit())

			ev, err := NewEvaluator(g, nil)
			require.NoError(t, err)
			v, err := ev.EvalNode("op", "value")
			require.NoError(t, err)
			assert.InDelta(t, tc.want, v, 1e-5)
		})
	}
}

func TestEvaluator_VectorAndMatrix(t *testing.T) {
	g := newTestGraph(t, "generic")
	loc := addNode(t, g, "LOC_TO_MATRIX44", "loc")
	require.NoError(t, loc.SetValueFloat3(0, typedesc.Float3{1, 2, 3}))
	inv := addNode(t, g, "INVERT_MATRIX44", "inv")
	require.NoError(t, inv.SetInputLink(0, loc, 0))
	mul := addNode(t, g, "MUL_MATRIX44_FLOAT3", "apply")
	require.NoError(t, mul.SetInputLink(0, inv, 0))
	require.NoError(t, mul.SetValueFloat3(1, typedesc.Float3{1, 1, 1}))
	norm := addNode(t, g, "NORMALIZE_FLOAT3", "norm")
	require.NoError(t, norm.SetValueFloat3(0, typedesc.Float3{3, 0, 4}))
	cross := addNode(t, g, "CROSS_FLOAT3", "cross")
	require.NoError(t, cross.SetValueFloat3(0, typedesc.Float3{1, 0, 0}))
	require.NoError(t, cross.SetValueFloat3(1, typedesc.Float3{0, 1, 0}))
	require.NoError(t, g.Commit())

	ev, err := NewEvaluator(g, nil)
	require.NoError(t, err)

	p, err := ev.EvalNode("apply", "value")
	require.NoError(t, err)
	got := p.(typedesc.Float3)
	assert.InDelta(t, 0, got[0], 1e-5)
	assert.InDelta(t, -1, got[1], 1e-5)
	assert.InDelta(t, -2, got[2], 1e-5)

	length, err := ev.EvalNode("norm", "value")
	require.NoError(t, err)
	assert.InDelta(t, 5, length, 1e-5)

	c, err := ev.EvalNode("cross", "value")
	require.NoError(t, err)
	assert.Equal(t, typedesc.Float3{0, 0, 1}, c)
}

func TestEvaluator_NotEvaluable(t *testing.T) {
	g := newTestGraph(t, "geometry")
	load := addNode(t, g, "MESH_LOAD", "load")
	in, _, _ := g.GetInput("modifier.base_mesh")
	require.NoError(t, load.SetInputLink(0, in, 0))
	require.NoError(t, g.Commit())

	ev, err := NewEvaluator(g, nil)
	require.NoError(t, err)
	_, err = ev.EvalNode("load", "mesh")
	assert.ErrorIs(t, err, ErrNotEvaluable)
	_, err = ev.EvalOutput("mesh")
	assert.ErrorIs(t, err, ErrNotEvaluable)
}

func TestEvaluator_Iteration(t *testing.T) {
	g := newTestGraph(t, "generic")
	it := addNode(t, g, "ITERATION", "it")
	out, idx, _ := g.GetOutput("int")
	require.NoError(t, out.SetInputLink(idx, it, 0))
	require.NoError(t, g.Commit())

	ev, err := NewEvaluator(g, nil)
	require.NoError(t, err)
	ev.SetIteration(3)
	v, err := ev.EvalOutput("int")
	require.NoError(t, err)
	assert.Equal(t, int32(3), v)

	ev.SetIteration(4)
	v, _ = ev.EvalOutput("int")
	assert.Equal(t, int32(4), v)
}

func TestEvaluator_InputValue(t *testing.T) {
	g := newTestGraph(t, "generic")
	i := addNode(t, g, "VALUE_INT", "five")
	require.NoError(t, i.SetValueInt(0, 5))
	conv := addNode(t, g, "INT_TO_FLOAT", "conv")
	require.NoError(t, conv.SetInputLink(0, i, 0))
	require.NoError(t, g.Commit())

	ev, err := NewEvaluator(g, nil)
	require.NoError(t, err)
	v, err := ev.InputValue("conv", "value")
	require.NoError(t, err)
	assert.Equal(t, int32(5), v)

	_, err = ev.InputValue("conv", "nope")
	assert.ErrorIs(t, err, ErrSocketIndex)
	_, err = ev.InputValue("missing", "value")
	assert.Error(t, err)
}
