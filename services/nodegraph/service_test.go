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
	"context"
	"fmt"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AleutianAI/objectnodes/services/nodegraph/backend"
	"github.com/AleutianAI/objectnodes/services/nodegraph/compiler"
	"github.com/AleutianAI/objectnodes/services/nodegraph/nodes"
	"github.com/AleutianAI/objectnodes/services/nodegraph/store"
	"github.com/AleutianAI/objectnodes/services/nodegraph/tree"
	"github.com/AleutianAI/objectnodes/services/nodegraph/typedesc"
)

const intToFloatDoc = `
main: main
trees:
  - name: main
    kind: generic
    nodes:
      - {name: five, kind: Integer, values: {value: 5}}
      - {name: out, kind: GraphOutput, properties: {name: float, type: FLOAT}}
    links:
      - {from_node: five, from_socket: value, to_node: out, to_socket: value}
`

const scaleInputDoc = `
main: main
trees:
  - name: main
    kind: generic
    nodes:
      - {name: in, kind: GraphInput, properties: {name: float, type: FLOAT}}
      - {name: mul, kind: Math, properties: {mode: MUL_FLOAT}, values: {value_b: 3.0}}
      - {name: out, kind: GraphOutput, properties: {name: float}}
    links:
      - {from_node: in, from_socket: value, to_node: mul, to_socket: value_a}
      - {from_node: mul, from_socket: value, to_node: out, to_socket: value}
`

const cyclicDoc = `
main: a
trees:
  - name: a
    kind: generic
    nodes:
      - {name: g, kind: Group, group: b}
  - name: b
    kind: generic
    nodes:
      - {name: g, kind: Group, group: a}
`

func newTestService(t *testing.T, withStore bool) *Service {
	t.Helper()
	types, err := backend.DefaultNodeTypes()
	require.NoError(t, err)
	kinds, err := nodes.Builtin()
	require.NoError(t, err)
	comp, err := compiler.New(kinds, nil)
	require.NoError(t, err)

	var st *store.Store
	if withStore {
		st, err = store.Open(store.InMemoryConfig())
		require.NoError(t, err)
		t.Cleanup(func() { st.Close() })
	}

	svc, err := NewService(DefaultServiceConfig(), types, comp, st, nil)
	require.NoError(t, err)
	return svc
}

func parseDoc(t *testing.T, doc string) *tree.Library {
	t.Helper()
	lib, err := tree.Parse([]byte(doc))
	require.NoError(t, err)
	return lib
}

func TestNewService_RequiresDependencies(t *testing.T) {
	_, err := NewService(DefaultServiceConfig(), nil, nil, nil, nil)
	assert.ErrorIs(t, err, compiler.ErrInvalidInput)
}

func TestService_CompileEvaluatesOutputs(t *testing.T) {
	svc := newTestService(t, false)

	resp, err := svc.Compile(context.Background(), parseDoc(t, intToFloatDoc), CompileOptions{Evaluate: true})
	require.NoError(t, err)

	assert.NotEmpty(t, resp.SessionID)
	assert.NotEmpty(t, resp.TreeHash)
	assert.Equal(t, 1, resp.Stats.Conversions)
	assert.Equal(t, float32(5), resp.Outputs["float"])
	assert.Equal(t, int32(0), resp.Outputs["int"])
	assert.Equal(t, typedesc.Identity(), resp.Outputs["matrix"])
	assert.False(t, resp.Persisted)
}

func TestService_CompileWithArgs(t *testing.T) {
	svc := newTestService(t, false)

	resp, err := svc.Compile(context.Background(), parseDoc(t, scaleInputDoc), CompileOptions{
		Evaluate: true,
		Args:     map[string]any{"float": 2},
	})
	require.NoError(t, err)
	assert.Equal(t, float32(6), resp.Outputs["float"])

	_, err = svc.Compile(context.Background(), parseDoc(t, scaleInputDoc), CompileOptions{
		Evaluate: true,
		Args:     map[string]any{"nope": 2},
	})
	assert.ErrorIs(t, err, backend.ErrUnknownGraphInput)
}

func TestService_CompilePersists(t *testing.T) {
	svc := newTestService(t, true)
	ctx := context.Background()

	resp, err := svc.Compile(ctx, parseDoc(t, intToFloatDoc), CompileOptions{Persist: true})
	require.NoError(t, err)
	require.True(t, resp.Persisted)

	rec, err := svc.Graph(ctx, resp.TreeHash)
	require.NoError(t, err)
	assert.Equal(t, resp.SessionID, rec.SessionID)
	assert.Equal(t, 1, rec.Snapshot.CountType("INT_TO_FLOAT"))

	hashes, err := svc.Graphs(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{resp.TreeHash}, hashes)

	require.NoError(t, svc.DeleteGraph(ctx, resp.TreeHash))
	_, err = svc.Graph(ctx, resp.TreeHash)
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestService_StoreDisabled(t *testing.T) {
	svc := newTestService(t, false)

	_, err := svc.Graph(context.Background(), "x")
	assert.ErrorIs(t, err, ErrStoreDisabled)
	_, err = svc.Graphs(context.Background())
	assert.ErrorIs(t, err, ErrStoreDisabled)
}

func TestService_CompileTimeout(t *testing.T) {
	svc := newTestService(t, false)
	ctx, cancel := context.WithDeadline(context.Background(), time.Now().Add(-time.Second))
	defer cancel()

	_, err := svc.Compile(ctx, parseDoc(t, intToFloatDoc), CompileOptions{})
	require.Error(t, err)
	status, code := classify(err)
	assert.Equal(t, http.StatusGatewayTimeout, status)
	assert.Equal(t, "COMPILE_TIMEOUT", code)
}

func TestService_Validate(t *testing.T) {
	svc := newTestService(t, false)
	ctx := context.Background()

	resp, err := svc.Validate(ctx, []byte(intToFloatDoc))
	require.NoError(t, err)
	assert.True(t, resp.Valid)
	assert.Equal(t, "main", resp.Main)
	assert.Equal(t, 1, resp.Trees)

	resp, err = svc.Validate(ctx, []byte(cyclicDoc))
	require.NoError(t, err)
	assert.False(t, resp.Valid)
	assert.Equal(t, "CYCLIC_GROUP_REFERENCE", resp.Code)

	resp, err = svc.Validate(ctx, []byte("main: [unterminated"))
	require.NoError(t, err)
	assert.False(t, resp.Valid)
	assert.Equal(t, "INVALID_TREE", resp.Code)
}

func TestService_Types(t *testing.T) {
	svc := newTestService(t, false)

	types := svc.Types()
	assert.Contains(t, types.ValueTypes, "FLOAT3")
	assert.Contains(t, types.NodeKinds, "GroupOutput")
	assert.Contains(t, types.NodeTypes, "INT_TO_FLOAT")
	assert.Contains(t, types.Signatures, "texture")
	assert.NotEmpty(t, types.Conversions)
}

func TestClassify(t *testing.T) {
	tests := []struct {
		err    error
		status int
		code   string
	}{
		{store.ErrNotFound, http.StatusNotFound, "GRAPH_NOT_FOUND"},
		{&typedesc.ConversionError{From: typedesc.TypeMesh, To: typedesc.TypeFloat}, http.StatusUnprocessableEntity, "UNSUPPORTED_CONVERSION"},
		{tree.NewCycleError([]string{"a", "b", "a"}), http.StatusUnprocessableEntity, "CYCLIC_GROUP_REFERENCE"},
		{context.Canceled, 499, "CANCELLED"},
		{fmt.Errorf("graph output %q: %w", "nope", backend.ErrUnknownGraphOutput), http.StatusUnprocessableEntity, "UNKNOWN_GRAPH_OUTPUT"},
		{&backend.SocketError{Node: "out", Socket: "value", Err: backend.ErrInputAlreadyLinked}, http.StatusUnprocessableEntity, "INPUT_ALREADY_LINKED"},
		{fmt.Errorf("set v: %w", typedesc.ErrInvalidValue), http.StatusUnprocessableEntity, "INVALID_VALUE"},
		{assert.AnError, http.StatusInternalServerError, "INTERNAL"},
	}
	for _, tt := range tests {
		t.Run(tt.code, func(t *testing.T) {
			status, code := classify(tt.err)
			assert.Equal(t, tt.status, status)
			assert.Equal(t, tt.code, code)
		})
	}
}
