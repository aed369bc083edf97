// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package backend defines the graph-building API consumed by the node
// compiler and provides a reference in-memory implementation of it.
//
// The compiler never sees backend internals. It creates nodes by type tag,
// addresses their sockets by index, links outputs to inputs and assigns
// constants through one typed setter per value type. Graph implements that
// contract on top of a NodeTypeTable loaded from YAML, and Evaluator runs
// the value-typed subset of a committed Graph so that conversion semantics
// can be observed end to end.
package backend

import (
	"github.com/AleutianAI/objectnodes/services/nodegraph/typedesc"
)

// Socket describes one input or output of a backend node.
type Socket struct {
	// Name is the socket identifier, unique per direction within a node.
	Name string `json:"name" yaml:"name"`

	// Index is the position of the socket within its direction.
	Index int `json:"index" yaml:"index"`

	// Type is the socket value type.
	Type typedesc.ValueType `json:"type" yaml:"type"`

	// Constant marks inputs that only accept values, never links.
	Constant bool `json:"constant,omitempty" yaml:"constant,omitempty"`
}

// NodeHandle is an opaque reference to a node owned by a graph.
type NodeHandle interface {
	// Name returns the unique node name within its graph.
	Name() string

	// TypeTag returns the node type, e.g. "ADD_FLOAT".
	TypeTag() string

	// Inputs returns the ordered input sockets.
	Inputs() []Socket

	// Outputs returns the ordered output sockets.
	Outputs() []Socket

	// SetInputLink connects output fromOutput of from to input of this node.
	SetInputLink(input int, from NodeHandle, fromOutput int) error

	SetValueFloat(input int, v float32) error
	SetValueFloat3(input int, v typedesc.Float3) error
	SetValueFloat4(input int, v typedesc.Float4) error
	SetValueInt(input int, v int32) error
	SetValueMatrix44(input int, v typedesc.Matrix44) error
}

// GraphBuilder is the graph-building API.
type GraphBuilder interface {
	// AddNode creates a node of the given type. An empty or taken name is
	// replaced by a generated unique one.
	AddNode(typeTag, name string) (NodeHandle, error)

	// GetInput returns the node and output index that provide the named
	// external graph input.
	GetInput(name string) (NodeHandle, int, error)

	// GetOutput returns the node and input index that receive the named
	// external graph output.
	GetOutput(name string) (NodeHandle, int, error)
}

// Committer is implemented by graphs with atomic commit/discard semantics.
type Committer interface {
	// Commit seals the graph and hands it to the execution engine.
	Commit() error

	// Discard drops everything built so far. Safe to call more than once.
	Discard()
}
