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
	"fmt"
	"log/slog"

	"github.com/AleutianAI/objectnodes/services/nodegraph/typedesc"
)

type graphState int

const (
	stateBuilding graphState = iota
	stateCommitted
	stateDiscarded
)

func (s graphState) String() string {
	switch s {
	case stateBuilding:
		return "building"
	case stateCommitted:
		return "committed"
	case stateDiscarded:
		return "discarded"
	default:
		return "unknown"
	}
}

const (
	inputNodePrefix  = "input:"
	outputNodePrefix = "output:"
)

// Graph is the reference in-memory GraphBuilder.
//
// Description:
//
//	A Graph is created for one compile pass. External inputs are backed by
//	ARG_<TYPE> nodes and external outputs by PASS_<TYPE> nodes, both created
//	up front from the Signature. After building, Commit seals the graph or
//	Discard drops it; either way no further mutation is accepted.
//
// Thread Safety: Not safe for concurrent mutation. A committed graph is
// read-only and may be evaluated and snapshotted concurrently.
type Graph struct {
	table   *NodeTypeTable
	sig     Signature
	nodes   []*Node
	byName  map[string]*Node
	inputs  map[string]*Node
	outputs map[string]*Node
	state   graphState
	logger  *slog.Logger
}

// GraphOption configures a Graph.
type GraphOption func(*Graph)

// WithLogger sets the graph logger.
func WithLogger(logger *slog.Logger) GraphOption {
	return func(g *Graph) {
		if logger != nil {
			g.logger = logger
		}
	}
}

// NewGraph creates an empty graph with the given external interface.
func NewGraph(table *NodeTypeTable, sig Signature, opts ...GraphOption) (*Graph, error) {
	if table == nil {
		return nil, fmt.Errorf("%w: nil node type table", ErrInvalidNodeTable)
	}

	g := &Graph{
		table:   table,
		sig:     sig,
		byName:  make(map[string]*Node),
		inputs:  make(map[string]*Node, len(sig.Inputs)),
		outputs: make(map[string]*Node, len(sig.Outputs)),
		logger:  slog.Default(),
	}
	for _, opt := range opts {
		opt(g)
	}

	for _, p := range sig.Inputs {
		n, err := g.addNode(ArgNodeType(p.Type), inputNodePrefix+p.Name)
		if err != nil {
			return nil, fmt.Errorf("graph input %q: %w", p.Name, err)
		}
		g.inputs[p.Name] = n
	}
	for _, p := range sig.Outputs {
		n, err := g.addNode(PassNodeType(p.Type), outputNodePrefix+p.Name)
		if err != nil {
			return nil, fmt.Errorf("graph output %q: %w", p.Name, err)
		}
		g.outputs[p.Name] = n
	}
	return g, nil
}

// AddNode implements GraphBuilder.
func (g *Graph) AddNode(typeTag, name string) (NodeHandle, error) {
	if g.state != stateBuilding {
		return nil, fmt.Errorf("add node %q: %w (%s)", typeTag, ErrGraphSealed, g.state)
	}
	return g.addNode(typeTag, name)
}

func (g *Graph) addNode(typeTag, name string) (*Node, error) {
	nt, ok := g.table.Lookup(typeTag)
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownNodeType, typeTag)
	}

	n := &Node{
		graph:  g,
		name:   g.uniqueName(name, typeTag),
		typ:    nt,
		values: make([]any, len(nt.Inputs)),
		set:    make([]bool, len(nt.Inputs)),
		links:  make([]*link, len(nt.Inputs)),
	}
	for i, in := range nt.Inputs {
		n.values[i] = in.Default
	}

	g.nodes = append(g.nodes, n)
	g.byName[n.name] = n
	g.logger.Debug("node added", slog.String("node", n.name), slog.String("type", typeTag))
	return n, nil
}

// uniqueName returns name, or typeTag when empty, with a numeric suffix
// appended until it no longer collides.
func (g *Graph) uniqueName(name, typeTag string) string {
	base := name
	if base == "" {
		base = typeTag
	}
	if _, taken := g.byName[base]; !taken {
		return base
	}
	for i := 1; ; i++ {
		candidate := fmt.Sprintf("%s.%03d", base, i)
		if _, taken := g.byName[candidate]; !taken {
			return candidate
		}
	}
}

// GetInput implements GraphBuilder.
func (g *Graph) GetInput(name string) (NodeHandle, int, error) {
	n, ok := g.inputs[name]
	if !ok {
		return nil, 0, fmt.Errorf("%w: %q", ErrUnknownGraphInput, name)
	}
	return n, 0, nil
}

// GetOutput implements GraphBuilder.
func (g *Graph) GetOutput(name string) (NodeHandle, int, error) {
	n, ok := g.outputs[name]
	if !ok {
		return nil, 0, fmt.Errorf("%w: %q", ErrUnknownGraphOutput, name)
	}
	return n, 0, nil
}

// Commit implements Committer.
func (g *Graph) Commit() error {
	if g.state != stateBuilding {
		return fmt.Errorf("commit: %w (%s)", ErrGraphSealed, g.state)
	}
	g.state = stateCommitted
	g.logger.Debug("graph committed", slog.Int("nodes", len(g.nodes)))
	return nil
}

// Discard implements Committer.
func (g *Graph) Discard() {
	if g.state == stateDiscarded {
		return
	}
	g.state = stateDiscarded
	g.nodes = nil
	clear(g.byName)
	clear(g.inputs)
	clear(g.outputs)
	g.logger.Debug("graph discarded")
}

// Committed reports whether Commit succeeded.
func (g *Graph) Committed() bool {
	return g.state == stateCommitted
}

// Discarded reports whether the graph was discarded.
func (g *Graph) Discarded() bool {
	return g.state == stateDiscarded
}

// Signature returns the external interface of the graph.
func (g *Graph) Signature() Signature {
	return g.sig
}

// Node returns the node with the given name.
func (g *Graph) Node(name string) (*Node, bool) {
	n, ok := g.byName[name]
	return n, ok
}

// Nodes returns all nodes in creation order.
func (g *Graph) Nodes() []*Node {
	return append([]*Node(nil), g.nodes...)
}

// Len returns the number of nodes, including interface nodes.
func (g *Graph) Len() int {
	return len(g.nodes)
}

// CountType returns the number of nodes of the given type.
func (g *Graph) CountType(typeTag string) int {
	count := 0
	for _, n := range g.nodes {
		if n.typ.Name == typeTag {
			count++
		}
	}
	return count
}

// OutputNode returns the node backing a named external output.
func (g *Graph) OutputNode(name string) (*Node, bool) {
	n, ok := g.outputs[name]
	return n, ok
}

// InputNode returns the node backing a named external input.
func (g *Graph) InputNode(name string) (*Node, bool) {
	n, ok := g.inputs[name]
	return n, ok
}

var (
	_ GraphBuilder = (*Graph)(nil)
	_ Committer    = (*Graph)(nil)
	_ NodeHandle   = (*Node)(nil)
)

// =============================================================================
// Node
// =============================================================================

type link struct {
	from   *Node
	output int
}

// Node is a node of a Graph.
type Node struct {
	graph  *Graph
	name   string
	typ    *NodeType
	values []any
	set    []bool
	links  []*link
}

// Name implements NodeHandle.
func (n *Node) Name() string { return n.name }

// TypeTag implements NodeHandle.
func (n *Node) TypeTag() string { return n.typ.Name }

// Type returns the node type declaration.
func (n *Node) Type() *NodeType { return n.typ }

// Inputs implements NodeHandle.
func (n *Node) Inputs() []Socket {
	out := make([]Socket, len(n.typ.Inputs))
	for i, in := range n.typ.Inputs {
		out[i] = in.Socket
	}
	return out
}

// Outputs implements NodeHandle.
func (n *Node) Outputs() []Socket {
	return append([]Socket(nil), n.typ.Outputs...)
}

// Value returns the current value of an input and whether it was
// assigned explicitly rather than taken from the type default.
func (n *Node) Value(input int) (any, bool) {
	if input < 0 || input >= len(n.values) {
		return nil, false
	}
	return n.values[input], n.set[input]
}

// Link returns the source of a linked input.
func (n *Node) Link(input int) (*Node, int, bool) {
	if input < 0 || input >= len(n.links) || n.links[input] == nil {
		return nil, 0, false
	}
	l := n.links[input]
	return l.from, l.output, true
}

// SetInputLink implements NodeHandle.
func (n *Node) SetInputLink(input int, from NodeHandle, fromOutput int) error {
	if err := n.checkMutable(); err != nil {
		return err
	}
	src, ok := from.(*Node)
	if !ok || src == nil || src.graph != n.graph {
		return &SocketError{Node: n.name, Socket: n.inputName(input), Err: ErrForeignNode}
	}
	if input < 0 || input >= len(n.typ.Inputs) {
		return &SocketError{Node: n.name, Socket: fmt.Sprint(input), Err: ErrSocketIndex}
	}
	if fromOutput < 0 || fromOutput >= len(src.typ.Outputs) {
		return &SocketError{Node: src.name, Socket: fmt.Sprint(fromOutput), Err: ErrSocketIndex}
	}

	dst := n.typ.Inputs[input]
	if dst.Constant {
		return &SocketError{Node: n.name, Socket: dst.Name, Err: ErrConstantInput}
	}
	if out := src.typ.Outputs[fromOutput]; out.Type != dst.Type {
		return &SocketError{
			Node:   n.name,
			Socket: dst.Name,
			Err:    fmt.Errorf("%w: %s output %s.%s into %s input", ErrTypeMismatch, out.Type, src.name, out.Name, dst.Type),
		}
	}
	if n.links[input] != nil {
		return &SocketError{Node: n.name, Socket: dst.Name, Err: ErrInputAlreadyLinked}
	}

	n.links[input] = &link{from: src, output: fromOutput}
	return nil
}

// SetValueFloat implements NodeHandle.
func (n *Node) SetValueFloat(input int, v float32) error {
	return n.setValue(input, typedesc.TypeFloat, v)
}

// SetValueFloat3 implements NodeHandle.
func (n *Node) SetValueFloat3(input int, v typedesc.Float3) error {
	return n.setValue(input, typedesc.TypeFloat3, v)
}

// SetValueFloat4 implements NodeHandle.
func (n *Node) SetValueFloat4(input int, v typedesc.Float4) error {
	return n.setValue(input, typedesc.TypeFloat4, v)
}

// SetValueInt implements NodeHandle.
func (n *Node) SetValueInt(input int, v int32) error {
	return n.setValue(input, typedesc.TypeInt, v)
}

// SetValueMatrix44 implements NodeHandle.
func (n *Node) SetValueMatrix44(input int, v typedesc.Matrix44) error {
	return n.setValue(input, typedesc.TypeMatrix44, v)
}

func (n *Node) setValue(input int, vt typedesc.ValueType, v any) error {
	if err := n.checkMutable(); err != nil {
		return err
	}
	if input < 0 || input >= len(n.typ.Inputs) {
		return &SocketError{Node: n.name, Socket: fmt.Sprint(input), Err: ErrSocketIndex}
	}
	if in := n.typ.Inputs[input]; in.Type != vt {
		return &SocketError{
			Node:   n.name,
			Socket: in.Name,
			Err:    fmt.Errorf("%w: %s value for %s input", ErrTypeMismatch, vt, in.Type),
		}
	}
	n.values[input] = v
	n.set[input] = true
	return nil
}

func (n *Node) checkMutable() error {
	if n.graph.state != stateBuilding {
		return fmt.Errorf("node %q: %w (%s)", n.name, ErrGraphSealed, n.graph.state)
	}
	return nil
}

func (n *Node) inputName(i int) string {
	if i >= 0 && i < len(n.typ.Inputs) {
		return n.typ.Inputs[i].Name
	}
	return fmt.Sprint(i)
}
