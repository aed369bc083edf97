// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package compiler

import (
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	"github.com/AleutianAI/objectnodes/services/nodegraph/backend"
	"github.com/AleutianAI/objectnodes/services/nodegraph/tree"
	"github.com/AleutianAI/objectnodes/services/nodegraph/typedesc"
)

// Stats counts what a compile pass emitted.
type Stats struct {
	// Nodes created by node kinds.
	Nodes int `json:"nodes" yaml:"nodes"`

	// Proxies are the PASS nodes created for user node sockets.
	Proxies int `json:"proxies" yaml:"proxies"`

	// Conversions are nodes inserted to bridge socket types.
	Conversions int `json:"conversions" yaml:"conversions"`

	// Links created in the backend graph.
	Links int `json:"links" yaml:"links"`

	// DanglingLinks are user links whose endpoints were never registered.
	DanglingLinks int `json:"dangling_links" yaml:"dangling_links"`

	// DisabledLinks are user links marked invalid.
	DisabledLinks int `json:"disabled_links" yaml:"disabled_links"`

	// SkippedNodes are user nodes of unregistered kinds.
	SkippedNodes int `json:"skipped_nodes" yaml:"skipped_nodes"`
}

// Frame is the compile context of one user node: its boundary proxies,
// keyed by socket identifier.
type Frame struct {
	Node    *tree.Node
	Inputs  *SocketMap[*NodeProxy]
	Outputs *SocketMap[*NodeProxy]

	tree *tree.Tree
}

// NodeCompiler translates user nodes into backend graph calls.
//
// Description:
//
//	NodeCompiler keeps a stack of frames, one per user node being compiled.
//	Node kinds create backend nodes with AddNode and connect them to the
//	frame's boundary proxies with MapInput and MapOutput. Group nodes
//	compile a nested tree on top of their own frame; the nested boundary
//	nodes reach the group frame through MapInputExternal and
//	MapOutputExternal.
//
// Thread Safety: Not safe for concurrent use. One NodeCompiler serves one
// compile pass.
type NodeCompiler struct {
	graph  backend.GraphBuilder
	kinds  *KindTable
	lib    *tree.Library
	logger *slog.Logger

	stack  []*Frame
	trees  []*tree.Tree
	prefix []string
	stats  Stats
}

// NewNodeCompiler creates a compiler emitting into graph.
//
// Inputs:
//
//	graph - The backend graph. Must not be nil.
//	kinds - Registered node kinds. Must not be nil.
//	lib - Library used to resolve groups. May be nil when no groups occur.
//	logger - If nil, uses slog.Default().
func NewNodeCompiler(graph backend.GraphBuilder, kinds *KindTable, lib *tree.Library, logger *slog.Logger) (*NodeCompiler, error) {
	if graph == nil || kinds == nil {
		return nil, ErrInvalidInput
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &NodeCompiler{
		graph:  graph,
		kinds:  kinds,
		lib:    lib,
		logger: logger,
	}, nil
}

// Stats returns counters for the pass so far.
func (c *NodeCompiler) Stats() Stats { return c.stats }

// Logger returns the pass logger.
func (c *NodeCompiler) Logger() *slog.Logger { return c.logger }

// Library returns the library being compiled, or nil.
func (c *NodeCompiler) Library() *tree.Library { return c.lib }

// Depth returns the number of frames on the stack.
func (c *NodeCompiler) Depth() int { return len(c.stack) }

// Top returns the current frame, or nil when the stack is empty.
func (c *NodeCompiler) Top() *Frame {
	if len(c.stack) == 0 {
		return nil
	}
	return c.stack[len(c.stack)-1]
}

func (c *NodeCompiler) currentTree() *tree.Tree {
	if len(c.trees) == 0 {
		return nil
	}
	return c.trees[len(c.trees)-1]
}

// qualify prefixes name with the enclosing group node path.
func (c *NodeCompiler) qualify(name string) string {
	if len(c.prefix) == 0 {
		return name
	}
	return strings.Join(c.prefix, "/") + "/" + name
}

// =============================================================================
// Nodes
// =============================================================================

// AddNode creates a backend node.
//
// An empty name is derived from the current frame's node so that emitted
// nodes stay traceable to the user node that produced them.
func (c *NodeCompiler) AddNode(typeTag, name string) (*NodeProxy, error) {
	if name == "" {
		if f := c.Top(); f != nil {
			name = f.Node.Name + "." + strings.ToLower(typeTag)
		}
	}
	if name != "" {
		name = c.qualify(name)
	}
	p, err := c.addNode(typeTag, name)
	if err != nil {
		return nil, err
	}
	c.stats.Nodes++
	return p, nil
}

func (c *NodeCompiler) addNode(typeTag, name string) (*NodeProxy, error) {
	h, err := c.graph.AddNode(typeTag, name)
	if err != nil {
		return nil, &NodeCreationError{TypeTag: typeTag, Name: name, Err: err}
	}
	if h == nil {
		return nil, &NodeCreationError{TypeTag: typeTag, Name: name, Err: ErrUnknownNodeType}
	}
	return newNodeProxy(h)
}

// GraphInput returns the output socket that provides a named external
// graph input.
func (c *NodeCompiler) GraphInput(name string) (*OutputProxy, error) {
	h, idx, err := c.graph.GetInput(name)
	if err != nil {
		return nil, fmt.Errorf("graph input %q: %w", name, err)
	}
	p, err := newNodeProxy(h)
	if err != nil {
		return nil, err
	}
	return p.Output(idx)
}

// GraphOutput returns the input socket that receives a named external
// graph output.
func (c *NodeCompiler) GraphOutput(name string) (*InputProxy, error) {
	h, idx, err := c.graph.GetOutput(name)
	if err != nil {
		return nil, fmt.Errorf("graph output %q: %w", name, err)
	}
	p, err := newNodeProxy(h)
	if err != nil {
		return nil, err
	}
	return p.Input(idx)
}

// =============================================================================
// Links
// =============================================================================

type linkOptions struct {
	convert bool
}

// LinkOption configures Link.
type LinkOption func(*linkOptions)

// WithoutConversion makes Link fail instead of inserting a conversion node.
func WithoutConversion() LinkOption {
	return func(o *linkOptions) { o.convert = false }
}

// Link connects an output to an input.
//
// Description:
//
//	Equal types are linked directly. Otherwise the conversion declared by
//	the type lattice is inserted: the source is linked to every input the
//	conversion lists, constants are assigned, and the conversion output is
//	linked to the target.
//
// Outputs:
//
//	error - Wraps typedesc.ErrUnsupportedConversion when no conversion
//	        exists or conversion is disabled, or a backend error.
func (c *NodeCompiler) Link(from *OutputProxy, to *InputProxy, opts ...LinkOption) error {
	if from == nil || to == nil {
		return fmt.Errorf("%w: link needs both endpoints", ErrInvalidInput)
	}
	o := linkOptions{convert: true}
	for _, opt := range opts {
		opt(&o)
	}

	conv, err := typedesc.Resolve(from.Type(), to.Type())
	if err != nil {
		return fmt.Errorf("link %s -> %s: %w", from, to, err)
	}
	if conv.Identity() {
		return c.connect(from, to)
	}
	if !o.convert {
		return fmt.Errorf("link %s -> %s: %w", from, to, &typedesc.ConversionError{From: from.Type(), To: to.Type()})
	}

	cnode, err := c.addNode(conv.NodeType, to.Node().Name()+":"+strings.ToLower(conv.NodeType))
	if err != nil {
		return err
	}
	c.stats.Conversions++

	for _, name := range conv.Inputs {
		in, err := cnode.Input(name)
		if err != nil {
			return err
		}
		if err := c.connect(from, in); err != nil {
			return err
		}
	}
	for _, k := range conv.Constants {
		in, err := cnode.Input(k.Name)
		if err != nil {
			return err
		}
		if err := in.SetValue(k.Value); err != nil {
			return err
		}
	}
	out, err := cnode.Output(conv.Output)
	if err != nil {
		return err
	}
	c.logger.Debug("conversion inserted",
		slog.String("from", from.String()),
		slog.String("to", to.String()),
		slog.String("node", cnode.Name()),
	)
	return c.connect(out, to)
}

func (c *NodeCompiler) connect(from *OutputProxy, to *InputProxy) error {
	if err := to.node.handle.SetInputLink(to.Index(), from.node.handle, from.Index()); err != nil {
		return fmt.Errorf("link %s -> %s: %w", from, to, err)
	}
	c.stats.Links++
	return nil
}

// =============================================================================
// Frames
// =============================================================================

// Push opens a frame for node.
//
// Description:
//
//	Resolves the node's sockets through its kind and creates one
//	PASS_<TYPE> proxy per input and output, registered under the socket
//	identifier. Input proxies receive the socket default, overridden by the
//	node's value for that socket, when one is present.
//
// Outputs:
//
//	*Frame - The new top frame.
//	error - ErrUnknownKind, or a node creation or value error.
func (c *NodeCompiler) Push(node *tree.Node) (*Frame, error) {
	if node == nil {
		return nil, fmt.Errorf("%w: nil node", ErrInvalidInput)
	}
	kind, ok := c.kinds.Lookup(node.Kind)
	if !ok {
		return nil, &NodeError{NodeName: node.Name, Kind: node.Kind, Err: ErrUnknownKind}
	}
	inputs, outputs, err := kind.Declare(node, DeclareContext{Library: c.lib, Tree: c.currentTree()})
	if err != nil {
		return nil, &NodeError{NodeName: node.Name, Kind: node.Kind, Err: err}
	}

	qualified := c.qualify(node.Name)
	f := &Frame{
		Node:    node,
		Inputs:  NewSocketMap[*NodeProxy](qualified),
		Outputs: NewSocketMap[*NodeProxy](qualified),
		tree:    c.currentTree(),
	}

	for _, s := range inputs {
		proxy, err := c.addProxy(s.Type, qualified+":in:"+s.Identifier)
		if err != nil {
			return nil, err
		}
		if err := f.Inputs.Add(s.Identifier, proxy); err != nil {
			return nil, err
		}
		value := s.Default
		if v, ok := node.Values[s.Identifier]; ok {
			value = v
		}
		if value != nil {
			in, _ := proxy.Inputs.At(0)
			if err := in.SetValue(value); err != nil {
				return nil, &NodeError{NodeName: node.Name, Kind: node.Kind, Err: err}
			}
		}
	}
	for _, s := range outputs {
		proxy, err := c.addProxy(s.Type, qualified+":out:"+s.Identifier)
		if err != nil {
			return nil, err
		}
		if err := f.Outputs.Add(s.Identifier, proxy); err != nil {
			return nil, err
		}
	}

	c.stack = append(c.stack, f)
	return f, nil
}

func (c *NodeCompiler) addProxy(vt typedesc.ValueType, name string) (*NodeProxy, error) {
	p, err := c.addNode(backend.PassNodeType(vt), name)
	if err != nil {
		return nil, err
	}
	c.stats.Proxies++
	return p, nil
}

// Pop closes the top frame.
func (c *NodeCompiler) Pop() error {
	n := len(c.stack)
	if n == 0 {
		return ErrFrameUnderflow
	}
	c.stack[n-1] = nil
	c.stack = c.stack[:n-1]
	return nil
}

// frame returns the frame level positions below the top, counting the
// top as 1.
func (c *NodeCompiler) frame(level int) (*Frame, error) {
	if len(c.stack) < level {
		return nil, fmt.Errorf("%w: need %d frames, have %d", ErrFrameUnderflow, level, len(c.stack))
	}
	return c.stack[len(c.stack)-level], nil
}

// MapInput links the current frame's input proxy key to target.
func (c *NodeCompiler) MapInput(key any, target *InputProxy) error {
	return c.mapInput(1, key, target)
}

// MapOutput links source to the current frame's output proxy key.
func (c *NodeCompiler) MapOutput(key any, source *OutputProxy) error {
	return c.mapOutput(1, key, source)
}

// MapInputExternal is MapInput against the frame below the top. It does
// nothing when fewer than two frames are on the stack.
func (c *NodeCompiler) MapInputExternal(key any, target *InputProxy) error {
	if len(c.stack) < 2 {
		return nil
	}
	return c.mapInput(2, key, target)
}

// MapOutputExternal is MapOutput against the frame below the top. It does
// nothing when fewer than two frames are on the stack.
func (c *NodeCompiler) MapOutputExternal(key any, source *OutputProxy) error {
	if len(c.stack) < 2 {
		return nil
	}
	return c.mapOutput(2, key, source)
}

func (c *NodeCompiler) mapInput(level int, key any, target *InputProxy) error {
	f, err := c.frame(level)
	if err != nil {
		return err
	}
	proxy, err := f.Inputs.Lookup(key)
	if err != nil {
		return err
	}
	out, _ := proxy.Outputs.At(0)
	return c.Link(out, target)
}

func (c *NodeCompiler) mapOutput(level int, key any, source *OutputProxy) error {
	f, err := c.frame(level)
	if err != nil {
		return err
	}
	proxy, err := f.Outputs.Lookup(key)
	if err != nil {
		return err
	}
	in, _ := proxy.Inputs.At(0)
	return c.Link(source, in)
}

// InputLinked reports whether a user link targets input key of the current
// frame's node. Disabled links do not count.
func (c *NodeCompiler) InputLinked(key any) (bool, error) {
	f, err := c.frame(1)
	if err != nil {
		return false, err
	}
	idx, err := f.Inputs.Resolve(key)
	if err != nil {
		return false, err
	}
	if f.tree == nil {
		return false, nil
	}
	id := f.Inputs.keys[idx]
	pos := strconv.Itoa(idx)
	for _, l := range f.tree.Links {
		if l.Disabled || l.ToNode != f.Node.Name {
			continue
		}
		if l.ToSocket == id || l.ToSocket == pos {
			return true, nil
		}
	}
	return false, nil
}
