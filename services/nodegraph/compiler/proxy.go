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
	"strconv"

	"github.com/AleutianAI/objectnodes/services/nodegraph/backend"
	"github.com/AleutianAI/objectnodes/services/nodegraph/typedesc"
)

// =============================================================================
// SocketMap
// =============================================================================

// SocketMap is an ordered collection addressable by index and by name.
type SocketMap[T any] struct {
	owner string
	keys  []string
	items []T
	index map[string]int
}

// NewSocketMap creates an empty map. owner names the node in errors.
func NewSocketMap[T any](owner string) *SocketMap[T] {
	return &SocketMap[T]{owner: owner, index: make(map[string]int)}
}

// Add appends an item under a unique name.
func (m *SocketMap[T]) Add(name string, item T) error {
	if _, dup := m.index[name]; dup {
		return &SocketKeyError{Node: m.owner, Key: name, Err: ErrDuplicateSocket}
	}
	m.index[name] = len(m.items)
	m.keys = append(m.keys, name)
	m.items = append(m.items, item)
	return nil
}

// At returns the item at position i.
func (m *SocketMap[T]) At(i int) (T, bool) {
	if i < 0 || i >= len(m.items) {
		var zero T
		return zero, false
	}
	return m.items[i], true
}

// Get returns the item with the given name.
func (m *SocketMap[T]) Get(name string) (T, bool) {
	i, ok := m.index[name]
	if !ok {
		var zero T
		return zero, false
	}
	return m.items[i], true
}

// Resolve returns the position for a key. An int key is an index; a string
// key is a name, or a decimal index when no socket has that name.
func (m *SocketMap[T]) Resolve(key any) (int, error) {
	switch k := key.(type) {
	case int:
		if k >= 0 && k < len(m.items) {
			return k, nil
		}
	case string:
		if i, ok := m.index[k]; ok {
			return i, nil
		}
		if i, err := strconv.Atoi(k); err == nil && i >= 0 && i < len(m.items) {
			return i, nil
		}
	}
	return -1, &SocketKeyError{Node: m.owner, Key: key, Err: ErrUnresolvedSocketKey}
}

// Lookup returns the item for an int or string key.
func (m *SocketMap[T]) Lookup(key any) (T, error) {
	i, err := m.Resolve(key)
	if err != nil {
		var zero T
		return zero, err
	}
	return m.items[i], nil
}

// Len returns the number of items.
func (m *SocketMap[T]) Len() int {
	return len(m.items)
}

// Keys returns the names in order.
func (m *SocketMap[T]) Keys() []string {
	return append([]string(nil), m.keys...)
}

// =============================================================================
// Node Proxies
// =============================================================================

// NodeProxy wraps a backend node handle with named socket access.
type NodeProxy struct {
	handle  backend.NodeHandle
	Inputs  *SocketMap[*InputProxy]
	Outputs *SocketMap[*OutputProxy]
}

func newNodeProxy(h backend.NodeHandle) (*NodeProxy, error) {
	p := &NodeProxy{
		handle:  h,
		Inputs:  NewSocketMap[*InputProxy](h.Name()),
		Outputs: NewSocketMap[*OutputProxy](h.Name()),
	}
	for _, s := range h.Inputs() {
		if err := p.Inputs.Add(s.Name, &InputProxy{node: p, socket: s}); err != nil {
			return nil, err
		}
	}
	for _, s := range h.Outputs() {
		if err := p.Outputs.Add(s.Name, &OutputProxy{node: p, socket: s}); err != nil {
			return nil, err
		}
	}
	return p, nil
}

// Name returns the backend node name.
func (p *NodeProxy) Name() string { return p.handle.Name() }

// TypeTag returns the backend node type.
func (p *NodeProxy) TypeTag() string { return p.handle.TypeTag() }

// Handle returns the wrapped backend handle.
func (p *NodeProxy) Handle() backend.NodeHandle { return p.handle }

// Input returns an input by index or name.
func (p *NodeProxy) Input(key any) (*InputProxy, error) {
	return p.Inputs.Lookup(key)
}

// Output returns an output by index or name.
func (p *NodeProxy) Output(key any) (*OutputProxy, error) {
	return p.Outputs.Lookup(key)
}

// InputProxy is an input socket of a backend node.
type InputProxy struct {
	node   *NodeProxy
	socket backend.Socket
}

// Node returns the owning node.
func (in *InputProxy) Node() *NodeProxy { return in.node }

// Name returns the socket name.
func (in *InputProxy) Name() string { return in.socket.Name }

// Index returns the socket index.
func (in *InputProxy) Index() int { return in.socket.Index }

// Type returns the socket value type.
func (in *InputProxy) Type() typedesc.ValueType { return in.socket.Type }

// String returns "node.socket".
func (in *InputProxy) String() string {
	return in.node.Name() + "." + in.socket.Name
}

type valueSetter func(h backend.NodeHandle, input int, v any) error

// valueSetters holds one setter per value type with a constant
// representation. MESH and DUPLIS have none.
var valueSetters = map[typedesc.ValueType]valueSetter{
	typedesc.TypeFloat: func(h backend.NodeHandle, i int, v any) error {
		return h.SetValueFloat(i, v.(float32))
	},
	typedesc.TypeInt: func(h backend.NodeHandle, i int, v any) error {
		return h.SetValueInt(i, v.(int32))
	},
	typedesc.TypeFloat3: func(h backend.NodeHandle, i int, v any) error {
		return h.SetValueFloat3(i, v.(typedesc.Float3))
	},
	typedesc.TypeFloat4: func(h backend.NodeHandle, i int, v any) error {
		return h.SetValueFloat4(i, v.(typedesc.Float4))
	},
	typedesc.TypeMatrix44: func(h backend.NodeHandle, i int, v any) error {
		return h.SetValueMatrix44(i, v.(typedesc.Matrix44))
	},
}

// SetValue assigns a constant to the input.
//
// Description:
//
//	The value is coerced to the socket type and passed to the backend
//	setter for that type. Sockets of a type without a value
//	representation return ErrNoValueSetter.
func (in *InputProxy) SetValue(v any) error {
	setter, ok := valueSetters[in.socket.Type]
	if !ok {
		return fmt.Errorf("%w: %s input %s", ErrNoValueSetter, in.socket.Type, in)
	}
	cv, err := typedesc.Coerce(in.socket.Type, v)
	if err != nil {
		return fmt.Errorf("set %s: %w", in, err)
	}
	return setter(in.node.handle, in.socket.Index, cv)
}

// OutputProxy is an output socket of a backend node.
type OutputProxy struct {
	node   *NodeProxy
	socket backend.Socket
}

// Node returns the owning node.
func (out *OutputProxy) Node() *NodeProxy { return out.node }

// Name returns the socket name.
func (out *OutputProxy) Name() string { return out.socket.Name }

// Index returns the socket index.
func (out *OutputProxy) Index() int { return out.socket.Index }

// Type returns the socket value type.
func (out *OutputProxy) Type() typedesc.ValueType { return out.socket.Type }

// String returns "node.socket".
func (out *OutputProxy) String() string {
	return out.node.Name() + "." + out.socket.Name
}
