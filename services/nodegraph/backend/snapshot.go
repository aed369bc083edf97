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
	"github.com/AleutianAI/objectnodes/services/nodegraph/typedesc"
)

// Snapshot is a serializable view of a graph.
type Snapshot struct {
	Signature Signature      `json:"signature" yaml:"signature"`
	Nodes     []NodeSnapshot `json:"nodes" yaml:"nodes"`
}

// NodeSnapshot is one node of a Snapshot.
type NodeSnapshot struct {
	Name   string          `json:"name" yaml:"name"`
	Type   string          `json:"type" yaml:"type"`
	Inputs []InputSnapshot `json:"inputs,omitempty" yaml:"inputs,omitempty"`
}

// InputSnapshot records either the link or the value of an input.
type InputSnapshot struct {
	Name  string             `json:"name" yaml:"name"`
	Type  typedesc.ValueType `json:"type" yaml:"type"`
	Value any                `json:"value,omitempty" yaml:"value,omitempty"`
	Set   bool               `json:"set,omitempty" yaml:"set,omitempty"`
	Link  *LinkRef           `json:"link,omitempty" yaml:"link,omitempty"`
}

// LinkRef names the source socket of a link.
type LinkRef struct {
	Node   string `json:"node" yaml:"node"`
	Socket string `json:"socket" yaml:"socket"`
}

// Snapshot returns a serializable copy of the graph in creation order.
// Linked inputs carry no value.
func (g *Graph) Snapshot() *Snapshot {
	snap := &Snapshot{
		Signature: g.sig,
		Nodes:     make([]NodeSnapshot, 0, len(g.nodes)),
	}
	for _, n := range g.nodes {
		ns := NodeSnapshot{Name: n.name, Type: n.typ.Name}
		for i, in := range n.typ.Inputs {
			is := InputSnapshot{Name: in.Name, Type: in.Type}
			if l := n.links[i]; l != nil {
				is.Link = &LinkRef{Node: l.from.name, Socket: l.from.typ.Outputs[l.output].Name}
			} else {
				is.Value = n.values[i]
				is.Set = n.set[i]
			}
			ns.Inputs = append(ns.Inputs, is)
		}
		snap.Nodes = append(snap.Nodes, ns)
	}
	return snap
}

// Node returns the snapshot of the named node.
func (s *Snapshot) Node(name string) (NodeSnapshot, bool) {
	for _, n := range s.Nodes {
		if n.Name == name {
			return n, true
		}
	}
	return NodeSnapshot{}, false
}

// Input returns the snapshot of the named input.
func (n NodeSnapshot) Input(name string) (InputSnapshot, bool) {
	for _, in := range n.Inputs {
		if in.Name == name {
			return in, true
		}
	}
	return InputSnapshot{}, false
}

// CountType returns the number of nodes of the given type.
func (s *Snapshot) CountType(typeTag string) int {
	count := 0
	for _, n := range s.Nodes {
		if n.Type == typeTag {
			count++
		}
	}
	return count
}
