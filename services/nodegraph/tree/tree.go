// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package tree models user-authored node trees.
//
// A Library holds named trees; one of them is the main tree handed to the
// compiler, the others are reachable as groups. Documents are YAML or JSON.
// The package only checks structure: node kinds and sockets are resolved
// by the compiler.
package tree

import (
	"fmt"
	"os"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"github.com/AleutianAI/objectnodes/services/nodegraph/typedesc"
)

// MaxDocumentSize is the maximum accepted document size (4MB).
const MaxDocumentSize = 4 * 1024 * 1024

var validate = validator.New()

// Tree kinds.
const (
	KindGeometry   = "geometry"
	KindForceField = "forcefield"
	KindHair       = "hair"
	KindInstancing = "instancing"
	KindTexture    = "texture"
	KindGeneric    = "generic"
)

// Library is a set of trees with a designated main tree.
type Library struct {
	Main  string  `json:"main" yaml:"main" validate:"required"`
	Trees []*Tree `json:"trees" yaml:"trees" validate:"required,min=1,dive,required"`
}

// Tree is one node tree. Inputs and Outputs form its group interface.
type Tree struct {
	Name    string   `json:"name" yaml:"name" validate:"required"`
	Kind    string   `json:"kind" yaml:"kind" validate:"required,oneof=geometry forcefield hair instancing texture generic"`
	Inputs  []Socket `json:"inputs,omitempty" yaml:"inputs,omitempty" validate:"dive"`
	Outputs []Socket `json:"outputs,omitempty" yaml:"outputs,omitempty" validate:"dive"`
	Nodes   []*Node  `json:"nodes" yaml:"nodes" validate:"dive,required"`
	Links   []Link   `json:"links,omitempty" yaml:"links,omitempty" validate:"dive"`
}

// Socket declares a typed socket with an optional default.
type Socket struct {
	Identifier string             `json:"identifier" yaml:"identifier" validate:"required"`
	Name       string             `json:"name,omitempty" yaml:"name,omitempty"`
	Type       typedesc.ValueType `json:"type" yaml:"type"`
	Default    any                `json:"default,omitempty" yaml:"default,omitempty"`
}

// Label returns the display name, falling back to the identifier.
func (s Socket) Label() string {
	if s.Name != "" {
		return s.Name
	}
	return s.Identifier
}

// Node is a user node.
type Node struct {
	Name       string            `json:"name" yaml:"name" validate:"required"`
	Kind       string            `json:"kind" yaml:"kind" validate:"required"`
	Group      string            `json:"group,omitempty" yaml:"group,omitempty"`
	Properties map[string]string `json:"properties,omitempty" yaml:"properties,omitempty"`
	Values     map[string]any    `json:"values,omitempty" yaml:"values,omitempty"`
}

// Property returns a string property or def when unset.
func (n *Node) Property(name, def string) string {
	if v, ok := n.Properties[name]; ok && v != "" {
		return v
	}
	return def
}

// Link connects an output of one node to an input of another. Sockets are
// named by identifier or decimal index.
type Link struct {
	FromNode   string `json:"from_node" yaml:"from_node" validate:"required"`
	FromSocket string `json:"from_socket" yaml:"from_socket" validate:"required"`
	ToNode     string `json:"to_node" yaml:"to_node" validate:"required"`
	ToSocket   string `json:"to_socket" yaml:"to_socket" validate:"required"`
	Disabled   bool   `json:"disabled,omitempty" yaml:"disabled,omitempty"`
}

// String returns "from.socket -> to.socket".
func (l Link) String() string {
	return fmt.Sprintf("%s.%s -> %s.%s", l.FromNode, l.FromSocket, l.ToNode, l.ToSocket)
}

// Tree returns the tree with the given name.
func (l *Library) Tree(name string) (*Tree, bool) {
	for _, t := range l.Trees {
		if t.Name == name {
			return t, true
		}
	}
	return nil, false
}

// MainTree returns the main tree.
func (l *Library) MainTree() (*Tree, error) {
	t, ok := l.Tree(l.Main)
	if !ok {
		return nil, fmt.Errorf("%w: main tree %q not found", ErrInvalidTree, l.Main)
	}
	return t, nil
}

// Node returns the node with the given name.
func (t *Tree) Node(name string) (*Node, bool) {
	for _, n := range t.Nodes {
		if n.Name == name {
			return n, true
		}
	}
	return nil, false
}

// GroupRefs returns the distinct tree names referenced by group nodes, in
// authoring order.
func (t *Tree) GroupRefs() []string {
	var refs []string
	seen := make(map[string]bool)
	for _, n := range t.Nodes {
		if n.Group != "" && !seen[n.Group] {
			seen[n.Group] = true
			refs = append(refs, n.Group)
		}
	}
	return refs
}

// Parse decodes and validates a library from YAML or JSON.
func Parse(data []byte) (*Library, error) {
	if len(data) > MaxDocumentSize {
		return nil, fmt.Errorf("%w: %d bytes exceeds %d", ErrDocumentTooLarge, len(data), MaxDocumentSize)
	}

	var lib Library
	if err := yaml.Unmarshal(data, &lib); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidTree, err)
	}
	if err := Validate(&lib); err != nil {
		return nil, err
	}
	return &lib, nil
}

// LoadFile reads and parses a library document.
func LoadFile(path string) (*Library, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("stat tree document: %w", err)
	}
	if info.Size() > MaxDocumentSize {
		return nil, fmt.Errorf("%w: %s", ErrDocumentTooLarge, path)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read tree document: %w", err)
	}
	return Parse(data)
}
