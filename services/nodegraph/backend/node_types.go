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
	_ "embed"
	"fmt"
	"os"
	"sort"
	"sync"

	"github.com/go-playground/validator/v10"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"gopkg.in/yaml.v3"

	"github.com/AleutianAI/objectnodes/services/nodegraph/typedesc"
)

// =============================================================================
// Constants
// =============================================================================

const (
	// MaxNodeTableSize is the maximum accepted node table file size (1MB).
	MaxNodeTableSize = 1024 * 1024

	// MaxNodeTypes is the maximum number of node types in one table.
	MaxNodeTypes = 1000

	// MaxSocketsPerNode bounds inputs and outputs per node type.
	MaxSocketsPerNode = 64
)

//go:embed node_types.yaml
var defaultNodeTypesYAML []byte

var nodeTableLoadErrors = promauto.NewCounter(prometheus.CounterOpts{
	Name: "nodegraph_node_table_load_errors_total",
	Help: "Total node type table load errors",
})

var validate = validator.New()

// =============================================================================
// Types
// =============================================================================

// NodeKind classifies a node type.
type NodeKind string

const (
	KindFunction NodeKind = "function"
	KindKernel   NodeKind = "kernel"
	KindPass     NodeKind = "pass"
	KindArg      NodeKind = "arg"
	KindValue    NodeKind = "value"
)

// InputDecl is an input socket declaration with its default value.
type InputDecl struct {
	Socket
	Default any `json:"default,omitempty" yaml:"default,omitempty"`
}

// NodeType declares the sockets of one backend node type.
type NodeType struct {
	Name    string      `json:"name" yaml:"name"`
	Kind    NodeKind    `json:"kind" yaml:"kind"`
	Inputs  []InputDecl `json:"inputs" yaml:"inputs"`
	Outputs []Socket    `json:"outputs" yaml:"outputs"`
}

// InputIndex returns the index of the named input, or -1.
func (nt *NodeType) InputIndex(name string) int {
	for i, in := range nt.Inputs {
		if in.Name == name {
			return i
		}
	}
	return -1
}

// OutputIndex returns the index of the named output, or -1.
func (nt *NodeType) OutputIndex(name string) int {
	for i, out := range nt.Outputs {
		if out.Name == name {
			return i
		}
	}
	return -1
}

// NodeTypeTable is the set of node types a graph can instantiate.
//
// Thread Safety: Register must not race with lookups. A table that is
// only read is safe for concurrent use.
type NodeTypeTable struct {
	types map[string]*NodeType
	names []string
}

// NewNodeTypeTable returns an empty table.
func NewNodeTypeTable() *NodeTypeTable {
	return &NodeTypeTable{types: make(map[string]*NodeType)}
}

// Register adds a node type. Names must be unique.
func (t *NodeTypeTable) Register(nt *NodeType) error {
	if nt == nil || nt.Name == "" {
		return fmt.Errorf("%w: node type needs a name", ErrInvalidNodeTable)
	}
	if _, exists := t.types[nt.Name]; exists {
		return fmt.Errorf("%w: duplicate node type %q", ErrInvalidNodeTable, nt.Name)
	}
	if len(nt.Inputs) > MaxSocketsPerNode || len(nt.Outputs) > MaxSocketsPerNode {
		return fmt.Errorf("%w: node type %q has too many sockets", ErrInvalidNodeTable, nt.Name)
	}
	if nt.Kind == "" {
		nt.Kind = KindFunction
	}
	t.types[nt.Name] = nt
	t.names = append(t.names, nt.Name)
	return nil
}

// Lookup returns the node type with the given name.
func (t *NodeTypeTable) Lookup(name string) (*NodeType, bool) {
	nt, ok := t.types[name]
	return nt, ok
}

// Names returns all registered type names in sorted order.
func (t *NodeTypeTable) Names() []string {
	out := append([]string(nil), t.names...)
	sort.Strings(out)
	return out
}

// Len returns the number of registered types.
func (t *NodeTypeTable) Len() int {
	return len(t.types)
}

// =============================================================================
// YAML Loading
// =============================================================================

type nodeTableYAML struct {
	Version   int                     `yaml:"version" validate:"eq=1"`
	NodeTypes []nodeTypeYAML          `yaml:"node_types" validate:"required,min=1,dive"`
	Templates map[string]templateYAML `yaml:"templates"`
}

type nodeTypeYAML struct {
	Name     string       `yaml:"name" validate:"required,uppercase"`
	Kind     string       `yaml:"kind" validate:"omitempty,oneof=pass arg value function kernel"`
	Template string       `yaml:"template"`
	Inputs   []socketYAML `yaml:"inputs" validate:"dive"`
	Outputs  []socketYAML `yaml:"outputs" validate:"dive"`
}

type templateYAML struct {
	Inputs  []socketYAML `yaml:"inputs" validate:"dive"`
	Outputs []socketYAML `yaml:"outputs" validate:"dive"`
}

type socketYAML struct {
	Name     string             `yaml:"name" validate:"required"`
	Type     typedesc.ValueType `yaml:"type"`
	Default  any                `yaml:"default"`
	Constant bool               `yaml:"constant"`
}

var (
	defaultTableOnce sync.Once
	defaultTable     *NodeTypeTable
	defaultTableErr  error
)

// DefaultNodeTypes returns the built-in node type table.
//
// The table is parsed once and shared; callers must not Register on it.
func DefaultNodeTypes() (*NodeTypeTable, error) {
	defaultTableOnce.Do(func() {
		defaultTable, defaultTableErr = ParseNodeTypes(defaultNodeTypesYAML)
	})
	return defaultTable, defaultTableErr
}

// LoadNodeTypesFile parses a node type table from a YAML file.
func LoadNodeTypesFile(path string) (*NodeTypeTable, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("stat node table: %w", err)
	}
	if info.Size() > MaxNodeTableSize {
		return nil, fmt.Errorf("%w: %s exceeds %d bytes", ErrInvalidNodeTable, path, MaxNodeTableSize)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read node table: %w", err)
	}
	return ParseNodeTypes(data)
}

// ParseNodeTypes parses a node type table from YAML.
//
// Description:
//
//	Decodes the document, expands templates, coerces every default to
//	its socket type and checks that the proxy and conversion node types
//	the compiler relies on are present.
//
// Inputs:
//
//	data - YAML document.
//
// Outputs:
//
//	*NodeTypeTable - The parsed table.
//	error - Wraps ErrInvalidNodeTable on any structural problem.
func ParseNodeTypes(data []byte) (*NodeTypeTable, error) {
	table, err := parseNodeTypes(data)
	if err != nil {
		nodeTableLoadErrors.Inc()
		return nil, err
	}
	return table, nil
}

func parseNodeTypes(data []byte) (*NodeTypeTable, error) {
	if len(data) > MaxNodeTableSize {
		return nil, fmt.Errorf("%w: document exceeds %d bytes", ErrInvalidNodeTable, MaxNodeTableSize)
	}

	var doc nodeTableYAML
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidNodeTable, err)
	}
	if err := validate.Struct(doc); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidNodeTable, err)
	}
	if len(doc.NodeTypes) > MaxNodeTypes {
		return nil, fmt.Errorf("%w: %d node types exceeds limit %d", ErrInvalidNodeTable, len(doc.NodeTypes), MaxNodeTypes)
	}

	table := NewNodeTypeTable()
	for _, entry := range doc.NodeTypes {
		inputs, outputs := entry.Inputs, entry.Outputs
		if entry.Template != "" {
			tmpl, ok := doc.Templates[entry.Template]
			if !ok {
				return nil, fmt.Errorf("%w: node type %q uses unknown template %q", ErrInvalidNodeTable, entry.Name, entry.Template)
			}
			inputs = append(append([]socketYAML(nil), tmpl.Inputs...), inputs...)
			outputs = append(append([]socketYAML(nil), tmpl.Outputs...), outputs...)
		}

		nt := &NodeType{Name: entry.Name, Kind: NodeKind(entry.Kind)}
		for i, in := range inputs {
			decl := InputDecl{
				Socket: Socket{Name: in.Name, Index: i, Type: in.Type, Constant: in.Constant},
			}
			if in.Default != nil {
				v, err := typedesc.Coerce(in.Type, in.Default)
				if err != nil {
					return nil, fmt.Errorf("%w: %s.%s default: %v", ErrInvalidNodeTable, entry.Name, in.Name, err)
				}
				decl.Default = v
			} else {
				decl.Default = typedesc.Zero(in.Type)
			}
			nt.Inputs = append(nt.Inputs, decl)
		}
		for i, out := range outputs {
			nt.Outputs = append(nt.Outputs, Socket{Name: out.Name, Index: i, Type: out.Type})
		}
		if err := checkUniqueSockets(nt); err != nil {
			return nil, err
		}
		if err := table.Register(nt); err != nil {
			return nil, err
		}
	}

	if err := checkRequiredTypes(table); err != nil {
		return nil, err
	}
	return table, nil
}

func checkUniqueSockets(nt *NodeType) error {
	seen := make(map[string]bool, len(nt.Inputs))
	for _, in := range nt.Inputs {
		if seen[in.Name] {
			return fmt.Errorf("%w: %s has duplicate input %q", ErrInvalidNodeTable, nt.Name, in.Name)
		}
		seen[in.Name] = true
	}
	clear(seen)
	for _, out := range nt.Outputs {
		if seen[out.Name] {
			return fmt.Errorf("%w: %s has duplicate output %q", ErrInvalidNodeTable, nt.Name, out.Name)
		}
		seen[out.Name] = true
	}
	return nil
}

// checkRequiredTypes verifies that proxies exist for every value type and
// that every conversion node matches the lattice.
func checkRequiredTypes(table *NodeTypeTable) error {
	for _, vt := range typedesc.AllTypes() {
		name := PassNodeType(vt)
		nt, ok := table.Lookup(name)
		if !ok {
			return fmt.Errorf("%w: missing proxy type %s", ErrInvalidNodeTable, name)
		}
		if len(nt.Inputs) != 1 || len(nt.Outputs) != 1 || nt.Inputs[0].Type != vt || nt.Outputs[0].Type != vt {
			return fmt.Errorf("%w: proxy type %s must map one %s input to one output", ErrInvalidNodeTable, name, vt)
		}
	}

	for _, conv := range typedesc.DeclaredPairs() {
		nt, ok := table.Lookup(conv.NodeType)
		if !ok {
			return fmt.Errorf("%w: missing conversion type %s", ErrInvalidNodeTable, conv.NodeType)
		}
		for _, in := range conv.Inputs {
			if i := nt.InputIndex(in); i < 0 || nt.Inputs[i].Type != conv.From {
				return fmt.Errorf("%w: conversion %s needs %s input %q", ErrInvalidNodeTable, conv.NodeType, conv.From, in)
			}
		}
		if i := nt.OutputIndex(conv.Output); i < 0 || nt.Outputs[i].Type != conv.To {
			return fmt.Errorf("%w: conversion %s needs %s output %q", ErrInvalidNodeTable, conv.NodeType, conv.To, conv.Output)
		}
	}
	return nil
}

// PassNodeType returns the proxy node type for a value type, e.g. "PASS_FLOAT3".
func PassNodeType(vt typedesc.ValueType) string {
	return "PASS_" + vt.String()
}

// ArgNodeType returns the argument node type for a value type.
func ArgNodeType(vt typedesc.ValueType) string {
	return "ARG_" + vt.String()
}

// ValueNodeType returns the constant node type for a value type.
func ValueNodeType(vt typedesc.ValueType) string {
	return "VALUE_" + vt.String()
}
