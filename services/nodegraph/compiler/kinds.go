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
	"sort"
	"sync"

	"github.com/AleutianAI/objectnodes/services/nodegraph/tree"
)

// DeclareContext gives a node kind access to the surrounding documents
// while it resolves sockets.
type DeclareContext struct {
	Library *tree.Library
	Tree    *tree.Tree
}

// NodeKind is the compile logic of one user node kind.
type NodeKind interface {
	// Name returns the kind name used in tree documents, e.g. "Math".
	Name() string

	// Declare returns the ordered input and output sockets of node.
	Declare(node *tree.Node, ctx DeclareContext) (inputs, outputs []tree.Socket, err error)

	// Compile emits backend nodes for node. It runs with the node's frame
	// on top of the stack.
	Compile(c *NodeCompiler, node *tree.Node) error
}

// KindTable maps kind names to their compile logic.
//
// Thread Safety: Safe for concurrent use.
type KindTable struct {
	mu    sync.RWMutex
	kinds map[string]NodeKind
}

// NewKindTable returns a table holding the given kinds.
func NewKindTable(kinds ...NodeKind) (*KindTable, error) {
	t := &KindTable{kinds: make(map[string]NodeKind, len(kinds))}
	for _, k := range kinds {
		if err := t.Register(k); err != nil {
			return nil, err
		}
	}
	return t, nil
}

// Register adds a kind.
func (t *KindTable) Register(k NodeKind) error {
	if k == nil || k.Name() == "" {
		return fmt.Errorf("%w: kind needs a name", ErrInvalidInput)
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	if _, exists := t.kinds[k.Name()]; exists {
		return fmt.Errorf("%w: %q", ErrKindExists, k.Name())
	}
	t.kinds[k.Name()] = k
	return nil
}

// Lookup returns the kind with the given name.
func (t *KindTable) Lookup(name string) (NodeKind, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	k, ok := t.kinds[name]
	return k, ok
}

// Names returns all kind names in sorted order.
func (t *KindTable) Names() []string {
	t.mu.RLock()
	defer t.mu.RUnlock()
	out := make([]string, 0, len(t.kinds))
	for name := range t.kinds {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}
