// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package tree

import (
	"fmt"
	"sort"

	"github.com/AleutianAI/objectnodes/services/nodegraph/typedesc"
)

// Validate checks the structure of a library.
//
// Description:
//
//	Runs struct validation, then checks that tree names are unique, the
//	main tree exists, node names are unique per tree, links reference
//	existing nodes, no input takes more than one enabled link, group nodes
//	reference existing trees, and that group references form no cycle.
//
// Inputs:
//
//	lib - The library to check.
//
// Outputs:
//
//	error - Wraps ErrInvalidTree, ErrDuplicateNode, ErrNodeNotFound,
//	        ErrGroupNotFound, or is a *CycleError.
func Validate(lib *Library) error {
	if lib == nil {
		return fmt.Errorf("%w: nil library", ErrInvalidTree)
	}
	if err := validate.Struct(lib); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidTree, err)
	}

	trees := make(map[string]*Tree, len(lib.Trees))
	for _, t := range lib.Trees {
		if _, dup := trees[t.Name]; dup {
			return fmt.Errorf("%w: duplicate tree %q", ErrInvalidTree, t.Name)
		}
		trees[t.Name] = t
	}
	if _, ok := trees[lib.Main]; !ok {
		return fmt.Errorf("%w: main tree %q not found", ErrInvalidTree, lib.Main)
	}

	for _, t := range lib.Trees {
		if err := validateTree(t, trees); err != nil {
			return err
		}
	}

	return detectGroupCycles(trees)
}

func validateTree(t *Tree, trees map[string]*Tree) error {
	if err := checkSockets(t.Name, "input", t.Inputs); err != nil {
		return err
	}
	if err := checkSockets(t.Name, "output", t.Outputs); err != nil {
		return err
	}

	names := make(map[string]bool, len(t.Nodes))
	for _, n := range t.Nodes {
		if names[n.Name] {
			return &NodeError{Tree: t.Name, NodeName: n.Name, Err: ErrDuplicateNode}
		}
		names[n.Name] = true
		if n.Group != "" {
			if _, ok := trees[n.Group]; !ok {
				return &NodeError{Tree: t.Name, NodeName: n.Name, Err: fmt.Errorf("%w: %q", ErrGroupNotFound, n.Group)}
			}
		}
	}

	// An input takes at most one enabled link.
	linked := make(map[[2]string]Link, len(t.Links))
	for _, l := range t.Links {
		if !names[l.FromNode] {
			return &NodeError{Tree: t.Name, NodeName: l.FromNode, Err: fmt.Errorf("%w (link %s)", ErrNodeNotFound, l)}
		}
		if !names[l.ToNode] {
			return &NodeError{Tree: t.Name, NodeName: l.ToNode, Err: fmt.Errorf("%w (link %s)", ErrNodeNotFound, l)}
		}
		if l.Disabled {
			continue
		}
		key := [2]string{l.ToNode, l.ToSocket}
		if prev, dup := linked[key]; dup {
			return &NodeError{Tree: t.Name, NodeName: l.ToNode, Err: fmt.Errorf("%w: input %q linked twice (%s, %s)", ErrInvalidTree, l.ToSocket, prev, l)}
		}
		linked[key] = l
	}
	return nil
}

func checkSockets(tree, dir string, sockets []Socket) error {
	seen := make(map[string]bool, len(sockets))
	for _, s := range sockets {
		if seen[s.Identifier] {
			return fmt.Errorf("%w: tree %q has duplicate %s %q", ErrInvalidTree, tree, dir, s.Identifier)
		}
		seen[s.Identifier] = true
		if !s.Type.Valid() {
			return fmt.Errorf("%w: tree %q %s %q has invalid type", ErrInvalidTree, tree, dir, s.Identifier)
		}
		if s.Default != nil && s.Type.HasValue() {
			if _, err := typedesc.Coerce(s.Type, s.Default); err != nil {
				return fmt.Errorf("%w: tree %q %s %q default: %v", ErrInvalidTree, tree, dir, s.Identifier, err)
			}
		}
	}
	return nil
}

// detectGroupCycles uses DFS over group references to detect cycles.
func detectGroupCycles(trees map[string]*Tree) error {
	visited := make(map[string]bool)
	recStack := make(map[string]bool)
	path := make([]string, 0)

	var dfs func(name string) error
	dfs = func(name string) error {
		visited[name] = true
		recStack[name] = true
		path = append(path, name)

		for _, ref := range trees[name].GroupRefs() {
			if !visited[ref] {
				if err := dfs(ref); err != nil {
					return err
				}
			} else if recStack[ref] {
				cycleStart := 0
				for i, n := range path {
					if n == ref {
						cycleStart = i
						break
					}
				}
				cyclePath := append(append([]string(nil), path[cycleStart:]...), ref)
				return NewCycleError(cyclePath)
			}
		}

		path = path[:len(path)-1]
		recStack[name] = false
		return nil
	}

	// Sorted for a deterministic cycle path.
	names := make([]string, 0, len(trees))
	for name := range trees {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		if !visited[name] {
			if err := dfs(name); err != nil {
				return err
			}
		}
	}
	return nil
}
