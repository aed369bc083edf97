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
	"errors"
	"fmt"
	"strings"
)

// Sentinel errors for the tree package.
var (
	// ErrInvalidTree is returned when a document is structurally invalid.
	ErrInvalidTree = errors.New("invalid node tree")

	// ErrDuplicateNode is returned when two nodes of a tree share a name.
	ErrDuplicateNode = errors.New("node with this name already exists")

	// ErrNodeNotFound is returned when a link references a missing node.
	ErrNodeNotFound = errors.New("node not found")

	// ErrGroupNotFound is returned when a group node references a missing tree.
	ErrGroupNotFound = errors.New("group tree not found")

	// ErrCyclicGroupReference is returned when groups reference each other
	// directly or transitively.
	ErrCyclicGroupReference = errors.New("cyclic group reference")

	// ErrDocumentTooLarge is returned when a document exceeds MaxDocumentSize.
	ErrDocumentTooLarge = errors.New("document too large")
)

// NodeError wraps an error with the tree and node that caused it.
type NodeError struct {
	Tree     string
	NodeName string
	Err      error
}

// Error returns the error message.
func (e *NodeError) Error() string {
	return fmt.Sprintf("tree %q node %q: %v", e.Tree, e.NodeName, e.Err)
}

// Unwrap returns the underlying error.
func (e *NodeError) Unwrap() error {
	return e.Err
}

// CycleError provides details about a group reference cycle.
type CycleError struct {
	// Path lists tree names along the cycle; the first and last are equal.
	Path []string
}

// Error returns the cycle description.
func (e *CycleError) Error() string {
	return fmt.Sprintf("%v: %s", ErrCyclicGroupReference, strings.Join(e.Path, " -> "))
}

// Unwrap returns ErrCyclicGroupReference.
func (e *CycleError) Unwrap() error {
	return ErrCyclicGroupReference
}

// NewCycleError creates a CycleError.
func NewCycleError(path []string) *CycleError {
	return &CycleError{Path: path}
}
