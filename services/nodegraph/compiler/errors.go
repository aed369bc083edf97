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
	"errors"
	"fmt"

	"github.com/AleutianAI/objectnodes/services/nodegraph/backend"
)

// Sentinel errors for the compiler package.
var (
	// ErrNilContext is returned when a nil context is passed.
	ErrNilContext = errors.New("context must not be nil")

	// ErrInvalidInput is returned when a required argument is missing.
	ErrInvalidInput = errors.New("invalid input")

	// ErrUnknownNodeType is returned when the backend cannot create a node
	// of the requested type. It is the backend sentinel.
	ErrUnknownNodeType = backend.ErrUnknownNodeType

	// ErrUnresolvedSocketKey is returned when a socket key names no socket.
	ErrUnresolvedSocketKey = errors.New("unresolved socket key")

	// ErrDuplicateSocket is returned when a socket list repeats a name.
	ErrDuplicateSocket = errors.New("duplicate socket name")

	// ErrFrameUnderflow is returned when the frame stack has too few frames.
	ErrFrameUnderflow = errors.New("frame stack underflow")

	// ErrStackNotEmpty is returned when a compile pass ends with frames left.
	ErrStackNotEmpty = errors.New("frame stack not empty after compile")

	// ErrNoValueSetter is returned when assigning a constant to a socket
	// type that has no value representation.
	ErrNoValueSetter = errors.New("no value setter for socket type")

	// ErrUnknownKind is returned for a node kind missing from the KindTable.
	ErrUnknownKind = errors.New("unknown node kind")

	// ErrKindExists is returned when registering a kind twice.
	ErrKindExists = errors.New("node kind already registered")
)

// NodeCreationError reports a failed backend node creation.
type NodeCreationError struct {
	TypeTag string
	Name    string
	Err     error
}

// Error returns the error message.
func (e *NodeCreationError) Error() string {
	return fmt.Sprintf("node creation failed: type %q name %q: %v", e.TypeTag, e.Name, e.Err)
}

// Unwrap returns the underlying error.
func (e *NodeCreationError) Unwrap() error {
	return e.Err
}

// SocketKeyError reports a socket key that resolved to nothing.
type SocketKeyError struct {
	Node string
	Key  any
	Err  error
}

// Error returns the error message.
func (e *SocketKeyError) Error() string {
	return fmt.Sprintf("node %q socket %v: %v", e.Node, e.Key, e.Err)
}

// Unwrap returns the underlying error.
func (e *SocketKeyError) Unwrap() error {
	return e.Err
}

// NodeError wraps an error with the user node whose compile logic failed.
type NodeError struct {
	NodeName string
	Kind     string
	Err      error
}

// Error returns the error message.
func (e *NodeError) Error() string {
	return fmt.Sprintf("node %q (%s): %v", e.NodeName, e.Kind, e.Err)
}

// Unwrap returns the underlying error.
func (e *NodeError) Unwrap() error {
	return e.Err
}
