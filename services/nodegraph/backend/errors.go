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
	"errors"
	"fmt"
)

// Sentinel errors for the backend package.
var (
	// ErrUnknownNodeType is returned by AddNode for an unregistered type tag.
	ErrUnknownNodeType = errors.New("unknown node type")

	// ErrUnknownGraphInput is returned by GetInput for an undeclared name.
	ErrUnknownGraphInput = errors.New("unknown graph input")

	// ErrUnknownGraphOutput is returned by GetOutput for an undeclared name.
	ErrUnknownGraphOutput = errors.New("unknown graph output")

	// ErrSocketIndex is returned for an out of range socket index.
	ErrSocketIndex = errors.New("socket index out of range")

	// ErrTypeMismatch is returned when a link or value does not match the
	// socket type.
	ErrTypeMismatch = errors.New("socket type mismatch")

	// ErrInputAlreadyLinked is returned when linking an input twice.
	ErrInputAlreadyLinked = errors.New("input already linked")

	// ErrConstantInput is returned when linking an input that only
	// accepts constants.
	ErrConstantInput = errors.New("input accepts constants only")

	// ErrForeignNode is returned when linking nodes of different graphs.
	ErrForeignNode = errors.New("node belongs to another graph")

	// ErrGraphSealed is returned when mutating a committed or discarded graph.
	ErrGraphSealed = errors.New("graph is sealed")

	// ErrNotCommitted is returned when evaluating a graph that was not committed.
	ErrNotCommitted = errors.New("graph is not committed")

	// ErrNotEvaluable is returned by the evaluator for nodes it cannot run.
	ErrNotEvaluable = errors.New("node is not evaluable")

	// ErrEvalCycle is returned when evaluation revisits a node.
	ErrEvalCycle = errors.New("cycle during evaluation")

	// ErrInvalidNodeTable is returned when a node type table fails to load.
	ErrInvalidNodeTable = errors.New("invalid node type table")

	// ErrUnknownSignature is returned for an undeclared graph signature.
	ErrUnknownSignature = errors.New("unknown graph signature")
)

// SocketError wraps an error with the node and socket that caused it.
type SocketError struct {
	Node   string
	Socket string
	Err    error
}

// Error returns the error message.
func (e *SocketError) Error() string {
	return fmt.Sprintf("node %q socket %q: %v", e.Node, e.Socket, e.Err)
}

// Unwrap returns the underlying error.
func (e *SocketError) Unwrap() error {
	return e.Err
}
