// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package nodegraph

import (
	"context"
	"errors"
	"net/http"

	"github.com/AleutianAI/objectnodes/services/nodegraph/backend"
	"github.com/AleutianAI/objectnodes/services/nodegraph/compiler"
	"github.com/AleutianAI/objectnodes/services/nodegraph/nodes"
	"github.com/AleutianAI/objectnodes/services/nodegraph/store"
	"github.com/AleutianAI/objectnodes/services/nodegraph/tree"
	"github.com/AleutianAI/objectnodes/services/nodegraph/typedesc"
)

// Sentinel errors for the node graph service.
var (
	// ErrStoreDisabled indicates the service runs without a graph store.
	ErrStoreDisabled = errors.New("graph store disabled")

	// ErrCompileTimeout indicates a compile exceeded MaxCompileDuration.
	ErrCompileTimeout = errors.New("compile timed out")
)

// errorClass maps an error to an HTTP status and a stable error code.
type errorClass struct {
	target error
	status int
	code   string
}

// errorClasses is checked in order; the first match wins.
var errorClasses = []errorClass{
	{ErrCompileTimeout, http.StatusGatewayTimeout, "COMPILE_TIMEOUT"},
	{context.DeadlineExceeded, http.StatusGatewayTimeout, "COMPILE_TIMEOUT"},
	{context.Canceled, 499, "CANCELLED"},
	{ErrStoreDisabled, http.StatusNotImplemented, "STORE_DISABLED"},
	{store.ErrNotFound, http.StatusNotFound, "GRAPH_NOT_FOUND"},
	{tree.ErrDocumentTooLarge, http.StatusRequestEntityTooLarge, "DOCUMENT_TOO_LARGE"},
	{tree.ErrCyclicGroupReference, http.StatusUnprocessableEntity, "CYCLIC_GROUP_REFERENCE"},
	{tree.ErrGroupNotFound, http.StatusUnprocessableEntity, "GROUP_NOT_FOUND"},
	{tree.ErrInvalidTree, http.StatusBadRequest, "INVALID_TREE"},
	{tree.ErrDuplicateNode, http.StatusBadRequest, "INVALID_TREE"},
	{tree.ErrNodeNotFound, http.StatusBadRequest, "INVALID_TREE"},
	{backend.ErrUnknownSignature, http.StatusBadRequest, "UNKNOWN_SIGNATURE"},
	{backend.ErrUnknownGraphInput, http.StatusBadRequest, "UNKNOWN_GRAPH_INPUT"},
	{backend.ErrUnknownGraphOutput, http.StatusUnprocessableEntity, "UNKNOWN_GRAPH_OUTPUT"},
	{backend.ErrInputAlreadyLinked, http.StatusUnprocessableEntity, "INPUT_ALREADY_LINKED"},
	{backend.ErrConstantInput, http.StatusUnprocessableEntity, "CONSTANT_INPUT"},
	{backend.ErrSocketIndex, http.StatusUnprocessableEntity, "UNRESOLVED_SOCKET_KEY"},
	{typedesc.ErrUnsupportedConversion, http.StatusUnprocessableEntity, "UNSUPPORTED_CONVERSION"},
	{compiler.ErrUnknownNodeType, http.StatusUnprocessableEntity, "UNKNOWN_NODE_TYPE"},
	{compiler.ErrUnresolvedSocketKey, http.StatusUnprocessableEntity, "UNRESOLVED_SOCKET_KEY"},
	{nodes.ErrUnknownMode, http.StatusUnprocessableEntity, "UNKNOWN_MODE"},
	{nodes.ErrInvalidProperty, http.StatusUnprocessableEntity, "INVALID_PROPERTY"},
	{compiler.ErrNoValueSetter, http.StatusUnprocessableEntity, "INVALID_VALUE"},
	{typedesc.ErrInvalidValue, http.StatusUnprocessableEntity, "INVALID_VALUE"},
	{typedesc.ErrNoValue, http.StatusUnprocessableEntity, "INVALID_VALUE"},
	{typedesc.ErrUnknownType, http.StatusUnprocessableEntity, "UNKNOWN_VALUE_TYPE"},
	{backend.ErrTypeMismatch, http.StatusUnprocessableEntity, "TYPE_MISMATCH"},
}

// classify returns the HTTP status and error code for err.
func classify(err error) (int, string) {
	for _, c := range errorClasses {
		if errors.Is(err, c.target) {
			return c.status, c.code
		}
	}
	return http.StatusInternalServerError, "INTERNAL"
}
