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
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
)

// Hash returns the hex SHA-256 of the canonical JSON encoding of lib.
//
// Map keys are sorted by encoding/json, so two documents that decode to the
// same library hash equally regardless of formatting or key order.
func Hash(lib *Library) (string, error) {
	data, err := json.Marshal(canonical(lib))
	if err != nil {
		return "", fmt.Errorf("hash library: %w", err)
	}
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:]), nil
}

// canonical rewrites yaml-decoded values so encoding/json accepts them.
func canonical(lib *Library) *Library {
	out := *lib
	out.Trees = make([]*Tree, len(lib.Trees))
	for i, t := range lib.Trees {
		ct := *t
		ct.Inputs = canonicalSockets(t.Inputs)
		ct.Outputs = canonicalSockets(t.Outputs)
		ct.Nodes = make([]*Node, len(t.Nodes))
		for j, n := range t.Nodes {
			cn := *n
			if n.Values != nil {
				cn.Values = make(map[string]any, len(n.Values))
				for k, v := range n.Values {
					cn.Values[k] = canonicalValue(v)
				}
			}
			ct.Nodes[j] = &cn
		}
		out.Trees[i] = &ct
	}
	return &out
}

func canonicalSockets(in []Socket) []Socket {
	if in == nil {
		return nil
	}
	out := make([]Socket, len(in))
	for i, s := range in {
		s.Default = canonicalValue(s.Default)
		out[i] = s
	}
	return out
}

func canonicalValue(v any) any {
	switch x := v.(type) {
	case map[any]any:
		m := make(map[string]any, len(x))
		for k, val := range x {
			m[fmt.Sprint(k)] = canonicalValue(val)
		}
		return m
	case map[string]any:
		m := make(map[string]any, len(x))
		for k, val := range x {
			m[k] = canonicalValue(val)
		}
		return m
	case []any:
		out := make([]any, len(x))
		for i, val := range x {
			out[i] = canonicalValue(val)
		}
		return out
	default:
		return v
	}
}
