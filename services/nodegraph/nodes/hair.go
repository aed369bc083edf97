// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package nodes

import (
	"github.com/AleutianAI/objectnodes/services/nodegraph/compiler"
	"github.com/AleutianAI/objectnodes/services/nodegraph/tree"
	"github.com/AleutianAI/objectnodes/services/nodegraph/typedesc"
)

func hairKinds() []compiler.NodeKind {
	return []compiler.NodeKind{
		&kind{
			name: "HairInput",
			declare: fixed(nil, []tree.Socket{
				sock("location", typedesc.TypeFloat3, nil),
				sock("parameter", typedesc.TypeFloat, nil),
				sock("target", typedesc.TypeMatrix44, nil),
			}),
			compile: func(e *emitter, _ *tree.Node) {
				e.mapOutput(0, e.graphInput("location"))
				e.mapOutput(1, e.graphInput("parameter"))
				e.mapOutput(2, e.graphInput("target"))
			},
		},
		&kind{
			name:    "HairDeform",
			declare: fixed([]tree.Socket{sock("target", typedesc.TypeFloat3, zero3)}, nil),
			compile: func(e *emitter, _ *tree.Node) {
				e.mapInput(0, e.graphOutput("offset"))
			},
		},
	}
}
