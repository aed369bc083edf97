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
	"fmt"
	"sort"

	"github.com/AleutianAI/objectnodes/services/nodegraph/typedesc"
)

// Param is a named, typed external graph input or output.
type Param struct {
	Name string             `json:"name" yaml:"name"`
	Type typedesc.ValueType `json:"type" yaml:"type"`
}

// Signature lists the external inputs and outputs of a graph.
type Signature struct {
	Inputs  []Param `json:"inputs" yaml:"inputs"`
	Outputs []Param `json:"outputs" yaml:"outputs"`
}

var signatures = map[string]Signature{
	"geometry": {
		Inputs: []Param{
			{Name: "modifier.base_mesh", Type: typedesc.TypeMesh},
			{Name: "element.index", Type: typedesc.TypeInt},
			{Name: "element.location", Type: typedesc.TypeFloat3},
		},
		Outputs: []Param{
			{Name: "mesh", Type: typedesc.TypeMesh},
		},
	},
	"forcefield": {
		Inputs: []Param{
			{Name: "effector.position", Type: typedesc.TypeFloat3},
			{Name: "effector.velocity", Type: typedesc.TypeFloat3},
			{Name: "effector.object", Type: typedesc.TypeMesh},
		},
		Outputs: []Param{
			{Name: "force", Type: typedesc.TypeFloat3},
			{Name: "impulse", Type: typedesc.TypeFloat3},
		},
	},
	"hair": {
		Inputs: []Param{
			{Name: "location", Type: typedesc.TypeFloat3},
			{Name: "parameter", Type: typedesc.TypeFloat},
			{Name: "target", Type: typedesc.TypeMatrix44},
		},
		Outputs: []Param{
			{Name: "offset", Type: typedesc.TypeFloat3},
		},
	},
	"instancing": {
		Outputs: []Param{
			{Name: "dupli.result", Type: typedesc.TypeDuplis},
		},
	},
	"texture": {
		Inputs: []Param{
			{Name: "texture.co", Type: typedesc.TypeFloat3},
		},
		Outputs: []Param{
			{Name: "color", Type: typedesc.TypeFloat4},
			{Name: "normal", Type: typedesc.TypeFloat3},
		},
	},
	"generic": {
		Inputs: []Param{
			{Name: "float", Type: typedesc.TypeFloat},
			{Name: "int", Type: typedesc.TypeInt},
			{Name: "vector", Type: typedesc.TypeFloat3},
			{Name: "color", Type: typedesc.TypeFloat4},
			{Name: "matrix", Type: typedesc.TypeMatrix44},
		},
		Outputs: []Param{
			{Name: "float", Type: typedesc.TypeFloat},
			{Name: "int", Type: typedesc.TypeInt},
			{Name: "vector", Type: typedesc.TypeFloat3},
			{Name: "color", Type: typedesc.TypeFloat4},
			{Name: "matrix", Type: typedesc.TypeMatrix44},
		},
	},
}

// SignatureFor returns the external interface of a graph of the given
// tree kind ("geometry", "forcefield", "hair", "instancing", "texture",
// "generic").
func SignatureFor(kind string) (Signature, error) {
	sig, ok := signatures[kind]
	if !ok {
		return Signature{}, fmt.Errorf("%w: %q", ErrUnknownSignature, kind)
	}
	return Signature{
		Inputs:  append([]Param(nil), sig.Inputs...),
		Outputs: append([]Param(nil), sig.Outputs...),
	}, nil
}

// SignatureKinds returns the names accepted by SignatureFor.
func SignatureKinds() []string {
	out := make([]string, 0, len(signatures))
	for k := range signatures {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
