// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package typedesc

// ConstantInput is a conversion node input that receives a fixed value
// instead of the converted link.
type ConstantInput struct {
	Name  string `json:"name" yaml:"name"`
	Value any    `json:"value" yaml:"value"`
}

// Conversion describes how a link from one type to another is realized.
//
// An identity conversion has an empty NodeType and the link is made
// directly. Otherwise a single node of NodeType is inserted: the source
// output feeds every socket in Inputs, Constants are assigned, and Output
// feeds the destination.
type Conversion struct {
	From      ValueType       `json:"from" yaml:"from"`
	To        ValueType       `json:"to" yaml:"to"`
	NodeType  string          `json:"node_type,omitempty" yaml:"node_type,omitempty"`
	Inputs    []string        `json:"inputs,omitempty" yaml:"inputs,omitempty"`
	Constants []ConstantInput `json:"constants,omitempty" yaml:"constants,omitempty"`
	Output    string          `json:"output,omitempty" yaml:"output,omitempty"`
}

// Identity reports whether the link needs no conversion node.
func (c Conversion) Identity() bool {
	return c.NodeType == ""
}

type typePair struct {
	from, to ValueType
}

// conversions is the full lattice of non-identity conversions. The order
// of the slice is the order reported by DeclaredPairs.
var conversions = []Conversion{
	{
		From: TypeInt, To: TypeFloat,
		NodeType: "INT_TO_FLOAT", Inputs: []string{"value"}, Output: "value",
	},
	{
		// Truncates toward zero.
		From: TypeFloat, To: TypeInt,
		NodeType: "FLOAT_TO_INT", Inputs: []string{"value"}, Output: "value",
	},
	{
		From: TypeFloat3, To: TypeFloat,
		NodeType: "GET_ELEM_FLOAT3", Inputs: []string{"value"}, Output: "value",
		Constants: []ConstantInput{{Name: "index", Value: int32(0)}},
	},
	{
		From: TypeFloat, To: TypeFloat3,
		NodeType: "SET_FLOAT3", Inputs: []string{"value_x", "value_y", "value_z"}, Output: "value",
	},
	{
		From: TypeFloat4, To: TypeFloat,
		NodeType: "GET_ELEM_FLOAT4", Inputs: []string{"value"}, Output: "value",
		Constants: []ConstantInput{{Name: "index", Value: int32(0)}},
	},
	{
		From: TypeFloat, To: TypeFloat4,
		NodeType: "SET_FLOAT4", Inputs: []string{"value_x", "value_y", "value_z", "value_w"}, Output: "value",
	},
	{
		// Appends w = 1.0.
		From: TypeFloat3, To: TypeFloat4,
		NodeType: "FLOAT3_TO_FLOAT4", Inputs: []string{"value"}, Output: "value",
	},
	{
		// Drops w.
		From: TypeFloat4, To: TypeFloat3,
		NodeType: "FLOAT4_TO_FLOAT3", Inputs: []string{"value"}, Output: "value",
	},
}

var conversionIndex = func() map[typePair]int {
	idx := make(map[typePair]int, len(conversions))
	for i, c := range conversions {
		idx[typePair{c.From, c.To}] = i
	}
	return idx
}()

// Resolve returns the conversion for a link from a socket of type from
// into a socket of type to.
//
// Description:
//
//	Equal types resolve to identity. Declared pairs resolve to a single
//	conversion node. Every other pair, including anything involving
//	MATRIX44, MESH or DUPLIS across types, fails with a *ConversionError.
//
// Outputs:
//
//	Conversion - The conversion. The Inputs and Constants slices are
//	copies and may be modified by the caller.
//	error - *ConversionError wrapping ErrUnsupportedConversion.
//
// Thread Safety: Safe for concurrent use.
func Resolve(from, to ValueType) (Conversion, error) {
	if !from.Valid() || !to.Valid() {
		return Conversion{}, &ConversionError{From: from, To: to}
	}
	if from == to {
		return Conversion{From: from, To: to}, nil
	}
	i, ok := conversionIndex[typePair{from, to}]
	if !ok {
		return Conversion{}, &ConversionError{From: from, To: to}
	}
	return clone(conversions[i]), nil
}

// DeclaredPairs returns every non-identity conversion in the lattice.
func DeclaredPairs() []Conversion {
	out := make([]Conversion, len(conversions))
	for i, c := range conversions {
		out[i] = clone(c)
	}
	return out
}

// ConversionNodeTypes returns the backend node types used by conversions.
func ConversionNodeTypes() []string {
	out := make([]string, len(conversions))
	for i, c := range conversions {
		out[i] = c.NodeType
	}
	return out
}

func clone(c Conversion) Conversion {
	c.Inputs = append([]string(nil), c.Inputs...)
	c.Constants = append([]ConstantInput(nil), c.Constants...)
	return c
}
