// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package typedesc defines the closed set of value types that flow through
// node graph sockets, their Go representations, and the conversion lattice
// between them.
//
// # Value Types
//
//	FLOAT     scalar            float32
//	INT       integer           int32
//	FLOAT3    3-vector          Float3
//	FLOAT4    4-vector / color  Float4
//	MATRIX44  4x4 transform     Matrix44
//	MESH      geometry          (no constant value)
//	DUPLIS    instance list     (no constant value)
//
// # Conversions
//
// Resolve returns how a link from one type to another is realized: either
// directly (identity) or through exactly one conversion node. Pairs that are
// not declared are rejected with ErrUnsupportedConversion; an unconverted
// link between different types is never produced.
//
// # Thread Safety
//
// Everything in this package is immutable and safe for concurrent use.
package typedesc

import (
	"fmt"
	"strings"
)

// ValueType is the type of a socket value.
type ValueType int

const (
	// TypeFloat is a 32-bit scalar.
	TypeFloat ValueType = iota

	// TypeInt is a 32-bit signed integer.
	TypeInt

	// TypeFloat3 is a 3-component vector.
	TypeFloat3

	// TypeFloat4 is a 4-component vector, also used for RGBA colors.
	TypeFloat4

	// TypeMatrix44 is a 4x4 transform matrix.
	TypeMatrix44

	// TypeMesh is geometry data. Pass-through only.
	TypeMesh

	// TypeDuplis is an instance list. Pass-through only.
	TypeDuplis
)

var typeNames = [...]string{
	TypeFloat:    "FLOAT",
	TypeInt:      "INT",
	TypeFloat3:   "FLOAT3",
	TypeFloat4:   "FLOAT4",
	TypeMatrix44: "MATRIX44",
	TypeMesh:     "MESH",
	TypeDuplis:   "DUPLIS",
}

// typeAliases maps user-facing socket names onto value types.
var typeAliases = map[string]ValueType{
	"SCALAR":    TypeFloat,
	"VALUE":     TypeFloat,
	"INTEGER":   TypeInt,
	"VECTOR":    TypeFloat3,
	"VECTOR3":   TypeFloat3,
	"COLOR":     TypeFloat4,
	"VECTOR4":   TypeFloat4,
	"MATRIX":    TypeMatrix44,
	"TRANSFORM": TypeMatrix44,
	"GEOMETRY":  TypeMesh,
	"INSTANCES": TypeDuplis,
	"DUPLI":     TypeDuplis,
}

// AllTypes returns every value type in declaration order.
func AllTypes() []ValueType {
	return []ValueType{TypeFloat, TypeInt, TypeFloat3, TypeFloat4, TypeMatrix44, TypeMesh, TypeDuplis}
}

// String returns the canonical backend name, e.g. "FLOAT3".
func (t ValueType) String() string {
	if t.Valid() {
		return typeNames[t]
	}
	return fmt.Sprintf("ValueType(%d)", int(t))
}

// Valid reports whether t is one of the declared value types.
func (t ValueType) Valid() bool {
	return t >= TypeFloat && t <= TypeDuplis
}

// HasValue reports whether sockets of this type can carry a constant.
//
// MESH and DUPLIS sockets are proxied but never assigned a value.
func (t ValueType) HasValue() bool {
	switch t {
	case TypeFloat, TypeInt, TypeFloat3, TypeFloat4, TypeMatrix44:
		return true
	default:
		return false
	}
}

// ParseValueType parses a canonical type name or a user-facing alias.
// Matching is case-insensitive.
func ParseValueType(s string) (ValueType, error) {
	name := strings.ToUpper(strings.TrimSpace(s))
	for i, n := range typeNames {
		if n == name {
			return ValueType(i), nil
		}
	}
	if t, ok := typeAliases[name]; ok {
		return t, nil
	}
	return 0, fmt.Errorf("%w: %q", ErrUnknownType, s)
}

// MarshalText implements encoding.TextMarshaler.
func (t ValueType) MarshalText() ([]byte, error) {
	if !t.Valid() {
		return nil, fmt.Errorf("%w: %d", ErrUnknownType, int(t))
	}
	return []byte(t.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (t *ValueType) UnmarshalText(text []byte) error {
	v, err := ParseValueType(string(text))
	if err != nil {
		return err
	}
	*t = v
	return nil
}
