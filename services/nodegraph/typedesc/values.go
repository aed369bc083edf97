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

import (
	"fmt"
	"math"
	"strings"
)

// Float3 is the value of a FLOAT3 socket.
type Float3 [3]float32

// Float4 is the value of a FLOAT4 socket.
type Float4 [4]float32

// Matrix44 is the value of a MATRIX44 socket, row-major.
type Matrix44 [4][4]float32

// Identity returns the 4x4 identity matrix.
func Identity() Matrix44 {
	return Matrix44{
		{1, 0, 0, 0},
		{0, 1, 0, 0},
		{0, 0, 1, 0},
		{0, 0, 0, 1},
	}
}

// Zero returns the default value for t.
//
// MATRIX44 defaults to identity. MESH and DUPLIS have no value and
// return nil.
func Zero(t ValueType) any {
	switch t {
	case TypeFloat:
		return float32(0)
	case TypeInt:
		return int32(0)
	case TypeFloat3:
		return Float3{}
	case TypeFloat4:
		return Float4{}
	case TypeMatrix44:
		return Identity()
	default:
		return nil
	}
}

// Coerce converts v into the Go representation of t.
//
// Description:
//
//	Accepts the typed representation itself as well as the loosely typed
//	values produced by YAML and JSON decoders: any Go number for FLOAT and
//	INT, 3 or 4 element lists for vectors, and a 4x4 nested list, a flat
//	16 element list or the string "identity" for matrices. Integer
//	targets reject numbers with a fractional part.
//
// Inputs:
//
//	t - Target value type.
//	v - Value to convert.
//
// Outputs:
//
//	any - float32, int32, Float3, Float4 or Matrix44.
//	error - ErrNoValue for MESH and DUPLIS, ErrInvalidValue on shape mismatch.
func Coerce(t ValueType, v any) (any, error) {
	switch t {
	case TypeFloat:
		f, err := toFloat(v)
		if err != nil {
			return nil, err
		}
		return float32(f), nil

	case TypeInt:
		f, err := toFloat(v)
		if err != nil {
			return nil, err
		}
		if f != math.Trunc(f) || f > math.MaxInt32 || f < math.MinInt32 {
			return nil, fmt.Errorf("%w: %v is not a 32-bit integer", ErrInvalidValue, v)
		}
		return int32(f), nil

	case TypeFloat3:
		if f3, ok := v.(Float3); ok {
			return f3, nil
		}
		xs, err := toFloats(v, 3)
		if err != nil {
			return nil, err
		}
		return Float3{xs[0], xs[1], xs[2]}, nil

	case TypeFloat4:
		if f4, ok := v.(Float4); ok {
			return f4, nil
		}
		xs, err := toFloats(v, 4)
		if err != nil {
			return nil, err
		}
		return Float4{xs[0], xs[1], xs[2], xs[3]}, nil

	case TypeMatrix44:
		m, err := toMatrix(v)
		if err != nil {
			return nil, err
		}
		return m, nil

	case TypeMesh, TypeDuplis:
		return nil, fmt.Errorf("%w: %s", ErrNoValue, t)

	default:
		return nil, fmt.Errorf("%w: %d", ErrUnknownType, int(t))
	}
}

func toFloat(v any) (float64, error) {
	switch n := v.(type) {
	case float32:
		return float64(n), nil
	case float64:
		return n, nil
	case int:
		return float64(n), nil
	case int8:
		return float64(n), nil
	case int16:
		return float64(n), nil
	case int32:
		return float64(n), nil
	case int64:
		return float64(n), nil
	case uint:
		return float64(n), nil
	case uint8:
		return float64(n), nil
	case uint16:
		return float64(n), nil
	case uint32:
		return float64(n), nil
	case uint64:
		return float64(n), nil
	case bool:
		if n {
			return 1, nil
		}
		return 0, nil
	default:
		return 0, fmt.Errorf("%w: expected number, got %T", ErrInvalidValue, v)
	}
}

func toFloats(v any, n int) ([]float32, error) {
	var items []any
	switch xs := v.(type) {
	case []float32:
		items = make([]any, len(xs))
		for i, x := range xs {
			items[i] = x
		}
	case []float64:
		items = make([]any, len(xs))
		for i, x := range xs {
			items[i] = x
		}
	case [3]float32:
		items = []any{xs[0], xs[1], xs[2]}
	case [4]float32:
		items = []any{xs[0], xs[1], xs[2], xs[3]}
	case []any:
		items = xs
	default:
		return nil, fmt.Errorf("%w: expected list of %d numbers, got %T", ErrInvalidValue, n, v)
	}
	if len(items) != n {
		return nil, fmt.Errorf("%w: expected %d components, got %d", ErrInvalidValue, n, len(items))
	}

	out := make([]float32, n)
	for i, item := range items {
		f, err := toFloat(item)
		if err != nil {
			return nil, fmt.Errorf("component %d: %w", i, err)
		}
		out[i] = float32(f)
	}
	return out, nil
}

func toMatrix(v any) (Matrix44, error) {
	switch m := v.(type) {
	case Matrix44:
		return m, nil
	case [4][4]float32:
		return Matrix44(m), nil
	case string:
		if strings.EqualFold(m, "identity") {
			return Identity(), nil
		}
		return Matrix44{}, fmt.Errorf("%w: unknown matrix literal %q", ErrInvalidValue, m)
	case []any:
		var out Matrix44
		switch len(m) {
		case 16:
			flat, err := toFloats(m, 16)
			if err != nil {
				return Matrix44{}, err
			}
			for i, f := range flat {
				out[i/4][i%4] = f
			}
			return out, nil
		case 4:
			for r, row := range m {
				xs, err := toFloats(row, 4)
				if err != nil {
					return Matrix44{}, fmt.Errorf("row %d: %w", r, err)
				}
				copy(out[r][:], xs)
			}
			return out, nil
		}
		return Matrix44{}, fmt.Errorf("%w: matrix needs 4 rows or 16 values, got %d", ErrInvalidValue, len(m))
	default:
		return Matrix44{}, fmt.Errorf("%w: expected matrix, got %T", ErrInvalidValue, v)
	}
}
