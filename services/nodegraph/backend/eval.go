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
	"math"
	"strings"

	"github.com/chewxy/math32"

	"github.com/AleutianAI/objectnodes/services/nodegraph/typedesc"
)

// Evaluator computes output values of a committed graph.
//
// Description:
//
//	Evaluation is pull based: asking for an output evaluates the upstream
//	nodes it depends on, once each. Only nodes whose sockets carry values
//	can be evaluated; geometry, instancing and texture kernels return
//	ErrNotEvaluable.
//
// Thread Safety: Not safe for concurrent use. Create one Evaluator per
// goroutine; the underlying committed graph may be shared.
type Evaluator struct {
	g         *Graph
	args      map[string]any
	iteration int32
	cache     map[*Node][]any
	visiting  map[*Node]bool
}

// NewEvaluator prepares an evaluation of g.
//
// Inputs:
//
//	g - A committed graph.
//	args - Values for external graph inputs, keyed by input name. Missing
//	       inputs evaluate to the zero value of their type.
//
// Outputs:
//
//	*Evaluator - Ready to evaluate.
//	error - ErrNotCommitted, ErrUnknownGraphInput, or a coercion error.
func NewEvaluator(g *Graph, args map[string]any) (*Evaluator, error) {
	if g == nil || !g.Committed() {
		return nil, ErrNotCommitted
	}

	coerced := make(map[string]any, len(args))
	for name, v := range args {
		n, ok := g.inputs[name]
		if !ok {
			return nil, fmt.Errorf("%w: %q", ErrUnknownGraphInput, name)
		}
		vt := n.typ.Outputs[0].Type
		if !vt.HasValue() {
			return nil, &SocketError{Node: n.name, Socket: "value", Err: ErrNotEvaluable}
		}
		cv, err := typedesc.Coerce(vt, v)
		if err != nil {
			return nil, fmt.Errorf("graph input %q: %w", name, err)
		}
		coerced[name] = cv
	}

	return &Evaluator{
		g:        g,
		args:     coerced,
		cache:    make(map[*Node][]any),
		visiting: make(map[*Node]bool),
	}, nil
}

// SetIteration sets the value produced by ITERATION nodes and clears
// cached results.
func (e *Evaluator) SetIteration(i int32) {
	e.iteration = i
	clear(e.cache)
}

// EvalOutput evaluates the named external graph output.
func (e *Evaluator) EvalOutput(name string) (any, error) {
	n, ok := e.g.outputs[name]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownGraphOutput, name)
	}
	return e.output(n, 0)
}

// EvalNode evaluates one output socket of the named node.
func (e *Evaluator) EvalNode(nodeName, output string) (any, error) {
	n, ok := e.g.byName[nodeName]
	if !ok {
		return nil, fmt.Errorf("node %q not found", nodeName)
	}
	idx := n.typ.OutputIndex(output)
	if idx < 0 {
		return nil, &SocketError{Node: nodeName, Socket: output, Err: ErrSocketIndex}
	}
	return e.output(n, idx)
}

// InputValue evaluates what the named input of a node receives, either
// through its link or from its constant.
func (e *Evaluator) InputValue(nodeName, input string) (any, error) {
	n, ok := e.g.byName[nodeName]
	if !ok {
		return nil, fmt.Errorf("node %q not found", nodeName)
	}
	idx := n.typ.InputIndex(input)
	if idx < 0 {
		return nil, &SocketError{Node: nodeName, Socket: input, Err: ErrSocketIndex}
	}
	return e.input(n, idx)
}

func (e *Evaluator) output(n *Node, idx int) (any, error) {
	if cached, ok := e.cache[n]; ok {
		return cached[idx], nil
	}
	if e.visiting[n] {
		return nil, fmt.Errorf("%w at node %q", ErrEvalCycle, n.name)
	}
	e.visiting[n] = true
	defer delete(e.visiting, n)

	outs, err := e.compute(n)
	if err != nil {
		return nil, err
	}
	e.cache[n] = outs
	return outs[idx], nil
}

func (e *Evaluator) input(n *Node, idx int) (any, error) {
	if l := n.links[idx]; l != nil {
		return e.output(l.from, l.output)
	}
	v := n.values[idx]
	if v == nil {
		return nil, &SocketError{Node: n.name, Socket: n.typ.Inputs[idx].Name, Err: ErrNotEvaluable}
	}
	return v, nil
}

func inputAs[T any](e *Evaluator, n *Node, idx int) (T, error) {
	var zero T
	v, err := e.input(n, idx)
	if err != nil {
		return zero, err
	}
	t, ok := v.(T)
	if !ok {
		return zero, &SocketError{
			Node:   n.name,
			Socket: n.typ.Inputs[idx].Name,
			Err:    fmt.Errorf("%w: got %T", ErrTypeMismatch, v),
		}
	}
	return t, nil
}

// =============================================================================
// Node Implementations
// =============================================================================

var binaryFloatOps = map[string]func(a, b float32) float32{
	"ADD_FLOAT": func(a, b float32) float32 { return a + b },
	"SUB_FLOAT": func(a, b float32) float32 { return a - b },
	"MUL_FLOAT": func(a, b float32) float32 { return a * b },
	"DIV_FLOAT": safeDiv,
	"POWER": func(a, b float32) float32 {
		if a < 0 && b != math32.Floor(b) {
			return 0
		}
		return math32.Pow(a, b)
	},
	"LOGARITHM": func(a, b float32) float32 {
		if a <= 0 || b <= 0 || b == 1 {
			return 0
		}
		return math32.Log(a) / math32.Log(b)
	},
	"MINIMUM": math32.Min,
	"MAXIMUM": math32.Max,
	"LESS_THAN": func(a, b float32) float32 {
		if a < b {
			return 1
		}
		return 0
	},
	"GREATER_THAN": func(a, b float32) float32 {
		if a > b {
			return 1
		}
		return 0
	},
	"MODULO": func(a, b float32) float32 {
		if b == 0 {
			return 0
		}
		return math32.Mod(a, b)
	},
}

var unaryFloatOps = map[string]func(float32) float32{
	"SINE":       math32.Sin,
	"COSINE":     math32.Cos,
	"TANGENT":    math32.Tan,
	"ARCSINE":    func(x float32) float32 { return math32.Asin(clamp(x, -1, 1)) },
	"ARCCOSINE":  func(x float32) float32 { return math32.Acos(clamp(x, -1, 1)) },
	"ARCTANGENT": math32.Atan,
	"ROUND":      func(x float32) float32 { return math32.Floor(x + 0.5) },
	"ABSOLUTE":   math32.Abs,
	"CLAMP":      func(x float32) float32 { return clamp(x, 0, 1) },
	"SQRT": func(x float32) float32 {
		if x <= 0 {
			return 0
		}
		return math32.Sqrt(x)
	},
}

var binaryFloat3Ops = map[string]func(a, b typedesc.Float3) typedesc.Float3{
	"ADD_FLOAT3": func(a, b typedesc.Float3) typedesc.Float3 {
		return typedesc.Float3{a[0] + b[0], a[1] + b[1], a[2] + b[2]}
	},
	"SUB_FLOAT3": func(a, b typedesc.Float3) typedesc.Float3 {
		return typedesc.Float3{a[0] - b[0], a[1] - b[1], a[2] - b[2]}
	},
	"MUL_FLOAT3": func(a, b typedesc.Float3) typedesc.Float3 {
		return typedesc.Float3{a[0] * b[0], a[1] * b[1], a[2] * b[2]}
	},
	"DIV_FLOAT3": func(a, b typedesc.Float3) typedesc.Float3 {
		return typedesc.Float3{safeDiv(a[0], b[0]), safeDiv(a[1], b[1]), safeDiv(a[2], b[2])}
	},
	"AVERAGE_FLOAT3": func(a, b typedesc.Float3) typedesc.Float3 {
		v, _ := normalize(typedesc.Float3{a[0] + b[0], a[1] + b[1], a[2] + b[2]})
		return v
	},
	"CROSS_FLOAT3": func(a, b typedesc.Float3) typedesc.Float3 {
		return typedesc.Float3{
			a[1]*b[2] - a[2]*b[1],
			a[2]*b[0] - a[0]*b[2],
			a[0]*b[1] - a[1]*b[0],
		}
	},
}

func (e *Evaluator) compute(n *Node) ([]any, error) {
	name := n.typ.Name

	switch n.typ.Kind {
	case KindArg:
		return e.arg(n)
	case KindPass, KindValue:
		if len(n.typ.Inputs) == 0 {
			return nil, &SocketError{Node: n.name, Socket: "value", Err: ErrNotEvaluable}
		}
		v, err := e.input(n, 0)
		if err != nil {
			return nil, err
		}
		return []any{v}, nil
	}

	if fn, ok := binaryFloatOps[name]; ok {
		a, b, err := floatPair(e, n)
		if err != nil {
			return nil, err
		}
		return []any{fn(a, b)}, nil
	}
	if fn, ok := unaryFloatOps[name]; ok {
		a, err := inputAs[float32](e, n, 0)
		if err != nil {
			return nil, err
		}
		return []any{fn(a)}, nil
	}
	if fn, ok := binaryFloat3Ops[name]; ok {
		a, err := inputAs[typedesc.Float3](e, n, 0)
		if err != nil {
			return nil, err
		}
		b, err := inputAs[typedesc.Float3](e, n, 1)
		if err != nil {
			return nil, err
		}
		return []any{fn(a, b)}, nil
	}

	switch name {
	case "INT_TO_FLOAT":
		v, err := inputAs[int32](e, n, 0)
		if err != nil {
			return nil, err
		}
		return []any{float32(v)}, nil

	case "FLOAT_TO_INT":
		v, err := inputAs[float32](e, n, 0)
		if err != nil {
			return nil, err
		}
		return []any{floatToInt(v)}, nil

	case "FLOAT3_TO_FLOAT4":
		v, err := inputAs[typedesc.Float3](e, n, 0)
		if err != nil {
			return nil, err
		}
		return []any{typedesc.Float4{v[0], v[1], v[2], 1}}, nil

	case "FLOAT4_TO_FLOAT3":
		v, err := inputAs[typedesc.Float4](e, n, 0)
		if err != nil {
			return nil, err
		}
		return []any{typedesc.Float3{v[0], v[1], v[2]}}, nil

	case "GET_ELEM_FLOAT3":
		idx, err := inputAs[int32](e, n, 0)
		if err != nil {
			return nil, err
		}
		v, err := inputAs[typedesc.Float3](e, n, 1)
		if err != nil {
			return nil, err
		}
		if idx < 0 || int(idx) >= len(v) {
			return nil, &SocketError{Node: n.name, Socket: "index", Err: ErrSocketIndex}
		}
		return []any{v[idx]}, nil

	case "GET_ELEM_FLOAT4":
		idx, err := inputAs[int32](e, n, 0)
		if err != nil {
			return nil, err
		}
		v, err := inputAs[typedesc.Float4](e, n, 1)
		if err != nil {
			return nil, err
		}
		if idx < 0 || int(idx) >= len(v) {
			return nil, &SocketError{Node: n.name, Socket: "index", Err: ErrSocketIndex}
		}
		return []any{v[idx]}, nil

	case "SET_FLOAT3":
		var out typedesc.Float3
		for i := range out {
			c, err := inputAs[float32](e, n, i)
			if err != nil {
				return nil, err
			}
			out[i] = c
		}
		return []any{out}, nil

	case "SET_FLOAT4":
		var out typedesc.Float4
		for i := range out {
			c, err := inputAs[float32](e, n, i)
			if err != nil {
				return nil, err
			}
			out[i] = c
		}
		return []any{out}, nil

	case "DOT_FLOAT3":
		a, err := inputAs[typedesc.Float3](e, n, 0)
		if err != nil {
			return nil, err
		}
		b, err := inputAs[typedesc.Float3](e, n, 1)
		if err != nil {
			return nil, err
		}
		return []any{a[0]*b[0] + a[1]*b[1] + a[2]*b[2]}, nil

	case "MUL_FLOAT3_FLOAT":
		a, err := inputAs[typedesc.Float3](e, n, 0)
		if err != nil {
			return nil, err
		}
		s, err := inputAs[float32](e, n, 1)
		if err != nil {
			return nil, err
		}
		return []any{typedesc.Float3{a[0] * s, a[1] * s, a[2] * s}}, nil

	case "NORMALIZE_FLOAT3":
		v, err := inputAs[typedesc.Float3](e, n, 0)
		if err != nil {
			return nil, err
		}
		unit, length := normalize(v)
		return []any{unit, length}, nil

	case "LENGTH_FLOAT3":
		v, err := inputAs[typedesc.Float3](e, n, 0)
		if err != nil {
			return nil, err
		}
		_, length := normalize(v)
		return []any{length}, nil

	case "MIX_RGB":
		return e.mixRGB(n)

	case "ITERATION":
		return []any{e.iteration}, nil

	case "MUL_MATRIX44":
		a, err := inputAs[typedesc.Matrix44](e, n, 0)
		if err != nil {
			return nil, err
		}
		b, err := inputAs[typedesc.Matrix44](e, n, 1)
		if err != nil {
			return nil, err
		}
		return []any{mulMatrix(a, b)}, nil

	case "INVERT_MATRIX44":
		m, err := inputAs[typedesc.Matrix44](e, n, 0)
		if err != nil {
			return nil, err
		}
		return []any{invertMatrix(m)}, nil

	case "TRANSPOSE_MATRIX44":
		m, err := inputAs[typedesc.Matrix44](e, n, 0)
		if err != nil {
			return nil, err
		}
		var out typedesc.Matrix44
		for r := 0; r < 4; r++ {
			for c := 0; c < 4; c++ {
				out[c][r] = m[r][c]
			}
		}
		return []any{out}, nil

	case "MUL_MATRIX44_FLOAT3":
		m, err := inputAs[typedesc.Matrix44](e, n, 0)
		if err != nil {
			return nil, err
		}
		p, err := inputAs[typedesc.Float3](e, n, 1)
		if err != nil {
			return nil, err
		}
		return []any{transformPoint(m, p)}, nil

	case "LOC_TO_MATRIX44":
		loc, err := inputAs[typedesc.Float3](e, n, 0)
		if err != nil {
			return nil, err
		}
		m := typedesc.Identity()
		m[0][3], m[1][3], m[2][3] = loc[0], loc[1], loc[2]
		return []any{m}, nil

	case "SCALE_TO_MATRIX44":
		s, err := inputAs[typedesc.Float3](e, n, 0)
		if err != nil {
			return nil, err
		}
		m := typedesc.Identity()
		m[0][0], m[1][1], m[2][2] = s[0], s[1], s[2]
		return []any{m}, nil

	case "MATRIX44_TO_LOC":
		m, err := inputAs[typedesc.Matrix44](e, n, 0)
		if err != nil {
			return nil, err
		}
		return []any{typedesc.Float3{m[0][3], m[1][3], m[2][3]}}, nil

	case "POINT_POSITION":
		return e.effector("effector.position")

	case "POINT_VELOCITY":
		return e.effector("effector.velocity")
	}

	return nil, fmt.Errorf("%w: %s (%s)", ErrNotEvaluable, n.name, name)
}

func (e *Evaluator) arg(n *Node) ([]any, error) {
	name := strings.TrimPrefix(n.name, inputNodePrefix)
	vt := n.typ.Outputs[0].Type
	if !vt.HasValue() {
		return nil, &SocketError{Node: n.name, Socket: "value", Err: ErrNotEvaluable}
	}
	if v, ok := e.args[name]; ok {
		return []any{v}, nil
	}
	return []any{typedesc.Zero(vt)}, nil
}

// effector reads point data from the force field graph arguments.
func (e *Evaluator) effector(name string) ([]any, error) {
	if v, ok := e.args[name].(typedesc.Float3); ok {
		return []any{v}, nil
	}
	return []any{typedesc.Float3{}}, nil
}

const (
	mixBlend = iota
	mixAdd
	mixMultiply
	mixSubtract
)

func (e *Evaluator) mixRGB(n *Node) ([]any, error) {
	mode, err := inputAs[int32](e, n, 0)
	if err != nil {
		return nil, err
	}
	fac, err := inputAs[float32](e, n, 1)
	if err != nil {
		return nil, err
	}
	c1, err := inputAs[typedesc.Float4](e, n, 2)
	if err != nil {
		return nil, err
	}
	c2, err := inputAs[typedesc.Float4](e, n, 3)
	if err != nil {
		return nil, err
	}

	fac = clamp(fac, 0, 1)
	var out typedesc.Float4
	for i := 0; i < 3; i++ {
		var target float32
		switch mode {
		case mixBlend:
			target = c2[i]
		case mixAdd:
			target = c1[i] + c2[i]
		case mixMultiply:
			target = c1[i] * c2[i]
		case mixSubtract:
			target = c1[i] - c2[i]
		default:
			return nil, fmt.Errorf("%w: %s mix mode %d", ErrNotEvaluable, n.name, mode)
		}
		out[i] = c1[i] + (target-c1[i])*fac
	}
	out[3] = c1[3]
	return []any{out}, nil
}

// =============================================================================
// Math Helpers
// =============================================================================

func floatPair(e *Evaluator, n *Node) (float32, float32, error) {
	a, err := inputAs[float32](e, n, 0)
	if err != nil {
		return 0, 0, err
	}
	b, err := inputAs[float32](e, n, 1)
	if err != nil {
		return 0, 0, err
	}
	return a, b, nil
}

func safeDiv(a, b float32) float32 {
	if b == 0 {
		return 0
	}
	return a / b
}

func clamp(x, lo, hi float32) float32 {
	return math32.Max(lo, math32.Min(hi, x))
}

func normalize(v typedesc.Float3) (typedesc.Float3, float32) {
	length := math32.Sqrt(v[0]*v[0] + v[1]*v[1] + v[2]*v[2])
	if length == 0 {
		return typedesc.Float3{}, 0
	}
	return typedesc.Float3{v[0] / length, v[1] / length, v[2] / length}, length
}

func mulMatrix(a, b typedesc.Matrix44) typedesc.Matrix44 {
	var out typedesc.Matrix44
	for r := 0; r < 4; r++ {
		for c := 0; c < 4; c++ {
			var sum float32
			for k := 0; k < 4; k++ {
				sum += a[r][k] * b[k][c]
			}
			out[r][c] = sum
		}
	}
	return out
}

// transformPoint applies m to p as a column vector with w = 1.
func transformPoint(m typedesc.Matrix44, p typedesc.Float3) typedesc.Float3 {
	var out typedesc.Float3
	for r := 0; r < 3; r++ {
		out[r] = m[r][0]*p[0] + m[r][1]*p[1] + m[r][2]*p[2] + m[r][3]
	}
	return out
}

// invertMatrix inverts m by Gauss-Jordan elimination with partial
// pivoting. A singular matrix yields the zero matrix.
func invertMatrix(m typedesc.Matrix44) typedesc.Matrix44 {
	a := m
	inv := typedesc.Identity()

	for col := 0; col < 4; col++ {
		pivot := col
		for r := col + 1; r < 4; r++ {
			if math32.Abs(a[r][col]) > math32.Abs(a[pivot][col]) {
				pivot = r
			}
		}
		if math32.Abs(a[pivot][col]) < 1e-12 {
			return typedesc.Matrix44{}
		}
		a[col], a[pivot] = a[pivot], a[col]
		inv[col], inv[pivot] = inv[pivot], inv[col]

		p := a[col][col]
		for c := 0; c < 4; c++ {
			a[col][c] /= p
			inv[col][c] /= p
		}
		for r := 0; r < 4; r++ {
			if r == col {
				continue
			}
			f := a[r][col]
			for c := 0; c < 4; c++ {
				a[r][c] -= f * a[col][c]
				inv[r][c] -= f * inv[col][c]
			}
		}
	}
	return inv
}

// floatToInt truncates toward zero. NaN maps to 0 and values outside the
// int32 range, infinities included, clamp to its bounds.
func floatToInt(v float32) int32 {
	switch {
	case math32.IsNaN(v):
		return 0
	case v >= math.MaxInt32:
		return math.MaxInt32
	case v <= math.MinInt32:
		return math.MinInt32
	}
	return int32(v)
}
