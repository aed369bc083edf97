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
	"errors"
	"fmt"
)

// Sentinel errors for the typedesc package.
var (
	// ErrUnknownType is returned when a type name cannot be parsed.
	ErrUnknownType = errors.New("unknown value type")

	// ErrUnsupportedConversion is returned when no conversion exists
	// between two value types.
	ErrUnsupportedConversion = errors.New("unsupported conversion")

	// ErrInvalidValue is returned when a constant does not match the
	// shape of its value type.
	ErrInvalidValue = errors.New("invalid value")

	// ErrNoValue is returned for types that cannot carry constants.
	ErrNoValue = errors.New("type has no constant value")
)

// ConversionError describes a rejected (from, to) pair.
type ConversionError struct {
	From ValueType
	To   ValueType
}

// Error returns the error message.
func (e *ConversionError) Error() string {
	return fmt.Sprintf("unsupported conversion %s -> %s", e.From, e.To)
}

// Unwrap returns ErrUnsupportedConversion.
func (e *ConversionError) Unwrap() error {
	return ErrUnsupportedConversion
}
