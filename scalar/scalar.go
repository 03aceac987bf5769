// Copyright 2016 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package scalar describes the scalar component types an Extended Octree
// volume can store.
package scalar

import "fmt"

// ComponentType is the on-disk tag identifying the scalar type of a single
// voxel component. Values are fixed for bit-exact compatibility with the
// canonical EOT layout (see the global header in the format description).
type ComponentType uint32

const (
	Int8    ComponentType = 1
	Uint8   ComponentType = 2
	Int16   ComponentType = 3
	Uint16  ComponentType = 4
	Int32   ComponentType = 5
	Uint32  ComponentType = 6
	Int64   ComponentType = 7
	Uint64  ComponentType = 8
	Float32 ComponentType = 9
	Float64 ComponentType = 10
)

// ByteWidth returns the size in bytes of a single component of this type, or
// 0 if the tag is unknown.
func (t ComponentType) ByteWidth() uint32 {
	switch t {
	case Int8, Uint8:
		return 1
	case Int16, Uint16:
		return 2
	case Int32, Uint32, Float32:
		return 4
	case Int64, Uint64, Float64:
		return 8
	default:
		return 0
	}
}

// Valid reports whether t is one of the known component type tags.
func (t ComponentType) Valid() bool {
	return t.ByteWidth() != 0
}

// String implements fmt.Stringer.
func (t ComponentType) String() string {
	switch t {
	case Int8:
		return "i8"
	case Uint8:
		return "u8"
	case Int16:
		return "i16"
	case Uint16:
		return "u16"
	case Int32:
		return "i32"
	case Uint32:
		return "u32"
	case Int64:
		return "i64"
	case Uint64:
		return "u64"
	case Float32:
		return "f32"
	case Float64:
		return "f64"
	default:
		return fmt.Sprintf("ComponentType(%d)", uint32(t))
	}
}
