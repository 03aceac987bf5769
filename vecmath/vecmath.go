// Copyright 2016 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package vecmath provides the small integer and double-precision vector
// helpers the Extended Octree LOD math needs. The double-precision
// component math (aspect ratios) is built directly on
// github.com/go-gl/mathgl/mgl64's Vec3; the 32/64-bit integer vectors
// (volume sizes, brick sizes, brick counts) round-trip through mgl64.Vec3
// or mgl32.Vec3 for their arithmetic, since mathgl has no integer vector
// type of its own. mgl32 is also used further up the stack in culling and
// region for model-view and corner transforms.
package vecmath

import (
	"github.com/go-gl/mathgl/mgl32"
	"github.com/go-gl/mathgl/mgl64"
)

// U64Vec3 is an unsigned 64-bit 3-vector, used for volume sizes, brick
// sizes and brick counts.
type U64Vec3 struct {
	X, Y, Z uint64
}

// Volume returns the product of the three components.
func (v U64Vec3) Volume() uint64 {
	p := mgl64.Vec3{float64(v.X), float64(v.Y), float64(v.Z)}
	return uint64(p[0] * p[1] * p[2])
}

// DVec3 is a double-precision 3-vector, used for aspect ratios.
type DVec3 struct {
	X, Y, Z float64
}

func (v DVec3) vec() mgl64.Vec3 { return mgl64.Vec3{v.X, v.Y, v.Z} }

func dvec3FromVec(v mgl64.Vec3) DVec3 { return DVec3{v[0], v[1], v[2]} }

// Volume returns the product of the three components.
func (v DVec3) Volume() float64 {
	p := v.vec()
	return p[0] * p[1] * p[2]
}

// MaxComponent returns the largest of the three components.
func (v DVec3) MaxComponent() float64 {
	p := v.vec()
	m := p[0]
	if p[1] > m {
		m = p[1]
	}
	if p[2] > m {
		m = p[2]
	}
	return m
}

// DivScalar divides every component by s.
func (v DVec3) DivScalar(s float64) DVec3 {
	return dvec3FromVec(v.vec().Mul(1 / s))
}

// MulVec multiplies component-wise.
func (v DVec3) MulVec(o DVec3) DVec3 {
	a, b := v.vec(), o.vec()
	return dvec3FromVec(mgl64.Vec3{a[0] * b[0], a[1] * b[1], a[2] * b[2]})
}

// U32Vec3 is an unsigned 32-bit 3-vector, used for brick dimensions and
// overlap-derived sizes that must fit a single brick.
type U32Vec3 struct {
	X, Y, Z uint32
}

// MaxComponent returns the largest of the three components.
func (v U32Vec3) MaxComponent() uint32 {
	p := mgl32.Vec3{float32(v.X), float32(v.Y), float32(v.Z)}
	m := p[0]
	if p[1] > m {
		m = p[1]
	}
	if p[2] > m {
		m = p[2]
	}
	return uint32(m)
}

// CeilDivU64 returns ceil(a/b) for positive integers.
func CeilDivU64(a, b uint64) uint64 {
	if b == 0 {
		return 0
	}
	return (a + b - 1) / b
}
