// Copyright 2016 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package eot

import (
	"github.com/ivda-group/eotvol/scalar"
	"github.com/ivda-group/eotvol/vecmath"
)

// Header is the global, persisted portion of an Extended Octree file. Field
// order matches the on-disk layout exactly.
type Header struct {
	ComponentType     scalar.ComponentType
	ComponentsPerVox  uint64
	VolumeSize        vecmath.U64Vec3
	VolumeAspect      vecmath.DVec3
	BrickSize         vecmath.U32Vec3
	Overlap           uint32
}

// valid reports whether the header passes the format's zero-dimension
// guard: every one of components, volume size, aspect and brick size must
// be nonzero on every axis (overlap may legitimately be zero).
func (h Header) valid() bool {
	return h.ComponentsPerVox != 0 &&
		h.VolumeSize.Volume() != 0 &&
		h.VolumeAspect.Volume() != 0 &&
		uint64(h.BrickSize.X)*uint64(h.BrickSize.Y)*uint64(h.BrickSize.Z) != 0
}

// UsableBrickSize is brick_size - 2*overlap on every axis: the payload
// portion of a brick excluding its halo.
func (h Header) UsableBrickSize() vecmath.U32Vec3 {
	return vecmath.U32Vec3{
		X: h.BrickSize.X - 2*h.Overlap,
		Y: h.BrickSize.Y - 2*h.Overlap,
		Z: h.BrickSize.Z - 2*h.Overlap,
	}
}

// LODLevel is one derived entry of the level-of-detail table.
type LODLevel struct {
	PixelSize   vecmath.U64Vec3
	BrickCount  vecmath.U64Vec3
	Aspect      vecmath.DVec3
	BrickOffset uint64
}

// TOCEntry is one persisted table-of-contents record plus its derived byte
// offset (not itself stored; reconstructed as a running prefix sum on
// open).
type TOCEntry struct {
	ByteOffset      uint64
	LengthBytes     uint64
	CompressionTag  uint32
}

// BrickCoord uniquely identifies a brick within a tree.
type BrickCoord struct {
	X, Y, Z, Level uint64
}
