// Copyright 2016 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package culling implements the per-frame brick selection pipeline: given a
// dataset, the current LOD and timestep, view matrices, an optional clip
// plane, and the active transfer-function/isosurface predicate, it produces
// a depth-sorted list of visible, non-empty bricks.
//
// Grounded on Renderer/AbstrRenderer.cpp's BuildSubFrameBrickList,
// BuildLeftEyeSubFrameBrickList and brick_distance.
package culling

import (
	"math"
	"sort"

	"github.com/go-gl/mathgl/mgl32"

	"github.com/ivda-group/eotvol/eot"
)

// BrickKey identifies a brick by coordinate; it is the same shape as
// eot.BrickCoord so dataset lookups and ToC lookups share one key type.
type BrickKey = eot.BrickCoord

// RenderMode is the tagged union replacing the original's RM_1DTRANS /
// RM_2DTRANS / RM_ISOSURFACE enum plus parallel ad-hoc fields.
type RenderMode struct {
	kind     renderKind
	oneD     Range
	twoD     [2]Range
	isovalue float64
}

type renderKind int

const (
	kindOneD renderKind = iota
	kindTwoD
	kindIso
)

// Range is an inclusive scalar range, used for 1D and 2D transfer-function
// non-zero limits.
type Range struct{ Lo, Hi float64 }

// OneD builds a 1D-transfer-function render mode with non-zero limits r.
func OneD(r Range) RenderMode { return RenderMode{kind: kindOneD, oneD: r} }

// TwoD builds a 2D-transfer-function render mode with non-zero limits
// rx (value axis) and ry (gradient axis).
func TwoD(rx, ry Range) RenderMode { return RenderMode{kind: kindTwoD, twoD: [2]Range{rx, ry}} }

// Iso builds an isosurface render mode at the given value.
func Iso(value float64) RenderMode { return RenderMode{kind: kindIso, isovalue: value} }

// FrustumOracle combines view-frustum culling with a screen-space voxel-size
// test, supplied externally.
type FrustumOracle interface {
	SetViewMatrix(m mgl32.Mat4)
	Update()
	IsVisible(center, extension mgl32.Vec3) bool
	GetLODLevel(center, extension mgl32.Vec3, domainSize [3]uint64) int
	SetPassAll(bool)
}

// Dataset is the external collaborator that knows which bricks exist at a
// level/timestep and whether a given brick contains data under the active
// render mode.
type Dataset interface {
	// BricksForLevel returns every brick key at the given level and
	// timestep.
	BricksForLevel(level, timestep uint64) []BrickMetadata
	// ContainsData reports whether the named brick has any data in the
	// active non-zero range (1D/2D) or straddles the isovalue.
	ContainsData(key BrickKey, mode RenderMode, rescale float64) bool
	// BrickIsFirst/LastInDimension report boundary position, used for
	// texture coordinate padding.
	BrickIsFirstInDimension(axis int, key BrickKey) bool
	BrickIsLastInDimension(axis int, key BrickKey) bool
	// Overlap returns the halo width per axis.
	Overlap() mgl32.Vec3
	// MaxValue returns the rescale numerator.
	MaxValue() float64
	// TransferFunctionSize returns the lookup-table size used to rescale
	// on-disk ranges into the active transfer function's domain.
	TransferFunctionSize() float64
}

// BrickMetadata is the per-brick geometry a Dataset exposes for candidate
// construction.
type BrickMetadata struct {
	Key      BrickKey
	Center   mgl32.Vec3
	Extents  mgl32.Vec3
	NVoxels  [3]uint32
}

// Brick is the ephemeral, per-frame render record.
type Brick struct {
	Key       BrickKey
	Center    mgl32.Vec3
	Extension mgl32.Vec3
	VoxelCount [3]uint32
	TexMin    mgl32.Vec3
	TexMax    mgl32.Vec3
	Distance  float32
}

// byDistance implements a stable ascending sort on Distance, with ties
// broken by original (insertion) order — the caller is expected to have
// inserted candidates in LOD-major, z-y-x order already.
type byDistance []Brick

func (b byDistance) Len() int           { return len(b) }
func (b byDistance) Less(i, j int) bool { return b[i].Distance < b[j].Distance }
func (b byDistance) Swap(i, j int)      { b[i], b[j] = b[j], b[i] }

// Params bundles the per-frame inputs to BuildBrickList.
type Params struct {
	Level              uint64
	Timestep           uint64
	Dataset            Dataset
	Frustum            FrustumOracle
	ClipPlane          *ClipPlane
	WorldMatrix        mgl32.Mat4 // rotation * translation, for clip-plane transforms
	Mode               RenderMode
	VolumeAspect       mgl32.Vec3
	VolumeSize         [3]uint64
	UsePowerOfTwo      bool
	UseResidencyAsSort bool // MIP rotations: sort by residency instead of distance
	Residency          func(key BrickKey) bool
	ModelView          mgl32.Mat4
}

// ClipPlane is an externally supplied plane test; Clip reports whether a
// point lies on the clipped-out side, and a brick is dropped only when Clip
// returns true for all 8 corners.
type ClipPlane struct {
	Clip func(point mgl32.Vec3) bool
}

// BuildBrickList runs the full per-frame selection pipeline and returns
// the resulting bricks sorted ascending by distance
// (or by residency, for MIP rotations).
func BuildBrickList(p Params) []Brick {
	scale := scaleSetup(p.VolumeAspect, p.VolumeSize)

	rescale := p.Dataset.MaxValue() / p.Dataset.TransferFunctionSize()

	var out []Brick
	for _, bmd := range p.Dataset.BricksForLevel(p.Level, p.Timestep) {
		center := mulComp(bmd.Center, scale)
		extension := mulComp(bmd.Extents, scale)

		if !p.Frustum.IsVisible(center, extension) {
			continue
		}

		if p.ClipPlane != nil && !passesClipPlane(center, extension, p.WorldMatrix, p.ClipPlane) {
			continue
		}

		if !p.Dataset.ContainsData(bmd.Key, p.Mode, rescale) {
			continue
		}

		b := Brick{Key: bmd.Key, Center: center, Extension: extension, VoxelCount: bmd.NVoxels}
		b.TexMin, b.TexMax = textureBounds(p.Dataset, bmd, p.UsePowerOfTwo)

		if p.UseResidencyAsSort {
			if p.Residency != nil && p.Residency(bmd.Key) {
				b.Distance = 0
			} else {
				b.Distance = 1
			}
		} else {
			b.Distance = brickDistance(b, p.ModelView)
		}

		out = append(out, b)
	}

	sort.Stable(byDistance(out))
	return out
}

// BuildLeftEyeBrickList recomputes the distance sort key against the left
// eye's model-view matrix and resorts; used for stereo rendering.
func BuildLeftEyeBrickList(rightEye []Brick, leftModelView mgl32.Mat4) []Brick {
	out := make([]Brick, len(rightEye))
	copy(out, rightEye)
	for i := range out {
		out[i].Distance = brickDistance(out[i], leftModelView)
	}
	sort.Stable(byDistance(out))
	return out
}

func scaleSetup(aspect mgl32.Vec3, volumeSize [3]uint64) mgl32.Vec3 {
	maxDim := float32(volumeSize[0])
	if float32(volumeSize[1]) > maxDim {
		maxDim = float32(volumeSize[1])
	}
	if float32(volumeSize[2]) > maxDim {
		maxDim = float32(volumeSize[2])
	}
	domainScale := mgl32.Vec3{
		aspect[0] * float32(volumeSize[0]) / maxDim,
		aspect[1] * float32(volumeSize[1]) / maxDim,
		aspect[2] * float32(volumeSize[2]) / maxDim,
	}
	m := maxComponent(domainScale)
	return mgl32.Vec3{aspect[0] / m, aspect[1] / m, aspect[2] / m}
}

func maxComponent(v mgl32.Vec3) float32 {
	m := v[0]
	if v[1] > m {
		m = v[1]
	}
	if v[2] > m {
		m = v[2]
	}
	return m
}

func mulComp(a, b mgl32.Vec3) mgl32.Vec3 {
	return mgl32.Vec3{a[0] * b[0], a[1] * b[1], a[2] * b[2]}
}

// passesClipPlane transforms the 8 brick corners by worldMatrix and drops
// the brick only if every corner is clipped out.
func passesClipPlane(center, extension mgl32.Vec3, worldMatrix mgl32.Mat4, plane *ClipPlane) bool {
	for _, corner := range corners(center, extension, 0.5) {
		transformed := worldMatrix.Mul4x1(mgl32.Vec4{corner[0], corner[1], corner[2], 1}).Vec3()
		if !plane.Clip(transformed) {
			return true
		}
	}
	return false
}

func corners(center, extension mgl32.Vec3, pull float32) [8]mgl32.Vec3 {
	signs := [8][3]float32{
		{-1, -1, -1}, {-1, -1, 1}, {-1, 1, -1}, {-1, 1, 1},
		{1, -1, -1}, {1, -1, 1}, {1, 1, -1}, {1, 1, 1},
	}
	var out [8]mgl32.Vec3
	for i, s := range signs {
		out[i] = mgl32.Vec3{
			center[0] + s[0]*extension[0]*pull,
			center[1] + s[1]*extension[1]*pull,
			center[2] + s[2]*extension[2]*pull,
		}
	}
	return out
}

// brickDistance returns the distance from the origin to the closest of the
// 8 brick corners under the model-view transform, each corner pulled 0.4999
// toward the center to resolve tie cases (AbstrRenderer.cpp's
// brick_distance).
func brickDistance(b Brick, modelView mgl32.Mat4) float32 {
	const epsilon = 0.4999
	best := float32(math.MaxFloat32)
	for _, corner := range corners(b.Center, b.Extension, epsilon) {
		transformed := modelView.Mul4x1(mgl32.Vec4{corner[0], corner[1], corner[2], 1}).Vec3()
		d := transformed.Len()
		if d < best {
			best = d
		}
	}
	return best
}

// textureBounds computes tex_min/tex_max: with
// power-of-two textures, each voxel-count axis is replaced by its next
// power of two for the half-texel inset, with a final subtraction
// compensating for the padding; otherwise the voxel count itself is used,
// with no padding compensation.
func textureBounds(ds Dataset, bmd BrickMetadata, usePowerOfTwo bool) (mgl32.Vec3, mgl32.Vec3) {
	overlap := ds.Overlap()
	first := [3]bool{
		ds.BrickIsFirstInDimension(0, bmd.Key),
		ds.BrickIsFirstInDimension(1, bmd.Key),
		ds.BrickIsFirstInDimension(2, bmd.Key),
	}
	last := [3]bool{
		ds.BrickIsLastInDimension(0, bmd.Key),
		ds.BrickIsLastInDimension(1, bmd.Key),
		ds.BrickIsLastInDimension(2, bmd.Key),
	}

	if !usePowerOfTwo {
		var min, max mgl32.Vec3
		for axis := 0; axis < 3; axis++ {
			n := float32(bmd.NVoxels[axis])
			if first[axis] {
				min[axis] = 0.5 / n
			} else {
				min[axis] = overlap[axis] * 0.5 / n
			}
			if last[axis] {
				max[axis] = 1.0 - 0.5/n
			} else {
				max[axis] = 1.0 - overlap[axis]*0.5/n
			}
		}
		return min, max
	}

	var r [3]float32
	for axis := 0; axis < 3; axis++ {
		r[axis] = float32(nextPow2(bmd.NVoxels[axis]))
	}
	var min, max mgl32.Vec3
	for axis := 0; axis < 3; axis++ {
		if first[axis] {
			min[axis] = 0.5 / r[axis]
		} else {
			min[axis] = overlap[axis] * 0.5 / r[axis]
		}
		if last[axis] {
			max[axis] = 1.0 - 0.5/r[axis]
		} else {
			max[axis] = 1.0 - overlap[axis]*0.5/r[axis]
		}
		max[axis] -= (r[axis] - float32(bmd.NVoxels[axis])) / r[axis]
	}
	return min, max
}

func nextPow2(v uint32) uint32 {
	if v == 0 {
		return 1
	}
	p := uint32(1)
	for p < v {
		p <<= 1
	}
	return p
}
