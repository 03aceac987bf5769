// Copyright 2016 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package eot implements the Extended Octree on-disk format: a global
// header, a table of contents recording per-brick length and compression
// tag, and concatenated brick payloads. It follows ExtendedOctree.cpp's
// layout and field order, with a blockfile.BlockFile in place of
// LargeRAWFile and a codec.Registry doing the decompression that file
// left as a TODO.
package eot

import (
	"math"

	"github.com/pkg/errors"

	"github.com/ivda-group/eotvol/blockfile"
	"github.com/ivda-group/eotvol/codec"
	"github.com/ivda-group/eotvol/scalar"
	"github.com/ivda-group/eotvol/vecmath"
)

// Tree is an opened (or about-to-be-written) Extended Octree.
type Tree struct {
	Header Header

	lodTable []LODLevel
	toc      []TOCEntry

	bf     *blockfile.BlockFile
	offset uint64
	codecs *codec.Registry
	opened bool
}

// New constructs an unopened Tree. codecs may be nil, in which case
// codec.DefaultRegistry() is used.
func New(codecs *codec.Registry) *Tree {
	if codecs == nil {
		codecs = codec.DefaultRegistry()
	}
	return &Tree{codecs: codecs}
}

// Open reads the global header and table of contents from bf starting at
// the given absolute byte offset, then derives the LOD table.
func (t *Tree) Open(bf *blockfile.BlockFile, offset uint64) error {
	if !bf.IsOpen() {
		return newErr(KindState, "Open", errors.New("blockfile is not open"))
	}
	t.bf = bf
	t.offset = offset

	if err := bf.Seek(int64(offset)); err != nil {
		return newErr(KindIO, "Open", err)
	}

	h, err := readHeader(bf)
	if err != nil {
		return newErr(KindIO, "Open", err)
	}
	if !h.valid() {
		return newErr(KindFormat, "Open", errors.New("zero component count, volume size, aspect, or brick size"))
	}
	t.Header = h

	t.computeMetadata()
	brickCount := t.ComputeBrickCount()

	t.toc = make([]TOCEntry, brickCount)
	running := t.ComputeHeaderSize()
	for i := uint64(0); i < brickCount; i++ {
		length, err := bf.ReadU64()
		if err != nil {
			return newErr(KindIO, "Open", err)
		}
		tag, err := bf.ReadU32()
		if err != nil {
			return newErr(KindIO, "Open", err)
		}
		t.toc[i] = TOCEntry{ByteOffset: running, LengthBytes: length, CompressionTag: tag}
		running += length
	}

	t.opened = true
	return nil
}

// Close releases the underlying BlockFile.
func (t *Tree) Close() error {
	if t.bf == nil {
		return nil
	}
	return t.bf.Close()
}

func readHeader(bf *blockfile.BlockFile) (Header, error) {
	var h Header

	ct, err := bf.ReadU32()
	if err != nil {
		return h, err
	}
	h.ComponentType = scalar.ComponentType(ct)

	if h.ComponentsPerVox, err = bf.ReadU64(); err != nil {
		return h, err
	}
	if h.VolumeSize.X, err = bf.ReadU64(); err != nil {
		return h, err
	}
	if h.VolumeSize.Y, err = bf.ReadU64(); err != nil {
		return h, err
	}
	if h.VolumeSize.Z, err = bf.ReadU64(); err != nil {
		return h, err
	}
	if h.VolumeAspect.X, err = bf.ReadF64(); err != nil {
		return h, err
	}
	if h.VolumeAspect.Y, err = bf.ReadF64(); err != nil {
		return h, err
	}
	if h.VolumeAspect.Z, err = bf.ReadF64(); err != nil {
		return h, err
	}
	var bx, by, bz uint32
	if bx, err = bf.ReadU32(); err != nil {
		return h, err
	}
	if by, err = bf.ReadU32(); err != nil {
		return h, err
	}
	if bz, err = bf.ReadU32(); err != nil {
		return h, err
	}
	h.BrickSize = vecmath.U32Vec3{X: bx, Y: by, Z: bz}
	if h.Overlap, err = bf.ReadU32(); err != nil {
		return h, err
	}
	return h, nil
}

// computeMetadata builds the LOD table by repeatedly halving dimensions
// (ceiling) until all three axes fit within the usable brick size. Level 0
// uses the unmodified volume size and unit aspect.
func (t *Tree) computeMetadata() {
	usable := t.Header.UsableBrickSize()
	usable64 := vecmath.U64Vec3{X: uint64(usable.X), Y: uint64(usable.Y), Z: uint64(usable.Z)}

	size := t.Header.VolumeSize
	aspect := vecmath.DVec3{X: 1, Y: 1, Z: 1}

	var table []LODLevel
	for {
		var level LODLevel
		level.PixelSize = size

		if len(table) > 0 {
			if size.X > usable64.X {
				next := ceilDiv2(size.X)
				if size.X%2 != 0 {
					aspect.X *= float64(size.X) / float64(next)
				} else {
					aspect.X *= 2
				}
				level.PixelSize.X = next
			}
			if size.Y > usable64.Y {
				next := ceilDiv2(size.Y)
				if size.Y%2 != 0 {
					aspect.Y *= float64(size.Y) / float64(next)
				} else {
					aspect.Y *= 2
				}
				level.PixelSize.Y = next
			}
			if size.Z > usable64.Z {
				next := ceilDiv2(size.Z)
				if size.Z%2 != 0 {
					aspect.Z *= float64(size.Z) / float64(next)
				} else {
					aspect.Z *= 2
				}
				level.PixelSize.Z = next
			}
			aspect = aspect.DivScalar(aspect.MaxComponent())
			size = level.PixelSize
		}

		level.Aspect = aspect
		level.BrickCount = vecmath.U64Vec3{
			X: vecmath.CeilDivU64(size.X, usable64.X),
			Y: vecmath.CeilDivU64(size.Y, usable64.Y),
			Z: vecmath.CeilDivU64(size.Z, usable64.Z),
		}

		table = append(table, level)

		if size.X <= usable64.X && size.Y <= usable64.Y && size.Z <= usable64.Z {
			break
		}
	}

	table[0].BrickOffset = 0
	for i := 1; i < len(table); i++ {
		table[i].BrickOffset = table[i-1].BrickOffset + table[i-1].BrickCount.Volume()
	}

	t.lodTable = table
}

func ceilDiv2(v uint64) uint64 {
	return uint64(math.Ceil(float64(v) / 2.0))
}

// LODLevelCount returns the number of LOD levels in the tree.
func (t *Tree) LODLevelCount() int { return len(t.lodTable) }

// LODLevel returns the derived metadata for level l.
func (t *Tree) LODLevel(l uint64) LODLevel { return t.lodTable[l] }

// BrickCount returns the (x,y,z) brick count at level l.
func (t *Tree) BrickCount(l uint64) vecmath.U64Vec3 { return t.lodTable[l].BrickCount }

// ComputeBrickCount returns the total number of bricks across all levels:
// the last level's brick offset plus its own brick count.
func (t *Tree) ComputeBrickCount() uint64 {
	last := t.lodTable[len(t.lodTable)-1]
	return last.BrickOffset + last.BrickCount.Volume()
}

// headerFixedSize is the byte size of the fixed-field portion of the
// global header: component_type(4) + components(8) + volume_size(3*8) +
// aspect(3*8) + brick_size(3*4) + overlap(4).
const headerFixedSize = 4 + 8 + 3*8 + 3*8 + 3*4 + 4

// ComputeHeaderSize returns the fixed header size plus the ToC size
// (brick_count * (length + compression_tag)).
func (t *Tree) ComputeHeaderSize() uint64 {
	return headerFixedSize + t.ComputeBrickCount()*(8+4)
}

// IsLastBrick reports, per axis, whether coord is the last brick in its
// row/column/slice at its level.
func (t *Tree) IsLastBrick(coord BrickCoord) (lastX, lastY, lastZ bool) {
	n := t.lodTable[coord.Level].BrickCount
	return coord.X >= n.X-1, coord.Y >= n.Y-1, coord.Z >= n.Z-1
}

// ComputeBrickSize returns the voxel dimensions of the named brick,
// accounting for a smaller last brick on any boundary axis whose level size
// is not an exact multiple of the usable brick size. An exact-tile last
// brick (level size a multiple of the usable brick size, including equal
// to it) gets the full brick size.
func (t *Tree) ComputeBrickSize(coord BrickCoord) vecmath.U32Vec3 {
	lastX, lastY, lastZ := t.IsLastBrick(coord)
	pixel := t.lodTable[coord.Level].PixelSize
	usable := t.Header.UsableBrickSize()
	overlap := t.Header.Overlap

	axis := func(isLast bool, pixelAxis uint64, brickAxis, usableAxis uint32) uint32 {
		if isLast && pixelAxis%uint64(usableAxis) != 0 {
			return 2*overlap + uint32(pixelAxis%uint64(usableAxis))
		}
		return brickAxis
	}

	return vecmath.U32Vec3{
		X: axis(lastX, pixel.X, t.Header.BrickSize.X, usable.X),
		Y: axis(lastY, pixel.Y, t.Header.BrickSize.Y, usable.Y),
		Z: axis(lastZ, pixel.Z, t.Header.BrickSize.Z, usable.Z),
	}
}

// ComputeBrickAspect returns the brick's aspect ratio: the LOD's anisotropic
// correction times the deformation of the brick's own (possibly truncated)
// size from a unit cube.
func (t *Tree) ComputeBrickAspect(coord BrickCoord) vecmath.DVec3 {
	size := t.ComputeBrickSize(coord)
	maxDim := float64(size.MaxComponent())
	lodAspect := t.lodTable[coord.Level].Aspect
	return lodAspect.MulVec(vecmath.DVec3{
		X: float64(size.X) / maxDim,
		Y: float64(size.Y) / maxDim,
		Z: float64(size.Z) / maxDim,
	})
}

// BrickCoordToIndex computes the 1D ToC index for coord: the level's brick
// offset plus the z-major-then-y-then-x index within the level.
func (t *Tree) BrickCoordToIndex(coord BrickCoord) (uint64, error) {
	if coord.Level >= uint64(len(t.lodTable)) {
		return 0, newErr(KindBounds, "BrickCoordToIndex", errors.Errorf("level %d out of range [0,%d)", coord.Level, len(t.lodTable)))
	}
	n := t.lodTable[coord.Level].BrickCount
	if coord.X >= n.X || coord.Y >= n.Y || coord.Z >= n.Z {
		return 0, newErr(KindBounds, "BrickCoordToIndex", errors.Errorf("coord %+v out of range for brick count %+v", coord, n))
	}
	return t.lodTable[coord.Level].BrickOffset + coord.X + coord.Y*n.X + coord.Z*n.X*n.Y, nil
}

// GetBrickDataByIndex reads and, if necessary, decompresses the raw brick
// payload at the given ToC index into dst, which must be large enough to
// hold the decompressed data.
func (t *Tree) GetBrickDataByIndex(index uint64, dst []byte) (int, error) {
	if !t.opened {
		return 0, newErr(KindState, "GetBrickData", errors.New("tree is not open"))
	}
	if index >= uint64(len(t.toc)) {
		return 0, newErr(KindBounds, "GetBrickData", errors.Errorf("index %d out of range [0,%d)", index, len(t.toc)))
	}
	entry := t.toc[index]

	if err := t.bf.Seek(int64(t.offset + entry.ByteOffset)); err != nil {
		return 0, newErr(KindIO, "GetBrickData", err)
	}

	if entry.CompressionTag == codec.TagNone {
		if uint64(len(dst)) == entry.LengthBytes {
			if err := t.bf.ReadRaw(dst); err != nil {
				return 0, newErr(KindIO, "GetBrickData", err)
			}
			return len(dst), nil
		}
		raw := make([]byte, entry.LengthBytes)
		if err := t.bf.ReadRaw(raw); err != nil {
			return 0, newErr(KindIO, "GetBrickData", err)
		}
		return copy(dst, raw), nil
	}

	compressed := make([]byte, entry.LengthBytes)
	if err := t.bf.ReadRaw(compressed); err != nil {
		return 0, newErr(KindIO, "GetBrickData", err)
	}
	decoder, ok := t.codecs.Lookup(entry.CompressionTag)
	if !ok {
		return 0, newErr(KindCodec, "GetBrickData", errors.Errorf("no decoder registered for tag %d", entry.CompressionTag))
	}
	n, err := decoder(dst, compressed)
	if err != nil {
		return 0, newErr(KindCodec, "GetBrickData", err)
	}
	return n, nil
}

// GetBrickData is the coordinate-addressed convenience wrapper around
// GetBrickDataByIndex.
func (t *Tree) GetBrickData(coord BrickCoord, dst []byte) (int, error) {
	idx, err := t.BrickCoordToIndex(coord)
	if err != nil {
		return 0, err
	}
	return t.GetBrickDataByIndex(idx, dst)
}

// TOCLen returns the number of entries read into the table of contents.
func (t *Tree) TOCLen() int { return len(t.toc) }

// TOCEntryAt returns the ToC entry for the given index.
func (t *Tree) TOCEntryAt(index uint64) TOCEntry { return t.toc[index] }

// aspectFieldOffset is the byte offset of volume_aspect.x within the
// header: component_type(4) + components(8) + volume_size(3*8).
const aspectFieldOffset = 4 + 8 + 3*8

// SetGlobalAspect rewrites the volume_aspect field in place. It closes the
// current (read-only) handle, reopens read-write, seeks to the aspect
// field, writes the three doubles, then reopens read-only. If the
// read-write reopen fails, the tree is left open read-only with the old
// aspect and the failure is returned.
func (t *Tree) SetGlobalAspect(newAspect vecmath.DVec3) error {
	if err := t.bf.Reopen(blockfile.ReadWrite); err != nil {
		// Reopen already restored a read-only handle on failure.
		t.bf.Reopen(blockfile.ReadOnly)
		return newErr(KindIO, "SetGlobalAspect", err)
	}

	writeErr := func() error {
		if err := t.bf.Seek(int64(t.offset) + aspectFieldOffset); err != nil {
			return err
		}
		if err := t.bf.WriteF64(newAspect.X); err != nil {
			return err
		}
		if err := t.bf.WriteF64(newAspect.Y); err != nil {
			return err
		}
		return t.bf.WriteF64(newAspect.Z)
	}()

	if err := t.bf.Reopen(blockfile.ReadOnly); err != nil {
		return newErr(KindIO, "SetGlobalAspect", err)
	}

	if writeErr != nil {
		return newErr(KindIO, "SetGlobalAspect", writeErr)
	}

	t.Header.VolumeAspect = newAspect
	return nil
}

// WriteHeader writes the global header followed by the table of contents to
// bf starting at offset. The ToC must already be populated via SetToC.
func (t *Tree) WriteHeader(bf *blockfile.BlockFile, offset uint64) error {
	t.bf = bf
	t.offset = offset

	if err := bf.Seek(int64(offset)); err != nil {
		return newErr(KindIO, "WriteHeader", err)
	}

	writes := []func() error{
		func() error { return bf.WriteU32(uint32(t.Header.ComponentType)) },
		func() error { return bf.WriteU64(t.Header.ComponentsPerVox) },
		func() error { return bf.WriteU64(t.Header.VolumeSize.X) },
		func() error { return bf.WriteU64(t.Header.VolumeSize.Y) },
		func() error { return bf.WriteU64(t.Header.VolumeSize.Z) },
		func() error { return bf.WriteF64(t.Header.VolumeAspect.X) },
		func() error { return bf.WriteF64(t.Header.VolumeAspect.Y) },
		func() error { return bf.WriteF64(t.Header.VolumeAspect.Z) },
		func() error { return bf.WriteU32(t.Header.BrickSize.X) },
		func() error { return bf.WriteU32(t.Header.BrickSize.Y) },
		func() error { return bf.WriteU32(t.Header.BrickSize.Z) },
		func() error { return bf.WriteU32(t.Header.Overlap) },
	}
	for _, w := range writes {
		if err := w(); err != nil {
			return newErr(KindIO, "WriteHeader", err)
		}
	}

	for _, entry := range t.toc {
		if err := bf.WriteU64(entry.LengthBytes); err != nil {
			return newErr(KindIO, "WriteHeader", err)
		}
		if err := bf.WriteU32(entry.CompressionTag); err != nil {
			return newErr(KindIO, "WriteHeader", err)
		}
	}
	return nil
}

// SetToC installs the table of contents to be written by WriteHeader and
// recomputes the LOD table from the current header. Byte offsets are
// derived as a running prefix sum, matching Open's reconstruction.
func (t *Tree) SetToC(entries []TOCEntry) {
	t.computeMetadata()
	running := t.ComputeHeaderSize()
	for i := range entries {
		entries[i].ByteOffset = running
		running += entries[i].LengthBytes
	}
	t.toc = entries
}
