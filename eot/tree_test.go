// Copyright 2016 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package eot

import (
	"path/filepath"
	"testing"

	"github.com/ivda-group/eotvol/blockfile"
	"github.com/ivda-group/eotvol/scalar"
	"github.com/ivda-group/eotvol/vecmath"
)

func writeFixture(t *testing.T, h Header, payloads [][]byte) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "fixture.eot")

	bf := blockfile.New(path, 0)
	if err := bf.Open(blockfile.ReadWrite); err != nil {
		t.Fatalf("Open returned error: %v", err)
	}
	defer bf.Close()

	tree := New(nil)
	tree.Header = h

	entries := make([]TOCEntry, len(payloads))
	for i, p := range payloads {
		entries[i] = TOCEntry{LengthBytes: uint64(len(p))}
	}
	tree.SetToC(entries)

	if err := tree.WriteHeader(bf, 0); err != nil {
		t.Fatalf("WriteHeader returned error: %v", err)
	}
	for _, p := range payloads {
		if err := bf.WriteRaw(p); err != nil {
			t.Fatalf("WriteRaw returned error: %v", err)
		}
	}
	return path
}

func testHeader() Header {
	return Header{
		ComponentType:    scalar.Uint8,
		ComponentsPerVox: 1,
		VolumeSize:       vecmath.U64Vec3{X: 256, Y: 256, Z: 256},
		VolumeAspect:     vecmath.DVec3{X: 1, Y: 1, Z: 1},
		BrickSize:        vecmath.U32Vec3{X: 64, Y: 64, Z: 64},
		Overlap:          2,
	}
}

// volume_size=(256,256,256), brick_size=(64,64,64), overlap=2, so
// usable=60: LOD0 brick_count=(5,5,5)=125, LOD1=27, ... total 161.
func TestComputeMetadataBrickCountsAcrossLODLevels(t *testing.T) {
	h := testHeader()
	payloads := make([][]byte, 161)
	for i := range payloads {
		payloads[i] = []byte{byte(i)}
	}
	path := writeFixture(t, h, payloads)

	bf := blockfile.New(path, 0)
	if err := bf.Open(blockfile.ReadOnly); err != nil {
		t.Fatalf("Open returned error: %v", err)
	}
	defer bf.Close()

	tree := New(nil)
	if err := tree.Open(bf, 0); err != nil {
		t.Fatalf("Tree.Open returned error: %v", err)
	}

	if got := tree.ComputeBrickCount(); got != 161 {
		t.Fatalf("ComputeBrickCount() = %d, want 161", got)
	}
	if tree.TOCLen() != 161 {
		t.Fatalf("TOCLen() = %d, want 161", tree.TOCLen())
	}

	bc0 := tree.BrickCount(0)
	if bc0 != (vecmath.U64Vec3{X: 5, Y: 5, Z: 5}) {
		t.Fatalf("BrickCount(0) = %+v, want {5 5 5}", bc0)
	}
	bc1 := tree.BrickCount(1)
	if bc1 != (vecmath.U64Vec3{X: 3, Y: 3, Z: 3}) {
		t.Fatalf("BrickCount(1) = %+v, want {3 3 3}", bc1)
	}
}

// volume_size=(100,100,100), brick_size=(64,64,64), overlap=4, so
// usable=56: last brick x-size = 8 + 44 = 52.
func TestComputeBrickSizeLastBrickIsPartial(t *testing.T) {
	h := Header{
		ComponentType:    scalar.Uint8,
		ComponentsPerVox: 1,
		VolumeSize:       vecmath.U64Vec3{X: 100, Y: 100, Z: 100},
		VolumeAspect:     vecmath.DVec3{X: 1, Y: 1, Z: 1},
		BrickSize:        vecmath.U32Vec3{X: 64, Y: 64, Z: 64},
		Overlap:          4,
	}
	tree := New(nil)
	tree.Header = h
	tree.computeMetadata()

	bc := tree.BrickCount(0)
	last := BrickCoord{X: bc.X - 1, Y: 0, Z: 0, Level: 0}
	size := tree.ComputeBrickSize(last)
	if size.X != 52 {
		t.Fatalf("ComputeBrickSize last brick X = %d, want 52", size.X)
	}
}

// volume_size=(100,200,50): level1 size (50,100,25); 100, 200 and 50 are
// all even, so every axis gets factor 2; aspect (2,2,2)/2 = (1,1,1).
func TestAspectNormalizationEvenSizes(t *testing.T) {
	h := Header{
		ComponentType:    scalar.Uint8,
		ComponentsPerVox: 1,
		VolumeSize:       vecmath.U64Vec3{X: 100, Y: 200, Z: 50},
		VolumeAspect:     vecmath.DVec3{X: 1, Y: 1, Z: 1},
		BrickSize:        vecmath.U32Vec3{X: 16, Y: 16, Z: 16},
		Overlap:          2,
	}
	tree := New(nil)
	tree.Header = h
	tree.computeMetadata()

	lvl1 := tree.LODLevel(1)
	if lvl1.PixelSize != (vecmath.U64Vec3{X: 50, Y: 100, Z: 25}) {
		t.Fatalf("level 1 pixel size = %+v, want {50 100 25}", lvl1.PixelSize)
	}
	if lvl1.Aspect.MaxComponent() != 1.0 {
		t.Fatalf("level 1 aspect max component = %v, want 1.0", lvl1.Aspect.MaxComponent())
	}
	if lvl1.Aspect != (vecmath.DVec3{X: 1, Y: 1, Z: 1}) {
		t.Fatalf("level 1 aspect = %+v, want {1 1 1}", lvl1.Aspect)
	}
}

func TestBrickCoordToIndexBijectionAndBounds(t *testing.T) {
	h := testHeader()
	tree := New(nil)
	tree.Header = h
	tree.computeMetadata()

	seen := make(map[uint64]bool)
	for lvl := 0; lvl < tree.LODLevelCount(); lvl++ {
		n := tree.BrickCount(uint64(lvl))
		for z := uint64(0); z < n.Z; z++ {
			for y := uint64(0); y < n.Y; y++ {
				for x := uint64(0); x < n.X; x++ {
					idx, err := tree.BrickCoordToIndex(BrickCoord{X: x, Y: y, Z: z, Level: uint64(lvl)})
					if err != nil {
						t.Fatalf("BrickCoordToIndex returned error: %v", err)
					}
					if seen[idx] {
						t.Fatalf("index %d produced by more than one coordinate", idx)
					}
					seen[idx] = true
				}
			}
		}
	}
	if uint64(len(seen)) != tree.ComputeBrickCount() {
		t.Fatalf("saw %d distinct indices, want %d", len(seen), tree.ComputeBrickCount())
	}

	if _, err := tree.BrickCoordToIndex(BrickCoord{Level: uint64(tree.LODLevelCount())}); err == nil {
		t.Fatalf("BrickCoordToIndex with an out-of-range level unexpectedly succeeded")
	}
}

func TestOpenRejectsZeroDimensions(t *testing.T) {
	h := testHeader()
	h.VolumeSize.X = 0
	path := filepath.Join(t.TempDir(), "bad.eot")

	bf := blockfile.New(path, 0)
	if err := bf.Open(blockfile.ReadWrite); err != nil {
		t.Fatalf("Open returned error: %v", err)
	}
	tree := New(nil)
	tree.Header = h
	// WriteHeader doesn't validate; Open does. Force a header-only write by
	// hand to exercise Open's validation path.
	if err := tree.WriteHeader(bf, 0); err != nil {
		t.Fatalf("WriteHeader returned error: %v", err)
	}
	bf.Close()

	bf2 := blockfile.New(path, 0)
	if err := bf2.Open(blockfile.ReadOnly); err != nil {
		t.Fatalf("Open returned error: %v", err)
	}
	defer bf2.Close()

	reopened := New(nil)
	err := reopened.Open(bf2, 0)
	if err == nil {
		t.Fatalf("Open with a zero volume_size dimension unexpectedly succeeded")
	}
	if e, ok := err.(*Error); !ok || e.Kind != KindFormat {
		t.Fatalf("Open error = %v, want KindFormat", err)
	}
}

func TestGetBrickDataRoundTrip(t *testing.T) {
	h := testHeader()
	payloads := make([][]byte, 161)
	for i := range payloads {
		payloads[i] = []byte{byte(i), byte(i + 1), byte(i + 2)}
	}
	path := writeFixture(t, h, payloads)

	bf := blockfile.New(path, 0)
	if err := bf.Open(blockfile.ReadOnly); err != nil {
		t.Fatalf("Open returned error: %v", err)
	}
	defer bf.Close()

	tree := New(nil)
	if err := tree.Open(bf, 0); err != nil {
		t.Fatalf("Tree.Open returned error: %v", err)
	}

	dst := make([]byte, 3)
	n, err := tree.GetBrickDataByIndex(42, dst)
	if err != nil {
		t.Fatalf("GetBrickDataByIndex returned error: %v", err)
	}
	if n != 3 || dst[0] != 42 || dst[1] != 43 || dst[2] != 44 {
		t.Fatalf("GetBrickDataByIndex = %v, want [42 43 44]", dst[:n])
	}
}

func TestSetGlobalAspectRoundTrip(t *testing.T) {
	h := testHeader()
	path := writeFixture(t, h, make([][]byte, 161))

	bf := blockfile.New(path, 0)
	if err := bf.Open(blockfile.ReadOnly); err != nil {
		t.Fatalf("Open returned error: %v", err)
	}
	defer bf.Close()

	tree := New(nil)
	if err := tree.Open(bf, 0); err != nil {
		t.Fatalf("Tree.Open returned error: %v", err)
	}

	newAspect := vecmath.DVec3{X: 0.5, Y: 1.0, Z: 2.0}
	if err := tree.SetGlobalAspect(newAspect); err != nil {
		t.Fatalf("SetGlobalAspect returned error: %v", err)
	}

	reopened := New(nil)
	if err := reopened.Open(bf, 0); err != nil {
		t.Fatalf("re-Open after SetGlobalAspect returned error: %v", err)
	}
	if reopened.Header.VolumeAspect != newAspect {
		t.Fatalf("VolumeAspect after round trip = %+v, want %+v", reopened.Header.VolumeAspect, newAspect)
	}
}
