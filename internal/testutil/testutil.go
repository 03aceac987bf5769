// Copyright 2016 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package testutil holds small fixtures shared across this module's test
// suites: a synthetic EOT file builder and fake external-collaborator
// implementations (residency, frustum) that satisfy the contracts named in
// the dataset and culling packages without pulling in a real renderer or
// cache.
package testutil

import (
	"path/filepath"
	"testing"

	"github.com/go-gl/mathgl/mgl32"

	"github.com/ivda-group/eotvol/blockfile"
	"github.com/ivda-group/eotvol/eot"
	"github.com/ivda-group/eotvol/scalar"
	"github.com/ivda-group/eotvol/vecmath"
)

// BuildEOTFixture writes a minimal valid EOT file with the given payloads
// (one per brick, in ToC order) and returns the opened, read-only Tree
// alongside the BlockFile backing it. Callers are responsible for closing
// the returned BlockFile.
func BuildEOTFixture(t *testing.T, h eot.Header, payloads [][]byte) (*eot.Tree, *blockfile.BlockFile) {
	t.Helper()

	path := filepath.Join(t.TempDir(), "fixture.eot")

	writer := blockfile.New(path, 0)
	if err := writer.Open(blockfile.ReadWrite); err != nil {
		t.Fatalf("testutil: opening fixture for write: %v", err)
	}

	tree := eot.New(nil)
	tree.Header = h
	entries := make([]eot.TOCEntry, len(payloads))
	for i, p := range payloads {
		entries[i] = eot.TOCEntry{LengthBytes: uint64(len(p))}
	}
	tree.SetToC(entries)

	if err := tree.WriteHeader(writer, 0); err != nil {
		t.Fatalf("testutil: writing fixture header: %v", err)
	}
	for _, p := range payloads {
		if err := writer.WriteRaw(p); err != nil {
			t.Fatalf("testutil: writing fixture payload: %v", err)
		}
	}
	if err := writer.Close(); err != nil {
		t.Fatalf("testutil: closing fixture writer: %v", err)
	}

	reader := blockfile.New(path, 0)
	if err := reader.Open(blockfile.ReadOnly); err != nil {
		t.Fatalf("testutil: opening fixture for read: %v", err)
	}

	opened := eot.New(nil)
	if err := opened.Open(reader, 0); err != nil {
		t.Fatalf("testutil: opening tree: %v", err)
	}
	return opened, reader
}

// DefaultHeader returns a 256^3 volume with a 64^3 brick size and overlap
// 2, reused across package test suites.
func DefaultHeader() eot.Header {
	return eot.Header{
		ComponentType:    scalar.Uint8,
		ComponentsPerVox: 1,
		VolumeSize:       vecmath.U64Vec3{X: 256, Y: 256, Z: 256},
		VolumeAspect:     vecmath.DVec3{X: 1, Y: 1, Z: 1},
		BrickSize:        vecmath.U32Vec3{X: 64, Y: 64, Z: 64},
		Overlap:          2,
	}
}

// FakeResidencyOracle reports residency for a fixed set of keys, letting
// tests control the MIP-rotation sort path deterministically.
type FakeResidencyOracle struct {
	Resident map[eot.BrickCoord]bool
}

// IsResident implements dataset.ResidencyOracle.
func (f *FakeResidencyOracle) IsResident(datasetID string, key eot.BrickCoord, pow2, downsampledTo8Bit, borderDisabled bool) bool {
	return f.Resident[key]
}

// AlwaysVisibleFrustum reports every brick visible and every LOD level 0;
// useful for isolating clip-plane and data-emptiness culling stages in a
// test without modeling an actual projection.
type AlwaysVisibleFrustum struct {
	PassAll bool
}

func (f *AlwaysVisibleFrustum) SetViewMatrix(mgl32.Mat4) {}
func (f *AlwaysVisibleFrustum) Update()                  {}
func (f *AlwaysVisibleFrustum) IsVisible(center, extension mgl32.Vec3) bool {
	return true
}
func (f *AlwaysVisibleFrustum) GetLODLevel(center, extension mgl32.Vec3, domainSize [3]uint64) int {
	return 0
}
func (f *AlwaysVisibleFrustum) SetPassAll(v bool) { f.PassAll = v }
