// Copyright 2016 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package region models one renderable viewport (a 2D slice or a 3D view)
// and the per-frame degradation/redraw state the scheduler mutates.
//
// Grounded on Renderer/AbstrRenderer.cpp's RenderRegion / RenderRegion3D and
// GetFirst3DRegion. Clip-plane and isosurface-color state are modeled here
// as region-scoped rather than renderer-global, since independently
// rotatable regions have no business sharing one global clip plane.
package region

import "github.com/go-gl/mathgl/mgl32"

// Kind distinguishes a 2D slice view from a full 3D view.
type Kind int

const (
	Slice2D Kind = iota
	ThreeD
)

// ClipPlaneState is the region-scoped clip plane (see the package doc for
// why this isn't a renderer-global, unlike the original).
type ClipPlaneState struct {
	Enabled bool
	Normal  mgl32.Vec3
	Dist    float32
}

// IsoColor is a region-scoped isosurface color override.
type IsoColor struct {
	Enabled bool
	RGBA    [4]float32
}

// Region is one independently navigable viewport.
type Region struct {
	Kind Kind

	Rotation    mgl32.Mat4
	Translation mgl32.Mat4
	// ModelView holds the combined model-view matrix per eye; index 0 is
	// mono/right, index 1 is left (stereo only).
	ModelView [2]mgl32.Mat4

	ClipPlane ClipPlaneState
	IsoColor  IsoColor

	// Degradation flags: "Now" fields latch the request for the current
	// subframe and are cleared by the scheduler once acted on; the
	// non-"Now" fields are the standing request across subframes.
	WantLowRes     bool
	WantLowResNow  bool
	WantLowRate    bool
	WantLowRateNow bool

	IsBlank                 bool
	IsTargetBlank           bool
	NeedsRedrawFlag         bool
	ExtraPassForDegradation bool

	// MsecPassed[0] accumulates elapsed time for the refinement cycle's
	// first subframe and MsecPassed[1] for its second; MsecThisFrame is the
	// most recently completed subframe's duration.
	MsecPassed    [2]float64
	MsecThisFrame float64
}

// NewRegion returns a Region with identity transforms and no pending
// degradation or blank state.
func NewRegion(kind Kind) *Region {
	return &Region{
		Kind:        kind,
		Rotation:    mgl32.Ident4(),
		Translation: mgl32.Ident4(),
		ModelView:   [2]mgl32.Mat4{mgl32.Ident4(), mgl32.Ident4()},
	}
}

// MarkNeedsRedraw requests a full redraw and clears blank state, mirroring
// ScheduleWindowRedraw's effect on a single region.
func (r *Region) MarkNeedsRedraw() {
	r.NeedsRedrawFlag = true
	r.IsBlank = false
}

// LatchDegradation copies the standing WantLowRes/WantLowRate requests into
// their "Now" counterparts, the point at which a subframe commits to acting
// on a degradation request (AbstrRenderer.cpp's CheckForRedraw does this
// once per check, not once per subframe).
func (r *Region) LatchDegradation() {
	r.WantLowResNow = r.WantLowRes
	r.WantLowRateNow = r.WantLowRate
}

// ResetSubframeTimer zeroes the elapsed-time accumulator for subframe slot
// (0 first, 1 second), called when a fresh subframe sequence begins
// (RestartTimer).
func (r *Region) ResetSubframeTimer(slot int) {
	r.MsecPassed[slot] = 0
}

// AccumulateSubframe adds msec to subframe slot's running total and records
// it as the most recent subframe duration (CompletedASubframe).
func (r *Region) AccumulateSubframe(slot int, msec float64) {
	r.MsecPassed[slot] += msec
	r.MsecThisFrame = msec
}

// FirstThreeD returns the first region in regions whose Kind is ThreeD, or
// nil if none qualifies (GetFirst3DRegion).
func FirstThreeD(regions []*Region) *Region {
	for _, r := range regions {
		if r.Kind == ThreeD {
			return r
		}
	}
	return nil
}
