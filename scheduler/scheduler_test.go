// Copyright 2016 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package scheduler

import (
	"testing"

	"github.com/ivda-group/eotvol/region"
)

func newTestState(maxLOD int) *State {
	r := region.NewRegion(region.ThreeD)
	r.IsBlank = true
	return NewState(r, maxLOD, 0)
}

// PerfLODSkip starts at 0; the very first plan call must start at the
// coarsest LOD. After a fast frame at the second subframe, PerfLODSkip
// increments.
func TestFirstPlanStartsAtCoarsestLOD(t *testing.T) {
	sched := New(Config{MinFramerateFPS: 60}, nil)
	st := newTestState(4)

	sched.Plan3DFrame(st, func() int { return 0 }, func() {})

	if st.StartLODOffset != 4 {
		t.Fatalf("StartLODOffset on first frame = %d, want 4 (coarsest)", st.StartLODOffset)
	}
	if st.PerfLODSkip != 0 {
		t.Fatalf("PerfLODSkip on first frame = %d, want 0", st.PerfLODSkip)
	}
}

func TestFastSecondSubframeIncrementsSkip(t *testing.T) {
	sched := New(Config{MinFramerateFPS: 60}, nil) // budget ~16.6ms
	st := newTestState(4)

	sched.Plan3DFrame(st, func() int { return 0 }, func() {})
	sched.CompletedASubframe(st, 5, true)
	st.BricksRenderedInSubframe = st.CurrentBrickListLen
	sched.CompletedASubframe(st, 5, false)

	st.Region.IsBlank = true
	sched.Plan3DFrame(st, func() int { return 0 }, func() {})

	if st.PerfLODSkip != 1 {
		t.Fatalf("PerfLODSkip after a fast second subframe = %d, want 1", st.PerfLODSkip)
	}
}

// With a 60fps budget (~16.6ms), three consecutive 25ms first-subframe
// frames must only accumulate grace; the fourth slow frame triggers
// exactly one PerfLODSkip decrement and resets the grace counter.
func TestGraceCounterThenDecrement(t *testing.T) {
	sched := New(Config{MinFramerateFPS: 60}, nil)
	st := newTestState(4)
	st.PerfLODSkip = 2

	for i := 0; i < 3; i++ {
		sched.ComputeMaxLODForView(st, 25, false, 0)
		if st.PerfLODSkip != 2 {
			t.Fatalf("after slow frame %d, PerfLODSkip = %d, want unchanged 2 (still in grace)", i+1, st.PerfLODSkip)
		}
	}
	if st.LODNotOkCounter != 3 {
		t.Fatalf("LODNotOkCounter after 3 slow frames = %d, want 3", st.LODNotOkCounter)
	}

	sched.ComputeMaxLODForView(st, 25, false, 0)
	if st.PerfLODSkip != 1 {
		t.Fatalf("PerfLODSkip after the 4th slow frame = %d, want 1 (one decrement)", st.PerfLODSkip)
	}
	if st.LODNotOkCounter != 0 {
		t.Fatalf("LODNotOkCounter after the trigger = %d, want reset to 0", st.LODNotOkCounter)
	}
}

func TestDegradesResThenRate(t *testing.T) {
	sched := New(Config{MinFramerateFPS: 60, UseAllMeans: true}, nil)
	st := newTestState(4)
	st.PerfLODSkip = 0

	trigger := func() {
		for i := 0; i < lodNotOkGrace; i++ {
			sched.ComputeMaxLODForView(st, 25, false, 0)
		}
		sched.ComputeMaxLODForView(st, 25, false, 0)
	}

	trigger()
	if !st.Region.WantLowRes {
		t.Fatalf("WantLowRes = false after first trigger at floor perf_lod_skip, want true")
	}
	if st.Region.WantLowRate {
		t.Fatalf("WantLowRate = true after first trigger, want false")
	}

	trigger()
	if !st.Region.WantLowRate {
		t.Fatalf("WantLowRate = false after second trigger, want true")
	}
}

// Plan3DFrame must latch a standing WantLowRes request into WantLowResNow
// before the cycle's subframes run, and CompletedASubframe must derive
// its degraded handling from that latched flag rather than from a
// caller-supplied argument.
func TestPlan3DFrameLatchesDegradationForCompletedASubframe(t *testing.T) {
	sched := New(Config{MinFramerateFPS: 60}, nil)
	st := newTestState(4)
	st.Region.WantLowRes = true

	sched.Plan3DFrame(st, func() int { return 0 }, func() {})
	if !st.Region.WantLowResNow {
		t.Fatalf("WantLowResNow = false after Plan3DFrame, want true (latched from WantLowRes)")
	}

	st.CurrentBrickListLen = 3
	st.BricksRenderedInSubframe = 3
	sched.CompletedASubframe(st, 5, true)

	if st.Region.WantLowResNow {
		t.Fatalf("WantLowResNow = true after CompletedASubframe on an exhausted list, want cleared")
	}
	if !st.Region.ExtraPassForDegradation {
		t.Fatalf("ExtraPassForDegradation = false, want true (degraded subframe needs a full-quality redo)")
	}
}

// Requesting a recompose while the current brick list is fully rendered
// sets RecomposeOnly without clearing IsBlank; NeedsRedraw must still
// report true, but planning must not rebuild the brick list.
func TestRecomposeOnlyPath(t *testing.T) {
	sched := New(Config{MinFramerateFPS: 60}, nil)
	st := newTestState(4)
	st.Region.IsBlank = false
	st.CurrentBrickListLen = 10
	st.BricksRenderedInSubframe = 10

	sched.ScheduleRecompose(st)

	if !st.RecomposeOnly {
		t.Fatalf("RecomposeOnly = false after ScheduleRecompose on an exhausted list, want true")
	}
	if st.Region.IsBlank {
		t.Fatalf("IsBlank = true after ScheduleRecompose, want untouched (false)")
	}
	if !sched.NeedsRedraw([]*State{st}) {
		t.Fatalf("NeedsRedraw() = false with RecomposeOnly set, want true")
	}
}

func TestScheduleRecomposeFallsBackWhenListNotExhausted(t *testing.T) {
	sched := New(Config{}, nil)
	st := newTestState(4)
	st.Region.IsBlank = false
	st.CurrentBrickListLen = 10
	st.BricksRenderedInSubframe = 3

	sched.ScheduleRecompose(st)

	if st.RecomposeOnly {
		t.Fatalf("RecomposeOnly = true with bricks still pending, want false")
	}
	if !st.Region.NeedsRedrawFlag {
		t.Fatalf("NeedsRedrawFlag = false, want true (full redraw requested)")
	}
}

func TestNeedsRedrawDebounceViaCheckCounter(t *testing.T) {
	sched := New(Config{}, nil)
	st := newTestState(4)
	st.Region.IsBlank = false
	st.CurrentLODOffset = st.MinLODForView
	st.CheckCounter = 2

	if !sched.NeedsRedraw([]*State{st}) {
		t.Fatalf("NeedsRedraw() = false on first debounced inquiry, want true")
	}
	if st.CheckCounter != 1 {
		t.Fatalf("CheckCounter = %d after one inquiry, want 1", st.CheckCounter)
	}
	if !sched.NeedsRedraw([]*State{st}) {
		t.Fatalf("NeedsRedraw() = false on second debounced inquiry, want true")
	}
	if sched.NeedsRedraw([]*State{st}) {
		t.Fatalf("NeedsRedraw() = true once CheckCounter reaches 0, want false")
	}
}

func TestCompletedASubframeAdvancesLODTowardMinimum(t *testing.T) {
	sched := New(Config{}, nil)
	st := newTestState(4)
	st.CurrentLODOffset = 3
	st.MinLODForView = 1
	st.CurrentBrickListLen = 5
	st.BricksRenderedInSubframe = 5

	sched.CompletedASubframe(st, 1, true)
	if st.CurrentLODOffset != 2 {
		t.Fatalf("CurrentLODOffset = %d after one completed subframe, want 2", st.CurrentLODOffset)
	}
}

func TestPlan3DFrameIdempotentWhenNotBlank(t *testing.T) {
	sched := New(Config{MinFramerateFPS: 60}, nil)
	st := newTestState(4)

	sched.Plan3DFrame(st, func() int { return 0 }, func() {})
	first := *st.Region
	firstOffset := st.StartLODOffset

	sched.Plan3DFrame(st, func() int { return 0 }, func() {})
	if st.StartLODOffset != firstOffset {
		t.Fatalf("StartLODOffset changed on a no-op replan: %d -> %d", firstOffset, st.StartLODOffset)
	}
	if *st.Region != first {
		t.Fatalf("Region state changed on a no-op replan of a non-blank region")
	}
}
