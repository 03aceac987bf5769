// Copyright 2016 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package scheduler implements the per-region adaptive-quality state
// machine: it picks a starting LOD, decides whether to degrade screen
// resolution or sample rate, drives multi-subframe refinement, and tracks
// whether a redraw or only a recomposite is needed.
//
// Grounded on Renderer/AbstrRenderer.cpp's CheckForRedraw,
// ComputeMaxLODForCurrentView, ComputeMinLODForCurrentView, Plan3DFrame,
// CompletedASubframe and the Schedule*Redraw family.
package scheduler

import (
	"log"

	"github.com/ivda-group/eotvol/region"
)

// Logger is the ambient logging contract; the default implementation wraps
// the standard library's log package, matching the rest of this module.
type Logger interface {
	Printf(format string, args ...interface{})
}

type stdLogger struct{}

func (stdLogger) Printf(format string, args ...interface{}) { log.Printf(format, args...) }

// LODLimits constrains the reachable LOD window: CoarsestCap bounds how
// many levels may be skipped when starting coarse; FinestCap bounds how
// close to level 0 planning may go.
type LODLimits struct {
	CoarsestCap int
	FinestCap   int
}

// Config bundles the scheduler options a caller supplies once per viewport.
type Config struct {
	MinFramerateFPS     uint32
	UseAllMeans         bool
	ScreenResDecFactor  float32
	SampleRateDecFactor float32
	StartDelayFrames    uint32
	LODLimits           LODLimits
}

// MaxMsPerFrame returns the first-subframe time budget: 0 fps means a ten
// second budget (effectively "no limit"), matching the source's fallback.
func (c Config) MaxMsPerFrame() float64 {
	if c.MinFramerateFPS == 0 {
		return 10000
	}
	return 1000.0 / float64(c.MinFramerateFPS)
}

const lodNotOkGrace = 3

// State is the scheduler-owned portion of a region's lifecycle: LOD
// bookkeeping, degradation counters and the in-flight brick list length.
// It wraps a *region.Region, which owns the transform/degradation-flag
// portion of the same state.
type State struct {
	Region *region.Region

	MaxLODIndex int

	PerfLODSkip      int
	StartLODOffset   int
	CurrentLODOffset int
	MinLODForView    int

	LODNotOkCounter int
	CheckCounter    int

	BricksRenderedInSubframe int
	CurrentBrickListLen      int

	CaptureMode   bool
	RecomposeOnly bool

	firstFrameEver     bool
	secondSubframeDone bool
	loggedUnreachable  bool
}

// NewState returns scheduler state for a freshly created region: the very
// first plan call must start at the coarsest level.
func NewState(r *region.Region, maxLODIndex int, startDelayFrames uint32) *State {
	return &State{
		Region:           r,
		MaxLODIndex:      maxLODIndex,
		StartLODOffset:   maxLODIndex,
		CurrentLODOffset: maxLODIndex,
		CheckCounter:     int(startDelayFrames),
		firstFrameEver:   true,
	}
}

// Scheduler coordinates region state transitions against one shared Config.
type Scheduler struct {
	cfg    Config
	logger Logger
}

// New returns a Scheduler; a nil logger defaults to the standard library's
// log package.
func New(cfg Config, logger Logger) *Scheduler {
	if logger == nil {
		logger = stdLogger{}
	}
	return &Scheduler{cfg: cfg, logger: logger}
}

// ComputeMinLODForView clamps viewDependentLowerBound (the finest LOD the
// frustum oracle's voxel-to-pixel ratio test justifies) by the
// user-configured LOD limits.
func (s *Scheduler) ComputeMinLODForView(st *State, viewDependentLowerBound int) int {
	min := viewDependentLowerBound
	if floor := s.cfg.LODLimits.FinestCap; min < floor {
		min = floor
	}
	st.MinLODForView = min
	return min
}

// ComputeMaxLODForView implements the perf_lod_skip escalation/de-escalation
// state machine. firstSubframeMs is the
// just-completed first subframe's duration; haveSecondSubframe/secondMs
// describe whether a second, undegraded subframe has also completed this
// cycle.
func (s *Scheduler) ComputeMaxLODForView(st *State, firstSubframeMs float64, haveSecondSubframe bool, secondMs float64) {
	if st.CaptureMode {
		return
	}
	if firstSubframeMs < 0 {
		return
	}

	budget := s.cfg.MaxMsPerFrame()

	if firstSubframeMs > budget {
		if st.LODNotOkCounter < lodNotOkGrace {
			st.LODNotOkCounter++
			return
		}
		st.LODNotOkCounter = 0
		if st.PerfLODSkip > 0 {
			st.PerfLODSkip--
			carried := st.Region.MsecPassed[1]
			st.Region.ResetSubframeTimer(0)
			st.Region.AccumulateSubframe(0, carried)
			return
		}
		if s.cfg.UseAllMeans {
			if !st.Region.WantLowRes {
				st.Region.WantLowRes = true
				return
			}
			if !st.Region.WantLowRate {
				st.Region.WantLowRate = true
				return
			}
		}
		if !st.loggedUnreachable {
			s.logger.Printf("scheduler: target framerate unreachable even at maximum degradation")
			st.loggedUnreachable = true
		}
		return
	}

	st.LODNotOkCounter = 0

	if haveSecondSubframe && secondMs <= budget {
		switch {
		case st.Region.WantLowRate:
			st.Region.WantLowRate = false
		case st.Region.WantLowRes:
			st.Region.WantLowRes = false
		default:
			if st.PerfLODSkip < st.MaxLODIndex-st.MinLODForView {
				st.PerfLODSkip++
			}
		}
	}
}

// Plan3DFrame recomputes LOD bookkeeping for a blank region; a non-blank
// region is left unchanged. computeViewDependentLowerBound and
// updateFrustum are externally supplied hooks; planning never blocks on
// I/O.
func (s *Scheduler) Plan3DFrame(st *State, computeViewDependentLowerBound func() int, updateFrustum func()) {
	if !st.Region.IsBlank {
		return
	}

	updateFrustum()
	s.ComputeMinLODForView(st, computeViewDependentLowerBound())

	if !st.firstFrameEver {
		s.ComputeMaxLODForView(st, st.Region.MsecPassed[0], st.secondSubframeDone, st.Region.MsecPassed[1])
	}

	maxOffset := st.MaxLODIndex - s.cfg.LODLimits.CoarsestCap

	switch {
	case st.CaptureMode:
		st.StartLODOffset = st.MinLODForView
	case st.firstFrameEver:
		st.StartLODOffset = st.MaxLODIndex
	default:
		offset := st.MaxLODIndex - st.PerfLODSkip
		if offset < st.MinLODForView {
			offset = st.MinLODForView
		}
		if offset > maxOffset {
			offset = maxOffset
		}
		st.StartLODOffset = offset
	}

	st.CurrentLODOffset = st.StartLODOffset
	st.firstFrameEver = false
	st.secondSubframeDone = false
	st.Region.IsBlank = false

	// A fresh subframe sequence starts now; zero both subframe accumulators
	// so CompletedASubframe's AccumulateSubframe calls record this cycle's
	// durations rather than carrying over the previous one's.
	st.Region.ResetSubframeTimer(0)
	st.Region.ResetSubframeTimer(1)

	// Commit to acting on any standing want_low_res/want_low_rate request
	// for the subframes this cycle is about to render; CompletedASubframe
	// reads these Now flags rather than the standing ones so a request
	// raised mid-cycle doesn't retroactively change a subframe already in
	// flight.
	st.Region.LatchDegradation()
}

// CompletedASubframe records a finished subframe's duration and, once the
// current list is exhausted, advances CurrentLODOffset toward
// MinLODForView one level at a time.
// isFirst distinguishes the cycle's first subframe from its second. A
// subframe rendered under a latched want_low_res/want_low_rate request
// must be cleared and rebuilt at full quality before the LOD is allowed
// to advance.
func (s *Scheduler) CompletedASubframe(st *State, msec float64, isFirst bool) {
	if isFirst {
		st.Region.AccumulateSubframe(0, msec)
	} else {
		st.Region.AccumulateSubframe(1, msec)
		st.secondSubframeDone = true
	}

	if st.BricksRenderedInSubframe < st.CurrentBrickListLen {
		return
	}

	if st.Region.WantLowResNow || st.Region.WantLowRateNow {
		st.Region.WantLowResNow = false
		st.Region.WantLowRateNow = false
		st.Region.ExtraPassForDegradation = true
		return
	}
	st.Region.ExtraPassForDegradation = false

	if st.CurrentLODOffset > st.MinLODForView {
		st.CurrentLODOffset--
	}
}

// ScheduleCompleteRedraw invalidates every region's in-flight work and
// marks them blank, discarding partial results (there is no cancel token;
// the consumer must discard whatever brick list was in progress).
func (s *Scheduler) ScheduleCompleteRedraw(states []*State) {
	for _, st := range states {
		st.BricksRenderedInSubframe = 0
		st.RecomposeOnly = false
		st.Region.IsBlank = true
		st.Region.NeedsRedrawFlag = true
	}
}

// Schedule3DWindowRedraws marks blank only the regions whose Kind is
// region.ThreeD.
func (s *Scheduler) Schedule3DWindowRedraws(states []*State) {
	for _, st := range states {
		if st.Region.Kind == region.ThreeD {
			st.BricksRenderedInSubframe = 0
			st.RecomposeOnly = false
			st.Region.IsBlank = true
			st.Region.NeedsRedrawFlag = true
		}
	}
}

// ScheduleWindowRedraw marks a single region for a full redraw.
func (s *Scheduler) ScheduleWindowRedraw(st *State) {
	st.BricksRenderedInSubframe = 0
	st.RecomposeOnly = false
	st.Region.MarkNeedsRedraw()
}

// ScheduleRecompose requests the fast path: if the region's brick list is
// already exhausted, only appearance changed, so a full redraw is
// unnecessary — consumers should re-blit the last shaded buffers with the
// new appearance parameters instead of re-traversing bricks. is_blank is
// deliberately left untouched.
func (s *Scheduler) ScheduleRecompose(st *State) {
	if st.BricksRenderedInSubframe >= st.CurrentBrickListLen {
		st.RecomposeOnly = true
		return
	}
	st.Region.MarkNeedsRedraw()
}

// NeedsRedraw implements the check_counter debounce: while any region
// reports "still drawing," or any region has a pending recompose or
// degradation pass, redraw is needed outright. Only once every region
// reports "done" does each region's check_counter get to veto that verdict
// a bounded number of times.
func (s *Scheduler) NeedsRedraw(states []*State) bool {
	stillDrawing := false
	for _, st := range states {
		if st.Region.IsBlank ||
			st.BricksRenderedInSubframe < st.CurrentBrickListLen ||
			st.CurrentLODOffset > st.MinLODForView ||
			st.Region.ExtraPassForDegradation ||
			st.RecomposeOnly {
			stillDrawing = true
			break
		}
	}
	if stillDrawing {
		return true
	}

	debounced := false
	for _, st := range states {
		if st.CheckCounter > 0 {
			st.CheckCounter--
			debounced = true
		}
	}
	return debounced
}
