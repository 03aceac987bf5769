// Copyright 2016 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package dataset declares the external collaborator contracts the
// culling and scheduler packages consume but never implement themselves:
// the transfer function, the residency oracle, and the dataset-level
// data-emptiness predicate. These are out of scope here — named contracts
// only.
package dataset

import "github.com/ivda-group/eotvol/culling"

// TransferFunction1D exposes the lookup-table size and the non-zero value
// range used to rescale on-disk data into the function's domain.
type TransferFunction1D interface {
	Size() float64
	NonZeroLimits() (lo, hi float64)
}

// TransferFunction2D is the two-axis counterpart: a value range and a
// gradient-magnitude range, both rescaled the same way as TransferFunction1D.
type TransferFunction2D interface {
	Size() float64
	NonZeroLimitsValue() (lo, hi float64)
	NonZeroLimitsGradient() (lo, hi float64)
}

// ResidencyOracle answers whether a brick is currently resident in the GPU
// or main-memory cache a renderer draws from.
type ResidencyOracle interface {
	IsResident(datasetID string, key culling.BrickKey, pow2, downsampledTo8Bit, borderDisabled bool) bool
}

// Dataset is the full external contract culling.BuildBrickList consumes:
// brick enumeration, emptiness testing and boundary metadata. It embeds
// culling.Dataset so a concrete dataset type satisfies both without
// duplicating method sets.
type Dataset interface {
	culling.Dataset
}
