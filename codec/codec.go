// Copyright 2016 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package codec implements the brick-payload decompression registry the EOT
// format delegates to by compression tag. Only the "none" passthrough and a
// snappy decoder ship; additional codecs register themselves by tag.
package codec

import (
	"github.com/golang/snappy"
	"github.com/pkg/errors"
)

// Tag is the on-disk compression_tag value stored per ToC entry.
type Tag = uint32

const (
	// TagNone means the brick payload is stored uncompressed.
	TagNone Tag = 0
	// TagSnappy means the brick payload is snappy-compressed.
	TagSnappy Tag = 1
)

// Decoder decompresses src into dst, returning the number of bytes written.
// dst is sized to the expected decompressed length by the caller.
type Decoder func(dst, src []byte) (int, error)

// Registry maps compression tags to decoders.
type Registry struct {
	decoders map[Tag]Decoder
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{decoders: make(map[Tag]Decoder)}
}

// Register installs decoder for tag, overwriting any previous registration.
func (r *Registry) Register(tag Tag, decoder Decoder) {
	r.decoders[tag] = decoder
}

// Lookup returns the decoder registered for tag, if any. TagNone is never
// present in the map; callers should special-case it as a passthrough
// before calling Lookup.
func (r *Registry) Lookup(tag Tag) (Decoder, bool) {
	d, ok := r.decoders[tag]
	return d, ok
}

// DefaultRegistry returns a registry with the snappy codec registered under
// TagSnappy.
func DefaultRegistry() *Registry {
	r := NewRegistry()
	r.Register(TagSnappy, decodeSnappy)
	return r
}

func decodeSnappy(dst, src []byte) (int, error) {
	decoded, err := snappy.Decode(nil, src)
	if err != nil {
		return 0, errors.Wrap(err, "codec: snappy decode")
	}
	n := copy(dst, decoded)
	return n, nil
}
