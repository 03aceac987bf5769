// Copyright 2016 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package blockfile wraps a seekable, byte-addressable file with a base
// offset and big-endian typed read/write, matching the BlockFile contract of
// the Extended Octree on-disk format: a single OS handle, acquired on Open
// and always released on Close (including on error paths), with mode
// switching for the rare read-write excursions the format needs (rewriting
// the aspect ratio field in place).
package blockfile

import (
	"encoding/binary"
	"io"
	"math"
	"os"
	"sync"

	"github.com/pkg/errors"
)

// Mode selects how the underlying OS file is opened.
type Mode int

const (
	// ReadOnly opens the file for reading only.
	ReadOnly Mode = iota
	// ReadWrite opens the file for reading and writing, creating it if
	// necessary.
	ReadWrite
)

// BlockFile is a byte-addressable store with a fixed base offset. All seeks
// and typed reads/writes are relative to that base, the same
// header-size-as-base-offset convention LargeFile.h uses.
//
// A single BlockFile is not safe for concurrent use: its cursor is shared
// state. Concurrent readers should each open their own handle.
type BlockFile struct {
	mu     sync.Mutex
	path   string
	mode   Mode
	base   int64
	file   *os.File
	isOpen bool
}

// New constructs a BlockFile bound to path with the given base offset. The
// file is not opened until Open is called.
func New(path string, base int64) *BlockFile {
	return &BlockFile{path: path, base: base}
}

// Open acquires the OS handle in the requested mode. On any failure no
// handle is retained.
func (b *BlockFile) Open(mode Mode) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.isOpen {
		return nil
	}

	flag := os.O_RDONLY
	if mode == ReadWrite {
		flag = os.O_RDWR | os.O_CREATE
	}

	f, err := os.OpenFile(b.path, flag, 0644)
	if err != nil {
		return errors.Wrapf(err, "blockfile: open %q", b.path)
	}

	b.file = f
	b.mode = mode
	b.isOpen = true
	return nil
}

// IsOpen reports whether the file handle is currently acquired.
func (b *BlockFile) IsOpen() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.isOpen
}

// Close releases the OS handle. Close on an already-closed BlockFile is a
// no-op.
func (b *BlockFile) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.closeLocked()
}

func (b *BlockFile) closeLocked() error {
	if !b.isOpen {
		return nil
	}
	err := b.file.Close()
	b.file = nil
	b.isOpen = false
	if err != nil {
		return errors.Wrapf(err, "blockfile: close %q", b.path)
	}
	return nil
}

// Reopen closes the current handle (if any) and reopens it in the given
// mode. If the reopen fails, Reopen makes a best effort to restore a
// read-only handle so the BlockFile is left usable; the original error is
// still returned to the caller.
func (b *BlockFile) Reopen(mode Mode) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if err := b.closeLocked(); err != nil {
		return err
	}

	flag := os.O_RDONLY
	if mode == ReadWrite {
		flag = os.O_RDWR | os.O_CREATE
	}
	f, err := os.OpenFile(b.path, flag, 0644)
	if err != nil {
		// Best-effort fall back to read-only so the caller isn't left
		// holding a closed BlockFile.
		if roFile, roErr := os.OpenFile(b.path, os.O_RDONLY, 0644); roErr == nil {
			b.file = roFile
			b.mode = ReadOnly
			b.isOpen = true
		}
		return errors.Wrapf(err, "blockfile: reopen %q in mode %d", b.path, mode)
	}

	b.file = f
	b.mode = mode
	b.isOpen = true
	return nil
}

// Seek moves the cursor to an absolute byte offset relative to the file's
// base offset.
func (b *BlockFile) Seek(absolute int64) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if !b.isOpen {
		return errors.New("blockfile: seek on closed file")
	}
	_, err := b.file.Seek(b.base+absolute, io.SeekStart)
	if err != nil {
		return errors.Wrap(err, "blockfile: seek")
	}
	return nil
}

// ReadRaw reads exactly len(dst) bytes from the current cursor.
func (b *BlockFile) ReadRaw(dst []byte) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if !b.isOpen {
		return errors.New("blockfile: read on closed file")
	}
	if _, err := io.ReadFull(b.file, dst); err != nil {
		return errors.Wrap(err, "blockfile: read")
	}
	return nil
}

// WriteRaw writes src at the current cursor.
func (b *BlockFile) WriteRaw(src []byte) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if !b.isOpen {
		return errors.New("blockfile: write on closed file")
	}
	if _, err := b.file.Write(src); err != nil {
		return errors.Wrap(err, "blockfile: write")
	}
	return nil
}

// ReadU32 reads a big-endian uint32 at the current cursor.
func (b *BlockFile) ReadU32() (uint32, error) {
	var buf [4]byte
	if err := b.ReadRaw(buf[:]); err != nil {
		return 0, err
	}
	return binary.BigEndian.Uint32(buf[:]), nil
}

// ReadU64 reads a big-endian uint64 at the current cursor.
func (b *BlockFile) ReadU64() (uint64, error) {
	var buf [8]byte
	if err := b.ReadRaw(buf[:]); err != nil {
		return 0, err
	}
	return binary.BigEndian.Uint64(buf[:]), nil
}

// ReadF64 reads a big-endian IEEE-754 double at the current cursor.
func (b *BlockFile) ReadF64() (float64, error) {
	bits, err := b.ReadU64()
	if err != nil {
		return 0, err
	}
	return math.Float64frombits(bits), nil
}

// WriteU32 writes v as a big-endian uint32 at the current cursor.
func (b *BlockFile) WriteU32(v uint32) error {
	var buf [4]byte
	binary.BigEndian.PutUint32(buf[:], v)
	return b.WriteRaw(buf[:])
}

// WriteU64 writes v as a big-endian uint64 at the current cursor.
func (b *BlockFile) WriteU64(v uint64) error {
	var buf [8]byte
	binary.BigEndian.PutUint64(buf[:], v)
	return b.WriteRaw(buf[:])
}

// WriteF64 writes v as a big-endian IEEE-754 double at the current cursor.
func (b *BlockFile) WriteF64(v float64) error {
	return b.WriteU64(math.Float64bits(v))
}
