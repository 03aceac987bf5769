// Copyright 2016 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package main

import (
	"fmt"
	"log"
	"os"

	"github.com/pkg/errors"
	"github.com/urfave/cli"

	"github.com/ivda-group/eotvol/blockfile"
	"github.com/ivda-group/eotvol/eot"
	"github.com/ivda-group/eotvol/scalar"
	"github.com/ivda-group/eotvol/vecmath"
)

// VERSION is injected by buildflags.
var VERSION = "SELFBUILD"

func main() {
	if VERSION == "SELFBUILD" {
		log.SetFlags(log.LstdFlags | log.Lshortfile)
	}

	app := cli.NewApp()
	app.Name = "eotctl"
	app.Usage = "inspect and create Extended Octree (EOT) volume files"
	app.Version = VERSION
	app.Commands = []cli.Command{
		headerCommand,
		createCommand,
		bricksCommand,
	}

	if err := app.Run(os.Args); err != nil {
		log.Fatalln(err)
	}
}

var headerCommand = cli.Command{
	Name:      "header",
	Usage:     "print the global header and LOD table of an EOT file",
	ArgsUsage: "<path>",
	Flags: []cli.Flag{
		cli.Int64Flag{Name: "offset", Value: 0, Usage: "absolute byte offset of the EOT header"},
	},
	Action: func(c *cli.Context) error {
		path := c.Args().First()
		if path == "" {
			return cli.NewExitError("eotctl header: missing <path>", 1)
		}

		bf := blockfile.New(path, c.Int64("offset"))
		if err := bf.Open(blockfile.ReadOnly); err != nil {
			return errors.Wrap(err, "eotctl header: opening file")
		}
		defer bf.Close()

		tree := eot.New(nil)
		if err := tree.Open(bf, 0); err != nil {
			return errors.Wrap(err, "eotctl header: reading EOT header")
		}

		h := tree.Header
		fmt.Printf("component_type:      %s\n", h.ComponentType)
		fmt.Printf("components_per_voxel: %d\n", h.ComponentsPerVox)
		fmt.Printf("volume_size:         (%d, %d, %d)\n", h.VolumeSize.X, h.VolumeSize.Y, h.VolumeSize.Z)
		fmt.Printf("volume_aspect:       (%v, %v, %v)\n", h.VolumeAspect.X, h.VolumeAspect.Y, h.VolumeAspect.Z)
		fmt.Printf("brick_size:          (%d, %d, %d)\n", h.BrickSize.X, h.BrickSize.Y, h.BrickSize.Z)
		fmt.Printf("overlap:             %d\n", h.Overlap)
		fmt.Printf("total_bricks:        %d\n", tree.ComputeBrickCount())
		fmt.Println()
		for l := 0; l < tree.LODLevelCount(); l++ {
			lvl := tree.LODLevel(uint64(l))
			fmt.Printf("LOD %2d: pixel_size=(%d,%d,%d) brick_count=(%d,%d,%d) aspect=(%v,%v,%v) brick_offset=%d\n",
				l, lvl.PixelSize.X, lvl.PixelSize.Y, lvl.PixelSize.Z,
				lvl.BrickCount.X, lvl.BrickCount.Y, lvl.BrickCount.Z,
				lvl.Aspect.X, lvl.Aspect.Y, lvl.Aspect.Z, lvl.BrickOffset)
		}
		return nil
	},
}

var createCommand = cli.Command{
	Name:      "create",
	Usage:     "create a new EOT file with a header and a table of contents of zero-length bricks",
	ArgsUsage: "<path>",
	Flags: []cli.Flag{
		cli.StringFlag{Name: "component-type", Value: "u8", Usage: "i8,u8,i16,u16,i32,u32,i64,u64,f32,f64"},
		cli.Uint64Flag{Name: "components", Value: 1, Usage: "components per voxel"},
		cli.Int64Flag{Name: "size-x", Value: 256},
		cli.Int64Flag{Name: "size-y", Value: 256},
		cli.Int64Flag{Name: "size-z", Value: 256},
		cli.Int64Flag{Name: "brick-x", Value: 64},
		cli.Int64Flag{Name: "brick-y", Value: 64},
		cli.Int64Flag{Name: "brick-z", Value: 64},
		cli.Int64Flag{Name: "overlap", Value: 2},
	},
	Action: func(c *cli.Context) error {
		path := c.Args().First()
		if path == "" {
			return cli.NewExitError("eotctl create: missing <path>", 1)
		}

		ct, err := componentTypeFromFlag(c.String("component-type"))
		if err != nil {
			return cli.NewExitError(err.Error(), 1)
		}

		h := eot.Header{
			ComponentType:    ct,
			ComponentsPerVox: c.Uint64("components"),
			VolumeSize: vecmath.U64Vec3{
				X: uint64(c.Int64("size-x")), Y: uint64(c.Int64("size-y")), Z: uint64(c.Int64("size-z")),
			},
			VolumeAspect: vecmath.DVec3{X: 1, Y: 1, Z: 1},
			BrickSize: vecmath.U32Vec3{
				X: uint32(c.Int64("brick-x")), Y: uint32(c.Int64("brick-y")), Z: uint32(c.Int64("brick-z")),
			},
			Overlap: uint32(c.Int64("overlap")),
		}

		bf := blockfile.New(path, 0)
		if err := bf.Open(blockfile.ReadWrite); err != nil {
			return errors.Wrap(err, "eotctl create: opening file")
		}
		defer bf.Close()

		tree := eot.New(nil)
		tree.Header = h
		// SetToC derives the LOD table that ComputeBrickCount reads.
		tree.SetToC(nil)
		count := tree.ComputeBrickCount()
		entries := make([]eot.TOCEntry, count)
		tree.SetToC(entries)

		if err := tree.WriteHeader(bf, 0); err != nil {
			return errors.Wrap(err, "eotctl create: writing header")
		}

		fmt.Printf("created %s: %d bricks across %d LOD levels\n", path, count, tree.LODLevelCount())
		return nil
	},
}

var bricksCommand = cli.Command{
	Name:      "bricks",
	Usage:     "list ToC entries for one LOD level",
	ArgsUsage: "<path>",
	Flags: []cli.Flag{
		cli.Int64Flag{Name: "offset", Value: 0, Usage: "absolute byte offset of the EOT header"},
		cli.Uint64Flag{Name: "level", Value: 0, Usage: "LOD level to list"},
	},
	Action: func(c *cli.Context) error {
		path := c.Args().First()
		if path == "" {
			return cli.NewExitError("eotctl bricks: missing <path>", 1)
		}

		bf := blockfile.New(path, c.Int64("offset"))
		if err := bf.Open(blockfile.ReadOnly); err != nil {
			return errors.Wrap(err, "eotctl bricks: opening file")
		}
		defer bf.Close()

		tree := eot.New(nil)
		if err := tree.Open(bf, 0); err != nil {
			return errors.Wrap(err, "eotctl bricks: reading EOT header")
		}

		level := c.Uint64("level")
		if level >= uint64(tree.LODLevelCount()) {
			return cli.NewExitError(fmt.Sprintf("eotctl bricks: level %d out of range (have %d levels)", level, tree.LODLevelCount()), 1)
		}
		n := tree.BrickCount(level)
		for z := uint64(0); z < n.Z; z++ {
			for y := uint64(0); y < n.Y; y++ {
				for x := uint64(0); x < n.X; x++ {
					coord := eot.BrickCoord{X: x, Y: y, Z: z, Level: level}
					idx, err := tree.BrickCoordToIndex(coord)
					if err != nil {
						return errors.Wrap(err, "eotctl bricks: indexing brick")
					}
					size := tree.ComputeBrickSize(coord)
					toc := tree.TOCEntryAt(idx)
					fmt.Printf("%d: (%d,%d,%d)@%d size=(%d,%d,%d) offset=%d length=%d tag=%d\n",
						idx, x, y, z, level, size.X, size.Y, size.Z, toc.ByteOffset, toc.LengthBytes, toc.CompressionTag)
				}
			}
		}
		return nil
	},
}

func componentTypeFromFlag(s string) (scalar.ComponentType, error) {
	switch s {
	case "i8":
		return scalar.Int8, nil
	case "u8":
		return scalar.Uint8, nil
	case "i16":
		return scalar.Int16, nil
	case "u16":
		return scalar.Uint16, nil
	case "i32":
		return scalar.Int32, nil
	case "u32":
		return scalar.Uint32, nil
	case "i64":
		return scalar.Int64, nil
	case "u64":
		return scalar.Uint64, nil
	case "f32":
		return scalar.Float32, nil
	case "f64":
		return scalar.Float64, nil
	default:
		return 0, fmt.Errorf("unknown component type %q", s)
	}
}
