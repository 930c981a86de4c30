// SPDX-FileCopyrightText: 2021 Softbear, Inc.
// SPDX-License-Identifier: AGPL-3.0-or-later

package main

import (
	"github.com/SoftbearStudios/sweep/fixmath"
	"github.com/SoftbearStudios/sweep/world"
)

// Logical coordinates are screen pixels shifted left by logicalShift, so
// motion integrates in subpixels without floats.
const logicalShift = 3

// The only collision group in the demo.
const colNormal = 0x01

// dummyRadius is the length of the line rotated to produce heading vectors.
const dummyRadius = 256

// Disc is one bouncing disc. Its broadphase proxy carries the AABB; the
// disc itself keeps motion state and the client-owned nearphase flag.
type Disc struct {
	Proxy world.Proxy

	// Radius in pixels; the AABB is the disc's bounding square.
	Radius int32

	// Velocity in logical subpixels per frame.
	Velocity int32

	// Dir is the heading vector, DirNorm its length.
	Dir     fixmath.Vec2
	DirNorm int64

	// Nearphase is set while the disc intersects another disc, not just
	// their AABBs. Cleared after each snapshot.
	Nearphase bool

	// class indexes sizeClasses, for population bookkeeping.
	class int
}

// randomHeading points the disc at a random whole-degree angle by rotating
// a line of dummyRadius length.
func (disc *Disc) randomHeading(degrees int64) {
	vec := fixmath.Vec2{X: dummyRadius << fixmath.FractionalBits}.Rotate(degrees << fixmath.FractionalBits)
	disc.Dir = fixmath.Vec2{X: vec.X >> fixmath.FractionalBits, Y: vec.Y >> fixmath.FractionalBits}
	disc.DirNorm = dummyRadius
}
