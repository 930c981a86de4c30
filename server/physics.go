// SPDX-FileCopyrightText: 2021 Softbear, Inc.
// SPDX-License-Identifier: AGPL-3.0-or-later

package main

import (
	"log"
	"time"

	"github.com/SoftbearStudios/sweep/fixmath"
)

// Physics advances one frame: integrate motion, repair the broadphase,
// resolve nearphase collisions and bounce off the walls. Bouncing after the
// broadphase update is fine; the corrected position is swept next frame.
func (h *Hub) Physics() {
	defer h.timeFunction("physics", time.Now())

	h.updateMotion()
	h.updateBounds()
	h.resolveCollisions()
	h.bounceOffWalls()
}

// updateMotion integrates Xi = Xi-1 + d/|d| * ds in fixed point. Simple
// integration with an implicit frame delta is enough here.
func (h *Hub) updateMotion() {
	for _, disc := range h.discs {
		ds := int64(disc.Velocity) << fixmath.FractionalBits

		dx := int32(disc.Dir.X * ds / disc.DirNorm >> fixmath.FractionalBits)
		dy := int32(disc.Dir.Y * ds / disc.DirNorm >> fixmath.FractionalBits)

		disc.Proxy.X += dx
		disc.Proxy.Y += dy
	}
}

// updateBounds repairs the broadphase for every disc. An error here means a
// capacity was sized too small for the population; there is no way to
// continue with a corrupt structure.
func (h *Hub) updateBounds() {
	defer h.timeFunction("broadphase", time.Now())

	for _, disc := range h.discs {
		if err := h.broadphase.Update(&disc.Proxy); err != nil {
			log.Fatalf("broadphase update: %v (reduce -discs or raise capacities)", err)
		}
	}
}

// resolveCollisions walks the overlapping pairs and performs the disc-vs-
// disc nearphase test: squared center distance against summed radii, in
// logical units. AABBs overlapping does not mean the discs touch.
func (h *Hub) resolveCollisions() {
	defer h.timeFunction("nearphase", time.Now())

	pairs := h.broadphase.Pairs()
	if len(pairs) > h.peakPairs {
		h.peakPairs = len(pairs)
	}

	for _, pair := range pairs {
		proxyA := h.broadphase.FirstProxyFromPair(pair)
		proxyB := h.broadphase.SecondProxyFromPair(pair)

		cxA := int64(proxyA.X + proxyA.Width>>1)
		cyA := int64(proxyA.Y + proxyA.Height>>1)
		cxB := int64(proxyB.X + proxyB.Width>>1)
		cyB := int64(proxyB.Y + proxyB.Height>>1)

		// The AABB is the disc's bounding square, so the radius is
		// half its extent.
		rad := int64(proxyA.Width>>1 + proxyB.Width>>1)

		dx := cxA - cxB
		dy := cyA - cyB
		if dx*dx+dy*dy <= rad*rad {
			h.discByProxy[proxyA].Nearphase = true
			h.discByProxy[proxyB].Nearphase = true
		}
	}
}

// bounceOffWalls keeps disc centers inside the view rectangle by pushing
// back the penetration and mirroring the heading.
func (h *Hub) bounceOffWalls() {
	for _, disc := range h.discs {
		proxy := &disc.Proxy

		cx := (proxy.X + proxy.Width>>1) >> logicalShift
		cy := (proxy.Y + proxy.Height>>1) >> logicalShift

		if cx < 0 {
			proxy.X -= cx << logicalShift
			disc.Dir.X = -disc.Dir.X
		} else if cx > h.width {
			proxy.X -= (cx - h.width) << logicalShift
			disc.Dir.X = -disc.Dir.X
		}
		if cy < 0 {
			proxy.Y -= cy << logicalShift
			disc.Dir.Y = -disc.Dir.Y
		} else if cy > h.height {
			proxy.Y -= (cy - h.height) << logicalShift
			disc.Dir.Y = -disc.Dir.Y
		}
	}
}

// clearCollisions resets the nearphase flags once the frame's snapshot has
// been encoded.
func (h *Hub) clearCollisions() {
	for _, disc := range h.discs {
		disc.Nearphase = false
	}
}
