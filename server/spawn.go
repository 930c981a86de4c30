// SPDX-FileCopyrightText: 2021 Softbear, Inc.
// SPDX-License-Identifier: AGPL-3.0-or-later

package main

import (
	"fmt"
)

// Disc population in four size classes. Fractions are of the total
// population; the last class takes the remainder.
type sizeClass struct {
	radius   int32 // pixels
	velocity int32 // logical subpixels per frame
	fraction float32
}

var sizeClasses = [...]sizeClass{
	{radius: 5, velocity: 30, fraction: 0.3},
	{radius: 10, velocity: 30, fraction: 0.4},
	{radius: 25, velocity: 20, fraction: 0.27},
	{radius: 40, velocity: 20, fraction: 0.03},
}

const noiseFrequency = 0.004

// Spawn tops the population up to the target, small classes first.
func (h *Hub) Spawn() {
	for class := range sizeClasses {
		target := int(sizeClasses[class].fraction * float32(h.targetDiscs))
		if class == len(sizeClasses)-1 {
			target = h.targetDiscs - h.classCounts[0] - h.classCounts[1] - h.classCounts[2]
		}
		for h.classCounts[class] < target {
			if err := h.spawnDisc(class); err != nil {
				fmt.Println("spawn error:", err)
				return
			}
		}
	}
}

func (h *Hub) spawnDisc(class int) error {
	c := &sizeClasses[class]

	disc := &Disc{
		Radius:   c.radius,
		Velocity: c.velocity,
		class:    class,
	}
	disc.randomHeading(int64(h.rng.Intn(360)))

	proxy := &disc.Proxy
	proxy.Reset()
	frame := c.radius * 2
	proxy.Width = frame << logicalShift
	proxy.Height = frame << logicalShift
	proxy.FilterGroup = colNormal
	proxy.FilterMask = colNormal

	// Scatter by noise density so discs cluster instead of spreading
	// uniformly; clusters are what stress the pair manager.
	for {
		x := h.rng.Int31n(h.width - frame)
		y := h.rng.Int31n(h.height - frame)

		density := (h.noise.Noise2D(float64(x)*noiseFrequency, float64(y)*noiseFrequency) + 1) * 0.5
		if h.rng.Float64() < 0.25+0.75*density {
			proxy.X = x << logicalShift
			proxy.Y = y << logicalShift
			break
		}
	}

	if err := h.broadphase.Add(proxy, true); err != nil {
		return err
	}

	h.discs = append(h.discs, disc)
	h.discByProxy[proxy] = disc
	h.classCounts[class]++
	return nil
}

// Churn despawns a small fraction of the population; Spawn replaces it.
// Keeps Remove and the swap-with-last path exercised at runtime.
func (h *Hub) Churn() {
	n := len(h.discs) / 100
	for i := 0; i < n && len(h.discs) > 0; i++ {
		h.removeDisc(h.rng.Intn(len(h.discs)))
	}
	h.Spawn()
}

func (h *Hub) removeDisc(i int) {
	disc := h.discs[i]
	if err := h.broadphase.Remove(&disc.Proxy); err != nil {
		fmt.Println("remove error:", err)
		return
	}

	delete(h.discByProxy, &disc.Proxy)
	h.classCounts[disc.class]--

	end := len(h.discs) - 1
	h.discs[i] = h.discs[end]
	h.discs[end] = nil
	h.discs = h.discs[:end]
}
