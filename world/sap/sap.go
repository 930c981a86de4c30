// SPDX-FileCopyrightText: 2021 Softbear, Inc.
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package sap implements a persistent sweep-and-prune broadphase: it keeps
// one insertion-sorted endpoint array per axis and repairs them incrementally
// as proxies move, so each tick costs time proportional to how much the
// spatial order changed rather than to the population size. All storage is
// allocated once in New; no public call allocates afterwards.
package sap

import (
	"fmt"

	"github.com/SoftbearStudios/sweep/world"
)

const (
	// MaxEntities is the maximum number of registered proxies.
	MaxEntities = 10000

	// MaxOverlaps is the maximum number of simultaneous overlapping pairs.
	MaxOverlaps = 100000
)

const axes = 2

// Broadphase is an implementation of world.Broadphase using incremental
// sweep and prune. A single goroutine must own all mutation.
type Broadphase struct {
	// entities is the proxy table; slot 0 holds the sentinel and
	// numEntities tracks the used prefix above it.
	entities    []*world.Proxy
	numEntities int

	// endpoints holds one sorted endpoint array per axis, each of length
	// 2*(MaxEntities+1) including the sentinel words at both ends.
	endpoints [axes][]uint64

	// pairs[0..pairsCount) is the dense array of overlapping pairs; a
	// pair's index is its id and appears in both proxies' overlap slots.
	pairs      []world.Pair
	pairsCount int

	// removed caches the partners of a proxy whose id is about to change
	// during swap-remove.
	removed [world.MaxOverlapsPerEntity]*world.Proxy

	// sentinel is the reserved proxy in slot 0 whose endpoints guard both
	// ends of each axis array.
	sentinel world.Proxy
}

// New creates an empty Broadphase. All capacity is allocated here.
func New() *Broadphase {
	b := &Broadphase{
		entities: make([]*world.Proxy, MaxEntities+1),
		pairs:    make([]world.Pair, MaxOverlaps),
	}

	b.sentinel.Reset()
	b.sentinel.ID = 0
	b.entities[0] = &b.sentinel

	for axis := 0; axis < axes; axis++ {
		b.endpoints[axis] = make([]uint64, (MaxEntities+1)*2)
		b.endpoints[axis][0] = encodeEndpoint(false, 0, coordMin)
		b.endpoints[axis][1] = encodeEndpoint(true, 0, coordMax)
		b.sentinel.MinEndpoints[axis] = 0
		b.sentinel.MaxEndpoints[axis] = 1
	}

	return b
}

// Count returns the number of registered proxies, not counting the sentinel.
func (b *Broadphase) Count() int {
	return b.numEntities
}

// Pairs returns the current overlapping pairs as a view into the pair
// manager. Valid until the next mutating call; must not be modified.
func (b *Broadphase) Pairs() []world.Pair {
	return b.pairs[:b.pairsCount]
}

// ProxyByID resolves a registered proxy id.
func (b *Broadphase) ProxyByID(id int32) *world.Proxy {
	return b.entities[id]
}

// FirstProxyFromPair decodes the lower-id participant of a pair.
func (b *Broadphase) FirstProxyFromPair(pair world.Pair) *world.Proxy {
	return b.entities[pair.LowID()]
}

// SecondProxyFromPair decodes the higher-id participant of a pair.
func (b *Broadphase) SecondProxyFromPair(pair world.Pair) *world.Proxy {
	return b.entities[pair.HighID()]
}

// Add registers a proxy. If wakeOverlaps, its initial overlap set is emitted
// while the second axis sorts. Silently ignores a proxy that is already
// registered or cannot collide with anything.
func (b *Broadphase) Add(proxy *world.Proxy, wakeOverlaps bool) error {
	if proxy.FilterGroup == 0 || proxy.FilterMask == 0 || proxy.ID >= 0 {
		return nil
	}
	if b.numEntities >= MaxEntities {
		return world.ErrOverCapacity
	}

	for i := range proxy.OverlappingPairs {
		proxy.OverlappingPairs[i] = world.InvalidPairID
	}

	// Slot 0 is reserved for the sentinel.
	proxy.ID = int32(b.numEntities) + 1
	b.entities[proxy.ID] = proxy
	b.numEntities++

	// The sentinel's max endpoints define the new end of each axis array.
	for axis := 0; axis < axes; axis++ {
		b.sentinel.MaxEndpoints[axis] += 2
	}

	// Number of edges not counting the sentinel.
	nedges := int32(b.numEntities) * 2

	for axis := 0; axis < axes; axis++ {
		endpoints := b.endpoints[axis]

		// Shift the sentinel's max word up and write the new proxy's
		// endpoints just inside it.
		endpoints[nedges+1] = endpoints[nedges-1]

		min := proxyMin(proxy, axis)
		max := min + proxyExtent(proxy, axis)
		endpoints[nedges-1] = encodeEndpoint(false, proxy.ID, min)
		endpoints[nedges] = encodeEndpoint(true, proxy.ID, max)

		proxy.MinEndpoints[axis] = nedges - 1
		proxy.MaxEndpoints[axis] = nedges
	}

	// Overlaps can only be decided once both axes are in order, so the
	// first axis sorts silently and only the second emits events, at
	// which point testOverlap can consult the first.
	if err := b.sortMinDown(0, proxy.MinEndpoints[0], false); err != nil {
		return err
	}
	b.sortMaxDown(0, proxy.MaxEndpoints[0], false)
	if err := b.sortMinDown(1, proxy.MinEndpoints[1], wakeOverlaps); err != nil {
		return err
	}
	b.sortMaxDown(1, proxy.MaxEndpoints[1], wakeOverlaps)
	return nil
}

// Update incrementally repairs both axes after the client mutated the
// proxy's AABB fields. Each endpoint is shuffled by exactly one
// direction-appropriate kernel; unchanged endpoints cost nothing.
func (b *Broadphase) Update(proxy *world.Proxy) error {
	if proxy.ID < 0 {
		return world.ErrNotRegistered
	}

	for axis := 0; axis < axes; axis++ {
		endpoints := b.endpoints[axis]

		min := proxyMin(proxy, axis)
		max := min + proxyExtent(proxy, axis)

		minPos := proxy.MinEndpoints[axis]
		maxPos := proxy.MaxEndpoints[axis]

		dmin := min - endpointCoord(endpoints[minPos])
		dmax := max - endpointCoord(endpoints[maxPos])

		endpoints[minPos] = encodeEndpoint(false, proxy.ID, min)
		endpoints[maxPos] = encodeEndpoint(true, proxy.ID, max)

		// Expanding bounds.
		if dmin < 0 {
			if err := b.sortMinDown(axis, minPos, true); err != nil {
				return err
			}
		}
		if dmax > 0 {
			if err := b.sortMaxUp(axis, maxPos, true); err != nil {
				return err
			}
		}

		// Shrinking bounds.
		if dmin > 0 {
			b.sortMinUp(axis, minPos, true)
		}
		if dmax < 0 {
			b.sortMaxDown(axis, maxPos, true)
		}
	}
	return nil
}

// Remove deregisters a proxy: drops its pairs, floats its endpoints out of
// the sorted arrays and swap-removes it from the proxy table. The proxy may
// be pooled and reused after Reset.
func (b *Broadphase) Remove(proxy *world.Proxy) error {
	if proxy.ID < 0 {
		return world.ErrNotRegistered
	}

	b.removePairsContaining(proxy)

	// Number of edges not counting the sentinel.
	nedges := int32(b.numEntities) * 2

	// The sentinel's max endpoints move down to the new array end.
	for axis := 0; axis < axes; axis++ {
		b.sentinel.MaxEndpoints[axis] -= 2
	}

	// Float the proxy's endpoints to +inf with the up kernels, max first.
	// The sentinel's max word is still in place and temporarily
	// displaceable; it is rewritten below. This ordering is load-bearing.
	for axis := 0; axis < axes; axis++ {
		maxPos := proxy.MaxEndpoints[axis]
		b.endpoints[axis][maxPos] = encodeEndpoint(true, proxy.ID, coordMax)
		if err := b.sortMaxUp(axis, maxPos, false); err != nil {
			return err
		}
	}
	for axis := 0; axis < axes; axis++ {
		minPos := proxy.MinEndpoints[axis]
		b.endpoints[axis][minPos] = encodeEndpoint(false, proxy.ID, coordMax)
		b.sortMinUp(axis, minPos, false)
	}

	// Rewrite the sentinel's max at its new position and clear the
	// now-unused entries.
	for axis := 0; axis < axes; axis++ {
		endpoints := b.endpoints[axis]
		endpoints[nedges-1] = encodeEndpoint(true, 0, coordMax)
		endpoints[nedges] = 0
		endpoints[nedges+1] = 0
	}

	// Swap-remove from the proxy table. The last proxy's id changes, so
	// every pair containing it must be torn down and re-registered
	// against the new id; a plain rename would corrupt the canonical pair
	// encoding. Skip when removing the last proxy itself.
	if int(proxy.ID) < b.numEntities {
		last := b.entities[b.numEntities]
		b.cacheOverlaps(last)
		b.removePairsContaining(last)

		id := proxy.ID
		b.entities[id] = last
		last.ID = id

		if err := b.restoreOverlaps(last); err != nil {
			return err
		}

		// The moved proxy's endpoint words still carry the old id;
		// re-encode them in place, coordinates preserved.
		for axis := 0; axis < axes; axis++ {
			endpoints := b.endpoints[axis]
			minPos := last.MinEndpoints[axis]
			endpoints[minPos] = encodeEndpoint(false, last.ID, endpointCoord(endpoints[minPos]))
			maxPos := last.MaxEndpoints[axis]
			endpoints[maxPos] = encodeEndpoint(true, last.ID, endpointCoord(endpoints[maxPos]))
		}
	}

	b.entities[b.numEntities] = nil
	b.numEntities--
	proxy.ID = world.ProxyIDInvalid
	return nil
}

// Clear deregisters every proxy except the sentinel. Removing in reverse id
// order never triggers the swap path.
func (b *Broadphase) Clear() {
	for b.numEntities > 0 {
		_ = b.Remove(b.entities[b.numEntities])
	}
}

// TestProxiesOverlap tests two registered proxies' AABBs on both axes.
func (b *Broadphase) TestProxiesOverlap(a, other *world.Proxy) bool {
	return b.testOverlap(-1, a, other)
}

// Debug prints debug output to os.Stdout.
func (b *Broadphase) Debug() {
	fmt.Printf("sap broadphase: entities: %d, pairs: %d\n", b.numEntities, b.pairsCount)
}

// testOverlap tests every axis except ignoreAxis using the current endpoint
// words. Touching counts as overlapping.
func (b *Broadphase) testOverlap(ignoreAxis int, a, other *world.Proxy) bool {
	for axis := 0; axis < axes; axis++ {
		if axis == ignoreAxis {
			continue
		}
		endpoints := b.endpoints[axis]
		minA := endpointCoord(endpoints[a.MinEndpoints[axis]])
		maxA := endpointCoord(endpoints[a.MaxEndpoints[axis]])
		minB := endpointCoord(endpoints[other.MinEndpoints[axis]])
		maxB := endpointCoord(endpoints[other.MaxEndpoints[axis]])

		if maxA < minB || maxB < minA {
			return false
		}
	}
	return true
}

func proxyMin(proxy *world.Proxy, axis int) int32 {
	if axis == 0 {
		return proxy.X
	}
	return proxy.Y
}

func proxyExtent(proxy *world.Proxy, axis int) int32 {
	if axis == 0 {
		return proxy.Width
	}
	return proxy.Height
}
