// SPDX-FileCopyrightText: 2021 Softbear, Inc.
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package brute is a trivially correct world.Broadphase that recomputes the
// pair set by exhaustive scan. It exists as ground truth for the sap tests
// and as a benchmark baseline; it makes no incremental or allocation
// guarantees.
package brute

import (
	"fmt"

	"github.com/SoftbearStudios/sweep/world"
)

type Broadphase struct {
	// entities[0] is unused so ids match sap's (0 is the sentinel there).
	entities []*world.Proxy
	pairs    []world.Pair
}

func New() *Broadphase {
	return &Broadphase{
		entities: make([]*world.Proxy, 1, 64),
	}
}

func (b *Broadphase) Count() int {
	return len(b.entities) - 1
}

func (b *Broadphase) Add(proxy *world.Proxy, _ bool) error {
	if proxy.FilterGroup == 0 || proxy.FilterMask == 0 || proxy.ID >= 0 {
		return nil
	}
	if len(b.entities) > 0xFFFF {
		return world.ErrOverCapacity
	}
	proxy.ID = int32(len(b.entities))
	b.entities = append(b.entities, proxy)
	return nil
}

// Update is a no-op beyond validation; Pairs recomputes from scratch.
func (b *Broadphase) Update(proxy *world.Proxy) error {
	if proxy.ID < 0 {
		return world.ErrNotRegistered
	}
	return nil
}

func (b *Broadphase) Remove(proxy *world.Proxy) error {
	if proxy.ID < 0 {
		return world.ErrNotRegistered
	}

	end := len(b.entities) - 1
	if int(proxy.ID) != end {
		b.entities[proxy.ID] = b.entities[end]
		b.entities[proxy.ID].ID = proxy.ID
	}
	b.entities[end] = nil
	b.entities = b.entities[:end]
	proxy.ID = world.ProxyIDInvalid
	return nil
}

func (b *Broadphase) Clear() {
	for i := len(b.entities) - 1; i > 0; i-- {
		b.entities[i].ID = world.ProxyIDInvalid
		b.entities[i] = nil
	}
	b.entities = b.entities[:1]
}

func (b *Broadphase) Pairs() []world.Pair {
	b.pairs = b.pairs[:0]
	for i := 1; i < len(b.entities); i++ {
		a := b.entities[i]
		for j := i + 1; j < len(b.entities); j++ {
			other := b.entities[j]
			if a.Overlaps(other) && world.NeedsCollision(a, other) {
				b.pairs = append(b.pairs, world.MakePair(a.ID, other.ID))
			}
		}
	}
	return b.pairs
}

func (b *Broadphase) ProxyByID(id int32) *world.Proxy {
	return b.entities[id]
}

func (b *Broadphase) TestProxiesOverlap(a, other *world.Proxy) bool {
	return a.Overlaps(other)
}

func (b *Broadphase) Debug() {
	fmt.Printf("brute broadphase: entities: %d\n", b.Count())
}
