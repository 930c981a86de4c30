// SPDX-FileCopyrightText: 2021 Softbear, Inc.
// SPDX-License-Identifier: AGPL-3.0-or-later

package sap

import "github.com/SoftbearStudios/sweep/world"

// addOverlappingPair records an overlap between two proxies: the encoded
// pair is appended to the pair manager and its index written into a free
// overlap slot of both. The duplicate-add guard lives here, not in findPair.
func (b *Broadphase) addOverlappingPair(a, other *world.Proxy) error {
	if !world.NeedsCollision(a, other) {
		return nil
	}
	if b.findPair(a, other) >= 0 {
		return nil
	}
	if b.pairsCount >= MaxOverlaps {
		return world.ErrOverCapacity
	}

	// Claim slots in both proxies before writing anything so a full
	// proxy fails without corrupting the other.
	slotA := freePairSlot(a)
	slotB := freePairSlot(other)
	if slotA < 0 || slotB < 0 {
		return world.ErrOverCapacity
	}

	b.pairs[b.pairsCount] = world.MakePair(a.ID, other.ID)
	a.OverlappingPairs[slotA] = int32(b.pairsCount)
	other.OverlappingPairs[slotB] = int32(b.pairsCount)
	b.pairsCount++
	return nil
}

// removeOverlappingPair drops the overlap between two proxies if one is
// recorded: clears the slot from both, swap-removes the last pair into the
// freed position and repoints the two proxies whose pair id just changed.
func (b *Broadphase) removeOverlappingPair(a, other *world.Proxy) {
	pairID := b.findPair(a, other)
	if pairID < 0 {
		return
	}

	for i := range a.OverlappingPairs {
		if a.OverlappingPairs[i] == pairID {
			a.OverlappingPairs[i] = world.InvalidPairID
		}
		if other.OverlappingPairs[i] == pairID {
			other.OverlappingPairs[i] = world.InvalidPairID
		}
	}

	last := int32(b.pairsCount - 1)
	b.pairs[pairID] = b.pairs[last]

	movedA := b.entities[b.pairs[pairID].LowID()]
	movedB := b.entities[b.pairs[pairID].HighID()]
	for i := range movedA.OverlappingPairs {
		if movedA.OverlappingPairs[i] == last {
			movedA.OverlappingPairs[i] = pairID
		}
		if movedB.OverlappingPairs[i] == last {
			movedB.OverlappingPairs[i] = pairID
		}
	}

	b.pairs[last] = 0
	b.pairsCount--
}

// findPair looks up the pair id for two proxies by scanning the first
// proxy's overlap slots. Lookup only; returns InvalidPairID when absent.
func (b *Broadphase) findPair(a, other *world.Proxy) int32 {
	pair := world.MakePair(a.ID, other.ID)
	for _, pairID := range a.OverlappingPairs {
		if pairID > world.InvalidPairID && b.pairs[pairID] == pair {
			return pairID
		}
	}
	return world.InvalidPairID
}

// removePairsContaining drops every pair the proxy participates in.
// Must read the slots live: removing a pair can repoint this proxy's other
// slots through the swap-remove.
func (b *Broadphase) removePairsContaining(proxy *world.Proxy) {
	for i := 0; i < len(proxy.OverlappingPairs); i++ {
		pairID := proxy.OverlappingPairs[i]
		if pairID >= 0 {
			pair := b.pairs[pairID]
			b.removeOverlappingPair(b.entities[pair.LowID()], b.entities[pair.HighID()])
		}
	}
}

// cacheOverlaps saves the proxy's current partners into the side buffer
// before its id changes during swap-remove.
func (b *Broadphase) cacheOverlaps(proxy *world.Proxy) {
	for i, pairID := range proxy.OverlappingPairs {
		if pairID >= 0 {
			pair := b.pairs[pairID]
			other := b.entities[pair.LowID()]
			if other == proxy {
				other = b.entities[pair.HighID()]
			}
			b.removed[i] = other
		} else {
			b.removed[i] = nil
		}
	}
}

// restoreOverlaps re-registers the cached partners against the proxy's new
// id so the canonical pair encodings are correct again.
func (b *Broadphase) restoreOverlaps(proxy *world.Proxy) error {
	for i, other := range b.removed {
		if other == nil {
			continue
		}
		b.removed[i] = nil
		if err := b.addOverlappingPair(proxy, other); err != nil {
			return err
		}
	}
	return nil
}

func freePairSlot(proxy *world.Proxy) int {
	for i, pairID := range proxy.OverlappingPairs {
		if pairID == world.InvalidPairID {
			return i
		}
	}
	return -1
}
