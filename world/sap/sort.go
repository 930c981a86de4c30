// SPDX-FileCopyrightText: 2021 Softbear, Inc.
// SPDX-License-Identifier: AGPL-3.0-or-later

package sap

// The four insertion-sort kernels. Each shuffles one endpoint toward its
// sorted position by swapping with its neighbor in one direction, keeps the
// endpoint back-references of both owners current, and may emit an overlap
// event when a min passes a max (or vice versa):
//
//	min down / max up   -> gained coverage on this axis, addOverlappingPair
//	                       if the other axis overlaps too
//	min up / max down   -> lost coverage, removeOverlappingPair
//
// Passing an endpoint of the same kind never changes coverage. The loop
// conditions are strict, so endpoints at equal coordinates (touching AABBs)
// stay overlapping, and the sentinel words at both ends guarantee
// termination without bounds checks.

// sortMinDown shuffles a min endpoint down. Moving down can only add
// overlaps.
func (b *Broadphase) sortMinDown(axis int, pos int32, updateOverlaps bool) error {
	endpoints := b.endpoints[axis]
	minEP := endpoints[pos]
	prevEP := endpoints[pos-1]
	entity := b.entities[endpointOwner(minEP)]

	for endpointCoord(minEP) < endpointCoord(prevEP) {
		prevEntity := b.entities[endpointOwner(prevEP)]

		if endpointIsMax(prevEP) {
			if updateOverlaps && b.testOverlap(axis, entity, prevEntity) {
				if err := b.addOverlappingPair(entity, prevEntity); err != nil {
					return err
				}
			}
			prevEntity.MaxEndpoints[axis]++
		} else {
			prevEntity.MinEndpoints[axis]++
		}
		entity.MinEndpoints[axis]--

		endpoints[pos] = prevEP
		endpoints[pos-1] = minEP

		pos--
		prevEP = endpoints[pos-1]
	}
	return nil
}

// sortMinUp shuffles a min endpoint up. Moving up can only remove overlaps.
func (b *Broadphase) sortMinUp(axis int, pos int32, updateOverlaps bool) {
	endpoints := b.endpoints[axis]
	minEP := endpoints[pos]
	nextEP := endpoints[pos+1]
	entity := b.entities[endpointOwner(minEP)]

	for endpointCoord(minEP) > endpointCoord(nextEP) {
		nextEntity := b.entities[endpointOwner(nextEP)]

		if endpointIsMax(nextEP) {
			if updateOverlaps {
				b.removeOverlappingPair(entity, nextEntity)
			}
			nextEntity.MaxEndpoints[axis]--
		} else {
			nextEntity.MinEndpoints[axis]--
		}
		entity.MinEndpoints[axis]++

		endpoints[pos] = nextEP
		endpoints[pos+1] = minEP

		pos++
		nextEP = endpoints[pos+1]
	}
}

// sortMaxDown shuffles a max endpoint down. Moving down can only remove
// overlaps.
func (b *Broadphase) sortMaxDown(axis int, pos int32, updateOverlaps bool) {
	endpoints := b.endpoints[axis]
	maxEP := endpoints[pos]
	prevEP := endpoints[pos-1]
	entity := b.entities[endpointOwner(maxEP)]

	for endpointCoord(maxEP) < endpointCoord(prevEP) {
		prevEntity := b.entities[endpointOwner(prevEP)]

		if !endpointIsMax(prevEP) {
			if updateOverlaps {
				b.removeOverlappingPair(entity, prevEntity)
			}
			prevEntity.MinEndpoints[axis]++
		} else {
			prevEntity.MaxEndpoints[axis]++
		}
		entity.MaxEndpoints[axis]--

		endpoints[pos] = prevEP
		endpoints[pos-1] = maxEP

		pos--
		prevEP = endpoints[pos-1]
	}
}

// sortMaxUp shuffles a max endpoint up. Moving up can only add overlaps.
func (b *Broadphase) sortMaxUp(axis int, pos int32, updateOverlaps bool) error {
	endpoints := b.endpoints[axis]
	maxEP := endpoints[pos]
	nextEP := endpoints[pos+1]
	entity := b.entities[endpointOwner(maxEP)]

	for endpointCoord(maxEP) > endpointCoord(nextEP) {
		nextEntity := b.entities[endpointOwner(nextEP)]

		if !endpointIsMax(nextEP) {
			if updateOverlaps && b.testOverlap(axis, entity, nextEntity) {
				if err := b.addOverlappingPair(entity, nextEntity); err != nil {
					return err
				}
			}
			nextEntity.MinEndpoints[axis]--
		} else {
			nextEntity.MaxEndpoints[axis]--
		}
		entity.MaxEndpoints[axis]++

		endpoints[pos] = nextEP
		endpoints[pos+1] = maxEP

		pos++
		nextEP = endpoints[pos+1]
	}
	return nil
}
