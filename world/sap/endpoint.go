// SPDX-FileCopyrightText: 2021 Softbear, Inc.
// SPDX-License-Identifier: AGPL-3.0-or-later

package sap

import "math"

// An endpoint is the min or max projection of a proxy's AABB onto one axis,
// packed into a single word: bit 63 is the max flag, bits 62..32 hold the
// owner's proxy id, bits 31..0 the signed coordinate. The max flag sits in
// the high position so raw words order close to coordinate order, but sort
// keys always use the decoded coordinate.
const (
	maxFlagBitmask = uint64(1) << 63
	ownerIDBitmask = 0x7FFFFFFF

	// Sentinel endpoint coordinates.
	coordMin = math.MinInt32
	coordMax = math.MaxInt32
)

func encodeEndpoint(isMax bool, id int32, coord int32) uint64 {
	endpoint := uint64(uint32(id))<<32 | uint64(uint32(coord))
	if isMax {
		endpoint |= maxFlagBitmask
	}
	return endpoint
}

func endpointIsMax(endpoint uint64) bool {
	return endpoint&maxFlagBitmask != 0
}

func endpointOwner(endpoint uint64) int32 {
	return int32(endpoint>>32) & ownerIDBitmask
}

// endpointCoord sign-extends the low word.
func endpointCoord(endpoint uint64) int32 {
	return int32(uint32(endpoint))
}
