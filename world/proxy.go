// SPDX-FileCopyrightText: 2021 Softbear, Inc.
// SPDX-License-Identifier: AGPL-3.0-or-later

package world

const (
	// MaxOverlapsPerEntity bounds how many pairs a single proxy can
	// participate in at any given time.
	MaxOverlapsPerEntity = 10

	// InvalidPairID marks an empty slot in Proxy.OverlappingPairs.
	InvalidPairID = -1

	// ProxyIDInvalid means the proxy is not registered with a broadphase.
	// ID 0 is reserved for the sentinel.
	ProxyIDInvalid = -1
)

// Proxy is a broadphase's handle for a client entity.
// The client owns the AABB and filter fields and writes them before Add and
// before each Update; the broadphase owns ID, the endpoint indices and the
// overlap slots. A Proxy must be initialized with Reset (or NewProxy) before
// its first Add and may be pooled and reused after Remove.
type Proxy struct {
	// AABB origin and extent in integer logical units.
	X, Y          int32
	Width, Height int32

	// Collision filter group and mask.
	FilterGroup uint16
	FilterMask  uint16

	// ID within the broadphase, ProxyIDInvalid when not registered.
	ID int32

	// Indices of this proxy's min/max endpoints in the X and Y endpoint
	// arrays. Maintained by the broadphase.
	MinEndpoints [2]int32
	MaxEndpoints [2]int32

	// Indices into the pair manager for pairs containing this proxy,
	// InvalidPairID in empty slots. Maintained by the broadphase.
	OverlappingPairs [MaxOverlapsPerEntity]int32
}

// NewProxy returns a reset Proxy.
func NewProxy() *Proxy {
	p := &Proxy{}
	p.Reset()
	return p
}

// Reset reinitializes all fields without allocating, for pooling.
// Must not be called while the proxy is registered.
func (p *Proxy) Reset() {
	p.X, p.Y = 0, 0
	p.Width, p.Height = 0, 0
	p.FilterGroup, p.FilterMask = 0, 0
	p.ID = ProxyIDInvalid
	p.MinEndpoints[0], p.MinEndpoints[1] = 0, 0
	p.MaxEndpoints[0], p.MaxEndpoints[1] = 0, 0
	for i := range p.OverlappingPairs {
		p.OverlappingPairs[i] = InvalidPairID
	}
}

// Registered returns whether the proxy is currently in a broadphase.
func (p *Proxy) Registered() bool {
	return p.ID >= 0
}

// InBroadphaseCollision returns whether any overlap slot is occupied.
func (p *Proxy) InBroadphaseCollision() bool {
	for _, pairID := range p.OverlappingPairs {
		if pairID >= 0 {
			return true
		}
	}
	return false
}

// Overlaps tests the raw AABB fields of both proxies on both axes.
// Touching counts as overlapping.
func (p *Proxy) Overlaps(other *Proxy) bool {
	if p.X+p.Width < other.X || other.X+other.Width < p.X {
		return false
	}
	return p.Y+p.Height >= other.Y && other.Y+other.Height >= p.Y
}

// NeedsCollision applies the collision rules set by the client.
func NeedsCollision(a, b *Proxy) bool {
	return a.FilterGroup&b.FilterMask != 0 && b.FilterGroup&a.FilterMask != 0
}
