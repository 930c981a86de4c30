// SPDX-FileCopyrightText: 2021 Softbear, Inc.
// SPDX-License-Identifier: AGPL-3.0-or-later

package sap

import (
	"math/rand"
	"testing"

	"github.com/SoftbearStudios/sweep/world"
	"github.com/SoftbearStudios/sweep/world/brute"
)

func TestSAPBroadphase(t *testing.T) {
	world.Test(t, func() world.Broadphase {
		return New()
	})
}

func BenchmarkSAPBroadphase(b *testing.B) {
	world.Bench(b, func() world.Broadphase {
		return New()
	}, 4096)
}

func newBox(x, y, w, h int32) *world.Proxy {
	p := world.NewProxy()
	p.X, p.Y, p.Width, p.Height = x, y, w, h
	p.FilterGroup, p.FilterMask = 1, 1
	return p
}

func mustAdd(t *testing.T, b *Broadphase, p *world.Proxy) {
	t.Helper()
	if err := b.Add(p, true); err != nil {
		t.Fatalf("add: %v", err)
	}
	if !p.Registered() {
		t.Fatalf("proxy not registered after add")
	}
}

func mustUpdate(t *testing.T, b *Broadphase, p *world.Proxy) {
	t.Helper()
	if err := b.Update(p); err != nil {
		t.Fatalf("update: %v", err)
	}
}

func hasPair(b *Broadphase, x, y *world.Proxy) bool {
	for _, pair := range b.Pairs() {
		a, o := b.FirstProxyFromPair(pair), b.SecondProxyFromPair(pair)
		if (a == x && o == y) || (a == y && o == x) {
			return true
		}
	}
	return false
}

func TestSeparateApproachSeparate(t *testing.T) {
	b := New()
	a := newBox(0, 0, 10, 10)
	o := newBox(20, 0, 10, 10)
	mustAdd(t, b, a)
	mustAdd(t, b, o)

	if n := len(b.Pairs()); n != 0 {
		t.Fatalf("separated boxes: %d pairs", n)
	}

	o.X = 8
	mustUpdate(t, b, o)
	if !hasPair(b, a, o) || len(b.Pairs()) != 1 {
		t.Fatalf("approached boxes: pairs %v", b.Pairs())
	}

	o.X = 100
	mustUpdate(t, b, o)
	if n := len(b.Pairs()); n != 0 {
		t.Fatalf("re-separated boxes: %d pairs", n)
	}
	checkInvariants(t, b)
}

func TestRemoveMiddleProxy(t *testing.T) {
	b := New()
	a := newBox(0, 0, 10, 10)
	o := newBox(5, 5, 10, 10)
	c := newBox(8, 2, 10, 10)
	mustAdd(t, b, a)
	mustAdd(t, b, o)
	mustAdd(t, b, c)

	if len(b.Pairs()) != 3 || !hasPair(b, a, o) || !hasPair(b, a, c) || !hasPair(b, o, c) {
		t.Fatalf("triple overlap: pairs %v", b.Pairs())
	}

	// Removing the middle proxy triggers swap-with-last; pairs involving
	// the moved proxy must still resolve to the right participants.
	if err := b.Remove(o); err != nil {
		t.Fatalf("remove: %v", err)
	}
	if len(b.Pairs()) != 1 || !hasPair(b, a, c) {
		t.Fatalf("after remove: pairs %v", b.Pairs())
	}
	if o.Registered() {
		t.Fatalf("removed proxy still registered")
	}

	for _, p := range []*world.Proxy{a, c} {
		valid := 0
		for _, pairID := range p.OverlappingPairs {
			if pairID >= 0 {
				valid++
			}
		}
		if valid != 1 {
			t.Fatalf("proxy %d has %d valid overlap slots, want 1", p.ID, valid)
		}
	}
	checkInvariants(t, b)
}

func TestClear(t *testing.T) {
	b := New()
	mustAdd(t, b, newBox(0, 0, 10, 10))
	mustAdd(t, b, newBox(5, 5, 10, 10))
	mustAdd(t, b, newBox(8, 2, 10, 10))

	b.Clear()

	if b.Count() != 0 || len(b.Pairs()) != 0 {
		t.Fatalf("clear left count=%d pairs=%d", b.Count(), len(b.Pairs()))
	}
	for axis := 0; axis < axes; axis++ {
		endpoints := b.endpoints[axis]
		if endpoints[0] != encodeEndpoint(false, 0, coordMin) || endpoints[1] != encodeEndpoint(true, 0, coordMax) {
			t.Fatalf("axis %d sentinel endpoints corrupted after clear", axis)
		}
	}
	checkInvariants(t, b)
}

func TestFilterMismatch(t *testing.T) {
	b := New()
	a := newBox(0, 0, 10, 10)
	a.FilterGroup, a.FilterMask = 1, 2
	o := newBox(5, 5, 10, 10)
	o.FilterGroup, o.FilterMask = 4, 1
	mustAdd(t, b, a)
	mustAdd(t, b, o)

	if world.NeedsCollision(a, o) {
		t.Fatalf("filters should not collide")
	}
	if !b.TestProxiesOverlap(a, o) {
		t.Fatalf("AABBs should overlap")
	}
	if n := len(b.Pairs()); n != 0 {
		t.Fatalf("filtered pair recorded: %d", n)
	}
}

func TestFilterRejectedAdd(t *testing.T) {
	b := New()
	p := newBox(0, 0, 10, 10)
	p.FilterGroup = 0
	if err := b.Add(p, true); err != nil {
		t.Fatalf("filter-rejected add: %v", err)
	}
	if p.Registered() || b.Count() != 0 {
		t.Fatalf("filter-rejected proxy was registered")
	}
}

func TestDoubleAdd(t *testing.T) {
	b := New()
	p := newBox(0, 0, 10, 10)
	mustAdd(t, b, p)
	id := p.ID
	if err := b.Add(p, true); err != nil {
		t.Fatalf("double add: %v", err)
	}
	if b.Count() != 1 || p.ID != id {
		t.Fatalf("double add changed state: count=%d id=%d", b.Count(), p.ID)
	}
}

func TestNotRegistered(t *testing.T) {
	b := New()
	p := newBox(0, 0, 10, 10)
	if err := b.Update(p); err != world.ErrNotRegistered {
		t.Fatalf("update unregistered: %v", err)
	}
	if err := b.Remove(p); err != world.ErrNotRegistered {
		t.Fatalf("remove unregistered: %v", err)
	}
}

func TestTouchingCountsAsOverlap(t *testing.T) {
	b := New()
	a := newBox(0, 0, 10, 10)
	o := newBox(10, 0, 10, 10) // shares the x=10 edge
	mustAdd(t, b, a)
	mustAdd(t, b, o)

	if !hasPair(b, a, o) {
		t.Fatalf("touching AABBs should overlap")
	}

	// Cross into real overlap and back out again; the crossings drive
	// the add/remove events.
	o.X = 8
	mustUpdate(t, b, o)
	if !hasPair(b, a, o) {
		t.Fatalf("overlapping AABBs should overlap")
	}

	o.X = 10
	mustUpdate(t, b, o)
	if !hasPair(b, a, o) {
		t.Fatalf("backing off to touching should stay overlapping")
	}

	o.X = 12
	mustUpdate(t, b, o)
	if len(b.Pairs()) != 0 {
		t.Fatalf("separated AABBs should not overlap")
	}
}

func TestZeroAreaProxy(t *testing.T) {
	b := New()
	a := newBox(0, 0, 10, 10)
	point := newBox(5, 5, 0, 0)
	mustAdd(t, b, a)
	mustAdd(t, b, point)

	if !hasPair(b, a, point) {
		t.Fatalf("point inside box should overlap")
	}

	point.X, point.Y = 50, 50
	mustUpdate(t, b, point)
	if len(b.Pairs()) != 0 {
		t.Fatalf("point outside box should not overlap")
	}
}

func TestUpdateUnchangedIsNoop(t *testing.T) {
	b := New()
	a := newBox(0, 0, 10, 10)
	o := newBox(5, 5, 10, 10)
	mustAdd(t, b, a)
	mustAdd(t, b, o)

	var before [axes][]uint64
	for axis := 0; axis < axes; axis++ {
		before[axis] = append([]uint64(nil), b.endpoints[axis][:2*(b.numEntities+1)]...)
	}

	mustUpdate(t, b, a)
	mustUpdate(t, b, o)

	for axis := 0; axis < axes; axis++ {
		for i, endpoint := range before[axis] {
			if b.endpoints[axis][i] != endpoint {
				t.Fatalf("axis %d endpoint %d changed on no-op update", axis, i)
			}
		}
	}
	if len(b.Pairs()) != 1 {
		t.Fatalf("no-op update changed pairs: %v", b.Pairs())
	}
}

func TestUpdateOrderIndependence(t *testing.T) {
	// The same final positions must yield the same pair set regardless of
	// the order proxies were updated in.
	final := [][4]int32{{0, 0, 20, 20}, {10, 10, 20, 20}, {50, 0, 20, 20}, {15, 5, 20, 20}}

	run := func(perm []int) map[world.Pair]struct{} {
		b := New()
		proxies := make([]*world.Proxy, len(final))
		for i := range proxies {
			proxies[i] = newBox(int32(i)*100, 1000, 20, 20)
			mustAdd(t, b, proxies[i])
		}
		for _, i := range perm {
			f := final[i]
			proxies[i].X, proxies[i].Y = f[0], f[1]
			mustUpdate(t, b, proxies[i])
		}
		set := make(map[world.Pair]struct{})
		for _, pair := range b.Pairs() {
			set[pair] = struct{}{}
		}
		return set
	}

	want := run([]int{0, 1, 2, 3})
	for _, perm := range [][]int{{3, 2, 1, 0}, {1, 3, 0, 2}, {2, 0, 3, 1}} {
		got := run(perm)
		if len(got) != len(want) {
			t.Fatalf("perm %v: %d pairs, want %d", perm, len(got), len(want))
		}
		for pair := range want {
			if _, ok := got[pair]; !ok {
				t.Fatalf("perm %v: missing pair (%d, %d)", perm, pair.LowID(), pair.HighID())
			}
		}
	}
}

func TestAddRemoveRoundTrip(t *testing.T) {
	b := New()
	a := newBox(0, 0, 10, 10)
	mustAdd(t, b, a)

	var before [axes][]uint64
	for axis := 0; axis < axes; axis++ {
		before[axis] = append([]uint64(nil), b.endpoints[axis][:2*(b.numEntities+1)]...)
	}

	o := newBox(5, 5, 10, 10)
	mustAdd(t, b, o)
	if err := b.Remove(o); err != nil {
		t.Fatalf("remove: %v", err)
	}

	if b.Count() != 1 || len(b.Pairs()) != 0 {
		t.Fatalf("add+remove left count=%d pairs=%d", b.Count(), len(b.Pairs()))
	}
	for axis := 0; axis < axes; axis++ {
		for i, endpoint := range before[axis] {
			if b.endpoints[axis][i] != endpoint {
				t.Fatalf("axis %d endpoint %d differs after add+remove", axis, i)
			}
		}
	}
	checkInvariants(t, b)
}

func TestGridTranslation(t *testing.T) {
	b := New()
	const side = 32 // 1024 boxes
	proxies := make([]*world.Proxy, 0, side*side)
	for i := 0; i < side*side; i++ {
		p := newBox(int32(i%side)*20, int32(i/side)*20, 10, 10)
		mustAdd(t, b, p)
		proxies = append(proxies, p)
	}
	if n := len(b.Pairs()); n != 0 {
		t.Fatalf("grid should not overlap: %d pairs", n)
	}

	for _, p := range proxies {
		p.X++
		p.Y++
		mustUpdate(t, b, p)
	}
	if n := len(b.Pairs()); n != 0 {
		t.Fatalf("translated grid should not overlap: %d pairs", n)
	}
	checkInvariants(t, b)
}

func TestOverlapSlotsOverflow(t *testing.T) {
	b := New()
	center := newBox(0, 0, 100, 100)
	mustAdd(t, b, center)

	for i := 0; i < world.MaxOverlapsPerEntity; i++ {
		mustAdd(t, b, newBox(int32(i)*5, 0, 4, 4))
	}
	if got := len(b.Pairs()); got != world.MaxOverlapsPerEntity {
		t.Fatalf("expected %d pairs, got %d", world.MaxOverlapsPerEntity, got)
	}

	// The center's overlap slots are now full; one more overlapping proxy
	// must fail loudly instead of silently corrupting.
	extra := newBox(60, 60, 4, 4)
	if err := b.Add(extra, true); err != world.ErrOverCapacity {
		t.Fatalf("overflow add: %v", err)
	}
}

func TestAllocationFree(t *testing.T) {
	b := New()
	proxies := make([]*world.Proxy, 64)
	for i := range proxies {
		proxies[i] = newBox(int32(i)*8, int32(i%8)*8, 12, 12)
		mustAdd(t, b, proxies[i])
	}

	spare := newBox(1000, 1000, 12, 12)

	allocs := testing.AllocsPerRun(100, func() {
		for _, p := range proxies {
			p.X += 3
			_ = b.Update(p)
		}
		_ = b.Pairs()
		for _, p := range proxies {
			p.X -= 3
			_ = b.Update(p)
		}
		_ = b.Add(spare, true)
		_ = b.Remove(spare)
		spare.Reset()
		spare.X, spare.Y, spare.Width, spare.Height = 1000, 1000, 12, 12
		spare.FilterGroup, spare.FilterMask = 1, 1
	})
	if allocs != 0 {
		t.Fatalf("%v allocations per frame, want 0", allocs)
	}
}

// tracked links the two copies of one logical box registered with the sap
// and oracle broadphases.
type tracked struct {
	sap, oracle *world.Proxy
}

func TestRandomizedAgainstBrute(t *testing.T) {
	b := New()
	oracle := brute.New()
	rng := rand.New(rand.NewSource(7))

	var live []tracked

	// Even origins and odd extents keep min and max endpoints from ever
	// landing exactly equal; see world.Test for why.
	spawn := func() {
		x, y := 2*rng.Int31n(1024), 2*rng.Int31n(1024)
		w, h := 9+2*rng.Int31n(36), 9+2*rng.Int31n(36)
		tr := tracked{sap: newBox(x, y, w, h), oracle: newBox(x, y, w, h)}
		if err := b.Add(tr.sap, true); err != nil {
			t.Fatalf("sap add: %v", err)
		}
		if err := oracle.Add(tr.oracle, true); err != nil {
			t.Fatalf("oracle add: %v", err)
		}
		live = append(live, tr)
	}

	for i := 0; i < 64; i++ {
		spawn()
	}

	for step := 0; step < 400; step++ {
		switch op := rng.Intn(10); {
		case op < 6 && len(live) > 0: // move
			tr := live[rng.Intn(len(live))]
			dx, dy := 2*(rng.Int31n(65)-32), 2*(rng.Int31n(65)-32)
			tr.sap.X += dx
			tr.sap.Y += dy
			tr.oracle.X += dx
			tr.oracle.Y += dy
			if err := b.Update(tr.sap); err != nil {
				t.Fatalf("sap update: %v", err)
			}
		case op < 8 && len(live) > 0: // remove
			i := rng.Intn(len(live))
			tr := live[i]
			if err := b.Remove(tr.sap); err != nil {
				t.Fatalf("sap remove: %v", err)
			}
			if err := oracle.Remove(tr.oracle); err != nil {
				t.Fatalf("oracle remove: %v", err)
			}
			live[i] = live[len(live)-1]
			live = live[:len(live)-1]
		default: // add
			spawn()
		}

		checkInvariants(t, b)
		comparePairSets(t, b, oracle, live)
	}
}

// comparePairSets checks that sap and oracle agree on which tracked proxies
// overlap. Ids differ between the two, so pairs are compared through the
// tracked records.
func comparePairSets(t *testing.T, b *Broadphase, oracle *brute.Broadphase, live []tracked) {
	t.Helper()

	index := make(map[*world.Proxy]int, len(live))
	for i, tr := range live {
		index[tr.sap] = i
	}
	oracleIndex := make(map[*world.Proxy]int, len(live))
	for i, tr := range live {
		oracleIndex[tr.oracle] = i
	}

	key := func(i, j int) [2]int {
		if j < i {
			i, j = j, i
		}
		return [2]int{i, j}
	}

	got := make(map[[2]int]struct{})
	for _, pair := range b.Pairs() {
		i := index[b.FirstProxyFromPair(pair)]
		j := index[b.SecondProxyFromPair(pair)]
		got[key(i, j)] = struct{}{}
	}

	want := make(map[[2]int]struct{})
	for _, pair := range oracle.Pairs() {
		i := oracleIndex[oracle.ProxyByID(pair.LowID())]
		j := oracleIndex[oracle.ProxyByID(pair.HighID())]
		want[key(i, j)] = struct{}{}
	}

	if len(got) != len(want) {
		t.Fatalf("pair count mismatch: sap %d, oracle %d", len(got), len(want))
	}
	for k := range want {
		if _, ok := got[k]; !ok {
			t.Fatalf("sap missing pair %v", k)
		}
	}
}

// checkInvariants verifies the structural invariants that must hold between
// public calls: sorted endpoint arrays with sentinels in place, consistent
// back-references, and mutually consistent pair bookkeeping.
func checkInvariants(t *testing.T, b *Broadphase) {
	t.Helper()

	length := 2 * (b.numEntities + 1)
	for axis := 0; axis < axes; axis++ {
		endpoints := b.endpoints[axis]

		if endpoints[0] != encodeEndpoint(false, 0, coordMin) {
			t.Fatalf("axis %d: sentinel min corrupted", axis)
		}
		if endpoints[length-1] != encodeEndpoint(true, 0, coordMax) {
			t.Fatalf("axis %d: sentinel max corrupted", axis)
		}

		for i := 1; i < length; i++ {
			if endpointCoord(endpoints[i]) < endpointCoord(endpoints[i-1]) {
				t.Fatalf("axis %d: endpoints out of order at %d", axis, i)
			}
		}
	}

	for id := 1; id <= b.numEntities; id++ {
		p := b.entities[id]
		if p == nil || p.ID != int32(id) {
			t.Fatalf("proxy table slot %d inconsistent", id)
		}
		for axis := 0; axis < axes; axis++ {
			endpoints := b.endpoints[axis]
			min := endpoints[p.MinEndpoints[axis]]
			max := endpoints[p.MaxEndpoints[axis]]
			if endpointIsMax(min) || endpointOwner(min) != p.ID || endpointCoord(min) != proxyMin(p, axis) {
				t.Fatalf("proxy %d axis %d: bad min endpoint", id, axis)
			}
			if !endpointIsMax(max) || endpointOwner(max) != p.ID || endpointCoord(max) != proxyMin(p, axis)+proxyExtent(p, axis) {
				t.Fatalf("proxy %d axis %d: bad max endpoint", id, axis)
			}
		}
	}

	seen := make(map[world.Pair]struct{}, b.pairsCount)
	for k := 0; k < b.pairsCount; k++ {
		pair := b.pairs[k]
		if _, ok := seen[pair]; ok {
			t.Fatalf("duplicate pair at %d", k)
		}
		seen[pair] = struct{}{}

		for _, p := range []*world.Proxy{b.entities[pair.LowID()], b.entities[pair.HighID()]} {
			refs := 0
			for _, pairID := range p.OverlappingPairs {
				if pairID == int32(k) {
					refs++
				}
			}
			if refs != 1 {
				t.Fatalf("pair %d referenced %d times by proxy %d, want 1", k, refs, p.ID)
			}
		}
	}

	for id := 1; id <= b.numEntities; id++ {
		for _, pairID := range b.entities[id].OverlappingPairs {
			if pairID == world.InvalidPairID {
				continue
			}
			if pairID < 0 || int(pairID) >= b.pairsCount {
				t.Fatalf("proxy %d references pair %d outside [0, %d)", id, pairID, b.pairsCount)
			}
			if !b.pairs[pairID].Contains(int32(id)) {
				t.Fatalf("proxy %d references pair %d that does not contain it", id, pairID)
			}
		}
	}
}
