// SPDX-FileCopyrightText: 2021 Softbear, Inc.
// SPDX-License-Identifier: AGPL-3.0-or-later

package main

import (
	"reflect"
	"unsafe"

	jsoniter "github.com/json-iterator/go"
)

type (
	// DiscState is one disc in a Snapshot, marshaled as a compact array
	// [x, y, radius, hit] in pixels.
	DiscState struct {
		X, Y   int32
		Radius int32
		Hit    bool
	}

	// Snapshot is the per-frame outbound message.
	Snapshot struct {
		Tick  uint64      `json:"tick"`
		FPS   float32     `json:"fps"`
		Pairs int         `json:"pairs"`
		Discs []DiscState `json:"discs"`
	}
)

// Make sure functions get run first
var json = func() jsoniter.API {
	neverEmpty := func(pointer unsafe.Pointer) bool { return false }

	jsoniter.RegisterTypeEncoderFunc(reflect.TypeOf(DiscState{}).String(), encodeDiscState, neverEmpty)

	return jsoniter.Config{
		IndentionStep:                 0,
		MarshalFloatWith6Digits:       true,
		EscapeHTML:                    false,
		SortMapKeys:                   true,
		TagKey:                        "json",
		ObjectFieldMustBeSimpleString: true,
		CaseSensitive:                 true,
	}.Froze()
}()

// encodeDiscState writes the compact array form; a keyed object per disc
// would triple the snapshot size.
func encodeDiscState(ptr unsafe.Pointer, stream *jsoniter.Stream) {
	disc := (*DiscState)(ptr)

	hit := 0
	if disc.Hit {
		hit = 1
	}

	stream.WriteArrayStart()
	stream.WriteInt32(disc.X)
	stream.WriteMore()
	stream.WriteInt32(disc.Y)
	stream.WriteMore()
	stream.WriteInt32(disc.Radius)
	stream.WriteMore()
	stream.WriteInt(hit)
	stream.WriteArrayEnd()
}

// encodeSnapshot reuses the Hub's scratch slice; the returned buffer is
// shared by every client this frame.
func (h *Hub) encodeSnapshot() ([]byte, error) {
	if h.snapshotDiscs == nil {
		h.snapshotDiscs = make([]DiscState, 0, len(h.discs))
	}
	h.snapshotDiscs = h.snapshotDiscs[:0]

	for _, disc := range h.discs {
		h.snapshotDiscs = append(h.snapshotDiscs, DiscState{
			X:      disc.Proxy.X >> logicalShift,
			Y:      disc.Proxy.Y >> logicalShift,
			Radius: disc.Radius,
			Hit:    disc.Nearphase,
		})
	}

	return json.Marshal(Snapshot{
		Tick:  h.tick,
		FPS:   h.fps,
		Pairs: len(h.broadphase.Pairs()),
		Discs: h.snapshotDiscs,
	})
}
