// SPDX-FileCopyrightText: 2021 Softbear, Inc.
// SPDX-License-Identifier: AGPL-3.0-or-later

package main

import (
	"fmt"
	"math/rand"
	"os"
	"sync/atomic"
	"time"

	"github.com/SoftbearStudios/sweep/cloud"
	"github.com/SoftbearStudios/sweep/world"
	"github.com/SoftbearStudios/sweep/world/sap"
	"github.com/aquilax/go-perlin"
)

const (
	framesPerSecond = 60
	updatePeriod    = time.Second / framesPerSecond
	debugPeriod     = time.Second * 5
	churnPeriod     = time.Second
)

// Hub owns the simulation and broadcasts snapshots to the clients.
type Hub struct {
	// Simulation state
	discs       []*Disc
	discByProxy map[*world.Proxy]*Disc
	broadphase  *sap.Broadphase
	width       int32 // view in pixels
	height      int32
	targetDiscs int
	classCounts [len(sizeClasses)]int
	churn       bool
	rng         *rand.Rand
	noise       *perlin.Perlin

	// Clients
	clients    map[*SocketClient]struct{}
	register   chan *SocketClient
	unregister chan *SocketClient

	// Cloud (and things that are served atomically by HTTP)
	cloud      *cloud.Cloud
	statusJSON atomic.Value

	// Frame accounting
	tick        uint64
	fps         float32
	frameCount  int
	lastFPSTick time.Time
	peakPairs     int
	funcBenches   []funcBench
	snapshotDiscs []DiscState

	// Timer based events
	updateTicker *time.Ticker
	updateTime   time.Time
	debugTicker  *time.Ticker
	churnTicker  *time.Ticker
	cloudTicker  *time.Ticker
}

func newHub(discs int, width, height int32, churn bool, statsTable, region string) *Hub {
	c, err := cloud.New(region, statsTable)
	if err != nil {
		fmt.Println("Cloud error:", err)
	}
	fmt.Println(c)

	seed := time.Now().UnixNano()
	h := &Hub{
		discByProxy:  make(map[*world.Proxy]*Disc, discs),
		broadphase:   sap.New(),
		width:        width,
		height:       height,
		targetDiscs:  discs,
		churn:        churn,
		rng:          rand.New(rand.NewSource(seed)),
		noise:        perlin.NewPerlin(2, 2, 3, seed),
		clients:      make(map[*SocketClient]struct{}),
		register:     make(chan *SocketClient, 8),
		unregister:   make(chan *SocketClient, 16),
		cloud:        c,
		updateTicker: time.NewTicker(updatePeriod),
		updateTime:   time.Now(),
		lastFPSTick:  time.Now(),
		debugTicker:  time.NewTicker(debugPeriod),
		churnTicker:  time.NewTicker(churnPeriod),
		cloudTicker:  time.NewTicker(cloud.UpdatePeriod),
	}

	h.Spawn()
	return h
}

func (h *Hub) run() {
	defer func() {
		if r := recover(); r != nil {
			panic(r)
		}
		println("That's it, I'm out -hub")
		os.Exit(1)
	}()

	h.Cloud()

	for {
		select {
		case client := <-h.register:
			h.clients[client] = struct{}{}
			client.hub = h
			client.Init()
		case client := <-h.unregister:
			if _, ok := h.clients[client]; ok {
				delete(h.clients, client)
				client.Close()
			}
		case <-h.updateTicker.C:
			now := time.Now()
			timeDelta := now.Sub(h.updateTime)
			h.updateTime = now

			// Falling behind, skip tick
			if timeDelta > updatePeriod*2 {
				break
			}

			h.frame(now)
		case <-h.churnTicker.C:
			if h.churn {
				h.Churn()
			}
		case <-h.debugTicker.C:
			h.Debug()
		case <-h.cloudTicker.C:
			h.Cloud()
		}
	}
}

// frame advances the simulation one tick and broadcasts a snapshot.
func (h *Hub) frame(now time.Time) {
	h.tick++
	h.Physics()

	// FPS over the trailing second, the way the demo counts it.
	h.frameCount++
	if now.Sub(h.lastFPSTick) >= time.Second {
		h.fps = float32(h.frameCount)
		h.frameCount = 0
		h.lastFPSTick = now
	}

	if len(h.clients) > 0 {
		buf, err := h.encodeSnapshot()
		if err != nil {
			fmt.Println("snapshot error:", err)
		} else {
			for client := range h.clients {
				client.Send(buf)
			}
		}
	}

	h.clearCollisions()
}

// Cloud refreshes the status endpoint and uploads run statistics.
func (h *Hub) Cloud() {
	statusJSON, err := json.Marshal(struct {
		Discs   int     `json:"discs"`
		Clients int     `json:"clients"`
		Pairs   int     `json:"pairs"`
		FPS     float32 `json:"fps"`
	}{
		Discs:   len(h.discs),
		Clients: len(h.clients),
		Pairs:   len(h.broadphase.Pairs()),
		FPS:     h.fps,
	})
	if err == nil {
		h.statusJSON.Store(statusJSON)
	} else {
		fmt.Println("error marshaling status:", err)
	}

	discs, clients, fps, pairs := len(h.discs), len(h.clients), h.fps, len(h.broadphase.Pairs())
	peak := h.peakPairs
	go func() {
		if err := h.cloud.UpdateSample(discs, clients, fps, pairs); err != nil {
			fmt.Println("Error updating cloud sample:", err)
		}
		if err := h.cloud.UpdatePeak(peak); err != nil {
			fmt.Println("Error updating cloud peak:", err)
		}
	}()
}
