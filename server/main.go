// SPDX-FileCopyrightText: 2021 Softbear, Inc.
// SPDX-License-Identifier: AGPL-3.0-or-later

package main

import (
	"flag"
	"fmt"
	"log"
	"net/http"
	_ "net/http/pprof"
)

func (h *Hub) serveIndex(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Access-Control-Allow-Origin", "*")
	w.Header().Set("Content-Type", "application/json")
	buf, ok := h.statusJSON.Load().([]byte)
	if ok {
		_, _ = w.Write(buf)
	}
}

func (h *Hub) serveWs(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Println("upgrade error", err)
		return
	}

	h.register <- NewSocketClient(conn)
}

func main() {
	var (
		port       int
		discs      int
		width      int
		height     int
		churn      bool
		statsTable string
		region     string
	)

	flag.IntVar(&port, "port", 8192, "http service port")
	flag.IntVar(&discs, "discs", 2000, "number of discs to simulate")
	flag.IntVar(&width, "width", 900, "view width in pixels")
	flag.IntVar(&height, "height", 800, "view height in pixels")
	flag.BoolVar(&churn, "churn", true, "periodically despawn and respawn discs")
	flag.StringVar(&statsTable, "stats-table", "", "DynamoDB table prefix for run statistics (empty = offline)")
	flag.StringVar(&region, "region", "us-east-1", "AWS region for run statistics")
	flag.Parse()

	if discs <= 0 || width <= 0 || height <= 0 {
		log.Fatal("invalid arguments")
	}

	hub := newHub(discs, int32(width), int32(height), churn, statsTable, region)
	go hub.run()

	log.Println("sweep demo server started")

	http.HandleFunc("/", hub.serveIndex)
	http.HandleFunc("/ws", hub.serveWs)
	log.Fatal("ListenAndServe: ", http.ListenAndServe(fmt.Sprint(":", port), nil))
}
