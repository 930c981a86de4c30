// SPDX-FileCopyrightText: 2021 Softbear, Inc.
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package cloud uploads run statistics to remote storage.
package cloud

import (
	"fmt"
	"os"
	"time"

	"github.com/SoftbearStudios/sweep/cloud/db"
	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/session"
)

const UpdatePeriod = 30 * time.Second

// A nil Cloud is valid to use with any methods (acts as a no-op)
// This just means the server is in offline mode
type Cloud struct {
	server   string
	database db.Database
}

// New returns a nil Cloud when no table is configured.
func New(region, table string) (*Cloud, error) {
	if table == "" {
		return nil, nil
	}

	sess, err := session.NewSession(aws.NewConfig().WithRegion(region))
	if err != nil {
		return nil, err
	}

	database, err := db.NewDynamoDBDatabase(sess, table)
	if err != nil {
		return nil, err
	}

	hostname, err := os.Hostname()
	if err != nil {
		hostname = "unknown"
	}

	return &Cloud{server: hostname, database: database}, nil
}

func (cloud *Cloud) String() string {
	if cloud == nil {
		return "[offline]"
	}
	return fmt.Sprintf("[%s]", cloud.server)
}

func (cloud *Cloud) UpdateSample(discs, clients int, fps float32, pairs int) error {
	if cloud == nil {
		return nil
	}
	return cloud.database.UpdateSample(db.RunSample{
		Server:    cloud.server,
		Timestamp: unixMillis(),
		Discs:     discs,
		Clients:   clients,
		FPS:       fps,
		Pairs:     pairs,
	})
}

func (cloud *Cloud) UpdatePeak(peakPairs int) error {
	if cloud == nil {
		return nil
	}
	return cloud.database.UpdatePeak(db.RunPeak{
		Server:    cloud.server,
		PeakPairs: peakPairs,
		Timestamp: unixMillis(),
	})
}

func unixMillis() int64 {
	return time.Now().UnixNano() / int64(time.Millisecond)
}
