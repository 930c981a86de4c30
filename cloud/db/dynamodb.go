// SPDX-FileCopyrightText: 2021 Softbear, Inc.
// SPDX-License-Identifier: AGPL-3.0-or-later

package db

import (
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/aws/aws-sdk-go/service/dynamodb"
	"github.com/guregu/dynamo"
)

type DynamoDBDatabase struct {
	svc          *dynamodb.DynamoDB
	db           *dynamo.DB
	samplesTable dynamo.Table
	peaksTable   dynamo.Table
}

func NewDynamoDBDatabase(session *session.Session, table string) (*DynamoDBDatabase, error) {
	ddb := &DynamoDBDatabase{svc: dynamodb.New(session)}
	ddb.db = dynamo.NewFromIface(ddb.svc)
	ddb.samplesTable = ddb.db.Table(table + "-samples")
	ddb.peaksTable = ddb.db.Table(table + "-peaks")
	return ddb, nil
}

func (ddb *DynamoDBDatabase) UpdateSample(sample RunSample) error {
	return ddb.samplesTable.Put(sample).Run()
}

func (ddb *DynamoDBDatabase) UpdatePeak(peak RunPeak) error {
	err := ddb.peaksTable.Put(peak).If("attribute_not_exists(peakPairs) OR peakPairs < ?", peak.PeakPairs).Run()
	if err != nil {
		if _, ok := err.(*dynamodb.ConditionalCheckFailedException); ok {
			return nil
		}
	}
	return err
}

func (ddb *DynamoDBDatabase) ReadSamples(server string) (samples []RunSample, err error) {
	query := ddb.samplesTable.Get("server", server).Iter()

	for {
		var sample RunSample
		ok := query.Next(&sample)
		if !ok {
			err = query.Err()
			return
		}
		samples = append(samples, sample)
	}
}
