package mongo

import (
	"context"

	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readconcern"
	"go.mongodb.org/mongo-driver/mongo/writeconcern"
)

// TransactionRunner runs a unit of work inside a multi-document transaction when enabled.
// When disabled (standalone servers, or transactions switched off) the work runs directly and
// callers rely on their own write ordering.
type TransactionRunner struct {
	client  *mongo.Client
	enabled bool
}

func NewTransactionRunner(client *MongoClient, enabled bool) *TransactionRunner {
	r := &TransactionRunner{enabled: enabled}
	if client != nil {
		r.client = client.Client
	}
	return r
}

// Enabled reports whether work is wrapped in a server-side transaction.
func (r *TransactionRunner) Enabled() bool {
	return r.enabled && r.client != nil
}

func (r *TransactionRunner) RunInTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	if !r.Enabled() {
		return fn(ctx)
	}
	return runTransaction(ctx, r.client, fn)
}

// runTransaction is a variable so tests can run without a replica set.
var runTransaction = func(ctx context.Context, client *mongo.Client, fn func(ctx context.Context) error) error {
	session, err := client.StartSession()
	if err != nil {
		return err
	}
	defer session.EndSession(ctx)

	txnOpts := options.Transaction().
		SetReadConcern(readconcern.Snapshot()).
		SetWriteConcern(writeconcern.Majority())

	_, err = session.WithTransaction(ctx, func(sc mongo.SessionContext) (interface{}, error) {
		return nil, fn(sc)
	}, txnOpts)
	return err
}
