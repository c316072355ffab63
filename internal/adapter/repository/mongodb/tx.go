package mongodb

import (
	"context"
	"fmt"

	"github.com/carvio/listing-service/internal/platform/logger"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readconcern"
	"go.mongodb.org/mongo-driver/mongo/writeconcern"
	"go.uber.org/zap"
)

// TxRunner executes a function inside one MongoDB transaction. The session
// context is passed to the function as a plain context.Context, so the
// repositories stay unaware of whether they run transactionally.
type TxRunner struct {
	client *mongo.Client
	logger *logger.Logger
}

// NewTxRunner creates a transaction runner bound to the given client.
func NewTxRunner(client *mongo.Client, log *logger.Logger) *TxRunner {
	return &TxRunner{
		client: client,
		logger: log.Named("TxRunner"),
	}
}

// WithTransaction runs fn in a transaction with majority read and write
// concern. Any error returned by fn aborts the transaction.
func (r *TxRunner) WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	session, err := r.client.StartSession()
	if err != nil {
		r.logger.Error("Failed to start mongo session", zap.Error(err))
		return fmt.Errorf("start session failed: %w", err)
	}
	defer session.EndSession(ctx)

	txOptions := options.Transaction().
		SetReadConcern(readconcern.Majority()).
		SetWriteConcern(writeconcern.Majority())

	_, err = session.WithTransaction(ctx, func(sessCtx mongo.SessionContext) (interface{}, error) {
		return nil, fn(sessCtx)
	}, txOptions)
	return err
}
