package mongostore

import (
	"context"
	"errors"
	"fmt"

	"go.mongodb.org/mongo-driver/mongo"
)

// ErrNoClient is returned when a session is requested without a client.
var ErrNoClient = errors.New("no mongo client configured")

// TxRunner runs functions inside a Mongo multi-document transaction. It needs
// a replica set or sharded cluster; standalone servers reject transactions.
type TxRunner struct {
	client *mongo.Client
}

func NewTxRunner(client *mongo.Client) *TxRunner {
	return &TxRunner{client: client}
}

// InTx calls fn with a session context. Collection calls made with that
// context join the transaction. A session already present in ctx is reused.
func (r *TxRunner) InTx(ctx context.Context, fn func(ctx context.Context) error) error {
	if mongo.SessionFromContext(ctx) != nil {
		return fn(ctx)
	}
	if r == nil || r.client == nil {
		return ErrNoClient
	}

	sess, err := r.client.StartSession()
	if err != nil {
		return fmt.Errorf("start mongo session: %w", err)
	}
	defer sess.EndSession(ctx)

	_, err = sess.WithTransaction(ctx, func(sc mongo.SessionContext) (interface{}, error) {
		return nil, fn(sc)
	})
	return err
}
