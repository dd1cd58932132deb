package sqlite

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/uptrace/bun"
)

// WithWriteTx runs fn in an explicit write transaction. A returned error
// rolls the whole transaction back, so callers never leave partial scan
// state behind.
func (db *DB) WithWriteTx(ctx context.Context, fn func(ctx context.Context, tx bun.Tx) error) error {
	if db == nil || db.W == nil {
		return fmt.Errorf("write db is not initialized")
	}
	return db.W.RunInTx(ctx, &sql.TxOptions{}, fn)
}

// WithReadTx runs fn in an explicit read-only transaction.
func (db *DB) WithReadTx(ctx context.Context, fn func(ctx context.Context, tx bun.Tx) error) error {
	if db == nil || db.R == nil {
		return fmt.Errorf("read db is not initialized")
	}
	return db.R.RunInTx(ctx, &sql.TxOptions{ReadOnly: true}, fn)
}
