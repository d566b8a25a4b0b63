package store

import (
	"context"
	"errors"

	"go.uber.org/zap"
	"gorm.io/gorm"
)

type contextKey int

const transactionKey contextKey = iota

var errTxClosed = errors.New("transaction is already closed")

// Tx is a gorm transaction carried by a context. Every store accessor called with that context
// joins it, so a job completion and the samples it brings are written atomically.
type Tx struct {
	id  int64
	db  *gorm.DB
	log *zap.SugaredLogger
}

// Commit commits the transaction of ctx, if any, and returns a context without it.
func Commit(ctx context.Context) (context.Context, error) {
	return endTransaction(ctx, (*Tx).Commit)
}

// Rollback aborts the transaction of ctx, if any, and returns a context without it.
func Rollback(ctx context.Context) (context.Context, error) {
	return endTransaction(ctx, (*Tx).Rollback)
}

func endTransaction(ctx context.Context, end func(*Tx) error) (context.Context, error) {
	tx, ok := ctx.Value(transactionKey).(*Tx)
	if !ok || tx == nil {
		return ctx, nil
	}
	return context.WithValue(ctx, transactionKey, nil), end(tx)
}

// FromContext returns the open transaction of ctx or nil.
func FromContext(ctx context.Context) *gorm.DB {
	if tx, ok := ctx.Value(transactionKey).(*Tx); ok && tx != nil {
		return tx.db
	}
	return nil
}

// newTransactionContext starts a transaction unless ctx already carries one, in which case the
// caller joins it.
func newTransactionContext(ctx context.Context, db *gorm.DB) (context.Context, error) {
	if FromContext(ctx) != nil {
		return ctx, nil
	}

	gormTx := db.Session(&gorm.Session{Context: ctx}).Begin()
	if gormTx.Error != nil {
		return ctx, gormTx.Error
	}

	tx := &Tx{db: gormTx, log: zap.S().Named("transaction")}
	// postgres ids are only useful to correlate logs, they get reused after vacuuming
	if gormTx.Dialector.Name() == "postgres" {
		var row struct{ ID int64 }
		gormTx.Raw("select txid_current() as id").Scan(&row)
		tx.id = row.ID
	}

	return context.WithValue(ctx, transactionKey, tx), nil
}

func (t *Tx) Commit() error {
	if t.db == nil {
		return errTxClosed
	}
	if err := t.db.Commit().Error; err != nil {
		t.log.Errorw("failed to commit transaction", "tx_id", t.id, "error", err)
		return err
	}
	t.db = nil
	t.log.Debugw("transaction committed", "tx_id", t.id)
	return nil
}

func (t *Tx) Rollback() error {
	if t.db == nil {
		return errTxClosed
	}
	if err := t.db.Rollback().Error; err != nil {
		t.log.Errorw("failed to rollback transaction", "tx_id", t.id, "error", err)
		return err
	}
	t.db = nil
	t.log.Debugw("transaction rolled back", "tx_id", t.id)
	return nil
}
