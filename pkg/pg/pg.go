package pg

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/schema"
)

type txContextKey string

const txKey txContextKey = "trx"

// DefaultTxTimeout bounds every unit of work started by WithinTransaction.
// A unit that cannot commit within the bound aborts with ErrTxTimeout and
// leaves no partial state behind.
const DefaultTxTimeout = 15 * time.Second

// ErrTxTimeout is returned when a transaction exceeded its deadline before
// committing. Safe to retry: preconditions are re-checked on every attempt.
var ErrTxTimeout = errors.New("transaction timed out")

type DB struct {
	read      *gorm.DB
	write     *gorm.DB
	txTimeout time.Duration
}

func Create(config Config, withDebug bool) (*gorm.DB, error) {
	db, err := gorm.Open(postgres.Open(fmt.Sprintf("host=%s user=%s password=%s dbname=%s port=%s sslmode=disable", config.Host, config.User, config.Password, config.Database, config.Port)),
		&gorm.Config{
			NamingStrategy: schema.NamingStrategy{
				SingularTable: true,
			},
		})
	if err != nil {
		return nil, err
	}

	if withDebug {
		db = db.Debug()
	}
	return db, nil
}

func CreateReadWrite(readConfig Config, writeConfig Config, withDebug bool) (*DB, error) {
	read, err := Create(readConfig, withDebug)
	if err != nil {
		return nil, err
	}
	write, err := Create(writeConfig, withDebug)
	if err != nil {
		return nil, err
	}
	return &DB{read: read, write: write, txTimeout: DefaultTxTimeout}, nil
}

// SetTxTimeout overrides the transaction deadline. Zero restores the default.
func (r *DB) SetTxTimeout(d time.Duration) {
	if d <= 0 {
		d = DefaultTxTimeout
	}
	r.txTimeout = d
}

// WithinTransaction runs fn as one all-or-nothing unit of work. The open
// transaction handle travels in ctx, so every repository call made through
// Write(ctx)/Read(ctx) inside fn joins the same transaction.
func (r *DB) WithinTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	timeout := r.txTimeout
	if timeout <= 0 {
		timeout = DefaultTxTimeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	err := r.write.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(context.WithValue(ctx, txKey, tx))
	})
	if err != nil && (errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded)) {
		return fmt.Errorf("%w: %v", ErrTxTimeout, err)
	}
	return err
}

// Write returns the ambient transaction if one is open in ctx, otherwise the
// write handle.
func (r *DB) Write(ctx context.Context) *gorm.DB {
	if tx, ok := ctx.Value(txKey).(*gorm.DB); ok {
		return tx
	}
	return r.write.WithContext(ctx)
}

// Read returns the ambient transaction if one is open in ctx, otherwise the
// read handle. Reads issued mid-transaction must observe that transaction's
// own writes, hence the same lookup as Write.
func (r *DB) Read(ctx context.Context) *gorm.DB {
	if tx, ok := ctx.Value(txKey).(*gorm.DB); ok {
		return tx
	}
	return r.read.WithContext(ctx)
}
