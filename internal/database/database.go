package database

import (
	"context"
	"database/sql"
	_ "embed"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	log "github.com/sirupsen/logrus"

	"geojungle/internal/config"
)

//go:embed schema.sql
var schemaSQL string

func Connect(cfg *config.Config) (*sqlx.DB, error) {
	db, err := sqlx.Connect("postgres", cfg.DatabaseDSN())
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	db.SetMaxOpenConns(cfg.DBMaxOpenConns)
	db.SetMaxIdleConns(cfg.DBMaxOpenConns / 2)
	db.SetConnMaxLifetime(30 * time.Minute)

	log.WithFields(log.Fields{"host": cfg.DBHost, "db": cfg.DBName}).Info("Connected to database")
	return db, nil
}

// Migrate applies the embedded schema. Every statement is idempotent, so it
// runs on each start.
func Migrate(ctx context.Context, db *sqlx.DB) error {
	if _, err := db.ExecContext(ctx, schemaSQL); err != nil {
		return fmt.Errorf("apply schema: %w", err)
	}
	log.Info("Database schema is up to date")
	return nil
}

// TxRunner runs functions inside a database transaction.
type TxRunner struct {
	db *sqlx.DB
}

func NewTxRunner(db *sqlx.DB) *TxRunner {
	return &TxRunner{db: db}
}

// InTx commits when fn returns nil and rolls back otherwise.
func (t *TxRunner) InTx(ctx context.Context, fn func(tx *sqlx.Tx) error) error {
	tx, err := t.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	if err := fn(tx); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}

// snapshotAttempts bounds how often a snapshot transaction is retried after
// a serialization failure.
const snapshotAttempts = 3

// InSnapshotTx runs fn at REPEATABLE READ. Every statement in fn sees the
// same snapshot, and an UPDATE that hits a row changed by a transaction
// committed after that snapshot fails with 40001 instead of overwriting the
// newer value. Such failures roll back and rerun fn on a fresh snapshot.
func (t *TxRunner) InSnapshotTx(ctx context.Context, fn func(tx *sqlx.Tx) error) error {
	return retrySerialization(ctx, snapshotAttempts, func() error {
		tx, err := t.db.BeginTxx(ctx, &sql.TxOptions{Isolation: sql.LevelRepeatableRead})
		if err != nil {
			return fmt.Errorf("begin snapshot transaction: %w", err)
		}
		defer tx.Rollback()

		if err := fn(tx); err != nil {
			return err
		}
		if err := tx.Commit(); err != nil {
			return fmt.Errorf("commit snapshot transaction: %w", err)
		}
		return nil
	})
}

func retrySerialization(ctx context.Context, attempts int, run func() error) error {
	var err error
	for attempt := 1; attempt <= attempts; attempt++ {
		if err = run(); err == nil || !IsSerializationFailure(err) {
			return err
		}
		log.WithError(err).WithField("attempt", attempt).Warn("[DB] Serialization failure, retrying on a fresh snapshot")
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
	}
	return err
}

// IsSerializationFailure reports Postgres error 40001 anywhere in err's chain.
func IsSerializationFailure(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && pqErr.Code == "40001"
}
