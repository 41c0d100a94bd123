package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/mattn/go-sqlite3"
)

const maxBusyRetries = 3

// IsBusy reports whether err is an SQLite BUSY or LOCKED condition.
func IsBusy(err error) bool {
	if err == nil {
		return false
	}
	var sqliteErr sqlite3.Error
	if errors.As(err, &sqliteErr) {
		return sqliteErr.Code == sqlite3.ErrBusy || sqliteErr.Code == sqlite3.ErrLocked
	}
	msg := err.Error()
	return strings.Contains(msg, "database is locked") || strings.Contains(msg, "database table is locked")
}

// exec runs a statement, retrying on BUSY with 100/200/300 ms waits.
func (s *Store) exec(query string, args ...any) (sql.Result, error) {
	var lastErr error
	for i := range maxBusyRetries {
		res, err := s.db.Exec(query, args...)
		if err == nil {
			return res, nil
		}
		lastErr = err
		if !IsBusy(err) {
			return nil, err
		}
		time.Sleep(time.Duration(100*(i+1)) * time.Millisecond)
	}
	return nil, fmt.Errorf("store: exec: %w", lastErr)
}

// runTx runs fn in a transaction, retrying the whole transaction on BUSY.
func (s *Store) runTx(fn func(*sql.Tx) error) error {
	var lastErr error
	for i := range maxBusyRetries {
		err := s.runOnce(fn)
		if err == nil {
			return nil
		}
		lastErr = err
		if !IsBusy(err) {
			return err
		}
		time.Sleep(time.Duration(100*(i+1)) * time.Millisecond)
	}
	return fmt.Errorf("store: tx: %w", lastErr)
}

func (s *Store) runOnce(fn func(*sql.Tx) error) error {
	tx, err := s.db.BeginTx(context.Background(), nil)
	if err != nil {
		return fmt.Errorf("store: begin tx: %w", err)
	}
	if err := fn(tx); err != nil {
		tx.Rollback()
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("store: commit: %w", err)
	}
	return nil
}
