package service

import (
	"errors"
	"time"

	"github.com/dkrasnov/pickpool/internal/contest"
	"github.com/mattn/go-sqlite3"
)

const maxTxAttempts = 3

// withTxRetry runs fn, retrying with backoff while the database reports a
// busy/locked conflict. SQLite transactions are serializable, so the in-tx
// status re-read is the only guard a successful attempt needs; this loop
// just absorbs writer contention. Once the budget is spent the caller gets
// a ConflictError and must re-fetch state before trying again.
func withTxRetry(op contest.Operation, fn func() error) error {
	var err error
	for attempt := 0; attempt < maxTxAttempts; attempt++ {
		err = fn()
		if err == nil || !isBusy(err) {
			return err
		}
		time.Sleep(time.Duration(10<<attempt) * time.Millisecond)
	}
	return &contest.ConflictError{Op: op}
}

func isBusy(err error) bool {
	var serr sqlite3.Error
	if errors.As(err, &serr) {
		return serr.Code == sqlite3.ErrBusy || serr.Code == sqlite3.ErrLocked
	}
	return false
}
