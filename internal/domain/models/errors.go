package models

import (
	"errors"
	"fmt"
	"time"
)

var (
	// ErrNoDataForDate is returned when no bars exist for the requested date.
	ErrNoDataForDate = errors.New("no bars for date")
	// ErrMissingReport is returned when a step needs the report row and it does not exist.
	ErrMissingReport = errors.New("report not found for date")
	// ErrEmptyTopList is returned when a comment is requested for an empty Top-N list.
	ErrEmptyTopList = errors.New("top list is empty")
	// ErrRunInProgress is returned when another run holds the lock for the same date.
	ErrRunInProgress = errors.New("run already in progress for date")
)

// PersistenceError wraps a storage failure with the operation and date it affected.
type PersistenceError struct {
	Op   string
	Date time.Time
	Err  error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("%s %s: %v", e.Op, e.Date.Format("2006-01-02"), e.Err)
}

func (e *PersistenceError) Unwrap() error { return e.Err }

// NewPersistenceError returns nil when err is nil.
func NewPersistenceError(op string, date time.Time, err error) error {
	if err == nil {
		return nil
	}
	return &PersistenceError{Op: op, Date: date, Err: err}
}
