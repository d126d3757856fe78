package ledger

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound indicates a missing ledger document.
	ErrNotFound = errors.New("ledger: not found")
	// ErrInvalidCategory indicates an unknown product category.
	ErrInvalidCategory = errors.New("ledger: invalid category")
	// ErrQueryFailure is matched by every store read/write failure. An empty
	// result is never reported through it.
	ErrQueryFailure = errors.New("ledger: query failed")
)

// QueryError carries the failing logical query.
type QueryError struct {
	Query string
	Err   error
}

func (e *QueryError) Error() string {
	return fmt.Sprintf("ledger: query %s failed: %v", e.Query, e.Err)
}

func (e *QueryError) Unwrap() error { return e.Err }

// Is makes errors.Is(err, ErrQueryFailure) hold for every QueryError.
func (e *QueryError) Is(target error) bool {
	return target == ErrQueryFailure
}

// QueryFailed wraps err as a QueryError unless it is nil or already one.
func QueryFailed(query string, err error) error {
	if err == nil {
		return nil
	}
	var qe *QueryError
	if errors.As(err, &qe) {
		return err
	}
	return &QueryError{Query: query, Err: err}
}
