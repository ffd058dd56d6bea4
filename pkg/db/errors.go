package db

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound matches every *NotFoundError.
	ErrNotFound = errors.New("no rows returned")
	// ErrTooManyRows matches every *TooManyRowsError.
	ErrTooManyRows = errors.New("too many rows returned")
	// ErrNoEngine is returned by operations that need an adapter when the
	// Database was created without one.
	ErrNoEngine = errors.New("database has no engine adapter")
)

// Contract is the number of rows a typed call accepts.
type Contract int

const (
	// ContractOne requires exactly one row.
	ContractOne Contract = iota
	// ContractMaybeOne accepts zero or one row.
	ContractMaybeOne
	// ContractMany requires at least one row.
	ContractMany
	// ContractAny accepts any number of rows.
	ContractAny
)

func (c Contract) String() string {
	switch c {
	case ContractOne:
		return "one"
	case ContractMaybeOne:
		return "maybe_one"
	case ContractMany:
		return "many"
	case ContractAny:
		return "any"
	default:
		return "unknown"
	}
}

// check applies the contract to a row count.
func (c Contract) check(recordName string, n int) error {
	switch c {
	case ContractOne:
		if n == 0 {
			return &NotFoundError{Record: recordName, Contract: c}
		}
		if n > 1 {
			return &TooManyRowsError{Record: recordName, Contract: c, Count: n}
		}
	case ContractMaybeOne:
		if n > 1 {
			return &TooManyRowsError{Record: recordName, Contract: c, Count: n}
		}
	case ContractMany:
		if n == 0 {
			return &NotFoundError{Record: recordName, Contract: c}
		}
	}
	return nil
}

// NotFoundError is returned when a contract requiring rows got none.
type NotFoundError struct {
	Record   string
	Contract Contract
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s: expected at least one %s row, got 0", e.Contract, e.Record)
}

// Is reports whether target is ErrNotFound.
func (e *NotFoundError) Is(target error) bool {
	return target == ErrNotFound
}

// TooManyRowsError is returned when a contract allowing at most one row got more.
type TooManyRowsError struct {
	Record   string
	Contract Contract
	Count    int
}

func (e *TooManyRowsError) Error() string {
	return fmt.Sprintf("%s: expected at most one %s row, got %d", e.Contract, e.Record, e.Count)
}

// Is reports whether target is ErrTooManyRows.
func (e *TooManyRowsError) Is(target error) bool {
	return target == ErrTooManyRows
}
