// Package domain holds the error kinds shared by every lookup surface.
package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrInputRead means the request could not be read at all.
	ErrInputRead = errors.New("failed to read JSON from stdin")
	// ErrInputParse means the request is not a JSON object with a string "isin".
	ErrInputParse = errors.New("failed to parse input message from JSON")
	// ErrReferenceFile means the security master is missing, unreadable or malformed.
	ErrReferenceFile = errors.New("security master unavailable")
	// ErrNotFound means no security master row carries the requested ISIN.
	ErrNotFound = errors.New("isin not found")
)

// NotFoundError reports the ISIN that had no match. It satisfies errors.Is(err, ErrNotFound).
type NotFoundError struct {
	ISIN string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("couldn't find a ticker corresponding to ISIN %s", e.ISIN)
}

func (e *NotFoundError) Is(target error) bool {
	return target == ErrNotFound
}
