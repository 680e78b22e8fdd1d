package storage

import (
	"errors"
	"fmt"
)

// ErrFault marks an error of the underlying store (connection, disk, query).
// Callers abort the current request and keep serving others.
var ErrFault = errors.New("storage fault")

// Fault wraps err so that errors.Is(err, ErrFault) holds
func Fault(op string, err error) error {
	return fmt.Errorf("%s: %w: %w", op, ErrFault, err)
}
