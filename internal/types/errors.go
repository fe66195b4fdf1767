// README: Error taxonomy shared across modules; module sentinels wrap these.
package types

import (
	"errors"
	"fmt"
)

var (
	ErrInvalidInput      = errors.New("invalid input")
	ErrNotFound          = errors.New("not found")
	ErrUnauthorized      = errors.New("unauthorized")
	ErrInvalidTransition = errors.New("invalid state transition")
	ErrConflict          = errors.New("state conflict")
	ErrStorage           = errors.New("storage error")
)

// StorageErr tags a collaborator failure so callers can match ErrStorage
// while keeping the underlying cause.
func StorageErr(op string, err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w: %w", op, ErrStorage, err)
}
