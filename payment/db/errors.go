package db

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"
)

var (
	ErrNotFound            = errors.New("payment record not found")
	ErrDuplicateCheckoutID = errors.New("duplicate checkout request id")
	ErrStorage             = errors.New("storage failure")
	ErrStorageTimeout      = errors.New("storage timed out")
)

func storageError(op string, err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, gorm.ErrRecordNotFound):
		return ErrNotFound
	case errors.Is(err, gorm.ErrDuplicatedKey):
		return fmt.Errorf("%s: %w", op, ErrDuplicateCheckoutID)
	case errors.Is(err, context.DeadlineExceeded):
		return fmt.Errorf("%s: %w: %v", op, ErrStorageTimeout, err)
	default:
		return fmt.Errorf("%s: %w: %v", op, ErrStorage, err)
	}
}
