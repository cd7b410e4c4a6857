package db

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"
)

// RunInTx executes fn inside a single transaction bounded by timeout. Deadline
// expiry and lock conflicts are reported as ErrConcurrentConflict so nothing holds
// locks past the budget.
func RunInTx(ctx context.Context, conn *gorm.DB, timeout time.Duration, fn func(tx *gorm.DB) error) error {
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	err := conn.WithContext(ctx).Transaction(fn)
	if err == nil {
		return nil
	}
	if errors.Is(err, ErrConcurrentConflict) {
		return err
	}
	if ctx.Err() != nil || IsRetryableErr(err) {
		return fmt.Errorf("%w: %v", ErrConcurrentConflict, err)
	}
	return err
}

// Savepoint runs fn in a nested transaction so a failed statement (for example a
// unique violation that the caller recovers from) does not abort the outer one.
func Savepoint(tx *gorm.DB, fn func(tx *gorm.DB) error) error {
	return tx.Transaction(fn)
}
