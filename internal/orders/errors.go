package orders

import "errors"

var (
	// ErrEmptyCart is returned by Create when there is nothing to order.
	ErrEmptyCart = errors.New("cart is empty")
	ErrNotFound  = errors.New("order not found")
	// ErrStoreUnavailable wraps every I/O failure against the orders table.
	ErrStoreUnavailable = errors.New("order store unavailable")
	// ErrStatusMismatch means the status changed between read and conditional write.
	ErrStatusMismatch = errors.New("status mismatch/conditional failed")
	// ErrDuplicateRequest means the idempotency key of a create was already used.
	ErrDuplicateRequest = errors.New("idempotency key already used")
)
