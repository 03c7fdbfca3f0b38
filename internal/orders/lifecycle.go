package orders

import (
	"errors"
	"fmt"
)

// OrderStatus is the fulfilment stage of an order.
type OrderStatus string

const (
	StatusNew            OrderStatus = "new"
	StatusPreparing      OrderStatus = "preparing"
	StatusOutForDelivery OrderStatus = "out_for_delivery"
	StatusDelivered      OrderStatus = "delivered"
)

// stages lists the fulfilment stages in order.
var stages = []OrderStatus{StatusNew, StatusPreparing, StatusOutForDelivery, StatusDelivered}

func (s OrderStatus) rank() int {
	for i, st := range stages {
		if st == s {
			return i
		}
	}
	return -1
}

func (s OrderStatus) Valid() bool { return s.rank() >= 0 }

func (s OrderStatus) Terminal() bool { return s == StatusDelivered }

// Statuses returns every known stage, first to last.
func Statuses() []OrderStatus {
	return append([]OrderStatus(nil), stages...)
}

// PaymentStatus is independent of OrderStatus. Orders are created pending and
// nothing in this service advances it.
type PaymentStatus string

const (
	PaymentPending PaymentStatus = "pending"
	PaymentPaid    PaymentStatus = "paid"
	PaymentFailed  PaymentStatus = "failed"
)

func (p PaymentStatus) Valid() bool {
	switch p {
	case PaymentPending, PaymentPaid, PaymentFailed:
		return true
	}
	return false
}

var (
	ErrInvalidStatus     = errors.New("invalid order status")
	ErrInvalidTransition = errors.New("order status transition not allowed")
	ErrUnknownPolicy     = errors.New("unknown transition policy")
)

// TransitionPolicy decides whether an order may move between two stages.
type TransitionPolicy string

const (
	// PolicyAny lets staff set any stage from any stage, including backward
	// corrections such as delivered -> preparing.
	PolicyAny TransitionPolicy = "any"
	// PolicyForwardOnly allows strictly later stages only. Skipping stages is
	// allowed; staying put or moving back is not.
	PolicyForwardOnly TransitionPolicy = "forward"
)

// ParsePolicy maps a configuration value to a policy. Empty means PolicyAny.
func ParsePolicy(v string) (TransitionPolicy, error) {
	switch TransitionPolicy(v) {
	case "", PolicyAny:
		return PolicyAny, nil
	case PolicyForwardOnly:
		return PolicyForwardOnly, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownPolicy, v)
}

// NeedsCurrent reports whether Check looks at the current status. Stores skip
// the read for policies that don't.
func (p TransitionPolicy) NeedsCurrent() bool {
	return p == PolicyForwardOnly
}

// Check returns nil when from -> to is allowed under p.
func (p TransitionPolicy) Check(from, to OrderStatus) error {
	if !to.Valid() {
		return fmt.Errorf("%w: %q", ErrInvalidStatus, to)
	}
	switch p {
	case PolicyAny:
		return nil
	case PolicyForwardOnly:
		if !from.Valid() {
			return fmt.Errorf("%w: current status %q", ErrInvalidStatus, from)
		}
		if to.rank() <= from.rank() {
			return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, from, to)
		}
		return nil
	}
	return fmt.Errorf("%w: %q", ErrUnknownPolicy, string(p))
}
