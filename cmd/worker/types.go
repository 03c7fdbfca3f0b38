package main

import "time"

// CloudWatch metric names emitted per order event.
const (
	MetricOrdersPlaced       = "OrdersPlaced"
	MetricOrderValue         = "OrderValue"
	MetricOrderStatusChanged = "OrderStatusChanged"

	dimensionStatus = "Status"
)

// eventKeyPrefix namespaces worker dedupe keys inside the shared idempotency
// table so they never collide with checkout keys.
const eventKeyPrefix = "event:"

// claimLease is how long an IN_PROGRESS claim blocks redeliveries. It matches
// the queue's visibility timeout; a holder silent for longer has crashed.
const claimLease = 5 * time.Minute
