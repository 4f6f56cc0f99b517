package domain

import (
	"errors"
	"fmt"
)

// Sentinel errors for the terminal pipeline outcomes. The queue's retry
// wrapper matches on these with errors.Is.
var (
	ErrPoolTimeout      = errors.New("pool discovery timed out")
	ErrNoQuoteAvailable = errors.New("no quote available from any venue")
	ErrOrderNotFound    = errors.New("order not found")
)

// ValidationError rejects a malformed request synchronously, before any
// order is created.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

// VenueExecutionError wraps a failure from a venue adapter during
// transaction construction, submission or confirmation.
type VenueExecutionError struct {
	Venue string
	Stage string // "build" | "submit" | "confirm"
	Err   error
}

func (e *VenueExecutionError) Error() string {
	return fmt.Sprintf("venue %s %s failed: %v", e.Venue, e.Stage, e.Err)
}

func (e *VenueExecutionError) Unwrap() error { return e.Err }

// InfrastructureError marks a store/queue/dependency outage. It aborts the
// affected operation and surfaces through the health probe.
type InfrastructureError struct {
	Component string
	Err       error
}

func (e *InfrastructureError) Error() string {
	return fmt.Sprintf("%s unavailable: %v", e.Component, e.Err)
}

func (e *InfrastructureError) Unwrap() error { return e.Err }
