package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// Order is the durable record for one swap request. It is owned by the
// order store; everything else reads snapshots and writes through the
// store's sparse update contract.
type Order struct {
	ID           string          // opaque unique id (uuid)
	Status       OrderStatus     // lifecycle state, advances monotonically
	TokenAddress string          // target token (checksummed hex)
	AmountIn     decimal.Decimal // input amount, human units
	Slippage     decimal.Decimal // max tolerated slippage, percent
	SelectedDex  *string         // set once by the router
	TxHash       *string         // set iff status is submitted/confirmed
	ErrorMessage *string         // set iff status is failed
	Attempts     int             // pipeline runs consumed so far
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// OrderStatus is the 8-state lifecycle. Forward order is fixed; failed is
// reachable from every non-terminal state.
type OrderStatus string

const (
	StatusPending    OrderStatus = "pending"
	StatusMonitoring OrderStatus = "monitoring"
	StatusTriggered  OrderStatus = "triggered"
	StatusRouting    OrderStatus = "routing"
	StatusBuilding   OrderStatus = "building"
	StatusSubmitted  OrderStatus = "submitted"
	StatusConfirmed  OrderStatus = "confirmed"
	StatusFailed     OrderStatus = "failed"
)

// lifecycleOrder maps each status to its position on the forward path.
// failed is deliberately absent: it is a jump, not a step.
var lifecycleOrder = map[OrderStatus]int{
	StatusPending:    0,
	StatusMonitoring: 1,
	StatusTriggered:  2,
	StatusRouting:    3,
	StatusBuilding:   4,
	StatusSubmitted:  5,
	StatusConfirmed:  6,
}

// IsTerminal reports whether the status ends the lifecycle.
func (s OrderStatus) IsTerminal() bool {
	return s == StatusConfirmed || s == StatusFailed
}

// CanTransition reports whether from→to is a legal move: the single next
// forward step, or the jump to failed from any non-terminal state.
// A retried pipeline re-enters at pending, so pending→pending is allowed.
func CanTransition(from, to OrderStatus) bool {
	if from.IsTerminal() {
		return false
	}
	if to == StatusFailed {
		return true
	}
	if from == StatusPending && to == StatusPending {
		return true
	}
	fi, ok := lifecycleOrder[from]
	if !ok {
		return false
	}
	ti, ok := lifecycleOrder[to]
	if !ok {
		return false
	}
	return ti == fi+1
}

// Update is a sparse change-set applied through the store. Nil fields are
// left untouched.
type Update struct {
	Status       *OrderStatus
	SelectedDex  *string
	TxHash       *string
	ErrorMessage *string
	Attempts     *int
}

func (u Update) IsEmpty() bool {
	return u.Status == nil && u.SelectedDex == nil && u.TxHash == nil &&
		u.ErrorMessage == nil && u.Attempts == nil
}

// StatusUpdate builds the common single-field change-set.
func StatusUpdate(s OrderStatus) Update {
	return Update{Status: &s}
}

func StrPtr(s string) *string { return &s }
