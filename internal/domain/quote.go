package domain

import (
	"math/big"

	"github.com/shopspring/decimal"
)

// Quote is one venue's answer for a fixed input amount. OutputAmount is in
// the token's smallest unit so venues compare without rounding error.
type Quote struct {
	Venue        string
	PoolID       string
	OutputAmount *big.Int
	Fee          decimal.Decimal // venue fee, percent
	PriceImpact  decimal.Decimal // percent
}

// RouteDecision is the outcome of one routing pass. Ephemeral: it is
// embedded in a broadcast event and persisted as selected_dex only.
type RouteDecision struct {
	Venue  string
	Quote  Quote
	Reason string
	Quotes []Quote // every surviving quote, for the event payload
}

// PoolLookup is the monitor's result: found venues and their pool ids.
type PoolLookup struct {
	Found        bool
	PoolsByVenue map[string]string // venue name -> pool id
	AttemptsUsed int
}
