package events

import (
	"time"

	"github.com/dexbot/goswap/internal/domain"
)

// Type tags the event variant carried on a status stream.
type Type string

const (
	TypeStatus Type = "status" // plain lifecycle transition
	TypeRoute  Type = "route"  // routing decision, carries quotes
	TypeError  Type = "error"  // terminal failure for this run
)

// QuoteView is the JSON shape of one venue quote inside a route event.
type QuoteView struct {
	Venue        string `json:"venue"`
	PoolID       string `json:"pool_id,omitempty"`
	OutputAmount string `json:"output_amount"`
	Fee          string `json:"fee"`
	PriceImpact  string `json:"price_impact"`
}

// OrderEvent is the single wire shape for every broadcast. Variant-specific
// fields are omitted when empty.
type OrderEvent struct {
	OrderID     string             `json:"order_id"`
	Type        Type               `json:"type"`
	Status      domain.OrderStatus `json:"status"`
	Final       bool               `json:"final"` // observer may close after a final event
	SelectedDex string             `json:"selected_dex,omitempty"`
	Reason      string             `json:"reason,omitempty"`
	Quotes      []QuoteView        `json:"quotes,omitempty"`
	TxHash      string             `json:"tx_hash,omitempty"`
	ExplorerURL string             `json:"explorer_url,omitempty"`
	Error       string             `json:"error,omitempty"`
	Timestamp   time.Time          `json:"timestamp"`
}

// NewStatus builds the event for a plain forward transition.
func NewStatus(orderID string, status domain.OrderStatus) OrderEvent {
	return OrderEvent{
		OrderID:   orderID,
		Type:      TypeStatus,
		Status:    status,
		Final:     status.IsTerminal(),
		Timestamp: time.Now().UTC(),
	}
}

// NewRoute builds the routing→building event carrying the decision.
func NewRoute(orderID string, decision domain.RouteDecision) OrderEvent {
	ev := NewStatus(orderID, domain.StatusBuilding)
	ev.Type = TypeRoute
	ev.SelectedDex = decision.Venue
	ev.Reason = decision.Reason
	for _, q := range decision.Quotes {
		ev.Quotes = append(ev.Quotes, QuoteView{
			Venue:        q.Venue,
			PoolID:       q.PoolID,
			OutputAmount: q.OutputAmount.String(),
			Fee:          q.Fee.String(),
			PriceImpact:  q.PriceImpact.String(),
		})
	}
	return ev
}

// NewSubmitted builds the building→submitted event with the tx hash.
func NewSubmitted(orderID, txHash, explorerURL string) OrderEvent {
	ev := NewStatus(orderID, domain.StatusSubmitted)
	ev.TxHash = txHash
	ev.ExplorerURL = explorerURL
	return ev
}

// NewConfirmed builds the terminal success event.
func NewConfirmed(orderID, txHash string) OrderEvent {
	ev := NewStatus(orderID, domain.StatusConfirmed)
	ev.TxHash = txHash
	return ev
}

// NewError builds the terminal failure event for this run.
func NewError(orderID string, errMsg string) OrderEvent {
	ev := NewStatus(orderID, domain.StatusFailed)
	ev.Type = TypeError
	ev.Error = errMsg
	return ev
}
