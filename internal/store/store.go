// Package store owns order persistence. The pipeline and ingress only see
// the OrderStore contract; the sqlite implementation lives alongside it.
package store

import (
	"context"

	"github.com/dexbot/goswap/internal/domain"
)

// OrderStore is the create / sparse-update / get-by-id contract the
// pipeline writes through. Updates must be safe to repeat: a retried
// pipeline replays its writes for the same order id.
type OrderStore interface {
	Create(ctx context.Context, order *domain.Order) error
	Update(ctx context.Context, orderID string, upd domain.Update) error
	GetByID(ctx context.Context, orderID string) (*domain.Order, error)
	List(ctx context.Context, limit int) ([]domain.Order, error)
	Ping(ctx context.Context) error
	Close() error
}
