// Package venues abstracts one DEX behind the three capabilities the
// pipeline needs: pool discovery, quoting and swap execution.
package venues

import (
	"context"
	"math/big"

	"github.com/shopspring/decimal"
)

// PoolInfo is the answer to a pool-existence probe.
type PoolInfo struct {
	Exists bool
	PoolID string
}

// QuoteResult is one venue's pricing for a fixed input amount.
// OutputAmount is in the token's smallest unit.
type QuoteResult struct {
	OutputAmount *big.Int
	Fee          decimal.Decimal // percent
	PriceImpact  decimal.Decimal // percent
}

// SwapResult identifies a confirmed on-chain swap.
type SwapResult struct {
	TxID        string
	ExplorerURL string
}

// Adapter is the capability boundary for one DEX venue.
type Adapter interface {
	Name() string
	PoolExists(ctx context.Context, tokenAddress string) (PoolInfo, error)
	Quote(ctx context.Context, poolID, tokenAddress string, amountIn, maxSlippage decimal.Decimal) (QuoteResult, error)
	ExecuteSwap(ctx context.Context, poolID, tokenAddress string, amountIn, maxSlippage decimal.Decimal) (SwapResult, error)
}
