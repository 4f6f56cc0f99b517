package venues

import (
	"context"
	"math/big"
	"sync"

	"github.com/shopspring/decimal"
)

// MockAdapter is a scriptable in-memory venue for tests and local runs.
type MockAdapter struct {
	mu sync.Mutex

	VenueName string

	// Response data
	Pool      PoolInfo
	QuoteResp QuoteResult
	SwapResp  SwapResult

	// PoolExistsAfter makes PoolExists report no pool until it has been
	// called that many times. Zero means the pool exists immediately.
	PoolExistsAfter int

	// Call tracking
	Calls map[string]int

	// Error injection
	PoolErr  error
	QuoteErr error
	SwapErr  error

	// SwapFailures fails the first N ExecuteSwap calls with SwapErr before
	// succeeding; used to exercise pipeline retries.
	SwapFailures int
}

func NewMockAdapter(name string) *MockAdapter {
	return &MockAdapter{
		VenueName: name,
		Pool:      PoolInfo{Exists: true, PoolID: name + "-pool"},
		QuoteResp: QuoteResult{
			OutputAmount: big.NewInt(1_000_000),
			Fee:          decimal.NewFromFloat(0.3),
			PriceImpact:  decimal.NewFromFloat(0.1),
		},
		SwapResp: SwapResult{TxID: "0xmock", ExplorerURL: "https://example.org/tx/0xmock"},
		Calls:    make(map[string]int),
	}
}

func (m *MockAdapter) Name() string { return m.VenueName }

func (m *MockAdapter) PoolExists(ctx context.Context, tokenAddress string) (PoolInfo, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Calls["PoolExists"]++
	if m.PoolErr != nil {
		return PoolInfo{}, m.PoolErr
	}
	if m.Calls["PoolExists"] <= m.PoolExistsAfter {
		return PoolInfo{Exists: false}, nil
	}
	return m.Pool, nil
}

func (m *MockAdapter) Quote(ctx context.Context, poolID, tokenAddress string, amountIn, maxSlippage decimal.Decimal) (QuoteResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Calls["Quote"]++
	if m.QuoteErr != nil {
		return QuoteResult{}, m.QuoteErr
	}
	return m.QuoteResp, nil
}

func (m *MockAdapter) ExecuteSwap(ctx context.Context, poolID, tokenAddress string, amountIn, maxSlippage decimal.Decimal) (SwapResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Calls["ExecuteSwap"]++
	if m.SwapErr != nil && (m.SwapFailures == 0 || m.Calls["ExecuteSwap"] <= m.SwapFailures) {
		return SwapResult{}, m.SwapErr
	}
	return m.SwapResp, nil
}

// CallCount reports how many times a capability was invoked.
func (m *MockAdapter) CallCount(name string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.Calls[name]
}
