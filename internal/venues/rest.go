package venues

import (
	"context"
	"fmt"
	"math/big"
	"net/http"
	"time"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	sdkhttp "github.com/dexbot/goswap/pkg/sdk/http"
)

var venueLog = logrus.WithField("component", "venues")

// RESTAdapter talks to one venue's routing API over HTTP. Uniswap and
// Sushiswap expose the same pool/quote/swap surface, so both are instances
// of this adapter with different hosts.
type RESTAdapter struct {
	name        string
	explorerURL string // tx hash is appended
	client      *sdkhttp.Client
}

type RESTConfig struct {
	Name        string
	BaseURL     string
	ExplorerURL string
	Timeout     time.Duration
}

func NewRESTAdapter(cfg RESTConfig) *RESTAdapter {
	return &RESTAdapter{
		name:        cfg.Name,
		explorerURL: cfg.ExplorerURL,
		client:      sdkhttp.NewClient(cfg.BaseURL, cfg.Timeout),
	}
}

func (a *RESTAdapter) Name() string { return a.name }

type poolResponse struct {
	Exists bool   `json:"exists"`
	PoolID string `json:"pool_id"`
}

func (a *RESTAdapter) PoolExists(ctx context.Context, tokenAddress string) (PoolInfo, error) {
	var out poolResponse
	resp, err := a.client.DoRequest(ctx, http.MethodGet, "/v1/pools", &sdkhttp.RequestOptions{
		Params: map[string]any{"token": tokenAddress},
	}, &out)
	if err := sdkhttp.CheckResponse(resp, err); err != nil {
		return PoolInfo{}, fmt.Errorf("%s pool lookup: %w", a.name, err)
	}
	return PoolInfo{Exists: out.Exists, PoolID: out.PoolID}, nil
}

type quoteRequest struct {
	PoolID      string `json:"pool_id"`
	Token       string `json:"token"`
	AmountIn    string `json:"amount_in"`
	MaxSlippage string `json:"max_slippage"`
}

type quoteResponse struct {
	OutputAmount string `json:"output_amount"` // smallest unit, decimal string
	Fee          string `json:"fee"`
	PriceImpact  string `json:"price_impact"`
}

func (a *RESTAdapter) Quote(ctx context.Context, poolID, tokenAddress string, amountIn, maxSlippage decimal.Decimal) (QuoteResult, error) {
	var out quoteResponse
	resp, err := a.client.DoRequest(ctx, http.MethodPost, "/v1/quote", &sdkhttp.RequestOptions{
		Data: quoteRequest{
			PoolID:      poolID,
			Token:       tokenAddress,
			AmountIn:    amountIn.String(),
			MaxSlippage: maxSlippage.String(),
		},
	}, &out)
	if err := sdkhttp.CheckResponse(resp, err); err != nil {
		return QuoteResult{}, fmt.Errorf("%s quote: %w", a.name, err)
	}
	return parseQuote(a.name, out)
}

func parseQuote(venue string, out quoteResponse) (QuoteResult, error) {
	amount, ok := new(big.Int).SetString(out.OutputAmount, 10)
	if !ok {
		return QuoteResult{}, fmt.Errorf("%s quote: bad output amount %q", venue, out.OutputAmount)
	}
	fee, err := decimal.NewFromString(out.Fee)
	if err != nil {
		return QuoteResult{}, fmt.Errorf("%s quote: bad fee %q", venue, out.Fee)
	}
	impact, err := decimal.NewFromString(out.PriceImpact)
	if err != nil {
		return QuoteResult{}, fmt.Errorf("%s quote: bad price impact %q", venue, out.PriceImpact)
	}
	return QuoteResult{OutputAmount: amount, Fee: fee, PriceImpact: impact}, nil
}

type swapRequest struct {
	PoolID      string `json:"pool_id"`
	Token       string `json:"token"`
	AmountIn    string `json:"amount_in"`
	MaxSlippage string `json:"max_slippage"`
}

type swapResponse struct {
	TxID        string `json:"tx_id"`
	ExplorerURL string `json:"explorer_url"`
}

// ExecuteSwap builds, submits and awaits the swap on the venue side. The
// call blocks until the venue reports confirmation or the context ends.
func (a *RESTAdapter) ExecuteSwap(ctx context.Context, poolID, tokenAddress string, amountIn, maxSlippage decimal.Decimal) (SwapResult, error) {
	var out swapResponse
	resp, err := a.client.DoRequest(ctx, http.MethodPost, "/v1/swap", &sdkhttp.RequestOptions{
		Data: swapRequest{
			PoolID:      poolID,
			Token:       tokenAddress,
			AmountIn:    amountIn.String(),
			MaxSlippage: maxSlippage.String(),
		},
	}, &out)
	if err := sdkhttp.CheckResponse(resp, err); err != nil {
		return SwapResult{}, fmt.Errorf("%s swap: %w", a.name, err)
	}
	result := SwapResult{TxID: out.TxID, ExplorerURL: out.ExplorerURL}
	if result.ExplorerURL == "" && a.explorerURL != "" {
		result.ExplorerURL = a.explorerURL + result.TxID
	}
	venueLog.Infof("swap executed: venue=%s tx=%s", a.name, result.TxID)
	return result, nil
}
