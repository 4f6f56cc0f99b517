package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/dexbot/goswap/internal/domain"
	"github.com/dexbot/goswap/internal/metrics"
)

type createOrderRequest struct {
	TokenAddress string `json:"token_address"`
	AmountIn     string `json:"amount_in"`
	Slippage     string `json:"slippage"`
}

type orderResponse struct {
	OrderID      string  `json:"order_id"`
	Status       string  `json:"status"`
	TokenAddress string  `json:"token_address"`
	AmountIn     string  `json:"amount_in"`
	Slippage     string  `json:"slippage"`
	SelectedDex  *string `json:"selected_dex,omitempty"`
	TxHash       *string `json:"tx_hash,omitempty"`
	ErrorMessage *string `json:"error_message,omitempty"`
	Attempts     int     `json:"attempts"`
	CreatedAt    string  `json:"created_at"`
	UpdatedAt    string  `json:"updated_at"`
	StreamPath   string  `json:"stream_path,omitempty"`
}

func toOrderResponse(o *domain.Order) orderResponse {
	return orderResponse{
		OrderID:      o.ID,
		Status:       string(o.Status),
		TokenAddress: o.TokenAddress,
		AmountIn:     o.AmountIn.String(),
		Slippage:     o.Slippage.String(),
		SelectedDex:  o.SelectedDex,
		TxHash:       o.TxHash,
		ErrorMessage: o.ErrorMessage,
		Attempts:     o.Attempts,
		CreatedAt:    o.CreatedAt.Format(time.RFC3339Nano),
		UpdatedAt:    o.UpdatedAt.Format(time.RFC3339Nano),
	}
}

// parseCreateRequest validates the three required fields. No order exists
// until every field passes.
func parseCreateRequest(req createOrderRequest) (*domain.Order, *domain.ValidationError) {
	token := strings.TrimSpace(req.TokenAddress)
	if token == "" {
		return nil, &domain.ValidationError{Field: "token_address", Reason: "required"}
	}
	if !common.IsHexAddress(token) {
		return nil, &domain.ValidationError{Field: "token_address", Reason: "not a valid address"}
	}
	if strings.TrimSpace(req.AmountIn) == "" {
		return nil, &domain.ValidationError{Field: "amount_in", Reason: "required"}
	}
	amount, err := decimal.NewFromString(req.AmountIn)
	if err != nil || !amount.IsPositive() {
		return nil, &domain.ValidationError{Field: "amount_in", Reason: "must be a positive number"}
	}
	if strings.TrimSpace(req.Slippage) == "" {
		return nil, &domain.ValidationError{Field: "slippage", Reason: "required"}
	}
	slippage, err := decimal.NewFromString(req.Slippage)
	if err != nil || slippage.IsNegative() || slippage.GreaterThan(decimal.NewFromInt(100)) {
		return nil, &domain.ValidationError{Field: "slippage", Reason: "must be a percentage between 0 and 100"}
	}
	return &domain.Order{
		ID:           uuid.NewString(),
		Status:       domain.StatusPending,
		TokenAddress: common.HexToAddress(token).Hex(),
		AmountIn:     amount,
		Slippage:     slippage,
	}, nil
}

func (s *Server) handleOrderCreate(w http.ResponseWriter, r *http.Request) {
	var req createOrderRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json body")
		return
	}
	order, verr := parseCreateRequest(req)
	if verr != nil {
		writeError(w, http.StatusBadRequest, verr.Error())
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()
	if err := s.store.Create(ctx, order); err != nil {
		writeError(w, http.StatusInternalServerError, fmt.Sprintf("create order: %v", err))
		return
	}
	metrics.OrdersCreated.Add(1)

	if err := s.queue.Enqueue(ctx, order.ID); err != nil {
		// The order exists but will never run; record that truthfully.
		msg := fmt.Sprintf("enqueue: %v", err)
		upd := domain.StatusUpdate(domain.StatusFailed)
		upd.ErrorMessage = &msg
		_ = s.store.Update(ctx, order.ID, upd)
		writeError(w, http.StatusServiceUnavailable, msg)
		return
	}

	serverLog.Infof("order accepted: id=%s token=%s amount=%s", order.ID, order.TokenAddress, order.AmountIn)
	resp := toOrderResponse(order)
	resp.StreamPath = "/api/orders/" + order.ID + "/stream"
	writeJSON(w, http.StatusCreated, resp)
}

func (s *Server) handleOrderGet(w http.ResponseWriter, r *http.Request) {
	orderID := pathParam(r, "orderID")
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	order, err := s.store.GetByID(ctx, orderID)
	if errors.Is(err, domain.ErrOrderNotFound) {
		writeError(w, http.StatusNotFound, "order not found")
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, fmt.Sprintf("get order: %v", err))
		return
	}
	writeJSON(w, http.StatusOK, toOrderResponse(order))
}

func (s *Server) handleOrdersList(w http.ResponseWriter, r *http.Request) {
	limit := 50
	if v := strings.TrimSpace(r.URL.Query().Get("limit")); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 && n <= 200 {
			limit = n
		}
	}
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	orders, err := s.store.List(ctx, limit)
	if err != nil {
		writeError(w, http.StatusInternalServerError, fmt.Sprintf("list orders: %v", err))
		return
	}
	out := make([]orderResponse, 0, len(orders))
	for i := range orders {
		out = append(out, toOrderResponse(&orders[i]))
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleQueueStats(w http.ResponseWriter, r *http.Request) {
	includeJobs := r.URL.Query().Get("jobs") == "true"
	writeJSON(w, http.StatusOK, s.queue.Stats(includeJobs))
}
