package services

import (
	"context"
	"encoding/json"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/dexbot/goswap/internal/domain"
	"github.com/dexbot/goswap/internal/events"
	"github.com/dexbot/goswap/internal/store"
	"github.com/dexbot/goswap/internal/venues"
)

type pipelineFixture struct {
	store       *store.SQLiteStore
	broadcaster *Broadcaster
	pipeline    *Pipeline
	adapters    []*venues.MockAdapter
}

func newPipelineFixture(t *testing.T, adapters ...*venues.MockAdapter) *pipelineFixture {
	t.Helper()
	st, err := store.OpenSQLite(filepath.Join(t.TempDir(), "orders.db"))
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { _ = st.Close() })

	var as []venues.Adapter
	for _, a := range adapters {
		as = append(as, a)
	}
	b := NewBroadcaster()
	monitor := NewPoolMonitor(as, nil, time.Millisecond, 3)
	router := NewRouter(as)
	return &pipelineFixture{
		store:       st,
		broadcaster: b,
		pipeline:    NewPipeline(st, b, monitor, router, as),
		adapters:    adapters,
	}
}

func (f *pipelineFixture) createOrder(t *testing.T) *domain.Order {
	t.Helper()
	order := &domain.Order{
		ID:           uuid.NewString(),
		Status:       domain.StatusPending,
		TokenAddress: testToken,
		AmountIn:     decimal.RequireFromString("1"),
		Slippage:     decimal.RequireFromString("0.5"),
	}
	if err := f.store.Create(context.Background(), order); err != nil {
		t.Fatalf("create order: %v", err)
	}
	return order
}

func drainEvents(sub *Subscriber) []events.OrderEvent {
	var out []events.OrderEvent
	for {
		select {
		case payload := <-sub.C():
			var ev events.OrderEvent
			if json.Unmarshal(payload, &ev) == nil {
				out = append(out, ev)
			}
		default:
			return out
		}
	}
}

func TestPipeline_HappyPath(t *testing.T) {
	uni := venues.NewMockAdapter("uniswap")
	f := newPipelineFixture(t, uni)
	order := f.createOrder(t)
	sub := f.broadcaster.Subscribe(order.ID)

	if err := f.pipeline.Run(context.Background(), order.ID, 1); err != nil {
		t.Fatalf("run: %v", err)
	}

	got, err := f.store.GetByID(context.Background(), order.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.Status != domain.StatusConfirmed {
		t.Fatalf("expected confirmed, got %s", got.Status)
	}
	if got.SelectedDex == nil || *got.SelectedDex != "uniswap" {
		t.Fatalf("selected_dex not persisted: %v", got.SelectedDex)
	}
	if got.TxHash == nil || *got.TxHash != "0xmock" {
		t.Fatalf("tx_hash not persisted: %v", got.TxHash)
	}
	if got.ErrorMessage != nil {
		t.Fatalf("error_message set on success")
	}
	if got.Attempts != 1 {
		t.Fatalf("expected 1 attempt, got %d", got.Attempts)
	}

	evs := drainEvents(sub)
	want := []domain.OrderStatus{
		domain.StatusMonitoring,
		domain.StatusTriggered,
		domain.StatusRouting,
		domain.StatusBuilding,
		domain.StatusSubmitted,
		domain.StatusConfirmed,
	}
	if len(evs) != len(want) {
		t.Fatalf("expected %d events, got %d: %+v", len(want), len(evs), evs)
	}
	for i, ev := range evs {
		if ev.Status != want[i] {
			t.Fatalf("event %d: expected %s, got %s", i, want[i], ev.Status)
		}
	}
	if !evs[len(evs)-1].Final {
		t.Fatalf("terminal event not marked final")
	}
	// The routing decision rides on the building event.
	if evs[3].Type != events.TypeRoute || evs[3].SelectedDex != "uniswap" {
		t.Fatalf("building event should carry the route: %+v", evs[3])
	}
	if evs[4].TxHash == "" {
		t.Fatalf("submitted event missing tx hash")
	}
}

func TestPipeline_PoolTimeoutFailsOrder(t *testing.T) {
	uni := venues.NewMockAdapter("uniswap")
	uni.PoolExistsAfter = 1000
	f := newPipelineFixture(t, uni)
	order := f.createOrder(t)
	sub := f.broadcaster.Subscribe(order.ID)

	err := f.pipeline.Run(context.Background(), order.ID, 1)
	if !errors.Is(err, domain.ErrPoolTimeout) {
		t.Fatalf("expected ErrPoolTimeout, got %v", err)
	}

	got, _ := f.store.GetByID(context.Background(), order.ID)
	if got.Status != domain.StatusFailed {
		t.Fatalf("expected failed, got %s", got.Status)
	}
	if got.ErrorMessage == nil {
		t.Fatalf("error_message not set on failure")
	}
	if got.TxHash != nil {
		t.Fatalf("tx_hash set without submission")
	}

	evs := drainEvents(sub)
	last := evs[len(evs)-1]
	if last.Type != events.TypeError || !last.Final {
		t.Fatalf("stream did not end with a final error event: %+v", last)
	}
}

func TestPipeline_NoQuoteFailsOrder(t *testing.T) {
	uni := venues.NewMockAdapter("uniswap")
	uni.QuoteErr = errors.New("no path")
	f := newPipelineFixture(t, uni)
	order := f.createOrder(t)

	err := f.pipeline.Run(context.Background(), order.ID, 1)
	if !errors.Is(err, domain.ErrNoQuoteAvailable) {
		t.Fatalf("expected ErrNoQuoteAvailable, got %v", err)
	}
	got, _ := f.store.GetByID(context.Background(), order.ID)
	if got.Status != domain.StatusFailed {
		t.Fatalf("expected failed, got %s", got.Status)
	}
}

func TestPipeline_VenueExecutionFailure(t *testing.T) {
	uni := venues.NewMockAdapter("uniswap")
	uni.SwapErr = errors.New("reverted")
	f := newPipelineFixture(t, uni)
	order := f.createOrder(t)

	err := f.pipeline.Run(context.Background(), order.ID, 1)
	var vee *domain.VenueExecutionError
	if !errors.As(err, &vee) {
		t.Fatalf("expected VenueExecutionError, got %v", err)
	}
	if vee.Venue != "uniswap" {
		t.Fatalf("unexpected venue: %s", vee.Venue)
	}

	got, _ := f.store.GetByID(context.Background(), order.ID)
	if got.Status != domain.StatusFailed || got.TxHash != nil {
		t.Fatalf("failed swap must leave no tx_hash: %+v", got)
	}
}

func TestPipeline_RetryClearsPreviousFailure(t *testing.T) {
	uni := venues.NewMockAdapter("uniswap")
	uni.SwapErr = errors.New("reverted")
	uni.SwapFailures = 1
	f := newPipelineFixture(t, uni)
	order := f.createOrder(t)

	if err := f.pipeline.Run(context.Background(), order.ID, 1); err == nil {
		t.Fatalf("expected first attempt to fail")
	}
	if err := f.pipeline.Run(context.Background(), order.ID, 2); err != nil {
		t.Fatalf("second attempt: %v", err)
	}

	got, _ := f.store.GetByID(context.Background(), order.ID)
	if got.Status != domain.StatusConfirmed {
		t.Fatalf("expected confirmed, got %s", got.Status)
	}
	if got.ErrorMessage != nil {
		t.Fatalf("stale error_message survived the retry: %q", *got.ErrorMessage)
	}
	if got.Attempts != 2 {
		t.Fatalf("expected 2 recorded attempts, got %d", got.Attempts)
	}
}

func TestPipeline_ConfirmedOrderIsNotRerun(t *testing.T) {
	uni := venues.NewMockAdapter("uniswap")
	f := newPipelineFixture(t, uni)
	order := f.createOrder(t)

	if err := f.pipeline.Run(context.Background(), order.ID, 1); err != nil {
		t.Fatalf("run: %v", err)
	}
	if err := f.pipeline.Run(context.Background(), order.ID, 2); err != nil {
		t.Fatalf("rerun: %v", err)
	}
	if calls := uni.CallCount("ExecuteSwap"); calls != 1 {
		t.Fatalf("confirmed order was re-executed: %d swaps", calls)
	}
}
