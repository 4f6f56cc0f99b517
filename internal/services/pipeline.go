package services

import (
	"context"
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/dexbot/goswap/internal/domain"
	"github.com/dexbot/goswap/internal/events"
	"github.com/dexbot/goswap/internal/metrics"
	"github.com/dexbot/goswap/internal/store"
	"github.com/dexbot/goswap/internal/venues"
)

var pipelineLog = logrus.WithField("component", "pipeline")

// Pipeline drives one order through the lifecycle. Every forward step
// persists the new status, broadcasts an event, then performs the step's
// work. Errors are caught once at the job boundary (Run): the order is
// marked failed, the failure is broadcast, and the error is returned so
// the queue's retry policy can decide.
type Pipeline struct {
	store       store.OrderStore
	broadcaster *Broadcaster
	monitor     *PoolMonitor
	router      *Router
	adapters    map[string]venues.Adapter
}

func NewPipeline(st store.OrderStore, b *Broadcaster, m *PoolMonitor, r *Router, adapters []venues.Adapter) *Pipeline {
	byName := make(map[string]venues.Adapter, len(adapters))
	for _, a := range adapters {
		byName[a.Name()] = a
	}
	return &Pipeline{
		store:       st,
		broadcaster: b,
		monitor:     m,
		router:      r,
		adapters:    byName,
	}
}

// Run executes the whole pipeline for one order. attempt is 1-based and is
// recorded on the order. A retry restarts from pending: there is no
// step-level checkpointing, so every persistence write here must be safe
// to repeat.
func (p *Pipeline) Run(ctx context.Context, orderID string, attempt int) error {
	order, err := p.store.GetByID(ctx, orderID)
	if err != nil {
		return &domain.InfrastructureError{Component: "order store", Err: err}
	}
	if order.Status == domain.StatusConfirmed {
		pipelineLog.Warnf("order %s already confirmed, skipping run", orderID)
		return nil
	}

	// Re-enter at pending for this run. An order in pending carries no
	// error, no venue choice and no tx hash, whatever earlier runs wrote.
	reset := domain.StatusUpdate(domain.StatusPending)
	reset.ErrorMessage = domain.StrPtr("")
	reset.SelectedDex = domain.StrPtr("")
	reset.TxHash = domain.StrPtr("")
	reset.Attempts = &attempt
	if err := p.store.Update(ctx, orderID, reset); err != nil {
		return &domain.InfrastructureError{Component: "order store", Err: err}
	}
	order.Status = domain.StatusPending
	order.Attempts = attempt
	order.ErrorMessage = nil
	order.SelectedDex = nil
	order.TxHash = nil

	if err := p.run(ctx, order); err != nil {
		p.fail(ctx, order, err)
		return err
	}
	return nil
}

func (p *Pipeline) run(ctx context.Context, order *domain.Order) error {
	// pending → monitoring: start pool discovery.
	if err := p.advance(ctx, order, domain.StatusMonitoring); err != nil {
		return err
	}
	lookup, err := p.monitor.AwaitPool(ctx, order.TokenAddress)
	if err != nil {
		return err
	}
	if !lookup.Found {
		return domain.ErrPoolTimeout
	}

	// monitoring → triggered: a pool exists.
	if err := p.advance(ctx, order, domain.StatusTriggered); err != nil {
		return err
	}

	// triggered → routing: compare venues.
	if err := p.advance(ctx, order, domain.StatusRouting); err != nil {
		return err
	}
	decision, err := p.router.BestRoute(ctx, order, lookup.PoolsByVenue)
	if err != nil {
		return err
	}

	// routing → building: persist the venue choice, broadcast the
	// decision with its quotes, start transaction construction.
	upd := domain.StatusUpdate(domain.StatusBuilding)
	upd.SelectedDex = &decision.Venue
	if err := p.store.Update(ctx, order.ID, upd); err != nil {
		return &domain.InfrastructureError{Component: "order store", Err: err}
	}
	order.Status = domain.StatusBuilding
	order.SelectedDex = &decision.Venue
	p.broadcaster.Publish(events.NewRoute(order.ID, decision))

	adapter, ok := p.adapters[decision.Venue]
	if !ok {
		return fmt.Errorf("no adapter for selected venue %s", decision.Venue)
	}
	swap, err := adapter.ExecuteSwap(ctx, decision.Quote.PoolID, order.TokenAddress, order.AmountIn, order.Slippage)
	if err != nil {
		return &domain.VenueExecutionError{Venue: decision.Venue, Stage: "submit", Err: err}
	}

	// building → submitted: the venue accepted the transaction; the hash
	// is persisted with the status so tx_hash is set iff submitted or
	// confirmed.
	upd = domain.StatusUpdate(domain.StatusSubmitted)
	upd.TxHash = &swap.TxID
	if err := p.store.Update(ctx, order.ID, upd); err != nil {
		return &domain.InfrastructureError{Component: "order store", Err: err}
	}
	order.Status = domain.StatusSubmitted
	order.TxHash = &swap.TxID
	p.broadcaster.Publish(events.NewSubmitted(order.ID, swap.TxID, swap.ExplorerURL))

	// submitted → confirmed: terminal success. The confirmed event
	// repeats the tx hash so a late observer sees it.
	if err := p.store.Update(ctx, order.ID, domain.StatusUpdate(domain.StatusConfirmed)); err != nil {
		return &domain.InfrastructureError{Component: "order store", Err: err}
	}
	order.Status = domain.StatusConfirmed
	p.broadcaster.Publish(events.NewConfirmed(order.ID, swap.TxID))
	metrics.OrdersConfirmed.Add(1)
	pipelineLog.Infof("order confirmed: id=%s venue=%s tx=%s attempt=%d",
		order.ID, decision.Venue, swap.TxID, order.Attempts)
	return nil
}

// advance performs one forward transition: validate, persist, broadcast.
func (p *Pipeline) advance(ctx context.Context, order *domain.Order, to domain.OrderStatus) error {
	if !domain.CanTransition(order.Status, to) {
		return fmt.Errorf("illegal transition %s -> %s for order %s", order.Status, to, order.ID)
	}
	if err := p.store.Update(ctx, order.ID, domain.StatusUpdate(to)); err != nil {
		return &domain.InfrastructureError{Component: "order store", Err: err}
	}
	order.Status = to
	p.broadcaster.Publish(events.NewStatus(order.ID, to))
	return nil
}

// fail records the terminal failure for this run and broadcasts it. The
// caller re-raises the cause to the queue.
func (p *Pipeline) fail(ctx context.Context, order *domain.Order, cause error) {
	msg := cause.Error()
	upd := domain.StatusUpdate(domain.StatusFailed)
	upd.ErrorMessage = &msg
	// A failed order carries no tx hash even if submission was persisted
	// before the failure; the hash survives in the submitted event and logs.
	upd.TxHash = domain.StrPtr("")
	if err := p.store.Update(ctx, order.ID, upd); err != nil {
		pipelineLog.Errorf("persist failure state: order=%s err=%v", order.ID, err)
	}
	p.broadcaster.Publish(events.NewError(order.ID, msg))
	metrics.OrdersFailed.Add(1)
	pipelineLog.Warnf("order failed: id=%s attempt=%d err=%v", order.ID, order.Attempts, cause)
}
