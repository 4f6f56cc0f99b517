package services

import (
	"context"
	"fmt"
	"sync"

	"github.com/sirupsen/logrus"

	"github.com/dexbot/goswap/internal/domain"
	"github.com/dexbot/goswap/internal/venues"
)

var routerLog = logrus.WithField("component", "dex_router")

// Router requests quotes from every venue with a known pool and picks the
// best. Venue priority (the final tie-break) is the configured order.
type Router struct {
	adapters map[string]venues.Adapter
	priority map[string]int
}

func NewRouter(adapters []venues.Adapter) *Router {
	r := &Router{
		adapters: make(map[string]venues.Adapter, len(adapters)),
		priority: make(map[string]int, len(adapters)),
	}
	for i, a := range adapters {
		r.adapters[a.Name()] = a
		r.priority[a.Name()] = i
	}
	return r
}

// BestRoute quotes each venue in poolsByVenue concurrently and selects a
// winner. Per-venue failures are excluded, not fatal; if nothing survives
// the decision fails with ErrNoQuoteAvailable.
func (r *Router) BestRoute(ctx context.Context, order *domain.Order, poolsByVenue map[string]string) (domain.RouteDecision, error) {
	var (
		mu     sync.Mutex
		quotes []domain.Quote
		wg     sync.WaitGroup
	)
	for venue, poolID := range poolsByVenue {
		adapter, ok := r.adapters[venue]
		if !ok {
			routerLog.Warnf("no adapter for venue %s, skipping", venue)
			continue
		}
		wg.Add(1)
		go func(a venues.Adapter, poolID string) {
			defer wg.Done()
			q, err := a.Quote(ctx, poolID, order.TokenAddress, order.AmountIn, order.Slippage)
			if err != nil {
				routerLog.Warnf("quote failed: venue=%s order=%s err=%v", a.Name(), order.ID, err)
				return
			}
			mu.Lock()
			quotes = append(quotes, domain.Quote{
				Venue:        a.Name(),
				PoolID:       poolID,
				OutputAmount: q.OutputAmount,
				Fee:          q.Fee,
				PriceImpact:  q.PriceImpact,
			})
			mu.Unlock()
		}(adapter, poolID)
	}
	wg.Wait()

	if len(quotes) == 0 {
		return domain.RouteDecision{}, domain.ErrNoQuoteAvailable
	}

	best, reason := r.selectBest(quotes)
	routerLog.Infof("route selected: order=%s venue=%s reason=%q", order.ID, best.Venue, reason)
	return domain.RouteDecision{
		Venue:  best.Venue,
		Quote:  best,
		Reason: reason,
		Quotes: quotes,
	}, nil
}

// selectBest picks the strictly larger smallest-unit output. On exactly
// equal outputs the lower fee wins; on equal fees the venue configured
// first wins. Fee and price impact are otherwise informational.
func (r *Router) selectBest(quotes []domain.Quote) (domain.Quote, string) {
	if len(quotes) == 1 {
		q := quotes[0]
		return q, fmt.Sprintf("only %s available", q.Venue)
	}

	best := quotes[0]
	for _, q := range quotes[1:] {
		if r.beats(q, best) {
			best = q
		}
	}

	// Cite the winner against its strongest competitor.
	var runnerUp *domain.Quote
	for i := range quotes {
		q := &quotes[i]
		if q.Venue == best.Venue {
			continue
		}
		if runnerUp == nil || r.beats(*q, *runnerUp) {
			runnerUp = q
		}
	}

	switch cmp := best.OutputAmount.Cmp(runnerUp.OutputAmount); {
	case cmp > 0:
		return best, fmt.Sprintf("%s output %s > %s output %s",
			best.Venue, best.OutputAmount, runnerUp.Venue, runnerUp.OutputAmount)
	case cmp == 0 && best.Fee.LessThan(runnerUp.Fee):
		return best, fmt.Sprintf("%s and %s output %s equal, %s fee %s%% lower",
			best.Venue, runnerUp.Venue, best.OutputAmount, best.Venue, best.Fee)
	default:
		return best, fmt.Sprintf("%s and %s tied at output %s, %s has venue priority",
			best.Venue, runnerUp.Venue, best.OutputAmount, best.Venue)
	}
}

// beats reports whether a should rank above b.
func (r *Router) beats(a, b domain.Quote) bool {
	switch a.OutputAmount.Cmp(b.OutputAmount) {
	case 1:
		return true
	case -1:
		return false
	}
	if !a.Fee.Equal(b.Fee) {
		return a.Fee.LessThan(b.Fee)
	}
	return r.priority[a.Venue] < r.priority[b.Venue]
}
