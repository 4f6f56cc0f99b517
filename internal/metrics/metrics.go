// Package metrics exposes expvar counters for the orchestration pipeline.
package metrics

import "expvar"

var (
	OrdersCreated     = expvar.NewInt("orders_created")
	OrdersConfirmed   = expvar.NewInt("orders_confirmed")
	OrdersFailed      = expvar.NewInt("orders_failed")
	JobsRetried       = expvar.NewInt("jobs_retried")
	JobsAbandoned     = expvar.NewInt("jobs_abandoned")
	BroadcastsSent    = expvar.NewInt("broadcasts_sent")
	BroadcastsDropped = expvar.NewInt("broadcasts_dropped")
	PoolCacheHits     = expvar.NewInt("pool_cache_hits")
)
