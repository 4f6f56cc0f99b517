// Package server is the thin ingress: it validates requests, creates
// orders, enqueues jobs, attaches status observers and answers lookups.
package server

import (
	"context"
	"encoding/json"
	"expvar"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/dexbot/goswap/internal/poolcache"
	"github.com/dexbot/goswap/internal/services"
	"github.com/dexbot/goswap/internal/store"
	"github.com/dexbot/goswap/internal/venues"
)

var serverLog = logrus.WithField("component", "server")

type Server struct {
	store       store.OrderStore
	queue       *services.JobQueue
	broadcaster *services.Broadcaster
	cache       *poolcache.Cache
	venues      []venues.Adapter
}

func New(st store.OrderStore, queue *services.JobQueue, broadcaster *services.Broadcaster, cache *poolcache.Cache, adapters []venues.Adapter) *Server {
	return &Server{
		store:       st,
		queue:       queue,
		broadcaster: broadcaster,
		cache:       cache,
		venues:      adapters,
	}
}

func (s *Server) Router() http.Handler {
	gin.SetMode(gin.ReleaseMode)
	r := gin.New()
	r.Use(gin.Recovery())

	r.GET("/healthz", s.wrap(s.handleHealthz))

	api := r.Group("/api")
	orders := api.Group("/orders")
	orders.POST("/", s.wrap(s.handleOrderCreate))
	orders.GET("/", s.wrap(s.handleOrdersList))
	orders.GET("/:orderID", s.wrap(s.handleOrderGet))
	orders.GET("/:orderID/stream", s.wrap(s.handleOrderStream))

	api.GET("/queue/stats", s.wrap(s.handleQueueStats))

	r.GET("/debug/vars", gin.WrapH(expvar.Handler()))

	return r
}

type paramsKeyType string

const paramsKey paramsKeyType = "goswap_path_params"

// wrap adapts net/http handlers to gin, injecting path params into the
// request context.
func (s *Server) wrap(h func(http.ResponseWriter, *http.Request)) gin.HandlerFunc {
	return func(c *gin.Context) {
		m := map[string]string{}
		for _, p := range c.Params {
			m[p.Key] = p.Value
		}
		ctx := context.WithValue(c.Request.Context(), paramsKey, m)
		c.Request = c.Request.WithContext(ctx)
		h(c.Writer, c.Request)
	}
}

func pathParam(r *http.Request, key string) string {
	if m, ok := r.Context().Value(paramsKey).(map[string]string); ok {
		return m[key]
	}
	return ""
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]any{"error": msg})
}
