package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/dexbot/goswap/internal/poolcache"
	"github.com/dexbot/goswap/internal/server"
	"github.com/dexbot/goswap/internal/services"
	"github.com/dexbot/goswap/internal/store"
	"github.com/dexbot/goswap/internal/venues"
	"github.com/dexbot/goswap/pkg/config"
	"github.com/dexbot/goswap/pkg/logger"
	"github.com/dexbot/goswap/pkg/shutdown"
)

func main() {
	// Load .env (best-effort). If missing, fall back to real env vars.
	_ = godotenv.Load()

	getenv := func(key, def string) string {
		if v := os.Getenv(key); v != "" {
			return v
		}
		return def
	}

	var (
		configPath = flag.String("config", getenv("GOSWAP_CONFIG", ""), "YAML config file (optional)")
		listenAddr = flag.String("listen", "", "HTTP listen address (overrides config)")
	)
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "load config: %v\n", err)
		os.Exit(1)
	}
	if *listenAddr != "" {
		cfg.Listen = *listenAddr
	}

	if err := logger.Init(logger.Config{
		Level:      cfg.Log.Level,
		OutputFile: cfg.Log.OutputFile,
		MaxSize:    cfg.Log.MaxSize,
		MaxBackups: cfg.Log.MaxBackups,
		MaxAge:     cfg.Log.MaxAge,
		Compress:   cfg.Log.Compress,
	}); err != nil {
		fmt.Fprintf(os.Stderr, "init logger: %v\n", err)
		os.Exit(1)
	}

	st, err := store.OpenSQLite(cfg.DBPath)
	if err != nil {
		logger.Errorf("open order store: %v", err)
		os.Exit(1)
	}

	cache, err := poolcache.Open(poolcache.OpenOptions{Path: cfg.PoolCacheDir})
	if err != nil {
		// Discovery still works without the cache, just slower.
		logger.Warnf("pool cache unavailable, continuing without it: %v", err)
		cache = nil
	}

	adapters := make([]venues.Adapter, 0, len(cfg.Venues))
	for _, v := range cfg.Venues {
		adapters = append(adapters, venues.NewRESTAdapter(venues.RESTConfig{
			Name:        v.Name,
			BaseURL:     v.BaseURL,
			ExplorerURL: v.ExplorerURL,
			Timeout:     v.Timeout,
		}))
		logger.Infof("venue configured: %s (%s)", v.Name, v.BaseURL)
	}

	broadcaster := services.NewBroadcaster()
	monitor := services.NewPoolMonitor(adapters, cache, cfg.Monitor.Interval, cfg.Monitor.MaxAttempts)
	router := services.NewRouter(adapters)
	pipeline := services.NewPipeline(st, broadcaster, monitor, router, adapters)

	queue := services.NewJobQueue(pipeline, services.QueueOptions{
		Workers:         cfg.Queue.Workers,
		Buffer:          cfg.Queue.Buffer,
		MaxAttempts:     cfg.Queue.MaxAttempts,
		AdmissionLimit:  cfg.Queue.AdmissionLimit,
		AdmissionWindow: cfg.Queue.AdmissionWindow,
	})
	queue.Start(context.Background())

	srv := server.New(st, queue, broadcaster, cache, adapters)
	httpSrv := &http.Server{
		Addr:              cfg.Listen,
		Handler:           srv.Router(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		logger.Infof("listening on %s", cfg.Listen)
		if err := httpSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Errorf("http server error: %v", err)
		}
	}()

	// Shutdown order matters: stop ingress first, drain workers, and only
	// then close the stores a worker may still be writing to.
	mgr := shutdown.NewManager()
	mgr.OnShutdown(func(ctx context.Context) {
		_ = httpSrv.Shutdown(ctx)
		if err := queue.Stop(ctx); err != nil {
			logger.Warnf("queue drain: %v", err)
		}
		if cache != nil {
			_ = cache.Close()
		}
		if err := st.Close(); err != nil {
			logger.Warnf("close store: %v", err)
		}
	})

	stopCh := make(chan os.Signal, 1)
	signal.Notify(stopCh, os.Interrupt, syscall.SIGTERM, syscall.SIGQUIT)
	<-stopCh

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	mgr.Shutdown(ctx)

	fmt.Println("server stopped")
}
