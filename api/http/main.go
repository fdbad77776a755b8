package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/sync/errgroup"

	"github.com/etherwheel/custody-ledger/api/http/cache"
	"github.com/etherwheel/custody-ledger/events"
	"github.com/etherwheel/custody-ledger/ledger"
	"github.com/etherwheel/custody-ledger/oracle"
	"github.com/etherwheel/custody-ledger/pool"
	"github.com/etherwheel/custody-ledger/registry"
	natsx "github.com/etherwheel/custody-ledger/sinks/nats"
)

func main() {
	logger := log.New(os.Stdout, "api-http ", log.LstdFlags|log.Lshortfile)

	_ = godotenv.Load()

	pair, err := ledger.LoadPair(os.Getenv("LEDGER_ASSETS_FILE"))
	if err != nil {
		logger.Fatalf("load asset pair: %v", err)
	}

	// An external feed URL switches the oracle source; otherwise the mock
	// feed serves prices and /admin/price can move them.
	var (
		feed     oracle.Feed
		mockFeed *oracle.MockFeed
	)
	if os.Getenv("ORACLE_FEED_URL") != "" {
		feedCfg, err := oracle.HTTPFeedConfigFromEnv()
		if err != nil {
			logger.Fatalf("load feed config: %v", err)
		}
		httpFeed, err := oracle.NewHTTPFeed(feedCfg)
		if err != nil {
			logger.Fatalf("init http feed: %v", err)
		}
		feed = httpFeed
	} else {
		initial := ledger.Units(3500, ledger.ReferenceScale)
		if raw := os.Getenv("ORACLE_INITIAL_PRICE"); raw != "" {
			parsed, err := ledger.ParseAmount(raw, ledger.ReferenceScale)
			if err != nil {
				logger.Fatalf("invalid ORACLE_INITIAL_PRICE: %v", err)
			}
			initial = parsed
		}
		mockFeed = oracle.NewMockFeed(initial, ledger.ReferenceScale)
		feed = mockFeed
	}

	adapter := oracle.NewAdapter(feed, oracle.WithStaleAfter(pair.StaleAfter))
	swapPool := pool.New(pair, adapter, logger)
	if err := seedReserves(swapPool, pair); err != nil {
		logger.Fatalf("seed pool reserves: %v", err)
	}

	bus := events.NewBus(0, logger)
	defer bus.Close()
	factory := registry.NewFactory(swapPool, bus, logger)

	cacheCfg, err := cache.LoadConfigFromEnv()
	if err != nil {
		logger.Fatalf("load redis config: %v", err)
	}
	cacheClient, err := cache.New(cacheCfg)
	if err != nil {
		logger.Fatalf("init redis cache: %v", err)
	}
	if !cacheCfg.Enabled {
		logger.Println("redis cache disabled: API_REDIS_ADDR not set")
	}

	metricsRegistry := prometheus.NewRegistry()
	metrics := newServerMetrics(metricsRegistry, metricsRegistry)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	g, ctx := errgroup.WithContext(ctx)

	broadcaster := NewBroadcaster(logger)
	wsEvents, cancelWS := bus.Subscribe()
	defer cancelWS()
	g.Go(func() error {
		err := broadcaster.Run(ctx, wsEvents)
		if errors.Is(err, context.Canceled) {
			return nil
		}
		return err
	})

	if os.Getenv("NATS_URL") != "" {
		pubCfg, err := natsx.FromEnv()
		if err != nil {
			logger.Fatalf("load nats config: %v", err)
		}
		publisher, err := natsx.NewPublisher(pubCfg)
		if err != nil {
			logger.Fatalf("init nats publisher: %v", err)
		}
		defer publisher.Close()

		pubEvents, cancelPub := bus.Subscribe()
		defer cancelPub()
		g.Go(func() error {
			err := publisher.Forward(ctx, pubEvents)
			if errors.Is(err, context.Canceled) {
				return nil
			}
			return err
		})
		logger.Printf("publishing events to %s under %q", pubCfg.URL, pubCfg.SubjectRoot)
	}

	dev := mockFeed != nil || os.Getenv("LEDGER_DEV_MODE") == "true"
	server := NewServer(factory, swapPool, adapter, mockFeed, cacheClient, broadcaster, metrics, logger, dev)

	addr := os.Getenv("API_HTTP_ADDR")
	if addr == "" {
		addr = ":8080"
	}
	srv := &http.Server{
		Addr:    addr,
		Handler: server.Handler(),
	}

	g.Go(func() error {
		logger.Printf("HTTP server listening on %s", addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	if metricsAddr := os.Getenv("METRICS_ADDR"); metricsAddr != "" {
		metricsSrv := &http.Server{
			Addr:    metricsAddr,
			Handler: promhttp.HandlerFor(metrics.gatherer, promhttp.HandlerOpts{}),
		}
		g.Go(func() error {
			logger.Printf("metrics listening on %s", metricsAddr)
			if err := metricsSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return err
			}
			return nil
		})
		g.Go(func() error {
			<-ctx.Done()
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			return metricsSrv.Shutdown(shutdownCtx)
		})
	}

	g.Go(func() error {
		<-ctx.Done()
		logger.Println("shutdown signal received")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		logger.Fatalf("service stopped: %v", err)
	}
}

// seedReserves funds the pool from POOL_NATIVE_RESERVE / POOL_TOKEN_RESERVE,
// decimal strings in asset units. Both unset leaves the pool empty until
// /admin/fund is called.
func seedReserves(swapPool *pool.Pool, pair ledger.Pair) error {
	rawNative := os.Getenv("POOL_NATIVE_RESERVE")
	rawToken := os.Getenv("POOL_TOKEN_RESERVE")
	if rawNative == "" && rawToken == "" {
		return nil
	}
	if rawNative == "" {
		rawNative = "0"
	}
	if rawToken == "" {
		rawToken = "0"
	}

	native, err := ledger.ParseAmount(rawNative, pair.Native.Decimals)
	if err != nil {
		return err
	}
	token, err := ledger.ParseAmount(rawToken, pair.Token.Decimals)
	if err != nil {
		return err
	}
	return swapPool.Fund(native, token)
}
