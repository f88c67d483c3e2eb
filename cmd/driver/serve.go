package main

import (
	"context"
	"database/sql"
	"driver-dispatch-client/internal/adapters/cache"
	"driver-dispatch-client/internal/adapters/directions"
	"driver-dispatch-client/internal/adapters/events"
	"driver-dispatch-client/internal/adapters/render"
	"driver-dispatch-client/internal/adapters/socket"
	"driver-dispatch-client/internal/api"
	"driver-dispatch-client/internal/config"
	"driver-dispatch-client/internal/domain"
	"driver-dispatch-client/internal/platform/db"
	"driver-dispatch-client/internal/ports"
	"driver-dispatch-client/internal/services"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/hashicorp/go-hclog"
	"github.com/jonboulle/clockwork"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
)

func newServeCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the driver: dispatch loop, location publisher and HTTP API",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return a.serve(ctx)
		},
	}

	cmd.Flags().String("port", "", "HTTP listen port")
	_ = a.v.BindPFlag("port", cmd.Flags().Lookup("port"))
	return cmd
}

func (a *app) serve(ctx context.Context) error {
	cfg := a.cfg
	log := a.log

	provider, closeCache, err := buildDirections(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer closeCache()

	var publisher ports.EventPublisher = events.NewLogPublisher(log)
	if strings.TrimSpace(cfg.AMQPURL) != "" {
		amqpPub, err := events.NewAMQPPublisher(ctx, cfg.AMQPURL, cfg.AMQPExchange, log)
		if err != nil {
			return err
		}
		defer amqpPub.Close()
		publisher = amqpPub
	}

	driver := domain.RandomDriverIdentity()
	if cfg.DriverID > 0 {
		driver = domain.NewDriverIdentity(cfg.DriverID)
	}

	start := domain.Coordinates{Lon: cfg.StartLon, Lat: cfg.StartLat}
	ws := socket.NewWSPublisher(cfg.SocketServer, log)
	scene := render.NewScene(cfg.MapStyle)
	clk := clockwork.NewRealClock()
	machine := services.NewJobMachine(services.NewPositionSource(start), cfg.TickEvery, clk)
	client := services.NewDispatchClient(machine, provider, ws, publisher, scene, services.DispatchOptions{
		Driver:          driver,
		PublishInterval: cfg.PublishEvery,
		Clock:           clk,
		Logger:          log,
	})

	// Timeouts leave room for a cold directions lookup behind POST /destinations.
	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           api.NewRouter(client, scene, ws, log),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       10 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error { return ws.Run(ctx) })
	g.Go(func() error { return client.Run(ctx) })
	g.Go(func() error {
		log.Info("server listening", "addr", srv.Addr, "driver_id", driver.ID())
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	err = g.Wait()
	log.Info("driver stopped")
	return err
}

// buildDirections returns the Mapbox provider, wrapped in the configured
// route cache. The returned func releases the cache's resources.
func buildDirections(ctx context.Context, cfg config.Config, log hclog.Logger) (ports.DirectionsProvider, func(), error) {
	noop := func() {}

	if strings.TrimSpace(cfg.MapboxToken) == "" {
		return nil, noop, errors.New("MAPBOX_ACCESS_TOKEN is required")
	}

	mapbox, err := directions.NewMapboxDirectionsProvider(cfg.MapboxToken, directions.MapboxOptions{
		BaseURL:     cfg.DirectionsBaseURL,
		Profile:     cfg.DirectionsProfile,
		MaxAttempts: cfg.DirectionsMaxAttempts,
		Timeout:     cfg.DirectionsTimeout,
		Logger:      log,
	})
	if err != nil {
		return nil, noop, err
	}

	routeCache, closeCache, err := openRouteCache(ctx, cfg, log)
	if err != nil {
		return nil, noop, err
	}
	if routeCache == nil {
		return mapbox, noop, nil
	}

	log.Info("route cache enabled", "backend", cfg.RouteCache, "ttl", cfg.RouteCacheTTL)
	return directions.NewCachedProvider(mapbox, routeCache, cfg.DirectionsProfile, cfg.RouteCacheTTL, log), closeCache, nil
}

// openRouteCache returns a nil cache when caching is disabled.
func openRouteCache(ctx context.Context, cfg config.Config, log hclog.Logger) (ports.RouteCache, func(), error) {
	noop := func() {}

	switch cfg.RouteCache {
	case config.CacheSQLite:
		conn, err := openSQLiteCache(cfg.DBPath)
		if err != nil {
			return nil, noop, err
		}
		return cache.NewSqliteRouteCache(conn, log), func() { _ = conn.Close() }, nil

	case config.CachePostgres:
		conn, err := db.Open(cfg.DatabaseURL)
		if err != nil {
			return nil, noop, err
		}
		if err := cache.InitSchema(conn); err != nil {
			_ = conn.Close()
			return nil, noop, err
		}
		return cache.NewSQLRouteCache(conn, log), func() { _ = conn.Close() }, nil

	case config.CacheRedis:
		client := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
		if err := client.Ping(ctx).Err(); err != nil {
			_ = client.Close()
			return nil, noop, fmt.Errorf("redis route cache %s: %w", cfg.RedisAddr, err)
		}
		return cache.NewRedisRouteCache(client, log), func() { _ = client.Close() }, nil

	default:
		return nil, noop, nil
	}
}

func openSQLiteCache(path string) (*sql.DB, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create cache dir %q: %w", dir, err)
		}
	}

	conn, err := db.OpenSQLite(path)
	if err != nil {
		return nil, err
	}
	if err := cache.InitSchema(conn); err != nil {
		_ = conn.Close()
		return nil, err
	}
	return conn, nil
}
