package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"faturas/internal/amqp"
	"faturas/internal/cache"
	"faturas/internal/dataset"
	apphttp "faturas/internal/http"
	"faturas/internal/log"
	"faturas/internal/middleware/ratelimit"
	"faturas/internal/middleware/security"
)

const shutdownTimeout = 30 * time.Second

func serveCmd() *cobra.Command {
	var (
		trustedProxies []string
		reloadLimit    int
	)
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the dashboard over HTTP",
		RunE: func(cmd *cobra.Command, _ []string) error {
			e, err := setup(cmd)
			if err != nil {
				return err
			}
			defer e.Close()
			return runServe(cmd.Context(), e, trustedProxies, reloadLimit)
		},
	}
	cmd.Flags().StringSliceVar(&trustedProxies, "trusted-proxy", nil, "CIDR whose X-Forwarded-For headers are trusted (repeatable)")
	cmd.Flags().IntVar(&reloadLimit, "reload-limit", ratelimit.DefaultConfig().Requests, "reload requests allowed per client per minute")
	return cmd
}

func runServe(ctx context.Context, e *env, trustedProxies []string, reloadLimit int) error {
	logger := e.logger
	cfg := e.cfg

	ips := security.NewIPExtractor()
	for _, cidr := range trustedProxies {
		if err := ips.AddTrustedProxy(cidr); err != nil {
			return fmt.Errorf("trusted proxy %q: %w", cidr, err)
		}
	}

	views := cache.NewLRUCache[[]byte](cfg.ViewCacheSize, cfg.ViewCacheTTL)
	opts := []dataset.Option{
		dataset.WithLogger(logger.WithComponent(log.ComponentDataset)),
		dataset.OnLoad(func(*dataset.Dataset) { views.Purge() }),
	}

	deps := apphttp.Deps{
		Views:   views,
		Limiter: ratelimit.NewLimiter(ratelimit.Config{Requests: reloadLimit, Period: time.Minute}),
		IPs:     ips,
		Logger:  logger.WithComponent(log.ComponentHTTP),
	}
	if e.history != nil {
		opts = append(opts, dataset.WithRecorder(e.history))
		deps.History = e.history
	}

	var bus *amqp.Client
	if cfg.AMQPEnabled() {
		var err error
		bus, err = amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPReloadKey, logger.WithComponent(log.ComponentAMQP))
		if err != nil {
			return fmt.Errorf("connect AMQP: %w", err)
		}
		defer bus.Close()
		opts = append(opts, dataset.WithNotifier(bus))
		logger.Info("AMQP reload events enabled", "exchange", cfg.AMQPExchange, "key", cfg.AMQPReloadKey)
	}

	store := dataset.NewStore(e.source, opts...)
	deps.Store = store

	// Warm the cache so the first page view does not pay for the load.
	if _, err := store.Dataset(ctx); err != nil {
		logger.Warn("Initial load produced no data", log.FieldOperation, log.OpStartup, log.FieldError, err)
	}

	srv := apphttp.NewServer(":"+cfg.Port, deps)
	cleaner := cache.NewManager(logger.WithComponent(log.ComponentCache))
	cleaner.Register(views)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info("Starting faturas server", "port", cfg.Port, "source", cfg.DataSource)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		logger.Info("Shutting down", log.FieldOperation, log.OpShutdown)
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})
	g.Go(func() error { return cleaner.Run(gctx, time.Minute) })
	g.Go(func() error { return deps.Limiter.Run(gctx) })
	if bus != nil {
		g.Go(func() error { return bus.Run(gctx, reloadHandler(store, logger)) })
	}

	if err := g.Wait(); err != nil {
		return err
	}
	logger.Info("Server stopped gracefully")
	return nil
}

// reloadHandler reloads the dataset for a queued request. An empty result is
// still a completed reload, so the message is acknowledged.
func reloadHandler(store *dataset.Store, logger *log.Logger) func(context.Context, *amqp.ReloadRequest) error {
	return func(ctx context.Context, req *amqp.ReloadRequest) error {
		logger.InfoContext(ctx, "Reload requested", log.FieldOperation, log.OpConsume, "reason", req.Reason)
		_, err := store.Reload(ctx)
		if err != nil && !errors.Is(err, dataset.ErrEmptyDataset) {
			return err
		}
		return nil
	}
}
