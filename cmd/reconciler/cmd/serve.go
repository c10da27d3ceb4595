package cmd

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"payment-reconciliation-service/cmd/reconciler/config"
	"payment-reconciliation-service/internal/reconciler"
	"payment-reconciliation-service/internal/server"
	"payment-reconciliation-service/internal/store/cache"
	"payment-reconciliation-service/internal/store/postgres"
	"payment-reconciliation-service/pkg/logger"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// Flags for the serve command
var (
	serveAddr     string
	pgDSN         string
	redisAddr     string
	cacheTTL      time.Duration
	serveMaxCombo int
)

// serveCmd represents the serve command
var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the reconciliation HTTP service",
	Long: `Serve starts the HTTP service exposing the reconciliation search.

The service needs a Postgres connection for the invoice and payment
stores. Redis is optional; without it every search runs the full
matching flow.

Examples:
  reconciler serve --addr :8080 --pg-dsn postgres://localhost/recon
  reconciler serve --addr :8080 --pg-dsn postgres://localhost/recon \
    --redis-addr localhost:6379 --cache-ttl 12h`,

	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().StringVar(&serveAddr, "addr", ":8080", "listen address")
	serveCmd.Flags().StringVar(&pgDSN, "pg-dsn", "", "Postgres connection string (required)")
	serveCmd.Flags().StringVar(&redisAddr, "redis-addr", "", "Redis address for the result cache (optional)")
	serveCmd.Flags().DurationVar(&cacheTTL, "cache-ttl", 24*time.Hour, "result cache entry lifetime")
	serveCmd.Flags().IntVar(&serveMaxCombo, "max-combination-size", 3, "maximum records per combination match")

	serveCmd.MarkFlagRequired("pg-dsn")

	viper.BindPFlag("addr", serveCmd.Flags().Lookup("addr"))
	viper.BindPFlag("pg-dsn", serveCmd.Flags().Lookup("pg-dsn"))
	viper.BindPFlag("redis-addr", serveCmd.Flags().Lookup("redis-addr"))
	viper.BindPFlag("cache-ttl", serveCmd.Flags().Lookup("cache-ttl"))
}

func runServe(cmd *cobra.Command, args []string) error {
	configureServeLogger()

	handler := NewCLIErrorHandler()
	log := logger.GetGlobalLogger().WithComponent("serve")

	serveAddr = viper.GetString("addr")
	pgDSN = viper.GetString("pg-dsn")
	redisAddr = viper.GetString("redis-addr")
	cacheTTL = viper.GetDuration("cache-ttl")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	pool, err := pgxpool.New(ctx, pgDSN)
	if err != nil {
		os.Exit(handler.HandleError(err))
	}
	defer pool.Close()

	var resultCache *cache.ResultCache
	if redisAddr != "" {
		client, err := cache.New(ctx, redisAddr)
		if err != nil {
			log.WithError(err).Warn("Redis unavailable, running without the result cache")
		} else {
			defer client.Close()
			resultCache = cache.NewResultCache(client, cacheTTL)
		}
	}

	svc := reconciler.NewService(
		postgres.NewInvoiceRepository(pool),
		postgres.NewPaymentRepository(pool),
		resultCacheOrNil(resultCache),
		config.CreateMatchingConfig(serveMaxCombo),
	)

	srv := &http.Server{
		Addr:              serveAddr,
		Handler:           server.NewHandler(svc).Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.WithField("addr", serveAddr).Info("HTTP server listening")
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if err != nil && err != http.ErrServerClosed {
			os.Exit(handler.HandleError(err))
		}
	case <-ctx.Done():
		log.Info("Shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			os.Exit(handler.HandleError(err))
		}
	}

	return nil
}

// configureServeLogger switches the global logger to the service deployment
// configuration (JSON on stdout). Verbose runs keep the debug logger set up
// during initialization.
func configureServeLogger() {
	if viper.GetBool("verbose") {
		return
	}

	if log, err := logger.NewLogger(config.CreateServiceLoggerConfig()); err == nil {
		logger.SetGlobalLogger(log)
	}
}

// resultCacheOrNil avoids handing the service a non-nil interface wrapping
// a nil pointer when Redis is not configured.
func resultCacheOrNil(c *cache.ResultCache) reconciler.ResultCache {
	if c == nil {
		return nil
	}
	return c
}
